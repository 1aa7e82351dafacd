package cron

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"tutorlink/config"
	"tutorlink/models"
	"tutorlink/services/booking"
	"tutorlink/utils"
)

const TypeBookingComplete = "booking:complete"

type completePayload struct {
	BookingID string `json:"booking_id"`
}

func redisOpts() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}
}

// NewCompletionClient returns the asynq client used to enqueue completion
// tasks.
func NewCompletionClient() *asynq.Client {
	return asynq.NewClient(redisOpts())
}

// CompletionScheduler is the timing collaborator: it watches engine events
// and enqueues a completion task at the session's end time whenever a
// booking becomes ACCEPTED. The engine itself never schedules timers.
type CompletionScheduler struct {
	Client *asynq.Client
	Engine booking.CoordinationEngine
}

func (s *CompletionScheduler) BookingTransition(ctx context.Context, event models.BookingEvent) {
	if event.NewStatus != models.BookingAccepted {
		return
	}
	logger := utils.GetLogger()

	b, err := s.Engine.GetBooking(ctx, event.BookingID)
	if err != nil {
		logger.Error("completion scheduler: booking lookup failed",
			zap.String("bookingID", event.BookingID), zap.Error(err))
		return
	}
	slot, err := s.Engine.GetSlot(ctx, b.SlotID)
	if err != nil {
		logger.Error("completion scheduler: slot lookup failed",
			zap.String("slotID", b.SlotID), zap.Error(err))
		return
	}

	endAt := sessionEnd(*slot, time.Now())
	payload, _ := json.Marshal(completePayload{BookingID: event.BookingID})
	task := asynq.NewTask(TypeBookingComplete, payload)
	if _, err := s.Client.Enqueue(task, asynq.ProcessAt(endAt), asynq.MaxRetry(5)); err != nil {
		logger.Error("completion scheduler: enqueue failed",
			zap.String("bookingID", event.BookingID), zap.Error(err))
		return
	}
	logger.Info("completion scheduled",
		zap.String("bookingID", event.BookingID), zap.Time("endAt", endAt))
}

// sessionEnd resolves when a booking's session finishes: the slot's end
// minute on its date for one-off slots, or the next occurrence of its
// weekday for recurring ones.
func sessionEnd(slot models.Slot, now time.Time) time.Time {
	if !slot.Recurring {
		day, err := time.ParseInLocation("2006-01-02", slot.Date, now.Location())
		if err != nil {
			return now
		}
		return day.Add(time.Duration(slot.End) * time.Minute)
	}

	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for i := 0; i < 8; i++ {
		end := day.Add(time.Duration(slot.End) * time.Minute)
		if day.Weekday() == slot.Weekday && end.After(now) {
			return end
		}
		day = day.AddDate(0, 0, 1)
	}
	return now
}

// InitCompletionWorker runs the async worker in background.
func InitCompletionWorker(engine booking.CoordinationEngine) {
	srv := asynq.NewServer(
		redisOpts(),
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeBookingComplete, handleCompleteTask(engine))

	go func() {
		log.Println("[CompletionWorker] starting async worker...")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			if err := srv.Run(mux); err != nil {
				log.Printf("[CompletionWorker] attempt %d/%d failed to start worker: %v", attempts, maxAttempts, err)

				if attempts == maxAttempts {
					log.Fatal("[CompletionWorker] max retry attempts reached, exiting")
				}
				time.Sleep(time.Duration(attempts*2) * time.Second)
			} else {
				break
			}
		}
	}()
}

func handleCompleteTask(engine booking.CoordinationEngine) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p completePayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			log.Printf("[CompletionWorker] invalid payload: %v", err)
			return err
		}

		_, err := engine.Complete(ctx, p.BookingID)
		if err != nil {
			// cancelled before its end time, or re-delivered after completion
			if errors.Is(err, booking.ErrInvalidTransition) || errors.Is(err, booking.ErrNotFound) {
				utils.GetLogger().Debug("completion task obsolete",
					zap.String("bookingID", p.BookingID), zap.Error(err))
				return nil
			}
			return err
		}
		return nil
	}
}
