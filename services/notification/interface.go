package notification

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"tutorlink/models"
	"tutorlink/utils"
)

// NotificationService consumes booking transition events and forwards them
// to the delivery channel. Event delivery from the engine is at-least-once,
// so implementations deduplicate per (bookingID, newStatus): push delivery
// itself (FCM, email) lives outside this server.
type NotificationService interface {
	BookingTransition(ctx context.Context, event models.BookingEvent)
}

// DefaultNotificationService logs transitions and hands them to a Forwarder
// when one is configured.
type DefaultNotificationService struct {
	Forwarder Forwarder

	mu        sync.Mutex
	delivered map[string]struct{}
}

// Forwarder is the outbound hook for the external delivery collaborator.
type Forwarder func(ctx context.Context, event models.BookingEvent) error

func NewDefaultNotificationService(forwarder Forwarder) *DefaultNotificationService {
	return &DefaultNotificationService{
		Forwarder: forwarder,
		delivered: make(map[string]struct{}),
	}
}

// BookingTransition handles one engine event. Duplicate deliveries of the
// same (bookingID, newStatus) pair are dropped.
func (s *DefaultNotificationService) BookingTransition(ctx context.Context, event models.BookingEvent) {
	key := event.BookingID + ":" + string(event.NewStatus)
	s.mu.Lock()
	if _, seen := s.delivered[key]; seen {
		s.mu.Unlock()
		return
	}
	s.delivered[key] = struct{}{}
	s.mu.Unlock()

	logger := utils.GetLogger()
	logger.Info("booking transition",
		zap.String("bookingID", event.BookingID),
		zap.String("oldStatus", string(event.OldStatus)),
		zap.String("newStatus", string(event.NewStatus)),
		zap.Time("timestamp", event.Timestamp))

	if s.Forwarder == nil {
		return
	}
	if err := s.Forwarder(ctx, event); err != nil {
		logger.Error("failed to forward booking notification",
			zap.String("bookingID", event.BookingID), zap.Error(err))
	}
}
