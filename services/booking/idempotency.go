package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"tutorlink/models"
)

// ActionOutcome is what interpreting one session action produced. Outcomes
// are recorded against the message id so duplicate deliveries observe the
// original result instead of causing a second transition.
type ActionOutcome struct {
	BookingID string               `json:"booking_id,omitempty"`
	Status    models.BookingStatus `json:"status,omitempty"`
	ErrorCode string               `json:"error_code,omitempty"`
	Stale     bool                 `json:"stale,omitempty"`
	Replayed  bool                 `json:"replayed,omitempty"`
}

// IdempotencyStore tracks recently-seen message ids. Begin claims a message
// id: first is true exactly once per id; subsequent calls return the
// recorded outcome. Finish records the outcome for later replays. Abort
// releases an unfinished claim so a redelivery of the id executes afresh.
type IdempotencyStore interface {
	Begin(ctx context.Context, messageID string) (first bool, prior *ActionOutcome, err error)
	Finish(ctx context.Context, messageID string, outcome ActionOutcome) error
	Abort(ctx context.Context, messageID string) error
}

const idempotencyKeyPrefix = "session-action:"

type redisIdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisIdempotencyStore tracks message ids in Redis with a TTL, using
// SetNX so the first delivery of an id wins across server instances.
func NewRedisIdempotencyStore(client *redis.Client, ttl time.Duration) IdempotencyStore {
	return &redisIdempotencyStore{client: client, ttl: ttl}
}

func (s *redisIdempotencyStore) Begin(ctx context.Context, messageID string) (bool, *ActionOutcome, error) {
	key := idempotencyKeyPrefix + messageID
	set, err := s.client.SetNX(ctx, key, "pending", s.ttl).Result()
	if err != nil {
		return false, nil, fmt.Errorf("failed to claim message id: %w", err)
	}
	if set {
		return true, nil, nil
	}

	raw, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// claimed by someone whose record expired between SetNX and Get
		return false, &ActionOutcome{Stale: true}, nil
	}
	if err != nil {
		return false, nil, err
	}
	if raw == "pending" {
		// original delivery is still being processed
		return false, &ActionOutcome{Stale: true}, nil
	}
	var outcome ActionOutcome
	if err := json.Unmarshal([]byte(raw), &outcome); err != nil {
		return false, nil, fmt.Errorf("corrupt idempotency record: %w", err)
	}
	return false, &outcome, nil
}

func (s *redisIdempotencyStore) Finish(ctx context.Context, messageID string, outcome ActionOutcome) error {
	data, err := json.Marshal(outcome)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, idempotencyKeyPrefix+messageID, data, s.ttl).Err()
}

func (s *redisIdempotencyStore) Abort(ctx context.Context, messageID string) error {
	return s.client.Del(ctx, idempotencyKeyPrefix+messageID).Err()
}

// memoryIdempotencyStore is the in-process variant, bounded to maxEntries
// message ids evicted oldest-first.
type memoryIdempotencyStore struct {
	mu         sync.Mutex
	outcomes   map[string]*ActionOutcome
	order      []string
	maxEntries int
}

func NewMemoryIdempotencyStore(maxEntries int) IdempotencyStore {
	return &memoryIdempotencyStore{
		outcomes:   make(map[string]*ActionOutcome),
		maxEntries: maxEntries,
	}
}

func (s *memoryIdempotencyStore) Begin(ctx context.Context, messageID string) (bool, *ActionOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if outcome, ok := s.outcomes[messageID]; ok {
		if outcome == nil {
			return false, &ActionOutcome{Stale: true}, nil
		}
		copied := *outcome
		return false, &copied, nil
	}

	s.outcomes[messageID] = nil
	s.order = append(s.order, messageID)
	for len(s.order) > s.maxEntries {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.outcomes, oldest)
	}
	return true, nil, nil
}

func (s *memoryIdempotencyStore) Finish(ctx context.Context, messageID string, outcome ActionOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.outcomes[messageID]; ok {
		s.outcomes[messageID] = &outcome
	}
	return nil
}

func (s *memoryIdempotencyStore) Abort(ctx context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.outcomes[messageID]; !ok {
		return nil
	}
	delete(s.outcomes, messageID)
	for idx, id := range s.order {
		if id == messageID {
			s.order = append(s.order[:idx], s.order[idx+1:]...)
			break
		}
	}
	return nil
}
