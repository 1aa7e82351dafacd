// File: database/repository/schedule/memory.go
package scheduleRepo

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"tutorlink/models"
)

// memoryScheduleStore is the in-process ScheduleStore. It backs tests and
// single-node deployments that run without Mongo.
type memoryScheduleStore struct {
	mu    sync.RWMutex
	slots map[string]models.Slot
}

// NewMemoryScheduleStore constructs an empty in-memory ScheduleStore.
func NewMemoryScheduleStore() ScheduleStore {
	return &memoryScheduleStore{slots: make(map[string]models.Slot)}
}

func (s *memoryScheduleStore) DeclareSlot(ctx context.Context, slot models.Slot) (string, error) {
	if slot.Start >= slot.End {
		return "", ErrInvalidWindow
	}
	if slot.ID == "" {
		slot.ID = uuid.New().String()
	}
	slot.Available = true
	slot.OccupiedBy = ""
	slot.CreatedAt = time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.slots {
		if existing.TutorID == slot.TutorID && slotsCollide(existing, slot) {
			return "", ErrOverlap
		}
	}
	s.slots[slot.ID] = slot
	return slot.ID, nil
}

func (s *memoryScheduleStore) Get(ctx context.Context, slotID string) (*models.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slot, ok := s.slots[slotID]
	if !ok {
		return nil, ErrNotFound
	}
	return &slot, nil
}

func (s *memoryScheduleStore) Delete(ctx context.Context, tutorID, slotID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[slotID]
	if !ok || slot.TutorID != tutorID {
		return ErrNotFound
	}
	delete(s.slots, slotID)
	return nil
}

func (s *memoryScheduleStore) MarkOccupied(ctx context.Context, slotID, bookingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[slotID]
	if !ok {
		return ErrNotFound
	}
	if slot.OccupiedBy == bookingID {
		return nil // re-entrant confirmation
	}
	if slot.OccupiedBy != "" {
		return ErrSlotConflict
	}
	slot.OccupiedBy = bookingID
	s.slots[slotID] = slot
	return nil
}

func (s *memoryScheduleStore) MarkFree(ctx context.Context, slotID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[slotID]
	if !ok {
		return ErrNotFound
	}
	slot.OccupiedBy = ""
	s.slots[slotID] = slot
	return nil
}

func (s *memoryScheduleStore) IsAvailable(ctx context.Context, slotID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slot, ok := s.slots[slotID]
	if !ok {
		return false, nil
	}
	return slot.Available && slot.OccupiedBy == "", nil
}

func (s *memoryScheduleStore) ListByTutor(ctx context.Context, tutorID string) ([]models.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Slot
	for _, slot := range s.slots {
		if slot.TutorID == tutorID {
			out = append(out, slot)
		}
	}
	return out, nil
}
