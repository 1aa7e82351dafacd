package models

import "time"

// Slot represents a tutor-declared availability window. One-off slots carry a
// Date; recurring slots carry a Weekday and repeat every week.
type Slot struct {
	ID         string       `bson:"id" json:"id"`
	TutorID    string       `bson:"tutor_id" json:"tutor_id"`
	Date       string       `bson:"date,omitempty" json:"date,omitempty"` // "2006-01-02", one-off slots only
	Weekday    time.Weekday `bson:"weekday,omitempty" json:"weekday,omitempty"`
	Start      int          `bson:"start" json:"start"` // minutes from midnight (e.g., 600 for 10:00)
	End        int          `bson:"end" json:"end"`     // minutes from midnight, exclusive
	Recurring  bool         `bson:"recurring" json:"recurring"`
	Available  bool         `bson:"available" json:"available"`
	OccupiedBy string       `bson:"occupied_by,omitempty" json:"occupied_by,omitempty"` // booking id holding the slot, empty when free
	CreatedAt  time.Time    `bson:"created_at" json:"created_at"`
}

// DayKey returns the calendar scope a slot occupies: the concrete date for
// one-off slots, the weekday name for recurring ones.
func (s Slot) DayKey() string {
	if s.Recurring {
		return s.Weekday.String()
	}
	return s.Date
}

// Overlaps reports whether two windows intersect on the half-open
// interval [Start, End).
func (s Slot) Overlaps(other Slot) bool {
	return s.Start < other.End && other.Start < s.End
}

// SlotWindow bounds an availability query to a date range. Zero values mean
// unbounded on that side.
type SlotWindow struct {
	From string `json:"from,omitempty"` // "2006-01-02", inclusive
	To   string `json:"to,omitempty"`   // "2006-01-02", inclusive
}

// Contains reports whether a one-off slot's date falls inside the window.
// Recurring slots are always in the window.
func (w SlotWindow) Contains(s Slot) bool {
	if s.Recurring {
		return true
	}
	if w.From != "" && s.Date < w.From {
		return false
	}
	if w.To != "" && s.Date > w.To {
		return false
	}
	return true
}
