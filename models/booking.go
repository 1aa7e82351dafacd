package models

import "time"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingRequested BookingStatus = "REQUESTED"
	BookingAccepted  BookingStatus = "ACCEPTED"
	BookingRejected  BookingStatus = "REJECTED"
	BookingCancelled BookingStatus = "CANCELLED"
	BookingCompleted BookingStatus = "COMPLETED"
)

// Terminal reports whether no further transitions are allowed from s.
func (s BookingStatus) Terminal() bool {
	switch s {
	case BookingRejected, BookingCancelled, BookingCompleted:
		return true
	}
	return false
}

// SessionMeta carries optional session details attached to a booking.
type SessionMeta struct {
	Subject     string `bson:"subject,omitempty" json:"subject,omitempty"`
	MeetingLink string `bson:"meeting_link,omitempty" json:"meeting_link,omitempty"`
	Notes       string `bson:"notes,omitempty" json:"notes,omitempty"`
}

// Booking is a learner's request to occupy a slot. Bookings are never
// deleted; terminal states are retained for history. The slot is referenced
// by id only. If the slot is later removed the booking becomes orphaned and
// is surfaced through the reconciliation query.
type Booking struct {
	ID        string        `bson:"id" json:"id"`
	LearnerID string        `bson:"learner_id" json:"learner_id"`
	TutorID   string        `bson:"tutor_id" json:"tutor_id"`
	SlotID    string        `bson:"slot_id" json:"slot_id"`
	Status    BookingStatus `bson:"status" json:"status"`
	Meta      SessionMeta   `bson:"meta,omitempty" json:"meta,omitempty"`
	CreatedAt time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at" json:"updated_at"`
}
