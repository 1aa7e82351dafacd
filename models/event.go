package models

import "time"

// BookingEvent is emitted after every successful status transition. Delivery
// to consumers is at-least-once; consumers must be idempotent per
// (BookingID, NewStatus) pair.
type BookingEvent struct {
	BookingID string        `json:"booking_id"`
	OldStatus BookingStatus `json:"old_status"`
	NewStatus BookingStatus `json:"new_status"`
	Timestamp time.Time     `json:"timestamp"`
}
