package models

// MessageType tags the structured payloads the messaging subsystem delivers.
type MessageType string

const (
	MessageSessionAction  MessageType = "SESSION_ACTION"
	MessageSessionDetails MessageType = "SESSION_DETAILS"
)

// ActionKind is the instruction carried by a SESSION_ACTION message.
type ActionKind string

const (
	ActionAccept            ActionKind = "ACCEPT"
	ActionReject            ActionKind = "REJECT"
	ActionCancel            ActionKind = "CANCEL"
	ActionReschedulePropose ActionKind = "RESCHEDULE_PROPOSE"
)

// SessionAction is an in-band instruction embedded in a chat message.
// Actions are transient inputs: after interpretation only the MessageID is
// retained, as the idempotency key for replay detection.
type SessionAction struct {
	MessageID    string     `json:"message_id"`
	BookingID    string     `json:"booking_id"`
	Kind         ActionKind `json:"action_kind"`
	ActorID      string     `json:"actor_id"`
	TargetSlotID string     `json:"target_slot_id,omitempty"` // RESCHEDULE_PROPOSE only
}

// SessionMessage is the envelope the messaging collaborator delivers. The
// engine reads nothing of the conversation beyond this payload.
type SessionMessage struct {
	MessageID string         `json:"message_id"`
	BookingID string         `json:"booking_id"`
	Type      MessageType    `json:"message_type"`
	SenderID  string         `json:"sender_id"`
	Action    *SessionAction `json:"action,omitempty"`  // Type == SESSION_ACTION
	Details   *SessionMeta   `json:"details,omitempty"` // Type == SESSION_DETAILS
}
