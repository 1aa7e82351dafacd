package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tutorlink/middleware"
	"tutorlink/models"
	"tutorlink/services/booking"
)

// MessageHandler is the inbound boundary for the messaging collaborator.
// It receives the structured payload of SESSION_ACTION and SESSION_DETAILS
// messages and hands it to the engine; conversation content never reaches
// this server.
type MessageHandler struct {
	Engine booking.CoordinationEngine
	Logger *zap.Logger
}

func NewMessageHandler(engine booking.CoordinationEngine, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{Engine: engine, Logger: logger}
}

// HandleSessionMessage interprets one delivered message. Stale actions
// (replays, unknown or already-terminal bookings) are an expected race in
// asynchronous messaging and answer 200 with the stale flag set, never an
// error.
func (h *MessageHandler) HandleSessionMessage(c *gin.Context) {
	var msg models.SessionMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}
	if msg.MessageID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message_id is required"})
		return
	}

	// the authenticated caller is the sender, whatever the payload claims
	msg.SenderID = middleware.ActorID(c)
	if msg.Action != nil {
		msg.Action.ActorID = msg.SenderID
	}

	outcome, err := h.Engine.HandleMessage(c.Request.Context(), msg)
	if err != nil {
		renderEngineError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}
