package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tutorlink/middleware"
	"tutorlink/models"
	"tutorlink/services/booking"
)

// ScheduleHandler exposes tutor-side availability management and the
// UI-facing availability query.
type ScheduleHandler struct {
	Engine booking.CoordinationEngine
	Logger *zap.Logger
}

func NewScheduleHandler(engine booking.CoordinationEngine, logger *zap.Logger) *ScheduleHandler {
	return &ScheduleHandler{Engine: engine, Logger: logger}
}

type declareSlotInput struct {
	Date      string `json:"date"`
	Weekday   *int   `json:"weekday"`
	Start     int    `json:"start" binding:"required"`
	End       int    `json:"end" binding:"required"`
	Recurring bool   `json:"recurring"`
}

// DeclareSlot declares an availability window for the authenticated tutor.
func (h *ScheduleHandler) DeclareSlot(c *gin.Context) {
	var input declareSlotInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}
	if input.Recurring && input.Weekday == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recurring slots require a weekday"})
		return
	}
	if !input.Recurring && input.Date == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "one-off slots require a date"})
		return
	}

	slot := models.Slot{
		TutorID:   middleware.ActorID(c),
		Date:      input.Date,
		Start:     input.Start,
		End:       input.End,
		Recurring: input.Recurring,
	}
	if input.Weekday != nil {
		slot.Weekday = time.Weekday(*input.Weekday)
	}

	id, err := h.Engine.DeclareSlot(c.Request.Context(), slot)
	if err != nil {
		renderEngineError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"slot_id": id})
}

// DeleteSlot removes one of the authenticated tutor's slots. Bookings that
// referenced it become orphaned and show up in the reconciliation query.
func (h *ScheduleHandler) DeleteSlot(c *gin.Context) {
	slotID := c.Param("slotId")
	tutorID := middleware.ActorID(c)

	if err := h.Engine.RemoveSlot(c.Request.Context(), tutorID, slotID); err != nil {
		renderEngineError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "slot removed"})
}

// Availability lists a tutor's bookable slots inside an optional date
// window.
func (h *ScheduleHandler) Availability(c *gin.Context) {
	tutorID := c.Param("tutorId")
	window := models.SlotWindow{
		From: c.Query("from"),
		To:   c.Query("to"),
	}

	slots, err := h.Engine.Availability(c.Request.Context(), tutorID, window)
	if err != nil {
		renderEngineError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, slots)
}
