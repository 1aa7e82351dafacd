package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	scheduleRepo "tutorlink/database/repository/schedule"
	"tutorlink/middleware"
	"tutorlink/models"
	"tutorlink/services/booking"
)

// BookingHandler exposes the coordination engine's booking lifecycle over
// HTTP. The handler owns nothing: identity comes from the auth middleware,
// all state lives behind the engine.
type BookingHandler struct {
	Engine booking.CoordinationEngine
	Logger *zap.Logger
}

func NewBookingHandler(engine booking.CoordinationEngine, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{Engine: engine, Logger: logger}
}

type requestBookingInput struct {
	TutorID string             `json:"tutor_id" binding:"required"`
	SlotID  string             `json:"slot_id" binding:"required"`
	Meta    models.SessionMeta `json:"meta"`
}

// RequestBooking creates a booking in REQUESTED for the authenticated
// learner.
func (h *BookingHandler) RequestBooking(c *gin.Context) {
	var input requestBookingInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	learnerID := middleware.ActorID(c)
	bookingRec, err := h.Engine.Request(c.Request.Context(), learnerID, input.TutorID, input.SlotID, input.Meta)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, bookingRec)
}

func (h *BookingHandler) AcceptBooking(c *gin.Context) {
	h.transition(c, h.Engine.Accept)
}

func (h *BookingHandler) RejectBooking(c *gin.Context) {
	h.transition(c, h.Engine.Reject)
}

func (h *BookingHandler) CancelBooking(c *gin.Context) {
	h.transition(c, h.Engine.Cancel)
}

func (h *BookingHandler) transition(c *gin.Context, op func(ctx context.Context, bookingID, actorID string) (*models.Booking, error)) {
	bookingID := c.Param("bookingId")
	actorID := middleware.ActorID(c)

	bookingRec, err := op(c.Request.Context(), bookingID, actorID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookingRec)
}

// GetBooking returns a booking to either of its parties.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	bookingID := c.Param("bookingId")
	actorID := middleware.ActorID(c)

	bookingRec, err := h.Engine.GetBooking(c.Request.Context(), bookingID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	if actorID != bookingRec.LearnerID && actorID != bookingRec.TutorID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a party to this booking"})
		return
	}
	c.JSON(http.StatusOK, bookingRec)
}

// ListMyBookings returns the caller's bookings, as tutor or learner
// depending on the role query parameter. An optional status filter narrows
// the projection.
func (h *BookingHandler) ListMyBookings(c *gin.Context) {
	actorID := middleware.ActorID(c)

	var statuses []models.BookingStatus
	if s := c.Query("status"); s != "" {
		statuses = append(statuses, models.BookingStatus(s))
	}

	var (
		bookings []models.Booking
		err      error
	)
	if c.Query("role") == "tutor" {
		bookings, err = h.Engine.BookingsByTutor(c.Request.Context(), actorID, statuses...)
	} else {
		bookings, err = h.Engine.BookingsByLearner(c.Request.Context(), actorID, statuses...)
	}
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

// OrphanedBookings is the reconciliation query: active bookings whose slot
// was deleted.
func (h *BookingHandler) OrphanedBookings(c *gin.Context) {
	orphans, err := h.Engine.Orphans(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, orphans)
}

func (h *BookingHandler) renderError(c *gin.Context, err error) {
	renderEngineError(c, h.Logger, err)
}

// renderEngineError maps the engine's error taxonomy onto HTTP statuses.
// Misuse errors surface unchanged; anything unrecognized is an internal
// failure and is not echoed to the client.
func renderEngineError(c *gin.Context, logger *zap.Logger, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, booking.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, booking.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, booking.ErrInvalidTransition),
		errors.Is(err, booking.ErrSlotConflict),
		errors.Is(err, booking.ErrOverlap),
		errors.Is(err, booking.ErrOrphan):
		status = http.StatusConflict
	case errors.Is(err, scheduleRepo.ErrInvalidWindow):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		logger.Error("booking operation failed", zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}

	resp := gin.H{"error": err.Error()}
	var engineErr *booking.EngineError
	if errors.As(err, &engineErr) {
		resp["code"] = engineErr.Code
	}
	c.JSON(status, resp)
}
