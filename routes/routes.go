package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"tutorlink/handlers"
	"tutorlink/middleware"
)

// HandlerBundle groups the handlers the router needs.
type HandlerBundle struct {
	Booking  *handlers.BookingHandler
	Schedule *handlers.ScheduleHandler
	Message  *handlers.MessageHandler
}

// RegisterRoutes wires every endpoint of the coordination engine's HTTP
// surface.
func RegisterRoutes(r *gin.Engine, hb *HandlerBundle) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.Use(middleware.ActorAuthMiddleware())
	{
		bookings := api.Group("/bookings")
		{
			bookings.POST("", hb.Booking.RequestBooking)
			bookings.GET("", hb.Booking.ListMyBookings)
			bookings.GET("/orphans", hb.Booking.OrphanedBookings)
			bookings.GET("/:bookingId", hb.Booking.GetBooking)
			bookings.POST("/:bookingId/accept", hb.Booking.AcceptBooking)
			bookings.POST("/:bookingId/reject", hb.Booking.RejectBooking)
			bookings.POST("/:bookingId/cancel", hb.Booking.CancelBooking)
		}

		slots := api.Group("/slots")
		{
			slots.POST("", hb.Schedule.DeclareSlot)
			slots.DELETE("/:slotId", hb.Schedule.DeleteSlot)
		}

		api.GET("/availability/:tutorId", hb.Schedule.Availability)

		api.POST("/messages/session", hb.Message.HandleSessionMessage)
	}
}
