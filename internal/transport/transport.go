package transport

import (
	"fmt"
	"net/http"

	"github.com/ds124wfegd/busbooker/config"
	"github.com/ds124wfegd/busbooker/internal/transport/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func InitRoutes(cfg *config.Config, bookingHandler *BookingHandler, homeHandler *HomeHandler) *gin.Engine {

	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(cfg.Server.AllowedOrigins)))
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Timeout(cfg.Server.RequestTimeout))

	admin := middleware.AdminToken(cfg.Auth.AdminToken)

	api := router.Group("/api")
	{
		// Booking routes. Static segments are registered before /:id
		bookings := api.Group("/bookings")
		{
			bookings.POST("", bookingHandler.CreateBooking)
			bookings.GET("", bookingHandler.ListBookings)
			bookings.GET("/stats", bookingHandler.GetStats)
			bookings.GET("/today", bookingHandler.GetTodayBookings)
			bookings.GET("/daily-summary", bookingHandler.GetDailySummary)
			bookings.GET("/availability", bookingHandler.GetAvailability)
			bookings.DELETE("/reset", admin, bookingHandler.ResetBookings)

			bookings.GET("/:id", bookingHandler.GetBooking)
			bookings.PATCH("/:id/confirm", admin, bookingHandler.ConfirmBooking)
			bookings.PATCH("/:id", admin, bookingHandler.UpdateBooking)
			bookings.DELETE("/:id", admin, bookingHandler.DeleteBooking)
		}

		api.GET("/home/data", homeHandler.GetHomeData)
		api.GET("/health", homeHandler.Health)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": fmt.Sprintf("Route %s %s not found", c.Request.Method, c.Request.URL.Path),
		})
	})

	return router
}

func corsConfig(origins []string) cors.Config {
	config := cors.DefaultConfig()
	if len(origins) == 0 {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
	}
	config.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", middleware.AdminTokenHeader, middleware.RequestIDHeader}
	config.ExposeHeaders = []string{middleware.RequestIDHeader}
	return config
}
