package transport

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/ds124wfegd/busbooker/internal/entity"
	"github.com/ds124wfegd/busbooker/internal/service"

	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	bookingService service.BookingService
	reportService  service.ReportService
}

func NewBookingHandler(bookingService service.BookingService, reportService service.ReportService) *BookingHandler {
	return &BookingHandler{
		bookingService: bookingService,
		reportService:  reportService,
	}
}

// createBookingRequest accepts the legacy "search" key as an alias of slotKey
type createBookingRequest struct {
	SlotKey    string      `json:"slotKey"`
	Search     string      `json:"search"`
	Date       string      `json:"date"`
	Passengers json.Number `json:"passengers"`
}

func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var body createBookingRequest
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	passengers, err := service.ParsePassengers(body.Passengers.String())
	if err != nil {
		respondError(c, err, "Failed to save booking")
		return
	}

	slotKey := body.SlotKey
	if strings.TrimSpace(slotKey) == "" {
		slotKey = body.Search
	}

	booking, err := h.bookingService.CreateBooking(c.Request.Context(), &service.CreateBookingRequest{
		SlotKey:    slotKey,
		Date:       body.Date,
		Passengers: passengers,
	})
	if err != nil {
		respondError(c, err, "Failed to save booking")
		return
	}

	c.JSON(http.StatusCreated, booking)
}

func (h *BookingHandler) ConfirmBooking(c *gin.Context) {
	booking, err := h.bookingService.ConfirmBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to confirm booking")
		return
	}

	c.JSON(http.StatusOK, booking)
}

func (h *BookingHandler) UpdateBooking(c *gin.Context) {
	var patch entity.BookingPatch
	if err := c.ShouldBindJSON(&patch); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	booking, err := h.bookingService.UpdateBooking(c.Request.Context(), c.Param("id"), &patch)
	if err != nil {
		respondError(c, err, "Failed to update booking")
		return
	}

	c.JSON(http.StatusOK, booking)
}

func (h *BookingHandler) GetBooking(c *gin.Context) {
	booking, err := h.bookingService.GetBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to fetch booking")
		return
	}

	c.JSON(http.StatusOK, booking)
}

// ListBookings supports ?status=, ?date= and ?search= filters
func (h *BookingHandler) ListBookings(c *gin.Context) {
	filter := entity.BookingFilter{
		Status: entity.BookingStatus(strings.ToLower(strings.TrimSpace(c.Query("status")))),
		Date:   strings.TrimSpace(c.Query("date")),
		Search: strings.TrimSpace(c.Query("search")),
	}

	bookings, err := h.bookingService.ListBookings(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err, "Failed to fetch bookings")
		return
	}

	c.JSON(http.StatusOK, bookings)
}

func (h *BookingHandler) DeleteBooking(c *gin.Context) {
	if err := h.bookingService.DeleteBooking(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err, "Failed to delete booking")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Booking deleted successfully"})
}

func (h *BookingHandler) ResetBookings(c *gin.Context) {
	deleted, err := h.bookingService.ResetBookings(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to reset data")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "All data has been reset successfully.",
		"deleted": deleted,
	})
}

func (h *BookingHandler) GetAvailability(c *gin.Context) {
	availability, err := h.bookingService.GetAvailability(c.Request.Context(), c.Query("slotKey"), c.Query("date"))
	if err != nil {
		respondError(c, err, "Failed to fetch availability")
		return
	}

	c.JSON(http.StatusOK, availability)
}

func (h *BookingHandler) GetStats(c *gin.Context) {
	stats, err := h.reportService.GetStats(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to fetch stats")
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *BookingHandler) GetTodayBookings(c *gin.Context) {
	bookings, err := h.reportService.GetTodayBookings(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to fetch today's bookings")
		return
	}

	c.JSON(http.StatusOK, bookings)
}

func (h *BookingHandler) GetDailySummary(c *gin.Context) {
	summary, err := h.reportService.GetDailySummary(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to fetch daily summary")
		return
	}

	c.JSON(http.StatusOK, summary)
}
