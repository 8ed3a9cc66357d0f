package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"handyhub/middleware"
	"handyhub/services/booking"
	"handyhub/utils"
)

// BookingHandler exposes the booking lifecycle surface over HTTP.
type BookingHandler struct {
	Service booking.BookingService
	Logger  *zap.Logger
}

func NewBookingHandler(svc booking.BookingService, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{Service: svc, Logger: logger}
}

// statusFor maps the service error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch booking.KindOf(err) {
	case booking.KindValidation:
		return http.StatusBadRequest
	case booking.KindForbidden:
		return http.StatusForbidden
	case booking.KindNotFound:
		return http.StatusNotFound
	case booking.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusServiceUnavailable
	}
}

func (h *BookingHandler) fail(c *gin.Context, err error) {
	utils.JSONError(c, statusFor(err), "booking request failed", err.Error())
}

func (h *BookingHandler) actor(c *gin.Context) (booking.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		utils.JSONError(c, http.StatusUnauthorized, "unauthorized", "no authenticated actor")
	}
	return actor, ok
}

// CreateBooking opens a new pending booking for the acting customer.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var input booking.CreateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	b, err := h.Service.Create(c.Request.Context(), actor, input)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

// WorkerAction handles the worker's accept/reject decision on a booking.
func (h *BookingHandler) WorkerAction(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var input struct {
		Action string `json:"action"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}

	bookingID := c.Param("id")
	switch input.Action {
	case "accept":
		b, err := h.Service.Accept(c.Request.Context(), actor, bookingID)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, b)
	case "reject":
		b, err := h.Service.Reject(c.Request.Context(), actor, bookingID)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, b)
	default:
		utils.JSONError(c, http.StatusBadRequest, "invalid input", "action must be accept or reject")
	}
}

// CancelBooking dispatches cancellation to the role-specific rule set.
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var (
		b   interface{}
		err error
	)
	switch actor.Role {
	case "worker":
		b, err = h.Service.CancelByWorker(c.Request.Context(), actor, c.Param("id"))
	default:
		b, err = h.Service.CancelByCustomer(c.Request.Context(), actor, c.Param("id"))
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// MarkNotProvided records a no-show on the customer's booking.
func (h *BookingHandler) MarkNotProvided(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	b, err := h.Service.MarkNotProvided(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// SettleBooking completes and pays a booking.
func (h *BookingHandler) SettleBooking(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var input booking.SettleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	result, err := h.Service.Settle(c.Request.Context(), actor, c.Param("id"), input)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ReviewBooking sets the rating and feedback on a booking.
func (h *BookingHandler) ReviewBooking(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var input struct {
		Rating   int    `json:"rating"`
		Feedback string `json:"feedback"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	b, err := h.Service.Review(c.Request.Context(), actor, c.Param("id"), input.Rating, input.Feedback)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// DeleteBooking hides a booking from the customer's views.
func (h *BookingHandler) DeleteBooking(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	if err := h.Service.SoftDelete(c.Request.Context(), actor, c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// CustomerBookings lists the acting customer's visible bookings.
func (h *BookingHandler) CustomerBookings(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	bookings, err := h.Service.ListForCustomer(c.Request.Context(), actor)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

// WorkerDashboard lists open jobs and assignments for the acting worker.
func (h *BookingHandler) WorkerDashboard(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	dashboard, err := h.Service.ListForWorker(c.Request.Context(), actor)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

// BrokerBookings lists bookings attributed to the acting broker.
func (h *BookingHandler) BrokerBookings(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	bookings, err := h.Service.ListForBroker(c.Request.Context(), actor)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

// BrokerCapProgress reports usedJobs/limit for one worker under the acting broker.
func (h *BookingHandler) BrokerCapProgress(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	status, err := h.Service.CapProgress(c.Request.Context(), actor, c.Param("workerID"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}
