package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"studioflow/internal/service"
	"studioflow/pkg/response"
)

// BookingHandler 预约与日历 HTTP 处理器
type BookingHandler struct {
	bookingSvc  service.BookingService
	calendarSvc service.CalendarService
}

// NewBookingHandler 创建 BookingHandler
func NewBookingHandler(bookingSvc service.BookingService, calendarSvc service.CalendarService) *BookingHandler {
	return &BookingHandler{bookingSvc: bookingSvc, calendarSvc: calendarSvc}
}

// Book 预约课程
// POST /api/studios/:studioId/classes/:classId/bookings
func (h *BookingHandler) Book(c *gin.Context) {
	studioID, classID, ok := classParams(c)
	if !ok {
		return
	}
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	booking, err := h.bookingSvc.Book(c.Request.Context(), studioID, classID, userID)
	if err != nil {
		h.handleBookingError(c, err)
		return
	}
	response.Created(c, booking)
}

// Cancel 取消本人预约
// DELETE /api/studios/:studioId/classes/:classId/bookings/me
func (h *BookingHandler) Cancel(c *gin.Context) {
	studioID, classID, ok := classParams(c)
	if !ok {
		return
	}
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	booking, err := h.bookingSvc.Cancel(c.Request.Context(), studioID, classID, userID)
	if err != nil {
		h.handleBookingError(c, err)
		return
	}
	response.OK(c, booking)
}

// Calendar 预约 .ics
// GET /api/bookings/:bookingId/calendar.ics
func (h *BookingHandler) Calendar(c *gin.Context) {
	bookingID, ok := MustGetParam(c, "bookingId")
	if !ok {
		return
	}
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	body, err := h.calendarSvc.BookingICS(c.Request.Context(), bookingID, userID)
	if err != nil {
		h.handleBookingError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="booking-`+bookingID+`.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(body))
}

func (h *BookingHandler) handleBookingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrClassNotFound):
		response.NotFound(c, 15001, err.Error())
	case errors.Is(err, service.ErrBookingNotFound):
		response.NotFound(c, 15002, err.Error())
	case errors.Is(err, service.ErrAlreadyBooked):
		response.Conflict(c, 15003, err.Error())
	case errors.Is(err, service.ErrClassFull):
		response.Conflict(c, 15004, err.Error())
	case errors.Is(err, service.ErrClassNotBookable):
		response.BadRequest(c, 15005, err.Error())
	case errors.Is(err, service.ErrBookingNotActive):
		response.BadRequest(c, 15006, err.Error())
	default:
		response.InternalError(c)
	}
}
