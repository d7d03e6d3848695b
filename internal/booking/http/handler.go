package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/rental-booking-backend/internal/auth"
	"github.com/nekogravitycat/rental-booking-backend/internal/booking"
	"github.com/nekogravitycat/rental-booking-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/rental-booking-backend/internal/pkg/request"
	"github.com/nekogravitycat/rental-booking-backend/internal/pkg/response"
)

type Handler struct {
	service booking.Service
}

func NewHandler(service booking.Service) *Handler {
	return &Handler{service: service}
}

// invalidInput renders input errors: domain errors keep their kind, anything
// else is a plain 400.
func invalidInput(c *gin.Context, message string, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		response.Error(c, err)
		return
	}
	response.BadRequest(c, message, err)
}

func (h *Handler) Availability(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid property id", err)
		return
	}
	var q StayQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}
	req, err := q.ToStayRequest(uri.ID)
	if err != nil {
		invalidInput(c, "invalid stay dates", err)
		return
	}

	avail, err := h.service.CheckAvailability(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewAvailabilityResponse(avail))
}

func (h *Handler) Pricing(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid property id", err)
		return
	}
	var q StayQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}
	req, err := q.ToStayRequest(uri.ID)
	if err != nil {
		invalidInput(c, "invalid stay dates", err)
		return
	}

	quote, err := h.service.CalculatePricing(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewPriceResponse(quote))
}

func (h *Handler) List(c *gin.Context) {
	var req ListBookingsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}
	filter, err := req.ToFilter()
	if err != nil {
		invalidInput(c, "invalid query parameters", err)
		return
	}

	bookings, total, err := h.service.List(c.Request.Context(), filter, auth.GetActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]BookingResponse, len(bookings))
	for i, b := range bookings {
		items[i] = NewBookingResponse(b)
	}
	c.JSON(http.StatusOK, response.NewPageResponse(items, filter.Page, filter.PageSize, total))
}

func (h *Handler) Create(c *gin.Context) {
	var body CreateBookingRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}
	in, out, err := parseStay(body.CheckIn, body.CheckOut)
	if err != nil {
		invalidInput(c, "invalid stay dates", err)
		return
	}

	b, err := h.service.Create(c.Request.Context(), booking.CreateRequest{
		Actor:           auth.GetActor(c),
		PropertyID:      body.PropertyID,
		CheckIn:         in,
		CheckOut:        out,
		GuestCount:      body.GuestCount,
		SpecialRequests: body.SpecialRequests,
		PaymentMethod:   body.PaymentMethod,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, NewBookingResponse(b))
}

func (h *Handler) Get(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid booking id", err)
		return
	}

	b, err := h.service.GetByID(c.Request.Context(), uri.ID, auth.GetActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewBookingResponse(b))
}

func (h *Handler) TransitionStatus(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid booking id", err)
		return
	}
	var body TransitionStatusRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}
	target, err := booking.ParseStatus(body.Status)
	if err != nil {
		response.Error(c, err)
		return
	}

	b, err := h.service.TransitionStatus(c.Request.Context(), uri.ID, target, auth.GetActor(c), body.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewBookingResponse(b))
}

func (h *Handler) Cancel(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid booking id", err)
		return
	}
	var body CancelBookingRequest
	// The body is optional.
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			response.BadRequest(c, "invalid request body", err)
			return
		}
	}

	b, err := h.service.Cancel(c.Request.Context(), uri.ID, auth.GetActor(c), body.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewBookingResponse(b))
}

func (h *Handler) UpdatePayment(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid booking id", err)
		return
	}
	var body UpdatePaymentRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}
	upd, err := body.ToPaymentUpdate()
	if err != nil {
		response.Error(c, err)
		return
	}

	b, err := h.service.UpdatePayment(c.Request.Context(), uri.ID, upd, auth.GetActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewBookingResponse(b))
}

func (h *Handler) ProcessRefund(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid booking id", err)
		return
	}
	var body ProcessRefundRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	rec, err := h.service.ProcessRefund(c.Request.Context(), uri.ID, booking.RefundRequest{
		Amount: body.Amount,
		Reason: body.Reason,
		Method: body.Method,
	}, auth.GetActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, NewRefundResponse(rec))
}

func (h *Handler) ListRefunds(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid booking id", err)
		return
	}

	refunds, err := h.service.ListRefunds(c.Request.Context(), uri.ID, auth.GetActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	items := make([]RefundResponse, len(refunds))
	for i, r := range refunds {
		items[i] = NewRefundResponse(r)
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) ListPaymentHistory(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid booking id", err)
		return
	}

	entries, err := h.service.ListPaymentHistory(c.Request.Context(), uri.ID, auth.GetActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	items := make([]PaymentHistoryResponse, len(entries))
	for i, e := range entries {
		items[i] = NewPaymentHistoryResponse(e)
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
