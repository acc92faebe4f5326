package booking

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/ward-api/internal/handler"
	"github.com/jwalitptl/ward-api/internal/model"
	bookingService "github.com/jwalitptl/ward-api/internal/service/booking"
	apperrors "github.com/jwalitptl/ward-api/pkg/errors"
	"github.com/jwalitptl/ward-api/pkg/httputil"
)

type Handler struct {
	service bookingService.BookingServicer
}

func NewHandler(service bookingService.BookingServicer) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	rooms := r.Group("/rooms/:id/bookings")
	{
		rooms.POST("", h.CreateBooking)
		rooms.GET("", h.ListRoomBookings)
	}

	bookings := r.Group("/bookings")
	{
		bookings.POST("/validate", h.ValidateBooking)
		bookings.GET("/:id", h.GetBooking)
		bookings.PUT("/:id", h.UpdateBooking)
		bookings.DELETE("/:id", h.CancelBooking)
	}
}

func (h *Handler) CreateBooking(c *gin.Context) {
	roomID, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.CreateBookingRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	booking, err := h.service.Create(c.Request.Context(), roomID, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	httputil.RespondWithStatus(c, http.StatusCreated, booking)
}

func (h *Handler) ListRoomBookings(c *gin.Context) {
	roomID, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	filters := &model.BookingFilters{}
	if raw := c.Query("include_cancelled"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			handler.Error(c, apperrors.BadRequest("invalid include_cancelled", err))
			return
		}
		filters.IncludeCancelled = v
	}

	bookings, err := h.service.ListByRoom(c.Request.Context(), roomID, filters)
	if err != nil {
		handler.Error(c, err)
		return
	}
	httputil.RespondWithSuccess(c, bookings)
}

// ValidateBooking answers 200 for both accepted and rejected candidates; the
// decision is in the body.
func (h *Handler) ValidateBooking(c *gin.Context) {
	var req model.ValidateBookingRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	decision, err := h.service.Validate(c.Request.Context(), &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	httputil.RespondWithSuccess(c, decision)
}

func (h *Handler) GetBooking(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	booking, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		handler.Error(c, err)
		return
	}
	httputil.RespondWithSuccess(c, booking)
}

func (h *Handler) UpdateBooking(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateBookingRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	booking, err := h.service.Update(c.Request.Context(), id, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	httputil.RespondWithSuccess(c, booking)
}

func (h *Handler) CancelBooking(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	booking, err := h.service.Cancel(c.Request.Context(), id)
	if err != nil {
		handler.Error(c, err)
		return
	}
	httputil.RespondWithSuccess(c, booking)
}
