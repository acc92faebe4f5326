package availability

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/ward-api/internal/engine"
	"github.com/jwalitptl/ward-api/internal/handler"
	availabilityService "github.com/jwalitptl/ward-api/internal/service/availability"
	"github.com/jwalitptl/ward-api/pkg/daterange"
	"github.com/jwalitptl/ward-api/pkg/httputil"
)

type Handler struct {
	service availabilityService.AvailabilityServicer
	clock   daterange.Clock
}

func NewHandler(service availabilityService.AvailabilityServicer, clock daterange.Clock) *Handler {
	return &Handler{service: service, clock: clock}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	rooms := r.Group("/rooms/:id")
	{
		rooms.GET("/availability", h.GetAvailability)
		rooms.GET("/beds", h.GetBedAssignments)
	}
}

// GetAvailability projects the room over ?from=&to=. from defaults to today
// and to defaults to from.
func (h *Handler) GetAvailability(c *gin.Context) {
	roomID, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	from, ok := handler.QueryDate(c, "from", h.clock.Today())
	if !ok {
		return
	}
	to, ok := handler.QueryDate(c, "to", from)
	if !ok {
		return
	}
	window, err := daterange.NewRange(from, to)
	if err != nil {
		handler.Error(c, &engine.RejectionError{Reason: engine.ReasonInvalidRange})
		return
	}

	snapshot, err := h.service.Project(c.Request.Context(), roomID, window)
	if err != nil {
		handler.Error(c, err)
		return
	}
	httputil.RespondWithSuccess(c, snapshot)
}

func (h *Handler) GetBedAssignments(c *gin.Context) {
	roomID, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	assignments, err := h.service.BedAssignments(c.Request.Context(), roomID)
	if err != nil {
		handler.Error(c, err)
		return
	}
	httputil.RespondWithSuccess(c, assignments)
}
