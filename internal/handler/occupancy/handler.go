package occupancy

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/ward-api/internal/handler"
	occupancyService "github.com/jwalitptl/ward-api/internal/service/occupancy"
	"github.com/jwalitptl/ward-api/pkg/httputil"
)

type Handler struct {
	service occupancyService.OccupancyServicer
}

func NewHandler(service occupancyService.OccupancyServicer) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/occupancy", h.GetOccupancy)
	r.GET("/corpuses/:id/occupancy", h.GetCorpusOccupancy)
	r.GET("/rooms/:id/occupancy", h.GetRoomOccupancy)
}

func (h *Handler) GetOccupancy(c *gin.Context) {
	stats, err := h.service.SummarizeAll(c.Request.Context())
	if err != nil {
		handler.Error(c, err)
		return
	}
	httputil.RespondWithSuccess(c, stats)
}

func (h *Handler) GetCorpusOccupancy(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	stats, err := h.service.SummarizeCorpus(c.Request.Context(), id)
	if err != nil {
		handler.Error(c, err)
		return
	}
	httputil.RespondWithSuccess(c, stats)
}

func (h *Handler) GetRoomOccupancy(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	row, err := h.service.SummarizeRoom(c.Request.Context(), id)
	if err != nil {
		handler.Error(c, err)
		return
	}
	httputil.RespondWithSuccess(c, row)
}
