package ward

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/ward-api/internal/handler"
	"github.com/jwalitptl/ward-api/internal/model"
	wardService "github.com/jwalitptl/ward-api/internal/service/ward"
	apperrors "github.com/jwalitptl/ward-api/pkg/errors"
	"github.com/jwalitptl/ward-api/pkg/httputil"
)

type Handler struct {
	service wardService.WardServicer
}

func NewHandler(service wardService.WardServicer) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the corpus and room routes. guard runs before every
// write, e.g. a role check.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, guard ...gin.HandlerFunc) {
	write := func(fn gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, guard...), fn)
	}

	corpuses := r.Group("/corpuses")
	{
		corpuses.POST("", write(h.CreateCorpus)...)
		corpuses.GET("", h.ListCorpuses)
		corpuses.GET("/:id", h.GetCorpus)
		corpuses.PUT("/:id", write(h.UpdateCorpus)...)
		corpuses.DELETE("/:id", write(h.DeleteCorpus)...)
	}

	rooms := r.Group("/rooms")
	{
		rooms.POST("", write(h.CreateRoom)...)
		rooms.GET("", h.ListRooms)
		rooms.GET("/:id", h.GetRoom)
		rooms.PUT("/:id", write(h.UpdateRoom)...)
		rooms.DELETE("/:id", write(h.DeleteRoom)...)
	}
}

func (h *Handler) CreateCorpus(c *gin.Context) {
	var req model.CreateCorpusRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	corpus, err := h.service.CreateCorpus(c.Request.Context(), &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	httputil.RespondWithStatus(c, http.StatusCreated, corpus)
}

func (h *Handler) ListCorpuses(c *gin.Context) {
	corpuses, err := h.service.ListCorpuses(c.Request.Context())
	if err != nil {
		handler.Error(c, err)
		return
	}
	httputil.RespondWithSuccess(c, corpuses)
}

func (h *Handler) GetCorpus(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	corpus, err := h.service.GetCorpus(c.Request.Context(), id)
	if err != nil {
		handler.Error(c, err)
		return
	}
	httputil.RespondWithSuccess(c, corpus)
}

func (h *Handler) UpdateCorpus(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateCorpusRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	corpus, err := h.service.UpdateCorpus(c.Request.Context(), id, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	httputil.RespondWithSuccess(c, corpus)
}

func (h *Handler) DeleteCorpus(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteCorpus(c.Request.Context(), id); err != nil {
		handler.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) CreateRoom(c *gin.Context) {
	var req model.CreateRoomRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	room, err := h.service.CreateRoom(c.Request.Context(), &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	httputil.RespondWithStatus(c, http.StatusCreated, room)
}

func (h *Handler) ListRooms(c *gin.Context) {
	filters := &model.RoomFilters{}
	if raw := c.Query("corpus_id"); raw != "" {
		corpusID, err := uuid.Parse(raw)
		if err != nil {
			handler.Error(c, apperrors.BadRequest("invalid corpus_id", err))
			return
		}
		filters.CorpusID = &corpusID
	}

	rooms, err := h.service.ListRooms(c.Request.Context(), filters)
	if err != nil {
		handler.Error(c, err)
		return
	}
	httputil.RespondWithSuccess(c, rooms)
}

func (h *Handler) GetRoom(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	room, err := h.service.GetRoom(c.Request.Context(), id)
	if err != nil {
		handler.Error(c, err)
		return
	}
	httputil.RespondWithSuccess(c, room)
}

func (h *Handler) UpdateRoom(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateRoomRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	room, err := h.service.UpdateRoom(c.Request.Context(), id, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	httputil.RespondWithSuccess(c, room)
}

func (h *Handler) DeleteRoom(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteRoom(c.Request.Context(), id); err != nil {
		handler.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
