package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/ward-api/internal/config"
	"github.com/jwalitptl/ward-api/internal/model"
	"github.com/jwalitptl/ward-api/internal/repository"
	"github.com/jwalitptl/ward-api/internal/repository/memory"
	"github.com/jwalitptl/ward-api/pkg/auth"
	"github.com/jwalitptl/ward-api/pkg/daterange"
)

const testSecret = "test-secret"

// TestResponse is the decoded response envelope.
type TestResponse struct {
	Code    int                    `json:"-"`
	Status  string                 `json:"status"`
	Message string                 `json:"message"`
	RawData json.RawMessage        `json:"data"`
	Data    map[string]interface{} `json:"-"`
	Body    map[string]interface{} `json:"-"`
}

func (r TestResponse) IsSuccess() bool {
	return r.Status == "success"
}

func (r TestResponse) GetString(key string) string {
	if v, ok := r.Data[key].(string); ok {
		return v
	}
	return ""
}

func (r TestResponse) List(t *testing.T) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	require.NoError(t, json.Unmarshal(r.RawData, &out))
	return out
}

type testServer struct {
	t       *testing.T
	handler http.Handler
	store   *memory.Store
	token   string
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Server.Mode = gin.TestMode
	cfg.RateLimit.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}

	store := memory.NewStore()
	a, err := New(Deps{
		Config:   cfg,
		Stores:   Stores{Corpuses: store.Corpuses, Rooms: store.Rooms, Bookings: store.Bookings},
		Clock:    daterange.FixedClock(daterange.MustParse("2025-01-10")),
		Registry: prometheus.NewRegistry(),
		Checks:   map[string]repository.Pinger{"database": store},
	})
	require.NoError(t, err)

	return &testServer{t: t, handler: a.Router.Engine(), store: store}
}

func (s *testServer) makeRequest(method, path string, body interface{}) TestResponse {
	s.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	resp := TestResponse{Code: rec.Code}
	if rec.Body.Len() == 0 || !strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		return resp
	}
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &resp.Body))
	if len(resp.RawData) > 0 && resp.RawData[0] == '{' {
		require.NoError(s.t, json.Unmarshal(resp.RawData, &resp.Data))
	}
	return resp
}

func (s *testServer) createRoom(corpusNumber, capacity int) (corpusID, roomID string) {
	s.t.Helper()

	corpus := s.makeRequest(http.MethodPost, "/api/v1/corpuses", map[string]interface{}{
		"corpus_number": corpusNumber,
		"total_rooms":   10,
	})
	require.Equal(s.t, http.StatusCreated, corpus.Code, corpus.Message)
	corpusID = corpus.GetString("id")

	room := s.makeRequest(http.MethodPost, "/api/v1/rooms", map[string]interface{}{
		"corpus_id": corpusID,
		"room_name": fmt.Sprintf("%d01", corpusNumber),
		"capacity":  capacity,
	})
	require.Equal(s.t, http.StatusCreated, room.Code, room.Message)
	return corpusID, room.GetString("id")
}

func (s *testServer) book(roomID, start, end string) TestResponse {
	s.t.Helper()
	return s.makeRequest(http.MethodPost, "/api/v1/rooms/"+roomID+"/bookings", map[string]interface{}{
		"patient_id": uuid.NewString(),
		"start_at":   start,
		"end_at":     end,
	})
}

func TestBookingFlow(t *testing.T) {
	s := newTestServer(t, nil)
	_, roomID := s.createRoom(1, 1)

	created := s.book(roomID, "2025-01-12", "2025-01-14")
	require.Equal(t, http.StatusCreated, created.Code, created.Message)
	assert.True(t, created.IsSuccess())
	assert.Equal(t, float64(1), created.Data["bed_number"])
	assert.Equal(t, "active", created.GetString("status"))
	bookingID := created.GetString("id")

	conflict := s.book(roomID, "2025-01-13", "2025-01-15")
	assert.Equal(t, http.StatusConflict, conflict.Code)
	assert.Equal(t, "room_fully_booked", conflict.Body["reason"])
	assert.Equal(t, []interface{}{"2025-01-13", "2025-01-14"}, conflict.Body["conflicting_dates"])

	// A stay starting the day after the first one ends fits the same bed.
	next := s.book(roomID, "2025-01-15", "2025-01-16")
	require.Equal(t, http.StatusCreated, next.Code, next.Message)
	assert.Equal(t, float64(1), next.Data["bed_number"])

	got := s.makeRequest(http.MethodGet, "/api/v1/bookings/"+bookingID, nil)
	require.Equal(t, http.StatusOK, got.Code)
	assert.Equal(t, "2025-01-12", got.GetString("start_at"))

	list := s.makeRequest(http.MethodGet, "/api/v1/rooms/"+roomID+"/bookings", nil)
	require.Equal(t, http.StatusOK, list.Code)
	assert.Len(t, list.List(t), 2)

	updated := s.makeRequest(http.MethodPut, "/api/v1/bookings/"+bookingID, map[string]interface{}{
		"end_at": "2025-01-15",
	})
	assert.Equal(t, http.StatusConflict, updated.Code, "extending into the next stay")

	cancelled := s.makeRequest(http.MethodDelete, "/api/v1/bookings/"+bookingID, nil)
	require.Equal(t, http.StatusOK, cancelled.Code)
	assert.Equal(t, "cancelled", cancelled.GetString("status"))

	again := s.makeRequest(http.MethodDelete, "/api/v1/bookings/"+bookingID, nil)
	assert.Equal(t, http.StatusConflict, again.Code)

	list = s.makeRequest(http.MethodGet, "/api/v1/rooms/"+roomID+"/bookings?include_cancelled=true", nil)
	assert.Len(t, list.List(t), 2)
	list = s.makeRequest(http.MethodGet, "/api/v1/rooms/"+roomID+"/bookings", nil)
	assert.Len(t, list.List(t), 1)

	assert.Len(t, s.store.Events(), 3, "two creates and one cancel")
}

func TestBookingRejections(t *testing.T) {
	s := newTestServer(t, nil)
	_, roomID := s.createRoom(1, 2)

	tests := []struct {
		name       string
		path       string
		body       map[string]interface{}
		wantStatus int
		wantReason string
	}{
		{
			name:       "start in the past",
			path:       "/api/v1/rooms/" + roomID + "/bookings",
			body:       map[string]interface{}{"patient_id": uuid.NewString(), "start_at": "2025-01-05", "end_at": "2025-01-12"},
			wantStatus: http.StatusUnprocessableEntity,
			wantReason: "past_start_date",
		},
		{
			name:       "end before start",
			path:       "/api/v1/rooms/" + roomID + "/bookings",
			body:       map[string]interface{}{"patient_id": uuid.NewString(), "start_at": "2025-01-20", "end_at": "2025-01-15"},
			wantStatus: http.StatusBadRequest,
			wantReason: "invalid_range",
		},
		{
			name:       "stay longer than a year",
			path:       "/api/v1/rooms/" + roomID + "/bookings",
			body:       map[string]interface{}{"patient_id": uuid.NewString(), "start_at": "2025-01-12", "end_at": "9999-12-31"},
			wantStatus: http.StatusBadRequest,
			wantReason: "invalid_range",
		},
		{
			name:       "malformed date",
			path:       "/api/v1/rooms/" + roomID + "/bookings",
			body:       map[string]interface{}{"patient_id": uuid.NewString(), "start_at": "20-01-2025", "end_at": "2025-01-15"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing patient",
			path:       "/api/v1/rooms/" + roomID + "/bookings",
			body:       map[string]interface{}{"start_at": "2025-01-12", "end_at": "2025-01-15"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown room",
			path:       "/api/v1/rooms/" + uuid.NewString() + "/bookings",
			body:       map[string]interface{}{"patient_id": uuid.NewString(), "start_at": "2025-01-12", "end_at": "2025-01-15"},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "malformed room id",
			path:       "/api/v1/rooms/not-a-uuid/bookings",
			body:       map[string]interface{}{"patient_id": uuid.NewString(), "start_at": "2025-01-12", "end_at": "2025-01-15"},
			wantStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.makeRequest(http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, resp.Code, resp.Message)
			assert.Equal(t, "error", resp.Status)
			if tt.wantReason != "" {
				assert.Equal(t, tt.wantReason, resp.Body["reason"])
			}
		})
	}
}

func TestValidateEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	_, roomID := s.createRoom(1, 1)
	require.Equal(t, http.StatusCreated, s.book(roomID, "2025-01-12", "2025-01-14").Code)

	ok := s.makeRequest(http.MethodPost, "/api/v1/bookings/validate", map[string]interface{}{
		"room_id": roomID, "start_at": "2025-01-15", "end_at": "2025-01-18",
	})
	require.Equal(t, http.StatusOK, ok.Code)
	assert.Equal(t, true, ok.Data["accepted"])
	assert.Equal(t, float64(1), ok.Data["bed_number"])

	full := s.makeRequest(http.MethodPost, "/api/v1/bookings/validate", map[string]interface{}{
		"room_id": roomID, "start_at": "2025-01-14", "end_at": "2025-01-18",
	})
	require.Equal(t, http.StatusOK, full.Code)
	assert.Equal(t, false, full.Data["accepted"])
	assert.Equal(t, "room_fully_booked", full.Data["reason"])

	assert.Len(t, s.store.Events(), 1, "dry runs write nothing")
}

func TestAvailabilityEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	_, roomID := s.createRoom(1, 2)
	require.Equal(t, http.StatusCreated, s.book(roomID, "2025-01-10", "2025-01-12").Code)
	require.Equal(t, http.StatusCreated, s.book(roomID, "2025-01-11", "2025-01-11").Code)

	resp := s.makeRequest(http.MethodGet, "/api/v1/rooms/"+roomID+"/availability?from=2025-01-10&to=2025-01-12", nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Message)
	assert.Equal(t, float64(2), resp.Data["capacity"])
	assert.Equal(t, float64(1), resp.Data["current_occupied"])

	days, ok := resp.Data["days"].([]interface{})
	require.True(t, ok)
	require.Len(t, days, 3)
	assert.Equal(t, float64(2), days[1].(map[string]interface{})["occupied"])
	assert.Equal(t, float64(0), days[1].(map[string]interface{})["available"])

	beds, ok := resp.Data["per_bed"].([]interface{})
	require.True(t, ok)
	assert.Len(t, beds, 2)

	today := s.makeRequest(http.MethodGet, "/api/v1/rooms/"+roomID+"/availability", nil)
	require.Equal(t, http.StatusOK, today.Code)
	assert.Len(t, today.Data["days"], 1)

	bad := s.makeRequest(http.MethodGet, "/api/v1/rooms/"+roomID+"/availability?from=2025-01-12&to=2025-01-10", nil)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
	assert.Equal(t, "invalid_range", bad.Body["reason"])

	badDate := s.makeRequest(http.MethodGet, "/api/v1/rooms/"+roomID+"/availability?from=tomorrow", nil)
	assert.Equal(t, http.StatusBadRequest, badDate.Code)

	missing := s.makeRequest(http.MethodGet, "/api/v1/rooms/"+uuid.NewString()+"/availability", nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)

	assignments := s.makeRequest(http.MethodGet, "/api/v1/rooms/"+roomID+"/beds", nil)
	require.Equal(t, http.StatusOK, assignments.Code)
	assert.Equal(t, float64(2), assignments.Data["beds_used"])
}

func TestOccupancyEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	corpusID, roomID := s.createRoom(1, 3)
	_, otherRoom := s.createRoom(2, 1)
	require.Equal(t, http.StatusCreated, s.book(roomID, "2025-01-10", "2025-01-10").Code)
	require.Equal(t, http.StatusCreated, s.book(roomID, "2025-01-10", "2025-01-15").Code)
	require.Equal(t, http.StatusCreated, s.book(otherRoom, "2025-01-10", "2025-01-20").Code)
	require.Equal(t, http.StatusCreated, s.book(roomID, "2025-02-01", "2025-02-03").Code)

	all := s.makeRequest(http.MethodGet, "/api/v1/occupancy", nil)
	require.Equal(t, http.StatusOK, all.Code, all.Message)
	assert.Equal(t, float64(4), all.Data["total_capacity"])
	assert.Equal(t, float64(3), all.Data["occupied"])
	assert.Equal(t, float64(1), all.Data["available"])
	assert.Equal(t, float64(1), all.Data["leaving_today"])

	corpus := s.makeRequest(http.MethodGet, "/api/v1/corpuses/"+corpusID+"/occupancy", nil)
	require.Equal(t, http.StatusOK, corpus.Code)
	assert.Equal(t, float64(3), corpus.Data["total_capacity"])
	assert.Equal(t, float64(1), corpus.Data["available"])

	room := s.makeRequest(http.MethodGet, "/api/v1/rooms/"+otherRoom+"/occupancy", nil)
	require.Equal(t, http.StatusOK, room.Code)
	assert.Equal(t, float64(0), room.Data["available"])
}

func TestWardEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	corpusID, roomID := s.createRoom(1, 2)

	dup := s.makeRequest(http.MethodPost, "/api/v1/corpuses", map[string]interface{}{"corpus_number": 1})
	assert.Equal(t, http.StatusConflict, dup.Code)

	invalid := s.makeRequest(http.MethodPost, "/api/v1/rooms", map[string]interface{}{
		"corpus_id": corpusID, "room_name": "x", "capacity": 0,
	})
	assert.Equal(t, http.StatusBadRequest, invalid.Code)

	rooms := s.makeRequest(http.MethodGet, "/api/v1/rooms?corpus_id="+corpusID, nil)
	require.Equal(t, http.StatusOK, rooms.Code)
	assert.Len(t, rooms.List(t), 1)

	require.Equal(t, http.StatusCreated, s.book(roomID, "2025-01-12", "2025-01-14").Code)
	require.Equal(t, http.StatusCreated, s.book(roomID, "2025-01-13", "2025-01-13").Code)

	shrink := s.makeRequest(http.MethodPut, "/api/v1/rooms/"+roomID, map[string]interface{}{"capacity": 1})
	assert.Equal(t, http.StatusConflict, shrink.Code)
	assert.Len(t, shrink.Body["unassignable"], 1)

	grow := s.makeRequest(http.MethodPut, "/api/v1/rooms/"+roomID, map[string]interface{}{"capacity": 4})
	require.Equal(t, http.StatusOK, grow.Code, grow.Message)
	assert.Equal(t, float64(4), grow.Data["capacity"])

	inUse := s.makeRequest(http.MethodDelete, "/api/v1/corpuses/"+corpusID, nil)
	assert.Equal(t, http.StatusConflict, inUse.Code)

	roomInUse := s.makeRequest(http.MethodDelete, "/api/v1/rooms/"+roomID, nil)
	assert.Equal(t, http.StatusConflict, roomInUse.Code)

	list := s.makeRequest(http.MethodGet, "/api/v1/rooms/"+roomID+"/bookings", nil)
	for _, b := range list.List(t) {
		resp := s.makeRequest(http.MethodDelete, "/api/v1/bookings/"+b["id"].(string), nil)
		require.Equal(t, http.StatusOK, resp.Code)
	}

	deleted := s.makeRequest(http.MethodDelete, "/api/v1/rooms/"+roomID, nil)
	assert.Equal(t, http.StatusNoContent, deleted.Code)
	assert.Equal(t, http.StatusNotFound, s.makeRequest(http.MethodGet, "/api/v1/rooms/"+roomID, nil).Code)
	assert.Equal(t, http.StatusNoContent, s.makeRequest(http.MethodDelete, "/api/v1/corpuses/"+corpusID, nil).Code)
}

// seedBooking stores a booking directly, bypassing the past-start check.
func (s *testServer) seedBooking(roomID, start, end string) uuid.UUID {
	s.t.Helper()
	b := &model.Booking{
		PatientID: uuid.New(),
		StartAt:   daterange.MustParse(start),
		EndAt:     daterange.MustParse(end),
	}
	ctx := context.Background()
	require.NoError(s.t, s.store.Bookings.WithRoomLock(ctx, uuid.MustParse(roomID), func(tx repository.RoomTx) error {
		return tx.Create(ctx, b)
	}))
	return b.ID
}

func TestShrinkCountsFinishedStays(t *testing.T) {
	s := newTestServer(t, nil)
	_, roomID := s.createRoom(1, 2)

	s.seedBooking(roomID, "2025-01-01", "2025-01-09")
	inProgress := s.seedBooking(roomID, "2025-01-05", "2025-01-15")

	shrink := s.makeRequest(http.MethodPut, "/api/v1/rooms/"+roomID, map[string]interface{}{"capacity": 1})
	require.Equal(t, http.StatusConflict, shrink.Code)
	assert.Equal(t, []interface{}{inProgress.String()}, shrink.Body["unassignable"])

	shorten := s.makeRequest(http.MethodPut, "/api/v1/bookings/"+inProgress.String(), map[string]interface{}{
		"end_at": "2025-01-12",
	})
	require.Equal(t, http.StatusOK, shorten.Code, shorten.Message)
	assert.Equal(t, "2025-01-12", shorten.GetString("end_at"))
	assert.Equal(t, float64(2), shorten.Data["bed_number"])

	room := s.makeRequest(http.MethodGet, "/api/v1/rooms/"+roomID, nil)
	assert.Equal(t, float64(2), room.Data["capacity"])
}

func TestRoomPriceIsDecimalString(t *testing.T) {
	s := newTestServer(t, nil)
	corpusID, roomID := s.createRoom(1, 1)

	updated := s.makeRequest(http.MethodPut, "/api/v1/rooms/"+roomID, map[string]interface{}{"price": "9999999999.99"})
	require.Equal(t, http.StatusOK, updated.Code, updated.Message)
	assert.Equal(t, "9999999999.99", updated.GetString("price"))

	got := s.makeRequest(http.MethodGet, "/api/v1/rooms/"+roomID, nil)
	assert.Equal(t, "9999999999.99", got.GetString("price"))

	negative := s.makeRequest(http.MethodPost, "/api/v1/rooms", map[string]interface{}{
		"corpus_id": corpusID, "room_name": "102", "capacity": 1, "price": "-0.01",
	})
	assert.Equal(t, http.StatusBadRequest, negative.Code)
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.Auth.JWTSecret = testSecret
	})
	jwt := auth.NewJWTService(testSecret, "ward-api", time.Hour)

	health := s.makeRequest(http.MethodGet, "/api/v1/health/live", nil)
	assert.Equal(t, http.StatusOK, health.Code, "health stays public")

	anonymous := s.makeRequest(http.MethodGet, "/api/v1/corpuses", nil)
	assert.Equal(t, http.StatusUnauthorized, anonymous.Code)

	nurse, err := jwt.GenerateAccessToken("nurse-1", "nurse")
	require.NoError(t, err)
	s.token = nurse
	assert.Equal(t, http.StatusOK, s.makeRequest(http.MethodGet, "/api/v1/corpuses", nil).Code)
	forbidden := s.makeRequest(http.MethodPost, "/api/v1/corpuses", map[string]interface{}{"corpus_number": 3})
	assert.Equal(t, http.StatusForbidden, forbidden.Code)

	admin, err := jwt.GenerateAccessToken("admin-1", "admin")
	require.NoError(t, err)
	s.token = admin
	_, roomID := s.createRoom(3, 1)

	s.token = nurse
	assert.Equal(t, http.StatusCreated, s.book(roomID, "2025-01-12", "2025-01-12").Code, "bookings need no admin role")

	s.token = "garbage"
	assert.Equal(t, http.StatusUnauthorized, s.makeRequest(http.MethodGet, "/api/v1/occupancy", nil).Code)
}

func TestHealthMetricsAndNoRoute(t *testing.T) {
	s := newTestServer(t, nil)

	ready := s.makeRequest(http.MethodGet, "/api/v1/health/ready", nil)
	assert.Equal(t, http.StatusOK, ready.Code)

	missing := s.makeRequest(http.MethodGet, "/api/v1/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)

	_, roomID := s.createRoom(1, 1)
	require.Equal(t, http.StatusCreated, s.book(roomID, "2025-01-12", "2025-01-12").Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "ward_http_requests_total")
	assert.Contains(t, body, `ward_booking_operations_total{operation="create",status="success"} 1`)
}
