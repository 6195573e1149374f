package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pdb-slot-api/internal/handler"
	"github.com/noah-isme/pdb-slot-api/internal/models"
	"github.com/noah-isme/pdb-slot-api/internal/repository"
	"github.com/noah-isme/pdb-slot-api/internal/service"
	"github.com/noah-isme/pdb-slot-api/pkg/config"
)

type testServer struct {
	t      *testing.T
	engine *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{Env: config.EnvDevelopment, APIPrefix: "/api/v1"}
	slots := repository.NewMemorySlotStore()
	lecturers := repository.NewMemoryLecturerStore()
	metrics := service.NewMetricsService()

	periods := service.NewPeriodService([]models.AcademicPeriod{{ID: "2025-1", Label: "Ganjil"}}, "", repository.NewMemorySettingsStore(), nil, nil)
	slotSvc := service.NewSlotService(slots, lecturers, periods, nil, nil, metrics, nil, nil, service.SlotServiceConfig{})
	auth, err := service.NewAuthService(lecturers, nil, nil, service.AuthConfig{
		AccessTokenSecret: "secret",
		AccessTokenExpiry: time.Hour,
		AdminUsername:     "admin",
		AdminPassword:     "admin",
	})
	require.NoError(t, err)

	engine := Setup(cfg, Handlers{
		Auth:     handler.NewAuthHandler(auth),
		Slot:     handler.NewSlotHandler(slotSvc),
		Import:   handler.NewImportHandler(service.NewImportService(slotSvc, nil, nil)),
		Lecturer: handler.NewLecturerHandler(service.NewLecturerService(lecturers, nil, nil, nil)),
		Period:   handler.NewPeriodHandler(periods, nil, metrics, 0),
		Calendar: handler.NewCalendarHandler(slotSvc, nil, 0),
		Metrics:  handler.NewMetricsHandler(metrics, slots),
	}, Options{Tokens: auth, Metrics: metrics})
	return &testServer{t: t, engine: engine}
}

func (s *testServer) do(method, path, token string, body interface{}) (int, map[string]json.RawMessage) {
	s.t.Helper()
	var reader bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&reader).Encode(body))
	}
	req := httptest.NewRequest(method, "/api/v1"+path, &reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	var env map[string]json.RawMessage
	if rec.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec.Code, env
}

func (s *testServer) login(username, password string) string {
	s.t.Helper()
	status, env := s.do(http.MethodPost, "/auth/login", "", map[string]string{"username": username, "password": password})
	require.Equal(s.t, http.StatusOK, status)
	var res models.LoginResponse
	require.NoError(s.t, json.Unmarshal(env["data"], &res))
	return res.AccessToken
}

func errorCode(t *testing.T, env map[string]json.RawMessage) string {
	t.Helper()
	var e struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(env["error"], &e))
	return e.Code
}

func TestClaimLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	admin := s.login("admin", "admin")

	for _, nip := range []string{"L1", "L2", "L3"} {
		status, _ := s.do(http.MethodPost, "/lecturers", admin, map[string]string{"nip": nip, "name": "Dosen " + nip})
		require.Equal(t, http.StatusCreated, status)
	}

	status, env := s.do(http.MethodPost, "/slots", admin, map[string]interface{}{
		"course_code": "PDB01", "course_name": "Pengantar Data Besar", "credits": 3, "section_code": "A",
		"day": "Senin", "start_time": "08:00", "end_time": "09:40", "room": "GK-301",
	})
	require.Equal(t, http.StatusCreated, status)
	var slot models.ScheduleSlot
	require.NoError(t, json.Unmarshal(env["data"], &slot))

	status, env = s.do(http.MethodPost, "/slots", admin, map[string]interface{}{
		"course_code": "PDB02", "course_name": "Basis Data", "credits": 3, "section_code": "B",
		"day": "MONDAY", "start_time": "09:00", "end_time": "10:00", "room": "gk-301",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "SCHEDULE_CONFLICT", errorCode(t, env))

	l1, l2, l3 := s.login("L1", "L1"), s.login("L2", "L2"), s.login("L3", "L3")

	status, _ = s.do(http.MethodPost, "/slots", l1, map[string]interface{}{"course_name": "X"})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = s.do(http.MethodPost, "/slots/"+slot.ID+"/claims", l1, nil)
	require.Equal(t, http.StatusOK, status)
	status, env = s.do(http.MethodPost, "/slots/"+slot.ID+"/claims", l1, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "ALREADY_CLAIMED", errorCode(t, env))
	status, _ = s.do(http.MethodPost, "/slots/"+slot.ID+"/claims", l2, nil)
	require.Equal(t, http.StatusOK, status)
	status, env = s.do(http.MethodPost, "/slots/"+slot.ID+"/claims", l3, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CAPACITY_EXCEEDED", errorCode(t, env))

	status, env = s.do(http.MethodGet, "/me/slots", l1, nil)
	require.Equal(t, http.StatusOK, status)
	var mine []map[string]interface{}
	require.NoError(t, json.Unmarshal(env["data"], &mine))
	require.Len(t, mine, 1)
	assert.Equal(t, true, mine[0]["is_full"])

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me/calendar", nil)
	req.Header.Set("Authorization", "Bearer "+l1)
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "UID:"+slot.ID+"@pdb-slot-api")

	status, _ = s.do(http.MethodDelete, "/slots/"+slot.ID+"/claims/me", l1, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = s.do(http.MethodDelete, "/slots/"+slot.ID+"/claims/L2", admin, nil)
	require.Equal(t, http.StatusOK, status)

	status, env = s.do(http.MethodGet, "/slots/summary", admin, nil)
	require.Equal(t, http.StatusOK, status)
	var summary map[string]interface{}
	require.NoError(t, json.Unmarshal(env["data"], &summary))
	assert.Equal(t, float64(1), summary["empty"])

	status, _ = s.do(http.MethodDelete, "/slots/"+slot.ID, admin, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = s.do(http.MethodDelete, "/slots/"+slot.ID+"/claims/me", l1, nil)
	assert.Equal(t, http.StatusNoContent, status)
}

func TestRoutesRequireAuthentication(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(http.MethodGet, "/slots", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = s.do(http.MethodPost, "/auth/login", "", map[string]string{"username": "admin", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, status)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec = httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLecturerCanReadOnlyOwnProfile(t *testing.T) {
	s := newTestServer(t)
	admin := s.login("admin", "admin")
	for _, nip := range []string{"L1", "L2"} {
		status, _ := s.do(http.MethodPost, "/lecturers", admin, map[string]string{"nip": nip, "name": "Dosen " + nip})
		require.Equal(t, http.StatusCreated, status)
	}
	l1 := s.login("L1", "L1")

	status, _ := s.do(http.MethodGet, "/lecturers/L1", l1, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = s.do(http.MethodGet, "/lecturers/L2", l1, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = s.do(http.MethodGet, "/lecturers", l1, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestClaimByRemovedLecturerIsNotFound(t *testing.T) {
	s := newTestServer(t)
	admin := s.login("admin", "admin")
	status, _ := s.do(http.MethodPost, "/lecturers", admin, map[string]string{"nip": "L9", "name": "Dosen L9"})
	require.Equal(t, http.StatusCreated, status)
	status, env := s.do(http.MethodPost, "/slots", admin, map[string]interface{}{
		"course_code": "PDB01", "course_name": "Pengantar Data Besar", "credits": 3, "section_code": "A",
		"day": "Senin", "start_time": "08:00", "end_time": "09:40", "room": "GK-301",
	})
	require.Equal(t, http.StatusCreated, status)
	var slot models.ScheduleSlot
	require.NoError(t, json.Unmarshal(env["data"], &slot))

	l9 := s.login("L9", "L9")
	status, _ = s.do(http.MethodDelete, "/lecturers/L9", admin, nil)
	require.Equal(t, http.StatusNoContent, status)

	status, env = s.do(http.MethodPost, "/slots/"+slot.ID+"/claims", l9, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(t, env))
}
