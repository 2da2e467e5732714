package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/presence/internal/api"
	"github.com/your-org/presence/internal/api/ws"
	"github.com/your-org/presence/internal/attendance"
	"github.com/your-org/presence/internal/face"
	"github.com/your-org/presence/internal/storage"
)

const testAPIKey = "test-key"

func newTestRouter(t *testing.T) (*gin.Engine, *storage.MemoryStore) {
	t.Helper()

	store := storage.NewMemoryStore()
	rules := attendance.Rules{
		CutoffHour:      7,
		CutoffMinute:    30,
		ConfidenceFloor: 0.6,
		Location:        time.FixedZone("UTC+7", 7*3600),
	}

	router := api.NewRouter(api.RouterConfig{
		APIKey:          testAPIKey,
		Hub:             ws.NewHub(),
		Registry:        face.NewRegistry(nil, store, store, 3, 10),
		Engine:          attendance.NewEngine(store, rules),
		Sweeper:         attendance.NewSweeper(store, rules.Location),
		VerifyThreshold: 0.7,
	})
	return router, store
}

func doJSON(router *gin.Engine, method, path string, body interface{}, key string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthz_NoAuthRequired(t *testing.T) {
	router, _ := newTestRouter(t)
	w := doJSON(router, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth_MissingKey(t *testing.T) {
	router, _ := newTestRouter(t)
	w := doJSON(router, http.MethodGet, "/v1/attendance/today?identity_id="+uuid.NewString(), nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_WrongKey(t *testing.T) {
	router, _ := newTestRouter(t)
	w := doJSON(router, http.MethodGet, "/v1/attendance/today?identity_id="+uuid.NewString(), nil, "wrong")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestManualCheckIn(t *testing.T) {
	router, _ := newTestRouter(t)
	id := uuid.New()

	w := doJSON(router, http.MethodPost, "/v1/attendance/checkin/manual",
		gin.H{"identity_id": id}, testAPIKey)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, id.String(), resp["identity_id"])
	assert.Equal(t, "manual", resp["method"])
	assert.Contains(t, []interface{}{"present", "late"}, resp["status"])
}

func TestManualCheckIn_DuplicateConflict(t *testing.T) {
	router, _ := newTestRouter(t)
	id := uuid.New()

	w := doJSON(router, http.MethodPost, "/v1/attendance/checkin/manual",
		gin.H{"identity_id": id}, testAPIKey)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(router, http.MethodPost, "/v1/attendance/checkin/manual",
		gin.H{"identity_id": id}, testAPIKey)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestManualCheckIn_InvalidBody(t *testing.T) {
	router, _ := newTestRouter(t)
	w := doJSON(router, http.MethodPost, "/v1/attendance/checkin/manual",
		gin.H{"identity_id": "not-a-uuid"}, testAPIKey)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestToday_BeforeAndAfterCheckIn(t *testing.T) {
	router, _ := newTestRouter(t)
	id := uuid.New()

	w := doJSON(router, http.MethodGet, "/v1/attendance/today?identity_id="+id.String(), nil, testAPIKey)
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["checked_in"])

	w = doJSON(router, http.MethodPost, "/v1/attendance/checkin/manual",
		gin.H{"identity_id": id}, testAPIKey)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(router, http.MethodGet, "/v1/attendance/today?identity_id="+id.String(), nil, testAPIKey)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["checked_in"])
}

func TestHistoryAndStats(t *testing.T) {
	router, _ := newTestRouter(t)
	id := uuid.New()

	w := doJSON(router, http.MethodPost, "/v1/attendance/checkin/manual",
		gin.H{"identity_id": id}, testAPIKey)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(router, http.MethodGet, "/v1/attendance/history?identity_id="+id.String(), nil, testAPIKey)
	require.Equal(t, http.StatusOK, w.Code)
	var hist map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hist))
	assert.Equal(t, float64(1), hist["total"])

	w = doJSON(router, http.MethodGet, "/v1/attendance/stats?identity_id="+id.String(), nil, testAPIKey)
	require.Equal(t, http.StatusOK, w.Code)
	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, float64(1), stats["total_days"])
	assert.Equal(t, float64(100), stats["attendance_percentage"])
}

func TestSweep_OpenDayRejected(t *testing.T) {
	router, _ := newTestRouter(t)

	today := time.Now().In(time.FixedZone("UTC+7", 7*3600)).Format("2006-01-02")
	w := doJSON(router, http.MethodPost, "/v1/attendance/sweep",
		gin.H{"date": today}, testAPIKey)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSweep_ClosedDay(t *testing.T) {
	router, store := newTestRouter(t)

	id := uuid.New()
	_, err := store.Create(context.Background(), id, []float32{1, 0}, 3)
	require.NoError(t, err)

	yesterday := time.Now().In(time.FixedZone("UTC+7", 7*3600)).AddDate(0, 0, -1).Format("2006-01-02")
	w := doJSON(router, http.MethodPost, "/v1/attendance/sweep",
		gin.H{"date": yesterday}, testAPIKey)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(1), resp["created"])
}

func TestSummary(t *testing.T) {
	router, _ := newTestRouter(t)

	id := uuid.New()
	w := doJSON(router, http.MethodPost, "/v1/attendance/checkin/manual",
		gin.H{"identity_id": id}, testAPIKey)
	require.Equal(t, http.StatusCreated, w.Code)

	today := time.Now().In(time.FixedZone("UTC+7", 7*3600)).Format("2006-01-02")
	w = doJSON(router, http.MethodGet, fmt.Sprintf("/v1/attendance/summary?date=%s", today), nil, testAPIKey)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(1), resp["present"].(float64)+resp["late"].(float64))
}

func TestGetFace_NotRegistered(t *testing.T) {
	router, _ := newTestRouter(t)
	w := doJSON(router, http.MethodGet, "/v1/faces/"+uuid.NewString(), nil, testAPIKey)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRegistrationStats_Empty(t *testing.T) {
	router, _ := newTestRouter(t)
	w := doJSON(router, http.MethodGet, "/v1/registrations/stats", nil, testAPIKey)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(0), resp["total_registered"])
}
