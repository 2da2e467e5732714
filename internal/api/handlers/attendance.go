package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/presence/internal/attendance"
	"github.com/your-org/presence/internal/face"
	"github.com/your-org/presence/internal/observability"
	"github.com/your-org/presence/internal/queue"
	"github.com/your-org/presence/internal/storage"
	"github.com/your-org/presence/pkg/dto"
)

type AttendanceHandler struct {
	engine   *attendance.Engine
	sweeper  *attendance.Sweeper
	registry *face.Registry
	photos   *storage.PhotoStore
	producer *queue.Producer
}

func NewAttendanceHandler(
	engine *attendance.Engine,
	sweeper *attendance.Sweeper,
	registry *face.Registry,
	photos *storage.PhotoStore,
	producer *queue.Producer,
) *AttendanceHandler {
	return &AttendanceHandler{
		engine:   engine,
		sweeper:  sweeper,
		registry: registry,
		photos:   photos,
		producer: producer,
	}
}

// CheckInFace verifies the uploaded photo against the claimed identity and,
// on an accepted match, records the attendance event. A failed match never
// produces a record.
func (h *AttendanceHandler) CheckInFace(c *gin.Context) {
	identityID, err := uuid.Parse(c.PostForm("identity_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identity_id"})
		return
	}

	image, ok := formImage(c)
	if !ok {
		return
	}

	// Check-in uses the lower confidence floor; the engine re-applies it so
	// the score travels with the event either way.
	result, err := h.registry.Verify(c.Request.Context(), identityID, image, h.engine.Rules().ConfidenceFloor)
	if err != nil {
		observability.CheckIns.WithLabelValues("verify_failed").Inc()
		writeError(c, err)
		return
	}

	now := time.Now()
	photoKey := fmt.Sprintf("checkins/%s/%s.jpg", identityID, now.UTC().Format("20060102_150405"))

	rec, err := h.engine.CheckIn(c.Request.Context(), identityID, now, attendance.MethodFace, &result.Similarity, photoKey)
	if err != nil {
		observability.CheckIns.WithLabelValues("rejected").Inc()
		writeError(c, err)
		return
	}
	observability.CheckIns.WithLabelValues(string(rec.Status)).Inc()

	if err := h.photos.Put(c.Request.Context(), photoKey, image, "image/jpeg"); err != nil {
		slog.Warn("store check-in photo", "identity", identityID, "error", err)
	}

	h.publishCheckIn(c, rec)

	c.JSON(http.StatusCreated, attendanceResponse(rec))
}

// CheckInManual records an attendance event without biometric verification,
// for operator-entered check-ins.
func (h *AttendanceHandler) CheckInManual(c *gin.Context) {
	var req dto.ManualCheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, err := h.engine.CheckIn(c.Request.Context(), req.IdentityID, time.Now(), attendance.MethodManual, nil, "")
	if err != nil {
		observability.CheckIns.WithLabelValues("rejected").Inc()
		writeError(c, err)
		return
	}
	observability.CheckIns.WithLabelValues(string(rec.Status)).Inc()

	h.publishCheckIn(c, rec)

	c.JSON(http.StatusCreated, attendanceResponse(rec))
}

// Today reports whether the identity has checked in on the current civil day.
func (h *AttendanceHandler) Today(c *gin.Context) {
	identityID, ok := queryIdentity(c)
	if !ok {
		return
	}

	rec, err := h.engine.TodayStatus(c.Request.Context(), identityID, time.Now())
	if err != nil {
		writeError(c, err)
		return
	}
	if rec == nil {
		c.JSON(http.StatusOK, gin.H{"checked_in": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{"checked_in": true, "record": attendanceResponse(rec)})
}

func (h *AttendanceHandler) History(c *gin.Context) {
	identityID, ok := queryIdentity(c)
	if !ok {
		return
	}

	from, to, ok := queryDateRange(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	records, total, err := h.engine.History(c.Request.Context(), identityID, from, to, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := dto.HistoryResponse{
		Records: make([]dto.AttendanceResponse, 0, len(records)),
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	}
	for i := range records {
		resp.Records = append(resp.Records, attendanceResponse(&records[i]))
	}

	c.JSON(http.StatusOK, resp)
}

func (h *AttendanceHandler) Stats(c *gin.Context) {
	identityID, ok := queryIdentity(c)
	if !ok {
		return
	}

	from, to, ok := queryDateRange(c)
	if !ok {
		return
	}

	stats, err := h.engine.Statistics(c.Request.Context(), identityID, from, to, time.Now())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.StatsResponse{
		PresentCount:  stats.PresentCount,
		LateCount:     stats.LateCount,
		AbsentCount:   stats.AbsentCount,
		TotalDays:     stats.TotalDays,
		Percentage:    stats.Percentage,
		CurrentStreak: stats.CurrentStreak,
	})
}

// Summary reports the per-status counts for one day across all identities.
func (h *AttendanceHandler) Summary(c *gin.Context) {
	day, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date required (YYYY-MM-DD)"})
		return
	}

	summary, err := h.engine.Summary(c.Request.Context(), day)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SummaryResponse{
		Date:    summary.Date.Format("2006-01-02"),
		Present: summary.Present,
		Late:    summary.Late,
		Absent:  summary.Absent,
	})
}

// Sweep materializes absent records for a closed day.
func (h *AttendanceHandler) Sweep(c *gin.Context) {
	var req dto.SweepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	day, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date (YYYY-MM-DD)"})
		return
	}

	created, err := h.sweeper.Sweep(c.Request.Context(), day)
	if err != nil {
		writeError(c, err)
		return
	}
	observability.AbsentRecords.Add(float64(created))

	resp := dto.SweepResponse{Date: req.Date, Created: created}

	if h.producer != nil {
		if err := h.producer.PublishSweep(c.Request.Context(), resp); err != nil {
			slog.Warn("publish sweep event", "error", err)
		}
	}

	c.JSON(http.StatusOK, resp)
}

// Photo serves the stored check-in photo for a record.
func (h *AttendanceHandler) Photo(c *gin.Context) {
	recordID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid record id"})
		return
	}

	rec, err := h.engine.Record(c.Request.Context(), recordID)
	if err != nil {
		writeError(c, err)
		return
	}
	if rec == nil || rec.PhotoKey == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "photo not found"})
		return
	}

	data, err := h.photos.Get(c.Request.Context(), rec.PhotoKey)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "photo not found"})
		return
	}

	c.Data(http.StatusOK, "image/jpeg", data)
}

func (h *AttendanceHandler) publishCheckIn(c *gin.Context, rec *attendance.Record) {
	if h.producer == nil {
		return
	}
	if err := h.producer.PublishCheckIn(c.Request.Context(), attendanceResponse(rec)); err != nil {
		slog.Warn("publish check-in event", "identity", rec.IdentityID, "error", err)
	}
}

func queryIdentity(c *gin.Context) (uuid.UUID, bool) {
	identityID, err := uuid.Parse(c.Query("identity_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identity_id"})
		return uuid.Nil, false
	}
	return identityID, true
}

func queryDateRange(c *gin.Context) (from, to *time.Time, ok bool) {
	if v := c.Query("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date"})
			return nil, nil, false
		}
		from = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date"})
			return nil, nil, false
		}
		to = &t
	}
	return from, to, true
}

func attendanceResponse(rec *attendance.Record) dto.AttendanceResponse {
	resp := dto.AttendanceResponse{
		ID:         rec.ID,
		IdentityID: rec.IdentityID,
		Date:       rec.Date.Format("2006-01-02"),
		Status:     string(rec.Status),
		Method:     string(rec.Method),
		Similarity: rec.Similarity,
		CreatedAt:  rec.CreatedAt.Format(time.RFC3339),
	}
	if !rec.EventAt.IsZero() {
		resp.EventAt = rec.EventAt.Format(time.RFC3339)
	}
	if rec.PhotoKey != "" {
		resp.PhotoURL = "/v1/attendance/records/" + rec.ID.String() + "/photo"
	}
	return resp
}
