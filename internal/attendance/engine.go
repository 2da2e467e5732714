package attendance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/presence/internal/face"
)

// Rules are the externally configured attendance parameters. The engine's
// decision functions take them as input; nothing here is hard-coded.
type Rules struct {
	CutoffHour      int
	CutoffMinute    int
	ConfidenceFloor float64
	Location        *time.Location
}

// Classify maps an event instant to present or late by its civil time-of-day:
// at or before the cutoff is present, after is late.
func Classify(at time.Time, rules Rules) Status {
	local := at.In(rules.Location)
	cutoff := time.Date(local.Year(), local.Month(), local.Day(),
		rules.CutoffHour, rules.CutoffMinute, 0, 0, rules.Location)
	if local.After(cutoff) {
		return StatusLate
	}
	return StatusPresent
}

// Engine is the per-identity per-day attendance state machine. A verified
// identity event goes in, exactly one classified record per civil day comes
// out.
type Engine struct {
	records RecordStore
	rules   Rules
}

func NewEngine(records RecordStore, rules Rules) *Engine {
	return &Engine{records: records, rules: rules}
}

func (e *Engine) Rules() Rules { return e.rules }

// CheckIn records one attendance event. For the face method the caller passes
// the similarity from an accepted verification; a score below the confidence
// floor fails with LowConfidenceError and creates no record. Duplicate
// submissions for the same civil day observe ErrAlreadyCheckedIn — the insert
// itself is the race guard, not a check-then-act.
func (e *Engine) CheckIn(ctx context.Context, identityID uuid.UUID, at time.Time, method Method, similarity *float64, photoKey string) (*Record, error) {
	if method != MethodFace && method != MethodManual {
		return nil, fmt.Errorf("invalid check-in method %q", method)
	}

	if method == MethodFace {
		if similarity == nil {
			return nil, fmt.Errorf("face check-in requires a similarity score")
		}
		if *similarity < e.rules.ConfidenceFloor {
			return nil, &face.LowConfidenceError{Score: *similarity, Threshold: e.rules.ConfidenceFloor}
		}
	}

	rec := &Record{
		ID:         uuid.New(),
		IdentityID: identityID,
		Date:       DateOf(at, e.rules.Location),
		EventAt:    at.UTC(),
		Status:     Classify(at, e.rules),
		Method:     method,
		Similarity: similarity,
		PhotoKey:   photoKey,
		CreatedAt:  time.Now().UTC(),
	}

	if err := e.records.Insert(ctx, rec); err != nil {
		return nil, err
	}

	slog.Info("check-in recorded",
		"identity", identityID,
		"date", rec.Date.Format("2006-01-02"),
		"status", rec.Status,
		"method", method,
	)
	return rec, nil
}

// TodayStatus returns the record for the civil day containing now, if any.
func (e *Engine) TodayStatus(ctx context.Context, identityID uuid.UUID, now time.Time) (*Record, error) {
	return e.records.GetForDay(ctx, identityID, DateOf(now, e.rules.Location))
}

// History returns an identity's records ordered by event instant descending.
func (e *Engine) History(ctx context.Context, identityID uuid.UUID, from, to *time.Time, limit, offset int) ([]Record, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return e.records.List(ctx, identityID, from, to, limit, offset)
}

// Statistics aggregates an identity's attendance over a range. The streak
// counts consecutive trailing civil days (most recent first) with a
// non-absent record, stopping at the first absent or missing day.
func (e *Engine) Statistics(ctx context.Context, identityID uuid.UUID, from, to *time.Time, now time.Time) (*Stats, error) {
	counts, err := e.records.CountByStatus(ctx, identityID, from, to)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}

	stats := &Stats{
		PresentCount: counts[StatusPresent],
		LateCount:    counts[StatusLate],
		AbsentCount:  counts[StatusAbsent],
	}
	stats.TotalDays = stats.PresentCount + stats.LateCount + stats.AbsentCount
	if stats.TotalDays > 0 {
		stats.Percentage = float64(stats.PresentCount+stats.LateCount) / float64(stats.TotalDays) * 100
	}

	streak, err := e.currentStreak(ctx, identityID, now)
	if err != nil {
		return nil, err
	}
	stats.CurrentStreak = streak

	return stats, nil
}

// Record returns one record by ID, or (nil, nil).
func (e *Engine) Record(ctx context.Context, id uuid.UUID) (*Record, error) {
	return e.records.GetByID(ctx, id)
}

// Summary counts records by status across all identities for one civil day.
func (e *Engine) Summary(ctx context.Context, day time.Time) (*DailySummary, error) {
	return e.records.Summary(ctx, day)
}

// streakWindowDays bounds how far back the streak scan looks.
const streakWindowDays = 366

func (e *Engine) currentStreak(ctx context.Context, identityID uuid.UUID, now time.Time) (int, error) {
	today := DateOf(now, e.rules.Location)
	windowStart := today.AddDate(0, 0, -streakWindowDays)

	records, err := e.records.ListRange(ctx, identityID, windowStart, today)
	if err != nil {
		return 0, fmt.Errorf("list range: %w", err)
	}

	byDay := make(map[time.Time]Status, len(records))
	for _, rec := range records {
		byDay[rec.Date] = rec.Status
	}

	streak := 0
	for day := today; !day.Before(windowStart); day = day.AddDate(0, 0, -1) {
		status, ok := byDay[day]
		if !ok || status == StatusAbsent {
			break
		}
		streak++
	}
	return streak, nil
}
