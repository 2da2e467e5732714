package attendance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Sweeper materializes explicit absent records for registered identities
// that produced no attendance record on a closed civil day. Re-running a
// sweep for the same day creates nothing; the per-identity insert-if-absent
// makes concurrent sweeps idempotent without external locking.
type Sweeper struct {
	records RecordStore
	loc     *time.Location
	now     func() time.Time
}

func NewSweeper(records RecordStore, loc *time.Location) *Sweeper {
	return &Sweeper{records: records, loc: loc, now: time.Now}
}

// SetNow overrides the clock used to decide whether a day has closed.
func (s *Sweeper) SetNow(now func() time.Time) {
	s.now = now
}

// Sweep creates absent records for the given civil day and returns how many
// were created. The day must be fully elapsed; sweeping an open day would
// mark people absent who simply have not arrived yet.
func (s *Sweeper) Sweep(ctx context.Context, day time.Time) (int, error) {
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

	today := DateOf(s.now(), s.loc)
	if !day.Before(today) {
		return 0, ErrDayNotClosed
	}

	missing, err := s.records.RegisteredWithoutRecord(ctx, day)
	if err != nil {
		return 0, fmt.Errorf("list no-shows: %w", err)
	}

	created := 0
	for _, identityID := range missing {
		rec := &Record{
			ID:         uuid.New(),
			IdentityID: identityID,
			Date:       day,
			Status:     StatusAbsent,
			Method:     MethodSystem,
			CreatedAt:  time.Now().UTC(),
		}
		inserted, err := s.records.InsertAbsent(ctx, rec)
		if err != nil {
			return created, fmt.Errorf("insert absent for %s: %w", identityID, err)
		}
		if inserted {
			created++
		}
	}

	slog.Info("absence sweep complete",
		"date", day.Format("2006-01-02"),
		"no_shows", len(missing),
		"created", created,
	)
	return created, nil
}

// SweepYesterday sweeps the most recently closed civil day.
func (s *Sweeper) SweepYesterday(ctx context.Context) (int, error) {
	yesterday := DateOf(s.now(), s.loc).AddDate(0, 0, -1)
	return s.Sweep(ctx, yesterday)
}
