package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPresent Status = "present"
	StatusLate    Status = "late"
	StatusAbsent  Status = "absent"
)

type Method string

const (
	MethodFace   Method = "face"
	MethodManual Method = "manual"
	MethodSystem Method = "system-absent"
)

var (
	// ErrAlreadyCheckedIn rejects a duplicate submission for the same
	// identity and civil day. Idempotent rejection, never an overwrite.
	ErrAlreadyCheckedIn = errors.New("already checked in today")
	// ErrDayNotClosed rejects sweeping a civil day that is still open.
	ErrDayNotClosed = errors.New("day has not closed yet")
)

// Record is one attendance event for an identity on one civil day.
// Date is the civil calendar date; EventAt is the absolute instant in UTC.
type Record struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	IdentityID uuid.UUID  `json:"identity_id" db:"identity_id"`
	Date       time.Time  `json:"date" db:"day"`
	EventAt    time.Time  `json:"event_at" db:"event_at"`
	Status     Status     `json:"status" db:"status"`
	Method     Method     `json:"method" db:"method"`
	Similarity *float64   `json:"similarity,omitempty" db:"similarity"`
	PhotoKey   string     `json:"photo_key,omitempty" db:"photo_key"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// Stats summarizes an identity's attendance over a date range.
type Stats struct {
	PresentCount  int     `json:"present_count"`
	LateCount     int     `json:"late_count"`
	AbsentCount   int     `json:"absent_count"`
	TotalDays     int     `json:"total_days"`
	Percentage    float64 `json:"attendance_percentage"`
	CurrentStreak int     `json:"current_streak"`
}

// DailySummary counts records by status across all identities for one day.
type DailySummary struct {
	Date    time.Time `json:"date"`
	Present int       `json:"present"`
	Late    int       `json:"late"`
	Absent  int       `json:"absent"`
}

// RecordStore is the attendance ledger. Insert must be a single atomic
// insert-if-absent backed by a uniqueness constraint on (identity, day), so
// racing submissions resolve to exactly one record.
type RecordStore interface {
	// Insert persists a new record. Returns ErrAlreadyCheckedIn if a record
	// already exists for (identity, day).
	Insert(ctx context.Context, rec *Record) error
	// InsertAbsent persists a system-absent record if, and only if, no record
	// exists for (identity, day). Reports whether a record was created.
	InsertAbsent(ctx context.Context, rec *Record) (bool, error)
	// GetByID returns a record by its ID, or (nil, nil).
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	// GetForDay returns the record for (identity, day), or (nil, nil).
	GetForDay(ctx context.Context, identityID uuid.UUID, day time.Time) (*Record, error)
	// List returns records for an identity ordered by event instant
	// descending, with the total count for pagination.
	List(ctx context.Context, identityID uuid.UUID, from, to *time.Time, limit, offset int) ([]Record, int, error)
	// CountByStatus counts an identity's records per status over a range.
	CountByStatus(ctx context.Context, identityID uuid.UUID, from, to *time.Time) (map[Status]int, error)
	// ListRange returns an identity's records whose day falls in [from, to].
	ListRange(ctx context.Context, identityID uuid.UUID, from, to time.Time) ([]Record, error)
	// RegisteredWithoutRecord lists identities holding a face template but
	// no attendance record for the given day.
	RegisteredWithoutRecord(ctx context.Context, day time.Time) ([]uuid.UUID, error)
	// Summary counts records by status across all identities for one day.
	Summary(ctx context.Context, day time.Time) (*DailySummary, error)
}

// DateOf resolves the civil calendar date of an instant in the given zone.
// The result is normalized to midnight UTC so dates compare by equality.
func DateOf(at time.Time, loc *time.Location) time.Time {
	local := at.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}
