package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/presence/internal/attendance"
	"github.com/your-org/presence/internal/config"
	"github.com/your-org/presence/internal/face"
)

const uniqueViolation = "23505"

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Face templates ---

func (s *PostgresStore) Create(ctx context.Context, identityID uuid.UUID, vector []float32, photoCount int) (*face.Template, error) {
	tmpl := &face.Template{
		IdentityID: identityID,
		Vector:     vector,
		PhotoCount: photoCount,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO face_templates (identity_id, embedding, photo_count)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (identity_id) DO NOTHING
		 RETURNING registered_at, verification_count`,
		identityID, pgvector.NewVector(vector), photoCount,
	).Scan(&tmpl.RegisteredAt, &tmpl.VerificationCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, face.ErrAlreadyRegistered
		}
		return nil, fmt.Errorf("create template: %w", err)
	}
	return tmpl, nil
}

func (s *PostgresStore) Get(ctx context.Context, identityID uuid.UUID) (*face.Template, error) {
	tmpl := &face.Template{}
	var vec pgvector.Vector
	err := s.pool.QueryRow(ctx,
		`SELECT identity_id, embedding, photo_count, registered_at, verification_count, last_verified_at
		 FROM face_templates WHERE identity_id = $1`, identityID,
	).Scan(&tmpl.IdentityID, &vec, &tmpl.PhotoCount, &tmpl.RegisteredAt,
		&tmpl.VerificationCount, &tmpl.LastVerifiedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get template: %w", err)
	}
	tmpl.Vector = vec.Slice()
	return tmpl, nil
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]face.Template, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT identity_id, embedding, photo_count, registered_at, verification_count, last_verified_at
		 FROM face_templates ORDER BY registered_at`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []face.Template
	for rows.Next() {
		var tmpl face.Template
		var vec pgvector.Vector
		if err := rows.Scan(&tmpl.IdentityID, &vec, &tmpl.PhotoCount, &tmpl.RegisteredAt,
			&tmpl.VerificationCount, &tmpl.LastVerifiedAt); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		tmpl.Vector = vec.Slice()
		templates = append(templates, tmpl)
	}
	return templates, nil
}

func (s *PostgresStore) RecordVerification(ctx context.Context, identityID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE face_templates
		 SET verification_count = verification_count + 1, last_verified_at = now()
		 WHERE identity_id = $1`, identityID)
	if err != nil {
		return fmt.Errorf("record verification: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, identityID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM face_templates WHERE identity_id = $1`, identityID)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return face.ErrNotRegistered
	}
	return nil
}

func (s *PostgresStore) Stats(ctx context.Context) (*face.RegistrationStats, error) {
	stats := &face.RegistrationStats{}
	err := s.pool.QueryRow(ctx,
		`SELECT count(*),
		        coalesce(sum(verification_count), 0),
		        count(*) FILTER (WHERE last_verified_at > now() - interval '7 days')
		 FROM face_templates`,
	).Scan(&stats.TotalRegistered, &stats.TotalVerifications, &stats.VerifiedLast7Days)
	if err != nil {
		return nil, fmt.Errorf("registration stats: %w", err)
	}
	return stats, nil
}

// --- User directory ---

// SetFaceRegistered writes the denormalized registration flag on the user
// record owned by the user-management side.
func (s *PostgresStore) SetFaceRegistered(ctx context.Context, identityID uuid.UUID, registered bool, photoCount int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET face_registered = $2, face_photo_count = $3 WHERE id = $1`,
		identityID, registered, photoCount)
	if err != nil {
		return fmt.Errorf("set face registered: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s not found", identityID)
	}
	return nil
}

// --- Attendance records ---

func (s *PostgresStore) Insert(ctx context.Context, rec *attendance.Record) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO attendance_records (id, identity_id, day, event_at, status, method, similarity, photo_key, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.IdentityID, rec.Date, nullableTime(rec.EventAt), rec.Status, rec.Method,
		rec.Similarity, rec.PhotoKey, rec.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return attendance.ErrAlreadyCheckedIn
		}
		return fmt.Errorf("insert attendance record: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertAbsent(ctx context.Context, rec *attendance.Record) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO attendance_records (id, identity_id, day, event_at, status, method, similarity, photo_key, created_at)
		 VALUES ($1, $2, $3, NULL, $4, $5, NULL, '', $6)
		 ON CONFLICT (identity_id, day) DO NOTHING`,
		rec.ID, rec.IdentityID, rec.Date, rec.Status, rec.Method, rec.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert absent record: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id uuid.UUID) (*attendance.Record, error) {
	rec, err := scanRecord(s.pool.QueryRow(ctx,
		selectRecordColumns+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) GetForDay(ctx context.Context, identityID uuid.UUID, day time.Time) (*attendance.Record, error) {
	rec, err := scanRecord(s.pool.QueryRow(ctx,
		selectRecordColumns+` WHERE identity_id = $1 AND day = $2`, identityID, day))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get record for day: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) List(ctx context.Context, identityID uuid.UUID, from, to *time.Time, limit, offset int) ([]attendance.Record, int, error) {
	where := "WHERE identity_id = $1"
	args := []interface{}{identityID}
	argIdx := 2

	if from != nil {
		where += fmt.Sprintf(" AND day >= $%d", argIdx)
		args = append(args, *from)
		argIdx++
	}
	if to != nil {
		where += fmt.Sprintf(" AND day <= $%d", argIdx)
		args = append(args, *to)
		argIdx++
	}

	var total int
	if err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM attendance_records "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count records: %w", err)
	}

	query := fmt.Sprintf(
		selectRecordColumns+` %s ORDER BY day DESC, event_at DESC NULLS LAST LIMIT $%d OFFSET $%d`,
		where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (s *PostgresStore) CountByStatus(ctx context.Context, identityID uuid.UUID, from, to *time.Time) (map[attendance.Status]int, error) {
	where := "WHERE identity_id = $1"
	args := []interface{}{identityID}
	argIdx := 2

	if from != nil {
		where += fmt.Sprintf(" AND day >= $%d", argIdx)
		args = append(args, *from)
		argIdx++
	}
	if to != nil {
		where += fmt.Sprintf(" AND day <= $%d", argIdx)
		args = append(args, *to)
	}

	rows, err := s.pool.Query(ctx,
		"SELECT status, COUNT(*) FROM attendance_records "+where+" GROUP BY status", args...)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[attendance.Status]int)
	for rows.Next() {
		var status attendance.Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = count
	}
	return counts, nil
}

func (s *PostgresStore) ListRange(ctx context.Context, identityID uuid.UUID, from, to time.Time) ([]attendance.Record, error) {
	rows, err := s.pool.Query(ctx,
		selectRecordColumns+` WHERE identity_id = $1 AND day BETWEEN $2 AND $3 ORDER BY day DESC`,
		identityID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list range: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func (s *PostgresStore) RegisteredWithoutRecord(ctx context.Context, day time.Time) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT t.identity_id FROM face_templates t
		 WHERE NOT EXISTS (
		   SELECT 1 FROM attendance_records a
		   WHERE a.identity_id = t.identity_id AND a.day = $1
		 )`, day)
	if err != nil {
		return nil, fmt.Errorf("list no-shows: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *PostgresStore) Summary(ctx context.Context, day time.Time) (*attendance.DailySummary, error) {
	summary := &attendance.DailySummary{Date: day}
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FILTER (WHERE status = 'present'),
		        count(*) FILTER (WHERE status = 'late'),
		        count(*) FILTER (WHERE status = 'absent')
		 FROM attendance_records WHERE day = $1`, day,
	).Scan(&summary.Present, &summary.Late, &summary.Absent)
	if err != nil {
		return nil, fmt.Errorf("daily summary: %w", err)
	}
	return summary, nil
}

const selectRecordColumns = `SELECT id, identity_id, day, event_at, status, method, similarity, photo_key, created_at FROM attendance_records`

func scanRecord(row pgx.Row) (*attendance.Record, error) {
	rec := &attendance.Record{}
	var eventAt *time.Time
	if err := row.Scan(&rec.ID, &rec.IdentityID, &rec.Date, &eventAt, &rec.Status,
		&rec.Method, &rec.Similarity, &rec.PhotoKey, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if eventAt != nil {
		rec.EventAt = eventAt.UTC()
	}
	rec.Date = rec.Date.UTC()
	return rec, nil
}

func scanRecords(rows pgx.Rows) ([]attendance.Record, error) {
	var records []attendance.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, *rec)
	}
	return records, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
