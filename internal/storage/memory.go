package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/presence/internal/attendance"
	"github.com/your-org/presence/internal/face"
)

// MemoryStore is an in-memory implementation of the template store, user
// directory and attendance record store. It backs tests and keeps the
// storage contracts honest without a database.
type MemoryStore struct {
	mu        sync.RWMutex
	templates map[uuid.UUID]*face.Template
	users     map[uuid.UUID]memoryUser
	records   map[recordKey]*attendance.Record
}

type memoryUser struct {
	faceRegistered bool
	photoCount     int
}

type recordKey struct {
	identityID uuid.UUID
	day        time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		templates: make(map[uuid.UUID]*face.Template),
		users:     make(map[uuid.UUID]memoryUser),
		records:   make(map[recordKey]*attendance.Record),
	}
}

// --- face.TemplateStore ---

func (s *MemoryStore) Create(ctx context.Context, identityID uuid.UUID, vector []float32, photoCount int) (*face.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.templates[identityID]; exists {
		return nil, face.ErrAlreadyRegistered
	}

	tmpl := &face.Template{
		IdentityID:   identityID,
		Vector:       append([]float32(nil), vector...),
		PhotoCount:   photoCount,
		RegisteredAt: time.Now().UTC(),
	}
	s.templates[identityID] = tmpl

	out := *tmpl
	return &out, nil
}

func (s *MemoryStore) Get(ctx context.Context, identityID uuid.UUID) (*face.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tmpl, ok := s.templates[identityID]
	if !ok {
		return nil, nil
	}
	out := *tmpl
	out.Vector = append([]float32(nil), tmpl.Vector...)
	return &out, nil
}

func (s *MemoryStore) ListAll(ctx context.Context) ([]face.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	templates := make([]face.Template, 0, len(s.templates))
	for _, tmpl := range s.templates {
		out := *tmpl
		out.Vector = append([]float32(nil), tmpl.Vector...)
		templates = append(templates, out)
	}
	sort.Slice(templates, func(i, j int) bool {
		return templates[i].RegisteredAt.Before(templates[j].RegisteredAt)
	})
	return templates, nil
}

func (s *MemoryStore) RecordVerification(ctx context.Context, identityID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tmpl, ok := s.templates[identityID]; ok {
		tmpl.VerificationCount++
		now := time.Now().UTC()
		tmpl.LastVerifiedAt = &now
	}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, identityID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.templates[identityID]; !ok {
		return face.ErrNotRegistered
	}
	delete(s.templates, identityID)
	return nil
}

func (s *MemoryStore) Stats(ctx context.Context) (*face.RegistrationStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &face.RegistrationStats{TotalRegistered: len(s.templates)}
	cutoff := time.Now().UTC().AddDate(0, 0, -7)
	for _, tmpl := range s.templates {
		stats.TotalVerifications += tmpl.VerificationCount
		if tmpl.LastVerifiedAt != nil && tmpl.LastVerifiedAt.After(cutoff) {
			stats.VerifiedLast7Days++
		}
	}
	return stats, nil
}

// --- face.UserDirectory ---

func (s *MemoryStore) SetFaceRegistered(ctx context.Context, identityID uuid.UUID, registered bool, photoCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[identityID] = memoryUser{faceRegistered: registered, photoCount: photoCount}
	return nil
}

// FaceRegistered reports the directory flag, for tests.
func (s *MemoryStore) FaceRegistered(identityID uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users[identityID].faceRegistered
}

// --- attendance.RecordStore ---

func (s *MemoryStore) Insert(ctx context.Context, rec *attendance.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey{identityID: rec.IdentityID, day: rec.Date}
	if _, exists := s.records[key]; exists {
		return attendance.ErrAlreadyCheckedIn
	}

	stored := *rec
	s.records[key] = &stored
	return nil
}

func (s *MemoryStore) InsertAbsent(ctx context.Context, rec *attendance.Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey{identityID: rec.IdentityID, day: rec.Date}
	if _, exists := s.records[key]; exists {
		return false, nil
	}

	stored := *rec
	s.records[key] = &stored
	return true, nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id uuid.UUID) (*attendance.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.records {
		if rec.ID == id {
			out := *rec
			return &out, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) GetForDay(ctx context.Context, identityID uuid.UUID, day time.Time) (*attendance.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[recordKey{identityID: identityID, day: day}]
	if !ok {
		return nil, nil
	}
	out := *rec
	return &out, nil
}

func (s *MemoryStore) List(ctx context.Context, identityID uuid.UUID, from, to *time.Time, limit, offset int) ([]attendance.Record, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []attendance.Record
	for _, rec := range s.records {
		if rec.IdentityID != identityID {
			continue
		}
		if from != nil && rec.Date.Before(*from) {
			continue
		}
		if to != nil && rec.Date.After(*to) {
			continue
		}
		matched = append(matched, *rec)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Date.Equal(matched[j].Date) {
			return matched[i].Date.After(matched[j].Date)
		}
		return matched[i].EventAt.After(matched[j].EventAt)
	})

	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (s *MemoryStore) CountByStatus(ctx context.Context, identityID uuid.UUID, from, to *time.Time) (map[attendance.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[attendance.Status]int)
	for _, rec := range s.records {
		if rec.IdentityID != identityID {
			continue
		}
		if from != nil && rec.Date.Before(*from) {
			continue
		}
		if to != nil && rec.Date.After(*to) {
			continue
		}
		counts[rec.Status]++
	}
	return counts, nil
}

func (s *MemoryStore) ListRange(ctx context.Context, identityID uuid.UUID, from, to time.Time) ([]attendance.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []attendance.Record
	for _, rec := range s.records {
		if rec.IdentityID != identityID || rec.Date.Before(from) || rec.Date.After(to) {
			continue
		}
		matched = append(matched, *rec)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Date.After(matched[j].Date)
	})
	return matched, nil
}

func (s *MemoryStore) RegisteredWithoutRecord(ctx context.Context, day time.Time) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []uuid.UUID
	for id := range s.templates {
		if _, ok := s.records[recordKey{identityID: id, day: day}]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

func (s *MemoryStore) Summary(ctx context.Context, day time.Time) (*attendance.DailySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := &attendance.DailySummary{Date: day}
	for key, rec := range s.records {
		if !key.day.Equal(day) {
			continue
		}
		switch rec.Status {
		case attendance.StatusPresent:
			summary.Present++
		case attendance.StatusLate:
			summary.Late++
		case attendance.StatusAbsent:
			summary.Absent++
		}
	}
	return summary, nil
}
