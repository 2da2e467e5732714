package face

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// MatchResult carries the matching decision together with the raw similarity
// score. The score is never hidden from callers: the boundary layer reports
// "confidence too low: 0.45", not a bare rejection.
type MatchResult struct {
	IdentityID *uuid.UUID `json:"identity_id,omitempty"`
	Similarity float64    `json:"similarity"`
	Accepted   bool       `json:"accepted"`
	Threshold  float64    `json:"threshold"`
}

// Matcher compares probe embeddings against stored templates.
type Matcher struct {
	templates TemplateStore
}

func NewMatcher(templates TemplateStore) *Matcher {
	return &Matcher{templates: templates}
}

// Verify scores a probe against the claimed identity's template.
// Returns ErrNotRegistered if the identity has no template. The verification
// counter is bumped on accept; counter failures are logged, never surfaced.
func (m *Matcher) Verify(ctx context.Context, probe []float32, identityID uuid.UUID, threshold float64) (*MatchResult, error) {
	tmpl, err := m.templates.Get(ctx, identityID)
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	if tmpl == nil {
		return nil, ErrNotRegistered
	}

	sim := Cosine(probe, tmpl.Vector)
	accepted := sim >= threshold

	if accepted {
		if err := m.templates.RecordVerification(ctx, identityID); err != nil {
			slog.Warn("record verification", "identity", identityID, "error", err)
		}
	}

	result := &MatchResult{
		Similarity: sim,
		Accepted:   accepted,
		Threshold:  threshold,
	}
	if accepted {
		id := identityID
		result.IdentityID = &id
	}
	return result, nil
}

// Identify scores a probe against every stored template and selects the
// maximum. Ties at the maximum (exact float equality) are ambiguous and
// rejected rather than resolved arbitrarily.
//
// The scan is linear in registered-identity count; it is isolated here so an
// approximate nearest-neighbor index could replace it without changing the
// contract.
func (m *Matcher) Identify(ctx context.Context, probe []float32, threshold float64) (*MatchResult, error) {
	templates, err := m.templates.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}

	var (
		bestID  uuid.UUID
		bestSim float64
		tied    bool
	)
	for _, tmpl := range templates {
		sim := Cosine(probe, tmpl.Vector)
		switch {
		case sim > bestSim:
			bestID = tmpl.IdentityID
			bestSim = sim
			tied = false
		case sim == bestSim && bestSim > 0:
			tied = true
		}
	}

	result := &MatchResult{
		Similarity: bestSim,
		Threshold:  threshold,
	}

	if bestSim < threshold || tied {
		return result, nil
	}

	result.Accepted = true
	id := bestID
	result.IdentityID = &id

	if err := m.templates.RecordVerification(ctx, bestID); err != nil {
		slog.Warn("record verification", "identity", bestID, "error", err)
	}

	return result, nil
}
