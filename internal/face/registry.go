package face

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Registry is the enrollment and verification entry point: it drives the
// encoder gateway, the aggregator and the matcher against the template store.
type Registry struct {
	gateway    Gateway
	aggregator *Aggregator
	matcher    *Matcher
	templates  TemplateStore
	users      UserDirectory
}

func NewRegistry(gateway Gateway, templates TemplateStore, users UserDirectory, minPhotos, maxPhotos int) *Registry {
	return &Registry{
		gateway:    gateway,
		aggregator: NewAggregator(gateway, minPhotos, maxPhotos),
		matcher:    NewMatcher(templates),
		templates:  templates,
		users:      users,
	}
}

// Enroll builds a template from the photo batch and persists it. An identity
// that already has a template must be deleted explicitly first; Enroll never
// overwrites.
func (r *Registry) Enroll(ctx context.Context, identityID uuid.UUID, photos [][]byte) (*Template, error) {
	vector, count, err := r.aggregator.Aggregate(ctx, photos)
	if err != nil {
		return nil, err
	}

	tmpl, err := r.templates.Create(ctx, identityID, vector, count)
	if err != nil {
		return nil, err
	}

	// Denormalized flag on the user record. Bookkeeping: the template is the
	// source of truth, so a failed flag write is logged, not surfaced.
	if err := r.users.SetFaceRegistered(ctx, identityID, true, count); err != nil {
		slog.Warn("set face registered flag", "identity", identityID, "error", err)
	}

	slog.Info("face enrolled", "identity", identityID, "photos", count)
	return tmpl, nil
}

// Verify encodes the probe photo and scores it against the claimed identity.
func (r *Registry) Verify(ctx context.Context, identityID uuid.UUID, photo []byte, threshold float64) (*MatchResult, error) {
	probe, err := r.gateway.DetectAndEncode(ctx, photo)
	if err != nil {
		return nil, err
	}
	return r.matcher.Verify(ctx, probe, identityID, threshold)
}

// Identify encodes the probe photo and scores it against all templates.
func (r *Registry) Identify(ctx context.Context, photo []byte, threshold float64) (*MatchResult, error) {
	probe, err := r.gateway.DetectAndEncode(ctx, photo)
	if err != nil {
		return nil, err
	}
	return r.matcher.Identify(ctx, probe, threshold)
}

// Delete removes the identity's template and clears the directory flag.
func (r *Registry) Delete(ctx context.Context, identityID uuid.UUID) error {
	if err := r.templates.Delete(ctx, identityID); err != nil {
		return err
	}

	if err := r.users.SetFaceRegistered(ctx, identityID, false, 0); err != nil {
		slog.Warn("clear face registered flag", "identity", identityID, "error", err)
	}

	slog.Info("face deleted", "identity", identityID)
	return nil
}

// Get returns the identity's template, or ErrNotRegistered.
func (r *Registry) Get(ctx context.Context, identityID uuid.UUID) (*Template, error) {
	tmpl, err := r.templates.Get(ctx, identityID)
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	if tmpl == nil {
		return nil, ErrNotRegistered
	}
	return tmpl, nil
}

// Stats reports registry-wide registration statistics.
func (r *Registry) Stats(ctx context.Context) (*RegistrationStats, error) {
	return r.templates.Stats(ctx)
}
