package face

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Template is the canonical enrolled representation of one identity:
// the aggregated embedding of all enrollment photos, unit-length.
type Template struct {
	IdentityID        uuid.UUID  `json:"identity_id" db:"identity_id"`
	Vector            []float32  `json:"-" db:"embedding"`
	PhotoCount        int        `json:"photo_count" db:"photo_count"`
	RegisteredAt      time.Time  `json:"registered_at" db:"registered_at"`
	VerificationCount int        `json:"verification_count" db:"verification_count"`
	LastVerifiedAt    *time.Time `json:"last_verified_at,omitempty" db:"last_verified_at"`
}

// RegistrationStats summarizes the template registry.
type RegistrationStats struct {
	TotalRegistered    int `json:"total_registered"`
	TotalVerifications int `json:"total_verifications"`
	VerifiedLast7Days  int `json:"verified_last_7_days"`
}

// TemplateStore is durable keyed storage of one template per identity.
type TemplateStore interface {
	// Create persists a new template. Returns ErrAlreadyRegistered if the
	// identity already has one.
	Create(ctx context.Context, identityID uuid.UUID, vector []float32, photoCount int) (*Template, error)
	// Get returns the template for an identity, or (nil, nil) if absent.
	Get(ctx context.Context, identityID uuid.UUID) (*Template, error)
	// ListAll returns every stored template.
	ListAll(ctx context.Context) ([]Template, error)
	// RecordVerification bumps the verification counter and last-verified
	// timestamp. Bookkeeping only; callers must not fail on its error.
	RecordVerification(ctx context.Context, identityID uuid.UUID) error
	// Delete removes the template. Returns ErrNotRegistered if absent.
	Delete(ctx context.Context, identityID uuid.UUID) error
	// Stats returns registry-wide registration statistics.
	Stats(ctx context.Context) (*RegistrationStats, error)
}

// UserDirectory is the user-management collaborator boundary. The core only
// writes back the denormalized registration flag and photo count.
type UserDirectory interface {
	SetFaceRegistered(ctx context.Context, identityID uuid.UUID, registered bool, photoCount int) error
}

// Gateway is the encoder boundary: detect faces in an image and produce an
// embedding for exactly one of them. Implementations report zero and multiple
// detected faces as ErrNoFace and ErrMultipleFaces respectively, and timeouts
// as ErrEncoderUnavailable.
type Gateway interface {
	DetectAndEncode(ctx context.Context, image []byte) ([]float32, error)
}
