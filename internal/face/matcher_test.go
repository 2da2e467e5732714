package face_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/presence/internal/face"
	"github.com/your-org/presence/internal/storage"
)

func TestIdentify_TieIsRejected(t *testing.T) {
	store := storage.NewMemoryStore()
	matcher := face.NewMatcher(store)

	// Two identities enrolled with byte-identical templates: the probe scores
	// exactly the same against both, which is ambiguous.
	vec := direction(0, 0.1)
	_, err := store.Create(context.Background(), uuid.New(), vec, 3)
	require.NoError(t, err)
	_, err = store.Create(context.Background(), uuid.New(), vec, 3)
	require.NoError(t, err)

	result, err := matcher.Identify(context.Background(), vec, 0.6)
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Nil(t, result.IdentityID)
	assert.InDelta(t, 1.0, result.Similarity, 1e-6)
}

func TestIdentify_TieBrokenByLaterBetterMatch(t *testing.T) {
	store := storage.NewMemoryStore()
	matcher := face.NewMatcher(store)

	dup := direction(1, 0)
	_, err := store.Create(context.Background(), uuid.New(), dup, 3)
	require.NoError(t, err)
	_, err = store.Create(context.Background(), uuid.New(), dup, 3)
	require.NoError(t, err)

	winner := uuid.New()
	_, err = store.Create(context.Background(), winner, direction(0, 0), 3)
	require.NoError(t, err)

	// A strictly better score clears an earlier tie.
	result, err := matcher.Identify(context.Background(), direction(0, 0.02), 0.6)
	require.NoError(t, err)
	require.True(t, result.Accepted)
	assert.Equal(t, winner, *result.IdentityID)
}

func TestVerify_ThresholdIsInclusive(t *testing.T) {
	store := storage.NewMemoryStore()
	matcher := face.NewMatcher(store)

	id := uuid.New()
	vec := direction(0, 0)
	_, err := store.Create(context.Background(), id, vec, 3)
	require.NoError(t, err)

	// Identical vectors score 1.0; a threshold of exactly 1.0 still accepts.
	result, err := matcher.Verify(context.Background(), vec, id, 1.0)
	require.NoError(t, err)
	assert.True(t, result.Accepted)
}

func TestVerify_RegistrationPathStricterThanCheckIn(t *testing.T) {
	store := storage.NewMemoryStore()
	matcher := face.NewMatcher(store)

	id := uuid.New()
	_, err := store.Create(context.Background(), id, []float32{1, 0, 0, 0}, 3)
	require.NoError(t, err)

	// A probe scoring between the two thresholds passes check-in but not
	// the registration-path verification.
	probe := []float32{1, 1.2, 0, 0}
	face.Normalize(probe)
	sim := face.Cosine(probe, []float32{1, 0, 0, 0})
	require.Greater(t, sim, 0.6)
	require.Less(t, sim, 0.7)

	strict, err := matcher.Verify(context.Background(), probe, id, 0.7)
	require.NoError(t, err)
	assert.False(t, strict.Accepted)

	relaxed, err := matcher.Verify(context.Background(), probe, id, 0.6)
	require.NoError(t, err)
	assert.True(t, relaxed.Accepted)
}
