package face_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/presence/internal/face"
	"github.com/your-org/presence/internal/storage"
)

// stubGateway returns a canned embedding per photo payload. Payloads prefixed
// "noface"/"crowd" simulate detection failures.
type stubGateway struct {
	embeddings map[string][]float32
}

func (g *stubGateway) DetectAndEncode(ctx context.Context, image []byte) ([]float32, error) {
	key := string(image)
	switch {
	case key == "noface":
		return nil, face.ErrNoFace
	case key == "crowd":
		return nil, face.ErrMultipleFaces
	case key == "down":
		return nil, fmt.Errorf("%w: context deadline exceeded", face.ErrEncoderUnavailable)
	}
	emb, ok := g.embeddings[key]
	if !ok {
		return nil, face.ErrNoFace
	}
	return append([]float32(nil), emb...), nil
}

func newTestRegistry(gw face.Gateway) (*face.Registry, *storage.MemoryStore) {
	store := storage.NewMemoryStore()
	return face.NewRegistry(gw, store, store, 3, 10), store
}

// direction builds a unit vector pointing along one axis in a 4-dim space,
// slightly perturbed so photos of the same person are similar, not identical.
func direction(axis int, jitter float32) []float32 {
	v := make([]float32, 4)
	v[axis] = 1
	v[(axis+1)%4] = jitter
	face.Normalize(v)
	return v
}

func photosFor(gw *stubGateway, axis, n int) [][]byte {
	photos := make([][]byte, n)
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("axis%d-photo%d", axis, i)
		gw.embeddings[key] = direction(axis, float32(i)*0.05)
		photos[i] = []byte(key)
	}
	return photos
}

func TestEnroll_BuildsUnitLengthTemplate(t *testing.T) {
	gw := &stubGateway{embeddings: map[string][]float32{}}
	registry, _ := newTestRegistry(gw)
	id := uuid.New()

	tmpl, err := registry.Enroll(context.Background(), id, photosFor(gw, 0, 3))
	require.NoError(t, err)
	require.NotNil(t, tmpl)
	assert.Equal(t, 3, tmpl.PhotoCount)

	var sum float64
	for _, x := range tmpl.Vector {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestEnroll_SetsDirectoryFlag(t *testing.T) {
	gw := &stubGateway{embeddings: map[string][]float32{}}
	registry, store := newTestRegistry(gw)
	id := uuid.New()

	_, err := registry.Enroll(context.Background(), id, photosFor(gw, 0, 3))
	require.NoError(t, err)
	assert.True(t, store.FaceRegistered(id))
}

func TestEnroll_TooFewPhotos(t *testing.T) {
	gw := &stubGateway{embeddings: map[string][]float32{}}
	registry, _ := newTestRegistry(gw)

	_, err := registry.Enroll(context.Background(), uuid.New(), photosFor(gw, 0, 2))
	var countErr *face.InvalidPhotoCountError
	require.ErrorAs(t, err, &countErr)
	assert.Equal(t, 2, countErr.Count)
	assert.Equal(t, 3, countErr.Min)
	assert.Equal(t, 10, countErr.Max)
}

func TestEnroll_TooManyPhotos(t *testing.T) {
	gw := &stubGateway{embeddings: map[string][]float32{}}
	registry, _ := newTestRegistry(gw)

	_, err := registry.Enroll(context.Background(), uuid.New(), photosFor(gw, 0, 11))
	var countErr *face.InvalidPhotoCountError
	require.ErrorAs(t, err, &countErr)
	assert.Equal(t, 11, countErr.Count)
}

func TestEnroll_BadPhotoReportsIndex(t *testing.T) {
	gw := &stubGateway{embeddings: map[string][]float32{}}
	registry, store := newTestRegistry(gw)

	photos := photosFor(gw, 0, 3)
	photos[1] = []byte("noface")

	_, err := registry.Enroll(context.Background(), uuid.New(), photos)
	var photoErr *face.PhotoError
	require.ErrorAs(t, err, &photoErr)
	assert.Equal(t, 2, photoErr.Index)
	assert.ErrorIs(t, err, face.ErrNoFace)

	// Whole batch fails: nothing was stored.
	templates, err := store.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, templates)
}

func TestEnroll_MultipleFacesInPhoto(t *testing.T) {
	gw := &stubGateway{embeddings: map[string][]float32{}}
	registry, _ := newTestRegistry(gw)

	photos := photosFor(gw, 0, 3)
	photos[2] = []byte("crowd")

	_, err := registry.Enroll(context.Background(), uuid.New(), photos)
	var photoErr *face.PhotoError
	require.ErrorAs(t, err, &photoErr)
	assert.Equal(t, 3, photoErr.Index)
	assert.ErrorIs(t, err, face.ErrMultipleFaces)
}

func TestEnroll_EncoderFailurePropagates(t *testing.T) {
	gw := &stubGateway{embeddings: map[string][]float32{}}
	registry, _ := newTestRegistry(gw)

	photos := photosFor(gw, 0, 3)
	photos[0] = []byte("down")

	_, err := registry.Enroll(context.Background(), uuid.New(), photos)
	require.ErrorIs(t, err, face.ErrEncoderUnavailable)
	var photoErr *face.PhotoError
	assert.False(t, errors.As(err, &photoErr))
}

func TestEnroll_NoOverwrite(t *testing.T) {
	gw := &stubGateway{embeddings: map[string][]float32{}}
	registry, _ := newTestRegistry(gw)
	id := uuid.New()

	_, err := registry.Enroll(context.Background(), id, photosFor(gw, 0, 3))
	require.NoError(t, err)

	_, err = registry.Enroll(context.Background(), id, photosFor(gw, 1, 3))
	assert.ErrorIs(t, err, face.ErrAlreadyRegistered)
}

func TestEnroll_AfterDelete(t *testing.T) {
	gw := &stubGateway{embeddings: map[string][]float32{}}
	registry, store := newTestRegistry(gw)
	id := uuid.New()

	_, err := registry.Enroll(context.Background(), id, photosFor(gw, 0, 3))
	require.NoError(t, err)

	require.NoError(t, registry.Delete(context.Background(), id))
	assert.False(t, store.FaceRegistered(id))

	_, err = registry.Enroll(context.Background(), id, photosFor(gw, 1, 3))
	assert.NoError(t, err)
}

func TestVerify_AcceptsSamePerson(t *testing.T) {
	gw := &stubGateway{embeddings: map[string][]float32{}}
	registry, _ := newTestRegistry(gw)
	id := uuid.New()

	_, err := registry.Enroll(context.Background(), id, photosFor(gw, 0, 3))
	require.NoError(t, err)

	gw.embeddings["probe"] = direction(0, 0.08)
	result, err := registry.Verify(context.Background(), id, []byte("probe"), 0.7)
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Greater(t, result.Similarity, 0.9)
	require.NotNil(t, result.IdentityID)
	assert.Equal(t, id, *result.IdentityID)
}

func TestVerify_RejectsDifferentPerson(t *testing.T) {
	gw := &stubGateway{embeddings: map[string][]float32{}}
	registry, _ := newTestRegistry(gw)
	id := uuid.New()

	_, err := registry.Enroll(context.Background(), id, photosFor(gw, 0, 3))
	require.NoError(t, err)

	// Near-orthogonal probe.
	gw.embeddings["probe"] = direction(2, 0.0)
	result, err := registry.Verify(context.Background(), id, []byte("probe"), 0.7)
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Less(t, result.Similarity, 0.7)
	assert.Nil(t, result.IdentityID)
	assert.Equal(t, 0.7, result.Threshold)
}

func TestVerify_UnknownIdentity(t *testing.T) {
	gw := &stubGateway{embeddings: map[string][]float32{"probe": direction(0, 0)}}
	registry, _ := newTestRegistry(gw)

	_, err := registry.Verify(context.Background(), uuid.New(), []byte("probe"), 0.7)
	assert.ErrorIs(t, err, face.ErrNotRegistered)
}

func TestVerify_BumpsVerificationCount(t *testing.T) {
	gw := &stubGateway{embeddings: map[string][]float32{}}
	registry, _ := newTestRegistry(gw)
	id := uuid.New()

	_, err := registry.Enroll(context.Background(), id, photosFor(gw, 0, 3))
	require.NoError(t, err)

	gw.embeddings["probe"] = direction(0, 0.05)
	_, err = registry.Verify(context.Background(), id, []byte("probe"), 0.7)
	require.NoError(t, err)

	tmpl, err := registry.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 1, tmpl.VerificationCount)
	assert.NotNil(t, tmpl.LastVerifiedAt)
}

func TestVerify_RejectDoesNotBumpCount(t *testing.T) {
	gw := &stubGateway{embeddings: map[string][]float32{}}
	registry, _ := newTestRegistry(gw)
	id := uuid.New()

	_, err := registry.Enroll(context.Background(), id, photosFor(gw, 0, 3))
	require.NoError(t, err)

	gw.embeddings["probe"] = direction(2, 0)
	_, err = registry.Verify(context.Background(), id, []byte("probe"), 0.7)
	require.NoError(t, err)

	tmpl, err := registry.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 0, tmpl.VerificationCount)
}

func TestIdentify_PicksBestMatch(t *testing.T) {
	gw := &stubGateway{embeddings: map[string][]float32{}}
	registry, _ := newTestRegistry(gw)

	alice := uuid.New()
	bob := uuid.New()
	_, err := registry.Enroll(context.Background(), alice, photosFor(gw, 0, 3))
	require.NoError(t, err)
	_, err = registry.Enroll(context.Background(), bob, photosFor(gw, 1, 3))
	require.NoError(t, err)

	gw.embeddings["probe"] = direction(1, 0.05)
	result, err := registry.Identify(context.Background(), []byte("probe"), 0.6)
	require.NoError(t, err)
	require.True(t, result.Accepted)
	assert.Equal(t, bob, *result.IdentityID)
}

func TestIdentify_BelowThresholdRejects(t *testing.T) {
	gw := &stubGateway{embeddings: map[string][]float32{}}
	registry, _ := newTestRegistry(gw)

	_, err := registry.Enroll(context.Background(), uuid.New(), photosFor(gw, 0, 3))
	require.NoError(t, err)

	gw.embeddings["probe"] = direction(2, 0.1)
	result, err := registry.Identify(context.Background(), []byte("probe"), 0.6)
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Nil(t, result.IdentityID)
	// Best score still reported on rejection.
	assert.Less(t, result.Similarity, 0.6)
}

func TestIdentify_EmptyRegistry(t *testing.T) {
	gw := &stubGateway{embeddings: map[string][]float32{"probe": direction(0, 0)}}
	registry, _ := newTestRegistry(gw)

	result, err := registry.Identify(context.Background(), []byte("probe"), 0.6)
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Equal(t, 0.0, result.Similarity)
}

func TestGet_UnknownIdentity(t *testing.T) {
	gw := &stubGateway{embeddings: map[string][]float32{}}
	registry, _ := newTestRegistry(gw)

	_, err := registry.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, face.ErrNotRegistered)
}

func TestDelete_UnknownIdentity(t *testing.T) {
	gw := &stubGateway{embeddings: map[string][]float32{}}
	registry, _ := newTestRegistry(gw)

	err := registry.Delete(context.Background(), uuid.New())
	assert.ErrorIs(t, err, face.ErrNotRegistered)
}
