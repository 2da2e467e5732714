package face

import (
	"context"
	"errors"
)

// Aggregator turns a batch of enrollment photos into one canonical template
// vector: the element-wise mean of the per-photo embeddings, re-normalized to
// unit length so cosine scores stay comparable with single-photo embeddings.
type Aggregator struct {
	gateway   Gateway
	minPhotos int
	maxPhotos int
}

func NewAggregator(gateway Gateway, minPhotos, maxPhotos int) *Aggregator {
	return &Aggregator{
		gateway:   gateway,
		minPhotos: minPhotos,
		maxPhotos: maxPhotos,
	}
}

// Aggregate encodes every photo and averages the embeddings. Any photo with
// zero or multiple faces fails the whole batch; a template is never built
// from partially valid input.
func (a *Aggregator) Aggregate(ctx context.Context, photos [][]byte) ([]float32, int, error) {
	if len(photos) < a.minPhotos || len(photos) > a.maxPhotos {
		return nil, 0, &InvalidPhotoCountError{Count: len(photos), Min: a.minPhotos, Max: a.maxPhotos}
	}

	embeddings := make([][]float32, 0, len(photos))
	for i, photo := range photos {
		emb, err := a.gateway.DetectAndEncode(ctx, photo)
		if err != nil {
			if errors.Is(err, ErrNoFace) || errors.Is(err, ErrMultipleFaces) {
				return nil, 0, &PhotoError{Index: i + 1, Err: err}
			}
			return nil, 0, err
		}
		embeddings = append(embeddings, emb)
	}

	template := Mean(embeddings)
	Normalize(template)

	return template, len(embeddings), nil
}
