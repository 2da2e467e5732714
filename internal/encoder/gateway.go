package encoder

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	_ "image/png"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/presence/internal/config"
	"github.com/your-org/presence/internal/face"
	"github.com/your-org/presence/internal/observability"
)

// Gateway implements face.Gateway on top of the ONNX detector and embedder.
// It is the only component that touches raw pixels; everything downstream
// sees embedding vectors.
type Gateway struct {
	detector *Detector
	embedder *Embedder
	timeout  time.Duration

	// ONNX sessions reuse pre-bound tensors, so runs must not interleave.
	mu sync.Mutex
}

// NewGateway loads both models from cfg.ModelsDir.
func NewGateway(cfg config.RecognitionConfig) (*Gateway, error) {
	detPath := filepath.Join(cfg.ModelsDir, "det_10g.onnx")
	embPath := filepath.Join(cfg.ModelsDir, "mobilenetv2_face.onnx")

	slog.Info("loading detection model", "path", detPath)
	det, err := NewDetector(detPath, float32(cfg.DetectionThreshold))
	if err != nil {
		return nil, fmt.Errorf("load detector: %w", err)
	}

	slog.Info("loading embedding model", "path", embPath, "dim", cfg.EmbeddingDim)
	emb, err := NewEmbedder(embPath, cfg.EmbeddingDim)
	if err != nil {
		det.Close()
		return nil, fmt.Errorf("load embedder: %w", err)
	}

	return &Gateway{
		detector: det,
		embedder: emb,
		timeout:  cfg.EncoderTimeout,
	}, nil
}

// DetectAndEncode finds faces in the image and returns the embedding of the
// single detected face. Zero faces and multiple faces are distinct outcomes;
// exceeding the configured timeout reports face.ErrEncoderUnavailable rather
// than hanging the caller.
func (g *Gateway) DetectAndEncode(ctx context.Context, imageData []byte) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type result struct {
		embedding []float32
		err       error
	}
	ch := make(chan result, 1)

	go func() {
		emb, err := g.detectAndEncode(imageData)
		ch <- result{embedding: emb, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", face.ErrEncoderUnavailable, ctx.Err())
	case res := <-ch:
		return res.embedding, res.err
	}
}

func (g *Gateway) detectAndEncode(imageData []byte) ([]float32, error) {
	img, err := jpeg.Decode(bytes.NewReader(imageData))
	if err != nil {
		img, _, err = image.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decode image: %w", err)
		}
	}

	bounds := img.Bounds()
	origW := bounds.Dx()
	origH := bounds.Dy()

	g.mu.Lock()
	defer g.mu.Unlock()

	start := time.Now()
	detInput := preprocessForDetection(img, g.detector.inputW, g.detector.inputH)
	detections, err := g.detector.Detect(detInput, origW, origH)
	if err != nil {
		return nil, fmt.Errorf("%w: detect: %v", face.ErrEncoderUnavailable, err)
	}
	observability.EncoderDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())

	if len(detections) == 0 {
		return nil, face.ErrNoFace
	}
	if len(detections) > 1 {
		return nil, face.ErrMultipleFaces
	}

	faceCrop := cropFace(img, detections[0].BBox)
	if faceCrop == nil {
		return nil, face.ErrNoFace
	}

	start = time.Now()
	embInput := preprocessForEmbedding(faceCrop, g.embedder.inputW, g.embedder.inputH)
	embedding, err := g.embedder.Extract(embInput)
	if err != nil {
		return nil, fmt.Errorf("%w: embed: %v", face.ErrEncoderUnavailable, err)
	}
	observability.EncoderDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())

	return embedding, nil
}

func (g *Gateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.detector != nil {
		g.detector.Close()
	}
	if g.embedder != nil {
		g.embedder.Close()
	}
}

// Runtime initialization helpers shared by the binaries.

// InitRuntime points ONNX Runtime at its shared library and initializes it.
func InitRuntime(libPath string) error {
	ort.SetSharedLibraryPath(libPath)
	return ort.InitializeEnvironment()
}

// DestroyRuntime tears the ONNX environment down.
func DestroyRuntime() {
	_ = ort.DestroyEnvironment()
}
