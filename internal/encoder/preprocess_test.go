package encoder

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidImage(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestResizeImage_Dimensions(t *testing.T) {
	img := solidImage(100, 50, color.White)
	resized := resizeImage(img, 224, 224)
	assert.Equal(t, 224, resized.Bounds().Dx())
	assert.Equal(t, 224, resized.Bounds().Dy())
}

func TestImageToFloat32CHW_Normalization(t *testing.T) {
	// A mid-gray image maps to ~0 under (x - 127.5) / 127.5.
	img := solidImage(4, 4, color.RGBA{R: 127, G: 127, B: 127, A: 255})
	data := imageToFloat32CHW(img, 4, 4, [3]float32{127.5, 127.5, 127.5}, [3]float32{127.5, 127.5, 127.5})

	require.Len(t, data, 3*4*4)
	for _, v := range data {
		assert.InDelta(t, 0.0, float64(v), 0.01)
	}
}

func TestImageToFloat32CHW_ChannelLayout(t *testing.T) {
	// Pure red: R channel near +1, G and B near -1.
	img := solidImage(2, 2, color.RGBA{R: 255, A: 255})
	data := preprocessForEmbedding(img, 2, 2)

	require.Len(t, data, 12)
	assert.InDelta(t, 1.0, float64(data[0]), 0.01)  // R plane
	assert.InDelta(t, -1.0, float64(data[4]), 0.01) // G plane
	assert.InDelta(t, -1.0, float64(data[8]), 0.01) // B plane
}

func TestCropFace_Padding(t *testing.T) {
	img := solidImage(100, 100, color.White)
	crop := cropFace(img, [4]float32{40, 40, 60, 60})
	require.NotNil(t, crop)

	// 20px box with 10% padding on each side.
	assert.Equal(t, 24, crop.Bounds().Dx())
	assert.Equal(t, 24, crop.Bounds().Dy())
}

func TestCropFace_ClampedAtEdges(t *testing.T) {
	img := solidImage(50, 50, color.White)
	crop := cropFace(img, [4]float32{0, 0, 20, 20})
	require.NotNil(t, crop)
	assert.LessOrEqual(t, crop.Bounds().Dx(), 22)
}

func TestCropFace_EmptyBox(t *testing.T) {
	img := solidImage(50, 50, color.White)
	assert.Nil(t, cropFace(img, [4]float32{30, 30, 30, 30}))
	assert.Nil(t, cropFace(img, [4]float32{40, 40, 20, 20}))
}

func TestIOU(t *testing.T) {
	a := [4]float32{0, 0, 10, 10}
	assert.InDelta(t, 1.0, float64(iou(a, a)), 1e-6)

	b := [4]float32{20, 20, 30, 30}
	assert.Equal(t, float32(0), iou(a, b))

	// Half overlap: intersection 50, union 150.
	c := [4]float32{5, 0, 15, 10}
	assert.InDelta(t, 1.0/3.0, float64(iou(a, c)), 1e-5)
}

func TestNMS_SuppressesOverlaps(t *testing.T) {
	detections := []Detection{
		{BBox: [4]float32{0, 0, 10, 10}, Confidence: 0.9},
		{BBox: [4]float32{1, 1, 11, 11}, Confidence: 0.8},
		{BBox: [4]float32{50, 50, 60, 60}, Confidence: 0.7},
	}

	kept := nms(detections, 0.4)
	require.Len(t, kept, 2)
	assert.Equal(t, float32(0.9), kept[0].Confidence)
	assert.Equal(t, float32(0.7), kept[1].Confidence)
}

func TestClampF(t *testing.T) {
	assert.Equal(t, float32(0), clampF(-5, 0, 10))
	assert.Equal(t, float32(10), clampF(15, 0, 10))
	assert.Equal(t, float32(5), clampF(5, 0, 10))
}
