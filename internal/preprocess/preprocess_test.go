package preprocess

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/nfnt/resize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	return buf.Bytes()
}

func gradientRGBA(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: uint8((x + y) % 256), A: 255})
		}
	}
	return img
}

func requireValidTensor(t *testing.T, tensor *Tensor) {
	t.Helper()
	require.Equal(t, [4]int{1, ImageSize, ImageSize, Channels}, tensor.Shape)
	require.Len(t, tensor.Data, ImageSize*ImageSize*Channels)
	require.Equal(t, len(tensor.Data), tensor.Len())
	for i, v := range tensor.Data {
		if v < 0 || v > 1 {
			t.Fatalf("value %d out of range: %v", i, v)
		}
	}
}

func TestPreprocessShapeAndRangeForAnySize(t *testing.T) {
	sizes := []image.Point{{1, 1}, {37, 500}, {128, 128}, {640, 480}, {1024, 3}}
	for _, size := range sizes {
		data := encodePNG(t, gradientRGBA(size.X, size.Y))
		tensor, err := Preprocess(bytes.NewReader(data))
		require.NoError(t, err, "size %v", size)
		requireValidTensor(t, tensor)
	}
}

// 3-channel 256x256 JPEG, one pixel checked against a manual /255.
func TestPreprocessJPEGMatchesManualComputation(t *testing.T) {
	data := encodeJPEG(t, gradientRGBA(256, 256))

	tensor, err := Preprocess(bytes.NewReader(data))
	require.NoError(t, err)
	requireValidTensor(t, tensor)

	decoded, format, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, "jpeg", format)
	resized := resize.Resize(ImageSize, ImageSize, decoded, resize.Bicubic)
	px := color.NRGBAModel.Convert(resized.At(resized.Bounds().Min.X+40, resized.Bounds().Min.Y+90)).(color.NRGBA)

	assert.Equal(t, float32(px.R)/255.0, tensor.At(0, 90, 40, 0))
	assert.Equal(t, float32(px.G)/255.0, tensor.At(0, 90, 40, 1))
	assert.Equal(t, float32(px.B)/255.0, tensor.At(0, 90, 40, 2))
}

func TestPreprocessUniformColour(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 300, 200))
	c := color.NRGBA{R: 51, G: 102, B: 204, A: 255}
	for y := 0; y < 200; y++ {
		for x := 0; x < 300; x++ {
			img.SetNRGBA(x, y, c)
		}
	}

	tensor, err := Preprocess(bytes.NewReader(encodePNG(t, img)))
	require.NoError(t, err)

	assert.InDelta(t, 51.0/255.0, tensor.At(0, 64, 64, 0), 1.0/255.0)
	assert.InDelta(t, 102.0/255.0, tensor.At(0, 64, 64, 1), 1.0/255.0)
	assert.InDelta(t, 204.0/255.0, tensor.At(0, 64, 64, 2), 1.0/255.0)
}

// A grayscale PNG yields 3 equal channels, not 1.
func TestPreprocessGrayscaleExpandsToRGB(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 200, 160))
	for y := 0; y < 160; y++ {
		for x := 0; x < 200; x++ {
			gray.SetGray(x, y, color.Gray{Y: uint8((x * y) % 256)})
		}
	}

	tensor, err := Preprocess(bytes.NewReader(encodePNG(t, gray)))
	require.NoError(t, err)
	requireValidTensor(t, tensor)
	assert.Equal(t, 3, tensor.Shape[3])

	for y := 0; y < ImageSize; y += 17 {
		for x := 0; x < ImageSize; x += 13 {
			r := tensor.At(0, y, x, 0)
			assert.Equal(t, r, tensor.At(0, y, x, 1))
			assert.Equal(t, r, tensor.At(0, y, x, 2))
		}
	}
}

func TestPreprocessRGBAHasThreeChannels(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 90, 90))
	for y := 0; y < 90; y++ {
		for x := 0; x < 90; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 250, G: 10, B: 90, A: uint8(x * 2)})
		}
	}

	tensor, err := Preprocess(bytes.NewReader(encodePNG(t, img)))
	require.NoError(t, err)
	requireValidTensor(t, tensor)
}

func TestPreprocessIsIdempotent(t *testing.T) {
	data := encodeJPEG(t, gradientRGBA(333, 222))

	first, err := Preprocess(bytes.NewReader(data))
	require.NoError(t, err)
	second, err := Preprocess(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, first.Data, second.Data)
}

// .png bytes that are not an image fail at decode.
func TestPreprocessRejectsCorruptBytes(t *testing.T) {
	_, err := Preprocess(bytes.NewReader([]byte("definitely not a png")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, image.ErrFormat))
}

func TestPreprocessRejectsTruncatedPNG(t *testing.T) {
	data := encodePNG(t, gradientRGBA(64, 64))
	_, err := Preprocess(bytes.NewReader(data[:len(data)/2]))
	assert.Error(t, err)
}

func TestToRGBDropsAlpha(t *testing.T) {
	img := image.NewNRGBA(image.Rect(5, 5, 7, 7))
	img.SetNRGBA(5, 5, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	img.SetNRGBA(6, 6, color.NRGBA{R: 100, G: 0, B: 0, A: 128})

	out := ToRGB(img)
	assert.Equal(t, image.Rect(0, 0, 2, 2), out.Bounds())
	assert.Equal(t, color.NRGBA{R: 10, G: 20, B: 30, A: 255}, out.NRGBAAt(0, 0))
	assert.Equal(t, uint8(255), out.NRGBAAt(1, 1).A)
	assert.InDelta(t, 100, int(out.NRGBAAt(1, 1).R), 1)
}
