package preprocess

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/nfnt/resize"
)

const (
	ImageSize = 128
	Channels  = 3
)

// Tensor is a dense float32 array in NHWC order.
type Tensor struct {
	Shape [4]int
	Data  []float32
}

// Len returns the number of elements implied by Shape.
func (t *Tensor) Len() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// At returns the value at batch b, row y, column x, channel c.
func (t *Tensor) At(b, y, x, c int) float32 {
	h, w, ch := t.Shape[1], t.Shape[2], t.Shape[3]
	return t.Data[((b*h+y)*w+x)*ch+c]
}

// Decode reads any registered image format. The codec error is returned
// wrapped, so errors.Is(err, image.ErrFormat) holds for unknown formats.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

// Preprocess decodes r and converts it to a (1, 128, 128, 3) tensor.
func Preprocess(r io.Reader) (*Tensor, error) {
	img, _, err := Decode(r)
	if err != nil {
		return nil, err
	}
	return FromImage(img), nil
}

// FromImage resizes img to 128x128 with bicubic resampling, coerces it to RGB
// and scales each channel byte into [0, 1].
func FromImage(img image.Image) *Tensor {
	resized := resize.Resize(ImageSize, ImageSize, img, resize.Bicubic)
	rgb := ToRGB(resized)

	t := &Tensor{
		Shape: [4]int{1, ImageSize, ImageSize, Channels},
		Data:  make([]float32, ImageSize*ImageSize*Channels),
	}

	bounds := rgb.Bounds()
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			p := rgb.NRGBAAt(x, y)
			t.Data[i] = float32(p.R) / 255.0
			t.Data[i+1] = float32(p.G) / 255.0
			t.Data[i+2] = float32(p.B) / 255.0
			i += Channels
		}
	}
	return t
}

// ToRGB is the colour-mode normalisation step applied to every input.
// Grayscale is expanded to R=G=B and any alpha channel is discarded without
// compositing against a background. The returned image is always opaque.
func ToRGB(img image.Image) *image.NRGBA {
	bounds := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			c.A = 0xff
			out.SetNRGBA(x-bounds.Min.X, y-bounds.Min.Y, c)
		}
	}
	return out
}
