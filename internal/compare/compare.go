package compare

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	TitleUploaded  = "Uploaded Image"
	TitleNormal    = "Normal"
	TitlePneumonia = "Pneumonia"
)

// Layout of the composite, in pixels.
const (
	CellSize    = 400
	Margin      = 20
	TitleHeight = 30
)

type Panel struct {
	Title string
	Image image.Image
}

// Figure renders the three-panel comparison: uploaded image, normal exemplar,
// pneumonia exemplar, in that order.
func Figure(uploaded, normal, pneumonia image.Image) (*image.NRGBA, error) {
	return Compose([]Panel{
		{Title: TitleUploaded, Image: uploaded},
		{Title: TitleNormal, Image: normal},
		{Title: TitlePneumonia, Image: pneumonia},
	})
}

// Compose lays panels out left to right, each image fitted into a square cell
// under its title.
func Compose(panels []Panel) (*image.NRGBA, error) {
	if len(panels) == 0 {
		return nil, fmt.Errorf("no panels to compose")
	}

	width := len(panels)*CellSize + (len(panels)+1)*Margin
	height := TitleHeight + CellSize + 2*Margin
	canvas := imaging.New(width, height, color.White)

	for i, p := range panels {
		if p.Image == nil {
			return nil, fmt.Errorf("panel %q has no image", p.Title)
		}
		left := Margin + i*(CellSize+Margin)

		drawTitle(canvas, p.Title, left, Margin)

		fitted := imaging.Fit(p.Image, CellSize, CellSize, imaging.Lanczos)
		b := fitted.Bounds()
		offset := image.Pt(
			left+(CellSize-b.Dx())/2,
			Margin+TitleHeight+(CellSize-b.Dy())/2,
		)
		canvas = imaging.Paste(canvas, fitted, offset)
	}
	return canvas, nil
}

// drawTitle centres text horizontally over the cell starting at left.
func drawTitle(dst *image.NRGBA, text string, left, top int) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
	}
	w := d.MeasureString(text).Ceil()
	x := left + (CellSize-w)/2
	y := top + (TitleHeight+basicfont.Face7x13.Ascent)/2
	d.Dot = fixed.P(x, y)
	d.DrawString(text)
}

func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode comparison: %w", err)
	}
	return buf.Bytes(), nil
}
