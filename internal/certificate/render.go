package certificate

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
)

// Canvas size in pixels. Pages keep this 4:3 ratio.
const (
	Width  = 800
	Height = 600
)

var (
	border   = color.RGBA{0xfa, 0xcc, 0x15, 0xff}
	heading  = color.RGBA{0x37, 0x41, 0x51, 0xff}
	muted    = color.RGBA{0x64, 0x74, 0x8b, 0xff}
	faint    = color.RGBA{0x94, 0xa3, 0xb8, 0xff}
	ink      = color.RGBA{0x11, 0x18, 0x27, 0xff}
	subtitle = color.RGBA{0x1f, 0x29, 0x37, 0xff}
)

// Renderer draws certificates. It is safe for concurrent use.
type Renderer struct {
	issuer  string
	regular *truetype.Font
	bold    *truetype.Font
	display *truetype.Font
}

// NewRenderer creates a renderer signing certificates as issuer. The Go fonts
// are used unless fontPath names a TTF file for the student name.
func NewRenderer(issuer, fontPath string) (*Renderer, error) {
	r := &Renderer{issuer: issuer}

	var err error
	if r.regular, err = truetype.Parse(goregular.TTF); err != nil {
		return nil, fmt.Errorf("parse regular font: %w", err)
	}
	if r.bold, err = truetype.Parse(gobold.TTF); err != nil {
		return nil, fmt.Errorf("parse bold font: %w", err)
	}

	display := goitalic.TTF
	if strings.TrimSpace(fontPath) != "" {
		if display, err = os.ReadFile(fontPath); err != nil {
			return nil, fmt.Errorf("read font file: %w", err)
		}
	}
	if r.display, err = truetype.Parse(display); err != nil {
		return nil, fmt.Errorf("parse display font: %w", err)
	}
	return r, nil
}

func face(f *truetype.Font, size float64) font.Face {
	return truetype.NewFace(f, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
}

// Render draws one certificate.
func (r *Renderer) Render(v View) image.Image {
	return r.draw(v).Image()
}

// RenderPNG writes one certificate as PNG.
func (r *Renderer) RenderPNG(w io.Writer, v View) error {
	return r.draw(v).EncodePNG(w)
}

func (r *Renderer) draw(v View) *gg.Context {
	dc := gg.NewContext(Width, Height)
	cx := float64(Width) / 2

	dc.SetColor(color.White)
	dc.Clear()

	dc.SetColor(border)
	dc.SetLineWidth(16)
	dc.DrawRoundedRectangle(8, 8, Width-16, Height-16, 12)
	dc.Stroke()

	dc.SetFontFace(face(r.bold, 22))
	dc.SetColor(heading)
	dc.DrawStringAnchored(strings.ToUpper("Certificate of Completion"), cx, 150, 0.5, 0.5)

	dc.SetFontFace(face(r.regular, 18))
	dc.SetColor(muted)
	dc.DrawStringAnchored("This is to certify that", cx, 200, 0.5, 0.5)

	dc.SetFontFace(fit(dc, r.display, v.Student, 56, Width-160))
	dc.SetColor(ink)
	dc.DrawStringAnchored(v.Student, cx, 265, 0.5, 0.5)

	dc.SetFontFace(face(r.regular, 18))
	dc.SetColor(muted)
	dc.DrawStringWrapped(v.Body(), cx, 320, 0.5, 0, Width-200, 1.4, gg.AlignCenter)

	dc.SetFontFace(fit(dc, r.bold, v.Course, 36, Width-160))
	dc.SetColor(subtitle)
	dc.DrawStringAnchored(v.Course, cx, 410, 0.5, 0.5)

	dc.SetFontFace(face(r.regular, 16))
	dc.SetColor(faint)
	dc.DrawStringAnchored("Date: "+v.Date(), cx, 475, 0.5, 0.5)
	dc.DrawStringAnchored(r.issuer, cx, 500, 0.5, 0.5)

	return dc
}

// fit shrinks size until s fits in maxWidth.
func fit(dc *gg.Context, f *truetype.Font, s string, size, maxWidth float64) font.Face {
	for ; size > 12; size -= 2 {
		ff := face(f, size)
		dc.SetFontFace(ff)
		if w, _ := dc.MeasureString(s); w <= maxWidth {
			return ff
		}
	}
	return face(f, 12)
}
