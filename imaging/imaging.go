// Package imaging normalizes downloaded page images.
package imaging

import (
	"bytes"
	"context"
	"image"
	_ "image/gif" // GIF decoder registration
	"image/jpeg"
	_ "image/png" // PNG decoder registration

	"github.com/blacker-cz/mangascraper"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // WebP decoder registration
)

// DefaultQuality is the JPEG quality used when re-encoding.
const DefaultQuality = 90

// Ensure Normalizer implements mangascraper.PageProcessor at compile time.
var _ mangascraper.PageProcessor = (*Normalizer)(nil)

// Normalizer downscales tall pages and optionally converts every page to
// JPEG. Pages that need neither are returned unchanged.
type Normalizer struct {
	maxHeight int
	forceJPEG bool
	quality   int
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithMaxHeight limits page height in pixels, preserving aspect ratio.
// Zero disables resizing.
func WithMaxHeight(px int) Option {
	return func(n *Normalizer) {
		n.maxHeight = px
	}
}

// WithJPEG re-encodes every page as JPEG.
func WithJPEG() Option {
	return func(n *Normalizer) {
		n.forceJPEG = true
	}
}

// WithQuality sets the JPEG quality (1-100).
func WithQuality(q int) Option {
	return func(n *Normalizer) {
		n.quality = q
	}
}

// NewNormalizer creates a new Normalizer.
func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{quality: DefaultQuality}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Process decodes data and re-encodes it as JPEG when it must be resized,
// when JPEG output is forced, or when it is WebP. Data that is not an image
// (text chapters) passes through untouched.
func (n *Normalizer) Process(ctx context.Context, data []byte) ([]byte, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return data, nil
	}

	resize := n.maxHeight > 0 && cfg.Height > n.maxHeight
	if !resize && !n.forceJPEG && format != "webp" {
		return data, nil
	}
	if format == "jpeg" && !resize {
		return data, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, mangascraper.WrapError(mangascraper.EFETCH, err, "decode %s page", format)
	}
	if resize {
		img = scaleToHeight(img, n.maxHeight)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: n.quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func scaleToHeight(img image.Image, height int) image.Image {
	bounds := img.Bounds()
	width := int(float64(bounds.Dx()) * float64(height) / float64(bounds.Dy()))
	if width < 1 {
		width = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
