// Package imageprep validates room photos and shrinks them into the payload
// sent to a vision model.
package imageprep

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultMaxSize is the largest accepted upload (10MB).
	DefaultMaxSize = 10 * 1024 * 1024
	// DefaultMaxDimension bounds the longer side after resizing.
	DefaultMaxDimension = 1024
	// DefaultResizeThreshold forces a re-encode for files above 2MB even when
	// their dimensions already fit.
	DefaultResizeThreshold = 2 * 1024 * 1024
	// DefaultJPEGQuality is used for every re-encoded image.
	DefaultJPEGQuality = 80
)

// AllowedTypes are the accepted upload content types.
var AllowedTypes = []string{"image/jpeg", "image/jpg", "image/png", "image/webp"}

// Image is an uploaded room photo.
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

// Metadata describes the source image and what preparation did to it.
type Metadata struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	AspectRatio float64 `json:"aspectRatio"`
	Size        int     `json:"size"`
	Processed   bool    `json:"processed"`
	FinalSize   int     `json:"finalSize"`
	FinalWidth  int     `json:"finalWidth"`
	FinalHeight int     `json:"finalHeight"`
}

// Prepared is an image ready to embed in a provider request.
type Prepared struct {
	Data     []byte
	MIMEType string
	Base64   string
	Metadata Metadata
}

// DataURL returns the image as a base64 data URL.
func (p *Prepared) DataURL() string {
	return "data:" + p.MIMEType + ";base64," + p.Base64
}

// ValidationResult lists every problem found with an upload.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// Err returns nil for a valid result, otherwise the joined messages.
func (v ValidationResult) Err() error {
	if v.Valid {
		return nil
	}
	return errors.New(strings.Join(v.Errors, ", "))
}

// Preparer validates and resizes images with configurable limits.
type Preparer struct {
	maxSize         int
	maxDimension    int
	resizeThreshold int
	quality         int
}

// NewPreparer creates a Preparer with default settings.
func NewPreparer() *Preparer {
	return &Preparer{
		maxSize:         DefaultMaxSize,
		maxDimension:    DefaultMaxDimension,
		resizeThreshold: DefaultResizeThreshold,
		quality:         DefaultJPEGQuality,
	}
}

// WithMaxSize sets the largest accepted upload in bytes.
func (p *Preparer) WithMaxSize(n int) *Preparer {
	p.maxSize = n
	return p
}

// WithMaxDimension sets the bound on the longer side after resizing.
func (p *Preparer) WithMaxDimension(n int) *Preparer {
	p.maxDimension = n
	return p
}

// WithResizeThreshold sets the byte size above which images are always re-encoded.
func (p *Preparer) WithResizeThreshold(n int) *Preparer {
	p.resizeThreshold = n
	return p
}

// WithQuality sets the JPEG quality used for re-encoding.
func (p *Preparer) WithQuality(q int) *Preparer {
	p.quality = q
	return p
}

// Validate checks content type and size.
func (p *Preparer) Validate(img Image) ValidationResult {
	var errs []string
	if len(img.Data) == 0 {
		return ValidationResult{Valid: false, Errors: []string{"No file provided"}}
	}
	if !allowedType(img.ContentType) {
		errs = append(errs, "File must be a JPEG, PNG, or WebP image")
	}
	if len(img.Data) > p.maxSize {
		errs = append(errs, fmt.Sprintf("File size must be less than %dMB", p.maxSize/(1024*1024)))
	}
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// Prepare validates img, decodes it and, when it is larger than the
// configured bounds, scales it down and re-encodes it as JPEG. Images that
// already fit are passed through unchanged.
func (p *Preparer) Prepare(ctx context.Context, img Image) (*Prepared, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prepared, err := p.prepare(img)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare image for AI analysis: %w", err)
	}
	return prepared, nil
}

func (p *Preparer) prepare(img Image) (*Prepared, error) {
	if err := p.Validate(img).Err(); err != nil {
		return nil, err
	}

	src, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	b := src.Bounds()
	meta := Metadata{
		Name:   img.Name,
		Type:   img.ContentType,
		Width:  b.Dx(),
		Height: b.Dy(),
		Size:   len(img.Data),
	}
	if meta.Height > 0 {
		meta.AspectRatio = float64(meta.Width) / float64(meta.Height)
	}

	data := img.Data
	mimeType := normalizeType(img.ContentType)
	finalW, finalH := meta.Width, meta.Height

	if meta.Width > p.maxDimension || meta.Height > p.maxDimension || len(img.Data) > p.resizeThreshold {
		finalW, finalH = fit(meta.Width, meta.Height, p.maxDimension)
		dst := image.NewRGBA(image.Rect(0, 0, finalW, finalH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: p.quality}); err != nil {
			return nil, fmt.Errorf("failed to encode image: %w", err)
		}
		data = buf.Bytes()
		mimeType = "image/jpeg"
		meta.Processed = true

		log.Debug().
			Str("name", img.Name).
			Int("width", meta.Width).
			Int("height", meta.Height).
			Int("finalWidth", finalW).
			Int("finalHeight", finalH).
			Int("size", meta.Size).
			Int("finalSize", len(data)).
			Msg("resized image")
	}

	meta.FinalSize = len(data)
	meta.FinalWidth = finalW
	meta.FinalHeight = finalH

	return &Prepared{
		Data:     data,
		MIMEType: mimeType,
		Base64:   base64.StdEncoding.EncodeToString(data),
		Metadata: meta,
	}, nil
}

// PrepareAll prepares every image concurrently and returns them in input
// order. The first failure cancels the rest and fails the whole batch.
func (p *Preparer) PrepareAll(ctx context.Context, imgs []Image) ([]*Prepared, error) {
	out := make([]*Prepared, len(imgs))
	g, gctx := errgroup.WithContext(ctx)
	for i, img := range imgs {
		g.Go(func() error {
			prepared, err := p.Prepare(gctx, img)
			if err != nil {
				return fmt.Errorf("image %d (%s): %w", i, img.Name, err)
			}
			out[i] = prepared
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// fit scales w×h so the longer side is at most limit, preserving aspect ratio.
func fit(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w >= h {
		return limit, atLeastOne(h * limit / w)
	}
	return atLeastOne(w * limit / h), limit
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func allowedType(ct string) bool {
	for _, t := range AllowedTypes {
		if ct == t {
			return true
		}
	}
	return false
}

func normalizeType(ct string) string {
	if ct == "image/jpg" {
		return "image/jpeg"
	}
	return ct
}

var defaultPreparer = NewPreparer()

// Validate checks img against the default limits.
func Validate(img Image) ValidationResult {
	return defaultPreparer.Validate(img)
}

// Prepare prepares img with the default limits.
func Prepare(ctx context.Context, img Image) (*Prepared, error) {
	return defaultPreparer.Prepare(ctx, img)
}

// PrepareAll prepares imgs with the default limits.
func PrepareAll(ctx context.Context, imgs []Image) ([]*Prepared, error) {
	return defaultPreparer.PrepareAll(ctx, imgs)
}
