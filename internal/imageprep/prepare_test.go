package imageprep

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x += 7 {
		img.Set(x, h/2, color.RGBA{R: 200, G: 100, B: 50, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		img        Image
		wantValid  bool
		wantErrors []string
	}{
		{
			name:      "jpeg accepted",
			img:       Image{ContentType: "image/jpeg", Data: []byte{1}},
			wantValid: true,
		},
		{
			name:      "jpg alias accepted",
			img:       Image{ContentType: "image/jpg", Data: []byte{1}},
			wantValid: true,
		},
		{
			name:      "webp accepted",
			img:       Image{ContentType: "image/webp", Data: []byte{1}},
			wantValid: true,
		},
		{
			name:       "gif rejected",
			img:        Image{ContentType: "image/gif", Data: []byte{1}},
			wantErrors: []string{"File must be a JPEG, PNG, or WebP image"},
		},
		{
			name:       "empty file",
			img:        Image{ContentType: "image/png"},
			wantErrors: []string{"No file provided"},
		},
		{
			name: "wrong type and too large",
			img:  Image{ContentType: "application/pdf", Data: make([]byte, DefaultMaxSize+1)},
			wantErrors: []string{
				"File must be a JPEG, PNG, or WebP image",
				"File size must be less than 10MB",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(tt.img)
			assert.Equal(t, tt.wantValid, res.Valid)
			assert.Equal(t, tt.wantErrors, res.Errors)
			if tt.wantValid {
				assert.NoError(t, res.Err())
			} else {
				assert.Error(t, res.Err())
			}
		})
	}
}

func TestPrepare_SmallImagePassesThrough(t *testing.T) {
	data := pngImage(t, 40, 20)

	p, err := Prepare(context.Background(), Image{Name: "small.png", ContentType: "image/png", Data: data})
	require.NoError(t, err)

	assert.Equal(t, data, p.Data)
	assert.Equal(t, "image/png", p.MIMEType)
	assert.False(t, p.Metadata.Processed)
	assert.Equal(t, 40, p.Metadata.Width)
	assert.Equal(t, 20, p.Metadata.Height)
	assert.Equal(t, 2.0, p.Metadata.AspectRatio)
	assert.Equal(t, len(data), p.Metadata.FinalSize)
	assert.Equal(t, base64.StdEncoding.EncodeToString(data), p.Base64)
	assert.True(t, strings.HasPrefix(p.DataURL(), "data:image/png;base64,"))
}

func TestPrepare_LargeImageIsResized(t *testing.T) {
	data := pngImage(t, 2048, 1024)

	p, err := Prepare(context.Background(), Image{Name: "wide.png", ContentType: "image/png", Data: data})
	require.NoError(t, err)

	assert.True(t, p.Metadata.Processed)
	assert.Equal(t, "image/jpeg", p.MIMEType)
	assert.Equal(t, 2048, p.Metadata.Width)
	assert.Equal(t, 1024, p.Metadata.FinalWidth)
	assert.Equal(t, 512, p.Metadata.FinalHeight)
	assert.True(t, strings.HasPrefix(p.DataURL(), "data:image/jpeg;base64,"))

	decoded, err := jpeg.Decode(bytes.NewReader(p.Data))
	require.NoError(t, err)
	assert.Equal(t, 1024, decoded.Bounds().Dx())
	assert.Equal(t, 512, decoded.Bounds().Dy())
}

func TestPrepare_TallImageKeepsAspect(t *testing.T) {
	p, err := NewPreparer().WithMaxDimension(100).Prepare(context.Background(), Image{
		ContentType: "image/png",
		Data:        pngImage(t, 50, 400),
	})
	require.NoError(t, err)
	assert.Equal(t, 12, p.Metadata.FinalWidth)
	assert.Equal(t, 100, p.Metadata.FinalHeight)
}

func TestPrepare_OverThresholdReencodesAtSameSize(t *testing.T) {
	data := pngImage(t, 64, 64)

	p, err := NewPreparer().WithResizeThreshold(10).Prepare(context.Background(), Image{
		ContentType: "image/png",
		Data:        data,
	})
	require.NoError(t, err)
	assert.True(t, p.Metadata.Processed)
	assert.Equal(t, "image/jpeg", p.MIMEType)
	assert.Equal(t, 64, p.Metadata.FinalWidth)
	assert.Equal(t, 64, p.Metadata.FinalHeight)
}

func TestPrepare_Errors(t *testing.T) {
	_, err := Prepare(context.Background(), Image{ContentType: "image/gif", Data: []byte{1, 2}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to prepare image for AI analysis")
	assert.Contains(t, err.Error(), "File must be a JPEG, PNG, or WebP image")

	_, err = Prepare(context.Background(), Image{ContentType: "image/png", Data: []byte("not an image")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode image")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Prepare(ctx, Image{ContentType: "image/png", Data: pngImage(t, 4, 4)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPrepareAll_PreservesOrder(t *testing.T) {
	imgs := []Image{
		{Name: "a", ContentType: "image/png", Data: pngImage(t, 10, 10)},
		{Name: "b", ContentType: "image/png", Data: pngImage(t, 20, 10)},
		{Name: "c", ContentType: "image/png", Data: pngImage(t, 30, 10)},
	}

	out, err := PrepareAll(context.Background(), imgs)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, 10, out[0].Metadata.Width)
	assert.Equal(t, 20, out[1].Metadata.Width)
	assert.Equal(t, 30, out[2].Metadata.Width)
}

func TestPrepareAll_OneFailureFailsBatch(t *testing.T) {
	imgs := []Image{
		{Name: "ok", ContentType: "image/png", Data: pngImage(t, 10, 10)},
		{Name: "bad", ContentType: "image/bmp", Data: []byte{1}},
	}

	out, err := PrepareAll(context.Background(), imgs)
	require.Error(t, err)
	assert.Nil(t, out)
	assert.Contains(t, err.Error(), "bad")
}

func TestFit(t *testing.T) {
	w, h := fit(4000, 3000, 1024)
	assert.Equal(t, 1024, w)
	assert.Equal(t, 768, h)

	w, h = fit(800, 600, 1024)
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, h)

	w, h = fit(5000, 1, 1024)
	assert.Equal(t, 1024, w)
	assert.Equal(t, 1, h)
}
