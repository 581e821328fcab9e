package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaceify/spaceify/internal/imageprep"
	"github.com/spaceify/spaceify/internal/layout"
	"github.com/spaceify/spaceify/internal/storage"
)

func imagesOf(data ...string) []*imageprep.Prepared {
	out := make([]*imageprep.Prepared, len(data))
	for i, d := range data {
		out[i] = &imageprep.Prepared{Data: []byte(d), MIMEType: "image/jpeg"}
	}
	return out
}

type countingAnalyzer struct {
	calls  int
	result *PhotoResult
}

func (c *countingAnalyzer) AnalyzePhotos(context.Context, PhotoRequest) (*PhotoResult, error) {
	c.calls++
	return c.result, nil
}

func TestPhotoHash(t *testing.T) {
	room := layout.RoomData{RoomType: layout.RoomKitchen}
	split := PhotoRequest{Room: room, Images: imagesOf("ab", "c")}
	joined := PhotoRequest{Room: room, Images: imagesOf("abc")}
	assert.NotEqual(t, photoHash(split), photoHash(joined))
	assert.Equal(t, photoHash(split), photoHash(PhotoRequest{Room: room, Images: imagesOf("ab", "c")}))

	otherRoom := PhotoRequest{Room: layout.RoomData{RoomType: layout.RoomBathroom}, Images: imagesOf("ab", "c")}
	assert.NotEqual(t, photoHash(split), photoHash(otherRoom))
}

func TestCachedAnalyzer(t *testing.T) {
	ctx := context.Background()
	inner := &countingAnalyzer{result: &PhotoResult{
		Findings: PhotoFindings{CurrentStyle: "Industrial"},
		Model:    "vision",
		Usage:    Usage{TotalTokens: 1500, CostUSD: 0.01},
	}}
	store := storage.NewMemoryStore()
	cached := NewCachedAnalyzer(inner, store)
	req := PhotoRequest{Room: testRoom, Images: imagesOf("photo")}

	first, err := cached.AnalyzePhotos(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, int64(1500), first.Usage.TotalTokens)

	second, err := cached.AnalyzePhotos(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, Usage{}, second.Usage)
	assert.Equal(t, "Industrial", second.Findings.CurrentStyle)
	assert.Equal(t, "vision", second.Model)
	assert.Equal(t, 1, inner.calls)

	_, err = cached.AnalyzePhotos(ctx, PhotoRequest{Room: testRoom, Images: imagesOf("other photo")})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedAnalyzer_IgnoresCorruptEntry(t *testing.T) {
	ctx := context.Background()
	inner := &countingAnalyzer{result: &PhotoResult{Model: "vision"}}
	store := storage.NewMemoryStore()
	req := PhotoRequest{Room: testRoom, Images: imagesOf("photo")}
	require.NoError(t, store.Set(ctx, photoCachePrefix+photoHash(req), []byte("{not json")))

	result, err := NewCachedAnalyzer(inner, store).AnalyzePhotos(ctx, req)
	require.NoError(t, err)
	assert.False(t, result.FromCache)
	assert.Equal(t, 1, inner.calls)
}
