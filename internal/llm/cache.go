package llm

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/spaceify/spaceify/internal/storage"
)

const photoCachePrefix = "photo_analysis:"

// CachedAnalyzer wraps a PhotoAnalyzer with a key-value cache.
type CachedAnalyzer struct {
	inner PhotoAnalyzer
	store storage.KV
}

// NewCachedAnalyzer creates a cached analyzer.
func NewCachedAnalyzer(inner PhotoAnalyzer, store storage.KV) *CachedAnalyzer {
	return &CachedAnalyzer{inner: inner, store: store}
}

type cachedFindings struct {
	Model    string        `json:"model"`
	Findings PhotoFindings `json:"findings"`
}

// photoHash hashes the image bytes and the prompt built for the room.
// Each image is length-prefixed so [A,B] and [AB] differ.
func photoHash(req PhotoRequest) string {
	h := sha256.New()
	for _, img := range req.Images {
		binary.Write(h, binary.LittleEndian, int64(len(img.Data)))
		h.Write(img.Data)
	}
	h.Write([]byte(buildRoomAnalysisPrompt(req.Room)))
	return hex.EncodeToString(h.Sum(nil))
}

// AnalyzePhotos implements PhotoAnalyzer with caching.
func (c *CachedAnalyzer) AnalyzePhotos(ctx context.Context, req PhotoRequest) (*PhotoResult, error) {
	hash := photoHash(req)
	key := photoCachePrefix + hash

	if c.store != nil {
		raw, err := c.store.Get(ctx, key)
		if err != nil {
			log.Warn().Err(err).Msg("failed to check photo analysis cache")
		} else if raw != nil {
			var entry cachedFindings
			if err := json.Unmarshal(raw, &entry); err != nil {
				log.Warn().Err(err).Msg("ignoring corrupt photo analysis cache entry")
			} else {
				log.Debug().Str("hash", hash[:16]).Msg("photo analysis cache hit")
				return &PhotoResult{
					Findings:  entry.Findings,
					Model:     entry.Model,
					Usage:     Usage{},
					FromCache: true,
				}, nil
			}
		}
	}

	result, err := c.inner.AnalyzePhotos(ctx, req)
	if err != nil {
		return nil, err
	}

	if c.store != nil {
		data, err := json.Marshal(cachedFindings{Model: result.Model, Findings: result.Findings})
		if err == nil {
			err = c.store.Set(ctx, key, data)
		}
		if err != nil {
			log.Warn().Err(err).Msg("failed to cache photo analysis")
		} else {
			log.Debug().Str("hash", hash[:16]).Msg("cached photo analysis")
		}
	}

	return result, nil
}
