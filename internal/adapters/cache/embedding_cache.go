package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/danielcwq/stall-finder/internal/domain/providers"
	"github.com/danielcwq/stall-finder/internal/infrastructure/observability"
)

// CachedEmbeddingProvider wraps an EmbeddingProvider with a read-through cache.
// Cache failures never fail the embedding call.
type CachedEmbeddingProvider struct {
	provider   providers.EmbeddingProvider
	cache      providers.CacheProvider
	model      string
	ttlSeconds int
}

// NewCachedEmbeddingProvider creates the decorator. model is part of the key
// so vectors from different embedding models never mix.
func NewCachedEmbeddingProvider(provider providers.EmbeddingProvider, cache providers.CacheProvider, model string, ttlSeconds int) *CachedEmbeddingProvider {
	return &CachedEmbeddingProvider{
		provider:   provider,
		cache:      cache,
		model:      model,
		ttlSeconds: ttlSeconds,
	}
}

func embeddingCacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("embedding:%s:%s", model, hex.EncodeToString(sum[:]))
}

// Embed returns the cached vector when present, otherwise delegates and stores the result.
func (p *CachedEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	logger := observability.LoggerFromContext(ctx)
	key := embeddingCacheKey(p.model, text)

	cached, err := p.cache.Get(ctx, key)
	switch {
	case err == nil:
		var vector []float32
		if uerr := json.Unmarshal(cached, &vector); uerr == nil && len(vector) > 0 {
			return vector, nil
		}
		logger.Warn().Str("key", key).Msg("discarding malformed cached embedding")
	case !errors.Is(err, providers.ErrCacheMiss):
		logger.Warn().Err(err).Str("key", key).Msg("embedding cache read failed")
	}

	vector, err := p.provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(vector)
	if err == nil {
		if serr := p.cache.Set(ctx, key, data, p.ttlSeconds); serr != nil {
			logger.Warn().Err(serr).Str("key", key).Msg("embedding cache write failed")
		}
	}

	return vector, nil
}
