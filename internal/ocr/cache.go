package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/joseph-ayodele/receipt-extractor/internal/receipt"
)

// CachingEngine memoizes successful extractions by image digest and hints.
type CachingEngine struct {
	next   Engine
	cache  *cache.Cache
	logger *slog.Logger
}

// NewCachingEngine wraps next with a TTL cache. A non-positive ttl returns next unchanged.
func NewCachingEngine(next Engine, ttl time.Duration, logger *slog.Logger) Engine {
	if ttl <= 0 {
		return next
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachingEngine{
		next:   next,
		cache:  cache.New(ttl, 2*ttl),
		logger: logger,
	}
}

func (c *CachingEngine) Extract(ctx context.Context, img receipt.Image, hints Hints) (receipt.ExtractedText, error) {
	key := cacheKey(img, hints)
	if v, ok := c.cache.Get(key); ok {
		c.logger.Debug("ocr.cache.hit", "source", img.Source)
		return v.(receipt.ExtractedText), nil
	}
	res, err := c.next.Extract(ctx, img, hints)
	if err != nil {
		return res, err
	}
	c.cache.Set(key, res, cache.DefaultExpiration)
	return res, nil
}

func cacheKey(img receipt.Image, hints Hints) string {
	return fmt.Sprintf("%s|%t|%s", img.Digest(), hints.Aggressive, hints.Language)
}
