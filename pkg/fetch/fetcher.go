package fetch

import (
	"bytes"
	"context"
	"math"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"pricewatch-go/pkg/extract"
	"pricewatch-go/pkg/logger"
	"pricewatch-go/pkg/storage"
)

const (
	defaultCacheTTL  = 5 * time.Minute
	defaultCacheSize = 100
)

// call tracks one in-flight fetch so concurrent requests for the same
// URL share a single download.
type call struct {
	done chan struct{}
	res  *extract.Result
	err  error
}

// Fetcher runs the full fetch-parse-extract path with a TTL result
// cache in front and per-URL request coalescing behind it.
type Fetcher struct {
	client   PageFetcher
	pipeline *extract.Pipeline
	cache    *storage.TTLCache

	mu       sync.Mutex
	inflight map[string]*call

	log *logger.Logger
}

func NewFetcher(client PageFetcher, pipeline *extract.Pipeline) *Fetcher {
	return NewFetcherWithCache(client, pipeline, defaultCacheTTL, defaultCacheSize)
}

func NewFetcherWithCache(client PageFetcher, pipeline *extract.Pipeline, ttl time.Duration, maxSize int) *Fetcher {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if maxSize <= 0 {
		maxSize = defaultCacheSize
	}
	return &Fetcher{
		client:   client,
		pipeline: pipeline,
		cache:    storage.NewTTLCache(maxSize, ttl),
		inflight: make(map[string]*call),
		log:      logger.GetLogger().WithComponent("fetcher"),
	}
}

// FetchPrice returns extraction results for a URL, serving from cache
// when fresh. At most one download per URL runs at a time: latecomers
// block on the in-flight call and share its outcome.
func (f *Fetcher) FetchPrice(ctx context.Context, pageURL string) (*extract.Result, error) {
	if v, ok := f.cache.Get(pageURL); ok {
		f.log.WithField("url", pageURL).Debug("cache hit")
		return v.(*extract.Result), nil
	}

	f.mu.Lock()
	if c, ok := f.inflight[pageURL]; ok {
		f.mu.Unlock()
		select {
		case <-c.done:
			return c.res, c.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	c := &call{done: make(chan struct{})}
	f.inflight[pageURL] = c
	f.mu.Unlock()

	// Cleanup must run on every exit path, panics included: a stranded
	// entry would block all later callers for this URL on c.done.
	defer func() {
		f.mu.Lock()
		delete(f.inflight, pageURL)
		f.mu.Unlock()
		close(c.done)
	}()

	c.res, c.err = f.fetch(ctx, pageURL)
	return c.res, c.err
}

func (f *Fetcher) fetch(ctx context.Context, pageURL string) (*extract.Result, error) {
	body, err := f.client.FetchPage(ctx, pageURL)
	if err != nil {
		f.log.WithError(err).WithField("url", pageURL).Debug("fetch failed")
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &NetworkError{URL: pageURL, Err: err}
	}

	res, err := f.pipeline.Extract(doc, pageURL)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(res.Price) || math.IsInf(res.Price, 0) || res.Price <= 0 {
		return nil, &extract.ExtractionError{URL: pageURL, Tried: []string{"validation"}}
	}

	// Only successful extractions are cached. Failures retry on the
	// next call instead of pinning a bad result for the full TTL.
	f.cache.Set(pageURL, res)
	return res, nil
}

// InvalidateCache drops the cached result for one URL, used after a
// manual recheck request.
func (f *Fetcher) InvalidateCache(pageURL string) {
	f.cache.Delete(pageURL)
}

// CacheStats exposes cache occupancy for the status surface.
func (f *Fetcher) CacheStats() storage.CacheStats {
	return f.cache.Stats()
}
