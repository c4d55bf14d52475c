package fetch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pricewatch-go/pkg/extract"
)

const productPage = `<html><head><title>Widget</title>
<script type="application/ld+json">
{"@type": "Product", "name": "Test Widget",
 "offers": {"price": "42.50", "priceCurrency": "USD"}}
</script></head><body></body></html>`

// stubFetcher counts downloads and can block until released, so tests
// can pile up concurrent callers behind one in-flight fetch.
type stubFetcher struct {
	calls   int32
	body    []byte
	err     error
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *stubFetcher) FetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.started != nil {
		s.once.Do(func() { close(s.started) })
	}
	if s.release != nil {
		<-s.release
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.body, nil
}

func TestFetchPrice_CoalescesConcurrentRequests(t *testing.T) {
	stub := &stubFetcher{
		body:    []byte(productPage),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	f := NewFetcher(stub, extract.NewPipeline(nil))

	const workers = 16
	var wg sync.WaitGroup
	results := make([]*extract.Result, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.FetchPrice(context.Background(), "https://example.com/widget")
		}(i)
	}

	<-stub.started
	// Give the remaining workers time to queue behind the in-flight
	// call before it completes.
	time.Sleep(100 * time.Millisecond)
	close(stub.release)
	wg.Wait()

	if got := atomic.LoadInt32(&stub.calls); got != 1 {
		t.Errorf("underlying fetches = %d, want exactly 1", got)
	}
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d failed: %v", i, errs[i])
		}
		if results[i].Price != 42.50 {
			t.Errorf("worker %d price = %v, want 42.50", i, results[i].Price)
		}
	}
}

func TestFetchPrice_ServesFromCache(t *testing.T) {
	stub := &stubFetcher{body: []byte(productPage)}
	f := NewFetcher(stub, extract.NewPipeline(nil))
	ctx := context.Background()

	first, err := f.FetchPrice(ctx, "https://example.com/widget")
	if err != nil {
		t.Fatalf("first fetch failed: %v", err)
	}
	second, err := f.FetchPrice(ctx, "https://example.com/widget")
	if err != nil {
		t.Fatalf("second fetch failed: %v", err)
	}

	if got := atomic.LoadInt32(&stub.calls); got != 1 {
		t.Errorf("underlying fetches = %d, want 1 (second call is a cache hit)", got)
	}
	if first.Price != second.Price {
		t.Errorf("cached price %v differs from original %v", second.Price, first.Price)
	}
}

func TestFetchPrice_FailuresAreNotCached(t *testing.T) {
	stub := &stubFetcher{err: &NetworkError{URL: "https://example.com/widget", StatusCode: 503}}
	f := NewFetcher(stub, extract.NewPipeline(nil))
	ctx := context.Background()

	_, err := f.FetchPrice(ctx, "https://example.com/widget")
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("error type = %T, want *NetworkError", err)
	}

	stub.err = nil
	stub.body = []byte(productPage)
	res, err := f.FetchPrice(ctx, "https://example.com/widget")
	if err != nil {
		t.Fatalf("retry after failure should fetch again: %v", err)
	}
	if res.Price != 42.50 {
		t.Errorf("price = %v, want 42.50", res.Price)
	}
	if got := atomic.LoadInt32(&stub.calls); got != 2 {
		t.Errorf("underlying fetches = %d, want 2", got)
	}
}

// panicOnceFetcher panics on its first call and serves normally after.
type panicOnceFetcher struct {
	stubFetcher
	panicked int32
}

func (p *panicOnceFetcher) FetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	if atomic.CompareAndSwapInt32(&p.panicked, 0, 1) {
		panic("parser blew up")
	}
	return p.stubFetcher.FetchPage(ctx, pageURL)
}

func TestFetchPrice_PanicReleasesInflightEntry(t *testing.T) {
	stub := &panicOnceFetcher{stubFetcher: stubFetcher{body: []byte(productPage)}}
	f := NewFetcher(stub, extract.NewPipeline(nil))
	ctx := context.Background()

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected the first fetch to panic")
			}
		}()
		f.FetchPrice(ctx, "https://example.com/widget")
	}()

	// The in-flight entry must be gone, so a later caller runs its own
	// fetch instead of blocking on the dead call forever.
	done := make(chan struct{})
	var res *extract.Result
	var err error
	go func() {
		res, err = f.FetchPrice(ctx, "https://example.com/widget")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second fetch blocked on a stranded in-flight entry")
	}
	if err != nil {
		t.Fatalf("second fetch failed: %v", err)
	}
	if res.Price != 42.50 {
		t.Errorf("price = %v, want 42.50", res.Price)
	}
}

func TestFetchPrice_InvalidateForcesRefetch(t *testing.T) {
	stub := &stubFetcher{body: []byte(productPage)}
	f := NewFetcher(stub, extract.NewPipeline(nil))
	ctx := context.Background()

	if _, err := f.FetchPrice(ctx, "https://example.com/widget"); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	f.InvalidateCache("https://example.com/widget")
	if _, err := f.FetchPrice(ctx, "https://example.com/widget"); err != nil {
		t.Fatalf("refetch failed: %v", err)
	}

	if got := atomic.LoadInt32(&stub.calls); got != 2 {
		t.Errorf("underlying fetches = %d, want 2 after invalidation", got)
	}
}
