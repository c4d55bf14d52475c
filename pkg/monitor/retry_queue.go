package monitor

import (
	"context"
	"sort"
	"sync"
	"time"

	"pricewatch-go/pkg/logger"
	"pricewatch-go/pkg/storage"
)

const retryQueueKey = "retry_queue"

// RetryEntry tracks one URL that failed its last check. Attempts
// counts retry-pass fetches, not the original sweep failure.
type RetryEntry struct {
	URL         string    `json:"url"`
	Attempts    int       `json:"attempts"`
	FirstFailed time.Time `json:"first_failed"`
	LastError   string    `json:"last_error,omitempty"`
}

// RetryQueue is the persisted set of URLs awaiting a retry pass.
type RetryQueue struct {
	storage storage.Storage

	mu      sync.Mutex
	entries map[string]*RetryEntry

	now func() time.Time
	log *logger.Logger
}

func NewRetryQueue(st storage.Storage) *RetryQueue {
	return &RetryQueue{
		storage: st,
		entries: make(map[string]*RetryEntry),
		now:     time.Now,
		log:     logger.GetLogger().WithComponent("retry_queue"),
	}
}

func (q *RetryQueue) Load(ctx context.Context) error {
	var loaded map[string]*RetryEntry
	found, err := q.storage.Get(ctx, retryQueueKey, &loaded)
	if err != nil {
		return err
	}

	q.mu.Lock()
	if found && loaded != nil {
		q.entries = loaded
	} else {
		q.entries = make(map[string]*RetryEntry)
	}
	q.mu.Unlock()
	return nil
}

// Record enqueues a failed URL or refreshes its last error. The sweep
// calls it on every per-item failure.
func (q *RetryQueue) Record(ctx context.Context, url string, cause error) {
	q.mu.Lock()
	e, ok := q.entries[url]
	if !ok {
		e = &RetryEntry{URL: url, FirstFailed: q.now()}
		q.entries[url] = e
	}
	if cause != nil {
		e.LastError = cause.Error()
	}
	q.mu.Unlock()

	q.persist(ctx)
}

// Bump increments the attempt counter after a failed retry.
func (q *RetryQueue) Bump(ctx context.Context, url string, cause error) {
	q.mu.Lock()
	if e, ok := q.entries[url]; ok {
		e.Attempts++
		if cause != nil {
			e.LastError = cause.Error()
		}
	}
	q.mu.Unlock()

	q.persist(ctx)
}

// Remove drops a URL after a successful check or at the retry ceiling.
func (q *RetryQueue) Remove(ctx context.Context, url string) {
	q.mu.Lock()
	if _, ok := q.entries[url]; !ok {
		q.mu.Unlock()
		return
	}
	delete(q.entries, url)
	q.mu.Unlock()

	q.persist(ctx)
}

// List returns entries ordered by first failure, oldest first.
func (q *RetryQueue) List() []*RetryEntry {
	q.mu.Lock()
	out := make([]*RetryEntry, 0, len(q.entries))
	for _, e := range q.entries {
		copied := *e
		out = append(out, &copied)
	}
	q.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].FirstFailed.Before(out[j].FirstFailed)
	})
	return out
}

func (q *RetryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.entries)
}

func (q *RetryQueue) persist(ctx context.Context) {
	q.mu.Lock()
	snapshot := make(map[string]*RetryEntry, len(q.entries))
	for url, e := range q.entries {
		copied := *e
		snapshot[url] = &copied
	}
	q.mu.Unlock()

	if err := q.storage.Set(ctx, retryQueueKey, snapshot); err != nil {
		q.log.WithError(err).Warn("retry queue persist failed")
	}
}
