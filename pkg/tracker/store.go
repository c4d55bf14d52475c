package tracker

import (
	"context"
	"fmt"
	"sync"

	"pricewatch-go/pkg/logger"
	"pricewatch-go/pkg/storage"
)

const productsKey = "tracked_products"

// Catalog holds the authoritative tracked-product collection: an
// ordered slice for sweep iteration plus a URL index. The sweep
// mutates products in place and persists once per full pass.
type Catalog struct {
	storage storage.Storage

	mu    sync.RWMutex
	items []*Product
	index map[string]*Product

	log *logger.Logger
}

func NewCatalog(st storage.Storage) *Catalog {
	return &Catalog{
		storage: st,
		index:   make(map[string]*Product),
		log:     logger.GetLogger().WithComponent("catalog"),
	}
}

// Load replaces the in-memory collection with the persisted one. A
// missing key leaves the catalog empty.
func (c *Catalog) Load(ctx context.Context) error {
	var loaded []*Product
	found, err := c.storage.Get(ctx, productsKey, &loaded)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = nil
	c.index = make(map[string]*Product)
	if found {
		for _, p := range loaded {
			if p == nil || p.URL == "" {
				continue
			}
			c.items = append(c.items, p)
			c.index[p.URL] = p
		}
	}

	c.log.WithField("products", len(c.items)).Info("catalog loaded")
	return nil
}

// Add tracks a new product and persists immediately. The URL is the
// unique key; adding a duplicate fails validation.
func (c *Catalog) Add(ctx context.Context, p *Product) error {
	if err := p.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	if _, exists := c.index[p.URL]; exists {
		c.mu.Unlock()
		return &ValidationError{Field: "url", Reason: "already tracked"}
	}
	c.items = append(c.items, p)
	c.index[p.URL] = p
	c.mu.Unlock()

	return c.Save(ctx)
}

// Remove stops tracking a URL. Removing an unknown URL is a no-op.
func (c *Catalog) Remove(ctx context.Context, url string) error {
	c.mu.Lock()
	if _, exists := c.index[url]; !exists {
		c.mu.Unlock()
		return nil
	}
	delete(c.index, url)
	for i, p := range c.items {
		if p.URL == url {
			c.items = append(c.items[:i], c.items[i+1:]...)
			break
		}
	}
	c.mu.Unlock()

	return c.Save(ctx)
}

// Clear drops every tracked product.
func (c *Catalog) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.items = nil
	c.index = make(map[string]*Product)
	c.mu.Unlock()

	return c.Save(ctx)
}

func (c *Catalog) Get(url string) (*Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.index[url]
	return p, ok
}

// List returns the products in tracking order. The slice is a copy but
// the pointers are shared, matching the sweep's in-place mutation.
func (c *Catalog) List() []*Product {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Product, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// Save persists the whole collection unconditionally.
func (c *Catalog) Save(ctx context.Context) error {
	c.mu.RLock()
	snapshot := make([]*Product, len(c.items))
	copy(snapshot, c.items)
	c.mu.RUnlock()

	return c.storage.Set(ctx, productsKey, snapshot)
}

// SaveIfUnchanged is the sweep's torn-write guard: it persists only
// when the collection still has the length read at sweep start. A
// mismatch means an external add or remove raced the sweep, and
// writing would silently truncate it, so the write is skipped and the
// persisted state left alone.
func (c *Catalog) SaveIfUnchanged(ctx context.Context, expectedLen int) (bool, error) {
	c.mu.RLock()
	current := len(c.items)
	if current != expectedLen {
		c.mu.RUnlock()
		c.log.WithFields(map[string]interface{}{
			"expected": expectedLen,
			"current":  current,
		}).Warn("catalog changed mid-sweep, skipping persist")
		return false, nil
	}
	snapshot := make([]*Product, len(c.items))
	copy(snapshot, c.items)
	c.mu.RUnlock()

	if err := c.storage.Set(ctx, productsKey, snapshot); err != nil {
		return false, err
	}
	return true, nil
}

// Import merges external products into the catalog, skipping URLs
// already tracked. Invalid entries fail the whole import.
func (c *Catalog) Import(ctx context.Context, products []*Product) (int, error) {
	for i, p := range products {
		if p == nil {
			return 0, &ValidationError{Field: "products", Reason: fmt.Sprintf("entry %d is null", i)}
		}
		if err := p.Validate(); err != nil {
			return 0, err
		}
	}

	c.mu.Lock()
	added := 0
	for _, p := range products {
		if _, exists := c.index[p.URL]; exists {
			continue
		}
		c.items = append(c.items, p)
		c.index[p.URL] = p
		added++
	}
	c.mu.Unlock()

	if added == 0 {
		return 0, nil
	}
	return added, c.Save(ctx)
}

// Export returns deep copies safe to serialize without racing the
// sweep's in-place mutation.
func (c *Catalog) Export() []*Product {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Product, 0, len(c.items))
	for _, p := range c.items {
		clone := *p
		if p.PreviousPrice != nil {
			v := *p.PreviousPrice
			clone.PreviousPrice = &v
		}
		if p.LastCheck != nil {
			t := *p.LastCheck
			clone.LastCheck = &t
		}
		clone.PriceHistory = append([]PricePoint(nil), p.PriceHistory...)
		out = append(out, &clone)
	}
	return out
}
