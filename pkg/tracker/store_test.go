package tracker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"pricewatch-go/pkg/extract"
	"pricewatch-go/pkg/storage"
)

func testProduct(url string, price float64) *Product {
	return NewProduct(&extract.Result{
		URL:        url,
		Name:       "Test Widget",
		Price:      price,
		Currency:   "USD",
		Timestamp:  time.Now(),
		Confidence: 0.95,
	})
}

func TestApplyResult_PriceChange(t *testing.T) {
	p := testProduct("https://example.com/w", 100)
	at := time.Now()

	changed := p.ApplyResult(&extract.Result{Price: 90, Currency: "USD", Confidence: 0.85}, at)
	if !changed {
		t.Fatal("a 10 unit move must count as changed")
	}
	if p.Price != 90 {
		t.Errorf("Price = %v, want 90", p.Price)
	}
	if p.PreviousPrice == nil || *p.PreviousPrice != 100 {
		t.Errorf("PreviousPrice = %v, want 100", p.PreviousPrice)
	}
	if len(p.PriceHistory) != 1 || p.PriceHistory[0].Price != 100 {
		t.Errorf("history = %+v, want one entry holding the old price", p.PriceHistory)
	}
	if p.InitialPrice != 100 {
		t.Errorf("InitialPrice = %v, must never move", p.InitialPrice)
	}
	if p.Confidence != 0.85 {
		t.Errorf("Confidence = %v, want the newest extraction's 0.85", p.Confidence)
	}
}

func TestApplyResult_SubCentMoveIsNotAChange(t *testing.T) {
	p := testProduct("https://example.com/w", 100)

	changed := p.ApplyResult(&extract.Result{Price: 100.005, Currency: "USD"}, time.Now())
	if changed {
		t.Error("moves within 0.01 must not count as changes")
	}
	if p.PreviousPrice != nil {
		t.Error("PreviousPrice must stay unset without a change")
	}
	if len(p.PriceHistory) != 0 {
		t.Error("history must stay empty without a change")
	}
	if p.LastCheckStatus != StatusSuccess {
		t.Errorf("LastCheckStatus = %q, the check itself succeeded", p.LastCheckStatus)
	}
}

func TestHistoryCap(t *testing.T) {
	p := testProduct("https://example.com/w", 1)

	// 40 distinct changes: prices 2..41, so history records 1..40.
	for i := 2; i <= 41; i++ {
		p.ApplyResult(&extract.Result{Price: float64(i), Currency: "USD"}, time.Now())
	}

	if len(p.PriceHistory) != 30 {
		t.Fatalf("history length = %d, want 30", len(p.PriceHistory))
	}
	// The 30 most recent superseded prices are 11..40, in order.
	for i, pt := range p.PriceHistory {
		want := float64(11 + i)
		if pt.Price != want {
			t.Errorf("history[%d].Price = %v, want %v", i, pt.Price, want)
		}
	}
}

func TestRecordFailure(t *testing.T) {
	p := testProduct("https://example.com/w", 100)
	at := time.Now()

	p.RecordFailure(StatusError, errors.New("connection refused"), at)
	if p.LastCheckStatus != StatusError {
		t.Errorf("LastCheckStatus = %q, want %q", p.LastCheckStatus, StatusError)
	}
	if p.LastError != "connection refused" {
		t.Errorf("LastError = %q", p.LastError)
	}
	if p.Price != 100 {
		t.Error("failures must never touch the price")
	}
}

func TestProduct_Validate(t *testing.T) {
	tests := []struct {
		name string
		p    *Product
		ok   bool
	}{
		{"valid", &Product{URL: "https://example.com/w", Price: 10}, true},
		{"empty url", &Product{Price: 10}, false},
		{"relative url", &Product{URL: "/w", Price: 10}, false},
		{"ftp scheme", &Product{URL: "ftp://example.com/w", Price: 10}, false},
		{"zero price", &Product{URL: "https://example.com/w"}, false},
		{"negative price", &Product{URL: "https://example.com/w", Price: -5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if !tt.ok {
				var vErr *ValidationError
				if !errors.As(err, &vErr) {
					t.Errorf("error = %v, want *ValidationError", err)
				}
			}
		})
	}
}

func TestCatalog_AddRemovePersist(t *testing.T) {
	st := storage.NewMemoryStorage()
	ctx := context.Background()
	c := NewCatalog(st)

	if err := c.Add(ctx, testProduct("https://example.com/a", 10)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := c.Add(ctx, testProduct("https://example.com/b", 20)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := c.Add(ctx, testProduct("https://example.com/a", 10)); err == nil {
		t.Error("duplicate URL must be rejected")
	}

	reloaded := NewCatalog(st)
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if reloaded.Len() != 2 {
		t.Fatalf("reloaded Len() = %d, want 2", reloaded.Len())
	}
	if got := reloaded.List(); got[0].URL != "https://example.com/a" || got[1].URL != "https://example.com/b" {
		t.Error("tracking order must survive a reload")
	}

	if err := c.Remove(ctx, "https://example.com/a"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, ok := c.Get("https://example.com/a"); ok {
		t.Error("removed product still present")
	}
	if err := c.Remove(ctx, "https://example.com/never-tracked"); err != nil {
		t.Errorf("removing an unknown URL must be a no-op, got %v", err)
	}
}

func TestCatalog_TornWriteGuard(t *testing.T) {
	st := storage.NewMemoryStorage()
	ctx := context.Background()
	c := NewCatalog(st)

	if err := c.Add(ctx, testProduct("https://example.com/a", 10)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	// Sweep reads the length, then an external add races it.
	startLen := c.Len()
	if err := c.Add(ctx, testProduct("https://example.com/b", 20)); err != nil {
		t.Fatalf("racing Add failed: %v", err)
	}

	// Mutate a product as the sweep would, then try the guarded save.
	p, _ := c.Get("https://example.com/a")
	p.ApplyResult(&extract.Result{Price: 5, Currency: "USD"}, time.Now())

	saved, err := c.SaveIfUnchanged(ctx, startLen)
	if err != nil {
		t.Fatalf("SaveIfUnchanged failed: %v", err)
	}
	if saved {
		t.Fatal("guard must skip the write when the length changed mid-sweep")
	}

	// Persisted state keeps both products and the pre-sweep price.
	reloaded := NewCatalog(st)
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if reloaded.Len() != 2 {
		t.Fatalf("persisted Len() = %d, want 2", reloaded.Len())
	}
	if got, _ := reloaded.Get("https://example.com/a"); got.Price != 10 {
		t.Errorf("persisted price = %v, the skipped write must not leak", got.Price)
	}

	// With a matching length the save goes through.
	saved, err = c.SaveIfUnchanged(ctx, c.Len())
	if err != nil {
		t.Fatalf("SaveIfUnchanged failed: %v", err)
	}
	if !saved {
		t.Fatal("guard must allow the write when the length matches")
	}
}

func TestCatalog_ImportSkipsDuplicates(t *testing.T) {
	st := storage.NewMemoryStorage()
	ctx := context.Background()
	c := NewCatalog(st)

	if err := c.Add(ctx, testProduct("https://example.com/a", 10)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	added, err := c.Import(ctx, []*Product{
		testProduct("https://example.com/a", 99),
		testProduct("https://example.com/b", 20),
		testProduct("https://example.com/c", 30),
	})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if added != 2 {
		t.Errorf("added = %d, want 2 (duplicate skipped)", added)
	}
	if p, _ := c.Get("https://example.com/a"); p.Price != 10 {
		t.Error("import must not overwrite an already tracked product")
	}
}

func TestCatalog_ImportRejectsInvalid(t *testing.T) {
	c := NewCatalog(storage.NewMemoryStorage())

	_, err := c.Import(context.Background(), []*Product{
		testProduct("https://example.com/a", 10),
		{URL: "not-a-url", Price: 5},
	})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	if c.Len() != 0 {
		t.Error("a failed import must not partially apply")
	}
}

func TestCatalog_ExportIsDetached(t *testing.T) {
	st := storage.NewMemoryStorage()
	ctx := context.Background()
	c := NewCatalog(st)

	if err := c.Add(ctx, testProduct("https://example.com/a", 10)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	exported := c.Export()
	exported[0].Price = 999
	exported[0].Name = "mutated"

	p, _ := c.Get("https://example.com/a")
	if p.Price != 10 || p.Name == "mutated" {
		t.Error("mutating an export must not touch the catalog")
	}
}

func TestCatalog_LoadMissingKey(t *testing.T) {
	c := NewCatalog(storage.NewMemoryStorage())
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load of an empty store must succeed: %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func BenchmarkApplyResult(b *testing.B) {
	p := testProduct("https://example.com/w", 1)
	for i := 0; i < b.N; i++ {
		p.ApplyResult(&extract.Result{Price: float64(i%1000) + 1, Currency: "USD"}, time.Time{})
	}
	_ = fmt.Sprint(p.Price)
}
