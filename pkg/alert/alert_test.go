package alert

import (
	"context"
	"errors"
	"testing"

	"pricewatch-go/pkg/storage"
)

func TestEvaluate_TargetPrice(t *testing.T) {
	a := &Alert{
		ID: "a1", ProductURL: "https://example.com/w",
		Type: TypeTargetPrice, TargetPrice: 100, Currency: "USD", Enabled: true,
	}

	if ev := Evaluate(a, 101); ev.Triggered {
		t.Error("must not trigger above the target")
	}
	if ev := Evaluate(a, 100); !ev.Triggered {
		t.Error("must trigger at exactly the target")
	}
	ev := Evaluate(a, 99)
	if !ev.Triggered {
		t.Fatal("must trigger below the target")
	}
	if ev.Severity != SeveritySuccess {
		t.Errorf("severity = %q, want %q", ev.Severity, SeveritySuccess)
	}
	if ev.Message == "" {
		t.Error("a triggered evaluation needs a message")
	}
}

func TestEvaluate_PercentageDrop(t *testing.T) {
	a := &Alert{
		ID: "a1", ProductURL: "https://example.com/w",
		Type: TypePercentageDrop, TargetPercent: 10, BasePrice: 100,
		Currency: "USD", Enabled: true,
	}

	if ev := Evaluate(a, 91); ev.Triggered {
		t.Error("a 9% drop must not trigger a 10% alert")
	}
	if ev := Evaluate(a, 90); !ev.Triggered {
		t.Error("an exact 10% drop must trigger")
	}
	if ev := Evaluate(a, 50); !ev.Triggered {
		t.Error("a deeper drop must trigger")
	}
}

func TestEvaluate_PercentageRise(t *testing.T) {
	a := &Alert{
		ID: "a1", ProductURL: "https://example.com/w",
		Type: TypePercentageRise, TargetPercent: 20, BasePrice: 50,
		Currency: "USD", Enabled: true,
	}

	if ev := Evaluate(a, 59); ev.Triggered {
		t.Error("an 18% rise must not trigger a 20% alert")
	}
	ev := Evaluate(a, 60)
	if !ev.Triggered {
		t.Fatal("an exact 20% rise must trigger")
	}
	if ev.Severity != SeverityWarning {
		t.Errorf("severity = %q, want %q for a rise", ev.Severity, SeverityWarning)
	}
}

func TestEvaluate_AnyChange(t *testing.T) {
	a := &Alert{
		ID: "a1", ProductURL: "https://example.com/w",
		Type: TypeAnyChange, BasePrice: 100, Currency: "USD", Enabled: true,
	}

	if ev := Evaluate(a, 100.005); ev.Triggered {
		t.Error("sub-cent moves must not trigger")
	}
	down := Evaluate(a, 99)
	if !down.Triggered || down.Severity != SeveritySuccess {
		t.Errorf("drop evaluation = %+v, want triggered with success severity", down)
	}
	up := Evaluate(a, 101)
	if !up.Triggered || up.Severity != SeverityWarning {
		t.Errorf("rise evaluation = %+v, want triggered with warning severity", up)
	}
}

func TestEvaluate_DisabledNeverTriggers(t *testing.T) {
	a := &Alert{
		ID: "a1", ProductURL: "https://example.com/w",
		Type: TypeTargetPrice, TargetPrice: 100, Enabled: false,
	}
	if ev := Evaluate(a, 1); ev.Triggered {
		t.Error("disabled alerts must never trigger")
	}
}

func TestAlert_Validate(t *testing.T) {
	tests := []struct {
		name string
		a    *Alert
		ok   bool
	}{
		{"valid target", &Alert{ProductURL: "https://x.com", Type: TypeTargetPrice, TargetPrice: 10}, true},
		{"valid drop", &Alert{ProductURL: "https://x.com", Type: TypePercentageDrop, TargetPercent: 10, BasePrice: 100}, true},
		{"missing url", &Alert{Type: TypeTargetPrice, TargetPrice: 10}, false},
		{"unknown type", &Alert{ProductURL: "https://x.com", Type: "lottery"}, false},
		{"zero target", &Alert{ProductURL: "https://x.com", Type: TypeTargetPrice}, false},
		{"percent over 100", &Alert{ProductURL: "https://x.com", Type: TypePercentageDrop, TargetPercent: 150, BasePrice: 100}, false},
		{"drop without base", &Alert{ProductURL: "https://x.com", Type: TypePercentageDrop, TargetPercent: 10}, false},
		{"bad currency", &Alert{ProductURL: "https://x.com", Type: TypeTargetPrice, TargetPrice: 10, Currency: "XQZ"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.a.Validate()
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

func TestShouldNotify_Gates(t *testing.T) {
	s := GateSettings{MinChangePercent: 5, NotifyOnPriceUp: true, NotifyOnPriceDown: true}

	if ShouldNotify(s, 100, 96) {
		t.Error("a 4% move is below the 5% floor")
	}
	if !ShouldNotify(s, 100, 95) {
		t.Error("an exact 5% drop passes the floor")
	}

	s.NotifyOnPriceDown = false
	if ShouldNotify(s, 100, 90) {
		t.Error("drops are gated off")
	}
	if !ShouldNotify(s, 100, 110) {
		t.Error("rises are still on")
	}

	s.NotifyOnPriceUp = false
	if ShouldNotify(s, 100, 110) {
		t.Error("both directions gated off")
	}
}

func TestManager_AddEvaluatePersist(t *testing.T) {
	st := storage.NewMemoryStorage()
	ctx := context.Background()
	m := NewManager(st)

	a := &Alert{
		ProductURL: "https://example.com/w",
		Type:       TypeTargetPrice, TargetPrice: 100, Currency: "USD", Enabled: true,
	}
	if err := m.Add(ctx, a); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if a.ID == "" {
		t.Fatal("Add must assign an ID")
	}
	if a.CreatedAt.IsZero() {
		t.Fatal("Add must stamp CreatedAt")
	}

	fired, err := m.EvaluateProduct(ctx, "https://example.com/w", 95)
	if err != nil {
		t.Fatalf("EvaluateProduct failed: %v", err)
	}
	if len(fired) != 1 {
		t.Fatalf("fired = %d alerts, want 1", len(fired))
	}
	if a.TriggeredAt == nil || a.LastChecked == nil {
		t.Error("evaluation must stamp TriggeredAt and LastChecked")
	}

	// The trigger state survives a reload; the alert is not deleted.
	reloaded := NewManager(st)
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	got, ok := reloaded.Get(a.ID)
	if !ok {
		t.Fatal("alert missing after reload")
	}
	if got.TriggeredAt == nil {
		t.Error("TriggeredAt lost across reload")
	}
}

func TestManager_EvaluateOtherProductUntouched(t *testing.T) {
	m := NewManager(storage.NewMemoryStorage())
	ctx := context.Background()

	a := &Alert{
		ProductURL: "https://example.com/other",
		Type:       TypeTargetPrice, TargetPrice: 100, Enabled: true,
	}
	if err := m.Add(ctx, a); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	fired, err := m.EvaluateProduct(ctx, "https://example.com/w", 1)
	if err != nil {
		t.Fatalf("EvaluateProduct failed: %v", err)
	}
	if len(fired) != 0 {
		t.Error("alerts on other products must not fire")
	}
	if a.LastChecked != nil {
		t.Error("alerts on other products must not be stamped")
	}
}

func TestManager_SetEnabled(t *testing.T) {
	m := NewManager(storage.NewMemoryStorage())
	ctx := context.Background()

	a := &Alert{
		ProductURL: "https://example.com/w",
		Type:       TypeTargetPrice, TargetPrice: 100, Enabled: true,
	}
	if err := m.Add(ctx, a); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := m.SetEnabled(ctx, a.ID, false); err != nil {
		t.Fatalf("SetEnabled failed: %v", err)
	}

	fired, err := m.EvaluateProduct(ctx, "https://example.com/w", 1)
	if err != nil {
		t.Fatalf("EvaluateProduct failed: %v", err)
	}
	if len(fired) != 0 {
		t.Error("a disabled alert fired")
	}

	if err := m.SetEnabled(ctx, "missing", true); err == nil {
		t.Error("SetEnabled on an unknown ID must fail")
	}
}
