package zone

import (
	"context"
	"testing"
)

type fakeLister struct {
	zones []Zone
	calls int
	err   error
}

func (f *fakeLister) ListZones(ctx context.Context) ([]Zone, error) {
	f.calls++
	return f.zones, f.err
}

func TestResolve_LongestSuffixWins(t *testing.T) {
	lister := &fakeLister{zones: []Zone{
		{ID: "z1", Name: "example.com"},
		{ID: "z2", Name: "sub.example.com"},
	}}
	r := NewResolver(lister)

	z, ok, err := r.Resolve(context.Background(), "svc.sub.example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || z.ID != "z2" {
		t.Fatalf("expected z2 (longest suffix), got %+v ok=%v", z, ok)
	}
}

func TestResolve_ExactZoneApexMatches(t *testing.T) {
	lister := &fakeLister{zones: []Zone{{ID: "z1", Name: "example.com"}}}
	r := NewResolver(lister)

	z, ok, err := r.Resolve(context.Background(), "EXAMPLE.com.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || z.ID != "z1" {
		t.Fatalf("expected apex match, got %+v ok=%v", z, ok)
	}
}

func TestResolve_NoMatchReturnsFalse(t *testing.T) {
	lister := &fakeLister{zones: []Zone{{ID: "z1", Name: "example.com"}}}
	r := NewResolver(lister)

	_, ok, err := r.Resolve(context.Background(), "app.other.org")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected no match")
	}
}

func TestResolve_CacheMissTriggersSingleRefresh(t *testing.T) {
	lister := &fakeLister{zones: []Zone{{ID: "z1", Name: "example.com"}}}
	r := NewResolver(lister)

	if _, _, err := r.Resolve(context.Background(), "app.example.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lister.calls != 1 {
		t.Fatalf("expected exactly one list call, got %d", lister.calls)
	}

	if _, _, err := r.Resolve(context.Background(), "other.example.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lister.calls != 1 {
		t.Fatalf("expected cached lookup to avoid a second list call, got %d calls", lister.calls)
	}
}

func TestZones_PopulatesOnFirstUse(t *testing.T) {
	lister := &fakeLister{zones: []Zone{{ID: "z1", Name: "example.com"}}}
	r := NewResolver(lister)

	zones, err := r.Zones(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(zones) != 1 {
		t.Fatalf("expected 1 zone, got %d", len(zones))
	}
}
