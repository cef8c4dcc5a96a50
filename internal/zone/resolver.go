// Package zone resolves a hostname to the DNS zone that owns it by
// longest-suffix match over the zones visible to the configured DNS
// credential, with a refreshable, single-flight-guarded cache.
package zone

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Zone is a DNS administrative unit.
type Zone struct {
	ID   string
	Name string
}

// Lister discovers all zones accessible to the configured credential.
// Implemented by the DNS provider client.
type Lister interface {
	ListZones(ctx context.Context) ([]Zone, error)
}

// Resolver answers "which zone owns this hostname?" by longest-suffix
// match.
type Resolver interface {
	Resolve(ctx context.Context, hostname string) (Zone, bool, error)
	Zones(ctx context.Context) ([]Zone, error)
	Refresh(ctx context.Context) error
}

type resolver struct {
	lister Lister

	mu    sync.RWMutex
	zones []Zone

	flight singleflight.Group
}

func NewResolver(lister Lister) Resolver {
	return &resolver{lister: lister}
}

// Zones returns the cached zone list, populating it on first use.
func (r *resolver) Zones(ctx context.Context) ([]Zone, error) {
	r.mu.RLock()
	zones := r.zones
	r.mu.RUnlock()
	if zones != nil {
		return zones, nil
	}
	if err := r.Refresh(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.zones, nil
}

// Refresh repopulates the zone cache. Concurrent callers collapse into a
// single in-flight list call.
func (r *resolver) Refresh(ctx context.Context) error {
	_, err, _ := r.flight.Do("refresh", func() (interface{}, error) {
		zones, err := r.lister.ListZones(ctx)
		if err != nil {
			return nil, fmt.Errorf("list zones: %w", err)
		}
		r.mu.Lock()
		r.zones = zones
		r.mu.Unlock()
		return nil, nil
	})
	return err
}

// Resolve finds the zone whose name is the longest DNS suffix of
// hostname. On a cache miss it refreshes once and retries; a second miss
// returns (_, false, nil).
func (r *resolver) Resolve(ctx context.Context, hostname string) (Zone, bool, error) {
	hostname = normalize(hostname)

	z, ok, err := r.lookup(hostname)
	if err != nil {
		return Zone{}, false, err
	}
	if ok {
		return z, true, nil
	}

	if err := r.Refresh(ctx); err != nil {
		return Zone{}, false, err
	}
	return r.lookup(hostname)
}

func (r *resolver) lookup(hostname string) (Zone, bool, error) {
	r.mu.RLock()
	zones := r.zones
	r.mu.RUnlock()

	var candidates []Zone
	for _, z := range zones {
		name := normalize(z.Name)
		if hostname == name || strings.HasSuffix(hostname, "."+name) {
			candidates = append(candidates, z)
		}
	}
	if len(candidates) == 0 {
		return Zone{}, false, nil
	}

	// Longest name wins; ties broken lexicographically. In practice
	// unreachable under standard DNS zone rules, since two zones can't
	// share a name, but kept deterministic regardless.
	sort.Slice(candidates, func(i, j int) bool {
		li, lj := len(candidates[i].Name), len(candidates[j].Name)
		if li != lj {
			return li > lj
		}
		return candidates[i].Name < candidates[j].Name
	})
	return candidates[0], true, nil
}

func normalize(hostname string) string {
	return strings.ToLower(strings.TrimSuffix(hostname, "."))
}
