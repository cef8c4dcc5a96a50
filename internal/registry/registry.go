// Package registry projects the cluster observer's raw services snapshot
// into the validated HostnameSpec set the desired state builder consumes:
// merge identical duplicates, resolve conflicting (ttl, proxied) pairs
// deterministically, and surface a diagnostic per conflicting peer.
package registry

import (
	"log/slog"
	"sort"

	"github.com/magicorntech/epictetus/internal/cluster"
	"github.com/magicorntech/epictetus/internal/domain"
	"github.com/magicorntech/epictetus/internal/status"
)

// Resolve derives the final, deduplicated HostnameSpec set from a raw
// services snapshot, keyed by owner (namespace/name). It returns the
// specs in hostname order for determinism and any conflicts found, in
// the form the status publisher surfaces.
func Resolve(services map[string]cluster.RawService) ([]domain.HostnameSpec, []status.Conflict) {
	byHostname := make(map[string][]cluster.RawService)
	for _, svc := range services {
		byHostname[svc.Spec.Hostname] = append(byHostname[svc.Spec.Hostname], svc)
	}

	var specs []domain.HostnameSpec
	var conflicts []status.Conflict

	hostnames := make([]string, 0, len(byHostname))
	for h := range byHostname {
		hostnames = append(hostnames, h)
	}
	sort.Strings(hostnames)

	for _, hostname := range hostnames {
		peers := byHostname[hostname]
		sort.Slice(peers, func(i, j int) bool { return peers[i].Owner < peers[j].Owner })

		winner := peers[0]
		specs = append(specs, winner.Spec)

		for _, peer := range peers[1:] {
			if peer.Spec.Attrs() == winner.Spec.Attrs() {
				continue // identical duplicate, merged silently
			}
			slog.Warn("conflicting hostname spec, deferring to lowest owner",
				"hostname", hostname, "winner", winner.Owner, "loser", peer.Owner)
			conflicts = append(conflicts, status.Conflict{
				Hostname: hostname,
				Winner:   winner.Owner,
				Loser:    peer.Owner,
			})
		}
	}

	return specs, conflicts
}
