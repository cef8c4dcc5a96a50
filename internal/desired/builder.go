// Package desired is a pure, deterministic function from (eligible
// nodes, hostname specs) to the set of A records that should exist.
package desired

import (
	"context"
	"log/slog"

	"github.com/magicorntech/epictetus/internal/domain"
	"github.com/magicorntech/epictetus/internal/zone"
)

// Build resolves each spec's zone once and crosses it against every
// eligible node's external IP. A spec whose hostname resolves to no zone
// is omitted and logged, but never aborts the build.
func Build(ctx context.Context, resolver zone.Resolver, nodes []domain.Node, specs []domain.HostnameSpec) []domain.DesiredRecord {
	var out []domain.DesiredRecord

	for _, spec := range specs {
		z, ok, err := resolver.Resolve(ctx, spec.Hostname)
		if err != nil {
			slog.Error("zone resolution failed, omitting spec from this pass", "hostname", spec.Hostname, "error", err)
			continue
		}
		if !ok {
			slog.Warn("hostname matches no known zone, omitting from desired state", "hostname", spec.Hostname)
			continue
		}

		for _, node := range nodes {
			if node.ExternalIPv4 == "" {
				continue
			}
			out = append(out, domain.DesiredRecord{
				Hostname: spec.Hostname,
				IPv4:     node.ExternalIPv4,
				TTL:      spec.TTL,
				Proxied:  spec.Proxied,
				ZoneID:   z.ID,
			})
		}
	}

	return out
}

// EligibleNodes filters nodes down to those fit to serve traffic.
func EligibleNodes(nodes map[string]domain.Node) []domain.Node {
	out := make([]domain.Node, 0, len(nodes))
	for _, n := range nodes {
		if n.Eligible() {
			out = append(out, n)
		}
	}
	return out
}
