// Package provider defines the DNS provider client contract: typed
// access to A records in a zone, with a small semantic error taxonomy so
// the reconciliation engine never has to parse HTTP status codes itself.
package provider

import (
	"context"
	"errors"

	"github.com/magicorntech/epictetus/internal/domain"
	"github.com/magicorntech/epictetus/internal/zone"
)

// Provider is the typed wrapper over a DNS provider's API that the
// reconciliation engine drives. It also satisfies zone.Lister.
type Provider interface {
	zone.Lister

	// ListA returns all A records in the zone (internally paginated).
	ListA(ctx context.Context, zoneID string) ([]domain.ActualRecord, error)

	// CreateA creates an A record and returns its provider-assigned id.
	CreateA(ctx context.Context, zoneID, hostname, ipv4 string, ttl int, proxied bool) (string, error)

	// DeleteA deletes a record by provider id. A provider-reported
	// "not found" is treated as success: the target state is already
	// achieved.
	DeleteA(ctx context.Context, zoneID, providerID string) error
}

// ErrPermanent marks an error the engine should not retry (4xx other
// than 429): the caller already attempted once and it failed for a
// reason retrying won't fix.
var ErrPermanent = errors.New("permanent provider error")

// IsPermanent reports whether err wraps ErrPermanent.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}
