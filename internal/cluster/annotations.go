package cluster

import (
	"log/slog"
	"strconv"
	"strings"

	corev1 "k8s.io/api/core/v1"

	"github.com/magicorntech/epictetus/internal/domain"
)

// Service annotations that drive DNS management.
const (
	annotationEnabled  = "epictetus.io/dns-enabled"
	annotationHostname = "epictetus.io/hostname"
	annotationTTL      = "epictetus.io/ttl"
	annotationProxied  = "epictetus.io/proxied"

	minTTL = 1
	maxTTL = 1 << 31 // exclusive upper bound
)

// parseServiceSpec never errors: unparseable optional fields fall back
// to defaults with a warning, and a disabled or hostname-less service
// simply yields ok=false, omitting it from the spec set without
// aborting anything.
func parseServiceSpec(svc *corev1.Service) (domain.HostnameSpec, bool) {
	owner := svc.Namespace + "/" + svc.Name
	annotations := svc.Annotations

	enabledRaw, present := annotations[annotationEnabled]
	if !present || !strings.EqualFold(enabledRaw, "true") {
		return domain.HostnameSpec{}, false
	}

	hostname := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(annotations[annotationHostname]), "."))
	if hostname == "" {
		slog.Warn("dns-enabled service missing hostname annotation", "service", owner)
		return domain.HostnameSpec{}, false
	}

	ttl := domain.DefaultTTL
	if raw, ok := annotations[annotationTTL]; ok && raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= minTTL && parsed < maxTTL {
			ttl = parsed
		} else {
			slog.Warn("unparseable ttl annotation, using default", "service", owner, "value", raw, "default", domain.DefaultTTL)
		}
	}

	proxied := false
	if raw, ok := annotations[annotationProxied]; ok && raw != "" {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			proxied = parsed
		} else {
			slog.Warn("unparseable proxied annotation, using default", "service", owner, "value", raw)
		}
	}

	return domain.HostnameSpec{
		Hostname: hostname,
		TTL:      ttl,
		Proxied:  proxied,
		Owner:    owner,
	}, true
}
