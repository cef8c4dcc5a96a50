// Package cloudflare talks to the Cloudflare API directly through the
// cloudflare-go SDK so delete-by-provider-id, and its NotFound-is-success
// idempotence, has a stable id to key off of.
package cloudflare

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cloudflare/cloudflare-go"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/magicorntech/epictetus/internal/config"
	"github.com/magicorntech/epictetus/internal/domain"
	"github.com/magicorntech/epictetus/internal/metrics"
	"github.com/magicorntech/epictetus/internal/provider"
	"github.com/magicorntech/epictetus/internal/zone"
)

const perPage = 100

type Provider struct {
	client  *cloudflare.API
	metrics *metrics.Metrics
}

func New(cfg config.DNS, maxRetries int, retryDelay time.Duration, m *metrics.Metrics) (*Provider, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("cloudflare API token required")
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = maxRetries
	retryClient.RetryWaitMin = retryDelay
	retryClient.RetryWaitMax = retryDelay * 4
	retryClient.Logger = nil
	retryClient.CheckRetry = checkRetry
	retryClient.Backoff = retryablehttp.DefaultBackoff

	client, err := cloudflare.NewWithAPIToken(cfg.Token,
		cloudflare.HTTPClient(retryClient.StandardClient()))
	if err != nil {
		return nil, fmt.Errorf("create cloudflare client: %w", err)
	}

	return &Provider{client: client, metrics: m}, nil
}

// checkRetry classifies HTTP responses/transport errors: retryable on
// 5xx, 429, and transport errors; not retryable on any other 4xx, so a
// permanent error fails on the first attempt.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	if resp == nil {
		return true, nil
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return true, nil
	}
	if resp.StatusCode >= 500 {
		return true, nil
	}
	if resp.StatusCode >= 400 {
		return false, nil
	}
	return false, nil
}

func (p *Provider) ListZones(ctx context.Context) ([]zone.Zone, error) {
	zones, err := p.client.ListZonesContext(ctx)
	if err != nil {
		return nil, classify(err)
	}
	result := make([]zone.Zone, 0, len(zones.Result))
	for _, z := range zones.Result {
		result = append(result, zone.Zone{ID: z.ID, Name: z.Name})
	}
	return result, nil
}

func (p *Provider) ListA(ctx context.Context, zoneID string) ([]domain.ActualRecord, error) {
	slog.Debug("listing A records", "zone", zoneID)
	rc := cloudflare.ZoneIdentifier(zoneID)

	var all []cloudflare.DNSRecord
	page := 1
	for {
		params := cloudflare.ListDNSRecordsParams{
			Type: "A",
			ResultInfo: cloudflare.ResultInfo{
				Page:    page,
				PerPage: perPage,
			},
		}
		records, info, err := p.client.ListDNSRecords(ctx, rc, params)
		if err != nil {
			p.metrics.IncDNSRequest("list", zoneID, false)
			return nil, classify(err)
		}
		all = append(all, records...)
		if page >= info.TotalPages {
			break
		}
		page++
	}

	result := make([]domain.ActualRecord, 0, len(all))
	for _, r := range all {
		result = append(result, domain.ActualRecord{
			ProviderID: r.ID,
			Hostname:   r.Name,
			IPv4:       r.Content,
			TTL:        r.TTL,
			Proxied:    r.Proxied != nil && *r.Proxied,
			ZoneID:     zoneID,
		})
	}
	p.metrics.IncDNSRequest("list", zoneID, true)
	return result, nil
}

func (p *Provider) CreateA(ctx context.Context, zoneID, hostname, ipv4 string, ttl int, proxied bool) (string, error) {
	slog.Info("creating A record", "zone", zoneID, "hostname", hostname, "ipv4", ipv4, "ttl", ttl, "proxied", proxied)
	rc := cloudflare.ZoneIdentifier(zoneID)
	params := cloudflare.CreateDNSRecordParams{
		Type:    "A",
		Name:    hostname,
		Content: ipv4,
		TTL:     ttl,
		Proxied: &proxied,
	}

	rec, err := p.client.CreateDNSRecord(ctx, rc, params)
	if err != nil {
		p.metrics.IncDNSRequest("create", zoneID, false)
		return "", classify(err)
	}
	p.metrics.IncDNSRequest("create", zoneID, true)
	return rec.ID, nil
}

func (p *Provider) DeleteA(ctx context.Context, zoneID, providerID string) error {
	slog.Info("deleting A record", "zone", zoneID, "id", providerID)
	rc := cloudflare.ZoneIdentifier(zoneID)

	err := p.client.DeleteDNSRecord(ctx, rc, providerID)
	if err != nil {
		if isNotFound(err) {
			slog.Debug("delete target already absent, treating as success", "id", providerID)
			p.metrics.IncDNSRequest("delete", zoneID, true)
			return nil
		}
		p.metrics.IncDNSRequest("delete", zoneID, false)
		return classify(err)
	}
	p.metrics.IncDNSRequest("delete", zoneID, true)
	return nil
}

func isNotFound(err error) bool {
	var cfErr *cloudflare.Error
	if errors.As(err, &cfErr) {
		return cfErr.StatusCode == http.StatusNotFound
	}
	return false
}

// classify tags 4xx (other than 429) as a permanent error so the engine
// fails that operation immediately instead of retrying. Anything else
// (5xx/429 after retries exhausted, transport failures) is returned
// unwrapped so the engine treats it as a retried-and-still-failing
// transient error.
func classify(err error) error {
	var cfErr *cloudflare.Error
	if errors.As(err, &cfErr) {
		if cfErr.StatusCode >= 400 && cfErr.StatusCode < 500 && cfErr.StatusCode != http.StatusTooManyRequests {
			return fmt.Errorf("%w: %s", provider.ErrPermanent, err)
		}
	}
	return err
}
