// Package reconcile is the orchestrator that snapshots cluster state,
// builds desired DNS state, diffs it per zone against the provider's
// actual state, and applies the minimum set of create/delete operations
// to converge them.
package reconcile

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/magicorntech/epictetus/internal/cluster"
	"github.com/magicorntech/epictetus/internal/config"
	"github.com/magicorntech/epictetus/internal/desired"
	"github.com/magicorntech/epictetus/internal/domain"
	"github.com/magicorntech/epictetus/internal/metrics"
	"github.com/magicorntech/epictetus/internal/provider"
	"github.com/magicorntech/epictetus/internal/registry"
	"github.com/magicorntech/epictetus/internal/status"
	"github.com/magicorntech/epictetus/internal/zone"
)

// zoneConcurrency bounds per-zone fetch/apply fan-out.
const zoneConcurrency = 4

// Engine drives reconciliation passes.
type Engine interface {
	// Run drives the engine's triggers (periodic timer, coalesced
	// observer signal, startup) until ctx is cancelled.
	Run(ctx context.Context) error
	// ReconcilePass runs exactly one pass and returns its results. Used
	// directly by tests and by Run's internal loop.
	ReconcilePass(ctx context.Context) (Results, error)
	// Snapshot returns the status published by the most recent pass, for
	// the status publisher to read without touching engine internals.
	Snapshot() status.Snapshot
}

type engine struct {
	observer cluster.Observer
	resolver zone.Resolver
	dns      provider.Provider
	store    status.Store
	metrics  *metrics.Metrics
	cfg      *config.Config

	protected map[string]bool

	mu           sync.Mutex // serializes passes: at most one runs at a time
	lastSnapshot status.Snapshot
	lastPassEnd  time.Time
}

func NewEngine(observer cluster.Observer, resolver zone.Resolver, dns provider.Provider, store status.Store, m *metrics.Metrics, cfg *config.Config) Engine {
	protected := make(map[string]bool, len(cfg.Reconcile.ProtectedHostnames))
	for _, h := range cfg.Reconcile.ProtectedHostnames {
		protected[h] = true
	}

	e := &engine{
		observer:  observer,
		resolver:  resolver,
		dns:       dns,
		store:     store,
		metrics:   m,
		cfg:       cfg,
		protected: protected,
	}
	if snap, err := store.Load(); err == nil {
		e.lastSnapshot = snap
	} else {
		slog.Warn("failed to load persisted status snapshot, starting fresh", "error", err)
	}
	return e
}

func (e *engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.SyncInterval)
	defer ticker.Stop()

	e.runAndLog(ctx) // run once immediately on startup

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-e.observer.Signal():
			e.waitMinInterval()
		}
		if ctx.Err() != nil {
			return nil
		}
		e.runAndLog(ctx)
	}
}

func (e *engine) waitMinInterval() {
	gap := e.cfg.Reconcile.MinInterval
	if gap <= 0 {
		return
	}
	if elapsed := time.Since(e.lastPassEnd); elapsed < gap {
		time.Sleep(gap - elapsed)
	}
}

func (e *engine) runAndLog(ctx context.Context) {
	results, err := e.ReconcilePass(ctx)
	if err != nil {
		slog.Error("reconciliation pass failed", "error", err)
		return
	}
	slog.Info("reconciliation pass complete",
		"created", len(results.Created), "deleted", len(results.Deleted), "failures", len(results.Failures))
}

// ReconcilePass is one end-to-end iteration. Passes never run
// concurrently with each other (mu).
func (e *engine) ReconcilePass(ctx context.Context) (Results, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer func() { e.lastPassEnd = time.Now() }()

	start := time.Now()
	defer func() { e.metrics.ObservePassDuration(time.Since(start)) }()

	// Step 1: snapshot nodes and services atomically at pass start. A
	// mid-pass event affects the next pass, never the current one.
	nodeSnap, serviceSnap := e.observer.Snapshot()
	specs, conflicts := registry.Resolve(serviceSnap)

	// Step 2: eligibility filter.
	eligible := desired.EligibleNodes(nodeSnap)
	e.metrics.SetEligibleNodes(len(eligible))
	e.metrics.SetActiveSpecs(len(specs))

	// Step 3: pure desired-state build.
	desiredRecords := desired.Build(ctx, e.resolver, eligible, specs)

	specHostnames := make(map[string]domain.HostnameSpec, len(specs))
	for _, s := range specs {
		specHostnames[s.Hostname] = s
	}

	// Step 4: partition by zone. A hostname with zero eligible nodes
	// still needs its zone visited, so records from a prior scale-up are
	// deleted once no eligible node backs them; a hostname resolving to no zone is
	// simply absent here and was already logged by the builder.
	zoneIDs := zonesForSpecs(ctx, e.resolver, specs)
	desiredByZone := make(map[string][]domain.DesiredRecord)
	for _, d := range desiredRecords {
		desiredByZone[d.ZoneID] = append(desiredByZone[d.ZoneID], d)
		zoneIDs[d.ZoneID] = struct{}{}
	}

	results := e.applyZones(ctx, zoneIDs, desiredByZone, specHostnames)

	outcome := status.OutcomeClean
	if len(results.Failures) > 0 {
		outcome = status.OutcomePartial
	}
	e.metrics.IncPassRun(string(outcome))

	e.publish(ctx, outcome, len(specs), conflicts)

	return results, nil
}

func zonesForSpecs(ctx context.Context, resolver zone.Resolver, specs []domain.HostnameSpec) map[string]struct{} {
	zones := make(map[string]struct{})
	for _, s := range specs {
		z, ok, err := resolver.Resolve(ctx, s.Hostname)
		if err != nil || !ok {
			continue
		}
		zones[z.ID] = struct{}{}
	}
	return zones
}

// applyZones fetches actual state and applies the diff for each touched
// zone, bounded to zoneConcurrency in flight at once.
func (e *engine) applyZones(ctx context.Context, zoneIDs map[string]struct{}, desiredByZone map[string][]domain.DesiredRecord, specHostnames map[string]domain.HostnameSpec) Results {
	var (
		mu      sync.Mutex
		results Results
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(zoneConcurrency)

	for zoneID := range zoneIDs {
		zoneID := zoneID
		g.Go(func() error {
			zr := e.reconcileZone(gctx, zoneID, desiredByZone[zoneID], specHostnames)
			mu.Lock()
			results.Created = append(results.Created, zr.Created...)
			results.Deleted = append(results.Deleted, zr.Deleted...)
			results.Failures = append(results.Failures, zr.Failures...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // per-operation errors are folded into Results, never propagated

	return results
}

func (e *engine) reconcileZone(ctx context.Context, zoneID string, desiredRecords []domain.DesiredRecord, specHostnames map[string]domain.HostnameSpec) Results {
	var out Results

	actual, err := e.dns.ListA(ctx, zoneID)
	if err != nil {
		slog.Error("failed to list actual records for zone", "zone", zoneID, "error", err)
		out.Failures = append(out.Failures, OperationResult{Op: "list", Zone: zoneID, Err: err.Error()})
		return out
	}

	owned := make([]domain.ActualRecord, 0, len(actual))
	for _, r := range actual {
		if _, known := specHostnames[r.Hostname]; known {
			owned = append(owned, r)
		}
	}

	desiredByKey := make(map[domain.RecordKey]domain.DesiredRecord, len(desiredRecords))
	for _, d := range desiredRecords {
		desiredByKey[d.Key()] = d
	}
	actualByKey := make(map[domain.RecordKey]domain.ActualRecord, len(owned))
	for _, a := range owned {
		actualByKey[a.Key()] = a
	}

	var plan Plan

	for key, a := range actualByKey {
		if e.protected[a.Hostname] {
			continue
		}
		d, stillDesired := desiredByKey[key]
		switch {
		case !stillDesired:
			plan.Delete = append(plan.Delete, deleteOp{ProviderID: a.ProviderID, Zone: zoneID, Key: key})
		case d.Attrs() != a.Attrs():
			// Attribute mismatch: delete then recreate, since records
			// are keyed by IP, not by attributes.
			plan.Delete = append(plan.Delete, deleteOp{ProviderID: a.ProviderID, Zone: zoneID, Key: key})
			plan.Create = append(plan.Create, d)
		}
	}
	for key, d := range desiredByKey {
		if _, exists := actualByKey[key]; !exists {
			if !e.protected[d.Hostname] {
				plan.Create = append(plan.Create, d)
			}
		}
	}

	// Deterministic order within a zone keeps logs/tests stable; it has
	// no bearing on correctness since deletes and creates within a zone
	// are otherwise independent.
	sort.Slice(plan.Delete, func(i, j int) bool {
		return plan.Delete[i].Key.Hostname+plan.Delete[i].Key.IPv4 < plan.Delete[j].Key.Hostname+plan.Delete[j].Key.IPv4
	})
	sort.Slice(plan.Create, func(i, j int) bool {
		return plan.Create[i].Hostname+plan.Create[i].IPv4 < plan.Create[j].Hostname+plan.Create[j].IPv4
	})

	// Deletes first, then creates: the two phases never overlap, which
	// guarantees the delete of a replace pair completes before its
	// paired create is issued.
	out.Deleted, out.Failures = e.applyDeletes(ctx, zoneID, plan.Delete, out.Failures)
	var createFailures []OperationResult
	out.Created, createFailures = e.applyCreates(ctx, zoneID, plan.Create)
	out.Failures = append(out.Failures, createFailures...)

	return out
}

func (e *engine) applyDeletes(ctx context.Context, zoneID string, ops []deleteOp, failures []OperationResult) ([]domain.RecordKey, []OperationResult) {
	var (
		mu      sync.Mutex
		deleted []domain.RecordKey
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(zoneConcurrency)

	for _, op := range ops {
		op := op
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil // cancellation: skip remaining operations
			}
			err := e.dns.DeleteA(gctx, op.Zone, op.ProviderID)
			e.metrics.IncDNSOperation("delete", op.Zone, err == nil)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.Error("failed to delete record", "zone", op.Zone, "hostname", op.Key.Hostname, "ipv4", op.Key.IPv4, "error", err)
				failures = append(failures, OperationResult{Op: "delete", Zone: op.Zone, Hostname: op.Key.Hostname, IPv4: op.Key.IPv4, Err: err.Error()})
				return nil
			}
			deleted = append(deleted, op.Key)
			return nil
		})
	}
	_ = g.Wait()
	return deleted, failures
}

func (e *engine) applyCreates(ctx context.Context, zoneID string, records []domain.DesiredRecord) ([]domain.DesiredRecord, []OperationResult) {
	var (
		mu       sync.Mutex
		created  []domain.DesiredRecord
		failures []OperationResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(zoneConcurrency)

	for _, r := range records {
		r := r
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			_, err := e.dns.CreateA(gctx, zoneID, r.Hostname, r.IPv4, r.TTL, r.Proxied)
			e.metrics.IncDNSOperation("create", zoneID, err == nil)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.Error("failed to create record", "zone", zoneID, "hostname", r.Hostname, "ipv4", r.IPv4, "error", err)
				failures = append(failures, OperationResult{Op: "create", Zone: zoneID, Hostname: r.Hostname, IPv4: r.IPv4, Err: err.Error()})
				return nil
			}
			created = append(created, r)
			return nil
		})
	}
	_ = g.Wait()
	return created, failures
}

func (e *engine) publish(ctx context.Context, outcome status.Outcome, activeSpecs int, conflicts []status.Conflict) {
	zones, err := e.resolver.Zones(ctx)
	if err != nil {
		slog.Warn("failed to list zones for status publication", "error", err)
	}
	names := make([]string, 0, len(zones))
	for _, z := range zones {
		names = append(names, z.Name)
	}
	e.metrics.SetKnownZones(len(names))

	now := time.Now()
	snap := status.Snapshot{
		LastSuccessfulSyncAt: e.lastSnapshot.LastSuccessfulSyncAt,
		LastAttemptAt:        now,
		LastOutcome:          outcome,
		ZoneCount:            len(names),
		ZoneNames:            names,
		ActiveSpecCount:      activeSpecs,
		Conflicts:            conflicts,
		ObserverSynced:       e.observer.Synced(),
	}
	if outcome == status.OutcomeClean {
		snap.LastSuccessfulSyncAt = now // only a clean pass advances the watermark
	}

	e.lastSnapshot = snap
	if err := e.store.Save(snap); err != nil {
		slog.Warn("failed to persist status snapshot", "error", err)
	}
}

// Snapshot returns the most recently published status, for the status
// publisher to read without touching engine internals.
func (e *engine) Snapshot() status.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSnapshot
}
