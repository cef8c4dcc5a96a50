// Package health implements a read-only HTTP surface over the engine's
// last published status.
package health

import (
	"encoding/json"
	"net/http"

	"github.com/magicorntech/epictetus/internal/cluster"
	"github.com/magicorntech/epictetus/internal/status"
)

// StatusSource is read by the publisher; it never mutates engine state.
type StatusSource interface {
	Snapshot() status.Snapshot
}

type Publisher struct {
	engine   StatusSource
	observer cluster.Observer
}

func NewPublisher(engine StatusSource, observer cluster.Observer) *Publisher {
	return &Publisher{engine: engine, observer: observer}
}

// Handler returns the mux for the three standard probe endpoints.
func (p *Publisher) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", p.handleStatus)
	mux.HandleFunc("/health/ready", p.handleReady)
	mux.HandleFunc("/health/live", p.handleLive)
	return mux
}

// handleLive reports process liveness: if this handler runs at all, the
// process is responsive.
func (p *Publisher) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports readiness: the initial observer sync must have
// completed and the zone list must be populated.
func (p *Publisher) handleReady(w http.ResponseWriter, r *http.Request) {
	snap := p.engine.Snapshot()
	ready := p.observer.Synced() && snap.ZoneCount > 0

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]interface{}{
		"ready":          ready,
		"observerSynced": p.observer.Synced(),
		"zoneCount":      snap.ZoneCount,
	})
}

// handleStatus reports the full status object.
func (p *Publisher) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := p.engine.Snapshot()

	code := http.StatusOK
	if snap.LastOutcome == status.OutcomeFailed || !p.observer.Synced() {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, snap)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
