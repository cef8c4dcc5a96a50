package status

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/magicorntech/epictetus/internal/metrics"
)

func TestBadgerStore_SaveThenLoadRoundtrips(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "epictetus-status-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	store, err := New(filepath.Join(tempDir, "status"), metrics.New(false))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	snap := Snapshot{
		LastSuccessfulSyncAt: time.Unix(1000, 0).UTC(),
		LastAttemptAt:        time.Unix(1005, 0).UTC(),
		LastOutcome:          OutcomeClean,
		ZoneCount:            2,
		ZoneNames:            []string{"example.com", "example.org"},
		ActiveSpecCount:      3,
		ObserverSynced:       true,
	}

	if err := store.Save(snap); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !loaded.LastSuccessfulSyncAt.Equal(snap.LastSuccessfulSyncAt) {
		t.Errorf("LastSuccessfulSyncAt mismatch: got %v, want %v", loaded.LastSuccessfulSyncAt, snap.LastSuccessfulSyncAt)
	}
	if loaded.ZoneCount != snap.ZoneCount || loaded.ActiveSpecCount != snap.ActiveSpecCount {
		t.Errorf("loaded snapshot mismatch: got %+v, want %+v", loaded, snap)
	}
}

func TestBadgerStore_LoadBeforeAnySaveReturnsEmptySnapshot(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "epictetus-status-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	store, err := New(filepath.Join(tempDir, "status"), metrics.New(false))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	snap, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if snap.LastOutcome != "" || snap.ZoneCount != 0 {
		t.Errorf("expected zero-value snapshot, got %+v", snap)
	}
}

func TestBadgerStore_InvalidPathErrors(t *testing.T) {
	_, err := New("/nonexistent/path/that/cannot/be/created", metrics.New(false))
	if err == nil {
		t.Fatal("expected error for invalid path but got nil")
	}
}
