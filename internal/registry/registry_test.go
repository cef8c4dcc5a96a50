package registry

import (
	"testing"

	"github.com/magicorntech/epictetus/internal/cluster"
	"github.com/magicorntech/epictetus/internal/domain"
)

func TestResolve_MergesIdenticalDuplicatesSilently(t *testing.T) {
	services := map[string]cluster.RawService{
		"default/a": {Owner: "default/a", Spec: domain.HostnameSpec{Hostname: "app.example.com", TTL: 300, Owner: "default/a"}},
		"default/b": {Owner: "default/b", Spec: domain.HostnameSpec{Hostname: "app.example.com", TTL: 300, Owner: "default/b"}},
	}

	specs, conflicts := Resolve(services)
	if len(specs) != 1 {
		t.Fatalf("expected 1 merged spec, got %d", len(specs))
	}
	if len(conflicts) != 0 {
		t.Fatalf("expected no conflicts for identical duplicates, got %+v", conflicts)
	}
}

func TestResolve_ConflictingAttrsDeferToLowestOwner(t *testing.T) {
	services := map[string]cluster.RawService{
		"default/zzz": {Owner: "default/zzz", Spec: domain.HostnameSpec{Hostname: "app.example.com", TTL: 600, Owner: "default/zzz"}},
		"default/aaa": {Owner: "default/aaa", Spec: domain.HostnameSpec{Hostname: "app.example.com", TTL: 300, Owner: "default/aaa"}},
	}

	specs, conflicts := Resolve(services)
	if len(specs) != 1 {
		t.Fatalf("expected 1 spec, got %d", len(specs))
	}
	if specs[0].Owner != "default/aaa" || specs[0].TTL != 300 {
		t.Fatalf("expected lowest owner default/aaa to win, got %+v", specs[0])
	}
	if len(conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %d", len(conflicts))
	}
	if conflicts[0].Winner != "default/aaa" || conflicts[0].Loser != "default/zzz" {
		t.Errorf("unexpected conflict record: %+v", conflicts[0])
	}
}

func TestResolve_IndependentHostnamesDoNotConflict(t *testing.T) {
	services := map[string]cluster.RawService{
		"default/a": {Owner: "default/a", Spec: domain.HostnameSpec{Hostname: "a.example.com", Owner: "default/a"}},
		"default/b": {Owner: "default/b", Spec: domain.HostnameSpec{Hostname: "b.example.com", Owner: "default/b"}},
	}

	specs, conflicts := Resolve(services)
	if len(specs) != 2 {
		t.Fatalf("expected 2 specs, got %d", len(specs))
	}
	if len(conflicts) != 0 {
		t.Fatalf("expected no conflicts, got %+v", conflicts)
	}
}

func TestResolve_OutputIsSortedByHostname(t *testing.T) {
	services := map[string]cluster.RawService{
		"default/z": {Owner: "default/z", Spec: domain.HostnameSpec{Hostname: "zeta.example.com", Owner: "default/z"}},
		"default/a": {Owner: "default/a", Spec: domain.HostnameSpec{Hostname: "alpha.example.com", Owner: "default/a"}},
	}

	specs, _ := Resolve(services)
	if len(specs) != 2 || specs[0].Hostname != "alpha.example.com" || specs[1].Hostname != "zeta.example.com" {
		t.Fatalf("expected sorted output, got %+v", specs)
	}
}
