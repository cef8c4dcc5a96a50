package reconcile

import "github.com/magicorntech/epictetus/internal/domain"

// Plan is the ordered set of provider mutations a pass intends to apply.
// Deletes always execute before creates within a zone; a replace
// contributes one record to each list.
type Plan struct {
	Delete []deleteOp
	Create []domain.DesiredRecord
}

type deleteOp struct {
	ProviderID string
	Zone       string
	Key        domain.RecordKey
}

// OperationResult records one failed provider call (list, create or
// delete) for diagnostics; any failure marks the pass partial.
type OperationResult struct {
	Op       string
	Zone     string
	Hostname string
	IPv4     string
	Err      string
}

// Results is what one reconciliation pass produced.
type Results struct {
	Created  []domain.DesiredRecord
	Deleted  []domain.RecordKey
	Failures []OperationResult
}

func (r Results) Clean() bool {
	return len(r.Failures) == 0
}
