package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/munet-project/unet/pkg/configparser"
)

const oldCfg = "interface Vlan100\n description old\n"
const newCfg = "interface Vlan100\n description new\n"

func TestEngineComputeWithoutApprovalCompletes(t *testing.T) {
	e := NewEngine(configparser.VendorCisco)
	w, err := e.Compute(oldCfg, newCfg, Options{NodeID: "leaf1-ny"})
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if w.State != StateCompleted {
		t.Errorf("State = %q, want %q", w.State, StateCompleted)
	}
	if w.Hierarchical == nil || len(w.Hierarchical.Changes) == 0 {
		t.Error("expected at least one hierarchical change")
	}
}

func TestEngineComputeWithApprovalPends(t *testing.T) {
	e := NewEngine(configparser.VendorCisco)
	w, err := e.Compute(oldCfg, newCfg, Options{NodeID: "leaf1-ny", RequireApproval: true})
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if w.State != StatePendingApproval {
		t.Errorf("State = %q, want %q", w.State, StatePendingApproval)
	}
}

func TestEngineComputeNoChangesSkipsApproval(t *testing.T) {
	e := NewEngine(configparser.VendorCisco)
	w, err := e.Compute(oldCfg, oldCfg, Options{NodeID: "leaf1-ny", RequireApproval: true})
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if w.State != StateCompleted {
		t.Errorf("State = %q, want %q for a no-op change", w.State, StateCompleted)
	}
}

func TestEngineComputeCachesIdenticalTriple(t *testing.T) {
	e := NewEngine(configparser.VendorCisco)
	opts := Options{NodeID: "leaf1-ny"}
	w1, err := e.Compute(oldCfg, newCfg, opts)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	w2, err := e.Compute(oldCfg, newCfg, opts)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if w1.ID != w2.ID {
		t.Errorf("expected cached workflow to be reused, got distinct IDs %s vs %s", w1.ID, w2.ID)
	}
}

func TestEngineApproveAndApply(t *testing.T) {
	e := NewEngine(configparser.VendorCisco)
	w, err := e.Compute(oldCfg, newCfg, Options{NodeID: "leaf1-ny", RequireApproval: true, Approvers: []string{"alice"}})
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}

	if err := e.Approve(w.ID, "bob"); !errors.Is(err, ErrNotAuthorizedApprover) {
		t.Fatalf("expected ErrNotAuthorizedApprover, got %v", err)
	}

	if err := e.Apply(w.ID, "alice"); !errors.Is(err, ErrApprovalRequired) {
		t.Fatalf("expected ErrApprovalRequired before approval, got %v", err)
	}

	if err := e.Approve(w.ID, "alice"); err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if got, _ := e.Get(w.ID); got.State != StateApproved {
		t.Errorf("State after approve = %q, want %q", got.State, StateApproved)
	}

	if err := e.Apply(w.ID, "alice"); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	got, _ := e.Get(w.ID)
	if got.State != StateArchived {
		t.Errorf("State after apply = %q, want %q", got.State, StateArchived)
	}
	if len(got.History()) != 3 {
		t.Errorf("History() length = %d, want 3 (pending -> approved -> archived)", len(got.History()))
	}
}

func TestEngineRejectRequiresApprover(t *testing.T) {
	e := NewEngine(configparser.VendorCisco)
	w, err := e.Compute(oldCfg, newCfg, Options{NodeID: "leaf1-ny", RequireApproval: true, Approvers: []string{"alice"}})
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}

	if err := e.Reject(w.ID, "mallory", "no"); !errors.Is(err, ErrNotAuthorizedApprover) {
		t.Fatalf("expected ErrNotAuthorizedApprover, got %v", err)
	}

	if err := e.Reject(w.ID, "alice", "not now"); err != nil {
		t.Fatalf("Reject() error = %v", err)
	}
	got, _ := e.Get(w.ID)
	if got.State != StateRejected {
		t.Errorf("State = %q, want %q", got.State, StateRejected)
	}
	if got.Rejector != "alice" {
		t.Errorf("Rejector = %q, want alice", got.Rejector)
	}
}

func TestEngineRollbackComputesInverse(t *testing.T) {
	e := NewEngine(configparser.VendorCisco)
	w, err := e.Compute(oldCfg, newCfg, Options{NodeID: "leaf1-ny"})
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if err := e.Apply(w.ID, "alice"); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	rb, err := e.Rollback(w.ID, Options{NodeID: "leaf1-ny"})
	if err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}
	if rb.OldConfig != newCfg || rb.NewConfig != oldCfg {
		t.Error("rollback workflow should swap old/new config")
	}
}

func TestEngineRollbackRequiresArchived(t *testing.T) {
	e := NewEngine(configparser.VendorCisco)
	w, err := e.Compute(oldCfg, newCfg, Options{NodeID: "leaf1-ny"})
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if _, err := e.Rollback(w.ID, Options{NodeID: "leaf1-ny"}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestEnginePendingApprovalsAndList(t *testing.T) {
	e := NewEngine(configparser.VendorCisco)
	if _, err := e.Compute(oldCfg, newCfg, Options{NodeID: "leaf1-ny", RequireApproval: true}); err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if _, err := e.Compute(oldCfg, oldCfg+"!done\n", Options{NodeID: "leaf2-ny"}); err != nil {
		t.Fatalf("Compute() error = %v", err)
	}

	pending := e.PendingApprovals()
	if len(pending) != 1 {
		t.Fatalf("PendingApprovals() length = %d, want 1", len(pending))
	}

	all := e.List()
	if len(all) != 2 {
		t.Fatalf("List() length = %d, want 2", len(all))
	}
}

func TestEnginePruneArchivedBefore(t *testing.T) {
	e := NewEngine(configparser.VendorCisco)
	w, err := e.Compute(oldCfg, newCfg, Options{NodeID: "leaf1-ny"})
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if err := e.Apply(w.ID, "alice"); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if n := e.PruneArchivedBefore(time.Now().Add(-time.Hour)); n != 0 {
		t.Errorf("PruneArchivedBefore() with cutoff in the past pruned %d, want 0", n)
	}
	if n := e.PruneArchivedBefore(time.Now().Add(time.Hour)); n != 1 {
		t.Errorf("PruneArchivedBefore() with cutoff in the future pruned %d, want 1", n)
	}
	if _, ok := e.Get(w.ID); ok {
		t.Error("workflow should have been pruned")
	}
}

func TestKeyIsStableAndSensitiveToOptions(t *testing.T) {
	k1 := Key(oldCfg, newCfg, Options{NodeID: "leaf1-ny"})
	k2 := Key(oldCfg, newCfg, Options{NodeID: "leaf1-ny"})
	if k1 != k2 {
		t.Error("Key() should be deterministic")
	}
	k3 := Key(oldCfg, newCfg, Options{NodeID: "leaf2-ny"})
	if k1 == k3 {
		t.Error("Key() should differ when NodeID differs")
	}
}

func TestWorkflowIsTerminal(t *testing.T) {
	w := newWorkflow("id", Options{}, oldCfg, newCfg)
	if w.IsTerminal() {
		t.Error("a freshly computed workflow should not be terminal")
	}
	w.transition(StateFailed, "system", "boom")
	if !w.IsTerminal() {
		t.Error("a failed workflow should be terminal")
	}
}
