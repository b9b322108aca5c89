package workflow

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/munet-project/unet/pkg/configparser"
	"github.com/munet-project/unet/pkg/diff"
	"github.com/munet-project/unet/pkg/util"
)

// Engine owns the set of in-flight and historical workflows, keyed by ID,
// with a secondary cache keyed by Key so recomputing an identical
// (old, new, options) triple reuses the prior diff instead of re-parsing.
type Engine struct {
	mu          sync.RWMutex
	workflows   map[string]*Workflow
	byKey       map[string]string // cache key -> workflow ID
	vendor      configparser.Vendor
	emergencies map[string]*Emergency
}

// NewEngine builds an orchestrator that parses vendor-formatted config text
// using vendor's preprocessing rules.
func NewEngine(vendor configparser.Vendor) *Engine {
	return &Engine{
		workflows:   map[string]*Workflow{},
		byKey:       map[string]string{},
		vendor:      vendor,
		emergencies: map[string]*Emergency{},
	}
}

// Compute runs the diff pipeline over oldConfig/newConfig and returns the
// resulting workflow. If an identical (config, options) triple was already
// computed, the cached workflow is returned unchanged.
func (e *Engine) Compute(oldConfig, newConfig string, opts Options) (*Workflow, error) {
	key := Key(oldConfig, newConfig, opts)

	e.mu.RLock()
	if id, ok := e.byKey[key]; ok {
		w := e.workflows[id]
		e.mu.RUnlock()
		return w, nil
	}
	e.mu.RUnlock()

	w := newWorkflow(uuid.New().String(), opts, oldConfig, newConfig)

	oldResult, err := configparser.Parse(e.vendor, oldConfig, configparser.DefaultParserConfig())
	if err != nil {
		w.transition(StateFailed, "system", err.Error())
		w.Error = err.Error()
		e.store(w)
		return w, fmt.Errorf("parsing old config: %w", err)
	}
	newResult, err := configparser.Parse(e.vendor, newConfig, configparser.DefaultParserConfig())
	if err != nil {
		w.transition(StateFailed, "system", err.Error())
		w.Error = err.Error()
		e.store(w)
		return w, fmt.Errorf("parsing new config: %w", err)
	}

	w.Hierarchical = diff.DiffTrees(oldResult.Root, newResult.Root)
	textDiff := diff.TextDiff(oldConfig, newConfig, 3)
	w.Semantic = diff.SemanticDiff(textDiff)

	if opts.RequireApproval && len(w.Hierarchical.Changes) > 0 {
		w.transition(StatePendingApproval, "system", "awaiting approval")
	} else {
		w.transition(StateCompleted, "system", "no approval required")
	}

	e.store(w)
	return w, nil
}

func (e *Engine) store(w *Workflow) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.workflows[w.ID] = w
	e.byKey[w.Key] = w.ID
}

// Get retrieves a workflow by ID.
func (e *Engine) Get(id string) (*Workflow, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	w, ok := e.workflows[id]
	return w, ok
}

// Approve transitions a pending workflow to Approved, subject to the
// approver-set restriction in its Options.
func (e *Engine) Approve(id, user string) error {
	w, ok := e.Get(id)
	if !ok {
		return util.NewNotFoundError("workflow", id)
	}
	if w.State != StatePendingApproval {
		return fmt.Errorf("%w: workflow %s is %s, not pending_approval", ErrInvalidTransition, id, w.State)
	}
	if !isApprover(w.Options.Approvers, user) {
		return ErrNotAuthorizedApprover
	}
	w.Approver = user
	w.transition(StateApproved, user, "approved")
	return nil
}

// Reject transitions a pending workflow to Rejected.
func (e *Engine) Reject(id, user, reason string) error {
	w, ok := e.Get(id)
	if !ok {
		return util.NewNotFoundError("workflow", id)
	}
	if w.State != StatePendingApproval {
		return fmt.Errorf("%w: workflow %s is %s, not pending_approval", ErrInvalidTransition, id, w.State)
	}
	if !isApprover(w.Options.Approvers, user) {
		return ErrNotAuthorizedApprover
	}
	w.Rejector = user
	w.transition(StateRejected, user, reason)
	return nil
}

// Apply marks a Completed or Approved workflow as applied. It does not
// itself push configuration to a device — that is the caller's concern —
// it only governs the state machine's gate.
func (e *Engine) Apply(id, actor string) error {
	w, ok := e.Get(id)
	if !ok {
		return util.NewNotFoundError("workflow", id)
	}
	switch w.State {
	case StateCompleted, StateApproved:
		w.transition(StateArchived, actor, "applied")
		return nil
	case StatePendingApproval:
		return ErrApprovalRequired
	default:
		return fmt.Errorf("%w: cannot apply workflow in state %s", ErrInvalidTransition, w.State)
	}
}

// Rollback reverts an archived workflow's node configuration conceptually
// by computing the inverse diff (new -> old) as a fresh workflow, so the
// rollback itself goes through the same approval gate as any other change.
func (e *Engine) Rollback(id string, opts Options) (*Workflow, error) {
	w, ok := e.Get(id)
	if !ok {
		return nil, util.NewNotFoundError("workflow", id)
	}
	if w.State != StateArchived {
		return nil, fmt.Errorf("%w: can only roll back an archived workflow, got %s", ErrInvalidTransition, w.State)
	}
	return e.Compute(w.NewConfig, w.OldConfig, opts)
}

// List returns every tracked workflow sorted by UpdatedAt descending.
func (e *Engine) List() []*Workflow {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Workflow, 0, len(e.workflows))
	for _, w := range e.workflows {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

// PendingApprovals returns workflows awaiting approval, oldest first.
func (e *Engine) PendingApprovals() []*Workflow {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []*Workflow
	for _, w := range e.workflows {
		if w.State == StatePendingApproval {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Snapshot flattens every tracked workflow into its persistable Record
// form, for a caller that needs workflow state to outlive this process.
func (e *Engine) Snapshot() []Record {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Record, 0, len(e.workflows))
	for _, w := range e.workflows {
		out = append(out, w.ToRecord())
	}
	return out
}

// Restore rebuilds the workflow and byKey tables from a prior Snapshot.
// It replaces whatever state the Engine currently holds.
func (e *Engine) Restore(records []Record) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.workflows = make(map[string]*Workflow, len(records))
	e.byKey = make(map[string]string, len(records))
	for _, r := range records {
		w := FromRecord(r)
		e.workflows[w.ID] = w
		e.byKey[w.Key] = w.ID
	}
}

// PruneArchivedBefore removes archived/rejected workflows older than before,
// keeping the in-memory table from growing unbounded.
func (e *Engine) PruneArchivedBefore(before time.Time) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	removed := 0
	for id, w := range e.workflows {
		if (w.State == StateArchived || w.State == StateRejected) && w.UpdatedAt.Before(before) {
			delete(e.workflows, id)
			delete(e.byKey, w.Key)
			removed++
		}
	}
	return removed
}
