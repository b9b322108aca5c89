// Package workflow implements the change workflow state machine: a proposed
// configuration change is computed into a diff, optionally routed through
// approval, applied, and recorded in an immutable history.
package workflow

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/munet-project/unet/pkg/diff"
	"github.com/munet-project/unet/pkg/util"
)

// State is a workflow's position in its lifecycle.
type State string

const (
	StateComputing       State = "computing"
	StateCompleted       State = "completed"
	StatePendingApproval State = "pending_approval"
	StateFailed          State = "failed"
	StateApproved        State = "approved"
	StateRejected        State = "rejected"
	StateArchived        State = "archived"
)

// Options controls how a workflow computes and gates its change.
type Options struct {
	NodeID          string
	RequireApproval bool
	Approvers       []string // usernames authorized to approve/reject; empty means any user
}

// Source identifies where a workflow's change originated. A normal workflow
// is Internal; an emergency bypass stamps Source=External per the audit
// pipeline's bypass-marker contract (see ApprovedBy).
type Source string

const (
	SourceInternal Source = "internal"
	SourceExternal Source = "external"
)

// emergencyBypassPrefix marks ApprovedBy as an emergency bypass rather than a
// human approver's username. The downstream audit pipeline treats any
// ApprovedBy value carrying this prefix as a bypass, not a reviewed approval.
const emergencyBypassPrefix = "EMERGENCY_BYPASS:"

// emergencyApprovedBy formats the ApprovedBy marker for a workflow applied
// through an emergency bypass rather than the normal approval gate.
func emergencyApprovedBy(actor string) string {
	return emergencyBypassPrefix + actor
}

// HistoryEntry is one immutable record of a workflow's lifecycle transition.
type HistoryEntry struct {
	At    time.Time
	From  State
	To    State
	Actor string
	Note  string
}

// Workflow is a single change's journey from diff to (possibly) applied.
type Workflow struct {
	ID      string
	NodeID  string
	Key     string // cache key: hash(old||new||options)
	State   State
	Options Options

	OldConfig string
	NewConfig string

	Hierarchical *diff.HierarchicalDiff
	Semantic     []diff.FunctionalChange

	CreatedAt time.Time
	UpdatedAt time.Time

	Approver string
	Rejector string
	Error    string

	// Source and ApprovedBy distinguish a normally-approved workflow from one
	// applied through an emergency bypass. A bypassed workflow carries
	// Source=SourceExternal and ApprovedBy=emergencyApprovedBy(actor); the
	// workflow record itself is not specialized any further, so bypasses
	// flow through the same history, cache, and persistence paths as any
	// other change.
	Source     Source
	ApprovedBy string

	mu      sync.Mutex
	history []HistoryEntry
}

// Key computes the cache key for a (oldConfig, newConfig, options) triple.
// Workflows with the same key can reuse a prior computation rather than
// re-running the diff pipeline.
func Key(oldConfig, newConfig string, opts Options) string {
	h := sha256.New()
	h.Write([]byte(oldConfig))
	h.Write([]byte{0})
	h.Write([]byte(newConfig))
	h.Write([]byte{0})
	h.Write([]byte(opts.NodeID))
	h.Write([]byte{0})
	if opts.RequireApproval {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	for _, a := range opts.Approvers {
		h.Write([]byte(a))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func newWorkflow(id string, opts Options, oldConfig, newConfig string) *Workflow {
	now := time.Now()
	return &Workflow{
		ID:        id,
		NodeID:    opts.NodeID,
		Key:       Key(oldConfig, newConfig, opts),
		State:     StateComputing,
		Options:   opts,
		OldConfig: oldConfig,
		NewConfig: newConfig,
		Source:    SourceInternal,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (w *Workflow) transition(to State, actor, note string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.history = append(w.history, HistoryEntry{At: time.Now(), From: w.State, To: to, Actor: actor, Note: note})
	w.State = to
	w.UpdatedAt = time.Now()
}

// History returns the workflow's transitions, most recent first.
func (w *Workflow) History() []HistoryEntry {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]HistoryEntry, len(w.history))
	for i, h := range w.history {
		out[len(w.history)-1-i] = h
	}
	return out
}

// IsTerminal reports whether the workflow can no longer transition.
func (w *Workflow) IsTerminal() bool {
	switch w.State {
	case StateFailed, StateRejected, StateArchived:
		return true
	default:
		return false
	}
}

// Record is the persistable shape of a Workflow: every exported field plus
// its history, used by callers (the CLI in particular) that need workflow
// state to survive past a single process's lifetime. Workflow's mutex and
// unexported history slice are deliberately excluded from json.Marshal;
// Record carries the same information through ToRecord/FromRecord instead.
type Record struct {
	ID           string
	NodeID       string
	Key          string
	State        State
	Options      Options
	OldConfig    string
	NewConfig    string
	Hierarchical *diff.HierarchicalDiff
	Semantic     []diff.FunctionalChange
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Approver     string
	Rejector     string
	Error        string
	Source       Source
	ApprovedBy   string
	History      []HistoryEntry
}

// ToRecord flattens w into its persistable Record, history oldest-first.
func (w *Workflow) ToRecord() Record {
	w.mu.Lock()
	history := make([]HistoryEntry, len(w.history))
	copy(history, w.history)
	w.mu.Unlock()

	return Record{
		ID:           w.ID,
		NodeID:       w.NodeID,
		Key:          w.Key,
		State:        w.State,
		Options:      w.Options,
		OldConfig:    w.OldConfig,
		NewConfig:    w.NewConfig,
		Hierarchical: w.Hierarchical,
		Semantic:     w.Semantic,
		CreatedAt:    w.CreatedAt,
		UpdatedAt:    w.UpdatedAt,
		Approver:     w.Approver,
		Rejector:     w.Rejector,
		Error:        w.Error,
		Source:       w.Source,
		ApprovedBy:   w.ApprovedBy,
		History:      history,
	}
}

// FromRecord rebuilds a Workflow from a previously-flattened Record.
func FromRecord(r Record) *Workflow {
	return &Workflow{
		ID:           r.ID,
		NodeID:       r.NodeID,
		Key:          r.Key,
		State:        r.State,
		Options:      r.Options,
		OldConfig:    r.OldConfig,
		NewConfig:    r.NewConfig,
		Hierarchical: r.Hierarchical,
		Semantic:     r.Semantic,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		Approver:     r.Approver,
		Rejector:     r.Rejector,
		Error:        r.Error,
		Source:       r.Source,
		ApprovedBy:   r.ApprovedBy,
		history:      append([]HistoryEntry(nil), r.History...),
	}
}

func isApprover(approvers []string, user string) bool {
	if len(approvers) == 0 {
		return true
	}
	for _, a := range approvers {
		if a == user {
			return true
		}
	}
	return false
}

// ErrApprovalRequired is returned when Apply is attempted on a workflow
// still waiting for approval.
var ErrApprovalRequired = fmt.Errorf("%w: workflow requires approval before apply", util.ErrValidationFailed)

// ErrNotAuthorizedApprover is returned when a user outside the configured
// approver set attempts to approve or reject a workflow.
var ErrNotAuthorizedApprover = fmt.Errorf("%w: user is not an authorized approver", util.ErrPermissionDenied)

// ErrInvalidTransition is returned when a state change is attempted from a
// state that does not permit it.
var ErrInvalidTransition = fmt.Errorf("%w: invalid workflow transition", util.ErrValidationFailed)

// ErrEmergencyExpired is returned by ApplyEmergencyBypass once an
// emergency's validity_duration has elapsed since it was declared.
var ErrEmergencyExpired = fmt.Errorf("%w: emergency override has expired", util.ErrExpired)
