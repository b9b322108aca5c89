package workflow

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/munet-project/unet/pkg/util"
)

// EmergencySeverity ranks how urgent a declared emergency is. Only
// Critical combined with CategorySecurityIncident carries a special rule:
// its validity_duration is capped.
type EmergencySeverity string

const (
	EmergencySeverityCritical EmergencySeverity = "Critical"
	EmergencySeverityHigh     EmergencySeverity = "High"
	EmergencySeverityMedium   EmergencySeverity = "Medium"
	EmergencySeverityLow      EmergencySeverity = "Low"
)

// Valid reports whether s is one of the four recognized severities.
func (s EmergencySeverity) Valid() bool {
	switch s {
	case EmergencySeverityCritical, EmergencySeverityHigh, EmergencySeverityMedium, EmergencySeverityLow:
		return true
	}
	return false
}

// CategorySecurityIncident is the one category name with special behavior:
// a Critical emergency declared under it has its validity_duration capped
// at criticalSecurityIncidentCap regardless of what the caller requested.
const CategorySecurityIncident = "SecurityIncident"

const (
	minJustificationLen        = 50
	criticalSecurityIncidentCap = 4 * time.Hour
)

// EmergencyState is an emergency's position in its own lifecycle, tracked
// independently of the State of the Workflows it spawns.
type EmergencyState string

const (
	EmergencyDeclared             EmergencyState = "declared"
	EmergencyConfigurationApplied EmergencyState = "configuration_applied"
	EmergencyRollbackInitiated    EmergencyState = "rollback_initiated"
	EmergencyResolved             EmergencyState = "resolved"
)

// RollbackStrategy selects how RollbackEmergency restores an emergency's
// pre-change snapshots.
type RollbackStrategy string

const (
	// RollbackComplete restores every snapshot the emergency took.
	RollbackComplete RollbackStrategy = "complete"
	// RollbackPartial restores only the snapshots named by caller-supplied
	// node IDs.
	RollbackPartial RollbackStrategy = "partial"
	// RollbackGradual restores snapshots one at a time, halting at the
	// first restore that fails rather than aborting the ones already done.
	RollbackGradual RollbackStrategy = "gradual"
	// RollbackEmergencyStop halts the emergency without restoring anything.
	RollbackEmergencyStop RollbackStrategy = "emergency_stop"
)

// Valid reports whether r is a recognized rollback strategy.
func (r RollbackStrategy) Valid() bool {
	switch r {
	case RollbackComplete, RollbackPartial, RollbackGradual, RollbackEmergencyStop:
		return true
	}
	return false
}

// EmergencyChange is one node's proposed before/after configuration,
// declared as part of an emergency.
type EmergencyChange struct {
	NodeID    string
	OldConfig string
	NewConfig string
}

// EmergencySnapshot is the pre-change state of one entity, captured at
// declaration time so a later rollback has something to restore to.
type EmergencySnapshot struct {
	NodeID     string
	Config     string
	CapturedAt time.Time
}

// EmergencyAuditEntry is one immutable record of an emergency's lifecycle
// transition, carrying the actor and timestamp the spec requires for every
// Declared/ConfigurationApplied/RollbackInitiated/Resolved transition.
type EmergencyAuditEntry struct {
	At      time.Time
	State   EmergencyState
	ActorID string
	Note    string
}

// Emergency is a declared emergency override: a justified, time-boxed
// bypass of the normal approval gate. It does not replace the Workflow
// record for the changes it applies — those still flow through Engine.Compute
// and carry Source=SourceExternal / ApprovedBy=emergencyApprovedBy(actor) —
// it only tracks the declaration, its snapshots, and its own audit trail.
type Emergency struct {
	ID               string
	Severity         EmergencySeverity
	Category         string
	Justification    string
	ValidityDuration time.Duration
	DeclaredAt       time.Time
	ExpiresAt        time.Time
	DeclaredBy       string
	State            EmergencyState
	Changes          []EmergencyChange
	Snapshots        []EmergencySnapshot
	WorkflowIDs      []string
	Resolved         bool

	mu    sync.Mutex
	audit []EmergencyAuditEntry
}

// Expired reports whether the emergency's validity_duration has elapsed.
func (em *Emergency) Expired() bool {
	return time.Now().After(em.ExpiresAt)
}

func (em *Emergency) recordAudit(state EmergencyState, actor, note string) {
	em.mu.Lock()
	defer em.mu.Unlock()
	em.audit = append(em.audit, EmergencyAuditEntry{At: time.Now(), State: state, ActorID: actor, Note: note})
	em.State = state
}

// Audit returns the emergency's transition history, oldest first.
func (em *Emergency) Audit() []EmergencyAuditEntry {
	em.mu.Lock()
	defer em.mu.Unlock()
	out := make([]EmergencyAuditEntry, len(em.audit))
	copy(out, em.audit)
	return out
}

func (em *Emergency) changeForNode(nodeID string) *EmergencyChange {
	for i := range em.Changes {
		if em.Changes[i].NodeID == nodeID {
			return &em.Changes[i]
		}
	}
	return nil
}

// ErrJustificationTooShort is returned by DeclareEmergency when the
// supplied justification is under minJustificationLen characters.
var ErrJustificationTooShort = fmt.Errorf("%w: emergency justification must be at least %d characters", util.ErrValidationFailed, minJustificationLen)

// ErrNoEmergencyChanges is returned by DeclareEmergency when no changes are
// supplied; an emergency must cover at least one.
var ErrNoEmergencyChanges = fmt.Errorf("%w: an emergency must declare at least one change", util.ErrValidationFailed)

// DeclareEmergency opens a new emergency override: it validates severity,
// justification length, and change count, applies the Critical+
// SecurityIncident validity cap, takes a pre-change snapshot of every
// affected node, and records the Declared audit entry.
func (e *Engine) DeclareEmergency(severity EmergencySeverity, category, justification string, changes []EmergencyChange, validityDuration time.Duration, actor string) (*Emergency, error) {
	if !severity.Valid() {
		return nil, fmt.Errorf("%w: unknown emergency severity %q", util.ErrValidationFailed, severity)
	}
	if len(justification) < minJustificationLen {
		return nil, ErrJustificationTooShort
	}
	if len(changes) == 0 {
		return nil, ErrNoEmergencyChanges
	}

	if severity == EmergencySeverityCritical && category == CategorySecurityIncident && validityDuration > criticalSecurityIncidentCap {
		validityDuration = criticalSecurityIncidentCap
	}

	now := time.Now()
	snapshots := make([]EmergencySnapshot, len(changes))
	for i, c := range changes {
		snapshots[i] = EmergencySnapshot{NodeID: c.NodeID, Config: c.OldConfig, CapturedAt: now}
	}

	em := &Emergency{
		ID:               uuid.New().String(),
		Severity:         severity,
		Category:         category,
		Justification:    justification,
		ValidityDuration: validityDuration,
		DeclaredAt:       now,
		ExpiresAt:        now.Add(validityDuration),
		DeclaredBy:       actor,
		State:            EmergencyDeclared,
		Changes:          changes,
		Snapshots:        snapshots,
	}
	em.recordAudit(EmergencyDeclared, actor, "emergency declared: "+category)

	e.mu.Lock()
	e.emergencies[em.ID] = em
	e.mu.Unlock()

	return em, nil
}

// GetEmergency retrieves a declared emergency by ID.
func (e *Engine) GetEmergency(id string) (*Emergency, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	em, ok := e.emergencies[id]
	return em, ok
}

// ListEmergencies returns every declared emergency, most recently declared
// first.
func (e *Engine) ListEmergencies() []*Emergency {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Emergency, 0, len(e.emergencies))
	for _, em := range e.emergencies {
		out = append(out, em)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeclaredAt.After(out[j].DeclaredAt) })
	return out
}

// ApplyEmergencyBypass applies every change an emergency declared,
// skipping the approval gate entirely. Each change still goes through
// Engine.Compute and becomes a normal Workflow record, stamped
// Source=SourceExternal and ApprovedBy=emergencyApprovedBy(actor) per the
// bypass-marker contract, then archived directly. Fails with
// ErrEmergencyExpired once the emergency's validity_duration has elapsed.
func (e *Engine) ApplyEmergencyBypass(emergencyID, actor string) (*Emergency, error) {
	em, ok := e.GetEmergency(emergencyID)
	if !ok {
		return nil, util.NewNotFoundError("emergency", emergencyID)
	}
	if em.Expired() {
		return nil, ErrEmergencyExpired
	}

	approvedBy := emergencyApprovedBy(actor)
	workflowIDs := make([]string, 0, len(em.Changes))
	for _, c := range em.Changes {
		w, err := e.Compute(c.OldConfig, c.NewConfig, Options{NodeID: c.NodeID, RequireApproval: false})
		if err != nil {
			return nil, fmt.Errorf("applying emergency change for node %s: %w", c.NodeID, err)
		}
		w.Source = SourceExternal
		w.ApprovedBy = approvedBy
		if w.State != StateArchived {
			w.transition(StateArchived, approvedBy, "emergency bypass apply")
		}
		workflowIDs = append(workflowIDs, w.ID)
	}

	em.mu.Lock()
	em.WorkflowIDs = append(em.WorkflowIDs, workflowIDs...)
	em.mu.Unlock()

	em.recordAudit(EmergencyConfigurationApplied, actor, fmt.Sprintf("applied %d change(s) via emergency bypass", len(workflowIDs)))
	return em, nil
}

// RollbackEmergency restores an emergency's pre-change snapshots according
// to strategy. nodeIDs is only consulted by RollbackPartial, to select
// which snapshots to restore.
func (e *Engine) RollbackEmergency(emergencyID string, strategy RollbackStrategy, actor string, nodeIDs []string) (*Emergency, error) {
	em, ok := e.GetEmergency(emergencyID)
	if !ok {
		return nil, util.NewNotFoundError("emergency", emergencyID)
	}
	if !strategy.Valid() {
		return nil, fmt.Errorf("%w: unknown rollback strategy %q", util.ErrValidationFailed, strategy)
	}

	em.recordAudit(EmergencyRollbackInitiated, actor, fmt.Sprintf("rollback strategy=%s", strategy))

	if strategy == RollbackEmergencyStop {
		return em, nil
	}

	targets := em.Snapshots
	if strategy == RollbackPartial {
		targets = selectSnapshots(em.Snapshots, nodeIDs)
	}

	approvedBy := emergencyApprovedBy(actor)
	for _, snap := range targets {
		change := em.changeForNode(snap.NodeID)
		if change == nil {
			continue
		}
		w, err := e.Compute(change.NewConfig, snap.Config, Options{NodeID: snap.NodeID, RequireApproval: false})
		if err != nil {
			if strategy == RollbackGradual {
				return em, fmt.Errorf("gradual rollback halted at node %s: %w", snap.NodeID, err)
			}
			return nil, fmt.Errorf("rolling back node %s: %w", snap.NodeID, err)
		}
		w.Source = SourceExternal
		w.ApprovedBy = approvedBy
		if w.State != StateArchived {
			w.transition(StateArchived, approvedBy, "emergency rollback")
		}
	}

	return em, nil
}

func selectSnapshots(snapshots []EmergencySnapshot, nodeIDs []string) []EmergencySnapshot {
	if len(nodeIDs) == 0 {
		return nil
	}
	wanted := make(map[string]bool, len(nodeIDs))
	for _, id := range nodeIDs {
		wanted[id] = true
	}
	var out []EmergencySnapshot
	for _, s := range snapshots {
		if wanted[s.NodeID] {
			out = append(out, s)
		}
	}
	return out
}

// EmergencyRecord is the persistable shape of an Emergency: every exported
// field plus its audit trail, flattened the same way Workflow's Record
// flattens a Workflow.
type EmergencyRecord struct {
	ID               string
	Severity         EmergencySeverity
	Category         string
	Justification    string
	ValidityDuration time.Duration
	DeclaredAt       time.Time
	ExpiresAt        time.Time
	DeclaredBy       string
	State            EmergencyState
	Changes          []EmergencyChange
	Snapshots        []EmergencySnapshot
	WorkflowIDs      []string
	Resolved         bool
	Audit            []EmergencyAuditEntry
}

// ToRecord flattens em into its persistable EmergencyRecord.
func (em *Emergency) ToRecord() EmergencyRecord {
	em.mu.Lock()
	audit := make([]EmergencyAuditEntry, len(em.audit))
	copy(audit, em.audit)
	em.mu.Unlock()

	return EmergencyRecord{
		ID:               em.ID,
		Severity:         em.Severity,
		Category:         em.Category,
		Justification:    em.Justification,
		ValidityDuration: em.ValidityDuration,
		DeclaredAt:       em.DeclaredAt,
		ExpiresAt:        em.ExpiresAt,
		DeclaredBy:       em.DeclaredBy,
		State:            em.State,
		Changes:          em.Changes,
		Snapshots:        em.Snapshots,
		WorkflowIDs:      em.WorkflowIDs,
		Resolved:         em.Resolved,
		Audit:            audit,
	}
}

// EmergencyFromRecord rebuilds an Emergency from a previously-flattened
// EmergencyRecord.
func EmergencyFromRecord(r EmergencyRecord) *Emergency {
	return &Emergency{
		ID:               r.ID,
		Severity:         r.Severity,
		Category:         r.Category,
		Justification:    r.Justification,
		ValidityDuration: r.ValidityDuration,
		DeclaredAt:       r.DeclaredAt,
		ExpiresAt:        r.ExpiresAt,
		DeclaredBy:       r.DeclaredBy,
		State:            r.State,
		Changes:          r.Changes,
		Snapshots:        r.Snapshots,
		WorkflowIDs:      r.WorkflowIDs,
		Resolved:         r.Resolved,
		audit:            append([]EmergencyAuditEntry(nil), r.Audit...),
	}
}

// EmergencySnapshots flattens every tracked emergency into its persistable
// EmergencyRecord form.
func (e *Engine) EmergencySnapshots() []EmergencyRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]EmergencyRecord, 0, len(e.emergencies))
	for _, em := range e.emergencies {
		out = append(out, em.ToRecord())
	}
	return out
}

// RestoreEmergencies rebuilds the emergency table from a prior
// EmergencySnapshots call, replacing whatever the Engine currently holds.
func (e *Engine) RestoreEmergencies(records []EmergencyRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.emergencies = make(map[string]*Emergency, len(records))
	for _, r := range records {
		em := EmergencyFromRecord(r)
		e.emergencies[em.ID] = em
	}
}

// ResolveEmergency closes out an emergency, marking it Resolved and
// recording the final audit entry.
func (e *Engine) ResolveEmergency(emergencyID, actor, note string) (*Emergency, error) {
	em, ok := e.GetEmergency(emergencyID)
	if !ok {
		return nil, util.NewNotFoundError("emergency", emergencyID)
	}
	em.recordAudit(EmergencyResolved, actor, note)
	em.mu.Lock()
	em.Resolved = true
	em.mu.Unlock()
	return em, nil
}
