// Package auth provides permission-based access control.
package auth

// Permission defines an action that can be controlled
type Permission string

// Standard permissions
const (
	PermConfigView  Permission = "config.view"
	PermConfigApply Permission = "config.apply"
	PermConfigDiff  Permission = "config.diff"

	PermPolicyView   Permission = "policy.view"
	PermPolicyReload Permission = "policy.reload"
	PermPolicyEdit   Permission = "policy.edit"

	PermNodeView Permission = "node.view"
	PermNodeEdit Permission = "node.edit"

	PermPollView   Permission = "poll.view"
	PermPollManage Permission = "poll.manage"

	PermLockAcquire Permission = "lock.acquire"
	PermLockForce   Permission = "lock.force_release"
	PermLockView    Permission = "lock.view"

	PermSecretRead   Permission = "secret.read"
	PermSecretWrite  Permission = "secret.write"
	PermSecretRotate Permission = "secret.rotate"

	PermWorkflowApprove Permission = "workflow.approve"
	PermWorkflowReject  Permission = "workflow.reject"
	PermWorkflowView    Permission = "workflow.view"

	PermEmergencyDeclare Permission = "emergency.declare"
	PermEmergencyApply   Permission = "emergency.apply"
	PermEmergencyView    Permission = "emergency.view"

	PermAuditView Permission = "audit.view"

	PermAll Permission = "all" // Superuser - allows everything
)

// PermissionCategory groups related permissions
type PermissionCategory struct {
	Name        string
	Description string
	Permissions []Permission
}

// StandardCategories defines standard permission categories
var StandardCategories = []PermissionCategory{
	{
		Name:        "config",
		Description: "Configuration parsing, diffing, and apply",
		Permissions: []Permission{PermConfigView, PermConfigApply, PermConfigDiff},
	},
	{
		Name:        "policy",
		Description: "Policy rule evaluation and the policy source directory",
		Permissions: []Permission{PermPolicyView, PermPolicyReload, PermPolicyEdit},
	},
	{
		Name:        "node",
		Description: "Node inventory and topology",
		Permissions: []Permission{PermNodeView, PermNodeEdit},
	},
	{
		Name:        "poll",
		Description: "SNMP polling schedule",
		Permissions: []Permission{PermPollView, PermPollManage},
	},
	{
		Name:        "lock",
		Description: "Distributed locks",
		Permissions: []Permission{PermLockAcquire, PermLockForce, PermLockView},
	},
	{
		Name:        "secret",
		Description: "Secret store",
		Permissions: []Permission{PermSecretRead, PermSecretWrite, PermSecretRotate},
	},
	{
		Name:        "workflow",
		Description: "Change workflow approval",
		Permissions: []Permission{PermWorkflowApprove, PermWorkflowReject, PermWorkflowView},
	},
	{
		Name:        "emergency",
		Description: "Emergency override bypass of the change approval gate",
		Permissions: []Permission{PermEmergencyDeclare, PermEmergencyApply, PermEmergencyView},
	},
	{
		Name:        "audit",
		Description: "Audit log access",
		Permissions: []Permission{PermAuditView},
	},
}

// Context provides context for permission checks
type Context struct {
	NodeID   string
	Resource string
}

// NewContext creates a new permission context
func NewContext() *Context {
	return &Context{}
}

// WithNode sets the node context
func (c *Context) WithNode(nodeID string) *Context {
	c.NodeID = nodeID
	return c
}

// WithResource sets a generic resource context
func (c *Context) WithResource(resource string) *Context {
	c.Resource = resource
	return c
}

// IsReadOnly returns true if the permission is read-only
func (p Permission) IsReadOnly() bool {
	switch p {
	case PermConfigView, PermConfigDiff, PermPolicyView, PermNodeView,
		PermPollView, PermLockView, PermSecretRead, PermWorkflowView, PermEmergencyView, PermAuditView:
		return true
	}
	return false
}

// IsWriteOperation returns true if the permission involves modification
func (p Permission) IsWriteOperation() bool {
	return !p.IsReadOnly()
}

// RequiresLock returns true if the permission requires holding a distributed
// lock on the target node before it may proceed.
func (p Permission) RequiresLock() bool {
	switch p {
	case PermConfigApply, PermWorkflowApprove, PermWorkflowReject:
		return true
	}
	return false
}
