package auth

import (
	"fmt"
	"os/user"
	"slices"

	"github.com/munet-project/unet/pkg/util"
)

// AccessPolicy is the loaded RBAC configuration: who is a superuser, how
// users group together, and which groups hold which permissions, optionally
// scoped to a node resource.
type AccessPolicy struct {
	SuperUsers      []string
	UserGroups      map[string][]string
	Permissions     map[string][]string            // permission -> allowed groups/users, applies network-wide
	NodePermissions map[string]map[string][]string  // node ID -> permission -> allowed groups/users
}

// Checker validates user permissions
type Checker struct {
	policy      *AccessPolicy
	currentUser string
}

// NewChecker creates a permission checker
func NewChecker(policy *AccessPolicy) *Checker {
	username := "unknown"
	if u, err := user.Current(); err == nil {
		username = u.Username
	}

	return &Checker{
		policy:      policy,
		currentUser: username,
	}
}

// SetUser overrides the current user (for testing or sudo)
func (c *Checker) SetUser(username string) {
	c.currentUser = username
}

// CurrentUser returns the current username
func (c *Checker) CurrentUser() string {
	return c.currentUser
}

// Check verifies if the current user has a permission
func (c *Checker) Check(permission Permission, ctx *Context) error {
	return c.CheckUser(c.currentUser, permission, ctx)
}

// CheckUser verifies if a specific user has a permission
func (c *Checker) CheckUser(username string, permission Permission, ctx *Context) error {
	if c.isSuperUser(username) {
		return nil
	}

	if ctx != nil && ctx.NodeID != "" {
		if perms, ok := c.policy.NodePermissions[ctx.NodeID]; ok {
			if c.checkPermissionMap(username, permission, perms) {
				return nil
			}
		}
	}

	if c.checkGlobalPermission(username, permission) {
		return nil
	}

	return &PermissionError{
		User:       username,
		Permission: permission,
		Context:    ctx,
	}
}

// ListPermissions returns every permission the current user holds globally.
// A superuser's list is always exactly [PermAll].
func (c *Checker) ListPermissions() []Permission {
	if c.IsSuperUser() {
		return []Permission{PermAll}
	}
	var out []Permission
	for perm, groups := range c.policy.Permissions {
		if c.userInGroups(c.currentUser, groups) {
			out = append(out, Permission(perm))
		}
	}
	return out
}

// GetUserGroups returns the names of every group username belongs to.
func (c *Checker) GetUserGroups(username string) []string {
	var out []string
	for group, members := range c.policy.UserGroups {
		if slices.Contains(members, username) {
			out = append(out, group)
		}
	}
	return out
}

// IsSuperUser returns true if the current user is a superuser
func (c *Checker) IsSuperUser() bool {
	return c.isSuperUser(c.currentUser)
}

func (c *Checker) isSuperUser(username string) bool {
	return slices.Contains(c.policy.SuperUsers, username)
}

func (c *Checker) checkGlobalPermission(username string, permission Permission) bool {
	return c.checkPermissionMap(username, permission, c.policy.Permissions)
}

// checkPermissionMap checks whether username has the given permission in permMap.
// It first checks the "all" wildcard key, then the specific permission key.
func (c *Checker) checkPermissionMap(username string, permission Permission, permMap map[string][]string) bool {
	if groups, ok := permMap["all"]; ok {
		if c.userInGroups(username, groups) {
			return true
		}
	}

	groups, ok := permMap[string(permission)]
	if !ok {
		return false
	}

	return c.userInGroups(username, groups)
}

func (c *Checker) userInGroups(username string, allowedGroups []string) bool {
	for _, group := range allowedGroups {
		if group == username {
			return true
		}
		if members, ok := c.policy.UserGroups[group]; ok {
			if slices.Contains(members, username) {
				return true
			}
		}
	}
	return false
}

// PermissionError represents a permission denial
type PermissionError struct {
	User       string
	Permission Permission
	Context    *Context
}

func (e *PermissionError) Error() string {
	msg := fmt.Sprintf("permission denied: user '%s' does not have '%s' permission", e.User, e.Permission)
	if e.Context != nil {
		if e.Context.NodeID != "" {
			msg += fmt.Sprintf(" on node '%s'", e.Context.NodeID)
		}
		if e.Context.Resource != "" {
			msg += fmt.Sprintf(" for resource '%s'", e.Context.Resource)
		}
	}
	return msg
}

func (e *PermissionError) Unwrap() error {
	return util.ErrPermissionDenied
}
