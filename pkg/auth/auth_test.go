package auth

import (
	"errors"
	"strings"
	"testing"

	"github.com/munet-project/unet/pkg/util"
)

func TestContext_Chaining(t *testing.T) {
	ctx := NewContext().
		WithNode("leaf1-ny").
		WithResource("vlan100")

	if ctx.NodeID != "leaf1-ny" {
		t.Errorf("NodeID = %q", ctx.NodeID)
	}
	if ctx.Resource != "vlan100" {
		t.Errorf("Resource = %q", ctx.Resource)
	}
}

func testPolicy() *AccessPolicy {
	return &AccessPolicy{
		SuperUsers: []string{"admin", "root"},
		UserGroups: map[string][]string{
			"neteng": {"alice", "bob"},
			"netops": {"charlie", "diana"},
			"viewer": {"eve"},
		},
		Permissions: map[string][]string{
			"all":             {"neteng"},
			"config.apply":    {"neteng", "netops"},
			"workflow.reject": {"neteng", "netops", "viewer"},
		},
		NodePermissions: map[string]map[string][]string{
			"leaf1-ny": {
				"config.apply": {"netops"}, // adds netops here; global grants still apply
			},
			"leaf2-ny": {
				"all": {"neteng"}, // only neteng, but neteng already has global "all"
			},
		},
	}
}

func TestChecker_SuperUser(t *testing.T) {
	checker := NewChecker(testPolicy())
	checker.SetUser("admin")

	if err := checker.Check(PermConfigApply, nil); err != nil {
		t.Errorf("Superuser should be allowed: %v", err)
	}
	if err := checker.Check(PermWorkflowReject, nil); err != nil {
		t.Errorf("Superuser should be allowed: %v", err)
	}
	if !checker.IsSuperUser() {
		t.Error("admin should be superuser")
	}
}

func TestChecker_GlobalPermissions(t *testing.T) {
	checker := NewChecker(testPolicy())

	t.Run("user in allowed group", func(t *testing.T) {
		checker.SetUser("alice")
		if err := checker.Check(PermConfigApply, nil); err != nil {
			t.Errorf("alice (neteng) should have config.apply: %v", err)
		}
	})

	t.Run("user with 'all' permission", func(t *testing.T) {
		checker.SetUser("bob")
		if err := checker.Check(PermNodeEdit, nil); err != nil {
			t.Errorf("bob (neteng with 'all') should have node.edit: %v", err)
		}
	})

	t.Run("user without permission", func(t *testing.T) {
		checker.SetUser("eve")
		if err := checker.Check(PermConfigApply, nil); err == nil {
			t.Error("eve (viewer) should not have config.apply")
		}
	})
}

func TestChecker_NodeScopedPermissions(t *testing.T) {
	checker := NewChecker(testPolicy())

	t.Run("node-specific override", func(t *testing.T) {
		checker.SetUser("charlie") // netops
		ctx := NewContext().WithNode("leaf1-ny")
		if err := checker.Check(PermConfigApply, ctx); err != nil {
			t.Errorf("charlie should have permission via node override: %v", err)
		}
	})

	t.Run("node with 'all' permission", func(t *testing.T) {
		checker.SetUser("alice") // neteng
		ctx := NewContext().WithNode("leaf2-ny")
		if err := checker.Check(PermConfigApply, ctx); err != nil {
			t.Errorf("alice should have permission via node 'all': %v", err)
		}
	})

	t.Run("no node permission falls back to global", func(t *testing.T) {
		checker.SetUser("diana") // netops
		ctx := NewContext().WithNode("spine1-ny")
		if err := checker.Check(PermConfigApply, ctx); err != nil {
			t.Errorf("diana should have permission via global fallback: %v", err)
		}
	})
}

func TestChecker_PermissionError(t *testing.T) {
	checker := NewChecker(testPolicy())
	checker.SetUser("eve")

	ctx := NewContext().WithNode("leaf1-ny")
	err := checker.Check(PermConfigApply, ctx)
	if err == nil {
		t.Fatal("Expected error")
	}

	var permErr *PermissionError
	if !errors.As(err, &permErr) {
		t.Fatalf("Expected PermissionError, got %T", err)
	}
	if permErr.User != "eve" {
		t.Errorf("User = %q", permErr.User)
	}
	if permErr.Permission != PermConfigApply {
		t.Errorf("Permission = %q", permErr.Permission)
	}
	if err.Error() == "" {
		t.Error("Error message should not be empty")
	}
	if !errors.Is(err, util.ErrPermissionDenied) {
		t.Error("Should unwrap to ErrPermissionDenied")
	}
}

func TestChecker_ListPermissions(t *testing.T) {
	checker := NewChecker(testPolicy())

	t.Run("superuser", func(t *testing.T) {
		checker.SetUser("admin")
		perms := checker.ListPermissions()
		if len(perms) != 1 || perms[0] != PermAll {
			t.Errorf("Superuser should have PermAll only, got %v", perms)
		}
	})

	t.Run("regular user", func(t *testing.T) {
		checker.SetUser("eve") // viewer
		perms := checker.ListPermissions()
		permMap := make(map[Permission]bool)
		for _, p := range perms {
			permMap[p] = true
		}
		if !permMap[PermWorkflowReject] {
			t.Error("eve should have workflow.reject")
		}
		if permMap[PermConfigApply] {
			t.Error("eve should not have config.apply")
		}
	})
}

func TestChecker_GetUserGroups(t *testing.T) {
	checker := NewChecker(testPolicy())

	groups := checker.GetUserGroups("alice")
	if len(groups) != 1 || groups[0] != "neteng" {
		t.Errorf("alice groups = %v, want [neteng]", groups)
	}

	groups = checker.GetUserGroups("unknown")
	if len(groups) != 0 {
		t.Errorf("unknown user should have no groups, got %v", groups)
	}
}

func TestChecker_DirectUserPermission(t *testing.T) {
	policy := &AccessPolicy{
		Permissions: map[string][]string{
			"config.apply": {"direct-user"},
		},
	}
	checker := NewChecker(policy)
	checker.SetUser("direct-user")

	if err := checker.Check(PermConfigApply, nil); err != nil {
		t.Errorf("Direct user permission should work: %v", err)
	}
}

func TestChecker_CurrentUser(t *testing.T) {
	checker := NewChecker(testPolicy())

	if checker.CurrentUser() == "" {
		t.Error("CurrentUser should not be empty after NewChecker")
	}
	checker.SetUser("test-user")
	if checker.CurrentUser() != "test-user" {
		t.Errorf("CurrentUser() = %q, want %q", checker.CurrentUser(), "test-user")
	}
}

func TestChecker_NodeWithNilPermissions(t *testing.T) {
	policy := &AccessPolicy{
		UserGroups: map[string][]string{
			"neteng": {"alice"},
		},
		Permissions: map[string][]string{
			"config.apply": {"neteng"},
		},
		NodePermissions: map[string]map[string][]string{
			"no-perms-node": nil,
		},
	}
	checker := NewChecker(policy)
	checker.SetUser("alice")

	ctx := NewContext().WithNode("no-perms-node")
	if err := checker.Check(PermConfigApply, ctx); err != nil {
		t.Errorf("Should fall back to global permission: %v", err)
	}
}

func TestChecker_GlobalPermissionNotFound(t *testing.T) {
	policy := &AccessPolicy{}
	checker := NewChecker(policy)
	checker.SetUser("anyone")

	if err := checker.Check(PermConfigApply, nil); err == nil {
		t.Error("Should be denied when no permissions defined")
	}
}

func TestChecker_GlobalAllPermissionNotGranted(t *testing.T) {
	policy := &AccessPolicy{
		UserGroups: map[string][]string{
			"admins": {"admin-user"},
			"users":  {"normal-user"},
		},
		Permissions: map[string][]string{
			"all": {"admins"},
		},
	}
	checker := NewChecker(policy)
	checker.SetUser("normal-user")

	if err := checker.Check(PermConfigApply, nil); err == nil {
		t.Error("normal-user should not have permission via 'all'")
	}
}

func TestChecker_NodeAllPermissionNotGranted(t *testing.T) {
	policy := &AccessPolicy{
		UserGroups: map[string][]string{
			"admins": {"admin-user"},
			"users":  {"normal-user"},
		},
		Permissions: map[string][]string{},
		NodePermissions: map[string]map[string][]string{
			"restricted": {"all": {"admins"}},
		},
	}
	checker := NewChecker(policy)
	checker.SetUser("normal-user")

	ctx := NewContext().WithNode("restricted")
	if err := checker.Check(PermConfigApply, ctx); err == nil {
		t.Error("normal-user should not have permission via node 'all'")
	}
}

func TestPermissionError_ContextVariations(t *testing.T) {
	t.Run("nil context", func(t *testing.T) {
		err := &PermissionError{User: "alice", Permission: PermConfigApply, Context: nil}
		msg := err.Error()
		if msg == "" {
			t.Error("Error message should not be empty")
		}
		if strings.Contains(msg, "on node") || strings.Contains(msg, "for resource") {
			t.Error("Should not mention node/resource when context is nil")
		}
	})

	t.Run("context with node only", func(t *testing.T) {
		err := &PermissionError{User: "alice", Permission: PermConfigApply, Context: &Context{NodeID: "leaf1"}}
		if !strings.Contains(err.Error(), "leaf1") {
			t.Error("Should mention node name")
		}
	})

	t.Run("context with resource only", func(t *testing.T) {
		err := &PermissionError{User: "alice", Permission: PermConfigApply, Context: &Context{Resource: "vlan100"}}
		if !strings.Contains(err.Error(), "vlan100") {
			t.Error("Should mention resource name")
		}
	})

	t.Run("context with both node and resource", func(t *testing.T) {
		err := &PermissionError{User: "alice", Permission: PermConfigApply, Context: &Context{NodeID: "leaf1", Resource: "vlan100"}}
		msg := err.Error()
		if !strings.Contains(msg, "leaf1") || !strings.Contains(msg, "vlan100") {
			t.Error("Should mention both node and resource")
		}
	})
}
