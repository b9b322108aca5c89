package model

import (
	"testing"
	"time"
)

func TestNodeFQDN(t *testing.T) {
	cases := []struct {
		name   string
		node   Node
		expect string
	}{
		{"no domain", Node{Name: "sw1"}, "sw1"},
		{"with domain", Node{Name: "sw1", Domain: "example.com"}, "sw1.example.com"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.node.FQDN(); got != tc.expect {
				t.Errorf("FQDN() = %q, want %q", got, tc.expect)
			}
		})
	}
}

func TestNodeValidate(t *testing.T) {
	good := Node{Name: "sw1", Model: "9300", Vendor: VendorCisco, Role: RoleSwitch, Lifecycle: LifecycleLive}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected valid node, got %v", err)
	}

	bad := Node{Vendor: "bogus", Role: "bogus", Lifecycle: "bogus"}
	err := bad.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}

	badIP := good
	badIP.ManagementIP = "not-an-ip"
	if err := badIP.Validate(); err == nil {
		t.Fatal("expected validation error for bad management_ip")
	}

	goodIP := good
	goodIP.ManagementIP = "10.0.0.1"
	if err := goodIP.Validate(); err != nil {
		t.Fatalf("expected valid node with a real management_ip, got %v", err)
	}
}

func TestNewTopologyNormalizesLinkInterfaces(t *testing.T) {
	link := &Link{ID: "l1", NodeAID: "a", NodeAIface: "Eth0/1", NodeBID: "b", NodeBIface: "po1"}
	topo := NewTopology(nil, []*Link{link}, nil)

	if topo.Links[0].NodeAIface != "Ethernet0/1" {
		t.Errorf("NodeAIface = %q, want %q", topo.Links[0].NodeAIface, "Ethernet0/1")
	}
	if topo.Links[0].NodeBIface != "PortChannel1" {
		t.Errorf("NodeBIface = %q, want %q", topo.Links[0].NodeBIface, "PortChannel1")
	}
}

func TestNodeStatusReachability(t *testing.T) {
	s := &NodeStatus{}
	now := time.Now()

	for i := 0; i < 2; i++ {
		s.RecordFailure(now, nil)
	}
	if s.Reachable {
		t.Error("failures below the threshold must not make a zero-value status reachable")
	}

	s.RecordFailure(now, nil)
	if s.Reachable {
		t.Error("expected Reachable=false after 3 consecutive failures")
	}
	if s.ConsecutiveFailures != 3 {
		t.Errorf("ConsecutiveFailures = %d, want 3", s.ConsecutiveFailures)
	}

	s.RecordSuccess(now)
	if !s.Reachable || s.ConsecutiveFailures != 0 {
		t.Error("expected a successful poll to reset failures and mark reachable")
	}
}

func TestTopologyNavigation(t *testing.T) {
	loc := "loc-1"
	n1 := &Node{ID: "n1", Name: "n1", LocationID: &loc}
	n2 := &Node{ID: "n2", Name: "n2"}
	link := &Link{ID: "l1", NodeAID: "n1", NodeBID: "n2"}

	topo := NewTopology([]*Node{n1, n2}, []*Link{link}, []*Location{{ID: loc, Name: "DC1"}})

	if got := topo.NodesAtLocation(loc); len(got) != 1 || got[0].ID != "n1" {
		t.Errorf("NodesAtLocation = %+v, want [n1]", got)
	}
	if got := topo.LinksForNode("n2"); len(got) != 1 {
		t.Errorf("LinksForNode(n2) = %+v, want 1 link", got)
	}
}
