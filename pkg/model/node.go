// Package model defines the typed entities shared by every μNet component:
// Node (desired state), NodeStatus (derived state), Link and Location, and
// the enums that constrain their fields.
package model

import (
	"fmt"
	"strings"

	"github.com/munet-project/unet/pkg/util"
)

// Vendor identifies the configuration dialect a Node speaks.
type Vendor string

const (
	VendorCisco   Vendor = "cisco"
	VendorJuniper Vendor = "juniper"
	VendorArista  Vendor = "arista"
	VendorGeneric Vendor = "generic"
)

func (v Vendor) Valid() bool {
	switch v {
	case VendorCisco, VendorJuniper, VendorArista, VendorGeneric:
		return true
	}
	return false
}

// Role describes what a Node does on the network.
type Role string

const (
	RoleRouter   Role = "router"
	RoleSwitch   Role = "switch"
	RoleFirewall Role = "firewall"
	RoleServer   Role = "server"
)

func (r Role) Valid() bool {
	switch r {
	case RoleRouter, RoleSwitch, RoleFirewall, RoleServer:
		return true
	}
	return false
}

// Lifecycle tracks where a Node sits in its deployment lifecycle.
type Lifecycle string

const (
	LifecyclePlanned      Lifecycle = "planned"
	LifecycleImplementing Lifecycle = "implementing"
	LifecycleLive         Lifecycle = "live"
	LifecycleDecommission Lifecycle = "decommissioned"
)

func (l Lifecycle) Valid() bool {
	switch l {
	case LifecyclePlanned, LifecycleImplementing, LifecycleLive, LifecycleDecommission:
		return true
	}
	return false
}

// CustomData is a free-form tree of scalars attached to a Node or NodeStatus.
// Values are one of nil, bool, float64, string, []any, or map[string]any —
// the same untyped JSON shape the policy evaluator's FieldRef resolves over.
type CustomData map[string]any

// Node is the desired-state record for a managed network device.
type Node struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Domain        string     `json:"domain,omitempty"`
	Vendor        Vendor     `json:"vendor"`
	Model         string     `json:"model"`
	Role          Role       `json:"role"`
	Lifecycle     Lifecycle  `json:"lifecycle"`
	LocationID    *string    `json:"location_id,omitempty"`
	ManagementIP  string     `json:"management_ip,omitempty"`
	CustomData    CustomData `json:"custom_data,omitempty"`
}

// FQDN returns Name if Domain is empty, else "Name.Domain".
func (n *Node) FQDN() string {
	if n.Domain == "" {
		return n.Name
	}
	return n.Name + "." + n.Domain
}

// Validate enforces the Node invariants: non-empty name/model and valid enums.
func (n *Node) Validate() error {
	b := &util.ValidationBuilder{}
	b.Add(strings.TrimSpace(n.Name) != "", "name must not be empty")
	b.Add(strings.TrimSpace(n.Model) != "", "model must not be empty")
	if !n.Vendor.Valid() {
		b.AddErrorf("invalid vendor %q", n.Vendor)
	}
	if !n.Role.Valid() {
		b.AddErrorf("invalid role %q", n.Role)
	}
	if !n.Lifecycle.Valid() {
		b.AddErrorf("invalid lifecycle %q", n.Lifecycle)
	}
	if n.ManagementIP != "" && !util.IsValidIPv4(n.ManagementIP) {
		b.AddErrorf("invalid management_ip %q", n.ManagementIP)
	}
	return b.Build()
}

// Location is a physical or logical site a Node can be placed at.
type Location struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ParentID    *string `json:"parent_id,omitempty"`
}

// Link connects two Nodes, A-side and B-side, optionally through named interfaces.
type Link struct {
	ID          string `json:"id"`
	NodeAID     string `json:"node_a_id"`
	NodeAIface  string `json:"node_a_interface,omitempty"`
	NodeBID     string `json:"node_b_id"`
	NodeBIface  string `json:"node_b_interface,omitempty"`
	Description string `json:"description,omitempty"`
}

// Involves reports whether the link touches the given node id on either side.
func (l *Link) Involves(nodeID string) bool {
	return l.NodeAID == nodeID || l.NodeBID == nodeID
}

// String renders a link as "a[:iface] <-> b[:iface]" for logs and diffs.
func (l *Link) String() string {
	a, b := l.NodeAID, l.NodeBID
	if l.NodeAIface != "" {
		a = fmt.Sprintf("%s:%s", a, l.NodeAIface)
	}
	if l.NodeBIface != "" {
		b = fmt.Sprintf("%s:%s", b, l.NodeBIface)
	}
	return fmt.Sprintf("%s <-> %s", a, b)
}

// Topology is a read-only index over Nodes, Links and Locations supporting
// the relation-navigation helpers the underlying schema implies.
type Topology struct {
	Nodes     map[string]*Node
	Links     []*Link
	Locations map[string]*Location
}

// NewTopology builds an index from flat slices. Link interface names are
// normalized to their canonical long form so a link entered as "Eth0/1" and
// an SNMP-derived interface name read back as "Ethernet0/1" refer to the
// same interface.
func NewTopology(nodes []*Node, links []*Link, locations []*Location) *Topology {
	for _, l := range links {
		if l.NodeAIface != "" {
			l.NodeAIface = util.NormalizeInterfaceName(l.NodeAIface)
		}
		if l.NodeBIface != "" {
			l.NodeBIface = util.NormalizeInterfaceName(l.NodeBIface)
		}
	}
	t := &Topology{
		Nodes:     make(map[string]*Node, len(nodes)),
		Links:     links,
		Locations: make(map[string]*Location, len(locations)),
	}
	for _, n := range nodes {
		t.Nodes[n.ID] = n
	}
	for _, l := range locations {
		t.Locations[l.ID] = l
	}
	return t
}

// NodesAtLocation returns every node whose LocationID matches locationID.
func (t *Topology) NodesAtLocation(locationID string) []*Node {
	var out []*Node
	for _, n := range t.Nodes {
		if n.LocationID != nil && *n.LocationID == locationID {
			out = append(out, n)
		}
	}
	return out
}

// LinksForNode returns every link touching nodeID.
func (t *Topology) LinksForNode(nodeID string) []*Link {
	var out []*Link
	for _, l := range t.Links {
		if l.Involves(nodeID) {
			out = append(out, l)
		}
	}
	return out
}
