package model

import "time"

// InterfaceAdminStatus and InterfaceOperStatus mirror ifAdminStatus/ifOperStatus.
type InterfaceAdminStatus string
type InterfaceOperStatus string

const (
	AdminUp      InterfaceAdminStatus = "up"
	AdminDown    InterfaceAdminStatus = "down"
	AdminTesting InterfaceAdminStatus = "testing"
	AdminUnknown InterfaceAdminStatus = "unknown"

	OperUp             InterfaceOperStatus = "up"
	OperDown           InterfaceOperStatus = "down"
	OperTesting        InterfaceOperStatus = "testing"
	OperUnknown        InterfaceOperStatus = "unknown"
	OperDormant        InterfaceOperStatus = "dormant"
	OperNotPresent     InterfaceOperStatus = "not_present"
	OperLowerLayerDown InterfaceOperStatus = "lower_layer_down"
)

func (a InterfaceAdminStatus) Valid() bool {
	switch a {
	case AdminUp, AdminDown, AdminTesting, AdminUnknown:
		return true
	}
	return false
}

func (o InterfaceOperStatus) Valid() bool {
	switch o {
	case OperUp, OperDown, OperTesting, OperUnknown, OperDormant, OperNotPresent, OperLowerLayerDown:
		return true
	}
	return false
}

// InterfaceStatus is the polled state of a single interface on a Node.
type InterfaceStatus struct {
	Name        string               `json:"name"`
	Index       int                  `json:"index"`
	AdminStatus InterfaceAdminStatus `json:"admin_status"`
	OperStatus  InterfaceOperStatus  `json:"oper_status"`
	Speed       uint64               `json:"speed_bps,omitempty"`
	MTU         int                  `json:"mtu,omitempty"`
	InOctets    uint64               `json:"in_octets,omitempty"`
	OutOctets   uint64               `json:"out_octets,omitempty"`
	InErrors    uint64               `json:"in_errors,omitempty"`
	OutErrors   uint64               `json:"out_errors,omitempty"`
}

// IsUp reports whether both the administrative and operational state are up.
func (i *InterfaceStatus) IsUp() bool {
	return i.AdminStatus == AdminUp && i.OperStatus == OperUp
}

// SystemInfo captures the sysDescr/sysObjectID/sysUpTime/sysContact/sysName/sysLocation group.
type SystemInfo struct {
	Descr       string        `json:"descr,omitempty"`
	ObjectID    string        `json:"object_id,omitempty"`
	UptimeTicks uint64        `json:"uptime_ticks,omitempty"`
	Contact     string        `json:"contact,omitempty"`
	Name        string        `json:"name,omitempty"`
	Location    string        `json:"location,omitempty"`
}

// Performance holds coarse utilization figures derived from polled counters.
type Performance struct {
	CPUUtilPercent float64 `json:"cpu_util_percent,omitempty"`
	MemUtilPercent float64 `json:"mem_util_percent,omitempty"`
	MemTotalBytes  uint64  `json:"mem_total_bytes,omitempty"`
}

// EnvironmentalSensor is one temperature/fan/power-supply reading.
type EnvironmentalSensor struct {
	Name  string  `json:"name"`
	Kind  string  `json:"kind"` // temperature | fan | psu
	Value float64 `json:"value"`
	OK    bool    `json:"ok"`
}

// consecutiveFailuresUnreachable is the threshold at which NodeStatus.Reachable
// must be forced false, per the derived-state invariant.
const consecutiveFailuresUnreachable = 3

// NodeStatus is the derived-state record bound to a Node by id.
type NodeStatus struct {
	NodeID             string                         `json:"node_id"`
	Reachable          bool                           `json:"reachable"`
	LastUpdated        time.Time                      `json:"last_updated"`
	LastPollSuccess    time.Time                      `json:"last_poll_success,omitempty"`
	LastError          string                         `json:"last_error,omitempty"`
	ConsecutiveFailures int                           `json:"consecutive_failures"`
	SystemInfo         SystemInfo                     `json:"system_info"`
	Interfaces         []InterfaceStatus              `json:"interfaces,omitempty"`
	Performance        Performance                    `json:"performance"`
	Environmental      []EnvironmentalSensor          `json:"environmental,omitempty"`
	VendorMetrics      map[string]string              `json:"vendor_metrics,omitempty"` // enterprise-OID keyed
	RawSNMP            map[string]string              `json:"raw_snmp,omitempty"`
}

// RecordSuccess marks a successful poll: resets the failure streak, clears
// the last error, and recomputes Reachable.
func (s *NodeStatus) RecordSuccess(at time.Time) {
	s.ConsecutiveFailures = 0
	s.LastError = ""
	s.LastPollSuccess = at
	s.LastUpdated = at
	s.Reachable = true
}

// RecordFailure increments the failure streak and forces Reachable false
// once the streak reaches the unreachable threshold.
func (s *NodeStatus) RecordFailure(at time.Time, err error) {
	s.ConsecutiveFailures++
	if err != nil {
		s.LastError = err.Error()
	}
	s.LastUpdated = at
	if s.ConsecutiveFailures >= consecutiveFailuresUnreachable {
		s.Reachable = false
	}
}

// InterfaceByName returns the interface with the given name, or nil.
func (s *NodeStatus) InterfaceByName(name string) *InterfaceStatus {
	for i := range s.Interfaces {
		if s.Interfaces[i].Name == name {
			return &s.Interfaces[i]
		}
	}
	return nil
}
