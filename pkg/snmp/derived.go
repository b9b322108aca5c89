package snmp

import (
	"strconv"
	"strings"
	"time"

	"github.com/munet-project/unet/pkg/model"
	"github.com/munet-project/unet/pkg/util"
)

// System group OIDs (1.3.6.1.2.1.1.{1..6}.0).
const (
	oidSysDescr    = "1.3.6.1.2.1.1.1.0"
	oidSysObjectID = "1.3.6.1.2.1.1.2.0"
	oidSysUptime   = "1.3.6.1.2.1.1.3.0"
	oidSysContact  = "1.3.6.1.2.1.1.4.0"
	oidSysName     = "1.3.6.1.2.1.1.5.0"
	oidSysLocation = "1.3.6.1.2.1.1.6.0"

	ifIndexPrefix    = "1.3.6.1.2.1.2.2.1.1."
	ifDescrPrefix    = "1.3.6.1.2.1.2.2.1.2."
	ifMtuPrefix      = "1.3.6.1.2.1.2.2.1.4."
	ifSpeedPrefix    = "1.3.6.1.2.1.2.2.1.5."
	ifAdminPrefix    = "1.3.6.1.2.1.2.2.1.7."
	ifOperPrefix     = "1.3.6.1.2.1.2.2.1.8."
	ifInOctetsPrefix = "1.3.6.1.2.1.2.2.1.10."
	ifOutOctetsPrefix = "1.3.6.1.2.1.2.2.1.16."
	ifInErrorsPrefix  = "1.3.6.1.2.1.2.2.1.14."
	ifOutErrorsPrefix = "1.3.6.1.2.1.2.2.1.20."

	enterprisePrefix = "1.3.6.1.4.1"
)

// MapOIDsToStatus is the pure function transforming one poll's raw OID
// readings into a NodeStatus. It does not mutate any prior NodeStatus;
// callers merge deltas using NodeStatus.RecordSuccess/RecordFailure.
func MapOIDsToStatus(nodeID string, values map[string]string, polledAt time.Time) *model.NodeStatus {
	status := &model.NodeStatus{NodeID: nodeID, LastUpdated: polledAt}

	status.SystemInfo = model.SystemInfo{
		Descr:       values[oidSysDescr],
		ObjectID:    values[oidSysObjectID],
		UptimeTicks: parseUint(values[oidSysUptime]),
		Contact:     values[oidSysContact],
		Name:        values[oidSysName],
		Location:    values[oidSysLocation],
	}

	status.Interfaces = extractInterfaces(values)
	status.VendorMetrics = extractVendorMetrics(values)

	return status
}

func extractInterfaces(values map[string]string) []model.InterfaceStatus {
	indices := map[string]bool{}
	for oid := range values {
		if idx, ok := strings.CutPrefix(oid, ifIndexPrefix); ok {
			indices[idx] = true
		}
	}

	var out []model.InterfaceStatus
	for idx := range indices {
		i, _ := strconv.Atoi(idx)
		iface := model.InterfaceStatus{
			Index:       i,
			Name:        util.NormalizeInterfaceName(values[ifDescrPrefix+idx]),
			MTU:         int(parseUint(values[ifMtuPrefix+idx])),
			Speed:       parseUint(values[ifSpeedPrefix+idx]),
			AdminStatus: mapAdminStatus(values[ifAdminPrefix+idx]),
			OperStatus:  mapOperStatus(values[ifOperPrefix+idx]),
			InOctets:    parseUint(values[ifInOctetsPrefix+idx]),
			OutOctets:   parseUint(values[ifOutOctetsPrefix+idx]),
			InErrors:    parseUint(values[ifInErrorsPrefix+idx]),
			OutErrors:   parseUint(values[ifOutErrorsPrefix+idx]),
		}
		out = append(out, iface)
	}
	return out
}

// mapAdminStatus maps ifAdminStatus (RFC1213: 1=up, 2=down, 3=testing).
func mapAdminStatus(raw string) model.InterfaceAdminStatus {
	switch raw {
	case "1":
		return model.AdminUp
	case "2":
		return model.AdminDown
	case "3":
		return model.AdminTesting
	default:
		return model.AdminUnknown
	}
}

// mapOperStatus maps ifOperStatus (RFC1213/RFC2863: 1=up, 2=down, 3=testing,
// 4=unknown, 5=dormant, 6=notPresent, 7=lowerLayerDown).
func mapOperStatus(raw string) model.InterfaceOperStatus {
	switch raw {
	case "1":
		return model.OperUp
	case "2":
		return model.OperDown
	case "3":
		return model.OperTesting
	case "5":
		return model.OperDormant
	case "6":
		return model.OperNotPresent
	case "7":
		return model.OperLowerLayerDown
	default:
		return model.OperUnknown
	}
}

// extractVendorMetrics isolates enterprise OIDs (prefix 1.3.6.1.4.1) into a
// vendor_metrics map keyed by the full OID.
func extractVendorMetrics(values map[string]string) map[string]string {
	out := map[string]string{}
	for oid, v := range values {
		if strings.HasPrefix(oid, enterprisePrefix) {
			out[oid] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func parseUint(s string) uint64 {
	n, _ := strconv.ParseUint(s, 10, 64)
	return n
}
