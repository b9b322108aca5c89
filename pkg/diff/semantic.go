package diff

import (
	"regexp"

	"github.com/munet-project/unet/pkg/util"
)

// Severity ranks the operational impact of a FunctionalChange.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Bucket groups a FunctionalChange for reporting purposes.
type Bucket string

const (
	BucketInterface Bucket = "interface"
	BucketVlan      Bucket = "vlan"
	BucketRouting   Bucket = "routing"
	BucketSecurity  Bucket = "security"
	BucketCustom    Bucket = "custom"
)

// FunctionalChange is a semantically meaningful change extracted from a
// text-diff modification, e.g. an IP address or VLAN id changing.
type FunctionalChange struct {
	Bucket   Bucket
	Severity Severity
	Field    string
	OldValue string
	NewValue string
	// Note carries additional context that does not affect Severity (which
	// is fixed per Bucket), e.g. whether an ip_address change stays within
	// the same subnet or lands on a point-to-point /30 or /31.
	Note string
	Line LineChange
}

var (
	ipv4CIDRPattern   = regexp.MustCompile(`\b\d{1,3}(?:\.\d{1,3}){3}(?:/\d{1,2})?\b`)
	vlanPattern       = regexp.MustCompile(`(?i)\bvlan\s+(\d+)\b`)
	interfacePattern  = regexp.MustCompile(`(?i)\binterface\s+(\S+)\b`)
	aclPattern        = regexp.MustCompile(`(?i)\b(access-list|permit|deny)\b`)
)

// ImpactRecord documents a fixed risk/response profile for a Bucket.
type ImpactRecord struct {
	RiskLevel          string
	AffectedComponents []string
	ValidationSteps    []string
}

// ImpactByBucket maps each change bucket to its fixed impact record.
var ImpactByBucket = map[Bucket]ImpactRecord{
	BucketInterface: {"medium", []string{"interface", "neighboring links"}, []string{"verify link state", "check counters"}},
	BucketVlan:      {"low", []string{"vlan", "spanning-tree"}, []string{"verify vlan membership"}},
	BucketRouting:   {"medium", []string{"routing table", "adjacencies"}, []string{"verify routes", "check peers"}},
	BucketSecurity:  {"high", []string{"access control", "traffic forwarding"}, []string{"review ACL hit counts", "confirm intended deny/permit"}},
	BucketCustom:    {"unknown", nil, nil},
}

// SemanticDiff scans text-diff output for functional changes: for each
// Modification/Addition/Deletion it compares the first IPv4/CIDR, VLAN id,
// and interface name found on the old and new lines and emits a
// FunctionalChange for each that differs, plus a security change when
// either line carries an ACL keyword and the lines differ.
func SemanticDiff(changes []LineChange) []FunctionalChange {
	var out []FunctionalChange
	for _, c := range changes {
		if c.Type == ChangeUnchanged {
			continue
		}
		out = append(out, extractFunctionalChanges(c)...)
	}
	return out
}

func extractFunctionalChanges(c LineChange) []FunctionalChange {
	var out []FunctionalChange

	if oldIPs, newIPs := ipv4CIDRPattern.FindString(c.OldLine), ipv4CIDRPattern.FindString(c.NewLine); oldIPs != newIPs {
		out = append(out, FunctionalChange{Bucket: BucketRouting, Severity: SeverityWarning, Field: "ip_address", OldValue: oldIPs, NewValue: newIPs, Note: ipAddressChangeNote(oldIPs, newIPs), Line: c})
	}
	if om := vlanPattern.FindStringSubmatch(c.OldLine); om != nil || vlanPattern.MatchString(c.NewLine) {
		oldVal, newVal := submatchOrEmpty(vlanPattern, c.OldLine), submatchOrEmpty(vlanPattern, c.NewLine)
		if oldVal != newVal {
			out = append(out, FunctionalChange{Bucket: BucketVlan, Severity: SeverityInfo, Field: "vlan", OldValue: oldVal, NewValue: newVal, Line: c})
		}
	}
	if oldVal, newVal := submatchOrEmpty(interfacePattern, c.OldLine), submatchOrEmpty(interfacePattern, c.NewLine); util.NormalizeInterfaceName(oldVal) != util.NormalizeInterfaceName(newVal) {
		out = append(out, FunctionalChange{Bucket: BucketInterface, Severity: SeverityWarning, Field: "interface", OldValue: oldVal, NewValue: newVal, Line: c})
	}
	if aclPattern.MatchString(c.OldLine) || aclPattern.MatchString(c.NewLine) {
		if c.OldLine != c.NewLine {
			out = append(out, FunctionalChange{Bucket: BucketSecurity, Severity: SeverityCritical, Field: "acl", OldValue: c.OldLine, NewValue: c.NewLine, Line: c})
		}
	}

	return out
}

// ipAddressChangeNote describes the subnet relationship between an
// ip_address change's old and new values. This is informational only —
// Severity for the routing bucket is fixed regardless of the relationship.
func ipAddressChangeNote(oldIPs, newIPs string) string {
	newIP, newMask, err := util.ParseIPWithMask(newIPs)
	if err != nil {
		return ""
	}
	if newMask == 30 || newMask == 31 {
		return "point-to-point subnet"
	}
	oldIP, oldMask, err := util.ParseIPWithMask(oldIPs)
	if err != nil {
		return ""
	}
	if oldMask == newMask && util.ComputeNetworkAddr(oldIP.String(), oldMask) == util.ComputeNetworkAddr(newIP.String(), newMask) {
		return "same subnet"
	}
	return ""
}

func submatchOrEmpty(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[len(m)-1]
}
