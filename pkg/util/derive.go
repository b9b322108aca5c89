package util

import (
	"regexp"
	"sort"
	"strings"
)

var (
	sanitizeRegexp       = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
	parseInterfaceRegexp = regexp.MustCompile(`^([a-zA-Z]+)(\d+(?:/\d+)*)$`)
)

// SanitizeForName strips anything but alphanumerics, underscore, and hyphen
// from name, with dots and slashes collapsed to underscores first.
// Ethernet0 -> Ethernet0, Ethernet0.100 -> Ethernet0_100
func SanitizeForName(name string) string {
	name = strings.ReplaceAll(name, ".", "_")
	name = strings.ReplaceAll(name, "/", "_")
	return sanitizeRegexp.ReplaceAllString(name, "")
}

// ParseInterfaceName splits an interface name into its type, number, and an
// optional subinterface suffix: Ethernet0.100 -> ("Ethernet", "0", "100").
func ParseInterfaceName(name string) (ifType string, num string, subintf string) {
	parts := strings.SplitN(name, ".", 2)
	if len(parts) == 2 {
		subintf = parts[1]
		name = parts[0]
	}

	matches := parseInterfaceRegexp.FindStringSubmatch(name)
	if len(matches) == 3 {
		return matches[1], matches[2], subintf
	}

	return name, "", subintf
}

// Interface name mappings (long <-> short), covering the abbreviations used
// across the vendor dialects this module parses.
var (
	longToShort = map[string]string{
		"Ethernet":    "Eth",
		"PortChannel": "Po",
		"Loopback":    "Lo",
		"Vlan":        "Vl",
		"Management":  "Mgmt",
	}

	shortToLong = map[string]string{
		"eth":  "Ethernet",
		"po":   "PortChannel",
		"lo":   "Loopback",
		"vl":   "Vlan",
		"vlan": "Vlan",
		"mgmt": "Management",
	}

	// shortToLongSorted holds shortToLong's keys longest-first so that
	// "vlan" is tried before "vl" in NormalizeInterfaceName.
	shortToLongSorted []string
)

func init() {
	shortToLongSorted = make([]string, 0, len(shortToLong))
	for k := range shortToLong {
		shortToLongSorted = append(shortToLongSorted, k)
	}
	sort.Slice(shortToLongSorted, func(i, j int) bool {
		return len(shortToLongSorted[i]) > len(shortToLongSorted[j])
	})
}

// ShortenInterfaceName converts a full interface name to its short form:
// Ethernet0 -> Eth0, PortChannel100 -> Po100, Loopback0 -> Lo0, Vlan100 -> Vl100.
func ShortenInterfaceName(name string) string {
	ifType, num, subintf := ParseInterfaceName(name)

	if short, ok := longToShort[ifType]; ok {
		result := short + num
		if subintf != "" {
			result += "." + subintf
		}
		return result
	}

	return SanitizeForName(name)
}

// NormalizeInterfaceName expands an interface name's abbreviated prefix to
// its canonical long form: eth0 -> Ethernet0, po100 -> PortChannel100. Used
// to reconcile interface names read back from a device (which may arrive
// abbreviated, depending on vendor and command) with the long-form names
// configuration and topology data use, so the two can be compared or joined
// on Name directly.
func NormalizeInterfaceName(name string) string {
	name = strings.TrimSpace(name)
	lower := strings.ToLower(name)

	for _, abbr := range shortToLongSorted {
		if strings.HasPrefix(lower, abbr) && len(name) > len(abbr) {
			suffix := name[len(abbr):]
			if len(suffix) > 0 && suffix[0] >= '0' && suffix[0] <= '9' {
				return shortToLong[abbr] + suffix
			}
		}
	}

	return name
}

// MergeMaps merges maps left to right, with later maps overriding earlier
// ones on key collision.
func MergeMaps[K comparable, V any](maps ...map[K]V) map[K]V {
	result := make(map[K]V)
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}
