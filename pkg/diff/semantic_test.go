package diff

import "testing"

func mod(oldLine, newLine string) LineChange {
	return LineChange{Type: ChangeModification, OldLine: oldLine, NewLine: newLine}
}

func TestSemanticDiffIPAddressChange(t *testing.T) {
	changes := SemanticDiff([]LineChange{
		mod(" ip address 10.1.1.1 255.255.255.252", " ip address 10.1.1.10 255.255.255.252"),
	})
	var found bool
	for _, c := range changes {
		if c.Bucket == BucketRouting && c.Field == "ip_address" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an ip_address FunctionalChange, got %+v", changes)
	}
}

func TestSemanticDiffIPAddressChangeIsAlwaysWarning(t *testing.T) {
	changes := SemanticDiff([]LineChange{
		mod(" ip address 10.1.1.1/30", " ip address 10.1.1.5/30"),
	})
	var c *FunctionalChange
	for i := range changes {
		if changes[i].Field == "ip_address" {
			c = &changes[i]
		}
	}
	if c == nil {
		t.Fatalf("expected an ip_address change, got %+v", changes)
	}
	if c.Severity != SeverityWarning {
		t.Errorf("ip_address changes always carry warning severity, got %s", c.Severity)
	}
	if c.Note != "point-to-point subnet" {
		t.Errorf("expected a point-to-point subnet note, got %q", c.Note)
	}
}

func TestSemanticDiffSameSubnetRenumberNotesButDoesNotChangeSeverity(t *testing.T) {
	changes := SemanticDiff([]LineChange{
		mod("10.1.1.1/24", "10.1.1.2/24"),
	})
	var c *FunctionalChange
	for i := range changes {
		if changes[i].Field == "ip_address" {
			c = &changes[i]
		}
	}
	if c == nil {
		t.Fatalf("expected an ip_address change, got %+v", changes)
	}
	if c.Severity != SeverityWarning {
		t.Errorf("ip_address changes always carry warning severity, got %s", c.Severity)
	}
	if c.Note != "same subnet" {
		t.Errorf("expected a same-subnet note, got %q", c.Note)
	}
}

func TestSemanticDiffVlanChange(t *testing.T) {
	changes := SemanticDiff([]LineChange{
		mod("vlan 100", "vlan 200"),
	})
	if len(changes) != 1 || changes[0].Bucket != BucketVlan || changes[0].Severity != SeverityInfo {
		t.Errorf("expected one info-severity vlan change, got %+v", changes)
	}
}

func TestSemanticDiffVlanChangeSeverityIsAlwaysInfo(t *testing.T) {
	changes := SemanticDiff([]LineChange{
		mod("vlan 100", "vlan 9999"),
	})
	if len(changes) != 1 || changes[0].Severity != SeverityInfo {
		t.Errorf("vlan changes always carry info severity regardless of id validity, got %+v", changes)
	}
}

func TestSemanticDiffInterfaceRenameIgnoresAbbreviation(t *testing.T) {
	changes := SemanticDiff([]LineChange{
		mod("interface Eth0/1", "interface Ethernet0/1"),
	})
	for _, c := range changes {
		if c.Field == "interface" {
			t.Errorf("expected abbreviated and canonical interface names to compare equal, got %+v", c)
		}
	}
}

func TestSemanticDiffInterfaceChange(t *testing.T) {
	changes := SemanticDiff([]LineChange{
		mod("interface Ethernet0/1", "interface Ethernet0/2"),
	})
	var found bool
	for _, c := range changes {
		if c.Bucket == BucketInterface && c.Field == "interface" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an interface FunctionalChange, got %+v", changes)
	}
}

func TestSemanticDiffACLChange(t *testing.T) {
	changes := SemanticDiff([]LineChange{
		mod("access-list 10 permit 10.0.0.0 0.0.0.255", "access-list 10 deny 10.0.0.0 0.0.0.255"),
	})
	var found bool
	for _, c := range changes {
		if c.Bucket == BucketSecurity && c.Severity == SeverityCritical {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a critical security FunctionalChange, got %+v", changes)
	}
}

func TestSemanticDiffSkipsUnchanged(t *testing.T) {
	changes := SemanticDiff([]LineChange{
		{Type: ChangeUnchanged, OldLine: "vlan 100", NewLine: "vlan 100"},
	})
	if len(changes) != 0 {
		t.Errorf("expected no changes for an unchanged line, got %+v", changes)
	}
}
