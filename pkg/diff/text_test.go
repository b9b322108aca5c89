package diff

import "testing"

func TestTextDiffModificationCollapse(t *testing.T) {
	old := "a\nb\nc\n"
	new := "a\nB\nc\n"

	changes := TextDiff(old, new, 0)

	var mods int
	for _, c := range changes {
		if c.Type == ChangeModification {
			mods++
			if c.OldLine != "b" || c.NewLine != "B" {
				t.Errorf("unexpected modification sides: %+v", c)
			}
		}
		if c.Type == ChangeUnchanged {
			t.Errorf("context filtering with n=0 should drop unchanged lines, got %+v", c)
		}
	}
	if mods != 1 {
		t.Errorf("expected 1 modification, got %d", mods)
	}
}

func TestTextDiffContextFiltering(t *testing.T) {
	old := "1\n2\n3\n4\n5\n"
	new := "1\n2\nX\n4\n5\n"

	changes := TextDiff(old, new, 1)
	var unchanged int
	for _, c := range changes {
		if c.Type == ChangeUnchanged {
			unchanged++
		}
	}
	if unchanged != 2 {
		t.Errorf("expected 2 unchanged context lines with n=1, got %d", unchanged)
	}
}

func TestSemanticDiffVlanModification(t *testing.T) {
	changes := []LineChange{{Type: ChangeModification, OldLine: "vlan 10", NewLine: "vlan 20"}}
	fc := SemanticDiff(changes)
	if len(fc) != 1 || fc[0].Bucket != BucketVlan {
		t.Fatalf("expected one vlan functional change, got %+v", fc)
	}
	if fc[0].Severity != SeverityInfo {
		t.Errorf("vlan severity should be Info, got %s", fc[0].Severity)
	}
}

func TestSemanticDiffIPChange(t *testing.T) {
	changes := []LineChange{{Type: ChangeModification, OldLine: "ip address 10.0.0.1/24", NewLine: "ip address 10.0.0.2/24"}}
	fc := SemanticDiff(changes)
	if len(fc) != 1 || fc[0].Severity != SeverityWarning {
		t.Fatalf("expected a warning-severity ip change, got %+v", fc)
	}
}
