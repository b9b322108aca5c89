package diff

import (
	"strings"

	"github.com/munet-project/unet/pkg/configparser"
)

// PathChange records the effective change type for one dotted command path.
type PathChange struct {
	Path string
	Type ChangeType
	Old  *configparser.ConfigNode
	New  *configparser.ConfigNode
}

// HierarchicalDiff compares two ConfigNode trees. For each pair of matching
// parents, children are indexed by command string; children present only in
// new are Additions, only in old are Deletions, present in both recurse.
// PathChanges is keyed by dotted command-path concatenation.
type HierarchicalDiff struct {
	PathChanges map[string]ChangeType
	Changes     []PathChange
}

// DiffTrees runs the hierarchical diff over old and new roots.
func DiffTrees(old, new *configparser.ConfigNode) *HierarchicalDiff {
	d := &HierarchicalDiff{PathChanges: map[string]ChangeType{}}
	d.walk(old, new, "")
	return d
}

func (d *HierarchicalDiff) walk(old, new *configparser.ConfigNode, prefix string) {
	oldByCmd := indexChildren(old)
	newByCmd := indexChildren(new)

	for cmd, oldChild := range oldByCmd {
		path := joinPath(prefix, cmd)
		if newChild, ok := newByCmd[cmd]; ok {
			d.walk(oldChild, newChild, path)
			continue
		}
		d.record(path, ChangeDeletion, oldChild, nil)
	}
	for cmd, newChild := range newByCmd {
		if _, ok := oldByCmd[cmd]; ok {
			continue
		}
		path := joinPath(prefix, cmd)
		d.record(path, ChangeAddition, nil, newChild)
	}
}

func (d *HierarchicalDiff) record(path string, t ChangeType, old, new *configparser.ConfigNode) {
	d.PathChanges[path] = t
	d.Changes = append(d.Changes, PathChange{Path: path, Type: t, Old: old, New: new})
}

func indexChildren(n *configparser.ConfigNode) map[string]*configparser.ConfigNode {
	out := map[string]*configparser.ConfigNode{}
	if n == nil {
		return out
	}
	for _, c := range n.Children {
		out[c.Command()] = c
	}
	return out
}

func joinPath(prefix, cmd string) string {
	if prefix == "" {
		return cmd
	}
	return strings.Join([]string{prefix, cmd}, ".")
}
