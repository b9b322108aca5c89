// Package diff implements the three diff layers operating over parsed
// device configuration: text (line-level LCS), hierarchical (ConfigNode
// tree), and semantic (regex-extracted functional changes).
package diff

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// ChangeType classifies one unit of a text or hierarchical diff.
type ChangeType string

const (
	ChangeAddition     ChangeType = "addition"
	ChangeDeletion     ChangeType = "deletion"
	ChangeModification ChangeType = "modification"
	ChangeUnchanged    ChangeType = "unchanged"
)

// LineChange is one line-level diff unit. A Modification carries both
// OldLine and NewLine; an Addition only NewLine; a Deletion only OldLine.
type LineChange struct {
	Type          ChangeType
	OldLine       string
	NewLine       string
	OldLineNumber int
	NewLineNumber int
	Context       string
}

// TextDiff computes a line-level LCS diff between old and new, collapses
// adjacent Deletion+Addition pairs into Modification, then applies
// context-line filtering: contextLines unchanged neighbors are retained
// around each change. contextLines == 0 collapses to changes-only.
func TextDiff(old, new string, contextLines int) []LineChange {
	oldLines := splitLines(old)
	newLines := splitLines(new)

	matcher := difflib.NewMatcher(oldLines, newLines)
	var raw []LineChange

	oldLine, newLine := 1, 1
	for _, op := range matcher.GetOpCodes() {
		switch op.Tag {
		case 'e':
			for i := op.I1; i < op.I2; i++ {
				raw = append(raw, LineChange{Type: ChangeUnchanged, OldLine: oldLines[i], NewLine: oldLines[i], OldLineNumber: oldLine, NewLineNumber: newLine})
				oldLine++
				newLine++
			}
		case 'd':
			for i := op.I1; i < op.I2; i++ {
				raw = append(raw, LineChange{Type: ChangeDeletion, OldLine: oldLines[i], OldLineNumber: oldLine})
				oldLine++
			}
		case 'i':
			for j := op.J1; j < op.J2; j++ {
				raw = append(raw, LineChange{Type: ChangeAddition, NewLine: newLines[j], NewLineNumber: newLine})
				newLine++
			}
		case 'r':
			dels := op.I2 - op.I1
			adds := op.J2 - op.J1
			for k := 0; k < dels || k < adds; k++ {
				switch {
				case k < dels && k < adds:
					raw = append(raw, LineChange{Type: ChangeDeletion, OldLine: oldLines[op.I1+k], OldLineNumber: oldLine})
					raw = append(raw, LineChange{Type: ChangeAddition, NewLine: newLines[op.J1+k], NewLineNumber: newLine})
					oldLine++
					newLine++
				case k < dels:
					raw = append(raw, LineChange{Type: ChangeDeletion, OldLine: oldLines[op.I1+k], OldLineNumber: oldLine})
					oldLine++
				default:
					raw = append(raw, LineChange{Type: ChangeAddition, NewLine: newLines[op.J1+k], NewLineNumber: newLine})
					newLine++
				}
			}
		}
	}

	collapsed := detectModifications(raw)
	return applyContextFiltering(collapsed, contextLines)
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// detectModifications collapses a Deletion immediately followed by an
// Addition into a single Modification carrying both sides.
func detectModifications(changes []LineChange) []LineChange {
	var out []LineChange
	for i := 0; i < len(changes); i++ {
		c := changes[i]
		if c.Type == ChangeDeletion && i+1 < len(changes) && changes[i+1].Type == ChangeAddition {
			next := changes[i+1]
			out = append(out, LineChange{
				Type:          ChangeModification,
				OldLine:       c.OldLine,
				NewLine:       next.NewLine,
				OldLineNumber: c.OldLineNumber,
				NewLineNumber: next.NewLineNumber,
				Context:       coalesceContext(c.Context, next.Context),
			})
			i++
			continue
		}
		out = append(out, c)
	}
	return out
}

// coalesceContext prefers the old side's context, falling back to the new
// side's when absent — the tie-break rule for modification pairs.
func coalesceContext(oldCtx, newCtx string) string {
	if oldCtx != "" {
		return oldCtx
	}
	return newCtx
}

// applyContextFiltering retains only changes plus up to n unchanged
// neighbors on either side. n == 0 drops all Unchanged entries.
func applyContextFiltering(changes []LineChange, n int) []LineChange {
	if n < 0 {
		n = 0
	}
	keep := make([]bool, len(changes))
	for i, c := range changes {
		if c.Type != ChangeUnchanged {
			keep[i] = true
			for d := 1; d <= n; d++ {
				if i-d >= 0 {
					keep[i-d] = true
				}
				if i+d < len(changes) {
					keep[i+d] = true
				}
			}
		}
	}
	var out []LineChange
	for i, c := range changes {
		if keep[i] {
			out = append(out, c)
		}
	}
	return out
}
