package configparser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/munet-project/unet/pkg/util"
)

// IndentMode controls how ParserConfig determines the width of one indent level.
type IndentMode int

const (
	IndentAuto IndentMode = iota
	IndentSpaces
	IndentTabs
)

// ParserConfig tunes HierarchicalParser behavior.
type ParserConfig struct {
	PreserveComments  bool
	PreserveEmptyLines bool
	Indent            IndentMode
	SpacesPerLevel    int // only used when Indent == IndentSpaces; 0 means 2
	MaxDepth          int
}

// DefaultParserConfig mirrors the donor's sensible defaults.
func DefaultParserConfig() ParserConfig {
	return ParserConfig{
		PreserveComments:   true,
		PreserveEmptyLines: false,
		Indent:             IndentAuto,
		MaxDepth:           50,
	}
}

var commentPattern = regexp.MustCompile(`^\s*[!#]`)
var slashCommentPattern = regexp.MustCompile(`^\s*//`)

type contextPattern struct {
	kind ContextKind
	re   *regexp.Regexp
}

// contextPatterns is ordered: BGP and OSPF must be checked before the
// generic "router" pattern so "router bgp 65000" lands in ContextBGP, not
// ContextRouting.
var contextPatterns = []contextPattern{
	{ContextInterface, regexp.MustCompile(`(?i)^interface\s+(\S+)`)},
	{ContextVlan, regexp.MustCompile(`(?i)^vlan\s+(\d+)`)},
	{ContextBGP, regexp.MustCompile(`(?i)^router\s+bgp\s+(\S+)`)},
	{ContextOSPF, regexp.MustCompile(`(?i)^router\s+ospf\s+(\S+)`)},
	{ContextRouting, regexp.MustCompile(`(?i)^router\s+(\S+)`)},
	{ContextAccessList, regexp.MustCompile(`(?i)^(ip\s+access-list|access-list)\s+(\S+)`)},
	{ContextLine, regexp.MustCompile(`(?i)^line\s+(\S+)`)},
}

func detectContext(trimmed string) Context {
	for _, p := range contextPatterns {
		if m := p.re.FindStringSubmatch(trimmed); m != nil {
			arg := m[len(m)-1]
			return Context{Kind: p.kind, Arg: arg}
		}
	}
	return Context{Kind: ContextGlobal}
}

// detectIndentWidth scans lines for the most common leading-space count,
// or reports Tabs if any leading whitespace contains a tab.
func detectIndentWidth(lines []string) (IndentMode, int) {
	counts := map[int]int{}
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		lead := l[:len(l)-len(strings.TrimLeft(l, " \t"))]
		if strings.Contains(lead, "\t") {
			return IndentTabs, 1
		}
		if n := len(lead); n > 0 {
			counts[n]++
		}
	}
	best, bestCount := 2, 0
	for n, c := range counts {
		if c > bestCount {
			best, bestCount = n, c
		}
	}
	return IndentSpaces, best
}

func leadingWidth(line string, mode IndentMode, spacesPerLevel int) int {
	lead := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
	if mode == IndentTabs {
		return strings.Count(lead, "\t")
	}
	if spacesPerLevel <= 0 {
		spacesPerLevel = 2
	}
	return len(lead) / spacesPerLevel
}

// HierarchicalParser parses vendor-normalized configuration text into a
// ConfigNode tree.
type HierarchicalParser struct {
	Config ParserConfig
}

// NewHierarchicalParser builds a parser with the given configuration.
func NewHierarchicalParser(cfg ParserConfig) *HierarchicalParser {
	return &HierarchicalParser{Config: cfg}
}

// ParseResult is the parsed tree plus any validation warnings collected
// during the walk.
type ParseResult struct {
	Root     *ConfigNode
	Warnings []string
}

// Parse runs the full pipeline: vendor preprocess (by the caller, via
// Preprocess), indentation detection, line classification, context
// detection, and tree insertion. text is assumed already vendor-preprocessed.
func (p *HierarchicalParser) Parse(text string) (*ParseResult, error) {
	lines := strings.Split(text, "\n")

	mode, spacesPerLevel := p.Config.Indent, p.Config.SpacesPerLevel
	if mode == IndentAuto {
		mode, spacesPerLevel = detectIndentWidth(lines)
	}

	root := NewRoot()
	// path holds, for each currently-open Section level, the node itself.
	path := []*ConfigNode{root}

	for i, raw := range lines {
		lineNo := i + 1
		trimmed := strings.TrimSpace(raw)

		if trimmed == "" {
			if p.Config.PreserveEmptyLines {
				node := &ConfigNode{RawLine: raw, LineNumber: lineNo, NodeType: NodeTypeEmpty}
				path[len(path)-1].AddChild(node)
			}
			continue
		}

		isComment := commentPattern.MatchString(raw) || slashCommentPattern.MatchString(raw)
		if isComment {
			if p.Config.PreserveComments {
				// A comment closes any section indented deeper than itself.
				level := leadingWidth(raw, mode, spacesPerLevel)
				if level+1 < len(path) {
					path = path[:level+1]
				}
				node := &ConfigNode{
					CommandText: trimmed,
					RawLine:     raw,
					LineNumber:  lineNo,
					IndentLevel: level,
					NodeType:    NodeTypeComment,
				}
				path[len(path)-1].AddChild(node)
			}
			continue
		}

		level := leadingWidth(raw, mode, spacesPerLevel)
		if level+1 > p.Config.MaxDepth {
			return nil, fmt.Errorf("config parser: line %d exceeds max depth %d", lineNo, p.Config.MaxDepth)
		}

		// Pop the path until its length (root excluded) is <= level.
		if level+1 > len(path) {
			level = len(path) - 1
		}
		path = path[:level+1]

		ctx := detectContext(trimmed)
		nodeType := NodeTypeCommand
		if ctx.Kind != ContextGlobal {
			nodeType = NodeTypeSection
		}

		node := &ConfigNode{
			CommandText: trimmed,
			RawLine:     raw,
			LineNumber:  lineNo,
			IndentLevel: level,
			Context:     ctx,
			NodeType:    nodeType,
		}

		parent := path[len(path)-1]
		parent.AddChild(node)

		// Only Section nodes extend the path; deeper lines under a plain
		// Command attach to the nearest enclosing Section instead.
		if nodeType == NodeTypeSection {
			path = append(path, node)
		}
	}

	warnings := p.validate(root, 0)
	return &ParseResult{Root: root, Warnings: warnings}, nil
}

func (p *HierarchicalParser) validate(n *ConfigNode, depth int) []string {
	var warnings []string
	if n.NodeType == NodeTypeCommand && strings.TrimSpace(n.CommandText) == "" {
		warnings = append(warnings, fmt.Sprintf("line %d: empty command", n.LineNumber))
	}
	if depth > p.Config.MaxDepth {
		warnings = append(warnings, fmt.Sprintf("line %d: depth %d exceeds limit %d", n.LineNumber, depth, p.Config.MaxDepth))
	}
	for _, c := range n.Children {
		if c.IndentLevel > 0 && c.IndentLevel <= n.IndentLevel && n.NodeType != NodeTypeRoot {
			warnings = append(warnings, fmt.Sprintf("line %d: orphan child (indent %d <= parent indent %d)", c.LineNumber, c.IndentLevel, n.IndentLevel))
		}
		warnings = append(warnings, p.validate(c, depth+1)...)
	}
	return warnings
}

// Parse is a convenience entry point that preprocesses text for vendor,
// then parses it with cfg.
func Parse(vendor Vendor, text string, cfg ParserConfig) (*ParseResult, error) {
	pre := Preprocess(vendor, text)
	return NewHierarchicalParser(cfg).Parse(pre)
}

// ParseVlanID extracts the numeric VLAN id carried in a Vlan context arg,
// validating it against the 1-4094 range, or returns an error wrapping
// util.ErrInvalidConfig if it isn't numeric or out of range.
func ParseVlanID(ctx Context) (int, error) {
	if ctx.Kind != ContextVlan {
		return 0, fmt.Errorf("%w: not a vlan context", util.ErrInvalidConfig)
	}
	id, err := strconv.Atoi(ctx.Arg)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", util.ErrInvalidConfig, err)
	}
	if err := util.ValidateVLANID(id); err != nil {
		return 0, fmt.Errorf("%w: %v", util.ErrInvalidConfig, err)
	}
	return id, nil
}
