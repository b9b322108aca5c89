package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/munet-project/unet/pkg/auth"
	"github.com/munet-project/unet/pkg/configparser"
	"github.com/munet-project/unet/pkg/diff"
)

var (
	configVendor string
	diffFormat   string
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Parse and diff device configuration text",
}

var configParseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Parse a configuration file and print its command tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkPermission(auth.PermConfigView, nil); err != nil {
			return err
		}

		text, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}

		result, err := configparser.Parse(configparser.Vendor(configVendor), string(text), configparser.DefaultParserConfig())
		if err != nil {
			return fmt.Errorf("parsing %s: %w", args[0], err)
		}

		printNode(result.Root, 0)
		for _, w := range result.Warnings {
			fmt.Println(yellow("warning: " + w))
		}
		return nil
	},
}

func printNode(n *configparser.ConfigNode, depth int) {
	if n == nil {
		return
	}
	if n.Command() != "" {
		fmt.Printf("%s%s\n", indent(depth), n.Command())
	}
	for _, child := range n.Children {
		printNode(child, depth+1)
	}
}

func indent(depth int) string {
	out := ""
	for i := 0; i < depth; i++ {
		out += "  "
	}
	return out
}

var configDiffCmd = &cobra.Command{
	Use:   "diff <old-file> <new-file>",
	Short: "Show the hierarchical and functional diff between two configs",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		nodeID := app.nodeID
		if err := checkPermission(auth.PermConfigDiff, auth.NewContext().WithNode(nodeID)); err != nil {
			return err
		}

		oldText, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		newText, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[1], err)
		}

		vendor := configparser.Vendor(configVendor)
		oldResult, err := configparser.Parse(vendor, string(oldText), configparser.DefaultParserConfig())
		if err != nil {
			return fmt.Errorf("parsing %s: %w", args[0], err)
		}
		newResult, err := configparser.Parse(vendor, string(newText), configparser.DefaultParserConfig())
		if err != nil {
			return fmt.Errorf("parsing %s: %w", args[1], err)
		}

		hd := diff.DiffTrees(oldResult.Root, newResult.Root)
		if len(hd.Changes) == 0 {
			fmt.Println(green("No differences."))
			return nil
		}

		for _, c := range hd.Changes {
			fmt.Printf("%s %s\n", changeMarker(c.Type), c.Path)
		}

		textDiff := diff.TextDiff(string(oldText), string(newText), 3)

		format := diff.Format(diffFormat)
		if !format.Valid() {
			return fmt.Errorf("unknown diff format %q (use unified, side-by-side, colored, or html)", diffFormat)
		}
		rendered, err := diff.Render(format, textDiff, args[0], args[1], terminalWidth())
		if err != nil {
			return err
		}
		fmt.Println("\n" + rendered)

		semantic := diff.SemanticDiff(textDiff)
		if len(semantic) > 0 {
			fmt.Println("Functional changes:")
			for _, fc := range semantic {
				fmt.Printf("  [%s/%s] %s: %s -> %s\n", fc.Bucket, fc.Severity, dash(fc.Field), dash(fc.OldValue), dash(fc.NewValue))
			}
		}

		return nil
	},
}

// terminalWidth reports stdout's column count, falling back to 80 when it
// isn't a terminal (e.g. piped output, CI).
func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}

func changeMarker(t diff.ChangeType) string {
	switch t {
	case diff.ChangeAddition:
		return green("+")
	case diff.ChangeDeletion:
		return red("-")
	default:
		return yellow("~")
	}
}

func init() {
	configCmd.PersistentFlags().StringVar(&configVendor, "vendor", string(configparser.VendorGeneric), "Vendor dialect (cisco, juniper, arista, generic)")
	configDiffCmd.Flags().StringVar(&diffFormat, "format", string(diff.FormatUnified), "Diff output format: unified, side-by-side, colored, or html")
	configCmd.AddCommand(configParseCmd)
	configCmd.AddCommand(configDiffCmd)
}
