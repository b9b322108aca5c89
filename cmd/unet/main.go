// unet is a noun-group CLI for managing network device configuration:
// parsing and diffing vendor config text, evaluating declarative policy
// rules against node state, polling nodes over SNMP, coordinating changes
// through distributed locks and an approval workflow, and storing secrets.
//
//	unet <node> config diff old.cfg new.cfg
//	unet policy eval -P ./policies
//	unet workflow approve <id>
//	unet settings show
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/munet-project/unet/pkg/audit"
	"github.com/munet-project/unet/pkg/auth"
	"github.com/munet-project/unet/pkg/cli"
	"github.com/munet-project/unet/pkg/settings"
	"github.com/munet-project/unet/pkg/util"
	"github.com/munet-project/unet/pkg/version"
)

// App holds CLI state shared across all commands.
type App struct {
	// Context flags
	nodeID string

	// Option flags
	configDir  string
	policyDir  string
	jsonOutput bool
	verbose    bool

	// Write flags, for commands that gate on an approval/apply step.
	executeMode bool

	// Initialized state (set in PersistentPreRunE)
	settings    *settings.Settings
	permChecker *auth.Checker
}

var app = &App{}

func main() {
	// Implicit node name: if the first arg is not a known command or flag,
	// treat it as a node id. This lets users write:
	//   unet leaf1-ny config diff a.cfg b.cfg
	// instead of:
	//   unet -n leaf1-ny config diff a.cfg b.cfg
	if len(os.Args) > 1 && !strings.HasPrefix(os.Args[1], "-") && !isKnownCommand(os.Args[1]) {
		os.Args = append([]string{os.Args[0], "-n", os.Args[1]}, os.Args[2:]...)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func isKnownCommand(name string) bool {
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == name {
			return true
		}
		for _, alias := range cmd.Aliases {
			if alias == name {
				return true
			}
		}
	}
	return name == "help" || name == "completion"
}

var rootCmd = &cobra.Command{
	Use:               "unet",
	Short:             "Network Configuration Management Tool",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `unet is a noun-group CLI for managing network device configuration.

Commands are organized by resource (config, policy, poll, lock, secret,
workflow, emergency, node). Commands that mutate shared state preview by default —
use -x to execute.

  unet <node> <resource> <action> [args] [-x]

The first argument is the node id unless it matches a known command.

  unet leaf1-ny config diff running.cfg candidate.cfg
  unet policy eval -P ./policies --node leaf1-ny
  unet workflow approve 3f9c2e1a
  unet settings show                          # no node needed`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if isSettingsOrHelp(cmd) {
			return nil
		}

		var err error
		app.settings, err = settings.Load()
		if err != nil {
			util.Logger.Warnf("Could not load settings: %v", err)
			app.settings = &settings.Settings{}
		}

		if app.configDir == "" {
			app.configDir = app.settings.GetConfigDir()
		}
		if app.policyDir == "" {
			app.policyDir = app.settings.GetPolicyDir()
		}
		if app.nodeID == "" {
			app.nodeID = app.settings.DefaultNode
		}

		if app.verbose {
			util.SetLogLevel("debug")
		} else {
			util.SetLogLevel("warn")
		}

		app.permChecker = auth.NewChecker(loadAccessPolicy(app.configDir))

		auditPath := app.settings.GetAuditLogPath(app.configDir)
		auditLogger, err := audit.NewFileLogger(auditPath, audit.RotationConfig{
			MaxSize:    int64(app.settings.GetAuditMaxSizeMB()) * 1024 * 1024,
			MaxBackups: app.settings.GetAuditMaxBackups(),
		})
		if err != nil {
			util.Logger.Warnf("Could not initialize audit logging: %v", err)
		} else {
			audit.SetDefaultLogger(auditLogger)
		}

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&app.nodeID, "node", "n", "", "Node id")
	rootCmd.PersistentFlags().StringVarP(&app.configDir, "config-dir", "C", "", "Node inventory directory")
	rootCmd.PersistentFlags().StringVarP(&app.policyDir, "policy-dir", "P", "", "Policy rule source directory")
	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&app.jsonOutput, "json", false, "JSON output")

	for _, cmd := range []*cobra.Command{configCmd, workflowCmd, lockCmd, secretCmd, emergencyCmd} {
		addWriteFlags(cmd)
	}

	rootCmd.AddGroup(
		&cobra.Group{ID: "resource", Title: "Resource Commands:"},
		&cobra.Group{ID: "meta", Title: "Configuration & Meta:"},
	)

	for _, cmd := range []*cobra.Command{nodeCmd, configCmd, policyCmd, pollCmd, lockCmd, secretCmd, workflowCmd, emergencyCmd} {
		cmd.GroupID = "resource"
		rootCmd.AddCommand(cmd)
	}

	for _, cmd := range []*cobra.Command{settingsCmd, auditCmd, versionCmd} {
		cmd.GroupID = "meta"
		rootCmd.AddCommand(cmd)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if version.Version == "dev" {
			fmt.Println("unet dev build")
		} else {
			fmt.Printf("unet %s (%s)\n", version.Version, version.GitCommit)
		}
	},
}

// isSettingsOrHelp checks whether cmd (or any ancestor) is a settings, help, or version command.
func isSettingsOrHelp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "version", "settings":
			return true
		}
	}
	return false
}

// addWriteFlags registers -x/--execute as a local or persistent flag,
// depending on whether cmd has subcommands.
func addWriteFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if cmd.HasSubCommands() {
		flags = cmd.PersistentFlags()
	}
	flags.BoolVarP(&app.executeMode, "execute", "x", false, "Execute/apply (default is preview only)")
}

// requireNode ensures a node id is specified via -n flag.
func requireNode() (string, error) {
	if app.nodeID == "" {
		return "", fmt.Errorf("node required: use -n <node> flag")
	}
	return app.nodeID, nil
}

// checkPermission enforces perm for the current user, scoped to ctx.
func checkPermission(perm auth.Permission, ctx *auth.Context) error {
	return app.permChecker.Check(perm, ctx)
}

// Color helpers — delegate to pkg/cli
func green(s string) string  { return cli.Green(s) }
func yellow(s string) string { return cli.Yellow(s) }
func red(s string) string    { return cli.Red(s) }
func bold(s string) string   { return cli.Bold(s) }

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func dashInt(v int) string {
	if v <= 0 {
		return "-"
	}
	return strconv.Itoa(v)
}

func printDryRunNotice() {
	if !app.executeMode {
		fmt.Println("\n" + yellow("PREVIEW ONLY: no changes applied. Use -x to execute."))
	}
}
