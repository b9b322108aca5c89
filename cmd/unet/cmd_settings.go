package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/munet-project/unet/pkg/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage persistent settings",
	Long: `Manage persistent settings stored in ~/.unet/settings.json.

Settings provide defaults for context flags:
  - default_network: stored and shown only; no command reads it
  - default_node:    used when -n is not specified
  - config_dir:       node inventory directory
  - policy_dir:       policy rule source directory

Examples:
  unet settings show
  unet settings set network production
  unet settings set node leaf1-ny
  unet settings set config_dir /etc/unet
  unet settings clear`,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load()
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}

		fmt.Printf("Settings file: %s\n\n", settings.DefaultSettingsPath())

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SETTING\tVALUE")
		fmt.Fprintln(w, "-------\t-----")

		printSetting := func(name, value string) {
			if value == "" {
				value = "(not set)"
			}
			fmt.Fprintf(w, "%s\t%s\n", name, value)
		}

		printSetting("default_network", s.DefaultNetwork)
		printSetting("default_node", s.DefaultNode)
		printSetting("last_node", s.LastNode)
		printSetting("config_dir", s.ConfigDir)
		printSetting("policy_dir", s.PolicyDir)
		printSetting("audit_log_path", s.AuditLogPath)

		w.Flush()
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <setting> <value>",
	Short: "Set a setting value",
	Long: `Set a persistent setting value.

Available settings:
  network    - default network/environment name (stored only; no flag reads it)
  node       - default node id
  config_dir - node inventory directory (-C flag fallback)
  policy_dir - policy rule source directory (-P flag fallback)

Examples:
  unet settings set network production
  unet settings set node leaf1-ny
  unet settings set config_dir /etc/unet`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		setting := args[0]
		value := args[1]

		s, err := settings.Load()
		if err != nil {
			s = &settings.Settings{}
		}

		switch setting {
		case "network":
			s.SetNetwork(value)
			fmt.Printf("Default network set to: %s\n", value)
		case "node":
			s.SetNode(value)
			fmt.Printf("Default node set to: %s\n", value)
		case "config_dir":
			s.SetConfigDir(value)
			fmt.Printf("Config directory set to: %s\n", value)
		case "policy_dir":
			s.PolicyDir = value
			fmt.Printf("Policy directory set to: %s\n", value)
		default:
			return fmt.Errorf("unknown setting: %s (valid: network, node, config_dir, policy_dir)", setting)
		}

		if err := s.Save(); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
		return nil
	},
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <setting>",
	Short: "Get a setting value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		setting := args[0]

		s, err := settings.Load()
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}

		var value string
		switch setting {
		case "network":
			value = s.DefaultNetwork
		case "node":
			value = s.DefaultNode
		case "last_node":
			value = s.LastNode
		case "config_dir":
			value = s.GetConfigDir()
		case "policy_dir":
			value = s.GetPolicyDir()
		default:
			return fmt.Errorf("unknown setting: %s", setting)
		}

		if value == "" {
			fmt.Println("(not set)")
		} else {
			fmt.Println(value)
		}
		return nil
	},
}

var settingsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear all settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		s := &settings.Settings{}
		if err := s.Save(); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
		fmt.Println("All settings cleared.")
		return nil
	},
}

var settingsPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show settings file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(settings.DefaultSettingsPath())
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsClearCmd)
	settingsCmd.AddCommand(settingsPathCmd)
}
