package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/munet-project/unet/pkg/auth"
	"github.com/munet-project/unet/pkg/configparser"
	"github.com/munet-project/unet/pkg/util"
	"github.com/munet-project/unet/pkg/workflow"
)

var (
	emergencySeverity    string
	emergencyCategory    string
	emergencyJustify     string
	emergencyValidity    time.Duration
	emergencyStrategy    string
	emergencyRollbackOn  []string
	emergencyResolveNote string
)

var emergencyCmd = &cobra.Command{
	Use:   "emergency",
	Short: "Declare and apply emergency configuration overrides that bypass approval",
	Long: `emergency is the bypass path for a change that cannot wait on the normal
workflow approval gate. A declared emergency snapshots the affected node's
current configuration, caps its own validity window, and every transition
it goes through is written to an audit trail with the acting user and a
timestamp. Changes applied under an emergency still produce ordinary
workflow records, stamped so the audit pipeline can tell a bypass from a
reviewed approval.`,
}

var emergencyDeclareCmd = &cobra.Command{
	Use:   "declare <old-file> <new-file>",
	Short: "Declare an emergency covering one node's change, snapshotting its current config",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := requireNode()
		if err != nil {
			return err
		}
		if err := checkPermission(auth.PermEmergencyDeclare, auth.NewContext().WithNode(id)); err != nil {
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

		e, err := loadEngine(configparser.Vendor(configVendor))
		if err != nil {
			return err
		}

		em, err := e.DeclareEmergency(
			workflow.EmergencySeverity(emergencySeverity),
			emergencyCategory,
			emergencyJustify,
			[]workflow.EmergencyChange{{NodeID: id, OldConfig: string(oldText), NewConfig: string(newText)}},
			emergencyValidity,
			currentUsername(),
		)
		if serr := saveEngine(e); serr != nil {
			warnSaveError(serr)
		}
		if err != nil {
			return err
		}

		printEmergency(em)
		return nil
	},
}

var emergencyApplyCmd = &cobra.Command{
	Use:   "apply <emergency-id>",
	Short: "Apply a declared emergency's changes, bypassing approval",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkPermission(auth.PermEmergencyApply, nil); err != nil {
			return err
		}
		if !app.executeMode {
			fmt.Println(yellow("PREVIEW: would apply emergency " + args[0] + " bypassing approval. Use -x to actually apply."))
			return nil
		}

		e, err := loadEngine(configparser.Vendor(configVendor))
		if err != nil {
			return err
		}
		em, err := e.ApplyEmergencyBypass(args[0], currentUsername())
		if serr := saveEngine(e); serr != nil {
			warnSaveError(serr)
		}
		if err != nil {
			return err
		}

		fmt.Println(red("EMERGENCY BYPASS APPLIED: " + args[0]))
		printEmergency(em)
		return nil
	},
}

var emergencyRollbackCmd = &cobra.Command{
	Use:   "rollback <emergency-id>",
	Short: "Restore an emergency's pre-change snapshots",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkPermission(auth.PermEmergencyApply, nil); err != nil {
			return err
		}
		if !app.executeMode {
			fmt.Println(yellow("PREVIEW: would roll back emergency " + args[0] + ". Use -x to actually roll back."))
			return nil
		}

		strategy := workflow.RollbackStrategy(emergencyStrategy)
		if !strategy.Valid() {
			return fmt.Errorf("unknown rollback strategy %q (use complete, partial, gradual, or emergency_stop)", emergencyStrategy)
		}

		e, err := loadEngine(configparser.Vendor(configVendor))
		if err != nil {
			return err
		}
		em, err := e.RollbackEmergency(args[0], strategy, currentUsername(), emergencyRollbackOn)
		if serr := saveEngine(e); serr != nil {
			warnSaveError(serr)
		}
		if err != nil {
			return err
		}

		fmt.Println(green("rollback (" + string(strategy) + ") initiated for " + args[0]))
		printEmergency(em)
		return nil
	},
}

var emergencyResolveCmd = &cobra.Command{
	Use:   "resolve <emergency-id>",
	Short: "Mark an emergency resolved, closing out its audit trail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkPermission(auth.PermEmergencyApply, nil); err != nil {
			return err
		}
		if !app.executeMode {
			fmt.Println(yellow("PREVIEW: would resolve emergency " + args[0] + ". Use -x to actually resolve."))
			return nil
		}

		e, err := loadEngine(configparser.Vendor(configVendor))
		if err != nil {
			return err
		}
		em, err := e.ResolveEmergency(args[0], currentUsername(), emergencyResolveNote)
		if serr := saveEngine(e); serr != nil {
			warnSaveError(serr)
		}
		if err != nil {
			return err
		}

		fmt.Println(green("resolved " + args[0]))
		printEmergency(em)
		return nil
	},
}

var emergencyShowCmd = &cobra.Command{
	Use:   "show <emergency-id>",
	Short: "Show a declared emergency's details and audit trail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkPermission(auth.PermEmergencyView, nil); err != nil {
			return err
		}
		e, err := loadEngine(configparser.Vendor(configVendor))
		if err != nil {
			return err
		}
		em, ok := e.GetEmergency(args[0])
		if !ok {
			return util.NewNotFoundError("emergency", args[0])
		}
		printEmergency(em)
		fmt.Println("\naudit:")
		for _, a := range em.Audit() {
			fmt.Printf("  %s %s by %s: %s\n", a.At.Format(time.RFC3339), a.State, dash(a.ActorID), dash(a.Note))
		}
		return nil
	},
}

var emergencyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List declared emergencies, most recently declared first",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkPermission(auth.PermEmergencyView, nil); err != nil {
			return err
		}
		e, err := loadEngine(configparser.Vendor(configVendor))
		if err != nil {
			return err
		}
		emergencies := e.ListEmergencies()

		if app.jsonOutput {
			records := make([]workflow.EmergencyRecord, len(emergencies))
			for i, em := range emergencies {
				records[i] = em.ToRecord()
			}
			return json.NewEncoder(os.Stdout).Encode(records)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSEVERITY\tCATEGORY\tSTATE\tEXPIRES\tRESOLVED")
		for _, em := range emergencies {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\n", em.ID, em.Severity, dash(em.Category), em.State, em.ExpiresAt.Format(time.RFC3339), em.Resolved)
		}
		w.Flush()
		return nil
	},
}

func printEmergency(em *workflow.Emergency) {
	if app.jsonOutput {
		_ = json.NewEncoder(os.Stdout).Encode(em.ToRecord())
		return
	}
	fmt.Printf("id:          %s\n", em.ID)
	fmt.Printf("severity:    %s\n", em.Severity)
	fmt.Printf("category:    %s\n", dash(em.Category))
	fmt.Printf("state:       %s\n", emergencyStateColor(em.State))
	fmt.Printf("declared_by: %s\n", dash(em.DeclaredBy))
	fmt.Printf("expires_at:  %s\n", em.ExpiresAt.Format(time.RFC3339))
	fmt.Printf("expired:     %t\n", em.Expired())
	fmt.Printf("changes:     %d\n", len(em.Changes))
	if len(em.WorkflowIDs) > 0 {
		fmt.Printf("workflows:   %v\n", em.WorkflowIDs)
	}
}

func emergencyStateColor(s workflow.EmergencyState) string {
	switch s {
	case workflow.EmergencyResolved:
		return green(string(s))
	case workflow.EmergencyRollbackInitiated:
		return yellow(string(s))
	case workflow.EmergencyConfigurationApplied:
		return red(string(s))
	default:
		return string(s)
	}
}

func init() {
	emergencyDeclareCmd.Flags().StringVar(&emergencySeverity, "severity", string(workflow.EmergencySeverityHigh), "Emergency severity: Critical, High, Medium, or Low")
	emergencyDeclareCmd.Flags().StringVar(&emergencyCategory, "category", "", "Emergency category (e.g. SecurityIncident)")
	emergencyDeclareCmd.Flags().StringVar(&emergencyJustify, "justification", "", "Justification for bypassing approval (minimum 50 characters)")
	emergencyDeclareCmd.Flags().DurationVar(&emergencyValidity, "validity", time.Hour, "How long the bypass remains valid (capped at 4h for Critical+SecurityIncident)")

	emergencyRollbackCmd.Flags().StringVar(&emergencyStrategy, "strategy", string(workflow.RollbackComplete), "Rollback strategy: complete, partial, gradual, or emergency_stop")
	emergencyRollbackCmd.Flags().StringSliceVar(&emergencyRollbackOn, "nodes", nil, "Node ids to restore (only consulted by --strategy partial)")

	emergencyResolveCmd.Flags().StringVar(&emergencyResolveNote, "note", "", "Closing note recorded in the audit trail")

	emergencyCmd.AddCommand(emergencyDeclareCmd)
	emergencyCmd.AddCommand(emergencyApplyCmd)
	emergencyCmd.AddCommand(emergencyRollbackCmd)
	emergencyCmd.AddCommand(emergencyResolveCmd)
	emergencyCmd.AddCommand(emergencyShowCmd)
	emergencyCmd.AddCommand(emergencyListCmd)
}
