package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/munet-project/unet/pkg/auth"
	"github.com/munet-project/unet/pkg/configparser"
	"github.com/munet-project/unet/pkg/util"
	"github.com/munet-project/unet/pkg/workflow"
)

var (
	workflowRequireApproval bool
	workflowApprovers       []string
	workflowRejectReason    string
	workflowPruneBefore     time.Duration
)

var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Compute, approve, and apply change workflows across CLI invocations",
	Long: `workflow runs proposed configuration changes through the diff/approve/
apply state machine. Because each CLI invocation is a fresh process, the
workflow table is persisted to workflows.json in the config directory and
reloaded at the start of every workflow subcommand.`,
}

func workflowStatePath() string {
	return filepath.Join(app.configDir, "workflows.json")
}

func emergencyStatePath() string {
	return filepath.Join(app.configDir, "emergencies.json")
}

func loadEngine(vendor configparser.Vendor) (*workflow.Engine, error) {
	e := workflow.NewEngine(vendor)

	data, err := os.ReadFile(workflowStatePath())
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading workflow state: %w", err)
	}
	if err == nil {
		var records []workflow.Record
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("parsing workflow state: %w", err)
		}
		e.Restore(records)
	}

	emData, err := os.ReadFile(emergencyStatePath())
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading emergency state: %w", err)
	}
	if err == nil {
		var records []workflow.EmergencyRecord
		if err := json.Unmarshal(emData, &records); err != nil {
			return nil, fmt.Errorf("parsing emergency state: %w", err)
		}
		e.RestoreEmergencies(records)
	}

	return e, nil
}

func saveEngine(e *workflow.Engine) error {
	if err := os.MkdirAll(app.configDir, 0o755); err != nil {
		return err
	}

	records := e.Snapshot()
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(workflowStatePath(), data, 0o644); err != nil {
		return err
	}

	emRecords := e.EmergencySnapshots()
	emData, err := json.MarshalIndent(emRecords, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(emergencyStatePath(), emData, 0o644)
}

var workflowComputeCmd = &cobra.Command{
	Use:   "compute <old-file> <new-file>",
	Short: "Compute a change workflow from old config to new config",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := requireNode()
		if err != nil {
			return err
		}
		if err := checkPermission(auth.PermConfigDiff, auth.NewContext().WithNode(id)); err != nil {
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

		w, err := e.Compute(string(oldText), string(newText), workflow.Options{
			NodeID:          id,
			RequireApproval: workflowRequireApproval,
			Approvers:       workflowApprovers,
		})
		if serr := saveEngine(e); serr != nil {
			warnSaveError(serr)
		}
		if err != nil {
			return err
		}

		printWorkflow(w)
		return nil
	},
}

func warnSaveError(err error) {
	fmt.Fprintln(os.Stderr, yellow(fmt.Sprintf("warning: could not persist workflow state: %v", err)))
}

func printWorkflow(w *workflow.Workflow) {
	if app.jsonOutput {
		_ = json.NewEncoder(os.Stdout).Encode(w.ToRecord())
		return
	}
	fmt.Printf("id:       %s\n", w.ID)
	fmt.Printf("node:     %s\n", w.NodeID)
	fmt.Printf("state:    %s\n", workflowStateColor(w.State))
	if w.Error != "" {
		fmt.Printf("error:    %s\n", red(w.Error))
	}
	if w.Hierarchical != nil {
		fmt.Printf("changes:  %d\n", len(w.Hierarchical.Changes))
	}
}

func workflowStateColor(s workflow.State) string {
	switch s {
	case workflow.StateFailed, workflow.StateRejected:
		return red(string(s))
	case workflow.StateApproved, workflow.StateCompleted, workflow.StateArchived:
		return green(string(s))
	default:
		return yellow(string(s))
	}
}

var workflowShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a workflow's diff and history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkPermission(auth.PermWorkflowView, nil); err != nil {
			return err
		}
		e, err := loadEngine(configparser.Vendor(configVendor))
		if err != nil {
			return err
		}
		w, ok := e.Get(args[0])
		if !ok {
			return util.NewNotFoundError("workflow", args[0])
		}

		printWorkflow(w)
		if w.Hierarchical != nil {
			fmt.Println("\nchanges:")
			for _, c := range w.Hierarchical.Changes {
				fmt.Printf("  %s %s\n", changeMarker(c.Type), c.Path)
			}
		}
		fmt.Println("\nhistory:")
		for _, h := range w.History() {
			fmt.Printf("  %s %s -> %s by %s: %s\n", h.At.Format(time.RFC3339), h.From, h.To, dash(h.Actor), dash(h.Note))
		}
		return nil
	},
}

var workflowListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked workflows, most recently updated first",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkPermission(auth.PermWorkflowView, nil); err != nil {
			return err
		}
		e, err := loadEngine(configparser.Vendor(configVendor))
		if err != nil {
			return err
		}
		workflows := e.List()

		if app.jsonOutput {
			records := make([]workflow.Record, len(workflows))
			for i, w := range workflows {
				records[i] = w.ToRecord()
			}
			return json.NewEncoder(os.Stdout).Encode(records)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNODE\tSTATE\tUPDATED")
		for _, wf := range workflows {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", wf.ID, wf.NodeID, wf.State, wf.UpdatedAt.Format(time.RFC3339))
		}
		w.Flush()
		return nil
	},
}

var workflowPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List workflows awaiting approval, oldest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkPermission(auth.PermWorkflowView, nil); err != nil {
			return err
		}
		e, err := loadEngine(configparser.Vendor(configVendor))
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNODE\tCREATED\tCHANGES")
		for _, wf := range e.PendingApprovals() {
			changes := 0
			if wf.Hierarchical != nil {
				changes = len(wf.Hierarchical.Changes)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", wf.ID, wf.NodeID, wf.CreatedAt.Format(time.RFC3339), changes)
		}
		w.Flush()
		return nil
	},
}

var workflowApproveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Approve a pending workflow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkPermission(auth.PermWorkflowApprove, nil); err != nil {
			return err
		}
		if !app.executeMode {
			fmt.Println(yellow("PREVIEW: would approve workflow " + args[0] + ". Use -x to actually approve."))
			return nil
		}

		e, err := loadEngine(configparser.Vendor(configVendor))
		if err != nil {
			return err
		}
		if err := e.Approve(args[0], currentUsername()); err != nil {
			return err
		}
		if err := saveEngine(e); err != nil {
			return err
		}
		fmt.Println(green("approved " + args[0]))
		return nil
	},
}

var workflowRejectCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Reject a pending workflow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkPermission(auth.PermWorkflowReject, nil); err != nil {
			return err
		}
		if !app.executeMode {
			fmt.Println(yellow("PREVIEW: would reject workflow " + args[0] + ". Use -x to actually reject."))
			return nil
		}

		e, err := loadEngine(configparser.Vendor(configVendor))
		if err != nil {
			return err
		}
		if err := e.Reject(args[0], currentUsername(), workflowRejectReason); err != nil {
			return err
		}
		if err := saveEngine(e); err != nil {
			return err
		}
		fmt.Println(green("rejected " + args[0]))
		return nil
	},
}

var workflowApplyCmd = &cobra.Command{
	Use:   "apply <id>",
	Short: "Mark a completed or approved workflow as applied",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkPermission(auth.PermConfigApply, nil); err != nil {
			return err
		}
		if !app.executeMode {
			fmt.Println(yellow("PREVIEW: would apply workflow " + args[0] + ". Use -x to actually apply."))
			return nil
		}

		e, err := loadEngine(configparser.Vendor(configVendor))
		if err != nil {
			return err
		}
		if err := e.Apply(args[0], currentUsername()); err != nil {
			return err
		}
		if err := saveEngine(e); err != nil {
			return err
		}
		fmt.Println(green("applied " + args[0]))
		return nil
	},
}

var workflowRollbackCmd = &cobra.Command{
	Use:   "rollback <id>",
	Short: "Compute the inverse of an archived workflow as a new workflow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := requireNode()
		if err != nil {
			return err
		}
		if err := checkPermission(auth.PermConfigApply, auth.NewContext().WithNode(id)); err != nil {
			return err
		}

		e, err := loadEngine(configparser.Vendor(configVendor))
		if err != nil {
			return err
		}
		w, err := e.Rollback(args[0], workflow.Options{
			NodeID:          id,
			RequireApproval: workflowRequireApproval,
			Approvers:       workflowApprovers,
		})
		if serr := saveEngine(e); serr != nil {
			warnSaveError(serr)
		}
		if err != nil {
			return err
		}
		printWorkflow(w)
		return nil
	},
}

var workflowPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove archived/rejected workflows older than --older-than",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkPermission(auth.PermWorkflowApprove, nil); err != nil {
			return err
		}
		e, err := loadEngine(configparser.Vendor(configVendor))
		if err != nil {
			return err
		}
		removed := e.PruneArchivedBefore(time.Now().Add(-workflowPruneBefore))
		if err := saveEngine(e); err != nil {
			return err
		}
		fmt.Printf("pruned %d workflow(s)\n", removed)
		return nil
	},
}

func currentUsername() string {
	return app.permChecker.CurrentUser()
}

func init() {
	workflowCmd.PersistentFlags().BoolVar(&workflowRequireApproval, "require-approval", true, "Require approval before a non-empty diff can be applied")
	workflowCmd.PersistentFlags().StringSliceVar(&workflowApprovers, "approvers", nil, "Usernames authorized to approve/reject (empty allows any user)")
	workflowRejectCmd.Flags().StringVar(&workflowRejectReason, "reason", "", "Reason for rejection")
	workflowPruneCmd.Flags().DurationVar(&workflowPruneBefore, "older-than", 30*24*time.Hour, "Prune archived/rejected workflows last updated before this long ago")

	workflowCmd.AddCommand(workflowComputeCmd)
	workflowCmd.AddCommand(workflowShowCmd)
	workflowCmd.AddCommand(workflowListCmd)
	workflowCmd.AddCommand(workflowPendingCmd)
	workflowCmd.AddCommand(workflowApproveCmd)
	workflowCmd.AddCommand(workflowRejectCmd)
	workflowCmd.AddCommand(workflowApplyCmd)
	workflowCmd.AddCommand(workflowRollbackCmd)
	workflowCmd.AddCommand(workflowPruneCmd)
}
