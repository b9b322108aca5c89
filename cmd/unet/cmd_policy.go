package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/munet-project/unet/pkg/auth"
	"github.com/munet-project/unet/pkg/model"
	"github.com/munet-project/unet/pkg/policy"
	"github.com/munet-project/unet/pkg/policyloader"
	"github.com/munet-project/unet/pkg/util"
)

var (
	policyRemote string
	policyBranch string
	policyTTL    time.Duration
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Load and evaluate declarative WHEN/THEN policy rules",
}

func newLoader() *policyloader.Loader {
	dir := app.policyDir
	return policyloader.NewLoader(policyRemote, dir, policyBranch, policyTTL)
}

var policyReloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Sync and reload policy rules from the policy directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkPermission(auth.PermPolicyReload, nil); err != nil {
			return err
		}

		loader := newLoader()
		result, err := loader.Sync()
		if err != nil {
			return fmt.Errorf("syncing policy rules: %w", err)
		}

		if app.jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(result)
		}

		fmt.Printf("added: %d, reloaded: %d, removed: %d\n", len(result.Added), len(result.Reloaded), len(result.Removed))
		for path, rerr := range result.Errors {
			fmt.Println(red(fmt.Sprintf("  %s: %v", path, rerr)))
		}
		return nil
	},
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List currently loaded policy rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkPermission(auth.PermPolicyView, nil); err != nil {
			return err
		}

		loader := newLoader()
		if _, err := loader.Sync(); err != nil {
			return fmt.Errorf("syncing policy rules: %w", err)
		}

		rules := loader.Rules()
		if app.jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(rules)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tPRIORITY\tACTION\tSOURCE:LINE")
		for _, r := range rules {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s:%d\n", dash(r.Name), r.Priority, r.Action.Kind, r.Source, r.Line)
		}
		w.Flush()
		return nil
	},
}

var policyValidateCmd = &cobra.Command{
	Use:   "validate <dir>",
	Short: "Validate every .policy file in dir without loading it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkPermission(auth.PermPolicyView, nil); err != nil {
			return err
		}
		if err := policyloader.ValidateDirectory(args[0]); err != nil {
			return err
		}
		fmt.Println(green("All policy files valid."))
		return nil
	},
}

var policyEvalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate loaded policy rules against a node's desired state",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := requireNode()
		if err != nil {
			return err
		}
		if err := checkPermission(auth.PermPolicyView, auth.NewContext().WithNode(id)); err != nil {
			return err
		}

		topo, err := model.LoadTopology(app.configDir)
		if err != nil {
			return fmt.Errorf("loading topology: %w", err)
		}
		n, ok := topo.Nodes[id]
		if !ok {
			return util.NewNotFoundError("node", id)
		}

		loader := newLoader()
		if _, err := loader.Sync(); err != nil {
			return fmt.Errorf("syncing policy rules: %w", err)
		}
		rules := loader.Rules()

		root := nodeEvaluationRoot(n)
		ctx := policy.NewEvaluationContext(root)
		ev := policy.NewEvaluator()

		overlay := policy.Overlay{}
		var failures []policy.AssertOutcome
		var applied []policy.TemplateBinding

		for _, r := range rules {
			result := ev.Evaluate(r, ctx)
			if result.Verdict == policy.EvalError {
				fmt.Println(red(fmt.Sprintf("%s: evaluation error: %v", dash(r.Name), result.Err)))
				continue
			}
			if result.Verdict != policy.Satisfied {
				continue
			}
			outcome, binding, err := policy.Execute(r, ctx, overlay)
			if err != nil {
				fmt.Println(red(fmt.Sprintf("%s: action error: %v", dash(r.Name), err)))
				continue
			}
			if outcome != nil {
				if outcome.Passed {
					fmt.Println(green(fmt.Sprintf("%s: ASSERT %s passed", dash(r.Name), outcome.Field)))
				} else {
					fmt.Println(red(fmt.Sprintf("%s: ASSERT %s failed: got %v, want %v", dash(r.Name), outcome.Field, outcome.Actual, outcome.Expected)))
					failures = append(failures, *outcome)
				}
			}
			if binding != nil {
				fmt.Println(yellow(fmt.Sprintf("%s: APPLY %s", dash(r.Name), binding.Template)))
				applied = append(applied, *binding)
			}
		}

		if len(overlay) > 0 {
			fmt.Println("\nOverlay:")
			for k, v := range overlay {
				fmt.Printf("  %s = %v\n", k, v)
			}
		}

		if len(failures) > 0 {
			return fmt.Errorf("%d assertion(s) failed", len(failures))
		}
		return nil
	},
}

func nodeEvaluationRoot(n *model.Node) map[string]any {
	node := map[string]any{
		"id":            n.ID,
		"name":          n.Name,
		"domain":        n.Domain,
		"vendor":        string(n.Vendor),
		"model":         n.Model,
		"role":          string(n.Role),
		"lifecycle":     string(n.Lifecycle),
		"management_ip": n.ManagementIP,
	}
	if n.LocationID != nil {
		node["location_id"] = *n.LocationID
	}
	node = util.MergeMaps(node, map[string]any(n.CustomData))
	return map[string]any{"node": node}
}

func init() {
	policyCmd.PersistentFlags().StringVar(&policyRemote, "remote", "", "Git remote URL to sync policy rules from (optional)")
	policyCmd.PersistentFlags().StringVar(&policyBranch, "branch", "main", "Git branch to sync")
	policyCmd.PersistentFlags().DurationVar(&policyTTL, "ttl", 5*time.Minute, "Cache TTL before a file is reloaded even without an mtime change")

	policyCmd.AddCommand(policyReloadCmd)
	policyCmd.AddCommand(policyListCmd)
	policyCmd.AddCommand(policyValidateCmd)
	policyCmd.AddCommand(policyEvalCmd)
}
