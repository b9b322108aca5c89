package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/munet-project/unet/pkg/auth"
	"github.com/munet-project/unet/pkg/model"
	"github.com/munet-project/unet/pkg/util"
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "View managed nodes and topology",
}

var nodeListRoles string

var nodeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List nodes in the inventory",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkPermission(auth.PermNodeView, nil); err != nil {
			return err
		}

		topo, err := model.LoadTopology(app.configDir)
		if err != nil {
			return fmt.Errorf("loading topology: %w", err)
		}

		roleFilter := map[string]bool{}
		for _, r := range util.SplitCommaSeparated(nodeListRoles) {
			roleFilter[r] = true
		}

		ids := make([]string, 0, len(topo.Nodes))
		for id, n := range topo.Nodes {
			if len(roleFilter) > 0 && !roleFilter[string(n.Role)] {
				continue
			}
			ids = append(ids, id)
		}
		sort.Strings(ids)

		if app.jsonOutput {
			filtered := make(map[string]*model.Node, len(ids))
			for _, id := range ids {
				filtered[id] = topo.Nodes[id]
			}
			return json.NewEncoder(os.Stdout).Encode(filtered)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tVENDOR\tROLE\tLIFECYCLE\tMGMT IP")
		for _, id := range ids {
			n := topo.Nodes[id]
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", n.ID, n.Name, n.Vendor, n.Role, n.Lifecycle, dash(n.ManagementIP))
		}
		w.Flush()
		return nil
	},
}

var nodeShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a node's details and links",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := requireNode()
		if err != nil {
			return err
		}
		if err := checkPermission(auth.PermNodeView, auth.NewContext().WithNode(id)); err != nil {
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

		if app.jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(n)
		}

		fmt.Printf("%s\n", bold(n.FQDN()))
		fmt.Printf("  vendor:      %s\n", n.Vendor)
		fmt.Printf("  model:       %s\n", n.Model)
		fmt.Printf("  role:        %s\n", n.Role)
		fmt.Printf("  lifecycle:   %s\n", n.Lifecycle)
		fmt.Printf("  mgmt ip:     %s\n", dash(n.ManagementIP))

		links := topo.LinksForNode(id)
		if len(links) > 0 {
			fmt.Println("  links:")
			for _, l := range links {
				fmt.Printf("    %s\n", l.String())
			}
		}
		return nil
	},
}

func init() {
	nodeListCmd.Flags().StringVar(&nodeListRoles, "roles", "", "Comma-separated list of roles to include (e.g. router,switch)")

	nodeCmd.AddCommand(nodeListCmd)
	nodeCmd.AddCommand(nodeShowCmd)
}
