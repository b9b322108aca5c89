package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/munet-project/unet/pkg/auth"
	"github.com/munet-project/unet/pkg/snmp"
)

var (
	pollCommunity string
	pollInterval  time.Duration
	pollPriority  string
	pollJitter    time.Duration
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Poll nodes over SNMP, one-shot or via the scheduler",
}

var pollGetCmd = &cobra.Command{
	Use:   "get <target> <oid> [oid...]",
	Short: "Perform a single synchronous SNMP GET against host:port",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkPermission(auth.PermPollView, nil); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		client := snmp.NewClient()
		values, err := client.Get(ctx, args[0], pollCommunity, args[1:])
		if err != nil {
			return fmt.Errorf("snmp get: %w", err)
		}

		if app.jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(values)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "OID\tVALUE")
		for _, oid := range args[1:] {
			fmt.Fprintf(w, "%s\t%s\n", oid, dash(values[oid]))
		}
		w.Flush()
		return nil
	},
}

var pollWatchCmd = &cobra.Command{
	Use:   "watch <target> <oid> [oid...]",
	Short: "Run the polling scheduler against a single target until interrupted",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := requireNode()
		if err != nil {
			return err
		}
		if err := checkPermission(auth.PermPollManage, auth.NewContext().WithNode(id)); err != nil {
			return err
		}

		cfg := snmp.DefaultSchedulerConfig()
		scheduler := snmp.NewScheduler(cfg, snmp.NewClient())

		task := &snmp.PollingTask{
			NodeID:    id,
			Target:    args[0],
			Community: pollCommunity,
			OIDs:      args[1:],
			Priority:  parsePollPriority(pollPriority),
			Interval:  pollInterval,
			Jitter:    pollJitter,
			Enabled:   true,
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

		go scheduler.Run(ctx)
		scheduler.Control() <- snmp.ControlMessage{Kind: snmp.ControlAdd, Task: task}

		fmt.Printf("polling %s every %s, ctrl-C to stop\n", args[0], pollInterval)
		for {
			select {
			case <-sig:
				scheduler.Control() <- snmp.ControlMessage{Kind: snmp.ControlShutdown}
				cancel()
				return nil
			case result := <-scheduler.Results():
				printPollResult(result)
			}
		}
	},
}

func printPollResult(r snmp.PollingResult) {
	ts := r.At.Format(time.RFC3339)
	if !r.Success {
		fmt.Println(red(fmt.Sprintf("[%s] %s: %v", ts, r.NodeID, r.Err)))
		return
	}
	var parts []string
	for oid, v := range r.Values {
		parts = append(parts, oid+"="+v)
	}
	fmt.Println(green(fmt.Sprintf("[%s] %s: %s", ts, r.NodeID, strings.Join(parts, " "))))
}

func parsePollPriority(s string) snmp.Priority {
	switch strings.ToLower(s) {
	case "critical":
		return snmp.PriorityCritical
	case "high":
		return snmp.PriorityHigh
	case "medium":
		return snmp.PriorityMedium
	default:
		return snmp.PriorityLow
	}
}

func init() {
	pollCmd.PersistentFlags().StringVar(&pollCommunity, "community", "public", "SNMP community string")
	pollWatchCmd.Flags().DurationVar(&pollInterval, "interval", 30*time.Second, "Poll interval")
	pollWatchCmd.Flags().StringVar(&pollPriority, "priority", "medium", "Poll priority (low, medium, high, critical)")
	pollWatchCmd.Flags().DurationVar(&pollJitter, "jitter", 2*time.Second, "Random +/- offset applied to each scheduled poll time")

	pollCmd.AddCommand(pollGetCmd)
	pollCmd.AddCommand(pollWatchCmd)
}
