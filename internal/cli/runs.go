package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"strider/internal/storage"
)

// NewRunsCmd creates the runs command.
func NewRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Manage recorded runs",
		Long:  `List, view, and delete recorded browsing runs.`,
	}

	cmd.AddCommand(newRunsListCmd())
	cmd.AddCommand(newRunsShowCmd())
	cmd.AddCommand(newRunsDeleteCmd())
	cmd.AddCommand(newRunsClearCmd())

	return cmd
}

func newRunsListCmd() *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs",
		Long:  `List recorded browsing runs, newest first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := GetCLIContext(cmd)
			if cliCtx == nil {
				return fmt.Errorf("CLI context not initialized")
			}
			return runRunsList(cliCtx, limit, jsonOutput)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "maximum number of runs to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	return cmd
}

func newRunsShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show run details",
		Long:  `Display detailed information about a specific run.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := GetCLIContext(cmd)
			if cliCtx == nil {
				return fmt.Errorf("CLI context not initialized")
			}
			return runRunsShow(cliCtx, args[0], jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	return cmd
}

func newRunsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a run",
		Long:  `Delete a specific recorded run.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := GetCLIContext(cmd)
			if cliCtx == nil {
				return fmt.Errorf("CLI context not initialized")
			}
			return runRunsDelete(cliCtx, args[0])
		},
	}
}

func newRunsClearCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all runs",
		Long:  `Delete every recorded run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := GetCLIContext(cmd)
			if cliCtx == nil {
				return fmt.Errorf("CLI context not initialized")
			}
			return runRunsClear(cliCtx, force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation prompt")

	return cmd
}

func runRunsList(cliCtx *CLIContext, limit int, jsonOutput bool) error {
	db, err := cliCtx.GetStorage()
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}

	runs, err := db.ListRuns(limit, 0)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Println("No runs found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tSTEPS\tSTARTED\tTASK")
	fmt.Fprintln(w, "--\t------\t-----\t-------\t----")

	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			shortID(r.ID),
			r.Status,
			r.Steps,
			r.StartedAt.Format("2006-01-02 15:04"),
			truncate(r.Task, 50),
		)
	}
	w.Flush()

	fmt.Printf("\nTotal: %d runs\n", len(runs))

	return nil
}

func runRunsShow(cliCtx *CLIContext, runID string, jsonOutput bool) error {
	db, err := cliCtx.GetStorage()
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}

	run, err := resolveRun(db, runID)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}

	fmt.Printf("Run:     %s\n", run.ID)
	fmt.Printf("Status:  %s\n", run.Status)
	fmt.Printf("Task:    %s\n", run.Task)
	fmt.Printf("Steps:   %d\n", run.Steps)
	fmt.Printf("Started: %s\n", run.StartedAt.Format(time.RFC3339))
	if run.FinishedAt != nil {
		fmt.Printf("Finished: %s (%s)\n",
			run.FinishedAt.Format(time.RFC3339),
			run.FinishedAt.Sub(run.StartedAt).Round(time.Second))
	}
	fmt.Printf("Tokens:  %d prompt, %d completion\n", run.PromptTokens, run.CompletionTokens)

	if run.Outcome != "" {
		fmt.Println()
		fmt.Println("Outcome:")
		fmt.Println(run.Outcome)
	}

	return nil
}

func runRunsDelete(cliCtx *CLIContext, runID string) error {
	db, err := cliCtx.GetStorage()
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}

	run, err := resolveRun(db, runID)
	if err != nil {
		return err
	}

	if err := db.DeleteRun(run.ID); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	fmt.Printf("✓ Run deleted: %s\n", run.ID)
	return nil
}

func runRunsClear(cliCtx *CLIContext, force bool) error {
	db, err := cliCtx.GetStorage()
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}

	runs, err := db.ListRuns(0, 0)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Println("No runs to delete.")
		return nil
	}

	if !force {
		fmt.Printf("Are you sure you want to delete %d runs? (y/N): ", len(runs))
		var response string
		_, _ = fmt.Scanln(&response)
		if response != "y" && response != "Y" && response != "yes" {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	deleted := 0
	for _, r := range runs {
		if err := db.DeleteRun(r.ID); err == nil {
			deleted++
		}
	}

	fmt.Printf("✓ Deleted %d runs\n", deleted)
	return nil
}

// resolveRun finds a run by full or shortened ID.
func resolveRun(db *storage.DB, id string) (*storage.Run, error) {
	run, err := db.GetRun(id)
	if err == nil {
		return run, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}

	// Fall back to prefix match over recent runs.
	runs, listErr := db.ListRuns(0, 0)
	if listErr != nil {
		return nil, fmt.Errorf("run not found: %s", id)
	}

	var match *storage.Run
	for _, r := range runs {
		if len(id) > 0 && len(r.ID) >= len(id) && r.ID[:len(id)] == id {
			if match != nil {
				return nil, fmt.Errorf("run ID %q is ambiguous", id)
			}
			match = r
		}
	}
	if match == nil {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	return match, nil
}

// shortID shortens a UUID for table display.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// truncate shortens a string for table display.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
