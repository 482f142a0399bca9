package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"strider/internal/config"
	"strider/internal/schedule"
)

// NewScheduleCmd creates the schedule command.
func NewScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage scheduled tasks",
		Long: `Inspect and trigger the tasks in your schedule file.

Tasks are defined in a YAML file (default ~/.strider/tasks.yaml) and
executed by a running strider server. Edits to the file are picked up
by the server without a restart.`,
	}

	cmd.AddCommand(newScheduleListCmd())
	cmd.AddCommand(newScheduleValidateCmd())
	cmd.AddCommand(newScheduleRunCmd())

	return cmd
}

// tasksFilePath resolves the schedule file the CLI should read.
func tasksFilePath(cliCtx *CLIContext) (string, error) {
	path := cliCtx.Config.Schedule.TasksFile
	if path == "" {
		var err error
		path, err = config.DefaultTasksPath()
		if err != nil {
			return "", fmt.Errorf("failed to determine tasks path: %w", err)
		}
	}
	return config.ExpandPath(path)
}

// serverURLFromConfig builds the gateway base URL for CLI requests.
func serverURLFromConfig(cliCtx *CLIContext) string {
	host := cliCtx.Config.Gateway.Host
	port := cliCtx.Config.Gateway.Port
	if host == "" {
		host = "127.0.0.1"
	}
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("http://%s:%d", host, port)
}

func newScheduleListCmd() *cobra.Command {
	var (
		jsonOutput bool
		serverURL  string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scheduled tasks",
		Long: `List the tasks in the schedule file.

With --server the list is fetched from a running gateway instead, which
includes next and last run times.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := GetCLIContext(cmd)
			if cliCtx == nil {
				return fmt.Errorf("CLI context not initialized")
			}

			if serverURL != "" {
				return runScheduleListRemote(serverURL, jsonOutput)
			}
			return runScheduleListLocal(cliCtx, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	cmd.Flags().StringVar(&serverURL, "server", "", "fetch the schedule from a running gateway at this URL")

	return cmd
}

func runScheduleListLocal(cliCtx *CLIContext, jsonOutput bool) error {
	path, err := tasksFilePath(cliCtx)
	if err != nil {
		return err
	}

	tasks, err := schedule.LoadTasks(path)
	if err != nil {
		return fmt.Errorf("failed to load schedule: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(tasks)
	}

	if len(tasks) == 0 {
		fmt.Printf("No scheduled tasks in %s\n", path)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCRON\tSTATE\tTASK")
	fmt.Fprintln(w, "----\t----\t-----\t----")

	for _, t := range tasks {
		state := "enabled"
		if t.Disabled {
			state = "disabled"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.Name, t.Cron, state, truncate(t.Task, 50))
	}
	w.Flush()

	fmt.Printf("\nTotal: %d tasks (%s)\n", len(tasks), path)

	return nil
}

func runScheduleListRemote(serverURL string, jsonOutput bool) error {
	client := &http.Client{Timeout: 10 * time.Second}

	resp, err := client.Get(serverURL + "/api/v1/schedule")
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w\nIs the server running? Start it with: strider serve", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Tasks []schedule.TaskStatus `json:"tasks"`
		Count int                   `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(payload.Tasks)
	}

	if len(payload.Tasks) == 0 {
		fmt.Println("No scheduled tasks configured on the server.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCRON\tSTATE\tNEXT RUN\tLAST RUN")
	fmt.Fprintln(w, "----\t----\t-----\t--------\t--------")

	for _, t := range payload.Tasks {
		state := "enabled"
		if t.Disabled {
			state = "disabled"
		}
		if t.Running {
			state = "running"
		}

		next := "-"
		if t.NextRun != nil {
			next = t.NextRun.Format("2006-01-02 15:04")
		}
		last := "-"
		if t.LastRun != nil {
			last = t.LastRun.Format("2006-01-02 15:04")
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.Name, t.Cron, state, next, last)
	}
	w.Flush()

	fmt.Printf("\nTotal: %d tasks\n", payload.Count)

	return nil
}

func newScheduleValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a schedule file",
		Long:  `Check the schedule file for syntax and cron expression errors.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := GetCLIContext(cmd)
			if cliCtx == nil {
				return fmt.Errorf("CLI context not initialized")
			}

			var path string
			if len(args) == 1 {
				var err error
				path, err = config.ExpandPath(args[0])
				if err != nil {
					return err
				}
			} else {
				var err error
				path, err = tasksFilePath(cliCtx)
				if err != nil {
					return err
				}
			}

			tasks, err := schedule.LoadTasks(path)
			if err != nil {
				return fmt.Errorf("❌ %w", err)
			}

			if len(tasks) == 0 {
				fmt.Printf("✓ %s is valid (no tasks defined)\n", path)
				return nil
			}

			enabled := 0
			for _, t := range tasks {
				if !t.Disabled {
					enabled++
				}
			}

			fmt.Printf("✓ %s is valid (%d tasks, %d enabled)\n", path, len(tasks), enabled)
			return nil
		},
	}
}

func newScheduleRunCmd() *cobra.Command {
	var serverURL string

	cmd := &cobra.Command{
		Use:   "run <name>",
		Short: "Trigger a scheduled task now",
		Long: `Ask a running strider server to execute a scheduled task
immediately, outside its cron schedule.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := GetCLIContext(cmd)
			if cliCtx == nil {
				return fmt.Errorf("CLI context not initialized")
			}

			if serverURL == "" {
				serverURL = serverURLFromConfig(cliCtx)
			}
			return runScheduleRun(serverURL, args[0])
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "", "gateway URL (reads from config if not specified)")

	return cmd
}

func runScheduleRun(serverURL, name string) error {
	client := &http.Client{Timeout: 10 * time.Second}

	resp, err := client.Post(
		fmt.Sprintf("%s/api/v1/schedule/%s/run", serverURL, name),
		"application/json",
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w\nIs the server running? Start it with: strider serve", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted {
		fmt.Printf("✓ Task launched: %s\n", name)
		fmt.Println("Check the outcome with: strider runs list")
		return nil
	}

	var errResp struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error.Message != "" {
		switch resp.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("task not found: %s", name)
		case http.StatusConflict:
			return fmt.Errorf("task %s already has a run in flight", name)
		}
		return fmt.Errorf("server error: %s", errResp.Error.Message)
	}

	return fmt.Errorf("server returned status %d", resp.StatusCode)
}
