package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"strider/internal/agent"
	"strider/internal/gateway/websocket"
	"strider/internal/profile"
	"strider/internal/server"
	"strider/internal/storage"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	var (
		jsonOutput bool
		serverURL  string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run <task>",
		Short: "Run a browsing task",
		Long: `Run a browsing task described in plain language.

By default the agent runs in this process using the local configuration
and site map. With --server the task is sent to a running strider
gateway instead and its events are streamed back over WebSocket.`,
		Example: `  # Run a task locally
  strider run "Find the price of the pro plan on example.shop"

  # Print the result as JSON
  strider run --json "Check the catalog for new offers"

  # Send the task to a running gateway
  strider run --server http://127.0.0.1:8080 "Check today's offers"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := GetCLIContext(cmd)
			if cliCtx == nil {
				return fmt.Errorf("CLI context not initialized")
			}

			task := strings.Join(args, " ")

			if serverURL != "" {
				return runRemote(serverURL, task, jsonOutput, timeout)
			}
			return runLocal(cliCtx, task, jsonOutput, timeout)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the run result as JSON")
	cmd.Flags().StringVar(&serverURL, "server", "", "send the task to a running gateway at this URL")
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Minute, "abort the run after this duration")

	return cmd
}

// runLocal executes the task in-process.
func runLocal(cliCtx *CLIContext, task string, jsonOutput bool, timeout time.Duration) error {
	log := cliCtx.Log()

	launcher, err := server.NewLauncher(cliCtx.Config, *log)
	if err != nil {
		return fmt.Errorf("%w\nConfigure a model provider with: strider auth login", err)
	}

	if db, err := cliCtx.GetStorage(); err != nil {
		log.Warn().Err(err).Msg("Storage unavailable, run will not be recorded")
	} else {
		launcher.SetStore(db)
		if cliCtx.Config.Profile.Enabled {
			launcher.SetProfile(profile.NewStore(db, *log))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if jsonOutput {
		result, err := launcher.LaunchSync(ctx, task)
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	runID, events, err := launcher.Launch(ctx, task)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s\n", runID)
	for ev := range events {
		if err := printEvent(ev); err != nil {
			return err
		}
	}
	return nil
}

// runRemote sends the task to a running gateway and follows the
// event stream over WebSocket.
func runRemote(serverURL, task string, jsonOutput bool, timeout time.Duration) error {
	wsURL, err := websocketURL(serverURL)
	if err != nil {
		return err
	}

	conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w\nIs the server running? Start it with: strider serve", serverURL, err)
	}
	defer conn.Close()

	launch := websocket.WSMessage{Type: websocket.TypeRun, Task: task}
	if err := conn.WriteJSON(launch); err != nil {
		return fmt.Errorf("failed to send task: %w", err)
	}

	deadline := time.Now().Add(timeout)
	result := &agent.RunResult{Task: task, Status: storage.RunStatusFailed}

	for {
		conn.SetReadDeadline(deadline)

		var msg websocket.WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("event stream closed: %w", err)
		}

		switch msg.Type {
		case websocket.TypePong, websocket.TypeReload, websocket.TypeSchedule:
			continue

		case websocket.TypeError:
			return fmt.Errorf("server error: %s", msg.Message)

		case websocket.TypeRun:
			// Launch announcement carries the run ID.
			result.RunID = msg.Run
			if !jsonOutput {
				fmt.Printf("Run %s\n", msg.Run)
			}
			continue
		}

		var ev agent.Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			continue
		}
		if msg.Run != "" && msg.Run != result.RunID {
			// Broadcast from an unrelated run on the same stream.
			continue
		}

		if jsonOutput {
			collectEvent(result, ev)
		} else if err := printEvent(ev); err != nil {
			return err
		}

		if ev.Type == agent.EventTypeDone {
			if jsonOutput {
				return printResultJSON(result)
			}
			return nil
		}
		if ev.Type == agent.EventTypeError && jsonOutput {
			return fmt.Errorf("run failed: %s", ev.ErrorMsg)
		}
	}
}

// printEvent writes one run event to the terminal. It returns an error
// for error events so the command exits non-zero.
func printEvent(ev agent.Event) error {
	switch ev.Type {
	case agent.EventTypeStep:
		fmt.Printf("\n[step %d] %s\n", ev.Step, ev.Content)

	case agent.EventTypeAction:
		if ev.Action == nil {
			return nil
		}
		fmt.Printf("  → %s", ev.Action.Type)
		switch {
		case ev.Action.URL != "":
			fmt.Printf(" %s", ev.Action.URL)
		case ev.Action.Text != "" && ev.Action.Selector != "":
			fmt.Printf(" %q into %s", ev.Action.Text, ev.Action.Selector)
		case ev.Action.Selector != "":
			fmt.Printf(" %s", ev.Action.Selector)
		}
		fmt.Println()

	case agent.EventTypeActionResult:
		if ev.Result == nil {
			return nil
		}
		if ev.Result.IsError {
			fmt.Printf("  ✗ %s\n", ev.Result.Output)
			return nil
		}
		output := ev.Result.Output
		if len(output) > 200 {
			output = output[:200] + "...(truncated)"
		}
		if output != "" {
			fmt.Printf("  %s\n", output)
		}

	case agent.EventTypeCompaction:
		if ev.Compaction != nil {
			fmt.Printf("  (history compacted: %d → %d tokens)\n",
				ev.Compaction.TokensBefore, ev.Compaction.TokensAfter)
		}

	case agent.EventTypeDone:
		fmt.Printf("\n✅ %s\n", ev.Content)
		if ev.Usage != nil {
			fmt.Printf("(%d steps, %d tokens)\n", ev.Step, ev.Usage.TotalTokens)
		}

	case agent.EventTypeError:
		if ev.Error != nil {
			return fmt.Errorf("run failed: %w", ev.Error)
		}
		return fmt.Errorf("run failed: %s", ev.ErrorMsg)
	}

	return nil
}

// collectEvent folds one event into the accumulated run result.
func collectEvent(result *agent.RunResult, ev agent.Event) {
	switch ev.Type {
	case agent.EventTypeStep:
		result.Steps = ev.Step
	case agent.EventTypeDone:
		result.Status = storage.RunStatusCompleted
		result.Outcome = ev.Content
		if ev.Usage != nil {
			result.Usage = *ev.Usage
		}
	case agent.EventTypeError:
		result.Status = storage.RunStatusFailed
		result.Outcome = ev.ErrorMsg
	}
}

func printResultJSON(result *agent.RunResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// websocketURL converts an http(s) server URL into its ws(s) /ws endpoint.
func websocketURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL %q: %w", serverURL, err)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	case "":
		u, err = url.Parse("ws://" + serverURL)
		if err != nil {
			return "", fmt.Errorf("invalid server URL %q: %w", serverURL, err)
		}
	default:
		return "", fmt.Errorf("unsupported scheme %q in server URL", u.Scheme)
	}

	u.Path = "/ws"
	return u.String(), nil
}
