package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"strider/internal/profile"
)

// NewProfileCmd creates the profile command.
func NewProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage profile memories",
		Long: `Manage the facts strider remembers about you across runs.

Profile memories are recalled at the start of each run so the agent can
apply your preferences without being told again.`,
	}

	cmd.AddCommand(newProfileListCmd())
	cmd.AddCommand(newProfileAddCmd())
	cmd.AddCommand(newProfileDeleteCmd())

	return cmd
}

// profileStore opens the profile store behind the CLI context.
func profileStore(cliCtx *CLIContext) (*profile.Store, error) {
	db, err := cliCtx.GetStorage()
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return profile.NewStore(db, *cliCtx.Log()), nil
}

func newProfileListCmd() *cobra.Command {
	var (
		limit      int
		search     string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List profile memories",
		Long:  `List stored profile memories, newest first.`,
		Example: `  # List recent memories
  strider profile list

  # Search memories by keyword
  strider profile list --search budget`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := GetCLIContext(cmd)
			if cliCtx == nil {
				return fmt.Errorf("CLI context not initialized")
			}

			store, err := profileStore(cliCtx)
			if err != nil {
				return err
			}

			var memories []*profile.Memory
			if search != "" {
				memories, err = store.Search(search, limit)
			} else {
				memories, err = store.Recent(limit)
			}
			if err != nil {
				return fmt.Errorf("failed to list memories: %w", err)
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(memories)
			}

			if len(memories) == 0 {
				fmt.Println("No profile memories found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSOURCE\tCREATED\tCONTENT")
			fmt.Fprintln(w, "--\t------\t-------\t-------")

			for _, m := range memories {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					shortID(m.ID),
					m.Source,
					m.CreatedAt.Format("2006-01-02 15:04"),
					truncate(m.Content, 60),
				)
			}
			w.Flush()

			fmt.Printf("\nTotal: %d memories\n", len(memories))

			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "maximum number of memories to show")
	cmd.Flags().StringVarP(&search, "search", "s", "", "filter memories by keyword")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	return cmd
}

func newProfileAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <content>",
		Short: "Add a profile memory",
		Long:  `Store a fact for the agent to recall in future runs.`,
		Example: `  strider profile add "I prefer the cheapest shipping option"
  strider profile add "My budget for subscriptions is 15 dollars a month"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := GetCLIContext(cmd)
			if cliCtx == nil {
				return fmt.Errorf("CLI context not initialized")
			}

			store, err := profileStore(cliCtx)
			if err != nil {
				return err
			}

			content := strings.Join(args, " ")
			memory, err := store.Add(content, profile.SourceManual)
			if err != nil {
				return fmt.Errorf("failed to add memory: %w", err)
			}

			fmt.Printf("✓ Memory added: %s\n", shortID(memory.ID))
			return nil
		},
	}
}

func newProfileDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <memory-id>",
		Short: "Delete a profile memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := GetCLIContext(cmd)
			if cliCtx == nil {
				return fmt.Errorf("CLI context not initialized")
			}

			store, err := profileStore(cliCtx)
			if err != nil {
				return err
			}

			id, err := resolveMemoryID(store, args[0])
			if err != nil {
				return err
			}

			if err := store.Delete(id); err != nil {
				return fmt.Errorf("failed to delete memory: %w", err)
			}

			fmt.Printf("✓ Memory deleted: %s\n", id)
			return nil
		},
	}
}

// resolveMemoryID finds a memory by full or shortened ID.
func resolveMemoryID(store *profile.Store, id string) (string, error) {
	memories, err := store.Recent(0)
	if err != nil {
		return "", fmt.Errorf("failed to list memories: %w", err)
	}

	var match string
	for _, m := range memories {
		if m.ID == id {
			return id, nil
		}
		if len(m.ID) >= len(id) && m.ID[:len(id)] == id {
			if match != "" {
				return "", fmt.Errorf("memory ID %q is ambiguous", id)
			}
			match = m.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("memory not found: %s", id)
	}
	return match, nil
}
