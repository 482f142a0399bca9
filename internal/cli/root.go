// Package cli implements the strider command line interface.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"strider/internal/config"
	"strider/pkg/logger"
)

// GlobalFlags holds flags shared by every command.
type GlobalFlags struct {
	ConfigPath string
	Verbose    bool
	Quiet      bool
}

var globalFlags GlobalFlags

type contextKey struct{}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "strider",
		Short: "Strider - autonomous web browsing agent",
		Long: `Strider is an autonomous web browsing agent.
Given a task in plain language it navigates pages, extracts data,
and keeps its working memory compact on long runs. It ships with a
gateway server, a task scheduler, and a persistent run history.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// version and help need no configuration
			if cmd.Name() == "version" || cmd.Name() == "help" {
				return nil
			}

			configPath := globalFlags.ConfigPath
			if configPath == "" {
				var err error
				configPath, err = config.DefaultConfigPath()
				if err != nil {
					return err
				}
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			logLevel := cfg.Log.Level
			if globalFlags.Verbose {
				logLevel = "debug"
			}
			if globalFlags.Quiet {
				logLevel = "error"
			}

			if err := logger.Init(logger.Config{
				Level:  logLevel,
				Format: cfg.Log.Format,
				File:   cfg.Log.File,
			}); err != nil {
				return err
			}

			storagePath := cfg.Storage.Path
			if storagePath == "" {
				storagePath, err = config.DefaultDataPath()
				if err != nil {
					return err
				}
			}

			log := logger.Get()
			cliCtx := NewCLIContext(cfg, configPath, log, storagePath, globalFlags.Verbose, globalFlags.Quiet)
			cmd.SetContext(context.WithValue(cmd.Context(), contextKey{}, cliCtx))

			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := GetCLIContext(cmd)
			if cliCtx != nil {
				return cliCtx.Close()
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&globalFlags.ConfigPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Quiet, "quiet", "q", false, "quiet mode")

	rootCmd.AddCommand(NewVersionCmd())
	rootCmd.AddCommand(NewInitCmd())
	rootCmd.AddCommand(NewConfigCmd())
	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewAuthCmd())
	rootCmd.AddCommand(NewRunCmd())
	rootCmd.AddCommand(NewRunsCmd())
	rootCmd.AddCommand(NewProfileCmd())
	rootCmd.AddCommand(NewScheduleCmd())
	rootCmd.AddCommand(NewDoctorCmd())

	return rootCmd
}

// GetCLIContext extracts the CLI context from a command.
func GetCLIContext(cmd *cobra.Command) *CLIContext {
	ctx := cmd.Context()
	if ctx == nil {
		return nil
	}
	cliCtx, ok := ctx.Value(contextKey{}).(*CLIContext)
	if !ok {
		return nil
	}
	return cliCtx
}
