// Package main provides the notebook-mcp server: an MCP tool surface over
// NotebookLM driven through a real browser.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

// rootFlags are shared by every command.
type rootFlags struct {
	configPath string
	dataDir    string
	envFile    string
	logDir     string
	logLevel   string
	headless   bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "notebook-mcp",
		Short: "MCP server for asking questions to NotebookLM notebooks",
		Long: `notebook-mcp exposes NotebookLM to MCP clients. Questions are typed into
a real browser signed in with your Google account, and answers are returned
once they stop changing.

Run "notebook-mcp auth" once to sign in, then register the server with your
MCP client. Without a subcommand the server runs on stdin/stdout.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadEnvFile(flags.envFile, cmd.Flags().Changed("env-file"))
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "config file (default is ~/.notebook-mcp/config.yaml)")
	pf.StringVar(&flags.dataDir, "data-dir", "", "directory for the browser profile, state and library (default is ~/.notebook-mcp)")
	pf.StringVar(&flags.envFile, "env-file", ".env", "file of NOTEBOOK_MCP_* overrides loaded before the config")
	pf.StringVar(&flags.logDir, "log-dir", "", "log directory (default is ~/.notebook-mcp/logs)")
	pf.StringVar(&flags.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	pf.BoolVar(&flags.headless, "headless", true, "run session tabs without a visible window")

	serve := newServeCmd(flags)
	root.AddCommand(serve, newAuthCmd(flags), newVersionCmd())

	// Running without a subcommand serves.
	root.Flags().AddFlagSet(serve.Flags())
	root.RunE = serve.RunE

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "notebook-mcp v%s\n", version)
		},
	}
}

// loadEnvFile applies a dotenv file without overriding variables already
// set. A missing default file is not an error.
func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}
