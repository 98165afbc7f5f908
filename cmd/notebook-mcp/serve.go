package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/entrhq/notebook-mcp/pkg/mcp"
	"github.com/entrhq/notebook-mcp/pkg/tools"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve MCP requests on stdin/stdout",
		Long: `Serve runs the MCP server on stdin and stdout. Logs go to the log file,
never to stdout. With --metrics-addr a Prometheus endpoint is served as well.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			return runServe(ctx, cmd, flags, metricsAddr)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address for /metrics and /healthz, e.g. 127.0.0.1:9464 (disabled when empty)")
	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, flags *rootFlags, metricsAddr string) error {
	a, err := newApp(cmd, flags)
	if err != nil {
		return err
	}
	defer func() {
		// The log file is closed by now.
		if err := a.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: shutdown incomplete: %v\n", err)
		}
	}()

	if err := a.creds.Watch(); err != nil {
		a.log.Warnf("Credential file watch unavailable, re-reading on every check: %v", err)
	}
	a.sweeper.Start(ctx)

	if metricsAddr != "" {
		go func() {
			a.log.Infof("Serving metrics on %s", metricsAddr)
			if err := a.metrics.Serve(ctx, metricsAddr); err != nil {
				a.log.Errorf("Metrics endpoint stopped: %v", err)
			}
		}()
	}

	server := mcp.NewServer(
		tools.NewDefaultRegistry(a.services()),
		mcp.ServerInfo{Name: "notebook-mcp", Version: version},
		a.log.With("mcp"),
	)

	a.log.Infof("notebook-mcp v%s serving on stdio (log %s)", version, a.log.LogPath())
	err = server.Serve(ctx, os.Stdin, os.Stdout)
	if errors.Is(err, context.Canceled) {
		a.log.Infof("Interrupted, shutting down")
		return nil
	}
	return err
}
