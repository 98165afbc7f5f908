package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newAuthCmd(flags *rootFlags) *cobra.Command {
	var (
		timeout    time.Duration
		status     bool
		clearState bool
	)

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Sign in to Google in a visible browser window",
		Long: `Auth opens a browser window on NotebookLM and waits until you have signed
in. The session is stored in the automation profile and reused by the server.

Close every Chrome window first: the profile cannot be shared with a running browser.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			out := cmd.OutOrStdout()
			if status {
				data, err := json.MarshalIndent(a.creds.Describe(), "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			if clearState {
				if err := a.services().Credentials.ClearCredentials(); err != nil {
					return err
				}
				fmt.Fprintln(out, "Stored sign-in cleared.")
			}

			check := a.readiness.Check(ctx)
			if check.IsReady && !clearState {
				fmt.Fprintln(out, "Already signed in.")
				return nil
			}
			if check.RequiresUserAction {
				return fmt.Errorf("%s", check.Message)
			}

			fmt.Fprintln(out, "Complete the sign-in in the browser window...")
			if err := a.dispatcher.Login(ctx, timeout); err != nil {
				return err
			}
			fmt.Fprintln(out, "Signed in.")
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 0, "how long to wait for the sign-in (default from config)")
	cmd.Flags().BoolVar(&status, "status", false, "print the stored credential status and exit")
	cmd.Flags().BoolVar(&clearState, "clear", false, "clear the stored sign-in before signing in again")
	return cmd
}
