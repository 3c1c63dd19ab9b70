package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/app"
)

var dryRun bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the users, tasks and task_updates tables if missing",
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := open()
		if err != nil {
			return err
		}
		defer e.close()
		if err := app.Migrate(cmd.Context(), e.db); err != nil {
			return err
		}
		e.logger.Infow("schema up to date")
		return nil
	},
}

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Post the weekly digest to DIGEST_CHANNEL now",
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := open()
		if err != nil {
			return err
		}
		defer e.close()
		a := e.app()
		return a.Jobs(a.Poster(dryRun)).Digest(cmd.Context())
	},
}

var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Send due-date reminders for open tasks due within 24 hours",
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := open()
		if err != nil {
			return err
		}
		defer e.close()
		a := e.app()
		n, err := a.Jobs(a.Poster(dryRun)).Remind(cmd.Context())
		fmt.Fprintf(cmd.OutOrStdout(), "%d reminder(s) sent\n", n)
		return err
	},
}

func init() {
	for _, c := range []*cobra.Command{digestCmd, remindCmd} {
		c.Flags().BoolVar(&dryRun, "dry-run", false, "log messages instead of posting them to Slack")
	}
	rootCmd.AddCommand(migrateCmd, digestCmd, remindCmd)
}
