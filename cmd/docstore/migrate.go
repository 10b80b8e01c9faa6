package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jacentio/docstore/migration"
	"github.com/jacentio/docstore/store"
)

func newMigrateCmd(c *cli) *cobra.Command {
	var ticket, environment string

	cmd := &cobra.Command{
		Use:   "migrate CONTAINER...",
		Short: "Create missing containers and wait until they are active",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, containers []string) error {
			if ticket == "" {
				return errors.New("--ticket must not be empty")
			}
			opts := append([]store.Option{store.WithLogger(c.logger)}, c.clientOpts...)
			runner := migration.NewRunner(store.NewClient(opts...), c.cfg, c.logger)
			runner.SetEnvironment(environment)

			script := migration.Script{
				Ticket:      ticket,
				Description: fmt.Sprintf("ensure containers %v", containers),
				Run: func(ctx context.Context, db *store.Database) error {
					for _, name := range containers {
						if err := migration.EnsureContainer(ctx, db, name); err != nil {
							return err
						}
						fmt.Fprintln(cmd.OutOrStdout(), db.TableName(name))
					}
					return nil
				},
			}
			return runner.Migrate(cmd.Context(), script)
		},
	}
	cmd.Flags().StringVar(&ticket, "ticket", "cli", "ticket recorded with the migration")
	cmd.Flags().StringVar(&environment, "environment", "", "environment recorded with the migration")
	return cmd
}
