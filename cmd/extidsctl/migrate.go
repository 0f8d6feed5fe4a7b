package main

import (
	"github.com/spf13/cobra"
)

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Opening the app runs the migrations
			if _, err := c.open(cmd.Context()); err != nil {
				return err
			}
			return c.emitLine(cmd, "migrated", c.v.GetString(cfgKeyDB))
		},
	}
}
