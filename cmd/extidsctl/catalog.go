package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mikepea/extids/pkg/extids/catalog"
)

func (c *cli) catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the system catalog",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "apply <file>",
		Short: "Create or update the systems and templates in a catalog file",
		Long: `Apply reads a YAML catalog and upserts every system and URL template in it.
Systems are matched by code. Applying the same file twice is a no-op.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.Load(args[0])
			if err != nil {
				return err
			}
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			res, err := a.Catalog.Apply(cmd.Context(), cat)
			if err != nil {
				return err
			}
			return c.emit(cmd, res,
				[]string{"RECORD TYPES", "SYSTEMS CREATED", "SYSTEMS UPDATED", "URLS CREATED", "URLS UPDATED"},
				[][]string{{
					strconv.Itoa(res.RecordTypes),
					strconv.Itoa(res.SystemsCreated),
					strconv.Itoa(res.SystemsUpdated),
					strconv.Itoa(res.URLsCreated),
					strconv.Itoa(res.URLsUpdated),
				}})
		},
	})
	return cmd
}
