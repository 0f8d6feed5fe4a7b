package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mikepea/extids/pkg/extids/models"
	"github.com/mikepea/extids/pkg/extids/urltemplates"
)

func (c *cli) urlsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "urls",
		Short: "Manage URL templates",
		Long: `URL templates build links into external systems. Templates may use the
tokens {id}, {gid}, {model}, {name}, {code} and {base}; {{ and }} are literal braces.`,
	}
	cmd.AddCommand(c.urlsListCmd(), c.urlsSetCmd(), c.urlsRenameCmd(), c.urlsDeleteCmd())
	return cmd
}

func (c *cli) emitURLs(cmd *cobra.Command, list []models.ExternalSystemURL) error {
	responses := make([]urltemplates.URLResponse, len(list))
	rows := make([][]string, len(list))
	for i, row := range list {
		responses[i] = urltemplates.ToResponse(row)
		recordType := row.RecordType
		if recordType == "" {
			recordType = "*"
		}
		rows[i] = []string{u(row.ID), row.Code, recordType, strconv.Itoa(row.Sequence), yesNo(row.Active), row.Template}
	}
	return c.emit(cmd, responses, []string{"ID", "CODE", "RECORD TYPE", "SEQ", "ACTIVE", "TEMPLATE"}, rows)
}

func (c *cli) urlsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <system>",
		Short: "List a system's templates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			system, err := a.Systems.ByCode(cmd.Context(), args[0], false)
			if err != nil {
				return err
			}
			list, err := a.URLs.List(cmd.Context(), system.ID)
			if err != nil {
				return err
			}
			return c.emitURLs(cmd, list)
		},
	}
}

func (c *cli) urlsSetCmd() *cobra.Command {
	var (
		name       string
		recordType string
		sequence   int
	)
	cmd := &cobra.Command{
		Use:     "set <system> <code> <template>",
		Short:   "Create or replace a template",
		Example: `  extidsctl urls set shopify admin '{base}/admin/products/{id}' --record-type product.product`,
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			system, err := a.Systems.ByCode(cmd.Context(), args[0], false)
			if err != nil {
				return err
			}
			in := urltemplates.UpsertInput{
				SystemID:   system.ID,
				Code:       args[1],
				Template:   args[2],
				Name:       name,
				RecordType: recordType,
			}
			if cmd.Flags().Changed("sequence") {
				in.Sequence = &sequence
			}
			row, _, err := a.URLs.Upsert(cmd.Context(), in)
			if err != nil {
				return err
			}
			return c.emitURLs(cmd, []models.ExternalSystemURL{*row})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name (default: the code)")
	cmd.Flags().StringVar(&recordType, "record-type", "", "restrict to one record type (default: all)")
	cmd.Flags().IntVar(&sequence, "sequence", 0, "order among templates with the same code")
	return cmd
}

func (c *cli) urlsRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <new-code>",
		Short: "Change a template's code",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUint(args[0], "template id")
			if err != nil {
				return err
			}
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			row, err := a.URLs.Rename(cmd.Context(), id, args[1])
			if err != nil {
				return err
			}
			return c.emitURLs(cmd, []models.ExternalSystemURL{*row})
		},
	}
}

func (c *cli) urlsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUint(args[0], "template id")
			if err != nil {
				return err
			}
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.URLs.Delete(cmd.Context(), id); err != nil {
				return err
			}
			return c.emitLine(cmd, "deleted", args[0])
		},
	}
}
