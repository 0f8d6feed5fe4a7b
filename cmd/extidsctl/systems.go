package main

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mikepea/extids/pkg/extids/models"
	"github.com/mikepea/extids/pkg/extids/systems"
)

func (c *cli) systemsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "systems",
		Short: "Manage external systems",
	}
	cmd.AddCommand(
		c.systemsListCmd(),
		c.systemsCreateCmd(),
		c.systemsSetActiveCmd("archive", "Archive a system", false),
		c.systemsSetActiveCmd("unarchive", "Unarchive a system", true),
		c.systemsDeleteCmd(),
	)
	return cmd
}

func (c *cli) emitSystems(cmd *cobra.Command, list []models.ExternalSystem) error {
	ids := make([]uint, len(list))
	for i, s := range list {
		ids[i] = s.ID
	}
	counts, err := c.app.Systems.LinkCounts(scoped(cmd), ids...)
	if err != nil {
		return err
	}

	responses := make([]systems.SystemResponse, len(list))
	rows := make([][]string, len(list))
	for i, s := range list {
		count := counts[s.ID]
		responses[i] = systems.ToResponse(s)
		responses[i].ExternalIDCount = &count
		applies := strings.Join(s.AppliesTo(), ",")
		if applies == "" {
			applies = "*"
		}
		rows[i] = []string{u(s.ID), s.Code, s.Name, strconv.Itoa(s.Sequence), yesNo(s.Active), applies, s.IDFormat, strconv.FormatInt(count, 10)}
	}
	return c.emit(cmd, responses, []string{"ID", "CODE", "NAME", "SEQ", "ACTIVE", "APPLIES TO", "FORMAT", "LINKS"}, rows)
}

func (c *cli) systemsListCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List systems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			list, err := a.Systems.List(cmd.Context(), all)
			if err != nil {
				return err
			}
			return c.emitSystems(cmd, list)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include archived systems")
	return cmd
}

func (c *cli) systemsCreateCmd() *cobra.Command {
	var (
		in        systems.Input
		sequence  int
		appliesTo []string
	)
	cmd := &cobra.Command{
		Use:   "create <code> <name>",
		Short: "Register a system",
		Example: `  extidsctl systems create discord Discord --id-format '^\d+$'
  extidsctl systems create shopify Shopify --base-url https://shop.example.com \
    --id-prefix gid://shopify/ --store-url '{base}/products/{id}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			in.Code, in.Name = args[0], args[1]
			in.AppliesTo = appliesTo
			if cmd.Flags().Changed("sequence") {
				in.Sequence = &sequence
			}
			system, err := a.Systems.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			return c.emitSystems(cmd, []models.ExternalSystem{*system})
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Description, "description", "", "free-text description")
	f.StringVar(&in.BaseURL, "base-url", "", "base URL, available to templates as {base}")
	f.StringVar(&in.IDFormat, "id-format", "", "regular expression every identifier must fully match")
	f.StringVar(&in.IDPrefix, "id-prefix", "", "prefix shown before identifiers in labels")
	f.StringVar(&in.StoreURLTemplate, "store-url", "", "legacy store URL template")
	f.StringVar(&in.AdminURLTemplate, "admin-url", "", "legacy admin URL template")
	f.IntVar(&sequence, "sequence", 0, "display order")
	f.StringSliceVar(&appliesTo, "applies-to", nil, "record types the system is restricted to")
	return cmd
}

func (c *cli) systemsSetActiveCmd(use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <code>",
		Short: short,
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
			if active {
				system, err = a.Systems.Unarchive(cmd.Context(), system.ID)
			} else {
				system, err = a.Systems.Archive(cmd.Context(), system.ID)
			}
			if err != nil {
				return err
			}
			return c.emitSystems(cmd, []models.ExternalSystem{*system})
		},
	}
}

func (c *cli) systemsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <code>",
		Short: "Delete a system that no external ID references",
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
			if err := a.Systems.Delete(cmd.Context(), system.ID); err != nil {
				return err
			}
			return c.emitLine(cmd, "deleted", system.Code)
		},
	}
}
