package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mikepea/extids/pkg/extids/errs"
	"github.com/mikepea/extids/pkg/extids/externalids"
	"github.com/mikepea/extids/pkg/extids/linking"
	"github.com/mikepea/extids/pkg/extids/models"
)

func (c *cli) idsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ids",
		Short: "Manage external IDs linked to records",
	}
	cmd.AddCommand(
		c.idsLinkCmd(),
		c.idsGetCmd(),
		c.idsResolveCmd(),
		c.idsSearchCmd(),
		c.idsURLCmd(),
		c.idsListCmd(),
		c.idsByIDCmd("archive", "Archive an external ID", (*externalids.Service).Archive),
		c.idsByIDCmd("unarchive", "Reactivate an archived external ID", (*externalids.Service).Unarchive),
		c.idsByIDCmd("sync", "Stamp an external ID as synchronized now", (*externalids.Service).SyncTouch),
		c.idsDeleteCmd(),
	)
	return cmd
}

func (c *cli) emitIDs(cmd *cobra.Command, svc *externalids.Service, rows []models.ExternalID) error {
	views, err := svc.Describe(scoped(cmd), rows)
	if err != nil {
		return err
	}
	responses := make([]externalids.ExternalIDResponse, len(views))
	table := make([][]string, len(views))
	for i, v := range views {
		responses[i] = externalids.ViewToResponse(v)
		table[i] = []string{u(v.ID), v.RecordType, u(v.RecordID), v.DisplayLabel, yesNo(v.Active), when(v.LastSync)}
	}
	return c.emit(cmd, responses, []string{"ID", "RECORD TYPE", "RECORD ID", "LABEL", "ACTIVE", "LAST SYNC"}, table)
}

func (c *cli) linker(cmd *cobra.Command, recordType string) (*linking.Linker, error) {
	a, err := c.open(cmd.Context())
	if err != nil {
		return nil, err
	}
	return linking.New(recordType, a.IDs, a.URLs, a.Log)
}

func (c *cli) idsLinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "link <record-type> <record-id> <system> <identifier>",
		Short:   "Set a record's identifier in a system",
		Example: `  extidsctl --catalog catalog.yaml ids link res.partner 7 discord 123456789`,
		Args:    cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			recordID, err := parseUint(args[1], "record id")
			if err != nil {
				return err
			}
			l, err := c.linker(cmd, args[0])
			if err != nil {
				return err
			}
			row, err := l.SetExternalID(scoped(cmd), recordID, args[2], args[3])
			if err != nil {
				return err
			}
			return c.emitIDs(cmd, c.app.IDs, []models.ExternalID{*row})
		},
	}
}

func (c *cli) idsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <record-type> <record-id> <system>",
		Short: "Print a record's identifier in a system",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			recordID, err := parseUint(args[1], "record id")
			if err != nil {
				return err
			}
			l, err := c.linker(cmd, args[0])
			if err != nil {
				return err
			}
			value, ok, err := l.GetExternalID(scoped(cmd), recordID, args[2])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s %d has no %s identifier: %w", args[0], recordID, args[2], errs.ErrNotFound)
			}
			return c.emitLine(cmd, "external_identifier", value)
		},
	}
}

func (c *cli) idsResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <system> <identifier>",
		Short: "Find the live record an identifier points to",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			rec, err := a.IDs.ResolveRecord(scoped(cmd), args[0], args[1])
			if err != nil {
				return err
			}
			if rec == nil {
				return fmt.Errorf("no live record for %s %q: %w", args[0], args[1], errs.ErrNotFound)
			}
			resp := externalids.RecordToResponse(rec)
			return c.emit(cmd, resp, []string{"RECORD TYPE", "RECORD ID", "NAME"},
				[][]string{{rec.Type, u(rec.ID), rec.DisplayName}})
		},
	}
}

func (c *cli) idsSearchCmd() *cobra.Command {
	var (
		op    string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: `Search active links; "system:identifier" narrows by system`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			rows, err := a.IDs.SearchByText(scoped(cmd), args[0], op, limit)
			if err != nil {
				return err
			}
			return c.emitIDs(cmd, a.IDs, rows)
		},
	}
	cmd.Flags().StringVar(&op, "op", externalids.OpContains, "match operator: contains, equals or starts_with")
	cmd.Flags().IntVar(&limit, "limit", externalids.DefaultSearchLimit, "maximum results")
	return cmd
}

func (c *cli) idsURLCmd() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "url <record-type> <record-id> <system>",
		Short: "Print the URL of a record in a system",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			recordID, err := parseUint(args[1], "record id")
			if err != nil {
				return err
			}
			l, err := c.linker(cmd, args[0])
			if err != nil {
				return err
			}
			url, ok := l.GetExternalURL(scoped(cmd), recordID, args[2], kind)
			if !ok {
				return fmt.Errorf("no %s URL for %s %d in %s: %w", kind, args[0], recordID, args[2], errs.ErrNotFound)
			}
			return c.emitLine(cmd, "url", url)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", linking.KindStore, "template code, e.g. store or admin")
	return cmd
}

func (c *cli) idsListCmd() *cobra.Command {
	var (
		recordType string
		recordID   uint
		system     string
		all        bool
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List external IDs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			f := externalids.Filter{RecordType: recordType, RecordID: recordID, Limit: limit}
			if system != "" {
				s, err := a.Systems.ByCode(cmd.Context(), system, false)
				if err != nil {
					return err
				}
				f.SystemID = s.ID
			}
			if !all {
				active := true
				f.Active = &active
			}
			rows, err := a.IDs.List(scoped(cmd), f)
			if err != nil {
				return err
			}
			return c.emitIDs(cmd, a.IDs, rows)
		},
	}
	cmd.Flags().StringVar(&recordType, "type", "", "filter by record type")
	cmd.Flags().UintVar(&recordID, "record", 0, "filter by record id")
	cmd.Flags().StringVar(&system, "system", "", "filter by system code")
	cmd.Flags().BoolVar(&all, "all", false, "include archived links")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum results")
	return cmd
}

type idAction func(*externalids.Service, context.Context, uint) (*models.ExternalID, error)

func (c *cli) idsByIDCmd(use, short string, action idAction) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUint(args[0], "external id")
			if err != nil {
				return err
			}
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			row, err := action(a.IDs, scoped(cmd), id)
			if err != nil {
				return err
			}
			return c.emitIDs(cmd, a.IDs, []models.ExternalID{*row})
		},
	}
}

func (c *cli) idsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an archived external ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUint(args[0], "external id")
			if err != nil {
				return err
			}
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.IDs.Delete(scoped(cmd), id); err != nil {
				return err
			}
			return c.emitLine(cmd, "deleted", args[0])
		},
	}
}
