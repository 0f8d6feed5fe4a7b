package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/mikepea/extids/pkg/extids/clients"
	"github.com/mikepea/extids/pkg/extids/models"
)

func (c *cli) clientsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clients",
		Short: "Manage API clients",
	}
	cmd.AddCommand(c.clientsCreateCmd(), c.clientsListCmd())
	return cmd
}

func clientRow(cl models.APIClient) []string {
	types := cl.RecordTypes
	if types == "" {
		types = "*"
	}
	companies := cl.CompanyIDs
	if companies == "" {
		companies = "*"
	}
	return []string{u(cl.ID), cl.Name, string(cl.Role), types, companies, when(cl.LastUsedAt)}
}

var clientHeaders = []string{"ID", "NAME", "ROLE", "RECORD TYPES", "COMPANIES", "LAST USED"}

func (c *cli) clientsCreateCmd() *cobra.Command {
	var (
		in   clients.Input
		role string
	)
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a client and print its secret",
		Long:  `Create registers an API client. The secret is printed once and cannot be recovered.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			in.Name = args[0]
			in.Role = models.ClientRole(strings.ToLower(role))
			client, secret, err := a.Clients.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			resp := clients.CreateClientResponse{ClientResponse: clients.ToResponse(*client), Secret: secret}
			return c.emit(cmd, resp, append(clientHeaders, "SECRET"), [][]string{append(clientRow(*client), secret)})
		},
	}
	cmd.Flags().StringVar(&role, "role", string(models.ClientRoleClient), "admin or client")
	cmd.Flags().StringVar(&in.Secret, "secret", "", "secret to use (default: generated)")
	cmd.Flags().StringSliceVar(&in.RecordTypes, "record-types", nil, "record types the client may see (default: all)")
	cmd.Flags().UintSliceVar(&in.CompanyIDs, "company-ids", nil, "companies the client may see (default: all)")
	return cmd
}

func (c *cli) clientsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List clients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			list, err := a.Clients.List(cmd.Context())
			if err != nil {
				return err
			}
			responses := make([]clients.ClientResponse, len(list))
			rows := make([][]string, len(list))
			for i, cl := range list {
				responses[i] = clients.ToResponse(cl)
				rows[i] = clientRow(cl)
			}
			return c.emit(cmd, responses, clientHeaders, rows)
		},
	}
}
