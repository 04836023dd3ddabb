package cmd

import (
	"context"
	"fmt"

	databasesadapter "github.com/bnema/mlab-cli/internal/adapters/render/databases"
	"github.com/bnema/mlab-cli/internal/application"
	"github.com/spf13/cobra"
)

func newLoginCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in and show the account and its deployments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withSession(cmd, func(_ context.Context, client *application.Client) error {
				return writeDatabasesOutput(cmd, app, client.AccountID(), registryRows(client), false)
			})
		},
	}
}

func newLogoutCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log in and end the dashboard session explicitly",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withSession(cmd, func(ctx context.Context, client *application.Client) error {
				if err := client.Logout(ctx); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "logged out of profile %s\n", app.profile)
				return err
			})
		},
	}
}

func registryRows(client *application.Client) []databasesadapter.Row {
	databases := client.Databases()
	rows := make([]databasesadapter.Row, 0, len(databases))
	for _, db := range databases {
		rows = append(rows, databasesadapter.Row{Info: db.Info()})
	}
	return rows
}
