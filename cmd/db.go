package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	databasesadapter "github.com/bnema/mlab-cli/internal/adapters/render/databases"
	"github.com/bnema/mlab-cli/internal/application"
	"github.com/bnema/mlab-cli/internal/domain"
	"github.com/spf13/cobra"
)

func newDBCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "db",
		Aliases: []string{"database"},
		Short:   "Manage sandbox deployments",
	}

	cmd.AddCommand(
		newDBListCmd(app),
		newDBDeployCmd(app),
		newDBStatusCmd(app),
		newDBRemoveCmd(app),
		newDBPingCmd(app),
	)

	return cmd
}

func newDBListCmd(app *app) *cobra.Command {
	var withUsers bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List deployments of the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withSession(cmd, func(ctx context.Context, client *application.Client) error {
				rows := registryRows(client)
				if withUsers {
					for i := range rows {
						db, err := lookupDatabase(client, rows[i].Info.Name)
						if err != nil {
							return err
						}
						if rows[i].Users, err = db.Users(ctx); err != nil {
							return err
						}
					}
				}
				return writeDatabasesOutput(cmd, app, client.AccountID(), rows, withUsers)
			})
		},
	}

	cmd.Flags().BoolVar(&withUsers, "users", false, "Fetch database users for every deployment")

	return cmd
}

func newDBDeployCmd(app *app) *cobra.Command {
	var deploy application.DeployCommand
	var wait bool
	var waitTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "deploy <name>",
		Short: "Deploy a sandbox database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deploy.Name = args[0]
			if cmd.Flags().Changed("wait") {
				app.settings.DeployWait = wait
			}
			if waitTimeout > 0 {
				app.settings.WaitTimeout = waitTimeout
			}

			return app.withSession(cmd, func(ctx context.Context, client *application.Client) error {
				var db *application.Database
				var last domain.DeploymentStatus
				run := func(ctx context.Context, report func(domain.DeploymentStatus)) error {
					deploy.Progress = func(status domain.DeploymentStatus) {
						last = status
						if report != nil {
							report(status)
						}
					}
					var err error
					db, err = client.DeployDatabase(ctx, deploy)
					return err
				}

				var err error
				if app.settings.DeployWait && !app.asJSON {
					err = runDeploySpinner(ctx, cmd.ErrOrStderr(), fmt.Sprintf("Waiting for %s to be provisioned...", deploy.Name), run)
				} else {
					err = run(ctx, nil)
				}
				if err != nil {
					return err
				}

				row := databasesadapter.Row{Info: db.Info()}
				if app.settings.DeployWait {
					// An existing deployment returned under --ignore-existing was never polled.
					if last.State == "" {
						last, err = client.GetDatabaseStatus(ctx, db.Name())
						if err != nil {
							return err
						}
					}
					row.State = last.State
				}
				return writeDatabasesOutput(cmd, app, client.AccountID(), []databasesadapter.Row{row}, false)
			})
		},
	}

	cmd.Flags().StringVar(&deploy.Region, "region", "", "Cloud region, e.g. us-east-1")
	cmd.Flags().StringVar(&deploy.Plan, "plan", domain.DefaultPlan, "Plan type")
	cmd.Flags().StringVar(&deploy.Provider, "provider", domain.DefaultProvider, "Cloud provider")
	cmd.Flags().StringVar(&deploy.Version, "mongodb-version", domain.DefaultVersion, "MongoDB version")
	cmd.Flags().BoolVar(&deploy.IgnoreExisting, "ignore-existing", false, "Succeed when the deployment already exists")
	cmd.Flags().BoolVar(&wait, "wait", false, "Block until the deployment is provisioned (default: deploy.wait)")
	cmd.Flags().DurationVar(&waitTimeout, "wait-timeout", 0, "Give up waiting after this long (default: deploy.wait_timeout)")
	_ = cmd.MarkFlagRequired("region")

	return cmd
}

func newDBStatusCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <name>",
		Short: "Show the provisioning state of a deployment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withSession(cmd, func(ctx context.Context, client *application.Client) error {
				status, err := client.GetDatabaseStatus(ctx, args[0])
				if err != nil {
					return err
				}

				row := databasesadapter.Row{Info: domain.Database{Name: status.Name}, State: status.State}
				if db, ok := client.Database(args[0]); ok {
					row.Info = db.Info()
				}
				return writeDatabasesOutput(cmd, app, client.AccountID(), []databasesadapter.Row{row}, false)
			})
		},
	}
}

func newDBRemoveCmd(app *app) *cobra.Command {
	var ignoreMissing bool

	cmd := &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm", "delete"},
		Short:   "Delete a deployment",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withSession(cmd, func(ctx context.Context, client *application.Client) error {
				err := client.RemoveDatabase(ctx, args[0])
				if ignoreMissing && errors.Is(err, domain.ErrNotFound) {
					err = nil
				}
				if err != nil {
					return err
				}

				_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&ignoreMissing, "ignore-missing", false, "Succeed when the deployment does not exist")

	return cmd
}

func newDBPingCmd(app *app) *cobra.Command {
	var username string
	var password string
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "ping <name>",
		Short: "Connect to a deployment as a database user and ping it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := resolvePassword(cmd.InOrStdin(), password, passwordStdin)
			if err != nil {
				return err
			}

			return app.withSession(cmd, func(ctx context.Context, client *application.Client) error {
				db, err := lookupDatabase(client, args[0])
				if err != nil {
					return err
				}
				if err := db.Ping(ctx, username, secret); err != nil {
					return err
				}

				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s is reachable\n", args[0])
				return err
			})
		},
	}

	cmd.Flags().StringVar(&username, "user", "", "Database user")
	cmd.Flags().StringVar(&password, "password", "", "Database user password")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	_ = cmd.MarkFlagRequired("user")
	cmd.MarkFlagsMutuallyExclusive("password", "password-stdin")
	cmd.MarkFlagsOneRequired("password", "password-stdin")

	return cmd
}
