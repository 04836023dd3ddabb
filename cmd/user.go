package cmd

import (
	"context"
	"fmt"

	"github.com/bnema/mlab-cli/internal/application"
	"github.com/spf13/cobra"
)

type usersOutput struct {
	Database string   `json:"database"`
	Users    []string `json:"users"`
}

func newUserCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage database users of a deployment",
	}

	cmd.AddCommand(newUserListCmd(app), newUserAddCmd(app), newUserRemoveCmd(app))

	return cmd
}

func newUserListCmd(app *app) *cobra.Command {
	var database string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List database users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withSession(cmd, func(ctx context.Context, client *application.Client) error {
				db, err := lookupDatabase(client, database)
				if err != nil {
					return err
				}
				users, err := db.Users(ctx)
				if err != nil {
					return err
				}

				if app.asJSON {
					return writeJSON(cmd, usersOutput{Database: database, Users: users})
				}
				if len(users) == 0 {
					_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s has no database users\n", database)
					return err
				}
				for _, user := range users {
					if _, err := fmt.Fprintln(cmd.OutOrStdout(), user); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&database, "db", "", "Deployment name")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func newUserAddCmd(app *app) *cobra.Command {
	var database string
	var password string
	var passwordStdin bool
	var add application.AddUserCommand

	cmd := &cobra.Command{
		Use:   "add <user>",
		Short: "Create a database user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := resolvePassword(cmd.InOrStdin(), password, passwordStdin)
			if err != nil {
				return err
			}
			add.Name = args[0]
			add.Password = secret

			return app.withSession(cmd, func(ctx context.Context, client *application.Client) error {
				db, err := lookupDatabase(client, database)
				if err != nil {
					return err
				}
				if err := db.AddUser(ctx, add); err != nil {
					return err
				}

				if app.asJSON {
					return writeJSON(cmd, map[string]string{"database": database, "user": add.Name, "uri": db.ConnectionURI(add.Name, add.Password)})
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "added %s to %s\n", add.Name, database)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&database, "db", "", "Deployment name")
	cmd.Flags().StringVar(&password, "password", "", "User password")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	cmd.Flags().BoolVar(&add.ReadOnly, "read-only", false, "Create a read-only user")
	cmd.Flags().BoolVar(&add.IgnoreExisting, "ignore-existing", false, "Succeed when the user already exists")
	_ = cmd.MarkFlagRequired("db")
	cmd.MarkFlagsMutuallyExclusive("password", "password-stdin")
	cmd.MarkFlagsOneRequired("password", "password-stdin")

	return cmd
}

func newUserRemoveCmd(app *app) *cobra.Command {
	var database string

	cmd := &cobra.Command{
		Use:     "remove <user>",
		Aliases: []string{"rm"},
		Short:   "Delete a database user",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withSession(cmd, func(ctx context.Context, client *application.Client) error {
				db, err := lookupDatabase(client, database)
				if err != nil {
					return err
				}
				if err := db.RemoveUser(ctx, args[0]); err != nil {
					return err
				}

				_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %s from %s\n", args[0], database)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&database, "db", "", "Deployment name")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}
