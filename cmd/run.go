package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/bnema/mlab-cli/internal/application"
	"github.com/spf13/cobra"
)

const mongoURIEnv = "MONGODB_URI"

func newRunCmd(app *app) *cobra.Command {
	var database string
	var username string
	var password string
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "run --db <name> --user <user> -- <command> [args...]",
		Short: "Run a command with MONGODB_URI pointing at a deployment",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("run requires a command after '--'")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := resolvePassword(cmd.InOrStdin(), password, passwordStdin)
			if err != nil {
				return err
			}

			var uri string
			if err := app.withSession(cmd, func(_ context.Context, client *application.Client) error {
				db, err := lookupDatabase(client, database)
				if err != nil {
					return err
				}
				uri = db.ConnectionURI(username, secret)
				return nil
			}); err != nil {
				return err
			}

			child := exec.CommandContext(cmd.Context(), args[0], args[1:]...)
			child.Stdout = cmd.OutOrStdout()
			child.Stderr = cmd.ErrOrStderr()
			child.Stdin = cmd.InOrStdin()
			child.Env = append(os.Environ(), mongoURIEnv+"="+uri)

			if err := child.Run(); err != nil {
				return fmt.Errorf("run child command: %w", err)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&database, "db", "", "Deployment name")
	cmd.Flags().StringVar(&username, "user", "", "Database user")
	cmd.Flags().StringVar(&password, "password", "", "Database user password")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("user")
	cmd.MarkFlagsMutuallyExclusive("password", "password-stdin")
	cmd.MarkFlagsOneRequired("password", "password-stdin")

	return cmd
}
