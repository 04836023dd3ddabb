package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "mlab",
		Short:         "mLab dashboard CLI: manage sandbox deployments and their users",
		Long:          "mlab drives the mLab web dashboard from the terminal: it stores dashboard credentials per profile, deploys and removes MongoDB sandboxes, manages database users and runs commands against a deployment.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.PersistentFlags().StringVar(&app.profile, "profile", string(defaultProfileName), "Credentials profile")
	rootCmd.PersistentFlags().StringVar(&app.accountID, "account-id", "", "Dashboard account id (default: profile value, then discovery)")
	rootCmd.PersistentFlags().BoolVar(&app.asJSON, "json", false, "Render JSON output")

	rootCmd.AddCommand(
		newVersionCmd(),
		newAuthCmd(app),
		newProfileCmd(app),
		newLoginCmd(app),
		newLogoutCmd(app),
		newKeepaliveCmd(app),
		newDBCmd(app),
		newUserCmd(app),
		newRunCmd(app),
	)

	return rootCmd
}
