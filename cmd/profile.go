package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type profileOutput struct {
	Name      string `json:"name"`
	Username  string `json:"username"`
	AccountID string `json:"account_id,omitempty"`
}

func newProfileCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Inspect credential profiles",
	}

	cmd.AddCommand(newProfileListCmd(app))

	return cmd
}

func newProfileListCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List credential profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profiles, err := app.profiles.ListProfiles(cmd.Context())
			if err != nil {
				return err
			}

			out := make([]profileOutput, 0, len(profiles))
			for _, profile := range profiles {
				out = append(out, profileOutput{
					Name:      string(profile.Name),
					Username:  profile.Username,
					AccountID: profile.AccountID,
				})
			}

			if app.asJSON {
				return writeJSON(cmd, out)
			}
			if len(out) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "no profiles configured")
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "PROFILE\tUSERNAME\tACCOUNT")
			for _, profile := range out {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", profile.Name, profile.Username, valueOrDash(profile.AccountID))
			}
			return w.Flush()
		},
	}
}

func valueOrDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
