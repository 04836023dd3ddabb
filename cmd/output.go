package cmd

import (
	"encoding/json"
	"fmt"

	databasesadapter "github.com/bnema/mlab-cli/internal/adapters/render/databases"
	"github.com/spf13/cobra"
)

type databaseOutput struct {
	Name         string   `json:"name"`
	ID           string   `json:"id,omitempty"`
	Provider     string   `json:"provider,omitempty"`
	Region       string   `json:"region,omitempty"`
	Plan         string   `json:"plan,omitempty"`
	Version      string   `json:"version,omitempty"`
	DisplayLabel string   `json:"display_label,omitempty"`
	Address      string   `json:"address,omitempty"`
	State        string   `json:"state,omitempty"`
	Users        []string `json:"users,omitempty"`
}

type databasesOutput struct {
	AccountID string           `json:"account_id"`
	Databases []databaseOutput `json:"databases"`
}

func writeJSON(cmd *cobra.Command, payload any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func writeDatabasesOutput(cmd *cobra.Command, app *app, accountID string, rows []databasesadapter.Row, showUsers bool) error {
	if app.asJSON {
		out := databasesOutput{AccountID: accountID, Databases: make([]databaseOutput, 0, len(rows))}
		for _, row := range rows {
			out.Databases = append(out.Databases, databaseOutput{
				Name:         row.Info.Name,
				ID:           row.Info.ID,
				Provider:     row.Info.Provider,
				Region:       row.Info.Region,
				Plan:         row.Info.PlanType,
				Version:      row.Info.Version,
				DisplayLabel: row.Info.DisplayLabel,
				Address:      row.Info.URIAddress,
				State:        string(row.State),
				Users:        row.Users,
			})
		}
		return writeJSON(cmd, out)
	}

	rendered, err := app.databaseRenderer(rows, databasesadapter.RenderOptions{
		AccountID: accountID,
		ShowUsers: showUsers,
	})
	if err != nil {
		return fmt.Errorf("render databases: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}
