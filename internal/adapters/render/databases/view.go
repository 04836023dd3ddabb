package databases

import (
	"fmt"
	"strings"

	"github.com/bnema/mlab-cli/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

// Row is one deployment as shown by the list and status commands. State and
// Users are optional.
type Row struct {
	Info  domain.Database
	State domain.DeploymentState
	Users []string
}

type RenderOptions struct {
	AccountID string
	// ShowUsers prints a users line even when the deployment has none.
	ShowUsers bool
}

func renderView(rows []Row, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("mLab Deployments"),
		s.header.Render(headerLine(opts.AccountID, len(rows))),
	}

	if len(rows) == 0 {
		lines = append(lines, s.empty.Render("No deployments registered."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, row := range rows {
		lines = append(lines, s.section.Render(renderRow(row, opts, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func headerLine(accountID string, count int) string {
	if accountID == "" {
		return fmt.Sprintf("deployments: %d", count)
	}
	return fmt.Sprintf("account: %s  deployments: %d", accountID, count)
}

func renderRow(row Row, opts RenderOptions, s styles) string {
	title := s.name.Render(row.Info.Name)
	if state := stateLabel(row.State, s); state != "" {
		title = lipgloss.JoinHorizontal(lipgloss.Top, title, " ", state)
	}

	parts := []string{title}
	if label := placementLine(row.Info); label != "" {
		parts = append(parts, field("plan:", label, s))
	}
	if row.Info.URIAddress != "" {
		parts = append(parts, field("address:", row.Info.URIAddress, s))
	}
	if len(row.Users) > 0 || opts.ShowUsers {
		parts = append(parts, field("users:", usersLine(row.Users), s))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func field(key, value string, s styles) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, s.key.Render(key), " ", s.detail.Render(value))
}

func stateLabel(state domain.DeploymentState, s styles) string {
	switch {
	case state == "":
		return ""
	case state.IsProvisioned():
		return s.provisioned.Render("[provisioned]")
	default:
		return s.pending.Render(fmt.Sprintf("[%s]", state))
	}
}

func placementLine(info domain.Database) string {
	if info.DisplayLabel != "" {
		return info.DisplayLabel
	}

	parts := make([]string, 0, 4)
	for _, value := range []string{info.Provider, info.Region, info.PlanType} {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	line := strings.Join(parts, "/")
	if info.Version != "" {
		if line != "" {
			line += " "
		}
		line += "v" + info.Version
	}
	return line
}

func usersLine(users []string) string {
	if len(users) == 0 {
		return "none"
	}
	return strings.Join(users, ", ")
}
