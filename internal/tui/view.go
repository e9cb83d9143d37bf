package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("69"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(14)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("160")).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
)

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Deposit dApp"))
	b.WriteString("\n\n")

	if m.noProvider {
		b.WriteString(panelStyle.Render(
			"No wallet provider detected.\n\n" +
				"Configure chain.rpc_url together with chain.private_key or\n" +
				"chain.keystore_path, then restart.",
		))
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("q quit"))
		return b.String()
	}

	if m.state.Error != "" {
		b.WriteString(errorStyle.Render("Error: " + m.state.Error))
		b.WriteString("\n\n")
	}

	b.WriteString(panelStyle.Render(m.details()))
	b.WriteString("\n\n")

	switch {
	case m.state.PendingTx != "":
		fmt.Fprintf(&b, "%s transaction pending %s\n\n", m.spinner.View(), m.state.PendingTx)
	case m.busy:
		fmt.Fprintf(&b, "%s %s...\n\n", m.spinner.View(), m.op)
	}

	b.WriteString(m.helpLine())
	return b.String()
}

func (m Model) details() string {
	st := m.state
	if !st.Session.Connected {
		return "Wallet not connected."
	}

	rows := []struct{ label, value string }{
		{"Account", st.Session.Account.Hex()},
		{"Chain", fmt.Sprintf("%d", st.Session.ChainID)},
		{"Tokens", st.Balances.Fungible.String()},
		{"Deposited", st.Balances.Deposited.String()},
		{"Collectibles", fmt.Sprintf("%d", st.Balances.Collectibles)},
	}
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, labelStyle.Render(r.label)+r.value)
	}
	return strings.Join(lines, "\n")
}

func (m Model) helpLine() string {
	parts := make([]string, 0, 6)
	for _, k := range m.keys.shortHelp() {
		if !k.Enabled() {
			continue
		}
		desc := k.Help().Desc
		if desc == "deposit" {
			desc += " " + m.depositAmount
		}
		parts = append(parts, k.Help().Key+" "+desc)
	}
	return helpStyle.Render(strings.Join(parts, " • "))
}
