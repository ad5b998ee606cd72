package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var keyHelp = [][2]string{
	{"Enter", "Send to all sessions (or the focused one)"},
	{"Alt+Enter", "New line"},
	{"Tab/S-Tab", "Focus next/previous session"},
	{"Ctrl+B", "Toggle broadcast"},
	{"Ctrl+N", "New session"},
	{"Ctrl+D", "Duplicate session"},
	{"Ctrl+W", "Close session"},
	{"Ctrl+R", "Retry from last message"},
	{"Ctrl+X", "Cancel request"},
	{"Alt+←/→", "Select choice"},
	{"Ctrl+Y", "Copy selected answer"},
	{"Ctrl+T", "Run tool calls (MCP)"},
	{"Ctrl+P", "Select model"},
	{"Esc", "Clear input / quit"},
}

var commandHelp = [][2]string{
	{"/model <id>", "Bind to provider/model"},
	{"/system <text>", "Set the system prompt"},
	{"/role <role>", "Role of sent messages"},
	{"/temp /top_p /max /n", "Generation parameters"},
	{"/stop <seq>...", "Stop sequences"},
	{"/format <f>", "text, json_object, json_schema"},
	{"/choice <n>", "Select choice n"},
	{"/retry [n]", "Retry from message n"},
	{"/continue [n]", "Continue from choice n"},
	{"/edit <n> <text>", "Edit message n"},
	{"/edit-choice <n> <text>", "Edit choice n"},
	{"/delete <n>", "Delete message n"},
	{"/delete-choice <n>", "Delete choice n"},
	{"/add <role> <text>", "Append without sending"},
	{"/tool <id> <result>", "Answer a tool call"},
	{"/tools <file>|mcp|off", "Attach tool definitions"},
	{"/save <name>", "Save as named config"},
	{"/load <name>[@v]", "New session from config"},
	{"/ping [provider]", "Check credentials"},
}

func (a AppView) renderHelp() string {
	green := lipgloss.NewStyle().Bold(true).Foreground(successColor)
	blue := lipgloss.NewStyle().Foreground(accentColor)

	section := func(title string, rows [][2]string, keyWidth int) string {
		lines := []string{blue.Render("## " + title)}
		for _, r := range rows {
			lines = append(lines, fmt.Sprintf("• %-*s %s", keyWidth, r[0], r[1]))
		}
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	col := lipgloss.NewStyle().PaddingLeft(2)
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		col.Render(section("Keys", keyHelp, 10)),
		"    ",
		col.Render(section("Commands", commandHelp, 23)),
	)

	content := lipgloss.JoinVertical(lipgloss.Center,
		green.Render("Playground - Keys and Commands"),
		"",
		body,
		"",
		DimStyle.Render("Press F1 or Esc to close"),
	)

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("8")).
		Padding(1, 2)

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, box.Render(content))
}
