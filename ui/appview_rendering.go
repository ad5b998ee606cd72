package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"playground/model"
)

// inputHeight is the textarea plus status and footer lines.
const inputHeight = 6

func (a AppView) View() string {
	if a.width < 20 || a.height < 10 {
		return "Terminal too small"
	}
	if a.showHelp {
		return a.renderHelp()
	}
	if a.showSelector {
		return a.renderSelector()
	}

	columns := a.renderColumns(a.height - inputHeight)
	return lipgloss.JoinVertical(lipgloss.Left,
		columns,
		a.renderStatus(),
		a.textarea.View(),
		a.renderFooter(),
	)
}

func (a AppView) renderColumns(height int) string {
	n := len(a.sessions)
	if n == 0 {
		return DimStyle.Render("No sessions. Ctrl+N adds one.")
	}
	// Each column has a one-cell border on both sides.
	width := max(a.width/n-2, 8)
	inner := max(height-2, 1)

	cols := make([]string, n)
	for i, st := range a.sessions {
		style := columnStyle
		if i == a.focused {
			style = focusedColumnStyle
		}
		lines := a.columnLines(i, st, width)
		cols[i] = style.Width(width).Height(inner).Render(strings.Join(tail(lines, inner), "\n"))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

// columnLines renders one session as wrapped lines of at most width cells.
func (a AppView) columnLines(i int, st *model.PlaygroundState, width int) []string {
	var lines []string

	header := fmt.Sprintf("%d %s", i+1, st.Model)
	if st.Loading {
		header = a.spinner.View() + " " + header
	}
	lines = append(lines, TitleStyle.Render(runewidth.Truncate(header, width, "…")))
	lines = append(lines, DimStyle.Render(runewidth.Truncate(paramsLine(st.Params), width, "…")))

	for j, m := range st.Messages {
		prefix := fmt.Sprintf("%d %s: ", j+1, m.Role)
		lines = append(lines, styledLines(roleStyle(m.Role), wrapText(prefix+messageText(m), width))...)
	}

	if st.Output != nil {
		for j, c := range st.Output.Choices {
			marker := "  "
			style := AssistantStyle
			if j == st.SelectedChoiceIndex {
				marker = "▶ "
			} else {
				style = DimStyle
			}
			label := marker
			if len(st.Output.Choices) > 1 {
				label += fmt.Sprintf("[%d] ", j+1)
			}
			lines = append(lines, styledLines(style, wrapText(label+choiceText(c.Message), width))...)
		}
	}

	if st.Summary != nil {
		u := st.Summary.Usage
		lines = append(lines, DimStyle.Render(runewidth.Truncate(
			fmt.Sprintf("tokens %d in / %d out", u.PromptTokens, u.CompletionTokens), width, "…")))
	}
	if msg, ok := a.errors[st.ID]; ok {
		lines = append(lines, styledLines(ErrorStyle, wrapText("! "+msg, width))...)
	}
	return lines
}

func paramsLine(p model.Params) string {
	s := fmt.Sprintf("t=%.2g max=%d", p.Temperature, p.MaxTokens)
	if p.N > 1 {
		s += fmt.Sprintf(" n=%d", p.N)
	}
	if p.ResponseFormat != "" && p.ResponseFormat != model.ResponseFormatText {
		s += " " + string(p.ResponseFormat)
	}
	if len(p.Tools) > 0 {
		s += fmt.Sprintf(" tools=%d", len(p.Tools))
	}
	return s
}

func roleStyle(r model.Role) lipgloss.Style {
	switch r {
	case model.RoleUser:
		return UserStyle
	case model.RoleAssistant:
		return AssistantStyle
	case model.RoleTool:
		return ToolStyle
	}
	return DimStyle
}

// messageText is the displayed form of a history message.
func messageText(m model.Message) string {
	text := m.Content
	if m.ToolCallID != "" {
		text = "[" + m.ToolCallID + "] " + text
	}
	if len(m.ToolCalls) > 0 {
		text = strings.TrimSpace(text + " " + toolCallsText(m.ToolCalls))
	}
	return text
}

// choiceText is what is shown and copied for an output choice.
func choiceText(m model.Message) string {
	if len(m.ToolCalls) == 0 {
		return m.Content
	}
	return strings.TrimSpace(m.Content + "\n" + toolCallsText(m.ToolCalls))
}

func toolCallsText(calls []model.ToolCall) string {
	parts := make([]string, len(calls))
	for i, tc := range calls {
		parts[i] = fmt.Sprintf("→ %s %s(%s)", tc.ID, tc.Function.Name, tc.Function.Arguments)
	}
	return strings.Join(parts, "\n")
}

func styledLines(style lipgloss.Style, lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = style.Render(l)
	}
	return out
}

// tail returns the last n lines.
func tail(lines []string, n int) []string {
	if len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}

// wrapText wraps text to width cells. Explicit line breaks are kept and
// words longer than a line are split.
func wrapText(text string, width int) []string {
	wrapped := lipgloss.NewStyle().Width(max(width, 1)).Render(text)
	lines := strings.Split(wrapped, "\n")
	for i, line := range lines {
		// Width pads every line; the caller styles and pads on its own.
		lines[i] = strings.TrimRight(line, " ")
	}
	return lines
}

func (a AppView) renderStatus() string {
	target := "all sessions"
	if !a.broadcast {
		target = fmt.Sprintf("session %d", a.focused+1)
	}
	left := fmt.Sprintf("%s → %s", a.inputRole, target)
	if a.anyLoading() {
		left = a.spinner.View() + " " + left
	}
	line := left
	if a.status != "" {
		line += "  " + a.status
	}
	line = runewidth.Truncate(line, a.width, "…")
	if a.statusErr {
		return ErrorStyle.Render(line)
	}
	return StatusStyle.Render(line)
}

func (a AppView) renderFooter() string {
	return FormatFooter(
		"Enter", "Send",
		"Tab", "Focus",
		"Ctrl+B", "Broadcast",
		"Ctrl+N", "New",
		"Ctrl+R", "Retry",
		"Ctrl+P", "Model",
		"F1", "Help",
	)
}
