package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"

	"playground/ollama"
	"playground/provider"
)

func (a AppView) openSelector() (tea.Model, tea.Cmd) {
	a.showSelector = true
	a.selectorIdx = 0
	a.selectorFilter.SetValue("")
	a.selectorFilter.Focus()
	a.filterModels()

	cmds := []tea.Cmd{textinput.Blink}
	if len(a.models) == 0 && !a.modelsLoading && a.opts.Router != nil {
		a.modelsLoading = true
		cmds = append(cmds, provider.FetchModels(a.opts.Router))
	}
	return a, tea.Batch(cmds...)
}

func (a AppView) updateSelector(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.showSelector = false
		a.selectorFilter.Blur()
		return a, nil
	case "up", "ctrl+k":
		if a.selectorIdx > 0 {
			a.selectorIdx--
		}
		return a, nil
	case "down", "ctrl+j":
		if a.selectorIdx < len(a.filteredModels)-1 {
			a.selectorIdx++
		}
		return a, nil
	case "enter":
		a.showSelector = false
		a.selectorFilter.Blur()
		if a.selectorIdx >= len(a.filteredModels) {
			return a, nil
		}
		if err := a.opts.Playground.SetModel(a.focused, a.filteredModels[a.selectorIdx].ID()); err != nil {
			return a.fail(err)
		}
		return a, nil
	}

	var cmd tea.Cmd
	a.selectorFilter, cmd = a.selectorFilter.Update(msg)
	a.filterModels()
	return a, cmd
}

// filterModels narrows the model list to fuzzy matches of the filter.
func (a *AppView) filterModels() {
	query := a.selectorFilter.Value()
	if query == "" {
		a.filteredModels = a.models
	} else {
		targets := make([]string, len(a.models))
		for i, m := range a.models {
			targets[i] = m.ID()
		}
		matches := fuzzy.Find(query, targets)
		a.filteredModels = make([]ollama.ModelInfo, len(matches))
		for i, match := range matches {
			a.filteredModels[i] = a.models[match.Index]
		}
	}
	if a.selectorIdx >= len(a.filteredModels) {
		a.selectorIdx = max(len(a.filteredModels)-1, 0)
	}
}

func (a AppView) renderSelector() string {
	modalWidth := min(a.width-10, 80)
	maxLines := max(a.height-12, 3)

	current := ""
	if st := a.focusedSession(); st != nil {
		current = st.Model
	}

	title := lipgloss.NewStyle().
		Bold(true).
		Align(lipgloss.Center).
		Width(modalWidth).
		Render(fmt.Sprintf("Select Model for Session %d", a.focused+1))

	header := a.selectorFilter.View()
	switch {
	case a.modelsLoading:
		header += DimStyle.Render("  " + a.spinner.View() + " loading models")
	case len(a.filteredModels) != len(a.models):
		header += DimStyle.Render(fmt.Sprintf("  %d of %d", len(a.filteredModels), len(a.models)))
	}
	headerSection := lipgloss.NewStyle().
		Width(modalWidth).
		BorderTop(true).
		BorderBottom(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(dimColor).
		Render(header)

	var lines []string
	if len(a.filteredModels) == 0 && !a.modelsLoading {
		lines = append(lines, lipgloss.NewStyle().
			Foreground(dimColor).
			Italic(true).
			Align(lipgloss.Center).
			Width(modalWidth).
			Render("No models available"))
	}

	start, end := scrollWindow(a.selectorIdx, len(a.filteredModels), maxLines)
	for i := start; i < end; i++ {
		m := a.filteredModels[i]
		indicator := "  "
		if i == a.selectorIdx {
			indicator = "▶ "
		}
		line := indicator + m.ID()
		if m.ID() == current {
			line += " (current)"
		}
		size := formatSize(m.Size)
		nameWidth := modalWidth - runewidth.StringWidth(size) - 2
		line = runewidth.FillRight(runewidth.Truncate(line, nameWidth, "..."), nameWidth) + "  " + size

		style := lipgloss.NewStyle()
		switch {
		case i == a.selectorIdx:
			style = style.Foreground(successColor).Bold(true)
		case m.ID() == current:
			style = style.Foreground(accentColor).Bold(true)
		}
		lines = append(lines, style.Render(line))
	}

	footer := lipgloss.NewStyle().
		Align(lipgloss.Center).
		Width(modalWidth).
		BorderTop(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(dimColor).
		Render(FormatFooter("Type", "Filter", "↑/↓", "Navigate", "Enter", "Select", "Esc", "Cancel"))

	content := strings.Join(append(append([]string{title, headerSection}, lines...), footer), "\n")
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, content)
}

// scrollWindow returns the slice bounds of a list of n entries that keeps
// selected visible within size lines.
func scrollWindow(selected, n, size int) (int, int) {
	if n <= size {
		return 0, n
	}
	start := selected - size/2
	start = max(0, min(start, n-size))
	return start, start + size
}

// formatSize converts bytes to a human-readable size. Unknown sizes (cloud
// models) render as "".
func formatSize(bytes int64) string {
	if bytes == 0 {
		return ""
	}
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
