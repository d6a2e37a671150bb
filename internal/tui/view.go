package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/evanschultz/kanbo/internal/app"
	"github.com/evanschultz/kanbo/internal/domain"
)

var (
	accentColor  = lipgloss.Color("62")
	mutedColor   = lipgloss.Color("241")
	dimColor     = lipgloss.Color("239")
	warningColor = lipgloss.Color("203")
	doneColor    = lipgloss.Color("42")
)

// View renders the board on the alternate screen.
func (m Model) View() tea.View {
	v := tea.NewView(m.render())
	v.AltScreen = true
	return v
}

// render builds the full frame.
func (m Model) render() string {
	if !m.ready {
		return "loading..."
	}

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	statusStyle := lipgloss.NewStyle().Foreground(dimColor)
	noticeStyle := lipgloss.NewStyle().Bold(true).Foreground(warningColor)

	header := titleStyle.Render("kanbo")
	if m.loading {
		header += " " + m.spinner.View()
	}
	header += statusStyle.Render(fmt.Sprintf("  %d tasks • page size %d", len(m.tasks), m.pager.Size()))

	board := m.pager.Project(m.tasks)
	colWidth := m.columnWidth()
	colHeight := m.columnHeight()
	columnViews := make([]string, 0, len(board.Columns))
	for idx, col := range board.Columns {
		columnViews = append(columnViews, m.renderColumn(idx, col, colWidth, colHeight))
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top, columnViews...)

	sections := []string{header, "", body}
	for _, n := range m.notices {
		sections = append(sections, noticeStyle.Render("! "+truncate(n.Text, max(20, m.width-16)))+statusStyle.Render("  esc dismiss"))
	}
	if strings.TrimSpace(m.status) != "" && m.status != "ready" {
		sections = append(sections, statusStyle.Render(m.status))
	}
	content := strings.Join(sections, "\n")

	helpBubble := m.help
	helpBubble.ShowAll = false
	helpLine := lipgloss.NewStyle().
		Foreground(mutedColor).
		BorderTop(true).
		BorderForeground(dimColor).
		Padding(0, 1).
		Width(max(0, m.width)).
		Render(helpBubble.View(m.keys))

	if m.height > 0 {
		content = fitLines(content, max(0, m.height-lipgloss.Height(helpLine)))
	}
	fullContent := content + "\n" + helpLine

	overlay := m.renderModeOverlay(m.width - 8)
	if m.help.ShowAll && m.mode == modeNone {
		overlay = m.renderHelpOverlay(m.width - 8)
	}
	if overlay != "" {
		height := lipgloss.Height(fullContent)
		if m.height > 0 {
			height = m.height
		}
		fullContent = overlayOnContent(fullContent, overlay, max(1, m.width), max(1, height))
	}
	return fullContent
}

// renderColumn renders one status column with its page footer.
func (m Model) renderColumn(idx int, col app.ColumnPage, width, height int) string {
	focused := idx == m.column
	border := dimColor
	if focused {
		border = accentColor
	}
	titleColor := accentColor
	if col.Status == domain.StatusDone {
		titleColor = doneColor
	}
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1).
		MarginRight(1).
		Width(width)
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(titleColor)
	emptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	footerStyle := lipgloss.NewStyle().Foreground(mutedColor)

	lines := []string{titleStyle.Render(fmt.Sprintf("%d %s (%d)", idx+1, col.Status.Title(), col.Total)), ""}
	if len(col.Tasks) == 0 {
		lines = append(lines, emptyStyle.Render("(empty)"))
	}
	for row, task := range col.Tasks {
		prefix := "  "
		selected := focused && row == m.row
		if selected {
			prefix = "│ "
		}
		line := prefix + truncate(task.Text, max(1, width-6))
		if selected {
			line = selectedStyle.Render(line)
		}
		lines = append(lines, line)
	}

	inner := max(4, height-2)
	body := fitLines(strings.Join(lines, "\n"), inner-1)
	return style.Render(body + "\n" + footerStyle.Render(pageFooter(col)))
}

// pageFooter describes the column's page position.
func pageFooter(col app.ColumnPage) string {
	if col.PageCount == 0 {
		return "page -/-"
	}
	prev, next := " ", " "
	if col.HasPrev {
		prev = "‹"
	}
	if col.HasNext {
		next = "›"
	}
	return fmt.Sprintf("%s page %d/%d %s", prev, col.Page+1, col.PageCount, next)
}

// renderModeOverlay renders the modal for the current mode.
func (m Model) renderModeOverlay(maxWidth int) string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(accentColor)
	hintStyle := lipgloss.NewStyle().Foreground(mutedColor)
	box := func(minW, maxW int) lipgloss.Style {
		style := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accentColor).
			Padding(0, 1)
		if maxWidth > 0 {
			style = style.Width(clamp(maxWidth, minW, maxW))
		}
		return style
	}

	switch m.mode {
	case modeAddTask, modeEditTask:
		title := "New Task"
		if m.mode == modeEditTask {
			title = "Edit Task"
		}
		lines := []string{
			titleStyle.Render(title),
			m.input.View(),
			hintStyle.Render("enter save • esc cancel"),
		}
		return box(36, 80).Render(strings.Join(lines, "\n"))

	case modeConfirmDelete:
		confirmStyle := lipgloss.NewStyle().Foreground(mutedColor)
		cancelStyle := lipgloss.NewStyle().Foreground(mutedColor)
		if m.confirmChoice == 0 {
			confirmStyle = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
		} else {
			cancelStyle = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
		}
		lines := []string{
			titleStyle.Render("Delete Task"),
			truncate(m.pendingDelete.Text, 60),
			confirmStyle.Render("[delete]") + "  " + cancelStyle.Render("[cancel]"),
			hintStyle.Render("enter apply • esc cancel • h/l switch • y confirm • n cancel"),
		}
		return box(36, 80).Render(strings.Join(lines, "\n"))

	case modeTaskInfo:
		task, ok := m.taskByID(m.infoID)
		if !ok {
			return ""
		}
		width := clamp(maxWidth, 30, 76)
		ref := task.RemoteRef
		if ref == "" {
			ref = "-"
		}
		lines := []string{
			titleStyle.Render(fmt.Sprintf("Task #%d", task.ID)),
			m.markdown.render(task.Text, width-4),
			"",
			hintStyle.Render(fmt.Sprintf("status: %s • completed: %t", task.Status.Title(), task.Completed)),
			hintStyle.Render(fmt.Sprintf("remote: %s • revision: %d", ref, task.Revision)),
			hintStyle.Render("updated: " + formatActivityTimestamp(task.UpdatedAt)),
			hintStyle.Render("esc close • e edit"),
		}
		return box(30, 76).Render(strings.Join(lines, "\n"))

	case modeActivityLog:
		lines := []string{titleStyle.Render("Activity Log")}
		if len(m.activity) == 0 {
			lines = append(lines, hintStyle.Render("(no activity yet)"))
		}
		for idx, event := range m.activity {
			if idx >= activityLogViewWindow {
				lines = append(lines, hintStyle.Render(fmt.Sprintf("+%d older", len(m.activity)-idx)))
				break
			}
			lines = append(lines, fmt.Sprintf("%s  %s", formatActivityTimestamp(event.OccurredAt), truncate(activitySummary(event), 64)))
		}
		lines = append(lines, hintStyle.Render("esc close"))
		return box(44, 96).Render(strings.Join(lines, "\n"))
	}
	return ""
}

// renderHelpOverlay renders the full key reference.
func (m Model) renderHelpOverlay(maxWidth int) string {
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accentColor).
		Padding(0, 1)
	if maxWidth > 0 {
		style = style.Width(clamp(maxWidth, 40, 100))
	}
	helpBubble := m.help
	helpBubble.ShowAll = true
	lines := []string{
		lipgloss.NewStyle().Bold(true).Foreground(accentColor).Render("Keys"),
		helpBubble.View(m.keys),
		lipgloss.NewStyle().Foreground(mutedColor).Render("page sizes: " + joinInts(m.pager.Options(), " → ")),
	}
	return style.Render(strings.Join(lines, "\n"))
}

func joinInts(values []int, sep string) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, strconv.Itoa(v))
	}
	return strings.Join(parts, sep)
}

// formatActivityTimestamp prints the time of day, or the date for older entries.
func formatActivityTimestamp(at time.Time) string {
	if at.IsZero() {
		return "--:--:--"
	}
	local := at.Local()
	now := time.Now().In(local.Location())
	if local.Year() != now.Year() || local.YearDay() != now.YearDay() {
		return local.Format("01-02 15:04")
	}
	return local.Format("15:04:05")
}

// columnWidth splits the terminal between the three columns.
func (m Model) columnWidth() int {
	columns := len(domain.Statuses())
	w := 28
	if m.width > 0 {
		// border (2), padding (2), margin (1)
		const colOverhead = 5
		if candidate := (m.width - columns*colOverhead) / columns; candidate > 0 {
			w = candidate
		}
	}
	return clamp(w, 20, 48)
}

// columnHeight leaves room for the header, notices and help line.
func (m Model) columnHeight() int {
	reserved := 7 + len(m.notices)
	return max(m.pager.Size()+6, m.height-reserved)
}

func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	return min(max(v, minV), maxV)
}

// fitLines pads or cuts content to exactly maxLines lines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		lines = append(lines, make([]string, maxLines-len(lines))...)
	}
	return strings.Join(lines, "\n")
}

// overlayOnContent centers overlay above base.
func overlayOnContent(base, overlay string, width, height int) string {
	base = fitLines(base, height)
	canvas := lipgloss.NewCanvas(width, height)
	canvas.Compose(lipgloss.NewLayer(base).X(0).Y(0).Z(0))
	centered := lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, overlay)
	canvas.Compose(lipgloss.NewLayer(centered).X(0).Y(0).Z(10))
	return canvas.Render()
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	if limit == 1 {
		return string(rs[:1])
	}
	return string(rs[:limit-1]) + "…"
}
