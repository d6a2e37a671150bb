package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	servercommon "github.com/evanschultz/kanbo/internal/adapters/server/common"
)

// renderBoardTable lays the projected columns side by side, one row per
// page slot, with a page footer row.
func renderBoardTable(w io.Writer, board servercommon.Board) string {
	re := lipgloss.NewRenderer(w)
	headerStyle := re.NewStyle().Bold(true).Foreground(lipgloss.Color("62")).Padding(0, 1)
	cellStyle := re.NewStyle().Padding(0, 1)
	footerStyle := re.NewStyle().Foreground(lipgloss.Color("241")).Padding(0, 1)

	headers := make([]string, 0, len(board.Columns))
	rowCount := 0
	for _, col := range board.Columns {
		headers = append(headers, fmt.Sprintf("%s (%d)", col.Title, col.Total))
		rowCount = max(rowCount, len(col.Tasks))
	}

	rows := make([][]string, 0, rowCount+1)
	for i := range rowCount {
		row := make([]string, len(board.Columns))
		for c, col := range board.Columns {
			if i < len(col.Tasks) {
				row[c] = fmt.Sprintf("#%d %s", col.Tasks[i].ID, col.Tasks[i].Text)
			}
		}
		rows = append(rows, row)
	}
	footer := make([]string, len(board.Columns))
	for c, col := range board.Columns {
		footer[c] = columnPageLabel(col)
	}
	rows = append(rows, footer)
	footerRow := len(rows) - 1

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(re.NewStyle().Foreground(lipgloss.Color("239"))).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			switch row {
			case table.HeaderRow:
				return headerStyle
			case footerRow:
				return footerStyle
			default:
				return cellStyle
			}
		})
	return t.Render()
}

// columnPageLabel describes one column's page position for humans (1-based).
func columnPageLabel(col servercommon.Column) string {
	if col.PageCount == 0 {
		return "page -/-"
	}
	return fmt.Sprintf("page %d/%d", col.Page+1, col.PageCount)
}
