package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/getsentry/callprof/internal/metrics"
)

// RenderTable prints the first limit units as a terminal table. A limit of 0
// or less prints every unit.
func RenderTable(w io.Writer, title string, units []metrics.Unit, limit int) {
	if limit > 0 && len(units) > limit {
		units = units[:limit]
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		MarginBottom(1)
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("15")).
		Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	numberStyle := cellStyle.Align(lipgloss.Right)

	rows := make([][]string, len(units))
	for i, u := range units {
		name := u.Name
		if name == "" {
			name = FormatAddress(u.Address)
		}
		rows[i] = []string{
			name,
			strconv.FormatUint(u.InvocationCount, 10),
			strconv.FormatInt(u.TotalSelfTimeMicros, 10),
			strconv.FormatInt(u.TotalTimeMicros, 10),
			strconv.FormatInt(u.AverageSelfTimeMicros(), 10),
			strconv.FormatInt(u.TotalMemoryDeltaBytes, 10),
		}
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0:
				return cellStyle
			default:
				return numberStyle
			}
		}).
		Headers("FUNCTION", "CALLS", "SELF (us)", "TOTAL (us)", "AVG SELF (us)", "MEMORY (bytes)").
		Rows(rows...)

	fmt.Fprintln(w, titleStyle.Render(title))
	fmt.Fprintln(w, t)
}
