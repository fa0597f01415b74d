package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/olivier-w/mailbox/internal/mailbox"
	"github.com/olivier-w/mailbox/internal/sorter"
)

const (
	maxColumnWidth = 32
	columnGap      = 2
	// markerWidth is the cursor column drawn before every row.
	markerWidth = 2
)

func renderProgressBar(elapsed, total float64, width int) string {
	if width < 10 {
		width = 10
	}
	barWidth := width - 2

	var ratio float64
	if total > 0 {
		ratio = elapsed / total
	}
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}

	filled := int(ratio * float64(barWidth))
	return strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)
}

func renderVolumePercent(vol float64) string {
	return fmt.Sprintf("vol %d%%", int(vol*100+0.5))
}

func renderButton(glyph string, enabled bool) string {
	if enabled {
		return statusStyle.Render(glyph)
	}
	return disabledStyle.Render(glyph)
}

func renderTransport(c mailbox.Controls) string {
	play := "▶"
	if c.PlayActive {
		play = "❚❚"
	}
	transport := strings.Join([]string{
		renderButton("⏮", c.PrevEnabled),
		renderButton("■", c.StopEnabled),
		renderButton(play, c.PlayEnabled),
		renderButton("⏭", c.NextEnabled),
	}, "  ")
	if label := c.Speed.Label(); label != "" {
		transport += " " + statusStyle.Render(label)
	}
	return transport
}

// tableLayout holds the rendered width of every column.
type tableLayout struct {
	widths []int
}

func newTableLayout(t *sorter.Table) tableLayout {
	cols := t.Columns()
	widths := make([]int, len(cols))
	for i, col := range cols {
		widths[i] = lipgloss.Width(headerLabel(col, false, false))
	}
	for _, row := range t.Rows() {
		for i := range cols {
			if c := row.Cell(i); c != nil {
				widths[i] = max(widths[i], lipgloss.Width(c.Text))
			}
		}
	}
	for i := range widths {
		widths[i] = min(widths[i], maxColumnWidth)
	}
	return tableLayout{widths: widths}
}

// columnAt maps a screen column, relative to the table's left edge, to a
// column index.
func (l tableLayout) columnAt(x int) (int, bool) {
	x -= markerWidth
	for i, w := range l.widths {
		if x >= 0 && x < w {
			return i, true
		}
		x -= w + columnGap
	}
	return 0, false
}

func headerLabel(col sorter.Column, selected, ascending bool) string {
	if !col.Sortable() {
		return col.Name
	}
	switch {
	case !selected:
		return col.Name + "  "
	case ascending:
		return col.Name + " ▲"
	default:
		return col.Name + " ▼"
	}
}

func (l tableLayout) header(t *sorter.Table) string {
	cols := t.Columns()
	cells := make([]string, len(cols))
	for i, col := range cols {
		selected, ascending := t.HeaderState(i)
		cells[i] = columnStyle.Render(pad(headerLabel(col, selected, ascending), l.widths[i]))
	}
	return spaces(markerWidth) + strings.Join(cells, spaces(columnGap))
}

func (l tableLayout) row(r *sorter.Row, cursor, selected bool) string {
	cells := make([]string, len(l.widths))
	for i, w := range l.widths {
		text := ""
		if c := r.Cell(i); c != nil {
			text = c.Text
		}
		cells[i] = pad(text, w)
	}
	line := strings.Join(cells, spaces(columnGap))

	marker := spaces(markerWidth)
	if cursor {
		marker = "› "
	}
	if selected {
		return selectedStyle.Render(marker + line)
	}
	return rowStyle.Render(marker + line)
}

// pad truncates s to width cells and pads it with spaces.
func pad(s string, width int) string {
	if lipgloss.Width(s) > width {
		runes := []rune(s)
		for len(runes) > 0 && lipgloss.Width(string(runes))+1 > width {
			runes = runes[:len(runes)-1]
		}
		s = string(runes) + "…"
	}
	return s + spaces(width-lipgloss.Width(s))
}

func spaces(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(" ", n)
}
