package csvio

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/robinvdvleuten/payflow/engine"
)

var reportHeader = []string{"client", "available", "held", "total", "locked"}

// WriteReport writes the final account snapshot as CSV. Amounts are
// rendered with decimal.String, which preserves the input precision
// losslessly.
func WriteReport(w io.Writer, snapshots []engine.AccountSnapshot) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(reportHeader); err != nil {
		return err
	}
	for _, snapshot := range snapshots {
		row := []string{
			strconv.FormatUint(uint64(snapshot.Client), 10),
			snapshot.Available.String(),
			snapshot.Held.String(),
			snapshot.Total.String(),
			strconv.FormatBool(snapshot.Locked),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

var (
	tableHeaderStyle = lipgloss.NewStyle().Bold(true)
	lockedStyle      = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#FF5F87", Dark: "#FF5F87"})
)

// RenderTable renders the snapshot as an aligned terminal table for
// interactive use. Numeric columns are right-aligned; locked accounts
// are highlighted.
func RenderTable(snapshots []engine.AccountSnapshot) string {
	rows := make([][]string, 0, len(snapshots)+1)
	rows = append(rows, reportHeader)
	for _, snapshot := range snapshots {
		rows = append(rows, []string{
			strconv.FormatUint(uint64(snapshot.Client), 10),
			snapshot.Available.String(),
			snapshot.Held.String(),
			snapshot.Total.String(),
			strconv.FormatBool(snapshot.Locked),
		})
	}

	widths := make([]int, len(reportHeader))
	for _, row := range rows {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	for rowIdx, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			// The locked flag keeps left alignment; every other column
			// holds numbers.
			if i == len(row)-1 {
				cells[i] = runewidth.FillRight(cell, widths[i])
			} else {
				cells[i] = runewidth.FillLeft(cell, widths[i])
			}
		}
		line := strings.TrimRight(strings.Join(cells, "  "), " ")

		switch {
		case rowIdx == 0:
			line = tableHeaderStyle.Render(line)
		case snapshots[rowIdx-1].Locked:
			line = lockedStyle.Render(line)
		}

		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
