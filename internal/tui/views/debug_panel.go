package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"

	"github.com/dkzef/chirp/internal/calllog"
)

// DebugPanel shows the API call log with aggregate stats, plus the
// failed-send queue controls.
type DebugPanel struct {
	*tview.Flex
	stats *tview.TextView
	table *tview.Table
}

// NewDebugPanel creates the debug page.
func NewDebugPanel() *DebugPanel {
	stats := tview.NewTextView().SetDynamicColors(true)
	stats.SetBorder(true).SetTitle(" API Stats ")

	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Calls (x:clear r:retry failed sends) ")

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(stats, 4, 0, false).
		AddItem(table, 0, 1, true)

	return &DebugPanel{Flex: flex, stats: stats, table: table}
}

// Update redraws the stats header and the call table.
func (dp *DebugPanel) Update(records []calllog.Record, stats calllog.Stats, failedSends int) {
	dp.renderStats(stats, failedSends)
	dp.renderTable(records)
}

func (dp *DebugPanel) renderStats(s calllog.Stats, failedSends int) {
	dp.stats.Clear()

	rate := "N/A"
	if s.Total > 0 {
		rate = fmt.Sprintf("%.0f%%", s.SuccessRate*100)
	}
	fmt.Fprintf(dp.stats, " calls: %d   success: %s   failed: %d   avg: %s\n",
		s.Total, rate, s.FailedCalls, s.AverageDuration.Round(time.Millisecond))
	fmt.Fprintf(dp.stats, " failed sends awaiting retry: %d\n", failedSends)
}

func (dp *DebugPanel) renderTable(records []calllog.Record) {
	dp.table.Clear()

	dp.table.SetCell(0, 0, headerCell(" Time"))
	dp.table.SetCell(0, 1, headerCell(" Method"))
	dp.table.SetCell(0, 2, headerCell(" Path"))
	dp.table.SetCell(0, 3, headerCell(" Status"))
	dp.table.SetCell(0, 4, headerCell(" Duration"))

	for i, r := range records {
		row := i + 1

		status := fmt.Sprintf("%d", r.Status)
		if r.Status == 0 {
			status = "ERR"
		}
		if r.Failed() {
			status = "[red]" + status + "[-]"
		}

		dp.table.SetCell(row, 0, tview.NewTableCell(" "+r.Timestamp.Format("15:04:05")))
		dp.table.SetCell(row, 1, tview.NewTableCell(" "+r.Method))
		dp.table.SetCell(row, 2, tview.NewTableCell(" "+r.URL).SetExpansion(1))
		dp.table.SetCell(row, 3, tview.NewTableCell(" "+status))
		dp.table.SetCell(row, 4, tview.NewTableCell(" "+r.Duration.Round(time.Millisecond).String()))
	}
}
