package dashboard

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Sheet names of the export workbook.
const (
	SheetSummary   = "Summary"
	SheetLinks     = "Links"
	SheetReferrers = "Referrers"
	SheetActivity  = "Activity"
)

// WriteWorkbook writes stats as an xlsx workbook to w.
func WriteWorkbook(w io.Writer, stats *Stats) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetLinks, SheetReferrers, SheetActivity} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	summary := [][]any{
		{"Metric", "Value"},
		{"Period (days)", stats.Days},
		{"Since", stats.Since.Format(time.RFC3339)},
		{"Total visits", stats.TotalVisits},
		{"Total clicks", stats.TotalClicks},
		{"Click-through rate (%)", stats.ClickThroughRate},
		{"Unique sessions", stats.UniqueSessions},
		{"Visits today", stats.TodayVisits},
		{"Generated at", stats.GeneratedAt.Format(time.RFC3339)},
	}

	links := [][]any{{"Link", "Clicks", "Last click"}}
	for _, l := range stats.Links {
		links = append(links, []any{l.LinkID, l.Clicks, l.LastClick.Format(time.RFC3339)})
	}

	referrers := [][]any{{"Referrer", "Visits"}}
	for _, r := range stats.Referrers {
		referrers = append(referrers, []any{r.Referrer, r.Visits})
	}

	activity := [][]any{{"Time", "Kind", "Details"}}
	for _, a := range stats.RecentActivity {
		activity = append(activity, []any{a.Time.Format(time.RFC3339), a.Kind, a.Details})
	}

	sheets := []struct {
		name string
		rows [][]any
	}{
		{SheetSummary, summary},
		{SheetLinks, links},
		{SheetReferrers, referrers},
		{SheetActivity, activity},
	}
	for _, sheet := range sheets {
		if err := writeRows(f, sheet.name, sheet.rows); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
