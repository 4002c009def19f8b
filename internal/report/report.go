// Package report renders ledger and ranking data into an XLSX workbook for
// sharing outside the CLI.
package report

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/localrank/internal/model"
)

var taskHeaders = []string{
	"Task ID", "Kind", "Place ID", "Location", "Status",
	"Status Code", "Status Message", "Created At", "Ready At",
	"Populated At", "Items", "Last Error",
}

var rankHeaders = []string{
	"Place ID", "Query", "Position", "Rating", "Reviews", "Captured At",
}

// WriteWorkbook writes a two-sheet workbook: the task ledger and the ranking
// snapshots.
func WriteWorkbook(path string, tasks []model.EnrichmentTask, snapshots []model.RankSnapshot) error {
	f := xlsx.NewFile()

	taskSheet, err := f.AddSheet("Tasks")
	if err != nil {
		return eris.Wrap(err, "report: add tasks sheet")
	}
	writeRow(taskSheet, taskHeaders)
	for _, t := range tasks {
		writeRow(taskSheet, []string{
			t.ID,
			string(t.Kind),
			t.PlaceID,
			t.LocationName,
			string(t.Status),
			strconv.Itoa(t.StatusCode),
			t.StatusMessage,
			formatTime(&t.CreatedAt),
			formatTime(t.ReadyAt),
			formatTime(t.PopulatedAt),
			strconv.Itoa(t.LastPopulateCount),
			t.LastError,
		})
	}

	rankSheet, err := f.AddSheet("Rankings")
	if err != nil {
		return eris.Wrap(err, "report: add rankings sheet")
	}
	writeRow(rankSheet, rankHeaders)
	for _, s := range snapshots {
		writeRow(rankSheet, []string{
			s.PlaceID,
			s.Query,
			strconv.Itoa(s.Position),
			fmt.Sprintf("%.1f", s.Rating),
			strconv.Itoa(s.Reviews),
			formatTime(&s.CapturedAt),
		})
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save workbook %s", path)
	}
	return nil
}

func writeRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
