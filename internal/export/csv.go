package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"songlens/internal/display"
	"songlens/internal/song"
)

// Header returns the CSV header for models.
func Header(models []string) []string {
	out := make([]string, 0, len(models)+3)
	out = append(out, "filename")
	for _, m := range models {
		out = append(out, display.ModelLabel(m))
	}
	return append(out, "bpm", "key")
}

// Rows renders one row per view. Scores are rounded percentages with 0 for
// missing or failed models; bpm and key are blank when unknown.
func Rows(views []song.View, models []string) [][]string {
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		row := make([]string, 0, len(models)+3)
		row = append(row, v.FileName)
		for _, m := range models {
			score, _ := v.Score(m)
			row = append(row, strconv.Itoa(display.Percent(score)))
		}
		bpm := ""
		if v.Analysis.BPM > 0 {
			bpm = strconv.Itoa(int(math.Round(v.Analysis.BPM)))
		}
		row = append(row, bpm, v.Analysis.KeyLabel())
		rows = append(rows, row)
	}
	return rows
}

// WriteCSV writes the header and rows to w.
func WriteCSV(w io.Writer, views []song.View, models []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(models)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(Rows(views, models)); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}
