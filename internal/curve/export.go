package curve

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DayColumn is the first column of every export.
const DayColumn = "Days"

// WriteCSV writes the series side by side, one row per day. All series must
// have the same length.
func WriteCSV(w io.Writer, series ...Series) error {
	if len(series) == 0 {
		return fmt.Errorf("export: no series")
	}
	n := series[0].Len()
	for _, s := range series[1:] {
		if s.Len() != n {
			return fmt.Errorf("export: series %q has %d points, want %d", s.Label, s.Len(), n)
		}
	}

	cw := csv.NewWriter(w)

	header := make([]string, 0, len(series)+1)
	header = append(header, DayColumn)
	for _, s := range series {
		header = append(header, s.Label)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}

	row := make([]string, len(series)+1)
	for day := 1; day <= n; day++ {
		row[0] = strconv.Itoa(day)
		for i, s := range series {
			row[i+1] = strconv.FormatFloat(s.value(day), 'g', -1, 64)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("export: write day %d: %w", day, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// FileName returns the download name for a material's dose curve.
func FileName(material string) string {
	name := strings.ReplaceAll(material, " ", "_")
	name = strings.ReplaceAll(name, "/", "-")
	return "dose_curve_" + name + ".csv"
}
