package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"prepx/internal/domain"
)

// csvHeader is the fixed export header. Field quoting follows RFC 4180:
// embedded quotes are doubled, fields with commas or quotes are wrapped.
var csvHeader = []string{"Date", "Course", "Topic", "Task Type", "Duration (H)", "Resources", "Notes"}

// WriteCSV emits a plan as CSV.
func WriteCSV(w io.Writer, tasks []domain.StudyTask) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, t := range tasks {
		rec := []string{
			t.Date,
			t.Course,
			t.Topic,
			string(t.Kind),
			formatHours(t.DurationHours),
			t.Resources,
			t.Notes,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteMarkdown emits a plan as a Markdown pipe-table.
func WriteMarkdown(w io.Writer, tasks []domain.StudyTask) error {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Date", "Course", "Topic", "Task Type", "Hours", "Resources"})
	for _, t := range tasks {
		tw.AppendRow(table.Row{t.Date, t.Course, t.Topic, string(t.Kind), formatHours(t.DurationHours), t.Resources})
	}
	tw.RenderMarkdown()
	return nil
}

func formatHours(h float64) string {
	s := fmt.Sprintf("%.2f", h)
	// Trim trailing zeros so 2.00 renders as 2 and 1.50 as 1.5.
	for len(s) > 0 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if len(s) > 0 && s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	return s
}
