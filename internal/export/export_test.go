package export_test

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"prepx/internal/domain"
	"prepx/internal/export"
)

func sampleTasks() []domain.StudyTask {
	return []domain.StudyTask{
		{
			Date: "2025-03-03", Course: "CS201", Topic: "Quicksort",
			Kind: domain.TaskLearn, DurationHours: 2,
			Resources: "Ch 2, pp. 40-52", Notes: `focus on "partition" first`,
		},
		{
			Date: "2025-03-04", Course: "CS201", Topic: "Quicksort",
			Kind: domain.TaskPractice, DurationHours: 1.5,
			Resources: "Ch 2", Notes: "",
		},
		{
			Date: "2025-03-05", Course: "CS201", Topic: "Quicksort",
			Kind: domain.TaskReview, DurationHours: 0.5,
			Resources: "Ch 2", Notes: "",
		},
	}
}

func TestWriteCSVRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, sampleTasks()); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("re-read csv: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("want header + 3 rows, got %d", len(records))
	}
	header := strings.Join(records[0], ",")
	if header != "Date,Course,Topic,Task Type,Duration (H),Resources,Notes" {
		t.Fatalf("header %q", header)
	}
	// Commas and quotes in fields must survive the quoting round trip.
	if records[1][5] != "Ch 2, pp. 40-52" {
		t.Fatalf("resources field mangled: %q", records[1][5])
	}
	if records[1][6] != `focus on "partition" first` {
		t.Fatalf("notes field mangled: %q", records[1][6])
	}
	if records[1][4] != "2" || records[2][4] != "1.5" || records[3][4] != "0.5" {
		t.Fatalf("hours formatting: %q %q %q", records[1][4], records[2][4], records[3][4])
	}
	if records[3][3] != string(domain.TaskReview) {
		t.Fatalf("task type column: %q", records[3][3])
	}
}

func TestWriteCSVEmptyPlan(t *testing.T) {
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, nil); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil || len(records) != 1 {
		t.Fatalf("want header only, got %d rows (%v)", len(records), err)
	}
}

func TestWriteMarkdown(t *testing.T) {
	var buf bytes.Buffer
	if err := export.WriteMarkdown(&buf, sampleTasks()); err != nil {
		t.Fatalf("WriteMarkdown: %v", err)
	}
	out := buf.String()

	lines := strings.Split(strings.TrimSpace(out), "\n")
	// Header, separator and one line per task.
	if len(lines) != 5 {
		t.Fatalf("want 5 lines, got %d:\n%s", len(lines), out)
	}
	for i, line := range lines {
		if !strings.HasPrefix(strings.TrimSpace(line), "|") {
			t.Fatalf("line %d not a pipe-table row: %q", i, line)
		}
	}
	if !strings.Contains(lines[0], "Date") || !strings.Contains(lines[0], "Resources") {
		t.Fatalf("header row %q", lines[0])
	}
	if !strings.Contains(out, "Quicksort") || !strings.Contains(out, "2025-03-03") {
		t.Fatalf("task data missing:\n%s", out)
	}
	if !strings.Contains(out, "| 1.5 ") && !strings.Contains(out, "|1.5") {
		t.Fatalf("hours not trimmed:\n%s", out)
	}
}
