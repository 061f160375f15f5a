package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/gridflex/gridflex/core/audit"
	"github.com/gridflex/gridflex/core/model"
)

func sampleRecords() []audit.DecisionRecord {
	ts := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	start := ts.Add(14 * time.Hour)
	return []audit.DecisionRecord{
		{
			LogID:        "log_aaaa1111",
			Timestamp:    ts,
			JobID:        "job_x",
			DecisionType: audit.DecisionSchedule,
			Selected: &audit.Option{
				Region:    model.RegionScotland,
				StartTime: start,
				Score:     0.15,
			},
			Schedule:  &model.Schedule{CarbonSavedKg: 176, CostSavedGBP: 24},
			Rationale: "lowest carbon window",
		},
		{
			LogID:        "log_bbbb2222",
			Timestamp:    ts.Add(time.Minute),
			JobID:        "job_y",
			DecisionType: audit.DecisionDefer,
			Rationale:    "no feasible window",
		},
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleRecords()); err != nil {
		t.Fatalf("write json: %v", err)
	}
	var out []audit.DecisionRecord
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if len(out) != 2 || out[0].LogID != "log_aaaa1111" {
		t.Fatalf("unexpected output %+v", out)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleRecords()); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus two rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "log_id,timestamp,job_id,decision_type") {
		t.Fatalf("unexpected header %s", lines[0])
	}
	if !strings.Contains(lines[1], "scotland") || !strings.Contains(lines[1], "176") {
		t.Fatalf("unexpected row %s", lines[1])
	}
	if !strings.Contains(lines[2], "DEFER") {
		t.Fatalf("unexpected row %s", lines[2])
	}
}
