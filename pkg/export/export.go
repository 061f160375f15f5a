// Package export writes decision audit records in formats consumable by
// reporting tooling.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/gridflex/gridflex/core/audit"
)

// WriteJSON writes the decision records to w in JSON format.
func WriteJSON(w io.Writer, records []audit.DecisionRecord) error {
	enc := json.NewEncoder(w)
	return enc.Encode(records)
}

// WriteCSV writes a flat summary of the decision records to w.
func WriteCSV(w io.Writer, records []audit.DecisionRecord) error {
	cw := csv.NewWriter(w)
	header := []string{"log_id", "timestamp", "job_id", "decision_type",
		"region", "start_time", "carbon_saved_kg", "cost_saved_gbp", "rationale"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range records {
		var region, start string
		if r.Selected != nil {
			region = r.Selected.Region.String()
			start = r.Selected.StartTime.Format(time.RFC3339)
		}
		var carbonSaved, costSaved string
		if r.Schedule != nil {
			carbonSaved = strconv.FormatFloat(r.Schedule.CarbonSavedKg, 'f', -1, 64)
			costSaved = strconv.FormatFloat(r.Schedule.CostSavedGBP, 'f', -1, 64)
		}
		rec := []string{
			r.LogID,
			r.Timestamp.Format(time.RFC3339),
			r.JobID,
			string(r.DecisionType),
			region,
			start,
			carbonSaved,
			costSaved,
			r.Rationale,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
