package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gridflex/gridflex/core/audit"
	"github.com/gridflex/gridflex/core/model"
)

func (s *Server) handleCurrentSignal(w http.ResponseWriter, r *http.Request) {
	region, err := model.ParseRegion(r.PathValue("region"))
	if err != nil {
		s.writeError(w, model.NewValidationError("%v", err))
		return
	}
	sig, err := s.signals.CurrentSignal(r.Context(), region)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sig)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	region, err := model.ParseRegion(r.PathValue("region"))
	if err != nil {
		s.writeError(w, model.NewValidationError("%v", err))
		return
	}
	hours := 24
	if v := r.URL.Query().Get("hours"); v != "" {
		hours, err = strconv.Atoi(v)
		if err != nil || hours <= 0 {
			s.writeError(w, model.NewValidationError("hours must be a positive integer"))
			return
		}
	}
	forecast, err := s.signals.ForecastSignals(r.Context(), region, hours)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, forecast)
}

func (s *Server) handleCompareRegions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var regions []model.Region
	for _, part := range strings.Split(q.Get("regions"), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		region, err := model.ParseRegion(part)
		if err != nil {
			s.writeError(w, model.NewValidationError("%v", err))
			return
		}
		regions = append(regions, region)
	}
	if len(regions) == 0 {
		s.writeError(w, model.NewValidationError("regions parameter is required"))
		return
	}
	start := time.Now().UTC()
	if v := q.Get("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.writeError(w, model.NewValidationError("invalid start: %v", err))
			return
		}
		start = t
	}
	duration := 1.0
	if v := q.Get("duration_hours"); v != "" {
		d, err := strconv.ParseFloat(v, 64)
		if err != nil || d <= 0 {
			s.writeError(w, model.NewValidationError("duration_hours must be positive"))
			return
		}
		duration = d
	}
	comparison, err := s.comparer.CompareRegions(r.Context(), regions, start, duration)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comparison)
}

// handleJobLogs returns the decision records for one job.
func (s *Server) handleJobLogs(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if _, err := s.reg.GetJob(jobID); err != nil {
		s.writeError(w, err)
		return
	}
	records, err := s.auditor.Query(r.Context(), audit.Query{JobID: jobID})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// handleAuditLogs exposes decision records. Requests must include an
// Authorization header with "Bearer <token>" when token is non-empty.
func (s *Server) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	if s.token != "" {
		auth := r.Header.Get("Authorization")
		if auth != "Bearer "+s.token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}
	q := audit.Query{}
	if v := r.URL.Query().Get("start"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			q.Start = t
		}
	}
	if v := r.URL.Query().Get("end"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			q.End = t
		}
	}
	q.JobID = r.URL.Query().Get("job_id")
	q.DecisionType = audit.DecisionType(r.URL.Query().Get("decision_type"))
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			q.Limit = n
		}
	}
	records, err := s.auditor.Query(r.Context(), q)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}
