package api

import (
	"net/http"

	"github.com/gridflex/gridflex/core/model"
)

func (s *Server) handleBecknSearch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Region     string `json:"region,omitempty"`
		HoursAhead int    `json:"hours_ahead,omitempty"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	region, err := parseRegionParam(body.Region)
	if err != nil {
		s.writeError(w, model.NewValidationError("%v", err))
		return
	}
	slots, err := s.mkt.SearchFlexibilitySlots(r.Context(), region, body.HoursAhead)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
}

func (s *Server) handleBecknConfirm(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SlotID string `json:"slot_id"`
		JobID  string `json:"job_id"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	if body.SlotID == "" {
		s.writeError(w, model.NewValidationError("slot_id is required"))
		return
	}
	if body.JobID == "" {
		s.writeError(w, model.NewValidationError("job_id is required"))
		return
	}
	job, err := s.mkt.ConfirmSlot(r.Context(), body.SlotID, body.JobID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}
