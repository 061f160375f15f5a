package api

import (
	"net/http"

	"github.com/gridflex/gridflex/core/model"
	"github.com/gridflex/gridflex/core/registry"
)

func (s *Server) handleRegisterAsset(w http.ResponseWriter, r *http.Request) {
	var asset model.ComputeAsset
	if err := decodeBody(r, &asset); err != nil {
		s.writeError(w, err)
		return
	}
	created, err := s.reg.RegisterAsset(asset)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	region, err := parseRegionParam(r.URL.Query().Get("region"))
	if err != nil {
		s.writeError(w, model.NewValidationError("%v", err))
		return
	}
	writeJSON(w, http.StatusOK, s.reg.ListAssets(region))
}

func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	asset, err := s.reg.GetAsset(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var sub model.JobSubmission
	if err := decodeBody(r, &sub); err != nil {
		s.writeError(w, err)
		return
	}
	job, err := s.reg.SubmitJob(sub)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f registry.JobFilter
	if v := q.Get("status"); v != "" {
		st, err := model.ParseJobStatus(v)
		if err != nil {
			s.writeError(w, model.NewValidationError("%v", err))
			return
		}
		f.Status = st
	}
	if v := q.Get("priority"); v != "" {
		p, err := model.ParsePriority(v)
		if err != nil {
			s.writeError(w, model.NewValidationError("%v", err))
			return
		}
		f.Priority = p
	}
	region, err := parseRegionParam(q.Get("region"))
	if err != nil {
		s.writeError(w, model.NewValidationError("%v", err))
		return
	}
	f.Region = region
	writeJSON(w, http.StatusOK, s.reg.ListJobs(f))
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.reg.GetJob(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	if err := s.reg.DeleteJob(r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	next, err := model.ParseJobStatus(body.Status)
	if err != nil {
		s.writeError(w, model.NewValidationError("%v", err))
		return
	}
	job, err := s.reg.UpdateStatus(r.PathValue("id"), next)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleScheduleJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.sched.ScheduleJob(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleScheduleAll(w http.ResponseWriter, r *http.Request) {
	summary, err := s.sched.ScheduleAllPending(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.reg.Stats())
}

func (s *Server) handleFlexibility(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.reg.Flexibility())
}
