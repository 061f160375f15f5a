// Package api exposes the scheduling engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gridflex/gridflex/core/audit"
	"github.com/gridflex/gridflex/core/logger"
	"github.com/gridflex/gridflex/core/marketplace"
	"github.com/gridflex/gridflex/core/model"
	"github.com/gridflex/gridflex/core/monitoring"
	"github.com/gridflex/gridflex/core/optimizer"
	"github.com/gridflex/gridflex/core/registry"
	"github.com/gridflex/gridflex/core/scheduler"
	"github.com/gridflex/gridflex/core/signal"
)

// SignalReader serves aggregated grid signals.
type SignalReader interface {
	CurrentSignal(ctx context.Context, region model.Region) (model.GridSignal, error)
	ForecastSignals(ctx context.Context, region model.Region, horizonHours int) ([]model.GridSignal, error)
}

// RegionComparer evaluates a fixed window across regions.
type RegionComparer interface {
	CompareRegions(ctx context.Context, regions []model.Region, startTime time.Time, durationHours float64) (map[model.Region]optimizer.RegionMetrics, error)
}

// Scheduling places pending jobs into windows.
type Scheduling interface {
	ScheduleJob(ctx context.Context, jobID string) (model.Job, error)
	ScheduleAllPending(ctx context.Context) (scheduler.Summary, error)
}

// Slots is the marketplace surface.
type Slots interface {
	SearchFlexibilitySlots(ctx context.Context, region model.Region, hoursAhead int) ([]model.BecknSlot, error)
	ConfirmSlot(ctx context.Context, slotID, jobID string) (model.Job, error)
}

// Server mounts the HTTP API over the engine components.
type Server struct {
	reg      *registry.Registry
	sched    Scheduling
	mkt      Slots
	signals  SignalReader
	comparer RegionComparer
	auditor  audit.Store
	token    string
	log      logger.Logger
}

func NewServer(reg *registry.Registry, sched Scheduling, mkt Slots,
	signals SignalReader, comparer RegionComparer, auditor audit.Store,
	token string, log logger.Logger) *Server {
	return &Server{
		reg:      reg,
		sched:    sched,
		mkt:      mkt,
		signals:  signals,
		comparer: comparer,
		auditor:  auditor,
		token:    token,
		log:      log,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("POST /api/assets", s.handleRegisterAsset)
	mux.HandleFunc("GET /api/assets", s.handleListAssets)
	mux.HandleFunc("GET /api/assets/{id}", s.handleGetAsset)

	mux.HandleFunc("POST /api/jobs", s.handleSubmitJob)
	mux.HandleFunc("GET /api/jobs", s.handleListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", s.handleGetJob)
	mux.HandleFunc("DELETE /api/jobs/{id}", s.handleDeleteJob)
	mux.HandleFunc("POST /api/jobs/{id}/status", s.handleUpdateStatus)
	mux.HandleFunc("POST /api/jobs/{id}/schedule", s.handleScheduleJob)
	mux.HandleFunc("POST /api/schedule", s.handleScheduleAll)

	mux.HandleFunc("GET /api/signals/{region}", s.handleCurrentSignal)
	mux.HandleFunc("GET /api/signals/{region}/forecast", s.handleForecast)
	mux.HandleFunc("GET /api/regions/compare", s.handleCompareRegions)

	mux.HandleFunc("POST /api/beckn/search", s.handleBecknSearch)
	mux.HandleFunc("POST /api/beckn/confirm", s.handleBecknConfirm)

	mux.HandleFunc("GET /api/jobs/{id}/logs", s.handleJobLogs)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/stats/flexibility", s.handleFlexibility)
	mux.HandleFunc("GET /api/audit/logs", s.handleAuditLogs)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.log.Errorf("request failed: %v", err)
		monitoring.CaptureError(err, "api")
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	var ve *model.ValidationError
	var nf *model.NotFoundError
	var ise *model.InvalidStateError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &nf):
		return http.StatusNotFound
	case errors.As(err, &ise):
		return http.StatusConflict
	case errors.Is(err, marketplace.ErrSlotExpired):
		return http.StatusGone
	case errors.Is(err, marketplace.ErrSlotInfeasible):
		return http.StatusConflict
	case errors.Is(err, scheduler.ErrNoFeasibleWindow):
		return http.StatusUnprocessableEntity
	case errors.Is(err, signal.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return model.NewValidationError("invalid request body: %v", err)
	}
	return nil
}

func parseRegionParam(s string) (model.Region, error) {
	if s == "" {
		return "", nil
	}
	return model.ParseRegion(s)
}
