// ============================================================================
// HTTP Driver
// ============================================================================
//
// Package: internal/httpapi
// Purpose: Expose the scheduling engine's external interface over HTTP, so
// a non-Go host can drive a simulation.
//
// Grounded on jontk-slurm-client's tests/mocks/server.go, the one example
// in the retrieved pack that wires up gorilla/mux: a versioned
// PathPrefix subrouter, route registration via
// HandleFunc(...).Methods(...). Request/response bodies follow the
// external interface from SPEC_FULL.md §9 (one route per engine
// operation, a JSON body for the event's payload, a JSON body for the
// core assignment it produced).
//
// The engine itself does no locking (see SPEC_FULL.md §9's rationale),
// so every handler here takes a mutex before touching it - the HTTP
// goroutine pool is exactly the concurrency the engine's own contract
// assumes away, and it has to be reintroduced somewhere.
//
// ============================================================================

// Package httpapi serves the scheduling engine over a small JSON/HTTP
// contract.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"

	"github.com/kdesai/coresim/internal/engine"
	"github.com/kdesai/coresim/internal/journal"
	"github.com/kdesai/coresim/internal/metrics"
)

// Server wraps an *engine.Engine with the locking and wire format needed
// to drive it over HTTP.
type Server struct {
	mu      sync.Mutex
	engine  *engine.Engine
	journal *journal.Journal // optional, may be nil
	metrics *metrics.Collector // optional, may be nil
}

// New constructs a Server around eng. j and m are optional and may be
// nil.
func New(eng *engine.Engine, j *journal.Journal, m *metrics.Collector) *Server {
	return &Server{engine: eng, journal: j, metrics: m}
}

// Router builds the mux.Router exposing this server's routes under
// /v1.
func (s *Server) Router() *mux.Router {
	root := mux.NewRouter().StrictSlash(true)
	api := root.PathPrefix("/v1").Subrouter()

	api.HandleFunc("/jobs", s.handleNewJob).Methods(http.MethodPost)
	api.HandleFunc("/cores/{core_id}/finish", s.handleJobFinished).Methods(http.MethodPost)
	api.HandleFunc("/cores/{core_id}/quantum", s.handleQuantumExpired).Methods(http.MethodPost)
	api.HandleFunc("/metrics", s.handleMetricsSummary).Methods(http.MethodGet)
	api.HandleFunc("/queue", s.handleShowQueue).Methods(http.MethodGet)

	return root
}

type newJobRequest struct {
	JobID       string `json:"job_id"`
	Time        int64  `json:"t"`
	RunningTime int64  `json:"running_time"`
	Priority    int    `json:"priority"`
}

type coreAssignmentResponse struct {
	CoreIndex *int    `json:"core_index,omitempty"`
	JobID     *string `json:"job_id,omitempty"`
}

func (s *Server) handleNewJob(w http.ResponseWriter, r *http.Request) {
	var req newJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	core, err := s.engine.NewJob(req.JobID, req.Time, req.RunningTime, req.Priority)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.RecordArrival(s.engine.Scheme())
	}
	if s.journal != nil {
		_ = s.journal.AppendArrival(req.JobID, req.Time, req.RunningTime, req.Priority)
		_ = s.journal.Append(journal.EventDecision, req.JobID, core, req.Time)
	}

	resp := coreAssignmentResponse{}
	if core != -1 {
		resp.CoreIndex = &core
	}
	writeJSON(w, http.StatusOK, resp)
}

type eventAtTimeRequest struct {
	JobID string `json:"job_id"`
	Time  int64  `json:"t"`
}

func (s *Server) handleJobFinished(w http.ResponseWriter, r *http.Request) {
	coreID, err := coreIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req eventAtTimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.engine.JobFinished(coreID, req.JobID, req.Time)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.RecordCompletion(s.engine.Scheme())
	}
	if s.journal != nil {
		_ = s.journal.Append(journal.EventCompletion, req.JobID, coreID, req.Time)
		if next != "" {
			_ = s.journal.Append(journal.EventDecision, next, coreID, req.Time)
		}
	}

	resp := coreAssignmentResponse{}
	if next != "" {
		resp.JobID = &next
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQuantumExpired(w http.ResponseWriter, r *http.Request) {
	coreID, err := coreIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req struct {
		Time int64 `json:"t"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.engine.QuantumExpired(coreID, req.Time)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.RecordQuantumExpiry(s.engine.Scheme())
	}
	if s.journal != nil {
		_ = s.journal.Append(journal.EventQuantumExpiry, "", coreID, req.Time)
	}

	resp := coreAssignmentResponse{}
	if next != "" {
		resp.JobID = &next
	}
	writeJSON(w, http.StatusOK, resp)
}

type metricsSummaryResponse struct {
	AverageWaitingTime    float64 `json:"average_waiting_time"`
	AverageTurnaroundTime float64 `json:"average_turnaround_time"`
	AverageResponseTime   float64 `json:"average_response_time"`
}

func (s *Server) handleMetricsSummary(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.engine.AllCompleted() {
		writeError(w, http.StatusConflict, errors.New("httpapi: not all jobs have completed yet"))
		return
	}

	waiting, _ := s.engine.AverageWaitingTime()
	turnaround, _ := s.engine.AverageTurnaroundTime()
	response, _ := s.engine.AverageResponseTime()

	writeJSON(w, http.StatusOK, metricsSummaryResponse{
		AverageWaitingTime:    waiting,
		AverageTurnaroundTime: turnaround,
		AverageResponseTime:   response,
	})
}

func (s *Server) handleShowQueue(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"queue": s.engine.ShowQueue()})
}

func coreIDFromPath(r *http.Request) (int, error) {
	raw := mux.Vars(r)["core_id"]
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("httpapi: core_id must be an integer")
	}
	return id, nil
}

func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrCoreOutOfRange), errors.Is(err, engine.ErrCoreMismatch),
		errors.Is(err, engine.ErrDuplicateJob), errors.Is(err, engine.ErrSchemeMismatch):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, engine.ErrUnknownJob):
		writeError(w, http.StatusNotFound, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
