package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kdesai/coresim/internal/engine"
	"github.com/kdesai/coresim/pkg/job"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	eng, err := engine.New(1, job.FCFS, 0)
	require.NoError(t, err)
	return New(eng, nil, nil)
}

func TestHTTPAPI_NewJobAssignsIdleCore(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()

	body, _ := json.Marshal(newJobRequest{JobID: "1", Time: 0, RunningTime: 4, Priority: 0})
	req := httptest.NewRequest("POST", "/v1/jobs", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	var resp coreAssignmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.CoreIndex)
	assert.Equal(t, 0, *resp.CoreIndex)
}

func TestHTTPAPI_JobFinishedDispatchesNext(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()

	for _, j := range []newJobRequest{
		{JobID: "1", Time: 0, RunningTime: 4, Priority: 0},
		{JobID: "2", Time: 1, RunningTime: 3, Priority: 0},
	} {
		body, _ := json.Marshal(j)
		req := httptest.NewRequest("POST", "/v1/jobs", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, 200, rec.Code)
	}

	body, _ := json.Marshal(eventAtTimeRequest{JobID: "1", Time: 4})
	req := httptest.NewRequest("POST", "/v1/cores/0/finish", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	var resp coreAssignmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.JobID)
	assert.Equal(t, "2", *resp.JobID)
}

func TestHTTPAPI_MetricsConflictBeforeAllJobsComplete(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()

	body, _ := json.Marshal(newJobRequest{JobID: "1", Time: 0, RunningTime: 4, Priority: 0})
	req := httptest.NewRequest("POST", "/v1/jobs", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)

	req = httptest.NewRequest("GET", "/v1/metrics", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, 409, rec.Code)
}

func TestHTTPAPI_MetricsAvailableAfterCompletion(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()

	body, _ := json.Marshal(newJobRequest{JobID: "1", Time: 0, RunningTime: 4, Priority: 0})
	req := httptest.NewRequest("POST", "/v1/jobs", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)

	finBody, _ := json.Marshal(eventAtTimeRequest{JobID: "1", Time: 4})
	req = httptest.NewRequest("POST", "/v1/cores/0/finish", bytes.NewReader(finBody))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)

	req = httptest.NewRequest("GET", "/v1/metrics", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)

	var resp metricsSummaryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 0.0, resp.AverageWaitingTime)
	assert.Equal(t, 4.0, resp.AverageTurnaroundTime)
}

func TestHTTPAPI_UnknownJobFinishReturnsNotFound(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()

	body, _ := json.Marshal(eventAtTimeRequest{JobID: "ghost", Time: 1})
	req := httptest.NewRequest("POST", "/v1/cores/0/finish", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, 404, rec.Code)
}

func TestHTTPAPI_QuantumExpiredRejectedForNonRR(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()

	body, _ := json.Marshal(struct {
		Time int64 `json:"t"`
	}{Time: 2})
	req := httptest.NewRequest("POST", "/v1/cores/0/quantum", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, 400, rec.Code)
}

func TestHTTPAPI_ShowQueue(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()

	for _, j := range []newJobRequest{
		{JobID: "1", Time: 0, RunningTime: 4, Priority: 0},
		{JobID: "2", Time: 1, RunningTime: 3, Priority: 0},
	} {
		body, _ := json.Marshal(j)
		req := httptest.NewRequest("POST", "/v1/jobs", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
	}

	req := httptest.NewRequest("GET", "/v1/queue", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "2(-1)")
}
