package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kdesai/coresim/pkg/job"
)

const epsilon = 1e-6

func mustNew(t *testing.T, cores int, scheme job.Scheme, quantum int64) *Engine {
	t.Helper()
	e, err := New(cores, scheme, quantum)
	require.NoError(t, err)
	return e
}

// Scenario 1 from SPEC_FULL.md: FCFS, 1 core, three jobs queued behind
// one another.
func TestEngine_FCFSSingleCore(t *testing.T) {
	e := mustNew(t, 1, job.FCFS, 0)

	core, err := e.NewJob("1", 0, 4, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, core)

	core, err = e.NewJob("2", 1, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, -1, core)

	core, err = e.NewJob("3", 2, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, -1, core)

	next, err := e.JobFinished(0, "1", 4)
	require.NoError(t, err)
	assert.Equal(t, "2", next)

	next, err = e.JobFinished(0, "2", 7)
	require.NoError(t, err)
	assert.Equal(t, "3", next)

	next, err = e.JobFinished(0, "3", 9)
	require.NoError(t, err)
	assert.Equal(t, "", next)

	waiting, ok := e.AverageWaitingTime()
	require.True(t, ok)
	assert.InDelta(t, 2.667, waiting, 1e-3)

	turnaround, ok := e.AverageTurnaroundTime()
	require.True(t, ok)
	assert.InDelta(t, 5.667, turnaround, 1e-3)

	response, ok := e.AverageResponseTime()
	require.True(t, ok)
	assert.InDelta(t, 2.667, response, 1e-3)

	assert.True(t, e.AllCompleted())
}

// Scenario 2: SJF, 1 core, same inputs as scenario 1. Shortest remaining
// job is picked first among those waiting.
func TestEngine_SJFSingleCore(t *testing.T) {
	e := mustNew(t, 1, job.SJF, 0)

	_, err := e.NewJob("1", 0, 4, 0)
	require.NoError(t, err)
	_, err = e.NewJob("2", 1, 3, 0)
	require.NoError(t, err)
	_, err = e.NewJob("3", 2, 2, 0)
	require.NoError(t, err)

	next, err := e.JobFinished(0, "1", 4)
	require.NoError(t, err)
	assert.Equal(t, "3", next, "shorter job 3 (run 2) picked over job 2 (run 3)")

	next, err = e.JobFinished(0, "3", 6)
	require.NoError(t, err)
	assert.Equal(t, "2", next)

	_, err = e.JobFinished(0, "2", 9)
	require.NoError(t, err)

	turnaround, ok := e.AverageTurnaroundTime()
	require.True(t, ok)
	assert.InDelta(t, 5.333, turnaround, 1e-3)
}

// Scenario 3: PSJF, 1 core. A shorter job preempts a longer-remaining
// running job.
func TestEngine_PSJFPreempts(t *testing.T) {
	e := mustNew(t, 1, job.PSJF, 0)

	core, err := e.NewJob("1", 0, 6, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, core)

	core, err = e.NewJob("2", 2, 2, 0)
	require.NoError(t, err)
	require.Equal(t, 0, core, "job 2 (remaining 2) preempts job 1 (remaining 4)")

	next, err := e.JobFinished(0, "2", 4)
	require.NoError(t, err)
	assert.Equal(t, "1", next)

	_, err = e.JobFinished(0, "1", 8)
	require.NoError(t, err)

	response, ok := e.AverageResponseTime()
	require.True(t, ok)
	assert.InDelta(t, 0, response, epsilon)

	waiting, ok := e.AverageWaitingTime()
	require.True(t, ok)
	assert.InDelta(t, 1, waiting, epsilon)

	turnaround, ok := e.AverageTurnaroundTime()
	require.True(t, ok)
	assert.InDelta(t, 5, turnaround, epsilon)
}

// Scenario 4: RR, 1 core, quantum 2. Quantum expiries alternate the two
// jobs through the core.
func TestEngine_RoundRobinAlternates(t *testing.T) {
	e := mustNew(t, 1, job.RR, 2)

	_, err := e.NewJob("1", 0, 5, 0)
	require.NoError(t, err)
	_, err = e.NewJob("2", 1, 3, 0)
	require.NoError(t, err)

	next, err := e.QuantumExpired(0, 2)
	require.NoError(t, err)
	assert.Equal(t, "2", next)

	next, err = e.QuantumExpired(0, 4)
	require.NoError(t, err)
	assert.Equal(t, "1", next)

	next, err = e.QuantumExpired(0, 6)
	require.NoError(t, err)
	assert.Equal(t, "2", next)

	next, err = e.JobFinished(0, "2", 7)
	require.NoError(t, err)
	assert.Equal(t, "1", next)

	_, err = e.JobFinished(0, "1", 8)
	require.NoError(t, err)

	response, ok := e.AverageResponseTime()
	require.True(t, ok)
	assert.InDelta(t, 0.5, response, 1e-3)
}

// QuantumExpired is a scheme error outside RR.
func TestEngine_QuantumExpiredRejectsNonRR(t *testing.T) {
	e := mustNew(t, 1, job.FCFS, 0)
	_, err := e.QuantumExpired(0, 5)
	assert.ErrorIs(t, err, ErrSchemeMismatch)
}

// Scenario 5: PPRI, 2 cores. A strictly more urgent arrival evicts a
// running job even though both running jobs share the same priority.
func TestEngine_PPRIEvictsLowerPriority(t *testing.T) {
	e := mustNew(t, 2, job.PPRI, 0)

	core1, err := e.NewJob("1", 0, 5, 2)
	require.NoError(t, err)
	core2, err := e.NewJob("2", 0, 5, 2)
	require.NoError(t, err)
	require.NotEqual(t, core1, core2)

	evictedCore, err := e.NewJob("3", 1, 5, 0)
	require.NoError(t, err)
	require.NotEqual(t, -1, evictedCore)

	response, ok := e.AverageResponseTime()
	assert.False(t, ok, "no job has finished yet")
	_ = response

	next, err := e.JobFinished(evictedCore, "3", 6)
	require.NoError(t, err)
	assert.NotEqual(t, "", next, "the evicted job should have resumed")
}

// Scenario 6: PSJF does not preempt on a tie - a remaining time equal to
// the arriving job's run time is not "strictly shorter".
func TestEngine_PSJFTieDoesNotPreempt(t *testing.T) {
	e := mustNew(t, 1, job.PSJF, 0)

	core, err := e.NewJob("1", 0, 3, 0)
	require.NoError(t, err)
	require.Equal(t, 0, core)

	// At t=1 job 1 has 3-1=2 remaining, equal to job 2's run time of 2.
	core, err = e.NewJob("2", 1, 2, 0)
	require.NoError(t, err)
	require.Equal(t, -1, core, "equal remaining time must not preempt")

	next, err := e.JobFinished(0, "1", 3)
	require.NoError(t, err)
	assert.Equal(t, "2", next)

	_, err = e.JobFinished(0, "2", 5)
	require.NoError(t, err)

	response, ok := e.AverageResponseTime()
	require.True(t, ok)
	assert.InDelta(t, 1.0, response, epsilon, "(0+2)/2")
}

func TestEngine_DuplicateJobIDRejected(t *testing.T) {
	e := mustNew(t, 1, job.FCFS, 0)
	_, err := e.NewJob("1", 0, 1, 0)
	require.NoError(t, err)
	_, err = e.NewJob("1", 1, 1, 0)
	assert.ErrorIs(t, err, ErrDuplicateJob)
}

func TestEngine_JobFinishedRejectsWrongCore(t *testing.T) {
	e := mustNew(t, 2, job.FCFS, 0)
	_, err := e.NewJob("1", 0, 1, 0)
	require.NoError(t, err)

	_, err = e.JobFinished(1, "1", 1)
	assert.ErrorIs(t, err, ErrCoreMismatch)
}

func TestEngine_JobFinishedRejectsUnknownJob(t *testing.T) {
	e := mustNew(t, 1, job.FCFS, 0)
	_, err := e.JobFinished(0, "ghost", 1)
	assert.ErrorIs(t, err, ErrUnknownJob)
}

func TestEngine_CoreOutOfRange(t *testing.T) {
	e := mustNew(t, 1, job.FCFS, 0)
	_, err := e.JobFinished(5, "1", 1)
	assert.ErrorIs(t, err, ErrCoreOutOfRange)
}

func TestEngine_AveragesUndefinedBeforeCompletion(t *testing.T) {
	e := mustNew(t, 1, job.FCFS, 0)
	_, ok := e.AverageWaitingTime()
	assert.False(t, ok)

	_, err := e.NewJob("1", 0, 4, 0)
	require.NoError(t, err)
	_, ok = e.AverageWaitingTime()
	assert.False(t, ok, "job 1 hasn't finished yet")
}

func TestEngine_ShowQueueRendersWaitingJobs(t *testing.T) {
	e := mustNew(t, 1, job.FCFS, 0)
	_, err := e.NewJob("1", 0, 4, 0)
	require.NoError(t, err)
	_, err = e.NewJob("2", 1, 3, 0)
	require.NoError(t, err)

	assert.Equal(t, "1(0) 2(-1)", e.ShowQueue(), "the running job is reported alongside the waiting one, with its real core index")
}

// PSJF must advance a running job's remaining time by the elapsed
// virtual time on every arrival, not just at the moment it is dispatched
// - otherwise a second arrival compares against a stale value.
func TestEngine_PSJFUsesTrueRemainingTimeAcrossMultipleArrivals(t *testing.T) {
	e := mustNew(t, 1, job.PSJF, 0)

	core, err := e.NewJob("1", 0, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 0, core)

	// Job 1's true remaining time at t=3 is 10-3=7. Job 2's running
	// time of 8 is not strictly less than 7, so job 2 must wait rather
	// than preempt - a stale remaining_run_time of 10 would wrongly
	// let 8 < 10 trigger an eviction.
	core, err = e.NewJob("2", 3, 8, 0)
	require.NoError(t, err)
	assert.Equal(t, -1, core, "job 1's true remaining time (7) beats job 2's run time (8)")

	// A third arrival whose run time genuinely beats job 1's true
	// remaining time (7-2=5 by t=5) does preempt.
	core, err = e.NewJob("3", 5, 4, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, core, "job 1's true remaining time (5) is beaten by job 3's run time (4)")
}

func TestEngine_BijectionNoCoreDoubleAssigned(t *testing.T) {
	e := mustNew(t, 2, job.PPRI, 0)
	_, err := e.NewJob("1", 0, 5, 5)
	require.NoError(t, err)
	_, err = e.NewJob("2", 0, 5, 5)
	require.NoError(t, err)
	_, err = e.NewJob("3", 1, 5, 0)
	require.NoError(t, err)

	seen := map[int]bool{}
	for _, j := range e.jobs {
		if j.AssignedCore == -1 {
			continue
		}
		require.False(t, seen[j.AssignedCore], "core %d claimed twice", j.AssignedCore)
		seen[j.AssignedCore] = true
	}
}
