// ============================================================================
// Scheduling Engine
// ============================================================================
//
// Package: internal/engine
// Purpose: Drives a fixed number of cores through arrival, dispatch,
// preemption and completion decisions for one of six scheduling
// disciplines, and tracks the three timing metrics the host queries once a
// run is complete.
//
// Grounded on _examples/original_source/scheduler/src/libscheduler -
// the outer call sequence (start_up, then any interleaving of new_job,
// job_finished, quantum_expired, then the average_* queries and clean_up)
// is unchanged, as is the accounting for waiting/turnaround/response time
// and the preemption rollback rule. Three defects present in that source
// are deliberately not reproduced:
//
//   - comparators that ignored their arguments and returned a constant,
//     breaking FCFS/SJF/PRI ordering on ties (see scheme.go);
//   - job_finished scanning the waiting store with an index that was
//     never reset between calls, occasionally skipping the first
//     candidate; Engine.JobFinished uses Store.Poll, so there is no
//     index to forget to reset;
//   - a core being reassigned to a new job without first clearing its
//     previous occupant's AssignedCore, which could leave two jobs
//     claiming the same core. preempt here always clears the victim
//     before the core is handed to anyone else.
//
// Engine is an owned value, never package-level state: every run gets its
// own Engine, which is what makes it safe to exercise several schemes
// against the same trace concurrently from independent goroutines, each
// with its own Engine, or from internal/httpapi's handlers (which add
// their own mutex around an *Engine, since the engine itself does no
// locking - see SPEC_FULL.md §9).
//
// ============================================================================

// Package engine implements the scheduling engine: the part of the
// simulator that decides, at each event, which job runs on which core.
package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kdesai/coresim/internal/store"
	"github.com/kdesai/coresim/pkg/job"
)

var (
	// ErrCoreOutOfRange is returned when a caller names a core index
	// outside [0, numCores).
	ErrCoreOutOfRange = errors.New("engine: core index out of range")
	// ErrUnknownJob is returned when a caller names a job ID the engine
	// has no record of.
	ErrUnknownJob = errors.New("engine: unknown job id")
	// ErrCoreMismatch is returned when a job finishes on a core other
	// than the one it was last dispatched to.
	ErrCoreMismatch = errors.New("engine: job is not assigned to that core")
	// ErrSchemeMismatch is returned when QuantumExpired is called on an
	// engine not running the round-robin scheme.
	ErrSchemeMismatch = errors.New("engine: quantum expiry is only meaningful for RR")
	// ErrDuplicateJob is returned when NewJob is called twice with the
	// same job ID.
	ErrDuplicateJob = errors.New("engine: job id already submitted")
)

// Engine holds the full state of one simulation run: core occupancy, the
// waiting store, every job ever submitted, and the running accumulators
// behind the three average_* queries.
type Engine struct {
	numCores int
	scheme   job.Scheme
	quantum  int64

	cores   []*job.Job
	waiting *store.Store
	jobs    map[string]*job.Job

	// lastTick is the virtual time of the previous PSJF preemption
	// decision (or PSJF dispatch). Meaningless for any other scheme.
	lastTick int64

	numJobsEver    int
	completedCount int
	sumWaiting     int64
	sumTurnaround  int64
	sumResponse    int64
}

// New performs start_up: allocates numCores cores and an empty waiting
// store ordered for scheme. quantum is only consulted by callers driving
// RR; it is accepted here regardless of scheme so config loading doesn't
// need to special-case non-RR runs. A zero quantum is normalized to 1.
func New(numCores int, scheme job.Scheme, quantum int64) (*Engine, error) {
	if numCores <= 0 {
		return nil, fmt.Errorf("engine: numCores must be positive, got %d", numCores)
	}
	if quantum <= 0 {
		quantum = 1
	}
	return &Engine{
		numCores: numCores,
		scheme:   scheme,
		quantum:  quantum,
		cores:    make([]*job.Job, numCores),
		waiting:  store.New(comparatorFor(scheme)),
		jobs:     make(map[string]*job.Job),
	}, nil
}

// NumCores returns the number of cores the engine was started with.
func (e *Engine) NumCores() int { return e.numCores }

// Scheme returns the scheduling discipline this engine runs.
func (e *Engine) Scheme() job.Scheme { return e.scheme }

// Quantum returns the round-robin time slice, meaningful only when
// Scheme() is RR.
func (e *Engine) Quantum() int64 { return e.quantum }

// NewJob implements the new_job event: a job arrives at time t. It
// returns the index of the core the job was placed on, or -1 if the job
// had to wait; the error is ErrDuplicateJob for a reused job ID.
func (e *Engine) NewJob(id string, t, runningTime int64, priority int) (int, error) {
	if _, exists := e.jobs[id]; exists {
		return -1, ErrDuplicateJob
	}
	j := job.New(id, t, runningTime, priority)
	e.jobs[id] = j
	e.numJobsEver++

	if idx := e.firstIdleCore(); idx != -1 {
		e.dispatch(j, idx, t)
		if e.scheme == job.PSJF {
			e.lastTick = t
		}
		return idx, nil
	}

	if e.scheme.Preemptive() {
		if e.scheme == job.PSJF {
			e.advancePSJFRemaining(t)
		}
		idx, ok := e.findPreemptionVictim(j)
		if e.scheme == job.PSJF {
			e.lastTick = t
		}
		if ok {
			e.preempt(idx, t)
			e.dispatch(j, idx, t)
			return idx, nil
		}
	}

	e.waiting.Offer(j)
	return -1, nil
}

// advancePSJFRemaining brings every running job's remaining_run_time up
// to date as of t, mirroring the original's "update run times" sweep
// ahead of a PSJF preemption decision. A job whose start_time == t was
// just dispatched this same instant and has not yet executed, so it is
// left untouched.
func (e *Engine) advancePSJFRemaining(t int64) {
	elapsed := t - e.lastTick
	for _, occupant := range e.cores {
		if occupant == nil || occupant.StartTime == t {
			continue
		}
		occupant.RemainingRunTime -= elapsed
	}
}

// JobFinished implements the job_finished event: the job running on
// coreID completes at time t. It records the job's waiting, turnaround
// and response time, frees the core, and if another job is waiting,
// dispatches it immediately. It returns the ID of the job dispatched to
// the now-freed core, or "" if the core went idle.
func (e *Engine) JobFinished(coreID int, jobID string, t int64) (string, error) {
	if coreID < 0 || coreID >= e.numCores {
		return "", ErrCoreOutOfRange
	}
	j, ok := e.jobs[jobID]
	if !ok {
		return "", ErrUnknownJob
	}
	if j.AssignedCore != coreID {
		return "", ErrCoreMismatch
	}

	e.sumWaiting += j.WaitingTime(t)
	e.sumTurnaround += j.TurnaroundTime(t)
	e.sumResponse += j.ResponseTime()
	e.completedCount++

	j.RemainingRunTime = 0
	j.AssignedCore = -1
	j.StartTime = -1
	e.cores[coreID] = nil

	next := e.waiting.Poll()
	if next == nil {
		return "", nil
	}
	e.dispatch(next, coreID, t)
	return next.ID, nil
}

// QuantumExpired implements the quantum_expired event, valid only under
// RR: the job running on coreID has used its time slice without
// finishing. It goes to the back of the waiting store and the next
// waiting job, if any, takes the core. It returns the ID of the job now
// running on coreID, or "" if the core is idle afterward.
func (e *Engine) QuantumExpired(coreID int, t int64) (string, error) {
	if e.scheme != job.RR {
		return "", ErrSchemeMismatch
	}
	if coreID < 0 || coreID >= e.numCores {
		return "", ErrCoreOutOfRange
	}

	current := e.cores[coreID]
	if current != nil {
		current.RemainingRunTime -= t - current.StartTime
		current.AssignedCore = -1
		current.StartTime = -1
		e.cores[coreID] = nil
		e.waiting.Offer(current)
	}

	next := e.waiting.Poll()
	if next == nil {
		return "", nil
	}
	e.dispatch(next, coreID, t)
	return next.ID, nil
}

// AverageWaitingTime reports the mean waiting time across every submitted
// job. ok is false until at least one job was submitted and every
// submitted job has completed, per the convention that an undefined
// average is reported as "not yet available" rather than as a fabricated
// zero.
func (e *Engine) AverageWaitingTime() (avg float64, ok bool) {
	return e.average(e.sumWaiting)
}

// AverageTurnaroundTime reports the mean turnaround time across every
// submitted job. See AverageWaitingTime for the ok convention.
func (e *Engine) AverageTurnaroundTime() (avg float64, ok bool) {
	return e.average(e.sumTurnaround)
}

// AverageResponseTime reports the mean response time across every
// submitted job. See AverageWaitingTime for the ok convention.
func (e *Engine) AverageResponseTime() (avg float64, ok bool) {
	return e.average(e.sumResponse)
}

func (e *Engine) average(sum int64) (float64, bool) {
	if !e.AllCompleted() {
		return 0, false
	}
	return float64(sum) / float64(e.completedCount), true
}

// AllCompleted reports whether every job submitted so far has finished -
// the precondition under which the average_* queries report a value.
func (e *Engine) AllCompleted() bool {
	return e.numJobsEver > 0 && e.completedCount == e.numJobsEver
}

// State is a serializable snapshot of an engine's progress: enough to
// resume a run without replaying every event that produced it. Fields
// mirror Engine's own so (De)Serialize is a straight field copy; kept as
// a distinct exported type because pkg/job.Job's pointer fields aren't
// themselves meant to be part of a public wire contract.
type State struct {
	SchemaVer int `json:"schema_ver"`

	NumCores int        `json:"num_cores"`
	Scheme   job.Scheme `json:"scheme"`
	Quantum  int64      `json:"quantum"`

	// LastTick is the virtual time of the previous PSJF preemption
	// decision; meaningless for any other scheme.
	LastTick int64 `json:"last_tick"`

	// CoreJobIDs[i] is the ID of the job running on core i, or "" if idle.
	CoreJobIDs []string `json:"core_job_ids"`
	// Waiting lists the jobs currently in the waiting store, in store
	// order.
	Waiting []*job.Job `json:"waiting"`
	// Jobs holds every job ever submitted, keyed by ID, including the
	// ones referenced by CoreJobIDs and Waiting.
	Jobs map[string]*job.Job `json:"jobs"`

	NumJobsEver    int   `json:"num_jobs_ever"`
	CompletedCount int   `json:"completed_count"`
	SumWaiting     int64 `json:"sum_waiting"`
	SumTurnaround  int64 `json:"sum_turnaround"`
	SumResponse    int64 `json:"sum_response"`
}

// CurrentSchemaVersion is the State.SchemaVer this package reads and
// writes. Bump it, and reject older values at Restore, if a future
// change alters State's meaning rather than just adding fields.
const CurrentSchemaVersion = 1

// Snapshot captures the engine's full state for later restoration.
func (e *Engine) Snapshot() State {
	coreJobIDs := make([]string, e.numCores)
	for i, j := range e.cores {
		if j != nil {
			coreJobIDs[i] = j.ID
		}
	}

	waiting := make([]*job.Job, e.waiting.Size())
	for i := range waiting {
		waiting[i] = e.waiting.At(i)
	}

	jobs := make(map[string]*job.Job, len(e.jobs))
	for id, j := range e.jobs {
		jobs[id] = j
	}

	return State{
		SchemaVer:      CurrentSchemaVersion,
		NumCores:       e.numCores,
		Scheme:         e.scheme,
		Quantum:        e.quantum,
		LastTick:       e.lastTick,
		CoreJobIDs:     coreJobIDs,
		Waiting:        waiting,
		Jobs:           jobs,
		NumJobsEver:    e.numJobsEver,
		CompletedCount: e.completedCount,
		SumWaiting:     e.sumWaiting,
		SumTurnaround:  e.sumTurnaround,
		SumResponse:    e.sumResponse,
	}
}

// Restore rebuilds an Engine from a previously captured State.
func Restore(s State) (*Engine, error) {
	if s.SchemaVer != CurrentSchemaVersion {
		return nil, fmt.Errorf("engine: unsupported snapshot schema version %d", s.SchemaVer)
	}
	e, err := New(s.NumCores, s.Scheme, s.Quantum)
	if err != nil {
		return nil, err
	}
	e.lastTick = s.LastTick

	e.jobs = make(map[string]*job.Job, len(s.Jobs))
	for id, j := range s.Jobs {
		e.jobs[id] = j
	}
	for i, id := range s.CoreJobIDs {
		if id == "" {
			continue
		}
		j, ok := e.jobs[id]
		if !ok {
			return nil, fmt.Errorf("engine: core %d references unknown job %q", i, id)
		}
		e.cores[i] = j
	}
	for _, j := range s.Waiting {
		existing, ok := e.jobs[j.ID]
		if !ok {
			return nil, fmt.Errorf("engine: waiting store references unknown job %q", j.ID)
		}
		e.waiting.Offer(existing)
	}

	e.numJobsEver = s.NumJobsEver
	e.completedCount = s.CompletedCount
	e.sumWaiting = s.SumWaiting
	e.sumTurnaround = s.SumTurnaround
	e.sumResponse = s.SumResponse
	return e, nil
}

// CleanUp implements clean_up. The engine itself owns no external
// resources, so this only exists to give hosts a single, scheme-agnostic
// shutdown call to make regardless of what they've wired the engine to
// (journal, metrics, ...); it is safe to call more than once.
func (e *Engine) CleanUp() {}

// ShowQueue renders every job the engine is tracking - running or
// waiting - as "job_id(core_id) ...", the debug format from
// _examples/original_source's scheduler_show_queue (see its worked
// example "2(-1) 4(0) 1(-1)", a mix of waiting and running jobs in one
// ordered listing). Running jobs are kept out of the store itself (see
// Snapshot/dispatch), so this merges e.cores back in under the active
// comparator rather than reporting only the waiting jobs.
func (e *Engine) ShowQueue() string {
	cmp := e.waiting.Comparator()

	all := make([]*job.Job, 0, e.waiting.Size()+e.numCores)
	for i := 0; i < e.waiting.Size(); i++ {
		all = append(all, e.waiting.At(i))
	}
	for _, occupant := range e.cores {
		if occupant != nil {
			all = append(all, occupant)
		}
	}
	sort.SliceStable(all, func(i, k int) bool { return cmp(all[i], all[k]) < 0 })

	var b strings.Builder
	for i, j := range all {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s(%d)", j.ID, j.AssignedCore)
	}
	return b.String()
}

func (e *Engine) firstIdleCore() int {
	for i, occupant := range e.cores {
		if occupant == nil {
			return i
		}
	}
	return -1
}

func (e *Engine) dispatch(j *job.Job, coreID int, t int64) {
	j.AssignedCore = coreID
	j.StartTime = t
	if !j.HasStarted() {
		j.FirstStartTime = t
	}
	e.cores[coreID] = j
}

// findPreemptionVictim finds the running job, if any, that j should
// evict under the engine's comparator: the busiest (worst-ranked) job
// currently running, provided j itself ranks ahead of it.
func (e *Engine) findPreemptionVictim(j *job.Job) (int, bool) {
	cmp := e.waiting.Comparator()
	worst := -1
	for i, occupant := range e.cores {
		if occupant == nil {
			continue
		}
		if worst == -1 || cmp(e.cores[worst], occupant) < 0 {
			worst = i
		}
	}
	if worst == -1 {
		return -1, false
	}
	if cmp(j, e.cores[worst]) < 0 {
		return worst, true
	}
	return -1, false
}

// preempt evicts the job running on coreID back into the waiting store,
// clearing its core assignment first so the core is never claimed by two
// jobs at once.
func (e *Engine) preempt(coreID int, t int64) {
	victim := e.cores[coreID]

	// Under PSJF, advancePSJFRemaining has already brought every running
	// job's remaining_run_time - including this one - up to date as of
	// t. PPRI has no such sweep (its comparator never reads
	// remaining_run_time), so the victim's elapsed execution is still
	// unaccounted for and must be subtracted here.
	if e.scheme != job.PSJF {
		victim.RemainingRunTime -= t - victim.StartTime
	}

	// If the victim was first dispatched at this exact timestamp it never
	// actually ran; undo the response-time credit it was given on
	// dispatch so a later re-dispatch counts as its true first start.
	if victim.FirstStartTime == t {
		victim.FirstStartTime = -1
	}

	victim.AssignedCore = -1
	victim.StartTime = -1
	e.cores[coreID] = nil
	e.waiting.Offer(victim)
}
