// ============================================================================
// coresim Core Type Definitions
// ============================================================================
//
// Package: pkg/job
// Purpose: Core domain models shared between the ordered job store and the
// scheduling engine.
//
// Design Principles:
//   1. Domain-Driven Design - scheduling concepts as types, not bare ints
//   2. Value semantics at the boundary, pointer semantics inside the store -
//      the store and engine pass *Job so that identity-based removal (see
//      internal/store) is well defined
//   3. JSON serialization support for journaling and snapshotting
//
// Core Types:
//   - Job: one unit of work tracked across arrival, dispatch and completion
//   - Scheme: the six scheduling disciplines
//
// Timestamps:
//   Virtual time, not wall clock. Values are caller-supplied non-negative
//   integers representing simulated ticks; nothing in this package touches
//   time.Now.
//
// ============================================================================

// Package job defines the record the scheduling engine and ordered job
// store operate on.
package job

import "fmt"

// Scheme identifies one of the six scheduling disciplines the engine can
// run.
type Scheme int

const (
	// FCFS orders jobs by arrival time; non-preemptive.
	FCFS Scheme = iota
	// SJF dispatches the job with the shortest original run time; non-preemptive.
	SJF
	// PSJF is the preemptive variant of SJF, comparing remaining run time.
	PSJF
	// PRI dispatches the highest-priority job; non-preemptive.
	PRI
	// PPRI is the preemptive variant of PRI.
	PPRI
	// RR is round robin: waiting jobs are kept in FIFO order, and the
	// running job rotates to the back of the queue on quantum expiry.
	RR
)

// String renders a Scheme the way the original project's configuration
// files and CLI flags spell it.
func (s Scheme) String() string {
	switch s {
	case FCFS:
		return "FCFS"
	case SJF:
		return "SJF"
	case PSJF:
		return "PSJF"
	case PRI:
		return "PRI"
	case PPRI:
		return "PPRI"
	case RR:
		return "RR"
	default:
		return fmt.Sprintf("Scheme(%d)", int(s))
	}
}

// ParseScheme parses the textual scheme names accepted by configuration
// files and the CLI. It is case-sensitive on purpose: the six names are a
// closed set and typos should fail loudly rather than silently normalize.
func ParseScheme(s string) (Scheme, error) {
	switch s {
	case "FCFS":
		return FCFS, nil
	case "SJF":
		return SJF, nil
	case "PSJF":
		return PSJF, nil
	case "PRI":
		return PRI, nil
	case "PPRI":
		return PPRI, nil
	case "RR":
		return RR, nil
	default:
		return 0, fmt.Errorf("job: unknown scheme %q", s)
	}
}

// Preemptive reports whether the scheme can evict a running job before it
// finishes.
func (s Scheme) Preemptive() bool {
	return s == PSJF || s == PPRI
}

// AllSchemes lists every scheduling discipline the engine supports, in
// the order the original grading harness compared them.
var AllSchemes = []Scheme{FCFS, SJF, PSJF, PRI, PPRI, RR}

// Job is one unit of work flowing through the scheduler. Fields below the
// "set at arrival" line are mutated by the engine as the job moves through
// its lifecycle; the store never copies a Job, it only ever holds a *Job,
// which is what lets Store.Remove match by identity.
type Job struct {
	// ID uniquely identifies the job for the lifetime of a run.
	ID string `json:"id"`

	// ArrivalTime is the virtual time at which new_job was called for this
	// job. Set once, never mutated.
	ArrivalTime int64 `json:"arrival_time"`

	// OriginalRunTime is the job's total required run time, as reported at
	// arrival. Set once, never mutated; used by the SJF comparator (PSJF
	// orders by RemainingRunTime instead).
	OriginalRunTime int64 `json:"original_run_time"`

	// Priority is a caller-assigned ranking; by this project's convention,
	// numerically lower means more urgent. Set once, never mutated.
	Priority int `json:"priority"`

	// RemainingRunTime is decremented as the engine accounts for elapsed
	// execution; it reaches zero exactly when the job finishes.
	RemainingRunTime int64 `json:"remaining_run_time"`

	// StartTime is the virtual time the job most recently began or resumed
	// running on a core. -1 while the job has never run or is waiting.
	StartTime int64 `json:"start_time"`

	// FirstStartTime is the virtual time of the job's very first dispatch,
	// used to compute response time. -1 until the job has run once.
	FirstStartTime int64 `json:"first_start_time"`

	// AssignedCore is the index of the core currently running this job, or
	// -1 if the job is waiting in the store.
	AssignedCore int `json:"assigned_core"`
}

// New constructs a job in its arrival state: unassigned, never started.
func New(id string, arrivalTime, runningTime int64, priority int) *Job {
	return &Job{
		ID:               id,
		ArrivalTime:      arrivalTime,
		OriginalRunTime:  runningTime,
		Priority:         priority,
		RemainingRunTime: runningTime,
		StartTime:        -1,
		FirstStartTime:   -1,
		AssignedCore:     -1,
	}
}

// HasStarted reports whether the job has been dispatched to a core at
// least once.
func (j *Job) HasStarted() bool {
	return j.FirstStartTime >= 0
}

// WaitingTime returns the job's waiting time given its completion time:
// turnaround time minus the time actually spent running.
func (j *Job) WaitingTime(finishTime int64) int64 {
	return j.TurnaroundTime(finishTime) - j.OriginalRunTime
}

// TurnaroundTime returns the elapsed virtual time between arrival and
// completion.
func (j *Job) TurnaroundTime(finishTime int64) int64 {
	return finishTime - j.ArrivalTime
}

// ResponseTime returns the elapsed virtual time between arrival and the
// job's first dispatch.
func (j *Job) ResponseTime() int64 {
	return j.FirstStartTime - j.ArrivalTime
}
