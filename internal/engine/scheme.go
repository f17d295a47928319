package engine

import (
	"github.com/kdesai/coresim/internal/store"
	"github.com/kdesai/coresim/pkg/job"
)

// comparatorFor resolves the ordering a scheme's waiting store uses.
//
// This is the direct fix for _examples/original_source's FCFS_comp,
// SJF_comp and PRI_comp, which all returned the constant -1 regardless of
// their arguments. Under this store's stable Offer, a constant comparator
// inserts every new job at position zero - last arrival sorts first -
// which silently breaks FCFS's own ordering guarantee and makes SJF/PRI
// degenerate into LIFO whenever two jobs tie. Every comparator below
// except RR's (which treats all jobs as equal, see its case) breaks ties
// on arrival time, and the arrival-time tie-break itself
// breaks further ties on job ID so ordering is total and reproducible.
func comparatorFor(s job.Scheme) store.Comparator {
	switch s {
	case job.FCFS:
		return byArrival
	case job.SJF:
		return fieldThenArrival(func(j *job.Job) int64 { return j.OriginalRunTime })
	case job.PSJF:
		return fieldThenArrival(func(j *job.Job) int64 { return j.RemainingRunTime })
	case job.PRI, job.PPRI:
		return fieldThenArrival(func(j *job.Job) int64 { return int64(j.Priority) })
	case job.RR:
		// Always-equal: combined with Store's stable insert, every offer
		// (initial arrival or quantum-expiry requeue) lands at the back,
		// giving plain FIFO rotation without a separate sequence field.
		return func(a, b *job.Job) int { return 0 }
	default:
		return byArrival
	}
}

func byArrival(a, b *job.Job) int {
	switch {
	case a.ArrivalTime < b.ArrivalTime:
		return -1
	case a.ArrivalTime > b.ArrivalTime:
		return 1
	default:
		return tieBreak(a, b)
	}
}

// fieldThenArrival orders by an integer key, breaking ties on arrival
// time and then job ID.
func fieldThenArrival(key func(*job.Job) int64) store.Comparator {
	return func(a, b *job.Job) int {
		ka, kb := key(a), key(b)
		switch {
		case ka < kb:
			return -1
		case ka > kb:
			return 1
		default:
			return byArrival(a, b)
		}
	}
}

func tieBreak(a, b *job.Job) int {
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	default:
		return 0
	}
}
