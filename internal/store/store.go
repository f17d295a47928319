// ============================================================================
// Ordered Job Store
// ============================================================================
//
// Package: internal/store
// Purpose: A comparator-ordered sequence of waiting jobs.
//
// Grounded on _examples/original_source/scheduler/src/libpriqueue
// (libpriqueue.c/.h), a singly-linked-list priority queue keyed by a
// caller-supplied comparator. This package keeps that contract -
// offer/peek/poll/at/remove_at/remove/size - but stores elements in a
// slice rather than a linked list, and fixes the one bug that contract
// would otherwise inherit: remove() here matches by pointer identity, the
// same semantics the original's `temp->m_entry == ptr` check has, made
// explicit and type-safe instead of relying on an untyped void* compare.
//
// ============================================================================

// Package store implements the ordered sequence the scheduling engine
// keeps waiting jobs in.
package store

import "github.com/kdesai/coresim/pkg/job"

// Comparator orders two jobs for the store's sort position. It must
// return a negative number if a belongs strictly before b, zero if they
// are equivalent for ordering purposes, and a positive number if a
// belongs strictly after b. The store treats "zero" as "insert after all
// existing equivalent elements", matching libpriqueue's `cmp(...) <= 0`
// insertion walk, so a comparator that always returns 0 degrades to FIFO
// - not the silent always-return -1 bug the original FCFS/SJF/PRI
// comparators are tempted toward (see internal/engine/scheme.go).
type Comparator func(a, b *job.Job) int

// Store is a comparator-ordered sequence of *job.Job. A nil or zero Store
// is not usable; construct one with New.
type Store struct {
	cmp   Comparator
	items []*job.Job
}

// New constructs an empty store ordered by cmp.
func New(cmp Comparator) *Store {
	return &Store{cmp: cmp, items: make([]*job.Job, 0)}
}

// Size returns the number of jobs currently held.
func (s *Store) Size() int {
	return len(s.items)
}

// Offer inserts j at the position its comparator value dictates,
// preserving insertion order among equivalent elements (stable insert).
func (s *Store) Offer(j *job.Job) {
	pos := len(s.items)
	for i, existing := range s.items {
		if s.cmp(j, existing) < 0 {
			pos = i
			break
		}
	}
	s.items = append(s.items, nil)
	copy(s.items[pos+1:], s.items[pos:])
	s.items[pos] = j
}

// Peek returns the first job without removing it, or nil if the store is
// empty.
func (s *Store) Peek() *job.Job {
	if len(s.items) == 0 {
		return nil
	}
	return s.items[0]
}

// Poll removes and returns the first job, or nil if the store is empty.
func (s *Store) Poll() *job.Job {
	if len(s.items) == 0 {
		return nil
	}
	j := s.items[0]
	s.items = s.items[1:]
	return j
}

// At returns the job at the given index without removing it, or nil if
// index is out of range.
func (s *Store) At(index int) *job.Job {
	if index < 0 || index >= len(s.items) {
		return nil
	}
	return s.items[index]
}

// RemoveAt removes and returns the job at the given index, or nil if
// index is out of range.
func (s *Store) RemoveAt(index int) *job.Job {
	if index < 0 || index >= len(s.items) {
		return nil
	}
	j := s.items[index]
	s.items = append(s.items[:index], s.items[index+1:]...)
	return j
}

// Remove deletes every element matching target by pointer identity - not
// by the comparator, which may treat distinct jobs as equivalent. It
// returns the number of elements removed, which is 0 or 1 for the
// bijective core/job mapping the engine maintains, but the loop does not
// assume that: duplicate offers of the same pointer are handled
// correctly too.
func (s *Store) Remove(target *job.Job) int {
	removed := 0
	kept := s.items[:0]
	for _, j := range s.items {
		if j == target {
			removed++
			continue
		}
		kept = append(kept, j)
	}
	s.items = kept
	return removed
}

// Comparator returns the comparator the store was constructed with, so
// callers can re-derive ordering decisions (e.g. preemption checks)
// without duplicating scheme logic.
func (s *Store) Comparator() Comparator {
	return s.cmp
}
