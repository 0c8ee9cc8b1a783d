package jobs

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the registry of live jobs keyed by id.
type Store struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*Job
	now  func() time.Time
}

// NewStore creates an empty registry.
func NewStore() *Store {
	return &Store{jobs: make(map[uuid.UUID]*Job), now: time.Now}
}

// Create registers a new job in processing state.
func (s *Store) Create() *Job {
	j := newJob(uuid.New(), s.now)
	s.mu.Lock()
	s.jobs[j.ID] = j
	s.mu.Unlock()
	return j
}

// Get returns the job or false when unknown.
func (s *Store) Get(id uuid.UUID) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	return j, ok
}

// Poll snapshots the job and drains its undelivered log lines.
func (s *Store) Poll(id uuid.UUID) (Status, bool) {
	j, ok := s.Get(id)
	if !ok {
		return Status{}, false
	}
	return j.Snapshot(true), true
}

// Delete forgets a job.
func (s *Store) Delete(id uuid.UUID) {
	s.mu.Lock()
	delete(s.jobs, id)
	s.mu.Unlock()
}

// Sweep removes terminal jobs that finished before cutoff and returns how
// many were removed. Running jobs are never removed.
func (s *Store) Sweep(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, j := range s.jobs {
		if j.finishedBefore(cutoff) {
			delete(s.jobs, id)
			n++
		}
	}
	return n
}

// Len returns the number of registered jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
