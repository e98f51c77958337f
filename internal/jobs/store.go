package jobs

import (
	"sync"

	"fetcharr/internal/models"
)

// Store is a concurrency-safe mapping from job ID to job. The store's lock
// guards membership only; each job's mutable state is guarded by the job's
// own mutex.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*models.Job
}

// NewStore returns an empty job store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]*models.Job)}
}

// Insert registers a new job, rejecting duplicates.
func (s *Store) Insert(job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return ErrDuplicateID
	}
	s.jobs[job.ID] = job
	return nil
}

// Replace installs job under its ID unconditionally, returning the previous
// entry if one existed. Used by retry so no window exists where the ID maps
// to neither the old nor the new job.
func (s *Store) Replace(job *models.Job) (prev *models.Job, existed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, existed = s.jobs[job.ID]
	s.jobs[job.ID] = job
	return prev, existed
}

// Get returns the job for id.
func (s *Store) Get(id string) (*models.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	return j, ok
}

// List returns all jobs, or the subset matching ids when non-nil. Order is
// not guaranteed.
func (s *Store) List(ids []string) []*models.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if ids == nil {
		out := make([]*models.Job, 0, len(s.jobs))
		for _, j := range s.jobs {
			out = append(out, j)
		}
		return out
	}

	out := make([]*models.Job, 0, len(ids))
	for _, id := range ids {
		if j, ok := s.jobs[id]; ok {
			out = append(out, j)
		}
	}
	return out
}

// Remove deletes the job for id, returning it if present.
func (s *Store) Remove(id string) (*models.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if ok {
		delete(s.jobs, id)
	}
	return j, ok
}
