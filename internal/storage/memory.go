package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"structsearch/internal/model"
)

type MemoryStore struct {
	mu        sync.RWMutex
	organisms map[string]model.OrganismRecord
	runs      map[string]model.RunRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.organisms == nil {
		s.organisms = make(map[string]model.OrganismRecord)
	}
	if s.runs == nil {
		s.runs = make(map[string]model.RunRecord)
	}
	return nil
}

func (s *MemoryStore) SaveOrganism(_ context.Context, organism model.OrganismRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.organisms == nil {
		return errors.New("store is not initialized")
	}
	s.organisms[organism.ID] = cloneOrganism(organism)
	return nil
}

func (s *MemoryStore) GetOrganism(_ context.Context, id string) (model.OrganismRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	organism, ok := s.organisms[id]
	if !ok {
		return model.OrganismRecord{}, false, nil
	}
	return cloneOrganism(organism), true, nil
}

func (s *MemoryStore) ListOrganisms(_ context.Context, runID string) ([]model.OrganismRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.OrganismRecord
	for _, organism := range s.organisms {
		if organism.RunID == runID {
			out = append(out, cloneOrganism(organism))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank < out[j].Rank
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runs == nil {
		return errors.New("store is not initialized")
	}
	s.runs[run.ID] = cloneRun(run)
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return model.RunRecord{}, false, nil
	}
	return cloneRun(run), true, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, cloneRun(run))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func cloneOrganism(o model.OrganismRecord) model.OrganismRecord {
	o.Sites = append([]model.SiteRecord(nil), o.Sites...)
	return o
}

func cloneRun(r model.RunRecord) model.RunRecord {
	r.OrganismIDs = append([]string(nil), r.OrganismIDs...)
	return r
}
