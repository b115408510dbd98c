package storage

import (
	"context"

	"structsearch/internal/model"
)

// Store persists organisms and the runs that produced them.
type Store interface {
	Init(ctx context.Context) error
	SaveOrganism(ctx context.Context, organism model.OrganismRecord) error
	GetOrganism(ctx context.Context, id string) (model.OrganismRecord, bool, error)
	// ListOrganisms returns the organisms of one run ordered by rank.
	ListOrganisms(ctx context.Context, runID string) ([]model.OrganismRecord, error)
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	// ListRuns returns every run ordered by start time.
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
}
