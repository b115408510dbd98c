package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

type SiteRecord struct {
	Element string     `json:"element"`
	Coords  [3]float64 `json:"coords"`
}

// OrganismRecord is a stored structure. JSON has no infinity, so an
// organism the engine could not evaluate is flagged Unevaluable and its
// energies are left at zero.
type OrganismRecord struct {
	VersionedRecord
	ID            string        `json:"id"`
	RunID         string        `json:"run_id"`
	Rank          int           `json:"rank"`
	Composition   string        `json:"composition"`
	Lattice       [3][3]float64 `json:"lattice"`
	Sites         []SiteRecord  `json:"sites"`
	Evaluated     bool          `json:"evaluated"`
	Unevaluable   bool          `json:"unevaluable"`
	TotalEnergy   float64       `json:"total_energy"`
	EnergyPerAtom float64       `json:"energy_per_atom"`
}

type RunRecord struct {
	VersionedRecord
	ID                string    `json:"id"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
	Seed              int64     `json:"seed"`
	Creator           string    `json:"creator"`
	Engine            string    `json:"engine"`
	Space             string    `json:"space,omitempty"`
	Requested         int       `json:"requested"`
	Created           int       `json:"created"`
	Rejected          int       `json:"rejected"`
	Unevaluable       int       `json:"unevaluable"`
	Calculations      int64     `json:"calculations"`
	BestOrganismID    string    `json:"best_organism_id,omitempty"`
	BestEnergyPerAtom float64   `json:"best_energy_per_atom"`
	OrganismIDs       []string  `json:"organism_ids"`
}
