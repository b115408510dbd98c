package search

import (
	"fmt"
	"math"

	"structsearch/internal/chem"
	"structsearch/internal/geom"
	"structsearch/internal/model"
	"structsearch/internal/organism"
	"structsearch/internal/storage"
)

// OrganismRecord snapshots o for persistence. Energies that are unknown or
// infinite are stored as zero with the matching flag set.
func OrganismRecord(o *organism.StructureOrg, runID string, rank int) model.OrganismRecord {
	cell := o.Cell()
	rec := model.OrganismRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              o.ID(),
		RunID:           runID,
		Rank:            rank,
		Composition:     cell.Composition().String(),
		Sites:           make([]model.SiteRecord, 0, cell.NumSites()),
	}
	lattice := cell.Lattice()
	for i := range lattice {
		rec.Lattice[i] = lattice[i]
	}
	for _, s := range cell.Sites() {
		rec.Sites = append(rec.Sites, model.SiteRecord{Element: s.Element.Symbol, Coords: s.Coords})
	}

	if !o.KnowsValue() {
		return rec
	}
	rec.Evaluated = true
	value, total := o.Value(), o.TotalEnergy()
	if math.IsInf(value, 0) || math.IsNaN(value) {
		rec.Unevaluable = true
		return rec
	}
	rec.TotalEnergy = total
	rec.EnergyPerAtom = value
	return rec
}

// CellFromRecord rebuilds the cell stored in rec.
func CellFromRecord(rec model.OrganismRecord) (geom.Cell, error) {
	var lattice geom.Lattice
	for i := range rec.Lattice {
		lattice[i] = rec.Lattice[i]
	}
	sites := make([]geom.Site, len(rec.Sites))
	for i, s := range rec.Sites {
		e, err := chem.ElementBySymbol(s.Element)
		if err != nil {
			return geom.Cell{}, fmt.Errorf("organism %s site %d: %w", rec.ID, i, err)
		}
		sites[i] = geom.Site{Element: e, Coords: s.Coords}
	}
	return geom.NewCell(lattice, sites), nil
}
