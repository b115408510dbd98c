package creator

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"structsearch/internal/chem"
	"structsearch/internal/geom"
	"structsearch/internal/logging"
	"structsearch/internal/organism"
	"structsearch/internal/rng"
)

const minDist = 0.9

func waterTemplate() Template {
	return Template{
		Name: "water",
		Sites: []geom.Site{
			{Element: chem.MustElement("O"), Coords: geom.Vect{0, 0, 0}},
			{Element: chem.MustElement("H"), Coords: geom.Vect{0.9572, 0, 0}},
			{Element: chem.MustElement("H"), Coords: geom.Vect{-0.24, 0.9266, 0}},
		},
	}
}

func testConstraints() organism.Constraints {
	return organism.Constraints{
		MinInteratomicDistance: minDist,
		MinNumAtoms:            3,
		MaxNumAtoms:            12,
		Lattice:                geom.LatticeBounds{MinLength: 3, MaxLength: 6, MinAngle: 70, MaxAngle: 110},
	}
}

func newWaterCreator(t *testing.T, seed int64, count CountPolicy) *UnitsCreator {
	t.Helper()
	c, err := NewUnitsCreator(UnitsConfig{
		Units:            []UnitSpec{{Template: waterTemplate(), Count: count}},
		UnitsOnly:        true,
		TargetDensity:    1.0,
		DensityTolerance: 0.3,
	}, testConstraints(), nil, rng.New(seed), WithLogger(logging.Discard()))
	require.NoError(t, err)
	return c
}

func TestNewUnitsCreatorRejectsInfeasibleUnit(t *testing.T) {
	tight := Template{Sites: []geom.Site{
		{Element: chem.MustElement("C"), Coords: geom.Vect{0, 0, 0}},
		{Element: chem.MustElement("C"), Coords: geom.Vect{0.5, 0, 0}},
	}}
	_, err := NewUnitsCreator(UnitsConfig{
		Units:     []UnitSpec{{Template: tight, Count: CountPolicy{Exact: 1}}},
		UnitsOnly: true,
	}, testConstraints(), nil, rng.New(1))
	require.ErrorIs(t, err, ErrInfeasibleUnit)
	assert.Contains(t, err.Error(), "minimum interatomic distance")
}

func TestNewUnitsCreatorRejectsCountsAboveMaxAtoms(t *testing.T) {
	_, err := NewUnitsCreator(UnitsConfig{
		Units:     []UnitSpec{{Template: waterTemplate(), Count: CountPolicy{Exact: 5}}},
		UnitsOnly: true,
	}, testConstraints(), nil, rng.New(1))
	require.ErrorIs(t, err, ErrInfeasibleUnit)

	_, err = NewUnitsCreator(UnitsConfig{
		Units:     []UnitSpec{{Template: waterTemplate(), Count: CountPolicy{Min: 5, Max: 6}}},
		UnitsOnly: true,
	}, testConstraints(), nil, rng.New(1))
	require.ErrorIs(t, err, ErrInfeasibleUnit)
}

func TestNewUnitsCreatorRejectsMalformedConfig(t *testing.T) {
	cases := map[string]UnitsConfig{
		"no units":       {UnitsOnly: true},
		"empty template": {Units: []UnitSpec{{Count: CountPolicy{Exact: 1}}}, UnitsOnly: true},
		"exact and range": {
			Units:     []UnitSpec{{Template: waterTemplate(), Count: CountPolicy{Exact: 1, Min: 1, Max: 2}}},
			UnitsOnly: true,
		},
		"reversed range": {
			Units:     []UnitSpec{{Template: waterTemplate(), Count: CountPolicy{Min: 3, Max: 1}}},
			UnitsOnly: true,
		},
		"tolerance above one": {
			Units:            []UnitSpec{{Template: waterTemplate()}},
			UnitsOnly:        true,
			DensityTolerance: 1.5,
		},
		"free atoms without space": {
			Units: []UnitSpec{{Template: waterTemplate()}},
		},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewUnitsCreator(cfg, testConstraints(), nil, rng.New(1))
			require.ErrorIs(t, err, ErrMalformedUnits)
		})
	}
}

func TestNewUnitsCreatorAppliesDefaults(t *testing.T) {
	c, err := NewUnitsCreator(UnitsConfig{
		Units:     []UnitSpec{{Template: Template{Sites: waterTemplate().Sites}}},
		UnitsOnly: true,
	}, testConstraints(), nil, rng.New(1))
	require.NoError(t, err)

	cfg := c.Config()
	assert.Equal(t, "unit1", cfg.Units[0].Template.Name)
	assert.Equal(t, 0.20, cfg.DensityTolerance)
	assert.Equal(t, 2000, cfg.MaxDensityAttempts)
	assert.Equal(t, 100, cfg.MaxPlacementFailures)
	assert.Contains(t, c.String(), "units only true")
}

func TestMakeOrganismKeepsMinimumDistance(t *testing.T) {
	c := newWaterCreator(t, 7, CountPolicy{Exact: 2})
	for i := 0; i < 25; i++ {
		org, err := c.MakeOrganism(context.Background(), organism.NewGeneration())
		require.NoError(t, err)
		require.False(t, org.KnowsValue())

		cell := org.Cell()
		require.LessOrEqual(t, cell.NumSites(), 6)
		require.Zero(t, cell.NumSites()%3)
		comp := cell.Composition()
		assert.Equal(t, 2*comp.Count(chem.MustElement("O")), comp.Count(chem.MustElement("H")))
		assert.GreaterOrEqual(t, cell.MinInteratomicDistance(), minDist-1e-9)
	}
}

// bruteMinDistance checks every site pair over a wide block of lattice
// translations, self images included.
func bruteMinDistance(cell geom.Cell) float64 {
	const reach = 10
	l := cell.Lattice()
	sites := cell.Sites()
	best := math.Inf(1)
	for i := range sites {
		for j := i; j < len(sites); j++ {
			d := sites[i].Coords.Minus(sites[j].Coords)
			for x := -reach; x <= reach; x++ {
				for y := -reach; y <= reach; y++ {
					for z := -reach; z <= reach; z++ {
						if i == j && x == 0 && y == 0 && z == 0 {
							continue
						}
						shift := l[0].Scale(float64(x)).Plus(l[1].Scale(float64(y))).Plus(l[2].Scale(float64(z)))
						best = math.Min(best, d.Plus(shift).Length())
					}
				}
			}
		}
	}
	return best
}

func TestMakeOrganismUnitLongerThanCellKeepsMinimumDistance(t *testing.T) {
	carbon := chem.MustElement("C")
	chain := Template{Name: "chain"}
	for i := 0; i < 6; i++ {
		chain.Sites = append(chain.Sites, geom.Site{Element: carbon, Coords: geom.Vect{1.5 * float64(i), 0, 0}})
	}
	constraints := organism.Constraints{
		MinInteratomicDistance: 1.0,
		MinNumAtoms:            1,
		MaxNumAtoms:            6,
		Lattice:                geom.LatticeBounds{MinLength: 2, MaxLength: 3, MinAngle: 70, MaxAngle: 110},
	}
	c, err := NewUnitsCreator(UnitsConfig{
		Units:              []UnitSpec{{Template: chain, Count: CountPolicy{Exact: 1}}},
		UnitsOnly:          true,
		TargetDensity:      8,
		DensityTolerance:   0.3,
		MaxDensityAttempts: 200,
	}, constraints, nil, rng.New(5), WithLogger(logging.Discard()))
	require.NoError(t, err)

	for i := 0; i < 30; i++ {
		org, err := c.MakeOrganism(context.Background(), nil)
		require.NoError(t, err)
		cell := org.Cell()
		require.Contains(t, []int{0, 6}, cell.NumSites())
		if cell.NumSites() == 0 {
			continue
		}
		want := bruteMinDistance(cell)
		assert.GreaterOrEqual(t, want, 1.0-1e-9, "cell %d", i)
		assert.InDelta(t, want, cell.MinInteratomicDistance(), 1e-9, "cell %d", i)
		assert.NoError(t, organism.Develop(org, constraints))
	}
}

func TestMakeOrganismReportsLatticeTooSmall(t *testing.T) {
	space, err := chem.NewCompositionSpaceFromTokens([]string{"1", "Si"})
	require.NoError(t, err)
	constraints := organism.Constraints{
		MinInteratomicDistance: 2.0,
		MinNumAtoms:            1,
		MaxNumAtoms:            2,
		Lattice:                geom.LatticeBounds{MinLength: 0.5, MaxLength: 1, MinAngle: 80, MaxAngle: 100},
	}
	c, err := NewRandomCreator(RandomConfig{TargetDensity: 2}, constraints, space, rng.New(1), WithLogger(logging.Discard()))
	require.NoError(t, err)

	_, err = c.MakeOrganism(context.Background(), nil)
	require.ErrorIs(t, err, ErrNoLattice)
}

func TestMakeOrganismIsReproducible(t *testing.T) {
	a, err := newWaterCreator(t, 99, CountPolicy{Min: 1, Max: 3}).MakeOrganism(context.Background(), nil)
	require.NoError(t, err)
	b, err := newWaterCreator(t, 99, CountPolicy{Min: 1, Max: 3}).MakeOrganism(context.Background(), nil)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, a.Cell().Lattice(), b.Cell().Lattice())
	assert.Equal(t, a.Cell().Sites(), b.Cell().Sites())
}

func TestMakeOrganismRangedCountsStayInRange(t *testing.T) {
	c := newWaterCreator(t, 5, CountPolicy{Min: 1, Max: 3})
	o := chem.MustElement("O")
	for i := 0; i < 20; i++ {
		org, err := c.MakeOrganism(context.Background(), nil)
		require.NoError(t, err)
		assert.LessOrEqual(t, org.Cell().Composition().Count(o), 3)
	}
}

func TestMakeOrganismHonorsCancelledContext(t *testing.T) {
	c := newWaterCreator(t, 5, CountPolicy{Exact: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.MakeOrganism(ctx, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestUnitTargetsAutoSplitStaysInBudget(t *testing.T) {
	carbon := Template{Name: "c", Sites: []geom.Site{{Element: chem.MustElement("C")}}}
	c, err := NewUnitsCreator(UnitsConfig{
		Units: []UnitSpec{
			{Template: waterTemplate()},
			{Template: carbon},
			{Template: carbon, Count: CountPolicy{Exact: 2}},
		},
		UnitsOnly: true,
	}, testConstraints(), nil, rng.New(3))
	require.NoError(t, err)

	for i := 0; i < 200; i++ {
		targets := c.unitTargets()
		require.Len(t, targets, 3)
		assert.Equal(t, 2, targets[2])
		atoms := targets[0]*3 + targets[1] + targets[2]
		// Rounding each share can add at most one atom per automatic unit.
		assert.LessOrEqual(t, atoms, testConstraints().MaxNumAtoms+2)
		assert.GreaterOrEqual(t, targets[0], 0)
		assert.GreaterOrEqual(t, targets[1], 0)
	}
}

func TestUnitsCreatorAddsFreeAtomsFromSpace(t *testing.T) {
	space, err := chem.NewCompositionSpaceFromTokens([]string{"1", "Si"})
	require.NoError(t, err)
	c, err := NewUnitsCreator(UnitsConfig{
		Units:         []UnitSpec{{Template: waterTemplate(), Count: CountPolicy{Exact: 1}}},
		TargetDensity: 1.5,
	}, testConstraints(), space, rng.New(21), WithLogger(logging.Discard()))
	require.NoError(t, err)

	si := chem.MustElement("Si")
	sawSilicon := false
	for i := 0; i < 10; i++ {
		org, err := c.MakeOrganism(context.Background(), nil)
		require.NoError(t, err)
		cell := org.Cell()
		if cell.Composition().Count(si) > 0 {
			sawSilicon = true
		}
		assert.GreaterOrEqual(t, cell.MinInteratomicDistance(), minDist-1e-9)
	}
	assert.True(t, sawSilicon)
}

func TestOptimizeDensityLandsInBand(t *testing.T) {
	space, err := chem.NewCompositionSpaceFromTokens([]string{"1", "C"})
	require.NoError(t, err)
	constraints := organism.Constraints{
		MinInteratomicDistance: 1.0,
		MinNumAtoms:            1,
		MaxNumAtoms:            8,
		Lattice:                geom.LatticeBounds{MinLength: 3, MaxLength: 4, MinAngle: 80, MaxAngle: 100},
	}
	c, err := NewRandomCreator(RandomConfig{TargetDensity: 2.0, DensityTolerance: 0.2}, constraints, space, rng.New(8), WithLogger(logging.Discard()))
	require.NoError(t, err)

	carbon := chem.MustElement("C")
	sparse := geom.NewCell(geom.Lattice{{10, 0, 0}, {0, 10, 0}, {0, 0, 10}}, []geom.Site{
		{Element: carbon, Coords: geom.Vect{1, 1, 1}},
		{Element: carbon, Coords: geom.Vect{5, 5, 5}},
		{Element: carbon, Coords: geom.Vect{1, 5, 8}},
		{Element: carbon, Coords: geom.Vect{8, 2, 5}},
	})
	relaxed, report := c.OptimizeDensity(sparse, nil)

	require.True(t, report.Met)
	assert.Greater(t, report.Attempts, 0)
	assert.InDelta(t, relaxed.Density(), report.Density, 1e-9)
	assert.GreaterOrEqual(t, relaxed.Density(), 2.0*0.8)
	assert.LessOrEqual(t, relaxed.Density(), 2.0*1.2)
	assert.Equal(t, 4, relaxed.NumSites())
	assert.GreaterOrEqual(t, relaxed.MinInteratomicDistance(), 1.0-1e-9)
}

func TestOptimizeDensityMovesUnitsRigidly(t *testing.T) {
	c := newWaterCreator(t, 13, CountPolicy{Exact: 1})
	water := waterTemplate()
	sites := make([]geom.Site, len(water.Sites))
	ref := geom.Vect{5, 5, 5}
	for i, s := range water.Sites {
		sites[i] = geom.Site{Element: s.Element, Coords: ref.Plus(s.Coords)}
	}
	cell := geom.NewCell(geom.Lattice{{20, 0, 0}, {0, 20, 0}, {0, 0, 20}}, sites)

	relaxed, report := c.OptimizeDensity(cell, []Placement{{Reference: ref, Start: 0, Size: 3, Unit: true}})
	require.True(t, report.Met)
	for i := range sites {
		for j := i + 1; j < len(sites); j++ {
			want := sites[i].Coords.Minus(sites[j].Coords).Length()
			got := relaxed.Site(i).Coords.Minus(relaxed.Site(j).Coords).Length()
			assert.InDelta(t, want, got, 1e-9)
		}
	}
}

func TestOptimizeDensityReturnsEmptyCellUnchanged(t *testing.T) {
	c := newWaterCreator(t, 1, CountPolicy{Exact: 1})
	empty := geom.NewCell(geom.Lattice{{4, 0, 0}, {0, 4, 0}, {0, 0, 4}}, nil)

	out, report := c.OptimizeDensity(empty, nil)
	assert.Equal(t, empty, out)
	assert.False(t, report.Met)
	assert.Zero(t, report.Attempts)
	assert.Zero(t, report.Density)
}

func TestOptimizeDensityGivesUpAfterCap(t *testing.T) {
	c, err := NewUnitsCreator(UnitsConfig{
		Units:              []UnitSpec{{Template: waterTemplate(), Count: CountPolicy{Exact: 1}}},
		UnitsOnly:          true,
		TargetDensity:      500,
		MaxDensityAttempts: 5,
	}, testConstraints(), nil, rng.New(2), WithLogger(logging.Discard()))
	require.NoError(t, err)

	carbon := chem.MustElement("C")
	cell := geom.NewCell(geom.Lattice{{5, 0, 0}, {0, 5, 0}, {0, 0, 5}}, []geom.Site{{Element: carbon}})
	out, report := c.OptimizeDensity(cell, nil)

	assert.False(t, report.Met)
	assert.Equal(t, 5, report.Attempts)
	assert.Equal(t, cell, out)
	assert.False(t, math.IsNaN(report.Density))
}

func TestRandomCreatorDrawsFromSpace(t *testing.T) {
	space, err := chem.NewCompositionSpaceFromTokens([]string{"2", "Mg", "O", "1", "1"})
	require.NoError(t, err)
	c, err := NewRandomCreator(RandomConfig{TargetDensity: 3.0}, testConstraints(), space, rng.New(4), WithLogger(logging.Discard()))
	require.NoError(t, err)
	assert.Equal(t, "random", c.Name())

	for i := 0; i < 10; i++ {
		org, err := c.MakeOrganism(context.Background(), nil)
		require.NoError(t, err)
		cell := org.Cell()
		for _, e := range cell.Composition().Elements() {
			assert.Contains(t, []string{"Mg", "O"}, e.Symbol)
		}
		assert.GreaterOrEqual(t, cell.MinInteratomicDistance(), minDist-1e-9)
	}
}

func TestNewRandomCreatorNeedsSpace(t *testing.T) {
	_, err := NewRandomCreator(RandomConfig{}, testConstraints(), nil, rng.New(1))
	require.ErrorIs(t, err, ErrMalformedUnits)
}
