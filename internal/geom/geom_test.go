package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"structsearch/internal/chem"
	"structsearch/internal/rng"
)

func cubic(a float64) Lattice {
	return Lattice{{a, 0, 0}, {0, a, 0}, {0, 0, a}}
}

func TestLatticeVolumeLengthsAngles(t *testing.T) {
	l := Lattice{{2, 0, 0}, {0, 3, 0}, {0, 0, 4}}
	assert.InDelta(t, 24.0, l.Volume(), 1e-12)
	assert.Equal(t, [3]float64{2, 3, 4}, l.Lengths())
	for _, angle := range l.Angles() {
		assert.InDelta(t, 90.0, angle, 1e-9)
	}
}

func TestFromFractional(t *testing.T) {
	l := Lattice{{2, 0, 0}, {0, 4, 0}, {1, 0, 5}}
	got := FromFractional([3]float64{0.5, 0.25, 0.2}, l)
	assert.InDeltaSlice(t, []float64{1.2, 1, 1}, got[:], 1e-12)
}

func TestLatticeFromParametersRoundTrips(t *testing.T) {
	l, ok := LatticeFromParameters(3, 4, 5, 80, 95, 110)
	require.True(t, ok)
	lengths := l.Lengths()
	assert.InDeltaSlice(t, []float64{3, 4, 5}, lengths[:], 1e-9)
	angles := l.Angles()
	assert.InDeltaSlice(t, []float64{80, 95, 110}, angles[:], 1e-9)
}

func TestLatticeFromParametersRejectsImpossibleAngles(t *testing.T) {
	_, ok := LatticeFromParameters(3, 3, 3, 170, 10, 10)
	assert.False(t, ok)
}

func TestRandomLatticeRespectsBounds(t *testing.T) {
	bounds := LatticeBounds{MinLength: 2, MaxLength: 6, MinAngle: 60, MaxAngle: 120}
	r := rng.New(3)
	for i := 0; i < 200; i++ {
		l, err := RandomLattice(bounds, r)
		require.NoError(t, err)
		for _, length := range l.Lengths() {
			assert.GreaterOrEqual(t, length, 2.0-1e-9)
			assert.LessOrEqual(t, length, 6.0+1e-9)
		}
		for _, angle := range l.Angles() {
			assert.GreaterOrEqual(t, angle, 60.0-1e-6)
			assert.LessOrEqual(t, angle, 120.0+1e-6)
		}
		assert.Greater(t, l.Volume(), 0.0)
	}
}

func TestRandomLatticeRejectsBadBounds(t *testing.T) {
	cases := map[string]LatticeBounds{
		"zero length":      {MinLength: 0, MaxLength: 3, MinAngle: 60, MaxAngle: 120},
		"reversed lengths": {MinLength: 4, MaxLength: 3, MinAngle: 60, MaxAngle: 120},
		"reversed angles":  {MinLength: 2, MaxLength: 3, MinAngle: 120, MaxAngle: 60},
		"flat angle":       {MinLength: 2, MaxLength: 3, MinAngle: 60, MaxAngle: 180},
	}
	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := RandomLattice(b, rng.New(1))
			require.ErrorIs(t, err, ErrLatticeBounds)
		})
	}
}

func TestRotationPreservesPairwiseDistances(t *testing.T) {
	offsets := []Vect{{0, 0, 0}, {1.2, 0, 0}, {0, 0.7, 1.1}, {-0.4, 2, 0.3}}
	r := rng.New(42)
	for trial := 0; trial < 50; trial++ {
		rotated := Rotate(offsets, RandomRotation(r))
		require.Len(t, rotated, len(offsets))
		for i := range offsets {
			for j := i + 1; j < len(offsets); j++ {
				want := offsets[i].Minus(offsets[j]).Length()
				got := rotated[i].Minus(rotated[j]).Length()
				assert.InDelta(t, want, got, 1e-9)
			}
		}
	}
}

func TestRotationXYZQuarterTurn(t *testing.T) {
	rotated := Rotate([]Vect{{1, 0, 0}}, RotationXYZ(0, 0, math.Pi/2))
	assert.InDeltaSlice(t, []float64{0, 1, 0}, rotated[0][:], 1e-12)
	assert.Nil(t, Rotate(nil, RotationXYZ(1, 2, 3)))
}

func TestCellDensity(t *testing.T) {
	si := chem.MustElement("Si")
	cell := NewCell(cubic(2), []Site{{Element: si}})
	want := si.Mass / 8 * AmuPerCubicAngstromToGramsPerCm3
	assert.InDelta(t, want, cell.Density(), 1e-12)

	empty := NewCell(Lattice{}, nil)
	assert.Zero(t, empty.Density())
	assert.Zero(t, empty.NumSites())
}

func TestCellCompositionAndCopies(t *testing.T) {
	o := chem.MustElement("O")
	h := chem.MustElement("H")
	sites := []Site{{Element: o}, {Element: h, Coords: Vect{1, 0, 0}}, {Element: h, Coords: Vect{0, 1, 0}}}
	cell := NewCell(cubic(5), sites)
	sites[0].Element = h

	assert.Equal(t, "H2O1", cell.Composition().String())

	got := cell.Sites()
	got[1].Coords = Vect{9, 9, 9}
	assert.Equal(t, Vect{1, 0, 0}, cell.Site(1).Coords)
}

func TestAtomsWithinSeesPeriodicImages(t *testing.T) {
	c := chem.MustElement("C")
	cell := NewCell(cubic(4), []Site{{Element: c, Coords: Vect{0.2, 0.2, 0.2}}})

	assert.Equal(t, []int{0}, cell.AtomsWithin(Vect{3.9, 0.2, 0.2}, 0.5))
	assert.Empty(t, cell.AtomsWithin(Vect{2, 2, 2}, 1.0))
}

func TestMinInteratomicDistance(t *testing.T) {
	c := chem.MustElement("C")
	cell := NewCell(cubic(4), []Site{
		{Element: c, Coords: Vect{0.5, 0, 0}},
		{Element: c, Coords: Vect{3.5, 0, 0}},
	})
	assert.InDelta(t, 1.0, cell.MinDistance(0, 1), 1e-12)
	assert.InDelta(t, 4.0, cell.MinDistance(0, 0), 1e-12)
	assert.InDelta(t, 1.0, cell.MinInteratomicDistance(), 1e-12)

	single := NewCell(cubic(1.5), []Site{{Element: c}})
	assert.InDelta(t, 1.5, single.MinInteratomicDistance(), 1e-12)
	assert.True(t, math.IsInf(NewCell(cubic(2), nil).MinInteratomicDistance(), 1))
}

// bruteDistance scans a wide block of lattice translations without any
// reduction of the difference vector.
func bruteDistance(l Lattice, a, b Vect, self bool) float64 {
	const reach = 12
	best := math.Inf(1)
	for i := -reach; i <= reach; i++ {
		for j := -reach; j <= reach; j++ {
			for k := -reach; k <= reach; k++ {
				if self && i == 0 && j == 0 && k == 0 {
					continue
				}
				shift := l[0].Scale(float64(i)).Plus(l[1].Scale(float64(j))).Plus(l[2].Scale(float64(k)))
				best = math.Min(best, a.Minus(b).Plus(shift).Length())
			}
		}
	}
	return best
}

func TestReduceKeepsFractionalWithinHalf(t *testing.T) {
	l, ok := LatticeFromParameters(3, 4, 5, 70, 100, 115)
	require.True(t, ok)
	v := FromFractional([3]float64{3.4, -2.7, 5.5}, l)
	f := ToFractional(l.Reduce(v), l)
	for _, x := range f {
		assert.LessOrEqual(t, math.Abs(x), 0.5+1e-9)
	}
	assert.InDeltaSlice(t, []float64{0.4, 0.3, 0.5}, []float64{math.Abs(f[0]), math.Abs(f[1]), math.Abs(f[2])}, 1e-9)
}

func TestAtomsWithinFindsOverlapSeveralCellsAway(t *testing.T) {
	c := chem.MustElement("C")
	cell := NewCell(cubic(3), []Site{{Element: c}})
	assert.Equal(t, []int{0}, cell.AtomsWithin(Vect{9.5, 0, 0}, 0.8))
	assert.Equal(t, []int{0}, cell.AtomsWithin(Vect{-14.6, 8.8, 0}, 0.8))

	far := NewCell(cubic(3), []Site{{Element: c}, {Element: c, Coords: Vect{9.5, 0, 0}}})
	assert.InDelta(t, 0.5, far.MinInteratomicDistance(), 1e-12)
}

func TestMinDistanceMatchesBruteForce(t *testing.T) {
	l, ok := LatticeFromParameters(2.2, 2.6, 3, 75, 105, 95)
	require.True(t, ok)
	r := rng.New(11)
	ar := chem.MustElement("Ar")
	sites := make([]Site, 8)
	for i := range sites {
		f := [3]float64{r.Float64Between(-3, 3), r.Float64Between(-3, 3), r.Float64Between(-3, 3)}
		sites[i] = Site{Element: ar, Coords: FromFractional(f, l)}
	}
	cell := NewCell(l, sites)
	for i := range sites {
		for j := i; j < len(sites); j++ {
			want := bruteDistance(l, sites[i].Coords, sites[j].Coords, i == j)
			assert.InDelta(t, want, cell.MinDistance(i, j), 1e-9, "sites %d %d", i, j)

			at := sites[j].Coords
			near := cell.AtomsWithin(at, want+1e-6)
			if i != j {
				assert.Contains(t, near, i, "sites %d %d", i, j)
			}
		}
	}
}

func TestEachPairVisitsSymmetricImages(t *testing.T) {
	ar := chem.MustElement("Ar")
	cell := NewCell(cubic(3), []Site{{Element: ar}})

	var distances []float64
	cell.EachPair(3.5, func(i, j int, d float64) {
		assert.Equal(t, 0, i)
		assert.Equal(t, 0, j)
		distances = append(distances, d)
	})
	require.Len(t, distances, 6)
	for _, d := range distances {
		assert.InDelta(t, 3.0, d, 1e-12)
	}
}
