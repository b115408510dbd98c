package geom

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"structsearch/internal/rng"
)

// RotationXYZ returns R = X(ax)·Y(ay)·Z(az) for angles in radians.
func RotationXYZ(ax, ay, az float64) *mat.Dense {
	x := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, math.Cos(ax), -math.Sin(ax),
		0, math.Sin(ax), math.Cos(ax),
	})
	y := mat.NewDense(3, 3, []float64{
		math.Cos(ay), 0, math.Sin(ay),
		0, 1, 0,
		-math.Sin(ay), 0, math.Cos(ay),
	})
	z := mat.NewDense(3, 3, []float64{
		math.Cos(az), -math.Sin(az), 0,
		math.Sin(az), math.Cos(az), 0,
		0, 0, 1,
	})
	var xy, r mat.Dense
	xy.Mul(x, y)
	r.Mul(&xy, z)
	return &r
}

// RandomRotation draws three independent angles uniform in [0, 2π).
func RandomRotation(r *rng.Source) *mat.Dense {
	return RotationXYZ(
		r.Float64Between(0, 2*math.Pi),
		r.Float64Between(0, 2*math.Pi),
		r.Float64Between(0, 2*math.Pi),
	)
}

// Rotate applies rot to every offset, treating offsets as the columns of a
// 3×n matrix.
func Rotate(offsets []Vect, rot mat.Matrix) []Vect {
	if len(offsets) == 0 {
		return nil
	}
	v := mat.NewDense(3, len(offsets), nil)
	for j, o := range offsets {
		for i := 0; i < 3; i++ {
			v.Set(i, j, o[i])
		}
	}
	var p mat.Dense
	p.Mul(rot, v)

	out := make([]Vect, len(offsets))
	for j := range offsets {
		out[j] = Vect{p.At(0, j), p.At(1, j), p.At(2, j)}
	}
	return out
}
