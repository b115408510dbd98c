package geom

import (
	"fmt"
	"math"
)

// Vect is a Cartesian 3-vector.
type Vect [3]float64

// Lattice holds the three cell vectors as rows.
type Lattice [3]Vect

// FromFractional converts fractional coordinates in lattice to Cartesian.
func FromFractional(f [3]float64, lattice Lattice) Vect {
	var out Vect
	for i := 0; i < 3; i++ {
		out = out.Plus(lattice[i].Scale(f[i]))
	}
	return out
}

// ToFractional converts Cartesian v to fractional coordinates of lattice. A
// flat lattice gives zeros.
func ToFractional(v Vect, lattice Lattice) [3]float64 {
	vol := lattice[0].Dot(lattice[1].Cross(lattice[2]))
	if vol == 0 {
		return [3]float64{}
	}
	return [3]float64{
		v.Dot(lattice[1].Cross(lattice[2])) / vol,
		v.Dot(lattice[2].Cross(lattice[0])) / vol,
		v.Dot(lattice[0].Cross(lattice[1])) / vol,
	}
}

func (v Vect) Plus(o Vect) Vect {
	return Vect{v[0] + o[0], v[1] + o[1], v[2] + o[2]}
}

func (v Vect) Minus(o Vect) Vect {
	return Vect{v[0] - o[0], v[1] - o[1], v[2] - o[2]}
}

func (v Vect) Scale(k float64) Vect {
	return Vect{v[0] * k, v[1] * k, v[2] * k}
}

func (v Vect) Dot(o Vect) float64 {
	return v[0]*o[0] + v[1]*o[1] + v[2]*o[2]
}

func (v Vect) Cross(o Vect) Vect {
	return Vect{
		v[1]*o[2] - v[2]*o[1],
		v[2]*o[0] - v[0]*o[2],
		v[0]*o[1] - v[1]*o[0],
	}
}

func (v Vect) Length() float64 {
	return math.Sqrt(v.Dot(v))
}

func (v Vect) String() string {
	return fmt.Sprintf("(%.6f, %.6f, %.6f)", v[0], v[1], v[2])
}

// Volume is |a · (b × c)|.
func (l Lattice) Volume() float64 {
	return math.Abs(l[0].Dot(l[1].Cross(l[2])))
}

// Reduce shifts v by whole lattice vectors so that every fractional
// component lies in [-0.5, 0.5].
func (l Lattice) Reduce(v Vect) Vect {
	f := ToFractional(v, l)
	for i := 0; i < 3; i++ {
		v = v.Minus(l[i].Scale(math.Round(f[i])))
	}
	return v
}

// Lengths returns |a|, |b|, |c|.
func (l Lattice) Lengths() [3]float64 {
	return [3]float64{l[0].Length(), l[1].Length(), l[2].Length()}
}

// Angles returns alpha (b,c), beta (a,c) and gamma (a,b) in degrees.
func (l Lattice) Angles() [3]float64 {
	return [3]float64{
		angleDegrees(l[1], l[2]),
		angleDegrees(l[0], l[2]),
		angleDegrees(l[0], l[1]),
	}
}

func angleDegrees(a, b Vect) float64 {
	cos := a.Dot(b) / (a.Length() * b.Length())
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}
