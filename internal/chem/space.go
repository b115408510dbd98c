package chem

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"structsearch/internal/rng"
)

var ErrMalformedSpace = errors.New("malformed composition space")

// containsTolerance bounds how negative a solved coefficient may be before a
// composition is considered outside the space.
const containsTolerance = -1e-5

// CompositionSpace is the cone spanned by a set of endpoint compositions.
type CompositionSpace struct {
	elements  []Element
	endpoints []Composition
	basis     [][]float64
}

// NewCompositionSpaceFromTokens parses [n, sym_1..sym_n, (n integers)*].
// Without stoichiometry blocks every element is its own endpoint.
func NewCompositionSpaceFromTokens(tokens []string) (*CompositionSpace, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: no tokens", ErrMalformedSpace)
	}
	n, err := strconv.Atoi(strings.TrimSpace(tokens[0]))
	if err != nil {
		return nil, fmt.Errorf("%w: element count %q is not an integer", ErrMalformedSpace, tokens[0])
	}
	if n <= 0 {
		return nil, fmt.Errorf("%w: element count must be > 0, got %d", ErrMalformedSpace, n)
	}
	rest := tokens[1:]
	if len(rest) < n || len(rest)%n != 0 {
		return nil, fmt.Errorf("%w: %d tokens after the element count is not a multiple of %d", ErrMalformedSpace, len(rest), n)
	}

	elements := make([]Element, 0, n)
	seen := make(map[Element]bool, n)
	for _, sym := range rest[:n] {
		e, err := ElementBySymbol(sym)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedSpace, err)
		}
		if seen[e] {
			return nil, fmt.Errorf("%w: duplicate element %s", ErrMalformedSpace, e.Symbol)
		}
		seen[e] = true
		elements = append(elements, e)
	}

	blocks := rest[n:]
	var endpoints []Composition
	if len(blocks) == 0 {
		for _, e := range elements {
			endpoints = append(endpoints, Pure(e))
		}
		return NewCompositionSpace(endpoints)
	}

	for start := 0; start < len(blocks); start += n {
		counts := make(map[Element]int, n)
		for i, tok := range blocks[start : start+n] {
			v, err := strconv.Atoi(strings.TrimSpace(tok))
			if err != nil {
				return nil, fmt.Errorf("%w: stoichiometry %q is not an integer", ErrMalformedSpace, tok)
			}
			if v < 0 {
				return nil, fmt.Errorf("%w: negative stoichiometry %d for %s", ErrMalformedSpace, v, elements[i].Symbol)
			}
			counts[elements[i]] = v
		}
		c, err := FromCounts(counts)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedSpace, err)
		}
		endpoints = append(endpoints, c)
	}
	return NewCompositionSpace(endpoints)
}

// NewCompositionSpace builds a space whose elements are the union of the
// endpoints' elements.
func NewCompositionSpace(endpoints []Composition) (*CompositionSpace, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("%w: no endpoints", ErrMalformedSpace)
	}
	seen := map[Element]bool{}
	var elements []Element
	for i, c := range endpoints {
		if c.IsEmpty() {
			return nil, fmt.Errorf("%w: endpoint %d is empty", ErrMalformedSpace, i)
		}
		for _, e := range c.Elements() {
			if !seen[e] {
				seen[e] = true
				elements = append(elements, e)
			}
		}
	}
	sortByZ(elements)

	basis := make([][]float64, len(endpoints))
	for i, c := range endpoints {
		basis[i] = sumNormalized(fractionVector(c, elements))
	}

	return &CompositionSpace{
		elements:  elements,
		endpoints: append([]Composition(nil), endpoints...),
		basis:     basis,
	}, nil
}

// Contains is a least-squares non-negativity test: the candidate's fraction
// vector is decomposed over the basis and every coefficient must be
// >= -1e-5. It approximates convex-hull membership and does not require the
// coefficients to sum to 1.
func (s *CompositionSpace) Contains(c Composition) bool {
	for _, e := range c.Elements() {
		if !s.hasElement(e) {
			return false
		}
	}
	coefs, err := s.decompose(c)
	if err != nil {
		return false
	}
	for _, x := range coefs {
		if x < containsTolerance {
			return false
		}
	}
	return true
}

func (s *CompositionSpace) decompose(c Composition) (coefs []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			coefs, err = nil, fmt.Errorf("decompose %s: %v", c, r)
		}
	}()

	rows, cols := len(s.elements), len(s.basis)
	a := mat.NewDense(rows, cols, nil)
	for j, v := range s.basis {
		for i := range v {
			a.Set(i, j, v[i])
		}
	}
	b := mat.NewVecDense(rows, fractionVector(c, s.elements))

	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		return nil, err
	}
	return x.RawVector().Data, nil
}

// RandomIntegerComposition draws one uniform weight per endpoint, sums the
// weighted endpoint fractions and scales the sum to a target atom count drawn
// from [minAtoms, maxAtoms]. Each element is rounded independently, so the
// total can miss the target by a little. Weights are not renormalized across
// endpoints, so this is not a uniform sample over the region.
func (s *CompositionSpace) RandomIntegerComposition(r *rng.Source, minAtoms, maxAtoms int) Composition {
	summed := make([]float64, len(s.elements))
	total := 0.0
	for total == 0 {
		for i := range summed {
			summed[i] = 0
		}
		for _, endpoint := range s.endpoints {
			w := r.Float64()
			for i, e := range s.elements {
				amount := endpoint.Fraction(e) * w
				summed[i] += amount
				total += amount
			}
		}
	}

	target := r.IntBetween(minAtoms, maxAtoms)
	counts := make(map[Element]float64, len(s.elements))
	for i, e := range s.elements {
		counts[e] = math.Round(summed[i] * float64(target) / total)
	}
	out, _ := NewComposition(counts)
	return out
}

func (s *CompositionSpace) NumDimensions() int {
	return len(s.endpoints)
}

func (s *CompositionSpace) Elements() []Element {
	return append([]Element(nil), s.elements...)
}

func (s *CompositionSpace) Endpoints() []Composition {
	return append([]Composition(nil), s.endpoints...)
}

// Basis returns a copy of the normalized endpoint vectors, one per endpoint,
// indexed like Elements.
func (s *CompositionSpace) Basis() [][]float64 {
	out := make([][]float64, len(s.basis))
	for i, v := range s.basis {
		out[i] = append([]float64(nil), v...)
	}
	return out
}

func (s *CompositionSpace) String() string {
	parts := make([]string, len(s.endpoints))
	for i, c := range s.endpoints {
		parts[i] = c.String()
	}
	return fmt.Sprintf("elements %v with endpoints [%s]", s.elements, strings.Join(parts, " "))
}

func (s *CompositionSpace) hasElement(e Element) bool {
	for _, own := range s.elements {
		if own == e {
			return true
		}
	}
	return false
}

func fractionVector(c Composition, elements []Element) []float64 {
	out := make([]float64, len(elements))
	for i, e := range elements {
		out[i] = c.Fraction(e)
	}
	return out
}

func sumNormalized(v []float64) []float64 {
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	out := make([]float64, len(v))
	if sum == 0 {
		return out
	}
	for i, x := range v {
		out[i] = x / sum
	}
	return out
}
