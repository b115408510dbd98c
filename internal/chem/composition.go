package chem

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Composition maps elements to non-negative amounts. Amounts are either
// integer atom counts (a stoichiometry) or fractions; Fraction normalizes
// either view to sum 1. A Composition is never mutated after construction.
type Composition struct {
	amounts map[Element]float64
}

func NewComposition(amounts map[Element]float64) (Composition, error) {
	out := make(map[Element]float64, len(amounts))
	for e, a := range amounts {
		if a < 0 || math.IsNaN(a) || math.IsInf(a, 0) {
			return Composition{}, fmt.Errorf("invalid amount %v for %s", a, e.Symbol)
		}
		if a == 0 {
			continue
		}
		out[e] = a
	}
	return Composition{amounts: out}, nil
}

// FromCounts builds an integer-amount composition.
func FromCounts(counts map[Element]int) (Composition, error) {
	amounts := make(map[Element]float64, len(counts))
	for e, n := range counts {
		amounts[e] = float64(n)
	}
	return NewComposition(amounts)
}

// Pure is a single-element composition of amount 1.
func Pure(e Element) Composition {
	return Composition{amounts: map[Element]float64{e: 1}}
}

var formulaToken = regexp.MustCompile(`([A-Z][a-z]?)(\d*\.?\d*)`)

// ParseFormula reads formulas such as "H2O" or "Mg2SiO4". Repeated symbols
// accumulate.
func ParseFormula(formula string) (Composition, error) {
	formula = strings.TrimSpace(formula)
	if formula == "" {
		return Composition{}, fmt.Errorf("empty formula")
	}
	matches := formulaToken.FindAllStringSubmatchIndex(formula, -1)
	amounts := map[Element]float64{}
	consumed := 0
	for _, m := range matches {
		if m[0] != consumed {
			return Composition{}, fmt.Errorf("malformed formula %q at offset %d", formula, consumed)
		}
		consumed = m[1]
		e, err := ElementBySymbol(formula[m[2]:m[3]])
		if err != nil {
			return Composition{}, err
		}
		amount := 1.0
		if num := formula[m[4]:m[5]]; num != "" {
			amount, err = strconv.ParseFloat(num, 64)
			if err != nil {
				return Composition{}, fmt.Errorf("malformed amount %q in %q", num, formula)
			}
		}
		amounts[e] += amount
	}
	if consumed != len(formula) {
		return Composition{}, fmt.Errorf("malformed formula %q at offset %d", formula, consumed)
	}
	return NewComposition(amounts)
}

// Elements returns the elements with a non-zero amount, sorted by atomic number.
func (c Composition) Elements() []Element {
	out := make([]Element, 0, len(c.amounts))
	for e := range c.amounts {
		out = append(out, e)
	}
	sortByZ(out)
	return out
}

func (c Composition) Has(e Element) bool {
	_, ok := c.amounts[e]
	return ok
}

func (c Composition) Amount(e Element) float64 {
	return c.amounts[e]
}

// Count is the amount rounded half away from zero.
func (c Composition) Count(e Element) int {
	return int(math.Round(c.amounts[e]))
}

func (c Composition) NumAtoms() float64 {
	total := 0.0
	for _, a := range c.amounts {
		total += a
	}
	return total
}

// Fraction is the element's share of the total amount; zero for absent
// elements and for an empty composition.
func (c Composition) Fraction(e Element) float64 {
	total := c.NumAtoms()
	if total == 0 {
		return 0
	}
	return c.amounts[e] / total
}

func (c Composition) IsEmpty() bool {
	return len(c.amounts) == 0
}

func (c Composition) String() string {
	var b strings.Builder
	for _, e := range c.Elements() {
		a := c.amounts[e]
		b.WriteString(e.Symbol)
		if a == math.Trunc(a) {
			b.WriteString(strconv.Itoa(int(a)))
		} else {
			b.WriteString(strconv.FormatFloat(a, 'g', 4, 64))
		}
	}
	return b.String()
}

func sortByZ(elements []Element) {
	sort.Slice(elements, func(i, j int) bool { return elements[i].Z < elements[j].Z })
}
