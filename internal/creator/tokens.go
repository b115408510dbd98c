package creator

import (
	"fmt"
	"strconv"
	"strings"

	"structsearch/internal/chem"
	"structsearch/internal/geom"
)

// ParseUnitsTokens reads the flat unit layout
//
//	n, size_1..size_n, (symbol x y z) per atom of every unit,
//	counts (n tokens) or ranges (2n tokens, min max per unit),
//	target density, density tolerance, units-only flag
//
// A count of 0, or a 0 0 range, leaves that unit's count automatic.
func ParseUnitsTokens(tokens []string) (UnitsConfig, error) {
	p := tokenReader{tokens: tokens}
	n, err := p.positiveInt("unit count")
	if err != nil {
		return UnitsConfig{}, err
	}
	if n > len(tokens) {
		return UnitsConfig{}, fmt.Errorf("%w: %d units declared in %d tokens", ErrMalformedUnits, n, len(tokens))
	}
	sizes := make([]int, n)
	total := 0
	for i := range sizes {
		if sizes[i], err = p.positiveInt(fmt.Sprintf("size of unit %d", i+1)); err != nil {
			return UnitsConfig{}, err
		}
		total += sizes[i]
	}

	// Everything after the coordinates except the three trailing settings
	// holds counts or ranges.
	countTokens := len(tokens) - p.pos - 4*total - 3
	if countTokens != n && countTokens != 2*n {
		return UnitsConfig{}, fmt.Errorf("%w: %d tokens for %d units, want %d counts or %d range bounds after %d coordinates",
			ErrMalformedUnits, len(tokens), n, n, 2*n, total)
	}

	cfg := UnitsConfig{Units: make([]UnitSpec, n)}
	for i, size := range sizes {
		t := Template{Name: fmt.Sprintf("unit%d", i+1), Sites: make([]geom.Site, size)}
		for a := 0; a < size; a++ {
			sym := p.next()
			e, err := chem.ElementBySymbol(sym)
			if err != nil {
				return UnitsConfig{}, fmt.Errorf("%w: unit %d atom %d: %v", ErrMalformedUnits, i+1, a+1, err)
			}
			var v geom.Vect
			for k := 0; k < 3; k++ {
				if v[k], err = p.float(fmt.Sprintf("unit %d atom %d coordinate", i+1, a+1)); err != nil {
					return UnitsConfig{}, err
				}
			}
			t.Sites[a] = geom.Site{Element: e, Coords: v}
		}
		cfg.Units[i].Template = t
	}

	ranged := countTokens == 2*n
	for i := range cfg.Units {
		if !ranged {
			exact, err := p.nonNegativeInt(fmt.Sprintf("count of unit %d", i+1))
			if err != nil {
				return UnitsConfig{}, err
			}
			cfg.Units[i].Count = CountPolicy{Exact: exact}
			continue
		}
		lo, err := p.nonNegativeInt(fmt.Sprintf("minimum count of unit %d", i+1))
		if err != nil {
			return UnitsConfig{}, err
		}
		hi, err := p.nonNegativeInt(fmt.Sprintf("maximum count of unit %d", i+1))
		if err != nil {
			return UnitsConfig{}, err
		}
		if hi < lo {
			return UnitsConfig{}, fmt.Errorf("%w: unit %d range %d-%d is reversed", ErrMalformedUnits, i+1, lo, hi)
		}
		cfg.Units[i].Count = CountPolicy{Min: lo, Max: hi}
	}

	if cfg.TargetDensity, err = p.float("target density"); err != nil {
		return UnitsConfig{}, err
	}
	if cfg.DensityTolerance, err = p.float("density tolerance"); err != nil {
		return UnitsConfig{}, err
	}
	flag := p.next()
	if cfg.UnitsOnly, err = strconv.ParseBool(flag); err != nil {
		return UnitsConfig{}, fmt.Errorf("%w: units-only flag %q is not a boolean", ErrMalformedUnits, flag)
	}
	return cfg, nil
}

type tokenReader struct {
	tokens []string
	pos    int
}

func (p *tokenReader) next() string {
	if p.pos >= len(p.tokens) {
		return ""
	}
	tok := strings.TrimSpace(p.tokens[p.pos])
	p.pos++
	return tok
}

func (p *tokenReader) positiveInt(what string) (int, error) {
	v, err := p.nonNegativeInt(what)
	if err != nil {
		return 0, err
	}
	if v == 0 {
		return 0, fmt.Errorf("%w: %s must be > 0", ErrMalformedUnits, what)
	}
	return v, nil
}

func (p *tokenReader) nonNegativeInt(what string) (int, error) {
	tok := p.next()
	v, err := strconv.Atoi(tok)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not an integer", ErrMalformedUnits, what, tok)
	}
	if v < 0 {
		return 0, fmt.Errorf("%w: %s must not be negative", ErrMalformedUnits, what)
	}
	return v, nil
}

func (p *tokenReader) float(what string) (float64, error) {
	tok := p.next()
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not a number", ErrMalformedUnits, what, tok)
	}
	return v, nil
}
