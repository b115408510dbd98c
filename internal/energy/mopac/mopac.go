package mopac

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"structsearch/internal/energy"
	"structsearch/internal/geom"
	"structsearch/internal/organism"
)

const DefaultKeywords = "PM6 GEO-OK XYZ"

const (
	energyMarker    = "TOTAL ENERGY"
	finalMarker     = "FINAL  POINT  AND  DERIVATIVES"
	convergedMarker = "GRADIENTS WERE INITIALLY ACCEPTABLY SMALL"
)

type Config struct {
	ExecPath string `yaml:"exec_path" validate:"required"`
	WorkDir  string `yaml:"work_dir"`
	Keywords string `yaml:"keywords"`
}

// Engine runs MOPAC on a periodic cell and reads back the total energy and
// the optimized geometry.
type Engine struct {
	cfg    Config
	runner energy.Runner
	logger *slog.Logger
}

func New(cfg Config, runner energy.Runner, logger *slog.Logger) (*Engine, error) {
	if strings.TrimSpace(cfg.ExecPath) == "" {
		return nil, fmt.Errorf("mopac: exec path is required")
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	if cfg.Keywords == "" {
		cfg.Keywords = DefaultKeywords
	}
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = energy.ExecRunner{Logger: logger}
	}
	return &Engine{cfg: cfg, runner: runner, logger: logger}, nil
}

func (e *Engine) Name() string { return "mopac" }

func (e *Engine) CannotCompute(*organism.StructureOrg) bool { return false }

// TotalEnergy writes <id>.mop, runs MOPAC on it and parses <id>.out. A usable
// optimized geometry replaces the organism's cell.
func (e *Engine) TotalEnergy(ctx context.Context, o *organism.StructureOrg) (float64, error) {
	if err := os.MkdirAll(e.cfg.WorkDir, 0o755); err != nil {
		return 0, fmt.Errorf("mopac: work dir: %w", err)
	}
	cell := o.Cell()
	input := filepath.Join(e.cfg.WorkDir, o.ID()+".mop")
	output := filepath.Join(e.cfg.WorkDir, o.ID()+".out")

	var b strings.Builder
	if err := WriteInput(&b, e.cfg.Keywords, o.ID(), cell); err != nil {
		return 0, err
	}
	if err := os.WriteFile(input, []byte(b.String()), 0o644); err != nil {
		return 0, fmt.Errorf("mopac: write input: %w", err)
	}
	if _, err := e.runner.Run(ctx, e.cfg.WorkDir, e.cfg.ExecPath, input); err != nil {
		return 0, fmt.Errorf("mopac: %w", err)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		return 0, fmt.Errorf("mopac: read output: %w", err)
	}
	text := string(data)

	relaxed, replaced, err := ParseStructure(strings.NewReader(text), cell)
	switch {
	case err != nil:
		e.logger.Warn("bad MOPAC structure, keeping input cell", "organism", o.ID(), "err", err)
	case replaced:
		o.SetCell(relaxed)
	}

	total, err := ParseEnergy(strings.NewReader(text))
	if err != nil {
		return 0, fmt.Errorf("mopac %s: %w", o.ID(), err)
	}
	return total, nil
}

// WriteInput renders a MOPAC input deck: keywords, a title, one line per atom
// and one Tv line per lattice vector.
func WriteInput(w io.Writer, keywords, id string, cell geom.Cell) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s \nStructure %s\n\n", keywords, id)
	for _, s := range cell.Sites() {
		fmt.Fprintf(bw, "%s  %s\n", s.Element.Symbol, formatVect(s.Coords))
	}
	for _, v := range cell.Lattice() {
		fmt.Fprintf(bw, "Tv   %s\n", formatVect(v))
	}
	return bw.Flush()
}

func formatVect(v geom.Vect) string {
	parts := make([]string, 3)
	for i, x := range v {
		parts[i] = strconv.FormatFloat(x, 'f', 8, 64)
	}
	return strings.Join(parts, "      ")
}

// ParseEnergy returns the fourth field of the first TOTAL ENERGY line.
func ParseEnergy(r io.Reader) (float64, error) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if !strings.Contains(line, energyMarker) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			return 0, fmt.Errorf("%w: short line %q", energy.ErrNoEnergy, line)
		}
		v, err := strconv.ParseFloat(fields[3], 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", energy.ErrNoEnergy, fields[3])
		}
		return v, nil
	}
	if err := sc.Err(); err != nil {
		return 0, err
	}
	return 0, energy.ErrNoEnergy
}

// ParseStructure reads the optimized geometry following the FINAL POINT AND
// DERIVATIVES header: after 2 + 3n + 16 lines come n atom lines and three Tv
// lines, each shaped "index label x flag y flag z". An output reporting that
// the gradients were already small leaves the cell as is, as does an output
// without the header.
func ParseStructure(r io.Reader, cell geom.Cell) (geom.Cell, bool, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return cell, false, err
	}

	for _, line := range lines {
		if strings.Contains(line, convergedMarker) {
			return cell, false, nil
		}
	}

	start := -1
	for i, line := range lines {
		if strings.Contains(line, finalMarker) {
			start = i
			break
		}
	}
	if start < 0 {
		return cell, false, nil
	}

	n := cell.NumSites()
	first := start + 1 + 2 + 3*n + 16
	if first+n+3 > len(lines) {
		return cell, false, fmt.Errorf("structure block truncated: need %d lines after line %d", 2+3*n+16+n+3, start+1)
	}

	old := cell.Sites()
	sites := make([]geom.Site, n)
	for i := 0; i < n; i++ {
		v, err := parseCoordLine(lines[first+i])
		if err != nil {
			return cell, false, err
		}
		sites[i] = geom.Site{Element: old[i].Element, Coords: v}
	}
	var lattice geom.Lattice
	for k := 0; k < 3; k++ {
		v, err := parseCoordLine(lines[first+n+k])
		if err != nil {
			return cell, false, err
		}
		lattice[k] = v
	}
	return geom.NewCell(lattice, sites), true, nil
}

func parseCoordLine(line string) (geom.Vect, error) {
	f := strings.Fields(line)
	if len(f) < 7 {
		return geom.Vect{}, fmt.Errorf("coordinate line %q has %d fields, want 7", line, len(f))
	}
	var v geom.Vect
	for k, idx := range []int{2, 4, 6} {
		x, err := strconv.ParseFloat(f[idx], 64)
		if err != nil {
			return geom.Vect{}, fmt.Errorf("coordinate line %q: %w", line, err)
		}
		v[k] = x
	}
	return v, nil
}
