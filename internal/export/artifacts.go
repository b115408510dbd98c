package export

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"structsearch/internal/model"
)

const (
	runFile        = "run.json"
	organismsFile  = "organisms.json"
	energiesFile   = "energies.csv"
	structuresFile = "structures.xyz"
)

// RunArtifacts is everything written for one run.
type RunArtifacts struct {
	Run       model.RunRecord
	Organisms []model.OrganismRecord
}

// WriteRunArtifacts writes the run into outDir/<run id> and returns that
// directory. Organisms are written in the order given.
func WriteRunArtifacts(outDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Run.ID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(outDir, artifacts.Run.ID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, runFile), artifacts.Run); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, organismsFile), artifacts.Organisms); err != nil {
		return "", err
	}
	if err := writeEnergies(filepath.Join(runDir, energiesFile), artifacts.Organisms); err != nil {
		return "", err
	}
	if err := writeStructures(filepath.Join(runDir, structuresFile), artifacts.Organisms); err != nil {
		return "", err
	}
	return runDir, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

// writeEnergies emits one row per organism. Unevaluable organisms get an
// empty energy column.
func writeEnergies(path string, organisms []model.OrganismRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"rank", "id", "composition", "atoms", "total_energy", "energy_per_atom"}); err != nil {
		return err
	}
	for _, o := range organisms {
		total, perAtom := "", ""
		if o.Evaluated && !o.Unevaluable {
			total = strconv.FormatFloat(o.TotalEnergy, 'f', 8, 64)
			perAtom = strconv.FormatFloat(o.EnergyPerAtom, 'f', 8, 64)
		}
		row := []string{strconv.Itoa(o.Rank), o.ID, o.Composition, strconv.Itoa(len(o.Sites)), total, perAtom}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return file.Sync()
}

// writeStructures emits every organism as an extended XYZ frame.
func writeStructures(path string, organisms []model.OrganismRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	for _, o := range organisms {
		if err := WriteXYZ(w, o); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return file.Sync()
}

// WriteXYZ writes one extended XYZ frame for o.
func WriteXYZ(w *bufio.Writer, o model.OrganismRecord) error {
	lattice := make([]string, 0, 9)
	for _, v := range o.Lattice {
		for _, x := range v {
			lattice = append(lattice, strconv.FormatFloat(x, 'f', 6, 64))
		}
	}
	energy := "inf"
	if !o.Evaluated {
		energy = "unknown"
	} else if !o.Unevaluable {
		energy = strconv.FormatFloat(o.EnergyPerAtom, 'f', 8, 64)
	}

	if _, err := fmt.Fprintf(w, "%d\n", len(o.Sites)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Lattice=\"%s\" Properties=species:S:1:pos:R:3 pbc=\"T T T\" id=%s energy_per_atom=%s\n",
		strings.Join(lattice, " "), o.ID, energy); err != nil {
		return err
	}
	for _, s := range o.Sites {
		if _, err := fmt.Fprintf(w, "%-2s %14.8f %14.8f %14.8f\n", s.Element, s.Coords[0], s.Coords[1], s.Coords[2]); err != nil {
			return err
		}
	}
	return nil
}
