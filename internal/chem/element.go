package chem

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownElement = errors.New("unknown element")

// Element is immutable reference data. Mass is in amu, Density in g/cm^3 at
// standard conditions.
type Element struct {
	Symbol  string
	Name    string
	Z       int
	Mass    float64
	Density float64
}

func (e Element) String() string {
	return e.Symbol
}

var periodicTable = []Element{
	{"H", "Hydrogen", 1, 1.00794, 0.0000899},
	{"He", "Helium", 2, 4.002602, 0.0001785},
	{"Li", "Lithium", 3, 6.941, 0.534},
	{"Be", "Beryllium", 4, 9.012182, 1.848},
	{"B", "Boron", 5, 10.811, 2.34},
	{"C", "Carbon", 6, 12.0107, 2.267},
	{"N", "Nitrogen", 7, 14.0067, 0.0012506},
	{"O", "Oxygen", 8, 15.9994, 0.001429},
	{"F", "Fluorine", 9, 18.9984032, 0.001696},
	{"Ne", "Neon", 10, 20.1797, 0.0009},
	{"Na", "Sodium", 11, 22.98976928, 0.971},
	{"Mg", "Magnesium", 12, 24.305, 1.738},
	{"Al", "Aluminum", 13, 26.9815386, 2.698},
	{"Si", "Silicon", 14, 28.0855, 2.3296},
	{"P", "Phosphorus", 15, 30.973762, 1.82},
	{"S", "Sulfur", 16, 32.065, 2.067},
	{"Cl", "Chlorine", 17, 35.453, 0.003214},
	{"Ar", "Argon", 18, 39.948, 0.0017837},
	{"K", "Potassium", 19, 39.0983, 0.862},
	{"Ca", "Calcium", 20, 40.078, 1.54},
	{"Sc", "Scandium", 21, 44.955912, 2.989},
	{"Ti", "Titanium", 22, 47.867, 4.54},
	{"V", "Vanadium", 23, 50.9415, 6.11},
	{"Cr", "Chromium", 24, 51.9961, 7.15},
	{"Mn", "Manganese", 25, 54.938045, 7.44},
	{"Fe", "Iron", 26, 55.845, 7.874},
	{"Co", "Cobalt", 27, 58.933195, 8.86},
	{"Ni", "Nickel", 28, 58.6934, 8.912},
	{"Cu", "Copper", 29, 63.546, 8.96},
	{"Zn", "Zinc", 30, 65.38, 7.134},
	{"Ga", "Gallium", 31, 69.723, 5.907},
	{"Ge", "Germanium", 32, 72.64, 5.323},
	{"As", "Arsenic", 33, 74.9216, 5.776},
	{"Se", "Selenium", 34, 78.96, 4.809},
	{"Br", "Bromine", 35, 79.904, 3.122},
	{"Kr", "Krypton", 36, 83.798, 0.003733},
	{"Rb", "Rubidium", 37, 85.4678, 1.532},
	{"Sr", "Strontium", 38, 87.62, 2.64},
	{"Y", "Yttrium", 39, 88.90585, 4.469},
	{"Zr", "Zirconium", 40, 91.224, 6.506},
	{"Nb", "Niobium", 41, 92.90638, 8.57},
	{"Mo", "Molybdenum", 42, 95.96, 10.22},
	{"Tc", "Technetium", 43, 98, 11.5},
	{"Ru", "Ruthenium", 44, 101.07, 12.37},
	{"Rh", "Rhodium", 45, 102.9055, 12.41},
	{"Pd", "Palladium", 46, 106.42, 12.02},
	{"Ag", "Silver", 47, 107.8682, 10.501},
	{"Cd", "Cadmium", 48, 112.411, 8.69},
	{"In", "Indium", 49, 114.818, 7.31},
	{"Sn", "Tin", 50, 118.71, 7.287},
	{"Sb", "Antimony", 51, 121.76, 6.685},
	{"Te", "Tellurium", 52, 127.6, 6.232},
	{"I", "Iodine", 53, 126.90447, 4.93},
	{"Xe", "Xenon", 54, 131.293, 0.005887},
	{"Cs", "Cesium", 55, 132.9054519, 1.873},
	{"Ba", "Barium", 56, 137.327, 3.594},
	{"La", "Lanthanum", 57, 138.90547, 6.145},
	{"Ce", "Cerium", 58, 140.116, 6.77},
	{"Pr", "Praseodymium", 59, 140.90765, 6.773},
	{"Nd", "Neodymium", 60, 144.242, 7.007},
	{"Pm", "Promethium", 61, 145, 7.26},
	{"Sm", "Samarium", 62, 150.36, 7.52},
	{"Eu", "Europium", 63, 151.964, 5.243},
	{"Gd", "Gadolinium", 64, 157.25, 7.895},
	{"Tb", "Terbium", 65, 158.92535, 8.229},
	{"Dy", "Dysprosium", 66, 162.5, 8.55},
	{"Ho", "Holmium", 67, 164.93032, 8.795},
	{"Er", "Erbium", 68, 167.259, 9.066},
	{"Tm", "Thulium", 69, 168.93421, 9.321},
	{"Yb", "Ytterbium", 70, 173.054, 6.965},
	{"Lu", "Lutetium", 71, 174.9668, 9.84},
	{"Hf", "Hafnium", 72, 178.49, 13.31},
	{"Ta", "Tantalum", 73, 180.94788, 16.654},
	{"W", "Tungsten", 74, 183.84, 19.25},
	{"Re", "Rhenium", 75, 186.207, 21.02},
	{"Os", "Osmium", 76, 190.23, 22.61},
	{"Ir", "Iridium", 77, 192.217, 22.56},
	{"Pt", "Platinum", 78, 195.084, 21.46},
	{"Au", "Gold", 79, 196.966569, 19.282},
	{"Hg", "Mercury", 80, 200.59, 13.5336},
	{"Tl", "Thallium", 81, 204.3833, 11.85},
	{"Pb", "Lead", 82, 207.2, 11.342},
	{"Bi", "Bismuth", 83, 208.9804, 9.807},
	{"Po", "Polonium", 84, 209, 9.32},
	{"At", "Astatine", 85, 210, 7},
	{"Rn", "Radon", 86, 222, 0.00973},
	{"Th", "Thorium", 90, 232.03806, 11.72},
	{"U", "Uranium", 92, 238.02891, 18.95},
}

var elementsBySymbol = func() map[string]Element {
	out := make(map[string]Element, len(periodicTable))
	for _, e := range periodicTable {
		out[strings.ToLower(e.Symbol)] = e
	}
	return out
}()

// ElementBySymbol looks up an element case-insensitively.
func ElementBySymbol(symbol string) (Element, error) {
	e, ok := elementsBySymbol[strings.ToLower(strings.TrimSpace(symbol))]
	if !ok {
		return Element{}, fmt.Errorf("%w: %q", ErrUnknownElement, symbol)
	}
	return e, nil
}

// MustElement is for tests and static tables.
func MustElement(symbol string) Element {
	e, err := ElementBySymbol(symbol)
	if err != nil {
		panic(err)
	}
	return e
}
