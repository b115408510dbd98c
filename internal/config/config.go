package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"structsearch/internal/chem"
	"structsearch/internal/energy/mopac"
	"structsearch/internal/energy/pairpot"
	"structsearch/internal/geom"
	"structsearch/internal/logging"
	"structsearch/internal/organism"
	"structsearch/internal/storage"
)

var ErrInvalidConfig = errors.New("invalid config")

var validate *validator.Validate

func init() {
	validate = validator.New()
	if err := validate.RegisterValidation("element", validateElement); err != nil {
		panic(fmt.Sprintf("register element validation: %v", err))
	}
}

// validateElement accepts symbols present in the element table.
func validateElement(fl validator.FieldLevel) bool {
	_, err := chem.ElementBySymbol(fl.Field().String())
	return err == nil
}

// RunConfig describes one search run as read from YAML.
type RunConfig struct {
	Seed              int64                `yaml:"seed"`
	Population        int                  `yaml:"population" validate:"gt=0"`
	Workers           int                  `yaml:"workers" validate:"gte=0"`
	EvaluationTimeout time.Duration        `yaml:"evaluation_timeout"`
	MaxCreateAttempts int                  `yaml:"max_create_attempts" validate:"gte=0"`
	Constraints       organism.Constraints `yaml:"constraints"`
	// CompositionSpace holds whitespace separated space tokens, e.g. "2 Mg O".
	CompositionSpace string         `yaml:"composition_space"`
	Creator          CreatorConfig  `yaml:"creator"`
	Energy           EnergyConfig   `yaml:"energy"`
	Store            StoreConfig    `yaml:"store"`
	Log              logging.Config `yaml:"log"`
}

type CreatorConfig struct {
	Kind   string        `yaml:"kind" validate:"oneof=units random"`
	Units  UnitsConfig   `yaml:"units"`
	Random DensityConfig `yaml:"random"`
}

type DensityConfig struct {
	TargetDensity        float64 `yaml:"target_density" validate:"gte=0"`
	DensityTolerance     float64 `yaml:"density_tolerance" validate:"gte=0,lt=1"`
	MaxDensityAttempts   int     `yaml:"max_density_attempts" validate:"gte=0"`
	MaxPlacementFailures int     `yaml:"max_placement_failures" validate:"gte=0"`
}

// UnitsConfig takes either the flat token layout or structured templates.
// With tokens, target density, tolerance and the units-only flag come from
// the tokens and the matching YAML keys are ignored.
type UnitsConfig struct {
	Tokens        string `yaml:"tokens"`
	UnitsOnly     bool   `yaml:"units_only"`
	DensityConfig `yaml:",inline"`
	Templates     []TemplateConfig `yaml:"templates" validate:"dive"`
}

type TemplateConfig struct {
	Name  string       `yaml:"name"`
	Count CountConfig  `yaml:"count"`
	Sites []SiteConfig `yaml:"sites" validate:"required,min=1,dive"`
}

// CountConfig is exact, a min/max range, or all zero for automatic.
type CountConfig struct {
	Exact int `yaml:"exact" validate:"gte=0"`
	Min   int `yaml:"min" validate:"gte=0"`
	Max   int `yaml:"max" validate:"gte=0"`
}

type SiteConfig struct {
	Element string  `yaml:"element" validate:"required,element"`
	X       float64 `yaml:"x"`
	Y       float64 `yaml:"y"`
	Z       float64 `yaml:"z"`
}

type EnergyConfig struct {
	Kind    string         `yaml:"kind" validate:"oneof=mopac pairpot"`
	Mopac   mopac.Config   `yaml:"mopac" validate:"-"`
	Pairpot pairpot.Config `yaml:"pairpot" validate:"-"`
}

type StoreConfig struct {
	Kind   string `yaml:"kind" validate:"omitempty,oneof=memory sqlite"`
	DBPath string `yaml:"db_path"`
}

// Default is the baseline every file is merged onto.
func Default() RunConfig {
	return RunConfig{
		Seed:       1,
		Population: 10,
		Workers:    1,
		Constraints: organism.Constraints{
			MinInteratomicDistance: 1.0,
			MinNumAtoms:            1,
			MaxNumAtoms:            20,
			Lattice: geom.LatticeBounds{
				MinLength: 2,
				MaxLength: 20,
				MinAngle:  60,
				MaxAngle:  120,
			},
		},
		Creator: CreatorConfig{Kind: "random"},
		Energy: EnergyConfig{
			Kind:    "pairpot",
			Pairpot: pairpot.Config{Epsilon: 0.0104, Sigma: 3.4},
		},
		Store: StoreConfig{Kind: storage.DefaultStoreKind},
		Log:   logging.Config{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result.
func Load(path string) (RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunConfig{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := decode(data)
	if err != nil {
		return RunConfig{}, err
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return RunConfig{}, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates it. Unknown keys are
// rejected.
func Parse(data []byte) (RunConfig, error) {
	cfg, err := decode(data)
	if err != nil {
		return RunConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return RunConfig{}, err
	}
	return cfg, nil
}

func decode(data []byte) (RunConfig, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return RunConfig{}, fmt.Errorf("%w: parse yaml: %v", ErrInvalidConfig, err)
	}
	return cfg, nil
}

func applyEnv(cfg *RunConfig) {
	if v := os.Getenv("STRUCTSEARCH_SEED"); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Seed = i
		}
	}
	if v := os.Getenv("STRUCTSEARCH_WORKERS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Workers = i
		}
	}
	if v := os.Getenv("STRUCTSEARCH_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func (c RunConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.EvaluationTimeout < 0 {
		return fmt.Errorf("%w: evaluation timeout must be >= 0", ErrInvalidConfig)
	}
	if err := c.Constraints.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	needSpace := c.Creator.Kind == "random"
	if c.Creator.Kind == "units" {
		u := c.Creator.Units
		hasTokens := strings.TrimSpace(u.Tokens) != ""
		switch {
		case hasTokens && len(u.Templates) > 0:
			return fmt.Errorf("%w: units take tokens or templates, not both", ErrInvalidConfig)
		case !hasTokens && len(u.Templates) == 0:
			return fmt.Errorf("%w: units need tokens or templates", ErrInvalidConfig)
		}
		// The tokens carry their own units-only flag, so the space check for
		// them happens once they are parsed.
		needSpace = !hasTokens && !u.UnitsOnly
	}
	if needSpace && strings.TrimSpace(c.CompositionSpace) == "" {
		return fmt.Errorf("%w: creator %q needs a composition space", ErrInvalidConfig, c.Creator.Kind)
	}
	if c.CompositionSpace != "" {
		if _, err := chem.NewCompositionSpaceFromTokens(strings.Fields(c.CompositionSpace)); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}

	switch c.Energy.Kind {
	case "mopac":
		if err := validate.Struct(c.Energy.Mopac); err != nil {
			return fmt.Errorf("%w: mopac: %v", ErrInvalidConfig, err)
		}
	case "pairpot":
		if err := validate.Struct(c.Energy.Pairpot); err != nil {
			return fmt.Errorf("%w: pairpot: %v", ErrInvalidConfig, err)
		}
	}
	if c.Store.Kind == "sqlite" && c.Store.DBPath == "" {
		return fmt.Errorf("%w: sqlite store needs db_path", ErrInvalidConfig)
	}
	return nil
}
