package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for configuration when no path is given.
const DefaultPath = "testimpact.yaml"

// ErrInvalidConfig wraps validation and override parse failures.
var ErrInvalidConfig = errors.New("invalid config")

var validate = validator.New()

type Config struct {
	Project struct {
		Root string `yaml:"root" validate:"required"`
		// BaseRef is the git revision changes are computed against. Empty disables change detection.
		BaseRef string `yaml:"base_ref"`
	} `yaml:"project"`
	ApplicationID string `yaml:"application_id" validate:"max=256"`
	Scan          struct {
		SrcLocations        []string `yaml:"src_locations" validate:"dive,required"`
		TestLocations       []string `yaml:"test_locations" validate:"dive,required"`
		DependencyJars      []string `yaml:"dependency_jars" validate:"dive,required"`
		Filter              string   `yaml:"filter"`
		AlwaysRunAnnotation string   `yaml:"always_run_annotation"`
		TraceMap            string   `yaml:"trace_map"`
		EnablePreview       bool     `yaml:"enable_preview"`
		Workers             int      `yaml:"workers" validate:"min=0,max=1024"`
	} `yaml:"scan"`
	Storage struct {
		DBPath string `yaml:"db_path" validate:"required"`
		// Export optionally names a JSON file the links are also written to.
		Export string `yaml:"export"`
	} `yaml:"storage"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.Project.Root = "."
	cfg.Storage.DBPath = "testimpact.db"
	return &cfg
}

// LoadConfig reads path over the defaults, then applies TESTIMPACT_*
// environment overrides (a .env file in the working directory is loaded
// first) and validates the result.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	// 2. Load YAML config
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(file, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv is LoadConfig without a file.
func FromEnv() (*Config, error) {
	_ = godotenv.Load()
	cfg := Default()
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) finish() error {
	if err := c.applyEnv(); err != nil {
		return err
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// applyEnv overrides fields from TESTIMPACT_* variables.
func (c *Config) applyEnv() error {
	if v := os.Getenv("TESTIMPACT_ROOT"); v != "" {
		c.Project.Root = v
	}
	if v := os.Getenv("TESTIMPACT_BASE_REF"); v != "" {
		c.Project.BaseRef = v
	}
	if v := os.Getenv("TESTIMPACT_APPLICATION_ID"); v != "" {
		c.ApplicationID = v
	}
	if v := os.Getenv("TESTIMPACT_SRC_LOCATIONS"); v != "" {
		c.Scan.SrcLocations = splitList(v)
	}
	if v := os.Getenv("TESTIMPACT_TEST_LOCATIONS"); v != "" {
		c.Scan.TestLocations = splitList(v)
	}
	if v := os.Getenv("TESTIMPACT_FILTER"); v != "" {
		c.Scan.Filter = v
	}
	if v := os.Getenv("TESTIMPACT_TRACE_MAP"); v != "" {
		c.Scan.TraceMap = v
	}
	if v := os.Getenv("TESTIMPACT_ENABLE_PREVIEW"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: TESTIMPACT_ENABLE_PREVIEW: %w", ErrInvalidConfig, err)
		}
		c.Scan.EnablePreview = b
	}
	if v := os.Getenv("TESTIMPACT_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: TESTIMPACT_WORKERS: %w", ErrInvalidConfig, err)
		}
		c.Scan.Workers = n
	}
	if v := os.Getenv("TESTIMPACT_DB"); v != "" {
		c.Storage.DBPath = v
	}
	return nil
}

// splitList splits on commas and the OS path list separator.
func splitList(v string) []string {
	fields := strings.FieldsFunc(v, func(r rune) bool {
		return r == ',' || r == os.PathListSeparator
	})
	out := fields[:0]
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
