package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/visual-odometry/internal/odometry"
	"github.com/banshee-data/visual-odometry/internal/units"
)

// DefaultConfigPath is the path to the canonical odometry defaults file.
const DefaultConfigPath = "config/odometry.defaults.json"

// OdometryConfig is the root configuration for trajectory reconstruction.
// Every field is optional; the Get* accessors fall back to defaults so
// partial files are safe.
type OdometryConfig struct {
	// Window depth and per-axis scale constants (forward, lateral, yaw rate).
	StackSize      *int       `json:"stack_size,omitempty"`
	VelocityScales *[]float64 `json:"velocity_scales,omitempty"`

	// Held-out and training partitions of the dataset.
	TestSequences  []string `json:"test_sequences,omitempty"`
	TrainSequences []string `json:"train_sequences,omitempty"`

	// Dataset layout under <root>/<sequence>/.
	ImageDir  *string `json:"image_dir,omitempty"`
	OdomDir   *string `json:"odom_dir,omitempty"`
	TimesFile *string `json:"times_file,omitempty"`

	// Runtime behaviour.
	Workers         *int    `json:"workers,omitempty"`
	FailOnNonFinite *bool   `json:"fail_on_non_finite,omitempty"`
	SpeedUnits      *string `json:"speed_units,omitempty"`
}

func ptrInt(v int) *int                { return &v }
func ptrBool(v bool) *bool             { return &v }
func ptrString(v string) *string       { return &v }
func ptrFloats(v []float64) *[]float64 { return &v }

// EmptyOdometryConfig returns a config with every field unset.
func EmptyOdometryConfig() *OdometryConfig {
	return &OdometryConfig{}
}

// DefaultOdometryConfig returns a config with every default filled in.
func DefaultOdometryConfig() *OdometryConfig {
	return &OdometryConfig{
		StackSize:       ptrInt(4),
		VelocityScales:  ptrFloats([]float64{1, 1, 1}),
		ImageDir:        ptrString("image"),
		OdomDir:         ptrString("odom"),
		TimesFile:       ptrString("times.txt"),
		Workers:         ptrInt(1),
		FailOnNonFinite: ptrBool(false),
		SpeedUnits:      ptrString(units.MPS),
	}
}

// LoadOdometryConfig loads a config from a JSON file. The file must have a
// .json extension and be at most 1MB.
func LoadOdometryConfig(path string) (*OdometryConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyOdometryConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory
// or one of its parents. Panics if the file cannot be found; intended for
// test setup.
func MustLoadDefaultConfig() *OdometryConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadOdometryConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the set values are usable.
func (c *OdometryConfig) Validate() error {
	if c.StackSize != nil && *c.StackSize <= 0 {
		return fmt.Errorf("stack_size must be positive, got %d", *c.StackSize)
	}
	if c.VelocityScales != nil {
		if len(*c.VelocityScales) != 3 {
			return fmt.Errorf("velocity_scales must have 3 entries, got %d", len(*c.VelocityScales))
		}
		if err := c.GetVelocityScales().Validate(); err != nil {
			return err
		}
	}
	if c.Workers != nil && *c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", *c.Workers)
	}
	if c.SpeedUnits != nil && !units.IsValid(*c.SpeedUnits) {
		return fmt.Errorf("speed_units must be one of %s, got %q", units.GetValidUnitsString(), *c.SpeedUnits)
	}
	seen := make(map[string]bool, len(c.TestSequences))
	for _, s := range c.TestSequences {
		seen[s] = true
	}
	for _, s := range c.TrainSequences {
		if seen[s] {
			return fmt.Errorf("sequence %q is listed for both training and evaluation", s)
		}
	}
	return nil
}

// GetStackSize returns the stack_size value or the default.
func (c *OdometryConfig) GetStackSize() int {
	if c.StackSize == nil {
		return 4
	}
	return *c.StackSize
}

// GetVelocityScales returns the velocity_scales value or unit scales.
func (c *OdometryConfig) GetVelocityScales() odometry.Scales {
	if c.VelocityScales == nil || len(*c.VelocityScales) != 3 {
		return odometry.UnitScales
	}
	v := *c.VelocityScales
	return odometry.Scales{v[0], v[1], v[2]}
}

// GetTestSequences returns the held-out sequences.
func (c *OdometryConfig) GetTestSequences() []string {
	return c.TestSequences
}

// GetTrainSequences returns the training sequences.
func (c *OdometryConfig) GetTrainSequences() []string {
	return c.TrainSequences
}

// GetImageDir returns the image_dir value or the default.
func (c *OdometryConfig) GetImageDir() string {
	if c.ImageDir == nil || *c.ImageDir == "" {
		return "image"
	}
	return *c.ImageDir
}

// GetOdomDir returns the odom_dir value or the default.
func (c *OdometryConfig) GetOdomDir() string {
	if c.OdomDir == nil || *c.OdomDir == "" {
		return "odom"
	}
	return *c.OdomDir
}

// GetTimesFile returns the times_file value or the default.
func (c *OdometryConfig) GetTimesFile() string {
	if c.TimesFile == nil || *c.TimesFile == "" {
		return "times.txt"
	}
	return *c.TimesFile
}

// GetWorkers returns the workers value or the default.
func (c *OdometryConfig) GetWorkers() int {
	if c.Workers == nil {
		return 1
	}
	return *c.Workers
}

// GetFailOnNonFinite returns the fail_on_non_finite value or the default.
func (c *OdometryConfig) GetFailOnNonFinite() bool {
	if c.FailOnNonFinite == nil {
		return false
	}
	return *c.FailOnNonFinite
}

// GetSpeedUnits returns the speed_units value or the default.
func (c *OdometryConfig) GetSpeedUnits() string {
	if c.SpeedUnits == nil {
		return units.MPS
	}
	return *c.SpeedUnits
}

// Params builds the pipeline parameters from the config.
func (c *OdometryConfig) Params() odometry.Params {
	return odometry.Params{
		StackSize:       c.GetStackSize(),
		Scales:          c.GetVelocityScales(),
		FailOnNonFinite: c.GetFailOnNonFinite(),
	}
}
