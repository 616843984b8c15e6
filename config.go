package mlsmpm

import (
	_ "embed"
	"fmt"
	"math/bits"

	"gopkg.in/yaml.v3"

	"github.com/gekko3d/mlsmpm/sim/core"
	"github.com/gekko3d/mlsmpm/sim/kernels"
)

//go:embed config_defaults.yaml
var defaultsYAML []byte

// Config is the solver's construction-time configuration (spec.md §6
// config keys). Fields map 1:1 to the enumerated config keys; gravity and
// transfer mode are stored as their string spellings so the YAML file
// stays human-editable, and resolved to the kernels package's enums by
// resolveEnums.
type Config struct {
	ParticleCount uint32 `yaml:"particle_count"`
	GridSize      uint32 `yaml:"grid_size"`

	GravityMode     string  `yaml:"gravity_mode"`
	GravityStrength float32 `yaml:"gravity_strength"`
	Speed           float32 `yaml:"speed"`

	Stiffness        float32 `yaml:"stiffness"`
	DynamicViscosity float32 `yaml:"dynamic_viscosity"`
	RestDensity      float32 `yaml:"rest_density"`
	Turbulence       float32 `yaml:"turbulence"`

	TransferMode string  `yaml:"transfer_mode"`
	FlipRatio    float32 `yaml:"flip_ratio"`

	AdaptiveTimestep bool    `yaml:"adaptive_timestep"`
	CFLTarget        float32 `yaml:"cfl_target"`

	VorticityEnabled bool    `yaml:"vorticity_enabled"`
	VorticityEpsilon float32 `yaml:"vorticity_epsilon"`

	SurfaceTensionEnabled bool    `yaml:"surface_tension_enabled"`
	SurfaceTensionCoeff   float32 `yaml:"surface_tension_coeff"`

	MaterialType string `yaml:"material_type"`
	ColorMode    string `yaml:"color_mode"`
}

// ConfigPatch carries a sparse update for set_config (spec.md §6); nil
// fields leave the corresponding Config field untouched.
type ConfigPatch struct {
	GravityMode      *string
	GravityStrength  *float32
	Speed            *float32
	Stiffness        *float32
	DynamicViscosity *float32
	RestDensity      *float32
	Turbulence       *float32
	TransferMode     *string
	FlipRatio        *float32
	AdaptiveTimestep *bool
	CFLTarget        *float32
	VorticityEnabled *bool
	VorticityEpsilon *float32
	SurfTenEnabled   *bool
	SurfTenCoeff     *float32
	MaterialType     *string
	ColorMode        *string
}

// ConfigSnapshot is the immutable view passed into a running step (spec.md
// §9: "pass an immutable ConfigSnapshot into step, apply patches between
// steps, never mid-step").
type ConfigSnapshot struct {
	Config   Config
	Material core.MaterialParams
	Gravity  kernels.GravityMode
	Transfer kernels.TransferMode
}

// LoadDefaultConfig parses the embedded config_defaults.yaml into a Config.
func LoadDefaultConfig() (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		return Config{}, fmt.Errorf("mlsmpm: parsing embedded config defaults: %w", err)
	}
	return cfg, nil
}

// Apply merges a ConfigPatch into cfg, returning the updated copy. The
// caller is responsible for calling Validate() before using the result.
func (cfg Config) Apply(patch ConfigPatch) Config {
	if patch.GravityMode != nil {
		cfg.GravityMode = *patch.GravityMode
	}
	if patch.GravityStrength != nil {
		cfg.GravityStrength = *patch.GravityStrength
	}
	if patch.Speed != nil {
		cfg.Speed = *patch.Speed
	}
	if patch.Stiffness != nil {
		cfg.Stiffness = *patch.Stiffness
	}
	if patch.DynamicViscosity != nil {
		cfg.DynamicViscosity = *patch.DynamicViscosity
	}
	if patch.RestDensity != nil {
		cfg.RestDensity = *patch.RestDensity
	}
	if patch.Turbulence != nil {
		cfg.Turbulence = *patch.Turbulence
	}
	if patch.TransferMode != nil {
		cfg.TransferMode = *patch.TransferMode
	}
	if patch.FlipRatio != nil {
		cfg.FlipRatio = *patch.FlipRatio
	}
	if patch.AdaptiveTimestep != nil {
		cfg.AdaptiveTimestep = *patch.AdaptiveTimestep
	}
	if patch.CFLTarget != nil {
		cfg.CFLTarget = *patch.CFLTarget
	}
	if patch.VorticityEnabled != nil {
		cfg.VorticityEnabled = *patch.VorticityEnabled
	}
	if patch.VorticityEpsilon != nil {
		cfg.VorticityEpsilon = *patch.VorticityEpsilon
	}
	if patch.SurfTenEnabled != nil {
		cfg.SurfaceTensionEnabled = *patch.SurfTenEnabled
	}
	if patch.SurfTenCoeff != nil {
		cfg.SurfaceTensionCoeff = *patch.SurfTenCoeff
	}
	if patch.MaterialType != nil {
		cfg.MaterialType = *patch.MaterialType
	}
	if patch.ColorMode != nil {
		cfg.ColorMode = *patch.ColorMode
	}
	return cfg
}

// Validate enforces the ConfigInvalid conditions spec.md §7 names
// explicitly (particleCount = 0, gridSize not a power of two within
// range, flipRatio outside [0,1]) plus the enum fields this config adds.
func (cfg Config) Validate() error {
	if cfg.ParticleCount == 0 {
		return &ConfigInvalidError{Field: "particle_count", Value: cfg.ParticleCount, Reason: "must be > 0"}
	}
	if cfg.GridSize < 8 || cfg.GridSize > 256 || bits.OnesCount32(cfg.GridSize) != 1 {
		return &ConfigInvalidError{Field: "grid_size", Value: cfg.GridSize, Reason: "must be a power of two in [8, 256]"}
	}
	if cfg.FlipRatio < 0 || cfg.FlipRatio > 1 {
		return &ConfigInvalidError{Field: "flip_ratio", Value: cfg.FlipRatio, Reason: "must be in [0, 1]"}
	}
	if cfg.CFLTarget < 0.3 || cfg.CFLTarget > 1.0 {
		return &ConfigInvalidError{Field: "cfl_target", Value: cfg.CFLTarget, Reason: "must be in [0.3, 1.0]"}
	}
	if _, ok := gravityModes[cfg.GravityMode]; !ok {
		return &ConfigInvalidError{Field: "gravity_mode", Value: cfg.GravityMode, Reason: "unknown gravity mode"}
	}
	if _, ok := transferModes[cfg.TransferMode]; !ok {
		return &ConfigInvalidError{Field: "transfer_mode", Value: cfg.TransferMode, Reason: "unknown transfer mode"}
	}
	if _, ok := materialTypes[cfg.MaterialType]; !ok {
		return &ConfigInvalidError{Field: "material_type", Value: cfg.MaterialType, Reason: "unknown material type"}
	}
	return nil
}

var gravityModes = map[string]kernels.GravityMode{
	"down_z":        kernels.DownZ,
	"back_z":        kernels.BackZ,
	"center_radial": kernels.CenterRadial,
	"device_sensor": kernels.DeviceSensor,
}

var transferModes = map[string]kernels.TransferMode{
	"pic":    kernels.PIC,
	"flip":   kernels.FLIP,
	"hybrid": kernels.Hybrid,
}

var materialTypes = map[string]core.MaterialID{
	"fluid":   core.Fluid,
	"elastic": core.Elastic,
	"sand":    core.Sand,
	"snow":    core.Snow,
	"foam":    core.Foam,
	"viscous": core.Viscous,
	"rigid":   core.Rigid,
	"plasma":  core.Plasma,
}

// Snapshot resolves the string enum fields and builds the immutable
// ConfigSnapshot a running step reads from.
func (cfg Config) Snapshot() ConfigSnapshot {
	params := core.DefaultMaterialParams()
	params.Stiffness = cfg.Stiffness
	params.DynamicViscosity = cfg.DynamicViscosity
	params.RestDensity = cfg.RestDensity

	return ConfigSnapshot{
		Config:   cfg,
		Material: params,
		Gravity:  gravityModes[cfg.GravityMode],
		Transfer: transferModes[cfg.TransferMode],
	}
}

// Material resolves the configured material_type string to a core.MaterialID.
func (cfg Config) Material() core.MaterialID {
	return materialTypes[cfg.MaterialType]
}
