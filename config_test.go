package mlsmpm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultConfigValidates(t *testing.T) {
	cfg, err := LoadDefaultConfig()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Greater(t, cfg.ParticleCount, uint32(0))
	assert.Greater(t, cfg.GridSize, uint32(0))
}

func TestValidateRejectsZeroParticleCount(t *testing.T) {
	cfg, err := LoadDefaultConfig()
	require.NoError(t, err)
	cfg.ParticleCount = 0

	err = cfg.Validate()
	require.Error(t, err)
	var target *ConfigInvalidError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, "particle_count", target.Field)
}

func TestValidateRejectsNonPowerOfTwoGridSize(t *testing.T) {
	cfg, err := LoadDefaultConfig()
	require.NoError(t, err)
	cfg.GridSize = 100

	err = cfg.Validate()
	require.Error(t, err)
	var target *ConfigInvalidError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, "grid_size", target.Field)
}

func TestValidateRejectsFlipRatioOutOfRange(t *testing.T) {
	cfg, err := LoadDefaultConfig()
	require.NoError(t, err)
	cfg.FlipRatio = 1.5

	err = cfg.Validate()
	require.Error(t, err)
}

func TestValidateRejectsUnknownEnums(t *testing.T) {
	cfg, err := LoadDefaultConfig()
	require.NoError(t, err)

	cfg.GravityMode = "sideways"
	require.Error(t, cfg.Validate())

	cfg, _ = LoadDefaultConfig()
	cfg.TransferMode = "blend"
	require.Error(t, cfg.Validate())

	cfg, _ = LoadDefaultConfig()
	cfg.MaterialType = "plasma_jelly"
	require.Error(t, cfg.Validate())
}

func TestApplyPatchLeavesUnsetFieldsUntouched(t *testing.T) {
	cfg, err := LoadDefaultConfig()
	require.NoError(t, err)
	originalGravity := cfg.GravityStrength

	newFlip := float32(0.5)
	patched := cfg.Apply(ConfigPatch{FlipRatio: &newFlip})

	assert.Equal(t, float32(0.5), patched.FlipRatio)
	assert.Equal(t, originalGravity, patched.GravityStrength)
}

func TestSnapshotResolvesEnumsAndMaterial(t *testing.T) {
	cfg, err := LoadDefaultConfig()
	require.NoError(t, err)
	cfg.Stiffness = 123
	cfg.DynamicViscosity = 4

	snap := cfg.Snapshot()
	assert.Equal(t, float32(123), snap.Material.Stiffness)
	assert.Equal(t, float32(4), snap.Material.DynamicViscosity)
	assert.Contains(t, []string{"pic", "flip", "hybrid"}, cfg.TransferMode)
	_ = snap.Gravity
	_ = snap.Transfer
}
