package featureflag

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFeatureFlag(t *testing.T) {
	f := New([]string{"DISABLE_PARTICLES"})

	t.Run("run if enabled", func(t *testing.T) {
		var runParticles bool
		f.IfSet(FlagDisableParticles, func() {
			runParticles = true
		})
		require.True(t, runParticles)

		var runCollision bool
		f.IfSet(FlagDisableCollision, func() {
			runCollision = true
		})
		require.False(t, runCollision)
	})

	t.Run("run if disabled", func(t *testing.T) {
		var runParticles bool
		f.IfNotSet(FlagDisableParticles, func() {
			runParticles = true
		})
		require.False(t, runParticles)

		var runCollision bool
		f.IfNotSet(FlagDisableCollision, func() {
			runCollision = true
		})
		require.True(t, runCollision)
	})
}

func TestNewNormalizesFlags(t *testing.T) {
	f := New([]string{" disable_prune", "", "Disable_Bounds_Growth "})
	require.Len(t, f, 2)
	require.True(t, f.IsSet(FlagDisablePrune))
	require.True(t, f.IsSet(FlagDisableBoundsGrowth))
	require.False(t, f.IsSet(FlagDisableDebugEndpoints))
}
