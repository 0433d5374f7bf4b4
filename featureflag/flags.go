package featureflag

type Flag string

const (
	FlagDisableCollision      Flag = "DISABLE_COLLISION"
	FlagDisableParticles      Flag = "DISABLE_PARTICLES"
	FlagDisablePrune          Flag = "DISABLE_PRUNE"
	FlagDisableBoundsGrowth   Flag = "DISABLE_BOUNDS_GROWTH"
	FlagDisableDebugEndpoints Flag = "DISABLE_DEBUG_ENDPOINTS"
)
