package main

import (
	"testing"
	"time"

	"github.com/aukilabs/bsptree/bsp"
	"github.com/aukilabs/bsptree/models"
	"github.com/stretchr/testify/require"
)

func validTestConfig() config {
	return config{
		LogSummaryInterval: time.Minute,
		World: worldConfig{
			Dimensions:     3,
			MaxDepth:       4,
			BranchCapacity: 128,
			Size:           64,
		},
		Entities: entitiesConfig{
			Count: 32,
			Size:  1,
			Speed: 2,
			Seed:  21,
		},
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		scenario string
		edit     func(*config)
		err      bool
	}{
		{
			scenario: "valid config",
			edit:     func(*config) {},
		},
		{
			scenario: "invalid dimensions",
			edit:     func(c *config) { c.World.Dimensions = 1 },
			err:      true,
		},
		{
			scenario: "invalid size",
			edit:     func(c *config) { c.World.Size = 0 },
			err:      true,
		},
		{
			scenario: "negative prune interval",
			edit:     func(c *config) { c.World.PruneInterval = -1 },
			err:      true,
		},
		{
			scenario: "negative entity count",
			edit:     func(c *config) { c.Entities.Count = -1 },
			err:      true,
		},
		{
			scenario: "no summary interval",
			edit:     func(c *config) { c.LogSummaryInterval = 0 },
			err:      true,
		},
	}

	for _, test := range tests {
		t.Run(test.scenario, func(t *testing.T) {
			conf := validTestConfig()
			test.edit(&conf)

			err := validateConfig(conf)
			if test.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestSeedEntities(t *testing.T) {
	conf := validTestConfig()

	world, err := models.NewWorld(1, models.WorldConfig{
		Dimensions:     conf.World.Dimensions,
		MaxDepth:       conf.World.MaxDepth,
		BranchCapacity: conf.World.BranchCapacity,
		Size:           conf.World.Size,
	})
	require.NoError(t, err)
	defer world.Close()

	seedEntities(world, conf.Entities)
	require.Equal(t, conf.Entities.Count, world.EntityCount())

	var stats bsp.Stats
	world.WithTree(func(tree *bsp.Tree) {
		stats = tree.Stats()
	})
	require.Equal(t, conf.Entities.Count, stats.Leaves)
	require.Zero(t, stats.InfiniteLeaves)

	for _, e := range world.Entities() {
		require.True(t, world.Universe().Contains(e.Bounds(3)))
	}
}
