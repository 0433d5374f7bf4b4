package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"reflect"
	"syscall"
	"time"

	"github.com/aukilabs/bsptree/bsp"
	"github.com/aukilabs/bsptree/featureflag"
	bsphttp "github.com/aukilabs/bsptree/http"
	"github.com/aukilabs/bsptree/models"
	"github.com/aukilabs/bsptree/modules"
	"github.com/aukilabs/bsptree/modules/collision"
	"github.com/aukilabs/bsptree/modules/particles"
	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
)

var (
	// The bsptree version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "bsptree_info",
		Help:        "bsptree information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string          `cli:""        env:"BSPTREE_ADDR"                 help:"Listening address for the debug API."`
	AdminAddr          string          `cli:""        env:"BSPTREE_ADMIN_ADDR"           help:"Admin listening address."`
	LogLevel           string          `cli:""        env:"BSPTREE_LOG_LEVEL"            help:"Log level (debug|info|warning|error)."`
	LogIndent          bool            `cli:""        env:"BSPTREE_LOG_INDENT"           help:"Indent logs."`
	LogSummaryInterval time.Duration   `cli:",hidden" env:"BSPTREE_LOG_SUMMARY_INTERVAL" help:"The duration between each tree summary log."`
	World              worldConfig     `cli:""        env:"-"                            help:"World configuration."`
	Entities           entitiesConfig  `cli:""        env:"-"                            help:"Seeded entities configuration."`
	Particles          particlesConfig `cli:",hidden" env:"-"                            help:"Particles configuration."`
	Events             eventsConfig    `cli:",hidden" env:"-"                            help:"Event pusher configuration."`
	FeatureFlags       []string        `cli:",hidden" env:"BSPTREE_FEATURE_FLAGS"        help:"Comma separated feature flags"`
	Version            bool            `cli:""        env:"-"                            help:"Show version."`
	Help               bool            `cli:""        env:"-"                            help:"Show help."`
}

type worldConfig struct {
	Dimensions     int           `cli:""        env:"BSPTREE_WORLD_DIMENSIONS"      help:"The number of indexed axes (2|3)."`
	MaxDepth       int           `cli:""        env:"BSPTREE_WORLD_MAX_DEPTH"       help:"The maximum subdivision depth of the tree."`
	BranchCapacity int           `cli:""        env:"BSPTREE_WORLD_BRANCH_CAPACITY" help:"The number of preallocated tree branches."`
	Size           float64       `cli:""        env:"BSPTREE_WORLD_SIZE"            help:"The size of the universe on every axis."`
	SplitEpsilon   float64       `cli:",hidden" env:"BSPTREE_WORLD_SPLIT_EPSILON"   help:"The distance under which a box is considered on a split plane."`
	FrameDuration  time.Duration `cli:",hidden" env:"BSPTREE_WORLD_FRAME_DURATION"  help:"The duration of a world frame."`
	PruneInterval  int           `cli:",hidden" env:"BSPTREE_WORLD_PRUNE_INTERVAL"  help:"The number of frames between two empty branch prunes."`
}

type entitiesConfig struct {
	Count int     `cli:""        env:"BSPTREE_ENTITIES_COUNT" help:"The number of characters seeded in the world."`
	Size  float64 `cli:",hidden" env:"BSPTREE_ENTITIES_SIZE"  help:"The half size of a character."`
	Speed float64 `cli:",hidden" env:"BSPTREE_ENTITIES_SPEED" help:"The maximum speed of a character on each axis."`
	Seed  int64   `cli:""        env:"BSPTREE_ENTITIES_SEED"  help:"The seed used to place characters. 0 uses a random seed."`
}

type particlesConfig struct {
	SpawnRate    int           `cli:",hidden" env:"BSPTREE_PARTICLES_SPAWN_RATE"    help:"The number of particles spawned per frame."`
	MaxParticles int           `cli:",hidden" env:"BSPTREE_PARTICLES_MAX"           help:"The maximum number of particles alive at once."`
	Lifetime     time.Duration `cli:",hidden" env:"BSPTREE_PARTICLES_LIFETIME"      help:"The time a particle stays alive."`
	Speed        float64       `cli:",hidden" env:"BSPTREE_PARTICLES_SPEED"         help:"The maximum speed of a particle on each axis."`
	Size         float64       `cli:",hidden" env:"BSPTREE_PARTICLES_SIZE"          help:"The half size of a particle."`
	Seed         int64         `cli:",hidden" env:"BSPTREE_PARTICLES_SEED"          help:"The seed used to spawn particles. 0 uses a random seed."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"BSPTREE_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed."`
	FlushInterval time.Duration `cli:",hidden" env:"BSPTREE_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"BSPTREE_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"BSPTREE_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:               ":4000",
		AdminAddr:          ":18190",
		LogLevel:           logs.InfoLevel.String(),
		LogSummaryInterval: time.Minute,
		World: worldConfig{
			Dimensions:     2,
			MaxDepth:       8,
			BranchCapacity: 4096,
			Size:           1024,
			SplitEpsilon:   bsp.DefaultSplitEpsilon,
			FrameDuration:  time.Millisecond * 15,
			PruneInterval:  64,
		},
		Entities: entitiesConfig{
			Count: 256,
			Size:  1,
			Speed: 8,
		},
		Particles: particlesConfig{
			SpawnRate:    4,
			MaxParticles: 512,
			Lifetime:     time.Second * 3,
			Speed:        16,
			Size:         0.25,
		},
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts a world indexed by a dynamic bounding volume tree.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     metrics.HTTPTransport(http.DefaultTransport),
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "bsptree",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	featureFlags := featureflag.New(conf.FeatureFlags)

	worldConf := models.WorldConfig{
		Dimensions:     conf.World.Dimensions,
		MaxDepth:       conf.World.MaxDepth,
		BranchCapacity: conf.World.BranchCapacity,
		Size:           conf.World.Size,
		SplitEpsilon:   conf.World.SplitEpsilon,
		FrameDuration:  conf.World.FrameDuration,
		PruneInterval:  uint64(conf.World.PruneInterval),
		GrowBounds:     true,
	}
	featureFlags.IfSet(featureflag.FlagDisablePrune, func() {
		worldConf.PruneInterval = 0
	})
	featureFlags.IfSet(featureflag.FlagDisableBoundsGrowth, func() {
		worldConf.GrowBounds = false
	})

	world, err := models.NewWorld(1, worldConf)
	if err != nil {
		logs.Fatal(errors.New("creating world failed").Wrap(err))
	}
	defer world.Close()

	seedEntities(world, conf.Entities)

	var mods []modules.Module
	featureFlags.IfNotSet(featureflag.FlagDisableCollision, func() {
		mods = append(mods, &collision.Module{})
	})
	featureFlags.IfNotSet(featureflag.FlagDisableParticles, func() {
		mods = append(mods, particles.New(particles.Config{
			SpawnRate:    conf.Particles.SpawnRate,
			MaxParticles: conf.Particles.MaxParticles,
			Lifetime:     conf.Particles.Lifetime,
			Speed:        conf.Particles.Speed,
			Size:         conf.Particles.Size,
			Seed:         conf.Particles.Seed,
		}))
	})
	unregister := modules.Register(ctx, world, mods...)
	defer unregister()

	go world.StartDispatchFrames()
	go world.StartSummaryWorker(ctx, conf.LogSummaryInterval)

	readinessCheck := func() bool {
		return ctx.Err() == nil
	}

	var service http.ServeMux
	service.Handle("/health", bsphttp.HandleWithCORS(http.HandlerFunc(bsphttp.HandleHealthCheck)))
	service.Handle("/version", bsphttp.HandleWithCORS(http.HandlerFunc(bsphttp.HandleVersion(version))))
	service.Handle("/ready", bsphttp.HandleWithCORS(http.HandlerFunc(bsphttp.HandleReadyCheck(readinessCheck))))

	featureFlags.IfNotSet(featureflag.FlagDisableDebugEndpoints, func() {
		service.Handle("/debug/tree", bsphttp.HandleWithCORS(bsphttp.HandleTreeStats(world)))
		service.Handle("/debug/tree/branches", bsphttp.HandleWithCORS(bsphttp.HandleTreeBranches(world)))
		service.Handle("/debug/tree/query", bsphttp.HandleWithCORS(bsphttp.HandleBoxQuery(world)))
		service.Handle("/debug/tree/ray", bsphttp.HandleWithCORS(bsphttp.HandleRayQuery(world)))
	})

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", bsphttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))
	admin.HandleFunc("/ready", bsphttp.HandleReadyCheck(readinessCheck))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("world", world.UUID).
		WithTag("dimensions", conf.World.Dimensions).
		WithTag("max_depth", conf.World.MaxDepth).
		WithTag("branch_capacity", conf.World.BranchCapacity).
		WithTag("feature_flags", conf.FeatureFlags).
		Info("starting bsptree server")

	bsphttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
			bsphttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)
}

// seedEntities places characters at random positions, their bumpers inside
// the world universe.
func seedEntities(world *models.World, conf entitiesConfig) {
	faker := gofakeit.New(conf.Seed)
	size := world.Size()

	for i := 0; i < conf.Count; i++ {
		var pose models.Pose
		for axis := 0; axis < world.Dimensions(); axis++ {
			lo, hi := conf.Size, size-conf.Size
			if axis == 2 {
				lo, hi = 0, size-2*conf.Size
			}
			pose.Position[axis] = faker.Float64Range(lo, hi)
			pose.Velocity[axis] = faker.Float64Range(-conf.Speed, conf.Speed)
		}

		world.AddEntity(models.NewEntity(world.NewEntityID(), models.EntityKindCharacter, models.Shape{
			Size:    conf.Size,
			SizeBig: models.DefaultSizeBig(conf.Size),
			Height:  conf.Size * 2,
		}, pose))
	}

	logs.WithTag("world", world.UUID).
		WithTag("count", conf.Count).
		Info("entities seeded")
}

func validateConfig(conf config) error {
	if conf.World.Dimensions != 2 && conf.World.Dimensions != 3 {
		return errors.New("world dimensions must be 2 or 3").
			WithTag("dimensions", conf.World.Dimensions)
	}

	if conf.World.Size <= 0 {
		return errors.New("world size must be positive").
			WithTag("size", conf.World.Size)
	}

	if conf.World.PruneInterval < 0 {
		return errors.New("prune interval must not be negative").
			WithTag("prune_interval", conf.World.PruneInterval)
	}

	if conf.Entities.Count < 0 {
		return errors.New("entity count must not be negative").
			WithTag("count", conf.Entities.Count)
	}

	if conf.LogSummaryInterval <= 0 {
		return errors.New("log summary interval must be positive").
			WithTag("interval", conf.LogSummaryInterval)
	}

	return nil
}
