package modules

import (
	"context"

	"github.com/aukilabs/bsptree/models"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
)

// Module is the interface that describes a module that extends the world
// frame pass.
type Module interface {
	// Returns the module name.
	Name() string

	// Initializes the module.
	Init(*models.World)

	// Handles a frame. It is called after entities have moved, with the world
	// tree reserved to the frame pass.
	//
	// Returned errors are logged and do not interrupt the frame.
	HandleFrame(context.Context, models.Frame) error

	// Releases what the module linked into the world.
	Close()
}

// Register initializes the given modules and hooks them to the world frames
// in order. The returned function unhooks and closes them. It must not be
// called from a frame handler.
func Register(ctx context.Context, w *models.World, mods ...Module) (unregister func()) {
	cancels := make([]func(), 0, len(mods))

	for _, m := range mods {
		m := m
		m.Init(w)

		cancels = append(cancels, w.HandleFrame(func(f models.Frame) {
			if err := m.HandleFrame(ctx, f); err != nil {
				logs.Warn(errors.New("handling frame failed").
					WithTag("world", w.UUID).
					WithTag("module", m.Name()).
					WithTag("frame", f.Number).
					Wrap(err))
			}
		}))

		logs.WithTag("world", w.UUID).
			WithTag("module", m.Name()).
			Debug("module registered")
	}

	return func() {
		for i, m := range mods {
			cancels[i]()
			m.Close()
		}
	}
}
