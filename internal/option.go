package internal

import "github.com/starford/reoverflow/internal/bus"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	bus    bus.Bus
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithBus replaces the configured event bus. Run closes it on shutdown to
// stop the syncer.
func WithBus(b bus.Bus) Option {
	return func(a *application) {
		a.bus = b
	}
}

func newApplication(opts []Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, errConfigRequired
	}
	return app, nil
}
