// Package supervisor runs the long-lived parts of the server under a
// suture supervisor tree: storage maintenance, messaging and the API.
// A crashed service is restarted with backoff instead of taking the
// process down.
package supervisor

import (
	"context"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/iliyamo/seatd/internal/logging"
)

// TreeConfig tunes restart behaviour.  Zero values get defaults.
type TreeConfig struct {
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

// Tree is the root supervisor with one child per layer.
type Tree struct {
	root      *suture.Supervisor
	storage   *suture.Supervisor
	messaging *suture.Supervisor
	api       *suture.Supervisor
}

// New builds the tree.  Supervisor events are logged through zerolog.
func New(cfg TreeConfig) *Tree {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.FailureDecay == 0 {
		cfg.FailureDecay = 30
	}
	if cfg.FailureBackoff == 0 {
		cfg.FailureBackoff = 15 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	spec := suture.Spec{
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	}
	rootSpec := spec
	rootSpec.EventHook = logEvent

	t := &Tree{
		root:      suture.New("seatd", rootSpec),
		storage:   suture.New("storage", spec),
		messaging: suture.New("messaging", spec),
		api:       suture.New("api", spec),
	}
	t.root.Add(t.storage)
	t.root.Add(t.messaging)
	t.root.Add(t.api)
	return t
}

func logEvent(e suture.Event) {
	l := logging.WithComponent("supervisor")
	l.Warn().Fields(e.Map()).Msg(e.String())
}

// AddStorageService adds background storage work such as the hold sweeper.
func (t *Tree) AddStorageService(svc suture.Service) suture.ServiceToken {
	return t.storage.Add(svc)
}

// AddMessagingService adds the Redis relay and the AMQP consumers.
func (t *Tree) AddMessagingService(svc suture.Service) suture.ServiceToken {
	return t.messaging.Add(svc)
}

// AddAPIService adds the HTTP server.
func (t *Tree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// Serve blocks until ctx is cancelled.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground runs the tree in a goroutine.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that ignored shutdown.
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
