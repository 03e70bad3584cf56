package cli

import (
	"context"
	"time"

	"github.com/rileyhilliard/bealink/internal/agent"
	"github.com/rileyhilliard/bealink/internal/config"
	"github.com/rileyhilliard/bealink/internal/coordinator"
	"github.com/rileyhilliard/bealink/internal/discovery"
	"github.com/rileyhilliard/bealink/internal/health"
	"github.com/rileyhilliard/bealink/internal/lock"
	"github.com/rileyhilliard/bealink/internal/logger"
	"github.com/rileyhilliard/bealink/internal/store"
	"github.com/rileyhilliard/bealink/internal/wol"
)

// AppOptions configures app setup.
type AppOptions struct {
	// Start launches resolution and health probing. Device CRUD does not
	// need it.
	Start bool
	// Retry keeps re-resolving unresolved hostnames. Only long-running
	// commands want it.
	Retry bool
}

// App holds the collaborators a command works with. Close releases them.
type App struct {
	Config      *config.Config
	Log         logger.Logger
	Repo        *store.Repository
	Lock        *lock.RefCounted
	Resolver    *discovery.Resolver
	Agent       *agent.Client
	Waker       *wol.Sender
	Coordinator *coordinator.Coordinator
}

// Close stops background work and closes the database.
func (a *App) Close() {
	if a.Coordinator != nil {
		a.Coordinator.Close()
	}
	if a.Lock != nil {
		reportLockHolders(a.Lock, a.Log)
	}
	if a.Repo != nil {
		if err := a.Repo.Close(); err != nil {
			a.Log.Warn("closing database: %v", err)
		}
	}
}

// openApp loads config, opens the device database and wires the
// coordinator. The caller must Close the result.
func openApp(ctx context.Context, opts AppOptions) (*App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := logger.Default()

	repo, err := store.Open(cfg.Database, logger.WithComponent(log, "store"))
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		Log:    log,
		Repo:   repo,
		Lock:   newMulticastLock(log),
		Agent:  newAgentClient(cfg, log),
		Waker:  wol.NewSender(cfg.Wake.Port, logger.WithComponent(log, "wol")),
	}
	app.Resolver = newResolver(cfg, app.Lock, log)

	copts := coordinator.Options{
		ResolveTimeout: cfg.Discovery.Timeout,
		Health: health.Options{
			Interval:      cfg.Health.Interval,
			Timeout:       cfg.Agent.Health.Total,
			MaxConcurrent: cfg.Health.MaxConcurrent,
		},
		Broadcast: cfg.Wake.Broadcast,
	}
	if opts.Retry {
		copts.RetryInterval = cfg.Discovery.RetryInterval
	}
	app.Coordinator = coordinator.New(repo, app.Resolver, app.Agent, app.Waker, copts,
		logger.WithComponent(log, "coordinator"))

	if opts.Start {
		if err := app.Coordinator.Start(ctx); err != nil {
			app.Close()
			return nil, err
		}
	}
	return app, nil
}

// newMulticastLock logs the multicast reception transitions. On desktop
// platforms receiving mDNS needs no extra permission, so the hooks only
// record them.
func newMulticastLock(log logger.Logger) *lock.RefCounted {
	log = logger.WithComponent(log, "lock")
	return lock.NewRefCounted(lock.Hooks{
		Enable: func() error {
			log.Debug("multicast reception on")
			return nil
		},
		Disable: func() {
			log.Debug("multicast reception off")
		},
	})
}

// reportLockHolders warns about multicast lock acquisitions still
// outstanding once every session should have ended. It returns how many
// there were.
func reportLockHolders(l *lock.RefCounted, log logger.Logger) int {
	n := l.Held()
	if n == 0 {
		return 0
	}
	for _, h := range l.Holders() {
		log.Warn("multicast lock still held by %s", h)
	}
	return n
}

func newResolver(cfg *config.Config, mlock lock.Multicast, log logger.Logger) *discovery.Resolver {
	return discovery.NewResolver(discovery.Options{
		Service: cfg.Discovery.Service,
		Domain:  cfg.Discovery.Domain,
		Timeout: cfg.Discovery.Timeout,
	}, mlock, nil, logger.WithComponent(log, "discovery"))
}

func newAgentClient(cfg *config.Config, log logger.Logger) *agent.Client {
	return agent.NewClient(cfg.Agent.Port,
		agent.Profile(cfg.Agent.Health),
		agent.Profile(cfg.Agent.Command),
		logger.WithComponent(log, "agent"))
}

// settleTimeout bounds how long a one-shot command waits for a device's
// first resolution and probe.
func settleTimeout(cfg *config.Config) time.Duration {
	return cfg.Discovery.Timeout + cfg.Agent.Health.Total + time.Second
}
