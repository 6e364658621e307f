// Package app wires the chat.db client together with fx.
package app

import (
	"context"
	"errors"
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/matheus3301/imsg/internal/api"
	"github.com/matheus3301/imsg/internal/bridge"
	"github.com/matheus3301/imsg/internal/bus"
	"github.com/matheus3301/imsg/internal/config"
	"github.com/matheus3301/imsg/internal/contacts"
	"github.com/matheus3301/imsg/internal/conversation"
	"github.com/matheus3301/imsg/internal/lock"
	"github.com/matheus3301/imsg/internal/logging"
	"github.com/matheus3301/imsg/internal/outbox"
	"github.com/matheus3301/imsg/internal/paths"
	"github.com/matheus3301/imsg/internal/status"
	"github.com/matheus3301/imsg/internal/store"
	intsync "github.com/matheus3301/imsg/internal/sync"
)

// Params holds what the command line resolved before fx takes over.
type Params struct {
	Config *config.Config
	// BaseDir holds the process lock. Empty means ~/.imsg.
	BaseDir    string
	SocketPath string // empty = paths.SocketPath()
	LogPath    string // empty = paths.LogPath()
	// Console tees logs to stderr. Leave off when the TUI owns the terminal.
	Console bool
	// Runner overrides the osascript runner in tests.
	Runner bridge.Runner
}

// Runtime is what the presentation layer needs from a started app.
type Runtime struct {
	Config  *config.Config
	Logger  *zap.Logger
	Bus     *bus.Bus
	Machine *status.Machine
	Loop    *intsync.Loop
	Names   *contacts.Cache
	Sender  *outbox.Sender
	Bridge  *bridge.Bridge
	Server  *Server
}

// Module returns the fx module for imsg, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("imsg",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideResolver,
			provideCache,
			provideIndexBuilder,
			provideThreadBuilder,
			provideLoop,
			provideWatcher,
			provideBridge,
			provideSender,
			provideControlService,
			provideServer,
			provideRuntime,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) *config.Config {
	cfg := config.Default()
	if p.Config != nil {
		c := *p.Config
		cfg = &c
	}
	if cfg.ChatDB == "" {
		cfg.ChatDB = paths.ChatDBPath()
	}
	cfg.ChatDB = paths.ExpandHome(cfg.ChatDB)
	if cfg.AddressBookDir == "" {
		cfg.AddressBookDir = paths.AddressBookDir()
	}
	cfg.AddressBookDir = paths.ExpandHome(cfg.AddressBookDir)
	return cfg
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	logPath := p.LogPath
	if logPath == "" {
		logPath = paths.LogPath()
	}
	return logging.New(logPath, "imsg", logging.Options{Level: cfg.Log.Level, Console: p.Console})
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	dir := p.BaseDir
	if dir == "" {
		if err := paths.EnsureDir(); err != nil {
			return nil, err
		}
		dir = paths.BaseDir()
	} else if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	l, err := lock.Acquire(dir)
	if err != nil {
		return nil, err
	}
	logger.Debug("process lock acquired", zap.String("dir", dir))
	return l, nil
}

func provideStore(cfg *config.Config, logger *zap.Logger) (*store.DB, error) {
	db, err := store.OpenChatDB(context.Background(), cfg.ChatDB)
	if err != nil {
		return nil, err
	}
	logger.Info("chat.db opened", zap.String("path", db.Path()))
	return db, nil
}

func provideResolver(cfg *config.Config, logger *zap.Logger) (*contacts.Resolver, error) {
	r, err := contacts.NewResolver(cfg.AddressBookDir, logger.Named("contacts"))
	if err != nil {
		return nil, err
	}
	if d := cfg.Contacts.RetryAfter.Duration; d > 0 {
		r.SetRescan(d)
	}
	return r, nil
}

func provideCache(r *contacts.Resolver, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *contacts.Cache {
	return contacts.NewCache(r, b, logger.Named("names"), contacts.CacheOptions{
		MaxConcurrent: cfg.Contacts.MaxConcurrent,
		RetryAfter:    cfg.Contacts.RetryAfter.Duration,
	})
}

func provideIndexBuilder(db *store.DB, names *contacts.Cache) *conversation.IndexBuilder {
	return conversation.NewIndexBuilder(db, names)
}

func provideThreadBuilder(db *store.DB, names *contacts.Cache, cfg *config.Config) *conversation.ThreadBuilder {
	return conversation.NewThreadBuilder(db, names, cfg.Sync.MaxMessages)
}

func provideLoop(db *store.DB, index *conversation.IndexBuilder, thread *conversation.ThreadBuilder,
	b *bus.Bus, m *status.Machine, cfg *config.Config, logger *zap.Logger) *intsync.Loop {
	return intsync.NewLoop(db, index, thread, b, m, logger.Named("sync"), intsync.Options{
		Interval:      cfg.Sync.PollInterval.Duration,
		OtherServices: cfg.Sync.OtherServices,
	})
}

func provideWatcher(cfg *config.Config, loop *intsync.Loop, logger *zap.Logger) *intsync.Watcher {
	return intsync.NewWatcher(cfg.ChatDB, loop.Nudge, logger.Named("watch"))
}

func provideBridge(p Params, logger *zap.Logger) *bridge.Bridge {
	return bridge.New(p.Runner, logger.Named("bridge"))
}

func provideSender(br *bridge.Bridge, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(br, b, logger.Named("outbox"))
}

func provideControlService(loop *intsync.Loop, thread *conversation.ThreadBuilder, sender *outbox.Sender,
	m *status.Machine, names *contacts.Cache, cfg *config.Config) *api.ControlService {
	return api.NewControlService(loop, thread, sender, m, cfg.ChatDB).WithNames(names)
}

// provideServer depends on the lock so a leftover socket is only removed
// by the process that owns the base directory.
func provideServer(p Params, _ *lock.Lock, svc *api.ControlService, logger *zap.Logger) (*Server, error) {
	socketPath := p.SocketPath
	if socketPath == "" {
		socketPath = paths.SocketPath()
	}
	return NewServer(socketPath, svc, logger.Named("control"))
}

func provideRuntime(cfg *config.Config, logger *zap.Logger, b *bus.Bus, m *status.Machine, loop *intsync.Loop,
	names *contacts.Cache, sender *outbox.Sender, br *bridge.Bridge, srv *Server) *Runtime {
	return &Runtime{
		Config:  cfg,
		Logger:  logger,
		Bus:     b,
		Machine: m,
		Loop:    loop,
		Names:   names,
		Sender:  sender,
		Bridge:  br,
		Server:  srv,
	}
}

type lifecycleParams struct {
	fx.In

	Config   *config.Config
	Logger   *zap.Logger
	Bus      *bus.Bus
	Lock     *lock.Lock
	DB       *store.DB
	Resolver *contacts.Resolver
	Names    *contacts.Cache
	Loop     *intsync.Loop
	Watcher  *intsync.Watcher
	Sender   *outbox.Sender
	Server   *Server
}

func registerLifecycle(lc fx.Lifecycle, p lifecycleParams) {
	var unsubscribe func()
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			p.Loop.Start(context.Background())

			if p.Config.Sync.WatchFS {
				if err := p.Watcher.Start(context.Background()); err != nil {
					p.Logger.Warn("file watch unavailable, polling only", zap.Error(err))
				}
			}

			// A sent message lands in chat.db shortly after the ack.
			acks, unsub := p.Bus.Subscribe(bus.KindSendAck, 8)
			unsubscribe = unsub
			go func() {
				for range acks {
					p.Loop.Nudge()
				}
			}()

			go func() {
				if err := p.Server.Serve(); err != nil {
					p.Logger.Error("control server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			p.Server.Stop(ctx)
			if unsubscribe != nil {
				unsubscribe()
			}
			p.Watcher.Stop()
			p.Loop.Stop()
			p.Sender.Wait()
			p.Names.Close()

			var errs []error
			errs = append(errs, p.Resolver.Close(), p.DB.Close())
			if err := p.Lock.Release(); err != nil {
				p.Logger.Warn("error releasing lock", zap.Error(err))
			}
			p.Logger.Info("imsg stopped")
			_ = p.Logger.Sync()
			return errors.Join(errs...)
		},
	})
}
