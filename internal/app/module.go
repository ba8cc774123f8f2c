// Package app composes the client: store, bus, REST client, event
// stream, sync engine, outbox, composer, and the TUI, wired with fx.
package app

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/dkzef/chirp/internal/auth"
	"github.com/dkzef/chirp/internal/bus"
	"github.com/dkzef/chirp/internal/calllog"
	"github.com/dkzef/chirp/internal/composer"
	"github.com/dkzef/chirp/internal/config"
	"github.com/dkzef/chirp/internal/lock"
	"github.com/dkzef/chirp/internal/logging"
	"github.com/dkzef/chirp/internal/outbox"
	"github.com/dkzef/chirp/internal/rest"
	"github.com/dkzef/chirp/internal/session"
	"github.com/dkzef/chirp/internal/status"
	"github.com/dkzef/chirp/internal/store"
	"github.com/dkzef/chirp/internal/stream"
	intsync "github.com/dkzef/chirp/internal/sync"
	"github.com/dkzef/chirp/internal/tui"
	"github.com/dkzef/chirp/internal/tui/model"
)

// Params holds the resolved startup configuration.
type Params struct {
	SessionName string
	ServerURL   string // optional override; empty = config value
}

// Module composes all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("chirp",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideConfig,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideToken,
			provideCallLog,
			provideRESTClient,
			provideReceiver,
			provideSyncEngine,
			provideSender,
			provideComposer,
			provideViewModel,
			provideTUI,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideConfig(p Params, logger *zap.Logger) *config.Config {
	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		logger.Warn("config load failed, using defaults", zap.Error(err))
		cfg = &config.Config{}
	}
	if p.ServerURL != "" {
		cfg.ServerURL = p.ServerURL
	}
	return cfg
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired", zap.String("session", p.SessionName))
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.DBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

// provideToken loads the session credential. A missing or expired token
// is not fatal here; the state machine surfaces auth_required and the
// stream dial will confirm.
func provideToken(p Params, logger *zap.Logger) *auth.Token {
	tok, err := auth.Load(session.TokenPath(p.SessionName))
	if err != nil {
		logger.Warn("no usable token", zap.Error(err))
		return &auth.Token{}
	}
	if tok.Expired(time.Now()) {
		logger.Warn("token expired", zap.Time("expired_at", tok.ExpiresAt))
	}
	return tok
}

func provideCallLog(b *bus.Bus) *calllog.Log {
	return calllog.New(b)
}

func provideRESTClient(cfg *config.Config, log *calllog.Log, tok *auth.Token) *rest.Client {
	return rest.New(cfg.Server(), log, bearerFunc(tok))
}

func provideReceiver(cfg *config.Config, tok *auth.Token, b *bus.Bus, sm *status.Machine, logger *zap.Logger) (*stream.Receiver, error) {
	return stream.New(cfg.Server(), bearerFunc(tok), b, sm, logger)
}

func provideSyncEngine(db *store.DB, b *bus.Bus, sm *status.Machine, client *rest.Client, tok *auth.Token, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(db, b, sm, client, tok.Subject, logger)
}

func provideSender(db *store.DB, client *rest.Client, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(db, client, b, logger)
}

func provideComposer(sender *outbox.Sender, client *rest.Client, logger *zap.Logger) *composer.Composer {
	rec, err := composer.NewCaptureRecorder(logger)
	if err != nil {
		// Voice keys report the missing tool instead of recording.
		logger.Warn("voice recording unavailable", zap.Error(err))
		return composer.New(sender, client, nil, logger)
	}
	return composer.New(sender, client, rec, logger)
}

func provideViewModel(db *store.DB, tok *auth.Token) *model.ViewModel {
	return model.NewViewModel(db, tok.Subject)
}

func provideTUI(p Params, vm *model.ViewModel, comp *composer.Composer, sender *outbox.Sender, client *rest.Client, log *calllog.Log, b *bus.Bus, sm *status.Machine, logger *zap.Logger) *tui.App {
	return tui.NewApp(tui.Config{
		ViewModel: vm,
		Composer:  comp,
		Sends:     sender,
		Reader:    client,
		Calls:     log,
		Bus:       b,
		Machine:   sm,
		Session:   p.SessionName,
		Logger:    logger,
	})
}

func bearerFunc(tok *auth.Token) func() string {
	return func() string {
		if tok.Raw == "" {
			return ""
		}
		return tok.Bearer()
	}
}

func registerLifecycle(lc fx.Lifecycle, sh fx.Shutdowner, lk *lock.Lock, db *store.DB, receiver *stream.Receiver, engine *intsync.Engine, sender *outbox.Sender, machine *status.Machine, ui *tui.App, tok *auth.Token, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			engine.Start(context.Background())
			sender.Start(context.Background())

			if tok.Raw == "" || tok.Expired(time.Now()) {
				_ = machine.Transition(status.AuthRequired)
				logger.Info("no usable token, auth required")
			}
			// The receiver drives connecting/ready/reconnecting itself.
			receiver.Start()

			go func() {
				if err := ui.Run(); err != nil {
					logger.Error("tui exited with error", zap.Error(err))
				}
				_ = sh.Shutdown()
			}()
			return nil
		},
		OnStop: func(_ context.Context) error {
			ui.Stop()
			receiver.Stop()
			sender.Stop()
			engine.Stop()
			if err := db.Close(); err != nil {
				logger.Warn("store close failed", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("lock release failed", zap.Error(err))
			}
			logger.Info("chirp stopped")
			return nil
		},
	})
}
