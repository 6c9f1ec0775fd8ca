// Command relaychatd is the clustered chat server: a TCP session router that accepts newline-delimited JSON
// frames, authenticates and registers connections, and forwards chat traffic either to a locally-bound
// connection, to another instance over Valkey pub/sub, or to offline storage.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/relaychat-im/relaychat-server/internal/adminhttp"
	"github.com/relaychat-im/relaychat-server/internal/bootstrap"
	"github.com/relaychat-im/relaychat-server/internal/config"
	"github.com/relaychat-im/relaychat-server/internal/dispatch"
	"github.com/relaychat-im/relaychat-server/internal/friend"
	"github.com/relaychat-im/relaychat-server/internal/group"
	"github.com/relaychat-im/relaychat-server/internal/offline"
	"github.com/relaychat-im/relaychat-server/internal/postgres"
	"github.com/relaychat-im/relaychat-server/internal/pubsub"
	"github.com/relaychat-im/relaychat-server/internal/registry"
	"github.com/relaychat-im/relaychat-server/internal/router"
	"github.com/relaychat-im/relaychat-server/internal/server"
	"github.com/relaychat-im/relaychat-server/internal/transport"
	"github.com/relaychat-im/relaychat-server/internal/user"
	"github.com/relaychat-im/relaychat-server/internal/valkey"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("relaychatd stopped")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log.Info().
		Str("version", version).
		Str("commit", commit).
		Str("built", date).
		Msg("Starting relaychatd")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConn, cfg.DatabaseMinConn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()
	log.Info().Msg("PostgreSQL connected")

	if err := postgres.Migrate(cfg.DatabaseURL, log.Logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	log.Info().Msg("Database migrations complete")

	rdb, err := valkey.Connect(ctx, cfg.ValkeyURL, cfg.ValkeyDialTimeout)
	if err != nil {
		return fmt.Errorf("connect valkey: %w", err)
	}
	defer rdb.Close()
	log.Info().Msg("Valkey connected")

	users := user.NewPGRepository(db, log.Logger)
	friends := friend.NewPGRepository(db, log.Logger)
	groups := group.NewPGRepository(db, log.Logger)
	offlineMsgs := offline.NewPGRepository(db, log.Logger)

	// The in-memory registry does not survive a restart, so any row left "online" by an unclean shutdown must be
	// repaired before the listener opens, or that account would be wedged out of future logins.
	if err := bootstrap.ResetOnlineState(ctx, users); err != nil {
		return fmt.Errorf("reset online state: %w", err)
	}
	log.Info().Msg("Online state reset")

	reg := registry.New()
	bus := pubsub.New(rdb, log.Logger)
	defer bus.Close()

	rt := router.New(users, friends, groups, offlineMsgs, reg, bus, log.Logger)
	table := dispatch.NewTable(rt.Handlers(), log.Logger)

	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddr, err)
	}

	closeHandler := func(connID string) {
		rt.AbnormalClose(ctx, connStub(connID))
	}
	srv := server.New(listener, table, closeHandler, log.Logger)

	runtime.GOMAXPROCS(cfg.WorkerThreads)

	admin := adminhttp.New(db, rdb)

	go runWithBackoff(ctx, "pubsub", bus.Run)

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("Chat listener ready")
		if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, net.ErrClosed) {
			log.Error().Err(err).Msg("chat listener stopped")
		}
	}()

	go func() {
		log.Info().Str("addr", cfg.AdminListenAddr).Msg("Admin HTTP listening")
		if err := admin.Listen(cfg.AdminListenAddr); err != nil {
			log.Error().Err(err).Msg("admin listener stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down relaychatd")
	cancel()

	if err := srv.Shutdown(); err != nil {
		log.Error().Err(err).Msg("chat listener shutdown error")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := admin.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("admin listener shutdown error")
	}

	return nil
}

// connStub adapts a bare connection id into a transport.Conn so the registry's id-keyed unbind lookup can be
// reused from the server's CloseHandler callback, which only carries the id. Send and Close are never invoked on
// it: UnbindByConn only ever calls ID.
type connStub string

func (c connStub) ID() string        { return string(c) }
func (c connStub) Send([]byte) error { return nil }
func (c connStub) Close() error      { return nil }

var _ transport.Conn = connStub("")

// runWithBackoff restarts fn with exponential backoff (capped at two minutes) whenever it returns a non-nil error
// other than context.Canceled, until ctx is done.
func runWithBackoff(ctx context.Context, name string, fn func(context.Context) error) {
	delay := time.Second
	const maxDelay = 2 * time.Minute

	for {
		err := fn(ctx)
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}

		log.Error().Err(err).Str("service", name).Dur("retry_in", delay).Msg("background service stopped, restarting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}
