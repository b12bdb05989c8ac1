package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-lobby/internal/auth"
	"github.com/vovakirdan/wirechat-lobby/internal/config"
	"github.com/vovakirdan/wirechat-lobby/internal/core"
	"github.com/vovakirdan/wirechat-lobby/internal/metrics"
	"github.com/vovakirdan/wirechat-lobby/internal/store"
	"github.com/vovakirdan/wirechat-lobby/internal/store/jsonfile"
	"github.com/vovakirdan/wirechat-lobby/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/wirechat-lobby/internal/transport/http"
)

var _ core.SessionResolver = (*auth.SessionStore)(nil)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	persister       *core.Persister
	store           store.UserStore
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	m := metrics.New()

	messages := jsonfile.New(cfg.MessagesPath)
	loaded, err := messages.LoadMessages(context.Background())
	switch {
	case errors.Is(err, jsonfile.ErrCorrupt):
		logger.Warn().Err(err).Str("path", messages.Path()).Msg("message log unreadable, starting empty")
	case err != nil:
		_ = st.Close()
		return nil, fmt.Errorf("load messages: %w", err)
	}
	logger.Info().Str("path", messages.Path()).Int("messages", len(loaded)).Msg("message log loaded")

	persister := core.NewPersister(messages, logger, m)
	messageLog := core.NewMessageLog(core.FromStoreMessages(loaded), persister)

	sessions, err := auth.NewSessionStore(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("init sessions: %w", err)
	}
	if cfg.SessionSecret == "" {
		logger.Warn().Msg("session_secret not set, sessions will not survive a restart")
	}
	authService := auth.NewService(st, sessions)

	hub := core.NewHub(core.HubOptions{
		Sessions:         sessions,
		Log:              messageLog,
		AdminIdentity:    cfg.AdminUsername,
		HistoryWindow:    cfg.HistoryWindow,
		MaxMessageLength: cfg.MaxMessageLength,
		Logger:           logger,
		Metrics:          m,
	})
	server := transporthttp.NewServer(hub, authService, st, m, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		persister:       persister,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	// The hub and persister outlive ctx so shutdown can be ordered.
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	persistCtx, stopPersist := context.WithCancel(context.Background())
	defer stopPersist()

	go a.hub.Run(hubCtx)
	go a.persister.Run(persistCtx)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	var runErr error
	select {
	case runErr = <-serverErr:
	case <-ctx.Done():
		a.log.Info().Msg("shutting down")
	}

	// Disconnect every client first so open WebSocket handlers return.
	stopHub()
	<-a.hub.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()
	if runErr == nil {
		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			runErr = err
		} else {
			runErr = <-serverErr
		}
	}

	stopPersist()
	<-a.persister.Done()
	a.cleanup()
	return runErr
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
