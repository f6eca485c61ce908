// Package app assembles the messaging server from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"tenismatch/internal/config"
	"tenismatch/internal/delivery"
	"tenismatch/internal/httpserver"
	"tenismatch/internal/presence"
	"tenismatch/internal/security"
	"tenismatch/internal/service"
	"tenismatch/internal/store"
	"tenismatch/internal/store/postgres"
	"tenismatch/internal/ws"
)

type App struct {
	Config        *config.Config
	Store         *store.Store
	Broker        *delivery.Broker
	Subscriber    delivery.Subscriber
	Presence      presence.Tracker
	Auth          *service.AuthService
	Conversations *service.ConversationService
	Messages      *service.MessageService
	Handler       http.Handler

	listener *postgres.Listener
	closers  []func() error
	log      zerolog.Logger
}

// New opens the store and builds every component. Close releases them.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	st, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a := &App{Config: cfg, Store: st, log: log, closers: []func() error{st.Close}}

	encryptor, err := security.NewEncryptor([]byte(cfg.EncryptKey), cfg.LegacyEncryptKeys)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init encryptor: %w", err)
	}
	tokens := security.NewTokenService(cfg.JWTSecret, cfg.AccessTokenTTL())
	hasher := security.NewPasswordHasher(0)

	a.Broker = delivery.NewBroker()
	a.Auth = service.NewAuthService(st.Users, tokens, hasher)
	a.Conversations = service.NewConversationService(st.Conversations, st.Participants, st.Users, encryptor, log)
	a.Messages = service.NewMessageService(st.Conversations, st.Messages, encryptor, a.Broker, log)
	a.Messages.MaxMessageLength = cfg.MaxMessageLength

	source := delivery.SourceFunc(a.Messages.ListSince)
	switch cfg.DeliveryMode {
	case config.DeliveryPoll:
		a.Subscriber = delivery.NewPoller(source, cfg.PollInterval, log)
	default:
		a.Subscriber = delivery.NewPusher(source, a.Broker, cfg.ResyncInterval, log)
		if cfg.DBDriver == config.DriverPostgres && cfg.PGNotify {
			a.listener = postgres.NewListener(cfg.PostgresDSN(), func(n postgres.Notification) {
				a.Broker.Wake(n.ConversationID)
			}, log)
		}
	}

	switch cfg.PresenceBackend {
	case config.PresenceRedis:
		r, err := presence.NewRedisFromURL(ctx, cfg.RedisURL, cfg.OnlineTTL, cfg.TypingTTL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Presence = r
		a.closers = append(a.closers, r.Close)
	default:
		a.Presence = presence.NewMemory(cfg.OnlineTTL, cfg.TypingTTL)
	}

	wsHandler := ws.NewHandler(ws.NewHub(), a.Auth, a.Conversations, a.Messages, a.Subscriber, a.Presence, log, ws.Options{
		AllowedOrigins: cfg.CORSOrigins,
		CookieName:     cfg.SessionCookieName,
		PongWait:       cfg.WSPongWait,
	})
	a.Handler = httpserver.NewRouter(httpserver.Deps{
		Config:        cfg,
		Log:           log,
		Auth:          a.Auth,
		Users:         service.NewUserService(st.Users),
		Conversations: a.Conversations,
		Messages:      a.Messages,
		Presence:      a.Presence,
		WS:            wsHandler,
	})
	return a, nil
}

// Start runs background components until ctx is cancelled.
func (a *App) Start(ctx context.Context) {
	if a.listener != nil {
		go func() {
			if err := a.listener.Run(ctx); err != nil {
				a.log.Error().Err(err).Msg("notification listener stopped")
			}
		}()
	}
}

// Serve starts background components and the HTTP server, and shuts the
// server down gracefully when ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	a.Start(ctx)

	srv := &http.Server{
		Addr:              a.Config.HTTPAddr(),
		Handler:           a.Handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", srv.Addr).Str("delivery", a.Config.DeliveryMode).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
