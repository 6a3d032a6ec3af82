package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/manziro785/online-chat-back/internal/api"
	"github.com/manziro785/online-chat-back/internal/auth"
	"github.com/manziro785/online-chat-back/internal/chat"
	"github.com/manziro785/online-chat-back/internal/metrics"
	"github.com/manziro785/online-chat-back/internal/router"
	"github.com/manziro785/online-chat-back/internal/server/middleware"
	"github.com/manziro785/online-chat-back/internal/store"
	"github.com/manziro785/online-chat-back/pkg/config"
	"github.com/manziro785/online-chat-back/pkg/state"
	"github.com/manziro785/online-chat-back/pkg/state/statemanager"
	"github.com/manziro785/online-chat-back/pkg/transport"
)

type App struct {
	logger      *slog.Logger
	registry    state.Registry
	hub         *chat.Hub
	eventRouter *router.EventRouter
	wg          sync.WaitGroup
	http        *http.Server
	config      *config.Config

	ctx context.Context
}

func NewApp(logger *slog.Logger, rootCtx context.Context, cfg *config.Config, st *store.Store) *App {
	registry := statemanager.NewInMemoryRegistry(logger)
	hub := chat.NewHub(logger, registry, st)
	eventRouter := router.NewEventRouter(logger, hub)
	verifier := auth.NewVerifier(cfg.Server.Auth.JWTSecret, cfg.Server.Auth.TokenTTL, st)

	app := &App{
		logger:      logger,
		registry:    registry,
		hub:         hub,
		eventRouter: eventRouter,
		config:      cfg,
		ctx:         rootCtx,
	}

	mux := http.NewServeMux()

	authed := func(h http.Handler) http.Handler {
		return middleware.Chain(h,
			middleware.RequestMetadataMiddleware(),
			middleware.NewRequestLogger(logger),
			middleware.NewAuthMiddleware(logger, verifier),
		)
	}
	open := func(h http.Handler) http.Handler {
		return middleware.Chain(h,
			middleware.RequestMetadataMiddleware(),
			middleware.NewRequestLogger(logger),
		)
	}

	mux.Handle("/ws", authed(http.HandlerFunc(app.upgradeHandler)))
	api.Mount(mux, logger, st, verifier, hub, authed, open)

	app.http = &http.Server{
		Addr:    cfg.Server.Address,
		Handler: mux,
		BaseContext: func(l net.Listener) context.Context {
			return app.ctx
		},
	}

	return app
}

func (a *App) Run() error {
	go func() {
		a.logger.Info("Server starting", slog.String("addr", a.http.Addr))
		if err := a.http.ListenAndServe(); err != http.ErrServerClosed {
			a.logger.Error("HTTP server failed", slog.Any("error", err))
		}
	}()

	<-a.ctx.Done()
	return a.Shutdown()
}

func (a *App) upgradeHandler(w http.ResponseWriter, r *http.Request) {
	reqMeta, ok := middleware.ReqMetadataFrom(r.Context())
	if !ok || reqMeta.User == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	user := reqMeta.User
	connLogger := a.logger.With(
		slog.String("remoteAddr", reqMeta.IP),
		slog.String("userID", user.ID),
	)

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		a.logger.Error("Failed to accept websocket connection", slog.Any("error", err))
		return
	}

	conn := transport.NewConnection(
		r.Context(),
		&a.wg,
		wsConn,
		transport.ConnectionConfig(a.config.Transport),
		a.logger,
	)
	sess := state.NewSession(user.ID, user.Nickname, conn)

	conn.SetOnMessageHandler(func(ctx context.Context, _ uuid.UUID, msg []byte) {
		a.eventRouter.Handle(ctx, sess, msg)
	})

	metrics.TotalConnections.Inc()
	metrics.ActiveConnections.Inc()

	a.hub.Connect(r.Context(), sess)
	conn.Run()
	<-conn.Done()

	metrics.ActiveConnections.Dec()
	// The connection context is already canceled here; the teardown writes
	// (last seen) get their own short deadline.
	teardownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.hub.Disconnect(teardownCtx, sess)

	connLogger.Info("Connection torn down")
}

// Shutdown is the graceful shutdown sequence.
func (a *App) Shutdown() error {
	a.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// close all active WebSocket connections.
	a.logger.Info("Closing all active connections...")
	for _, sess := range a.registry.Sessions() {
		sess.Conn.Close(errors.New("graceful shutdown"))
	}

	// wait for all connection goroutines to finish their cleanup.
	a.wg.Wait()
	a.logger.Info("Server shut down gracefully.")
	return nil
}
