// ABOUTME: Server orchestrator: wires the store, clients, bridge, and HTTP boundary
// ABOUTME: Owns the webhook endpoints, the sweep scheduler, and graceful shutdown

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/2389/support-bridge/internal/bridge"
	"github.com/2389/support-bridge/internal/config"
	"github.com/2389/support-bridge/internal/rt"
	"github.com/2389/support-bridge/internal/store"
	"github.com/2389/support-bridge/internal/whatsapp"
	"github.com/2389/support-bridge/internal/zulip"
)

// eventRouter is the slice of the bridge the HTTP boundary needs.
// Split out so handler tests can inject a recording fake.
type eventRouter interface {
	HandleChannelEvent(ctx context.Context, ev bridge.ChannelEvent) error
	HandleChatEvent(ctx context.Context, ev bridge.ChatEvent) error
	SweepExpired(ctx context.Context)
	Conversations() []store.Conversation
}

// Server hosts the webhook endpoints and runs the periodic expiry sweep.
type Server struct {
	config     *config.Config
	router     eventRouter
	bridge     *bridge.Bridge
	httpServer *http.Server
	sweeper    *cron.Cron
	logger     *slog.Logger
}

// New builds the full server: store, collaborator clients, bridge, routes.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	st, err := store.Open(cfg.Store.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	channelClient := whatsapp.New(cfg.Channel, logger)
	chatClient := zulip.New(cfg.Chat, logger)
	ticketClient := rt.New(cfg.Ticketing, logger)

	b := bridge.New(bridge.Config{
		Store:       st,
		Channel:     channelClient,
		Chat:        chatClient,
		Ticketing:   ticketClient,
		ChatBaseURL: cfg.Chat.APIURL,
		IdleTTL:     cfg.Sessions.IdleTTL,
		Logger:      logger,
	})

	s := newServer(cfg, b, logger)
	s.bridge = b
	return s, nil
}

// newServer wires routes around an eventRouter. Tests call this directly.
func newServer(cfg *config.Config, router eventRouter, logger *slog.Logger) *Server {
	s := &Server{
		config:  cfg,
		router:  router,
		sweeper: cron.New(),
		logger:  logger.With("component", "server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/webhook", s.handleChannelWebhook)
	mux.HandleFunc("/webhook/zulip", s.handleChatWebhook)

	s.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the route table for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run starts the HTTP server and the sweep scheduler, blocking until the
// context is canceled or the server fails.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	spec := fmt.Sprintf("@every %s", s.config.Sessions.SweepInterval)
	if _, err := s.sweeper.AddFunc(spec, func() {
		s.router.SweepExpired(context.Background())
	}); err != nil {
		return fmt.Errorf("scheduling expiry sweep: %w", err)
	}
	s.sweeper.Start()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := s.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown stops the sweep scheduler and drains the HTTP server.
// Uses a fresh context since the run context is already canceled.
func (s *Server) gracefulShutdown() error {
	<-s.sweeper.Stop().Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.httpServer.Shutdown(ctx)

	if s.bridge != nil {
		s.bridge.Close()
	}
	return err
}

// handleHealth reports liveness and the number of open conversations.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":             "ok",
		"open_conversations": len(s.router.Conversations()),
	})
}
