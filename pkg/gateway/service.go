package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"chatrelay/pkg/bus"
	"chatrelay/pkg/channel/telegram"
	"chatrelay/pkg/config"
	"chatrelay/pkg/relay"
)

const (
	defaultHost = "0.0.0.0"
	defaultPort = 5000

	// LivenessText is served on GET /.
	LivenessText = "🤖 Chat relay bot active"

	maxBodyBytes    = 1 << 20
	shutdownTimeout = 5 * time.Second
)

// Handler is the message pipeline as seen from the ingress.
type Handler interface {
	Handle(ctx context.Context, event bus.InboundEvent) relay.Outcome
}

// Service is the webhook ingress. It always acknowledges with status 200.
type Service struct {
	cfg         config.GatewayConfig
	handler     Handler
	persistence bool
	log         *slog.Logger

	mu            sync.RWMutex
	startedAt     time.Time
	lastUpdateAt  time.Time
	updates       uint64
	dispatched    uint64
	deliveryFails uint64
}

type ackResponse struct {
	OK bool `json:"ok"`
}

type statusResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Persistence   bool   `json:"persistence"`
	Updates       uint64 `json:"updates"`
	Dispatched    uint64 `json:"dispatched"`
	DeliveryFails uint64 `json:"delivery_failures"`
	LastUpdateAt  string `json:"last_update_at,omitempty"`
}

func NewService(cfg config.GatewayConfig, handler Handler, persistence bool, log *slog.Logger) (*Service, error) {
	if handler == nil {
		return nil, errors.New("pipeline handler is required")
	}
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		cfg:         cfg,
		handler:     handler,
		persistence: persistence,
		log:         log.With("component", "gateway.service"),
		startedAt:   time.Now().UTC(),
	}, nil
}

// Handler returns the HTTP routes.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook", s.handleWebhook)
	mux.HandleFunc("GET /{$}", s.handleLiveness)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// Run serves HTTP until ctx is done, then shuts down gracefully.
func (s *Service) Run(ctx context.Context) error {
	host := strings.TrimSpace(s.cfg.Host)
	if host == "" {
		host = defaultHost
	}

	port := s.cfg.Port
	if port <= 0 {
		port = defaultPort
	}

	addr := host + ":" + strconv.Itoa(port)
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("Gateway shutdown incomplete", "error", err)
		}
	}()

	s.log.Info("Gateway started", "address", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start gateway server: %w", err)
	}

	<-shutdownDone
	s.log.Info("Gateway stopped")
	return nil
}

func (s *Service) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		// Treated like any other unreadable envelope.
		s.log.Debug("Failed to read webhook body", "error", err)
		body = nil
	}

	writeJSON(w, s.log, ackResponse{OK: s.process(r.Context(), body)})
}

func (s *Service) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, LivenessText)
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.log, s.currentStatus())
}

// process decodes one envelope and runs the pipeline. It reports whether the
// envelope carried a chat to reply to.
func (s *Service) process(ctx context.Context, body []byte) bool {
	event := telegram.DecodeUpdate(body)
	outcome := s.handler.Handle(ctx, event)
	s.track(outcome)

	return event.HasChat()
}

func (s *Service) track(outcome relay.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.updates++
	s.lastUpdateAt = time.Now().UTC()
	if outcome.Dispatched {
		s.dispatched++
		if !outcome.Delivered {
			s.deliveryFails++
		}
	}
}

func (s *Service) currentStatus() statusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lastUpdate := ""
	if !s.lastUpdateAt.IsZero() {
		lastUpdate = s.lastUpdateAt.Format(time.RFC3339)
	}

	return statusResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Persistence:   s.persistence,
		Updates:       s.updates,
		Dispatched:    s.dispatched,
		DeliveryFails: s.deliveryFails,
		LastUpdateAt:  lastUpdate,
	}
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error("Failed to write response", "error", err)
	}
}
