// Package http exposes the bot over HTTP: the Telegram webhook plus a few
// operational routes.
package http

import (
	"context"
	"crypto/subtle"
	_ "embed"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/tripwire"
	"github.com/aretw0/tripwire/internal/logging"
	"github.com/aretw0/tripwire/pkg/adapters/telegram"
	"github.com/aretw0/tripwire/pkg/domain"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// SecretHeader carries the secret_token registered with setWebhook.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

//go:embed openapi.yaml
var rawSpec []byte

var (
	specOnce sync.Once
	specDoc  *openapi3.T
	specErr  error
)

// Spec returns the parsed and validated OpenAPI document served at /openapi.yaml.
func Spec() (*openapi3.T, error) {
	specOnce.Do(func() {
		loader := openapi3.NewLoader()
		specDoc, specErr = loader.LoadFromData(rawSpec)
		if specErr == nil {
			specErr = specDoc.Validate(context.Background())
		}
	})
	return specDoc, specErr
}

// EventHandler consumes decoded platform events.
type EventHandler interface {
	Handle(ctx context.Context, ev domain.Event)
}

// WebhookRegistrar registers the webhook URL with the chat platform.
type WebhookRegistrar interface {
	SetWebhook(ctx context.Context, url, secret string) (string, error)
}

// Server routes webhook traffic to an EventHandler.
type Server struct {
	events     EventHandler
	registrar  WebhookRegistrar
	webhookURL string
	secret     string
	metrics    http.Handler
	maxText    int
	logger     *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithRegistrar enables /setWebhook, registering webhookURL.
func WithRegistrar(reg WebhookRegistrar, webhookURL string) Option {
	return func(s *Server) {
		s.registrar = reg
		s.webhookURL = webhookURL
	}
}

// WithWebhookSecret requires SecretHeader to match secret on /webhook.
func WithWebhookSecret(secret string) Option {
	return func(s *Server) {
		s.secret = secret
	}
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithMaxTextSize overrides DefaultMaxTextSize.
func WithMaxTextSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxText = n
		}
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates the HTTP handler for the bot.
func NewHandler(events EventHandler, opts ...Option) http.Handler {
	s := &Server{
		events:  events,
		maxText: DefaultMaxTextSize,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/webhook", s.Webhook)
	r.Get("/setWebhook", s.SetWebhook)
	r.Post("/setWebhook", s.SetWebhook)
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(rawSpec)
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return r
}

// Webhook handles POST /webhook. Events are handled before the response is
// written so Telegram retries updates that were never processed.
func (s *Server) Webhook(w http.ResponseWriter, r *http.Request) {
	if s.secret != "" {
		got := r.Header.Get(SecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.secret)) != 1 {
			s.logger.Warn("Webhook: secret token mismatch", "remote", r.RemoteAddr)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	update, err := telegram.Decode(r.Body)
	if err != nil {
		s.logger.Warn("Webhook: invalid update", "err", err)
		http.Error(w, "invalid update", http.StatusBadRequest)
		return
	}

	// A dropped connection must not abort a keyword sync half way.
	ctx := context.WithoutCancel(r.Context())
	for _, ev := range update.Events() {
		if ev.Message != nil {
			clean, err := SanitizeText(ev.Message.Text, s.maxText)
			if err != nil {
				s.logger.Warn("Webhook: text rejected", "err", err, "update_id", update.UpdateID, "size", len(ev.Message.Text))
				continue
			}
			ev.Message.Text = clean
		}
		s.events.Handle(ctx, ev)
	}

	writeJSON(w, s.logger, http.StatusOK, map[string]bool{"ok": true})
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// SetWebhook handles GET|POST /setWebhook.
func (s *Server) SetWebhook(w http.ResponseWriter, r *http.Request) {
	if s.registrar == nil || s.webhookURL == "" {
		writeJSON(w, s.logger, http.StatusServiceUnavailable, statusResponse{
			Status:  "error",
			Message: "webhook registration is not configured (WEBHOOK_BASE_URL)",
		})
		return
	}

	desc, err := s.registrar.SetWebhook(r.Context(), s.webhookURL, s.secret)
	if err != nil {
		s.logger.Error("Webhook registration failed", "url", s.webhookURL, "err", err)
		writeJSON(w, s.logger, http.StatusBadGateway, statusResponse{Status: "error", Message: err.Error()})
		return
	}
	if desc == "" {
		desc = "Webhook set to " + s.webhookURL
	}
	s.logger.Info("Webhook registered", "url", s.webhookURL)
	writeJSON(w, s.logger, http.StatusOK, statusResponse{Status: "ok", Message: desc})
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if doc, err := Spec(); err == nil && doc.Info != nil {
		apiVersion = doc.Info.Version
	}
	writeJSON(w, s.logger, http.StatusOK, map[string]string{
		"app":         "tripwire",
		"version":     strings.TrimSpace(tripwire.Version),
		"api_version": apiVersion,
	})
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Response encode failed", "err", err)
	}
}
