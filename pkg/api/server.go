// Package api is the gateway's HTTP surface: platform webhook ingestion
// plus a small ops API for manual sends, device control and inspection.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tinyland-inc/homeclaw/pkg/bus"
	"github.com/tinyland-inc/homeclaw/pkg/channels"
	"github.com/tinyland-inc/homeclaw/pkg/command"
	"github.com/tinyland-inc/homeclaw/pkg/config"
	"github.com/tinyland-inc/homeclaw/pkg/dispatch"
	"github.com/tinyland-inc/homeclaw/pkg/logger"
	"github.com/tinyland-inc/homeclaw/pkg/registry"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	cfg      *config.Config
	engine   *dispatch.Engine
	registry *registry.Registry
	manager  *channels.Manager
	bus      *bus.MessageBus

	server *http.Server
}

func NewServer(
	cfg *config.Config,
	engine *dispatch.Engine,
	reg *registry.Registry,
	manager *channels.Manager,
	msgBus *bus.MessageBus,
) *Server {
	return &Server{
		cfg:      cfg,
		engine:   engine,
		registry: reg,
		manager:  manager,
		bus:      msgBus,
	}
}

// Start begins serving in the background. Listener errors other than a
// clean shutdown are logged, not returned; a port conflict surfaces there.
func (s *Server) Start() {
	addr := fmt.Sprintf("%s:%d", s.cfg.Gateway.Host, s.cfg.Gateway.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.buildRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.InfoCF("api", "HTTP server listening", map[string]any{"addr": addr})
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorCF("api", "HTTP server stopped", map[string]any{"error": err.Error()})
		}
	}()
}

func (s *Server) Stop() {
	if s.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		logger.WarnCF("api", "HTTP shutdown incomplete", map[string]any{"error": err.Error()})
	}
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.recoveryMiddleware)
	r.Use(s.loggingMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Group(func(r chi.Router) {
		r.Use(s.webhookKeyMiddleware)
		r.Post("/webhook/{platform}", s.handleWebhook)
	})

	r.Get("/sendMsg", s.handleSendMsg)
	r.Post("/sendMsg", s.handleSendMsg)
	r.Get("/sendGroupMsg", s.handleSendGroupMsg)
	r.Post("/sendGroupMsg", s.handleSendGroupMsg)
	r.Get("/sendAllMsg", s.handleSendAllMsg)
	r.Post("/sendAllMsg", s.handleSendAllMsg)

	r.Get("/enable", s.handleControl(command.ActionEnable))
	r.Get("/disable", s.handleControl(command.ActionDisable))
	r.Get("/getStatus", s.handleControl(command.ActionGetStatus))

	r.Get("/devices", s.handleDevices)

	return r
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.ErrorCF("api", "Handler panic", map[string]any{
					"path":  r.URL.Path,
					"panic": fmt.Sprint(rec),
				})
				writeJSON(w, http.StatusInternalServerError, dispatch.Response{
					Class:   dispatch.ClassInternalError,
					Message: "internal error",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.DebugCF("api", "Request handled", map[string]any{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		})
	})
}

// webhookKeyMiddleware enforces the shared webhook key when one is
// configured. Platform-signed webhooks (LINE) additionally verify their
// own signatures inside the channel handler.
func (s *Server) webhookKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key := s.cfg.Gateway.WebhookKey; key != "" {
			if r.Header.Get("X-Webhook-Key") != key {
				writeJSON(w, http.StatusUnauthorized, dispatch.Response{
					Class:   dispatch.ClassValidationError,
					Message: "invalid webhook key",
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
