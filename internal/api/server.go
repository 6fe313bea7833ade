// Package api is the daemon's HTTP surface for the dashboard UI shell.
package api

import (
	"context"
	"encoding/json"
	"errors"
	log "log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pawvox/internal/bridge"
	"pawvox/internal/convo"
	"pawvox/internal/tts"
	"pawvox/pkg/audioconv"
	"pawvox/pkg/voice"
)

const maxBody = 64 << 10

type Voice interface {
	Turn(ctx context.Context, text string) voice.Response
	OpenSession()
	CloseSession()
	Context() voice.Context
	Commands() []voice.CommandInfo
}

type Audio interface {
	Lookup(ctx context.Context, hash string) (tts.CacheEntry, bool)
}

type Config struct {
	Addr    string
	Voice   Voice
	Audio   Audio
	Bridge  *bridge.Manager
	Sync    http.Handler
	Origins []string
}

type Server struct {
	router     *chi.Mux
	httpServer *http.Server

	voice  Voice
	audio  Audio
	bridge *bridge.Manager
	sync   http.Handler
}

func New(cfg Config) *Server {
	s := &Server{voice: cfg.Voice, audio: cfg.Audio, bridge: cfg.Bridge, sync: cfg.Sync}
	s.setupRouter(cfg.Origins)
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRouter(origins []string) {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("ok")) })
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/voice/turn", s.handleTurn)
		r.Post("/voice/session", s.handleSession)
		r.Get("/voice/context", s.handleContext)
		r.Get("/voice/commands", s.handleCommands)

		if s.bridge != nil {
			r.Post("/dashboard/events", s.handleDashboardEvent)
		}
		if s.audio != nil {
			r.Get("/tts/{hash}", s.handleAudio)
		}
		if s.sync != nil {
			r.Handle("/sync/ws", s.sync)
		}
	})
	s.router = r
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	log.Info("API server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"took", time.Since(start),
			"id", middleware.GetReqID(r.Context()))
	})
}

// --- Response helpers ---

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// --- Handlers ---

type turnRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if !decode(w, r, &req) {
		return
	}
	respondJSON(w, http.StatusOK, s.voice.Turn(r.Context(), req.Text))
}

type sessionRequest struct {
	Open bool `json:"open"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Open {
		s.voice.OpenSession()
	} else {
		s.voice.CloseSession()
	}
	respondJSON(w, http.StatusOK, map[string]bool{"sessionActive": s.voice.Context().SessionActive})
}

func (s *Server) handleContext(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.voice.Context())
}

func (s *Server) handleCommands(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.voice.Commands())
}

func (s *Server) handleDashboardEvent(w http.ResponseWriter, r *http.Request) {
	var e bridge.DashboardEvent
	if !decode(w, r, &e) {
		return
	}

	var err error
	switch e.Kind {
	case bridge.EventNavigation:
		err = s.bridge.HandleNavigation(e.Page)
	case bridge.EventPetSelection:
		err = s.bridge.HandlePetSelection(e.Pet)
	case bridge.EventDataEntry:
		err = s.bridge.HandleDataEntry(e.DataType, e.Pet, e.Fields)
	case bridge.EventDataModification:
		err = s.bridge.HandleDataModification(e.DataType, e.ID, e.Pet)
	case bridge.EventViewChange:
		err = s.bridge.HandleViewChange(e.View)
	default:
		respondError(w, http.StatusBadRequest, "unknown event kind "+strconv.Quote(string(e.Kind)))
		return
	}

	switch {
	case errors.Is(err, convo.ErrSessionClosed):
		respondError(w, http.StatusConflict, "voice session is closed")
	case err != nil:
		log.Error("Failed to relay dashboard event", "kind", e.Kind, "err", err)
		respondError(w, http.StatusInternalServerError, "could not record event")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	e, ok := s.audio.Lookup(r.Context(), chi.URLParam(r, "hash"))
	if !ok {
		respondError(w, http.StatusNotFound, "audio not found")
		return
	}
	w.Header().Set("Content-Type", audioconv.ContentType(e.Format))
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.Header().Set("Content-Length", strconv.Itoa(len(e.Audio)))
	w.Write(e.Audio)
}
