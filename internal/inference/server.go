package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"nemoship/internal/audio"
	"nemoship/internal/logging"
	"nemoship/internal/services"
)

const (
	// HeaderRequestID carries the correlation id in both directions.
	HeaderRequestID = "X-Request-Id"

	kindPayloadTooLarge = "PayloadTooLarge"
	kindInference       = "InferenceFailure"
	kindNotReady        = "NotReady"
)

// ServerConfig contains listener settings.
type ServerConfig struct {
	Bind            string
	MaxRequestBytes int64
}

// Server is the SageMaker container HTTP front end.
type Server struct {
	cfg         ServerConfig
	decoder     *audio.Decoder
	transcriber *Transcriber
	encoder     *Encoder
	logger      *slog.Logger
	ready       atomic.Bool
	served      atomic.Int64

	router   *mux.Router
	server   *http.Server
	listener net.Listener
}

// NewServer wires the request pipeline. The server reports not ready on
// /ping until SetReady(true).
func NewServer(cfg ServerConfig, decoder *audio.Decoder, transcriber *Transcriber, encoder *Encoder, logger *slog.Logger) *Server {
	if cfg.MaxRequestBytes <= 0 {
		cfg.MaxRequestBytes = 32 << 20
	}
	s := &Server{
		cfg:         cfg,
		decoder:     decoder,
		transcriber: transcriber,
		encoder:     encoder,
		logger:      logging.NewComponentLogger(logger, "inference-server"),
	}

	router := mux.NewRouter()
	router.HandleFunc("/ping", s.handlePing).Methods(http.MethodGet)
	router.HandleFunc("/invocations", s.handleInvocations).Methods(http.MethodPost)
	// mux skips Use middleware for these two, so they are wrapped directly.
	router.NotFoundHandler = s.requestID(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusNotFound, "NotFound", "no such route")
	}))
	router.MethodNotAllowedHandler = s.requestID(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "method not allowed")
	}))
	router.Use(s.requestID)
	s.router = router

	s.server = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetReady toggles the /ping health response.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Served returns the number of successful invocations.
func (s *Server) Served() int64 {
	return s.served.Load()
}

// Start listens on the configured bind address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Bind)
	if err != nil {
		return fmt.Errorf("inference listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("inference server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("inference server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address once Start succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(services.WithRequestID(r.Context(), id)))
	})
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		s.writeError(w, http.StatusServiceUnavailable, kindNotReady, "model not loaded")
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleInvocations(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	logger := logging.WithContext(ctx, s.logger)

	if !s.ready.Load() {
		s.writeError(w, http.StatusServiceUnavailable, kindNotReady, "model not loaded")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxRequestBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.Info("request rejected", logging.String("kind", kindPayloadTooLarge), logging.Int64("limit_bytes", tooLarge.Limit))
			s.writeError(w, http.StatusRequestEntityTooLarge, kindPayloadTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		s.writeError(w, http.StatusBadRequest, "ReadError", "read request body: "+err.Error())
		return
	}

	buf, err := s.decoder.Decode(body, r.Header.Get("Content-Type"))
	if err != nil {
		kind := audio.Kind(err)
		status := http.StatusBadRequest
		if errors.Is(err, audio.ErrUnsupportedContentType) {
			status = http.StatusUnsupportedMediaType
		}
		logger.Info("request rejected", logging.String("kind", kind), logging.Error(err))
		s.writeError(w, status, kind, err.Error())
		return
	}

	text, err := s.transcriber.Transcribe(ctx, buf)
	if err != nil {
		logging.ErrorWithContext(logger, "transcription failed", "inference_failure",
			logging.Error(err),
			logging.Duration("audio", buf.Duration()),
			logging.String(logging.FieldErrorHint, "check the ASR worker log output"),
		)
		s.writeError(w, http.StatusInternalServerError, kindInference, err.Error())
		return
	}

	payload, contentType := s.encoder.Encode(text, r.Header.Get("Accept"))
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(payload); err != nil {
		logger.Warn("write response failed", logging.Error(err))
		return
	}
	s.served.Add(1)
	logger.Info("transcription served",
		logging.Int("samples", buf.Len()),
		logging.Duration("audio", buf.Duration()),
		logging.Duration("elapsed", time.Since(start)),
	)
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorBody{Error: message, Kind: kind}); err != nil {
		s.logger.Error("failed to encode error response", logging.Error(err))
	}
}
