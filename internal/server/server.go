// Package server exposes the shuffle pipeline over HTTP.
//
// Routes:
//
//	GET  /healthz           liveness and build version
//	GET  /v1/rules/default  the default rule set
//	POST /v1/rules/validate validate a rule expression or TOML body
//	POST /v1/shuffle        body is an image; query: rules, seed, format, quality
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/pixelshuffle/pkg/buildinfo"
	"github.com/matzehuels/pixelshuffle/pkg/errors"
	"github.com/matzehuels/pixelshuffle/pkg/observability"
	"github.com/matzehuels/pixelshuffle/pkg/pipeline"
	"github.com/matzehuels/pixelshuffle/pkg/rules"
)

// DefaultMaxBodyBytes bounds uploaded images.
const DefaultMaxBodyBytes = 32 << 20

// Config configures a Server.
type Config struct {
	MaxBodyBytes int64
	Parallelism  int
	Rules        rules.Set // used when a request names no rules
}

// Server serves the HTTP API.
type Server struct {
	runner *pipeline.Runner
	logger *log.Logger
	cfg    Config
	router chi.Router
}

// New builds a Server around runner.
func New(runner *pipeline.Runner, logger *log.Logger, cfg Config) *Server {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Rules == nil {
		cfg.Rules = rules.Default()
	}
	s := &Server{runner: runner, logger: logger, cfg: cfg}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/rules/default", s.handleDefaultRules)
		r.Post("/rules/validate", s.handleValidateRules)
		r.Post("/shuffle", s.handleShuffle)
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		observability.HTTP().OnRequest(r.Context(), r.Method, r.URL.Path)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		observability.HTTP().OnResponse(r.Context(), r.Method, r.URL.Path, status, elapsed)
		s.logger.Debug("request",
			"id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", elapsed)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Status string         `json:"status"`
		Build  buildinfo.Info `json:"build"`
	}{"ok", buildinfo.Get()})
}

type rulesResponse struct {
	Expr   string               `json:"expr"`
	Rules  rules.Set            `json:"rules"`
	Issues []rules.NestingIssue `json:"nesting_issues,omitempty"`
}

func (s *Server) handleDefaultRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rulesResponse{
		Expr:  s.cfg.Rules.String(),
		Rules: s.cfg.Rules,
	})
}

// handleValidateRules accepts either a rule expression or a TOML document.
func (s *Server) handleValidateRules(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "read body"))
		return
	}

	var set rules.Set
	if r.Header.Get("Content-Type") == "application/toml" {
		cfg, err := rules.Parse(body)
		if err != nil {
			writeError(w, err)
			return
		}
		set = cfg.Rules
	} else {
		set, err = rules.ParseExpr(string(body))
		if err != nil {
			writeError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, rulesResponse{
		Expr:   set.String(),
		Rules:  set,
		Issues: set.CheckNesting(),
	})
}

func (s *Server) handleShuffle(w http.ResponseWriter, r *http.Request) {
	opts, err := s.optionsFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
				Code:    string(errors.ErrCodeInvalidInput),
				Message: "image exceeds " + strconv.FormatInt(s.cfg.MaxBodyBytes, 10) + " bytes",
			})
			return
		}
		writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "read body"))
		return
	}
	if len(body) == 0 {
		writeError(w, errors.New(errors.ErrCodeInvalidImage, "request body is empty"))
		return
	}

	res, err := s.runner.Execute(r.Context(), body, opts)
	if err != nil {
		writeError(w, err)
		return
	}

	cacheStatus := "miss"
	if res.CacheHit {
		cacheStatus = "hit"
	}
	w.Header().Set("Content-Type", "image/"+res.Format)
	w.Header().Set("X-Run-Id", res.RunID)
	w.Header().Set("X-Cache", cacheStatus)
	w.Header().Set("X-Seed", strconv.FormatUint(opts.Seed, 10))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Artifact)
}

func (s *Server) optionsFromQuery(r *http.Request) (pipeline.Options, error) {
	q := r.URL.Query()
	opts := pipeline.Options{
		Rules:       s.cfg.Rules,
		Format:      q.Get("format"),
		Parallelism: s.cfg.Parallelism,
		Refresh:     q.Get("refresh") == "true",
		Logger:      s.logger,
	}

	if expr := q.Get("rules"); expr != "" {
		set, err := rules.ParseExpr(expr)
		if err != nil {
			return opts, err
		}
		opts.Rules = set
	}
	if v := q.Get("seed"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return opts, errors.New(errors.ErrCodeInvalidInput, "invalid seed %q", v)
		}
		opts.Seed = seed
	}
	if v := q.Get("quality"); v != "" {
		quality, err := strconv.Atoi(v)
		if err != nil {
			return opts, errors.New(errors.ErrCodeInvalidInput, "invalid quality %q", v)
		}
		opts.Quality = quality
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return opts, err
	}
	return opts, nil
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFor maps an error code onto an HTTP status.
func statusFor(code errors.Code) int {
	switch code {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidRule, errors.ErrCodeInvalidChunkSize,
		errors.ErrCodeInvalidPermutation, errors.ErrCodeInvalidFormat, errors.ErrCodeInvalidImage,
		errors.ErrCodeInvalidPath:
		return http.StatusBadRequest
	case errors.ErrCodeFileNotFound:
		return http.StatusNotFound
	case errors.ErrCodeUnsupported:
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	writeJSON(w, statusFor(code), errorResponse{
		Code:    string(code),
		Message: errors.UserMessage(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
