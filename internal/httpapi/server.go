package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cbgate/internal/session"
	"cbgate/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Models() []types.Model
	Ready() bool
	NewSession() (*session.Machine, error)
}

// NewMux builds the router: /v1/chat/completions, /v1/models, health probes
// and prometheus metrics.
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	// No Compress middleware here: gzip buffering defeats per-frame SSE
	// flushes.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Post("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		handleChatCompletions(svc, w, r)
	})

	r.Get("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		resp := types.ModelsResponse{Object: "list", Data: svc.Models()}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
		}
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("no engine"))
	})

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

// handleChatCompletions is the host side of the tick protocol: it feeds the
// request payload to a fresh session machine, then keeps ticking it with
// loopbacks until the machine reaches its terminal state.
func handleChatCompletions(svc Service, w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if !svc.Ready() {
		writeJSONError(w, http.StatusServiceUnavailable, "no engine pipeline attached")
		return
	}
	sess, err := svc.NewSession()
	if err != nil {
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	// Abandoned sessions must not leak their engine handle.
	defer sess.Release()

	logRequestStart(r)
	start := time.Now()

	// Join server base context with request context so shutdown cancels
	// in-flight generations too.
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()

	res, err := sess.Tick(ctx, session.Tick{Payload: body})
	if err != nil {
		status := statusForSessionError(err)
		writeJSONError(w, status, err.Error())
		observeSession("error", "rejected", time.Since(start))
		logRequestEnd(r, status, time.Since(start), err)
		return
	}

	if !sess.Streaming() {
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(res.Output); err != nil {
			logRequestEnd(r, 0, time.Since(start), err)
			return
		}
		observeSession("unary", "ok", time.Since(start))
		logRequestEnd(r, http.StatusOK, time.Since(start), nil)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	var flush func()
	if f, ok := w.(http.Flusher); ok {
		flush = f.Flush
	}
	for {
		if len(res.Output) > 0 {
			if _, err := w.Write(res.Output); err != nil {
				observeSession("stream", "disconnect", time.Since(start))
				return
			}
			if flush != nil {
				flush()
			}
			incChunkFrames()
		}
		if res.Done {
			break
		}
		if !res.Continue {
			break
		}
		res, err = sess.Tick(ctx, session.Tick{Loopback: true})
		if err != nil {
			// Headers are long gone; nothing to report to the client but
			// the dropped stream.
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				observeSession("stream", "disconnect", time.Since(start))
				return
			}
			observeSession("stream", "error", time.Since(start))
			logRequestEnd(r, 0, time.Since(start), err)
			return
		}
	}
	observeSession("stream", "ok", time.Since(start))
	logRequestEnd(r, http.StatusOK, time.Since(start), nil)
}

// statusForSessionError maps session error classes to HTTP statuses.
func statusForSessionError(err error) int {
	switch {
	case session.IsInvalidRequest(err), session.IsUnsupported(err):
		return http.StatusBadRequest
	case session.IsProtocol(err):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
