// Package middleware composes the HTTP middleware of the preview server.
//
// Middlewares run in the order they were added: the first added is the
// outermost wrapper. The default stack is recovery, request logging, CORS.
package middleware

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/conneroisu/sfcpreview/internal/config"
	"github.com/conneroisu/sfcpreview/internal/logging"
	"github.com/conneroisu/sfcpreview/internal/validation"
)

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

// Dependencies are what the default stack needs.
type Dependencies struct {
	Config *config.Config
	Logger logging.Logger
}

// Chain is an ordered middleware stack.
type Chain struct {
	config      *config.Config
	logger      logging.Logger
	middlewares []Middleware
}

// NewChain creates a chain holding the default stack.
func NewChain(deps Dependencies) *Chain {
	if deps.Config == nil {
		panic("middleware: config cannot be nil")
	}
	if deps.Logger == nil {
		deps.Logger = logging.Nop()
	}

	chain := &Chain{
		config:      deps.Config,
		logger:      deps.Logger.WithComponent("http"),
		middlewares: make([]Middleware, 0, 4),
	}
	chain.Add(chain.recoverMiddleware())
	chain.Add(chain.loggingMiddleware())
	chain.Add(chain.corsMiddleware())

	return chain
}

// Add appends m as the innermost middleware so far.
func (c *Chain) Add(m Middleware) {
	c.middlewares = append(c.middlewares, m)
}

// Len returns the number of middlewares.
func (c *Chain) Len() int {
	return len(c.middlewares)
}

// Apply wraps handler in every middleware of the chain.
func (c *Chain) Apply(handler http.Handler) http.Handler {
	if handler == nil {
		panic("middleware: handler cannot be nil")
	}

	wrapped := handler
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		wrapped = c.middlewares[i](wrapped)
	}
	return wrapped
}

// statusRecorder captures the status code written by the inner handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack hands the connection to the websocket upgrade.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}

// Unwrap lets http.ResponseController reach the
// underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (c *Chain) loggingMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(recorder, r)

			c.logger.Debug(r.Context(), "Request served",
				"method", r.Method,
				"path", r.URL.Path,
				"status", recorder.status,
				"duration", time.Since(start))
		})
	}
}

// corsMiddleware allows configured origins. In development every origin is
// allowed.
func (c *Chain) corsMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if c.isAllowedOrigin(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			} else if c.config.Server.Environment == "development" {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (c *Chain) isAllowedOrigin(origin string) bool {
	if origin == "" || len(c.config.Server.AllowedOrigins) == 0 {
		return false
	}
	return validation.ValidateOrigin(origin, c.config.Server.AllowedOrigins) == nil
}

// recoverMiddleware turns a handler panic into a 500 instead of dropping
// the connection.
func (c *Chain) recoverMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					c.logger.Error(r.Context(), fmt.Errorf("panic: %v", rec), "Handler panicked", "path", r.URL.Path)
					http.Error(w, "internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
