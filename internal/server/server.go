// Package server runs the preview dev server: virtual modules over HTTP
// and hot updates over WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/http"
	"os/exec"
	"path"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/conneroisu/sfcpreview/internal/config"
	previewerrors "github.com/conneroisu/sfcpreview/internal/errors"
	"github.com/conneroisu/sfcpreview/internal/logging"
	"github.com/conneroisu/sfcpreview/internal/middleware"
	"github.com/conneroisu/sfcpreview/internal/renderer"
	"github.com/conneroisu/sfcpreview/internal/resource"
	"github.com/conneroisu/sfcpreview/internal/validation"
	"github.com/conneroisu/sfcpreview/internal/version"
	"github.com/conneroisu/sfcpreview/internal/watcher"
)

const (
	iframePrefix = "/@preview:iframe/"
	shellPrefix  = "/@preview:shell/"
)

// PreviewServer serves components with live reload capability
type PreviewServer struct {
	config       *config.Config
	session      *Session
	hub          *Hub
	httpServer   *http.Server
	serverMutex  sync.RWMutex
	watcher      *watcher.FileWatcher
	logger       logging.Logger
	shutdownOnce sync.Once
}

// New creates a preview server over session.
func New(cfg *config.Config, session *Session, logger logging.Logger) *PreviewServer {
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.WithComponent("server")

	return &PreviewServer{
		config:  cfg,
		session: session,
		hub:     NewHub(greeting(session), logger),
		logger:  logger,
	}
}

// greeting announces the connection and replays unresolved errors so a
// client that connects late still shows the overlay.
func greeting(session *Session) func() []Message {
	return func() []Message {
		messages := []Message{{Type: MessageConnected}}
		for _, payload := range session.Errors() {
			messages = append(messages, Message{Type: MessageError, Err: &payload})
		}
		return messages
	}
}

// Hub returns the hot-update hub.
func (s *PreviewServer) Hub() *Hub { return s.hub }

// Start scans the project, starts watching it and serves HTTP until the
// server is shut down.
func (s *PreviewServer) Start(ctx context.Context) error {
	if _, err := s.session.Scan(ctx); err != nil {
		return fmt.Errorf("initial scan failed: %w", err)
	}

	go s.hub.Run(ctx)

	fw, err := s.session.NewWatcher(s.hub.Broadcast)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fw.Start(ctx); err != nil {
		fw.Stop()
		return fmt.Errorf("failed to start file watcher: %w", err)
	}

	addr := net.JoinHostPort(s.config.Server.Host, strconv.Itoa(s.config.Server.Port))

	s.serverMutex.Lock()
	s.watcher = fw
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	s.logger.Info(ctx, "Preview server listening", "url", "http://"+addr, "components", s.session.Components().Count())

	if s.config.Server.Open {
		go s.openBrowser(ctx, "http://"+addr)
	}

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Handler returns the HTTP routes of the server wrapped in middleware.
func (s *PreviewServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc(ClientPath, s.handleClient)
	mux.HandleFunc("/"+resource.Marker, s.handleModule)
	mux.HandleFunc(iframePrefix, s.handleIframe)
	mux.HandleFunc(shellPrefix, s.handleShell)
	mux.HandleFunc("/", s.handleRoot)

	return middleware.NewChain(middleware.Dependencies{Config: s.config, Logger: s.logger}).Apply(mux)
}

func (s *PreviewServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWS(w, r, originPatterns(s.config.Server.Host, s.config.Server.AllowedOrigins))
}

func (s *PreviewServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := "healthy"
	if len(s.session.Errors()) > 0 {
		status = "degraded"
	}

	health := map[string]interface{}{
		"status":     status,
		"timestamp":  time.Now().UTC(),
		"version":    version.GetShortVersion(),
		"components": s.session.Components().Count(),
		"errors":     len(s.session.Errors()),
		"clients":    s.hub.Len(),
		"modules":    s.session.Graph().Len(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.Error(r.Context(), err, "Failed to encode health response")
	}
}

func (s *PreviewServer) handleClient(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	fmt.Fprint(w, clientScript)
}

func (s *PreviewServer) handleModule(w http.ResponseWriter, r *http.Request) {
	text, err := s.session.Load(r.Context(), r.URL.RequestURI())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "no-cache")
	fmt.Fprint(w, text)
}

func (s *PreviewServer) handleIframe(w http.ResponseWriter, r *http.Request) {
	fileName := strings.TrimPrefix(r.URL.Path, iframePrefix)
	if fileName == "" {
		http.Error(w, "missing component file", http.StatusBadRequest)
		return
	}

	index := resource.Default
	if raw := r.URL.Query().Get("index"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "invalid preview index "+strconv.Quote(raw), http.StatusBadRequest)
			return
		}
		index = resource.At(n)
	}

	if _, ok := s.session.Components().Get(r.Context(), fileName); !ok {
		s.writeError(w, r, previewerrors.ErrComponentNotFound(fileName))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, renderer.IframeHTML(fileName, index, ClientPath))
}

func (s *PreviewServer) handleShell(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, shellPrefix)
	text, err := s.session.Loader().Load(r.Context(), resource.ShellAsset{FileName: name})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType(name))
	fmt.Fprint(w, text)
}

func (s *PreviewServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/", "/sandbox", "/sandbox/":
		s.handleIndex(w, r)
	default:
		s.handleSource(w, r)
	}
}

// handleIndex serves the shell page with the component index and the
// hot-update client injected.
func (s *PreviewServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	page := renderer.ShellHTML
	if s.config.Preview.ShellDir != "" {
		text, err := s.session.Loader().Load(r.Context(), resource.ShellAsset{FileName: "index.html"})
		if err == nil {
			page = text
		} else {
			s.logger.Warn(r.Context(), err, "Shell index unavailable, using built-in shell")
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, renderer.InjectScripts(page, resource.URL(resource.ListComponents{}), ClientPath))
}

// handleSource serves project files as plain modules and records them in
// the module graph.
func (s *PreviewServer) handleSource(w http.ResponseWriter, r *http.Request) {
	rel := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	content, err := s.session.ReadSource(r.Context(), rel)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.session.Graph().Record(rel)

	w.Header().Set("Content-Type", contentType(rel))
	w.Header().Set("Cache-Control", "no-cache")
	fmt.Fprint(w, content)
}

func (s *PreviewServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var pe *previewerrors.PreviewError
	switch {
	case previewerrors.IsNotFound(err):
		status = http.StatusNotFound
	case errors.As(err, &pe) && (pe.Code == previewerrors.ErrCodeInvalidPath || pe.Code == previewerrors.ErrCodePathTraversal):
		status = http.StatusBadRequest
	default:
		s.logger.Error(r.Context(), err, "Request failed", "path", r.URL.Path)
	}
	http.Error(w, err.Error(), status)
}

func contentType(name string) string {
	switch filepath.Ext(name) {
	case ".vue", ".ts", ".js", ".mjs":
		return "application/javascript"
	}
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "text/plain; charset=utf-8"
}

// Shutdown gracefully shuts down the server and cleans up resources
func (s *PreviewServer) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "Shutting down server")

		s.serverMutex.RLock()
		fw := s.watcher
		server := s.httpServer
		s.serverMutex.RUnlock()

		if fw != nil {
			if err := fw.Stop(); err != nil {
				s.logger.Warn(ctx, err, "Failed to stop file watcher")
			}
		}
		if server != nil {
			shutdownErr = server.Shutdown(ctx)
		}
	})

	return shutdownErr
}

func (s *PreviewServer) openBrowser(ctx context.Context, url string) {
	if err := validation.ValidateURL(url); err != nil {
		s.logger.Warn(ctx, err, "Refusing to open browser", "url", url)
		return
	}

	time.Sleep(100 * time.Millisecond) // Give server time to start

	var err error
	switch runtime.GOOS {
	case "linux":
		err = exec.Command("xdg-open", url).Start()
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	case "darwin":
		err = exec.Command("open", url).Start()
	default:
		err = fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}

	if err != nil {
		s.logger.Warn(ctx, err, "Failed to open browser", "url", url)
	}
}
