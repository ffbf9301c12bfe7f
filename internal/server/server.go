// internal/server/server.go
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"time"

	"golang.org/x/crypto/acme/autocert"

	"ogpimage/internal/ogp"
)

type Config struct {
	// AutocertDomains enables TLS via ACME for the listed hosts.
	AutocertDomains []string
	// CacheDir holds ACME account and certificate state.
	CacheDir string
	// Health reports whether the backing store is usable. Nil means always healthy.
	Health          func(ctx context.Context) error
	ShutdownTimeout time.Duration
}

type Server struct {
	logger    *log.Logger
	endpoints []*ogp.Endpoint
	config    Config
}

func NewServer(logger *log.Logger, endpoints []*ogp.Endpoint, config Config) (*Server, error) {
	seen := make(map[string]bool, len(endpoints))
	for _, ep := range endpoints {
		if seen[ep.Path()] {
			return nil, fmt.Errorf("duplicate endpoint path %q", ep.Path())
		}
		seen[ep.Path()] = true
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 10 * time.Second
	}
	return &Server{logger: logger, endpoints: endpoints, config: config}, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	for _, ep := range s.endpoints {
		path := ep.Path()
		mux.Handle(path, exact(path, ep, s.handle404))
	}
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/", s.handle404)

	return s.requestLogger(mux)
}

// exact rejects subpaths that a ServeMux pattern ending in "/" would match.
func exact(path string, h http.Handler, notFound http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			notFound(w, r)
			return
		}
		h.ServeHTTP(w, r)
	})
}

func (s *Server) handle404(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	fmt.Fprint(w, "Not Found")
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.config.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.config.Health(ctx); err != nil {
			s.logger.Printf("Health check failed: %v", err)
			http.Error(w, "Store Error", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ok")
}

func (s *Server) httpServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
		ErrorLog:          s.logger,
	}
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := s.httpServer(addr)

	var manager *autocert.Manager
	if len(s.config.AutocertDomains) > 0 {
		manager = &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(s.config.AutocertDomains...),
			Cache:      autocert.DirCache(filepath.Join(s.config.CacheDir, "autocert")),
		}
		srv.TLSConfig = &tls.Config{
			GetCertificate: manager.GetCertificate,
			MinVersion:     tls.VersionTLS12,
			NextProtos:     []string{"h2", "http/1.1", "acme-tls/1"},
		}
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("Starting server on %s", addr)
		var err error
		if manager != nil {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Printf("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
