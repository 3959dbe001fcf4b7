// Package httpapi exposes registration, login and the file operations over
// HTTP. Handlers only decode requests, call the services and map errors to
// status codes.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/logging"
	"github.com/dmitrijs2005/filekeeper/internal/server/auth"
	"github.com/dmitrijs2005/filekeeper/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	maxJSONBodyBytes  = 1 << 20
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

type HTTPServer struct {
	address        string
	users          *services.UserService
	files          *services.FileService
	authenticator  *auth.Authenticator
	logger         logging.Logger
	maxUploadBytes int64
}

func NewHTTPServer(a string, l logging.Logger, us *services.UserService, fs *services.FileService,
	authenticator *auth.Authenticator, maxUploadBytes int64) *HTTPServer {
	return &HTTPServer{
		address:        a,
		logger:         l.With("module", "http_server"),
		users:          us,
		files:          fs,
		authenticator:  authenticator,
		maxUploadBytes: maxUploadBytes,
	}
}

// Router builds the chi router with all routes and middleware.
func (s *HTTPServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLogger, metricsMiddleware)

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Post("/register", s.register)
	r.Post("/login", s.login)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.bearerAuth)

		r.Post("/upload", s.upload)
		r.Get("/uploads", s.list)
		r.Get("/uploads/{filename}", s.get)
		r.Get("/download/{filename}", s.download)
		r.Delete("/delete", s.deleteFile)
		r.Put("/rename", s.renameFile)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Router(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP server shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
