// Package server exposes a bucket filesystem over HTTP.
//
// Every route takes the virtual path in the "path" query parameter:
//
//	GET    /dirs?path=           list directories
//	HEAD   /dirs?path=           directory exists
//	DELETE /dirs?path=           delete a directory and everything below it;
//	                             the root needs all=true
//	GET    /files?path=&filter=  list files
//	GET    /file?path=           download
//	HEAD   /file?path=           file exists
//	PUT    /file?path=&override= upload
//	DELETE /file?path=           delete
//	GET    /url?path=            public URL
//	GET    /relative?path=       relative path for a URL or path
//	GET    /meta?path=           timestamps
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/koustreak/bucketfs/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// FileSystem is the set of filesystem operations the server calls.
type FileSystem interface {
	GetDirectories(ctx context.Context, path string) ([]string, error)
	DirectoryExists(ctx context.Context, path string) (bool, error)
	DeleteDirectory(ctx context.Context, path string, recursive bool) error
	AddFile(ctx context.Context, path string, r io.Reader, overrideIfExists bool) error
	GetFiles(ctx context.Context, path, filter string) ([]string, error)
	OpenFile(ctx context.Context, path string) (io.ReadSeeker, error)
	DeleteFile(ctx context.Context, path string) error
	FileExists(ctx context.Context, path string) (bool, error)
	GetURL(path string) string
	IsRoot(path string) bool
	GetRelativePath(fullPathOrURL string) string
	GetLastModified(ctx context.Context, path string) (time.Time, error)
	GetCreated(ctx context.Context, path string) (time.Time, error)
}

// Config tunes the HTTP server.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// MaxUpload caps request bodies on PUT /file. Zero means no limit.
	MaxUpload int64
}

// Server routes HTTP requests to a FileSystem.
type Server struct {
	fs       FileSystem
	cfg      Config
	log      *logger.Logger
	gatherer prometheus.Gatherer
	router   chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithGatherer serves the metrics in g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// New builds the router for fs.
func New(fs FileSystem, cfg Config, opts ...Option) *Server {
	s := &Server{
		fs:  fs,
		cfg: cfg,
		log: logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/dirs", s.listDirectories)
	r.Head("/dirs", s.directoryExists)
	r.Delete("/dirs", s.deleteDirectory)
	r.Get("/files", s.listFiles)
	r.Get("/file", s.getFile)
	r.Head("/file", s.fileExists)
	r.Put("/file", s.putFile)
	r.Delete("/file", s.deleteFile)
	r.Get("/url", s.url)
	r.Get("/relative", s.relative)
	r.Get("/meta", s.meta)
	return r
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.With().Str("addr", s.cfg.Addr).Logger().Info("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info("http server stopped")
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.log.Request(r.Method, r.URL.Path, status, time.Since(start), middleware.GetReqID(r.Context()))
	})
}
