package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fanvault/apiserver/config"
	"github.com/fanvault/apiserver/internal/db"
	"github.com/fanvault/apiserver/internal/events"
	"github.com/fanvault/apiserver/internal/handlers"
	"github.com/fanvault/apiserver/internal/keepalive"
	"github.com/fanvault/apiserver/internal/services"
	"github.com/fanvault/apiserver/internal/storage"
	"github.com/fanvault/apiserver/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server wraps the HTTP server, router, and the resources they own.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	bus        *events.Bus
	pinger     *keepalive.Pinger
	pingCancel context.CancelFunc
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	jwtSecret := strings.TrimSpace(cfg.Auth.JWTSecret)
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	media, err := newStorage(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	if err := media.EnsureBucket(ctx); err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	bus, err := newBus(ctx, cfg.Events)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	fanworkRepo := store.NewFanworkRepository(dbConn)
	commentRepo := store.NewCommentRepository(dbConn)
	tagRepo := store.NewTagRepository(dbConn)
	reportRepo := store.NewReportRepository(dbConn)
	reactionRepo := store.NewReactionRepository(dbConn)

	userService := services.NewUserService(userRepo, bus)
	fanworkService := services.NewFanworkService(fanworkRepo, tagRepo, media, bus)
	commentService := services.NewCommentService(commentRepo, fanworkRepo)
	tagService := services.NewTagService(tagRepo)
	reportService := services.NewReportService(reportRepo, bus)
	reactionService := services.NewReactionService(reactionRepo)

	guard := handlers.NewGuard(userService)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/health", handlers.Healthz)
	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, userService, guard, jwtSecret, cfg.Auth.TokenTTL)
		})
		r.Route("/fanworks", func(r chi.Router) {
			handlers.FanworkRouter(r, fanworkService, commentService, reactionService, guard, jwtSecret, cfg.Upload.MaxBytes)
		})
		r.Route("/tags", func(r chi.Router) {
			handlers.TagRouter(r, tagService)
		})
		r.Route("/reports", func(r chi.Router) {
			handlers.ReportRouter(r, reportService, guard, jwtSecret)
		})
		r.Route("/admin", func(r chi.Router) {
			handlers.AdminRouter(r, userService, fanworkService, reportService, guard, jwtSecret)
		})
	})

	if cfg.Storage.Backend == "local" || cfg.Storage.Backend == "" {
		serveUploads(router, media.Bucket())
	}
	if cfg.WebDir != "" {
		serveWeb(router, cfg.WebDir)
	}

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var pinger *keepalive.Pinger
	if cfg.KeepAlive.URL != "" {
		pinger = keepalive.New(cfg.KeepAlive.URL, cfg.KeepAlive.Interval)
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		bus:        bus,
		pinger:     pinger,
	}, nil
}

func newStorage(ctx context.Context, cfg config.StorageConfig) (*storage.Storage, error) {
	var (
		backend storage.ObjectStorage
		err     error
	)
	switch cfg.Backend {
	case "minio":
		backend, err = storage.NewMinioClient(cfg.Minio)
	case "gcs":
		backend, err = storage.NewGCSClient(ctx, cfg.GCS)
	case "local", "":
		backend, err = storage.NewLocalClient(cfg.Local)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return storage.NewStorage(backend, cfg.MediaBaseURL), nil
}

func newBus(ctx context.Context, cfg config.EventsConfig) (*events.Bus, error) {
	switch cfg.Backend {
	case "rabbitmq":
		client, err := events.NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return events.New(client), nil
	case "pubsub":
		client, err := events.NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return events.New(client), nil
	case "none", "":
		return events.New(nil), nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}

// serveUploads exposes locally stored media under /uploads/.
func serveUploads(router *chi.Mux, dir string) {
	fileServer := http.StripPrefix("/uploads/", http.FileServer(http.Dir(dir)))
	router.Get("/uploads/*", func(w http.ResponseWriter, r *http.Request) {
		fileServer.ServeHTTP(w, r)
	})
}

// serveWeb serves the built frontend, falling back to index.html so
// client-side routes resolve after a hard refresh.
func serveWeb(router *chi.Mux, dir string) {
	fileServer := http.FileServer(http.Dir(dir))
	router.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean("/"+r.URL.Path))
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			fileServer.ServeHTTP(w, r)
			return
		}
		http.ServeFile(w, r, filepath.Join(dir, "index.html"))
	})
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server and the keep-alive pinger.
func (s *Server) Start() error {
	if s.pinger != nil {
		ctx, cancel := context.WithCancel(context.Background())
		s.pingCancel = cancel
		go s.pinger.Run(ctx)
	}
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting new connections and waits for in-flight
// requests to finish, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.pingCancel != nil {
		s.pingCancel()
	}
	err := s.httpServer.Shutdown(ctx)
	if s.bus != nil {
		_ = s.bus.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
