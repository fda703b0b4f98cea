package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/qenty/academy/config"
	"github.com/qenty/academy/internal/db"
	"github.com/qenty/academy/internal/handlers"
	"github.com/qenty/academy/internal/metrics"
	"github.com/qenty/academy/internal/mq"
	"github.com/qenty/academy/internal/payment"
	"github.com/qenty/academy/internal/receipts"
	"github.com/qenty/academy/internal/services"
	"github.com/qenty/academy/internal/session"
	"github.com/qenty/academy/internal/storage"
	"github.com/qenty/academy/internal/store"
	"github.com/qenty/academy/internal/store/memory"
)

const devAdminPassword = "admin123"

// Options tweak how New builds the application.
type Options struct {
	// InMemory replaces PostgreSQL with the in-process store and, when no
	// storage backend is configured, keeps covers in memory too.
	InMemory bool
}

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	queue      *mq.MQ
	objects    *storage.Storage
	logger     logrus.FieldLogger

	stopConsumers context.CancelFunc
	consumers     sync.WaitGroup
}

type repositories struct {
	users      services.UserRepository
	courses    services.CourseRepository
	ownerships services.OwnershipRepository
}

// New builds every dependency of the storefront, seeds the catalog and
// registers the routes.
func New(ctx context.Context, cfg config.Config, logger logrus.FieldLogger, opts Options) (*Server, error) {
	srv := &Server{logger: logger}

	secret := strings.TrimSpace(cfg.SessionSecret)
	if secret == "" {
		if !opts.InMemory {
			return nil, errors.New("SESSION_SECRET is required")
		}
		secret = uuid.NewString()
		logger.Warn("SESSION_SECRET not set, using a random secret; sessions end on restart")
	}
	if strings.TrimSpace(cfg.Admin.Password) == "" {
		if !opts.InMemory {
			return nil, services.ErrAdminPasswordRequired
		}
		cfg.Admin.Password = devAdminPassword
		logger.WithField("email", cfg.Admin.Email).Warn("ADMIN_PASSWORD not set, using the development default")
	}

	var repos repositories
	if opts.InMemory {
		mem := memory.New()
		repos = repositories{users: mem.Users(), courses: mem.Courses(), ownerships: mem.Ownerships()}
		if cfg.Storage.Backend == "" || cfg.Storage.Backend == "none" {
			cfg.Storage.Backend = "memory"
		}
	} else {
		if err := db.MigrateUp(db.URL(cfg)); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		dbConn, err := db.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		srv.db = dbConn
		repos = repositories{
			users:      store.NewUserRepository(dbConn),
			courses:    store.NewCourseRepository(dbConn),
			ownerships: store.NewOwnershipRepository(dbConn),
		}
	}

	objects, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		srv.close()
		return nil, err
	}
	if objects == nil {
		logger.Info("object storage disabled; cover uploads are rejected")
	}

	queue, err := mq.New(ctx, cfg.MQ)
	if err != nil {
		srv.close()
		return nil, err
	}
	srv.queue = queue
	srv.objects = objects
	if queue != nil && cfg.MQ.Backend == "memory" {
		srv.consumeReceipts(cfg.MQ.PurchaseChannel)
	}

	paymentClient := payment.NewClient(cfg.Payment)
	if !paymentClient.Configured() {
		logger.Warn("MP_ACCESS_TOKEN not set; checkout will fail until it is configured")
	}

	userService := services.NewUserService(repos.users)
	courseService := services.NewCourseService(repos.courses, repos.ownerships, objects, logger)
	reportService := services.NewReportService(repos.ownerships)
	var checkoutOpts []services.CheckoutOption
	if queue != nil {
		checkoutOpts = append(checkoutOpts, services.WithPurchaseEvents(queue, cfg.MQ.PurchaseChannel))
	}
	checkoutService := services.NewCheckoutService(
		courseService,
		repos.ownerships,
		paymentClient,
		cfg.BaseURL,
		cfg.Payment.Currency,
		logger,
		checkoutOpts...,
	)

	if err := services.Seed(ctx, userService, courseService, cfg.Admin, logger); err != nil {
		srv.close()
		return nil, err
	}

	sessions := session.NewManager(secret, strings.HasPrefix(cfg.BaseURL, "https://"))
	web, err := handlers.NewWeb(sessions, logger)
	if err != nil {
		srv.close()
		return nil, err
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		metrics.Middleware,
		middleware.Timeout(60*time.Second),
		handlers.ResolveActor(web, userService),
	)
	handlers.HealthRouter(router, srv.ping)
	router.Handle("/metrics", metrics.Handler())
	handlers.AuthRouter(router, web, userService)
	handlers.CatalogRouter(router, web, courseService)
	handlers.CheckoutRouter(router, web, checkoutService)
	handlers.AdminRouter(router, web, courseService, reportService)
	handlers.MediaRouter(router, web, courseService)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	srv.router = router
	srv.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return srv, nil
}

// Router exposes the chi router.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server. It returns nil after Shutdown.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then releases the database and the
// message queue.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.close()
	return err
}

// consumeReceipts runs the receipt worker inside this process. The memory
// broker only reaches subscribers of the same process, so without it every
// purchase event would sit in the buffer until publishing fails.
func (s *Server) consumeReceipts(channel string) {
	ctx, cancel := context.WithCancel(context.Background())
	s.stopConsumers = cancel
	worker := receipts.NewWorker(s.objects, channel, s.logger)
	s.consumers.Add(1)
	go func() {
		defer s.consumers.Done()
		if err := worker.Run(ctx, s.queue); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.WithError(err).Error("in-process receipt worker stopped")
		}
	}()
}

func (s *Server) close() {
	if s.stopConsumers != nil {
		s.stopConsumers()
		s.consumers.Wait()
	}
	if s.queue != nil {
		if err := s.queue.Close(); err != nil {
			s.logger.WithError(err).Warn("closing message queue")
		}
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *Server) ping(r *http.Request) error {
	if s.db == nil {
		return nil
	}
	return s.db.PingContext(r.Context())
}
