package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"github.com/2beens/exercisetracker/internal/config"
	"github.com/2beens/exercisetracker/internal/db"
	"github.com/2beens/exercisetracker/internal/middleware"
	"github.com/2beens/exercisetracker/internal/telemetry/metrics"
	"github.com/2beens/exercisetracker/internal/telemetry/tracing"
	"github.com/2beens/exercisetracker/internal/tracker"
	"github.com/2beens/exercisetracker/internal/tracker/mongo"
	"github.com/2beens/exercisetracker/internal/tracker/postgres"
	"github.com/2beens/exercisetracker/internal/views"
)

const serviceName = "exercise-tracker"

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	listener          net.Listener

	config      *config.Config
	store       tracker.Store
	redisClient *redis.Client

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config *config.Config
}

// NewServer opens the configured backing store and sets up telemetry.
// A store that cannot be reached is an error, the service must not start without it.
func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	cfg := params.Config

	var redisClient *redis.Client
	if cfg.RedisEnabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
			Password: cfg.RedisPassword,
			DB:       0, // use default DB
		})

		rdbStatus := redisClient.Ping(ctx)
		if err := rdbStatus.Err(); err != nil {
			log.Errorf("--> failed to ping redis: %s", err)
		} else {
			log.Debugf("redis ping: %s", rdbStatus.Val())
		}
	}

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(cfg.TracingEnabled, serviceName, redisClient)
	if err != nil {
		return nil, fmt.Errorf("honeycomb setup: %w", err)
	}

	store, storeCollector, err := openStore(ctx, cfg)
	if err != nil {
		otelShutdown()
		if redisClient != nil {
			_ = redisClient.Close()
		}
		return nil, err
	}

	promRegistry := metrics.SetupPrometheus(storeCollector)
	metricsManager := metrics.NewManager("backend", "exercise_tracker", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	return newServer(cfg, store, redisClient, promRegistry, metricsManager, otelShutdown), nil
}

func newServer(
	cfg *config.Config,
	store tracker.Store,
	redisClient *redis.Client,
	promRegistry *prometheus.Registry,
	metricsManager *metrics.Manager,
	otelShutdown func(),
) *Server {
	if otelShutdown == nil {
		otelShutdown = func() {}
	}
	return &Server{
		config:         cfg,
		store:          store,
		redisClient:    redisClient,
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}
}

// openStore returns the store selected by the store driver, plus an optional collector with its stats.
func openStore(ctx context.Context, cfg *config.Config) (tracker.Store, prometheus.Collector, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMongo:
		repo, err := mongo.Open(ctx, db.NewMongoClientParams{
			DBHost:         cfg.DBHost,
			DBPort:         cfg.DBPort,
			DBName:         cfg.DBName,
			DBUser:         cfg.DBUser,
			DBPassword:     cfg.DBPassword,
			ConnectTimeout: cfg.DBConnectTimeout.Duration,
			KeepAlive:      cfg.DBKeepAlive.Duration,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open mongo store: %w", err)
		}
		return repo, nil, nil
	case config.StoreDriverPostgres:
		repo, err := postgres.Open(ctx, db.NewDBPoolParams{
			DBHost:         cfg.DBHost,
			DBPort:         cfg.DBPort,
			DBName:         cfg.DBName,
			DBUser:         cfg.DBUser,
			DBPassword:     cfg.DBPassword,
			SSLMode:        cfg.DBSSLMode,
			ConnectTimeout: cfg.DBConnectTimeout.Duration,
			KeepAlive:      cfg.DBKeepAlive.Duration,
			TracingEnabled: cfg.TracingEnabled,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		pgxpoolCollector := pgxpoolprometheus.NewCollector(
			repo.Pool(),
			map[string]string{"db_name": cfg.DBName},
		)
		return repo, pgxpoolCollector, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store driver: %s", cfg.StoreDriver)
	}
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("main-router"))

	trackerHandler := tracker.NewHandler(
		tracker.NewService(s.store),
		s.metricsManager,
	)

	var rateLimiter middleware.RequestRateLimiter
	if s.redisClient != nil {
		rateLimiter = middleware.NewRedisRateLimiter(s.redisClient)
	} else {
		rateLimiter = middleware.NewInMemoryRateLimiter(middleware.DefaultLimiterCleanupInterval)
	}
	rateLimited := func(name string, perMin int, h http.HandlerFunc) http.Handler {
		if perMin <= 0 {
			return h
		}
		return middleware.RateLimit(rateLimiter, name, perMin, s.metricsManager)(h)
	}

	r.Handle(
		"/api/exercise/new-user",
		rateLimited("new-user", s.config.NewUserRateLimitPerMin, trackerHandler.HandleNewUser),
	).Methods("POST", "OPTIONS").Name("new-user")
	r.Handle(
		"/api/exercise/add",
		rateLimited("add-exercise", s.config.AddExerciseRateLimitPerMin, trackerHandler.HandleAddExercise),
	).Methods("POST", "OPTIONS").Name("add-exercise")
	r.HandleFunc("/api/exercise/log", trackerHandler.HandleLog).Methods("GET", "OPTIONS").Name("log")

	r.Handle("/health", newHealthHandler(s.store, s.redisClient)).Methods("GET").Name("health")
	r.HandleFunc("/", views.HandleIndex).Methods("GET").Name("index")

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors(s.config.CorsAllowedOrigins))
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

// Serve starts listening right away, so a taken port is reported to the caller, and then serves in the background.
func (s *Server) Serve(host string, port int) error {
	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	listener, err := net.Listen("tcp", ipAndPort)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", ipAndPort, err)
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Handler:      s.routerSetup(),
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.InstrumentMetricHandler(
		s.promRegistry,
		promhttp.HandlerFor(s.promRegistry, promhttp.HandlerOpts{}),
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:              metricsAddr,
		Handler:           metricsRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", listener.Addr())
		err := s.httpServer.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, serve: %s", err)
		}
	}()

	if s.config.PrometheusMetricsPort != "" {
		go func() {
			log.Debugf(" > metrics listening on: [%s]", metricsAddr)
			err := s.metricsHttpServer.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("metrics service, listen and serve: %s", err)
			}
		}()
	}

	s.metricsManager.GaugeLifeSignal.Set(1)
	return nil
}

// Addr is the address the main listener is bound to, empty before Serve.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	// stop taking requests before the store goes away
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Errorf(" >>> failed to gracefully shutdown http server: %s", err)
		}
		log.Warnln("server shut down")
	}

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Errorf(" >>> failed to gracefully shutdown metrics http server: %s", err)
		}
		log.Warnln("metrics server shut down")
	}

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}

	if s.store != nil {
		log.Debugln("closing store ...")
		if err := s.store.Close(ctx); err != nil {
			log.Errorf("failed to close store: %s", err)
		}
		log.Debugln("store closed")
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed, http.StateHijacked:
		s.metricsManager.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}
