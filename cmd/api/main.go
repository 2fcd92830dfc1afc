package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterstdlib "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/cargotrack/backend-cargo/internal/auth"
	"github.com/cargotrack/backend-cargo/internal/billing"
	"github.com/cargotrack/backend-cargo/internal/common"
	"github.com/cargotrack/backend-cargo/internal/config"
	"github.com/cargotrack/backend-cargo/internal/db"
	"github.com/cargotrack/backend-cargo/internal/events"
	"github.com/cargotrack/backend-cargo/internal/health"
	"github.com/cargotrack/backend-cargo/internal/notify"
	"github.com/cargotrack/backend-cargo/internal/obs"
	"github.com/cargotrack/backend-cargo/internal/parcel"
	"github.com/cargotrack/backend-cargo/internal/ratelimit"
	"github.com/cargotrack/backend-cargo/internal/security"
	"github.com/cargotrack/backend-cargo/internal/shipment"
	"github.com/cargotrack/backend-cargo/internal/user"
	"github.com/cargotrack/backend-cargo/internal/warehouse"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)

	tracingEnabled := cfg.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   cfg.ServiceName,
			Endpoint:      cfg.TracingEndpoint,
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: cfg.TracingSampleRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if envBool("DB_AUTO_MIGRATE", true) {
		if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = cfg.ServiceName
	if cfg.DBMaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.DBMaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	queries := db.New(pool)

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	var mailer common.EmailSender = common.NopEmailSender{}
	if cfg.EmailEnabled && cfg.SMTPHost != "" {
		mailer = common.SMTPEmail{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
		}
	}

	taskClient := asynq.NewClient(asynq.RedisClientOpt{Addr: redisOpts.Addr, Password: redisOpts.Password, DB: redisOpts.DB})
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()
	enqueuer := &notify.Enqueuer{Client: taskClient, Queue: cfg.NotifyQueue}

	emailNotifier := notify.EmailNotifier{
		Tasks:   enqueuer,
		Mail:    mailer,
		Enabled: cfg.EmailEnabled,
	}
	bus := &events.Bus{
		Store:     queries,
		Notifiers: []events.Notifier{notify.MetricsNotifier{}, emailNotifier},
	}

	authService, err := auth.NewService(auth.Config{
		Queries:         queries,
		Secret:          cfg.JWTSecret,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
		ResetTokenTTL:   cfg.ResetTokenTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	authHandler := &auth.Handler{
		Service:           authService,
		Mailer:            mailer,
		ResetBaseURL:      cfg.ResetBaseURL,
		AccessCookieName:  cfg.AccessCookieName,
		RefreshCookieName: cfg.RefreshCookieName,
		CookieDomain:      cfg.CookieDomain,
		CookieSecure:      cfg.CookieSecure,
		CookieSameSite:    cfg.CookieSameSite,
	}
	authMiddleware := auth.Middleware{Service: authService, AccessCookie: cfg.AccessCookieName}

	warehouseSvc := &warehouse.Service{Q: queries, Cache: warehouse.NewCache(redisClient, 10*time.Minute)}
	warehouseHandler := &warehouse.Handler{Svc: warehouseSvc}

	parcelSvc := &parcel.Service{Q: queries, Events: bus, Log: &logger}
	parcelHandler := &parcel.Handler{Svc: parcelSvc}

	shipmentSvc := &shipment.Service{
		Q:      queries,
		Tx:     shipment.PgxTxManager{Pool: pool, Q: queries},
		Events: bus,
		Log:    &logger,
	}
	shipmentHandler := &shipment.Handler{Svc: shipmentSvc}

	billingSvc := &billing.Service{
		Q:      queries,
		Tx:     billing.PgxTxManager{Pool: pool, Q: queries},
		Events: bus,
		Log:    &logger,
	}
	billingHandler := &billing.Handler{Svc: billingSvc}

	userSvc := &user.Service{Q: queries}
	userHandler := &user.Handler{Svc: userSvc}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	loginLimiter := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "ratelimit:"},
		Config: ratelimit.Config{
			Key:    ratelimit.PerIPKey("login"),
			Window: cfg.RateLimitLoginWindow,
			Max:    cfg.RateLimitLoginMax,
		},
		OnError: func(err error) {
			logger.Error().Err(err).Msg("login rate limiter")
		},
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(cfg.MetricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(security.BodyLimit{Max: int64(envInt("SECURE_MAX_BODY_BYTES", 1<<20))}.Middleware)
	r.Use(security.Headers{
		Enable:                envBool("SECURE_HEADERS_ENABLED", true),
		EnableHSTS:            envBool("SECURE_HSTS_ENABLED", false),
		HSTSMaxAge:            envInt("SECURE_HSTS_MAX_AGE", 31536000),
		HSTSIncludeSubdomains: envBool("SECURE_HSTS_INCLUDE_SUBDOMAINS", false),
	}.Middleware)
	if envBool("SECURE_CSRF_ENABLED", false) {
		r.Use(security.CSRF{Header: envOrDefault("SECURE_CSRF_HEADER", "X-CSRF-Token")}.Middleware)
	}
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if cfg.RateLimitGlobal != "" {
		globalLimit, err := newGlobalLimiter(cfg, redisClient)
		if err != nil {
			logger.Fatal().Err(err).Msg("initialise global rate limit")
		}
		r.Use(globalLimit.Handler)
	}

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		pprofUser := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pprofPass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), pprofUser, pprofPass))
	}

	healthHandler := health.Handler{
		Checker:      readinessChecker{db: pool, redis: redisClient},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	staff := authMiddleware.RequireRole(auth.RoleEmployee, auth.RoleAdmin)
	adminOnly := authMiddleware.RequireRole(auth.RoleAdmin)

	r.Route("/api/v1", func(v chi.Router) {
		v.Route("/auth", func(a chi.Router) {
			a.With(loginLimiter.Middleware).Post("/login", authHandler.Login)
			a.Post("/register", authHandler.Register)
			a.Post("/refresh", authHandler.Refresh)
			a.Post("/logout", authHandler.Logout)
			a.With(loginLimiter.Middleware).Post("/password/forgot", authHandler.ForgotPassword)
			a.Post("/password/reset", authHandler.ResetPassword)

			a.Group(func(protected chi.Router) {
				protected.Use(authMiddleware.RequireAuth)
				protected.Get("/me", authHandler.Me)
			})
		})

		v.Group(func(mine chi.Router) {
			mine.Use(authMiddleware.RequireAuth)
			mine.Get("/parcels/mine", parcelHandler.ListMine)
			mine.Get("/invoices/mine", billingHandler.ListMine)
		})

		v.Route("/warehouses", func(wh chi.Router) {
			wh.Use(authMiddleware.RequireAuth)
			wh.Get("/", warehouseHandler.List)
			wh.Get("/{id}", warehouseHandler.Get)
			wh.Group(func(g chi.Router) {
				g.Use(staff)
				g.Post("/", warehouseHandler.Create)
				g.Put("/{id}", warehouseHandler.Update)
			})
			wh.With(adminOnly).Delete("/{id}", warehouseHandler.Delete)
		})

		v.Route("/parcels", func(p chi.Router) {
			p.Use(staff)
			p.Post("/", parcelHandler.Create)
			p.Get("/", parcelHandler.List)
			p.Get("/{id}", parcelHandler.Get)
			p.Put("/{id}", parcelHandler.Update)
			p.Put("/bulk-status", parcelHandler.BulkStatus)
			p.With(adminOnly).Delete("/{id}", parcelHandler.Delete)
		})

		v.Route("/shipments", func(s chi.Router) {
			s.Use(staff)
			s.Post("/", shipmentHandler.Create)
			s.Get("/", shipmentHandler.List)
			s.Get("/{numero}", shipmentHandler.Get)
			s.Put("/{numero}", shipmentHandler.Update)
			s.Patch("/{numero}/status", shipmentHandler.SetStatus)
			s.With(idem.Middleware).Post("/{numero}/associate", billingHandler.Associate)
			s.With(adminOnly).Delete("/{numero}", shipmentHandler.Delete)
		})

		v.Route("/invoices", func(i chi.Router) {
			i.Use(staff)
			i.Get("/", billingHandler.List)
			i.Get("/{numero}", billingHandler.Get)
			i.With(idem.Middleware).Post("/pay", billingHandler.Pay)
		})

		v.Route("/users", func(u chi.Router) {
			u.Use(adminOnly)
			u.Get("/", userHandler.List)
			u.Get("/{id}", userHandler.Get)
			u.Patch("/{id}", userHandler.Update)
			u.Delete("/{id}", userHandler.Delete)
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-shutdownCtx.Done()
		health.SetReady(false)
		drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(drainCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown http server")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server shutdown complete")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

// newGlobalLimiter applies a coarse per-client budget in front of every
// route. The login endpoint carries its own, stricter limiter on top.
func newGlobalLimiter(cfg *config.Config, rdb *redis.Client) (*limiterstdlib.Middleware, error) {
	rate, err := limiter.NewRateFromFormatted(cfg.RateLimitGlobal)
	if err != nil {
		return nil, err
	}
	store, err := limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{
		Prefix: "ratelimit:global",
	})
	if err != nil {
		return nil, err
	}
	return limiterstdlib.NewMiddleware(limiter.New(store, rate)), nil
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
