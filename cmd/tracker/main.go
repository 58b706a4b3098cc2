package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "portfolio/docs"
	"portfolio/internal/client/googlefinance"
	"portfolio/internal/client/rotating"
	"portfolio/internal/client/yahoo"
	"portfolio/internal/config"
	cronrunner "portfolio/internal/cron"
	"portfolio/internal/db"
	"portfolio/internal/handler"
	"portfolio/internal/logger"
	"portfolio/internal/observability"
	"portfolio/internal/portfolio"
	"portfolio/internal/publisher"
	"portfolio/internal/repository"
	"portfolio/internal/repository/filestore"
	gormrepository "portfolio/internal/repository/gorm"
	"portfolio/internal/repository/memstore"
	"portfolio/internal/repository/redisstore"
	"portfolio/internal/scheduler"
	"portfolio/internal/service"
)

func main() {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfgPath := os.Getenv("PT_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("PT_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}
	warnings, err := cfg.Validate()
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	logger = logger.With(zap.String("app", cfg.App.Name))
	for _, w := range warnings {
		logger.Warn("config entry ignored", zap.String("detail", w))
	}

	window, err := cfg.MarketWindow()
	if err != nil {
		logger.Fatal("market window invalid", zap.Error(err))
	}

	entities, err := portfolio.Load(cfg.Portfolio.Path)
	if err != nil {
		logger.Fatal("portfolio load failed", zap.Error(err))
	}

	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal("cache store open failed", zap.String("backend", cfg.Store.Backend), zap.Error(err))
	}
	defer closeStore()
	cache := repository.NewCacheRepository(store)

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(cfg.Metrics.Namespace)
	}

	routes := make([]rotating.Route, 0, len(cfg.Fetcher.Proxies))
	for _, raw := range cfg.Fetcher.Proxies {
		route, err := rotating.ParseRoute(raw)
		if err != nil {
			continue
		}
		routes = append(routes, route)
	}
	googleFetcher, err := newFetcher(cfg.Fetcher, routes, rotating.BrowserProfiles(), logger, metrics)
	if err != nil {
		logger.Fatal("fundamentals fetcher init failed", zap.Error(err))
	}
	yahooFetcher, err := newFetcher(cfg.Fetcher, routes, rotating.APIProfiles(), logger, metrics)
	if err != nil {
		logger.Fatal("quote fetcher init failed", zap.Error(err))
	}

	var pub publisher.Publisher = publisher.Nop{}
	if cfg.Kafka.Enabled {
		k, err := publisher.NewKafka(publisher.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			WriteTimeout: 10 * time.Second,
		})
		if err != nil {
			logger.Fatal("kafka publisher init failed", zap.Error(err))
		}
		pub = k
	}
	defer pub.Close()

	fundamentals := &service.FundamentalsScraper{
		Fetcher:        googleFetcher,
		BaseURL:        cfg.Google.BaseURL,
		Extract:        googlefinance.Extract,
		Cache:          cache,
		Logger:         logger.Named("fundamentals"),
		Metrics:        metrics,
		MaxConcurrency: cfg.Fetcher.MaxConcurrency,
		Now:            nowIn(window.Location),
	}
	quotes := &service.QuoteScraper{
		Provider:       yahoo.NewClient(yahooFetcher, cfg.Yahoo.BaseURL),
		Cache:          cache,
		Logger:         logger.Named("quotes"),
		Metrics:        metrics,
		MaxConcurrency: cfg.Fetcher.MaxConcurrency,
		Now:            nowIn(window.Location),
	}
	merger := &service.MergeService{
		Quotes:    quotes,
		Cache:     cache,
		Entities:  entities,
		Location:  window.Location,
		Horizon:   cfg.Schedule.Horizon,
		Publisher: pub,
		Logger:    logger.Named("merge"),
		Metrics:   metrics,
	}
	googleTargets := portfolio.GoogleTargets(entities)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)
	cronRunner.Start()
	defer cronRunner.Stop()

	sched := &scheduler.Scheduler{
		Runner: cronRunner,
		Window: window,
		Scrape: func(ctx context.Context) error {
			_, err := fundamentals.ScrapeAll(ctx, googleTargets)
			return err
		},
		Merge:                merger.Merge,
		FundamentalsInterval: cfg.Schedule.FundamentalsInterval,
		MergeInterval:        cfg.Schedule.MergeInterval,
		TickInterval:         cfg.Schedule.Tick,
		Logger:               logger.Named("scheduler"),
		Metrics:              metrics,
		IsMergeBusy: func(err error) bool {
			return errors.Is(err, service.ErrMergeInProgress)
		},
	}
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("scheduler stopped", zap.Error(err))
		}
	}()

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(handler.CORS(cfg.Server.AllowedOrigins))

	(&handler.HealthHandler{Store: store}).Register(engine)
	(&handler.StocksHandler{
		Cache:          cache,
		StreamInterval: cfg.Server.StreamInterval,
		OriginPatterns: cfg.Server.AllowedOrigins,
		Logger:         logger.Named("http"),
		Shutdown:       ctx.Done(),
	}).Register(engine)
	(&handler.SyncHandler{
		Cache:     cache,
		Scheduler: sched,
		Window:    window,
		Logger:    logger.Named("http"),
	}).Register(engine)
	if metrics != nil {
		(&handler.MetricsHandler{Handler: metrics.Handler()}).Register(engine)
	}
	handler.RegisterDocs(engine)
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	go func() {
		logger.Info("http server listening",
			zap.String("addr", cfg.Server.HTTPAddr),
			zap.String("store", cfg.Store.Backend),
			zap.Int("stocks", len(entities)),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	<-schedDone

	grace := cfg.Server.ShutdownGrace
	if grace <= 0 {
		grace = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func newFetcher(cfg config.FetcherConfig, routes []rotating.Route, defaults []rotating.HeaderProfile, logger *zap.Logger, metrics *observability.Metrics) (*rotating.Fetcher, error) {
	profiles := defaults
	if len(cfg.HeaderProfiles) > 0 {
		profiles = make([]rotating.HeaderProfile, 0, len(cfg.HeaderProfiles))
		for _, p := range cfg.HeaderProfiles {
			profiles = append(profiles, rotating.HeaderProfile(p))
		}
	}
	opts := rotating.Options{
		Profiles:      profiles,
		Routes:        routes,
		Timeout:       cfg.Timeout,
		BackoffBase:   cfg.BackoffBase,
		BackoffJitter: cfg.BackoffJitter,
		RatePerSecond: cfg.RatePerSecond,
		Logger:        logger.Named("fetcher"),
	}
	if metrics != nil {
		opts.Observer = metrics
	}
	return rotating.New(opts)
}

func openStore(cfg config.Config, logger *zap.Logger) (repository.KVStore, func(), error) {
	switch cfg.Store.Backend {
	case "memory":
		return memstore.New(), func() {}, nil
	case "file":
		s, err := filestore.New(cfg.Store.Dir)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	case "redis":
		s := redisstore.New(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Redis.Namespace)
		return s, func() { _ = s.Close() }, nil
	case "postgres":
		conn, err := db.Open(cfg.DB)
		if err != nil {
			return nil, nil, err
		}
		if err := db.SetTimezone(conn, cfg.DB.Timezone); err != nil {
			logger.Warn("failed to set timezone", zap.Error(err))
		}
		if err := db.AutoMigrate(conn); err != nil {
			_ = db.Close(conn)
			return nil, nil, err
		}
		return gormrepository.New(conn.Gorm), func() { _ = db.Close(conn) }, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

func nowIn(loc *time.Location) func() time.Time {
	return func() time.Time { return time.Now().In(loc) }
}
