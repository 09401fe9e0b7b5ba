package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"kampanyasepeti/crawlworker/config"
	"kampanyasepeti/crawlworker/internal/api"
	"kampanyasepeti/crawlworker/internal/catalog"
	"kampanyasepeti/crawlworker/internal/fetch"
	"kampanyasepeti/crawlworker/internal/ingest"
	"kampanyasepeti/crawlworker/internal/prefs"
	"kampanyasepeti/crawlworker/internal/publish"
	"kampanyasepeti/crawlworker/internal/rule"
	"kampanyasepeti/crawlworker/internal/scheduler"
	"kampanyasepeti/crawlworker/logger"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Dur("tick_interval", cfg.TickInterval).
		Msg("Starting crawl worker")

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Storage: Postgres when a DSN is configured, in-memory otherwise
	stores, err := initializeStores(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize stores")
	}
	defer stores.Cleanup()

	// Redis: pipeline events and user preferences
	publisher := publish.NewRedisPublisher(
		ctx,
		cfg.RedisAddr,
		cfg.RedisDB,
		cfg.RedisStream,
		cfg.RedisStreamCount,
		cfg.RedisStreamMaxLength,
	)
	defer publisher.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer redisClient.Close()
	prefService := prefs.NewService(prefs.NewRedisKV(redisClient, "prefs"))

	log.Info().
		Str("redis_addr", cfg.RedisAddr).
		Str("stream", cfg.RedisStream).
		Msg("Connected to Redis")

	// Fetcher with the memcache-backed block cache
	blocks := fetch.NewMemcacheBlockCache(cfg.MemcacheAddr)
	fetcher := fetch.NewHTTPFetcher(cfg.FetchTimeout, cfg.FetchRatePerHost, blocks)

	engine := ingest.NewEngine(stores.Catalog, stores.Brands, publisher, logger.ForComponent("ingest"))
	sched := scheduler.New(stores.Rules, fetcher, engine, publisher, logger.ForComponent("scheduler"))

	// Tick the scheduler on a fixed interval
	ticker := cron.New()
	ticker.Schedule(cron.Every(cfg.TickInterval), cron.FuncJob(func() {
		runs := sched.Tick(ctx)
		for _, run := range runs {
			<-run.Done()
		}
		if len(runs) > 0 {
			if err := publisher.TrimStreams(); err != nil {
				log.Error().Err(err).Msg("Failed to trim streams")
			}
		}
	}))
	ticker.Start()
	defer ticker.Stop()

	// HTTP API
	server := api.NewServer(
		stores.Rules,
		stores.Catalog,
		stores.Brands,
		stores.Categories,
		sched,
		prefService,
		logger.ForComponent("api"),
	)
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.Router(),
	}

	serverDone := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP API listening")
		serverDone <- httpServer.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-serverDone:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server exited with error")
		}
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down gracefully...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown failed")
	}
}

// Stores holds the storage-layer services
type Stores struct {
	Rules      rule.Store
	Catalog    catalog.Catalog
	Brands     catalog.BrandDirectory
	Categories catalog.CategoryDirectory
	db         *sqlx.DB
}

// Cleanup closes the database connection if one was opened
func (s *Stores) Cleanup() {
	if s.db != nil {
		s.db.Close()
	}
}

// initializeStores builds the storage layer. Without a Postgres DSN the
// worker runs on in-memory stores seeded with demo data, which is enough
// for local development against the mobile app.
func initializeStores(cfg config.Config) (*Stores, error) {
	if cfg.PostgresDSN == "" {
		logger.Infof("No Postgres DSN configured, using in-memory stores")
		mem := catalog.NewMemoryCatalog()
		seedDemoDirectory(mem)
		return &Stores{
			Rules:      rule.NewMemoryStore(mem),
			Catalog:    mem,
			Brands:     mem,
			Categories: mem,
		}, nil
	}

	db, err := sqlx.Connect("postgres", cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := runMigrations(db, cfg.MigrationsDir); err != nil {
		db.Close()
		return nil, err
	}

	directory := catalog.NewPostgresDirectory(db)
	return &Stores{
		Rules:      rule.NewPostgresStore(db, directory),
		Catalog:    catalog.NewPostgresCatalog(db),
		Brands:     directory,
		Categories: directory,
		db:         db,
	}, nil
}

func runMigrations(db *sqlx.DB, dir string) error {
	driver, err := migratepg.WithInstance(db.DB, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// seedDemoDirectory loads the demo brands and categories the mobile app
// ships with, so rules can be created right away in memory mode
func seedDemoDirectory(mem *catalog.MemoryCatalog) {
	mem.AddCategory(catalog.Category{ID: "cat-1", Name: "Moda", Icon: "shirt", Color: "#E91E63"})
	mem.AddCategory(catalog.Category{ID: "cat-2", Name: "Elektronik", Icon: "tv", Color: "#2196F3"})
	mem.AddCategory(catalog.Category{ID: "cat-3", Name: "Market", Icon: "shopping-cart", Color: "#4CAF50"})
	mem.AddCategory(catalog.Category{ID: "cat-4", Name: "Kozmetik", Icon: "sparkles", Color: "#9C27B0"})

	mem.AddBrand(catalog.Brand{ID: "brand-1", Name: "Trendyol", Domain: "trendyol.com", CategoryIDs: []string{"cat-1", "cat-2"}})
	mem.AddBrand(catalog.Brand{ID: "brand-2", Name: "Hepsiburada", Domain: "hepsiburada.com", CategoryIDs: []string{"cat-2"}})
	mem.AddBrand(catalog.Brand{ID: "brand-3", Name: "Migros", Domain: "migros.com.tr", CategoryIDs: []string{"cat-3"}})
}
