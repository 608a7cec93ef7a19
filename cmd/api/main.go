package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sodaclub-ledger-api/internal/cache"
	"sodaclub-ledger-api/internal/config"
	"sodaclub-ledger-api/internal/handler"
	"sodaclub-ledger-api/internal/middleware"
	"sodaclub-ledger-api/internal/repository"
	"sodaclub-ledger-api/internal/router"
	"sodaclub-ledger-api/internal/service"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting Soda Club Ledger API...")

	// Load configuration
	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)

	// Initialize ledger store based on config
	var ledgerStore repository.LedgerStore
	switch cfg.LedgerDB.Type {
	case "csv", "sheet":
		csvStore, err := repository.NewCSVLedgerStore(cfg.LedgerDB.Dir)
		if err != nil {
			log.Fatalf("Failed to initialize CSV ledger store: %v", err)
		}
		ledgerStore = csvStore
		log.Println("CSV ledger store initialized")
	default: // sqlite
		sqliteStore, err := repository.NewSQLiteLedgerStore(cfg.LedgerDB.Path)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite ledger store: %v", err)
		}
		ledgerStore = sqliteStore
		log.Println("SQLite ledger store initialized")
	}
	defer ledgerStore.Close()

	// Member directory: the ledger store by default, or an external
	// MySQL directory shared with other club tooling.
	var memberRepo repository.MemberRepository = ledgerStore
	if cfg.MemberDB.Type == "mysql" {
		mysqlDB, err := sql.Open("mysql", cfg.MemberDB.DSN())
		if err != nil {
			log.Fatalf("Failed to open MySQL member directory: %v", err)
		}
		mysqlDB.SetMaxOpenConns(10)
		mysqlDB.SetMaxIdleConns(5)
		mysqlDB.SetConnMaxLifetime(5 * time.Minute)

		if err := mysqlDB.Ping(); err != nil {
			log.Fatalf("MySQL member directory ping failed: %v", err)
		}
		defer mysqlDB.Close()

		memberRepo = repository.NewMySQLMemberRepository(mysqlDB)
		log.Println("MySQL member directory initialized")
	}

	// Initialize Redis client (optional)
	var redisClient *redis.Client
	if cfg.Cache.Type == "redis" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddress(),
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Printf("Warning: Redis connection failed, falling back to memory: %v", err)
			redisClient = nil
		} else {
			log.Println("Redis client initialized")
		}
		cancel()
	}

	// Read cache
	var readCache cache.Cache
	if redisClient != nil {
		redisCache, err := cache.NewRedisCache(cache.RedisCacheConfig{
			Addr:     cfg.Cache.RedisAddress(),
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			log.Printf("Warning: Redis cache initialization failed, using memory: %v", err)
		} else {
			readCache = redisCache
			defer redisCache.Close()
		}
	}
	if readCache == nil {
		memCache := cache.NewMemoryCache()
		defer memCache.Close()
		readCache = memCache
		log.Println("Memory cache initialized")
	}

	// Session token store
	var tokenStore service.TokenStore
	if redisClient != nil {
		tokenStore = service.NewRedisTokenStore(redisClient)
		log.Println("Redis token store initialized")
	} else {
		tokenStore = service.NewMemoryTokenStore()
		log.Println("Memory token store initialized (sessions do not survive restarts)")
	}

	// Initialize services
	registryService := service.NewRegistryService(ledgerStore, ledgerStore, ledgerStore)
	ledgerService := service.NewLedgerService(ledgerStore, memberRepo, registryService, readCache, cfg.Cache.TTL)
	approvalService := service.NewApprovalService(ledgerStore, readCache)
	authService := service.NewAuthService(memberRepo, tokenStore)
	memberService := service.NewMemberService(memberRepo, ledgerStore)

	// Initialize handlers
	healthHandler := handler.New(cfg.App.Version)
	authHandler := handler.NewAuthHandler(authService, memberService)
	ledgerHandler := handler.NewLedgerHandler(ledgerService)
	adminHandler := handler.NewAdminHandler(ledgerService, approvalService, registryService, memberService)

	// Auth middleware with injected dependencies
	authMiddleware := middleware.NewAuthMiddleware(middleware.AuthConfig{
		Auth: authService,
	})

	// Create router
	r := router.New(router.Config{
		Handler:        healthHandler,
		AuthHandler:    authHandler,
		LedgerHandler:  ledgerHandler,
		AdminHandler:   adminHandler,
		AuthMiddleware: authMiddleware,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
	fmt.Println("Goodbye!")
}
