package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/policy-qa-backend/config"
	"github.com/policy-qa-backend/handlers"
	"github.com/policy-qa-backend/models"
	"github.com/policy-qa-backend/services/impl"
	"github.com/policy-qa-backend/services/search"
	"github.com/policy-qa-backend/services/session"
	"github.com/policy-qa-backend/workflow"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize database connection
	db, err := initDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database schema
	if err := db.AutoMigrate(&models.Policy{}); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Optional Redis backend for the session caches; memory fallback otherwise
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.GetRedisAddress(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
			log.Printf("Warning: Redis connection failed, session caches will run in-process: %v", err)
			redisClient = nil
		} else {
			log.Println("Redis connection established for session caches")
		}
	}

	cacheTTL := time.Duration(cfg.Cache.TTLSeconds) * time.Second
	sweepInterval := time.Duration(cfg.Cache.SweepSeconds) * time.Second
	chatCache := session.NewChatCache(redisClient, cacheTTL, sweepInterval, cfg.Cache.MaxHistoryTurns)
	policyCache := session.NewPolicyContextCache(redisClient, cacheTTL, sweepInterval, cfg.Cache.MaxContextDocs)

	// External service adapters
	vectorStore := impl.NewQdrantVectorStore(&cfg.Qdrant)
	embedder := impl.NewEmbedder(&cfg.Embedding)
	llmService := impl.NewLLMService(&cfg.LLM)
	webSearchService := impl.NewTavilyWebSearch(&cfg.WebSearch)
	policyService := impl.NewPolicyService(db)

	// Search with runtime-tunable configuration
	configStore := search.NewConfigStore(search.DefaultConfig())
	searchService := impl.NewSearchService(vectorStore, embedder, policyService, webSearchService, configStore)

	// QA workflow over the session policy context
	qaWorkflow := workflow.New(policyCache, webSearchService, llmService, cfg.WebSearch.MaxResults)
	qaService := workflow.NewService(qaWorkflow, chatCache)

	// Initialize handlers
	chatHandlers := handlers.NewChatHandlers(policyService, vectorStore, policyCache, chatCache, qaService)
	invalidator, _ := searchService.(handlers.SparseIndexInvalidator)
	searchHandlers := handlers.NewSearchHandlers(searchService, configStore, invalidator)

	// Setup router
	router := setupRouter(chatHandlers, searchHandlers, cfg)

	// Start server
	srv := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Policy QA server starting on %s", cfg.GetServerAddress())
		log.Printf("Qdrant collection: %s", cfg.Qdrant.Collection)
		log.Printf("Environment: %s", os.Getenv("ENVIRONMENT"))

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server:", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}

func initDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.GetDatabaseDSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.Database.MaxLifetime) * time.Second)

	return db, nil
}

func setupRouter(chatHandlers *handlers.ChatHandlers, searchHandlers *handlers.SearchHandlers, cfg *config.Config) *gin.Engine {
	// Set gin mode based on environment
	if os.Getenv("ENVIRONMENT") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// CORS middleware
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORS.AllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "policy-qa-backend",
		})
	})

	// API v1 routes
	v1 := router.Group("/api/v1")

	chat := v1.Group("/chat")
	{
		chat.POST("/init-policy", chatHandlers.InitPolicy)
		chat.POST("", chatHandlers.Chat)
		chat.POST("/cleanup", chatHandlers.Cleanup)
	}

	v1.GET("/policies/search", searchHandlers.SearchPolicies)

	searchGroup := v1.Group("/search")
	{
		searchGroup.PUT("/config", searchHandlers.UpdateSearchConfig)
		searchGroup.POST("/reindex", searchHandlers.RebuildIndex)
	}

	return router
}
