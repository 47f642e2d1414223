package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"papertrade-api/auth"
	"papertrade-api/database"
	"papertrade-api/handlers"
	"papertrade-api/services"
	"papertrade-api/services/alphavantage"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Initialize database connection
	if err := database.Initialize(); err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Database connected successfully")
	defer database.Close()

	// Redis backs the hot price cache and the rate limiter.
	rdb := redis.NewClient(&redis.Options{
		Addr:     envOr("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       envInt("REDIS_DB", 0),
	})
	{
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("Warning: Redis connection failed: %v", err)
		}
		cancel()
	}

	// Wire the market data core: hot cache -> warm store -> upstream,
	// behind the dual-window rate limiter.
	cache := services.NewPriceCache(rdb, "papertrade:price", envSeconds("PRICE_CACHE_TTL_SECONDS", 3600))
	limiter, err := services.NewRateLimiter(rdb, "papertrade:ratelimit",
		envInt("RATE_LIMIT_CALLS_PER_MINUTE", 5),
		envInt("RATE_LIMIT_CALLS_PER_DAY", 500))
	if err != nil {
		log.Fatalf("Invalid rate limiter configuration: %v", err)
	}
	provider := alphavantage.NewClientWithConfig(&alphavantage.ClientConfig{
		APIKey:     os.Getenv("ALPHA_VANTAGE_API_KEY"),
		BaseURL:    os.Getenv("ALPHA_VANTAGE_BASE_URL"),
		Timeout:    envSeconds("ALPHA_VANTAGE_TIMEOUT_SECONDS", 5),
		MaxRetries: envInt("ALPHA_VANTAGE_MAX_RETRIES", 3),
	})
	marketData := services.NewMarketDataService(cache, services.NewDatabasePriceStore(), limiter, provider)

	calculator := services.NewPortfolioCalculator(marketData)
	snapshots := services.NewSnapshotService(calculator)
	watchlist := services.NewWatchlistService()

	scheduler := services.NewScheduler(services.SchedulerConfigFromEnv(), marketData, watchlist, snapshots)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer scheduler.Stop()

	// Set Gin mode
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	// Configure CORS
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"http://localhost:3000"}
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	config.AllowCredentials = true
	config.MaxAge = 12 * time.Hour
	r.Use(cors.New(config))

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		response := gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC(),
			"service":   "papertrade-api",
		}
		if err := database.HealthCheck(); err != nil {
			response["database"] = "unhealthy"
			response["database_error"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, response)
			return
		}
		response["database"] = "healthy"
		c.JSON(http.StatusOK, response)
	})

	priceHandler := handlers.NewPriceHandler(marketData)
	portfolioHandler := handlers.NewPortfolioHandler(calculator, snapshots)
	watchlistHandler := handlers.NewWatchlistHandler(watchlist)
	adminHandler := handlers.NewAdminHandler(marketData, scheduler)

	// Auth routes (public, no middleware)
	authRoutes := r.Group("/api/v1/auth")
	{
		authRoutes.POST("/signup", handlers.Signup)
		authRoutes.POST("/login", handlers.Login)
	}

	// API v1 routes behind JWT auth
	v1 := r.Group("/api/v1")
	v1.Use(auth.Middleware())
	{
		prices := v1.Group("/prices")
		{
			prices.GET("", priceHandler.GetBatchPrices)
			prices.GET("/tickers", priceHandler.GetSupportedTickers)
			prices.GET("/:symbol", priceHandler.GetCurrentPrice)
			prices.GET("/:symbol/at", priceHandler.GetPriceAt)
			prices.GET("/:symbol/history", priceHandler.GetPriceHistory)
		}

		portfolios := v1.Group("/portfolios")
		{
			portfolios.POST("", portfolioHandler.CreatePortfolio)
			portfolios.GET("", portfolioHandler.ListPortfolios)
			portfolios.GET("/:id", portfolioHandler.GetPortfolio)
			portfolios.GET("/:id/balance", portfolioHandler.GetBalance)
			portfolios.GET("/:id/holdings", portfolioHandler.GetHoldings)
			portfolios.GET("/:id/daily-change", portfolioHandler.GetDailyChange)
			portfolios.GET("/:id/snapshots", portfolioHandler.GetSnapshots)
			portfolios.POST("/:id/transactions", portfolioHandler.CreateTransaction)
			portfolios.GET("/:id/transactions", portfolioHandler.ListTransactions)
		}

		watchlistRoutes := v1.Group("/watchlist")
		{
			watchlistRoutes.GET("", watchlistHandler.List)
			watchlistRoutes.POST("", watchlistHandler.Add)
			watchlistRoutes.DELETE("/:symbol", watchlistHandler.Remove)
		}

		admin := v1.Group("/admin")
		{
			admin.POST("/refresh", adminHandler.TriggerRefresh)
			admin.GET("/rate-limit", adminHandler.GetRateLimit)
			admin.GET("/scheduler", adminHandler.GetSchedulerStatus)
		}
	}

	port := envOr("PORT", "8080")
	srv := &http.Server{Addr: ":" + port, Handler: r}

	go func() {
		log.Printf("Listening on :%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown: stop accepting, then let the scheduler drain.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Warning: server shutdown: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envSeconds(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Second
}
