// Command backfill-snapshots regenerates daily snapshots for one
// portfolio over a date range. Used for new portfolios and gap repair.
//
// Usage:
//
//	backfill-snapshots -portfolio <uuid> -start 2026-01-01 -end 2026-01-31
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"papertrade-api/database"
	"papertrade-api/services"
	"papertrade-api/services/alphavantage"
)

func main() {
	portfolioFlag := flag.String("portfolio", "", "portfolio UUID to backfill")
	startFlag := flag.String("start", "", "start date (YYYY-MM-DD, inclusive)")
	endFlag := flag.String("end", "", "end date (YYYY-MM-DD, inclusive)")
	flag.Parse()

	if *portfolioFlag == "" || *startFlag == "" || *endFlag == "" {
		flag.Usage()
		os.Exit(2)
	}

	portfolioID, err := uuid.Parse(*portfolioFlag)
	if err != nil {
		log.Fatalf("Invalid portfolio id: %v", err)
	}
	start, err := time.Parse("2006-01-02", *startFlag)
	if err != nil {
		log.Fatalf("Invalid start date: %v", err)
	}
	end, err := time.Parse("2006-01-02", *endFlag)
	if err != nil {
		log.Fatalf("Invalid end date: %v", err)
	}
	if end.Before(start) {
		log.Fatal("end date must not be before start date")
	}

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	if err := database.Initialize(); err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer database.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     envOr("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
	})

	cache := services.NewPriceCache(rdb, "papertrade:price", time.Hour)
	limiter, err := services.NewRateLimiter(rdb, "papertrade:ratelimit", 5, 500)
	if err != nil {
		log.Fatalf("Invalid rate limiter configuration: %v", err)
	}
	provider := alphavantage.NewClient(os.Getenv("ALPHA_VANTAGE_API_KEY"))
	marketData := services.NewMarketDataService(cache, services.NewDatabasePriceStore(), limiter, provider)
	snapshots := services.NewSnapshotService(services.NewPortfolioCalculator(marketData))

	result, err := snapshots.BackfillSnapshots(context.Background(), portfolioID, start.UTC(), end.UTC())
	if err != nil {
		log.Fatalf("Backfill failed: %v", err)
	}
	log.Printf("Backfill finished: %d/%d succeeded, %d failed",
		result.Succeeded, result.Processed, result.Failed)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
