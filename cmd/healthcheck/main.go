package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/you/tradegate/internal/infrastructure/database"
	"github.com/you/tradegate/internal/infrastructure/upstream"
	"github.com/you/tradegate/pkg/logger"
)

// Connectivity probe for deployment verification: checks the session store
// and the upstream auth API the gateway depends on.
func main() {
	_ = godotenv.Load()

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	upstreamURL := os.Getenv("UPSTREAM_BASE_URL")
	if upstreamURL == "" {
		upstreamURL = "http://localhost:5000/api/v1"
	}

	fmt.Println("Gateway Connectivity Check")
	fmt.Println("==========================")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rdb := database.NewRedis(redisAddr, os.Getenv("REDIS_PASSWORD"), 0)
	if err := rdb.Ping(ctx); err != nil {
		log.Fatalf("Failed to reach session store at %s: %v", redisAddr, err)
	}
	fmt.Printf("✓ Session store reachable at %s\n", redisAddr)

	client := upstream.NewClient(upstreamURL, 5*time.Second, logger.Get())
	res, err := client.Get(ctx, "/health", "")
	if err != nil {
		log.Fatalf("Failed to reach upstream auth API at %s: %v", upstreamURL, err)
	}
	fmt.Printf("✓ Upstream auth API reachable at %s (status %d)\n", upstreamURL, res.StatusCode)
}
