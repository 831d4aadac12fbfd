package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/ignite/traffic-engine/internal/config"
	"github.com/ignite/traffic-engine/internal/tracking"
	"github.com/redis/go-redis/v9"
)

// Prints the newest analytics payloads queued in the Redis outbox.
//
//	tracking [count]
func main() {
	n := 20
	if len(os.Args) > 1 {
		v, err := strconv.Atoi(os.Args[1])
		if err != nil || v < 1 {
			log.Fatalf("count must be a positive integer, got %q", os.Args[1])
		}
		n = v
	}

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Redis.Addr == "" {
		log.Fatal("REDIS_ADDR (or redis.addr) is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pub := tracking.NewPublisher(client, cfg.Analytics.OutboxKey, cfg.Analytics.OutboxLimit)
	total, err := pub.Len(ctx)
	if err != nil {
		log.Fatalf("outbox length: %v", err)
	}
	payloads, err := pub.Recent(ctx, n)
	if err != nil {
		log.Fatalf("read outbox: %v", err)
	}
	log.Printf("Outbox %s holds %d payloads; showing %d newest", cfg.Analytics.OutboxKey, total, len(payloads))

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payloads); err != nil {
		log.Fatalf("encode: %v", err)
	}
}
