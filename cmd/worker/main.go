package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/traffic-engine/internal/activity"
	"github.com/ignite/traffic-engine/internal/behavior"
	"github.com/ignite/traffic-engine/internal/config"
	"github.com/ignite/traffic-engine/internal/domain"
	"github.com/ignite/traffic-engine/internal/fingerprint"
	"github.com/ignite/traffic-engine/internal/pkg/distlock"
	"github.com/ignite/traffic-engine/internal/pkg/randutil"
	"github.com/ignite/traffic-engine/internal/referrer"
	"github.com/ignite/traffic-engine/internal/repository/postgres"
	"github.com/ignite/traffic-engine/internal/session"
	"github.com/ignite/traffic-engine/internal/tracking"
	"github.com/ignite/traffic-engine/internal/worker"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

// Headless engine replica: runs the traffic scheduler against the shared
// PostgreSQL campaign table without the HTTP API. Replicas coordinate
// through the engine lock, so only one generates hits at a time.
func main() {
	log.Println("Starting traffic engine worker...")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required for the worker")
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("Connected to database")

	var redisClient *redis.Client
	var emitter session.Emitter
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if cfg.Analytics.Enabled {
			emitter = tracking.NewPublisher(redisClient, cfg.Analytics.OutboxKey, cfg.Analytics.OutboxLimit)
		}
	}

	rng := randutil.Default()
	if cfg.Engine.Seed != 0 {
		rng = randutil.Seeded(cfg.Engine.Seed)
	}
	orch := session.NewOrchestrator(
		fingerprint.NewGenerator(rng),
		referrer.NewGenerator(rng),
		behavior.NewGenerator(behavior.Config{
			MinDwell:       time.Duration(cfg.Behavior.MinDwellSeconds) * time.Second,
			MaxDwell:       time.Duration(cfg.Behavior.MaxDwellSeconds) * time.Second,
			WordsPerMinute: cfg.Behavior.WordsPerMinute,
		}, rng),
		session.Options{Emitter: emitter, DispatchTimeout: cfg.Analytics.DispatchTimeout(), Rand: rng},
	)

	mode, ok := domain.ParseEvasionMode(cfg.Engine.EvasionMode)
	if !ok {
		mode = domain.EvasionStandard
	}

	engineLog := activity.NewLog(cfg.Engine.LogRetention, nil)
	scheduler := worker.NewTrafficScheduler(postgres.NewCampaignRepo(db), orch, worker.SchedulerOptions{
		Rand: rng,
		Pacing: worker.PacingConfig{
			PulseBurstProbability: cfg.Pacing.PulseBurstProbability,
			ViralSaturationHits:   cfg.Pacing.ViralSaturationHits,
			IdleDelay:             cfg.Pacing.IdleDelay(),
		},
		EvasionMode: mode,
		Log:         engineLog,
		Events:      activity.NewEventBuffer(cfg.Engine.EventRetention),
		Lock:        distlock.NewLock(redisClient, db, cfg.Engine.LockKey, cfg.Engine.LockTTL()),
		TickTimeout: cfg.Engine.TickTimeout(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Standby replicas retry the lock until the leader goes away.
	go func() {
		ticker := time.NewTicker(cfg.Engine.LockTTL())
		defer ticker.Stop()
		for {
			if !scheduler.Running() {
				if err := scheduler.Start(ctx); err != nil {
					log.Printf("Worker standby: %v", err)
				}
			}
			st := scheduler.Status()
			log.Printf("Worker heartbeat - state=%s mode=%s ticks=%d hits=%d errors=%d",
				st.State, st.EvasionMode, st.TicksRun, st.HitsGenerated, st.Errors)

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := scheduler.Stop(stopCtx); err != nil {
		log.Printf("Engine stop error: %v", err)
	}
	orch.Wait()

	for _, e := range engineLog.Recent(5) {
		log.Printf("  [%s] %s", e.Type, e.Message)
	}
	log.Println("Worker stopped")
}
