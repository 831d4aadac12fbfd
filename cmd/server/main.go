package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/traffic-engine/internal/activity"
	"github.com/ignite/traffic-engine/internal/api"
	"github.com/ignite/traffic-engine/internal/behavior"
	"github.com/ignite/traffic-engine/internal/config"
	"github.com/ignite/traffic-engine/internal/domain"
	"github.com/ignite/traffic-engine/internal/fingerprint"
	"github.com/ignite/traffic-engine/internal/pkg/distlock"
	"github.com/ignite/traffic-engine/internal/pkg/logger"
	"github.com/ignite/traffic-engine/internal/pkg/randutil"
	"github.com/ignite/traffic-engine/internal/referrer"
	"github.com/ignite/traffic-engine/internal/repository/memory"
	"github.com/ignite/traffic-engine/internal/repository/postgres"
	"github.com/ignite/traffic-engine/internal/service/campaign"
	"github.com/ignite/traffic-engine/internal/session"
	"github.com/ignite/traffic-engine/internal/tracking"
	"github.com/ignite/traffic-engine/internal/worker"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v\n"+
			"  Hint: Run 'lsof -i :%d' to find the blocking process", port, addr, err, port)
	}
	ln.Close()
	return nil
}

func main() {
	log.Println("Traffic engine server starting (cmd/server/main.go)")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedact(cfg.Logging.RedactEnabled())

	if err := checkPortAvailable(cfg.Server.GetHost(), cfg.Server.Port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Campaign store: PostgreSQL when configured, in-memory otherwise.
	var db *sql.DB
	var repo campaign.Repository
	if cfg.Database.URL != "" {
		db, err = openDatabase(ctx, cfg.Database)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		pg := postgres.NewCampaignRepo(db)
		if cfg.Database.AutoMigrate {
			if err := pg.EnsureSchema(ctx); err != nil {
				log.Fatalf("Failed to apply schema: %v", err)
			}
			log.Println("Campaign schema applied")
		}
		repo = pg
		logger.Info("campaign store ready", "backend", "postgres", "database_url", cfg.Database.URL)
	} else {
		repo = memory.NewCampaignRepo()
		logger.Warn("campaign store ready", "backend", "memory", "note", "campaigns are lost on restart")
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		defer pingCancel()
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Printf("Redis ping failed (%s): %v; continuing without Redis", cfg.Redis.Addr, err)
			redisClient.Close()
			redisClient = nil
		} else {
			defer redisClient.Close()
			logger.Info("redis connected", "addr", cfg.Redis.Addr)
		}
	}

	emitter := newEmitter(cfg.Analytics, redisClient)

	var rng randutil.Source = randutil.Default()
	if cfg.Engine.Seed != 0 {
		rng = randutil.Seeded(cfg.Engine.Seed)
		logger.Info("deterministic randomness enabled", "seed", cfg.Engine.Seed)
	}

	fingerprints := fingerprint.NewGenerator(rng)
	referrers := referrer.NewGenerator(rng)
	behaviors := behavior.NewGenerator(behavior.Config{
		MinDwell:       time.Duration(cfg.Behavior.MinDwellSeconds) * time.Second,
		MaxDwell:       time.Duration(cfg.Behavior.MaxDwellSeconds) * time.Second,
		WordsPerMinute: cfg.Behavior.WordsPerMinute,
	}, rng)
	orch := session.NewOrchestrator(fingerprints, referrers, behaviors, session.Options{
		Emitter:         emitter,
		DispatchTimeout: cfg.Analytics.DispatchTimeout(),
		Rand:            rng,
	})

	mode, ok := domain.ParseEvasionMode(cfg.Engine.EvasionMode)
	if !ok {
		log.Printf("Unknown evasion mode %q, using %s", cfg.Engine.EvasionMode, domain.EvasionStandard)
		mode = domain.EvasionStandard
	}

	var lock distlock.DistLock
	if cfg.Engine.LockEnabled {
		lock = distlock.NewLock(redisClient, db, cfg.Engine.LockKey, cfg.Engine.LockTTL())
		if lock == nil {
			log.Println("Engine lock requested but neither Redis nor PostgreSQL is configured; running unlocked")
		}
	}

	scheduler := worker.NewTrafficScheduler(repo, orch, worker.SchedulerOptions{
		Rand: rng,
		Pacing: worker.PacingConfig{
			PulseBurstProbability: cfg.Pacing.PulseBurstProbability,
			ViralSaturationHits:   cfg.Pacing.ViralSaturationHits,
			IdleDelay:             cfg.Pacing.IdleDelay(),
		},
		EvasionMode: mode,
		Log:         activity.NewLog(cfg.Engine.LogRetention, nil),
		Events:      activity.NewEventBuffer(cfg.Engine.EventRetention),
		Lock:        lock,
		TickTimeout: cfg.Engine.TickTimeout(),
	})

	if cfg.Engine.AutoStart {
		if err := scheduler.Start(ctx); err != nil {
			log.Printf("Engine auto-start failed: %v", err)
		}
	}

	handlers := api.NewHandlers(campaign.NewService(repo), scheduler, orch, referrers, behaviors)
	health := api.NewHealthChecker(db, redisClient, scheduler)
	server := api.NewServer(cfg.Server, handlers, health)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := server.Addr()
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := scheduler.Stop(shutdownCtx); err != nil {
		log.Printf("Engine stop error: %v", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	orch.Wait()
	cancel()

	log.Println("Server stopped")
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}

// newEmitter picks the analytics sink. Disabled analytics yields a nil
// emitter, which the orchestrator treats as "nothing to dispatch".
func newEmitter(cfg config.AnalyticsConfig, redisClient *redis.Client) session.Emitter {
	if !cfg.Enabled {
		log.Println("Analytics dispatch disabled")
		return nil
	}
	if cfg.Sink == "redis" {
		if redisClient != nil {
			log.Printf("Analytics payloads -> Redis list %s (cap %d)", cfg.OutboxKey, cfg.OutboxLimit)
			return tracking.NewPublisher(redisClient, cfg.OutboxKey, cfg.OutboxLimit)
		}
		log.Println("Analytics sink is redis but Redis is unavailable; recording in memory")
	}
	return tracking.NewRecorder(cfg.OutboxLimit)
}
