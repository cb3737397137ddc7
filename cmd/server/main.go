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
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/wbr-monitor/internal/api"
	"github.com/ignite/wbr-monitor/internal/config"
	"github.com/ignite/wbr-monitor/internal/digest"
	"github.com/ignite/wbr-monitor/internal/ingest"
	"github.com/ignite/wbr-monitor/internal/notify"
	"github.com/ignite/wbr-monitor/internal/pkg/distlock"
	"github.com/ignite/wbr-monitor/internal/pkg/logger"
	"github.com/ignite/wbr-monitor/internal/pkg/retry"
	"github.com/ignite/wbr-monitor/internal/repository/dynamo"
	"github.com/ignite/wbr-monitor/internal/repository/memory"
	"github.com/ignite/wbr-monitor/internal/repository/postgres"
	"github.com/ignite/wbr-monitor/internal/repository/redisrepo"
	"github.com/ignite/wbr-monitor/internal/service/narrative"
	"github.com/ignite/wbr-monitor/internal/session"
	"github.com/ignite/wbr-monitor/internal/storage"
	"github.com/ignite/wbr-monitor/internal/warehouse"
	"github.com/ignite/wbr-monitor/internal/wbr"
)

const defaultConfigPath = "config/config.yaml"

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

// extractHost returns the host part of a DSN for logging without secrets.
func extractHost(dsn string) string {
	at := strings.Index(dsn, "@")
	if at < 0 {
		return "(unknown)"
	}
	rest := dsn[at+1:]
	if slash := strings.Index(rest, "/"); slash >= 0 {
		rest = rest[:slash]
	}
	return rest
}

// configPath prefers WBR_CONFIG, then config/config.yaml when present.
// An empty result means built-in defaults.
func configPath() string {
	if p := os.Getenv("WBR_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}

// annotationBackend is the opened annotation store plus the shared
// connections the lock factory and health checks reuse.
type annotationBackend struct {
	repo  narrative.Repository
	db    *sql.DB
	redis *redis.Client
}

func (b annotationBackend) Close() {
	if b.db != nil {
		b.db.Close()
	}
	if b.redis != nil {
		b.redis.Close()
	}
}

func openAnnotations(ctx context.Context, cfg config.AnnotationsConfig) (annotationBackend, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return annotationBackend{repo: memory.NewAnnotationRepo()}, nil

	case config.BackendFile:
		repo, err := memory.NewFileAnnotationRepo(cfg.FilePath)
		if err != nil {
			return annotationBackend{}, err
		}
		log.Printf("[annotations] file backend at %s", cfg.FilePath)
		return annotationBackend{repo: repo}, nil

	case config.BackendRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return annotationBackend{}, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		err = retry.New(3).Do(ctx, "redis ping", func(ctx context.Context) error {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return client.Ping(pingCtx).Err()
		})
		if err != nil {
			client.Close()
			return annotationBackend{}, fmt.Errorf("redis ping: %w", err)
		}
		log.Printf("[annotations] redis backend at %s", opts.Addr)
		return annotationBackend{repo: redisrepo.NewAnnotationRepo(client, cfg.RedisKey), redis: client}, nil

	case config.BackendPostgres:
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return annotationBackend{}, fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		repo := postgres.NewAnnotationRepo(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			db.Close()
			return annotationBackend{}, err
		}
		log.Printf("[annotations] postgres backend at %s", extractHost(cfg.DatabaseURL))
		return annotationBackend{repo: repo, db: db}, nil

	case config.BackendDynamoDB:
		repo, err := dynamo.NewClient(ctx, cfg.DynamoDBTable, cfg.AWSRegion, cfg.GetAWSProfile())
		if err != nil {
			return annotationBackend{}, err
		}
		log.Printf("[annotations] dynamodb backend, table %s", cfg.DynamoDBTable)
		return annotationBackend{repo: repo}, nil
	}
	return annotationBackend{}, fmt.Errorf("unknown annotations backend %q", cfg.Backend)
}

func main() {
	log.Println("╔════════════════════════════════════════════════════════════╗")
	log.Println("║  WBR Monitor (cmd/server/main.go)                         ║")
	log.Println("║  Weekly email open-rate review with narrative capture     ║")
	log.Println("╚════════════════════════════════════════════════════════════╝")

	cfg, err := config.LoadFromEnv(configPath())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactPII(!cfg.Logging.DisableRedact)

	if err := checkPortAvailable(cfg.Server.GetHost(), cfg.Server.Port); err != nil {
		log.Fatalf("Startup aborted: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := openAnnotations(ctx, cfg.Annotations)
	if err != nil {
		log.Fatalf("Failed to open annotations backend: %v", err)
	}
	defer backend.Close()

	store := narrative.NewStore(backend.repo)
	if cfg.Annotations.Locking {
		if locks := distlock.NewFactory(backend.redis, backend.db, cfg.Annotations.LockTTL()); locks != nil {
			store = store.WithLocks(locks)
			log.Println("[annotations] per-row write locks enabled")
		} else {
			log.Println("[annotations] locking requested but backend has no shared lock service; skipping")
		}
	}

	sess := session.New(wbr.NewPipeline(cfg.Report.Threshold()), store)
	if err := sess.Load(ctx, ingest.SampleDataset(), session.SourceSample); err != nil {
		log.Fatalf("Failed to load sample data: %v", err)
	}

	renderer, err := digest.NewRenderer(digest.DefaultTemplate)
	if err != nil {
		log.Fatalf("Failed to parse digest template: %v", err)
	}

	goal := cfg.Report.GoalOpenRate()
	deps := api.Deps{
		Session:        sess,
		Digest:         renderer,
		Ingest:         ingest.Options{DefaultGoalOpenRate: &goal},
		MaxUploadBytes: cfg.Server.MaxUploadBytes(),
	}
	health := api.HealthDeps{DB: backend.db, Redis: backend.redis, Session: sess}

	reportStore, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Printf("Report storage unavailable: %v", err)
	} else {
		deps.Store = reportStore
		health.Storage = reportStore
		log.Printf("Report storage initialized (%s)", reportStore.Type())
	}

	if cfg.Warehouse.Enabled {
		src, err := warehouse.Open(cfg.Warehouse, goal)
		if err != nil {
			log.Printf("Warehouse source unavailable: %v", err)
		} else {
			defer src.Close()
			deps.Warehouse = src
			health.Warehouse = src
			log.Printf("Warehouse source initialized (%s)", cfg.Warehouse.Driver)
		}
	} else {
		log.Println("Warehouse source not configured (disabled)")
	}

	if cfg.Notify.Enabled {
		mailer, err := notify.NewSESMailer(ctx, cfg.Notify)
		if err != nil {
			log.Printf("Digest email unavailable: %v", err)
		} else {
			deps.Mailer = mailer
			logger.Info("digest email configured", "from", cfg.Notify.From, "recipients", strings.Join(cfg.Notify.Recipients, ","))
		}
	} else {
		log.Println("Digest email not configured (disabled)")
	}

	server := api.NewServer(cfg.Server, api.NewHandlers(deps), api.NewHealthChecker(health))

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	log.Printf("Server is ready (threshold %.1f pts, annotations: %s)", cfg.Report.Threshold(), cfg.Annotations.Backend)

	<-done
	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
