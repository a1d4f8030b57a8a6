// Supportd is the conversational support assistant daemon.
//
// It exposes a single turn-handling endpoint backed by the orchestration
// engine: planning, step execution, the clarification governor, and the
// per-turn trace.
//
// Usage:
//
//	# Start with defaults
//	supportd
//
//	# Configure via file and environment
//	supportd -config /etc/supportd/config.yaml
//	SUPPORTD_SERVER_PORT=9090 supportd
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/supportd/internal/actions"
	"github.com/fyrsmithlabs/supportd/internal/config"
	"github.com/fyrsmithlabs/supportd/internal/embeddings"
	"github.com/fyrsmithlabs/supportd/internal/executor"
	"github.com/fyrsmithlabs/supportd/internal/governor"
	supporthttp "github.com/fyrsmithlabs/supportd/internal/http"
	"github.com/fyrsmithlabs/supportd/internal/llm"
	"github.com/fyrsmithlabs/supportd/internal/logging"
	"github.com/fyrsmithlabs/supportd/internal/orchestrator"
	"github.com/fyrsmithlabs/supportd/internal/planner"
	"github.com/fyrsmithlabs/supportd/internal/session"
	"github.com/fyrsmithlabs/supportd/internal/steps"
	"github.com/fyrsmithlabs/supportd/internal/telemetry"
	"github.com/fyrsmithlabs/supportd/internal/trace"
	"github.com/fyrsmithlabs/supportd/internal/vectorstore"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  supportd           Start the supportd daemon\n")
			fmt.Fprintf(os.Stderr, "  supportd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("supportd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run wires the engine and blocks until ctx is cancelled.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	tel, err := telemetry.New(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			log.Printf("telemetry shutdown: %v", err)
		}
	}()

	logger, err := logging.New(cfg.Logging, tel.LoggerProvider())
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info(ctx, "starting supportd")

	// Shared Redis client for session history and the trace sink. Only
	// dialed when a backend actually asks for Redis.
	var redisClient *redis.Client
	needRedis := cfg.Session.Provider == "redis"
	if needRedis {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password.Value(),
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer redisClient.Close()
	}

	var sessions session.Store
	var sink trace.Sink
	if redisClient != nil {
		sessions = session.NewRedisStore(redisClient, cfg.Redis.TTL.Duration(), cfg.Session.MaxHistory)
		sink = trace.NewRedisSink(redisClient, cfg.Redis.TTL.Duration())
	} else {
		sessions = session.NewMemoryStore(cfg.Session.MaxHistory)
		sink = trace.NewMemorySink()
	}
	defer sessions.Close()

	llmClient, err := llm.New(cfg.LLM)
	if err != nil {
		return fmt.Errorf("initializing llm client: %w", err)
	}
	logger.Info(ctx, "llm client ready",
		zap.String("base_url", cfg.LLM.BaseURL),
		zap.String("model", cfg.LLM.Model),
		logging.Secret("api_key", cfg.LLM.APIKey),
	)

	embedder, err := embeddings.New(cfg.Embedding)
	if err != nil {
		return fmt.Errorf("initializing embedder: %w", err)
	}

	store, err := vectorstore.NewFromConfig(ctx, cfg.VectorStore, embedder, logger.Named("vectorstore"))
	if err != nil {
		return fmt.Errorf("initializing vector store: %w", err)
	}
	defer store.Close()

	var actionStore actions.Store
	if cfg.Actions.Provider == "supabase" {
		actionStore, err = actions.NewSupabaseStore(cfg.Actions.Supabase)
		if err != nil {
			return fmt.Errorf("initializing action store: %w", err)
		}
	} else {
		actionStore = actions.NewMemoryStore()
	}
	defer actionStore.Close()

	registry, err := steps.NewRegistry(steps.Deps{
		LLM:      llmClient,
		Store:    store,
		Actions:  actionStore,
		Logger:   logger.Named("steps"),
		Pipeline: cfg.Pipeline,
	})
	if err != nil {
		return fmt.Errorf("building step registry: %w", err)
	}

	exec := executor.New(registry, logger.Named("executor"), cfg.Pipeline.StepTimeout.Duration())
	plnr := planner.New(llmClient, registry, logger.Named("planner"))
	gov := governor.New(exec, logger.Named("governor"),
		cfg.Pipeline.ConfidenceThreshold, cfg.Pipeline.MaxClarificationRounds)

	engine := orchestrator.New(orchestrator.Options{
		Planner:       plnr,
		Executor:      exec,
		Governor:      gov,
		Sessions:      sessions,
		Sink:          sink,
		Logger:        logger.Named("orchestrator"),
		Tracer:        tel.Tracer("supportd/orchestrator"),
		PivotLanguage: cfg.Pipeline.PivotLanguage,
		PlanTimeout:   cfg.Pipeline.PlanTimeout.Duration(),
	})

	server, err := supporthttp.NewServer(engine, store, logger.Named("http").Underlying(), cfg.Server)
	if err != nil {
		return fmt.Errorf("initializing http server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
