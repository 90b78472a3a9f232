package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/tingiris/violet-convo/internal/adapters/genericvoice"
	"github.com/tingiris/violet-convo/internal/config"
	"github.com/tingiris/violet-convo/internal/core/engine"
	"github.com/tingiris/violet-convo/internal/core/response"
	"github.com/tingiris/violet-convo/internal/core/script"
	"github.com/tingiris/violet-convo/internal/core/taskbus"
	"github.com/tingiris/violet-convo/internal/platform"
	"github.com/tingiris/violet-convo/internal/store/recordstore"
	"github.com/tingiris/violet-convo/internal/store/sessionkv"
	"github.com/tingiris/violet-convo/pkg/logger"
)

// Server wires the ConversationEngine to the reference genericvoice
// adapter, mirroring the teacher's Server/NewServer/Start shape
// (cmd/server/main.go before the rewrite).
type Server struct {
	cfg     *config.EngineConfig
	adapter *genericvoice.Adapter
}

// NewServer builds the engine, registers the sample conversation, and
// mounts it on a genericvoice.Adapter.
func NewServer(cfg *config.EngineConfig) (*Server, error) {
	if _, err := logger.Init(os.Getenv("LOG_ENV")); err != nil {
		logger.Base().Error("failed to initialize zap logger, falling back to zap development logger")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	sessions := sessionkv.New(redisClient)

	adapter := genericvoice.New(cfg.WebhookSecret, sessions)

	registry := platform.NewRegistry()
	registry.Register(adapter)

	eng := engine.New(registry, logger.Base())

	if cfg.PostgresDSN != "" {
		db, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		store := recordstore.New(db)
		eng.SetPersistentStore(store)
		eng.SetAsyncDispatcher(taskbus.New(redisClient))

		worker := taskbus.NewWorker(redisClient, store)
		go func() {
			if err := worker.Run(context.Background()); err != nil {
				logger.Base().Warn("taskbus worker stopped", zap.Error(err))
			}
		}()
	}

	registerSampleConversation(eng, cfg)

	if err := eng.RegisterIntents(); err != nil {
		return nil, fmt.Errorf("registering intents: %w", err)
	}

	return &Server{cfg: cfg, adapter: adapter}, nil
}

// registerSampleConversation demonstrates the registration surface with a
// small airline-booking style flow (spec §8 scenarios S2/S3): one query
// goal that fills a slot, one resolver goal that depends on it.
func registerSampleConversation(eng *engine.Engine, cfg *config.EngineConfig) {
	eng.AddInputTypes(map[string]script.SlotType{
		"airline": {Kind: script.KindFreeText, PlatformCode: "free_text", Samples: []string{"Delta", "United", "American"}},
	})

	eng.SetLaunchPhrases(cfg.LaunchPhrases)
	eng.SetCloseRequests(cfg.CloseRequests)
	if cfg.SpokenRate != "" {
		eng.SetSpokenRate(cfg.SpokenRate)
	}
	for _, key := range cfg.TopLevelGoals {
		eng.AddTopLevelGoal(key)
	}

	_ = eng.DefineGoal(engine.GoalDef{
		Key:    "airline",
		Prompt: []string{"What airline are you flying?"},
		RespondTo: []engine.IntentDef{
			{
				Expecting: []string{"[[airline]]"},
				Resolve: func(ctx context.Context, r *response.Response) (bool, error) {
					v, _ := r.Get("[[airline]]")
					if err := r.Set("{{airline}}", v); err != nil {
						return false, err
					}
					return true, nil
				},
			},
		},
	})

	_ = eng.DefineGoal(engine.GoalDef{
		Key: "bookFlight",
		Resolve: func(ctx context.Context, r *response.Response) (bool, error) {
			if !r.GoalFilled("airline", "{{airline}}") {
				return false, nil
			}
			airline, _ := r.Get("{{airline}}")
			r.Say(fmt.Sprintf("Booking your flight with %s.", airline), false)
			return true, nil
		},
	})

	eng.RespondTo(engine.IntentDef{
		Name:      "bookFlightIntent",
		Expecting: []string{"I want to book a flight", "Book me a flight"},
		Resolve: func(ctx context.Context, r *response.Response) (bool, error) {
			r.AddGoal("bookFlight")
			return true, nil
		},
	})
}

// Start serves the adapter's router, matching the teacher's
// ListenAndServe/ReadTimeout/WriteTimeout/IdleTimeout shape.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%s", s.cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.adapter.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	logger.Base().Info("starting conversation engine server", zap.String("addr", addr))
	return srv.ListenAndServe()
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("info: .env file not found or skipped (expected in production): %v", err)
	}

	cfg := config.LoadEngineConfig()

	server, err := NewServer(cfg)
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
	}

	if err := server.Start(); err != nil {
		log.Fatalf("server failed to start: %v", err)
	}
}
