package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"ayurgenix/internal/config"
	"ayurgenix/internal/core"
	"ayurgenix/internal/dataset"
	"ayurgenix/internal/db"
	httpserver "ayurgenix/internal/http"
	"ayurgenix/internal/llm"
	"ayurgenix/internal/logging"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "config.yaml", "Path to YAML config file (defaults apply when missing)")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.FromEnv(os.Getenv)
	logging.Configure(cfg.LogLevel)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The condition table is read once and shared read-only by all requests.
	index := dataset.NewIndex(cfg.Dataset.Path)
	ds := index.Load()

	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("open %s session store: %w", cfg.Store.Type, err)
	}
	defer store.Close()

	var client llm.Client
	oc, err := llm.NewOpenAIClient(llm.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     time.Duration(cfg.LLM.TimeoutSecs) * time.Second,
		MaxRetries:  cfg.LLM.MaxRetries,
	})
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		slog.Warn("no API key set, consultations are disabled", "env", cfg.LLM.APIKeyEnv)
	case err != nil:
		return fmt.Errorf("construct llm client: %w", err)
	default:
		client = oc
	}
	chatService := core.NewChatService(client, ds)

	srv, err := httpserver.NewServer(store, chatService, index, cfg.Chat.MessageCap)
	if err != nil {
		return fmt.Errorf("construct server: %w", err)
	}
	httpSrv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	slog.Info("listening", "addr", httpSrv.Addr, "store", cfg.Store.Type, "model", cfg.LLM.Model)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func openStore(ctx context.Context, cfg config.StoreConfig) (db.Store, error) {
	switch cfg.Type {
	case "memory", "":
		return db.NewMemoryStore(time.Duration(cfg.TTLHours) * time.Hour), nil
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL must be set for the postgres store")
		}
		return db.OpenPostgres(ctx, cfg.DatabaseURL)
	case "redis":
		if cfg.RedisURL == "" {
			return nil, errors.New("REDIS_URL must be set for the redis store")
		}
		return db.OpenRedis(ctx, cfg.RedisURL, time.Duration(cfg.TTLHours)*time.Hour)
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Type)
	}
}
