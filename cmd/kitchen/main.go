package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"fridgechef/internal/config"
	"fridgechef/internal/kitchen"
	"fridgechef/internal/logging"
	"fridgechef/internal/platform/gemini"
	"fridgechef/internal/platform/localllm"
	"fridgechef/internal/recipe"
)

// cacheTTL bounds in-memory cache entries when no database is configured.
const cacheTTL = 24 * time.Hour

func main() {
	ctx := context.Background()

	configPath := "config.json"
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		configPath = p
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}
	if err := config.ValidateKitchen(cfg.Kitchen); err != nil {
		panic(err)
	}

	log := logging.New(cfg.LogLevel, nil)

	provider, closeProvider, err := newProvider(ctx, cfg.Kitchen)
	if err != nil {
		log.WithError(err).Fatal("error creating model provider")
	}
	defer closeProvider()

	store, closeStore, err := newStore(cfg.Kitchen)
	if err != nil {
		log.WithError(err).Fatal("error creating recipe store")
	}
	defer closeStore()

	log.WithFields(logrus.Fields{
		"provider":   cfg.Kitchen.Provider,
		"postgres":   cfg.Kitchen.DatabaseURL != "",
		"upload_dir": cfg.Kitchen.UploadDir,
	}).Info("starting fridgechef kitchen")

	handler := kitchen.NewHandler(provider, store, cfg.Kitchen.UploadDir, log)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), logging.Middleware(log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	handler.Register(r)
	r.Static("/uploads", cfg.Kitchen.UploadDir)

	if err := r.Run(cfg.Kitchen.ListenAddr); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func newProvider(ctx context.Context, k config.Kitchen) (kitchen.Provider, func(), error) {
	switch k.Provider {
	case "local":
		return localllm.NewClient(k.LocalLLMURL, k.LocalLLMModel), func() {}, nil
	default:
		client, err := gemini.NewClient(ctx, k.GeminiAPIKey, k.GeminiModel)
		if err != nil {
			return nil, nil, fmt.Errorf("error creating gemini client: %w", err)
		}
		return client, func() { client.Close() }, nil
	}
}

func newStore(k config.Kitchen) (recipe.Store, func(), error) {
	if k.DatabaseURL == "" {
		return recipe.NewMemoryStore(cacheTTL), func() {}, nil
	}
	store, err := recipe.NewPostgresStore(k.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("error creating postgresstore: %w", err)
	}
	return store, func() { store.Close() }, nil
}
