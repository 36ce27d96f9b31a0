package main

import (
	"fmt"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"fridgechef/internal/api"
	"fridgechef/internal/config"
	"fridgechef/internal/coordinator"
	"fridgechef/internal/logging"
	"fridgechef/internal/platform/kitchenapi"
	"fridgechef/internal/session"
)

func main() {
	configPath := "config.json"
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		configPath = p
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}

	log := logging.New(cfg.LogLevel, nil)
	log.WithFields(logrus.Fields{
		"kitchen_url": cfg.KitchenURL,
		"sequenced":   cfg.SequenceRequests,
	}).Info("starting fridgechef api")

	r := newRouter(cfg, log)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

// newRouter wires the kitchen client, the coordinators and the session
// registry behind the HTTP routes.
func newRouter(cfg config.Config, log *logrus.Logger) *gin.Engine {
	kitchen := kitchenapi.NewClient(kitchenapi.Config{
		BaseURL:     cfg.KitchenURL,
		UploadPath:  cfg.UploadPath,
		RecipesPath: cfg.RecipesPath,
		Timeout:     time.Duration(cfg.RequestTimeout),
	})

	registry := session.NewRegistry(
		coordinator.NewUploadCoordinator(kitchen, log),
		coordinator.NewRecipeCoordinator(kitchen, log),
		time.Duration(cfg.SessionIdleTTL),
		session.Options{Sequenced: cfg.SequenceRequests},
		log,
	)

	handler := api.NewHandler(registry, cfg.MaxUploadMegabyte<<20, log)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), logging.Middleware(log))

	// Configure CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	handler.Register(r)
	r.GET("/_healthz", api.Healthz)
	return r
}
