package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rmgsl/mapa-od/handlers"
	"github.com/rmgsl/mapa-od/internal/cache"
	"github.com/rmgsl/mapa-od/internal/config"
	"github.com/rmgsl/mapa-od/internal/geo"
	"github.com/rmgsl/mapa-od/internal/graceful"
	"github.com/rmgsl/mapa-od/internal/notify"
	"github.com/rmgsl/mapa-od/internal/source"
	"github.com/rmgsl/mapa-od/internal/storage"
	"github.com/rmgsl/mapa-od/internal/survey"
)

var log = logrus.WithField("module", "main")

func main() {
	// Load base .env first, then .env.local (which overrides for local development)
	config.LoadEnvFiles(envDir())
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	ctx, cancel := graceful.Context(context.Background())
	defer cancel()

	// Coordinates also define the canonical spelling of every place name
	locations, err := source.LoadLocations(ctx, cfg.LocationsFile)
	if err != nil {
		log.Fatalf("Failed to load locations: %v", err)
	}
	log.Infof("Location table ready: %d places, %d with coordinates", locations.Len(), len(locations.Located()))

	resolver := source.NewResolver(storage.Options{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		UseSSL:    cfg.MinioUseSSL,
	}, survey.NewNormalizer(locations.Names()))
	defer resolver.Close()

	sources, err := resolver.ResolveAll(ctx, cfg.Sources)
	if err != nil {
		log.Fatalf("Failed to initialize survey sources: %v", err)
	}
	if len(sources) == 0 {
		log.Fatal("No survey sources configured (SURVEY_SOURCES)")
	}
	surveys := cache.New(sources...)

	if cfg.PreloadOnBoot {
		// Failures are reported by /health and retried on first request
		for id, err := range surveys.ReloadAll(ctx) {
			log.Warnf("Source %s not loaded at startup: %v", id, err)
		}
	}

	if cfg.SourceMaxAge > 0 {
		go surveys.RunRefresher(ctx, cfg.SourceMaxAge)
	}

	if cfg.KafkaBroker != "" {
		listener := notify.NewListener(cfg.KafkaBroker, cfg.KafkaTopic, cfg.KafkaGroupID, notify.ReloadHandler(surveys))
		defer listener.Close()
		go func() {
			if err := listener.Run(ctx); err != nil {
				log.Errorf("Reload listener failed: %v", err)
			}
		}()
		log.Infof("Listening for reloads on %s topic %s", cfg.KafkaBroker, cfg.KafkaTopic)
	}

	router := handlers.NewRouter(surveys, handlers.RouterOptions{
		Locations:      locations,
		LineStyle:      geo.LineStyle{Base: cfg.LineBaseWeight, Scale: cfg.LineScale},
		MapTopN:        cfg.MapTopN,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("Server shutdown failed: %v", err)
		}
	}()

	log.Infof("API server starting on :%s", cfg.Port)
	log.Infof("Sources: %v", surveys.IDs())
	log.Info("Survey endpoints:")
	log.Info("  GET  /api/sources")
	log.Info("  POST /api/sources/{sourceId}/reload")
	log.Info("  GET  /api/sources/{sourceId}/filters")
	log.Info("  GET  /api/sources/{sourceId}/flows")
	log.Info("  GET  /api/sources/{sourceId}/map")
	log.Info("  GET  /api/sources/{sourceId}/matrix")
	log.Info("  GET  /api/sources/{sourceId}/heatmaps[/{rows}/{cols}]")
	log.Info("  GET  /api/locations")
	log.Info("Health:")
	log.Info("  GET  /health (with source load status)")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed to start: %v", err)
	}
	log.Info("Server stopped")
}

// envDir is where .env files are looked up: ENV_DIR, or the working directory
func envDir() string {
	if dir := os.Getenv("ENV_DIR"); dir != "" {
		return dir
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return filepath.Clean(wd)
}

func setupLogging(level string) {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		log.Warnf("Unknown LOG_LEVEL %q, using info", level)
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}
