package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/oncall-dispatch/backend/internal/config"
	"github.com/oncall-dispatch/backend/internal/db"
	"github.com/oncall-dispatch/backend/internal/geocode"
	httpapi "github.com/oncall-dispatch/backend/internal/http"
	"github.com/oncall-dispatch/backend/internal/http/handlers"
	"github.com/oncall-dispatch/backend/internal/refdata"
	"github.com/oncall-dispatch/backend/internal/rotation"
	"github.com/oncall-dispatch/backend/internal/schedule"
	"github.com/oncall-dispatch/backend/internal/service"
	"github.com/oncall-dispatch/backend/internal/session"
)

// @title On-call Dispatch API
// @version 1.0
// @description Resolves a ticket location and date to the on-call technician.
// @BasePath /
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := log.Level(level).With().Str("service", "oncall-dispatch").Logger()

	ctx := context.Background()
	var store *db.Store
	if cfg.DatabaseURL != "" {
		store, err = db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect db")
		}
		defer store.Close()
	}

	catalog := rotation.DefaultCatalog()
	if cfg.MarketCatalogPath != "" {
		catalog, err = rotation.LoadCatalog(cfg.MarketCatalogPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.MarketCatalogPath).Msg("failed to load market catalog")
		}
	}

	var providers []refdata.Provider
	if cfg.RefdataAPIURL != "" {
		providers = append(providers, refdata.HTTPProvider{BaseURL: cfg.RefdataAPIURL, Client: &http.Client{Timeout: 60 * time.Second}})
	}
	if store != nil {
		providers = append(providers, refdata.StoreProvider{Store: store, TechTable: cfg.TechTable, ZipTable: cfg.ZipTable})
	}
	providers = append(providers, refdata.StaticProvider{ZipPath: cfg.StaticZipPath, TechPath: cfg.StaticTechPath})

	sess := session.New()
	loader := &service.Loader{
		Session: sess,
		Catalog: catalog,
		Refdata: refdata.Chain{Providers: providers, Logger: logger},
		Logger:  logger,
	}

	loadCtx, cancelLoad := context.WithTimeout(ctx, 2*time.Minute)
	if summary, err := loader.ReloadRefData(loadCtx); err != nil {
		logger.Warn().Err(err).Int("zip_rows", summary.ZipRows).Int("tech_rows", summary.TechRows).Msg("reference tables incomplete at startup")
	}
	cancelLoad()

	if cfg.RotationPath != "" {
		preloadRotation(loader, cfg.RotationPath, logger)
	}

	var geocoder geocode.Geocoder
	if cfg.GeocoderURL != "" {
		geocoder = &geocode.NominatimGeocoder{
			BaseURL:           cfg.GeocoderURL,
			UserAgent:         cfg.GeocoderUserAgent,
			RequestsPerSecond: cfg.GeocoderRPS,
		}
		logger.Info().Str("url", cfg.GeocoderURL).Msg("city/state geocoding enabled")
	}

	h := &handlers.Handler{
		Session: sess,
		Lookup: &service.LookupService{
			Session:                  sess,
			Catalog:                  catalog,
			Clock:                    schedule.SystemClock{},
			Mode:                     cfg.ShiftMode(),
			Geocoder:                 geocoder,
			NonAvailabilityShiftDays: cfg.NonAvailabilityShiftDays,
			Logger:                   logger,
		},
		Loader:         loader,
		Store:          store,
		Validator:      validator.New(),
		Logger:         logger,
		MaxUploadBytes: cfg.MaxUploadSizeMB << 20,
	}
	router := httpapi.Router(cfg, h, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}

func preloadRotation(loader *service.Loader, path string, logger zerolog.Logger) {
	f, err := os.Open(path)
	if err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("rotation preload skipped")
		return
	}
	defer f.Close()
	if _, err := loader.LoadRotation(f, filepath.Base(path)); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("rotation preload failed")
	}
}
