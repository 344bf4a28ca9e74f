package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"ensembled/internal/cache"
	"ensembled/internal/common/fsutil"
	"ensembled/internal/config"
	"ensembled/internal/dispatch"
	"ensembled/internal/httpapi"
	"ensembled/internal/store"
	"ensembled/pkg/types"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// newStoreClient picks the artifact store transport from the configured URL:
// http(s) URLs get the HTTP client, anything else is a local directory.
func newStoreClient(storeURL string) (store.Client, error) {
	if strings.HasPrefix(storeURL, "http://") || strings.HasPrefix(storeURL, "https://") {
		return store.NewHTTP(storeURL, 2*time.Minute), nil
	}
	dir, err := fsutil.ExpandHome(storeURL)
	if err != nil {
		return nil, err
	}
	return store.NewDir(dir)
}

func main() {
	// Flags with environment variable defaults
	addr := flag.String("addr", envOr("ENSEMBLED_ADDR", ":8080"), "HTTP listen address, e.g. :8080")
	cfgPath := flag.String("config", envOr("ENSEMBLED_CONFIG", "ensembled.yaml"), "Config file (.yaml/.json/.toml)")
	dataDir := flag.String("data-dir", envOr("ENSEMBLED_DATA_DIR", "~/.cache/ensembled"), "Local artifact cache directory")
	storeURL := flag.String("store-url", os.Getenv("ENSEMBLED_STORE_URL"), "Artifact store URL or directory (overrides config)")
	policy := flag.String("policy", os.Getenv("ENSEMBLED_POLICY"), "serve-degraded|fail-closed (overrides config)")
	corsOrigins := flag.String("cors-origins", os.Getenv("ENSEMBLED_CORS_ORIGINS"), "Comma separated origins allowed for CORS (empty disables)")
	flag.Parse()

	logger := zerolog.New(os.Stderr).With().Timestamp().Str("svc", "ensembled").Logger()
	httpapi.SetLogger(logger)
	if *corsOrigins != "" {
		httpapi.SetCORSOptions(true,
			strings.Split(*corsOrigins, ","),
			[]string{http.MethodGet, http.MethodPost},
			[]string{"Content-Type"})
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", *cfgPath).Msg("load config")
	}
	if *storeURL != "" {
		cfg.StoreURL = *storeURL
	}
	if *policy != "" {
		cfg.Policy = *policy
	}
	if cfg.Policy == "" {
		cfg.Policy = config.PolicyFailClosed
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	if len(cfg.Models) == 0 {
		logger.Fatal().Msg("config declares no models")
	}

	dir, err := fsutil.ExpandHome(*dataDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("resolve data dir")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Fatal().Err(err).Str("dir", dir).Msg("create data dir")
	}

	st, err := newStoreClient(cfg.StoreURL)
	if err != nil {
		logger.Fatal().Err(err).Str("store", cfg.StoreURL).Msg("store client")
	}

	artifacts := cfg.Artifacts(dir)
	if cfg.StorePrefix != "" {
		for i := range artifacts {
			artifacts[i].Key = strings.TrimRight(cfg.StorePrefix, "/") + "/" + artifacts[i].Key
		}
	}

	mgr := cache.New(st, artifacts, cache.Options{Logger: &logger})
	disp := dispatch.New(mgr, dispatch.Options{
		Policy: cfg.Policy,
		Target: len(artifacts),
		Logger: &logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Populate the cache and load models in the background so the server
	// can answer health probes immediately; readiness flips once the
	// policy is satisfied.
	go populate(ctx, logger, mgr, disp)

	mux := httpapi.NewMux(disp, mgr)
	srv := &http.Server{Addr: *addr, Handler: mux}

	go func() {
		logger.Info().Str("addr", *addr).Str("policy", cfg.Policy).Int("models", len(artifacts)).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancel()
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
}

// populate drives Ensure and Rebuild until the full artifact set is verified
// and loaded, retrying failed artifacts on a fixed cadence.
func populate(ctx context.Context, logger zerolog.Logger, mgr *cache.Manager, disp *dispatch.Dispatcher) {
	for {
		if err := mgr.Ensure(ctx); err != nil {
			logger.Warn().Err(err).Msg("cache population incomplete")
		}
		if err := disp.Rebuild(ctx); err != nil {
			logger.Warn().Err(err).Msg("model load incomplete")
		}
		if complete(mgr) {
			logger.Info().Msg("all artifacts verified and loaded")
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(30 * time.Second):
		}
	}
}

func complete(mgr *cache.Manager) bool {
	for _, s := range mgr.Snapshot() {
		if s.State != types.ArtifactVerified {
			return false
		}
	}
	return true
}
