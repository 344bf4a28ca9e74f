package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"ensembled/internal/agent"
	"ensembled/internal/deploy"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// parseEnvList turns "K=V,K2=V2" into a map passed to started containers.
func parseEnvList(s string) map[string]string {
	if s == "" {
		return nil
	}
	out := map[string]string{}
	for _, kv := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(k)] = v
	}
	return out
}

func main() {
	// Flags with environment variable defaults
	trafficAddr := flag.String("traffic-addr", envOr("SWAPAGENT_TRAFFIC_ADDR", ":8080"), "Public traffic listen address")
	controlAddr := flag.String("control-addr", envOr("SWAPAGENT_CONTROL_ADDR", "127.0.0.1:9090"), "Private control listen address")
	image := flag.String("image", os.Getenv("SWAPAGENT_IMAGE"), "Registry repository for server images, e.g. registry.example.com/ensembled")
	containerPort := flag.Int("container-port", envIntOr("SWAPAGENT_CONTAINER_PORT", 8080), "Serving port inside the container")
	containerEnv := flag.String("container-env", os.Getenv("SWAPAGENT_CONTAINER_ENV"), "Comma separated K=V pairs passed to started containers")
	probeTimeout := flag.Duration("probe-timeout", 2*time.Minute, "How long a candidate may take to become ready")
	probeInterval := flag.Duration("probe-interval", time.Second, "Readiness poll period")
	flag.Parse()

	logger := zerolog.New(os.Stderr).With().Timestamp().Str("svc", "swapagent").Logger()
	if *image == "" {
		logger.Fatal().Msg("image repository is required (-image or SWAPAGENT_IMAGE)")
	}

	pointer := agent.NewTrafficPointer(nil)
	ex := &agent.Executor{
		Image: *image,
		Runtime: &agent.DockerRuntime{
			Runner:        deploy.ExecRunner{},
			ContainerPort: *containerPort,
			Env:           parseEnvList(*containerEnv),
			Log:           logger,
		},
		Pointer:       pointer,
		ProbeTimeout:  *probeTimeout,
		ProbeInterval: *probeInterval,
		Log:           logger,
	}

	traffic := &http.Server{Addr: *trafficAddr, Handler: pointer}
	control := &http.Server{Addr: *controlAddr, Handler: agent.NewControlMux(ex)}

	go func() {
		logger.Info().Str("addr", *trafficAddr).Msg("traffic listener up")
		if err := traffic.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("traffic listener")
		}
	}()
	go func() {
		logger.Info().Str("addr", *controlAddr).Msg("control listener up")
		if err := control.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("control listener")
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := control.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("control shutdown")
	}
	if err := traffic.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("traffic shutdown")
	}
}
