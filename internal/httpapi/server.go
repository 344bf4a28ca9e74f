package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ensembled/internal/dispatch"
	"ensembled/pkg/types"
)

// Service defines the prediction methods required by the HTTP API layer.
type Service interface {
	Predict(features []float64) (float64, int, error)
	LoadedModels() []string
	Policy() string
	LastError() string
	Ready() bool
}

// CacheView exposes the artifact cache state for status endpoints.
type CacheView interface {
	Snapshot() []types.ArtifactStatus
}

func NewMux(svc Service, cacheView CacheView) http.Handler {
	startTime := time.Now()

	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	r.Use(MetricsMiddleware)

	r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(types.ModelsResponse{Models: cacheView.Snapshot()}); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
			return
		}
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		resp := types.StatusResponse{
			Artifacts:      cacheView.Snapshot(),
			Loaded:         svc.LoadedModels(),
			Policy:         svc.Policy(),
			Ready:          svc.Ready(),
			LastError:      svc.LastError(),
			UptimeSeconds:  int64(now.Sub(startTime).Seconds()),
			ServerTimeUnix: now.Unix(),
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
			return
		}
	})

	r.Post("/predict", func(w http.ResponseWriter, r *http.Request) {
		// Content-Type check
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		// Limit body size (configurable, default 1MiB)
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req types.PredictRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if len(req.Features) == 0 {
			writeJSONError(w, http.StatusBadRequest, "features are required")
			return
		}

		start := time.Now()
		lvl := requestLogLevel(r)
		value, used, err := svc.Predict(req.Features)
		if err != nil {
			status := http.StatusInternalServerError
			switch {
			case dispatch.IsNotReady(err):
				status = http.StatusServiceUnavailable
			case dispatch.IsBadInput(err):
				status = http.StatusBadRequest
			default:
				if he, ok := err.(HTTPError); ok {
					status = he.StatusCode()
				}
			}
			writeJSONError(w, status, err.Error())
			if lvl >= LevelInfo {
				if zlog != nil {
					z := zlog.Info().Int("status", status).Dur("dur", time.Since(start))
					if rid := middleware.GetReqID(r.Context()); rid != "" {
						z = z.Str("request_id", rid)
					}
					z.Err(err).Msg("predict end")
				} else {
					log.Printf("predict end status=%d dur=%s err=%v", status, time.Since(start), err)
				}
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(types.PredictResponse{
			Prediction: value,
			ModelsUsed: used,
			ModelIDs:   svc.LoadedModels(),
		})
		if lvl >= LevelInfo {
			if zlog != nil {
				z := zlog.Info().Str("status", "200").Int("models_used", used).Dur("dur", time.Since(start))
				if rid := middleware.GetReqID(r.Context()); rid != "" {
					z = z.Str("request_id", rid)
				}
				z.Msg("predict end")
			} else {
				log.Printf("predict end status=200 models_used=%d dur=%s", used, time.Since(start))
			}
		}
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ready := svc.Ready()
		w.Header().Set("Content-Type", "application/json")
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(types.ReadyResponse{Ready: ready, Loaded: svc.LoadedModels()})
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
