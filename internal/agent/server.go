package agent

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ensembled/pkg/types"
)

// NewControlMux builds the agent's private control API. It is meant to be
// bound to localhost or a closed security group, never to public traffic.
func NewControlMux(ex *Executor) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/v1/swap", func(w http.ResponseWriter, req *http.Request) {
		var sr types.SwapRequest
		if err := json.NewDecoder(req.Body).Decode(&sr); err != nil {
			writeSwapResult(w, http.StatusBadRequest, types.SwapResult{
				Status: types.SwapStatusFailed,
				Detail: "invalid request body: " + err.Error(),
			})
			return
		}
		if sr.Tag == "" {
			writeSwapResult(w, http.StatusBadRequest, types.SwapResult{
				Status: types.SwapStatusFailed,
				Detail: "tag is required",
			})
			return
		}
		res, err := ex.Swap(req.Context(), sr.Tag)
		code := http.StatusOK
		if err != nil && IsSwapBusy(err) {
			code = http.StatusConflict
		}
		// Failures are reported in the body with 200 so the caller can
		// always decode a structured result.
		writeSwapResult(w, code, res)
	})

	r.Get("/v1/current", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"tag": ex.CurrentTag()})
	})

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Handle("/metrics", promhttp.Handler())
	return r
}

func writeSwapResult(w http.ResponseWriter, code int, res types.SwapResult) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(res)
}
