// Package dispatch routes prediction requests over the loaded model
// ensemble. The loaded set is an immutable snapshot swapped by reference
// under a single-writer discipline, so concurrent readers never observe a
// half-updated ensemble.
package dispatch

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"ensembled/internal/config"
	"ensembled/internal/model"
	"ensembled/pkg/types"
)

// VerifiedSource yields the artifacts currently verified in the local cache.
type VerifiedSource interface {
	Verified() []types.Artifact
}

// modelSet is one immutable generation of loaded predictors.
type modelSet struct {
	models []model.Predictor
	ids    []string
}

// Options configure a Dispatcher.
type Options struct {
	// Policy is serve-degraded or fail-closed.
	Policy string
	// Target is the size of the full configured ensemble.
	Target int
	// Loader overrides model.Load (tests). Nil means model.Load.
	Loader func(path string) (model.Predictor, error)
	// Logger for load progress. Disabled when unset.
	Logger *zerolog.Logger
}

// Dispatcher loads verified artifacts into memory and serves predictions.
type Dispatcher struct {
	source VerifiedSource
	policy string
	target int
	loader func(path string) (model.Predictor, error)
	log    zerolog.Logger

	cur atomic.Pointer[modelSet]

	mu      sync.Mutex // serializes Rebuild (single writer)
	settled bool       // at least one rebuild completed
	lastErr string
}

// New builds a Dispatcher over source.
func New(source VerifiedSource, opts Options) *Dispatcher {
	if opts.Policy == "" {
		opts.Policy = config.PolicyFailClosed
	}
	if opts.Loader == nil {
		opts.Loader = model.Load
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Dispatcher{
		source: source,
		policy: opts.Policy,
		target: opts.Target,
		loader: opts.Loader,
		log:    logger,
	}
}

// Rebuild loads every currently verified artifact into a fresh model set and
// swaps it in wholesale. A handle that fails to load is excluded; under
// fail-closed that keeps the dispatcher not-ready.
func (d *Dispatcher) Rebuild(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	set := &modelSet{}
	var lastErr string
	for _, a := range d.source.Verified() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		h, err := d.loader(a.Path)
		if err != nil {
			lastErr = err.Error()
			d.log.Error().Str("model", a.Name).Err(err).Msg("model load failed, excluding from ensemble")
			continue
		}
		set.models = append(set.models, h)
		set.ids = append(set.ids, a.Name)
		d.log.Info().Str("model", a.Name).Int("trees", h.NumTrees()).Msg("model loaded")
	}
	d.cur.Store(set)
	d.settled = true
	d.lastErr = lastErr
	loadedModels.Set(float64(len(set.models)))
	return nil
}

// Ready reports whether the dispatcher can serve under its policy:
// fail-closed requires the full target set loaded; serve-degraded requires at
// least one loaded model after a settled rebuild.
func (d *Dispatcher) Ready() bool {
	set := d.cur.Load()
	if set == nil {
		return false
	}
	d.mu.Lock()
	settled := d.settled
	d.mu.Unlock()
	if !settled {
		return false
	}
	if d.policy == config.PolicyServeDegraded {
		return len(set.models) > 0
	}
	return d.target > 0 && len(set.models) == d.target
}

// LoadedModels returns the identifiers of the currently loaded models.
func (d *Dispatcher) LoadedModels() []string {
	set := d.cur.Load()
	if set == nil {
		return nil
	}
	out := make([]string, len(set.ids))
	copy(out, set.ids)
	return out
}

// Policy returns the configured partial-ensemble policy.
func (d *Dispatcher) Policy() string { return d.policy }

// LastError returns the most recent load error, if any.
func (d *Dispatcher) LastError() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

// Predict evaluates every loaded model on features and combines the outputs
// as their arithmetic mean. Returns the combined value and the number of
// models used.
func (d *Dispatcher) Predict(features []float64) (float64, int, error) {
	if !d.Ready() {
		return 0, 0, ErrNotReady("")
	}
	set := d.cur.Load()
	outs := make([]float64, len(set.models))
	for i, m := range set.models {
		v, err := m.Predict(features)
		if err != nil {
			return 0, 0, ErrBadInput(err.Error())
		}
		outs[i] = v
	}
	predictionsTotal.Inc()
	return stat.Mean(outs, nil), len(outs), nil
}
