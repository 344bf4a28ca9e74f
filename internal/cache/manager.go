// Package cache maintains the local directory of model artifacts required by
// the serving process. It owns all artifact state transitions; no other
// component writes cache state.
package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"ensembled/internal/common/fsutil"
	"ensembled/internal/store"
	"ensembled/pkg/types"
)

// Options tune fetch behavior. Zero values select defaults.
type Options struct {
	// MaxAttempts bounds fetch attempts per artifact per Ensure round.
	MaxAttempts int
	// BackoffInitial is the first retry delay.
	BackoffInitial time.Duration
	// Logger used for fetch progress. Disabled when unset.
	Logger *zerolog.Logger
}

const (
	defaultMaxAttempts    = 3
	defaultBackoffInitial = 500 * time.Millisecond
)

type entry struct {
	state types.ArtifactState
	err   string
}

// Manager populates and verifies the local artifact cache for a fixed set of
// descriptors. Concurrent Ensure calls collapse into at most one in-flight
// fetch per artifact.
type Manager struct {
	store       store.Client
	artifacts   []types.Artifact
	maxAttempts int
	backoffInit time.Duration
	log         zerolog.Logger

	mu      sync.RWMutex
	entries map[string]*entry

	sf singleflight.Group
}

// New builds a Manager over the canonical artifact set.
func New(st store.Client, artifacts []types.Artifact, opts Options) *Manager {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.BackoffInitial <= 0 {
		opts.BackoffInitial = defaultBackoffInitial
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	m := &Manager{
		store:       st,
		artifacts:   artifacts,
		maxAttempts: opts.MaxAttempts,
		backoffInit: opts.BackoffInitial,
		log:         logger,
		entries:     make(map[string]*entry, len(artifacts)),
	}
	for _, a := range artifacts {
		m.entries[a.Name] = &entry{state: types.ArtifactMissing}
	}
	return m
}

// Artifacts returns the canonical descriptor set.
func (m *Manager) Artifacts() []types.Artifact {
	out := make([]types.Artifact, len(m.artifacts))
	copy(out, m.artifacts)
	return out
}

// Ensure blocks until every artifact has settled and returns the first
// failed artifact's error, if any. One artifact's failure never cancels the
// sibling fetches; each runs to completion under the caller's ctx, so a
// fast-failing member still leaves the rest Verified for degraded serving.
// Safe for concurrent use; duplicate callers wait on the existing attempt
// instead of issuing a second transfer.
func (m *Manager) Ensure(ctx context.Context) error {
	var g errgroup.Group
	for _, a := range m.artifacts {
		a := a
		g.Go(func() error {
			_, err, _ := m.sf.Do(a.Name, func() (any, error) {
				return nil, m.ensureOne(ctx, a)
			})
			return err
		})
	}
	return g.Wait()
}

// Ready reports whether every artifact in the canonical set is Verified.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.artifacts {
		if e := m.entries[a.Name]; e == nil || e.state != types.ArtifactVerified {
			return false
		}
	}
	return true
}

// Snapshot returns per-artifact states sorted by name.
func (m *Manager) Snapshot() []types.ArtifactStatus {
	m.mu.RLock()
	out := make([]types.ArtifactStatus, 0, len(m.artifacts))
	for _, a := range m.artifacts {
		e := m.entries[a.Name]
		out = append(out, types.ArtifactStatus{Name: a.Name, State: e.state, Error: e.err})
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Verified returns the descriptors currently in Verified state.
func (m *Manager) Verified() []types.Artifact {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []types.Artifact
	for _, a := range m.artifacts {
		if e := m.entries[a.Name]; e != nil && e.state == types.ArtifactVerified {
			out = append(out, a)
		}
	}
	return out
}

func (m *Manager) setState(name string, st types.ArtifactState, err error) {
	m.mu.Lock()
	e := m.entries[name]
	if e == nil {
		e = &entry{}
		m.entries[name] = e
	}
	e.state = st
	if err != nil {
		e.err = err.Error()
	} else {
		e.err = ""
	}
	m.mu.Unlock()
}

func (m *Manager) state(name string) types.ArtifactState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e := m.entries[name]; e != nil {
		return e.state
	}
	return types.ArtifactMissing
}

// ensureOne runs under the single-flight slot for one artifact.
func (m *Manager) ensureOne(ctx context.Context, a types.Artifact) error {
	if m.state(a.Name) == types.ArtifactVerified {
		return nil
	}
	ok, err := m.verifyLocal(a)
	if err != nil {
		return err
	}
	if ok {
		m.log.Debug().Str("artifact", a.Name).Msg("verified from local cache")
		m.setState(a.Name, types.ArtifactVerified, nil)
		return nil
	}

	m.setState(a.Name, types.ArtifactFetching, nil)
	m.log.Info().Str("artifact", a.Name).Str("key", a.Key).Msg("fetching artifact")

	attempts := 0
	op := func() error {
		attempts++
		err := m.store.Fetch(ctx, a.Key, a.Path, a.SHA256)
		if err != nil {
			fetchesTotal.WithLabelValues(a.Name, "error").Inc()
			m.log.Warn().Str("artifact", a.Name).Int("attempt", attempts).Err(err).Msg("fetch failed")
			return err
		}
		fetchesTotal.WithLabelValues(a.Name, "ok").Inc()
		return nil
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = m.backoffInit
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(m.maxAttempts-1)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		m.setState(a.Name, types.ArtifactFailed, err)
		return err
	}
	m.setState(a.Name, types.ArtifactVerified, nil)
	m.log.Info().Str("artifact", a.Name).Msg("artifact verified")
	return nil
}

// verifyLocal reports whether the artifact already exists locally and, when a
// hash is pinned, matches it. This keeps restarts off the network.
func (m *Manager) verifyLocal(a types.Artifact) (bool, error) {
	if !fsutil.PathExists(a.Path) {
		return false, nil
	}
	if a.SHA256 == "" {
		return true, nil
	}
	sum, err := fsutil.SHA256File(a.Path)
	if err != nil {
		return false, nil
	}
	return sum == a.SHA256, nil
}
