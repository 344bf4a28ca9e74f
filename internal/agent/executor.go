// Package agent is the instance-side half of a deployment: it receives a new
// image tag, starts a candidate container next to the serving one, waits for
// the candidate's own cache/load cycle to report ready, then atomically
// repoints traffic and retires the old container. At every step at least one
// of {old, candidate} is answering requests.
package agent

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"ensembled/pkg/types"
)

// swapState exists only while a swap is active.
type swapState struct {
	candidate Container
	tag       string
}

// Executor performs swaps on the local instance.
type Executor struct {
	// Image is the registry repository without tag.
	Image   string
	Runtime Runtime
	Pointer *TrafficPointer
	// ProbeTimeout bounds the candidate readiness wait.
	ProbeTimeout time.Duration
	// ProbeInterval is the poll period within the budget.
	ProbeInterval time.Duration
	HTTP          *http.Client
	Log           zerolog.Logger

	mu      sync.Mutex
	rolling bool
	curTag  string
	cur     *Container
}

// Adopt registers an already-running container as current (agent restart on
// an instance that is already serving).
func (e *Executor) Adopt(tag string, c Container) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.curTag = tag
	cc := c
	e.cur = &cc
	_ = e.Pointer.Set(c.Endpoint)
}

// CurrentTag returns the tag currently receiving traffic.
func (e *Executor) CurrentTag() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.curTag
}

func (e *Executor) acquire() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rolling {
		return ErrSwapBusy()
	}
	e.rolling = true
	return nil
}

func (e *Executor) release() {
	e.mu.Lock()
	e.rolling = false
	e.mu.Unlock()
}

// Swap rolls the instance to tag. The returned result is always structured;
// the error restates failure for programmatic callers.
func (e *Executor) Swap(ctx context.Context, tag string) (types.SwapResult, error) {
	if err := e.acquire(); err != nil {
		swapsTotal.WithLabelValues(types.SwapStatusBusy).Inc()
		return types.SwapResult{Status: types.SwapStatusBusy, Detail: err.Error(), PreviousTag: e.CurrentTag()}, err
	}
	defer e.release()

	prevTag := e.CurrentTag()
	ref := e.Image + ":" + tag
	e.Log.Info().Str("tag", tag).Str("prev", prevTag).Msg("swap started")

	// 1. Pull. Failure leaves the old container untouched.
	if err := e.Runtime.Pull(ctx, ref); err != nil {
		e.Log.Error().Err(err).Msg("swap aborted at pull")
		swapsTotal.WithLabelValues(types.SwapStatusFailed).Inc()
		return types.SwapResult{Status: types.SwapStatusFailed, Detail: err.Error(), PreviousTag: prevTag}, err
	}

	// 2. Start candidate on a private endpoint.
	name := fmt.Sprintf("ensembled-%s", tag)
	cand, err := e.Runtime.Start(ctx, ref, name)
	if err != nil {
		e.Log.Error().Err(err).Msg("swap aborted at start")
		swapsTotal.WithLabelValues(types.SwapStatusFailed).Inc()
		return types.SwapResult{Status: types.SwapStatusFailed, Detail: err.Error(), PreviousTag: prevTag}, err
	}
	st := &swapState{candidate: cand, tag: tag}

	// 3. Wait for the candidate's cache/load cycle to report ready.
	if err := e.waitReady(ctx, st.candidate); err != nil {
		e.Log.Error().Err(err).Str("tag", tag).Msg("candidate never became ready; discarding")
		e.discard(st.candidate)
		swapsTotal.WithLabelValues(types.SwapStatusFailed).Inc()
		return types.SwapResult{Status: types.SwapStatusFailed, Detail: err.Error(), PreviousTag: prevTag}, err
	}

	// 4. Single atomic repoint; no gradual drain.
	if err := e.Pointer.Set(st.candidate.Endpoint); err != nil {
		e.discard(st.candidate)
		swapsTotal.WithLabelValues(types.SwapStatusFailed).Inc()
		return types.SwapResult{Status: types.SwapStatusFailed, Detail: err.Error(), PreviousTag: prevTag}, err
	}

	// 5. Retire the old container only after the switch.
	e.mu.Lock()
	old := e.cur
	e.cur = &st.candidate
	e.curTag = tag
	e.mu.Unlock()
	if old != nil {
		e.discard(*old)
	}

	e.Log.Info().Str("tag", tag).Str("prev", prevTag).Msg("swap complete")
	swapsTotal.WithLabelValues(types.SwapStatusOK).Inc()
	return types.SwapResult{Status: types.SwapStatusOK, PreviousTag: prevTag}, nil
}

// waitReady polls the candidate's readiness endpoint within the probe budget.
func (e *Executor) waitReady(ctx context.Context, c Container) error {
	interval := e.ProbeInterval
	if interval <= 0 {
		interval = time.Second
	}
	budget := e.ProbeTimeout
	if budget <= 0 {
		budget = 2 * time.Minute
	}
	client := e.HTTP
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	deadline, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	probe := func() error {
		req, err := http.NewRequestWithContext(deadline, http.MethodGet, c.Endpoint+"/readyz", nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		res, err := client.Do(req)
		if err != nil {
			return err
		}
		defer res.Body.Close()
		if res.StatusCode != http.StatusOK {
			return fmt.Errorf("readyz status=%d", res.StatusCode)
		}
		return nil
	}
	err := backoff.Retry(probe, backoff.WithContext(backoff.NewConstantBackOff(interval), deadline))
	if err != nil {
		return ErrTimeout(fmt.Sprintf("candidate not ready within %s: %v", budget, err))
	}
	return nil
}

// discard stops and removes a container, best effort.
func (e *Executor) discard(c Container) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.Runtime.Stop(ctx, c); err != nil {
		e.Log.Warn().Err(err).Str("container", c.Name).Msg("stop failed")
	}
	if err := e.Runtime.Remove(ctx, c); err != nil {
		e.Log.Warn().Err(err).Str("container", c.Name).Msg("remove failed")
	}
}
