package deploy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ensembled/pkg/types"
)

// Orchestrator runs deployment attempts against one target instance. At most
// one attempt may be rolling at a time; concurrent triggers are rejected.
type Orchestrator struct {
	Instance string
	Builder  ImageBuilder
	Swapper  SwapClient
	Records  *Log
	Log      zerolog.Logger

	mu   sync.Mutex
	busy bool
}

func (o *Orchestrator) acquire() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.busy {
		return ErrBusy(o.Instance)
	}
	o.busy = true
	return nil
}

func (o *Orchestrator) release() {
	o.mu.Lock()
	o.busy = false
	o.mu.Unlock()
}

// NewTag returns a unique, monotonically distinguishable image tag.
func NewTag() string {
	return time.Now().UTC().Format("20060102T150405Z") + "-" + uuid.NewString()[:8]
}

func (o *Orchestrator) append(ctx context.Context, attemptID, tag string, st Status, detail string) {
	rec := Record{AttemptID: attemptID, Tag: tag, Instance: o.Instance, Status: st, Detail: detail}
	if err := o.Records.Append(ctx, rec); err != nil {
		o.Log.Error().Err(err).Str("status", string(st)).Msg("append deployment record")
	}
	attemptsTotal.WithLabelValues(string(st)).Inc()
	o.Log.Info().Str("attempt", attemptID).Str("tag", tag).Str("status", string(st)).Str("detail", detail).Msg("deployment transition")
}

// Deploy builds, publishes and rolls out tag. An empty tag selects a fresh
// generated one. Build and publish failures never touch the running
// instance; a failed swap triggers rollback to the last healthy tag.
func (o *Orchestrator) Deploy(ctx context.Context, tag string) (Record, error) {
	if err := o.acquire(); err != nil {
		return Record{}, err
	}
	defer o.release()

	if tag == "" {
		tag = NewTag()
	}
	attemptID := uuid.NewString()

	o.append(ctx, attemptID, tag, StatusBuilding, "")
	if err := o.Builder.Build(ctx, tag); err != nil {
		o.append(ctx, attemptID, tag, StatusFailed, err.Error())
		return Record{AttemptID: attemptID, Tag: tag, Status: StatusFailed}, err
	}
	if err := o.Builder.Push(ctx, tag); err != nil {
		o.append(ctx, attemptID, tag, StatusFailed, err.Error())
		return Record{AttemptID: attemptID, Tag: tag, Status: StatusFailed}, err
	}
	o.append(ctx, attemptID, tag, StatusPublished, "")

	return o.roll(ctx, attemptID, tag, true)
}

// Rollback rolls the instance back to the healthy tag preceding the current
// one. The image is already in the registry, so there is no build phase.
func (o *Orchestrator) Rollback(ctx context.Context) (Record, error) {
	if err := o.acquire(); err != nil {
		return Record{}, err
	}
	defer o.release()

	prev, err := o.Records.PreviousHealthyTag(ctx, o.Instance)
	if err != nil {
		return Record{}, err
	}
	if prev == "" {
		return Record{}, fmt.Errorf("no previous healthy tag to roll back to")
	}
	attemptID := uuid.NewString()
	return o.roll(ctx, attemptID, prev, false)
}

// roll performs the Rolling phase of an attempt. When allowRollback is set, a
// failed swap restores the last healthy tag before returning.
func (o *Orchestrator) roll(ctx context.Context, attemptID, tag string, allowRollback bool) (Record, error) {
	prevHealthy, err := o.Records.LastHealthyTag(ctx, o.Instance)
	if err != nil {
		o.Log.Error().Err(err).Msg("reading last healthy tag")
	}

	o.append(ctx, attemptID, tag, StatusRolling, "")
	res, err := o.Swapper.Swap(ctx, tag)
	if err == nil && res.Status == types.SwapStatusOK {
		o.append(ctx, attemptID, tag, StatusHealthy, "")
		return Record{AttemptID: attemptID, Tag: tag, Instance: o.Instance, Status: StatusHealthy}, nil
	}

	detail := res.Detail
	if err != nil {
		detail = err.Error()
	}
	o.append(ctx, attemptID, tag, StatusFailed, detail)

	// The agent repoints traffic only after the candidate is healthy, so a
	// failed swap normally leaves the old tag serving. Only issue a restore
	// swap when the instance is actually off the last healthy tag.
	if cur, curErr := o.Swapper.Current(ctx); curErr == nil && cur == prevHealthy && prevHealthy != "" {
		o.append(ctx, attemptID, tag, StatusRolledBack, "old container kept serving "+prevHealthy)
		return Record{AttemptID: attemptID, Tag: tag, Instance: o.Instance, Status: StatusFailed, Detail: detail},
			ErrSwapFailed(tag, detail)
	}

	if allowRollback && prevHealthy != "" && prevHealthy != tag {
		restoreRes, restoreErr := o.Swapper.Swap(ctx, prevHealthy)
		if restoreErr == nil && restoreRes.Status == types.SwapStatusOK {
			o.append(ctx, attemptID, tag, StatusRolledBack, "restored "+prevHealthy)
		} else {
			restoreDetail := restoreRes.Detail
			if restoreErr != nil {
				restoreDetail = restoreErr.Error()
			}
			o.Log.Error().Str("tag", prevHealthy).Str("detail", restoreDetail).Msg("rollback swap failed; old container should still be serving")
		}
	}
	return Record{AttemptID: attemptID, Tag: tag, Instance: o.Instance, Status: StatusFailed, Detail: detail},
		ErrSwapFailed(tag, detail)
}

// Status reports the tag currently receiving traffic and the latest record.
func (o *Orchestrator) Status(ctx context.Context) (currentTag string, latest *Record, err error) {
	currentTag, err = o.Swapper.Current(ctx)
	if err != nil {
		return "", nil, err
	}
	hist, err := o.Records.History(ctx, 1)
	if err != nil {
		return "", nil, err
	}
	if len(hist) > 0 {
		latest = &hist[0]
	}
	return currentTag, latest, nil
}
