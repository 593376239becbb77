package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/dyluth/aura/internal/artifact"
	"github.com/dyluth/aura/pkg/board"
	"github.com/rs/zerolog"
)

// ErrTriggerClosed is returned by Run when a document event stream ends.
var ErrTriggerClosed = errors.New("trigger stream closed")

// Triggers are the change notifications Run reacts to. Nil channels are
// never selected.
type Triggers struct {
	// Anchors and Board carry the new full state; each causes a full pass.
	Anchors <-chan []*board.Anchor
	Board   <-chan board.Config

	// Artifacts carries the local artifact set after external changes. It
	// only prunes the identity map.
	Artifacts <-chan []*artifact.Artifact

	// Manual requests an on-demand pass, for example after a local edit.
	Manual <-chan struct{}

	// Errors reports transport problems. They are logged, not fatal.
	Errors <-chan error

	// Resync, if positive, runs a full pass on this interval regardless of
	// notifications.
	Resync time.Duration
}

// Run performs an initial pass and then one pass per trigger until ctx is
// cancelled. Pass failures are logged and retried on the next trigger.
func (e *Engine) Run(ctx context.Context, t Triggers) error {
	e.logEvent(zerolog.InfoLevel, "engine_started", map[string]interface{}{
		"resync_interval": t.Resync.String(),
	})
	e.runPass(ctx, "startup")

	var resync <-chan time.Time
	if t.Resync > 0 {
		ticker := time.NewTicker(t.Resync)
		defer ticker.Stop()
		resync = ticker.C
	}

	anchors, boardEvents, artifacts, manual, errs := t.Anchors, t.Board, t.Artifacts, t.Manual, t.Errors
	for {
		select {
		case <-ctx.Done():
			e.logEvent(zerolog.InfoLevel, "engine_stopped", map[string]interface{}{})
			return nil

		case _, ok := <-anchors:
			if !ok {
				return e.closed(ctx)
			}
			drain(anchors)
			e.runPass(ctx, "anchors_changed")

		case _, ok := <-boardEvents:
			if !ok {
				return e.closed(ctx)
			}
			drain(boardEvents)
			e.runPass(ctx, "board_changed")

		case _, ok := <-artifacts:
			if !ok {
				artifacts = nil
				continue
			}
			if _, err := e.Prune(ctx); err != nil {
				e.logEvent(zerolog.ErrorLevel, "prune_failed", map[string]interface{}{
					"error": err.Error(),
				})
			}

		case _, ok := <-manual:
			if !ok {
				manual = nil
				continue
			}
			e.runPass(ctx, "manual")

		case <-resync:
			e.runPass(ctx, "resync")

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			e.logEvent(zerolog.WarnLevel, "subscription_error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
}

// closed reports a closed document stream. Streams also close when ctx is
// cancelled, which is a normal stop.
func (e *Engine) closed(ctx context.Context) error {
	if ctx.Err() != nil {
		e.logEvent(zerolog.InfoLevel, "engine_stopped", map[string]interface{}{})
		return nil
	}
	e.logEvent(zerolog.ErrorLevel, "trigger_closed", map[string]interface{}{})
	return ErrTriggerClosed
}

func (e *Engine) runPass(ctx context.Context, reason string) {
	if ctx.Err() != nil {
		return
	}
	e.logger.Debug().Str("event_type", "pass_triggered").Str("reason", reason).Msg("pass_triggered")
	// Reconcile logs its own failures.
	_, _ = e.Reconcile(ctx)
}

// drain discards queued events; the pass about to run reads the latest
// state anyway.
func drain[T any](ch <-chan T) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
