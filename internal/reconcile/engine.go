// Package reconcile keeps one client's rendered auras in step with the shared
// board.
//
// The Engine owns an identity map from (anchor, spec) to the local artifact
// rendering it. Each pass reads the full anchor set, the board configuration
// and the local artifact set, then issues the smallest batch of removals,
// patches and additions that makes the local set match the spec lists.
// Passes are serialized end to end by a gate; triggers that arrive during a
// pass wait for it.
package reconcile

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dyluth/aura/internal/artifact"
	"github.com/dyluth/aura/internal/metrics"
	"github.com/dyluth/aura/pkg/board"
	"github.com/rs/zerolog"
)

// DefaultDomain is the styling domain used when none is configured.
const DefaultDomain = "aura"

// Document is the shared board the engine reads.
type Document interface {
	ListAnchors(ctx context.Context) ([]*board.Anchor, error)
	GetBoardConfig(ctx context.Context) (board.Config, error)
}

// ArtifactStore is the client-private artifact set. Each call is one batch.
type ArtifactStore interface {
	List(ctx context.Context) ([]*artifact.Artifact, error)
	Add(ctx context.Context, items []*artifact.Artifact) error
	Update(ctx context.Context, ids []string, mutate artifact.Mutator) error
	Delete(ctx context.Context, ids []string) error
}

// Builder materializes one spec entry.
type Builder interface {
	Build(domain string, anchor *board.Anchor, entry board.AuraSpecEntry, cfg board.Config) (*artifact.Artifact, []string, error)
}

// Notifier shows non-fatal warnings to the user.
type Notifier interface {
	Warn(message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(message string)

// Warn calls f.
func (f NotifierFunc) Warn(message string) { f(message) }

// Key identifies one spec entry on one anchor.
type Key struct {
	AnchorID string
	SpecID   string
}

// Result counts the operations one pass issued.
type Result struct {
	Added    int
	Patched  int
	Removed  int
	Rebuilt  int // Included in both Added and Removed
	Adopted  int
	Pruned   int
	Warnings []string
}

// Ops is the number of store operations issued.
func (r Result) Ops() int {
	return r.Added + r.Patched + r.Removed
}

// Engine reconciles one styling domain.
type Engine struct {
	doc      Document
	store    ArtifactStore
	builder  Builder
	domain   string
	notifier Notifier
	logger   zerolog.Logger

	// gate serializes passes, Prune and Close.
	gate sync.Mutex

	// mu guards identity for readers outside the gate. Writers hold both.
	mu       sync.RWMutex
	identity map[Key]string

	// scales is the last-seen effective footprint per anchor.
	scales map[string]float64
}

// Option configures an Engine.
type Option func(*Engine)

// WithDomain sets the styling domain. Spec lists are read from the anchor
// metadata key for the domain and only artifacts of the domain are touched.
func WithDomain(domain string) Option {
	return func(e *Engine) { e.domain = domain }
}

// WithNotifier sets where warnings are shown.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an engine with an empty identity map. Artifacts of the
// domain already in the store are adopted on the first pass.
func NewEngine(doc Document, store ArtifactStore, builder Builder, opts ...Option) *Engine {
	e := &Engine{
		doc:      doc,
		store:    store,
		builder:  builder,
		domain:   DefaultDomain,
		notifier: NotifierFunc(func(string) {}),
		logger:   zerolog.Nop(),
		identity: make(map[Key]string),
		scales:   make(map[string]float64),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With().Str("component", "reconcile").Str("domain", e.domain).Logger()
	return e
}

// Domain returns the styling domain.
func (e *Engine) Domain() string {
	return e.domain
}

// Lookup returns the artifact rendering a spec entry.
func (e *Engine) Lookup(anchorID, specID string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	id, ok := e.identity[Key{AnchorID: anchorID, SpecID: specID}]
	return id, ok
}

// Snapshot returns a copy of the identity map.
func (e *Engine) Snapshot() map[Key]string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[Key]string, len(e.identity))
	for k, v := range e.identity {
		out[k] = v
	}
	return out
}

// Reconcile runs one full pass. On error the pass is abandoned: batches
// already issued stay applied and the next pass picks up from the observed
// state.
func (e *Engine) Reconcile(ctx context.Context) (Result, error) {
	e.gate.Lock()
	defer e.gate.Unlock()

	start := time.Now()
	res, err := e.pass(ctx)
	elapsed := time.Since(start)
	metrics.RecordPass(e.domain, elapsed, err)
	metrics.SetTracked(e.domain, e.trackedCount())

	if err != nil {
		e.logEvent(zerolog.ErrorLevel, "pass_failed", map[string]interface{}{
			"error":       err.Error(),
			"duration_ms": elapsed.Milliseconds(),
		})
		return res, err
	}
	if res.Ops() > 0 || res.Adopted > 0 || res.Pruned > 0 {
		e.logEvent(zerolog.InfoLevel, "pass_applied", map[string]interface{}{
			"added":       res.Added,
			"patched":     res.Patched,
			"removed":     res.Removed,
			"rebuilt":     res.Rebuilt,
			"adopted":     res.Adopted,
			"pruned":      res.Pruned,
			"duration_ms": elapsed.Milliseconds(),
		})
	}
	return res, nil
}

// pending is a spec entry waiting to be built.
type pending struct {
	key    Key
	anchor *board.Anchor
	entry  board.AuraSpecEntry
}

func (e *Engine) pass(ctx context.Context) (Result, error) {
	var res Result

	anchors, err := e.doc.ListAnchors(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to list anchors: %w", err)
	}
	cfg, err := e.doc.GetBoardConfig(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to read board configuration: %w", err)
	}
	local, err := e.store.List(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to list local artifacts: %w", err)
	}

	present := make(map[string]*artifact.Artifact, len(local))
	for _, a := range local {
		if a.Domain == e.domain {
			present[a.ID] = a
		}
	}

	res.Pruned = e.prune(present)
	adopted, duplicates := e.adopt(local)
	res.Adopted = adopted
	metrics.RecordOps(e.domain, metrics.OpPrune, res.Pruned)
	metrics.RecordOps(e.domain, metrics.OpAdopt, res.Adopted)

	// Desired state.
	anchorByID := make(map[string]*board.Anchor, len(anchors))
	lists := make(map[string][]board.AuraSpecEntry, len(anchors))
	entries := make(map[Key]board.AuraSpecEntry)
	for _, anchor := range anchors {
		anchorByID[anchor.ID] = anchor
		list, err := anchor.SpecList(e.domain)
		if err != nil {
			// A malformed list counts as empty.
			e.logEvent(zerolog.WarnLevel, "spec_list_invalid", map[string]interface{}{
				"anchor_id": anchor.ID,
				"error":     err.Error(),
			})
			continue
		}
		lists[anchor.ID] = list
		for _, entry := range list {
			entries[Key{AnchorID: anchor.ID, SpecID: entry.SpecID}] = entry
		}
	}

	rescaled := make(map[string]bool)
	for id, anchor := range anchorByID {
		if prev, ok := e.scales[id]; ok && prev != anchor.FootprintUnits() {
			rescaled[id] = true
		}
	}

	// Diff tracked artifacts against the desired state.
	removes := append([]string(nil), duplicates...)
	patches := make(map[string]artifact.Cosmetic)
	moves := make(map[string]board.Vector)
	forget := make([]Key, 0)

	for _, key := range e.sortedKeys() {
		id := e.identity[key]
		a := present[id]
		anchor, anchorOK := anchorByID[key.AnchorID]
		entry, entryOK := entries[key]

		switch {
		case !anchorOK || !entryOK:
			removes = append(removes, id)
			forget = append(forget, key)
		case a.Build != artifact.BuildParamsFor(anchor, entry, cfg) || rescaled[key.AnchorID]:
			removes = append(removes, id)
			forget = append(forget, key)
			res.Rebuilt++
		default:
			if want := artifact.CosmeticFor(entry.Style); !a.Cosmetic.Equal(want) {
				patches[id] = want
			}
			if a.Position != anchor.Position {
				moves[id] = anchor.Position
			}
		}
	}

	// Everything unmapped once removals are accounted for gets built, in
	// anchor then list order.
	forgotten := make(map[Key]bool, len(forget))
	for _, k := range forget {
		forgotten[k] = true
	}
	var adds []pending
	for _, anchor := range anchors {
		for _, entry := range lists[anchor.ID] {
			key := Key{AnchorID: anchor.ID, SpecID: entry.SpecID}
			if _, tracked := e.identity[key]; tracked && !forgotten[key] {
				continue
			}
			adds = append(adds, pending{key: key, anchor: anchor, entry: entry})
		}
	}

	// Removals.
	if len(removes) > 0 {
		if err := e.store.Delete(ctx, removes); err != nil {
			return res, fmt.Errorf("failed to remove %d artifacts: %w", len(removes), err)
		}
		e.forget(forget)
		res.Removed = len(removes)
		metrics.RecordOps(e.domain, metrics.OpRemove, res.Removed)
	}

	// Patches.
	patchIDs := unionKeys(patches, moves)
	if len(patchIDs) > 0 {
		err := e.store.Update(ctx, patchIDs, func(a *artifact.Artifact) error {
			if c, ok := patches[a.ID]; ok {
				if err := artifact.ApplyCosmetic(a, c); err != nil {
					return err
				}
			}
			if p, ok := moves[a.ID]; ok {
				a.Position = p
			}
			return nil
		})
		if err != nil {
			return res, fmt.Errorf("failed to patch %d artifacts: %w", len(patchIDs), err)
		}
		res.Patched = len(patchIDs)
		metrics.RecordOps(e.domain, metrics.OpPatch, res.Patched)
	}

	// Additions.
	if len(adds) > 0 {
		built := make([]*artifact.Artifact, 0, len(adds))
		seen := make(map[string]bool)
		for _, p := range adds {
			a, warnings, err := e.builder.Build(e.domain, p.anchor, p.entry, cfg)
			for _, w := range warnings {
				if !seen[w] {
					seen[w] = true
					res.Warnings = append(res.Warnings, w)
				}
			}
			if err != nil {
				e.notify(res.Warnings)
				return res, fmt.Errorf("failed to build aura %s on anchor %s: %w", p.key.SpecID, p.key.AnchorID, err)
			}
			built = append(built, a)
		}
		if err := e.store.Add(ctx, built); err != nil {
			e.notify(res.Warnings)
			return res, fmt.Errorf("failed to add %d artifacts: %w", len(built), err)
		}

		e.mu.Lock()
		for i, p := range adds {
			e.identity[p.key] = built[i].ID
		}
		e.mu.Unlock()
		res.Added = len(built)
		metrics.RecordOps(e.domain, metrics.OpAdd, res.Added)
	}

	e.notify(res.Warnings)

	scales := make(map[string]float64, len(anchorByID))
	for id, anchor := range anchorByID {
		scales[id] = anchor.FootprintUnits()
	}
	e.scales = scales
	return res, nil
}

// Prune forgets identity entries whose artifact no longer exists. It is the
// response to a local store change notification.
func (e *Engine) Prune(ctx context.Context) (int, error) {
	e.gate.Lock()
	defer e.gate.Unlock()

	local, err := e.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list local artifacts: %w", err)
	}
	present := make(map[string]*artifact.Artifact, len(local))
	for _, a := range local {
		if a.Domain == e.domain {
			present[a.ID] = a
		}
	}
	n := e.prune(present)
	metrics.RecordOps(e.domain, metrics.OpPrune, n)
	metrics.SetTracked(e.domain, e.trackedCount())
	return n, nil
}

// Close ends the session: every tracked artifact is deleted and the identity
// map is emptied.
func (e *Engine) Close(ctx context.Context) error {
	e.gate.Lock()
	defer e.gate.Unlock()

	ids := make([]string, 0, len(e.identity))
	for _, key := range e.sortedKeys() {
		ids = append(ids, e.identity[key])
	}
	if len(ids) > 0 {
		if err := e.store.Delete(ctx, ids); err != nil {
			return fmt.Errorf("failed to remove %d artifacts: %w", len(ids), err)
		}
	}

	e.mu.Lock()
	e.identity = make(map[Key]string)
	e.mu.Unlock()
	e.scales = make(map[string]float64)
	metrics.RecordOps(e.domain, metrics.OpRemove, len(ids))
	metrics.SetTracked(e.domain, 0)

	e.logEvent(zerolog.InfoLevel, "session_closed", map[string]interface{}{
		"removed": len(ids),
	})
	return nil
}

// prune drops identity entries whose artifact is not in present.
func (e *Engine) prune(present map[string]*artifact.Artifact) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0
	for key, id := range e.identity {
		if _, ok := present[id]; !ok {
			delete(e.identity, key)
			n++
		}
	}
	return n
}

// adopt maps untracked artifacts of the domain into the identity map. When
// two artifacts claim the same entry the first is kept; the IDs of the rest
// are returned for removal.
func (e *Engine) adopt(local []*artifact.Artifact) (int, []string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tracked := make(map[string]bool, len(e.identity))
	for _, id := range e.identity {
		tracked[id] = true
	}

	var duplicates []string
	adopted := 0
	for _, a := range local {
		if a.Domain != e.domain || tracked[a.ID] {
			continue
		}
		key := Key{AnchorID: a.AnchorID, SpecID: a.SpecID}
		if _, taken := e.identity[key]; taken {
			duplicates = append(duplicates, a.ID)
			continue
		}
		e.identity[key] = a.ID
		tracked[a.ID] = true
		adopted++
	}
	return adopted, duplicates
}

func (e *Engine) forget(keys []Key) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, k := range keys {
		delete(e.identity, k)
	}
}

func (e *Engine) trackedCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.identity)
}

// sortedKeys lists identity keys in a stable order. Callers hold the gate.
func (e *Engine) sortedKeys() []Key {
	e.mu.RLock()
	keys := make([]Key, 0, len(e.identity))
	for k := range e.identity {
		keys = append(keys, k)
	}
	e.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].AnchorID != keys[j].AnchorID {
			return keys[i].AnchorID < keys[j].AnchorID
		}
		return keys[i].SpecID < keys[j].SpecID
	})
	return keys
}

func (e *Engine) notify(warnings []string) {
	if len(warnings) == 0 {
		return
	}
	metrics.RecordWarnings(e.domain, len(warnings))
	for _, w := range warnings {
		e.notifier.Warn(w)
		e.logEvent(zerolog.WarnLevel, "build_warning", map[string]interface{}{
			"warning": w,
		})
	}
}

func (e *Engine) logEvent(level zerolog.Level, eventType string, data map[string]interface{}) {
	e.logger.WithLevel(level).
		Str("event_type", eventType).
		Fields(data).
		Msg(eventType)
}

func unionKeys(a map[string]artifact.Cosmetic, b map[string]board.Vector) []string {
	set := make(map[string]bool, len(a)+len(b))
	for k := range a {
		set[k] = true
	}
	for k := range b {
		set[k] = true
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
