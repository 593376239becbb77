// Package watch streams human-readable board activity: anchors appearing,
// moving and disappearing, spec list edits and board configuration changes.
package watch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/dyluth/aura/internal/filter"
	"github.com/dyluth/aura/pkg/board"
)

// OutputFormat selects how events are written.
type OutputFormat string

const (
	// OutputFormatDefault is one human-readable line per event.
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSON is line-delimited JSON.
	OutputFormatJSON OutputFormat = "json"
)

// EventType names a kind of board activity.
type EventType string

const (
	EventAnchorAdded   EventType = "anchor_added"
	EventAnchorMoved   EventType = "anchor_moved"
	EventAnchorResized EventType = "anchor_resized"
	EventAnchorRemoved EventType = "anchor_removed"
	EventSpecsChanged  EventType = "specs_changed"
	EventBoardChanged  EventType = "board_changed"
	EventError         EventType = "error"
)

// Event is one observed change.
type Event struct {
	Type      EventType     `json:"event"`
	Timestamp time.Time     `json:"timestamp"`
	AnchorID  string        `json:"anchor_id,omitempty"`
	Domain    string        `json:"domain,omitempty"`
	Position  *board.Vector `json:"position,omitempty"`
	Footprint *float64      `json:"footprint,omitempty"`
	Auras     *int          `json:"auras,omitempty"`
	Board     *board.Config `json:"board,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// Source is the part of the board client a watcher needs.
type Source interface {
	ListAnchors(ctx context.Context) ([]*board.Anchor, error)
	SubscribeAnchorEvents(ctx context.Context) (*board.Subscription[[]*board.Anchor], error)
	SubscribeBoardEvents(ctx context.Context) (*board.Subscription[board.Config], error)
}

// Options configure StreamActivity.
type Options struct {
	Domains  []string // Spec list domains to report edits for
	Criteria *filter.Criteria
	Format   OutputFormat
	Now      func() time.Time

	// OnReady, if set, is called once the baseline has been read.
	OnReady func(anchors int)
}

// StreamActivity writes board activity to out until ctx is cancelled.
// Subscriptions are opened before the baseline is read, so no change made
// after the call is missed.
func StreamActivity(ctx context.Context, src Source, opts Options, out io.Writer) error {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Format == "" {
		opts.Format = OutputFormatDefault
	}

	anchorSub, err := src.SubscribeAnchorEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to anchor events: %w", err)
	}
	defer anchorSub.Close()

	boardSub, err := src.SubscribeBoardEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to board events: %w", err)
	}
	defer boardSub.Close()

	prev, err := src.ListAnchors(ctx)
	if err != nil {
		return fmt.Errorf("failed to read anchors: %w", err)
	}
	if opts.OnReady != nil {
		opts.OnReady(len(prev))
	}

	anchorErrs, boardErrs := anchorSub.Errors(), boardSub.Errors()
	for {
		var events []Event
		select {
		case <-ctx.Done():
			return nil

		case next, ok := <-anchorSub.Events():
			if !ok {
				return closed(ctx)
			}
			events = Diff(prev, next, opts.Domains)
			events = applyCriteria(events, prev, next, opts.Criteria)
			prev = next

		case cfg, ok := <-boardSub.Events():
			if !ok {
				return closed(ctx)
			}
			events = []Event{{Type: EventBoardChanged, Board: &cfg}}

		case err, ok := <-anchorErrs:
			if !ok {
				anchorErrs = nil
				continue
			}
			events = []Event{{Type: EventError, Error: err.Error()}}

		case err, ok := <-boardErrs:
			if !ok {
				boardErrs = nil
				continue
			}
			events = []Event{{Type: EventError, Error: err.Error()}}
		}

		for _, e := range events {
			e.Timestamp = opts.Now()
			if err := Write(out, e, opts.Format); err != nil {
				return err
			}
		}
	}
}

func closed(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}
	return errors.New("board subscription closed")
}

// Diff lists the changes between two anchor sets: additions, moves, footprint
// changes and spec list edits in domains, then removals. Each group is
// ordered by anchor ID.
func Diff(prev, next []*board.Anchor, domains []string) []Event {
	before := make(map[string]*board.Anchor, len(prev))
	for _, a := range prev {
		before[a.ID] = a
	}
	after := make(map[string]*board.Anchor, len(next))
	for _, a := range next {
		after[a.ID] = a
	}

	var events []Event
	for _, id := range sortedIDs(after) {
		a := after[id]
		old, existed := before[id]
		if !existed {
			pos, fp := a.Position, a.FootprintUnits()
			events = append(events, Event{Type: EventAnchorAdded, AnchorID: id, Position: &pos, Footprint: &fp})
			for _, d := range domains {
				if n := auraCount(a, d); n > 0 {
					events = append(events, Event{Type: EventSpecsChanged, AnchorID: id, Domain: d, Auras: &n})
				}
			}
			continue
		}

		if old.Position != a.Position {
			pos := a.Position
			events = append(events, Event{Type: EventAnchorMoved, AnchorID: id, Position: &pos})
		}
		if old.FootprintUnits() != a.FootprintUnits() {
			fp := a.FootprintUnits()
			events = append(events, Event{Type: EventAnchorResized, AnchorID: id, Footprint: &fp})
		}
		for _, d := range domains {
			if !sameSpecList(old, a, d) {
				n := auraCount(a, d)
				events = append(events, Event{Type: EventSpecsChanged, AnchorID: id, Domain: d, Auras: &n})
			}
		}
	}

	for _, id := range sortedIDs(before) {
		if _, ok := after[id]; !ok {
			events = append(events, Event{Type: EventAnchorRemoved, AnchorID: id})
		}
	}
	return events
}

// applyCriteria keeps anchor events whose anchor matches c before or after
// the change.
func applyCriteria(events []Event, prev, next []*board.Anchor, c *filter.Criteria) []Event {
	if c == nil || !c.HasFilters() {
		return events
	}
	matching := make(map[string]bool)
	for _, set := range [][]*board.Anchor{prev, next} {
		for _, a := range set {
			if c.Matches(a) {
				matching[a.ID] = true
			}
		}
	}
	kept := events[:0]
	for _, e := range events {
		if matching[e.AnchorID] {
			kept = append(kept, e)
		}
	}
	return kept
}

// Write encodes one event in the given format.
func Write(out io.Writer, e Event, format OutputFormat) error {
	if format == OutputFormatJSON {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
		_, err = fmt.Fprintf(out, "%s\n", data)
		return err
	}
	_, err := fmt.Fprintf(out, "[%s] %s\n", e.Timestamp.Format("15:04:05"), describe(e))
	return err
}

func describe(e Event) string {
	switch e.Type {
	case EventAnchorAdded:
		return fmt.Sprintf("✨ anchor %s added at (%g, %g)", e.AnchorID, e.Position.X, e.Position.Y)
	case EventAnchorMoved:
		return fmt.Sprintf("🚶 anchor %s moved to (%g, %g)", e.AnchorID, e.Position.X, e.Position.Y)
	case EventAnchorResized:
		return fmt.Sprintf("📐 anchor %s footprint now %g", e.AnchorID, *e.Footprint)
	case EventAnchorRemoved:
		return fmt.Sprintf("🗑️  anchor %s removed", e.AnchorID)
	case EventSpecsChanged:
		return fmt.Sprintf("🔮 %s [%s] now has %d aura(s)", e.AnchorID, e.Domain, *e.Auras)
	case EventBoardChanged:
		b := e.Board
		return fmt.Sprintf("🗺️  board: metric=%s topology=%s quantized=%t unit=%gpx per %g",
			b.Metric, b.Topology, b.Quantized, b.UnitPixelSize, b.UnitToBoardUnit)
	case EventError:
		return "⚠️  " + e.Error
	}
	return string(e.Type)
}

// sameSpecList compares two versions of an anchor's list in domain. A
// malformed list compares as empty.
func sameSpecList(a, b *board.Anchor, domain string) bool {
	return string(encodedList(a, domain)) == string(encodedList(b, domain))
}

func encodedList(a *board.Anchor, domain string) []byte {
	entries, err := a.SpecList(domain)
	if err != nil {
		entries = nil
	}
	if len(entries) == 0 {
		return []byte("[]")
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return []byte("[]")
	}
	return data
}

func auraCount(a *board.Anchor, domain string) int {
	entries, err := a.SpecList(domain)
	if err != nil {
		return 0
	}
	return len(entries)
}

func sortedIDs(m map[string]*board.Anchor) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
