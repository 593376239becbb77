package watch

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/aura/internal/filter"
	"github.com/dyluth/aura/pkg/board"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a bytes.Buffer safe for one writer and one reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(b.buf.String()))
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

func setupClient(t *testing.T) *board.Client {
	mr := miniredis.RunT(t)
	client, err := board.NewClient(&redis.Options{Addr: mr.Addr()}, "watch-room")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func anchorAt(id string, x, y float64) *board.Anchor {
	return &board.Anchor{
		ID:        id,
		Name:      id,
		Position:  board.Vector{X: x, Y: y},
		Scale:     board.Vector{X: 1, Y: 1},
		Footprint: 1,
	}
}

func glowEntry(radius float64) board.AuraSpecEntry {
	return board.NewSpecEntry(board.GlowStyle{EffectParams: board.EffectParams{Color: "#ffcc00", Opacity: 0.5}}, radius)
}

func withSpecs(t *testing.T, a *board.Anchor, domain string, entries ...board.AuraSpecEntry) *board.Anchor {
	require.NoError(t, a.SetSpecList(domain, entries))
	return a
}

func fixedClock() time.Time {
	return time.Date(2026, 3, 14, 21, 5, 9, 0, time.UTC)
}

// startWatch runs StreamActivity in the background and waits until its
// baseline has been read.
func startWatch(t *testing.T, client *board.Client, opts Options) (*syncBuffer, func() error) {
	out := &syncBuffer{}
	ready := make(chan struct{})
	opts.Now = fixedClock
	opts.OnReady = func(int) { close(ready) }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- StreamActivity(ctx, client, opts, out) }()

	select {
	case <-ready:
	case err := <-done:
		cancel()
		t.Fatalf("watch exited early: %v", err)
	case <-time.After(2 * time.Second):
		cancel()
		t.Fatal("watch never became ready")
	}

	stop := func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(2 * time.Second):
			t.Fatal("watch did not stop")
			return nil
		}
	}
	t.Cleanup(func() { cancel() })
	return out, stop
}

func waitForLines(t *testing.T, out *syncBuffer, n int) []string {
	t.Helper()
	require.Eventually(t, func() bool { return len(out.Lines()) >= n }, 2*time.Second, 10*time.Millisecond)
	return out.Lines()
}

func TestDiff(t *testing.T) {
	t.Run("added anchor reports position and existing auras", func(t *testing.T) {
		next := []*board.Anchor{withSpecs(t, anchorAt("goblin", 10, 20), "aura", glowEntry(10))}

		events := Diff(nil, next, []string{"aura", "emanation"})
		require.Len(t, events, 2)
		assert.Equal(t, EventAnchorAdded, events[0].Type)
		assert.Equal(t, board.Vector{X: 10, Y: 20}, *events[0].Position)
		assert.Equal(t, EventSpecsChanged, events[1].Type)
		assert.Equal(t, "aura", events[1].Domain)
		assert.Equal(t, 1, *events[1].Auras)
	})

	t.Run("move and resize", func(t *testing.T) {
		before := anchorAt("ogre", 0, 0)
		after := anchorAt("ogre", 150, 0)
		after.Footprint = 2

		events := Diff([]*board.Anchor{before}, []*board.Anchor{after}, nil)
		require.Len(t, events, 2)
		assert.Equal(t, EventAnchorMoved, events[0].Type)
		assert.Equal(t, EventAnchorResized, events[1].Type)
		assert.Equal(t, 2.0, *events[1].Footprint)
	})

	t.Run("spec edits only in watched domains", func(t *testing.T) {
		entry := glowEntry(10)
		before := withSpecs(t, anchorAt("cleric", 0, 0), "aura", entry)
		after := withSpecs(t, anchorAt("cleric", 0, 0), "aura", entry, glowEntry(20))
		after = withSpecs(t, after, "emanation", glowEntry(5))

		events := Diff([]*board.Anchor{before}, []*board.Anchor{after}, []string{"aura"})
		require.Len(t, events, 1)
		assert.Equal(t, EventSpecsChanged, events[0].Type)
		assert.Equal(t, 2, *events[0].Auras)
	})

	t.Run("cleared list reports zero auras", func(t *testing.T) {
		before := withSpecs(t, anchorAt("cleric", 0, 0), "aura", glowEntry(10))
		after := withSpecs(t, anchorAt("cleric", 0, 0), "aura")

		events := Diff([]*board.Anchor{before}, []*board.Anchor{after}, []string{"aura"})
		require.Len(t, events, 1)
		assert.Equal(t, 0, *events[0].Auras)
	})

	t.Run("absent and empty lists are the same", func(t *testing.T) {
		before := anchorAt("cleric", 0, 0)
		after := withSpecs(t, anchorAt("cleric", 0, 0), "aura")
		assert.Empty(t, Diff([]*board.Anchor{before}, []*board.Anchor{after}, []string{"aura"}))
	})

	t.Run("removals come last in ID order", func(t *testing.T) {
		prev := []*board.Anchor{anchorAt("b", 0, 0), anchorAt("a", 0, 0)}
		next := []*board.Anchor{anchorAt("c", 0, 0)}

		events := Diff(prev, next, nil)
		require.Len(t, events, 3)
		assert.Equal(t, EventAnchorAdded, events[0].Type)
		assert.Equal(t, "a", events[1].AnchorID)
		assert.Equal(t, EventAnchorRemoved, events[1].Type)
		assert.Equal(t, "b", events[2].AnchorID)
	})

	t.Run("identical sets produce nothing", func(t *testing.T) {
		set := []*board.Anchor{anchorAt("a", 1, 2)}
		assert.Empty(t, Diff(set, set, []string{"aura"}))
	})
}

func TestWrite(t *testing.T) {
	pos := board.Vector{X: 300, Y: 450}
	e := Event{Type: EventAnchorAdded, Timestamp: fixedClock(), AnchorID: "goblin", Position: &pos}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, e, OutputFormatDefault))
	assert.Equal(t, "[21:05:09] ✨ anchor goblin added at (300, 450)\n", buf.String())

	buf.Reset()
	require.NoError(t, Write(&buf, e, OutputFormatJSON))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "anchor_added", decoded["event"])
	assert.Equal(t, "goblin", decoded["anchor_id"])
	assert.NotContains(t, decoded, "board")
}

func TestStreamActivity(t *testing.T) {
	ctx := context.Background()
	client := setupClient(t)
	require.NoError(t, client.PutAnchor(ctx, anchorAt("goblin", 0, 0)))

	out, stop := startWatch(t, client, Options{Domains: []string{"aura"}})

	require.NoError(t, client.PutAnchor(ctx, anchorAt("goblin", 150, 0)))
	lines := waitForLines(t, out, 1)
	assert.Equal(t, "[21:05:09] 🚶 anchor goblin moved to (150, 0)", lines[0])

	err := client.UpdateAnchorSpecLists(ctx, "aura", []string{"goblin"}, func(_ string, entries []board.AuraSpecEntry) ([]board.AuraSpecEntry, error) {
		return append(entries, glowEntry(10)), nil
	})
	require.NoError(t, err)
	lines = waitForLines(t, out, 2)
	assert.Equal(t, "[21:05:09] 🔮 goblin [aura] now has 1 aura(s)", lines[1])

	cfg := board.DefaultConfig()
	cfg.Topology = board.TopologyHexA
	require.NoError(t, client.SetBoardConfig(ctx, cfg))
	lines = waitForLines(t, out, 3)
	assert.Contains(t, lines[2], "board: metric=circular topology=hex_a")

	require.NoError(t, client.DeleteAnchor(ctx, "goblin"))
	lines = waitForLines(t, out, 4)
	assert.Contains(t, lines[3], "anchor goblin removed")

	assert.NoError(t, stop(), "cancellation is a clean exit")
}

func TestStreamActivity_Criteria(t *testing.T) {
	ctx := context.Background()
	client := setupClient(t)

	out, stop := startWatch(t, client, Options{
		Format:   OutputFormatJSON,
		Criteria: &filter.Criteria{IDGlob: "goblin-*"},
	})

	require.NoError(t, client.PutAnchor(ctx, anchorAt("ogre", 0, 0)))
	require.NoError(t, client.PutAnchor(ctx, anchorAt("goblin-1", 0, 0)))

	waitForLines(t, out, 1)
	require.NoError(t, stop())

	lines := out.Lines()
	require.Len(t, lines, 1, "ogre is filtered out")
	var e Event
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &e))
	assert.Equal(t, EventAnchorAdded, e.Type)
	assert.Equal(t, "goblin-1", e.AnchorID)
}

func TestStreamActivity_DomainCriteriaReportsClearing(t *testing.T) {
	ctx := context.Background()
	client := setupClient(t)
	require.NoError(t, client.PutAnchor(ctx, withSpecs(t, anchorAt("cleric", 0, 0), "aura", glowEntry(10))))

	out, stop := startWatch(t, client, Options{
		Domains:  []string{"aura"},
		Criteria: &filter.Criteria{Domain: "aura"},
	})

	err := client.UpdateAnchorSpecLists(ctx, "aura", []string{"cleric"}, func(string, []board.AuraSpecEntry) ([]board.AuraSpecEntry, error) {
		return nil, nil
	})
	require.NoError(t, err)

	lines := waitForLines(t, out, 1)
	assert.Contains(t, lines[0], "cleric [aura] now has 0 aura(s)")
	require.NoError(t, stop())
}

// closingSource hands out subscriptions that are already closed.
type closingSource struct{ *board.Client }

func (s closingSource) SubscribeAnchorEvents(ctx context.Context) (*board.Subscription[[]*board.Anchor], error) {
	sub, err := s.Client.SubscribeAnchorEvents(ctx)
	if err != nil {
		return nil, err
	}
	sub.Close()
	return sub, nil
}

func (s closingSource) SubscribeBoardEvents(ctx context.Context) (*board.Subscription[board.Config], error) {
	sub, err := s.Client.SubscribeBoardEvents(ctx)
	if err != nil {
		return nil, err
	}
	sub.Close()
	return sub, nil
}

func TestStreamActivity_SubscriptionClosed(t *testing.T) {
	client := setupClient(t)
	err := StreamActivity(context.Background(), closingSource{client}, Options{}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "board subscription closed")
}

func TestStreamActivity_RedisDown(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	client, err := board.NewClient(&redis.Options{Addr: mr.Addr()}, "down")
	require.NoError(t, err)
	defer client.Close()
	mr.Close()

	err = StreamActivity(context.Background(), client, Options{}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to subscribe to anchor events")
}
