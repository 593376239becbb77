//go:build integration
// +build integration

package commands

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dyluth/aura/internal/config"
	"github.com/dyluth/aura/internal/printer"
	"github.com/dyluth/aura/internal/testutil"
	"github.com/dyluth/aura/pkg/board"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runningClient struct {
	addr   string
	cancel context.CancelFunc
	done   chan error
}

func startClient(t *testing.T, env *testutil.E2EEnvironment) *runningClient {
	t.Helper()
	cfg, err := config.LoadOrDefault(filepath.Join(t.TempDir(), "aura.yml"), config.Overrides{Room: env.Room, RedisURL: env.RedisURL})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	c := &runningClient{addr: freeAddr(t), cancel: cancel, done: make(chan error, 1)}
	go func() {
		c.done <- runClient(ctx, cfg, c.addr, zerolog.Nop())
	}()
	t.Cleanup(cancel)
	return c
}

func (c *runningClient) stop(t *testing.T) {
	t.Helper()
	c.cancel()
	select {
	case err := <-c.done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("client did not stop")
	}
}

// TestE2E_TwoClientsConverge runs two independent clients against one room
// and checks each renders its own copy of every aura.
func TestE2E_TwoClientsConverge(t *testing.T) {
	env := testutil.SetupE2EEnvironment(t)

	var out, errOut bytes.Buffer
	restore := printer.SetOutput(&out, &errOut)
	defer restore()

	entry := board.NewSpecEntry(board.SimpleStyle{
		FillColor: "#ff0000", FillOpacity: 0.2, StrokeColor: "#ff0000", StrokeOpacity: 1, StrokeWidth: 2,
	}, 10)
	env.PutAnchor("paladin", "aura", entry)

	a := startClient(t, env)
	b := startClient(t, env)

	var idsA, idsB []string
	env.WaitFor("both clients render the aura", 10*time.Second, func() bool {
		la, lb := listArtifacts(t, a.addr), listArtifacts(t, b.addr)
		if len(la) != 1 || len(lb) != 1 {
			return false
		}
		idsA, idsB = []string{la[0].ID}, []string{lb[0].ID}
		return la[0].SpecID == entry.SpecID && lb[0].SpecID == entry.SpecID
	})
	assert.NotEqual(t, idsA[0], idsB[0], "artifacts are local to each client")

	// A board change invalidates every aura on every client.
	cfg := board.DefaultConfig()
	cfg.Metric = board.MetricSquare
	require.NoError(t, env.Board.SetBoardConfig(env.Ctx, cfg))
	env.WaitFor("both clients rebuild", 10*time.Second, func() bool {
		la, lb := listArtifacts(t, a.addr), listArtifacts(t, b.addr)
		return len(la) == 1 && len(lb) == 1 && la[0].ID != idsA[0] && lb[0].ID != idsB[0]
	})

	require.NoError(t, env.Board.DeleteAnchor(env.Ctx, "paladin"))
	env.WaitFor("both clients remove the aura", 10*time.Second, func() bool {
		la, lb := listArtifacts(t, a.addr), listArtifacts(t, b.addr)
		return la != nil && lb != nil && len(la) == 0 && len(lb) == 0
	})

	a.stop(t)
	b.stop(t)
}

// TestE2E_ConcurrentSpecEdits checks optimistic transactions keep every
// concurrent append against real Redis.
func TestE2E_ConcurrentSpecEdits(t *testing.T) {
	env := testutil.SetupE2EEnvironment(t)
	env.PutAnchor("bard", "aura")

	const writers = 8
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		go func() {
			entry := board.NewSpecEntry(board.ParticlesStyle{}, 5)
			errs <- env.Board.UpdateAnchorSpecLists(env.Ctx, "aura", []string{"bard"},
				func(_ string, entries []board.AuraSpecEntry) ([]board.AuraSpecEntry, error) {
					return append(entries, entry), nil
				})
		}()
	}
	for i := 0; i < writers; i++ {
		require.NoError(t, <-errs)
	}

	anchor, err := env.Board.GetAnchor(env.Ctx, "bard")
	require.NoError(t, err)
	entries, err := anchor.SpecList("aura")
	require.NoError(t, err)
	assert.Len(t, entries, writers)
}
