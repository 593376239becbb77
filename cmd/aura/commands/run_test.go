package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/aura/internal/config"
	"github.com/dyluth/aura/internal/feed"
	"github.com/dyluth/aura/internal/printer"
	"github.com/dyluth/aura/pkg/board"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

type listedArtifact struct {
	ID       string `json:"id"`
	AnchorID string `json:"anchor_id"`
	SpecID   string `json:"spec_id"`
	Domain   string `json:"domain"`
	Kind     string `json:"kind"`
}

func listArtifacts(t *testing.T, addr string) []listedArtifact {
	t.Helper()
	resp, err := http.Get("http://" + addr + "/artifacts")
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	var items []listedArtifact
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil
	}
	return items
}

func TestRunClient_ServesReconciledArtifacts(t *testing.T) {
	_, client, url := setupBoard(t)
	ctx := context.Background()

	anchor := &board.Anchor{ID: "cleric", Name: "cleric", Position: board.Vector{X: 150, Y: 150}, Scale: board.Vector{X: 1, Y: 1}, Footprint: 1}
	entry := board.NewSpecEntry(board.GlowStyle{EffectParams: board.EffectParams{Color: "#ffcc00", Opacity: 0.5}}, 10)
	require.NoError(t, anchor.SetSpecList("emanation", []board.AuraSpecEntry{entry}))
	require.NoError(t, client.PutAnchor(ctx, anchor))

	cfg, err := config.LoadOrDefault(filepath.Join(t.TempDir(), "aura.yml"), config.Overrides{Room: "test-room", RedisURL: url})
	require.NoError(t, err)
	cfg.Domains = []string{"aura", "emanation"}

	var out, errOut bytes.Buffer
	restore := printer.SetOutput(&out, &errOut)
	defer restore()

	addr := freeAddr(t)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- runClient(runCtx, cfg, addr, zerolog.Nop())
	}()

	require.Eventually(t, func() bool {
		items := listArtifacts(t, addr)
		return len(items) == 1 && items[0].SpecID == entry.SpecID
	}, 5*time.Second, 20*time.Millisecond)

	items := listArtifacts(t, addr)
	assert.Equal(t, "cleric", items[0].AnchorID)
	assert.Equal(t, "emanation", items[0].Domain)
	assert.Equal(t, "effect", items[0].Kind)

	// Adding an aura in the other domain is picked up from the anchor event.
	require.NoError(t, client.UpdateAnchorSpecLists(ctx, "aura", []string{"cleric"},
		func(_ string, entries []board.AuraSpecEntry) ([]board.AuraSpecEntry, error) {
			return append(entries, board.NewSpecEntry(board.SimpleStyle{
				FillColor: "#ffffff", FillOpacity: 0.2, StrokeColor: "#ffffff", StrokeOpacity: 1, StrokeWidth: 2,
			}, 5)), nil
		}))
	require.Eventually(t, func() bool {
		return len(listArtifacts(t, addr)) == 2
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, client.DeleteAnchor(ctx, "cleric"))
	require.Eventually(t, func() bool {
		items := listArtifacts(t, addr)
		return items != nil && len(items) == 0
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("client did not stop")
	}
	assert.Contains(t, out.String(), "Following room 'test-room'")
}

// writeAnchorQuietly stores an anchor without publishing a change event, so
// only a resync or an on-demand pass can notice it.
func writeAnchorQuietly(t *testing.T, mr *miniredis.Miniredis, a *board.Anchor) {
	t.Helper()
	hash, err := board.AnchorToHash(a)
	require.NoError(t, err)
	fields := make([]string, 0, 2*len(hash))
	for k, v := range hash {
		fields = append(fields, k, fmt.Sprint(v))
	}
	mr.HSet(board.AnchorKey("test-room", a.ID), fields...)
	_, err = mr.SAdd(board.AnchorSetKey("test-room"), a.ID)
	require.NoError(t, err)
}

func TestRunClient_OnDemandReconcileAndIdentity(t *testing.T) {
	mr, client, url := setupBoard(t)
	ctx := context.Background()

	glow := board.NewSpecEntry(board.GlowStyle{EffectParams: board.EffectParams{Color: "#ffcc00", Opacity: 0.5}}, 10)
	cleric := &board.Anchor{ID: "cleric", Name: "cleric", Position: board.Vector{X: 150, Y: 150}, Scale: board.Vector{X: 1, Y: 1}, Footprint: 1}
	require.NoError(t, cleric.SetSpecList("aura", []board.AuraSpecEntry{glow}))
	require.NoError(t, client.PutAnchor(ctx, cleric))

	cfg, err := config.LoadOrDefault(filepath.Join(t.TempDir(), "aura.yml"), config.Overrides{Room: "test-room", RedisURL: url})
	require.NoError(t, err)

	var out, errOut bytes.Buffer
	restore := printer.SetOutput(&out, &errOut)
	defer restore()

	addr := freeAddr(t)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- runClient(runCtx, cfg, addr, zerolog.Nop())
	}()

	require.Eventually(t, func() bool {
		return len(listArtifacts(t, addr)) == 1
	}, 5*time.Second, 20*time.Millisecond)

	resp, err := http.Get("http://" + addr + "/identity/cleric/" + glow.SpecID)
	require.NoError(t, err)
	var identity []feed.IdentityEntry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&identity))
	resp.Body.Close()
	require.Len(t, identity, 1)
	assert.Equal(t, listArtifacts(t, addr)[0].ID, identity[0].ArtifactID)

	// No event is published for this anchor, so only a requested pass
	// renders it.
	fade := board.NewSpecEntry(board.FadeStyle{EffectParams: board.EffectParams{Color: "#3366ff", Opacity: 0.4}}, 5)
	rogue := &board.Anchor{ID: "rogue", Name: "rogue", Position: board.Vector{X: 450, Y: 150}, Scale: board.Vector{X: 1, Y: 1}, Footprint: 1}
	require.NoError(t, rogue.SetSpecList("aura", []board.AuraSpecEntry{fade}))
	writeAnchorQuietly(t, mr, rogue)
	assert.Never(t, func() bool {
		return len(listArtifacts(t, addr)) != 1
	}, 200*time.Millisecond, 20*time.Millisecond)

	resp, err = http.Post("http://"+addr+"/reconcile", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		return len(listArtifacts(t, addr)) == 2
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("client did not stop")
	}
}

func TestRunClient_FeedAddressInUse(t *testing.T) {
	_, _, url := setupBoard(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg, err := config.LoadOrDefault(filepath.Join(t.TempDir(), "aura.yml"), config.Overrides{Room: "test-room", RedisURL: url})
	require.NoError(t, err)

	var out, errOut bytes.Buffer
	restore := printer.SetOutput(&out, &errOut)
	defer restore()

	err = runClient(context.Background(), cfg, ln.Addr().String(), zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feed failed to start")
	assert.Contains(t, errOut.String(), "--no-feed")
}
