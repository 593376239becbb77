package artifact

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shapeArtifact(id string) *Artifact {
	return &Artifact{ID: id, AnchorID: "anchor", SpecID: "spec-" + id, Kind: KindShape, Shape: &Shape{}}
}

func ids(items []*Artifact) []string {
	out := make([]string, len(items))
	for i, a := range items {
		out[i] = a.ID
	}
	return out
}

func TestStore_AddListDelete(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.Add(ctx, []*Artifact{shapeArtifact("b"), shapeArtifact("a")}))
	require.NoError(t, s.Add(ctx, []*Artifact{shapeArtifact("c")}))

	items, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c"}, ids(items), "insertion order")
	assert.Equal(t, 3, s.Len())

	require.NoError(t, s.Delete(ctx, []string{"a", "missing"}))
	items, err = s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, ids(items))

	require.NoError(t, s.Clear(ctx))
	assert.Equal(t, 0, s.Len())
}

func TestStore_AddRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.Add(ctx, []*Artifact{shapeArtifact("a")}))

	err := s.Add(ctx, []*Artifact{shapeArtifact("b"), shapeArtifact("a")})
	assert.ErrorIs(t, err, ErrDuplicateID)
	_, ok := s.Get("b")
	assert.False(t, ok, "a failed batch adds nothing")

	err = s.Add(ctx, []*Artifact{shapeArtifact("x"), shapeArtifact("x")})
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.Equal(t, 1, s.Len())

	assert.Error(t, s.Add(ctx, []*Artifact{{}}))
}

func TestStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	orig := shapeArtifact("a")
	require.NoError(t, s.Add(ctx, []*Artifact{orig}))

	orig.Cosmetic.Color = "#ffffff"
	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Empty(t, got.Cosmetic.Color)

	got.Cosmetic.Color = "#000000"
	again, _ := s.Get("a")
	assert.Empty(t, again.Cosmetic.Color)
}

func TestStore_Update(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.Add(ctx, []*Artifact{shapeArtifact("a"), shapeArtifact("b")}))

	err := s.Update(ctx, []string{"a", "gone"}, func(a *Artifact) error {
		a.Cosmetic.StrokeWidth = 3
		a.ID = "renamed"
		return nil
	})
	require.NoError(t, err)

	a, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, 3.0, a.Cosmetic.StrokeWidth)
	_, ok = s.Get("renamed")
	assert.False(t, ok)

	boom := errors.New("boom")
	err = s.Update(ctx, []string{"a", "b"}, func(a *Artifact) error {
		a.Cosmetic.StrokeWidth = 7
		if a.ID == "b" {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	a, _ = s.Get("a")
	assert.Equal(t, 3.0, a.Cosmetic.StrokeWidth, "failed update changes nothing")
}

func TestStore_Subscribe(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	events, cancel := s.Subscribe()
	defer cancel()

	require.NoError(t, s.Add(ctx, []*Artifact{shapeArtifact("a")}))
	require.NoError(t, s.Add(ctx, []*Artifact{shapeArtifact("b")}))

	// Two changes without a read coalesce into the latest full set.
	select {
	case set := <-events:
		assert.Equal(t, []string{"a", "b"}, ids(set))
	case <-time.After(time.Second):
		t.Fatal("no notification")
	}

	require.NoError(t, s.Delete(ctx, []string{"a"}))
	select {
	case set := <-events:
		assert.Equal(t, []string{"b"}, ids(set))
	case <-time.After(time.Second):
		t.Fatal("no notification")
	}

	// No-op changes do not notify.
	require.NoError(t, s.Delete(ctx, []string{"a"}))
	select {
	case set := <-events:
		t.Fatalf("unexpected notification: %v", ids(set))
	default:
	}

	cancel()
	_, open := <-events
	assert.False(t, open)
	require.NoError(t, s.Clear(ctx))
}

func TestStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewStore()

	assert.ErrorIs(t, s.Add(ctx, []*Artifact{shapeArtifact("a")}), context.Canceled)
	_, err := s.List(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
