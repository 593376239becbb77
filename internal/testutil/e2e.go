//go:build integration
// +build integration

// Package testutil holds helpers for the integration suite, which runs
// against a real Redis in a container.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dyluth/aura/pkg/board"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// E2EEnvironment is an isolated room on a containerised Redis.
type E2EEnvironment struct {
	T        *testing.T
	Ctx      context.Context
	RedisURL string
	Room     string
	Board    *board.Client
}

// SetupE2EEnvironment starts a redis:7-alpine container and connects a board
// client to a fresh, uniquely named room. Everything is torn down with t.
func SetupE2EEnvironment(t *testing.T) *E2EEnvironment {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}
	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "Failed to start Redis container")
	t.Cleanup(func() {
		if err := redisC.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	})

	host, err := redisC.Host(ctx)
	require.NoError(t, err, "Failed to get container host")
	port, err := redisC.MappedPort(ctx, "6379")
	require.NoError(t, err, "Failed to get container port")

	env := &E2EEnvironment{
		T:        t,
		Ctx:      ctx,
		RedisURL: fmt.Sprintf("redis://%s:%s/0", host, port.Port()),
		Room:     "e2e-" + uuid.NewString()[:8],
	}

	opts, err := redis.ParseURL(env.RedisURL)
	require.NoError(t, err)
	env.Board, err = board.NewClient(opts, env.Room)
	require.NoError(t, err, "Failed to create board client")
	t.Cleanup(func() { env.Board.Close() })

	require.NoError(t, env.Board.Ping(ctx), "Redis is not reachable")
	return env
}

// PutAnchor places a one-cell anchor with the given spec list in domain.
func (env *E2EEnvironment) PutAnchor(id, domain string, entries ...board.AuraSpecEntry) {
	anchor := &board.Anchor{
		ID:        id,
		Name:      id,
		Position:  board.Vector{X: 150, Y: 150},
		Scale:     board.Vector{X: 1, Y: 1},
		Footprint: 1,
	}
	require.NoError(env.T, anchor.SetSpecList(domain, entries))
	require.NoError(env.T, env.Board.PutAnchor(env.Ctx, anchor))
	env.T.Logf("✓ Anchor %s placed with %d %s auras", id, len(entries), domain)
}

// WaitFor polls cond every 50ms until it holds, failing after timeout.
func (env *E2EEnvironment) WaitFor(what string, timeout time.Duration, cond func() bool) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			env.T.Logf("✓ %s", what)
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	require.Fail(env.T, fmt.Sprintf("%s: not reached within %s", what, timeout))
}
