// Package board provides type-safe Go definitions and the Redis-backed shared
// document for aura rendering.
//
// # Overview
//
// The board is the authoritative, multi-writer state every client in a room
// sees: the anchors (tokens) on the board, the aura spec list attached to each
// anchor's metadata, and the global board configuration (distance metric,
// grid topology, quantization and unit sizes). Clients render auras locally
// from this document; the rendered objects themselves never live here.
//
// # Core Concepts
//
// Anchors are tokens with a position, a visual scale and a footprint measured
// in grid cells. Any number of named entries can be attached to an anchor's
// metadata; aura spec lists live under SpecListKey(domain).
//
// AuraSpecEntry is one aura: a stable spec ID, a Style and a radius in board
// distance units. Style is a closed sum type dispatched through StyleVisitor.
//
// Config is the room-wide board configuration. Changing it invalidates every
// rendered aura at once.
//
// # Redis Schema
//
// Anchor IDs: aura:{room}:anchors (set)
// Anchors: aura:{room}:anchor:{anchor_id} (hash; metadata is a JSON field)
// Board configuration: aura:{room}:board (hash)
//
// Pub/Sub channels carry the full new state, never a diff:
//
// Anchor events: aura:{room}:anchor_events
// Board events: aura:{room}:board_events
//
// # Usage Example
//
//	client, err := board.NewClient(&redis.Options{Addr: "localhost:6379"}, "table-1")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	entry := board.NewSpecEntry(board.GlowStyle{EffectParams: board.EffectParams{
//		Color:   "#ffcc00",
//		Opacity: 0.6,
//	}}, 10)
//
//	err = client.UpdateAnchorSpecLists(ctx, "aura", []string{"goblin-1"},
//		func(_ string, entries []board.AuraSpecEntry) ([]board.AuraSpecEntry, error) {
//			return append(entries, entry), nil
//		})
package board
