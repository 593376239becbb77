package board

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"
)

// maxTxRetries bounds optimistic-transaction retries when concurrent writers
// keep touching the same anchors.
const maxTxRetries = 16

// Client provides room-scoped Redis operations on the shared board document.
// All keys and channels are automatically namespaced with the room name.
// The client is safe for concurrent use.
type Client struct {
	rdb  *redis.Client
	room string
}

// NewClient creates a new board client for the specified room.
// Returns an error if room is empty.
func NewClient(redisOpts *redis.Options, room string) (*Client, error) {
	if room == "" {
		return nil, fmt.Errorf("room name cannot be empty")
	}

	return &Client{
		rdb:  redis.NewClient(redisOpts),
		room: room,
	}, nil
}

// Room returns the room this client is scoped to.
func (c *Client) Room() string {
	return c.room
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// PutAnchor creates or replaces an anchor and publishes the new anchor set.
func (c *Client) PutAnchor(ctx context.Context, a *Anchor) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("invalid anchor: %w", err)
	}

	hash, err := AnchorToHash(a)
	if err != nil {
		return fmt.Errorf("failed to serialize anchor: %w", err)
	}

	key := AnchorKey(c.room, a.ID)
	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, hash)
		pipe.SAdd(ctx, AnchorSetKey(c.room), a.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write anchor to Redis: %w", err)
	}

	return c.publishAnchors(ctx)
}

// GetAnchor retrieves an anchor by ID.
// Returns (nil, redis.Nil) if the anchor doesn't exist.
func (c *Client) GetAnchor(ctx context.Context, anchorID string) (*Anchor, error) {
	hashData, err := c.rdb.HGetAll(ctx, AnchorKey(c.room, anchorID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read anchor from Redis: %w", err)
	}
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	anchor, err := HashToAnchor(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize anchor %s: %w", anchorID, err)
	}
	return anchor, nil
}

// ListAnchors returns every anchor in the room, ordered by ID.
// Anchors deleted between the set read and the hash read are skipped.
func (c *Client) ListAnchors(ctx context.Context) ([]*Anchor, error) {
	ids, err := c.rdb.SMembers(ctx, AnchorSetKey(c.room)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list anchor IDs: %w", err)
	}
	sort.Strings(ids)

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, AnchorKey(c.room, id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read anchors: %w", err)
	}

	anchors := make([]*Anchor, 0, len(ids))
	for i, cmd := range cmds {
		hashData := cmd.Val()
		if len(hashData) == 0 {
			continue
		}
		anchor, err := HashToAnchor(hashData)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize anchor %s: %w", ids[i], err)
		}
		anchors = append(anchors, anchor)
	}
	return anchors, nil
}

// DeleteAnchor removes an anchor and publishes the new anchor set.
// Deleting a missing anchor is not an error.
func (c *Client) DeleteAnchor(ctx context.Context, anchorID string) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, AnchorKey(c.room, anchorID))
		pipe.SRem(ctx, AnchorSetKey(c.room), anchorID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete anchor %s: %w", anchorID, err)
	}
	return c.publishAnchors(ctx)
}

// SpecListMutator receives an anchor's current spec list for a domain and
// returns the replacement.
type SpecListMutator func(anchorID string, entries []AuraSpecEntry) ([]AuraSpecEntry, error)

// UpdateAnchorSpecLists applies mutate to the spec list of each anchor in ids
// inside one optimistic transaction. If another writer touches any of the
// anchors before commit, the read-modify-write is retried from fresh state.
// Returns redis.Nil if any anchor does not exist.
func (c *Client) UpdateAnchorSpecLists(ctx context.Context, domain string, ids []string, mutate SpecListMutator) error {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = AnchorKey(c.room, id)
	}
	listKey := SpecListKey(domain)

	txf := func(tx *redis.Tx) error {
		updates := make(map[string]string, len(ids))
		for i, id := range ids {
			hashData, err := tx.HGetAll(ctx, keys[i]).Result()
			if err != nil {
				return fmt.Errorf("failed to read anchor %s: %w", id, err)
			}
			if len(hashData) == 0 {
				return fmt.Errorf("anchor %s: %w", id, redis.Nil)
			}
			anchor, err := HashToAnchor(hashData)
			if err != nil {
				return fmt.Errorf("failed to deserialize anchor %s: %w", id, err)
			}
			current, err := DecodeSpecList(anchor.Metadata[listKey])
			if err != nil {
				return fmt.Errorf("anchor %s: %w", id, err)
			}
			next, err := mutate(id, current)
			if err != nil {
				return err
			}
			if err := anchor.SetSpecList(domain, next); err != nil {
				return fmt.Errorf("anchor %s: %w", id, err)
			}
			metadataJSON, err := json.Marshal(anchor.Metadata)
			if err != nil {
				return fmt.Errorf("failed to marshal metadata: %w", err)
			}
			updates[keys[i]] = string(metadataJSON)
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for key, metadata := range updates {
				pipe.HSet(ctx, key, "metadata", metadata)
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := c.rdb.Watch(ctx, txf, keys...)
		if err == nil {
			return c.publishAnchors(ctx)
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("failed to update spec lists after %d attempts: concurrent writers", maxTxRetries)
}

// GetBoardConfig returns the room's board configuration, or DefaultConfig if
// none has been stored.
func (c *Client) GetBoardConfig(ctx context.Context) (Config, error) {
	hashData, err := c.rdb.HGetAll(ctx, BoardConfigKey(c.room)).Result()
	if err != nil {
		return Config{}, fmt.Errorf("failed to read board config: %w", err)
	}
	cfg, err := HashToConfig(hashData)
	if err != nil {
		return Config{}, fmt.Errorf("failed to deserialize board config: %w", err)
	}
	return cfg, nil
}

// SetBoardConfig validates and stores the board configuration, then publishes
// it on the board events channel.
func (c *Client) SetBoardConfig(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := c.rdb.HSet(ctx, BoardConfigKey(c.room), ConfigToHash(cfg)).Err(); err != nil {
		return fmt.Errorf("failed to write board config: %w", err)
	}

	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal board config for event: %w", err)
	}
	if err := c.rdb.Publish(ctx, BoardEventsChannel(c.room), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish board event: %w", err)
	}
	return nil
}

// publishAnchors publishes the full anchor set. Notifications are
// level-triggered: consumers must treat the payload as the new state, never
// as a diff.
func (c *Client) publishAnchors(ctx context.Context) error {
	anchors, err := c.ListAnchors(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(anchors)
	if err != nil {
		return fmt.Errorf("failed to marshal anchors for event: %w", err)
	}
	if err := c.rdb.Publish(ctx, AnchorEventsChannel(c.room), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish anchor event: %w", err)
	}
	return nil
}

// Subscription is an active Pub/Sub subscription delivering decoded events.
// Caller must call Close() when done.
type Subscription[T any] struct {
	events <-chan T
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of decoded events. It is closed when the
// subscription is closed or its context is cancelled.
func (s *Subscription[T]) Events() <-chan T {
	return s.events
}

// Errors returns the channel of non-fatal decode errors.
func (s *Subscription[T]) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Safe to call multiple times.
func (s *Subscription[T]) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeAnchorEvents subscribes to anchor set changes for this room.
// Each event is the complete anchor set at the time of publication.
func (c *Client) SubscribeAnchorEvents(ctx context.Context) (*Subscription[[]*Anchor], error) {
	return subscribe[[]*Anchor](ctx, c.rdb, AnchorEventsChannel(c.room))
}

// SubscribeBoardEvents subscribes to board configuration changes for this room.
func (c *Client) SubscribeBoardEvents(ctx context.Context) (*Subscription[Config], error) {
	return subscribe[Config](ctx, c.rdb, BoardEventsChannel(c.room))
}

// subscribe waits for the subscription to be confirmed before returning so
// that no publication after the call is missed.
func subscribe[T any](ctx context.Context, rdb *redis.Client, channel string) (*Subscription[T], error) {
	pubsub := rdb.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	eventsChan := make(chan T, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var event T
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal event on %s: %w", channel, err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- event:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription[T]{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// IsNotFound returns true if the error is a Redis "key not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
