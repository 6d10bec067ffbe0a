package api

import (
	"context"
	"sync"
)

// ChannelCache caches the channel list so the dashboard can read it on
// every frame without hammering the gateway. The live-state engine
// invalidates it whenever a message event lands, since message traffic
// moves last-activity metadata.
type ChannelCache struct {
	client *Client

	mu       sync.Mutex
	channels []Channel
	stale    bool
	loaded   bool
}

// NewChannelCache wraps client with an initially stale cache.
func NewChannelCache(client *Client) *ChannelCache {
	return &ChannelCache{client: client, stale: true}
}

// Invalidate marks the cached list stale. The next Channels call
// refetches.
func (c *ChannelCache) Invalidate() {
	c.mu.Lock()
	c.stale = true
	c.mu.Unlock()
}

// Channels returns the cached list, refetching when stale. A failed
// refetch keeps and returns the previous list if one exists.
func (c *ChannelCache) Channels(ctx context.Context) ([]Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.stale && c.loaded {
		return c.channels, nil
	}

	channels, err := c.client.Channels(ctx)
	if err != nil {
		if c.loaded {
			return c.channels, nil
		}
		return nil, err
	}
	c.channels = channels
	c.loaded = true
	c.stale = false
	return channels, nil
}
