// Package stream maintains the websocket connection to the gateway's
// event feed and hands decoded events to the consumer in arrival order.
// Reconnection with backoff lives here; nothing downstream sees it, and
// events missed during a gap are not replayed.
package stream

import (
	"context"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/loopwork/pulse/internal/event"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Client consumes the gateway event stream.
type Client struct {
	url    string
	token  string
	logger *log.Logger

	events   chan event.Event
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a stream client for the gateway at baseURL (http or https;
// the websocket scheme is derived). token may be empty.
func New(baseURL, token string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		url:    EndpointURL(baseURL),
		token:  token,
		logger: logger,
		events: make(chan event.Event, 64),
		done:   make(chan struct{}),
	}
}

// EndpointURL converts an http(s) gateway base URL into the websocket
// event endpoint.
func EndpointURL(baseURL string) string {
	u := baseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return strings.TrimSuffix(u, "/") + "/api/events"
}

// Events returns the decoded event feed. The channel is closed when the
// client stops.
func (c *Client) Events() <-chan event.Event {
	return c.events
}

// Start connects and begins delivering events, reconnecting with capped
// backoff until the context is cancelled or Stop is called.
func (c *Client) Start(ctx context.Context) {
	go c.run(ctx)
}

// Stop shuts the stream down.
func (c *Client) Stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

func (c *Client) run(ctx context.Context) {
	defer close(c.events)

	backoff := initialBackoff
	for {
		conn, err := c.dial(ctx)
		if err != nil {
			c.logger.Printf("stream: connect failed: %v (retrying in %s)", err, backoff)
			if !c.sleep(ctx, backoff) {
				return
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		backoff = initialBackoff
		if !c.readLoop(ctx, conn) {
			conn.Close()
			return
		}
		conn.Close()
		c.logger.Printf("stream: connection lost, reconnecting")
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, header)
	return conn, err
}

// readLoop delivers frames until the connection breaks. Returns false
// when the client is shutting down and should not reconnect.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) bool {
	frames := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- data:
			case <-c.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-c.done:
			return false
		case <-readErr:
			return true
		case data := <-frames:
			ev, err := event.Decode(data)
			if err != nil {
				// Bad frame: skip it, the stream itself stays up.
				c.logger.Printf("stream: dropping frame: %v", err)
				continue
			}
			select {
			case c.events <- ev:
			case <-c.done:
				return false
			case <-ctx.Done():
				return false
			}
		}
	}
}

func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-c.done:
		return false
	case <-ctx.Done():
		return false
	}
}
