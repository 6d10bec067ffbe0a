// Package api is the REST client for the platform gateway: channel
// list, per-channel history, and the active-work snapshot.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/loopwork/pulse/internal/livestate"
)

// Channel is one communication channel as reported by the gateway. The
// gateway owns and refreshes this; the console only reads it.
type Channel struct {
	ID           string `json:"id"`
	Platform     string `json:"platform"`
	Name         string `json:"name,omitempty"`
	LastActivity int64  `json:"last_activity"` // unix milliseconds
}

// DisplayName returns the channel's name, falling back to its id.
func (c Channel) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}

// Client talks to the gateway's REST API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a client for the gateway at baseURL. token may be
// empty when the gateway is unauthenticated.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// historyMessage is the wire shape of one history entry.
type historyMessage struct {
	ID         string `json:"id"`
	Role       string `json:"role"`
	SenderID   string `json:"sender_id,omitempty"`
	SenderName string `json:"sender_name,omitempty"`
	Content    string `json:"content"`
	CreatedAt  int64  `json:"created_at"` // unix milliseconds
}

// activeChannel is the wire shape of one channel's active-work snapshot.
type activeChannel struct {
	ActiveWorkers []struct {
		ID        string `json:"id"`
		Task      string `json:"task"`
		Status    string `json:"status"`
		StartedAt int64  `json:"started_at"` // unix milliseconds
		ToolCalls int    `json:"tool_calls"`
	} `json:"active_workers"`
	ActiveBranches []struct {
		ID          string `json:"id"`
		Description string `json:"description"`
		StartedAt   int64  `json:"started_at"`
	} `json:"active_branches"`
}

// Channels fetches the channel list.
func (c *Client) Channels(ctx context.Context) ([]Channel, error) {
	var channels []Channel
	if err := c.get(ctx, "/api/channels", &channels); err != nil {
		return nil, fmt.Errorf("channel list: %w", err)
	}
	return channels, nil
}

// ChannelHistory fetches up to limit recent messages for a channel,
// oldest to newest.
func (c *Client) ChannelHistory(ctx context.Context, channelID string, limit int) ([]livestate.ChatMessage, error) {
	path := "/api/channels/" + url.PathEscape(channelID) + "/history?limit=" + strconv.Itoa(limit)
	var wire []historyMessage
	if err := c.get(ctx, path, &wire); err != nil {
		return nil, fmt.Errorf("channel history %s: %w", channelID, err)
	}

	msgs := make([]livestate.ChatMessage, 0, len(wire))
	for _, m := range wire {
		sender := livestate.SenderBot
		name := m.SenderName
		if m.Role == "user" {
			sender = livestate.SenderUser
			if name == "" {
				name = m.SenderID
			}
		}
		msgs = append(msgs, livestate.ChatMessage{
			ID:         m.ID,
			Sender:     sender,
			SenderName: name,
			Text:       m.Content,
			Timestamp:  m.CreatedAt,
		})
	}
	return msgs, nil
}

// ActiveSnapshot fetches the currently in-flight workers and branches,
// keyed by channel id.
func (c *Client) ActiveSnapshot(ctx context.Context) (map[string]livestate.ChannelSnapshot, error) {
	var wire map[string]activeChannel
	if err := c.get(ctx, "/api/active", &wire); err != nil {
		return nil, fmt.Errorf("active snapshot: %w", err)
	}

	snap := make(map[string]livestate.ChannelSnapshot, len(wire))
	for channelID, ac := range wire {
		var cs livestate.ChannelSnapshot
		for _, w := range ac.ActiveWorkers {
			cs.Workers = append(cs.Workers, livestate.ActiveWorker{
				ID:        w.ID,
				Task:      w.Task,
				Status:    w.Status,
				StartedAt: time.UnixMilli(w.StartedAt),
				ToolCalls: w.ToolCalls,
			})
		}
		for _, b := range ac.ActiveBranches {
			cs.Branches = append(cs.Branches, livestate.ActiveBranch{
				ID:          b.ID,
				Description: b.Description,
				StartedAt:   time.UnixMilli(b.StartedAt),
			})
		}
		snap[channelID] = cs
	}
	return snap, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
