// Package events publishes service notifications on Redis pub/sub.
// Publishing is best effort: callers log failures and carry on.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Channel names.
const (
	JobStateChanged = "EVENT_JOB_STATE_CHANGED"
	JobsIngested    = "EVENT_JOBS_INGESTED"
)

// StateChanged is published after a history entry is appended.
type StateChanged struct {
	Type      string    `json:"type"`
	JobID     string    `json:"jobId"`
	UserID    string    `json:"userId,omitempty"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	NotesOnly bool      `json:"notesOnly,omitempty"`
	At        time.Time `json:"at"`
}

// Ingested is published after a discovery source run.
type Ingested struct {
	Type      string `json:"type"`
	Source    string `json:"source"`
	Region    string `json:"region"`
	Inserted  int    `json:"inserted"`
	Updated   int    `json:"updated"`
	Unchanged int    `json:"unchanged"`
	Malformed int    `json:"malformed"`
}

// Publisher sends one JSON payload to a channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload any) error
}

// Redis publishes through a go-redis client.
type Redis struct {
	rdb *redis.Client
}

// NewRedis wraps rdb.
func NewRedis(rdb *redis.Client) *Redis { return &Redis{rdb: rdb} }

// Publish implements Publisher.
func (p *Redis) Publish(ctx context.Context, channel string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", channel, err)
	}
	if err := p.rdb.Publish(ctx, channel, b).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

// Nop drops every event. Used when REDIS_URL is not configured.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, string, any) error { return nil }
