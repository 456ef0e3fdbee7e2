package notify

import (
	"context"
	"strings"
	"sync"
	"time"

	"loanforge.org/internal/obs"
)

// Notification is a best-effort message to a user.
type Notification struct {
	UserID string            `json:"user_id"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
}

// Channel is a delivery capability selected by its type tag. Adding a
// delivery mechanism means registering another implementation, not touching
// the dispatcher.
type Channel interface {
	Type() string
	Send(ctx context.Context, n Notification) error
}

// Dispatcher fans a notification out to every registered channel.
// Delivery is fire-and-forget: failures are logged and never propagated,
// so a notification can never fail a workflow transition.
type Dispatcher struct {
	mu       sync.RWMutex
	channels []Channel
}

// NewDispatcher creates a dispatcher with no channels.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Register adds a channel. Nil channels and duplicate type tags are ignored.
func (d *Dispatcher) Register(ch Channel) {
	if ch == nil || strings.TrimSpace(ch.Type()) == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, existing := range d.channels {
		if existing.Type() == ch.Type() {
			return
		}
	}
	d.channels = append(d.channels, ch)
}

// Notify delivers to all channels. Each channel gets its own bounded
// timeout detached from the caller's context so a request finishing cannot
// cancel delivery mid-flight.
func (d *Dispatcher) Notify(ctx context.Context, userID, title, body string, data map[string]string) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return
	}
	n := Notification{UserID: userID, Title: title, Body: body, Data: data}

	d.mu.RLock()
	channels := make([]Channel, len(d.channels))
	copy(channels, d.channels)
	d.mu.RUnlock()

	for _, ch := range channels {
		go func(ch Channel) {
			sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := ch.Send(sendCtx, n); err != nil {
				obs.LogRequest(map[string]any{
					"ts":      time.Now().UTC().Format(time.RFC3339Nano),
					"level":   "warn",
					"msg":     "notification delivery failed",
					"channel": ch.Type(),
					"user_id": n.UserID,
					"error":   err.Error(),
				})
			}
		}(ch)
	}
}
