// Package notify fans out state-change messages to realtime subscribers.
//
// Delivery is best effort: a subscriber that falls behind loses messages
// rather than slowing the publisher, and a late subscriber catches up by
// reading the current ledger.
package notify

import (
	"context"
	"sync"
	"time"
)

// Message types.
const (
	TypeRecognition      = "recognition"
	TypeUnknownFace      = "unknown_face"
	TypeUnknownReviewed  = "unknown_face:reviewed"
	TypeAttendance       = "attendance:updated"
	TypeSessionStarted   = "session:started"
	TypeSessionEnded     = "session:ended"
	TypeSessionLocked    = "session:locked"
	TypeSessionCancelled = "session:cancelled"
	TypeCameraStatus     = "camera:status"
)

// CameraChannel carries camera heartbeat updates.
const CameraChannel = "cameras"

// SessionChannel is the channel observers of one session subscribe to.
func SessionChannel(sessionID string) string {
	return "session:" + sessionID
}

type Message struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	Payload   any       `json:"payload,omitempty"`
	At        time.Time `json:"at"`
}

type Notifier interface {
	Publish(ctx context.Context, channel string, msg Message) error
}

// Nop discards every message.
type Nop struct{}

func (Nop) Publish(context.Context, string, Message) error { return nil }

const defaultBuffer = 64

// Hub is an in-process Notifier. Subscribers get a buffered channel; a full
// buffer drops the message for that subscriber only.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*Subscription]struct{}), buffer: defaultBuffer}
}

type Subscription struct {
	C <-chan Message

	hub     *Hub
	channel string
	ch      chan Message
	once    sync.Once
}

func (h *Hub) Subscribe(channel string) *Subscription {
	ch := make(chan Message, h.buffer)
	sub := &Subscription{C: ch, hub: h, channel: channel, ch: ch}

	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[channel]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[channel] = set
	}
	set[sub] = struct{}{}
	return sub
}

// Close unsubscribes and closes C. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		defer h.mu.Unlock()
		if set, ok := h.subs[s.channel]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(h.subs, s.channel)
			}
		}
		close(s.ch)
	})
}

func (h *Hub) Publish(ctx context.Context, channel string, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.At.IsZero() {
		msg.At = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[channel] {
		select {
		case sub.ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribers returns the number of live subscriptions on channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[channel])
}
