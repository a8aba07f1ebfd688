// Package realtime fans events out to live connections grouped into channels.
//
// Delivery is at-most-once and fire-and-forget: an event published to a channel
// with no subscribers is dropped, and a subscriber whose buffer is full misses it.
// Nothing is persisted or replayed, and no ordering is promised across subscribers.
package realtime

import (
	"encoding/json"
	"sync"

	"github.com/vignan/diaries/utils"
)

// Event names.
const (
	EventJoinPost   = "join_post"
	EventLeavePost  = "leave_post"
	EventCommentNew = "comment:new"
)

// Broadcaster publishes events to the subscribers of a channel.
// It returns how many subscribers the event was handed to.
type Broadcaster interface {
	Publish(channel, event string, payload interface{}) int
}

// Message is the frame exchanged with clients.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// PostChannel names the channel of one post.
func PostChannel(postID string) string {
	return "post:" + postID
}

// Subscriber is one live connection's outbound queue.
type Subscriber struct {
	send chan []byte
	done chan struct{}
	once sync.Once
}

// NewSubscriber returns a subscriber buffering up to buffer frames.
func NewSubscriber(buffer int) *Subscriber {
	return &Subscriber{
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

// Messages yields the frames queued for this subscriber.
func (s *Subscriber) Messages() <-chan []byte { return s.send }

// Done is closed once the subscriber is removed from the hub.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

func (s *Subscriber) close() {
	s.once.Do(func() { close(s.done) })
}

// Hub tracks channel membership.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*Subscriber]struct{}
	closed   bool
}

var _ Broadcaster = (*Hub)(nil)

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{channels: make(map[string]map[*Subscriber]struct{})}
}

// Join adds s to channel. Joining twice is a no-op.
func (h *Hub) Join(channel string, s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	members, ok := h.channels[channel]
	if !ok {
		members = make(map[*Subscriber]struct{})
		h.channels[channel] = members
	}
	members[s] = struct{}{}
}

// Leave removes s from channel.
func (h *Hub) Leave(channel string, s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(channel, s)
}

func (h *Hub) leaveLocked(channel string, s *Subscriber) {
	members, ok := h.channels[channel]
	if !ok {
		return
	}
	delete(members, s)
	if len(members) == 0 {
		delete(h.channels, channel)
	}
}

// Remove drops s from every channel and closes it.
func (h *Hub) Remove(s *Subscriber) {
	h.mu.Lock()
	for channel := range h.channels {
		h.leaveLocked(channel, s)
	}
	h.mu.Unlock()
	s.close()
}

// Subscribers returns the member count of channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// Publish hands the event to every subscriber of channel without blocking.
func (h *Hub) Publish(channel, event string, payload interface{}) int {
	data, err := json.Marshal(payload)
	if err != nil {
		utils.Sugar.Warnf("realtime: drop %s on %s, payload not encodable: %v", event, channel, err)
		return 0
	}
	frame, err := json.Marshal(Message{Event: event, Data: data})
	if err != nil {
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for s := range h.channels[channel] {
		select {
		case s.send <- frame:
			delivered++
		default:
			utils.Sugar.Debugf("realtime: subscriber buffer full, dropped %s on %s", event, channel)
		}
	}
	return delivered
}

// Close removes every subscriber. Later joins are ignored.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := map[*Subscriber]struct{}{}
	for _, members := range h.channels {
		for s := range members {
			subs[s] = struct{}{}
		}
	}
	h.channels = make(map[string]map[*Subscriber]struct{})
	h.closed = true
	h.mu.Unlock()

	for s := range subs {
		s.close()
	}
}
