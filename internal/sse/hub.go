package sse

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quizforge/quizforge-backend/internal/platform/logger"
)

type Event string

const (
	EventJobCreated  Event = "JobCreated"
	EventJobProgress Event = "JobProgress"
	EventJobChanged  Event = "JobChanged"
)

type Message struct {
	Channel string `json:"channel"`
	Event   Event  `json:"event"`
	Data    any    `json:"data,omitempty"`
}

type Client struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Outbound chan Message
	done     chan struct{}
}

// Hub fans job events out to connected operator clients. Channels are user
// IDs; the redis forwarder feeds Broadcast so every instance sees events
// published anywhere.
type Hub struct {
	mu            sync.RWMutex
	log           *logger.Logger
	subscriptions map[string]map[*Client]bool
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:           log.With("component", "SSEHub"),
		subscriptions: make(map[string]map[*Client]bool),
	}
}

func (h *Hub) NewClient(userID uuid.UUID) *Client {
	return &Client{
		ID:       uuid.New(),
		UserID:   userID,
		Outbound: make(chan Message, 16),
		done:     make(chan struct{}),
	}
}

func (h *Hub) Subscribe(client *Client, channel string) {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, exists := h.subscriptions[channel]
	if !exists {
		clients = make(map[*Client]bool)
		h.subscriptions[channel] = clients
	}
	clients[client] = true
	h.log.Debug("SSE client subscribed", "client_id", client.ID, "channel", channel)
}

func (h *Hub) Remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for channel, clients := range h.subscriptions {
		if clients[client] {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.subscriptions, channel)
			}
		}
	}
	select {
	case <-client.done:
	default:
		close(client.done)
	}
}

func (h *Hub) Broadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.subscriptions[msg.Channel] {
		select {
		case client.Outbound <- msg:
		default:
			h.log.Warn("SSE client slow, dropping message", "client_id", client.ID, "channel", msg.Channel)
		}
	}
}

// Serve streams the client's outbound queue as server-sent events until the
// request context or the client is closed.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, client *Client, marshal func(Message) []byte) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	heartbeat := time.NewTicker(25 * time.Second)
	defer heartbeat.Stop()
	defer h.Remove(client)

	for {
		select {
		case <-r.Context().Done():
			return
		case <-client.done:
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case msg := <-client.Outbound:
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, marshal(msg))
			flusher.Flush()
		}
	}
}
