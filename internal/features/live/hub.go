package live

import (
	"sync"

	"go-campaign/internal/metrics"

	"go.uber.org/zap"
)

const sendBuffer = 32

// Topic is the channel watchers of a campaign join.
func Topic(campaignID string) string {
	return "campaign_" + campaignID
}

// Conn is the write side of a watcher connection.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
}

// Client is one connected watcher. Payloads queue on send until Serve writes them.
type Client struct {
	send   chan []byte
	topics map[string]struct{}
	closed bool
}

// Hub fans payloads out to the clients joined to a topic.
type Hub struct {
	mu      sync.RWMutex
	topics  map[string]map[*Client]struct{}
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewHub(m *metrics.Metrics, logger *zap.Logger) *Hub {
	return &Hub{
		topics:  make(map[string]map[*Client]struct{}),
		metrics: m,
		logger:  logger.Named("live"),
	}
}

// Register adds a client. Nothing is written until the caller runs Serve.
func (h *Hub) Register() *Client {
	c := &Client{
		send:   make(chan []byte, sendBuffer),
		topics: make(map[string]struct{}),
	}
	h.metrics.AddLiveWatchers(1)
	return c
}

// Serve writes queued payloads to conn until stop is closed, the client is
// unregistered or a write fails. conn is never used after Serve returns.
func (c *Client) Serve(conn Conn, messageType int, stop <-chan struct{}) error {
	for {
		// stop wins over a full queue
		select {
		case <-stop:
			return nil
		default:
		}

		select {
		case <-stop:
			return nil
		case msg, ok := <-c.send:
			if !ok {
				return nil
			}
			if err := conn.WriteMessage(messageType, msg); err != nil {
				return err
			}
		}
	}
}

// Unregister drops the client from every topic. Later sends to it are refused.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return
	}
	for topic := range c.topics {
		h.leaveLocked(c, topic)
	}
	c.closed = true
	close(c.send)
	h.metrics.AddLiveWatchers(-1)
}

func (h *Hub) Join(c *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return
	}
	members, ok := h.topics[topic]
	if !ok {
		members = make(map[*Client]struct{})
		h.topics[topic] = members
	}
	members[c] = struct{}{}
	c.topics[topic] = struct{}{}
}

func (h *Hub) Leave(c *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, topic)
}

func (h *Hub) leaveLocked(c *Client, topic string) {
	delete(c.topics, topic)
	members, ok := h.topics[topic]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.topics, topic)
	}
}

// Send queues payload for a single client, dropping it when the client is not keeping up.
func (h *Hub) Send(c *Client, payload []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.enqueueLocked(c, payload)
}

func (h *Hub) enqueueLocked(c *Client, payload []byte) bool {
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// PublishToTopic delivers payload at most once to every current member of topic.
// It returns how many clients accepted it.
func (h *Hub) PublishToTopic(topic string, payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for c := range h.topics[topic] {
		if h.enqueueLocked(c, payload) {
			delivered++
			continue
		}
		h.logger.Debug("dropped update for slow watcher", zap.String("topic", topic))
	}
	return delivered
}

// Watchers returns the number of clients joined to topic.
func (h *Hub) Watchers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
