package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"therapist-bot-be/internal/metrics"
	"therapist-bot-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const clusterChannel = "cluster_events"

// clusterEnvelope is what instances exchange over redis. Origin lets an
// instance skip its own publications.
type clusterEnvelope struct {
	Origin          string          `json:"origin"`
	TargetSessionID string          `json:"target_session_id"`
	Message         json.RawMessage `json:"message"`
}

type Hub struct {
	// Registered clients: SessionID -> set of clients (multi-tab).
	// Clients that have not sent "init" yet live under "".
	clients map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	// Redis connection for cross-instance communication, nil on a single node.
	rdb    *redis.Client
	nodeID string

	// Called once the last local client of a session disconnects.
	onEmpty []func(sessionID string)

	metrics *metrics.Metrics
	logger  logger.ILogger
}

func NewHub(rdb *redis.Client, m *metrics.Metrics, log logger.ILogger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		rdb:        rdb,
		nodeID:     uuid.NewString(),
		metrics:    m,
		logger:     log,
	}
}

func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.add(client, client.SessionID())
			h.mu.Unlock()
			h.metrics.WebsocketClients.Inc()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"session_id": client.SessionID()})

		case client := <-h.unregister:
			sessionID := client.SessionID()
			h.mu.Lock()
			removed := h.remove(client, sessionID)
			empty := removed && sessionID != "" && len(h.clients[sessionID]) == 0
			hooks := h.onEmpty
			h.mu.Unlock()
			if removed {
				client.close()
				h.metrics.WebsocketClients.Dec()
				h.logger.Info("Hub", "Client unregistered", map[string]interface{}{"session_id": sessionID})
			}
			if empty {
				for _, fn := range hooks {
					go fn(sessionID)
				}
			}
		}
	}
}

func (h *Hub) add(c *Client, sessionID string) {
	set, ok := h.clients[sessionID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[sessionID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) remove(c *Client, sessionID string) bool {
	set, ok := h.clients[sessionID]
	if !ok {
		return false
	}
	if _, ok := set[c]; !ok {
		return false
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, sessionID)
	}
	return true
}

// OnSessionEmpty registers fn to run when the last local client bound to a
// session disconnects. Rebinding a client to another session does not count.
func (h *Hub) OnSessionEmpty(fn func(sessionID string)) {
	h.mu.Lock()
	h.onEmpty = append(h.onEmpty, fn)
	h.mu.Unlock()
}

// Bind moves a connected client under sessionID.
func (h *Hub) Bind(c *Client, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	old := c.SessionID()
	if !h.remove(c, old) {
		// Not registered (yet or anymore); just record the id.
		c.setSessionID(sessionID)
		return
	}
	c.setSessionID(sessionID)
	h.add(c, sessionID)
}

// SessionClients reports how many local clients are bound to sessionID.
func (h *Hub) SessionClients(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

// SendToSession delivers data to every client bound to sessionID, here and,
// through redis, on the other instances.
func (h *Hub) SendToSession(sessionID string, data []byte) {
	h.deliverLocal(sessionID, data)

	if h.rdb != nil {
		payload, _ := json.Marshal(clusterEnvelope{
			Origin:          h.nodeID,
			TargetSessionID: sessionID,
			Message:         data,
		})
		if err := h.rdb.Publish(context.Background(), clusterChannel, payload).Err(); err != nil {
			h.logger.Warn("Hub", "Redis publish failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

// EndSession disconnects every local client still bound to sessionID.
func (h *Hub) EndSession(sessionID string) {
	h.mu.RLock()
	var targets []*Client
	for c := range h.clients[sessionID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		go func(c *Client) { h.unregister <- c }(c)
	}
}

func (h *Hub) deliverLocal(sessionID string, data []byte) {
	if sessionID == "" {
		return
	}

	h.mu.RLock()
	var slow []*Client
	for c := range h.clients[sessionID] {
		if !c.trySend(data) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("Hub", "Client Send buffer full, dropping client", map[string]interface{}{"session_id": sessionID})
		go func(c *Client) { h.unregister <- c }(c)
	}
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		env, ok := h.decodeEnvelope([]byte(msg.Payload))
		if !ok {
			continue
		}
		h.deliverLocal(env.TargetSessionID, env.Message)
	}
}

// decodeEnvelope drops malformed payloads and this node's own publications.
func (h *Hub) decodeEnvelope(raw []byte) (clusterEnvelope, bool) {
	var env clusterEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		h.logger.Warn("Hub", "Redis msg parse error", map[string]interface{}{"error": err.Error()})
		return env, false
	}
	if env.Origin == h.nodeID {
		return env, false
	}
	return env, true
}
