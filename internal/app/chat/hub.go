/*
Package chat contains the relay core: the presence registry, the per-connection
clients, the envelope router and the broadcast fan-out.

This file defines Hub, which owns the live connections and the presence
registry. It routes inbound envelopes to the join, message and exit
sequences and fans outbound envelopes out to every open client.
*/
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"chatrelay/internal/app/db"
	"chatrelay/internal/app/store"
	"chatrelay/internal/app/user"
	"chatrelay/internal/metrics"
	"chatrelay/internal/pkg/logx"
)

var (
	// ErrHubClosed is returned by Register after Shutdown.
	ErrHubClosed = errors.New("hub is shut down")

	// ErrAlreadyAssociated is returned when an associated connection tries to join as another user.
	ErrAlreadyAssociated = errors.New("connection already joined as another user")
)

// Hub coordinates every connection of the relay.
type Hub struct {
	store    store.Store
	registry *Registry

	// clients is the set of live connections; mu protects it.
	clients map[*Client]struct{}
	mu      sync.RWMutex

	// ctx bounds persistence calls and is cancelled by Shutdown.
	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool

	// readLimit caps the size of one inbound frame; larger frames close the connection.
	readLimit int64

	// now stamps outbound messages; replaced in tests.
	now func() time.Time

	logger zerolog.Logger
}

// NewHub creates a hub that persists through st.
func NewHub(st store.Store) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		store:     st,
		registry:  NewRegistry(),
		clients:   make(map[*Client]struct{}),
		ctx:       ctx,
		cancel:    cancel,
		readLimit: defaultReadLimit,
		now:       time.Now,
		logger:    logx.Component("Hub"),
	}
}

// SetReadLimit sets the largest inbound frame, in bytes, accepted from clients
// registered afterwards. Call it before serving connections.
func (h *Hub) SetReadLimit(n int64) {
	if n > 0 {
		h.readLimit = n
	}
}

// Register adds a freshly opened, unassociated client to the live set.
func (h *Hub) Register(c *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed.Load() {
		return ErrHubClosed
	}

	h.clients[c] = struct{}{}
	metrics.ConnectionsOpen.Set(float64(len(h.clients)))

	h.logger.Info().
		Str("conn_id", c.ID).
		Int("total_connections", len(h.clients)).
		Msg("Client connected.")
	return nil
}

// Unregister removes a closed client from the live set. If the client was
// associated, the exit sequence runs for its user; otherwise nothing is broadcast.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	remaining := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	metrics.ConnectionsOpen.Set(float64(remaining))

	h.logger.Info().
		Str("conn_id", c.ID).
		Str("user_id", c.userID).
		Int("total_connections", remaining).
		Msg("Client disconnected.")

	if c.userID != "" {
		h.exit(c, c.userID, leaveNotice)
	}
}

// Dispatch decodes one inbound frame from c and runs the matching sequence.
// Invalid frames are logged and dropped; nothing is sent back to the client.
func (h *Hub) Dispatch(c *Client, frame []byte) {
	env, err := DecodeEnvelope(frame)
	if err != nil {
		metrics.EnvelopesReceived.WithLabelValues("invalid").Inc()
		c.logger.Warn().Err(err).Int("frame_bytes", len(frame)).Msg("Dropping invalid envelope")
		return
	}
	metrics.EnvelopesReceived.WithLabelValues(string(env.Type)).Inc()

	switch env.Type {
	case TypeUserJoin:
		err = h.HandleJoin(c, *env.User)
	case TypeNewMessage:
		err = h.HandleMessage(c, ChatMessage{UserID: env.UserID, Content: env.Content, Extra: env.Extra})
	case TypeUserExit:
		h.HandleExit(c, env.UserID)
	}

	if err != nil {
		event := c.logger.Error().Err(err)
		if errors.Is(err, store.ErrPersistence) {
			event = event.Bool("timeout", db.IsTimeout(err))
		}
		event.Str("msg_type", string(env.Type)).Msg("Envelope handling failed")
	}
}

// HandleJoin persists u, registers it as owned by c, binds c to it and
// broadcasts the presence snapshot followed by the join notice.
// If persistence fails nothing else happens and c stays as it was.
func (h *Hub) HandleJoin(c *Client, u user.User) error {
	if !u.Valid() {
		return fmt.Errorf("%w: user.userId and user.username", ErrMissingField)
	}
	if c.userID != "" && c.userID != u.UserID {
		return fmt.Errorf("%w: bound to %q, join as %q", ErrAlreadyAssociated, c.userID, u.UserID)
	}

	if err := h.store.UpsertUser(h.ctx, u.UserID, u.Username); err != nil {
		return fmt.Errorf("join %q: %w", u.UserID, err)
	}

	if previous := h.registry.Set(u, c.ID); previous != "" {
		h.logger.Warn().
			Str("user_id", u.UserID).
			Str("conn_id", c.ID).
			Str("previous_conn_id", previous).
			Msg("User joined from a second connection; presence now follows the new one.")
	}
	c.bind(u.UserID)
	metrics.UsersOnline.Set(float64(h.registry.Len()))

	h.logger.Info().
		Str("user_id", u.UserID).
		Str("conn_id", c.ID).
		Int("online_users", h.registry.Len()).
		Msg("User joined.")

	h.Broadcast(NewUserList(h.registry.Snapshot()))
	h.Broadcast(NewSystemMessage(fmt.Sprintf(joinNotice, u.Username), h.now()))
	return nil
}

// HandleMessage persists the message and, only if that succeeded, broadcasts
// it with all of its members, stamped with the relay's current time.
func (h *Hub) HandleMessage(c *Client, msg ChatMessage) error {
	if msg.UserID == "" || msg.Content == "" {
		return fmt.Errorf("%w: userId and content", ErrMissingField)
	}

	id, err := h.store.InsertMessage(h.ctx, msg.UserID, msg.Content)
	if err != nil {
		return fmt.Errorf("message from %q: %w", msg.UserID, err)
	}

	c.logger.Debug().Int64("message_id", id).Str("user_id", msg.UserID).Msg("Message stored.")

	h.Broadcast(NewChatMessage(msg, h.now()))
	return nil
}

// HandleExit runs the exit sequence for an explicit user-exit from c.
// It reports whether a user was removed. Exits for users that are not online,
// or whose presence belongs to another connection, change nothing.
func (h *Hub) HandleExit(c *Client, userID string) bool {
	if !h.exit(c, userID, exitNotice) {
		c.logger.Debug().Str("user_id", userID).Msg("Ignoring exit for user not owned by this connection.")
		return false
	}
	if c.userID == userID {
		c.unbind()
	}
	return true
}

// exit removes userID if c still owns it and broadcasts the new snapshot and notice.
func (h *Hub) exit(c *Client, userID, notice string) bool {
	u, ok := h.registry.Remove(userID, c.ID)
	if !ok {
		return false
	}
	metrics.UsersOnline.Set(float64(h.registry.Len()))

	h.logger.Info().
		Str("user_id", userID).
		Str("conn_id", c.ID).
		Int("online_users", h.registry.Len()).
		Msg("User left.")

	h.Broadcast(NewUserList(h.registry.Snapshot()))
	h.Broadcast(NewSystemMessage(fmt.Sprintf(notice, u.Username), h.now()))
	return true
}

// Broadcast serializes env once and queues the same bytes on every open client.
// Closed clients are skipped. It returns the number of clients the frame was queued for.
func (h *Hub) Broadcast(env Outbound) int {
	frame, err := json.Marshal(env)
	if err != nil {
		h.logger.Error().Err(err).Str("msg_type", string(env.EnvelopeType())).Msg("Error marshaling envelope for broadcast.")
		return 0
	}
	metrics.Broadcasts.WithLabelValues(string(env.EnvelopeType())).Inc()

	delivered := 0
	for _, c := range h.snapshotClients() {
		if !c.IsOpen() {
			continue
		}
		if c.enqueue(frame) {
			delivered++
		} else if c.IsOpen() {
			metrics.FramesDropped.Inc()
		}
	}
	return delivered
}

func (h *Hub) snapshotClients() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	return clients
}

// OnlineUsers returns a snapshot of the presence registry.
func (h *Hub) OnlineUsers() []user.User {
	return h.registry.Snapshot()
}

// ClientCount returns the number of live connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown stops accepting clients, cancels in-flight persistence calls and closes every client.
func (h *Hub) Shutdown() {
	h.logger.Info().Msg("Shutting down hub...")

	h.mu.Lock()
	h.closed.Store(true)
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	h.cancel()

	for _, c := range clients {
		c.Close()
	}

	h.logger.Info().Int("closed_connections", len(clients)).Msg("Hub shutdown complete.")
}
