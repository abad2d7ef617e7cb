package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"chatrelay/internal/app/store"
	"chatrelay/internal/pkg/logx"
)

func TestMain(m *testing.M) {
	logx.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// memStore is an in-memory store.Store whose writes can be forced to fail.
type memStore struct {
	mu          sync.Mutex
	users       map[string]string
	messages    []storedMessage
	failUpserts bool
	failInserts bool
	upsertCalls int
	insertCalls int
}

type storedMessage struct {
	userID  string
	content string
}

func newMemStore() *memStore {
	return &memStore{users: make(map[string]string)}
}

func (s *memStore) UpsertUser(_ context.Context, userID, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.upsertCalls++
	if s.failUpserts {
		return fmt.Errorf("%w: upsert user: %w", store.ErrPersistence, errors.New("connection refused"))
	}
	s.users[userID] = username
	return nil
}

func (s *memStore) InsertMessage(_ context.Context, userID, content string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.insertCalls++
	if s.failInserts {
		return 0, fmt.Errorf("%w: insert message: %w", store.ErrPersistence, context.DeadlineExceeded)
	}
	s.messages = append(s.messages, storedMessage{userID: userID, content: content})
	return int64(len(s.messages)), nil
}

func (s *memStore) Ping(context.Context) error { return nil }
func (s *memStore) Close()                     {}

func (s *memStore) setFailures(upserts, inserts bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failUpserts = upserts
	s.failInserts = inserts
}

var fixedNow = time.UnixMilli(1_700_000_000_000)

// newTestHub returns a hub over a fresh memStore with a frozen clock.
func newTestHub(t *testing.T) (*Hub, *memStore) {
	t.Helper()

	st := newMemStore()
	h := NewHub(st)
	h.now = func() time.Time { return fixedNow }
	t.Cleanup(h.Shutdown)
	return h, st
}

// newTestClient registers a client without a socket; frames are read from its send queue.
func newTestClient(t *testing.T, h *Hub) *Client {
	t.Helper()

	c := NewClient(h, nil)
	if err := h.Register(c); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return c
}

// received is a decoded outbound frame.
type received struct {
	Type    MessageType `json:"type"`
	Users   []userJSON  `json:"users"`
	Message struct {
		UserID    string `json:"userId"`
		Content   string `json:"content"`
		Timestamp int64  `json:"timestamp"`
		IsSystem  bool   `json:"isSystem"`
	} `json:"message"`
	raw []byte
}

type userJSON struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// nextFrame pops one frame from c's queue or fails.
func nextFrame(t *testing.T, c *Client) received {
	t.Helper()

	select {
	case frame := <-c.send:
		var r received
		if err := json.Unmarshal(frame, &r); err != nil {
			t.Fatalf("invalid frame %s: %v", frame, err)
		}
		r.raw = frame
		return r
	default:
		t.Fatalf("client %s: expected a queued frame, queue empty", c.ID)
		return received{}
	}
}

// expectNoFrame fails if anything is queued on c.
func expectNoFrame(t *testing.T, c *Client) {
	t.Helper()

	select {
	case frame := <-c.send:
		t.Fatalf("client %s: expected no frame, got %s", c.ID, frame)
	default:
	}
}

func userIDs(users []userJSON) map[string]string {
	out := make(map[string]string, len(users))
	for _, u := range users {
		out[u.UserID] = u.Username
	}
	return out
}
