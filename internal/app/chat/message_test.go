package chat

import (
	"encoding/json"
	"errors"
	"testing"

	"chatrelay/internal/app/user"
)

func TestDecodeEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		want    MessageType
		wantErr error
	}{
		{"join", `{"type":"user-join","user":{"userId":"u1","username":"Alice"}}`, TypeUserJoin, nil},
		{"message", `{"type":"new-message","userId":"u1","content":"hi"}`, TypeNewMessage, nil},
		{"exit", `{"type":"user-exit","userId":"u1"}`, TypeUserExit, nil},
		{"not json", `{`, "", ErrMalformedEnvelope},
		{"array", `[]`, "", ErrMalformedEnvelope},
		{"no type", `{"userId":"u1"}`, "", ErrMalformedEnvelope},
		{"unknown type", `{"type":"ping"}`, "", ErrUnknownType},
		{"outbound type", `{"type":"system-message"}`, "", ErrUnknownType},
		{"join without user", `{"type":"user-join"}`, "", ErrMissingField},
		{"join blank username", `{"type":"user-join","user":{"userId":"u1","username":"  "}}`, "", ErrMissingField},
		{"message without content", `{"type":"new-message","userId":"u1","content":""}`, "", ErrMissingField},
		{"message without user", `{"type":"new-message","content":"hi"}`, "", ErrMissingField},
		{"exit without user", `{"type":"user-exit","userId":""}`, "", ErrMissingField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := DecodeEnvelope([]byte(tt.frame))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("DecodeEnvelope() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeEnvelope() error = %v", err)
			}
			if env.Type != tt.want {
				t.Errorf("Type = %q, want %q", env.Type, tt.want)
			}
		})
	}
}

func TestOutboundWireFormat(t *testing.T) {
	tests := []struct {
		name string
		env  Outbound
		want string
	}{
		{
			"user list",
			NewUserList([]user.User{{UserID: "u1", Username: "Alice"}}),
			`{"type":"user-list","users":[{"userId":"u1","username":"Alice"}]}`,
		},
		{
			"user list keeps descriptor members",
			NewUserList([]user.User{{
				UserID:   "u1",
				Username: "Alice",
				Extra:    map[string]json.RawMessage{"avatar": json.RawMessage(`"a.png"`)},
			}}),
			`{"type":"user-list","users":[{"userId":"u1","username":"Alice","avatar":"a.png"}]}`,
		},
		{
			"empty user list",
			NewUserList(nil),
			`{"type":"user-list","users":[]}`,
		},
		{
			"system message",
			NewSystemMessage("Alice 已加入", fixedNow),
			`{"type":"system-message","message":{"content":"Alice 已加入","timestamp":1700000000000,"isSystem":true}}`,
		},
		{
			"chat message",
			NewChatMessage(ChatMessage{UserID: "u1", Content: "hi", Timestamp: 1}, fixedNow),
			`{"type":"new-message","message":{"userId":"u1","content":"hi","timestamp":1700000000000}}`,
		},
		{
			"chat message keeps publisher members",
			NewChatMessage(ChatMessage{
				UserID:  "u1",
				Content: "hi",
				Extra: map[string]json.RawMessage{
					"username":  json.RawMessage(`"Alice"`),
					"timestamp": json.RawMessage(`5`),
				},
			}, fixedNow),
			`{"type":"new-message","message":{"userId":"u1","content":"hi","timestamp":1700000000000,"username":"Alice"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.env)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got  %s\nwant %s", got, tt.want)
			}
		})
	}
}

func TestDecodeEnvelopeKeepsExtraMembers(t *testing.T) {
	join, err := DecodeEnvelope([]byte(`{"type":"user-join","user":{"userId":"u1","username":"Alice","avatar":"a.png"}}`))
	if err != nil {
		t.Fatalf("DecodeEnvelope(join) error = %v", err)
	}
	if got := string(join.User.Extra["avatar"]); got != `"a.png"` {
		t.Errorf("user avatar = %s, want \"a.png\"", got)
	}

	msg, err := DecodeEnvelope([]byte(`{"type":"new-message","userId":"u1","content":"hi","username":"Alice","timestamp":1}`))
	if err != nil {
		t.Fatalf("DecodeEnvelope(message) error = %v", err)
	}
	if got := string(msg.Extra["username"]); got != `"Alice"` {
		t.Errorf("message username = %s, want \"Alice\"", got)
	}
	for _, key := range []string{"userId", "content", "timestamp"} {
		if _, ok := msg.Extra[key]; ok {
			t.Errorf("Extra holds typed member %q", key)
		}
	}
}
