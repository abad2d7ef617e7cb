/*
Package chat contains the relay core: the presence registry, the per-connection
clients, the envelope router and the broadcast fan-out.

This file defines the JSON envelopes exchanged over the WebSocket and the
validation applied to inbound ones.
*/
package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"chatrelay/internal/app/user"
	"chatrelay/internal/pkg/jsonx"
)

// MessageType is the envelope discriminator carried in the "type" field.
type MessageType string

const (
	// Inbound (client to server)
	TypeUserJoin MessageType = "user-join"
	TypeUserExit MessageType = "user-exit"

	// Both directions: inbound it is a publish request, outbound the stamped message.
	TypeNewMessage MessageType = "new-message"

	// Outbound (server to every open connection)
	TypeUserList      MessageType = "user-list"
	TypeSystemMessage MessageType = "system-message"
)

var (
	// ErrMalformedEnvelope is returned for frames that are not a JSON envelope.
	ErrMalformedEnvelope = errors.New("malformed envelope")

	// ErrUnknownType is returned for envelopes whose type is not handled inbound.
	ErrUnknownType = errors.New("unknown envelope type")

	// ErrMissingField is returned when a required field is absent or blank.
	ErrMissingField = errors.New("missing required field")
)

// InboundEnvelope is the union of all client-to-server envelopes.
// Only the fields belonging to Type are meaningful.
type InboundEnvelope struct {
	Type MessageType `json:"type"`

	// user-join
	User *user.User `json:"user,omitempty"`

	// new-message, user-exit
	UserID string `json:"userId,omitempty"`

	// new-message
	Content string `json:"content,omitempty"`

	// Extra holds the other members of a new-message envelope, relayed with the message.
	// A client-supplied timestamp is not kept; the relay stamps its own.
	Extra map[string]json.RawMessage `json:"-"`
}

// DecodeEnvelope parses a raw frame and validates it for its declared type.
// Errors wrap ErrMalformedEnvelope, ErrUnknownType or ErrMissingField.
func DecodeEnvelope(data []byte) (InboundEnvelope, error) {
	var env InboundEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return InboundEnvelope{}, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}

	if err := env.Validate(); err != nil {
		return InboundEnvelope{}, err
	}

	if env.Type == TypeNewMessage {
		extra, err := jsonx.Extras(data, "userId", "content", "timestamp")
		if err != nil {
			return InboundEnvelope{}, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
		}
		env.Extra = extra
	}
	return env, nil
}

// Validate checks that the fields required by env.Type are present.
func (env InboundEnvelope) Validate() error {
	switch env.Type {
	case TypeUserJoin:
		if env.User == nil {
			return fmt.Errorf("%w: user", ErrMissingField)
		}
		if !env.User.Valid() {
			return fmt.Errorf("%w: user.userId and user.username", ErrMissingField)
		}

	case TypeNewMessage:
		if strings.TrimSpace(env.UserID) == "" {
			return fmt.Errorf("%w: userId", ErrMissingField)
		}
		if env.Content == "" {
			return fmt.Errorf("%w: content", ErrMissingField)
		}

	case TypeUserExit:
		if strings.TrimSpace(env.UserID) == "" {
			return fmt.Errorf("%w: userId", ErrMissingField)
		}

	case "":
		return fmt.Errorf("%w: type", ErrMalformedEnvelope)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}

	return nil
}

// Outbound is implemented by every server-to-client envelope.
type Outbound interface {
	EnvelopeType() MessageType
}

// UserListEnvelope carries a full presence snapshot.
type UserListEnvelope struct {
	Type  MessageType `json:"type"`
	Users []user.User `json:"users"`
}

// EnvelopeType implements Outbound.
func (UserListEnvelope) EnvelopeType() MessageType { return TypeUserList }

// SystemMessage is a relay-authored notice.
type SystemMessage struct {
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
	IsSystem  bool   `json:"isSystem"`
}

// SystemEnvelope wraps a SystemMessage.
type SystemEnvelope struct {
	Type    MessageType   `json:"type"`
	Message SystemMessage `json:"message"`
}

// EnvelopeType implements Outbound.
func (SystemEnvelope) EnvelopeType() MessageType { return TypeSystemMessage }

// ChatMessage is a user message stamped with the relay's clock.
type ChatMessage struct {
	UserID    string `json:"userId"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`

	// Extra carries the publisher's other members unchanged.
	Extra map[string]json.RawMessage `json:"-"`
}

// MarshalJSON writes the typed fields followed by the extra members.
func (m ChatMessage) MarshalJSON() ([]byte, error) {
	return jsonx.MarshalObject(m.Extra,
		jsonx.Field{Key: "userId", Value: m.UserID},
		jsonx.Field{Key: "content", Value: m.Content},
		jsonx.Field{Key: "timestamp", Value: m.Timestamp},
	)
}

// ChatEnvelope wraps a ChatMessage.
type ChatEnvelope struct {
	Type    MessageType `json:"type"`
	Message ChatMessage `json:"message"`
}

// EnvelopeType implements Outbound.
func (ChatEnvelope) EnvelopeType() MessageType { return TypeNewMessage }

// NewUserList builds a user-list envelope. A nil slice is sent as an empty array.
func NewUserList(users []user.User) UserListEnvelope {
	if users == nil {
		users = []user.User{}
	}
	return UserListEnvelope{Type: TypeUserList, Users: users}
}

// NewSystemMessage builds a system-message envelope stamped at now.
func NewSystemMessage(content string, now time.Time) SystemEnvelope {
	return SystemEnvelope{
		Type: TypeSystemMessage,
		Message: SystemMessage{
			Content:   content,
			Timestamp: now.UnixMilli(),
			IsSystem:  true,
		},
	}
}

// NewChatMessage builds a new-message envelope for msg, overwriting its timestamp with now.
func NewChatMessage(msg ChatMessage, now time.Time) ChatEnvelope {
	msg.Timestamp = now.UnixMilli()
	return ChatEnvelope{Type: TypeNewMessage, Message: msg}
}

// System notices, formatted with the username.
const (
	joinNotice  = "%s 已加入"
	leaveNotice = "%s 已离开"
	exitNotice  = "%s 退出了聊天室"
)
