/*
Package user defines the identity of a chat participant.

UserID is the identity; Username is display metadata that the latest join
overwrites. Identity claims are taken as given by the client, and any other
descriptor fields it sends (an avatar, a colour) are kept and relayed as-is.
*/
package user

import (
	"encoding/json"
	"strings"

	"chatrelay/internal/pkg/jsonx"
)

// User is the descriptor stored in the presence registry and sent in user-list snapshots.
type User struct {
	// UserID is the client-chosen identifier of the participant.
	UserID string `json:"userId"`

	// Username is the display name announced with the latest join.
	Username string `json:"username"`

	// Extra holds the remaining descriptor members. It is shared by copies and must not be modified.
	Extra map[string]json.RawMessage `json:"-"`
}

// Valid reports whether both fields are non-blank.
func (u User) Valid() bool {
	return strings.TrimSpace(u.UserID) != "" && strings.TrimSpace(u.Username) != ""
}

// UnmarshalJSON decodes the typed fields and keeps every other member in Extra.
func (u *User) UnmarshalJSON(data []byte) error {
	type plain User

	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	extra, err := jsonx.Extras(data, "userId", "username")
	if err != nil {
		return err
	}

	*u = User(p)
	u.Extra = extra
	return nil
}

// MarshalJSON writes userId and username followed by the extra members.
func (u User) MarshalJSON() ([]byte, error) {
	return jsonx.MarshalObject(u.Extra,
		jsonx.Field{Key: "userId", Value: u.UserID},
		jsonx.Field{Key: "username", Value: u.Username},
	)
}
