/*
Package randx generates identifiers used by the relay.
*/
package randx

import (
	"github.com/google/uuid"
)

// ConnectionID returns a UUID v4 string identifying one WebSocket connection for
// its lifetime. It is used for log correlation and to record which connection
// owns a presence entry.
func ConnectionID() string {
	return uuid.New().String()
}

