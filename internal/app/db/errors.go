package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// IsTimeout reports whether err came from a database call that ran out of time.
// Cancellation, as on shutdown, is not a timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	return pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded)
}
