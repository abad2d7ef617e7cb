/*
Package errs provides custom error types and application-level error code constants.

The codes identify the few failures the relay reports over plain HTTP: rejected
upgrade attempts and an unavailable backing store. The WebSocket protocol
itself has no error channel.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request validation failed.
	ErrInvalidParams = 1001

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007

	// ErrOriginNotAllowed indicates that the upgrade request came from an origin outside the allow list.
	ErrOriginNotAllowed = 1008
)

// 4xxx: Dependency Errors
const (
	// ErrStoreUnavailable indicates that the backing store did not answer a health probe.
	ErrStoreUnavailable = 4001

	// ErrShuttingDown indicates the relay no longer accepts connections.
	ErrShuttingDown = 4002
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000
)
