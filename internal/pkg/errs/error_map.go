package errs

import "net/http"

// errorMap stores the CustomError template for every application error code.
var errorMap = map[int]CustomError{
	ErrInvalidParams:     {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrRateLimitExceeded: {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},
	ErrOriginNotAllowed:  {Code: ErrOriginNotAllowed, Message: "Origin %s is not allowed.", Status: http.StatusForbidden},

	ErrStoreUnavailable: {Code: ErrStoreUnavailable, Message: "Storage is unavailable.", Status: http.StatusServiceUnavailable},
	ErrShuttingDown:     {Code: ErrShuttingDown, Message: "Server is shutting down.", Status: http.StatusServiceUnavailable},

	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}
