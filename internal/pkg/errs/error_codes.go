/*
Package errs defines the relay's error codes and the CustomError type carried
back to clients, both as websocket error frames and as HTTP error envelopes.
*/
package errs

// 1xxx: request and frame handling
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the declared Content-Type is not accepted.
	ErrUnsupportedMediaType = 1002

	// ErrMalformedFrame indicates an inbound payload that could not be decoded
	// into a known event (bad JSON, unknown type, unknown or missing fields).
	ErrMalformedFrame = 1003

	// ErrRequestEntityTooLarge indicates that the body exceeded the server limit.
	ErrRequestEntityTooLarge = 1006

	// ErrRateLimitExceeded indicates that the caller is sending too fast.
	ErrRateLimitExceeded = 1007
)

// 2xxx: validation and conflicts
const (
	// ErrInvalidNickname indicates a nickname outside the allowed length or alphabet.
	ErrInvalidNickname = 2101

	// ErrNicknameTaken indicates that registration hit an existing nickname.
	ErrNicknameTaken = 2102

	// ErrEmptyMessage indicates a message with no text, image or audio.
	ErrEmptyMessage = 2201

	// ErrMessageContentTooLong indicates text above the per-message limit.
	ErrMessageContentTooLong = 2202

	// ErrInvalidAvatar indicates an avatar reference that is too long or not a URL.
	ErrInvalidAvatar = 2203
)

// 3xxx: authentication
const (
	// ErrNotAuthenticated indicates an event that requires a bound identity.
	ErrNotAuthenticated = 3001

	// ErrInvalidCredential indicates a password mismatch on login.
	ErrInvalidCredential = 3002

	// ErrAlreadyAuthenticated indicates register or login on a bound connection.
	ErrAlreadyAuthenticated = 3003

	// ErrUnauthorized indicates a missing or invalid bearer token on the HTTP surface.
	ErrUnauthorized = 3004
)

// 4xxx: lookups
const (
	// ErrUserNotFound indicates a login or avatar update for an unknown nickname.
	ErrUserNotFound = 4001

	// ErrUnknownRecipient indicates a message addressed to an unknown nickname.
	ErrUnknownRecipient = 4002
)

// 5xxx: internal
const (
	// ErrUnknown represents an unclassified server error.
	ErrUnknown = 5000

	// ErrFileStorageFailed indicates that the blob store rejected an upload.
	ErrFileStorageFailed = 5001

	// ErrPersistenceFailed indicates a snapshot read or write failure. Logged only.
	ErrPersistenceFailed = 5002
)
