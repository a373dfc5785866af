package errs

import "net/http"

// errorMap holds the client-facing template for each code.
var errorMap = map[int]CustomError{
	ErrInvalidParams:         {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType:  {Code: ErrUnsupportedMediaType, Message: "Unsupported content type.", Status: http.StatusUnsupportedMediaType},
	ErrMalformedFrame:        {Code: ErrMalformedFrame, Message: "Server error: malformed message.", Status: http.StatusBadRequest},
	ErrRequestEntityTooLarge: {Code: ErrRequestEntityTooLarge, Message: "Request size is too large.", Status: http.StatusRequestEntityTooLarge},
	ErrRateLimitExceeded:     {Code: ErrRateLimitExceeded, Message: "Too many requests. Please slow down.", Status: http.StatusTooManyRequests},

	ErrInvalidNickname:       {Code: ErrInvalidNickname, Message: "Nickname must be 3 to 20 characters long."},
	ErrNicknameTaken:         {Code: ErrNicknameTaken, Message: "Nickname is already taken."},
	ErrEmptyMessage:          {Code: ErrEmptyMessage, Message: "Message has no content."},
	ErrMessageContentTooLong: {Code: ErrMessageContentTooLong, Message: "Message is too long."},
	ErrInvalidAvatar:         {Code: ErrInvalidAvatar, Message: "Invalid avatar URL."},

	ErrNotAuthenticated:     {Code: ErrNotAuthenticated, Message: "Not authenticated."},
	ErrInvalidCredential:    {Code: ErrInvalidCredential, Message: "Incorrect password."},
	ErrAlreadyAuthenticated: {Code: ErrAlreadyAuthenticated, Message: "Already signed in on this connection."},
	ErrUnauthorized:         {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},

	ErrUserNotFound:     {Code: ErrUserNotFound, Message: "User not found."},
	ErrUnknownRecipient: {Code: ErrUnknownRecipient, Message: "Recipient does not exist."},

	ErrUnknown:           {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrFileStorageFailed: {Code: ErrFileStorageFailed, Message: "File upload failed. Please try again.", Status: http.StatusBadGateway},
	ErrPersistenceFailed: {Code: ErrPersistenceFailed, Message: "Storage error.", Status: http.StatusInternalServerError},
}
