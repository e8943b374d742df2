package app

import (
	"errors"

	"zerostack-chat/internal/client"
)

var (
	ErrNoRoom            = errors.New("no room joined")
	ErrNotAuthenticated  = errors.New("sign in to create rooms")
	ErrPasswordsMismatch = &client.ValidationError{Field: "confirm", Message: "Passwords do not match"}
)

// Inline chat-log notices.
const (
	NoticeSendFailed    = "Failed to send message. Try again."
	NoticeHistoryFailed = "Failed to load messages"
)

func validation(field string, message string) error {
	return &client.ValidationError{Field: field, Message: message}
}
