package middleware

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/phantasma-ai/specky/internal/chatlog"
)

// MaxMessageLength bounds a single user message in bytes.
const MaxMessageLength = 16 * 1024

var (
	ErrEmptyMessage   = errors.New("message cannot be empty")
	ErrMessageTooLong = errors.New("message exceeds maximum length")
	ErrInvalidUTF8    = errors.New("message must be valid UTF-8")
	ErrInvalidChatID  = errors.New("invalid chat ID format")
)

// ValidateMessageContent validates a user message.
func ValidateMessageContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyMessage
	}
	if len(content) > MaxMessageLength {
		return ErrMessageTooLong
	}
	if !utf8.ValidString(content) {
		return ErrInvalidUTF8
	}
	return nil
}

// ValidateChatID validates a chat id.
func ValidateChatID(id string) error {
	if !chatlog.ValidID(id) {
		return ErrInvalidChatID
	}
	return nil
}

// ChatIDParam rejects requests whose chatID URL parameter cannot name a
// chat log.
func ChatIDParam(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := ValidateChatID(chi.URLParam(r, "chatID")); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r)
	})
}
