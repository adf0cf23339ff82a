// Package middleware provides HTTP middleware for the chat server.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// ChatIDKey is the context key for the chat id carried by the session cookie.
	ChatIDKey ContextKey = "chat_id"
)

// SessionCookie is the name of the cookie holding the signed chat id.
const SessionCookie = "specky_session"

// Claims represents the session cookie claims.
type Claims struct {
	jwt.RegisteredClaims
	ChatID string `json:"chat_id"`
}

// Sessions signs and verifies session cookies.
type Sessions struct {
	secret []byte
	ttl    time.Duration
}

// NewSessions creates a session codec. A zero ttl issues cookies that never
// expire.
func NewSessions(secret string, ttl time.Duration) *Sessions {
	return &Sessions{secret: []byte(secret), ttl: ttl}
}

// Issue sets a session cookie carrying chatID on w.
func (s *Sessions) Issue(w http.ResponseWriter, chatID string) error {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  chatID,
			IssuedAt: jwt.NewNumericDate(now),
		},
		ChatID: chatID,
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return err
	}

	cookie := &http.Cookie{
		Name:     SessionCookie,
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if s.ttl > 0 {
		cookie.MaxAge = int(s.ttl.Seconds())
	}
	http.SetCookie(w, cookie)
	return nil
}

// Parse returns the chat id of a signed session token.
func (s *Sessions) Parse(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.ChatID == "" {
		return "", errors.New("invalid session token")
	}
	return claims.ChatID, nil
}

// Session reads the session cookie and stores its chat id in the request
// context. Missing or invalid cookies are not an error; handlers mint a new
// session instead.
func (s *Sessions) Session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookie)
		if err == nil {
			if chatID, err := s.Parse(cookie.Value); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), ChatIDKey, chatID))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// GetChatID gets the session chat id from context.
func GetChatID(ctx context.Context) string {
	if v, ok := ctx.Value(ChatIDKey).(string); ok {
		return v
	}
	return ""
}
