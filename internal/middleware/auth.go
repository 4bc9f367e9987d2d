package middleware

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const SessionIDKey contextKey = "session_id"

const viewTokenAudience = "qroll-projector"

// ViewTokens issues and checks the short-lived tokens that let a browser tab
// watch the projector page for one session.
type ViewTokens struct {
	Secret []byte
	TTL    time.Duration
}

// NewViewTokens uses secret when given, otherwise a random per-process key.
func NewViewTokens(secret string, ttl time.Duration) (*ViewTokens, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
	}
	if ttl <= 0 {
		ttl = 4 * time.Hour
	}
	return &ViewTokens{Secret: key, TTL: ttl}, nil
}

// Issue creates a view token for sessionID.
func (v *ViewTokens) Issue(sessionID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"session_id": sessionID,
		"aud":        viewTokenAudience,
		"exp":        now.Add(v.TTL).Unix(),
		"iat":        now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.Secret)
}

// Validate returns the session id carried by tokenStr.
func (v *ViewTokens) Validate(tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.Secret, nil
	}, jwt.WithAudience(viewTokenAudience), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", jwt.ErrTokenInvalidClaims
	}
	sessionID, _ := claims["session_id"].(string)
	if sessionID == "" {
		return "", jwt.ErrTokenInvalidClaims
	}
	return sessionID, nil
}

// Middleware accepts the view token from ?token= (browsers cannot set headers
// on websocket upgrades) or a Bearer header, and attaches the session id.
func (v *ViewTokens) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := r.URL.Query().Get("token")
		if tokenStr == "" {
			parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenStr = parts[1]
			}
		}
		if tokenStr == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing view token", r)
			return
		}

		sessionID, err := v.Validate(tokenStr)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				writeError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "View token has expired", r)
			} else {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid view token", r)
			}
			return
		}

		ctx := context.WithValue(r.Context(), SessionIDKey, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetSessionID extracts the session id from request context
func GetSessionID(ctx context.Context) string {
	id, _ := ctx.Value(SessionIDKey).(string)
	return id
}

func writeError(w http.ResponseWriter, status int, code, message string, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":       code,
			"message":    message,
			"request_id": requestID,
		},
	})
}
