package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"study-companion/internal/session"
)

type contextKey string

const SessionKey contextKey = "session"

const (
	SessionCookie = "sc_session"
	tokenLifetime = 24 * time.Hour
)

var ErrInvalidToken = errors.New("invalid session token")

// SessionTokens signs and verifies the HS256 tokens that bind a browser to
// its in-memory session.
type SessionTokens struct {
	Secret []byte
}

func NewSessionTokens(secret string) *SessionTokens {
	return &SessionTokens{Secret: []byte(secret)}
}

// Issue creates a token for the session with a 24 hour expiry
func (t *SessionTokens) Issue(id uuid.UUID) (string, error) {
	claims := jwt.MapClaims{
		"session_id": id.String(),
		"exp":        time.Now().Add(tokenLifetime).Unix(),
		"iat":        time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.Secret)
}

func (t *SessionTokens) Parse(tokenStr string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return t.Secret, nil
	})
	if err != nil {
		return uuid.Nil, errors.Join(ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return uuid.Nil, ErrInvalidToken
	}

	idStr, ok := claims["session_id"].(string)
	if !ok {
		return uuid.Nil, ErrInvalidToken
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, errors.Join(ErrInvalidToken, err)
	}
	return id, nil
}

type SessionAuth struct {
	tokens *SessionTokens
	store  *session.Store
	secure bool
}

func NewSessionAuth(tokens *SessionTokens, store *session.Store, secureCookies bool) *SessionAuth {
	return &SessionAuth{tokens: tokens, store: store, secure: secureCookies}
}

// Middleware attaches the caller's session to the context. API clients send
// a Bearer token that must name a live session; browsers carry a cookie and
// silently get a fresh session when theirs is missing or gone.
func (a *SessionAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if authHeader := r.Header.Get("Authorization"); authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid authorization format", r)
				return
			}

			id, err := a.tokens.Parse(parts[1])
			if err != nil {
				if errors.Is(err, jwt.ErrTokenExpired) {
					writeError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "Session token has expired", r)
				} else {
					writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid session token", r)
				}
				return
			}

			sess, err := a.store.Get(id)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "SESSION_EXPIRED", "Session has expired. Start a new one.", r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
			return
		}

		sess := a.fromCookie(r)
		if sess == nil {
			var err error
			sess, err = a.StartSession(w)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to start session", r)
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}

// StartSession creates a session and sets its cookie.
func (a *SessionAuth) StartSession(w http.ResponseWriter) (*session.Session, error) {
	sess := a.store.Create()
	token, err := a.tokens.Issue(sess.ID)
	if err != nil {
		a.store.Delete(sess.ID)
		return nil, err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(tokenLifetime.Seconds()),
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return sess, nil
}

// TokenFor returns a token naming sess, for the websocket URL and API
// clients.
func (a *SessionAuth) TokenFor(sess *session.Session) (string, error) {
	return a.tokens.Issue(sess.ID)
}

func (a *SessionAuth) fromCookie(r *http.Request) *session.Session {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return nil
	}
	id, err := a.tokens.Parse(cookie.Value)
	if err != nil {
		return nil
	}
	sess, err := a.store.Get(id)
	if err != nil {
		return nil
	}
	return sess
}

func WithSession(ctx context.Context, sess *session.Session) context.Context {
	return context.WithValue(ctx, SessionKey, sess)
}

// GetSession extracts the session from request context
func GetSession(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(SessionKey).(*session.Session)
	return sess
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
