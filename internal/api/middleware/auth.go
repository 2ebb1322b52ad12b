package middleware

import (
	"context"
	"net/http"

	"github.com/Staby-Guy/pidgeon/internal/api/services"
	"github.com/Staby-Guy/pidgeon/internal/models"
	"github.com/Staby-Guy/pidgeon/internal/utils"
)

type contextKey string

const callerKey contextKey = "caller"

// SessionCookie holds the signed session token.
const SessionCookie = "token"

// Caller is the authenticated identity of a request.
type Caller struct {
	UserID   string
	Username string
}

func (c Caller) Profile() models.Profile {
	return models.Profile{ID: c.UserID, Username: c.Username}
}

// TokenParser verifies a session token.
type TokenParser interface {
	Parse(raw string) (*services.Claims, error)
}

// AuthMiddleware rejects requests without a valid session cookie and puts
// the Caller into the request context.
func AuthMiddleware(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			cookie, err := r.Cookie(SessionCookie)
			if err != nil || cookie.Value == "" {
				unauthorized(w)
				return
			}
			claims, err := tokens.Parse(cookie.Value)
			if err != nil {
				unauthorized(w)
				return
			}

			ctx := WithCaller(r.Context(), Caller{UserID: claims.UserID, Username: claims.Username})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey, c)
}

// CallerFrom returns the caller stored by AuthMiddleware.
func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey).(Caller)
	return c, ok && c.UserID != ""
}

func unauthorized(w http.ResponseWriter) {
	utils.JSONResponse(w, http.StatusUnauthorized, utils.Payload{
		Success: false,
		Message: "Unauthorized",
	})
}
