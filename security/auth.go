package security

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pocketbase/pocketbase/core"

	"ticketing/internal/status"
	"ticketing/models"
)

const actorKey = "ticketing.actor"

// UserFinder loads the account behind a token.
type UserFinder interface {
	FindUser(ctx context.Context, id string) (*models.User, error)
}

type UserFinderFunc func(ctx context.Context, id string) (*models.User, error)

func (f UserFinderFunc) FindUser(ctx context.Context, id string) (*models.User, error) {
	return f(ctx, id)
}

type Authenticator struct {
	tokens *TokenIssuer
	users  UserFinder
}

func NewAuthenticator(tokens *TokenIssuer, users UserFinder) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

// Authenticate rejects requests without a valid bearer token and stores the caller on the event.
func (a *Authenticator) Authenticate() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		raw, ok := bearer(e.Request)
		if !ok {
			return deny(e, http.StatusUnauthorized, "Missing or malformed bearer token")
		}

		actor, err := a.resolve(e.Request.Context(), raw)
		if err != nil {
			slog.Debug("Rejected bearer token", "error", err, "ip", clientIP(e.Request))
			return deny(e, http.StatusUnauthorized, "Invalid token")
		}

		e.Set(actorKey, actor)
		return e.Next()
	}
}

// OptionalAuth resolves the caller when a valid token is present and proceeds regardless.
func (a *Authenticator) OptionalAuth() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if raw, ok := bearer(e.Request); ok {
			if actor, err := a.resolve(e.Request.Context(), raw); err == nil {
				e.Set(actorKey, actor)
			}
		}
		return e.Next()
	}
}

// RequireAdmin must run after Authenticate.
func RequireAdmin() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		actor, ok := ActorFrom(e)
		if !ok {
			return deny(e, http.StatusUnauthorized, "Unauthorized")
		}
		if !actor.IsAdmin() {
			return deny(e, http.StatusForbidden, "Admin access required")
		}
		return e.Next()
	}
}

func (a *Authenticator) resolve(ctx context.Context, raw string) (models.Actor, error) {
	claims, err := a.tokens.Parse(raw)
	if err != nil {
		return models.Actor{}, err
	}

	u, err := a.users.FindUser(ctx, claims.UserID)
	if err != nil {
		return models.Actor{}, status.Errorf(status.ErrUnauthorized, "token subject %s: %v", claims.UserID, err)
	}
	if claims.IssuedAt == nil || u.TokenRevoked(claims.IssuedAt.Time) {
		return models.Actor{}, status.Errorf(status.ErrUnauthorized, "token of %s has been revoked", claims.UserID)
	}
	return models.ActorFromUser(u), nil
}

// ActorFrom returns the caller resolved by Authenticate or OptionalAuth.
func ActorFrom(e *core.RequestEvent) (models.Actor, bool) {
	actor, ok := e.Get(actorKey).(models.Actor)
	return actor, ok
}

// WithActor stores actor on the event.
func WithActor(e *core.RequestEvent, actor models.Actor) {
	e.Set(actorKey, actor)
}

func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if len(h) < 8 || !strings.EqualFold(h[:7], "Bearer ") {
		return "", false
	}
	return strings.TrimSpace(h[7:]), true
}

func deny(e *core.RequestEvent, code int, msg string) error {
	return e.JSON(code, map[string]any{
		"success": false,
		"errors":  []string{msg},
	})
}
