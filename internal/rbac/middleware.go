package rbac

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tradewind-bank/tradewind/internal/shared"
)

// Middleware wires session resolution and authorization gates for HTTP
// handlers.
type Middleware struct {
	Sessions *shared.SessionStore
	Logger   *slog.Logger
}

// Authenticate resolves the bearer token into an Actor and stores it in the
// request context. Requests without a resolvable actor are rejected.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		record, err := m.Sessions.Resolve(r.Context(), token)
		if err != nil {
			if !errors.Is(err, shared.ErrSessionExpired) && m.Logger != nil {
				m.Logger.Error("resolve session", slog.Any("error", err))
			}
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		role, err := ParseRole(record.Role)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Error("session carries unknown role", slog.String("role", record.Role), slog.String("actor", record.ID))
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		actor := Actor{
			ID:         record.ID,
			Name:       record.Name,
			Role:       role,
			Department: record.Department,
			Branch:     record.Branch,
			Overrides:  record.Overrides,
		}
		next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
	})
}

// Require ensures the current actor holds all of the listed permissions.
func (m Middleware) Require(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			for _, p := range perms {
				if !Authorize(actor, p) {
					http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAny ensures the current actor holds at least one of the listed
// permissions.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(perms) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			for _, p := range perms {
				if Authorize(actor, p) {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
