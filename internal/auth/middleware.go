package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/custodia-vault/custodia/internal/shared"
)

// Middleware resolves the Authorization header into a request principal.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequirePrincipal rejects requests without a valid API key and stores the
// resolved principal in the request context.
func (m Middleware) RequirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, ok := bearerToken(r)
		if !ok {
			writeUnauthorized(w, "missing bearer token")
			return
		}
		principal, err := m.Service.Authenticate(r.Context(), key)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Info("authentication rejected", slog.Any("error", err))
			}
			writeUnauthorized(w, "invalid credentials")
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), principal)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"kind": "unauthenticated", "message": message},
	})
}
