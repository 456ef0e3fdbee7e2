package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"loanforge.org/internal/auth"
	"loanforge.org/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/",
	"/healthz",
	"/readyz",
	"/metrics",
	"/v1/info",
	"/v1/auth/login",
	"/v1/auth/register",
}

var publicPrefixes = []string{
	"/assets/",
}

// withAuth is the authentication gate. OPTIONS and public paths pass
// through. A request with no credential also passes through: denial is
// deferred to the handler, which answers the same generic 401, so the gate
// rejects only credentials that are present and bad. Revocation is checked
// against the raw credential's fingerprint before any parsing.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		header := strings.TrimSpace(r.Header.Get(authHeader))
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(header)
		if err != nil {
			a.reject(w, r, "malformed_header")
			return
		}

		if a.revocations != nil && a.revocations.IsRevoked(auth.Fingerprint(token)) {
			a.reject(w, r, "revoked")
			return
		}

		claims, err := a.verifier.Verify(token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrExpiredToken):
				a.reject(w, r, "expired")
			default:
				a.reject(w, r, "malformed")
			}
			return
		}

		principal, err := a.resolver.FindPrincipalBySubject(r.Context(), claims.Subject)
		if err != nil {
			if errors.Is(err, auth.ErrPrincipalNotFound) {
				a.reject(w, r, "principal_not_found")
			} else {
				a.reject(w, r, "resolver_error")
			}
			return
		}
		if !principal.Active {
			a.reject(w, r, "inactive")
			return
		}
		// The credential's role claims may be stale; the resolved principal
		// is authoritative. A claimed role no longer held fails the request.
		for _, role := range claims.Roles {
			if !principal.HasRole(role) {
				a.reject(w, r, "role_revoked")
				return
			}
		}

		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// reject halts the chain with the shared generic 401. The reason never
// reaches the response body.
func (a *API) reject(w http.ResponseWriter, r *http.Request, reason string) {
	obs.AuthReject(reason)
	obs.LogRequest(map[string]any{
		"ts":         time.Now().UTC().Format(time.RFC3339Nano),
		"level":      "warn",
		"msg":        "authentication rejected",
		"reason":     reason,
		"path":       r.URL.Path,
		"request_id": RequestIDFromContext(r.Context()),
	})
	writeUnauthorized(w)
}

// requirePrincipal returns the authenticated principal or answers the
// generic 401. Requests without a credential land here.
func (a *API) requirePrincipal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		a.reject(w, r, "no_credential")
		return auth.Principal{}, false
	}
	return principal, true
}

func extractBearerToken(header string) (string, error) {
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
