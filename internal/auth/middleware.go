package auth

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sha1n/xconf-mcp/internal/config"
)

const (
	// Realm is announced to clients rejected by basic auth.
	Realm = "xconf-mcp"
	// APIKeyHeader carries the key for apikey auth.
	APIKeyHeader = "X-API-Key"
)

// Middleware wraps an http.Handler with authentication.
type Middleware func(http.Handler) http.Handler

// publicPaths bypass authentication.
var publicPaths = map[string]bool{
	"/health": true,
}

// credentialCheck reports whether a request carries valid credentials.
type credentialCheck func(r *http.Request) bool

// NewMiddleware creates the authentication middleware selected by settings.
func NewMiddleware(settings config.AuthSettings) (Middleware, error) {
	return NewMiddlewareWithLogger(settings, slog.Default())
}

// NewMiddlewareWithLogger is NewMiddleware with an explicit logger for
// rejected requests.
func NewMiddlewareWithLogger(settings config.AuthSettings, logger *slog.Logger) (Middleware, error) {
	switch settings.Type {
	case config.AuthTypeNone, "":
		return func(next http.Handler) http.Handler { return next }, nil

	case config.AuthTypeBasic:
		if settings.Basic.Username == "" || settings.Basic.Password == "" {
			return nil, fmt.Errorf("basic auth requires non-empty username and password")
		}
		challenge := fmt.Sprintf(`Basic realm=%q`, Realm)
		return guard(logger, config.AuthTypeBasic, challenge, basicCredentials(settings.Basic)), nil

	case config.AuthTypeAPIKey:
		keys := nonEmpty(settings.APIKeys)
		if len(keys) == 0 {
			return nil, fmt.Errorf("apikey auth requires at least one API key")
		}
		return guard(logger, config.AuthTypeAPIKey, "", apiKeyCredentials(keys)), nil

	default:
		return nil, fmt.Errorf("unknown auth type: %s", settings.Type)
	}
}

func guard(logger *slog.Logger, scheme, challenge string, check credentialCheck) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] || check(r) {
				next.ServeHTTP(w, r)
				return
			}
			logger.Warn("Rejected unauthenticated request",
				"scheme", scheme,
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr)
			if challenge != "" {
				w.Header().Set("WWW-Authenticate", challenge)
			}
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		})
	}
}

func basicCredentials(settings config.BasicAuthSettings) credentialCheck {
	return func(r *http.Request) bool {
		user, pass, ok := r.BasicAuth()
		if !ok {
			return false
		}
		userMatch := equal(user, settings.Username)
		passMatch := equal(pass, settings.Password)
		return userMatch && passMatch
	}
}

func apiKeyCredentials(keys []string) credentialCheck {
	return func(r *http.Request) bool {
		key := r.Header.Get(APIKeyHeader)
		if key == "" {
			return false
		}
		valid := false
		// No early exit: every key is compared.
		for _, k := range keys {
			if equal(key, k) {
				valid = true
			}
		}
		return valid
	}
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func nonEmpty(keys []string) []string {
	var out []string
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}
