package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"go.uber.org/zap"

	logpkg "github.com/kailas-cloud/lumina/internal/logger"
)

const bearerPrefix = "Bearer "

// openPaths never require a key: probes and scrapers run without one.
var openPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// BearerAuthMiddleware checks "Authorization: Bearer <key>" against apiKeys.
// An empty key list disables auth. The position of the matching key is added
// to the request logger as "api_key" so requests can be attributed without
// logging the secret.
func BearerAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	keys := make([][]byte, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, []byte(k))
		}
	}

	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := openPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			token, msg := bearerToken(r.Header.Get("Authorization"))
			if msg == "" {
				if idx := matchKey(keys, token); idx >= 0 {
					ctx := logpkg.With(r.Context(), zap.Int("api_key", idx))
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
				msg = "invalid api key"
			}

			logpkg.FromContext(r.Context()).Debug("request rejected", zap.String("reason", msg))
			writeError(w, http.StatusUnauthorized, codeUnauthorized, msg)
		})
	}
}

// bearerToken extracts the token, or returns a rejection message.
func bearerToken(header string) ([]byte, string) {
	switch {
	case header == "":
		return nil, "missing authorization header"
	case !strings.HasPrefix(header, bearerPrefix):
		return nil, "authorization header must use Bearer scheme"
	}
	return []byte(strings.TrimSpace(header[len(bearerPrefix):])), ""
}

// matchKey compares against every key so timing does not reveal which one matched.
func matchKey(keys [][]byte, token []byte) int {
	idx := -1
	for i, k := range keys {
		if subtle.ConstantTimeCompare(k, token) == 1 && idx < 0 {
			idx = i
		}
	}
	return idx
}
