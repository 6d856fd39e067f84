package handshake

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// OriginInterceptor vetoes handshakes from origins outside the allow list.
// Requests without an Origin header (non-browser clients) pass through.
type OriginInterceptor struct {
	allowed map[string]struct{}
}

var _ Interceptor = (*OriginInterceptor)(nil)

// NewOriginInterceptor builds an interceptor allowing exactly the given
// origins. Comparison is case-insensitive on the full origin.
func NewOriginInterceptor(origins ...string) *OriginInterceptor {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[strings.ToLower(o)] = struct{}{}
	}
	return &OriginInterceptor{allowed: allowed}
}

func (i *OriginInterceptor) Before(w http.ResponseWriter, r *http.Request, attrs map[string]any) (bool, error) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true, nil
	}
	if _, ok := i.allowed[strings.ToLower(origin)]; ok {
		return true, nil
	}
	http.Error(w, "origin not allowed", http.StatusForbidden)
	return false, nil
}

func (i *OriginInterceptor) After(w http.ResponseWriter, r *http.Request, outcome Outcome) error {
	return nil
}

// TokenInterceptor vetoes handshakes that do not carry the expected bearer
// token. Browsers cannot set headers on websocket connections, so the token
// is also accepted as the access_token query parameter.
type TokenInterceptor struct {
	token string
}

var _ Interceptor = (*TokenInterceptor)(nil)

// NewTokenInterceptor builds an interceptor requiring the given token.
func NewTokenInterceptor(token string) *TokenInterceptor {
	return &TokenInterceptor{token: token}
}

func (i *TokenInterceptor) Before(w http.ResponseWriter, r *http.Request, attrs map[string]any) (bool, error) {
	presented := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if presented == "" || presented == r.Header.Get("Authorization") {
		presented = r.URL.Query().Get("access_token")
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(i.token)) != 1 {
		http.Error(w, "invalid or missing token", http.StatusUnauthorized)
		return false, nil
	}
	return true, nil
}

func (i *TokenInterceptor) After(w http.ResponseWriter, r *http.Request, outcome Outcome) error {
	return nil
}

// HeaderInterceptor copies selected request headers into the attribute bag so
// the session handler can see them after the HTTP request is gone.
type HeaderInterceptor struct {
	keys []string
}

var _ Interceptor = (*HeaderInterceptor)(nil)

// NewHeaderInterceptor builds an interceptor capturing the given headers.
func NewHeaderInterceptor(keys ...string) *HeaderInterceptor {
	return &HeaderInterceptor{keys: keys}
}

func (i *HeaderInterceptor) Before(w http.ResponseWriter, r *http.Request, attrs map[string]any) (bool, error) {
	for _, key := range i.keys {
		if v := r.Header.Get(key); v != "" {
			attrs[key] = v
		}
	}
	return true, nil
}

func (i *HeaderInterceptor) After(w http.ResponseWriter, r *http.Request, outcome Outcome) error {
	return nil
}
