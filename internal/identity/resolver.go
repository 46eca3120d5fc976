// Package identity resolves bearer credentials against the auth provider.
package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"provenance-relay/internal/apperr"
	"provenance-relay/internal/util"

	"go.uber.org/zap"
)

// Principal is the authenticated caller
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// Resolver asks a Supabase-compatible auth endpoint who a token belongs to.
type Resolver struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewResolver creates a resolver for the provider at baseURL
func NewResolver(baseURL, anonKey string, timeout time.Duration) *Resolver {
	return &Resolver{
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     util.GetLogger(),
	}
}

// Resolve returns the principal for an Authorization header value. Any
// failure is reported as Unauthorized.
func (r *Resolver) Resolve(ctx context.Context, authorization string) (*Principal, error) {
	token, ok := BearerToken(authorization)
	if !ok {
		return nil, apperr.New(apperr.KindUnauthorized, "Missing authorization header")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnauthorized, err, "Unauthorized")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if r.anonKey != "" {
		req.Header.Set("apikey", r.anonKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.logger.Warn("Identity provider unreachable", zap.Error(err))
		return nil, apperr.Wrap(apperr.KindUnauthorized, err, "Unauthorized")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.New(apperr.KindUnauthorized, "Unauthorized")
	}

	var p Principal
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil || p.ID == "" {
		return nil, apperr.New(apperr.KindUnauthorized, "Unauthorized")
	}
	return &p, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
