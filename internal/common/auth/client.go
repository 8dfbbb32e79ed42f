// internal/common/auth/client.go
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "loan-portal/internal/common/errors"
)

// Identity is the authenticated caller resolved from a bearer token.
type Identity struct {
	UserID   string   `json:"sub"`
	Username string   `json:"preferred_username"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
}

// introspectionResponse is the RFC 7662 token introspection payload.
type introspectionResponse struct {
	Active   bool   `json:"active"`
	Sub      string `json:"sub"`
	Username string `json:"preferred_username"`
	Email    string `json:"email"`
	RealmAccess struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
}

// KeycloakClient resolves bearer tokens against Keycloak's introspection
// endpoint using the client credentials of the service.
type KeycloakClient struct {
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	httpClient   *http.Client
}

// NewKeycloakClient creates a new instance of KeycloakClient.
func NewKeycloakClient(baseURL, realm, clientID, clientSecret string) *KeycloakClient {
	return &KeycloakClient{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// SetHTTPClient overrides the underlying HTTP client, used in tests.
func (k *KeycloakClient) SetHTTPClient(c *http.Client) {
	k.httpClient = c
}

// ResolveIdentity validates the bearer token and returns the caller identity.
// An inactive or malformed token yields a TOKEN_INVALID error; transport
// failures yield a retryable authentication error.
func (k *KeycloakClient) ResolveIdentity(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, apperrors.NewAuthenticationRequiredError("missing bearer token")
	}

	introspectURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token/introspect", k.baseURL, k.realm)

	data := url.Values{}
	data.Set("token", token)
	data.Set("client_id", k.clientID)
	data.Set("client_secret", k.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, introspectURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create introspection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return nil, &apperrors.StandardError{
			Code:      apperrors.ErrCodeTokenInvalid,
			Message:   "Failed to reach the authentication provider",
			Details:   err.Error(),
			Retryable: true,
			Timestamp: time.Now().UTC(),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, apperrors.NewTokenInvalidError(
			fmt.Sprintf("introspection failed with status %d: %s", resp.StatusCode, string(body)))
	}

	var introspection introspectionResponse
	if err := json.NewDecoder(resp.Body).Decode(&introspection); err != nil {
		return nil, apperrors.NewTokenInvalidError(fmt.Sprintf("failed to decode introspection response: %v", err))
	}

	if !introspection.Active {
		return nil, apperrors.NewTokenInvalidError("token is not active")
	}

	return &Identity{
		UserID:   introspection.Sub,
		Username: introspection.Username,
		Email:    introspection.Email,
		Roles:    introspection.RealmAccess.Roles,
	}, nil
}
