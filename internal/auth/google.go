// Package auth is the command-surface glue to an external identity provider.
// It carries no data-model or storage obligations: the core never depends on
// its outcome beyond a future real connector consuming the access token. The
// provider interaction is mocked pending a real OIDC flow.
package auth

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// User is the authenticated-user identity returned by the provider.
type User struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
}

const authorizeEndpoint = "https://accounts.google.com/o/oauth2/v2/auth"

// Service manages the login flow and the locally persisted access token.
// Safe for concurrent use.
type Service struct {
	tokenPath string
	mu        sync.Mutex
}

// NewService creates an auth Service persisting its token under baseDir.
func NewService(baseDir string) *Service {
	return &Service{
		tokenPath: filepath.Join(baseDir, "auth", "token"),
	}
}

// StartLogin begins a login flow: it returns the provider authorize URL the
// user should open and the state value the redirect must echo back.
func (s *Service) StartLogin() (authURL string, state string, err error) {
	state = uuid.New().String()

	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("scope", "openid email profile")
	q.Set("state", state)

	return authorizeEndpoint + "?" + q.Encode(), state, nil
}

// ExchangeCode exchanges a short-lived authorization code for an access token
// and persists the token for later use. The exchange is mocked: no real
// provider round-trip happens yet.
func (s *Service) ExchangeCode(code string) (string, error) {
	if strings.TrimSpace(code) == "" {
		return "", fmt.Errorf("empty authorization code")
	}

	token := "mock-token-for-" + code

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.tokenPath), 0700); err != nil {
		return "", fmt.Errorf("creating auth directory: %w", err)
	}
	if err := os.WriteFile(s.tokenPath, []byte(token), 0600); err != nil {
		return "", fmt.Errorf("persisting token: %w", err)
	}

	return token, nil
}

// Token returns the persisted access token. ok is false when not logged in.
func (s *Service) Token() (token string, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.tokenPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading token: %w", err)
	}
	return string(data), true, nil
}

// UserInfo returns the identity behind an access token. Mocked: a real
// implementation verifies the token against the provider's userinfo endpoint.
func (s *Service) UserInfo(token string) (*User, error) {
	if token == "" {
		return nil, fmt.Errorf("not authenticated")
	}

	return &User{
		Email: "test@example.com",
		Name:  "Test User",
	}, nil
}

// Logout discards the persisted token. Logging out while logged out is a no-op.
func (s *Service) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.tokenPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing token: %w", err)
	}
	return nil
}
