package bureau

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// maxTokenLifetime caps how long an access token is reused
const maxTokenLifetime = 3500 * time.Second

const assertionLifetime = 5 * time.Minute

// tokenError marks a failed token exchange, as opposed to a failed report request
type tokenError struct {
	err error
}

func (e *tokenError) Error() string {
	return "token exchange failed: " + e.err.Error()
}

func (e *tokenError) Unwrap() error {
	return e.err
}

// assertionSource exchanges a signed client assertion for an access token
type assertionSource struct {
	tokenURL   string
	clientID   string
	audience   string
	signingKey []byte
	client     *http.Client
	now        func() time.Time
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Token implements oauth2.TokenSource
func (s *assertionSource) Token() (*oauth2.Token, error) {
	tok, err := s.exchange()
	if err != nil {
		return nil, &tokenError{err: err}
	}
	return tok, nil
}

func (s *assertionSource) exchange() (*oauth2.Token, error) {
	assertion, err := s.clientAssertion()
	if err != nil {
		return nil, err
	}
	form := url.Values{
		"grant_type":       {"client_credentials"},
		"client_assertion": {assertion},
	}
	req, err := http.NewRequest(http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected token status code: %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("token response has no access_token")
	}

	lifetime := time.Duration(tr.ExpiresIn) * time.Second
	if lifetime <= 0 || lifetime > maxTokenLifetime {
		lifetime = maxTokenLifetime
	}
	return &oauth2.Token{
		AccessToken: tr.AccessToken,
		TokenType:   "Bearer",
		Expiry:      s.now().Add(lifetime),
	}, nil
}

func (s *assertionSource) clientAssertion() (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    s.clientID,
		Subject:   s.clientID,
		Audience:  jwt.ClaimStrings{s.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(assertionLifetime)),
		ID:        uuid.NewString(),
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign client assertion: %w", err)
	}
	return signed, nil
}

// tokenCache reuses tokens until they expire. Invalidate starts over with a fresh
// reuse source so the next request exchanges a new assertion.
type tokenCache struct {
	base oauth2.TokenSource

	mu  sync.Mutex
	src oauth2.TokenSource
}

func newTokenCache(base oauth2.TokenSource) *tokenCache {
	return &tokenCache{base: base, src: oauth2.ReuseTokenSource(nil, base)}
}

// Token implements oauth2.TokenSource
func (c *tokenCache) Token() (*oauth2.Token, error) {
	c.mu.Lock()
	src := c.src
	c.mu.Unlock()
	return src.Token()
}

// Invalidate drops the cached token
func (c *tokenCache) Invalidate() {
	c.mu.Lock()
	c.src = oauth2.ReuseTokenSource(nil, c.base)
	c.mu.Unlock()
}
