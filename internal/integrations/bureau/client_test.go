package bureau

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Dan9191/bureau-scoring/internal/config"
	"github.com/Dan9191/bureau-scoring/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const signingKey = "test-signing-key"

type fakeBureau struct {
	tokenCalls  int32
	reportCalls int32
	delay       time.Duration
	status      int
	body        string
	expiresIn   int64
	tokenStatus int
}

func (f *fakeBureau) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.tokenCalls, 1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))

		claims := &jwt.RegisteredClaims{}
		_, err := jwt.ParseWithClaims(r.PostForm.Get("client_assertion"), claims, func(*jwt.Token) (interface{}, error) {
			return []byte(signingKey), nil
		})
		assert.NoError(t, err)
		assert.Equal(t, "bureau-scoring", claims.Issuer)
		assert.NotEmpty(t, claims.ID)

		if f.tokenStatus != 0 {
			http.Error(w, `{"error":"invalid_client"}`, f.tokenStatus)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "tok-1", "expires_in": f.expiresIn})
	})
	mux.HandleFunc("/v1/equifax/reports/41234567", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.reportCalls, 1)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		if f.delay > 0 {
			time.Sleep(f.delay)
		}
		w.WriteHeader(f.status)
		io.WriteString(w, f.body)
	})
	return mux
}

func newTestClient(url string, timeout time.Duration) *Client {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewClient(&config.Config{
		BureauURL:        url,
		BureauClientID:   "bureau-scoring",
		BureauSigningKey: signingKey,
		BureauTimeout:    timeout,
	}, log)
}

func TestClient_Fetch_Success(t *testing.T) {
	fake := &fakeBureau{status: http.StatusOK, body: `{"periodos":[]}`, expiresIn: 3600}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()
	c := newTestClient(srv.URL, time.Second)

	out := c.Fetch(context.Background(), models.ProviderEquifax, "41234567", true)
	require.NoError(t, out.Err)
	assert.True(t, out.Succeeded())
	assert.Equal(t, `{"periodos":[]}`, string(out.Body))

	out = c.Fetch(context.Background(), models.ProviderEquifax, "41234567", false)
	assert.True(t, out.Succeeded())
	assert.Equal(t, int32(1), atomic.LoadInt32(&fake.tokenCalls), "token is reused")
	assert.Equal(t, int32(2), atomic.LoadInt32(&fake.reportCalls))
}

func TestClient_Fetch_TokenLifetimeIsCapped(t *testing.T) {
	fake := &fakeBureau{status: http.StatusOK, body: `{}`, expiresIn: 86400}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()
	c := newTestClient(srv.URL, time.Second)

	now := time.Now()
	c.source.now = func() time.Time { return now }

	out := c.Fetch(context.Background(), models.ProviderEquifax, "41234567", false)
	require.True(t, out.Succeeded())

	tok, err := c.tokens.Token()
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok.AccessToken)
	assert.Equal(t, now.Add(maxTokenLifetime), tok.Expiry)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fake.tokenCalls))
}

func TestClient_Fetch_ExpiredTokenIsReplaced(t *testing.T) {
	// shorter than the reuse margin, so every token is already stale
	fake := &fakeBureau{status: http.StatusOK, body: `{}`, expiresIn: 5}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()
	c := newTestClient(srv.URL, time.Second)

	c.Fetch(context.Background(), models.ProviderEquifax, "41234567", false)
	c.Fetch(context.Background(), models.ProviderEquifax, "41234567", false)
	assert.Equal(t, int32(2), atomic.LoadInt32(&fake.tokenCalls))
	assert.Equal(t, int32(2), atomic.LoadInt32(&fake.reportCalls))
}

func TestClient_Fetch_UnauthorizedDropsToken(t *testing.T) {
	fake := &fakeBureau{status: http.StatusUnauthorized, body: `{"error":"token revoked"}`, expiresIn: 3600}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()
	c := newTestClient(srv.URL, time.Second)

	out := c.Fetch(context.Background(), models.ProviderEquifax, "41234567", false)
	assert.NoError(t, out.Err)
	assert.Equal(t, http.StatusUnauthorized, out.StatusCode)

	c.Fetch(context.Background(), models.ProviderEquifax, "41234567", false)
	assert.Equal(t, int32(2), atomic.LoadInt32(&fake.tokenCalls), "a rejected token is not reused")
}

func TestClient_Fetch_ErrorStatusKeepsBody(t *testing.T) {
	fake := &fakeBureau{status: http.StatusServiceUnavailable, body: `{"detail":"registry offline"}`, expiresIn: 60}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	out := newTestClient(srv.URL, time.Second).Fetch(context.Background(), models.ProviderEquifax, "41234567", false)
	assert.NoError(t, out.Err)
	assert.False(t, out.Succeeded())
	assert.Equal(t, http.StatusServiceUnavailable, out.StatusCode)
	assert.Contains(t, string(out.Body), "registry offline")
}

func TestClient_Fetch_Timeout(t *testing.T) {
	fake := &fakeBureau{status: http.StatusOK, body: `{}`, delay: 300 * time.Millisecond, expiresIn: 60}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	out := newTestClient(srv.URL, 100*time.Millisecond).Fetch(context.Background(), models.ProviderEquifax, "41234567", false)
	assert.Error(t, out.Err)
	assert.True(t, out.Timeout)
	assert.False(t, out.Succeeded())
}

func TestClient_Fetch_TokenRejected(t *testing.T) {
	fake := &fakeBureau{tokenStatus: http.StatusBadRequest}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	out := newTestClient(srv.URL, time.Second).Fetch(context.Background(), models.ProviderEquifax, "41234567", false)
	assert.Error(t, out.Err)
	assert.Equal(t, http.StatusUnauthorized, out.StatusCode)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fake.reportCalls))
}

func TestClient_Fetch_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	out := newTestClient(url, time.Second).Fetch(context.Background(), models.ProviderEquifax, "41234567", false)
	assert.Error(t, out.Err)
	assert.Equal(t, http.StatusUnauthorized, out.StatusCode, "the token exchange fails first")
}
