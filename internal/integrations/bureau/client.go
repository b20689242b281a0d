package bureau

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Dan9191/bureau-scoring/internal/config"
	"github.com/Dan9191/bureau-scoring/internal/models"
	"github.com/Dan9191/bureau-scoring/internal/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// Client fetches raw credit reports from the bureau gateway
type Client struct {
	baseURL string
	client  *http.Client
	tokens  *tokenCache
	source  *assertionSource
	log     *logrus.Logger
}

// NewClient initializes a new bureau client. Requests carry a bearer token
// obtained through a signed client assertion.
func NewClient(cfg *config.Config, log *logrus.Logger) *Client {
	base := strings.TrimRight(cfg.BureauURL, "/")
	source := &assertionSource{
		tokenURL:   base + "/oauth/token",
		clientID:   cfg.BureauClientID,
		audience:   cfg.BureauURL,
		signingKey: []byte(cfg.BureauSigningKey),
		client:     &http.Client{Timeout: cfg.BureauTimeout},
		now:        time.Now,
	}
	tokens := newTokenCache(source)
	return &Client{
		baseURL: base,
		client: &http.Client{
			Timeout:   cfg.BureauTimeout,
			Transport: &oauth2.Transport{Source: tokens, Base: http.DefaultTransport},
		},
		tokens: tokens,
		source: source,
		log:    log,
	}
}

// Fetch requests the report for a subject. It never retries and never returns
// an error: every failure is described by the outcome.
func (c *Client) Fetch(ctx context.Context, provider models.Provider, subjectID string, debug bool) models.UpstreamOutcome {
	logger := c.log.WithFields(logrus.Fields{"provider": provider, "subject": utils.MaskSubject(subjectID)})

	endpoint := fmt.Sprintf("%s/v1/%s/reports/%s", c.baseURL, url.PathEscape(string(provider)), url.PathEscape(subjectID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.UpstreamOutcome{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		var terr *tokenError
		if errors.As(err, &terr) {
			logger.Warnf("Failed to obtain bureau token: %v", terr)
			return models.UpstreamOutcome{StatusCode: http.StatusUnauthorized, Err: terr, Timeout: isTimeout(terr)}
		}
		logger.Warnf("Bureau request failed: %v", err)
		return models.UpstreamOutcome{Err: fmt.Errorf("request failed: %w", err), Timeout: isTimeout(err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.UpstreamOutcome{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err), Timeout: isTimeout(err)}
	}
	if resp.StatusCode == http.StatusUnauthorized {
		c.tokens.Invalidate()
	}

	logger.WithFields(logrus.Fields{
		"status":  resp.StatusCode,
		"elapsed": time.Since(start).String(),
	}).Info("Bureau report fetched")
	if debug {
		logger.Debugf("Bureau response body: %s", string(body))
	}

	return models.UpstreamOutcome{StatusCode: resp.StatusCode, Body: body}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
