package refresh

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"
)

// HTTPRefresher renews sessions against the auth API's refresh endpoint.
// The refresh id lives in an httpOnly cookie managed by the client's jar;
// the rotated successor arrives the same way, so this type never sees it.
type HTTPRefresher struct {
	client   *http.Client
	endpoint string
}

// NewHTTPRefresher creates a refresher for the given refresh endpoint URL.
// The provided client must carry a cookie jar holding the refresh cookie;
// pass nil to get a client with a fresh jar.
func NewHTTPRefresher(endpoint string, client *http.Client) (*HTTPRefresher, error) {
	if client == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		client = &http.Client{Jar: jar, Timeout: 10 * time.Second}
	}
	if client.Jar == nil {
		return nil, fmt.Errorf("refresh: http client must have a cookie jar")
	}

	return &HTTPRefresher{client: client, endpoint: endpoint}, nil
}

// Client exposes the underlying HTTP client so callers can log in through
// the same jar before refreshing.
func (r *HTTPRefresher) Client() *http.Client {
	return r.client
}

type sessionBody struct {
	Ok              bool      `json:"ok"`
	AccessToken     string    `json:"access_token"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Refresh posts to the refresh endpoint and maps terminal rejections onto
// the package's sentinel errors.
func (r *HTTPRefresher) Refresh(ctx context.Context) (Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, nil)
	if err != nil {
		return Session{}, fmt.Errorf("failed to build refresh request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return Session{}, fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		var body sessionBody
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return Session{}, fmt.Errorf("failed to decode refresh response: %w", err)
		}
		return Session{AccessToken: body.AccessToken, ExpiresAt: body.AccessExpiresAt}, nil
	}

	if resp.StatusCode == http.StatusUnauthorized {
		var body errorBody
		_ = json.NewDecoder(resp.Body).Decode(&body)
		switch body.Error {
		case "refresh_replayed":
			return Session{}, fmt.Errorf("%w", ErrReplayed)
		default:
			return Session{}, fmt.Errorf("%s: %w", body.Error, ErrSessionRevoked)
		}
	}

	return Session{}, fmt.Errorf("refresh endpoint returned status %d", resp.StatusCode)
}
