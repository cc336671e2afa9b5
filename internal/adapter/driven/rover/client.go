// Package rover implements the RoverAPI port against the rover backend's
// REST surface.
package rover

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/helios-robotics/roverops/internal/domain/model"
	"github.com/helios-robotics/roverops/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RoverAPI = (*Client)(nil)

// Client talks to the rover backend over plain HTTP. It holds no credential
// state; callers pass a bearer token per request.
type Client struct {
	baseURL string
	http    *http.Client
	now     func() time.Time
}

// NewClient creates a Client for the given backend base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		now:     time.Now,
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client.
// Intended for testing against an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		now:     time.Now,
	}
}

// tokenEnvelope is the backend's token response for both login and refresh.
type tokenEnvelope struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"` // seconds
}

// detailBody is the backend's error response shape.
type detailBody struct {
	Detail string `json:"detail"`
}

// Login exchanges operator credentials for a token grant via the
// form-encoded /auth/token endpoint.
func (c *Client) Login(ctx context.Context, username, password string) (driven.TokenGrant, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/token",
		strings.NewReader(form.Encode()))
	if err != nil {
		return driven.TokenGrant{}, fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return driven.TokenGrant{}, fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return driven.TokenGrant{}, &model.AuthenticationError{
			Message: readDetail(resp.Body, model.DefaultAuthMessage),
		}
	}

	return c.decodeGrant(resp.Body)
}

// Register creates a new operator account. It does not log in.
func (c *Client) Register(ctx context.Context, username, email, password string) error {
	body, err := json.Marshal(map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	})
	if err != nil {
		return fmt.Errorf("encode register body: %w", err)
	}

	resp, err := c.postJSON(ctx, "/auth/register", "", body)
	if err != nil {
		return fmt.Errorf("register request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &model.RegistrationError{
			Message: readDetail(resp.Body, model.DefaultRegisterMessage),
		}
	}
	return nil
}

// Refresh exchanges a refresh token for a new grant. Any non-2xx response is
// a plain error; the caller treats every refresh failure as unrecoverable.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (driven.TokenGrant, error) {
	body, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return driven.TokenGrant{}, fmt.Errorf("encode refresh body: %w", err)
	}

	resp, err := c.postJSON(ctx, "/auth/refresh", "", body)
	if err != nil {
		return driven.TokenGrant{}, fmt.Errorf("refresh request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return driven.TokenGrant{}, fmt.Errorf("refresh rejected with status %d", resp.StatusCode)
	}

	return c.decodeGrant(resp.Body)
}

// SendTeleop posts one drive command. The response body is irrelevant to
// correctness; only a transport failure or error status is reported.
func (c *Client) SendTeleop(ctx context.Context, token string, direction model.Direction) error {
	body, err := json.Marshal(map[string]string{"direction": string(direction)})
	if err != nil {
		return fmt.Errorf("encode teleop body: %w", err)
	}

	resp, err := c.postJSON(ctx, "/teleop", token, body)
	if err != nil {
		return fmt.Errorf("teleop request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("teleop rejected with status %d", resp.StatusCode)
	}
	return nil
}

// FetchMapSnapshot retrieves the current map image.
func (c *Client) FetchMapSnapshot(ctx context.Context, token string) (driven.MapSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/map_snapshot", nil)
	if err != nil {
		return driven.MapSnapshot{}, fmt.Errorf("build map request: %w", err)
	}
	setBearer(req, token)

	resp, err := c.http.Do(req)
	if err != nil {
		return driven.MapSnapshot{}, fmt.Errorf("map request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return driven.MapSnapshot{}, fmt.Errorf("map snapshot rejected with status %d", resp.StatusCode)
	}

	var snap struct {
		Status string `json:"status"`
		Image  string `json:"image"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return driven.MapSnapshot{}, fmt.Errorf("decode map snapshot: %w", err)
	}
	return driven.MapSnapshot{Status: snap.Status, Image: snap.Image}, nil
}

// ControlSlam drives the backend SLAM process and returns its reported state.
func (c *Client) ControlSlam(ctx context.Context, token string, action model.SlamAction) (string, error) {
	body, err := json.Marshal(map[string]string{"action": string(action)})
	if err != nil {
		return "", fmt.Errorf("encode slam body: %w", err)
	}

	resp, err := c.postJSON(ctx, "/slam", token, body)
	if err != nil {
		return "", fmt.Errorf("slam request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("slam control rejected with status %d", resp.StatusCode)
	}

	var out struct {
		Status string `json:"status"`
		State  string `json:"state"`
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode slam response: %w", err)
	}
	if out.Status != "ok" {
		if out.Detail != "" {
			return "", fmt.Errorf("slam control failed: %s", out.Detail)
		}
		return "", fmt.Errorf("slam control failed with status %q", out.Status)
	}
	return out.State, nil
}

// Health probes the backend liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("health request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend unhealthy, status %d", resp.StatusCode)
	}
	return nil
}

// postJSON issues a JSON POST to the given path. An empty token sends the
// request unauthenticated.
func (c *Client) postJSON(ctx context.Context, path, token string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	setBearer(req, token)
	return c.http.Do(req)
}

// decodeGrant parses a token envelope, resolving the relative expiry against
// the local clock.
func (c *Client) decodeGrant(body io.Reader) (driven.TokenGrant, error) {
	var env tokenEnvelope
	if err := json.NewDecoder(body).Decode(&env); err != nil {
		return driven.TokenGrant{}, fmt.Errorf("decode token envelope: %w", err)
	}
	if env.AccessToken == "" || env.RefreshToken == "" {
		return driven.TokenGrant{}, fmt.Errorf("token envelope missing tokens")
	}
	return driven.TokenGrant{
		AccessToken:  env.AccessToken,
		RefreshToken: env.RefreshToken,
		ExpiresAt:    c.now().Add(time.Duration(env.ExpiresIn) * time.Second),
	}, nil
}

// readDetail extracts the backend's error detail, falling back to def when
// the body is not the expected JSON shape.
func readDetail(body io.Reader, def string) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return def
	}
	var d detailBody
	if err := json.Unmarshal(data, &d); err != nil || d.Detail == "" {
		return def
	}
	return d.Detail
}

func setBearer(req *http.Request, token string) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}
