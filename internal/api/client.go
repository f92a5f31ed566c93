package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bartdeslagmulder/now-cli/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultURL is the hosting API used when none is configured
const DefaultURL = "https://api.zeit.co"

// Client is the HTTP client for the hosting API
type Client struct {
	token        string
	baseURL      string
	teamID       string
	httpClient   *http.Client
	streamClient *http.Client
	logger       zerolog.Logger
}

// NewClient creates a new API client. teamID scopes every call when set.
func NewClient(token, baseURL, teamID string, logger zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{
		token:   token,
		baseURL: strings.TrimRight(baseURL, "/"),
		teamID:  teamID,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
		// event feeds stay open until the deployment is up
		streamClient: &http.Client{},
		logger:       logger,
	}
}

// TeamID returns the team the client is scoped to, if any
func (c *Client) TeamID() string {
	return c.teamID
}

func (c *Client) endpoint(path string, query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	if c.teamID != "" {
		query.Set("teamId", c.teamID)
	}
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("X-Request-Id", uuid.NewString())
	c.logger.Debug().Str("method", method).Str("path", path).Msg("api request")
	return req, nil
}

// doJSON performs a request with a JSON body and decodes a JSON response
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, nil, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseError(resp.StatusCode, respBody)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func parseError(status int, body []byte) error {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error != nil {
		er.Error.Status = status
		return er.Error
	}
	return &APIError{Status: status}
}

// CreateDeployment submits a deployment. The returned Missing lists the
// SHAs of files the server does not have yet.
func (c *Client) CreateDeployment(ctx context.Context, req *model.DeploymentRequest) (*model.Deployment, error) {
	var dep model.Deployment
	if err := c.doJSON(ctx, http.MethodPost, "/v2/now/deployments", req, &dep); err != nil {
		return nil, err
	}
	if dep.URL != "" && !strings.Contains(dep.URL, "://") {
		dep.URL = "https://" + dep.URL
	}
	return &dep, nil
}

// ListSecrets returns the secrets visible to the current scope
func (c *Client) ListSecrets(ctx context.Context) ([]model.Secret, error) {
	var resp secretsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v2/now/secrets", nil, &resp); err != nil {
		return nil, err
	}
	secrets := make([]model.Secret, len(resp.Secrets))
	for i, s := range resp.Secrets {
		secrets[i] = model.Secret{UID: s.UID, Name: s.Name}
	}
	return secrets, nil
}

// UploadFile sends the content of one file, addressed by its SHA-1
func (c *Client) UploadFile(ctx context.Context, file model.File, content io.Reader) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/v2/now/files", nil, content)
	if err != nil {
		return err
	}
	req.ContentLength = file.Size
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("x-now-digest", file.SHA)
	req.Header.Set("x-now-size", strconv.FormatInt(file.Size, 10))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload of %s failed: %w", file.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return parseError(resp.StatusCode, body)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// OpenEvents opens the build event feed of a deployment. A non-2xx answer
// is returned as *StatusError.
func (c *Client) OpenEvents(ctx context.Context, deploymentID string) (io.ReadCloser, error) {
	query := url.Values{"follow": {"1"}}
	req, err := c.newRequest(ctx, http.MethodGet, "/v1/now/deployments/"+url.PathEscape(deploymentID)+"/events", query, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("events request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, &StatusError{Status: resp.StatusCode}
	}
	return resp.Body, nil
}

// LogsEndpoint returns the websocket URL and headers for the live log feed
// of a deployment.
func (c *Client) LogsEndpoint(deploymentID string) (string, http.Header) {
	u := c.endpoint("/v2/now/deployments/"+url.PathEscape(deploymentID)+"/logs", nil)
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	return u, header
}
