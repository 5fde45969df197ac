// Package remote is the HTTP client for the orchestrator's REST surface.
// It supplies the adapter sources, the timeline's remote history and the
// operator actions.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"graphwatch/internal/adapter"
	"graphwatch/internal/domain"

	"golang.org/x/time/rate"
)

const (
	graphPath    = "/api/graph"
	pipelinePath = "/api/pipeline"
	historyPath  = "/api/graph/history"

	// DefaultTimeout bounds a single request
	DefaultTimeout = 10 * time.Second
	// DefaultActionRate is the sustained number of actions per second
	DefaultActionRate = 2
	// DefaultActionBurst is how many actions may be sent back to back
	DefaultActionBurst = 5

	maxErrorBody = 512
)

var (
	// ErrStatus is wrapped by every non-2xx response
	ErrStatus = errors.New("unexpected status")
	// ErrInvalidAction is returned for requests that fail local validation
	ErrInvalidAction = errors.New("invalid action")
)

// Options configures a Client
type Options struct {
	HTTPClient  *http.Client
	ActionRate  float64
	ActionBurst int
	Logger      *slog.Logger
}

// Client talks to one orchestrator base URL
type Client struct {
	baseURL *url.URL
	http    *http.Client
	actions *rate.Limiter
	logger  *slog.Logger
}

// New creates a client for baseURL, such as "http://localhost:8001"
func New(baseURL string, opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", baseURL)
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	if opts.ActionRate <= 0 {
		opts.ActionRate = DefaultActionRate
	}
	if opts.ActionBurst <= 0 {
		opts.ActionBurst = DefaultActionBurst
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Client{
		baseURL: u,
		http:    opts.HTTPClient,
		actions: rate.NewLimiter(rate.Limit(opts.ActionRate), opts.ActionBurst),
		logger:  opts.Logger.With("component", "remote"),
	}, nil
}

// FetchGraph retrieves the unified graph payload
func (c *Client) FetchGraph(ctx context.Context) (*domain.Graph, error) {
	var g domain.Graph
	if err := c.get(ctx, graphPath, nil, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// FetchPipeline retrieves the pipeline payload for mapping
func (c *Client) FetchPipeline(ctx context.Context) (*adapter.PipelinePayload, error) {
	var p adapter.PipelinePayload
	if err := c.get(ctx, pipelinePath, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

type historyResponse struct {
	Snapshots []domain.Snapshot `json:"snapshots"`
}

// FetchHistory asks the orchestrator for snapshots in [from, to]
func (c *Client) FetchHistory(ctx context.Context, from, to time.Time, interval time.Duration) ([]domain.Snapshot, error) {
	q := url.Values{}
	q.Set("from", from.UTC().Format(time.RFC3339))
	q.Set("to", to.UTC().Format(time.RFC3339))
	q.Set("interval", interval.String())

	var resp historyResponse
	if err := c.get(ctx, historyPath, q, &resp); err != nil {
		return nil, err
	}
	return resp.Snapshots, nil
}

// Do sends an operator action for one agent. A refusal by the orchestrator
// is returned as a result with Success false and a nil error.
func (c *Client) Do(ctx context.Context, req domain.ActionRequest) (domain.ActionResult, error) {
	if req.AgentID == "" {
		return domain.ActionResult{}, fmt.Errorf("%w: agent id is required", ErrInvalidAction)
	}
	if !req.Action.Valid() {
		return domain.ActionResult{}, fmt.Errorf("%w: unknown action %q", ErrInvalidAction, req.Action)
	}
	path := "/api/agents/" + url.PathEscape(req.AgentID) + "/action"
	return c.post(ctx, path, req)
}

// ResolveIncident asks the orchestrator to resolve an incident
func (c *Client) ResolveIncident(ctx context.Context, id string) (domain.ActionResult, error) {
	if id == "" {
		return domain.ActionResult{}, fmt.Errorf("%w: incident id is required", ErrInvalidAction)
	}
	return c.post(ctx, "/api/incidents/"+url.PathEscape(id)+"/resolve", nil)
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL.JoinPath(path)
	if query != nil {
		u.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("GET %s: decoding response: %w", path, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body any) (domain.ActionResult, error) {
	if err := c.actions.Wait(ctx); err != nil {
		return domain.ActionResult{}, fmt.Errorf("POST %s: %w", path, err)
	}

	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return domain.ActionResult{}, fmt.Errorf("encoding request: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL.JoinPath(path).String(), payload)
	if err != nil {
		return domain.ActionResult{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.ActionResult{}, fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return domain.ActionResult{}, fmt.Errorf("POST %s: %w", path, err)
	}

	var result domain.ActionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return domain.ActionResult{}, fmt.Errorf("POST %s: decoding response: %w", path, err)
	}
	if !result.Success {
		c.logger.Info("action refused", "path", path, "message", result.Message)
	}
	return result, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}
	return fmt.Errorf("%w: %d: %s", ErrStatus, resp.StatusCode, msg)
}
