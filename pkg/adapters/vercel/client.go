// Package vercel implements the keyword Syncer on top of the Vercel REST API:
// the keywords are written to a project environment variable, then the
// project's linked git repository is redeployed so the new value takes effect.
package vercel

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

	"github.com/aretw0/tripwire/internal/logging"
	"github.com/aretw0/tripwire/pkg/domain"
	"github.com/aretw0/tripwire/pkg/keywords"
	"github.com/aretw0/tripwire/pkg/ports"
)

const (
	DefaultBaseURL = "https://api.vercel.com"
	DefaultEnvKey  = "KEYWORDS"
	DefaultTimeout = 15 * time.Second

	maxResponseBytes int64 = 1 << 20
)

// DefaultTargets are the environments the keyword variable is written to.
var DefaultTargets = []string{"development", "preview", "production"}

// HTTPDoer is the subset of *http.Client used by the Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client persists keywords to a Vercel project and redeploys it.
type Client struct {
	token       string
	projectID   string
	teamID      string
	baseURL     string
	envKey      string
	targets     []string
	fallbackRef string
	timeout     time.Duration
	http        HTTPDoer
	logger      *slog.Logger
}

var _ ports.Syncer = (*Client)(nil)

// Option configures the Client.
type Option func(*Client)

// WithTeamID scopes every request to a team.
func WithTeamID(id string) Option {
	return func(c *Client) {
		c.teamID = id
	}
}

// WithBaseURL overrides the API endpoint (used by tests).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithEnvKey sets the environment variable holding the keywords.
func WithEnvKey(key string) Option {
	return func(c *Client) {
		if key != "" {
			c.envKey = key
		}
	}
}

// WithTargets sets the environments the variable is written to.
func WithTargets(targets ...string) Option {
	return func(c *Client) {
		if len(targets) > 0 {
			c.targets = targets
		}
	}
}

// WithFallbackRef is the git ref deployed when the project link has no production branch.
func WithFallbackRef(ref string) Option {
	return func(c *Client) {
		if ref != "" {
			c.fallbackRef = ref
		}
	}
}

// WithTimeout bounds each API request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.http = doer
		}
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Client for the given API token and project.
func NewClient(token, projectID string, opts ...Option) *Client {
	c := &Client{
		token:       token,
		projectID:   projectID,
		baseURL:     DefaultBaseURL,
		envKey:      DefaultEnvKey,
		targets:     DefaultTargets,
		fallbackRef: "master",
		timeout:     DefaultTimeout,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	return c
}

type envEntry struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

type projectLink struct {
	Type             string          `json:"type"`
	RepoID           json.RawMessage `json:"repoId"`
	ProductionBranch string          `json:"productionBranch"`
}

type project struct {
	Name string       `json:"name"`
	Link *projectLink `json:"link"`
}

type gitSource struct {
	Type   string          `json:"type"`
	RepoID json.RawMessage `json:"repoId"`
	Ref    string          `json:"ref"`
}

type deploymentRequest struct {
	Name      string    `json:"name"`
	Project   string    `json:"project"`
	Target    string    `json:"target"`
	GitSource gitSource `json:"gitSource"`
}

type deploymentResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Persist writes the keywords to the env entry and, if that worked, redeploys
// the linked repository. The returned *domain.SyncError names the failed step.
func (c *Client) Persist(ctx context.Context, kws []string) error {
	envID, err := c.findEnv(ctx)
	if err != nil {
		return err
	}
	if err := c.writeEnv(ctx, envID, keywords.Join(kws)); err != nil {
		return err
	}
	c.logger.Info("Keyword env updated", "project_id", c.projectID, "env_id", envID, "keywords", len(kws))

	proj, err := c.linkedProject(ctx)
	if err != nil {
		return err
	}
	return c.deploy(ctx, proj)
}

func (c *Client) findEnv(ctx context.Context) (string, error) {
	var body struct {
		Envs []envEntry `json:"envs"`
	}
	if f := c.call(ctx, "list env", http.MethodGet, c.projectPath("/env"), nil, &body); f != nil {
		return "", syncError(domain.SyncConfigMissing, f.detail, f.cause)
	}
	for _, env := range body.Envs {
		if env.Key == c.envKey && env.ID != "" {
			return env.ID, nil
		}
	}
	return "", syncError(domain.SyncConfigMissing,
		fmt.Sprintf("no %s entry in project environment", c.envKey), nil)
}

func (c *Client) writeEnv(ctx context.Context, envID, value string) error {
	payload := map[string]any{
		"key":    c.envKey,
		"value":  value,
		"target": c.targets,
	}
	path := c.projectPath("/env/" + url.PathEscape(envID))
	if f := c.call(ctx, "update env", http.MethodPatch, path, payload, nil); f != nil {
		return syncError(domain.SyncWriteFailed, f.detail, f.cause)
	}
	return nil
}

func (c *Client) linkedProject(ctx context.Context) (*project, error) {
	var proj project
	if f := c.call(ctx, "get project", http.MethodGet, c.projectPath(""), nil, &proj); f != nil {
		return nil, syncError(domain.SyncRedeployUnavailable, f.detail, f.cause)
	}
	if proj.Link == nil || proj.Link.Type == "" || emptyJSON(proj.Link.RepoID) {
		return nil, syncError(domain.SyncRedeployUnavailable, "project has no linked git repository", nil)
	}
	return &proj, nil
}

func (c *Client) deploy(ctx context.Context, proj *project) error {
	ref := proj.Link.ProductionBranch
	if ref == "" {
		ref = c.fallbackRef
	}
	name := proj.Name
	if name == "" {
		name = c.projectID
	}
	req := deploymentRequest{
		Name:    name,
		Project: c.projectID,
		Target:  "production",
		GitSource: gitSource{
			Type:   proj.Link.Type,
			RepoID: proj.Link.RepoID,
			Ref:    ref,
		},
	}
	var resp deploymentResponse
	if f := c.call(ctx, "create deployment", http.MethodPost, "/v13/deployments", req, &resp); f != nil {
		return syncError(domain.SyncDeployFailed, f.detail, f.cause)
	}
	c.logger.Info("Redeploy triggered", "project_id", c.projectID, "deployment_id", resp.ID, "url", resp.URL, "ref", ref)
	return nil
}

func (c *Client) projectPath(suffix string) string {
	return "/v9/projects/" + url.PathEscape(c.projectID) + suffix
}

// failure is a failed API call: a short detail for the operator plus the
// go-errors envelope as cause.
type failure struct {
	detail string
	cause  error
}

func (c *Client) call(ctx context.Context, op, method, path string, in, out any) *failure {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.baseURL + path
	if c.teamID != "" {
		u += "?teamId=" + url.QueryEscape(c.teamID)
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return &failure{detail: op + ": encode request: " + err.Error(), cause: err}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return &failure{detail: op + ": " + err.Error(), cause: transportError(op, err, TextCodeTransport)}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return &failure{detail: op + ": " + unwrapURLError(err).Error(), cause: transportError(op, err, TextCodeTransport)}
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return &failure{detail: op + ": read response: " + err.Error(), cause: transportError(op, err, TextCodeTransport)}
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		apiMsg := apiErrorMessage(data)
		c.logger.Warn("Vercel API call failed", "operation", op, "status", res.StatusCode, "message", apiMsg)
		return &failure{
			detail: describeStatus(op, res.StatusCode, apiMsg),
			cause:  statusError(op, res.StatusCode, apiMsg),
		}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return &failure{detail: op + ": malformed response", cause: transportError(op, err, TextCodeDecode)}
		}
	}
	return nil
}

func apiErrorMessage(data []byte) string {
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	if body.Error.Message != "" {
		return body.Error.Message
	}
	return body.Error.Code
}

func emptyJSON(raw json.RawMessage) bool {
	switch strings.TrimSpace(string(raw)) {
	case "", "null", `""`, "0":
		return true
	}
	return false
}

func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}
