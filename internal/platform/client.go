package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/helix-imaging/launchpad/internal/observability"
)

// DefaultTimeout is the per-request timeout for platform API calls.
const DefaultTimeout = 30 * time.Second

// Client is a typed HTTP client for the platform API. It is safe for
// concurrent use; resolved application versions are cached per process.
type Client struct {
	baseURL string
	http    *http.Client
	creds   CredentialProvider
	log     observability.Logger

	mu           sync.Mutex
	versionCache map[string]*ApplicationVersion
}

// NewClient creates a platform API client rooted at baseURL.
func NewClient(baseURL string, creds CredentialProvider, log observability.Logger) *Client {
	return &Client{
		baseURL:      baseURL,
		http:         &http.Client{Timeout: DefaultTimeout},
		creds:        creds,
		log:          log.Named("platform"),
		versionCache: map[string]*ApplicationVersion{},
	}
}

type apiError struct {
	Detail string `json:"detail"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	token, err := c.creds.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransientError{Op: method + " " + path, Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &NotFoundError{Resource: path}
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		var ae apiError
		_ = json.NewDecoder(resp.Body).Decode(&ae)
		if ae.Detail == "" {
			ae.Detail = resp.Status
		}
		return &ValidationError{Message: ae.Detail}
	case resp.StatusCode >= 400:
		return &TransientError{Op: method + " " + path, Cause: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

// listPage fetches one page of a listing endpoint. A not-found response maps
// to an End result: empty on page one, "items gathered so far" on later pages.
func listPage[T any](c *Client, ctx context.Context, path string, query url.Values, page, pageSize int) PageResult[T] {
	q := url.Values{}
	for k, vs := range query {
		q[k] = vs
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))

	var items []T
	if err := c.do(ctx, http.MethodGet, path, q, nil, &items); err != nil {
		if IsNotFound(err) {
			return PageResult[T]{End: true}
		}
		return PageResult[T]{Err: err}
	}
	return PageResult[T]{Items: items}
}

// Applications lists all applications visible to the caller.
func (c *Client) Applications(ctx context.Context) ([]Application, error) {
	return Collect(func(page, pageSize int) PageResult[Application] {
		return listPage[Application](c, ctx, "/v1/applications", nil, page, pageSize)
	}, DefaultPageSize)
}

// Application fetches one application by id.
func (c *Client) Application(ctx context.Context, applicationID string) (*Application, error) {
	apps, err := c.Applications(ctx)
	if err != nil {
		return nil, err
	}
	for i := range apps {
		if apps[i].ApplicationID == applicationID {
			return &apps[i], nil
		}
	}
	return nil, &NotFoundError{Resource: "application", ID: applicationID}
}

// Versions lists all versions of an application.
func (c *Client) Versions(ctx context.Context, applicationID string) ([]ApplicationVersion, error) {
	path := "/v1/applications/" + url.PathEscape(applicationID) + "/versions"
	return Collect(func(page, pageSize int) PageResult[ApplicationVersion] {
		return listPage[ApplicationVersion](c, ctx, path, nil, page, pageSize)
	}, DefaultPageSize)
}

// ResolveVersion resolves an application version id to its full declaration.
// A bare application id resolves to the latest version by semantic-version
// ordering. Malformed ids fail before any network call. Results are cached
// per process since versions are immutable once published.
func (c *Client) ResolveVersion(ctx context.Context, id string) (*ApplicationVersion, error) {
	applicationID := id
	if IsVersionID(id) {
		parsedID, _, err := ParseVersionID(id)
		if err != nil {
			return nil, err
		}
		applicationID = parsedID
	}

	c.mu.Lock()
	if v, ok := c.versionCache[id]; ok {
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	versions, err := c.Versions(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	var resolved *ApplicationVersion
	if IsVersionID(id) {
		for i := range versions {
			if versions[i].ApplicationVersionID == id {
				resolved = &versions[i]
				break
			}
		}
		if resolved == nil {
			return nil, &NotFoundError{Resource: "application version", ID: id}
		}
	} else {
		resolved, err = LatestVersion(applicationID, versions)
		if err != nil {
			return nil, err
		}
	}

	c.mu.Lock()
	c.versionCache[id] = resolved
	c.versionCache[resolved.ApplicationVersionID] = resolved
	c.mu.Unlock()
	return resolved, nil
}

// Runs lists application runs, optionally filtered to one application version.
func (c *Client) Runs(ctx context.Context, applicationVersionID string) ([]ApplicationRun, error) {
	query := url.Values{}
	if applicationVersionID != "" {
		query.Set("application_version_id", applicationVersionID)
	}
	return Collect(func(page, pageSize int) PageResult[ApplicationRun] {
		return listPage[ApplicationRun](c, ctx, "/v1/runs", query, page, pageSize)
	}, DefaultPageSize)
}

// Run fetches one run by id.
func (c *Client) Run(ctx context.Context, runID string) (*ApplicationRun, error) {
	var run ApplicationRun
	err := c.do(ctx, http.MethodGet, "/v1/runs/"+url.PathEscape(runID), nil, nil, &run)
	if err != nil {
		if IsNotFound(err) {
			return nil, &NotFoundError{Resource: "run", ID: runID}
		}
		return nil, err
	}
	return &run, nil
}

// CreateRun submits a run creation request and returns the created run handle.
func (c *Client) CreateRun(ctx context.Context, req RunCreationRequest) (*ApplicationRun, error) {
	var resp RunCreationResponse
	if err := c.do(ctx, http.MethodPost, "/v1/runs", nil, req, &resp); err != nil {
		return nil, err
	}
	c.log.Info("created application run",
		observability.String("application_run_id", resp.ApplicationRunID),
		observability.String("application_version_id", req.ApplicationVersionID),
		observability.Int("items", len(req.Items)))
	return &ApplicationRun{
		ApplicationRunID:     resp.ApplicationRunID,
		ApplicationVersionID: req.ApplicationVersionID,
		Status:               RunStatusReceived,
	}, nil
}

// CancelRun requests cancellation of a run. The status change is observed on
// the next poll, not reflected locally.
func (c *Client) CancelRun(ctx context.Context, runID string) error {
	err := c.do(ctx, http.MethodPost, "/v1/runs/"+url.PathEscape(runID)+"/cancel", nil, nil, nil)
	if err != nil && IsNotFound(err) {
		return &NotFoundError{Resource: "run", ID: runID}
	}
	return err
}

// RunResults lists the items of a run with their output artifacts.
func (c *Client) RunResults(ctx context.Context, runID string) ([]ItemResult, error) {
	path := "/v1/runs/" + url.PathEscape(runID) + "/results"
	return Collect(func(page, pageSize int) PageResult[ItemResult] {
		return listPage[ItemResult](c, ctx, path, nil, page, pageSize)
	}, DefaultPageSize)
}
