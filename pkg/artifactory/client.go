// Package artifactory talks to an Artifactory-compatible binary repository
// over its REST API: AQL catalog queries, repository enumeration, and
// artifact download/upload.
package artifactory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// ServerProfile identifies one server and the credential used against it.
// Token takes precedence over username/password when both are set.
// Immutable after construction.
type ServerProfile struct {
	Name     string
	URL      string
	Token    string
	Username string
	Password string
}

// Item is one object record returned by an AQL query.
type Item struct {
	Repo   string `json:"repo"`
	Path   string `json:"path"`
	Name   string `json:"name"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// FullPath joins the AQL directory and name fields. AQL uses "." for items
// at the repository root.
func (i Item) FullPath() string {
	if i.Path == "" || i.Path == "." {
		return i.Name
	}
	return i.Path + "/" + i.Name
}

// QueryPage is one page of catalog records. Total is the server-reported
// record count for the whole repository, 0 when the server omits it.
type QueryPage struct {
	Items []Item
	Total int64
}

// Repository is one repository entry from the enumeration API.
type Repository struct {
	Key         string `json:"key"`
	Type        string `json:"type"`
	PackageType string `json:"packageType"`
	URL         string `json:"url"`
}

// Client issues authenticated requests against one server. Requests are
// retried per the RetryPolicy; auth failures and non-rate-limit 4xx abort
// immediately.
type Client struct {
	profile ServerProfile
	http    *retryablehttp.Client
	logger  *zap.Logger
}

// Opt customizes a Client.
type Opt func(*Client)

// WithHTTPClient swaps the underlying transport, used by tests.
func WithHTTPClient(inner *http.Client) Opt {
	return func(c *Client) {
		c.http.HTTPClient = inner
	}
}

// NewClient builds a client for the given server.
func NewClient(profile ServerProfile, policy RetryPolicy, timeout time.Duration, logger *zap.Logger, opts ...Opt) *Client {
	rc := &retryablehttp.Client{
		HTTPClient:   &http.Client{Timeout: timeout},
		RetryMax:     policy.MaxAttempts,
		RetryWaitMin: policy.WaitMin,
		RetryWaitMax: policy.WaitMax,
		CheckRetry:   policy.Retryable,
		Backoff:      policy.Backoff,
		Logger:       &retryableLogger{inner: logger},
	}

	c := &Client{
		profile: profile,
		http:    rc,
		logger:  logger.With(zap.String("server", profile.Name)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Profile returns the server profile this client was built with.
func (c *Client) Profile() ServerProfile {
	return c.profile
}

// retryableLogger adapts zap to the retryablehttp.LeveledLogger interface.
type retryableLogger struct {
	inner *zap.Logger
}

func (l *retryableLogger) Error(msg string, args ...any) { l.inner.Sugar().Errorw(msg, args...) }
func (l *retryableLogger) Info(msg string, args ...any)  { l.inner.Sugar().Infow(msg, args...) }
func (l *retryableLogger) Warn(msg string, args ...any)  { l.inner.Sugar().Warnw(msg, args...) }
func (l *retryableLogger) Debug(msg string, args ...any) { l.inner.Sugar().Debugw(msg, args...) }

func (c *Client) setAuth(req *retryablehttp.Request) {
	if c.profile.Token != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimPrefix(c.profile.Token, "Bearer "))
		return
	}
	if c.profile.Username != "" {
		req.SetBasicAuth(c.profile.Username, c.profile.Password)
	}
}

func (c *Client) do(req *retryablehttp.Request) (*http.Response, error) {
	c.setAuth(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s %s: %w", req.Method, req.URL.Path,
			&NetworkError{Server: c.profile.Name, Err: err})
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		resp.Body.Close()
		return nil, &AuthError{Server: c.profile.Name, Status: resp.StatusCode}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, &ServerError{
			Server: c.profile.Name,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(body)),
		}
	}
	return resp, nil
}

func (c *Client) apiURL(parts ...string) string {
	base := strings.TrimSuffix(c.profile.URL, "/")
	return base + "/artifactory/" + strings.Join(parts, "/")
}

type aqlResponse struct {
	Results []Item `json:"results"`
	Range   struct {
		StartPos int64 `json:"start_pos"`
		EndPos   int64 `json:"end_pos"`
		Total    int64 `json:"total"`
	} `json:"range"`
}

// Query fetches up to limit object records for repo starting at offset,
// ordered by path so pagination is stable across requests.
func (c *Client) Query(ctx context.Context, repo string, offset, limit int) (*QueryPage, error) {
	aql := fmt.Sprintf(
		`items.find({"repo": %q}).include("repo","path","name","sha256","size").sort({"$asc": ["path","name"]}).offset(%d).limit(%d)`,
		repo, offset, limit,
	)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.apiURL("api/search/aql"), strings.NewReader(aql))
	if err != nil {
		return nil, fmt.Errorf("build aql request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var parsed aqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode aql response: %w", err)
	}

	return &QueryPage{Items: parsed.Results, Total: parsed.Range.Total}, nil
}

// Repositories enumerates repositories, optionally filtered by type
// (local, remote, virtual, federated).
func (c *Client) Repositories(ctx context.Context, repoType string) ([]Repository, error) {
	endpoint := c.apiURL("api/repositories")
	if repoType != "" {
		endpoint += "?type=" + url.QueryEscape(repoType)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build repositories request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var repos []Repository
	if err := json.NewDecoder(resp.Body).Decode(&repos); err != nil {
		return nil, fmt.Errorf("decode repositories response: %w", err)
	}
	return repos, nil
}

// Download fetches repo/path into localPath, creating parent directories.
func (c *Client) Download(ctx context.Context, repo, path, localPath string) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.itemURL(repo, path), nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	out, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create staging file: %w", err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(localPath)
		return fmt.Errorf("write staging file: %w", err)
	}
	return out.Close()
}

// Upload deploys localPath to repo/path. When sha256 is known it is sent as
// a checksum header so the server can verify the deposit.
func (c *Client) Upload(ctx context.Context, repo, path, localPath, sha256 string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open staging file: %w", err)
	}
	defer file.Close()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPut, c.itemURL(repo, path), file)
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	if sha256 != "" {
		req.Header.Set("X-Checksum-Sha256", sha256)
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

type storageInfo struct {
	Checksums struct {
		SHA256 string `json:"sha256"`
	} `json:"checksums"`
}

// ItemSHA256 returns the server-side checksum of repo/path.
func (c *Client) ItemSHA256(ctx context.Context, repo, path string) (string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.apiURL("api/storage", repo, escapePath(path)), nil)
	if err != nil {
		return "", fmt.Errorf("build storage request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var info storageInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("decode storage response: %w", err)
	}
	return info.Checksums.SHA256, nil
}

// ItemURL returns the direct download/deploy URL for repo/path on server.
func ItemURL(profile ServerProfile, repo, path string) string {
	base := strings.TrimSuffix(profile.URL, "/")
	return base + "/artifactory/" + repo + "/" + escapePath(path)
}

func (c *Client) itemURL(repo, path string) string {
	return ItemURL(c.profile, repo, path)
}

func escapePath(path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
