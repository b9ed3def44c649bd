package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/slok/reviewdata/internal/log"
	"github.com/slok/reviewdata/internal/model"
)

const (
	defaultAPIURL                = "https://api.github.com"
	defaultMaxConcurrentRequests = 2
	defaultRequestInterval       = 300 * time.Millisecond
	lowRateLimitThreshold        = 100

	mediaTypeJSON = "application/vnd.github+json"
	mediaTypeRaw  = "application/vnd.github.raw"
)

// StoreConfig configures the GitHub Contents API backed document store.
type StoreConfig struct {
	// Repo is the data repository in "owner/name" form.
	Repo string
	// Token is the bearer credential, it's obtained and refreshed by someone else.
	Token string
	// Branch is the branch to read and commit to, empty uses the repository default branch.
	Branch string
	// APIURL is the GitHub API base URL.
	APIURL string
	// HTTPClient is the HTTP client used for the API requests.
	HTTPClient *http.Client
	// MaxConcurrentRequests is the maximum number of requests in flight.
	MaxConcurrentRequests int
	// RequestInterval is the minimum spacing between the start of two requests.
	RequestInterval time.Duration
	// Logger for logging.
	Logger log.Logger
}

func (c *StoreConfig) defaults() error {
	owner, name, ok := strings.Cut(c.Repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("repo must be in owner/name form, got %q", c.Repo)
	}
	if c.APIURL == "" {
		c.APIURL = defaultAPIURL
	}
	c.APIURL = strings.TrimRight(c.APIURL, "/")
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.MaxConcurrentRequests <= 0 {
		c.MaxConcurrentRequests = defaultMaxConcurrentRequests
	}
	if c.RequestInterval < 0 {
		return fmt.Errorf("request interval can't be negative")
	}
	if c.RequestInterval == 0 {
		c.RequestInterval = defaultRequestInterval
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.GitHub"})
	return nil
}

// Store implements storage.DocumentStore using the GitHub repository Contents API.
type Store struct {
	repo       string
	token      string
	branch     string
	apiURL     string
	httpClient *http.Client
	gate       *requestGate
	rateLimit  *rateLimitTracker
	logger     log.Logger
}

// NewStore creates a new GitHub backed document store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Store{
		repo:       cfg.Repo,
		token:      cfg.Token,
		branch:     cfg.Branch,
		apiURL:     cfg.APIURL,
		httpClient: cfg.HTTPClient,
		gate:       newRequestGate(cfg.MaxConcurrentRequests, cfg.RequestInterval),
		rateLimit:  &rateLimitTracker{},
		logger:     cfg.Logger,
	}, nil
}

// --- JSON wire types (private, for GitHub API) ---

type ghContent struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	SHA      string `json:"sha"`
	Size     int64  `json:"size"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
}

type ghWriteRequest struct {
	Message string  `json:"message"`
	Content *string `json:"content,omitempty"`
	SHA     string  `json:"sha,omitempty"`
	Branch  string  `json:"branch,omitempty"`
}

type ghWriteResponse struct {
	Content *ghContent `json:"content"`
}

type ghError struct {
	Message string `json:"message"`
}

// --- DocumentStore interface implementation ---

func (s *Store) Fetch(ctx context.Context, path string) (*model.Document, error) {
	c, err := s.getContent(ctx, path)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, nil
	}

	content, err := s.decodeContent(ctx, path, c)
	if err != nil {
		return nil, err
	}

	return &model.Document{
		Path:    path,
		Content: content,
		Version: c.SHA,
	}, nil
}

func (s *Store) Write(ctx context.Context, path string, content []byte, version string) (string, error) {
	return s.put(ctx, path, content, version)
}

func (s *Store) Delete(ctx context.Context, path string, version string) error {
	if version == "" {
		return fmt.Errorf("deleting %s requires a version: %w", path, model.ErrNotValid)
	}

	body := ghWriteRequest{
		Message: fmt.Sprintf("Delete %s", path),
		SHA:     version,
		Branch:  s.branch,
	}
	resp, err := s.do(ctx, http.MethodDelete, s.contentsURL(path, false), mediaTypeJSON, body)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("deleting %s: %w", path, model.ErrNotFound)
	}
	if err := checkResponse(resp); err != nil {
		return fmt.Errorf("deleting %s: %w", path, err)
	}

	s.logger.Debugf("Deleted %s", path)
	return nil
}

func (s *Store) List(ctx context.Context, path string) ([]model.Entry, error) {
	resp, err := s.do(ctx, http.MethodGet, s.contentsURL(path, true), mediaTypeJSON, nil)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return []model.Entry{}, nil
	}
	if err := checkResponse(resp); err != nil {
		return nil, fmt.Errorf("listing %s: %w", path, err)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading listing of %s: %w", path, err)
	}

	// A file path returns an object instead of an array.
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] != '[' {
		return nil, fmt.Errorf("%s is not a directory: %w", path, model.ErrNotValid)
	}

	var items []ghContent
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parsing listing of %s: %w", path, err)
	}

	entries := make([]model.Entry, 0, len(items))
	for _, it := range items {
		kind := model.EntryKindFile
		if it.Type == "dir" {
			kind = model.EntryKindDir
		}
		entries = append(entries, model.Entry{
			Name:    it.Name,
			Path:    it.Path,
			Version: it.SHA,
			Size:    it.Size,
			Kind:    kind,
		})
	}

	return entries, nil
}

func (s *Store) UploadBinary(ctx context.Context, path string, data []byte, version string) (string, error) {
	return s.put(ctx, path, data, version)
}

func (s *Store) DownloadBinary(ctx context.Context, path string) ([]byte, error) {
	data, found, err := s.getRaw(ctx, path)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%s: %w", path, model.ErrNotFound)
	}

	return data, nil
}

// RateLimit returns the last API quota information seen.
func (s *Store) RateLimit() model.RateLimitInfo {
	return s.rateLimit.get()
}

// --- Internal helpers ---

func (s *Store) put(ctx context.Context, path string, content []byte, version string) (string, error) {
	encoded := base64.StdEncoding.EncodeToString(content)
	body := ghWriteRequest{
		Message: fmt.Sprintf("Update %s", path),
		Content: &encoded,
		SHA:     version,
		Branch:  s.branch,
	}

	resp, err := s.do(ctx, http.MethodPut, s.contentsURL(path, false), mediaTypeJSON, body)
	if err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && version != "" {
		return "", fmt.Errorf("writing %s: %w", path, model.ErrNotFound)
	}
	if err := checkResponse(resp); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}

	var wr ghWriteResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return "", fmt.Errorf("parsing write response of %s: %w", path, err)
	}
	if wr.Content == nil || wr.Content.SHA == "" {
		return "", fmt.Errorf("write response of %s without version: %w", path, model.ErrStore)
	}

	s.logger.Debugf("Wrote %s (%d bytes)", path, len(content))
	return wr.Content.SHA, nil
}

func (s *Store) getContent(ctx context.Context, path string) (*ghContent, error) {
	resp, err := s.do(ctx, http.MethodGet, s.contentsURL(path, true), mediaTypeJSON, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err := checkResponse(resp); err != nil {
		return nil, fmt.Errorf("fetching %s: %w", path, err)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		return nil, fmt.Errorf("%s is a directory: %w", path, model.ErrNotValid)
	}

	var c ghContent
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return &c, nil
}

func (s *Store) decodeContent(ctx context.Context, path string, c *ghContent) ([]byte, error) {
	switch c.Encoding {
	case "base64":
		// The API splits the base64 payload in lines.
		content, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(c.Content, "\n", ""))
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
		return content, nil
	case "none", "":
		// Files bigger than 1MB don't include the content, ask for the raw media type.
		if c.Size == 0 {
			return []byte{}, nil
		}
		data, found, err := s.getRaw(ctx, path)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("%s disappeared while fetching: %w", path, model.ErrConflict)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unknown encoding %q for %s: %w", c.Encoding, path, model.ErrStore)
	}
}

func (s *Store) getRaw(ctx context.Context, path string) (data []byte, found bool, err error) {
	resp, err := s.do(ctx, http.MethodGet, s.contentsURL(path, true), mediaTypeRaw, nil)
	if err != nil {
		return nil, false, fmt.Errorf("downloading %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if err := checkResponse(resp); err != nil {
		return nil, false, fmt.Errorf("downloading %s: %w", path, err)
	}

	data, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", path, err)
	}

	return data, true, nil
}

func (s *Store) contentsURL(path string, withRef bool) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}

	u := fmt.Sprintf("%s/repos/%s/contents/%s", s.apiURL, s.repo, strings.Join(segments, "/"))
	if withRef && s.branch != "" {
		u += "?ref=" + url.QueryEscape(s.branch)
	}

	return u
}

func (s *Store) do(ctx context.Context, method, url, accept string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	release, err := s.gate.acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("waiting for request slot: %w", err)
	}
	defer release()

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}

	if info, ok := s.rateLimit.update(resp.Header); ok && info.Remaining < lowRateLimitThreshold {
		s.logger.Debugf("GitHub API quota is low: %d requests remaining until %s", info.Remaining, info.ResetAt)
	}

	return resp, nil
}

// checkResponse maps a non successful API response into the store error taxonomy.
func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	msg := http.StatusText(resp.StatusCode)
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var ghErr ghError
	if err := json.Unmarshal(data, &ghErr); err == nil && ghErr.Message != "" {
		msg = ghErr.Message
	}

	var kind error
	switch {
	case resp.StatusCode == http.StatusConflict:
		kind = model.ErrConflict
	case resp.StatusCode == http.StatusUnprocessableEntity && isVersionMessage(msg):
		kind = model.ErrConflict
	case resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0":
		kind = model.ErrStore
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		kind = model.ErrPermissionDenied
	case resp.StatusCode == http.StatusNotFound:
		kind = model.ErrNotFound
	case resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode == http.StatusBadRequest:
		kind = model.ErrNotValid
	default:
		kind = model.ErrStore
	}

	return &StatusError{StatusCode: resp.StatusCode, Message: msg, kind: kind}
}

func isVersionMessage(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "sha") || strings.Contains(m, "does not match") || strings.Contains(m, "conflict")
}

// StatusError is an unsuccessful GitHub API response.
type StatusError struct {
	StatusCode int
	Message    string
	kind       error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s: %s", e.StatusCode, e.Message, e.kind)
}

func (e *StatusError) Unwrap() error { return e.kind }

