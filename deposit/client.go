// Package deposit drives an InvenioRDM deposit (Zenodo) through the
// versioning state machine: resolve the latest version, discard stale
// drafts, open a new version, replace its files, merge metadata, publish.
package deposit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/pithecene-io/zenodo-publisher/iox"
	"github.com/pithecene-io/zenodo-publisher/log"
	"github.com/pithecene-io/zenodo-publisher/metrics"
	"github.com/pithecene-io/zenodo-publisher/types"
)

// DefaultBaseURL is the production Zenodo API.
const DefaultBaseURL = "https://zenodo.org/api"

// DefaultTimeout bounds JSON requests. Uploads are bounded by the context.
const DefaultTimeout = 60 * time.Second

// maxErrorBody caps the response body kept in a StatusError.
const maxErrorBody = 2048

// Config configures a Client.
type Config struct {
	// BaseURL is the API root, e.g. https://sandbox.zenodo.org/api.
	BaseURL string
	// Token is the personal access token sent as a bearer credential.
	Token string
	// Timeout applies to JSON requests (default 60s).
	Timeout time.Duration
	// HTTPClient overrides the transport (tests).
	HTTPClient *http.Client
}

// Client is a thin InvenioRDM REST client.
type Client struct {
	base    string
	token   string
	timeout time.Duration
	http    *http.Client
	logger  *log.Logger
	metrics *metrics.Collector
}

// NewClient validates cfg and returns a Client.
func NewClient(cfg Config, logger *log.Logger, m *metrics.Collector) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Token == "" {
		return nil, types.Errorf(types.ErrConfiguration, "deposit", "deposit API token is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, types.Errorf(types.ErrConfiguration, "deposit", "invalid API URL %q: %v", cfg.BaseURL, err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Client{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		timeout: cfg.Timeout,
		http:    cfg.HTTPClient,
		logger:  logger,
		metrics: m,
	}, nil
}

// request performs one call. A non-nil body is sent as JSON unless it is
// an io.Reader, which is streamed as octet-stream. out, if non-nil,
// receives the decoded JSON response.
func (c *Client) request(ctx context.Context, method, path string, body, out any) error {
	var (
		reader      io.Reader
		contentType string
	)
	switch b := body.(type) {
	case nil:
	case io.Reader:
		reader, contentType = b, "application/octet-stream"
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("marshal %s %s: %w", method, path, err)
		}
		reader, contentType = bytes.NewReader(data), "application/json"
	}

	if _, streaming := body.(io.Reader); !streaming {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if f, ok := body.(*os.File); ok {
		if info, err := f.Stat(); err == nil {
			req.ContentLength = info.Size()
		}
	}

	c.metrics.IncAPIRequest()
	c.logger.Debug("deposit api request", map[string]any{"method": method, "path": path})

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.IncAPIFailure()
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer iox.DiscardClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.IncAPIFailure()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Code: resp.StatusCode, Method: method, Path: path, Body: strings.TrimSpace(string(snippet))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func recordPath(id string, parts ...string) string {
	p := "/records/" + url.PathEscape(id)
	for _, s := range parts {
		p += "/" + s
	}
	return p
}

// LatestVersion returns the latest published version of a concept.
func (c *Client) LatestVersion(ctx context.Context, conceptID string) (*types.DepositVersion, error) {
	var r record
	if err := c.request(ctx, http.MethodGet, recordPath(conceptID, "versions", "latest"), nil, &r); err != nil {
		return nil, err
	}
	return r.version(), nil
}

// Drafts lists unpublished drafts of the concept owned by the token's user.
func (c *Client) Drafts(ctx context.Context, conceptID string) ([]*types.DepositVersion, error) {
	q := url.Values{}
	q.Set("q", "parent.id:"+conceptID)
	q.Set("is_published", "false")

	var out struct {
		Hits struct {
			Hits []record `json:"hits"`
		} `json:"hits"`
	}
	if err := c.request(ctx, http.MethodGet, "/user/records?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}

	var drafts []*types.DepositVersion
	for _, r := range out.Hits.Hits {
		if !r.IsPublished {
			drafts = append(drafts, r.version())
		}
	}
	return drafts, nil
}

// DeleteDraft discards a draft.
func (c *Client) DeleteDraft(ctx context.Context, id string) error {
	return c.request(ctx, http.MethodDelete, recordPath(id, "draft"), nil, nil)
}

// NewVersion opens a new draft version from a published record.
func (c *Client) NewVersion(ctx context.Context, id string) (*types.DepositVersion, error) {
	var r record
	if err := c.request(ctx, http.MethodPost, recordPath(id, "versions"), nil, &r); err != nil {
		return nil, err
	}
	return r.version(), nil
}

// DraftFiles lists the files attached to a draft.
func (c *Client) DraftFiles(ctx context.Context, id string) ([]types.RemoteFileRecord, error) {
	var out struct {
		Entries fileEntries `json:"entries"`
	}
	if err := c.request(ctx, http.MethodGet, recordPath(id, "draft", "files"), nil, &out); err != nil {
		return nil, err
	}
	return out.Entries.records(), nil
}

// DeleteDraftFile removes one file from a draft.
func (c *Client) DeleteDraftFile(ctx context.Context, id, key string) error {
	return c.request(ctx, http.MethodDelete, recordPath(id, "draft", "files", url.PathEscape(key)), nil, nil)
}

// UploadFile registers, streams and commits one file on a draft.
func (c *Client) UploadFile(ctx context.Context, id, key, path string) error {
	if err := c.request(ctx, http.MethodPost, recordPath(id, "draft", "files"),
		[]map[string]string{{"key": key}}, nil); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return types.NewError(types.ErrIO, "upload", err)
	}
	defer iox.DiscardClose(f)

	filePath := recordPath(id, "draft", "files", url.PathEscape(key))
	if err := c.request(ctx, http.MethodPut, filePath+"/content", f, nil); err != nil {
		return err
	}
	return c.request(ctx, http.MethodPost, filePath+"/commit", nil, nil)
}

// Draft returns the raw draft document.
func (c *Client) Draft(ctx context.Context, id string) (map[string]any, error) {
	var doc map[string]any
	if err := c.request(ctx, http.MethodGet, recordPath(id, "draft"), nil, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// UpdateDraft replaces the draft document.
func (c *Client) UpdateDraft(ctx context.Context, id string, doc map[string]any) error {
	return c.request(ctx, http.MethodPut, recordPath(id, "draft"), doc, nil)
}

// PublishDraft publishes a draft and returns the published record.
func (c *Client) PublishDraft(ctx context.Context, id string) (*types.PublishedRecord, error) {
	var r record
	if err := c.request(ctx, http.MethodPost, recordPath(id, "draft", "actions", "publish"), nil, &r); err != nil {
		return nil, err
	}
	return r.published(), nil
}
