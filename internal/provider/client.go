package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxResponseSize is the maximum allowed response size from the provider (10MB)
const maxResponseSize = 10 * 1024 * 1024

// Config holds the provider endpoints and client limits.
type Config struct {
	SubmitURL        string        // supply-chain API base URL
	StatusURL        string        // API server base URL
	Timeout          time.Duration // per request; zero means 5 minutes
	StatusRatePerSec float64       // status lookups per second; zero means unlimited
}

// Submission is one batch upload.
type Submission struct {
	IssuedTo   string
	IssuedFrom string // optional
	Path       string // scratch file holding the encoded batch
}

// Client talks to the tokenization provider.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *zap.Logger
}

// New creates a client for cfg.
func New(cfg Config, log *zap.Logger) (*Client, error) {
	if _, err := url.ParseRequestURI(cfg.SubmitURL); err != nil {
		return nil, fmt.Errorf("provider: invalid submit url %q: %w", cfg.SubmitURL, err)
	}
	if _, err := url.ParseRequestURI(cfg.StatusURL); err != nil {
		return nil, fmt.Errorf("provider: invalid status url %q: %w", cfg.StatusURL, err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	limit := rate.Inf
	if cfg.StatusRatePerSec > 0 {
		limit = rate.Limit(cfg.StatusRatePerSec)
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		log:        log,
	}, nil
}

// Tokenize uploads the batch in sub.Path and decodes the provider's answer.
//
// A failure object is returned as a BatchResponse with Failure set, whatever
// the HTTP status. Connection failures wrap ErrUnavailable and undecodable
// bodies wrap ErrInvalidResponse; in both cases no response is returned.
func (c *Client) Tokenize(ctx context.Context, sub Submission) (*BatchResponse, error) {
	body, contentType, err := multipartBody(sub)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, join(c.cfg.SubmitURL, "issue"), body)
	if err != nil {
		return nil, fmt.Errorf("provider: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	status, respBody, err := c.do(req)
	if err != nil {
		return nil, err
	}
	c.log.Debug("tokenize response", zap.Int("status", status), zap.Int("bytes", len(respBody)))

	resp, err := decodeBatch(respBody)
	if err != nil {
		if status >= 400 {
			return nil, fmt.Errorf("%w: HTTP %d", ErrRequestFailed, status)
		}
		return nil, err
	}
	return resp, nil
}

// TokenStatus looks up a queued issuance. Lookups are rate limited.
func (c *Client) TokenStatus(ctx context.Context, nodeID, requestUUID string) (*TokenStatus, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("provider: rate limit wait: %w", err)
	}

	u := join(c.cfg.StatusURL, "emissionsrequesttoken", url.PathEscape(nodeID), url.PathEscape(requestUUID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("provider: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	status, body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, nodeID, requestUUID)
	case status >= 400:
		return nil, fmt.Errorf("%w: HTTP %d", ErrRequestFailed, status)
	}

	var ts TokenStatus
	if err := json.Unmarshal(body, &ts); err != nil {
		return nil, fmt.Errorf("%w: token status: %v", ErrInvalidResponse, err)
	}
	return &ts, nil
}

// do sends req and returns the status code and the (size capped) body.
func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: failed to read response: %v", ErrUnavailable, err)
	}
	return resp.StatusCode, body, nil
}

// multipartBody builds the form: issuedTo, optional issuedFrom, and the batch
// file as part "input".
func multipartBody(sub Submission) (io.Reader, string, error) {
	if sub.IssuedTo == "" {
		return nil, "", fmt.Errorf("provider: issuedTo is required")
	}
	f, err := os.Open(sub.Path)
	if err != nil {
		return nil, "", fmt.Errorf("provider: open batch file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("issuedTo", sub.IssuedTo); err != nil {
		return nil, "", fmt.Errorf("provider: write form: %w", err)
	}
	if sub.IssuedFrom != "" {
		if err := w.WriteField("issuedFrom", sub.IssuedFrom); err != nil {
			return nil, "", fmt.Errorf("provider: write form: %w", err)
		}
	}
	part, err := w.CreateFormFile("input", filepath.Base(sub.Path))
	if err != nil {
		return nil, "", fmt.Errorf("provider: write form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("provider: copy batch file: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("provider: write form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func join(base string, elem ...string) string {
	return strings.TrimRight(base, "/") + "/" + strings.Join(elem, "/")
}
