// Package wordpress implements core.PagePublisher on the WordPress REST API.
package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/publicsuffix"

	"github.com/UltimateServices/Dumpsters-CRM/internal/core"
)

const (
	pagesPath      = "/wp-json/wp/v2/pages"
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 2048
)

var (
	// ErrNotConfigured is returned when the site URL or credentials are missing.
	ErrNotConfigured = errors.New("wordpress site url and credentials are required")
	// ErrInvalidSiteURL is returned when the site URL cannot address a public site.
	ErrInvalidSiteURL = errors.New("invalid wordpress site url")
)

// Options configures the client.
type Options struct {
	SiteURL     string
	Username    string
	AppPassword string
	// Template is the page template slug assigned to every created page.
	Template string
	// Status is the post status, "publish" or "draft".
	Status     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to one WordPress site using an application password.
type Client struct {
	base     string
	username string
	password string
	template string
	status   string
	http     *http.Client
	logger   *slog.Logger
	tracer   trace.Tracer
}

var _ core.PagePublisher = (*Client)(nil)

// APIError is a non-2xx response from WordPress.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("wordpress status %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("wordpress status %d: %s", e.StatusCode, e.Message)
}

// NewClient validates opts and returns a Client.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SiteURL) == "" || opts.Username == "" || opts.AppPassword == "" {
		return nil, ErrNotConfigured
	}
	base, err := normalizeSiteURL(opts.SiteURL)
	if err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	status := opts.Status
	if status == "" {
		status = "publish"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		base:     base,
		username: opts.Username,
		password: opts.AppPassword,
		template: opts.Template,
		status:   status,
		http:     httpClient,
		logger:   logger.With("component", "wordpress", "site", base),
		tracer:   otel.Tracer("github.com/UltimateServices/Dumpsters-CRM/internal/adapters/wordpress"),
	}, nil
}

// normalizeSiteURL requires an http(s) URL whose host is an IP, localhost, or a
// name under a public suffix.
func normalizeSiteURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidSiteURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: scheme %q", ErrInvalidSiteURL, u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidSiteURL)
	}
	if net.ParseIP(host) == nil && host != "localhost" {
		if _, err := publicsuffix.EffectiveTLDPlusOne(host); err != nil {
			return "", fmt.Errorf("%w: %w", ErrInvalidSiteURL, err)
		}
	}
	return strings.TrimRight(u.Scheme+"://"+u.Host+u.Path, "/"), nil
}

type pageBody struct {
	Title    string         `json:"title,omitempty"`
	Slug     string         `json:"slug,omitempty"`
	Content  string         `json:"content"`
	Status   string         `json:"status,omitempty"`
	Template string         `json:"template,omitempty"`
	Parent   int64          `json:"parent,omitempty"`
	Excerpt  string         `json:"excerpt,omitempty"`
	Meta     map[string]any `json:"meta,omitempty"`
}

type pageResponse struct {
	ID   int64  `json:"id"`
	Link string `json:"link"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CreatePage creates a page and returns its id and public link.
func (c *Client) CreatePage(ctx context.Context, req core.CreatePageRequest) (*core.PublishedRef, error) {
	body := pageBody{
		Title:    req.Title,
		Slug:     req.Slug,
		Content:  req.HTML,
		Status:   c.status,
		Template: c.template,
		Parent:   req.ParentID,
		Excerpt:  req.MetaDescription,
	}
	if req.MetaDescription != "" {
		body.Meta = map[string]any{"description": req.MetaDescription}
	}

	var out pageResponse
	if err := c.do(ctx, "wordpress.create_page", http.MethodPost, pagesPath, body, &out,
		attribute.String("wordpress.slug", req.Slug),
		attribute.Int64("wordpress.parent", req.ParentID),
	); err != nil {
		return nil, fmt.Errorf("create page %s: %w", req.Slug, err)
	}
	if out.ID == 0 {
		return nil, fmt.Errorf("create page %s: response carried no id", req.Slug)
	}
	c.logger.InfoContext(ctx, "page created", "slug", req.Slug, "id", out.ID, "link", out.Link)
	return &core.PublishedRef{ID: out.ID, Link: out.Link}, nil
}

// UpdatePage replaces the body of page id.
func (c *Client) UpdatePage(ctx context.Context, id int64, req core.UpdatePageRequest) error {
	path := pagesPath + "/" + strconv.FormatInt(id, 10)
	if err := c.do(ctx, "wordpress.update_page", http.MethodPost, path, pageBody{Content: req.HTML}, nil,
		attribute.Int64("wordpress.page_id", id),
	); err != nil {
		return fmt.Errorf("update page %d: %w", id, err)
	}
	return nil
}

// DeletePage removes page id permanently, skipping the trash.
func (c *Client) DeletePage(ctx context.Context, id int64) error {
	path := pagesPath + "/" + strconv.FormatInt(id, 10) + "?force=true"
	if err := c.do(ctx, "wordpress.delete_page", http.MethodDelete, path, nil, nil,
		attribute.Int64("wordpress.page_id", id),
	); err != nil {
		return fmt.Errorf("delete page %d: %w", id, err)
	}
	c.logger.InfoContext(ctx, "page deleted", "id", id)
	return nil
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any, attrs ...attribute.KeyValue) error {
	ctx, span := c.tracer.Start(ctx, op, trace.WithAttributes(attrs...))
	defer span.End()

	err := c.roundTrip(ctx, method, path, in, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, in, out any) error {
	var reader io.Reader
	if in != nil {
		bs, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(bs)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("wordpress http: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if cerr := Body.Close(); cerr != nil {
			c.logger.WarnContext(ctx, "wordpress response body close error", "error", cerr)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return decodeAPIError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(status int, raw []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var er errorResponse
	if err := json.Unmarshal(raw, &er); err == nil && er.Message != "" {
		apiErr.Code = er.Code
		apiErr.Message = er.Message
		return apiErr
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody]
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	apiErr.Message = msg
	return apiErr
}
