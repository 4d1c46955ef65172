// Package apiclient is the authenticated request pipeline for the Hoshidori API.
//
// Every call resolves a bearer token from the token store, refreshing it first
// when only a refresh token is held. A 401 response triggers exactly one
// refresh and one retry. Credentials never travel in cookies.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hoshidori/hoshidori/internal/auth"
	"github.com/hoshidori/hoshidori/internal/cache"
)

const (
	defaultTimeout = 30 * time.Second
	refreshPath    = "/api/auth/token/refresh/"
	jsonType       = "application/json"
)

// Tokens is the subset of auth.TokenStore the pipeline needs.
type Tokens interface {
	AccessToken() string
	RefreshToken() string
	SetAccessToken(token string) error
	SetTokens(access, refresh string) error
	ClearTokens() error
}

var _ Tokens = (*auth.TokenStore)(nil)

// TTLs are the cache lifetimes of the cached read endpoints.
type TTLs struct {
	Works    time.Duration
	Schedule time.Duration
	Logs     time.Duration
}

// DefaultTTLs match the web client.
var DefaultTTLs = TTLs{
	Works:    5 * time.Minute,
	Schedule: time.Minute,
	Logs:     time.Minute,
}

// Config configures a Client. Zero values select defaults, except within a
// non-nil TTLs, where a zero lifetime turns that cache off.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
	TTLs       *TTLs
	Cache      *cache.Cache[*Result]
}

// Client sends requests to the API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     Tokens
	cache      *cache.Cache[*Result]
	ttls       TTLs
	logger     *slog.Logger
	refreshes  singleflight.Group
}

// New creates a Client. tokens is read on every call so logins and logouts
// take effect immediately.
func New(cfg Config, tokens Tokens) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: cfg.HTTPClient,
		tokens:     tokens,
		cache:      cfg.Cache,
		ttls:       DefaultTTLs,
		logger:     cfg.Logger,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: defaultTimeout}
	} else if c.httpClient.Jar != nil {
		hc := *c.httpClient
		hc.Jar = nil
		c.httpClient = &hc
	}
	if c.cache == nil {
		c.cache = cache.New[*Result]()
	}
	if cfg.TTLs != nil {
		c.ttls = *cfg.TTLs
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Options describe one request.
//
// Body may be nil, a string or []byte (treated as pre-serialized JSON unless
// a Content-Type header says otherwise), or an io.Reader, which is sent with
// no default Content-Type. Readers are buffered so the body can be resent on
// retry.
type Options struct {
	Method string
	Header http.Header
	Body   any
}

// Result is a successful response.
type Result struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// IsJSON reports whether the server declared a JSON body.
func (r *Result) IsJSON() bool {
	return strings.Contains(r.ContentType, jsonType)
}

// Decode unmarshals a JSON body into v.
func (r *Result) Decode(v any) error {
	if !r.IsJSON() {
		return fmt.Errorf("response is %q, not JSON", r.ContentType)
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// Value returns the decoded JSON payload, or the raw text for other types.
func (r *Result) Value() (any, error) {
	if !r.IsJSON() {
		return r.Text(), nil
	}
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return nil, nil
	}
	var v any
	if err := r.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func (r *Result) Text() string { return string(r.Body) }

func (r *Result) ok() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

// Send issues one API call.
func (c *Client) Send(ctx context.Context, path string, opts Options) (*Result, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	url := c.baseURL + path

	body, stringBody, err := readBody(opts.Body)
	if err != nil {
		return nil, err
	}

	token := c.tokens.AccessToken()
	if token == "" && c.tokens.RefreshToken() != "" {
		if t, err := c.Refresh(ctx); err == nil {
			token = t
		} else {
			c.logger.Debug("proactive refresh failed, continuing unauthenticated", "error", err)
		}
	}

	header := buildHeader(opts.Header, token, body == nil || stringBody)

	c.logger.Debug("api request", "method", method, "url", url)
	res, err := c.do(ctx, method, url, header, body)
	if err != nil {
		c.logger.Error("api request failed", "method", method, "url", url, "error", err)
		return nil, &Error{Kind: KindTransport, Err: err}
	}
	c.logger.Debug("api response", "url", url, "status", res.StatusCode)

	if res.StatusCode == http.StatusUnauthorized {
		newToken, rerr := c.Refresh(ctx)
		if rerr != nil {
			c.clearTokens()
			text := res.Text()
			if text == "" {
				text = rerr.Error()
			}
			if text == "" {
				text = "Unauthorized"
			}
			return nil, &Error{Kind: KindUnauthorized, StatusCode: http.StatusUnauthorized, Body: text, Err: rerr}
		}

		retryHeader := header.Clone()
		retryHeader.Set("Authorization", "Bearer "+newToken)
		res, err = c.do(ctx, method, url, retryHeader, body)
		if err != nil {
			c.logger.Error("api retry failed", "method", method, "url", url, "error", err)
			return nil, &Error{Kind: KindTransport, Err: err}
		}
		if res.StatusCode == http.StatusUnauthorized {
			c.clearTokens()
			return nil, &Error{Kind: KindUnauthorized, StatusCode: res.StatusCode, Body: res.Text()}
		}
	}

	if !res.ok() {
		c.logger.Error("api error body", "url", url, "status", res.StatusCode, "body", res.Text())
		return nil, &Error{Kind: KindApplication, StatusCode: res.StatusCode, Body: res.Text()}
	}
	return res, nil
}

// Refresh exchanges the stored refresh token for a new access token and
// stores it. The refresh token itself is left untouched. Concurrent callers
// share one exchange, which is not cancelled with any single caller's ctx.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	ch := c.refreshes.DoChan("refresh", func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx))
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return "", &Error{Kind: KindRefresh, Err: ctx.Err()}
	}
	v, err := res.Val, res.Err
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) refresh(ctx context.Context) (string, error) {
	refresh := c.tokens.RefreshToken()
	if refresh == "" {
		return "", &Error{Kind: KindRefresh, Err: ErrNoRefreshToken}
	}

	body, err := json.Marshal(map[string]string{"refresh": refresh})
	if err != nil {
		return "", fmt.Errorf("marshalling refresh request: %w", err)
	}
	header := http.Header{}
	header.Set("Content-Type", jsonType)

	res, err := c.do(ctx, http.MethodPost, c.baseURL+refreshPath, header, body)
	if err != nil {
		return "", &Error{Kind: KindRefresh, Err: err}
	}
	if !res.ok() {
		return "", &Error{Kind: KindRefresh, StatusCode: res.StatusCode, Body: res.Text()}
	}

	var out struct {
		Access string `json:"access"`
	}
	if err := json.Unmarshal(res.Body, &out); err != nil || out.Access == "" {
		return "", &Error{Kind: KindRefresh, StatusCode: res.StatusCode, Err: ErrNoAccessToken}
	}
	if err := c.tokens.SetAccessToken(out.Access); err != nil {
		c.logger.Warn("refreshed access token not persisted", "error", err)
	}
	return out.Access, nil
}

func (c *Client) clearTokens() {
	if err := c.tokens.ClearTokens(); err != nil {
		c.logger.Warn("clearing tokens failed", "error", err)
	}
}

// do performs a single HTTP exchange and reads the whole response.
func (c *Client) do(ctx context.Context, method, url string, header http.Header, body []byte) (*Result, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header = header.Clone()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return &Result{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}

func buildHeader(base http.Header, token string, defaultJSON bool) http.Header {
	h := http.Header{}
	for k, vs := range base {
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	h.Del("Cookie")
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	if h.Get("Content-Type") == "" && defaultJSON {
		h.Set("Content-Type", jsonType)
	}
	return h
}

// readBody buffers the request body. stringBody is true for string and []byte.
func readBody(b any) (data []byte, stringBody bool, err error) {
	switch v := b.(type) {
	case nil:
		return nil, false, nil
	case string:
		return []byte(v), true, nil
	case []byte:
		return v, true, nil
	case io.Reader:
		data, err := io.ReadAll(v)
		if err != nil {
			return nil, false, fmt.Errorf("reading request body: %w", err)
		}
		return data, false, nil
	default:
		return nil, false, fmt.Errorf("unsupported body type %T", b)
	}
}
