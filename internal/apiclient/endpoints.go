package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/hoshidori/hoshidori/internal/cache"
)

const loginPath = "/api/auth/token/"

// cachedGet reads path through the response cache.
func (c *Client) cachedGet(ctx context.Context, path string, ttl time.Duration, force bool) (*Result, error) {
	return c.cache.GetOrFetch(ctx, cache.Key(http.MethodGet, path), ttl, force, func(ctx context.Context) (*Result, error) {
		return c.Send(ctx, path, Options{})
	})
}

// Login exchanges credentials for a token pair and stores it. The call is
// never authenticated and never retried.
func (c *Client) Login(ctx context.Context, username, password string) (TokenPair, error) {
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return TokenPair{}, fmt.Errorf("marshalling login request: %w", err)
	}
	header := http.Header{}
	header.Set("Content-Type", jsonType)

	res, err := c.do(ctx, http.MethodPost, c.baseURL+loginPath, header, body)
	if err != nil {
		return TokenPair{}, &Error{Kind: KindTransport, Err: err}
	}
	if !res.ok() {
		return TokenPair{}, &Error{Kind: KindApplication, StatusCode: res.StatusCode, Body: res.Text()}
	}

	var pair TokenPair
	if err := json.Unmarshal(res.Body, &pair); err != nil || pair.Access == "" {
		return TokenPair{}, &Error{Kind: KindApplication, StatusCode: res.StatusCode, Body: res.Text(), Err: ErrNoAccessToken}
	}
	if err := c.tokens.SetTokens(pair.Access, pair.Refresh); err != nil {
		return TokenPair{}, err
	}
	c.cache.Purge()
	return pair, nil
}

// Logout forgets the stored session and every cached response.
func (c *Client) Logout() error {
	c.cache.Purge()
	return c.tokens.ClearTokens()
}

func (c *Client) CurrentUser(ctx context.Context) (User, error) {
	res, err := c.Send(ctx, "/api/auth/user/", Options{})
	if err != nil {
		return User{}, err
	}
	var u User
	if err := res.Decode(&u); err != nil {
		return User{}, err
	}
	return u, nil
}

// UpdateProfile sends fields as a multipart PATCH to /api/auth/user/.
func (c *Client) UpdateProfile(ctx context.Context, fields map[string]string) (*Result, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("writing form field %s: %w", k, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing form: %w", err)
	}

	header := http.Header{}
	header.Set("Content-Type", w.FormDataContentType())
	return c.Send(ctx, "/api/auth/user/", Options{
		Method: http.MethodPatch,
		Header: header,
		Body:   &buf,
	})
}

// FetchWorks lists the catalog. Responses are cached per query string.
func (c *Client) FetchWorks(ctx context.Context, params url.Values) ([]Work, error) {
	path := "/api/works/"
	if qs := params.Encode(); qs != "" {
		path += "?" + qs
	}
	res, err := c.cachedGet(ctx, path, c.ttls.Works, false)
	if err != nil {
		return nil, err
	}
	var works []Work
	if err := res.Decode(&works); err != nil {
		return nil, err
	}
	return works, nil
}

func (c *Client) FetchWorkSchedule(ctx context.Context, workID string) (Schedule, error) {
	res, err := c.cachedGet(ctx, fmt.Sprintf("/api/works/%s/schedule/", url.PathEscape(workID)), c.ttls.Schedule, false)
	if err != nil {
		return Schedule{}, err
	}
	var s Schedule
	if err := res.Decode(&s); err != nil {
		return Schedule{}, err
	}
	return s, nil
}

// FetchMyLogs lists the user's logs; force bypasses the cache.
func (c *Client) FetchMyLogs(ctx context.Context, force bool) ([]Log, error) {
	res, err := c.cachedGet(ctx, "/api/logs/", c.ttls.Logs, force)
	if err != nil {
		return nil, err
	}
	var logs []Log
	if err := res.Decode(&logs); err != nil {
		return nil, err
	}
	return logs, nil
}

// CreateLog posts a new log. The logs cache is not invalidated; callers
// wanting the new entry pass force to FetchMyLogs.
func (c *Client) CreateLog(ctx context.Context, in LogInput) (Log, error) {
	if in.Tags == nil {
		in.Tags = []string{}
	}
	body, err := json.Marshal(in)
	if err != nil {
		return Log{}, fmt.Errorf("marshalling log: %w", err)
	}
	res, err := c.Send(ctx, "/api/logs/", Options{Method: http.MethodPost, Body: body})
	if err != nil {
		return Log{}, err
	}
	var out Log
	if res.IsJSON() {
		if err := res.Decode(&out); err != nil {
			return Log{}, err
		}
	}
	return out, nil
}

// FetchLog reads one log, bypassing the cache.
func (c *Client) FetchLog(ctx context.Context, id string) (Log, error) {
	res, err := c.Send(ctx, logPath(id), Options{})
	if err != nil {
		return Log{}, err
	}
	var out Log
	if err := res.Decode(&out); err != nil {
		return Log{}, err
	}
	return out, nil
}

// UpdateLog sends a partial update. Only the given fields change.
func (c *Client) UpdateLog(ctx context.Context, id string, fields map[string]any) (Log, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return Log{}, fmt.Errorf("marshalling log update: %w", err)
	}
	res, err := c.Send(ctx, logPath(id), Options{Method: http.MethodPatch, Body: body})
	if err != nil {
		return Log{}, err
	}
	var out Log
	if res.IsJSON() {
		if err := res.Decode(&out); err != nil {
			return Log{}, err
		}
	}
	return out, nil
}

func (c *Client) DeleteLog(ctx context.Context, id string) error {
	_, err := c.Send(ctx, logPath(id), Options{Method: http.MethodDelete})
	return err
}

func logPath(id string) string {
	return fmt.Sprintf("/api/logs/%s/", url.PathEscape(id))
}
