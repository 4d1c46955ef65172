package apiclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoshidori/hoshidori/internal/auth"
	"github.com/hoshidori/hoshidori/internal/storage"
)

var ctx = context.Background()

type recordedRequest struct {
	Method      string
	Path        string
	Body        string
	Auth        string
	ContentType string
	Cookie      string
}

type fakeAPI struct {
	mu     sync.Mutex
	reqs   []recordedRequest
	router chi.Router
	server *httptest.Server
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{router: chi.NewRouter()}
	f.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(body))
			f.mu.Lock()
			f.reqs = append(f.reqs, recordedRequest{
				Method:      r.Method,
				Path:        r.URL.RequestURI(),
				Body:        string(body),
				Auth:        r.Header.Get("Authorization"),
				ContentType: r.Header.Get("Content-Type"),
				Cookie:      r.Header.Get("Cookie"),
			})
			f.mu.Unlock()
			next.ServeHTTP(w, r)
		})
	})
	f.server = httptest.NewServer(f.router)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAPI) requests(method, path string) []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedRequest
	for _, r := range f.reqs {
		if r.Method == method && r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// statuses serves the given statuses in order, repeating the last one.
func statuses(codes ...int) http.HandlerFunc {
	var mu sync.Mutex
	i := 0
	return func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		code := codes[min(i, len(codes)-1)]
		i++
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if code == http.StatusOK {
			w.Write([]byte(`[{"id":1,"seat":"A1","rating":"4.5","tags":["初見"]}]`))
			return
		}
		w.Write([]byte(`{"detail":"status ` + http.StatusText(code) + `"}`))
	}
}

func refreshOK(access string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access":"` + access + `"}`))
	}
}

func mint(t *testing.T, typ string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"token_type": typ}).SignedString([]byte("k"))
	require.NoError(t, err)
	return s
}

func newTestClient(t *testing.T, f *fakeAPI, access, refresh string) (*Client, *auth.TokenStore) {
	t.Helper()
	kv := storage.NewMemory()
	if access != "" {
		require.NoError(t, kv.SetItem(storage.KeyAccessToken, access))
	}
	if refresh != "" {
		require.NoError(t, kv.SetItem(storage.KeyRefreshToken, refresh))
	}
	tokens := auth.NewTokenStore(kv)
	return New(Config{BaseURL: f.server.URL + "/", HTTPClient: f.server.Client()}, tokens), tokens
}

func TestSend_AttachesBearerAndJSONDefault(t *testing.T) {
	f := newFakeAPI(t)
	f.router.Get("/api/logs/", statuses(http.StatusOK))
	c, _ := newTestClient(t, f, "access-1", "")

	res, err := c.Send(ctx, "/api/logs/", Options{Header: http.Header{"Cookie": {"sessionid=x"}}})
	require.NoError(t, err)
	assert.True(t, res.IsJSON())

	reqs := f.requests("GET", "/api/logs/")
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer access-1", reqs[0].Auth)
	assert.Equal(t, "application/json", reqs[0].ContentType)
	assert.Empty(t, reqs[0].Cookie, "cookies are never sent")
}

func TestSend_NoTokenNoAuthorization(t *testing.T) {
	f := newFakeAPI(t)
	f.router.Get("/api/works/", statuses(http.StatusOK))
	c, _ := newTestClient(t, f, "", "")

	_, err := c.Send(ctx, "/api/works/", Options{})
	require.NoError(t, err)
	assert.Empty(t, f.requests("GET", "/api/works/")[0].Auth)
}

func TestSend_RefreshTokenInAccessSlotIgnored(t *testing.T) {
	f := newFakeAPI(t)
	f.router.Get("/api/works/", statuses(http.StatusOK))
	c, _ := newTestClient(t, f, mint(t, "refresh"), "")

	_, err := c.Send(ctx, "/api/works/", Options{})
	require.NoError(t, err)
	assert.Empty(t, f.requests("GET", "/api/works/")[0].Auth)
}

func TestSend_RetryAfterRefresh(t *testing.T) {
	f := newFakeAPI(t)
	f.router.Get("/api/logs/", statuses(http.StatusUnauthorized, http.StatusOK))
	f.router.Post("/api/auth/token/refresh/", refreshOK("access-2"))
	c, tokens := newTestClient(t, f, "access-1", "refresh-1")

	res, err := c.Send(ctx, "/api/logs/", Options{})
	require.NoError(t, err)

	var logs []Log
	require.NoError(t, res.Decode(&logs))
	require.Len(t, logs, 1)
	assert.Equal(t, "A1", logs[0].Seat)
	require.NotNil(t, logs[0].Rating)
	assert.InDelta(t, 4.5, float64(*logs[0].Rating), 0.001)

	refreshes := f.requests("POST", "/api/auth/token/refresh/")
	require.Len(t, refreshes, 1, "access token refreshed exactly once")
	assert.JSONEq(t, `{"refresh":"refresh-1"}`, refreshes[0].Body)

	calls := f.requests("GET", "/api/logs/")
	require.Len(t, calls, 2)
	assert.Equal(t, "Bearer access-1", calls[0].Auth)
	assert.Equal(t, "Bearer access-2", calls[1].Auth)

	assert.Equal(t, "access-2", tokens.AccessToken())
	assert.Equal(t, "refresh-1", tokens.RefreshToken())
}

func TestSend_RetryStillUnauthorized(t *testing.T) {
	f := newFakeAPI(t)
	f.router.Get("/api/logs/", statuses(http.StatusUnauthorized, http.StatusUnauthorized))
	f.router.Post("/api/auth/token/refresh/", refreshOK("access-2"))
	c, tokens := newTestClient(t, f, "access-1", "refresh-1")

	_, err := c.Send(ctx, "/api/logs/", Options{})
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindUnauthorized, apiErr.Kind)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.True(t, IsUnauthorized(err))

	assert.Len(t, f.requests("GET", "/api/logs/"), 2, "no second retry")
	assert.Empty(t, tokens.AccessToken())
	assert.Empty(t, tokens.RefreshToken())
}

func TestSend_RefreshFailsOn401(t *testing.T) {
	f := newFakeAPI(t)
	f.router.Get("/api/logs/", statuses(http.StatusUnauthorized))
	f.router.Post("/api/auth/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"Token is blacklisted"}`))
	})
	c, tokens := newTestClient(t, f, "access-1", "refresh-1")

	_, err := c.Send(ctx, "/api/logs/", Options{})
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindUnauthorized, apiErr.Kind)
	assert.Equal(t, `{"detail":"status Unauthorized"}`, apiErr.Body, "carries the original response body")
	assert.Contains(t, err.Error(), "API error: 401")

	var refreshErr *Error
	require.True(t, errors.As(apiErr.Err, &refreshErr))
	assert.Equal(t, KindRefresh, refreshErr.Kind)

	assert.Len(t, f.requests("GET", "/api/logs/"), 1)
	assert.Empty(t, tokens.AccessToken())
	assert.Empty(t, tokens.RefreshToken())
}

func TestSend_ProactiveRefresh(t *testing.T) {
	f := newFakeAPI(t)
	f.router.Get("/api/logs/", statuses(http.StatusOK))
	f.router.Post("/api/auth/token/refresh/", refreshOK("fresh"))
	c, tokens := newTestClient(t, f, "", "refresh-1")

	_, err := c.Send(ctx, "/api/logs/", Options{})
	require.NoError(t, err)
	assert.Equal(t, "Bearer fresh", f.requests("GET", "/api/logs/")[0].Auth)
	assert.Equal(t, "fresh", tokens.AccessToken())
}

func TestSend_ProactiveRefreshFailureSwallowed(t *testing.T) {
	f := newFakeAPI(t)
	f.router.Get("/api/works/", statuses(http.StatusOK))
	f.router.Post("/api/auth/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	c, tokens := newTestClient(t, f, "", "refresh-1")

	_, err := c.Send(ctx, "/api/works/", Options{})
	require.NoError(t, err)
	assert.Empty(t, f.requests("GET", "/api/works/")[0].Auth)
	assert.Equal(t, "refresh-1", tokens.RefreshToken(), "proactive failure does not clear tokens")
}

func TestSend_ApplicationError(t *testing.T) {
	f := newFakeAPI(t)
	f.router.Post("/api/logs/", statuses(http.StatusBadRequest))
	c, tokens := newTestClient(t, f, "access-1", "refresh-1")

	_, err := c.Send(ctx, "/api/logs/", Options{Method: http.MethodPost, Body: `{"seat":"A1"}`})
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindApplication, apiErr.Kind)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, 400, StatusCode(err))
	assert.Contains(t, apiErr.Body, "Bad Request")
	assert.Equal(t, `API error: 400 {"detail":"status Bad Request"}`, err.Error())

	assert.Len(t, f.requests("POST", "/api/logs/"), 1, "no retry for non-401")
	assert.Empty(t, f.requests("POST", "/api/auth/token/refresh/"))
	assert.Equal(t, "access-1", tokens.AccessToken())
}

func TestSend_ServerErrorNotRetried(t *testing.T) {
	f := newFakeAPI(t)
	f.router.Get("/api/logs/", statuses(http.StatusInternalServerError, http.StatusOK))
	c, _ := newTestClient(t, f, "access-1", "")

	_, err := c.Send(ctx, "/api/logs/", Options{})
	assert.Equal(t, http.StatusInternalServerError, StatusCode(err))
	assert.Len(t, f.requests("GET", "/api/logs/"), 1)
}

func TestSend_TextResponse(t *testing.T) {
	f := newFakeAPI(t)
	f.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})
	c, _ := newTestClient(t, f, "", "")

	res, err := c.Send(ctx, "/health", Options{})
	require.NoError(t, err)
	assert.False(t, res.IsJSON())
	v, err := res.Value()
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Error(t, res.Decode(&struct{}{}))
}

func TestSend_JSONValue(t *testing.T) {
	f := newFakeAPI(t)
	f.router.Get("/api/logs/", statuses(http.StatusOK))
	c, _ := newTestClient(t, f, "a", "")

	res, err := c.Send(ctx, "/api/logs/", Options{})
	require.NoError(t, err)
	v, err := res.Value()
	require.NoError(t, err)
	list, ok := v.([]any)
	require.True(t, ok)
	assert.Len(t, list, 1)
}

func TestSend_ReaderBodyKeepsCallerContentType(t *testing.T) {
	f := newFakeAPI(t)
	f.router.Patch("/api/auth/user/", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseMultipartForm(1 << 20)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"first_name":"` + r.FormValue("first_name") + `"}`))
	})
	c, _ := newTestClient(t, f, "a", "")

	res, err := c.UpdateProfile(ctx, map[string]string{"first_name": "ほし"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"first_name":"ほし"}`, res.Text())

	reqs := f.requests("PATCH", "/api/auth/user/")
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].ContentType, "multipart/form-data; boundary=")
}

func TestSend_ReaderBodyWithoutHeaderHasNoDefault(t *testing.T) {
	f := newFakeAPI(t)
	f.router.Post("/upload", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	c, _ := newTestClient(t, f, "", "")

	_, err := c.Send(ctx, "/upload", Options{Method: http.MethodPost, Body: bytes.NewReader([]byte("raw"))})
	require.NoError(t, err)
	reqs := f.requests("POST", "/upload")
	require.Len(t, reqs, 1)
	assert.Empty(t, reqs[0].ContentType)
	assert.Equal(t, "raw", reqs[0].Body)
}

func TestSend_RetryResendsBody(t *testing.T) {
	f := newFakeAPI(t)
	f.router.Post("/api/logs/", statuses(http.StatusUnauthorized, http.StatusOK))
	f.router.Post("/api/auth/token/refresh/", refreshOK("access-2"))
	c, _ := newTestClient(t, f, "access-1", "refresh-1")

	_, err := c.Send(ctx, "/api/logs/", Options{Method: http.MethodPost, Body: `{"seat":"B2"}`})
	require.NoError(t, err)
	calls := f.requests("POST", "/api/logs/")
	require.Len(t, calls, 2)
	assert.Equal(t, calls[0].Body, calls[1].Body)
}

func TestSend_TransportFailure(t *testing.T) {
	f := newFakeAPI(t)
	c, tokens := newTestClient(t, f, "access-1", "refresh-1")
	f.server.Close()

	_, err := c.Send(ctx, "/api/logs/", Options{})
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindTransport, apiErr.Kind)
	assert.Zero(t, apiErr.StatusCode)
	assert.NotNil(t, errors.Unwrap(err))
	assert.Equal(t, "access-1", tokens.AccessToken())
}

func TestSend_UnsupportedBody(t *testing.T) {
	f := newFakeAPI(t)
	c, _ := newTestClient(t, f, "", "")
	_, err := c.Send(ctx, "/x", Options{Body: 42})
	assert.Error(t, err)
}

func TestRefresh_Failures(t *testing.T) {
	t.Run("no refresh token", func(t *testing.T) {
		f := newFakeAPI(t)
		c, _ := newTestClient(t, f, "", "")
		_, err := c.Refresh(ctx)
		assert.ErrorIs(t, err, ErrNoRefreshToken)
		assert.Empty(t, f.requests("POST", "/api/auth/token/refresh/"))
	})

	t.Run("missing access field", func(t *testing.T) {
		f := newFakeAPI(t)
		f.router.Post("/api/auth/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"token":"x"}`))
		})
		c, tokens := newTestClient(t, f, "", "refresh-1")
		_, err := c.Refresh(ctx)
		assert.ErrorIs(t, err, ErrNoAccessToken)
		assert.Equal(t, "no access token returned", err.Error())
		assert.Empty(t, tokens.AccessToken())
	})

	t.Run("non-2xx", func(t *testing.T) {
		f := newFakeAPI(t)
		f.router.Post("/api/auth/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		c, _ := newTestClient(t, f, "", "refresh-1")
		_, err := c.Refresh(ctx)
		var apiErr *Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, KindRefresh, apiErr.Kind)
		assert.Equal(t, "Refresh failed: 401", err.Error())
	})
}

func TestCachedEndpoints(t *testing.T) {
	f := newFakeAPI(t)
	f.router.Get("/api/logs/", statuses(http.StatusOK))
	f.router.Get("/api/works/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":7,"title":"星の劇","tags":["SF"],"avg_rating":4.2}]`))
	})
	f.router.Get("/api/works/{id}/schedule/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"work_id":` + chi.URLParam(r, "id") + `,"title":"星の劇","runs":[{"id":1,"label":"東京公演"}]}`))
	})
	c, _ := newTestClient(t, f, "a", "")

	_, err := c.FetchMyLogs(ctx, false)
	require.NoError(t, err)
	_, err = c.FetchMyLogs(ctx, false)
	require.NoError(t, err)
	assert.Len(t, f.requests("GET", "/api/logs/"), 1)

	_, err = c.FetchMyLogs(ctx, true)
	require.NoError(t, err)
	assert.Len(t, f.requests("GET", "/api/logs/"), 2)

	works, err := c.FetchWorks(ctx, url.Values{"search": {"星"}})
	require.NoError(t, err)
	require.Len(t, works, 1)
	assert.Equal(t, int64(7), works[0].ID)
	_, err = c.FetchWorks(ctx, url.Values{"search": {"月"}})
	require.NoError(t, err)
	_, err = c.FetchWorks(ctx, url.Values{"search": {"星"}})
	require.NoError(t, err)
	_, err = c.FetchWorks(ctx, nil)
	require.NoError(t, err)

	var worksCalls int
	f.mu.Lock()
	for _, r := range f.reqs {
		if r.Method == "GET" && len(r.Path) >= len("/api/works/") && r.Path[:len("/api/works/")] == "/api/works/" {
			worksCalls++
		}
	}
	f.mu.Unlock()
	assert.Equal(t, 3, worksCalls, "query strings are distinct cache keys")

	s, err := c.FetchWorkSchedule(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, int64(7), s.WorkID)
	require.Len(t, s.Runs, 1)
	_, err = c.FetchWorkSchedule(ctx, "7")
	require.NoError(t, err)
	assert.Len(t, f.requests("GET", "/api/works/7/schedule/"), 1)
}

func TestZeroTTLDisablesCache(t *testing.T) {
	f := newFakeAPI(t)
	f.router.Get("/api/logs/", statuses(http.StatusOK))
	f.router.Get("/api/works/7/schedule/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"work_id":7,"runs":[]}`))
	})
	tokens := auth.NewTokenStore(storage.NewMemory())
	require.NoError(t, tokens.SetAccessToken("a"))
	c := New(Config{
		BaseURL:    f.server.URL,
		HTTPClient: f.server.Client(),
		TTLs:       &TTLs{Schedule: DefaultTTLs.Schedule},
	}, tokens)

	for range 2 {
		_, err := c.FetchMyLogs(ctx, false)
		require.NoError(t, err)
		_, err = c.FetchWorkSchedule(ctx, "7")
		require.NoError(t, err)
	}
	assert.Len(t, f.requests("GET", "/api/logs/"), 2, "zero lifetime is never fresh")
	assert.Len(t, f.requests("GET", "/api/works/7/schedule/"), 1)
}

func TestWritesBypassCache(t *testing.T) {
	f := newFakeAPI(t)
	f.router.Post("/api/logs/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":99,"seat":"A1","tags":[],"watchedDate":"2025-01-01T19:00:00Z"}`))
	})
	f.router.Delete("/api/logs/{id}/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	c, _ := newTestClient(t, f, "a", "")

	workID := int64(7)
	for i := 0; i < 2; i++ {
		got, err := c.CreateLog(ctx, LogInput{WorkID: &workID, Seat: "A1"})
		require.NoError(t, err)
		assert.Equal(t, int64(99), got.ID)
	}
	reqs := f.requests("POST", "/api/logs/")
	require.Len(t, reqs, 2)
	assert.JSONEq(t, `{"work_id":7,"run":null,"seat":"A1","memo":"","rating":null,"tags":[]}`, reqs[0].Body)
	assert.Equal(t, "application/json", reqs[0].ContentType)

	require.NoError(t, c.DeleteLog(ctx, "99"))
	require.NoError(t, c.DeleteLog(ctx, "99"))
	assert.Len(t, f.requests("DELETE", "/api/logs/99/"), 2)
}

func TestFetchAndUpdateLog(t *testing.T) {
	f := newFakeAPI(t)
	f.router.Get("/api/logs/{id}/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":5,"seat":"B2","memo":"","rating":"3.5","tags":[]}`))
	})
	f.router.Patch("/api/logs/{id}/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":5,"seat":"B2","memo":"great","tags":[]}`))
	})
	c, _ := newTestClient(t, f, "a", "")

	for i := 0; i < 2; i++ {
		got, err := c.FetchLog(ctx, "5")
		require.NoError(t, err)
		require.NotNil(t, got.Rating)
		assert.Equal(t, Decimal(3.5), *got.Rating)
	}
	assert.Len(t, f.requests("GET", "/api/logs/5/"), 2, "detail reads are not cached")

	got, err := c.UpdateLog(ctx, "5", map[string]any{"memo": "great"})
	require.NoError(t, err)
	assert.Equal(t, "great", got.Memo)
	reqs := f.requests("PATCH", "/api/logs/5/")
	require.Len(t, reqs, 1)
	assert.JSONEq(t, `{"memo":"great"}`, reqs[0].Body)
	assert.Equal(t, "Bearer a", reqs[0].Auth)
}

func TestLoginAndCurrentUser(t *testing.T) {
	f := newFakeAPI(t)
	f.router.Post("/api/auth/token/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access":"acc","refresh":"ref"}`))
	})
	f.router.Get("/api/auth/user/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer acc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":3,"username":"hoshi","first_name":"星","profile_image":null}`))
	})
	c, tokens := newTestClient(t, f, "stale", "")

	pair, err := c.Login(ctx, "hoshi", "pw")
	require.NoError(t, err)
	assert.Equal(t, "acc", pair.Access)
	assert.Equal(t, "acc", tokens.AccessToken())
	assert.Equal(t, "ref", tokens.RefreshToken())

	login := f.requests("POST", "/api/auth/token/")
	require.Len(t, login, 1)
	assert.Empty(t, login[0].Auth, "login is never authenticated")
	assert.JSONEq(t, `{"username":"hoshi","password":"pw"}`, login[0].Body)

	u, err := c.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hoshi", u.Username)
	assert.Equal(t, "星", u.FirstName)
	assert.Contains(t, u.Fields, "profile_image")

	require.NoError(t, c.Logout())
	assert.Empty(t, tokens.AccessToken())
}

func TestLogin_BadCredentials(t *testing.T) {
	f := newFakeAPI(t)
	f.router.Post("/api/auth/token/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"No active account found with the given credentials"}`))
	})
	c, tokens := newTestClient(t, f, "", "")

	_, err := c.Login(ctx, "hoshi", "wrong")
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
	assert.False(t, IsUnauthorized(err), "bad credentials are not a lost session")
	assert.Empty(t, tokens.AccessToken())
}

func TestDecimal(t *testing.T) {
	var got struct {
		A *Decimal `json:"a"`
		B *Decimal `json:"b"`
		C *Decimal `json:"c"`
	}
	res := &Result{ContentType: "application/json", Body: []byte(`{"a":"4.5","b":3,"c":null}`)}
	require.NoError(t, res.Decode(&got))
	assert.InDelta(t, 4.5, float64(*got.A), 0.001)
	assert.InDelta(t, 3.0, float64(*got.B), 0.001)
	assert.Nil(t, got.C)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "transport", KindTransport.String())
	assert.Equal(t, "unauthorized", KindUnauthorized.String())
	assert.Equal(t, "application", KindApplication.String())
	assert.Equal(t, "refresh", KindRefresh.String())
	assert.Equal(t, "unknown", Kind(0).String())
}
