package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/require"

	"github.com/rankpilot/auditor/internal/audit"
)

func TestFetchSuccess(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html><title>ok</title></html>"))
	}))
	defer srv.Close()

	f := New(Config{UserAgent: "auditor-test", Timeout: 5 * time.Second})
	resp, err := f.Fetch(context.Background(), audit.FetchRequest{URL: srv.URL})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(resp.Body), "<title>ok</title>")
	require.Greater(t, resp.Duration, time.Duration(0))
}

func TestFetchUpstreamHTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(Config{Timeout: 5 * time.Second})
	_, err := f.Fetch(context.Background(), audit.FetchRequest{URL: srv.URL})

	var httpErr *audit.UpstreamHTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusNotFound, httpErr.StatusCode)
}

func TestFetchTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(2 * time.Second)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := New(Config{Timeout: 100 * time.Millisecond})
	_, err := f.Fetch(context.Background(), audit.FetchRequest{URL: srv.URL})
	require.ErrorIs(t, err, audit.ErrFetchTimeout)
}

func TestFetchConnectionRefused(t *testing.T) {
	t.Parallel()

	// Reserve a port and close it so the connection is refused.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	target := srv.URL
	srv.Close()

	f := New(Config{Timeout: 5 * time.Second})
	_, err := f.Fetch(context.Background(), audit.FetchRequest{URL: target})

	var netErr *audit.NetworkError
	require.ErrorAs(t, err, &netErr)
}

func TestFetchContextCanceled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	f := New(Config{Timeout: 5 * time.Second})
	_, err := f.Fetch(ctx, audit.FetchRequest{URL: srv.URL})
	require.ErrorIs(t, err, context.Canceled)
}

func TestFetcherBuildCollector(t *testing.T) {
	t.Parallel()

	f := New(Config{UserAgent: "coverage-agent", Timeout: time.Second})
	start := time.Unix(0, 0)
	req := audit.FetchRequest{URL: "https://example.com"}

	collector := f.buildCollector(req, start, &audit.FetchResponse{}, new(error))
	require.Equal(t, "coverage-agent", collector.UserAgent)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	req := audit.FetchRequest{URL: "https://example.com"}
	start := time.Unix(0, 0)
	var result audit.FetchResponse
	var fetchErr error

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, req, start, &result, &fetchErr)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusOK,
		Body:       []byte("body"),
		Request: &colly.Request{
			URL: mustParseURL(t, "https://example.com"),
		},
	})
	require.Equal(t, http.StatusOK, result.StatusCode)
	require.Equal(t, "body", string(result.Body))

	hooks.onError(nil, errors.New("boom"))
	var netErr *audit.NetworkError
	require.ErrorAs(t, fetchErr, &netErr)
}

func TestClassifyError(t *testing.T) {
	t.Parallel()

	var httpErr *audit.UpstreamHTTPError
	err := classifyError("https://example.com", &colly.Response{StatusCode: 503}, errors.New("service unavailable"))
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, 503, httpErr.StatusCode)

	err = classifyError("https://example.com", nil, context.DeadlineExceeded)
	require.ErrorIs(t, err, audit.ErrFetchTimeout)

	var netErr *audit.NetworkError
	err = classifyError("https://example.com", nil, errors.New("dns failure"))
	require.ErrorAs(t, err, &netErr)
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

type stubHooks struct {
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
