package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewInstrumentedClient(
		WithProviderName("test"),
		WithBaseURL(srv.URL+"/"),
		WithRequestTimeout(2*time.Second),
		WithHeaders(map[string]string{"x-api-key": "secret"}),
	)
	require.NoError(t, err)
	return c
}

func TestRequest_GetDecodesResultAndEscapesQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/coins/markets", r.URL.Path)
		assert.Equal(t, "usdc.e,weth", r.URL.Query().Get("symbols"))
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		_ = json.NewEncoder(w).Encode(map[string]string{"ok": "yes"})
	})

	var out map[string]string
	resp, err := c.NewRequest().
		SetQueryParam("symbols", "usdc.e,weth").
		SetResult(&out).
		Get(context.Background(), "/api/v3/coins/markets")

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "yes", out["ok"])
}

func TestRequest_PostEncodesJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var in map[string]int
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, 7, in["n"])
		w.WriteHeader(http.StatusCreated)
	})

	resp, err := c.NewRequest().SetBody(map[string]int{"n": 7}).Post(context.Background(), "items")
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestRequest_StatusErrorCarriesRetryAfter(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"status":{"error_code":429}}`))
	})

	_, err := c.NewRequest().Get(context.Background(), "x")

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	assert.Equal(t, 3*time.Second, statusErr.RetryAfter)
	assert.True(t, statusErr.Retryable())
}

func TestRequest_CustomErrorHandler(t *testing.T) {
	sentinel := errors.New("envelope failure")
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false}`))
	})

	_, err := c.NewRequestWithOptions(
		WithLabels(NewLabel("endpoint", "x")),
		WithResponseErrorHandler(func(status int, body []byte) error {
			if string(body) == `{"success":false}` {
				return sentinel
			}
			return nil
		}),
	).Get(context.Background(), "x")

	assert.ErrorIs(t, err, sentinel)
}

func TestStatusError_Retryable(t *testing.T) {
	assert.False(t, (&StatusError{StatusCode: 404}).Retryable())
	assert.True(t, (&StatusError{StatusCode: 502}).Retryable())
}

func TestRequest_EmptyPathHitsBaseURL(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := c.NewRequest().SetBody(`{"jsonrpc":"2.0"}`).Post(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "/", gotPath)
}

func TestStatusError_TruncatesBody(t *testing.T) {
	long := make([]byte, 1000)
	for i := range long {
		long[i] = 'x'
	}
	msg := (&StatusError{StatusCode: 500, Body: long}).Error()
	assert.Less(t, len(msg), 300)
	assert.Contains(t, msg, "...")
}
