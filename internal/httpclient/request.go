package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Request builds and executes a single HTTP call.
type Request interface {
	Get(ctx context.Context, path string) (*Response, error)
	Post(ctx context.Context, path string) (*Response, error)

	SetBody(body any) Request
	SetHeader(key, value string) Request
	SetQueryParam(key, value string) Request
	SetResult(result any) Request
}

// Response is an http.Response whose body has already been drained.
type Response struct {
	*http.Response
	body []byte
}

func (r *Response) Body() []byte {
	return r.body
}

func (r *Response) IsError() bool {
	return r.StatusCode >= http.StatusBadRequest
}

// StatusError reports a >= 400 response when no ResponseErrorHandler is set.
type StatusError struct {
	StatusCode int
	Body       []byte
	RetryAfter time.Duration
}

const maxErrorBody = 256

func (e *StatusError) Error() string {
	body := e.Body
	suffix := ""
	if len(body) > maxErrorBody {
		body, suffix = body[:maxErrorBody], "..."
	}
	return fmt.Sprintf("http status %d: %s%s", e.StatusCode, body, suffix)
}

// Retryable is true for 429 and 5xx.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// retryAfter reads the delta-seconds form of Retry-After. HTTP dates are
// ignored.
func retryAfter(h http.Header) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(h.Get("Retry-After")))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

type requestBuilder struct {
	client  *InstrumentedClient
	call    callSettings
	headers http.Header
	query   url.Values
	body    any
	result  any
}

func (r *requestBuilder) Get(ctx context.Context, path string) (*Response, error) {
	return r.do(ctx, http.MethodGet, path)
}

func (r *requestBuilder) Post(ctx context.Context, path string) (*Response, error) {
	return r.do(ctx, http.MethodPost, path)
}

// SetBody sets the payload. []byte, string and io.Reader are sent as is;
// anything else is JSON encoded.
func (r *requestBuilder) SetBody(body any) Request {
	r.body = body
	return r
}

func (r *requestBuilder) SetHeader(key, value string) Request {
	r.headers.Set(key, value)
	return r
}

func (r *requestBuilder) SetQueryParam(key, value string) Request {
	if r.query == nil {
		r.query = url.Values{}
	}
	r.query.Set(key, value)
	return r
}

// SetResult sets where an accepted JSON body is decoded to.
func (r *requestBuilder) SetResult(result any) Request {
	r.result = result
	return r
}

func (r *requestBuilder) resolve(path string) (string, error) {
	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		target = r.client.cfg.baseURL
		if path != "" {
			target += "/" + strings.TrimPrefix(path, "/")
		}
	}

	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", target, err)
	}
	if len(r.query) > 0 {
		q := u.Query()
		for k, vs := range r.query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (r *requestBuilder) payload() ([]byte, io.Reader, error) {
	switch b := r.body.(type) {
	case nil:
		return nil, nil, nil
	case io.Reader:
		return nil, b, nil
	case []byte:
		return b, bytes.NewReader(b), nil
	case string:
		return []byte(b), strings.NewReader(b), nil
	}

	raw, err := json.Marshal(r.body)
	if err != nil {
		return nil, nil, fmt.Errorf("encode request body: %w", err)
	}
	if r.headers.Get("Content-Type") == "" {
		r.headers.Set("Content-Type", "application/json")
	}
	return raw, bytes.NewReader(raw), nil
}

func (r *requestBuilder) build(ctx context.Context, method, path string, span trace.Span) (*http.Request, error) {
	target, err := r.resolve(path)
	if err != nil {
		return nil, err
	}

	raw, body, err := r.payload()
	if err != nil {
		return nil, err
	}
	if r.client.cfg.traceRequest && raw != nil {
		span.AddEvent("request.body", trace.WithAttributes(attribute.String("http.request_body", string(raw))))
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header = r.headers
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	return req, nil
}

func (r *requestBuilder) do(ctx context.Context, method, path string) (*Response, error) {
	c := r.client
	started := time.Now()

	ctx, span := c.cfg.tracer.Start(ctx, "http.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.path", path),
			attribute.String("provider", c.cfg.provider),
		),
	)
	defer span.End()

	req, err := r.build(ctx, method, path, span)
	if err != nil {
		fail(span, err)
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			span.SetAttributes(attribute.Bool("context.cancelled", true))
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			span.SetAttributes(attribute.Bool("request.timeout", true))
		}
		fail(span, err)
		r.observe(ctx, 0, started)
		return nil, err
	}

	raw, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	r.observe(ctx, resp.StatusCode, started)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if err != nil {
		err = fmt.Errorf("read response body: %w", err)
		fail(span, err)
		return nil, err
	}
	if c.cfg.traceResponse {
		span.AddEvent("response.body", trace.WithAttributes(attribute.String("http.response_body", string(raw))))
	}

	out := &Response{Response: resp, body: raw}
	if err := r.accept(out); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return out, err
	}

	if r.result != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, r.result); err != nil {
			err = fmt.Errorf("decode response body: %w", err)
			fail(span, err)
			return out, err
		}
	}

	span.SetStatus(codes.Ok, "")
	return out, nil
}

func (r *requestBuilder) accept(resp *Response) error {
	if h := r.call.onResponse; h != nil {
		return h(resp.StatusCode, resp.body)
	}
	if resp.IsError() {
		return &StatusError{
			StatusCode: resp.StatusCode,
			Body:       resp.body,
			RetryAfter: retryAfter(resp.Header),
		}
	}
	return nil
}

// observe records count and latency. status 0 means no response arrived.
func (r *requestBuilder) observe(ctx context.Context, status int, started time.Time) {
	attrs := append([]attribute.KeyValue{
		attribute.Int("status", status),
		attribute.Bool("success", status > 0 && status < http.StatusBadRequest),
	}, r.call.labels...)

	set := metric.WithAttributes(attrs...)
	r.client.requests.Add(ctx, 1, set)
	r.client.latency.Record(ctx, time.Since(started).Seconds(), set)
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
