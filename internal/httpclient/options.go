// Package httpclient is an HTTP client for JSON upstreams. Every call gets a
// client span plus a request counter and latency histogram labelled by
// provider.
package httpclient

import (
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TraceOption selects which bodies are attached to spans as events.
type TraceOption string

const (
	TraceRequest  TraceOption = "request"
	TraceResponse TraceOption = "response"
)

type settings struct {
	provider      string
	baseURL       string
	timeout       time.Duration
	headers       http.Header
	tracer        trace.Tracer
	traceRequest  bool
	traceResponse bool
}

func defaultSettings() settings {
	return settings{
		provider: "default",
		timeout:  defaultRequestTimeout,
		headers:  http.Header{},
	}
}

// ClientOption configures NewInstrumentedClient.
type ClientOption func(*settings)

// WithProviderName names the upstream in metrics and spans.
func WithProviderName(name string) ClientOption {
	return func(s *settings) {
		if name != "" {
			s.provider = name
		}
	}
}

// WithBaseURL sets the prefix for relative request paths.
func WithBaseURL(u string) ClientOption {
	return func(s *settings) {
		s.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithRequestTimeout bounds a whole call including the body read.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(s *settings) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithHeaders adds headers sent with every request.
func WithHeaders(headers map[string]string) ClientOption {
	return func(s *settings) {
		for k, v := range headers {
			s.headers.Set(k, v)
		}
	}
}

// WithTraceOptions sets the tracer and which bodies to record on spans.
// Bodies may hold secrets; only enable this for public endpoints.
func WithTraceOptions(tracer trace.Tracer, opts ...TraceOption) ClientOption {
	return func(s *settings) {
		s.tracer = tracer
		for _, o := range opts {
			switch o {
			case TraceRequest:
				s.traceRequest = true
			case TraceResponse:
				s.traceResponse = true
			}
		}
	}
}

// ResponseErrorHandler turns a response into an error, or nil to accept it.
// It sees every status, not only failures.
type ResponseErrorHandler func(statusCode int, body []byte) error

// Label is an extra metric attribute, usually the logical endpoint.
type Label struct {
	Key   string
	Value string
}

func NewLabel(key, value string) Label {
	return Label{Key: key, Value: value}
}

type callSettings struct {
	labels     []attribute.KeyValue
	onResponse ResponseErrorHandler
}

// RequestOption configures a single call.
type RequestOption func(*callSettings)

// WithLabels adds metric attributes to the call.
func WithLabels(labels ...Label) RequestOption {
	return func(c *callSettings) {
		for _, l := range labels {
			c.labels = append(c.labels, attribute.String(l.Key, l.Value))
		}
	}
}

// WithResponseErrorHandler replaces the default >= 400 check.
func WithResponseErrorHandler(h ResponseErrorHandler) RequestOption {
	return func(c *callSettings) {
		c.onResponse = h
	}
}
