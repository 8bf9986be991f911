package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/http/httptrace"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/httptrace/otelhttptrace"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	instrumentationName = "github.com/fd1az/etfkit/internal/httpclient"

	defaultRequestTimeout = 10 * time.Second
	dialTimeout           = 5 * time.Second
	keepAlive             = 30 * time.Second
	idleConnTimeout       = 90 * time.Second
	tlsHandshakeTimeout   = 5 * time.Second
	maxConnsPerHost       = 8
)

// Client creates requests against one upstream.
type Client interface {
	NewRequest() Request
	NewRequestWithOptions(opts ...RequestOption) Request
}

// InstrumentedClient is the Client implementation.
type InstrumentedClient struct {
	http     *http.Client
	cfg      settings
	requests metric.Int64Counter
	latency  metric.Float64Histogram
}

var _ Client = (*InstrumentedClient)(nil)

// NewInstrumentedClient builds a client with its own connection pool.
func NewInstrumentedClient(opts ...ClientOption) (Client, error) {
	cfg := defaultSettings()
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.tracer == nil {
		cfg.tracer = otel.Tracer(instrumentationName)
	}

	meter := otel.Meter(instrumentationName,
		metric.WithInstrumentationAttributes(attribute.String("provider", cfg.provider)))

	requests, err := meter.Int64Counter("http_client_requests_total",
		metric.WithDescription("Outbound HTTP requests"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram("http_client_request_duration_seconds",
		metric.WithDescription("Outbound HTTP request latency"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	transport := otelhttp.NewTransport(newTransport(),
		otelhttp.WithClientTrace(func(ctx context.Context) *httptrace.ClientTrace {
			return otelhttptrace.NewClientTrace(ctx)
		}),
	)

	return &InstrumentedClient{
		http:     &http.Client{Timeout: cfg.timeout, Transport: transport},
		cfg:      cfg,
		requests: requests,
		latency:  latency,
	}, nil
}

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: keepAlive,
		}).DialContext,
		MaxConnsPerHost:       maxConnsPerHost,
		MaxIdleConnsPerHost:   maxConnsPerHost,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   tlsHandshakeTimeout,
		ExpectContinueTimeout: time.Second,
	}
}

func (c *InstrumentedClient) NewRequest() Request {
	return c.NewRequestWithOptions()
}

func (c *InstrumentedClient) NewRequestWithOptions(opts ...RequestOption) Request {
	var call callSettings
	for _, o := range opts {
		o(&call)
	}
	return &requestBuilder{
		client:  c,
		call:    call,
		headers: c.cfg.headers.Clone(),
	}
}
