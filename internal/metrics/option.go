package metrics

import "strings"

// Collector is an OTLP gRPC endpoint metrics are pushed to.
type Collector struct {
	Endpoint string
	Headers  map[string]string
	Insecure bool
}

type settings struct {
	service    string
	prometheus bool
	collectors []Collector
}

// Option configures NewMetricProvider.
type Option func(*settings)

func WithServiceName(name string) Option {
	return func(s *settings) {
		s.service = name
	}
}

// WithPrometheus exposes metrics through MeterProvider.Handler.
func WithPrometheus() Option {
	return func(s *settings) {
		s.prometheus = true
	}
}

// WithCollector pushes metrics to an OTLP collector. Plain host:port
// endpoints are treated as insecure.
func WithCollector(endpoint string, headers map[string]string) Option {
	return func(s *settings) {
		if endpoint == "" {
			return
		}
		if !strings.Contains(endpoint, "://") {
			endpoint = "http://" + endpoint
		}
		s.collectors = append(s.collectors, Collector{
			Endpoint: endpoint,
			Headers:  headers,
			Insecure: strings.HasPrefix(endpoint, "http://"),
		})
	}
}
