package amsserver

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/felixge/httpsnoop"
	"github.com/function61/aitta/pkg/blobprovider"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsController struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec

	// per-destination storage traffic. using (totalRequests, errors) instead of
	// (successes, errors) b/c:
	//   https://promcon.io/2017-munich/slides/best-practices-and-beastly-pitfalls.pdf
	storageRequests *prometheus.CounterVec
	storageErrors   *prometheus.CounterVec
	storageBytes    *prometheus.CounterVec
}

func newMetricsController() *metricsController {
	reg := prometheus.NewRegistry()

	m := &metricsController{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aitta_http_requests_total",
			Help: "HTTP server's handled requests",
		}, []string{"code", "method"}),
		storageRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aitta_storage_requests_total",
			Help: "Storage provider operations (incl. errors)",
		}, []string{"destination", "op"}),
		storageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aitta_storage_errors_total",
			Help: "Storage provider failed operations",
		}, []string{"destination", "op"}),
		storageBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aitta_storage_written_bytes_total",
			Help: "Bytes written to storage providers",
		}, []string{"destination"}),
	}

	reg.MustRegister(m.httpRequests)
	reg.MustRegister(m.storageRequests)
	reg.MustRegister(m.storageErrors)
	reg.MustRegister(m.storageBytes)

	return m
}

func (m *metricsController) MetricsHTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// instruments a HTTP handler
func (m *metricsController) WrapHTTPServer(actual http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stats := httpsnoop.CaptureMetrics(actual, w, r)

		m.httpRequests.With(prometheus.Labels{
			"code":   strconv.Itoa(stats.Code),
			"method": r.Method,
		}).Inc()
	})
}

// decorates a storage provider with a proxy that doesn't change any behaviour, but
// records metrics for the operations
func (m *metricsController) WrapProvider(origin blobprovider.Provider, destinationName string) blobprovider.Provider {
	return &proxyProvider{origin, m, destinationName}
}

type proxyProvider struct {
	blobprovider.Provider
	metrics     *metricsController
	destination string
}

var _ blobprovider.Provider = (*proxyProvider)(nil)

func (p *proxyProvider) Put(ctx context.Context, content io.Reader, filename string, mimetype string) (string, error) {
	p.observe("put")

	counted := &readCounter{reader: content}

	mediaID, err := p.Provider.Put(ctx, counted, filename, mimetype)
	if err != nil {
		p.observeError("put")
	} else {
		// not all read bytes necessarily reached the backend in error cases, which is
		// why this is only recorded on success
		p.metrics.storageBytes.WithLabelValues(p.destination).Add(float64(counted.bytesRead))
	}

	return mediaID, err
}

func (p *proxyProvider) Get(ctx context.Context, mediaID string) (io.ReadCloser, error) {
	p.observe("get")

	content, err := p.Provider.Get(ctx, mediaID)
	if err != nil {
		p.observeError("get")
	}

	return content, err
}

func (p *proxyProvider) Delete(ctx context.Context, mediaID string) error {
	p.observe("delete")

	err := p.Provider.Delete(ctx, mediaID)
	if err != nil {
		p.observeError("delete")
	}

	return err
}

func (p *proxyProvider) observe(op string) {
	p.metrics.storageRequests.WithLabelValues(p.destination, op).Inc()
}

func (p *proxyProvider) observeError(op string) {
	p.metrics.storageErrors.WithLabelValues(p.destination, op).Inc()
}

type readCounter struct {
	reader    io.Reader
	bytesRead int64
}

func (r *readCounter) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.bytesRead += int64(n)

	return n, err
}
