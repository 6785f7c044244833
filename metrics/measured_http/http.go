// Package measuredhttp wraps an http.ServeMux with a per-route latency
// histogram, grounded on the teacher's measured_http package but
// taking an explicit prometheus.Registerer instead of a package-level
// MustRegister singleton so multiple PKD components in one process
// (or multiple test registries) don't collide on registration.
package measuredhttp

import (
	"fmt"
	"net/http"

	"github.com/jmhodges/clock"
	"github.com/prometheus/client_golang/prometheus"
)

// responseWriterWithStatus satisfies http.ResponseWriter, but keeps track of the
// status code for gathering stats.
type responseWriterWithStatus struct {
	http.ResponseWriter
	code int
}

// WriteHeader stores a status code for generating stats.
func (r *responseWriterWithStatus) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// MeasuredHandler wraps an http.Handler and records prometheus stats
type MeasuredHandler struct {
	*http.ServeMux
	clk  clock.Clock
	stat *prometheus.HistogramVec
}

// New wraps m, registering its latency histogram against reg.
func New(reg prometheus.Registerer, m *http.ServeMux, clk clock.Clock) *MeasuredHandler {
	stat := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pkd",
			Name:      "http_response_time_seconds",
			Help:      "Time taken to respond to a request, by endpoint/method/code.",
		},
		[]string{"endpoint", "method", "code"})
	reg.MustRegister(stat)
	return &MeasuredHandler{
		ServeMux: m,
		clk:      clk,
		stat:     stat,
	}
}

func (h *MeasuredHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	begin := h.clk.Now()
	rwws := &responseWriterWithStatus{w, 0}

	subHandler, pattern := h.Handler(r)
	defer func() {
		h.stat.With(prometheus.Labels{
			"endpoint": pattern,
			"method":   r.Method,
			"code":     fmt.Sprintf("%d", rwws.code),
		}).Observe(h.clk.Since(begin).Seconds())
	}()

	subHandler.ServeHTTP(rwws, r)
}
