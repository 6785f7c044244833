package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("failed to read counter metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestNewPKDMetricsRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPKDMetrics(reg)

	m.IngestFilesTotal.WithLabelValues("LDIF", "success").Inc()
	m.IngestDuplicatesTotal.Inc()

	if v := counterValue(t, m.IngestFilesTotal.WithLabelValues("LDIF", "success")); v != 1 {
		t.Errorf("expected IngestFilesTotal=1, got %v", v)
	}
	if v := counterValue(t, m.IngestDuplicatesTotal); v != 1 {
		t.Errorf("expected IngestDuplicatesTotal=1, got %v", v)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if len(families) == 0 {
		t.Error("expected at least one registered metric family")
	}
}

func TestNewPKDMetricsPanicsOnDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewPKDMetrics(reg)
	defer func() {
		if recover() == nil {
			t.Error("expected a panic from MustRegister on duplicate collector registration")
		}
	}()
	NewPKDMetrics(reg)
}

func TestHTTPMonitorRecordsStatusBucketAndInFlight(t *testing.T) {
	reg := prometheus.NewRegistry()
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mon := NewHTTPMonitor(reg, inner, "test")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	mon.ServeHTTP(rec, req)

	v := counterValue(t, mon.requests.WithLabelValues("4xx"))
	if v != 1 {
		t.Errorf("expected one 4xx request recorded, got %v", v)
	}
}

func TestStatusBucketClassifiesRanges(t *testing.T) {
	cases := map[int]string{200: "2xx", 201: "2xx", 301: "3xx", 404: "4xx", 500: "5xx", 503: "5xx"}
	for code, want := range cases {
		if got := statusBucket(code); got != want {
			t.Errorf("statusBucket(%d) = %q, want %q", code, got, want)
		}
	}
}

func TestTimerObserveDurationRecordsAPositiveValue(t *testing.T) {
	reg := prometheus.NewRegistry()
	hist := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pkd", Subsystem: "test", Name: "duration_seconds", Help: "test",
	}, []string{"op"})
	reg.MustRegister(hist)

	timer := NewTimer(hist.WithLabelValues("op"))
	timer.ObserveDuration()

	var m dto.Metric
	if err := hist.WithLabelValues("op").(prometheus.Histogram).Write(&m); err != nil {
		t.Fatalf("failed to read histogram: %v", err)
	}
	if m.GetHistogram().GetSampleCount() != 1 {
		t.Errorf("expected one observed sample, got %d", m.GetHistogram().GetSampleCount())
	}
}
