package metrics

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCounter_SameSeries(t *testing.T) {
	c := NewCollector()
	a := c.Counter("test_total", "help", `kind="send"`)
	b := c.Counter("test_total", "help", `kind="send"`)
	if a != b {
		t.Fatal("expected the same counter for identical name and labels")
	}
	a.Inc()
	b.Inc()
	if a.Value() != 2 {
		t.Errorf("expected 2, got %d", a.Value())
	}
	if c.Counter("test_total", "help", `kind="react"`).Value() != 0 {
		t.Error("different labels must be a different series")
	}
}

func TestHistogram_Buckets(t *testing.T) {
	c := NewCollector()
	h := c.Histogram("lat_seconds", "latency", []float64{1, 0.1})
	h.Observe(0.05)
	h.Observe(0.5)
	h.Observe(10)

	if h.Count() != 3 {
		t.Fatalf("expected 3 observations, got %d", h.Count())
	}

	var sb strings.Builder
	if _, err := c.WriteTo(&sb); err != nil {
		t.Fatal(err)
	}
	out := sb.String()
	for _, want := range []string{
		`lat_seconds_bucket{le="0.1"} 1`,
		`lat_seconds_bucket{le="1"} 2`,
		`lat_seconds_bucket{le="+Inf"} 3`,
		`lat_seconds_count 3`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestHandler_Exposition(t *testing.T) {
	c := NewCollector()
	c.Counter("signalbot_payloads_total", "Payloads", `kind="react"`).Inc()

	rec := httptest.NewRecorder()
	c.Handler()(rec, httptest.NewRequest("GET", "/metrics", nil))

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("unexpected content type %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "# TYPE signalbot_payloads_total counter") {
		t.Errorf("missing TYPE line:\n%s", body)
	}
	if !strings.Contains(body, `signalbot_payloads_total{kind="react"} 1`) {
		t.Errorf("missing series:\n%s", body)
	}
}

type brokenResponse struct {
	header http.Header
}

func (b *brokenResponse) Header() http.Header { return b.header }
func (b *brokenResponse) WriteHeader(int) {}
func (b *brokenResponse) Write([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestHandler_LogsWriteError(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	c := NewCollector()
	c.Counter("test_total", "help", "").Inc()
	c.Handler()(&brokenResponse{header: http.Header{}}, httptest.NewRequest("GET", "/metrics", nil))

	if !strings.Contains(buf.String(), "metrics write failed") || !strings.Contains(buf.String(), "connection reset") {
		t.Errorf("expected write error to be logged, got %q", buf.String())
	}
}
