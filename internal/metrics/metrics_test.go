package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordCommentCreated_IncrementsCounter は投稿カウンタが増加することを検証する。
func TestRecordCommentCreated_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCommentCreated()
	c.RecordCommentCreated()

	if got := counterValue(t, reg, "tunetalk_comments_created_total"); got != 2 {
		t.Errorf("tunetalk_comments_created_total = %v, want 2", got)
	}
}

// TestRecordTokenExchange_LabelsByResult は交換結果がラベル別に記録されることを検証する。
func TestRecordTokenExchange_LabelsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordTokenExchange(true)
	c.RecordTokenExchange(true)
	c.RecordTokenExchange(false)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	for _, mf := range metrics {
		if mf.GetName() != "tunetalk_token_exchanges_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			result := ""
			for _, l := range m.GetLabel() {
				if l.GetName() == "result" {
					result = l.GetValue()
				}
			}
			switch result {
			case "success":
				if m.GetCounter().GetValue() != 2 {
					t.Errorf("success = %v, want 2", m.GetCounter().GetValue())
				}
			case "failure":
				if m.GetCounter().GetValue() != 1 {
					t.Errorf("failure = %v, want 1", m.GetCounter().GetValue())
				}
			}
		}
		return
	}
	t.Error("tunetalk_token_exchanges_total not found")
}

// TestRecordHTTPRequest_LabelsByRoute はルートパターン別にリクエストが記録されることを検証する。
func TestRecordHTTPRequest_LabelsByRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPRequest(http.MethodGet, "/api/comments", http.StatusOK)
	c.RecordHTTPLatency(25 * time.Millisecond)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "tunetalk_http_requests_total" {
			found = true
		}
	}
	if !found {
		t.Error("tunetalk_http_requests_total not found")
	}
}

// TestSetupMetricsRoute_ServesMetrics は/metricsパスでメトリクスが返ることを検証する。
func TestSetupMetricsRoute_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordCommentCreated()

	handler := SetupMetricsRoute(reg)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "tunetalk_comments_created_total") {
		t.Error("response should contain tunetalk_comments_created_total metric")
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}
