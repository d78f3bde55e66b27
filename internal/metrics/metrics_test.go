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

// counterValue は指定メトリクスの最初のカウンタ値を取得する。
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
	t.Fatalf("metric %q not found", name)
	return 0
}

// TestRecordDigestCounters は生成・失敗・スキップのカウンタを検証する。
func TestRecordDigestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordDigestGenerated()
	c.RecordDigestGenerated()
	c.RecordDigestSkipped()
	c.RecordDigestFailed("HEADLINE_FETCH_FAILED")

	if got := counterValue(t, reg, "pressroom_digest_generated_total"); got != 2 {
		t.Errorf("digest_generated_total = %v, want 2", got)
	}
	if got := counterValue(t, reg, "pressroom_digest_skipped_total"); got != 1 {
		t.Errorf("digest_skipped_total = %v, want 1", got)
	}
	if got := counterValue(t, reg, "pressroom_digest_failed_total"); got != 1 {
		t.Errorf("digest_failed_total = %v, want 1", got)
	}
}

// TestRecordDigestFailed_ReasonLabels は失敗カウンタが理由ラベル別に集計されることを検証する。
func TestRecordDigestFailed_ReasonLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordDigestFailed("HEADLINE_FETCH_FAILED")
	c.RecordDigestFailed("HEADLINE_FETCH_FAILED")
	c.RecordDigestFailed("GENERATION_FAILED")

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	for _, mf := range metrics {
		if mf.GetName() != "pressroom_digest_failed_total" {
			continue
		}
		if len(mf.GetMetric()) != 2 {
			t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
		}
		for _, m := range mf.GetMetric() {
			label := m.GetLabel()[0].GetValue()
			val := m.GetCounter().GetValue()
			switch label {
			case "HEADLINE_FETCH_FAILED":
				if val != 2 {
					t.Errorf("failed{reason=HEADLINE_FETCH_FAILED} = %v, want 2", val)
				}
			case "GENERATION_FAILED":
				if val != 1 {
					t.Errorf("failed{reason=GENERATION_FAILED} = %v, want 1", val)
				}
			default:
				t.Errorf("unexpected label value: %s", label)
			}
		}
	}
}

// TestRecordGenerationLatency_ObservesHistogram は生成レイテンシの記録を検証する。
func TestRecordGenerationLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordGenerationLatency(500 * time.Millisecond)
	c.RecordGenerationLatency(3 * time.Second)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "pressroom_digest_generation_seconds" {
			found = true
			h := mf.GetMetric()[0].GetHistogram()
			if h.GetSampleCount() != 2 {
				t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
			}
			// 合計は0.5 + 3.0 = 3.5秒
			if h.GetSampleSum() < 3.4 || h.GetSampleSum() > 3.6 {
				t.Errorf("sample_sum = %v, want ~3.5", h.GetSampleSum())
			}
		}
	}
	if !found {
		t.Error("pressroom_digest_generation_seconds metric not found")
	}
}

// TestRecordHeadlinesFetched_AddsCount は見出し数カウンタの加算を検証する。
func TestRecordHeadlinesFetched_AddsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHeadlinesFetched(12)
	c.RecordHeadlinesFetched(8)

	if got := counterValue(t, reg, "pressroom_headlines_fetched_total"); got != 20 {
		t.Errorf("headlines_fetched_total = %v, want 20", got)
	}
}

// TestRecordRateLimitRejection はスコープ別のレート制限カウンタを検証する。
func TestRecordRateLimitRejection(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRateLimitRejection("api")
	c.RecordRateLimitRejection("auth")
	c.RecordRateLimitRejection("auth")

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	for _, mf := range metrics {
		if mf.GetName() != "pressroom_rate_limit_rejected_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			label := m.GetLabel()[0].GetValue()
			val := m.GetCounter().GetValue()
			if label == "api" && val != 1 {
				t.Errorf("rejected{scope=api} = %v, want 1", val)
			}
			if label == "auth" && val != 2 {
				t.Errorf("rejected{scope=auth} = %v, want 2", val)
			}
		}
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordDigestGenerated()
	c.RecordDigestFailed("GENERATION_FAILED")
	c.RecordGenerationLatency(time.Second)
	c.RecordHeadlinesFetched(5)
	c.RecordRateLimitRejection("api")

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	expectedMetrics := []string{
		"pressroom_digest_generated_total",
		"pressroom_digest_failed_total",
		"pressroom_digest_generation_seconds",
		"pressroom_headlines_fetched_total",
		"pressroom_rate_limit_rejected_total",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestCollector_ImplementsMetricsCollectorInterface はインターフェース適合を検証する。
func TestCollector_ImplementsMetricsCollectorInterface(t *testing.T) {
	reg := prometheus.NewRegistry()
	var _ MetricsCollector = NewCollector(reg)
}
