// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ワーカーやサービス層から利用する。
type MetricsCollector interface {
	RecordDigestGenerated()
	RecordDigestFailed(reason string)
	RecordDigestSkipped()
	RecordGenerationLatency(duration time.Duration)
	RecordHeadlinesFetched(count int)
	RecordRateLimitRejection(scope string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	digestGenerated   prometheus.Counter
	digestFailed      *prometheus.CounterVec
	digestSkipped     prometheus.Counter
	generationLatency prometheus.Histogram
	headlinesFetched  prometheus.Counter
	rateLimitRejected *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		digestGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pressroom_digest_generated_total",
			Help: "ダイジェスト生成成功の合計数",
		}),
		digestFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pressroom_digest_failed_total",
			Help: "理由別のダイジェスト生成失敗の合計数",
		}, []string{"reason"}),
		digestSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pressroom_digest_skipped_total",
			Help: "既存ダイジェストによりスキップされた生成の合計数",
		}),
		generationLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pressroom_digest_generation_seconds",
			Help:    "ダイジェスト生成のレイテンシ（秒）",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}),
		headlinesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pressroom_headlines_fetched_total",
			Help: "取得された見出しの合計数",
		}),
		rateLimitRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pressroom_rate_limit_rejected_total",
			Help: "スコープ別のレート制限による拒否の合計数",
		}, []string{"scope"}),
	}

	reg.MustRegister(
		c.digestGenerated,
		c.digestFailed,
		c.digestSkipped,
		c.generationLatency,
		c.headlinesFetched,
		c.rateLimitRejected,
	)

	return c
}

// RecordDigestGenerated はダイジェスト生成成功を記録する。
func (c *Collector) RecordDigestGenerated() {
	c.digestGenerated.Inc()
}

// RecordDigestFailed はダイジェスト生成失敗を理由付きで記録する。
func (c *Collector) RecordDigestFailed(reason string) {
	c.digestFailed.WithLabelValues(reason).Inc()
}

// RecordDigestSkipped は生成スキップを記録する。
func (c *Collector) RecordDigestSkipped() {
	c.digestSkipped.Inc()
}

// RecordGenerationLatency は生成のレイテンシを記録する。
func (c *Collector) RecordGenerationLatency(duration time.Duration) {
	c.generationLatency.Observe(duration.Seconds())
}

// RecordHeadlinesFetched は取得された見出し数を記録する。
func (c *Collector) RecordHeadlinesFetched(count int) {
	c.headlinesFetched.Add(float64(count))
}

// RecordRateLimitRejection はレート制限による拒否をスコープ付きで記録する。
// スコープは"api"または"auth"。
func (c *Collector) RecordRateLimitRejection(scope string) {
	c.rateLimitRejected.WithLabelValues(scope).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
