// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// gateway.MetricsCollectorを満たし、外部Webhookサービスへの
// ディスパッチ状況とセッションクリーンアップを記録する。
type Collector struct {
	dispatchTotal    *prometheus.CounterVec
	retryTotal       *prometheus.CounterVec
	transportFail    *prometheus.CounterVec
	dispatchLatency  *prometheus.HistogramVec
	sessionsCleaned  prometheus.Counter
	sessionsActive   prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		dispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "redditreach_gateway_dispatch_total",
			Help: "アクション・ステータスコード別のディスパッチ合計数",
		}, []string{"action", "status_code"}),
		retryTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "redditreach_gateway_retry_total",
			Help: "アクション別のリトライ合計数",
		}, []string{"action"}),
		transportFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "redditreach_gateway_transport_failure_total",
			Help: "アクション・失敗種別ごとのトランスポート障害数",
		}, []string{"action", "kind"}),
		dispatchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "redditreach_gateway_dispatch_latency_seconds",
			Help:    "ディスパッチのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"action"}),
		sessionsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "redditreach_sessions_cleaned_total",
			Help: "クリーンアップで削除された期限切れセッションの合計数",
		}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "redditreach_sessions_active",
			Help: "有効なセッション数",
		}),
	}

	reg.MustRegister(
		c.dispatchTotal,
		c.retryTotal,
		c.transportFail,
		c.dispatchLatency,
		c.sessionsCleaned,
		c.sessionsActive,
	)

	return c
}

// RecordDispatch はディスパッチ結果のHTTPステータスコードを記録する。
func (c *Collector) RecordDispatch(action string, statusCode int) {
	c.dispatchTotal.WithLabelValues(action, strconv.Itoa(statusCode)).Inc()
}

// RecordRetry はリトライ実行を記録する。
func (c *Collector) RecordRetry(action string) {
	c.retryTotal.WithLabelValues(action).Inc()
}

// RecordDispatchLatency はディスパッチのレイテンシを記録する。
func (c *Collector) RecordDispatchLatency(action string, d time.Duration) {
	c.dispatchLatency.WithLabelValues(action).Observe(d.Seconds())
}

// RecordTransportFailure はトランスポート障害（timeout / network）を記録する。
func (c *Collector) RecordTransportFailure(action string, kind string) {
	c.transportFail.WithLabelValues(action, kind).Inc()
}

// RecordSessionsCleaned はクリーンアップで削除されたセッション数を記録する。
func (c *Collector) RecordSessionsCleaned(count int) {
	c.sessionsCleaned.Add(float64(count))
}

// SetActiveSessions は有効セッション数を設定する。
func (c *Collector) SetActiveSessions(count int) {
	c.sessionsActive.Set(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
