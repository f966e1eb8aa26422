// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層やワーカーから利用する。
type MetricsCollector interface {
	RecordGenerateSuccess()
	RecordGenerateFailure(reason string)
	RecordGenerateLatency(duration time.Duration)
	RecordCacheHit()
	RecordCacheMiss()
	RecordBatchRun(succeeded, failed int)
	RecordBatchDuration(duration time.Duration)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	generateSuccess prometheus.Counter
	generateFail    *prometheus.CounterVec
	generateLatency prometheus.Histogram
	cacheHit        prometheus.Counter
	cacheMiss       prometheus.Counter
	batchSucceeded  prometheus.Counter
	batchFailed     prometheus.Counter
	batchDuration   prometheus.Histogram
	httpStatus      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		generateSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fitplan_generate_success_total",
			Help: "プラン生成成功の合計数",
		}),
		generateFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fitplan_generate_fail_total",
			Help: "プラン生成失敗の合計数（エラー種別ごと）",
		}, []string{"reason"}),
		generateLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fitplan_generate_latency_seconds",
			Help:    "プラン生成のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHit: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fitplan_cache_hit_total",
			Help: "プランキャッシュヒットの合計数",
		}),
		cacheMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fitplan_cache_miss_total",
			Help: "プランキャッシュミスの合計数",
		}),
		batchSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fitplan_recompute_succeeded_total",
			Help: "再計算バッチで成功したユーザーの合計数",
		}),
		batchFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fitplan_recompute_failed_total",
			Help: "再計算バッチで失敗したユーザーの合計数",
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fitplan_recompute_duration_seconds",
			Help:    "再計算バッチの実行時間（秒）",
			Buckets: []float64{1, 10, 60, 300, 900, 1800, 3600, 7200},
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fitplan_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.generateSuccess,
		c.generateFail,
		c.generateLatency,
		c.cacheHit,
		c.cacheMiss,
		c.batchSucceeded,
		c.batchFailed,
		c.batchDuration,
		c.httpStatus,
	)

	return c
}

// RecordGenerateSuccess はプラン生成成功を記録する。
func (c *Collector) RecordGenerateSuccess() {
	c.generateSuccess.Inc()
}

// RecordGenerateFailure はプラン生成失敗をエラー種別ラベル付きで記録する。
func (c *Collector) RecordGenerateFailure(reason string) {
	c.generateFail.WithLabelValues(reason).Inc()
}

// RecordGenerateLatency はプラン生成のレイテンシを記録する。
func (c *Collector) RecordGenerateLatency(duration time.Duration) {
	c.generateLatency.Observe(duration.Seconds())
}

// RecordCacheHit はキャッシュヒットを記録する。
func (c *Collector) RecordCacheHit() {
	c.cacheHit.Inc()
}

// RecordCacheMiss はキャッシュミスを記録する。
func (c *Collector) RecordCacheMiss() {
	c.cacheMiss.Inc()
}

// RecordBatchRun は再計算バッチの成功・失敗数を記録する。
func (c *Collector) RecordBatchRun(succeeded, failed int) {
	c.batchSucceeded.Add(float64(succeeded))
	c.batchFailed.Add(float64(failed))
}

// RecordBatchDuration は再計算バッチの実行時間を記録する。
func (c *Collector) RecordBatchDuration(duration time.Duration) {
	c.batchDuration.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
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
