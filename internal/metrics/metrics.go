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
// フィードサービスやワーカーから利用する。
type MetricsCollector interface {
	RecordFeedRequest(variant string, candidates, visible int)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordPreviewSuccess()
	RecordPreviewFailure(reason string)
	RecordPreviewLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	feedRequests   *prometheus.CounterVec
	feedCandidates *prometheus.HistogramVec
	feedVisible    *prometheus.HistogramVec
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
	previewSuccess prometheus.Counter
	previewFail    *prometheus.CounterVec
	previewLatency prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		feedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cookfeed_feed_requests_total",
			Help: "フィード種別ごとのリクエスト合計数",
		}, []string{"variant"}),
		feedCandidates: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cookfeed_feed_candidates",
			Help:    "可視性フィルタ前のフィード候補集合のサイズ",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"variant"}),
		feedVisible: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cookfeed_feed_visible_posts",
			Help:    "可視性フィルタ通過後のフィード投稿数",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"variant"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cookfeed_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cookfeed_http_request_duration_seconds",
			Help:    "HTTPリクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		previewSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cookfeed_preview_fetch_success_total",
			Help: "リンクプレビュー取得成功の合計数",
		}),
		previewFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cookfeed_preview_fetch_fail_total",
			Help: "リンクプレビュー取得失敗の合計数（理由別）",
		}, []string{"reason"}),
		previewLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cookfeed_preview_fetch_latency_seconds",
			Help:    "リンクプレビュー取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.feedRequests,
		c.feedCandidates,
		c.feedVisible,
		c.httpStatus,
		c.requestLatency,
		c.previewSuccess,
		c.previewFail,
		c.previewLatency,
	)

	return c
}

// RecordFeedRequest はフィード種別ごとのリクエストと候補集合サイズを記録する。
func (c *Collector) RecordFeedRequest(variant string, candidates, visible int) {
	c.feedRequests.WithLabelValues(variant).Inc()
	c.feedCandidates.WithLabelValues(variant).Observe(float64(candidates))
	c.feedVisible.WithLabelValues(variant).Observe(float64(visible))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はHTTPリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordPreviewSuccess はリンクプレビュー取得成功を記録する。
func (c *Collector) RecordPreviewSuccess() {
	c.previewSuccess.Inc()
}

// RecordPreviewFailure はリンクプレビュー取得失敗を理由付きで記録する。
func (c *Collector) RecordPreviewFailure(reason string) {
	c.previewFail.WithLabelValues(reason).Inc()
}

// RecordPreviewLatency はリンクプレビュー取得のレイテンシを記録する。
func (c *Collector) RecordPreviewLatency(duration time.Duration) {
	c.previewLatency.Observe(duration.Seconds())
}

// Middleware はHTTPステータスとレイテンシを記録するミドルウェアを返す。
func (c *Collector) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			c.RecordHTTPStatus(rec.status)
			c.RecordRequestLatency(time.Since(start))
		})
	}
}

// statusRecorder はレスポンスのステータスコードを捕捉する。
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
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
