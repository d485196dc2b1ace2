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
// サービス層、ミドルウェア、クリーンアップジョブから利用する。
type MetricsCollector interface {
	RecordFetchSuccess()
	RecordFetchFailure(reason string)
	RecordFetchLatency(duration time.Duration)
	RecordCacheHit()
	RecordCacheMiss()
	RecordSnapshotWriteFailure()
	RecordAuthFailure(reason string)
	RecordSessionsSwept(count int64)
	RecordCacheEntriesSwept(count int)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	fetchSuccess      prometheus.Counter
	fetchFail         *prometheus.CounterVec
	fetchLatency      prometheus.Histogram
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	snapshotWriteFail prometheus.Counter
	authFailures      *prometheus.CounterVec
	sessionsSwept     prometheus.Counter
	cacheEntriesSwept prometheus.Counter
	httpStatus        *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetchSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sheetdash_sheet_fetch_success_total",
			Help: "スプレッドシート取得成功の合計数",
		}),
		fetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sheetdash_sheet_fetch_fail_total",
			Help: "スプレッドシート取得失敗の合計数",
		}, []string{"reason"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sheetdash_sheet_fetch_latency_seconds",
			Help:    "Sheets API呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sheetdash_cache_hits_total",
			Help: "シートデータキャッシュのヒット数",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sheetdash_cache_misses_total",
			Help: "シートデータキャッシュのミス数",
		}),
		snapshotWriteFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sheetdash_snapshot_write_fail_total",
			Help: "スナップショット保存失敗の合計数",
		}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sheetdash_auth_failures_total",
			Help: "認証失敗の理由別件数",
		}, []string{"reason"}),
		sessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sheetdash_sessions_swept_total",
			Help: "期限切れとして削除されたセッション数",
		}),
		cacheEntriesSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sheetdash_cache_entries_swept_total",
			Help: "期限切れとして削除されたキャッシュエントリ数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sheetdash_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.fetchSuccess,
		c.fetchFail,
		c.fetchLatency,
		c.cacheHits,
		c.cacheMisses,
		c.snapshotWriteFail,
		c.authFailures,
		c.sessionsSwept,
		c.cacheEntriesSwept,
		c.httpStatus,
	)

	return c
}

// RecordFetchSuccess はシート取得成功を記録する。
func (c *Collector) RecordFetchSuccess() {
	c.fetchSuccess.Inc()
}

// RecordFetchFailure はシート取得失敗を記録する。
func (c *Collector) RecordFetchFailure(reason string) {
	c.fetchFail.WithLabelValues(reason).Inc()
}

// RecordFetchLatency はSheets API呼び出しのレイテンシを記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordCacheHit はキャッシュヒットを記録する。
func (c *Collector) RecordCacheHit() {
	c.cacheHits.Inc()
}

// RecordCacheMiss はキャッシュミスを記録する。
func (c *Collector) RecordCacheMiss() {
	c.cacheMisses.Inc()
}

// RecordSnapshotWriteFailure はスナップショット保存失敗を記録する。
func (c *Collector) RecordSnapshotWriteFailure() {
	c.snapshotWriteFail.Inc()
}

// RecordAuthFailure は認証失敗を理由別に記録する。
func (c *Collector) RecordAuthFailure(reason string) {
	c.authFailures.WithLabelValues(reason).Inc()
}

// RecordSessionsSwept は削除されたセッション数を記録する。
func (c *Collector) RecordSessionsSwept(count int64) {
	c.sessionsSwept.Add(float64(count))
}

// RecordCacheEntriesSwept は削除されたキャッシュエントリ数を記録する。
func (c *Collector) RecordCacheEntriesSwept(count int) {
	c.cacheEntriesSwept.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使用する。
type Nop struct{}

func (Nop) RecordFetchSuccess()              {}
func (Nop) RecordFetchFailure(string)        {}
func (Nop) RecordFetchLatency(time.Duration) {}
func (Nop) RecordCacheHit()                  {}
func (Nop) RecordCacheMiss()                 {}
func (Nop) RecordSnapshotWriteFailure()      {}
func (Nop) RecordAuthFailure(string)         {}
func (Nop) RecordSessionsSwept(int64)        {}
func (Nop) RecordCacheEntriesSwept(int)      {}
func (Nop) RecordHTTPStatus(int)             {}

// OrNop はcがnilの場合にNopを返す。
func OrNop(c MetricsCollector) MetricsCollector {
	if c == nil {
		return Nop{}
	}
	return c
}

// Handler はregを公開するスクレイプ用ハンドラーを返す。
// 一部のコレクターが失敗しても残りは返し、スクレイプ自体の件数もregに記録する。
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.InstrumentMetricHandler(reg, promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
		Registry:      reg,
	}))
}

// compile-time interface checks
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
