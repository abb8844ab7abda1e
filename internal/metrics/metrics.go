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
// 取り込みパイプラインとワーカーから利用する。
type MetricsCollector interface {
	RecordRunCompleted(duration time.Duration)
	RecordRunFailed(code string)
	RecordOutcome(outcome string)
	RecordItemFailure(code string)
	RecordPatchNotFound()
	RecordHTTPStatus(statusCode int)
	RecordSectionsStored(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	runsCompleted  prometheus.Counter
	runsFailed     *prometheus.CounterVec
	runDuration    prometheus.Histogram
	outcomes       *prometheus.CounterVec
	itemFailures   *prometheus.CounterVec
	notFound       prometheus.Counter
	httpStatus     *prometheus.CounterVec
	sectionsStored prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		runsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "patchvote_ingest_runs_completed_total",
			Help: "完走した取り込み実行の合計数",
		}),
		runsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "patchvote_ingest_runs_failed_total",
			Help: "ソースレベルの失敗で中断した取り込み実行の合計数",
		}, []string{"code"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "patchvote_ingest_run_duration_seconds",
			Help:    "取り込み実行1回の所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "patchvote_patch_upserts_total",
			Help: "UPSERT結果（created/updated/unchanged）別のパッチ数",
		}, []string{"outcome"}),
		itemFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "patchvote_patch_failures_total",
			Help: "エラーコード別のバージョン単位失敗数",
		}, []string{"code"}),
		notFound: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "patchvote_patch_not_found_total",
			Help: "全URL候補で見つからなかったバージョンの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "patchvote_source_http_status_total",
			Help: "外部ソースのHTTPステータスコード別レスポンス数",
		}, []string{"status_code"}),
		sectionsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "patchvote_sections_stored_total",
			Help: "保存されたパッチセクションの合計数",
		}),
	}

	reg.MustRegister(
		c.runsCompleted,
		c.runsFailed,
		c.runDuration,
		c.outcomes,
		c.itemFailures,
		c.notFound,
		c.httpStatus,
		c.sectionsStored,
	)

	return c
}

// RecordRunCompleted は取り込み実行の完走を記録する。
func (c *Collector) RecordRunCompleted(duration time.Duration) {
	c.runsCompleted.Inc()
	c.runDuration.Observe(duration.Seconds())
}

// RecordRunFailed はソースレベルの失敗による実行中断を記録する。
func (c *Collector) RecordRunFailed(code string) {
	c.runsFailed.WithLabelValues(code).Inc()
}

// RecordOutcome はUPSERT結果を記録する。
func (c *Collector) RecordOutcome(outcome string) {
	c.outcomes.WithLabelValues(outcome).Inc()
}

// RecordItemFailure はバージョン単位の失敗を記録する。
func (c *Collector) RecordItemFailure(code string) {
	c.itemFailures.WithLabelValues(code).Inc()
}

// RecordPatchNotFound は未発見バージョンを記録する。
func (c *Collector) RecordPatchNotFound() {
	c.notFound.Inc()
}

// RecordHTTPStatus は外部ソースのHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordSectionsStored は保存されたセクション数を記録する。
func (c *Collector) RecordSectionsStored(count int) {
	c.sectionsStored.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// ワーカープロセスのメトリクス公開に使用する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// NopCollector は何も記録しないMetricsCollector実装。
// 一回限りのfetchコマンドなどメトリクス公開先がない場面で使用する。
type NopCollector struct{}

func (NopCollector) RecordRunCompleted(time.Duration) {}
func (NopCollector) RecordRunFailed(string)           {}
func (NopCollector) RecordOutcome(string)             {}
func (NopCollector) RecordItemFailure(string)         {}
func (NopCollector) RecordPatchNotFound()             {}
func (NopCollector) RecordHTTPStatus(int)             {}
func (NopCollector) RecordSectionsStored(int)         {}
