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
// ミドルウェア、サービス層、ワーカーから利用する。
type MetricsCollector interface {
	RecordLoanCreated()
	RecordLoanReturned(fineCents int64)
	RecordCheckoutRejected(reason string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordSessionsPurged(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loansCreated     prometheus.Counter
	loansReturned    prometheus.Counter
	finesCents       prometheus.Counter
	lateReturns      prometheus.Counter
	checkoutRejected *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
	requestLatency   prometheus.Histogram
	sessionsPurged   prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loansCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bibliotech_loans_created_total",
			Help: "貸出の合計数",
		}),
		loansReturned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bibliotech_loans_returned_total",
			Help: "返却の合計数",
		}),
		finesCents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bibliotech_fines_cents_total",
			Help: "返却時に確定した延滞料の合計（センタボ）",
		}),
		lateReturns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bibliotech_late_returns_total",
			Help: "返却期限を過ぎた返却の合計数",
		}),
		checkoutRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bibliotech_checkout_rejected_total",
			Help: "理由別の貸出拒否数",
		}, []string{"reason"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bibliotech_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bibliotech_request_latency_seconds",
			Help:    "HTTPリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		sessionsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bibliotech_sessions_purged_total",
			Help: "期限切れで削除されたセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.loansCreated,
		c.loansReturned,
		c.finesCents,
		c.lateReturns,
		c.checkoutRejected,
		c.httpStatus,
		c.requestLatency,
		c.sessionsPurged,
	)

	return c
}

// RecordLoanCreated は貸出の成立を記録する。
func (c *Collector) RecordLoanCreated() {
	c.loansCreated.Inc()
}

// RecordLoanReturned は返却と確定した延滞料を記録する。
func (c *Collector) RecordLoanReturned(fineCents int64) {
	c.loansReturned.Inc()
	if fineCents > 0 {
		c.lateReturns.Inc()
		c.finesCents.Add(float64(fineCents))
	}
}

// RecordCheckoutRejected は貸出拒否を理由（エラーコード）別に記録する。
func (c *Collector) RecordCheckoutRejected(reason string) {
	c.checkoutRejected.WithLabelValues(reason).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordSessionsPurged は削除したセッション数を記録する。
func (c *Collector) RecordSessionsPurged(count int64) {
	c.sessionsPurged.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Middleware はレスポンスのステータスコードとレイテンシを記録するミドルウェアを返す。
func Middleware(c MetricsCollector) func(http.Handler) http.Handler {
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

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

var _ MetricsCollector = (*Collector)(nil)
