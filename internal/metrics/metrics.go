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
// アカウント操作の結果とHTTPレスポンスを記録する。
type Collector struct {
	usersCreated       prometheus.Counter
	accountsCreated    prometheus.Counter
	membershipsAdded   prometheus.Counter
	membershipsRemoved prometheus.Counter
	rejected           *prometheus.CounterVec
	httpStatus         *prometheus.CounterVec
	requestLatency     prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		usersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "starter_users_created_total",
			Help: "作成されたユーザーの合計数",
		}),
		accountsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "starter_accounts_created_total",
			Help: "作成されたアカウントの合計数",
		}),
		membershipsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "starter_memberships_added_total",
			Help: "追加された所属の合計数",
		}),
		membershipsRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "starter_memberships_removed_total",
			Help: "削除要求された所属の合計数",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "starter_operations_rejected_total",
			Help: "ロールバックまたは権限不足で拒否された操作数",
		}, []string{"operation"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "starter_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "starter_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.usersCreated,
		c.accountsCreated,
		c.membershipsAdded,
		c.membershipsRemoved,
		c.rejected,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordUserCreated はユーザー作成を記録する。
func (c *Collector) RecordUserCreated() {
	c.usersCreated.Inc()
}

// RecordAccountCreated はアカウント作成を記録する。
func (c *Collector) RecordAccountCreated() {
	c.accountsCreated.Inc()
}

// RecordMembershipAdded は所属の追加を記録する。
func (c *Collector) RecordMembershipAdded() {
	c.membershipsAdded.Inc()
}

// RecordMembershipRemoved は所属の削除を記録する。
func (c *Collector) RecordMembershipRemoved() {
	c.membershipsRemoved.Inc()
}

// RecordRejected は拒否された操作を記録する。
func (c *Collector) RecordRejected(operation string) {
	c.rejected.WithLabelValues(operation).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストの処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
