package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 迁移与管理接口的 Prometheus 指标
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	ImportOrders        *prometheus.CounterVec
	ImportRuns          *prometheus.CounterVec
	ImportDuration      prometheus.Histogram
	ReviewItemsCreated  *prometheus.CounterVec
	ConversionsWritten  *prometheus.CounterVec
	ReconcileRuns       *prometheus.CounterVec
	ReconcileViolations *prometheus.GaugeVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default 注册到全局 Registerer 的指标（进程内只注册一次）
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// New 在指定 Registerer 上创建指标
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "migrate_http_requests_total",
				Help: "Total number of admin API requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "migrate_http_request_duration_seconds",
				Help:    "Admin API latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		ImportOrders: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "migrate_import_orders_total",
				Help: "Legacy orders processed by outcome",
			},
			[]string{"outcome"},
		),
		ImportRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "migrate_import_runs_total",
				Help: "Import runs by mode and status",
			},
			[]string{"mode", "status"},
		),
		ImportDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "migrate_import_duration_seconds",
			Help:    "Import run duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		ReviewItemsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "migrate_review_items_created_total",
				Help: "Manual review items created by kind",
			},
			[]string{"kind"},
		),
		ConversionsWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "migrate_conversions_written_total",
				Help: "Affiliate conversions written by action",
			},
			[]string{"action"},
		),
		ReconcileRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "migrate_reconcile_runs_total",
				Help: "Reconciliation runs by result",
			},
			[]string{"result"},
		),
		ReconcileViolations: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "migrate_reconcile_invariant_violations",
				Help: "Invariant violations found by the last reconciliation",
			},
			[]string{"invariant"},
		),
	}
}

// RecordImportOrder 记录单笔订单处理结果
func (m *Metrics) RecordImportOrder(outcome string) {
	if m == nil {
		return
	}
	m.ImportOrders.WithLabelValues(outcome).Inc()
}

// RecordImportRun 记录导入批次
func (m *Metrics) RecordImportRun(dryRun bool, status string, duration time.Duration) {
	if m == nil {
		return
	}
	mode := "execute"
	if dryRun {
		mode = "dry_run"
	}
	m.ImportRuns.WithLabelValues(mode, status).Inc()
	m.ImportDuration.Observe(duration.Seconds())
}

// RecordReviewItem 记录新建复核项
func (m *Metrics) RecordReviewItem(kind string) {
	if m == nil {
		return
	}
	m.ReviewItemsCreated.WithLabelValues(kind).Inc()
}

// RecordConversion 记录推广转化写入
func (m *Metrics) RecordConversion(action string) {
	if m == nil {
		return
	}
	m.ConversionsWritten.WithLabelValues(action).Inc()
}

// RecordReconcile 记录对账结果与不变量违反数
func (m *Metrics) RecordReconcile(passed bool, violations map[string]int64) {
	if m == nil {
		return
	}
	result := "failed"
	if passed {
		result = "passed"
	}
	m.ReconcileRuns.WithLabelValues(result).Inc()
	for name, count := range violations {
		m.ReconcileViolations.WithLabelValues(name).Set(float64(count))
	}
}

// Middleware gin 请求指标中间件
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
