package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsRecorder exports operation latency, outcome counts and PPE
// stock levels as Prometheus collectors.
type PrometheusMetricsRecorder struct {
	duration *prometheus.HistogramVec
	total    *prometheus.CounterVec
	stock    *prometheus.GaugeVec
}

// NewPrometheusMetricsRecorder registers the collectors with reg. A nil
// registerer uses prometheus.DefaultRegisterer.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &PrometheusMetricsRecorder{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ehs",
			Name:      "operation_duration_seconds",
			Help:      "Latency of ehscore service operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ehs",
			Name:      "operations_total",
			Help:      "Completed ehscore service operations by outcome.",
		}, []string{"operation", "status"}),
		stock: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ehs",
			Name:      "ppe_stock_level",
			Help:      "Current stock of each PPE item.",
		}, []string{"ppe_id", "name"}),
	}
	for _, c := range []prometheus.Collector{r.duration, r.total, r.stock} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Observe implements MetricsRecorder.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := string(AuditStatusSuccess)
	if !success {
		status = string(AuditStatusError)
	}
	r.duration.WithLabelValues(operation).Observe(duration.Seconds())
	r.total.WithLabelValues(operation, status).Inc()
}

// ObserveStock implements StockObserver.
func (r *PrometheusMetricsRecorder) ObserveStock(item PpeItem) {
	r.stock.WithLabelValues(item.ID, item.Name).Set(item.Stock.InexactFloat64())
}
