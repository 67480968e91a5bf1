package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OrderMetrics 汇集订单服务的可观测指标。
// CompensationFailures 是运维发现库存不一致的主要信号，
// 补偿失败不会上抛错误，只会体现在这里和日志里。
type OrderMetrics struct {
	OrdersCreated        prometheus.Counter
	StatusTransitions    *prometheus.CounterVec
	CompensationFailures prometheus.Counter
	ExternalCallDuration *prometheus.HistogramVec
	HTTPRequests         *prometheus.CounterVec
}

// NewOrderMetrics 注册并返回指标集合。重复注册会 panic，每个进程只调用一次。
func NewOrderMetrics() *OrderMetrics {
	m := &OrderMetrics{
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orderhub",
			Name:      "orders_created_total",
			Help:      "Total number of orders successfully created.",
		}),
		StatusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orderhub",
			Name:      "order_status_transitions_total",
			Help:      "Committed order status transitions.",
		}, []string{"from", "to"}),
		CompensationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orderhub",
			Name:      "stock_compensation_failures_total",
			Help:      "Best-effort stock releases that did not succeed.",
		}),
		ExternalCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "orderhub",
			Name:      "external_call_duration_seconds",
			Help:      "Latency of calls to collaborating services.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "operation"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orderhub",
			Name:      "http_requests_total",
			Help:      "Total number of handled HTTP requests.",
		}, []string{"handler", "status"}),
	}
	prometheus.MustRegister(
		m.OrdersCreated,
		m.StatusTransitions,
		m.CompensationFailures,
		m.ExternalCallDuration,
		m.HTTPRequests,
	)
	return m
}

// Handler 暴露 /metrics 端点。
func Handler() http.Handler {
	return promhttp.Handler()
}
