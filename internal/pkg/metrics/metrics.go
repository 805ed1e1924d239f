// internal/pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// 进程内的业务指标，统一注册，经 /metrics 暴露。
var (
	CheckoutTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "localcart_checkout_total",
		Help: "Checkout attempts by result.",
	}, []string{"result"})

	PaymentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "localcart_payment_total",
		Help: "Payment gateway operations by operation and result.",
	}, []string{"operation", "result"})

	EventsDispatched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "localcart_events_dispatched_total",
		Help: "Automation events by event name and delivery result.",
	}, []string{"event", "result"})

	EventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "localcart_events_dropped_total",
		Help: "Automation events dropped because the queue was full.",
	})

	ScanDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "localcart_scan_duration_seconds",
		Help:    "Duration of automation scan runs.",
		Buckets: prometheus.DefBuckets,
	}, []string{"scan"})
)

func init() {
	prometheus.MustRegister(CheckoutTotal, PaymentTotal, EventsDispatched, EventsDropped, ScanDuration)
}
