package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics stores Prometheus collectors used across the service.
type Metrics struct {
	ShopifyRequests *prometheus.CounterVec
	ShopifyLatency  *prometheus.HistogramVec
	CarrierRequests *prometheus.CounterVec
	CarrierLatency  *prometheus.HistogramVec
	OrderLookups    *prometheus.CounterVec
	Errors          *prometheus.CounterVec
}

var (
	regOnce         sync.Once
	metricsInstance *Metrics
)

// Registry builds and registers the metrics singleton with optional namespace.
func Registry(namespace string) *Metrics {
	regOnce.Do(func() {
		metricsInstance = &Metrics{
			ShopifyRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "shopify_requests_total",
				Help:      "Total Shopify Admin API requests by operation and status.",
			}, []string{"operation", "status"}),
			ShopifyLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "shopify_request_duration_seconds",
				Help:      "Latency distribution for Shopify Admin API requests.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation", "status"}),
			CarrierRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "carrier_requests_total",
				Help:      "Total shipping carrier API requests by endpoint and status.",
			}, []string{"endpoint", "status"}),
			CarrierLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "carrier_request_duration_seconds",
				Help:      "Latency distribution for shipping carrier API requests.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"endpoint", "status"}),
			OrderLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "order_lookups_total",
				Help:      "Total account/support order lookups by channel and outcome.",
			}, []string{"channel", "outcome"}),
			Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total errors grouped by component.",
			}, []string{"component"}),
		}

		prometheus.MustRegister(
			metricsInstance.ShopifyRequests,
			metricsInstance.ShopifyLatency,
			metricsInstance.CarrierRequests,
			metricsInstance.CarrierLatency,
			metricsInstance.OrderLookups,
			metricsInstance.Errors,
		)
	})
	return metricsInstance
}
