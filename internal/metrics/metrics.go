package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "admmap_requests_total",
		Help: "Total number of API requests by endpoint and status class",
	}, []string{"endpoint", "code"})
	RequestDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "admmap_request_duration_ms",
		Help:    "Request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"endpoint"})
	NotFoundTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "admmap_not_found_total",
		Help: "Lookups for region codes without data",
	}, []string{"kind"})
	CitiesDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "admmap_cities_dropped_total",
		Help: "City rows excluded from display because of missing statistics",
	})
	EnrichMatched = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "admmap_enrich_matched",
		Help: "Regions matched to a map feature during the last enrichment",
	})
	EnrichUnmatched = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "admmap_enrich_unmatched",
		Help: "Regions without a map feature during the last enrichment",
	})
	LocateCacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "admmap_locate_cache_hits_total",
		Help: "Locate cache hits by tier (lru, redis)",
	}, []string{"tier"})
	LocateCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "admmap_locate_cache_misses_total",
		Help: "Locate requests resolved by point-in-polygon search",
	})
	RateLimitedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "admmap_rate_limited_total",
		Help: "Requests rejected by the rate limiter",
	}, []string{"scope"})
	GeoIPLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "admmap_geoip_lookups_total",
		Help: "Visitor GeoIP lookups by result",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDurationMs)
	prometheus.MustRegister(NotFoundTotal)
	prometheus.MustRegister(CitiesDroppedTotal)
	prometheus.MustRegister(EnrichMatched)
	prometheus.MustRegister(EnrichUnmatched)
	prometheus.MustRegister(LocateCacheHitsTotal)
	prometheus.MustRegister(LocateCacheMissesTotal)
	prometheus.MustRegister(RateLimitedTotal)
	prometheus.MustRegister(GeoIPLookupsTotal)
}

// 文档注释：返回 Prometheus 指标处理器
// 背景：在 API 前缀下挂载 /metrics 供抓取。
func Handler() http.Handler { return promhttp.Handler() }
