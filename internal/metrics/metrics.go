// Package metrics 定义 sortcode 的 Prometheus 指标。
//
// 每个 Metrics 拥有独立的 Registry（测试里可以并行创建多个实例）。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/John-Robertt/SortCode/internal/app"
	"github.com/John-Robertt/SortCode/internal/domain"
)

type Metrics struct {
	registry *prometheus.Registry

	lookups       *prometheus.CounterVec
	lookupLatency *prometheus.HistogramVec
	loads         *prometheus.CounterVec
	records       prometheus.Gauge
	ready         prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sortcode_lookups_total",
			Help: "Lookups by surface, mode and result kind",
		}, []string{"surface", "mode", "kind"}),
		lookupLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sortcode_lookup_latency_seconds",
			Help:    "Latency of lookups in seconds",
			Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}, []string{"surface"}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sortcode_dataset_loads_total",
			Help: "Dataset loads by result (ok/failed/kept)",
		}, []string{"result"}),
		records: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sortcode_dataset_records",
			Help: "Records in the live snapshot",
		}),
		ready: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sortcode_ready",
			Help: "1 when a snapshot is live",
		}),
	}
	m.registry.MustRegister(
		m.lookups, m.lookupLatency, m.loads, m.records, m.ready,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveLookup 记录一次查询（surface：http / grpc / cli）。
func (m *Metrics) ObserveLookup(surface string, r domain.Result, start time.Time) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(surface, string(r.Mode), string(r.Kind)).Inc()
	m.lookupLatency.WithLabelValues(surface).Observe(time.Since(start).Seconds())
}

// OnLoadDone 实现 app.Observer。
func (m *Metrics) OnLoadDone(ev app.LoadEvent) {
	if m == nil {
		return
	}
	switch {
	case ev.Err == nil:
		m.loads.WithLabelValues("ok").Inc()
		m.records.Set(float64(ev.Records))
		m.ready.Set(1)
	case ev.Kept:
		m.loads.WithLabelValues("kept").Inc()
	default:
		m.loads.WithLabelValues("failed").Inc()
		m.records.Set(0)
		m.ready.Set(0)
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
