// Package metrics keeps the service counters, latencies and sizes in a
// private Prometheus registry.
package metrics

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "doc_capture"

var sizeBuckets = prometheus.ExponentialBuckets(1024, 4, 10)

type MetricsCollector struct {
	registry  *prometheus.Registry
	counters  map[string]*prometheus.CounterVec
	latencies map[string]prometheus.Histogram
	sizes     map[string]prometheus.Histogram
	mutex     sync.Mutex
}

func NewMetricsCollector() *MetricsCollector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &MetricsCollector{
		registry:  registry,
		counters:  make(map[string]*prometheus.CounterVec),
		latencies: make(map[string]prometheus.Histogram),
		sizes:     make(map[string]prometheus.Histogram),
	}
}

// IncrementCounter adds one to name. The label keys of the first call fix the
// label set of the counter; later calls with different keys are dropped.
func (mc *MetricsCollector) IncrementCounter(name string, labels map[string]string) {
	keys := labelKeys(labels)

	mc.mutex.Lock()
	vec, exists := mc.counters[name]
	if !exists {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name + "_total",
			Help:      "Count of " + strings.ReplaceAll(name, "_", " ") + ".",
		}, keys)
		if err := mc.registry.Register(vec); err != nil {
			mc.mutex.Unlock()
			return
		}
		mc.counters[name] = vec
	}
	mc.mutex.Unlock()

	counter, err := vec.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		return
	}
	counter.Inc()
}

func (mc *MetricsCollector) ObserveLatency(name string, duration time.Duration) {
	h := mc.histogram(mc.latencies, name+"_duration_seconds", "Latency of "+strings.ReplaceAll(name, "_", " ")+".", prometheus.DefBuckets)
	if h != nil {
		h.Observe(duration.Seconds())
	}
}

func (mc *MetricsCollector) ObserveSize(name string, size float64) {
	h := mc.histogram(mc.sizes, name+"_bytes", "Size of "+strings.ReplaceAll(name, "_", " ")+".", sizeBuckets)
	if h != nil {
		h.Observe(size)
	}
}

func (mc *MetricsCollector) histogram(set map[string]prometheus.Histogram, name, help string, buckets []float64) prometheus.Histogram {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	if h, exists := set[name]; exists {
		return h
	}
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	})
	if err := mc.registry.Register(h); err != nil {
		return nil
	}
	set[name] = h
	return h
}

// CounterValue reads the current value of a counter, zero when unknown.
func (mc *MetricsCollector) CounterValue(name string, labels map[string]string) float64 {
	mc.mutex.Lock()
	vec, exists := mc.counters[name]
	mc.mutex.Unlock()
	if !exists {
		return 0
	}
	counter, err := vec.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		return 0
	}
	var m dto.Metric
	if err := counter.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

// GetCounters snapshots every counter as name -> "k:v,k:v" -> value.
func (mc *MetricsCollector) GetCounters() map[string]map[string]float64 {
	families, err := mc.registry.Gather()
	if err != nil {
		return nil
	}

	prefix := namespace + "_"
	counters := make(map[string]map[string]float64)
	for _, family := range families {
		if family.GetType() != dto.MetricType_COUNTER || !strings.HasPrefix(family.GetName(), prefix) {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(family.GetName(), prefix), "_total")
		counters[name] = make(map[string]float64)
		for _, m := range family.GetMetric() {
			pairs := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				pairs = append(pairs, lp.GetName()+":"+lp.GetValue())
			}
			key := "default"
			if len(pairs) > 0 {
				key = strings.Join(pairs, ",")
			}
			counters[name][key] = m.GetCounter().GetValue()
		}
	}
	return counters
}

func (mc *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(mc.registry, promhttp.HandlerOpts{Registry: mc.registry})
}

func labelKeys(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
