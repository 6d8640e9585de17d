package metrics

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lumenview/lumenview/types"
	"github.com/lumenview/lumenview/utils"
)

// MemoryMetrics is the in-process fallback used when prometheus is not
// configured. Values are kept only for inspection through GetMetrics.
type MemoryMetrics struct {
	counters map[string]*memoryCounter
	gauges   map[string]*memoryGauge
	mu       sync.RWMutex
	running  int32
}

func NewMemoryMetrics() types.MetricsManager {
	return &MemoryMetrics{
		counters: make(map[string]*memoryCounter),
		gauges:   make(map[string]*memoryGauge),
	}
}

func (m *MemoryMetrics) Start() error {
	if !atomic.CompareAndSwapInt32(&m.running, 0, 1) {
		return types.ErrMetricsAlreadyRunning
	}
	return nil
}

func (m *MemoryMetrics) Stop() error {
	if !atomic.CompareAndSwapInt32(&m.running, 1, 0) {
		return types.ErrMetricsNotRunning
	}
	return nil
}

func (m *MemoryMetrics) IsRunning() bool {
	return atomic.LoadInt32(&m.running) == 1
}

func (m *MemoryMetrics) Counter(name string, labels map[string]string) types.Counter {
	key := buildKey(name, labels)

	m.mu.Lock()
	defer m.mu.Unlock()

	if counter, exists := m.counters[key]; exists {
		return counter
	}

	counter := &memoryCounter{}
	m.counters[key] = counter
	return counter
}

func (m *MemoryMetrics) Gauge(name string, labels map[string]string) types.Gauge {
	key := buildKey(name, labels)

	m.mu.Lock()
	defer m.mu.Unlock()

	if gauge, exists := m.gauges[key]; exists {
		return gauge
	}

	gauge := &memoryGauge{}
	m.gauges[key] = gauge
	return gauge
}

func (m *MemoryMetrics) Histogram(name string, buckets []float64, labels map[string]string) types.Histogram {
	// Histograms collapse to a sum gauge in the memory backend.
	return &memoryHistogram{gauge: m.Gauge(name+"_sum", labels).(*memoryGauge)}
}

func (m *MemoryMetrics) GetMetrics() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	values := make(map[string]float64, len(m.counters)+len(m.gauges))
	for key, counter := range m.counters {
		values[key] = counter.Get()
	}
	for key, gauge := range m.gauges {
		values[key] = gauge.Get()
	}

	return utils.Marshal(values)
}

func buildKey(name string, labels map[string]string) string {
	key := name
	for labelName, labelValue := range labels {
		key += "|" + labelName + "=" + labelValue
	}
	return key
}

type memoryCounter struct {
	bits uint64
}

func (c *memoryCounter) Inc() { c.Add(1) }

func (c *memoryCounter) Add(value float64) {
	for {
		old := atomic.LoadUint64(&c.bits)
		next := math.Float64bits(math.Float64frombits(old) + value)
		if atomic.CompareAndSwapUint64(&c.bits, old, next) {
			return
		}
	}
}

func (c *memoryCounter) Get() float64 {
	return math.Float64frombits(atomic.LoadUint64(&c.bits))
}

type memoryGauge struct {
	bits uint64
}

func (g *memoryGauge) Set(value float64) {
	atomic.StoreUint64(&g.bits, math.Float64bits(value))
}

func (g *memoryGauge) Inc() { g.add(1) }
func (g *memoryGauge) Dec() { g.add(-1) }

func (g *memoryGauge) add(value float64) {
	for {
		old := atomic.LoadUint64(&g.bits)
		next := math.Float64bits(math.Float64frombits(old) + value)
		if atomic.CompareAndSwapUint64(&g.bits, old, next) {
			return
		}
	}
}

func (g *memoryGauge) Get() float64 {
	return math.Float64frombits(atomic.LoadUint64(&g.bits))
}

type memoryHistogram struct {
	gauge *memoryGauge
}

func (h *memoryHistogram) Observe(value float64) {
	h.gauge.add(value)
}

func (h *memoryHistogram) ObserveDuration(start time.Time) {
	h.Observe(time.Since(start).Seconds())
}
