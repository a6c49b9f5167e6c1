package heightmap

import (
	"context"
	"errors"
	"time"

	"github.com/annel0/terragen/internal/noise"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics Prometheus-метрики генератора карт.
type Metrics struct {
	duration  *prometheus.HistogramVec
	generated *prometheus.CounterVec
	failures  *prometheus.CounterVec
	seaRatio  prometheus.Gauge
}

// NewMetrics создаёт метрики и регистрирует их в reg (nil: дефолтный регистр).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "terragen",
			Name:      "generation_duration_seconds",
			Help:      "Длительность генерации карты высот.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"algorithm"}),
		generated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "terragen",
			Name:      "maps_generated_total",
			Help:      "Общее число сгенерированных карт.",
		}, []string{"algorithm"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "terragen",
			Name:      "generation_failures_total",
			Help:      "Ошибки генерации по причинам.",
		}, []string{"reason"}),
		seaRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "terragen",
			Name:      "last_map_sea_ratio",
			Help:      "Доля клеток на уровне моря в последней карте.",
		}),
	}
	reg.MustRegister(m.duration, m.generated, m.failures, m.seaRatio)
	return m
}

func (m *Metrics) observeSuccess(algorithm string, elapsed time.Duration, mp *Map) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(algorithm).Observe(elapsed.Seconds())
	m.generated.WithLabelValues(algorithm).Inc()
	if n := len(mp.Heightmap); n > 0 {
		m.seaRatio.Set(float64(mp.Stats().SeaCells) / float64(n))
	}
}

func (m *Metrics) observeFailure(err error) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(failureReason(err)).Inc()
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, noise.ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, noise.ErrDegenerateInput):
		return "degenerate_input"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "internal"
	}
}
