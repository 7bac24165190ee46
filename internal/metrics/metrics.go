// Package metrics публикует счётчики операций над иерархией в Prometheus.
package metrics

import (
	"errors"
	"time"

	"github.com/org-hierarchy-api/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics содержит все метрики сервиса
type Metrics struct {
	Operations      *prometheus.CounterVec
	RebuildDuration prometheus.Histogram
	TreeSize        *prometheus.GaugeVec
}

// New создаёт метрики и регистрирует их в reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "orgchart",
				Name:      "operations_total",
				Help:      "Hierarchy operations by result",
			},
			[]string{"operation", "result"},
		),
		RebuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "orgchart",
				Name:      "rebuild_duration_seconds",
				Help:      "Full tree rebuild duration",
				Buckets:   prometheus.DefBuckets,
			},
		),
		TreeSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "orgchart",
				Name:      "tree_nodes",
				Help:      "Employees attached to the tree of a scope",
			},
			[]string{"scope"},
		),
	}
	reg.MustRegister(m.Operations, m.RebuildDuration, m.TreeSize)
	return m
}

// ObserveOperation учитывает результат операции
func (m *Metrics) ObserveOperation(op string, err error) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op, Result(err)).Inc()
}

// ObserveRebuild учитывает полную пересборку дерева
func (m *Metrics) ObserveRebuild(scope string, started time.Time, nodes int) {
	if m == nil {
		return
	}
	m.RebuildDuration.Observe(time.Since(started).Seconds())
	m.TreeSize.WithLabelValues(scope).Set(float64(nodes))
}

// Result переводит ошибку в значение метки result
func Result(err error) string {
	var storeErr *domain.StoreError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrEmployeeNotFound), errors.Is(err, domain.ErrReportingLineNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrHasChildren):
		return "has_children"
	case errors.Is(err, domain.ErrLastDirector):
		return "last_director"
	case errors.Is(err, domain.ErrRootLinkRejected):
		return "root_link"
	case errors.Is(err, domain.ErrCycleRejected):
		return "cycle"
	case errors.Is(err, domain.ErrRootImmutable):
		return "root_immutable"
	case errors.As(err, &storeErr):
		return "store_error"
	default:
		return "error"
	}
}
