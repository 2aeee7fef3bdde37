package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// VaultMetrics - метрики операций машины состояний хранилища.
type VaultMetrics struct {
	// Количество операций по виду и результату (ok или код ошибки).
	operations *prometheus.CounterVec

	// Длительность операций.
	latencies *prometheus.HistogramVec
}

// NewVaultMetrics создает метрики операций хранилища с префиксом pkg.
func NewVaultMetrics(pkg string) *VaultMetrics {
	m := &VaultMetrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: fmt.Sprintf("%s_vault_operations", pkg),
				Help: "How many vault operations occur, partitioned by operation and result.",
			},
			[]string{"operation", "result"},
		),
		latencies: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: fmt.Sprintf("%s_vault_operation_latencies", pkg),
				Help: "How long vault operations take, partitioned by operation.",
			},
			[]string{"operation"},
		),
	}
	m.operations = registerOnce(m.operations).(*prometheus.CounterVec) //nolint:errcheck // тип известен
	m.latencies = registerOnce(m.latencies).(*prometheus.HistogramVec) //nolint:errcheck // тип известен
	return m
}

// Operation возвращает счетчик операции с результатом result.
func (m *VaultMetrics) Operation(operation, result string) prometheus.Counter {
	return m.operations.WithLabelValues(operation, result)
}

// Timer запускает таймер длительности операции.
func (m *VaultMetrics) Timer(operation string) *prometheus.Timer {
	return prometheus.NewTimer(m.latencies.WithLabelValues(operation))
}
