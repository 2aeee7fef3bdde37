// Package metrics содержит инструментирование Prometheus.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// registerOnce регистрирует коллектор в Prometheus. Если такой коллектор уже
// зарегистрирован, возвращает существующий. Паникует при любой другой ошибке.
func registerOnce(collector prometheus.Collector) prometheus.Collector {
	if err := prometheus.Register(collector); err != nil {
		are := &prometheus.AlreadyRegisteredError{}
		if errors.As(err, are) {
			return are.ExistingCollector
		}
		panic(err)
	}
	return collector
}
