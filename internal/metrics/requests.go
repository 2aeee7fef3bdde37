package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// RequestMetrics - метрики входящих HTTP-запросов.
type RequestMetrics struct {
	// Количество запросов по маршруту, методу и статусу.
	requests *prometheus.CounterVec

	// Длительность обработки запросов по маршруту.
	latencies *prometheus.HistogramVec
}

// NewRequestMetrics создает метрики HTTP-запросов с префиксом pkg.
func NewRequestMetrics(pkg string) *RequestMetrics {
	m := &RequestMetrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: fmt.Sprintf("%s_requests", pkg),
				Help: "How many HTTP requests were served, partitioned by route, method and status.",
			},
			[]string{"route", "method", "status"},
		),
		latencies: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: fmt.Sprintf("%s_request_latencies", pkg),
				Help: "How long HTTP requests take to serve, partitioned by route.",
			},
			[]string{"route"},
		),
	}
	m.requests = registerOnce(m.requests).(*prometheus.CounterVec)     //nolint:errcheck // тип известен
	m.latencies = registerOnce(m.latencies).(*prometheus.HistogramVec) //nolint:errcheck // тип известен
	return m
}

// Requests возвращает счетчик запросов к маршруту route.
func (m *RequestMetrics) Requests(route, method, status string) prometheus.Counter {
	return m.requests.WithLabelValues(route, method, status)
}

// Middleware считает запросы. Маршрут берется из шаблона chi, а не из пути,
// чтобы адреса в URL не раздували число меток.
func (m *RequestMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.latencies.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
