// Package clock предоставляет источник времени для проверки сроков блокировки.
// Машина состояний читает часы один раз за операцию.
package clock

import (
	"sync"
	"time"
)

// Clock - источник текущего времени.
type Clock interface {
	Now() time.Time
}

// System - системные часы.
type System struct{}

// Now возвращает текущее время в UTC.
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Manual - часы, которые двигаются только вручную. Потокобезопасны.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual создает ручные часы, установленные на start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start.UTC()}
}

// Now возвращает установленное время.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set устанавливает время.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t.UTC()
}

// Advance сдвигает время на d и возвращает новое значение.
func (m *Manual) Advance(d time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
	return m.now
}
