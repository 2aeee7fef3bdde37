package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// MemoryStorage хранит объекты в памяти процесса. Используется, когда MinIO
// не настроен, и в тестах.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

var _ FileStorage = (*MemoryStorage)(nil) // Проверка соответствия интерфейсу

// NewMemoryStorage создает пустое хранилище объектов.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string][]byte)}
}

// UploadFile реализует FileStorage.
func (s *MemoryStorage) UploadFile(_ context.Context, objectKey string, reader io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("ошибка чтения объекта: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[objectKey] = data
	return nil
}

// DownloadFile реализует FileStorage.
func (s *MemoryStorage) DownloadFile(_ context.Context, objectKey string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[objectKey]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
