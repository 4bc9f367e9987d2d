package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// KV is the persistent key/value store the session lives in.
type KV interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(keys ...string) error
}

// FileKV keeps all keys in a single JSON object on disk. Writes go through a
// temp file and rename so a crash never leaves a half-written session.
type FileKV struct {
	mu   sync.Mutex
	path string
}

func NewFileKV(path string) (*FileKV, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &FileKV{path: path}, nil
}

func (f *FileKV) Get(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data := f.load()
	val, ok := data[key]
	return val, ok
}

func (f *FileKV) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data := f.load()
	data[key] = value
	return f.save(data)
}

func (f *FileKV) Delete(keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data := f.load()
	for _, k := range keys {
		delete(data, k)
	}
	return f.save(data)
}

// load never fails: a missing or corrupt file reads as empty.
func (f *FileKV) load() map[string]string {
	data := make(map[string]string)
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return data
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return make(map[string]string)
	}
	return data
}

func (f *FileKV) save(data map[string]string) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

// MemoryKV is a process-local store, used when nothing should touch disk.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

func (m *MemoryKV) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *MemoryKV) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryKV) Delete(keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

var ErrUnknownStorage = errors.New("unknown storage type")
