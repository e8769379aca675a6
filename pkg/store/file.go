package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"chatrelay/pkg/bus"
)

// fileSink appends one JSON object per line.
type fileSink struct {
	path string
	mu   sync.Mutex
	file *os.File
}

func newFileSink(path string) (Sink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: create directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("store: open file: %w", err)
	}

	return &fileSink{path: path, file: file}, nil
}

func (s *fileSink) Name() string  { return "file" }
func (s *fileSink) Enabled() bool { return true }

func (s *fileSink) Record(_ context.Context, record bus.ExchangeRecord) error {
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("store: encode exchange: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return fmt.Errorf("store: file %s is closed", s.path)
	}
	if _, err := s.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("store: write exchange: %w", err)
	}

	return nil
}

func (s *fileSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}

	err := s.file.Close()
	s.file = nil
	return err
}
