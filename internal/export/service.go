// Package export writes the stored classification snapshot to an Excel workbook and
// optionally uploads it to object storage.
package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rpattn/classcheck/internal/domain"
)

// SnapshotReader is the read side of the snapshot repository.
type SnapshotReader interface {
	List(ctx context.Context) ([]domain.Element, error)
	ListItems(ctx context.Context) ([]domain.ClassificationItem, error)
}

// Result describes a written workbook.
type Result struct {
	Rows     int
	Labels   []LabelCount
	Bytes    int64
	Path     string
	Location string
}

// Service exports snapshots.
type Service struct {
	repo   SnapshotReader
	store  ObjectStore
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

// Option customises the export service.
type Option func(*Service)

// WithObjectStore uploads every written file under prefix.
func WithObjectStore(store ObjectStore, prefix string) Option {
	return func(s *Service) {
		s.store = store
		s.prefix = strings.Trim(prefix, "/")
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides time.Now for object keys.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates an export service reading from repo.
func NewService(repo SnapshotReader, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Write renders the stored snapshot as a workbook into w.
func (s *Service) Write(ctx context.Context, w io.Writer) (Result, error) {
	elements, err := s.repo.List(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load snapshot: %w", err)
	}
	items, err := s.repo.ListItems(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load taxonomy: %w", err)
	}

	summary := summarize(elements, items)
	f, err := buildWorkbook(elements, items, summary)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()

	n, err := f.WriteTo(w)
	if err != nil {
		return Result{}, fmt.Errorf("write workbook: %w", err)
	}
	return Result{Rows: len(elements), Labels: summary, Bytes: n}, nil
}

// WriteFile renders the workbook to path and uploads it when an object store is set.
func (s *Service) WriteFile(ctx context.Context, filePath string) (Result, error) {
	if strings.TrimSpace(filePath) == "" {
		return Result{}, fmt.Errorf("export path is required")
	}
	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Result{}, fmt.Errorf("ensure export directory: %w", err)
		}
	}

	var buf bytes.Buffer
	result, err := s.Write(ctx, &buf)
	if err != nil {
		return Result{}, err
	}
	if err := os.WriteFile(filePath, buf.Bytes(), 0o644); err != nil {
		return Result{}, fmt.Errorf("write export file: %w", err)
	}
	result.Path = filePath
	s.logger.Info("[export] workbook written", "path", filePath, "rows", result.Rows, "bytes", result.Bytes)

	if s.store != nil {
		key := s.objectKey(filepath.Base(filePath))
		location, err := s.store.PutObject(ctx, key, buf.Bytes())
		if err != nil {
			return result, fmt.Errorf("upload export: %w", err)
		}
		result.Location = location
		s.logger.Info("[export] workbook uploaded", "location", location)
	}
	return result, nil
}

// objectKey places name under the prefix and a UTC date folder.
func (s *Service) objectKey(name string) string {
	day := s.now().UTC().Format("2006-01-02")
	if s.prefix == "" {
		return path.Join(day, name)
	}
	return path.Join(s.prefix, day, name)
}
