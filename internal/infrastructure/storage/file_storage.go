package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/garyjia/expense-desk/internal/domain/entity"
	"go.uber.org/zap"
)

// LocalStore keeps receipts and inbox drops on the local filesystem. Every
// path is relative to the base directory and may not escape it.
type LocalStore struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalStore creates a store rooted at baseDir
func NewLocalStore(baseDir string, logger *zap.Logger) *LocalStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalStore{baseDir: baseDir, logger: logger}
}

// Save writes content to path, creating parent directories
func (s *LocalStore) Save(ctx context.Context, path string, content []byte) error {
	fullPath, err := s.resolve(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		s.logger.Error("Failed to create parent directories",
			zap.String("path", fullPath),
			zap.Error(err))
		return fmt.Errorf("create directories: %w", err)
	}
	if err := os.WriteFile(fullPath, content, 0o644); err != nil {
		s.logger.Error("Failed to write file",
			zap.String("path", fullPath),
			zap.Error(err))
		return fmt.Errorf("write file: %w", err)
	}

	s.logger.Debug("File saved", zap.String("path", fullPath), zap.Int("size", len(content)))
	return nil
}

// Read returns the content at path, or entity.ErrNotFound
func (s *LocalStore) Read(ctx context.Context, path string) ([]byte, error) {
	fullPath, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(fullPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("file %s: %w", path, entity.ErrNotFound)
	}
	if err != nil {
		s.logger.Error("Failed to read file", zap.String("path", fullPath), zap.Error(err))
		return nil, fmt.Errorf("read file: %w", err)
	}
	return content, nil
}

// Exists reports whether a file or directory is present at path
func (s *LocalStore) Exists(ctx context.Context, path string) bool {
	fullPath, err := s.resolve(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(fullPath)
	return err == nil
}

// Delete removes the file at path. Deleting a missing file succeeds.
func (s *LocalStore) Delete(ctx context.Context, path string) error {
	fullPath, err := s.resolve(path)
	if err != nil {
		return err
	}

	err = os.Remove(fullPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Error("Failed to delete file", zap.String("path", fullPath), zap.Error(err))
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// Move renames from into to, creating the target directory
func (s *LocalStore) Move(ctx context.Context, from, to string) error {
	src, err := s.resolve(from)
	if err != nil {
		return err
	}
	dst, err := s.resolve(to)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}
	if err := os.Rename(src, dst); err != nil {
		s.logger.Error("Failed to move file",
			zap.String("from", src),
			zap.String("to", dst),
			zap.Error(err))
		return fmt.Errorf("move file: %w", err)
	}
	return nil
}

// List returns the regular files directly under dir as store-relative paths
func (s *LocalStore) List(ctx context.Context, dir string) ([]string, error) {
	entries, err := s.readDir(dir)
	if err != nil {
		return nil, err
	}
	files := []string{}
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			files = append(files, filepath.ToSlash(filepath.Join(dir, entry.Name())))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Dirs returns the names of the subdirectories of dir
func (s *LocalStore) Dirs(ctx context.Context, dir string) ([]string, error) {
	entries, err := s.readDir(dir)
	if err != nil {
		return nil, err
	}
	dirs := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, entry.Name())
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

func (s *LocalStore) readDir(dir string) ([]os.DirEntry, error) {
	fullPath, err := s.resolve(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(fullPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		s.logger.Error("Failed to list directory", zap.String("path", fullPath), zap.Error(err))
		return nil, fmt.Errorf("list directory: %w", err)
	}
	return entries, nil
}

// GetFullPath joins a store-relative path onto the base directory
func (s *LocalStore) GetFullPath(relativePath string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(relativePath))
}

// resolve returns the absolute location of path, rejecting any path that
// would land outside the base directory
func (s *LocalStore) resolve(path string) (string, error) {
	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return "", fmt.Errorf("resolve base path: %w", err)
	}
	absPath, err := filepath.Abs(s.GetFullPath(path))
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if absPath != absBase && !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path escapes storage root: %s", entity.ErrValidation, path)
	}
	return absPath, nil
}
