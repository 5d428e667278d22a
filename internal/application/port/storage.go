package port

import "context"

// FileStorage stores receipts and inbox captures under relative paths
type FileStorage interface {
	Save(ctx context.Context, path string, content []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) bool
	Delete(ctx context.Context, path string) error
	Move(ctx context.Context, from, to string) error
	// List returns the relative paths of the regular files directly under dir, sorted.
	// A missing directory yields an empty list.
	List(ctx context.Context, dir string) ([]string, error)
	// Dirs returns the names of the subdirectories of dir, sorted
	Dirs(ctx context.Context, dir string) ([]string, error)
	GetFullPath(relativePath string) string
}
