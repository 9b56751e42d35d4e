package parquet

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samirrijal/pqtiles/internal/core/domain"
)

// Extension is the file suffix the scanner reads.
const Extension = ".parquet"

// DirLister walks a dataset directory on every call. It implements
// ports.FileLister.
type DirLister struct{}

// Files returns every parquet file under ds.Directory, recursing into
// subdirectories, sorted by path.
func (DirLister) Files(ctx context.Context, ds domain.DatasetDescriptor) ([]string, error) {
	return ListFiles(ctx, ds.Directory)
}

// ListFiles walks dir and collects parquet files. A missing or unreadable
// directory is a storage error; cancellation is returned as is.
func ListFiles(ctx context.Context, dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), Extension) {
			files = append(files, path)
		}
		return nil
	})
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", domain.ErrStorage, dir, err)
	}
	sort.Strings(files)
	return files, nil
}
