// Package localfs implements the blobstore port on a local directory and
// serves the stored files over HTTP. It backs development setups without
// object storage.
package localfs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/Strob0t/mfi-api/internal/port/blobstore"
)

// Store writes objects into dir and addresses them as baseURL/<name>.
type Store struct {
	dir     string
	baseURL string
}

// New creates dir if needed and returns a Store rooted at it.
func New(dir, baseURL string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create asset dir %s: %w", dir, err)
	}
	return &Store{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Put writes body to dir/name. The file appears atomically once complete.
func (s *Store) Put(ctx context.Context, name, _ string, _ int64, body io.Reader) (string, error) {
	if err := blobstore.ValidName(name); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp asset: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write asset %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close asset %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return "", fmt.Errorf("store asset %s: %w", name, err)
	}
	return s.baseURL + "/" + url.PathEscape(name), nil
}

// Handler serves stored files. Directory listings and dot files are hidden.
func (s *Store) Handler() http.Handler {
	fs := http.FileServer(http.Dir(s.dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/")
		if blobstore.ValidName(name) != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=86400")
		fs.ServeHTTP(w, r)
	})
}
