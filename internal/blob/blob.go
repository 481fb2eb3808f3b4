// Package blob stores generated and uploaded media and hands back public URLs.
package blob

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var ErrInvalidKey = errors.New("blob: invalid key")

// Object describes a stored blob.
type Object struct {
	Key         string
	URL         string
	Size        int64
	ContentType string
}

// Store persists blobs under a key.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (Object, error)
	Get(ctx context.Context, key string) ([]byte, error)
}

// LocalStore keeps blobs on the local filesystem under Root and builds URLs
// by joining BaseURL and the key.
type LocalStore struct {
	Root    string
	BaseURL string
}

func NewLocalStore(root, baseURL string) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("blob: create root: %w", err)
	}
	return &LocalStore{Root: abs, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

// CleanKey normalizes key to a relative slash path and rejects keys that
// would escape the root.
func CleanKey(key string) (string, error) {
	k := strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	k = path.Clean("/" + k)
	k = strings.TrimPrefix(k, "/")
	if k == "" || k == "." {
		return "", ErrInvalidKey
	}
	return k, nil
}

// Path returns the filesystem path for key.
func (s *LocalStore) Path(key string) (string, error) {
	k, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Root, filepath.FromSlash(k)), nil
}

// URL returns the public URL for key.
func (s *LocalStore) URL(key string) string {
	k, err := CleanKey(key)
	if err != nil {
		return ""
	}
	return s.urlFor(k)
}

// urlFor escapes each segment of an already cleaned key so titles with
// '#', '%' or spaces stay inside the path.
func (s *LocalStore) urlFor(k string) string {
	segs := strings.Split(k, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return s.BaseURL + "/" + strings.Join(segs, "/")
}

// Put writes data atomically (temp file + rename).
func (s *LocalStore) Put(ctx context.Context, key string, data []byte, contentType string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	k, err := CleanKey(key)
	if err != nil {
		return Object{}, err
	}
	dst := filepath.Join(s.Root, filepath.FromSlash(k))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return Object{}, fmt.Errorf("blob: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return Object{}, fmt.Errorf("blob: create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return Object{}, fmt.Errorf("blob: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return Object{}, fmt.Errorf("blob: close: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return Object{}, fmt.Errorf("blob: rename: %w", err)
	}

	return Object{
		Key:         k,
		URL:         s.urlFor(k),
		Size:        int64(len(data)),
		ContentType: contentType,
	}, nil
}

// Get reads the blob stored under key. A missing blob is reported as fs.ErrNotExist.
func (s *LocalStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.Path(key)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}
