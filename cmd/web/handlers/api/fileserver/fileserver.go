// Package fileserver serves stored media blobs with conditional request support.
package fileserver

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"thirdcoast.systems/contentdna/internal/blob"
)

// ETagMode determines how ETags are computed.
type ETagMode int

const (
	// ETagWeakStat uses file size and modtime for a weak ETag.
	ETagWeakStat ETagMode = iota
	// ETagStrongSHA256 computes a SHA256 hash of the file content.
	ETagStrongSHA256
)

// strongETagLimit caps the size of files hashed for a strong ETag.
const strongETagLimit = 8 << 20

type fileCacheEntry struct {
	size    int64
	modTime time.Time
	mode    ETagMode
	etag    string
}

// FileCache memoizes ETags for on-disk files.
// Entries are invalidated automatically when file size or modtime changes.
type FileCache struct {
	mu      sync.RWMutex
	entries map[string]fileCacheEntry
}

func NewFileCache() *FileCache {
	return &FileCache{entries: make(map[string]fileCacheEntry)}
}

// ETag computes or retrieves a cached ETag for the given file.
func (c *FileCache) ETag(path string, info os.FileInfo, mode ETagMode) (string, error) {
	c.mu.RLock()
	if e, ok := c.entries[path]; ok {
		if e.size == info.Size() && e.modTime.Equal(info.ModTime()) && e.mode == mode {
			c.mu.RUnlock()
			return e.etag, nil
		}
	}
	c.mu.RUnlock()

	etag, err := computeETag(path, info, mode)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.entries[path] = fileCacheEntry{
		size:    info.Size(),
		modTime: info.ModTime(),
		mode:    mode,
		etag:    etag,
	}
	c.mu.Unlock()

	return etag, nil
}

func computeETag(path string, info os.FileInfo, mode ETagMode) (string, error) {
	switch mode {
	case ETagWeakStat:
		return fmt.Sprintf(`W/"%x-%x"`, info.ModTime().Unix(), info.Size()), nil
	case ETagStrongSHA256:
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		h := sha256.New()
		if _, err := io.Copy(h, f); err != nil {
			return "", err
		}
		return fmt.Sprintf(`"%x"`, h.Sum(nil)), nil
	default:
		return "", fmt.Errorf("unknown etag mode: %d", mode)
	}
}

// FileServer serves blobs from a LocalStore.
type FileServer struct {
	store *blob.LocalStore
	cache *FileCache
}

func NewFileServer(store *blob.LocalStore) *FileServer {
	return &FileServer{store: store, cache: NewFileCache()}
}

// Handler serves the blob named by the route wildcard.
func (fs *FileServer) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		// The router matches on RawPath when the client's escaping is
		// non-canonical, and then the wildcard is still escaped.
		key := c.Param("*")
		if c.Request().URL.RawPath != "" {
			var err error
			if key, err = url.PathUnescape(key); err != nil {
				return echo.ErrNotFound
			}
		}
		path, err := fs.store.Path(key)
		if err != nil {
			if errors.Is(err, blob.ErrInvalidKey) {
				return echo.ErrNotFound
			}
			return err
		}

		mode := ETagWeakStat
		if info, err := os.Stat(path); err == nil && info.Size() <= strongETagLimit {
			mode = ETagStrongSHA256
		}
		return fs.ServeDiskFileWithCache(c, path, contentTypeFor(path), "public, max-age=86400", mode)
	}
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return "audio/wav"
	case ".mp4":
		return "video/mp4"
	}
	return mime.TypeByExtension(filepath.Ext(path))
}

// ServeDiskFileWithCache serves a file from disk with caching headers and conditional request support.
func (fs *FileServer) ServeDiskFileWithCache(c echo.Context, absPath string, contentType string, cacheControl string, etagMode ETagMode) error {
	info, err := os.Stat(absPath)
	if err != nil || info.IsDir() {
		return echo.ErrNotFound
	}

	etag := ""
	if fs.cache != nil {
		if v, err := fs.cache.ETag(absPath, info, etagMode); err == nil {
			etag = v
		}
	}

	if etag != "" {
		if inm := c.Request().Header.Get("If-None-Match"); inm != "" && strings.TrimSpace(inm) == etag {
			return c.NoContent(http.StatusNotModified)
		}
	}
	if ims := c.Request().Header.Get(echo.HeaderIfModifiedSince); ims != "" {
		if t, err := time.Parse(time.RFC1123, ims); err == nil {
			// Round to seconds (HTTP date resolution)
			if !info.ModTime().After(t.Add(time.Second)) {
				return c.NoContent(http.StatusNotModified)
			}
		}
	}

	c.Response().Header().Set(echo.HeaderCacheControl, cacheControl)
	c.Response().Header().Set("Last-Modified", info.ModTime().UTC().Format(time.RFC1123))
	if etag != "" {
		c.Response().Header().Set("ETag", etag)
	}
	if contentType != "" {
		c.Response().Header().Set("Content-Type", contentType)
	}

	f, err := os.Open(absPath)
	if err != nil {
		return echo.ErrNotFound
	}
	defer f.Close()

	// http.ServeContent supports Range requests (used by video players).
	http.ServeContent(c.Response(), c.Request(), filepath.Base(absPath), info.ModTime(), f)
	return nil
}
