// Package utils provides download and on-disk caching helpers for the
// climate datasets the viewer renders.
package utils

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

var ErrNotFound = errors.New("dataset not found on server")

// CacheDir is where downloaded dataset files land. Relative to the working
// directory by default; override before the first fetch.
var CacheDir = "data/cache"

// Dataset names a dataset family ("stations", "boundaries", ...). It keys
// the cache filenames and tags every log line about a fetch, so each family
// caches independently even when mirrors share basenames.
type Dataset string

func (d Dataset) String() string { return string(d) }

// filenamePart sanitizes the dataset name for use in a cache filename.
func (d Dataset) filenamePart() string {
	return strings.ReplaceAll(string(d), " ", "_")
}

type progressWriter struct {
	io.Writer
	total uint64
	last  uint64
	ds    Dataset
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	pw.total += uint64(n)
	if pw.total-pw.last > 5*1024*1024 { // Log every 5MB
		log.Printf("[%s] downloaded %d MB", pw.ds, pw.total/1024/1024)
		pw.last = pw.total
	}
	return n, err
}

// DownloadFile downloads a URL to a local path through a temp file so a
// partial download never shadows a good copy.
func DownloadFile(url, path string, ds Dataset) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("Error closing response body: %v", err)
		}
	}()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmpFile.Name()
	defer func() {
		if err := os.Remove(tmpName); err != nil && !os.IsNotExist(err) {
			log.Printf("Error removing temp file %s: %v", tmpName, err)
		}
	}()

	pw := &progressWriter{Writer: tmpFile, ds: ds}
	if _, err := io.Copy(pw, resp.Body); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Exists checks whether a URL is reachable using a HEAD request.
func Exists(url string) bool {
	resp, err := http.Head(url)
	if err != nil {
		return false
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("Error closing response body: %v", err)
		}
	}()
	return resp.StatusCode == http.StatusOK
}

// CacheFileName returns the local filename for a URL, prefixed with the
// dataset name so families sharing a basename never collide.
func CacheFileName(url string, ds Dataset) string {
	urlParts := strings.Split(url, "/")
	fileName := urlParts[len(urlParts)-1]
	if part := ds.filenamePart(); part != "" {
		fileName = part + "_" + fileName
	}
	return fileName
}

// FindCachedURL returns the first of the candidate mirror URLs already
// present in the local cache.
func FindCachedURL(urls []string, ds Dataset) (string, bool) {
	for _, u := range urls {
		fname := CacheFileName(u, ds)
		if _, err := os.Stat(filepath.Join(CacheDir, fname)); err == nil {
			return u, true
		}
	}
	return "", false
}

// GetCachedReader returns a reader for a dataset URL. With caching enabled
// the file is downloaded once and served from disk afterwards; otherwise the
// response body streams straight through.
func GetCachedReader(url string, useCache bool, ds Dataset) (io.ReadCloser, error) {
	if useCache {
		if err := os.MkdirAll(CacheDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache dir: %w", err)
		}
		localPath := filepath.Join(CacheDir, CacheFileName(url, ds))

		if _, err := os.Stat(localPath); os.IsNotExist(err) {
			log.Printf("[%s] downloading %s", ds, url)
			if err := DownloadFile(url, localPath, ds); err != nil {
				return nil, err // Callers match against ErrNotFound to try the next mirror
			}
		} else {
			log.Printf("[%s] using cached file: %s", ds, localPath)
		}
		f, err := os.Open(localPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open cache: %w", err)
		}
		return f, nil
	}

	log.Printf("[%s] streaming from %s", ds, url)
	resp, err := http.Get(url)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		if err := resp.Body.Close(); err != nil {
			log.Printf("Error closing response body: %v", err)
		}
		if resp.StatusCode == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}
	return resp.Body, nil
}
