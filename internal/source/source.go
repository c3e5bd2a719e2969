// Package source opens the dashboard's data files (layer GeoJSON, the
// manufacturer registry, open-data exports) from a local directory or an S3
// bucket.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
)

// ErrNotFound is returned when a named file does not exist.
var ErrNotFound = errors.New("data file not found")

// Driver identifies a Store implementation.
type Driver string

const (
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
)

// Store opens named data files.
type Store interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Driver() Driver
}

// Config selects and configures a driver.
type Config struct {
	Driver string
	Root   string
	S3     S3Config
}

// Open builds the Store selected by cfg.Driver. An empty driver means fs.
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver := Driver(cfg.Driver)
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return NewFilesystem(cfg.Root)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown source driver %s", cfg.Driver)
	}
}

// CleanName validates a data file name. Names are slash-separated and
// relative; anything escaping the root is rejected.
func CleanName(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("empty name")
	}
	if strings.HasPrefix(name, "/") || strings.Contains(name, "\\") {
		return "", fmt.Errorf("invalid name %q", name)
	}
	clean := path.Clean(name)
	if clean == ".." || strings.HasPrefix(clean, "../") || strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid name %q: traversal", name)
	}
	return clean, nil
}

// ContentType guesses the MIME type of a data file from its extension.
func ContentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".geojson":
		return "application/geo+json"
	case ".json":
		return "application/json"
	}
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}
