// Package storage keeps uploaded sources and rendered artifacts.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/joseph-ayodele/rfq-tracker/internal/common"
)

// Store is a flat key/value blob store. Keys use forward slashes.
type Store interface {
	// Put stores data under key and returns a locator for logs and job rows.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
}

// cleanKey rejects keys that would escape the store root.
func cleanKey(key string) (string, error) {
	k := strings.ReplaceAll(key, "\\", "/")
	bad := k == "" || strings.HasPrefix(k, "/")
	for _, seg := range strings.Split(k, "/") {
		if seg == ".." {
			bad = true
		}
	}
	if bad {
		return "", fmt.Errorf("%w: storage key %q", common.ErrInvalidInput, key)
	}
	return strings.TrimPrefix(path.Clean("/"+k), "/"), nil
}
