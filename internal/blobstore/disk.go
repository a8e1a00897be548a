package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/worklog/internal/common"
)

const blobSubdir = "worklog-files"

// DiskStore keeps blobs as plain files under a local root directory.
// Storage paths are relative locators of the form "worklog-files/<name>".
type DiskStore struct {
	root string
}

// NewDiskStore creates a DiskStore rooted at root, creating the directory
// tree if needed.
func NewDiskStore(root string) (*DiskStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("disk store root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(abs, blobSubdir), 0o770); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", abs, err)
	}
	if err := os.MkdirAll(filepath.Join(abs, "tmp"), 0o770); err != nil {
		return nil, fmt.Errorf("mkdir tmp: %w", err)
	}
	return &DiskStore{root: abs}, nil
}

// Store writes content to a temp file and renames it into place under a
// generated name. The rename keeps concurrent writers from observing
// partially written blobs.
func (d *DiskStore) Store(ctx context.Context, content io.Reader, suggestedExt string) (StoreResult, error) {
	var zero StoreResult
	if content == nil {
		return zero, fmt.Errorf("content is required")
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	storedName := GenerateStoredName(suggestedExt)
	storagePath := blobSubdir + "/" + storedName

	dst, err := d.absPath(storagePath)
	if err != nil {
		return zero, err
	}
	if _, err := os.Stat(dst); err == nil {
		// The generator guarantees uniqueness; an existing file means the
		// store is misconfigured (e.g. two instances sharing a clock-less
		// namespace). Never overwrite.
		return zero, fmt.Errorf("%w: stored name collision: %s", common.ErrStorageIO, storedName)
	} else if !errors.Is(err, os.ErrNotExist) {
		return zero, fmt.Errorf("%w: stat %s: %v", common.ErrStorageIO, dst, err)
	}

	tmp, err := os.CreateTemp(filepath.Join(d.root, "tmp"), "put-*")
	if err != nil {
		return zero, fmt.Errorf("%w: create temp: %v", common.ErrStorageIO, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	n, err := io.Copy(tmp, content)
	if err != nil {
		cleanup()
		return zero, fmt.Errorf("%w: write blob: %v", common.ErrStorageIO, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return zero, fmt.Errorf("%w: close temp: %v", common.ErrStorageIO, err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		cleanup()
		return zero, fmt.Errorf("%w: rename into place: %v", common.ErrStorageIO, err)
	}

	return StoreResult{StoredName: storedName, StoragePath: storagePath, SizeBytes: n}, nil
}

// Exists reports whether the blob file is present.
func (d *DiskStore) Exists(ctx context.Context, storagePath string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	path, err := d.absPath(storagePath)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("%w: stat %s: %v", common.ErrStorageIO, storagePath, err)
	}
	return true, nil
}

// Delete removes the blob file. Missing files are not an error.
func (d *DiskStore) Delete(ctx context.Context, storagePath string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	path, err := d.absPath(storagePath)
	if err != nil {
		return false, err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("%w: remove %s: %v", common.ErrStorageIO, storagePath, err)
	}
	return true, nil
}

// ResolveForStreaming returns the absolute filesystem path of the blob.
func (d *DiskStore) ResolveForStreaming(ctx context.Context, storagePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return d.absPath(storagePath)
}

func (d *DiskStore) absPath(storagePath string) (string, error) {
	storagePath = strings.TrimSpace(storagePath)
	if storagePath == "" {
		return "", fmt.Errorf("storage path is required")
	}
	if strings.HasPrefix(storagePath, "/") {
		return "", fmt.Errorf("storage path must be relative")
	}
	clean := filepath.Clean(filepath.FromSlash(storagePath))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid storage path")
	}
	return filepath.Join(d.root, clean), nil
}

var _ BlobStore = (*DiskStore)(nil)
