// Package storage is the on-device file store used for the local copy of
// each user's cart.
//
//	disk, _ := storage.NewLocal("storage/carts")
//	_ = disk.Put("cart%3Au1.json", data)
//	data, err := disk.Get("cart%3Au1.json")
//	if errors.Is(err, storage.ErrNotExist) { ... }
package storage

import "errors"

// ErrNotExist is returned (wrapped) when a path has never been written.
var ErrNotExist = errors.New("storage: file does not exist")

// Disk is the filesystem driver interface.
type Disk interface {
	// Put replaces the content at path, creating parent directories.
	// Readers never observe a partially written file.
	Put(path string, content []byte) error

	// Get returns the full content of the file at path.
	Get(path string) ([]byte, error)
}
