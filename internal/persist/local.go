package persist

import (
	"context"
	"errors"
	"net/url"

	"github.com/shashiranjanraj/cartsync/pkg/storage"
)

// LocalBackend keeps one JSON file per user on a storage.Disk. It is the
// offline fallback for the remote backends.
type LocalBackend struct {
	disk storage.Disk
}

func NewLocalBackend(disk storage.Disk) *LocalBackend {
	return &LocalBackend{disk: disk}
}

func (b *LocalBackend) Name() string { return "local" }
func (b *LocalBackend) Kind() Kind   { return KindLocal }

func localPath(userID string) string {
	return url.PathEscape(Key(userID)) + ".json"
}

func (b *LocalBackend) Load(ctx context.Context, userID string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	data, err := b.disk.Get(localPath(userID))
	if errors.Is(err, storage.ErrNotExist) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return decodeRecord(data)
}

func (b *LocalBackend) Save(ctx context.Context, userID string, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	return b.disk.Put(localPath(userID), data)
}
