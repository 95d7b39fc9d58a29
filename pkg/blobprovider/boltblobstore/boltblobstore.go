// Writes blobs into an embedded Bolt database. This is the "batteries included"
// backend: no external services needed, metadata database and blobs can even live on
// the same disk.
package boltblobstore

import (
	"bytes"
	"context"
	"io"
	"log"
	"sync"
	"time"

	"github.com/asdine/storm/codec/msgpack"
	"github.com/function61/aitta/pkg/amserrors"
	"github.com/function61/aitta/pkg/amsutils"
	"github.com/function61/aitta/pkg/blobprovider"
	"github.com/function61/gokit/logex"
	"go.etcd.io/bbolt"
)

const TypeName = "BoltFS"

var (
	blobsBucket    = []byte("blobs")
	blobMetaBucket = []byte("blobmeta")
)

// stored alongside each blob, msgpack-encoded
type blobMeta struct {
	Filename string
	Mimetype string
	Length   int64
	Created  time.Time
}

type boltBlobStore struct {
	path string
	logl *logex.Leveled

	// db is opened lazily on first blob operation so that merely registering a
	// Destination doesn't create files on disk
	mu sync.Mutex
	db *bbolt.DB
}

func New(config string, logger *log.Logger) (blobprovider.Provider, error) {
	if config == "" {
		return nil, amserrors.ConfigError("BoltFS: config must be a database file path", nil)
	}

	return &boltBlobStore{
		path: config,
		logl: logex.Levels(logex.NonNil(logger)),
	}, nil
}

func (b *boltBlobStore) handle() (*bbolt.DB, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db != nil {
		return b.db, nil
	}

	db, err := bbolt.Open(b.path, 0700, nil)
	if err != nil {
		return nil, amserrors.ConfigError("BoltFS: open blob database", err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{blobsBucket, blobMetaBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}

		return nil
	}); err != nil {
		return nil, err
	}

	b.db = db

	return db, nil
}

func (b *boltBlobStore) Put(ctx context.Context, content io.Reader, filename string, mimetype string) (string, error) {
	db, err := b.handle()
	if err != nil {
		return "", err
	}

	buf, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}

	meta, err := msgpack.Codec.Marshal(&blobMeta{
		Filename: filename,
		Mimetype: mimetype,
		Length:   int64(len(buf)),
		Created:  time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}

	mediaID := amsutils.NewMediaID()

	if err := db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(blobsBucket).Put([]byte(mediaID), buf); err != nil {
			return err
		}

		return tx.Bucket(blobMetaBucket).Put([]byte(mediaID), meta)
	}); err != nil {
		return "", err
	}

	b.logl.Debug.Printf("put %s (%d bytes)", mediaID, len(buf))

	return mediaID, nil
}

func (b *boltBlobStore) Get(ctx context.Context, mediaID string) (io.ReadCloser, error) {
	db, err := b.handle()
	if err != nil {
		return nil, err
	}

	var blob []byte

	if err := db.View(func(tx *bbolt.Tx) error {
		stored := tx.Bucket(blobsBucket).Get([]byte(mediaID))
		if stored == nil {
			return amserrors.AssetNotFound(mediaID)
		}

		// value is only valid during the transaction
		blob = make([]byte, len(stored))
		copy(blob, stored)

		return nil
	}); err != nil {
		return nil, err
	}

	return io.NopCloser(bytes.NewReader(blob)), nil
}

func (b *boltBlobStore) Delete(ctx context.Context, mediaID string) error {
	db, err := b.handle()
	if err != nil {
		return err
	}

	// Bolt's Delete() is a no-op for missing keys, which gives us best-effort
	// semantics for free
	return db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(blobsBucket).Delete([]byte(mediaID)); err != nil {
			return err
		}

		return tx.Bucket(blobMetaBucket).Delete([]byte(mediaID))
	})
}

func (b *boltBlobStore) Exists(ctx context.Context, mediaID string) (bool, error) {
	db, err := b.handle()
	if err != nil {
		return false, err
	}

	exists := false

	if err := db.View(func(tx *bbolt.Tx) error {
		exists = tx.Bucket(blobsBucket).Get([]byte(mediaID)) != nil
		return nil
	}); err != nil {
		return false, err
	}

	return exists, nil
}

func (b *boltBlobStore) Drop(ctx context.Context) error {
	db, err := b.handle()
	if err != nil {
		return err
	}

	return db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{blobsBucket, blobMetaBucket} {
			if err := tx.DeleteBucket(bucket); err != nil {
				return err
			}

			if _, err := tx.CreateBucket(bucket); err != nil {
				return err
			}
		}

		return nil
	})
}
