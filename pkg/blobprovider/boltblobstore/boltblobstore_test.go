package boltblobstore

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/function61/aitta/pkg/amserrors"
	"github.com/function61/gokit/assert"
)

func TestPutGetDelete(t *testing.T) {
	store := storeForTest(t)
	ctx := context.Background()

	mediaID, err := store.Put(ctx, strings.NewReader("hello blob"), "greeting.txt", "text/plain")
	assert.Ok(t, err)
	assert.Assert(t, mediaID != "")

	exists, err := store.Exists(ctx, mediaID)
	assert.Ok(t, err)
	assert.Assert(t, exists)

	content, err := store.Get(ctx, mediaID)
	assert.Ok(t, err)
	defer content.Close()

	buf, err := io.ReadAll(content)
	assert.Ok(t, err)
	assert.EqualString(t, string(buf), "hello blob")

	assert.Ok(t, store.Delete(ctx, mediaID))

	exists, err = store.Exists(ctx, mediaID)
	assert.Ok(t, err)
	assert.Assert(t, !exists)
}

func TestGetMissingBlob(t *testing.T) {
	store := storeForTest(t)

	_, err := store.Get(context.Background(), "does-not-exist")

	assert.Assert(t, amserrors.IsNotFound(err))
	assert.EqualString(t, amserrors.Code(err), "asset.not-found")
}

func TestDeleteMissingBlobIsNotAnError(t *testing.T) {
	store := storeForTest(t)

	assert.Ok(t, store.Delete(context.Background(), "does-not-exist"))
}

func TestDrop(t *testing.T) {
	store := storeForTest(t)
	ctx := context.Background()

	first, err := store.Put(ctx, bytes.NewReader([]byte{0x01}), "a.bin", "application/octet-stream")
	assert.Ok(t, err)

	second, err := store.Put(ctx, bytes.NewReader([]byte{0x02}), "b.bin", "application/octet-stream")
	assert.Ok(t, err)

	assert.Ok(t, store.Drop(ctx))

	for _, mediaID := range []string{first, second} {
		exists, err := store.Exists(ctx, mediaID)
		assert.Ok(t, err)
		assert.Assert(t, !exists)
	}

	// store must remain usable after a drop
	_, err = store.Put(ctx, bytes.NewReader([]byte{0x03}), "c.bin", "application/octet-stream")
	assert.Ok(t, err)
}

func TestRegisteringDoesNotCreateDatabaseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blobs.db")

	_, err := New(path, nil)
	assert.Ok(t, err)

	_, err = os.Stat(path)
	assert.Assert(t, os.IsNotExist(err))
}

func TestEmptyConfigRejected(t *testing.T) {
	_, err := New("", nil)

	assert.EqualString(t, amserrors.Code(err), "config.invalid")
}

func storeForTest(t *testing.T) *boltBlobStore {
	t.Helper()

	provider, err := New(filepath.Join(t.TempDir(), "blobs.db"), nil)
	assert.Ok(t, err)

	store := provider.(*boltBlobStore)

	t.Cleanup(func() {
		if store.db != nil {
			store.db.Close()
		}
	})

	return store
}
