package amsserver

import (
	"bytes"
	"image"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/function61/aitta/pkg/amsdb"
	"github.com/function61/aitta/pkg/amsregistry"
	"github.com/function61/aitta/pkg/amstypes"
	"github.com/function61/aitta/pkg/blobprovider/boltblobstore"
	"github.com/function61/gokit/assert"
)

// in-memory-ish fixture: metadata database and a BoltFS destination both live under
// the test's temp dir
func servicesForTest(t *testing.T) (*SetsService, *AssetsService) {
	t.Helper()

	return servicesForTestWrapped(t, nil)
}

func servicesForTestWrapped(t *testing.T, wrap amsregistry.ProviderWrapper) (*SetsService, *AssetsService) {
	t.Helper()

	tempDir := t.TempDir()

	db, err := amsdb.Open(filepath.Join(tempDir, "meta.db"))
	assert.Ok(t, err)

	t.Cleanup(func() { db.Close() })

	assert.Ok(t, amsdb.Bootstrap(db, nil))

	providers := amsregistry.NewProviderRegistry()
	assert.Ok(t, providers.Register(boltblobstore.TypeName, boltblobstore.New))

	destinations := amsregistry.NewDestinationRegistry(providers, nil)
	if wrap != nil {
		destinations.SetProviderWrapper(wrap)
	}
	assert.Ok(t, destinations.Register("BoltFS,internal,"+filepath.Join(tempDir, "blobs.db")))

	sets := NewSetsService(db, destinations, 0, nil)

	return sets, NewAssetsService(db, sets, nil)
}

func usableSetForTest(t *testing.T, sets *SetsService) *amstypes.Set {
	t.Helper()

	set, err := sets.Create(&amstypes.Set{
		Name:            "downloads",
		State:           amstypes.SetStateUsable,
		DestinationName: "internal",
	}, "test-user")
	assert.Ok(t, err)

	return set
}

func pngBytesForTest(t *testing.T, width int, height int) []byte {
	t.Helper()

	buf := &bytes.Buffer{}
	assert.Ok(t, png.Encode(buf, image.NewRGBA(image.Rect(0, 0, width, height))))

	return buf.Bytes()
}
