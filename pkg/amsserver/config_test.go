package amsserver

import (
	"testing"

	"github.com/function61/aitta/pkg/blobprovider/boltblobstore"
	"github.com/function61/aitta/pkg/blobprovider/s3blobstore"
	"github.com/function61/gokit/assert"
)

func TestReadStorageConfigFromEnv(t *testing.T) {
	t.Setenv("STORAGE_PROVIDERS", "BoltFS")
	t.Setenv("STORAGE_DESTINATION_1", "BoltFS,internal,blobs.db")
	t.Setenv("STORAGE_DESTINATION_2", "BoltFS,secondary,blobs2.db")
	// note: no STORAGE_DESTINATION_3, but a 4 exists; scan must stop at the gap
	t.Setenv("STORAGE_DESTINATION_4", "BoltFS,orphan,blobs4.db")
	t.Setenv("MAX_ASSET_SIZE", "1048576")

	conf, err := ReadStorageConfigFromEnv()
	assert.Ok(t, err)

	assert.Assert(t, len(conf.Providers) == 1)
	assert.EqualString(t, conf.Providers[0], "BoltFS")

	assert.Assert(t, len(conf.Destinations) == 2)
	assert.EqualString(t, conf.Destinations[0], "BoltFS,internal,blobs.db")
	assert.EqualString(t, conf.Destinations[1], "BoltFS,secondary,blobs2.db")

	assert.Assert(t, conf.MaxAssetSize == 1048576)
}

func TestStorageConfigDefaults(t *testing.T) {
	t.Setenv("STORAGE_PROVIDERS", "")
	t.Setenv("MAX_ASSET_SIZE", "")

	conf, err := ReadStorageConfigFromEnv()
	assert.Ok(t, err)

	// no explicit selection enables the whole catalog
	assert.Assert(t, len(conf.Providers) == 2)
	assert.Assert(t, conf.MaxAssetSize == 0)
}

func TestMalformedMaxAssetSize(t *testing.T) {
	t.Setenv("MAX_ASSET_SIZE", "lots")

	_, err := ReadStorageConfigFromEnv()
	assert.Assert(t, err != nil)
}

func TestBuildRegistries(t *testing.T) {
	conf := &StorageConfig{
		Providers: []string{boltblobstore.TypeName, s3blobstore.TypeName},
		Destinations: []string{
			"BoltFS,internal,blobs.db",
			"AmazonS3,cloud,access=a,secret=b,region=c,bucket=d",
		},
	}

	providers, destinations, err := BuildRegistries(conf, nil, nil)
	assert.Ok(t, err)

	assert.Assert(t, providers.Exists("BoltFS"))
	assert.Assert(t, providers.Exists("AmazonS3"))

	assert.Assert(t, destinations.Exists("internal"))
	assert.Assert(t, destinations.Exists("cloud"))
}

func TestBuildRegistriesUnknownProvider(t *testing.T) {
	_, _, err := BuildRegistries(&StorageConfig{Providers: []string{"Gopherstore"}}, nil, nil)

	assert.Assert(t, err != nil)
}

func TestBuildRegistriesDestinationForDisabledProvider(t *testing.T) {
	conf := &StorageConfig{
		Providers:    []string{boltblobstore.TypeName},
		Destinations: []string{"AmazonS3,cloud,access=a,secret=b,region=c,bucket=d"},
	}

	_, _, err := BuildRegistries(conf, nil, nil)

	assert.Assert(t, err != nil)
}
