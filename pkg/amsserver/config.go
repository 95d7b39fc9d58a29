package amsserver

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/function61/aitta/pkg/amserrors"
	"github.com/function61/aitta/pkg/amsregistry"
	"github.com/function61/aitta/pkg/blobprovider"
	"github.com/function61/aitta/pkg/blobprovider/boltblobstore"
	"github.com/function61/aitta/pkg/blobprovider/s3blobstore"
	"github.com/function61/gokit/jsonfile"
)

type ServerConfigFile struct {
	DbLocation string `json:"db_location"`
	ListenAddr string `json:"listen_addr"`
}

func readServerConfigFile() (*ServerConfigFile, error) {
	scf := &ServerConfigFile{}
	if err := jsonfile.Read("config.json", scf, true); err != nil {
		return nil, err
	}

	if scf.DbLocation == "" {
		scf.DbLocation = "aitta.db"
	}

	if scf.ListenAddr == "" {
		scf.ListenAddr = "0.0.0.0:4486"
	}

	return scf, nil
}

// storage wiring comes from the environment (supplied by the deployment layer):
//
//	STORAGE_PROVIDERS       comma-separated provider type names to enable
//	STORAGE_DESTINATION_n   (n = 1, 2, 3, ... contiguous) "Type,Name,ProviderConfig"
//	MAX_ASSET_SIZE          process-wide upload ceiling in bytes, 0 = unlimited
type StorageConfig struct {
	Providers    []string
	Destinations []string
	MaxAssetSize int64
}

func ReadStorageConfigFromEnv() (*StorageConfig, error) {
	conf := &StorageConfig{}

	if providers := os.Getenv("STORAGE_PROVIDERS"); providers != "" {
		conf.Providers = strings.Split(providers, ",")
	} else {
		// with no explicit selection, enable everything we have
		conf.Providers = []string{boltblobstore.TypeName, s3blobstore.TypeName}
	}

	// registration stops at the first missing n
	for n := 1; ; n++ {
		destination := os.Getenv(fmt.Sprintf("STORAGE_DESTINATION_%d", n))
		if destination == "" {
			break
		}

		conf.Destinations = append(conf.Destinations, destination)
	}

	if maxSize := os.Getenv("MAX_ASSET_SIZE"); maxSize != "" {
		parsed, err := strconv.ParseInt(maxSize, 10, 64)
		if err != nil {
			return nil, amserrors.ConfigError("MAX_ASSET_SIZE not a valid byte amount", err)
		}

		conf.MaxAssetSize = parsed
	}

	return conf, nil
}

// all provider implementations this build knows of. the STORAGE_PROVIDERS config
// selects from this catalog by type name (explicit factory map instead of loading
// implementations dynamically by class name).
var providerCatalog = map[string]blobprovider.Factory{
	boltblobstore.TypeName: boltblobstore.New,
	s3blobstore.TypeName:   s3blobstore.New,
}

func BuildRegistries(
	conf *StorageConfig,
	wrap amsregistry.ProviderWrapper,
	logger *log.Logger,
) (*amsregistry.ProviderRegistry, *amsregistry.DestinationRegistry, error) {
	providers := amsregistry.NewProviderRegistry()

	for _, typeName := range conf.Providers {
		factory, known := providerCatalog[typeName]
		if !known {
			return nil, nil, amserrors.ConfigError(fmt.Sprintf("unknown storage provider type: %s", typeName), nil)
		}

		if err := providers.Register(typeName, factory); err != nil {
			return nil, nil, err
		}
	}

	destinations := amsregistry.NewDestinationRegistry(providers, logger)

	if wrap != nil {
		destinations.SetProviderWrapper(wrap)
	}

	for _, configString := range conf.Destinations {
		if err := destinations.Register(configString); err != nil {
			return nil, nil, err
		}
	}

	return providers, destinations, nil
}
