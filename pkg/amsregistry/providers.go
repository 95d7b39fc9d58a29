// Registries binding storage backend types ("providers") and named backend
// configurations ("destinations") together. Both are populated once at startup,
// before serving traffic; Clear() exists for test isolation only.
package amsregistry

import (
	"sort"

	"github.com/function61/aitta/pkg/amserrors"
	"github.com/function61/aitta/pkg/blobprovider"
)

// maps a provider type name (e.g. "AmazonS3") to the factory that knows how to build
// a live provider from a destination's config string
type ProviderRegistry struct {
	factories map[string]blobprovider.Factory
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		factories: map[string]blobprovider.Factory{},
	}
}

func (p *ProviderRegistry) Register(typeName string, factory blobprovider.Factory) error {
	if typeName == "" || factory == nil {
		return amserrors.ConfigError("provider registration requires a type name and a factory", nil)
	}

	p.factories[typeName] = factory

	return nil
}

func (p *ProviderRegistry) Get(typeName string) (blobprovider.Factory, error) {
	factory, found := p.factories[typeName]
	if !found {
		return nil, amserrors.ProviderNotFound(typeName)
	}

	return factory, nil
}

func (p *ProviderRegistry) Exists(typeName string) bool {
	_, found := p.factories[typeName]
	return found
}

func (p *ProviderRegistry) All() []string {
	typeNames := []string{}
	for typeName := range p.factories {
		typeNames = append(typeNames, typeName)
	}

	sort.Strings(typeNames)

	return typeNames
}

func (p *ProviderRegistry) Clear() {
	p.factories = map[string]blobprovider.Factory{}
}
