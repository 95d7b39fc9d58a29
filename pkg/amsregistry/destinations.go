package amsregistry

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/function61/aitta/pkg/amserrors"
	"github.com/function61/aitta/pkg/blobprovider"
)

// a named binding of one backend config string to one provider type. all Sets
// pointing at this Destination share the same lazily-built provider instance
// (lifetime = process).
type Destination struct {
	Name         string
	ProviderName string
	Config       string // backend-specific, opaque to the registry

	factory blobprovider.Factory
	wrap    ProviderWrapper
	logger  *log.Logger

	mu       sync.Mutex
	instance blobprovider.Provider
}

// instantiates the provider on first call and caches it for the Destination's lifetime
func (d *Destination) Provider() (blobprovider.Provider, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.instance == nil {
		instance, err := d.factory(d.Config, d.logger)
		if err != nil {
			return nil, err
		}

		if d.wrap != nil {
			instance = d.wrap(instance, d.Name)
		}

		d.instance = instance
	}

	return d.instance, nil
}

// decorates each built provider, e.g. to record metrics
type ProviderWrapper func(origin blobprovider.Provider, destinationName string) blobprovider.Provider

type DestinationRegistry struct {
	providers    *ProviderRegistry
	logger       *log.Logger
	wrap         ProviderWrapper
	destinations map[string]*Destination
}

func NewDestinationRegistry(providers *ProviderRegistry, logger *log.Logger) *DestinationRegistry {
	return &DestinationRegistry{
		providers:    providers,
		logger:       logger,
		destinations: map[string]*Destination{},
	}
}

// config string format: "<ProviderTypeName>,<DestinationName>,<ProviderConfig>".
// only the first two commas separate - the provider config may itself contain commas.
// re-registering an existing name overwrites the previous entry.
func (d *DestinationRegistry) Register(configString string) error {
	entries := strings.SplitN(configString, ",", 3)
	if len(entries) != 3 {
		return amserrors.ConfigError(fmt.Sprintf(
			"destination config: expected 3 comma-separated fields, got %d", len(entries)), nil)
	}

	providerName, name, providerConfig := entries[0], entries[1], entries[2]

	factory, err := d.providers.Get(providerName)
	if err != nil {
		return err
	}

	d.destinations[name] = &Destination{
		Name:         name,
		ProviderName: providerName,
		Config:       providerConfig,
		factory:      factory,
		wrap:         d.wrap,
		logger:       d.logger,
	}

	return nil
}

// must be called before Register
func (d *DestinationRegistry) SetProviderWrapper(wrap ProviderWrapper) {
	d.wrap = wrap
}

func (d *DestinationRegistry) Get(name string) (*Destination, error) {
	destination, found := d.destinations[name]
	if !found {
		return nil, amserrors.DestinationNotFound(name)
	}

	return destination, nil
}

func (d *DestinationRegistry) Exists(name string) bool {
	_, found := d.destinations[name]
	return found
}

func (d *DestinationRegistry) All() []*Destination {
	all := []*Destination{}
	for _, destination := range d.destinations {
		all = append(all, destination)
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })

	return all
}

func (d *DestinationRegistry) Clear() {
	d.destinations = map[string]*Destination{}
}
