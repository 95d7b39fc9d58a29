package amsserver

import (
	"errors"
	"log"
	"maps"
	"time"

	"github.com/function61/aitta/pkg/amsdb"
	"github.com/function61/aitta/pkg/amserrors"
	"github.com/function61/aitta/pkg/amsregistry"
	"github.com/function61/aitta/pkg/amstypes"
	"github.com/function61/aitta/pkg/amsutils"
	"github.com/function61/aitta/pkg/blobprovider"
	"github.com/function61/gokit/logex"
	"go.etcd.io/bbolt"
)

// Set lifecycle: the state machine binding a Set to a storage Destination.
//
//	DRAFT -> USABLE <-> DISABLED
//
// leaving DRAFT is one-way: no update may ever set the state back to draft, and while
// out of draft the destination binding is frozen (moving it would require migrating
// every existing blob).
type SetsService struct {
	db              *bbolt.DB
	destinations    *amsregistry.DestinationRegistry
	appMaxAssetSize int64 // process-wide MAX_ASSET_SIZE, 0 = unlimited
	logl            *logex.Leveled
}

func NewSetsService(db *bbolt.DB, destinations *amsregistry.DestinationRegistry, appMaxAssetSize int64, logger *log.Logger) *SetsService {
	return &SetsService{
		db:              db,
		destinations:    destinations,
		appMaxAssetSize: appMaxAssetSize,
		logl:            logex.Levels(logex.NonNil(logger)),
	}
}

// partial update. nil field = "leave unchanged", so validation always sees the merged
// view of original + updates.
type SetChanges struct {
	Name              *string            `json:"name"`
	Description       *string            `json:"description"`
	State             *amstypes.SetState `json:"state"`
	DestinationName   *string            `json:"destination_name"`
	DestinationConfig *map[string]string `json:"destination_config"`
	MaximumAssetSize  *int64             `json:"maximum_asset_size"`
}

func (s *SetsService) Create(set *amstypes.Set, externalUserID string) (*amstypes.Set, error) {
	if set.Name == "" {
		return nil, amserrors.ConfigError("set: name is required", nil)
	}

	if set.State == "" {
		set.State = amstypes.SetStateDraft
	}

	if !validSetState(set.State) {
		return nil, amserrors.InvalidStateTransition(string(set.State))
	}

	if !s.destinations.Exists(set.DestinationName) {
		return nil, amserrors.DestinationNotFound(set.DestinationName)
	}

	set.ID = amsutils.NewSetID()
	set.FirstCreated = time.Now().UTC()
	set.VersionCreated = set.FirstCreated
	set.OriginalCreator = externalUserID
	set.VersionCreator = externalUserID

	if err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := errIfSetNameInUse(tx, set.Name, set.ID); err != nil {
			return err
		}

		return amsdb.SetRepository.Update(set, tx)
	}); err != nil {
		return nil, err
	}

	s.logl.Info.Printf("created set %s (%s)", set.ID, set.Name)

	return set, nil
}

func (s *SetsService) Update(id string, changes SetChanges, externalUserID string) (*amstypes.Set, error) {
	updated := &amstypes.Set{}

	if err := s.db.Update(func(tx *bbolt.Tx) error {
		original, err := amsdb.Read(tx).Set(id)
		if err != nil {
			return translateSetNotFound(err, id)
		}

		merged := *original
		applySetChanges(&merged, changes)

		if err := validateSetUpdate(original, &merged); err != nil {
			return err
		}

		if merged.Name != original.Name {
			if err := errIfSetNameInUse(tx, merged.Name, merged.ID); err != nil {
				return err
			}
		}

		if !s.destinations.Exists(merged.DestinationName) {
			return amserrors.DestinationNotFound(merged.DestinationName)
		}

		merged.VersionCreated = time.Now().UTC()
		if externalUserID != "" {
			merged.VersionCreator = externalUserID
		}

		*updated = merged

		return amsdb.SetRepository.Update(&merged, tx)
	}); err != nil {
		return nil, err
	}

	return updated, nil
}

// name is a unique key across Sets
func errIfSetNameInUse(tx *bbolt.Tx, name string, ownID string) error {
	duplicate := false
	if err := amsdb.SetRepository.Each(func(record any) error {
		other := record.(*amstypes.Set)
		if other.Name == name && other.ID != ownID {
			duplicate = true
			return amsdb.StopIteration
		}

		return nil
	}, tx); err != nil {
		return err
	}

	if duplicate {
		return amserrors.ConfigError("set: name already in use: "+name, nil)
	}

	return nil
}

func applySetChanges(set *amstypes.Set, changes SetChanges) {
	if changes.Name != nil {
		set.Name = *changes.Name
	}

	if changes.Description != nil {
		set.Description = *changes.Description
	}

	if changes.State != nil {
		set.State = *changes.State
	}

	if changes.DestinationName != nil {
		set.DestinationName = *changes.DestinationName
	}

	if changes.DestinationConfig != nil {
		set.DestinationConfig = *changes.DestinationConfig
	}

	if changes.MaximumAssetSize != nil {
		set.MaximumAssetSize = *changes.MaximumAssetSize
	}
}

func validateSetUpdate(original *amstypes.Set, merged *amstypes.Set) error {
	if !validSetState(merged.State) {
		return amserrors.InvalidStateTransition(string(merged.State))
	}

	if original.IsDraft() {
		return nil // everything is still mutable
	}

	// draft is terminal on exit
	if merged.IsDraft() {
		return amserrors.InvalidStateTransition(string(original.State))
	}

	// no-op "changes" that equal the current value are fine
	if merged.DestinationName != original.DestinationName {
		return amserrors.DestinationChangeNotAllowed()
	}

	if !maps.Equal(merged.DestinationConfig, original.DestinationConfig) {
		return amserrors.DestinationConfigChangeNotAllowed()
	}

	return nil
}

func validSetState(state amstypes.SetState) bool {
	switch state {
	case amstypes.SetStateDraft, amstypes.SetStateUsable, amstypes.SetStateDisabled:
		return true
	default:
		return false
	}
}

// a Set can be deleted while still a draft, or once it is disabled and no longer owns
// any Assets
func (s *SetsService) Delete(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		set, err := amsdb.Read(tx).Set(id)
		if err != nil {
			return translateSetNotFound(err, id)
		}

		switch set.State {
		case amstypes.SetStateDraft:
			// deletable unconditionally
		case amstypes.SetStateDisabled:
			hasAssets, err := amsdb.Read(tx).SetHasAssets(id)
			if err != nil {
				return err
			}

			if hasAssets {
				return amserrors.CannotDeleteActiveSet()
			}
		default:
			return amserrors.CannotDeleteActiveSet()
		}

		return amsdb.SetRepository.Delete(set, tx)
	})
}

func (s *SetsService) GetByID(id string) (*amstypes.Set, error) {
	var set *amstypes.Set

	if err := s.db.View(func(tx *bbolt.Tx) error {
		found, err := amsdb.Read(tx).Set(id)
		if err != nil {
			return translateSetNotFound(err, id)
		}

		set = found

		return nil
	}); err != nil {
		return nil, err
	}

	return set, nil
}

func (s *SetsService) List() ([]amstypes.Set, error) {
	sets := []amstypes.Set{}

	if err := s.db.View(func(tx *bbolt.Tx) error {
		return amsdb.SetRepository.Each(func(record any) error {
			sets = append(sets, *record.(*amstypes.Set))
			return nil
		}, tx)
	}); err != nil {
		return nil, err
	}

	return sets, nil
}

func (s *SetsService) GetDestination(set *amstypes.Set) (*amsregistry.Destination, error) {
	return s.destinations.Get(set.DestinationName)
}

func (s *SetsService) ProviderForSet(set *amstypes.Set) (blobprovider.Provider, error) {
	destination, err := s.GetDestination(set)
	if err != nil {
		return nil, err
	}

	return destination.Provider()
}

// effective upload ceiling for a Set. Set-level and process-level limits are combined
// by taking the stricter one; 0 means unlimited only when both are 0.
func (s *SetsService) MaxAssetSize(set *amstypes.Set) int64 {
	return resolveMaxAssetSize(set.MaximumAssetSize, s.appMaxAssetSize)
}

func resolveMaxAssetSize(setMax int64, appMax int64) int64 {
	switch {
	case appMax == 0:
		return setMax
	case setMax == 0:
		return appMax
	default:
		return min(setMax, appMax)
	}
}

func translateSetNotFound(err error, id string) error {
	if errors.Is(err, amsdb.ErrNotFound) {
		return amserrors.SetNotFound(id)
	}

	return err
}
