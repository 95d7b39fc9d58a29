package amsserver

import (
	"time"

	"github.com/function61/aitta/pkg/amsdb"
	"github.com/function61/aitta/pkg/amserrors"
	"github.com/function61/aitta/pkg/amstypes"
	"go.etcd.io/bbolt"
)

// Advisory asset locking. A lock is four fields on the Asset record; holding one does
// not make the storage layer exclusive, it only lets cooperating clients coordinate.
// Locked iff LockAction is set.

func (a *AssetsService) Lock(id string, externalUserID string, externalSessionID string, action string) (*amstypes.Asset, error) {
	if externalUserID == "" {
		return nil, amserrors.ExternalUserIDNotFound()
	}

	if externalSessionID == "" {
		return nil, amserrors.ExternalSessionIDNotFound()
	}

	locked := &amstypes.Asset{}

	if err := a.db.Update(func(tx *bbolt.Tx) error {
		asset, err := amsdb.Read(tx).Asset(id)
		if err != nil {
			return translateAssetNotFound(err, id)
		}

		if asset.Locked() {
			return amserrors.LockingAssetLocked()
		}

		now := time.Now().UTC()

		asset.LockUser = externalUserID
		asset.LockSession = externalSessionID
		asset.LockAction = action
		asset.LockTime = &now

		*locked = *asset

		return amsdb.AssetRepository.Update(asset, tx)
	}); err != nil {
		return nil, err
	}

	return locked, nil
}

func (a *AssetsService) Unlock(id string, externalUserID string, externalSessionID string, force bool) (*amstypes.Asset, error) {
	unlocked := &amstypes.Asset{}

	if err := a.db.Update(func(tx *bbolt.Tx) error {
		asset, err := amsdb.Read(tx).Asset(id)
		if err != nil {
			return translateAssetNotFound(err, id)
		}

		if !force {
			if !asset.Locked() {
				return amserrors.UnlockingAssetUnlocked()
			}

			if asset.LockUser != externalUserID {
				return amserrors.ExternalUserIDDoNotMatch()
			}

			if asset.LockSession != externalSessionID {
				return amserrors.ExternalSessionIDDoNotMatch()
			}
		}

		clearLock(asset)

		*unlocked = *asset

		return amsdb.AssetRepository.Update(asset, tx)
	}); err != nil {
		return nil, err
	}

	return unlocked, nil
}

// UnlockSession clears every lock held by (user, session). Per-asset failures are
// logged and do not stop the sweep.
func (a *AssetsService) UnlockSession(externalUserID string, externalSessionID string) error {
	var lockedAssets []amstypes.Asset

	if err := a.db.View(func(tx *bbolt.Tx) error {
		found, err := amsdb.Read(tx).AssetsLockedBySession(externalSessionID)
		if err != nil {
			return err
		}

		lockedAssets = found

		return nil
	}); err != nil {
		return err
	}

	for _, asset := range lockedAssets {
		if asset.LockUser != externalUserID {
			continue
		}

		if _, err := a.Unlock(asset.ID, externalUserID, externalSessionID, false); err != nil {
			a.logl.Error.Printf("unlock %s for session %s: %v", asset.ID, externalSessionID, err)
		}
	}

	return nil
}

func clearLock(asset *amstypes.Asset) {
	asset.LockUser = ""
	asset.LockSession = ""
	asset.LockAction = ""
	asset.LockTime = nil
}
