package amsserver

import (
	"context"
	"testing"

	"github.com/function61/aitta/pkg/amserrors"
	"github.com/function61/aitta/pkg/amstypes"
	"github.com/function61/gokit/assert"
)

func assetForLockTest(t *testing.T, assets *AssetsService, sets *SetsService) *amstypes.Asset {
	t.Helper()

	set := usableSetForTest(t, sets)

	asset, err := assets.Create(context.Background(), &amstypes.Asset{
		SetID:    set.ID,
		Filename: "contended.txt",
	}, []byte("contended content"), "")
	assert.Ok(t, err)

	return asset
}

func TestLockingExclusivity(t *testing.T) {
	sets, assets := servicesForTest(t)
	asset := assetForLockTest(t, assets, sets)

	locked, err := assets.Lock(asset.ID, "u1", "s1", "edit")
	assert.Ok(t, err)

	assert.EqualString(t, locked.LockUser, "u1")
	assert.EqualString(t, locked.LockSession, "s1")
	assert.EqualString(t, locked.LockAction, "edit")
	assert.Assert(t, locked.LockTime != nil)

	// second locker loses
	_, err = assets.Lock(asset.ID, "u2", "s2", "edit")
	assert.EqualString(t, amserrors.Code(err), "lock.already-locked")

	// non-holder cannot unlock
	_, err = assets.Unlock(asset.ID, "u2", "s2", false)
	assert.EqualString(t, amserrors.Code(err), "lock.external-user-id-mismatch")

	_, err = assets.Unlock(asset.ID, "u1", "s2", false)
	assert.EqualString(t, amserrors.Code(err), "lock.external-session-id-mismatch")

	// holder unlocks, all four fields cleared
	unlocked, err := assets.Unlock(asset.ID, "u1", "s1", false)
	assert.Ok(t, err)

	assert.Assert(t, !unlocked.Locked())
	assert.EqualString(t, unlocked.LockUser, "")
	assert.EqualString(t, unlocked.LockSession, "")
	assert.EqualString(t, unlocked.LockAction, "")
	assert.Assert(t, unlocked.LockTime == nil)
}

func TestLockRequiresExternalIDs(t *testing.T) {
	sets, assets := servicesForTest(t)
	asset := assetForLockTest(t, assets, sets)

	_, err := assets.Lock(asset.ID, "", "s1", "edit")
	assert.EqualString(t, amserrors.Code(err), "lock.external-user-id-not-found")

	_, err = assets.Lock(asset.ID, "u1", "", "edit")
	assert.EqualString(t, amserrors.Code(err), "lock.external-session-id-not-found")
}

func TestUnlockingUnlockedAsset(t *testing.T) {
	sets, assets := servicesForTest(t)
	asset := assetForLockTest(t, assets, sets)

	_, err := assets.Unlock(asset.ID, "u1", "s1", false)
	assert.EqualString(t, amserrors.Code(err), "lock.already-unlocked")
}

func TestForceUnlockBypassesAllChecks(t *testing.T) {
	sets, assets := servicesForTest(t)
	asset := assetForLockTest(t, assets, sets)

	_, err := assets.Lock(asset.ID, "u1", "s1", "edit")
	assert.Ok(t, err)

	// different user, no matching ids, even works on unlocked assets
	unlocked, err := assets.Unlock(asset.ID, "u2", "s2", true)
	assert.Ok(t, err)
	assert.Assert(t, !unlocked.Locked())

	_, err = assets.Unlock(asset.ID, "u2", "s2", true)
	assert.Ok(t, err)
}

func TestUnlockSession(t *testing.T) {
	sets, assets := servicesForTest(t)
	set := usableSetForTest(t, sets)

	makeAsset := func(filename string) *amstypes.Asset {
		asset, err := assets.Create(context.Background(), &amstypes.Asset{
			SetID:    set.ID,
			Filename: filename,
		}, []byte("content"), "")
		assert.Ok(t, err)

		return asset
	}

	first := makeAsset("first.txt")
	second := makeAsset("second.txt")
	third := makeAsset("third.txt")

	_, err := assets.Lock(first.ID, "u1", "s1", "edit")
	assert.Ok(t, err)

	_, err = assets.Lock(second.ID, "u1", "s1", "edit")
	assert.Ok(t, err)

	// different session, must survive the sweep
	_, err = assets.Lock(third.ID, "u1", "other-session", "edit")
	assert.Ok(t, err)

	assert.Ok(t, assets.UnlockSession("u1", "s1"))

	for _, tc := range []struct {
		assetID      string
		expectLocked bool
	}{
		{first.ID, false},
		{second.ID, false},
		{third.ID, true},
	} {
		asset, err := assets.GetByID(tc.assetID)
		assert.Ok(t, err)
		assert.Assert(t, asset.Locked() == tc.expectLocked)
	}
}
