package amsdb

import (
	"github.com/function61/aitta/pkg/amstypes"
	"github.com/function61/aitta/pkg/blorm"
)

// re-export so not all amsdb-importing packages have to import blorm
var (
	StartFromFirst = blorm.StartFromFirst
	StopIteration  = blorm.ErrStopIteration
	ErrNotFound    = blorm.ErrNotFound
)

var SetRepository = register("Set", blorm.NewSimpleRepo(
	"sets",
	func() any { return &amstypes.Set{} },
	func(record any) []byte { return []byte(record.(*amstypes.Set).ID) }))

var AssetRepository = register("Asset", blorm.NewSimpleRepo(
	"assets",
	func() any { return &amstypes.Asset{} },
	func(record any) []byte { return []byte(record.(*amstypes.Asset).ID) }))

// used for the Set deletion gate ("zero assets?") and Set asset counting
var AssetsBySetIndex = blorm.NewValueIndex("by_set", AssetRepository, func(record any, index func(val []byte)) {
	asset := record.(*amstypes.Asset)

	if asset.SetID != "" {
		index([]byte(asset.SetID))
	}
})

// locked assets, partitioned by lock session (for unlock-all-for-session)
var AssetsByLockSessionIndex = blorm.NewValueIndex("by_lock_session", AssetRepository, func(record any, index func(val []byte)) {
	asset := record.(*amstypes.Asset)

	if asset.Locked() && asset.LockSession != "" {
		index([]byte(asset.LockSession))
	}
})

var RepoByRecordType = map[string]blorm.Repository{}

func register(name string, repo *blorm.SimpleRepository) *blorm.SimpleRepository {
	RepoByRecordType[name] = repo
	return repo
}
