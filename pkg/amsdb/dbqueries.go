package amsdb

import (
	"github.com/function61/aitta/pkg/amstypes"
	"go.etcd.io/bbolt"
)

type dbQueries struct {
	tx *bbolt.Tx
}

func Read(tx *bbolt.Tx) *dbQueries {
	return &dbQueries{tx}
}

func (d *dbQueries) Set(id string) (*amstypes.Set, error) {
	record := &amstypes.Set{}
	if err := SetRepository.OpenByPrimaryKey([]byte(id), record, d.tx); err != nil {
		return nil, err
	}

	return record, nil
}

func (d *dbQueries) Asset(id string) (*amstypes.Asset, error) {
	record := &amstypes.Asset{}
	if err := AssetRepository.OpenByPrimaryKey([]byte(id), record, d.tx); err != nil {
		return nil, err
	}

	return record, nil
}

func (d *dbQueries) AssetsBySet(setID string) ([]amstypes.Asset, error) {
	assets := []amstypes.Asset{}

	return assets, AssetsBySetIndex.Query([]byte(setID), StartFromFirst, func(id []byte) error {
		asset, err := d.Asset(string(id))
		if err != nil {
			return err
		}

		assets = append(assets, *asset)

		return nil
	}, d.tx)
}

func (d *dbQueries) SetHasAssets(setID string) (bool, error) {
	hasAssets := false

	return hasAssets, AssetsBySetIndex.Query([]byte(setID), StartFromFirst, func(id []byte) error {
		hasAssets = true
		return StopIteration
	}, d.tx)
}

func (d *dbQueries) AssetsLockedBySession(sessionID string) ([]amstypes.Asset, error) {
	assets := []amstypes.Asset{}

	return assets, AssetsByLockSessionIndex.Query([]byte(sessionID), StartFromFirst, func(id []byte) error {
		asset, err := d.Asset(string(id))
		if err != nil {
			return err
		}

		assets = append(assets, *asset)

		return nil
	}, d.tx)
}
