// Encapsulates access to the metadata database
package amsdb

import (
	"fmt"
	"log"

	"github.com/function61/gokit/logex"
	"go.etcd.io/bbolt"
)

// opens the BoltDB metadata database
func Open(dbLocation string) (*bbolt.DB, error) {
	return bbolt.Open(dbLocation, 0700, nil)
}

// initializes an empty database with the buckets all repositories need
func Bootstrap(db *bbolt.DB, logger *log.Logger) error {
	logl := logex.Levels(logex.NonNil(logger))

	tx, err := db.Begin(true)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// be extra safe and scan the DB to see that it is totally empty
	if err := tx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
		return fmt.Errorf("DB not empty, found bucket: %s", name)
	}); err != nil {
		return err
	}

	for _, repo := range RepoByRecordType {
		if err := repo.Bootstrap(tx); err != nil {
			return err
		}
	}

	logl.Info.Printf("bootstrapped metadata database")

	return tx.Commit()
}
