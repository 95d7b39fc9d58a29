// "Bolt Light ORM", doesn't do much else than persist structs into Bolt..
package blorm

import (
	"errors"

	"go.etcd.io/bbolt"
)

var (
	ErrNotFound       = errors.New("database: record not found")
	ErrBucketNotFound = errors.New("database: bucket not found")

	// return this from an Each()/Query() callback to stop iteration early. it is not
	// returned to the API caller.
	ErrStopIteration = errors.New("blorm: stop iteration")

	StartFromFirst = []byte("")
)

type Repository interface {
	Bootstrap(tx *bbolt.Tx) error
	OpenByPrimaryKey(id []byte, record any, tx *bbolt.Tx) error
	Update(record any, tx *bbolt.Tx) error
	Delete(record any, tx *bbolt.Tx) error
	Each(fn func(record any) error, tx *bbolt.Tx) error
	Alloc() any
}
