package blorm

import (
	"bytes"

	"go.etcd.io/bbolt"
)

/*	index layout (example: assets by set)

	bucket "assets:by_set"
	  sub-bucket <setID>
	    (assetID) = nil
*/

// fully qualified index entry reference
type indexRef struct {
	indexName []byte // looks like assets:by_set
	partition []byte
	id        []byte // primary key of the record this entry refers to
}

func (i *indexRef) write(tx *bbolt.Tx) error {
	indexBucket, err := tx.CreateBucketIfNotExists(i.indexName)
	if err != nil {
		return err
	}

	partitionBucket, err := indexBucket.CreateBucketIfNotExists(i.partition)
	if err != nil {
		return err
	}

	return partitionBucket.Put(i.id, nil)
}

func (i *indexRef) drop(tx *bbolt.Tx) error {
	indexBucket := tx.Bucket(i.indexName)
	if indexBucket == nil {
		return nil
	}

	partitionBucket := indexBucket.Bucket(i.partition)
	if partitionBucket == nil {
		return nil
	}

	return partitionBucket.Delete(i.id)
}

func refExistsIn(ref indexRef, coll []indexRef) bool {
	for _, other := range coll {
		if bytes.Equal(ref.indexName, other.indexName) &&
			bytes.Equal(ref.partition, other.partition) &&
			bytes.Equal(ref.id, other.id) {
			return true
		}
	}

	return false
}

// partitioned index whose entries are maintained automatically on repo
// Update()/Delete(). memberEvaluator pushes zero or more partition values a record
// should be indexed under.
type ValueIndex struct {
	repo            *SimpleRepository
	indexName       []byte // <repoBucketName>:<indexName>
	memberEvaluator func(record any, push func(partition []byte))
}

func NewValueIndex(name string, repo *SimpleRepository, memberEvaluator func(record any, push func(partition []byte))) *ValueIndex {
	idx := &ValueIndex{
		repo:            repo,
		indexName:       []byte(string(repo.bucketName) + ":" + name),
		memberEvaluator: memberEvaluator,
	}

	repo.indices = append(repo.indices, idx)

	return idx
}

func (v *ValueIndex) extractRefs(record any) []indexRef {
	refs := []indexRef{}

	v.memberEvaluator(record, func(partition []byte) {
		if len(partition) == 0 {
			panic("cannot index by empty value")
		}

		refs = append(refs, indexRef{v.indexName, partition, v.repo.idExtractor(record)})
	})

	return refs
}

// iterates record IDs under one partition. return ErrStopIteration from "fn" to stop
// mid-iteration (nil error will be returned by Query() )
func (v *ValueIndex) Query(partition []byte, start []byte, fn func(id []byte) error, tx *bbolt.Tx) error {
	indexBucket := tx.Bucket(v.indexName)
	if indexBucket == nil {
		return nil // index doesn't exist => no matching entries
	}

	partitionBucket := indexBucket.Bucket(partition)
	if partitionBucket == nil {
		return nil
	}

	idx := partitionBucket.Cursor()

	var id []byte
	if bytes.Equal(start, StartFromFirst) {
		id, _ = idx.First()
	} else {
		id, _ = idx.Seek(start)
	}

	for ; id != nil; id, _ = idx.Next() {
		if err := fn(makeCopy(id)); err != nil {
			if err == ErrStopIteration {
				return nil
			}

			return err
		}
	}

	return nil
}

func makeCopy(from []byte) []byte {
	copied := make([]byte, len(from))
	copy(copied, from)
	return copied
}
