package blorm

import (
	"github.com/asdine/storm/codec/msgpack"
	"go.etcd.io/bbolt"
)

type SimpleRepository struct {
	bucketName  []byte
	alloc       func() any
	idExtractor func(record any) []byte
	indices     []*ValueIndex
}

var _ Repository = (*SimpleRepository)(nil)

func NewSimpleRepo(bucketName string, allocator func() any, idExtractor func(any) []byte) *SimpleRepository {
	return &SimpleRepository{
		bucketName:  []byte(bucketName),
		alloc:       allocator,
		idExtractor: idExtractor,
		indices:     []*ValueIndex{},
	}
}

func (r *SimpleRepository) Bootstrap(tx *bbolt.Tx) error {
	_, err := tx.CreateBucket(r.bucketName)
	return err
}

func (r *SimpleRepository) Alloc() any {
	return r.alloc()
}

func (r *SimpleRepository) OpenByPrimaryKey(id []byte, record any, tx *bbolt.Tx) error {
	bucket := tx.Bucket(r.bucketName)
	if bucket == nil {
		return ErrBucketNotFound
	}

	data := bucket.Get(id)
	if data == nil {
		return ErrNotFound
	}

	return msgpack.Codec.Unmarshal(data, record)
}

func (r *SimpleRepository) Update(record any, tx *bbolt.Tx) error {
	bucket := tx.Bucket(r.bucketName)
	if bucket == nil {
		return ErrBucketNotFound
	}

	id := r.idExtractor(record)

	data, err := msgpack.Codec.Marshal(record)
	if err != nil {
		return err
	}

	// must diff indices against the old image of the record (if any)
	oldImage := r.alloc()

	errOpenOld := r.OpenByPrimaryKey(id, oldImage, tx)
	if errOpenOld != nil && errOpenOld != ErrNotFound {
		return errOpenOld
	}

	oldRefs := []indexRef{}
	if errOpenOld != ErrNotFound {
		oldRefs = r.indexRefsForRecord(oldImage)
	}

	if err := r.updateIndices(oldRefs, r.indexRefsForRecord(record), tx); err != nil {
		return err
	}

	return bucket.Put(id, data)
}

func (r *SimpleRepository) Delete(record any, tx *bbolt.Tx) error {
	bucket := tx.Bucket(r.bucketName)
	if bucket == nil {
		return ErrBucketNotFound
	}

	id := r.idExtractor(record)

	if bucket.Get(id) == nil { // bucket.Delete() does not error for non-existing keys
		return ErrNotFound
	}

	if err := r.updateIndices(r.indexRefsForRecord(record), []indexRef{}, tx); err != nil {
		return err
	}

	return bucket.Delete(id)
}

func (r *SimpleRepository) Each(fn func(record any) error, tx *bbolt.Tx) error {
	return r.EachFrom(StartFromFirst, fn, tx)
}

func (r *SimpleRepository) EachFrom(from []byte, fn func(record any) error, tx *bbolt.Tx) error {
	bucket := tx.Bucket(r.bucketName)
	if bucket == nil {
		return ErrBucketNotFound
	}

	all := bucket.Cursor()
	for key, value := all.Seek(from); key != nil; key, value = all.Next() {
		record := r.alloc()

		if err := msgpack.Codec.Unmarshal(value, record); err != nil {
			return err
		}

		if err := fn(record); err != nil {
			if err == ErrStopIteration {
				return nil
			}

			return err
		}
	}

	return nil
}

func (r *SimpleRepository) indexRefsForRecord(record any) []indexRef {
	refs := []indexRef{}

	for _, index := range r.indices {
		refs = append(refs, index.extractRefs(record)...)
	}

	return refs
}

func (r *SimpleRepository) updateIndices(oldRefs []indexRef, newRefs []indexRef, tx *bbolt.Tx) error {
	for _, old := range oldRefs {
		if !refExistsIn(old, newRefs) {
			if err := old.drop(tx); err != nil {
				return err
			}
		}
	}

	for _, nu := range newRefs {
		if !refExistsIn(nu, oldRefs) {
			if err := nu.write(tx); err != nil {
				return err
			}
		}
	}

	return nil
}
