package dbbolt

import (
	"github.com/tdex-network/walletdb/internal/core/domain"
	"github.com/tdex-network/walletdb/internal/core/ports"
	"github.com/tdex-network/walletdb/internal/storageutil/codec"
	"github.com/tdex-network/walletdb/internal/storageutil/uow"
	"go.etcd.io/bbolt"
)

type transaction struct {
	uow.Hooks
	bucket   domain.BucketName
	readOnly bool
	tx       *bbolt.Tx
}

func (t *transaction) Commit() error {
	return t.tx.Commit()
}

func (t *transaction) Rollback() error {
	err := t.tx.Rollback()
	if err == bbolt.ErrTxClosed {
		return nil
	}
	return err
}

func (t *transaction) Bucket() domain.BucketName {
	return t.bucket
}

func (t *transaction) ReadOnly() bool {
	return t.readOnly
}

func (t *transaction) Get(store domain.StoreName, id string, dst interface{}) error {
	b, err := t.storeBucket(store)
	if err != nil {
		return err
	}
	buf := b.Get([]byte(id))
	if buf == nil {
		return ports.ErrRecordNotFound
	}
	return codec.Decode(buf, dst)
}

func (t *transaction) GetAll(store domain.StoreName, dst interface{}) error {
	b, err := t.storeBucket(store)
	if err != nil {
		return err
	}
	appender, err := codec.NewSliceAppender(dst)
	if err != nil {
		return err
	}
	return b.ForEach(func(_, v []byte) error {
		return appender.Append(v)
	})
}

func (t *transaction) Exists(store domain.StoreName, id string) (bool, error) {
	b, err := t.storeBucket(store)
	if err != nil {
		return false, err
	}
	return b.Get([]byte(id)) != nil, nil
}

func (t *transaction) Count(store domain.StoreName) (int, error) {
	b, err := t.storeBucket(store)
	if err != nil {
		return 0, err
	}
	count := 0
	err = b.ForEach(func(_, _ []byte) error {
		count++
		return nil
	})
	return count, err
}

func (t *transaction) Insert(store domain.StoreName, id string, value interface{}) error {
	b, err := t.writableBucket(store)
	if err != nil {
		return err
	}
	if b.Get([]byte(id)) != nil {
		return ports.ErrRecordExists
	}
	return put(b, id, value)
}

func (t *transaction) Update(store domain.StoreName, id string, value interface{}) error {
	b, err := t.writableBucket(store)
	if err != nil {
		return err
	}
	if b.Get([]byte(id)) == nil {
		return ports.ErrRecordNotFound
	}
	return put(b, id, value)
}

func (t *transaction) Delete(store domain.StoreName, id string) error {
	b, err := t.writableBucket(store)
	if err != nil {
		return err
	}
	if b.Get([]byte(id)) == nil {
		return ports.ErrRecordNotFound
	}
	return b.Delete([]byte(id))
}

func (t *transaction) storeBucket(store domain.StoreName) (*bbolt.Bucket, error) {
	if !store.IsValid() || store.Bucket() != t.bucket {
		return nil, domain.NewGenericLocalError(
			"store %s is not part of bucket %s", store, t.bucket,
		)
	}
	b := t.tx.Bucket([]byte(store))
	if b == nil {
		return nil, domain.NewGenericLocalError("missing store %s", store)
	}
	return b, nil
}

func (t *transaction) writableBucket(store domain.StoreName) (*bbolt.Bucket, error) {
	if t.readOnly {
		return nil, ports.ErrTxReadOnly
	}
	return t.storeBucket(store)
}

func put(b *bbolt.Bucket, id string, value interface{}) error {
	buf, err := codec.Encode(value)
	if err != nil {
		return err
	}
	return b.Put([]byte(id), buf)
}
