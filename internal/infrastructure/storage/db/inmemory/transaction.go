package inmemory

import (
	"sort"

	"github.com/tdex-network/walletdb/internal/core/domain"
	"github.com/tdex-network/walletdb/internal/core/ports"
	"github.com/tdex-network/walletdb/internal/storageutil/codec"
	"github.com/tdex-network/walletdb/internal/storageutil/uow"
)

type transaction struct {
	uow.Hooks
	bucket   domain.BucketName
	readOnly bool
	data     bucketData
	commit   func(bucketData)
	closed   bool
}

func (t *transaction) Commit() error {
	if t.closed {
		return domain.NewGenericLocalError("transaction already closed")
	}
	t.closed = true
	t.commit(t.data)
	return nil
}

func (t *transaction) Rollback() error {
	t.closed = true
	return nil
}

func (t *transaction) Bucket() domain.BucketName {
	return t.bucket
}

func (t *transaction) ReadOnly() bool {
	return t.readOnly
}

func (t *transaction) Get(store domain.StoreName, id string, dst interface{}) error {
	data, err := t.store(store)
	if err != nil {
		return err
	}
	buf, ok := data[id]
	if !ok {
		return ports.ErrRecordNotFound
	}
	return codec.Decode(buf, dst)
}

func (t *transaction) GetAll(store domain.StoreName, dst interface{}) error {
	data, err := t.store(store)
	if err != nil {
		return err
	}
	appender, err := codec.NewSliceAppender(dst)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := appender.Append(data[k]); err != nil {
			return err
		}
	}
	return nil
}

func (t *transaction) Exists(store domain.StoreName, id string) (bool, error) {
	data, err := t.store(store)
	if err != nil {
		return false, err
	}
	_, ok := data[id]
	return ok, nil
}

func (t *transaction) Count(store domain.StoreName) (int, error) {
	data, err := t.store(store)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

func (t *transaction) Insert(store domain.StoreName, id string, value interface{}) error {
	data, err := t.writableStore(store)
	if err != nil {
		return err
	}
	if _, ok := data[id]; ok {
		return ports.ErrRecordExists
	}
	return put(data, id, value)
}

func (t *transaction) Update(store domain.StoreName, id string, value interface{}) error {
	data, err := t.writableStore(store)
	if err != nil {
		return err
	}
	if _, ok := data[id]; !ok {
		return ports.ErrRecordNotFound
	}
	return put(data, id, value)
}

func (t *transaction) Delete(store domain.StoreName, id string) error {
	data, err := t.writableStore(store)
	if err != nil {
		return err
	}
	if _, ok := data[id]; !ok {
		return ports.ErrRecordNotFound
	}
	delete(data, id)
	return nil
}

func (t *transaction) store(store domain.StoreName) (storeData, error) {
	if !store.IsValid() || store.Bucket() != t.bucket {
		return nil, domain.NewGenericLocalError(
			"store %s is not part of bucket %s", store, t.bucket,
		)
	}
	return t.data[store], nil
}

func (t *transaction) writableStore(store domain.StoreName) (storeData, error) {
	if t.readOnly {
		return nil, ports.ErrTxReadOnly
	}
	return t.store(store)
}

func put(data storeData, id string, value interface{}) error {
	buf, err := codec.Encode(value)
	if err != nil {
		return err
	}
	data[id] = buf
	return nil
}
