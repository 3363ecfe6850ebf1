package dbbadger

import (
	"reflect"

	"github.com/dgraph-io/badger/v3"
	"github.com/tdex-network/walletdb/internal/core/domain"
	"github.com/tdex-network/walletdb/internal/core/ports"
	"github.com/tdex-network/walletdb/internal/storageutil/uow"
	"github.com/timshannon/badgerhold/v4"
)

type transaction struct {
	uow.Hooks
	bucket   domain.BucketName
	readOnly bool
	store    *badgerhold.Store
	txn      *badger.Txn
}

func (t *transaction) Commit() error {
	return t.txn.Commit()
}

func (t *transaction) Rollback() error {
	t.txn.Discard()
	return nil
}

func (t *transaction) Bucket() domain.BucketName {
	return t.bucket
}

func (t *transaction) ReadOnly() bool {
	return t.readOnly
}

func (t *transaction) Get(store domain.StoreName, id string, dst interface{}) error {
	if err := t.checkStore(store); err != nil {
		return err
	}
	if err := t.store.TxGet(t.txn, id, dst); err != nil {
		if err == badgerhold.ErrNotFound {
			return ports.ErrRecordNotFound
		}
		return err
	}
	return nil
}

func (t *transaction) GetAll(store domain.StoreName, dst interface{}) error {
	if err := t.checkStore(store); err != nil {
		return err
	}
	return t.store.TxFind(t.txn, dst, nil)
}

func (t *transaction) Exists(store domain.StoreName, id string) (bool, error) {
	record, err := domain.NewRecord(store)
	if err != nil {
		return false, err
	}
	if err := t.Get(store, id, record); err != nil {
		if err == ports.ErrRecordNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (t *transaction) Count(store domain.StoreName) (int, error) {
	record, err := domain.NewRecord(store)
	if err != nil {
		return 0, err
	}
	list := reflect.New(reflect.SliceOf(reflect.TypeOf(record).Elem()))
	if err := t.GetAll(store, list.Interface()); err != nil {
		return 0, err
	}
	return list.Elem().Len(), nil
}

func (t *transaction) Insert(store domain.StoreName, id string, value interface{}) error {
	if err := t.checkWrite(store); err != nil {
		return err
	}
	if err := t.store.TxInsert(t.txn, id, value); err != nil {
		if err == badgerhold.ErrKeyExists {
			return ports.ErrRecordExists
		}
		return err
	}
	return nil
}

func (t *transaction) Update(store domain.StoreName, id string, value interface{}) error {
	if err := t.checkWrite(store); err != nil {
		return err
	}
	if err := t.store.TxUpdate(t.txn, id, value); err != nil {
		if err == badgerhold.ErrNotFound {
			return ports.ErrRecordNotFound
		}
		return err
	}
	return nil
}

func (t *transaction) Delete(store domain.StoreName, id string) error {
	if err := t.checkWrite(store); err != nil {
		return err
	}
	record, err := domain.NewRecord(store)
	if err != nil {
		return err
	}
	if err := t.store.TxDelete(t.txn, id, record); err != nil {
		if err == badgerhold.ErrNotFound {
			return ports.ErrRecordNotFound
		}
		return err
	}
	return nil
}

func (t *transaction) checkStore(store domain.StoreName) error {
	if !store.IsValid() || store.Bucket() != t.bucket {
		return domain.NewGenericLocalError(
			"store %s is not part of bucket %s", store, t.bucket,
		)
	}
	return nil
}

func (t *transaction) checkWrite(store domain.StoreName) error {
	if t.readOnly {
		return ports.ErrTxReadOnly
	}
	return t.checkStore(store)
}
