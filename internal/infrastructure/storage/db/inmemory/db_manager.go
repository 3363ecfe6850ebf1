package inmemory

import (
	"context"
	"sync"

	"github.com/tdex-network/walletdb/internal/core/domain"
	"github.com/tdex-network/walletdb/internal/core/ports"
	"github.com/tdex-network/walletdb/internal/storageutil/uow"
)

type storeData map[string][]byte

type bucketData map[domain.StoreName]storeData

func (b bucketData) clone() bucketData {
	c := make(bucketData, len(b))
	for store, data := range b {
		cs := make(storeData, len(data))
		for k, v := range data {
			cs[k] = v
		}
		c[store] = cs
	}
	return c
}

// DbManager is a volatile backend. A write transaction works on a copy of
// its bucket that replaces the shared one on commit.
type DbManager struct {
	lock    sync.RWMutex
	buckets map[domain.BucketName]bucketData
	uow     *uow.UnitOfWork
}

func NewDbManager() *DbManager {
	buckets := make(map[domain.BucketName]bucketData)
	for _, bucket := range domain.AllBuckets() {
		data := make(bucketData)
		for _, store := range domain.BucketStores(bucket) {
			data[store] = make(storeData)
		}
		buckets[bucket] = data
	}
	return &DbManager{
		buckets: buckets,
		uow:     uow.NewUnitOfWork(),
	}
}

// RunTransaction implements the ports.DbManager interface.
func (d *DbManager) RunTransaction(
	ctx context.Context,
	bucket domain.BucketName,
	readOnly bool,
	handler func(ctx context.Context, tx ports.Tx) error,
) error {
	begin := func() (uow.Tx, error) {
		d.lock.RLock()
		data, ok := d.buckets[bucket]
		d.lock.RUnlock()
		if !ok {
			return nil, domain.NewGenericLocalError("unknown bucket %s", bucket)
		}
		if !readOnly {
			data = data.clone()
		}
		return &transaction{
			bucket:   bucket,
			readOnly: readOnly,
			data:     data,
			commit: func(data bucketData) {
				d.lock.Lock()
				d.buckets[bucket] = data
				d.lock.Unlock()
			},
		}, nil
	}

	return d.uow.Run(ctx, bucket, readOnly, begin,
		func(ctx context.Context, tx uow.Tx) error {
			return handler(ctx, tx.(*transaction))
		},
	)
}

func (d *DbManager) Close() {}
