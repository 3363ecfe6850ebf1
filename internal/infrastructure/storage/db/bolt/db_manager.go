package dbbolt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tdex-network/walletdb/internal/core/domain"
	"github.com/tdex-network/walletdb/internal/core/ports"
	"github.com/tdex-network/walletdb/internal/storageutil/uow"
	"go.etcd.io/bbolt"
)

const (
	dbFileExt   = ".db"
	openTimeout = time.Second
)

// DbManager keeps one bbolt file per bucket. Every store is a top level
// bolt bucket of its file.
type DbManager struct {
	dbs map[domain.BucketName]*bbolt.DB
	uow *uow.UnitOfWork
}

// NewDbManager opens (or creates if not exists) the bolt files in the given
// directory.
func NewDbManager(baseDbDir string) (*DbManager, error) {
	if len(baseDbDir) <= 0 {
		return nil, fmt.Errorf("missing bolt db directory")
	}
	if err := os.MkdirAll(baseDbDir, 0o700); err != nil {
		return nil, err
	}

	dbs := make(map[domain.BucketName]*bbolt.DB)
	closeAll := func() {
		for _, db := range dbs {
			db.Close()
		}
	}
	for _, bucket := range domain.AllBuckets() {
		path := filepath.Join(baseDbDir, string(bucket)+dbFileExt)
		db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: openTimeout})
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("opening %s db: %w", bucket, err)
		}
		dbs[bucket] = db
		if err := createStores(db, bucket); err != nil {
			closeAll()
			return nil, fmt.Errorf("creating %s stores: %w", bucket, err)
		}
	}

	return &DbManager{dbs: dbs, uow: uow.NewUnitOfWork()}, nil
}

// RunTransaction implements the ports.DbManager interface.
func (d *DbManager) RunTransaction(
	ctx context.Context,
	bucket domain.BucketName,
	readOnly bool,
	handler func(ctx context.Context, tx ports.Tx) error,
) error {
	db, ok := d.dbs[bucket]
	if !ok {
		return domain.NewGenericLocalError("unknown bucket %s", bucket)
	}

	begin := func() (uow.Tx, error) {
		tx, err := db.Begin(!readOnly)
		if err != nil {
			return nil, err
		}
		return &transaction{bucket: bucket, readOnly: readOnly, tx: tx}, nil
	}

	return d.uow.Run(ctx, bucket, readOnly, begin,
		func(ctx context.Context, tx uow.Tx) error {
			return handler(ctx, tx.(*transaction))
		},
	)
}

// Close implements the ports.DbManager interface.
func (d *DbManager) Close() {
	for _, db := range d.dbs {
		db.Close()
	}
}

func createStores(db *bbolt.DB, bucket domain.BucketName) error {
	return db.Update(func(tx *bbolt.Tx) error {
		for _, store := range domain.BucketStores(bucket) {
			if _, err := tx.CreateBucketIfNotExists([]byte(store)); err != nil {
				return err
			}
		}
		return nil
	})
}
