package dbbadger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/dgraph-io/badger/v3"
	"github.com/dgraph-io/badger/v3/options"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/walletdb/internal/core/domain"
	"github.com/tdex-network/walletdb/internal/core/ports"
	"github.com/tdex-network/walletdb/internal/storageutil/uow"
	"github.com/timshannon/badgerhold/v4"
)

const gcDiscardRatio = 0.5

// DbManager holds one badgerhold store per bucket, so that transactions over
// unrelated buckets never contend.
type DbManager struct {
	stores   map[domain.BucketName]*badgerhold.Store
	uow      *uow.UnitOfWork
	inMemory bool
}

// NewDbManager opens (or creates if not exists) the badger stores on disk.
// It expects a base data dir and an optional logger. Every store is kept in
// memory if the data dir is empty.
func NewDbManager(baseDbDir string, logger badger.Logger) (*DbManager, error) {
	stores := make(map[domain.BucketName]*badgerhold.Store)
	for _, bucket := range domain.AllBuckets() {
		var dir string
		if len(baseDbDir) > 0 {
			dir = filepath.Join(baseDbDir, string(bucket))
		}
		store, err := createDb(dir, logger)
		if err != nil {
			for _, s := range stores {
				s.Close()
			}
			return nil, fmt.Errorf("opening %s db: %w", bucket, err)
		}
		stores[bucket] = store
	}

	return &DbManager{
		stores:   stores,
		uow:      uow.NewUnitOfWork(),
		inMemory: len(baseDbDir) <= 0,
	}, nil
}

// RunTransaction implements the ports.DbManager interface.
func (d *DbManager) RunTransaction(
	ctx context.Context,
	bucket domain.BucketName,
	readOnly bool,
	handler func(ctx context.Context, tx ports.Tx) error,
) error {
	store, ok := d.stores[bucket]
	if !ok {
		return domain.NewGenericLocalError("unknown bucket %s", bucket)
	}

	begin := func() (uow.Tx, error) {
		return &transaction{
			bucket:   bucket,
			readOnly: readOnly,
			store:    store,
			txn:      store.Badger().NewTransaction(!readOnly),
		}, nil
	}

	return d.uow.Run(ctx, bucket, readOnly, begin,
		func(ctx context.Context, tx uow.Tx) error {
			return handler(ctx, tx.(*transaction))
		},
	)
}

// CollectGarbage runs the value log garbage collection of every store.
func (d *DbManager) CollectGarbage() {
	if d.inMemory {
		return
	}
	for bucket, store := range d.stores {
		db := store.Badger()
		for {
			if err := db.RunValueLogGC(gcDiscardRatio); err != nil {
				if err != badger.ErrNoRewrite {
					log.WithError(err).Warnf("value log gc failed for %s db", bucket)
				}
				break
			}
		}
	}
}

// Close implements the ports.DbManager interface.
func (d *DbManager) Close() {
	for _, store := range d.stores {
		store.Close()
	}
}

// JSONEncode is a custom JSON based encoder for badger
func JSONEncode(value interface{}) ([]byte, error) {
	var buff bytes.Buffer

	en := json.NewEncoder(&buff)

	err := en.Encode(value)
	if err != nil {
		return nil, err
	}

	return buff.Bytes(), nil
}

// JSONDecode is a custom JSON based decoder for badger
func JSONDecode(data []byte, value interface{}) error {
	return json.NewDecoder(bytes.NewReader(data)).Decode(value)
}

func createDb(dbDir string, logger badger.Logger) (*badgerhold.Store, error) {
	isInMemory := len(dbDir) <= 0

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger

	if isInMemory {
		opts.InMemory = true
	} else {
		opts.Compression = options.ZSTD
	}

	return badgerhold.Open(badgerhold.Options{
		Encoder:          JSONEncode,
		Decoder:          JSONDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
}
