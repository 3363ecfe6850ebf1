package ports

import (
	"context"
	"errors"

	"github.com/tdex-network/walletdb/internal/core/domain"
)

var (
	// ErrRecordNotFound is returned by a Tx when the requested key is missing.
	ErrRecordNotFound = errors.New("record not found")
	// ErrRecordExists is returned by Tx.Insert for an already stored key.
	ErrRecordExists = errors.New("record already exists")
	// ErrTxReadOnly is returned on writes within a read-only transaction.
	ErrTxReadOnly = errors.New("transaction is read-only")
)

// DbManager is the storage backend adapter. Every backend groups stores into
// buckets and scopes a transaction to exactly one bucket.
type DbManager interface {
	// RunTransaction runs the handler within a transaction over the given
	// bucket. The transaction is committed if the handler returns nil,
	// discarded otherwise. Write transactions over the same bucket are
	// serialized.
	RunTransaction(
		ctx context.Context,
		bucket domain.BucketName,
		readOnly bool,
		handler func(ctx context.Context, tx Tx) error,
	) error
	Close()
}

// Tx is a transaction handle scoped to one bucket's stores. Values are
// pointers to the store's record type, as given by domain.NewRecord.
type Tx interface {
	Bucket() domain.BucketName
	ReadOnly() bool
	// Get decodes the record with the given id into dst.
	Get(store domain.StoreName, id string, dst interface{}) error
	// GetAll decodes every record of the store into dst, a pointer to a
	// slice of the store's record type.
	GetAll(store domain.StoreName, dst interface{}) error
	Exists(store domain.StoreName, id string) (bool, error)
	Count(store domain.StoreName) (int, error)
	Insert(store domain.StoreName, id string, value interface{}) error
	Update(store domain.StoreName, id string, value interface{}) error
	Delete(store domain.StoreName, id string) error
	// OnCommit registers a hook run after a successful commit.
	OnCommit(fn func())
}
