package uow

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/walletdb/internal/core/domain"
)

// Tx represents an all-or-nothing backend transaction, by committing or
// rolling back a set of read/write operations
type Tx interface {
	Commit() error
	Rollback() error
}

// Hooks collects the callbacks to run once a transaction is committed.
// Backends embed it in their transaction type.
type Hooks struct {
	mu    sync.Mutex
	hooks []func()
}

// OnCommit registers a hook.
func (h *Hooks) OnCommit(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, fn)
}

func (h *Hooks) run() {
	h.mu.Lock()
	hooks := h.hooks
	h.hooks = nil
	h.mu.Unlock()

	for _, fn := range hooks {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					log.Warnf("recovered panic in commit hook: %v", rec)
				}
			}()
			fn()
		}()
	}
}

// HooksProvider is implemented by transactions embedding Hooks.
type HooksProvider interface {
	CommitHooks() *Hooks
}

// CommitHooks implements HooksProvider.
func (h *Hooks) CommitHooks() *Hooks {
	return h
}

// UnitOfWork runs handlers in a single bucket transaction. Write
// transactions over the same bucket are serialized, reads are not.
type UnitOfWork struct {
	lock  sync.Mutex
	locks map[domain.BucketName]*sync.Mutex
}

// NewUnitOfWork returns a new UnitOfWork
func NewUnitOfWork() *UnitOfWork {
	return &UnitOfWork{
		locks: make(map[domain.BucketName]*sync.Mutex),
	}
}

func (u *UnitOfWork) bucketLock(bucket domain.BucketName) *sync.Mutex {
	u.lock.Lock()
	defer u.lock.Unlock()

	mu, ok := u.locks[bucket]
	if !ok {
		mu = &sync.Mutex{}
		u.locks[bucket] = mu
	}
	return mu
}

// Run begins a transaction with the given function and runs fn over it. The
// transaction is committed if fn returns nil and rolled back otherwise. A
// panic in fn is recovered and rolls the transaction back. Failures are
// reported as generic local errors unless fn already returned a domain error.
func (u *UnitOfWork) Run(
	ctx context.Context,
	bucket domain.BucketName,
	readOnly bool,
	begin func() (Tx, error),
	fn func(ctx context.Context, tx Tx) error,
) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !readOnly {
		mu := u.bucketLock(bucket)
		mu.Lock()
		defer mu.Unlock()
	}

	tx, err := begin()
	if err != nil {
		return domain.WrapGenericLocalError(err, "begin %s transaction", bucket)
	}

	committed := false
	defer func() {
		if committed {
			if hp, ok := tx.(HooksProvider); ok {
				hp.CommitHooks().run()
			}
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil {
			log.WithError(rbErr).Warnf("failed to rollback %s transaction", bucket)
		}
	}()

	defer func() {
		// panicking returns an error that causes tx rollback
		if rec := recover(); rec != nil {
			err = domain.NewGenericLocalError("recovered: %v", rec)
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}

	if readOnly {
		// read-only transactions are released via rollback
		return nil
	}

	if err = tx.Commit(); err != nil {
		return domain.WrapGenericLocalError(err, "commit %s transaction", bucket)
	}
	committed = true
	return nil
}
