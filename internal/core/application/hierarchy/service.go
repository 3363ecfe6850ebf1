// Package hierarchy manages wallets, indexed accounts, chain accounts and
// hardware devices, enforcing their identity, ordering and naming rules.
package hierarchy

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/walletdb/internal/core/application/cache"
	"github.com/tdex-network/walletdb/internal/core/application/cloudsync"
	"github.com/tdex-network/walletdb/internal/core/application/vault"
	"github.com/tdex-network/walletdb/internal/core/domain"
	"github.com/tdex-network/walletdb/internal/core/ports"
	"github.com/tdex-network/walletdb/internal/storageutil/records"
)

// AddressIndexer records the addresses of new accounts in the reverse
// index.
type AddressIndexer interface {
	SaveAccountAddresses(networkID string, account domain.Account)
}

// Service is the wallet/account hierarchy manager.
type Service struct {
	db       ports.DbManager
	vault    *vault.Service
	sync     *cloudsync.Engine
	cache    *cache.Cache
	bus      ports.EventBus
	prompt   ports.PasswordPrompt
	hardware ports.HardwareAdapter
	indexer  AddressIndexer
	now      func() int64

	temp *tempWallets
	// hardware and air-gapped wallet creation reads and writes the whole
	// wallet set of a device
	fingerprintLock sync.Mutex
}

// NewService returns a Service bound to the sync engine as its scene
// applier. The hardware adapter and the address indexer are optional.
func NewService(
	db ports.DbManager,
	vaultSvc *vault.Service,
	syncEngine *cloudsync.Engine,
	readCache *cache.Cache,
	bus ports.EventBus,
	prompt ports.PasswordPrompt,
	hardware ports.HardwareAdapter,
	indexer AddressIndexer,
) *Service {
	s := &Service{
		db:       db,
		vault:    vaultSvc,
		sync:     syncEngine,
		cache:    readCache,
		bus:      bus,
		prompt:   prompt,
		hardware: hardware,
		indexer:  indexer,
		now:      domain.NowMillis,
		temp:     newTempWallets(),
	}
	syncEngine.SetSceneApplier(s)
	return s
}

// EnsureSingletonWallets creates the watching, imported and external
// wallets if missing.
func (s *Service) EnsureSingletonWallets(ctx context.Context) error {
	return s.db.RunTransaction(ctx, domain.BucketAccount, false,
		func(ctx context.Context, tx ports.Tx) error {
			for _, t := range domain.SingletonWalletTypes {
				if _, err := txGetWallet(tx, string(t)); err != nil {
					return err
				}
			}
			return nil
		},
	)
}

// verifyPassword returns the given password once verified, or asks for it.
// It never runs within a transaction.
func (s *Service) verifyPassword(ctx context.Context, password, reason string) (string, error) {
	if password != "" {
		if err := s.vault.VerifyPassword(ctx, password); err != nil {
			return "", err
		}
		return password, nil
	}
	if s.prompt == nil {
		return "", domain.NewGenericLocalError("password is required to %s", reason)
	}
	return s.prompt.PromptAndVerify(ctx, reason)
}

// afterCommit invalidates the read cache and publishes the events once the
// transaction is committed.
func (s *Service) afterCommit(tx ports.Tx, events ...domain.Event) {
	tx.OnCommit(func() {
		s.cache.Invalidate(
			domain.StoreWallet, domain.StoreIndexedAccount,
			domain.StoreAccount, domain.StoreDevice,
		)
		if s.bus == nil {
			return
		}
		for _, e := range events {
			s.bus.Publish(e)
		}
	})
}

func (s *Service) getAllWallets(ctx context.Context) ([]domain.Wallet, error) {
	return cache.GetOrLoad(s.cache, domain.StoreWallet, cache.Key(domain.StoreWallet),
		func() ([]domain.Wallet, error) {
			return getAll[domain.Wallet](ctx, s.db, domain.StoreWallet)
		},
	)
}

func (s *Service) getAllIndexedAccounts(ctx context.Context) ([]domain.IndexedAccount, error) {
	return cache.GetOrLoad(
		s.cache, domain.StoreIndexedAccount, cache.Key(domain.StoreIndexedAccount),
		func() ([]domain.IndexedAccount, error) {
			return getAll[domain.IndexedAccount](ctx, s.db, domain.StoreIndexedAccount)
		},
	)
}

func (s *Service) getAllAccounts(ctx context.Context) ([]domain.Account, error) {
	return cache.GetOrLoad(s.cache, domain.StoreAccount, cache.Key(domain.StoreAccount),
		func() ([]domain.Account, error) {
			return getAll[domain.Account](ctx, s.db, domain.StoreAccount)
		},
	)
}

// GetAllDevices ...
func (s *Service) GetAllDevices(ctx context.Context) ([]domain.Device, error) {
	devices, err := cache.GetOrLoad(s.cache, domain.StoreDevice, cache.Key(domain.StoreDevice),
		func() ([]domain.Device, error) {
			return getAll[domain.Device](ctx, s.db, domain.StoreDevice)
		},
	)
	if err != nil {
		return nil, err
	}
	return append([]domain.Device{}, devices...), nil
}

func getAll[T domain.Record](
	ctx context.Context, db ports.DbManager, store domain.StoreName,
) ([]T, error) {
	var list []T
	err := db.RunTransaction(ctx, store.Bucket(), true,
		func(ctx context.Context, tx ports.Tx) error {
			var err error
			list, err = records.GetAll[T](tx, store)
			return err
		},
	)
	return list, err
}

// txGetWallet returns the wallet. Missing singleton wallets are created
// within write transactions.
func txGetWallet(tx ports.Tx, walletID string) (*domain.Wallet, error) {
	wallet, err := records.GetSafe[domain.Wallet](tx, domain.StoreWallet, walletID)
	if err != nil {
		return nil, err
	}
	if wallet != nil {
		return wallet, nil
	}
	walletType := domain.WalletTypeFromID(walletID)
	if !walletType.IsSingleton() || walletID != string(walletType) {
		return nil, domain.NewRecordNotFoundError(domain.StoreWallet, walletID)
	}
	wallet = domain.NewSingletonWallet(walletType)
	if tx.ReadOnly() {
		return wallet, nil
	}
	if _, err := records.Add(
		tx, domain.StoreWallet, []domain.Wallet{*wallet}, true,
	); err != nil {
		return nil, err
	}
	return wallet, nil
}

func txUpdateWallet(tx ports.Tx, walletID string, fn func(w *domain.Wallet) error) error {
	wallet, err := txGetWallet(tx, walletID)
	if err != nil {
		return err
	}
	return records.UpdatePairs(tx, domain.StoreWallet,
		[]domain.RecordPair[domain.Wallet]{domain.NewRecordPair(wallet)}, fn,
	)
}

// txWalletDevice returns the device associated to a hardware or air-gapped
// wallet, nil for the others.
func txWalletDevice(tx ports.Tx, wallet domain.Wallet) (*domain.Device, error) {
	if !wallet.Type.IsHardware() || wallet.AssociatedDevice == "" {
		return nil, nil
	}
	return records.GetSafe[domain.Device](tx, domain.StoreDevice, wallet.AssociatedDevice)
}

// txWalletSyncTarget builds the sync target of the wallet with its device.
func txWalletSyncTarget(tx ports.Tx, wallet domain.Wallet) (cloudsync.WalletTarget, error) {
	device, err := txWalletDevice(tx, wallet)
	if err != nil {
		return cloudsync.WalletTarget{}, err
	}
	return cloudsync.WalletTarget{Wallet: wallet, Device: device}, nil
}

// removeSyncItemSafe drops the local sync item of a target without leaving
// a tombstone. Entities without a sync identity are ignored.
func removeSyncItemSafe(tx ports.Tx, key string, err error) error {
	if err != nil {
		log.WithError(err).Debug("entity has no sync item")
		return nil
	}
	return records.Remove(tx, domain.StoreCloudSyncItem, []string{key}, true)
}
