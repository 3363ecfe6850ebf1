package hierarchy

import (
	"context"

	"github.com/tdex-network/walletdb/internal/core/application/cloudsync"
	"github.com/tdex-network/walletdb/internal/core/domain"
	"github.com/tdex-network/walletdb/internal/core/ports"
	"github.com/tdex-network/walletdb/internal/storageutil/records"
)

// AddIndexedAccounts creates the indexed accounts of the wallet at the given
// indexes. With SkipIfExists, adding an existing index is a no-op.
func (s *Service) AddIndexedAccounts(
	ctx context.Context, params AddIndexedAccountParams,
) ([]domain.IndexedAccount, error) {
	var added []domain.IndexedAccount
	if err := s.db.RunTransaction(ctx, domain.BucketAccount, false,
		func(ctx context.Context, tx ports.Tx) error {
			wallet, err := records.Get[domain.Wallet](tx, domain.StoreWallet, params.WalletID)
			if err != nil {
				return err
			}
			added, err = s.txAddIndexedAccounts(
				tx, *wallet, params.Indexes, params.Names, params.SkipIfExists,
			)
			if err != nil {
				return err
			}
			s.afterCommit(tx, domain.Event{
				Name: domain.EventAccountUpdate, WalletID: wallet.ID,
				AccountIDs: indexedAccountIDs(added),
			})
			return nil
		},
	); err != nil {
		return nil, err
	}
	return added, nil
}

// AddHDNextIndexedAccount creates the indexed account at the first free
// index of the wallet.
func (s *Service) AddHDNextIndexedAccount(
	ctx context.Context, walletID string,
) (*domain.IndexedAccount, error) {
	var added []domain.IndexedAccount
	if err := s.db.RunTransaction(ctx, domain.BucketAccount, false,
		func(ctx context.Context, tx ports.Tx) error {
			var err error
			added, err = s.txAddHDNextIndexedAccount(tx, walletID, false)
			if err != nil {
				return err
			}
			s.afterCommit(tx, domain.Event{
				Name: domain.EventAccountUpdate, WalletID: walletID,
				AccountIDs: indexedAccountIDs(added),
			})
			return nil
		},
	); err != nil {
		return nil, err
	}
	return &added[0], nil
}

// txAddHDNextIndexedAccount probes for a free index starting from the
// stored one, at most domain.MaxHDIndexProbes times, and persists the next
// index after the allocated one. onlyAddFirst allocates index 0.
func (s *Service) txAddHDNextIndexedAccount(
	tx ports.Tx, walletID string, onlyAddFirst bool,
) ([]domain.IndexedAccount, error) {
	wallet, err := records.Get[domain.Wallet](tx, domain.StoreWallet, walletID)
	if err != nil {
		return nil, err
	}
	if !wallet.Type.HasIndexedAccounts() {
		return nil, domain.NewGenericLocalError(
			"wallet %s of type %s has no indexed accounts", walletID, wallet.Type,
		)
	}

	nextIndex := 0
	if !onlyAddFirst {
		nextIndex, err = txFindFreeHDIndex(tx, walletID, wallet.NextIDs.AccountHdIndex)
		if err != nil {
			return nil, err
		}
	}

	added, err := s.txAddIndexedAccounts(tx, *wallet, []int{nextIndex}, nil, true)
	if err != nil {
		return nil, err
	}
	if err := txUpdateWallet(tx, walletID, func(w *domain.Wallet) error {
		if w.NextIDs.AccountHdIndex < nextIndex+1 {
			w.NextIDs.AccountHdIndex = nextIndex + 1
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return added, nil
}

func txFindFreeHDIndex(tx ports.Tx, walletID string, from int) (int, error) {
	if from < 0 {
		from = 0
	}
	for probe := 0; probe < domain.MaxHDIndexProbes; probe++ {
		index := from + probe
		id, err := domain.BuildIndexedAccountID(walletID, index)
		if err != nil {
			return 0, err
		}
		exists, err := tx.Exists(domain.StoreIndexedAccount, id)
		if err != nil {
			return 0, domain.WrapGenericLocalError(err, "probe indexed account %s", id)
		}
		if !exists {
			return index, nil
		}
	}
	return 0, domain.NewGenericLocalError(
		"no free hd index for wallet %s in %d probes from index %d",
		walletID, domain.MaxHDIndexProbes, from,
	)
}

// txAddIndexedAccounts writes the indexed accounts with their sync items.
// It returns the records stored at the requested indexes.
func (s *Service) txAddIndexedAccounts(
	tx ports.Tx, wallet domain.Wallet, indexes []int, names map[int]string, skipIfExists bool,
) ([]domain.IndexedAccount, error) {
	if !wallet.Type.HasIndexedAccounts() {
		return nil, domain.NewGenericLocalError(
			"wallet %s of type %s has no indexed accounts", wallet.ID, wallet.Type,
		)
	}
	device, err := txWalletDevice(tx, wallet)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(indexes))
	toAdd := make([]domain.IndexedAccount, 0, len(indexes))
	for _, index := range indexes {
		ia, err := domain.NewIndexedAccount(wallet, index, names[index])
		if err != nil {
			return nil, err
		}
		ids = append(ids, ia.ID)
		exists, err := tx.Exists(domain.StoreIndexedAccount, ia.ID)
		if err != nil {
			return nil, domain.WrapGenericLocalError(err, "check indexed account %s", ia.ID)
		}
		if exists && skipIfExists {
			continue
		}
		toAdd = append(toAdd, *ia)
	}

	targets := make([]cloudsync.IndexedAccountTarget, 0, len(toAdd))
	for _, ia := range toAdd {
		targets = append(targets, cloudsync.IndexedAccountTarget{
			IndexedAccount: ia, Wallet: wallet, Device: device,
		})
	}
	info, err := s.sync.IndexedAccounts.BuildExistingSyncItemsInfo(tx, targets,
		cloudsync.ExistingSyncItemsOpts[cloudsync.IndexedAccountTarget, cloudsync.IndexedAccountPayload]{
			OnExisting: func(existing map[string]cloudsync.ExistingSyncItem[cloudsync.IndexedAccountPayload]) error {
				for i := range toAdd {
					item, ok := existing[toAdd[i].ID]
					if ok && item.Payload != nil && item.Payload.Name != "" {
						toAdd[i].Name = item.Payload.Name
					}
				}
				return nil
			},
			UseGenesisTime: func(t cloudsync.IndexedAccountTarget) bool {
				return t.IndexedAccount.Name ==
					domain.BuildDefaultIndexedAccountName(t.IndexedAccount.Index)
			},
		},
	)
	if err != nil {
		return nil, err
	}

	if err := s.sync.IndexedAccounts.TxWithSyncFlowOfRecordCreating(tx,
		cloudsync.TxSyncFlowParams[cloudsync.IndexedAccountPayload]{
			Info: info,
			RunDbTxFn: func() error {
				_, err := records.Add(tx, domain.StoreIndexedAccount, toAdd, skipIfExists)
				return err
			},
		},
	); err != nil {
		return nil, err
	}

	stored, err := records.GetByIDs[domain.IndexedAccount](tx, domain.StoreIndexedAccount, ids)
	if err != nil {
		return nil, err
	}
	list := make([]domain.IndexedAccount, 0, len(stored))
	for _, ia := range stored {
		if ia != nil {
			list = append(list, *ia)
		}
	}
	return list, nil
}

// GetIndexedAccountsOfWallet returns the indexed accounts sorted by order.
func (s *Service) GetIndexedAccountsOfWallet(
	ctx context.Context, walletID string,
) ([]domain.IndexedAccount, error) {
	all, err := s.getAllIndexedAccounts(ctx)
	if err != nil {
		return nil, err
	}
	list := make([]domain.IndexedAccount, 0)
	for _, ia := range all {
		if ia.WalletID == walletID {
			list = append(list, ia)
		}
	}
	domain.SortIndexedAccounts(list)
	return list, nil
}

// GetIndexedAccount ...
func (s *Service) GetIndexedAccount(ctx context.Context, id string) (*domain.IndexedAccount, error) {
	all, err := s.getAllIndexedAccounts(ctx)
	if err != nil {
		return nil, err
	}
	for _, ia := range all {
		if ia.ID == id {
			found := ia
			return &found, nil
		}
	}
	return nil, domain.NewRecordNotFoundError(domain.StoreIndexedAccount, id)
}

// GetIndexedAccountByHash returns the indexed account matching the cross
// device id hash.
func (s *Service) GetIndexedAccountByHash(
	ctx context.Context, idHash string,
) (*domain.IndexedAccount, error) {
	all, err := s.getAllIndexedAccounts(ctx)
	if err != nil {
		return nil, err
	}
	for _, ia := range all {
		if ia.IDHash == idHash {
			found := ia
			return &found, nil
		}
	}
	return nil, domain.NewRecordNotFoundError(domain.StoreIndexedAccount, idHash)
}

// UpdateIndexedAccountOrder persists the order override.
func (s *Service) UpdateIndexedAccountOrder(ctx context.Context, id string, order float64) error {
	return s.db.RunTransaction(ctx, domain.BucketAccount, false,
		func(ctx context.Context, tx ports.Tx) error {
			if err := records.Update(tx, domain.StoreIndexedAccount, []string{id},
				func(ia *domain.IndexedAccount) error {
					ia.OrderSaved = &order
					return nil
				},
			); err != nil {
				return err
			}
			s.afterCommit(tx, domain.Event{
				Name: domain.EventAccountUpdate, WalletID: domain.WalletIDFromAccountID(id),
				AccountIDs: []string{id},
			})
			return nil
		},
	)
}

// RemoveIndexedAccount deletes the indexed account with its derived
// accounts.
func (s *Service) RemoveIndexedAccount(ctx context.Context, id string) error {
	return s.db.RunTransaction(ctx, domain.BucketAccount, false,
		func(ctx context.Context, tx ports.Tx) error {
			ia, err := records.Get[domain.IndexedAccount](tx, domain.StoreIndexedAccount, id)
			if err != nil {
				return err
			}
			wallet, err := records.Get[domain.Wallet](tx, domain.StoreWallet, ia.WalletID)
			if err != nil {
				return err
			}
			device, err := txWalletDevice(tx, *wallet)
			if err != nil {
				return err
			}
			syncKey, syncKeyErr := s.sync.IndexedAccounts.BuildSyncKey(cloudsync.IndexedAccountTarget{
				IndexedAccount: *ia, Wallet: *wallet, Device: device,
			})

			if err := records.RemovePairs(tx, domain.StoreIndexedAccount,
				[]domain.RecordPair[domain.IndexedAccount]{domain.NewRecordPair(ia)}, false,
			); err != nil {
				return err
			}
			accounts, err := records.GetAll[domain.Account](tx, domain.StoreAccount)
			if err != nil {
				return err
			}
			accountIDs := make([]string, 0)
			for _, a := range accounts {
				if a.IndexedAccountID == id {
					accountIDs = append(accountIDs, a.ID)
				}
			}
			if err := records.Remove(tx, domain.StoreAccount, accountIDs, true); err != nil {
				return err
			}
			if err := removeSyncItemSafe(tx, syncKey, syncKeyErr); err != nil {
				return err
			}
			s.afterCommit(tx, domain.Event{
				Name: domain.EventAccountRemove, WalletID: wallet.ID,
				AccountIDs: append([]string{id}, accountIDs...),
			})
			return nil
		},
	)
}

func indexedAccountIDs(list []domain.IndexedAccount) []string {
	ids := make([]string, 0, len(list))
	for _, ia := range list {
		ids = append(ids, ia.ID)
	}
	return ids
}
