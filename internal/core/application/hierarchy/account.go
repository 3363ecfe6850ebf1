package hierarchy

import (
	"context"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/walletdb/internal/core/application/cloudsync"
	"github.com/tdex-network/walletdb/internal/core/domain"
	"github.com/tdex-network/walletdb/internal/core/ports"
	"github.com/tdex-network/walletdb/internal/storageutil/records"
)

// AddAccountsToWallet stores the accounts of the wallet. Accounts already
// stored are overwritten. For singleton wallets the account list is
// recomputed and the account counter bumped by the net number of new
// accounts only.
func (s *Service) AddAccountsToWallet(
	ctx context.Context, params AddAccountsParams,
) (*AddAccountsResult, error) {
	walletID := params.WalletID
	walletType := domain.WalletTypeFromID(walletID)
	if walletType == "" {
		return nil, domain.NewGenericLocalError("unknown type of wallet %s", walletID)
	}
	if len(params.Accounts) <= 0 {
		return &AddAccountsResult{ExistingAccounts: []domain.Account{}}, nil
	}
	accounts := make([]domain.Account, len(params.Accounts))
	copy(accounts, params.Accounts)
	for _, a := range accounts {
		if err := a.Validate(walletType); err != nil {
			return nil, err
		}
		if a.WalletID() != walletID {
			return nil, domain.NewGenericLocalError(
				"account %s does not belong to wallet %s", a.ID, walletID,
			)
		}
	}

	var importedCredential string
	if walletType == domain.WalletTypeImported {
		if len(params.ImportedSecret) <= 0 {
			return nil, domain.NewGenericLocalError("imported credential is required for imported account")
		}
		password, err := s.verifyPassword(ctx, params.Password, "import account")
		if err != nil {
			return nil, err
		}
		if importedCredential, err = s.vault.Encrypt(params.ImportedSecret, password); err != nil {
			return nil, err
		}
	}

	result := &AddAccountsResult{}
	if err := s.db.RunTransaction(ctx, domain.BucketAccount, false,
		func(ctx context.Context, tx ports.Tx) error {
			wallet, err := txGetWallet(tx, walletID)
			if err != nil {
				return err
			}
			nextAccountID := wallet.NextIDs.AccountGlobalNum
			if nextAccountID <= 0 {
				nextAccountID = 1
			}

			ids := make([]string, 0, len(accounts))
			for _, a := range accounts {
				ids = append(ids, a.ID)
			}
			stored, err := records.GetByIDs[domain.Account](tx, domain.StoreAccount, ids)
			if err != nil {
				return err
			}
			existing := make(map[string]domain.Account)
			for _, a := range stored {
				if a != nil {
					existing[a.ID] = *a
				}
			}

			defaultNames := make(map[string]string)
			for i := range accounts {
				a := &accounts[i]
				if a.Name == "" {
					if e, ok := existing[a.ID]; ok {
						a.Name = e.Name
					}
				}
				if a.Name == "" && params.AccountNameBuilder != nil {
					a.Name = params.AccountNameBuilder(nextAccountID)
					defaultNames[a.ID] = a.Name
					nextAccountID++
				}
			}

			targets := make([]cloudsync.AccountTarget, 0, len(accounts))
			for _, a := range accounts {
				targets = append(targets, cloudsync.AccountTarget{Account: a})
			}
			info, err := s.sync.Accounts.BuildExistingSyncItemsInfo(tx, targets,
				cloudsync.ExistingSyncItemsOpts[cloudsync.AccountTarget, cloudsync.AccountPayload]{
					OnExisting: func(items map[string]cloudsync.ExistingSyncItem[cloudsync.AccountPayload]) error {
						for i := range accounts {
							item, ok := items[accounts[i].ID]
							if ok && item.Payload != nil && item.Payload.Name != "" {
								accounts[i].Name = item.Payload.Name
							}
						}
						return nil
					},
					UseGenesisTime: func(t cloudsync.AccountTarget) bool {
						name, ok := defaultNames[t.Account.ID]
						return ok && t.Account.Name == name
					},
				},
			)
			if err != nil {
				return err
			}

			if err := s.sync.Accounts.TxWithSyncFlowOfRecordCreating(tx,
				cloudsync.TxSyncFlowParams[cloudsync.AccountPayload]{
					Info: info,
					RunDbTxFn: func() error {
						if err := txRefreshIndexedAccountIDHash(tx, walletID, accounts[0]); err != nil {
							return err
						}

						removed := len(existing)
						if removed > 0 {
							if err := records.Remove(tx, domain.StoreAccount, ids, true); err != nil {
								return err
							}
						}
						added, err := records.Add(tx, domain.StoreAccount, accounts, true)
						if err != nil {
							return err
						}
						addedIDs := make([]string, 0, len(added.AddedIDs))
						for _, id := range added.AddedIDs {
							if id != domain.URLAccountID {
								addedIDs = append(addedIDs, id)
							}
						}
						urlAccounts := len(added.AddedIDs) - len(addedIDs)
						netAdded := added.Added - removed - urlAccounts
						if netAdded < 0 {
							netAdded = 0
						}

						if netAdded > 0 && walletType.IsSingleton() {
							if err := txUpdateWallet(tx, walletID, func(w *domain.Wallet) error {
								current := w.NextIDs.AccountGlobalNum
								if current <= 0 {
									current = 1
								}
								w.NextIDs.AccountGlobalNum = current + netAdded
								w.Accounts = uniqueIDs(append(w.Accounts, addedIDs...))
								return nil
							}); err != nil {
								return err
							}
						}

						if walletType == domain.WalletTypeImported {
							if len(addedIDs) != 1 {
								return domain.NewGenericLocalError(
									"only one account can be imported at a time",
								)
							}
							if err := s.vault.TxSaveCredential(tx, addedIDs[0], importedCredential); err != nil {
								return err
							}
						}

						result.IsOverrideAccounts = removed > 0 && netAdded == 0
						result.ExistingAccounts = make([]domain.Account, 0, len(existing))
						for _, a := range stored {
							if a != nil {
								result.ExistingAccounts = append(result.ExistingAccounts, *a)
							}
						}
						return nil
					},
				},
			); err != nil {
				return err
			}

			events := []domain.Event{{Name: domain.EventAccountUpdate, WalletID: walletID, AccountIDs: ids}}
			if !params.SkipEventEmit {
				events = append(events, domain.Event{
					Name: domain.EventAddAccountsToWallet, WalletID: walletID, AccountIDs: ids,
				})
			}
			s.afterCommit(tx, events...)
			return nil
		},
	); err != nil {
		return nil, err
	}

	if params.NetworkID != "" && s.indexer != nil {
		for _, a := range accounts {
			s.indexer.SaveAccountAddresses(params.NetworkID, a)
		}
	}
	return result, nil
}

// txRefreshIndexedAccountIDHash binds the wallet to its first evm address
// once the account at the first evm path is added, and rebuilds the id hash
// of its indexed account.
func txRefreshIndexedAccountIDHash(tx ports.Tx, walletID string, first domain.Account) error {
	if first.PathIndex == nil || *first.PathIndex != 0 || first.Address == "" ||
		first.CoinType != domain.CoinTypeETH || first.IndexedAccountID == "" ||
		first.Path != domain.FirstEVMAddressPath {
		return nil
	}
	firstEvmAddress := strings.ToLower(first.Address)
	if err := txUpdateWallet(tx, walletID, func(w *domain.Wallet) error {
		w.FirstEvmAddress = firstEvmAddress
		return nil
	}); err != nil {
		return err
	}
	return records.Update(tx, domain.StoreIndexedAccount, []string{first.IndexedAccountID},
		func(ia *domain.IndexedAccount) error {
			ia.IDHash = domain.BuildIndexedAccountIDHash(firstEvmAddress, *first.PathIndex, ia.ID)
			return nil
		},
	)
}

// RemoveAccount deletes the account, its imported credential and its local
// sync item.
func (s *Service) RemoveAccount(ctx context.Context, accountID string) error {
	walletID := domain.WalletIDFromAccountID(accountID)
	return s.db.RunTransaction(ctx, domain.BucketAccount, false,
		func(ctx context.Context, tx ports.Tx) error {
			account, err := records.Get[domain.Account](tx, domain.StoreAccount, accountID)
			if err != nil {
				return err
			}
			syncKey, syncKeyErr := s.sync.Accounts.BuildSyncKey(cloudsync.AccountTarget{Account: *account})

			if err := records.Remove(tx, domain.StoreAccount, []string{accountID}, false); err != nil {
				return err
			}
			if domain.WalletTypeFromID(walletID).IsSingleton() {
				if err := txUpdateWallet(tx, walletID, func(w *domain.Wallet) error {
					w.Accounts = removeIDs(w.Accounts, accountID)
					return nil
				}); err != nil {
					return err
				}
			}
			if walletID == string(domain.WalletTypeImported) {
				if err := s.vault.TxRemoveCredential(tx, accountID); err != nil {
					return err
				}
			}
			if err := removeSyncItemSafe(tx, syncKey, syncKeyErr); err != nil {
				return err
			}
			s.afterCommit(tx, domain.Event{
				Name: domain.EventAccountRemove, WalletID: walletID, AccountIDs: []string{accountID},
			})
			return nil
		},
	)
}

// RemoveAccountsByIDs deletes the accounts, ignoring the missing ones, and
// drops them from the account list of their wallets.
func (s *Service) RemoveAccountsByIDs(ctx context.Context, ids []string) error {
	byWallet := make(map[string][]string)
	for _, id := range ids {
		walletID := domain.WalletIDFromAccountID(id)
		byWallet[walletID] = append(byWallet[walletID], id)
	}
	return s.db.RunTransaction(ctx, domain.BucketAccount, false,
		func(ctx context.Context, tx ports.Tx) error {
			if err := records.Remove(tx, domain.StoreAccount, ids, true); err != nil {
				return err
			}
			events := make([]domain.Event, 0, len(byWallet))
			for walletID, accountIDs := range byWallet {
				if domain.WalletTypeFromID(walletID).IsSingleton() {
					ok, err := tx.Exists(domain.StoreWallet, walletID)
					if err != nil {
						return domain.WrapGenericLocalError(err, "check wallet %s", walletID)
					}
					if ok {
						if err := txUpdateWallet(tx, walletID, func(w *domain.Wallet) error {
							w.Accounts = removeIDs(w.Accounts, accountIDs...)
							return nil
						}); err != nil {
							return err
						}
					}
				}
				events = append(events, domain.Event{
					Name: domain.EventAccountRemove, WalletID: walletID, AccountIDs: accountIDs,
				})
			}
			s.afterCommit(tx, events...)
			return nil
		},
	)
}

// EnsureAccountNameNotDuplicate fails with a DuplicateName error if a
// sibling of the account or indexed account already has the name.
func (s *Service) EnsureAccountNameNotDuplicate(
	ctx context.Context, walletID, name, selfID string,
) error {
	return s.db.RunTransaction(ctx, domain.BucketAccount, true,
		func(ctx context.Context, tx ports.Tx) error {
			return txEnsureAccountNameNotDuplicate(tx, walletID, name, selfID)
		},
	)
}

// txEnsureAccountNameNotDuplicate reads through tx so that the check and the
// rename it guards commit together.
func txEnsureAccountNameNotDuplicate(tx ports.Tx, walletID, name, selfID string) error {
	accounts, err := records.GetAll[domain.Account](tx, domain.StoreAccount)
	if err != nil {
		return err
	}

	if domain.WalletTypeFromID(walletID).IsSingleton() {
		wallet, err := txGetWallet(tx, walletID)
		if err != nil {
			return err
		}
		members := make(map[string]struct{}, len(wallet.Accounts))
		for _, id := range wallet.Accounts {
			members[id] = struct{}{}
		}
		for _, a := range accounts {
			if _, ok := members[a.ID]; ok && a.Name == name && a.ID != selfID {
				return domain.NewDuplicateNameError(name)
			}
		}
		return nil
	}

	indexedAccounts, err := records.GetAll[domain.IndexedAccount](tx, domain.StoreIndexedAccount)
	if err != nil {
		return err
	}
	for _, ia := range indexedAccounts {
		if ia.WalletID == walletID && ia.Name == name && ia.ID != selfID {
			return domain.NewDuplicateNameError(name)
		}
	}
	for _, a := range accounts {
		if a.WalletID() == walletID && a.Name == name && a.ID != selfID {
			return domain.NewDuplicateNameError(name)
		}
	}
	return nil
}

// SetAccountName renames a chain account or an indexed account and updates
// its sync item.
func (s *Service) SetAccountName(ctx context.Context, params SetAccountNameParams) error {
	if params.AccountID != "" && params.IndexedAccountID != "" {
		return domain.NewGenericLocalError(
			"account id and indexed account id can not be set at the same time",
		)
	}
	id := params.AccountID
	if params.IndexedAccountID != "" {
		id = params.IndexedAccountID
	}
	if id == "" {
		return domain.NewGenericLocalError("account id or indexed account id is required")
	}
	walletID := domain.WalletIDFromAccountID(id)

	return s.db.RunTransaction(ctx, domain.BucketAccount, false,
		func(ctx context.Context, tx ports.Tx) error {
			if params.Name != "" && params.ShouldCheckDuplicate {
				if err := txEnsureAccountNameNotDuplicate(tx, walletID, params.Name, id); err != nil {
					return err
				}
			}
			renamed := []string{id}
			if params.IndexedAccountID != "" {
				if err := s.txRenameIndexedAccount(
					tx, params.IndexedAccountID, params.Name, !params.SkipSaveLocalSyncItem,
				); err != nil {
					return err
				}
				accounts, err := records.GetAll[domain.Account](tx, domain.StoreAccount)
				if err != nil {
					return err
				}
				for _, a := range accounts {
					if a.IndexedAccountID == params.IndexedAccountID {
						renamed = append(renamed, a.ID)
					}
				}
			} else {
				if err := s.txRenameAccount(
					tx, params.AccountID, params.Name, !params.SkipSaveLocalSyncItem,
				); err != nil {
					return err
				}
			}
			s.afterCommit(tx,
				domain.Event{Name: domain.EventRenameAccounts, WalletID: walletID, AccountIDs: renamed},
				domain.Event{Name: domain.EventAccountUpdate, WalletID: walletID, AccountIDs: renamed},
			)
			return nil
		},
	)
}

func (s *Service) txRenameIndexedAccount(tx ports.Tx, id, name string, saveSyncItem bool) error {
	ia, err := records.Get[domain.IndexedAccount](tx, domain.StoreIndexedAccount, id)
	if err != nil {
		return err
	}
	if name != "" {
		ia.Name = name
	}
	if err := records.Upsert(tx, domain.StoreIndexedAccount, ia); err != nil {
		return err
	}
	if !saveSyncItem {
		return nil
	}
	wallet, err := records.Get[domain.Wallet](tx, domain.StoreWallet, ia.WalletID)
	if err != nil {
		return err
	}
	device, err := txWalletDevice(tx, *wallet)
	if err != nil {
		return err
	}
	return s.sync.IndexedAccounts.TxUpsertSyncItems(tx, []cloudsync.IndexedAccountTarget{{
		IndexedAccount: *ia, Wallet: *wallet, Device: device,
	}}, false)
}

func (s *Service) txRenameAccount(tx ports.Tx, id, name string, saveSyncItem bool) error {
	account, err := records.Get[domain.Account](tx, domain.StoreAccount, id)
	if err != nil {
		return err
	}
	if name != "" {
		account.Name = name
	}
	if err := records.Upsert(tx, domain.StoreAccount, account); err != nil {
		return err
	}
	if !saveSyncItem {
		return nil
	}
	return s.sync.Accounts.TxUpsertSyncItems(
		tx, []cloudsync.AccountTarget{{Account: *account}}, false,
	)
}

// GetAccount ...
func (s *Service) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	accounts, err := s.getAllAccounts(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range accounts {
		if a.ID == accountID {
			found := a
			return &found, nil
		}
	}
	return nil, domain.NewRecordNotFoundError(domain.StoreAccount, accountID)
}

// GetAccountSafe returns nil instead of an error.
func (s *Service) GetAccountSafe(ctx context.Context, accountID string) *domain.Account {
	a, err := s.GetAccount(ctx, accountID)
	if err != nil {
		log.WithError(err).Debug("account not found")
		return nil
	}
	return a
}

// GetAllAccounts ...
func (s *Service) GetAllAccounts(ctx context.Context) ([]domain.Account, error) {
	accounts, err := s.getAllAccounts(ctx)
	if err != nil {
		return nil, err
	}
	return append([]domain.Account{}, accounts...), nil
}

// GetAccountsByIndexedAccount returns the chain accounts derived at the
// indexed account, sorted by path.
func (s *Service) GetAccountsByIndexedAccount(
	ctx context.Context, indexedAccountID string,
) ([]domain.Account, error) {
	accounts, err := s.getAllAccounts(ctx)
	if err != nil {
		return nil, err
	}
	list := make([]domain.Account, 0)
	for _, a := range accounts {
		if a.IndexedAccountID == indexedAccountID {
			list = append(list, a)
		}
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].Path < list[j].Path })
	return list, nil
}

// GetSingletonAccountsOfWallet returns the accounts listed by a singleton
// wallet, sorted by order override then list position.
func (s *Service) GetSingletonAccountsOfWallet(
	ctx context.Context, walletID string,
) ([]domain.Account, error) {
	wallet, err := s.GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if !wallet.Type.IsSingleton() {
		return nil, domain.NewGenericLocalError("wallet %s is not a singleton wallet", walletID)
	}
	accounts, err := s.getAllAccounts(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Account, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}
	list := make([]domain.Account, 0, len(wallet.Accounts))
	position := make(map[string]int, len(wallet.Accounts))
	for i, id := range wallet.Accounts {
		if a, ok := byID[id]; ok {
			position[id] = i
			list = append(list, a)
		}
	}
	order := func(a domain.Account) float64 {
		if a.AccountOrderSaved != nil {
			return *a.AccountOrderSaved
		}
		return float64(position[a.ID])
	}
	sort.SliceStable(list, func(i, j int) bool { return order(list[i]) < order(list[j]) })
	return list, nil
}

// UpdateAccountOrder persists the order override of a singleton account.
func (s *Service) UpdateAccountOrder(ctx context.Context, accountID string, order float64) error {
	return s.db.RunTransaction(ctx, domain.BucketAccount, false,
		func(ctx context.Context, tx ports.Tx) error {
			if err := records.Update(tx, domain.StoreAccount, []string{accountID},
				func(a *domain.Account) error {
					a.AccountOrderSaved = &order
					return nil
				},
			); err != nil {
				return err
			}
			s.afterCommit(tx, domain.Event{
				Name:       domain.EventAccountUpdate,
				WalletID:   domain.WalletIDFromAccountID(accountID),
				AccountIDs: []string{accountID},
			})
			return nil
		},
	)
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	list := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		list = append(list, id)
	}
	return list
}

func removeIDs(ids []string, toRemove ...string) []string {
	drop := make(map[string]struct{}, len(toRemove))
	for _, id := range toRemove {
		drop[id] = struct{}{}
	}
	list := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := drop[id]; !ok {
			list = append(list, id)
		}
	}
	return list
}
