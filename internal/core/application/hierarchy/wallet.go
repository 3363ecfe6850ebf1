package hierarchy

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/walletdb/internal/core/application/cloudsync"
	"github.com/tdex-network/walletdb/internal/core/domain"
	"github.com/tdex-network/walletdb/internal/core/ports"
	"github.com/tdex-network/walletdb/internal/storageutil/records"
)

// GetWallets lists the wallets sorted by effective order.
func (s *Service) GetWallets(ctx context.Context, opts GetWalletsOpts) ([]domain.Wallet, error) {
	cached, err := s.getAllWallets(ctx)
	if err != nil {
		return nil, err
	}
	all := copyWallets(cached)
	domain.RefillWalletInfo(all)

	wallets := make([]domain.Wallet, 0, len(all))
	for _, w := range all {
		if w.IsTemp && !opts.IncludeAllPassphraseWallets && !s.temp.isShown(w.ID) {
			continue
		}
		if opts.IgnoreNonBackedUpWallets && w.Type == domain.WalletTypeHD && !w.Backuped {
			continue
		}
		if opts.IgnoreEmptySingletonWalletAccounts && w.Type.IsSingleton() && len(w.Accounts) <= 0 {
			continue
		}
		wallets = append(wallets, w)
	}

	if opts.IncludingAccounts {
		if err := s.fillWalletAccounts(ctx, wallets); err != nil {
			return nil, err
		}
	}

	if !opts.NestedHiddenWallets {
		domain.SortWallets(wallets)
		return wallets, nil
	}

	hiddenByParent := make(map[string][]domain.Wallet)
	topLevel := make([]domain.Wallet, 0, len(wallets))
	for _, w := range wallets {
		if w.IsHidden() {
			parentID := w.ParentWalletID()
			hiddenByParent[parentID] = append(hiddenByParent[parentID], w)
			continue
		}
		topLevel = append(topLevel, w)
	}
	for i := range topLevel {
		parent := &topLevel[i]
		hidden := hiddenByParent[parent.ID]
		if len(hidden) <= 0 {
			continue
		}
		filtered := make([]domain.Wallet, 0, len(hidden))
		for _, h := range hidden {
			if strings.HasPrefix(h.ID, parent.ID) && h.AssociatedDevice == parent.AssociatedDevice {
				filtered = append(filtered, h)
			}
		}
		domain.SortWallets(filtered)
		parent.HiddenWallets = filtered
	}
	domain.SortWallets(topLevel)
	return topLevel, nil
}

func (s *Service) fillWalletAccounts(ctx context.Context, wallets []domain.Wallet) error {
	indexedAccounts, err := s.getAllIndexedAccounts(ctx)
	if err != nil {
		return err
	}
	accounts, err := s.getAllAccounts(ctx)
	if err != nil {
		return err
	}
	for i := range wallets {
		w := &wallets[i]
		if w.Type.HasIndexedAccounts() {
			list := make([]domain.IndexedAccount, 0)
			for _, ia := range indexedAccounts {
				if ia.WalletID == w.ID {
					list = append(list, ia)
				}
			}
			domain.SortIndexedAccounts(list)
			w.DBIndexedAccounts = list
			continue
		}
		owned := make(map[string]struct{}, len(w.Accounts))
		for _, id := range w.Accounts {
			owned[id] = struct{}{}
		}
		list := make([]domain.Account, 0, len(w.Accounts))
		for _, a := range accounts {
			if _, ok := owned[a.ID]; ok {
				list = append(list, a)
			}
		}
		w.DBAccounts = list
	}
	return nil
}

// GetWallet returns the wallet with its derived fields, or a RecordNotFound
// error.
func (s *Service) GetWallet(ctx context.Context, walletID string) (*domain.Wallet, error) {
	wallets, err := s.getAllWallets(ctx)
	if err != nil {
		return nil, err
	}
	all := copyWallets(wallets)
	domain.RefillWalletInfo(all)
	for _, w := range all {
		if w.ID == walletID {
			return &w, nil
		}
	}
	walletType := domain.WalletTypeFromID(walletID)
	if walletType.IsSingleton() && walletID == string(walletType) {
		w := domain.NewSingletonWallet(walletType)
		w.WalletOrder = w.OwnOrder()
		return w, nil
	}
	return nil, domain.NewRecordNotFoundError(domain.StoreWallet, walletID)
}

// GetWalletSafe returns nil instead of an error.
func (s *Service) GetWalletSafe(ctx context.Context, walletID string) *domain.Wallet {
	w, err := s.GetWallet(ctx, walletID)
	if err != nil {
		return nil
	}
	return w
}

// GetParentWalletOfHiddenWallet returns the standard wallet of the device
// owning the hidden wallets of the given type.
func (s *Service) GetParentWalletOfHiddenWallet(
	ctx context.Context, dbDeviceID string, isQr bool,
) (*domain.Wallet, error) {
	walletType := domain.WalletTypeHW
	if isQr {
		walletType = domain.WalletTypeQR
	}
	wallets, err := s.getAllWallets(ctx)
	if err != nil {
		return nil, err
	}
	for _, w := range wallets {
		if w.Type == walletType && w.AssociatedDevice == dbDeviceID && !w.IsHidden() {
			parent := w
			return &parent, nil
		}
	}
	return nil, domain.NewRecordNotFoundError(
		domain.StoreWallet, domain.BuildParentWalletID(walletType, dbDeviceID),
	)
}

// GetWalletsByDevice returns the wallets associated to the device.
func (s *Service) GetWalletsByDevice(ctx context.Context, dbDeviceID string) ([]domain.Wallet, error) {
	wallets, err := s.getAllWallets(ctx)
	if err != nil {
		return nil, err
	}
	list := make([]domain.Wallet, 0)
	for _, w := range wallets {
		if w.AssociatedDevice == dbDeviceID {
			list = append(list, w)
		}
	}
	domain.RefillWalletInfo(list)
	domain.SortWallets(list)
	return list, nil
}

// IsTempWalletRemoved returns whether a temp wallet is no longer shown.
func (s *Service) IsTempWalletRemoved(wallet domain.Wallet) bool {
	return wallet.IsTemp && !s.temp.isShown(wallet.ID)
}

// SetWalletTempStatus moves the wallet in or out of the temp state. A wallet
// set temp stays visible until the session ends unless hideImmediately.
func (s *Service) SetWalletTempStatus(
	ctx context.Context, walletID string, isTemp, hideImmediately bool,
) error {
	return s.db.RunTransaction(ctx, domain.BucketAccount, false,
		func(ctx context.Context, tx ports.Tx) error {
			if err := txUpdateWallet(tx, walletID, func(w *domain.Wallet) error {
				w.IsTemp = isTemp
				return nil
			}); err != nil {
				return err
			}
			tx.OnCommit(func() {
				if hideImmediately {
					s.temp.hide(walletID)
				} else {
					s.temp.show(walletID)
				}
			})
			s.afterCommit(tx, domain.Event{Name: domain.EventWalletUpdate, WalletID: walletID})
			return nil
		},
	)
}

// RestoreTempCreatedWallet makes a temp wallet persistent.
func (s *Service) RestoreTempCreatedWallet(ctx context.Context, walletID string) error {
	return s.db.RunTransaction(ctx, domain.BucketAccount, false,
		func(ctx context.Context, tx ports.Tx) error {
			if err := txUpdateWallet(tx, walletID, func(w *domain.Wallet) error {
				w.IsTemp = false
				return nil
			}); err != nil {
				return err
			}
			s.afterCommit(tx, domain.Event{Name: domain.EventWalletUpdate, WalletID: walletID})
			return nil
		},
	)
}

// ClearTempWallets ends the session: every temp wallet stops being shown.
func (s *Service) ClearTempWallets() {
	s.temp.reset()
	s.cache.Invalidate(domain.StoreWallet)
}

// SetWalletNameAndAvatar renames the wallet and updates its sync item.
func (s *Service) SetWalletNameAndAvatar(
	ctx context.Context, params SetWalletNameAndAvatarParams,
) (*domain.Wallet, error) {
	if err := s.db.RunTransaction(ctx, domain.BucketAccount, false,
		func(ctx context.Context, tx ports.Tx) error {
			wallet, err := txGetWallet(tx, params.WalletID)
			if err != nil {
				return err
			}
			if params.ShouldCheckDuplicate && params.Name != "" {
				if err := txEnsureWalletNameNotDuplicate(tx, *wallet, params.Name); err != nil {
					return err
				}
			}
			if params.Name != "" {
				wallet.Name = params.Name
			}
			if params.Avatar != nil {
				wallet.Avatar = domain.EncodeAvatar(params.Avatar)
			}
			if err := records.Upsert(tx, domain.StoreWallet, wallet); err != nil {
				return err
			}
			if !params.SkipSaveLocalSyncItem {
				target, err := txWalletSyncTarget(tx, *wallet)
				if err != nil {
					return err
				}
				if err := s.sync.Wallets.TxUpsertSyncItems(
					tx, []cloudsync.WalletTarget{target}, false,
				); err != nil {
					return err
				}
			}
			s.afterCommit(tx,
				domain.Event{Name: domain.EventWalletRename, WalletID: wallet.ID},
				domain.Event{Name: domain.EventWalletUpdate, WalletID: wallet.ID},
			)
			return nil
		},
	); err != nil {
		return nil, err
	}
	return s.GetWallet(ctx, params.WalletID)
}

// txEnsureWalletNameNotDuplicate matches the name against the other non temp
// wallets. Hidden wallets only collide with the wallets of their device.
func txEnsureWalletNameNotDuplicate(tx ports.Tx, wallet domain.Wallet, name string) error {
	wallets, err := records.GetAll[domain.Wallet](tx, domain.StoreWallet)
	if err != nil {
		return err
	}
	for _, w := range wallets {
		if w.Type.IsSingleton() || w.ID == wallet.ID || w.IsTemp || w.Name != name {
			continue
		}
		if wallet.IsHidden() &&
			(w.AssociatedDevice != wallet.AssociatedDevice || w.Type != wallet.Type) {
			continue
		}
		return domain.NewDuplicateNameError(name)
	}
	return nil
}

// SetWalletBackuped ...
func (s *Service) SetWalletBackuped(ctx context.Context, walletID string, backuped bool) error {
	return s.updateWallet(ctx, walletID, func(w *domain.Wallet) error {
		w.Backuped = backuped
		return nil
	})
}

// SetWalletDeprecated ...
func (s *Service) SetWalletDeprecated(ctx context.Context, walletID string, deprecated bool) error {
	return s.updateWallet(ctx, walletID, func(w *domain.Wallet) error {
		w.Deprecated = deprecated
		return nil
	})
}

// UpdateWalletOrder persists the order override of the wallet.
func (s *Service) UpdateWalletOrder(ctx context.Context, walletID string, order float64) error {
	return s.updateWallet(ctx, walletID, func(w *domain.Wallet) error {
		w.WalletOrderSaved = &order
		return nil
	})
}

func (s *Service) updateWallet(
	ctx context.Context, walletID string, fn func(w *domain.Wallet) error,
) error {
	return s.db.RunTransaction(ctx, domain.BucketAccount, false,
		func(ctx context.Context, tx ports.Tx) error {
			if err := txUpdateWallet(tx, walletID, fn); err != nil {
				return err
			}
			s.afterCommit(tx, domain.Event{Name: domain.EventWalletUpdate, WalletID: walletID})
			return nil
		},
	)
}

// RemoveWallet deletes the wallet with its indexed accounts and accounts.
// A standard hardware wallet takes its hidden wallets along, and its device
// when no other standard wallet uses it. With IsRemoveToMocked it is kept
// as a mocked wallet instead.
func (s *Service) RemoveWallet(ctx context.Context, params RemoveWalletParams) error {
	walletID := params.WalletID
	if domain.WalletTypeFromID(walletID).IsSingleton() {
		return domain.NewGenericLocalError("singleton wallet %s can not be removed", walletID)
	}

	if err := s.db.RunTransaction(ctx, domain.BucketAccount, false,
		func(ctx context.Context, tx ports.Tx) error {
			wallet, err := records.Get[domain.Wallet](tx, domain.StoreWallet, walletID)
			if err != nil {
				return err
			}
			target, err := txWalletSyncTarget(tx, *wallet)
			if err != nil {
				return err
			}
			syncKey, syncKeyErr := s.sync.Wallets.BuildSyncKey(target)
			syncKeys := []string{}
			if syncKeyErr == nil {
				syncKeys = append(syncKeys, syncKey)
			} else {
				log.WithError(syncKeyErr).Debug("wallet has no sync item")
			}

			allWallets, err := records.GetAll[domain.Wallet](tx, domain.StoreWallet)
			if err != nil {
				return err
			}

			removedWalletIDs := []string{walletID}
			isHardware := wallet.Type.IsHardware()
			keepAsMocked := isHardware && !wallet.IsHidden() && params.IsRemoveToMocked
			if isHardware {
				if !params.IsRemoveToMocked && wallet.AssociatedDevice != "" && !wallet.IsHidden() {
					sameDevice := make([]domain.Wallet, 0)
					for _, w := range allWallets {
						if w.AssociatedDevice == wallet.AssociatedDevice && !w.IsHidden() {
							sameDevice = append(sameDevice, w)
						}
					}
					// Hidden wallet sync keys depend on the device record.
					for _, w := range allWallets {
						if w.IsHidden() && strings.HasPrefix(w.ID, walletID) &&
							w.AssociatedDevice == wallet.AssociatedDevice {
							removedWalletIDs = append(removedWalletIDs, w.ID)
							hiddenTarget, err := txWalletSyncTarget(tx, w)
							if err != nil {
								return err
							}
							key, err := s.sync.Wallets.BuildSyncKey(hiddenTarget)
							if err != nil {
								log.WithError(err).WithField("wallet", w.ID).
									Debug("wallet has no sync item")
								continue
							}
							syncKeys = append(syncKeys, key)
						}
					}
					if len(sameDevice) == 1 && sameDevice[0].ID == walletID {
						if err := records.Remove(
							tx, domain.StoreDevice, []string{wallet.AssociatedDevice}, true,
						); err != nil {
							return err
						}
					}
				}
			} else {
				if err := s.vault.TxRemoveCredential(tx, walletID); err != nil {
					return err
				}
			}

			walletsToRemove := removedWalletIDs
			if keepAsMocked {
				if err := txUpdateWallet(tx, walletID, func(w *domain.Wallet) error {
					w.IsMocked = true
					return nil
				}); err != nil {
					return err
				}
				walletsToRemove = removedWalletIDs[1:]
			}
			if err := records.Remove(tx, domain.StoreWallet, walletsToRemove, true); err != nil {
				return err
			}
			if err := txRemoveWalletAccounts(tx, removedWalletIDs); err != nil {
				return err
			}
			if err := records.Remove(tx, domain.StoreCloudSyncItem, syncKeys, true); err != nil {
				return err
			}

			tx.OnCommit(func() {
				for _, id := range removedWalletIDs {
					s.temp.hide(id)
				}
			})
			s.afterCommit(tx, domain.Event{Name: domain.EventWalletRemove, WalletID: walletID})
			return nil
		},
	); err != nil {
		return err
	}

	log.WithField("wallet", walletID).Debug("wallet removed")
	return nil
}

// txRemoveWalletAccounts drops the indexed accounts and the accounts of the
// wallets.
func txRemoveWalletAccounts(tx ports.Tx, walletIDs []string) error {
	owned := make(map[string]struct{}, len(walletIDs))
	for _, id := range walletIDs {
		owned[id] = struct{}{}
	}
	indexedAccounts, err := records.GetAll[domain.IndexedAccount](tx, domain.StoreIndexedAccount)
	if err != nil {
		return err
	}
	pairs := make([]domain.RecordPair[domain.IndexedAccount], 0)
	for i := range indexedAccounts {
		if _, ok := owned[indexedAccounts[i].WalletID]; ok {
			pairs = append(pairs, domain.NewRecordPair(&indexedAccounts[i]))
		}
	}
	if err := records.RemovePairs(tx, domain.StoreIndexedAccount, pairs, true); err != nil {
		return err
	}

	accounts, err := records.GetAll[domain.Account](tx, domain.StoreAccount)
	if err != nil {
		return err
	}
	accountIDs := make([]string, 0)
	for _, a := range accounts {
		if _, ok := owned[a.WalletID()]; ok {
			accountIDs = append(accountIDs, a.ID)
		}
	}
	return records.Remove(tx, domain.StoreAccount, accountIDs, true)
}

func copyWallets(wallets []domain.Wallet) []domain.Wallet {
	return append([]domain.Wallet{}, wallets...)
}
