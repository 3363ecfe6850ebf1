package hierarchy

import (
	"github.com/tdex-network/walletdb/internal/core/application/cloudsync"
	"github.com/tdex-network/walletdb/internal/core/domain"
	"github.com/tdex-network/walletdb/internal/core/ports"
	"github.com/tdex-network/walletdb/internal/storageutil/records"
)

// Server deletions are not applied to the local records: removing a wallet
// or an account on one device leaves it on the others.

// TxApplyWalletScene renames the local wallet matching the payload.
func (s *Service) TxApplyWalletScene(
	tx ports.Tx, payload cloudsync.WalletPayload, isDeleted bool,
) error {
	if isDeleted {
		return nil
	}
	wallet, err := txFindWalletByPayload(tx, payload)
	if err != nil || wallet == nil {
		return err
	}
	if payload.Name != "" {
		wallet.Name = payload.Name
	}
	if payload.Avatar != nil {
		wallet.Avatar = domain.EncodeAvatar(payload.Avatar)
	}
	if err := records.Upsert(tx, domain.StoreWallet, wallet); err != nil {
		return err
	}
	s.afterCommit(tx,
		domain.Event{Name: domain.EventWalletRename, WalletID: wallet.ID},
		domain.Event{Name: domain.EventWalletUpdate, WalletID: wallet.ID},
	)
	return nil
}

// TxApplyIndexedAccountScene renames the indexed account of the payload, or
// creates it if its wallet is known locally.
func (s *Service) TxApplyIndexedAccountScene(
	tx ports.Tx, payload cloudsync.IndexedAccountPayload, isDeleted bool,
) error {
	if isDeleted {
		return nil
	}
	wallet, err := txFindWalletByPayload(tx, payload.Wallet)
	if err != nil || wallet == nil {
		return err
	}
	ia, err := domain.NewIndexedAccount(*wallet, payload.Index, payload.Name)
	if err != nil {
		return err
	}
	stored, err := records.GetSafe[domain.IndexedAccount](tx, domain.StoreIndexedAccount, ia.ID)
	if err != nil {
		return err
	}
	if stored != nil {
		if payload.Name == "" {
			return nil
		}
		stored.Name = payload.Name
		ia = stored
	}
	if err := records.Upsert(tx, domain.StoreIndexedAccount, ia); err != nil {
		return err
	}
	s.afterCommit(tx,
		domain.Event{Name: domain.EventRenameAccounts, WalletID: wallet.ID, AccountIDs: []string{ia.ID}},
		domain.Event{Name: domain.EventAccountUpdate, WalletID: wallet.ID, AccountIDs: []string{ia.ID}},
	)
	return nil
}

// TxApplyAccountScene renames the local account of the payload.
func (s *Service) TxApplyAccountScene(
	tx ports.Tx, payload cloudsync.AccountPayload, isDeleted bool,
) error {
	if isDeleted || payload.Name == "" {
		return nil
	}
	account, err := records.GetSafe[domain.Account](tx, domain.StoreAccount, payload.AccountID)
	if err != nil || account == nil {
		return err
	}
	account.Name = payload.Name
	if err := records.Upsert(tx, domain.StoreAccount, account); err != nil {
		return err
	}
	s.afterCommit(tx, domain.Event{
		Name: domain.EventRenameAccounts, WalletID: payload.WalletID, AccountIDs: []string{account.ID},
	})
	return nil
}

// txFindWalletByPayload matches HD wallets by mnemonic hash, hardware
// wallets by raw device id and passphrase state, air-gapped ones by raw
// device id and fingerprint. Mocked wallets never match.
func txFindWalletByPayload(tx ports.Tx, payload cloudsync.WalletPayload) (*domain.Wallet, error) {
	wallets, err := records.GetAll[domain.Wallet](tx, domain.StoreWallet)
	if err != nil {
		return nil, err
	}

	if payload.WalletType == domain.WalletTypeHD {
		if payload.HDWalletHash == "" {
			return nil, nil
		}
		for i := range wallets {
			w := wallets[i]
			if w.Type == domain.WalletTypeHD && w.Hash == payload.HDWalletHash {
				return &w, nil
			}
		}
		return nil, nil
	}
	if !payload.WalletType.IsHardware() || payload.RawDeviceID == "" {
		return nil, nil
	}

	devices, err := records.GetAll[domain.Device](tx, domain.StoreDevice)
	if err != nil {
		return nil, err
	}
	deviceIDs := make(map[string]struct{})
	for _, d := range devices {
		if d.DeviceID == payload.RawDeviceID {
			deviceIDs[d.ID] = struct{}{}
		}
	}
	for i := range wallets {
		w := wallets[i]
		if w.Type != payload.WalletType || w.IsMocked {
			continue
		}
		if _, ok := deviceIDs[w.AssociatedDevice]; !ok {
			continue
		}
		switch w.Type {
		case domain.WalletTypeHW:
			if w.PassphraseState == payload.PassphraseState {
				return &w, nil
			}
		case domain.WalletTypeQR:
			if w.Xfp == payload.Xfp {
				return &w, nil
			}
		}
	}
	return nil, nil
}
