package hierarchy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/walletdb/internal/core/application/cloudsync"
	"github.com/tdex-network/walletdb/internal/core/application/dbcontext"
	"github.com/tdex-network/walletdb/internal/core/domain"
	"github.com/tdex-network/walletdb/internal/core/ports"
	"github.com/tdex-network/walletdb/internal/storageutil/records"
)

const (
	defaultQrDeviceName = "OneKey Pro"
	passphraseStateLen  = 8
)

// CreateHDWallet stores a new HD wallet with its encrypted seed and the
// first indexed account. The password is resolved and the seed encrypted
// before the transaction starts.
func (s *Service) CreateHDWallet(
	ctx context.Context, params CreateHDWalletParams,
) (*CreateWalletResult, error) {
	password, err := s.verifyPassword(ctx, params.Password, "create wallet")
	if err != nil {
		return nil, err
	}
	seed, err := json.Marshal(params.Seed)
	if err != nil {
		return nil, domain.WrapGenericLocalError(err, "encode seed")
	}
	ciphertext, err := s.vault.Encrypt(seed, password)
	if err != nil {
		return nil, err
	}

	result := &CreateWalletResult{}
	if err := s.db.RunTransaction(ctx, domain.BucketAccount, false,
		func(ctx context.Context, tx ports.Tx) error {
			dbCtx, err := dbcontext.Get(tx)
			if err != nil {
				return err
			}
			walletID := domain.BuildHDWalletID(dbCtx.NextHD)
			defaultName := domain.BuildDefaultHDWalletName(dbCtx.NextHD)
			name := params.Name
			if name == "" {
				name = defaultName
			}
			wallet := domain.Wallet{
				ID:              walletID,
				Name:            name,
				Avatar:          domain.EncodeAvatar(params.Avatar),
				Type:            domain.WalletTypeHD,
				Backuped:        params.Backuped,
				Accounts:        []string{},
				NextIDs:         domain.WalletNextIDs{AccountHdIndex: 0},
				Hash:            params.Hash,
				Xfp:             params.Xfp,
				FirstEvmAddress: params.FirstEvmAddress,
				WalletNo:        dbCtx.NextWalletNo,
			}

			info, err := s.sync.Wallets.BuildExistingSyncItemsInfo(
				tx, []cloudsync.WalletTarget{{Wallet: wallet}},
				cloudsync.ExistingSyncItemsOpts[cloudsync.WalletTarget, cloudsync.WalletPayload]{
					OnExisting: func(existing map[string]cloudsync.ExistingSyncItem[cloudsync.WalletPayload]) error {
						adoptWalletPayload(&wallet, existing[walletID].Payload)
						return nil
					},
					UseGenesisTime: func(t cloudsync.WalletTarget) bool {
						return t.Wallet.Name == defaultName
					},
				},
			)
			if err != nil {
				return err
			}

			s.afterCommit(tx, domain.Event{Name: domain.EventWalletUpdate, WalletID: walletID})
			return s.sync.Wallets.TxWithSyncFlowOfRecordCreating(tx,
				cloudsync.TxSyncFlowParams[cloudsync.WalletPayload]{
					Info: info,
					RunDbTxFn: func() error {
						if _, err := records.Add(
							tx, domain.StoreWallet, []domain.Wallet{wallet}, false,
						); err != nil {
							return err
						}
						if err := s.vault.TxSaveCredential(tx, walletID, ciphertext); err != nil {
							return err
						}
						indexedAccounts, err := s.txAddHDNextIndexedAccount(tx, walletID, true)
						if err != nil {
							return err
						}
						if _, err := dbcontext.Update(tx, func(c *domain.Context) error {
							c.NextHD++
							c.NextWalletNo++
							return nil
						}); err != nil {
							return err
						}
						return s.fillCreateWalletResult(tx, result, walletID, indexedAccounts)
					},
				},
			)
		},
	); err != nil {
		return nil, err
	}

	log.WithField("wallet", result.Wallet.ID).Debug("hd wallet created")
	return result, nil
}

type hwWalletInput struct {
	CreateHwWalletParams
	features         ports.DeviceFeatures
	existingDeviceID string
}

// CreateHwWallet stores the hardware wallet of a device, or updates the
// existing one. Creating a hidden wallet with no standard wallet for the
// device synthesizes a mocked standard wallet first.
func (s *Service) CreateHwWallet(
	ctx context.Context, params CreateHwWalletParams,
) (*CreateWalletResult, error) {
	if params.ConnectID == "" {
		return nil, domain.NewGenericLocalError("connect id is required")
	}

	s.fingerprintLock.Lock()
	defer s.fingerprintLock.Unlock()

	input := hwWalletInput{CreateHwWalletParams: params}
	if params.Features != nil {
		input.features = *params.Features
	} else {
		if s.hardware == nil {
			return nil, domain.NewGenericLocalError("device features are required")
		}
		features, err := s.hardware.GetFeatures(ctx, params.ConnectID)
		if err != nil {
			return nil, domain.WrapGenericLocalError(err, "get device features")
		}
		input.features = *features
	}
	if input.features.DeviceID == "" {
		return nil, domain.NewGenericLocalError("device id is required")
	}
	s.fillFingerprints(ctx, &input)

	result := &CreateWalletResult{}
	if err := s.db.RunTransaction(ctx, domain.BucketAccount, false,
		func(ctx context.Context, tx ports.Tx) error {
			r, err := s.txCreateHwWallet(tx, input)
			if err != nil {
				return err
			}
			*result = *r
			return nil
		},
	); err != nil {
		return nil, err
	}
	return result, nil
}

// fillFingerprints reads the missing identity data from the device. The
// device failing is not fatal: the wallet is created without them.
func (s *Service) fillFingerprints(ctx context.Context, input *hwWalletInput) {
	if s.hardware == nil {
		return
	}
	if input.Xfp == "" {
		xfp, err := s.hardware.BuildWalletFingerprint(
			ctx, input.ConnectID, input.features.DeviceID, input.PassphraseState,
		)
		if err != nil {
			log.WithError(err).Warn("wallet fingerprint unavailable, proceeding without it")
		} else {
			input.Xfp = xfp
		}
	}
	if input.FirstEvmAddress == "" && !input.IsMockedStandardHwWallet {
		address, err := s.hardware.GetFirstAddress(
			ctx, input.ConnectID, input.features.DeviceID, domain.FirstEVMAddressPath,
		)
		if err != nil {
			log.WithError(err).Warn("first evm address unavailable, proceeding without it")
		} else {
			input.FirstEvmAddress = address
		}
	}
}

func (s *Service) txCreateHwWallet(tx ports.Tx, input hwWalletInput) (*CreateWalletResult, error) {
	features := input.features
	now := s.now()

	dbDeviceID := input.existingDeviceID
	if dbDeviceID == "" {
		existingDevice, err := txFindExistingDevice(
			tx, features.DeviceID, features.UUID, input.FirstEvmAddress,
		)
		if err != nil {
			return nil, err
		}
		if existingDevice != nil {
			dbDeviceID = existingDevice.ID
		} else {
			dbDeviceID = uuid.New().String()
		}
	}
	walletID := domain.BuildHwWalletID(dbDeviceID, input.PassphraseState)
	existingWallet, err := records.GetSafe[domain.Wallet](tx, domain.StoreWallet, walletID)
	if err != nil {
		return nil, err
	}

	deviceType := domain.DeviceType(features.DeviceType)
	if deviceType == "" {
		deviceType = domain.DeviceTypeUnknown
	}
	deviceName := features.Label
	if deviceName == "" {
		deviceName = fmt.Sprintf("OneKey %s", deviceType)
	}

	name := input.Name
	if name == "" {
		name = deviceName
	}
	var parentWalletID, hiddenDefaultName string
	if input.PassphraseState != "" {
		parent, err := s.txEnsureParentWallet(tx, domain.WalletTypeHW, dbDeviceID, func() error {
			_, err := s.txCreateHwWallet(tx, hwWalletInput{
				CreateHwWalletParams: CreateHwWalletParams{
					ConnectID:                input.ConnectID,
					IsFirmwareVerified:       input.IsFirmwareVerified,
					IsMockedStandardHwWallet: true,
				},
				features:         features,
				existingDeviceID: dbDeviceID,
			})
			return err
		})
		if err != nil {
			return nil, err
		}
		parentWalletID = parent.ID
		hiddenDefaultName = domain.BuildDefaultHiddenWalletName(parent.NextIDs.HiddenWalletNum)
		if input.Name == "" {
			name = hiddenDefaultName
		}
	}

	dbCtx, err := dbcontext.Get(tx)
	if err != nil {
		return nil, err
	}

	usbConnectID, bleConnectID := "", ""
	if domain.TransportTypeFromConnectID(input.ConnectID) == domain.TransportBLE {
		bleConnectID = input.ConnectID
	} else {
		usbConnectID = input.ConnectID
	}
	device := domain.Device{
		ID:           dbDeviceID,
		Name:         deviceName,
		DeviceID:     features.DeviceID,
		UUID:         features.UUID,
		DeviceType:   deviceType,
		ConnectID:    input.ConnectID,
		USBConnectID: usbConnectID,
		BLEConnectID: bleConnectID,
		FeaturesRaw:  features.Raw,
		SettingsRaw:  domain.DefaultDeviceSettingsRaw,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	isTemp := input.DefaultIsTemp
	switch {
	case input.PassphraseState != "":
		isTemp = false
	case existingWallet != nil:
		isTemp = existingWallet.IsTemp && input.DefaultIsTemp
	}
	wallet := domain.Wallet{
		ID:               walletID,
		Name:             name,
		Avatar:           domain.EncodeAvatar(&domain.AvatarInfo{Img: string(deviceType)}),
		Type:             domain.WalletTypeHW,
		Backuped:         true,
		Accounts:         []string{},
		AssociatedDevice: dbDeviceID,
		IsTemp:           isTemp,
		IsMocked:         input.IsMockedStandardHwWallet,
		PassphraseState:  input.PassphraseState,
		Xfp:              input.Xfp,
		FirstEvmAddress:  input.FirstEvmAddress,
		WalletNo:         dbCtx.NextWalletNo,
	}
	if existingWallet != nil {
		wallet = *existingWallet
		wallet.IsTemp = isTemp
		wallet.Deprecated = false
		if input.Xfp != "" {
			wallet.Xfp = input.Xfp
		}
		if input.FirstEvmAddress != "" && wallet.FirstEvmAddress == "" {
			wallet.FirstEvmAddress = input.FirstEvmAddress
		}
		if !input.IsMockedStandardHwWallet && input.PassphraseState == "" {
			wallet.IsMocked = false
		}
	}

	info, err := s.sync.Wallets.BuildExistingSyncItemsInfo(
		tx, []cloudsync.WalletTarget{{Wallet: wallet, Device: &device}},
		cloudsync.ExistingSyncItemsOpts[cloudsync.WalletTarget, cloudsync.WalletPayload]{
			OnExisting: func(existing map[string]cloudsync.ExistingSyncItem[cloudsync.WalletPayload]) error {
				if payload := existing[walletID].Payload; payload != nil && payload.Name != "" {
					wallet.Name = payload.Name
				}
				return nil
			},
			UseGenesisTime: func(t cloudsync.WalletTarget) bool {
				return t.Wallet.PassphraseState != "" && t.Wallet.Name == hiddenDefaultName
			},
		},
	)
	if err != nil {
		return nil, err
	}

	result := &CreateWalletResult{
		IsOverrideWallet: existingWallet != nil && !existingWallet.IsMocked,
	}
	if err := s.sync.Wallets.TxWithSyncFlowOfRecordCreating(tx,
		cloudsync.TxSyncFlowParams[cloudsync.WalletPayload]{
			Info: info,
			RunDbTxFn: func() error {
				if err := txSaveDevice(tx, device, input.IsFirmwareVerified, features.Version); err != nil {
					return err
				}
				if err := records.Upsert(tx, domain.StoreWallet, &wallet); err != nil {
					return err
				}
				if parentWalletID != "" && existingWallet == nil {
					if err := txIncreaseHiddenWalletNum(tx, parentWalletID); err != nil {
						return err
					}
				}
				var indexedAccounts []domain.IndexedAccount
				if !input.IsMockedStandardHwWallet {
					if indexedAccounts, err = s.txAddHDNextIndexedAccount(tx, walletID, true); err != nil {
						return err
					}
				}
				if existingWallet == nil {
					if _, err := dbcontext.Update(tx, func(c *domain.Context) error {
						c.NextWalletNo++
						return nil
					}); err != nil {
						return err
					}
				}
				return s.fillCreateWalletResult(tx, result, walletID, indexedAccounts)
			},
		},
	); err != nil {
		return nil, err
	}

	if input.PassphraseState != "" {
		tx.OnCommit(func() { s.temp.show(walletID) })
	}
	s.afterCommit(tx, domain.Event{Name: domain.EventWalletUpdate, WalletID: walletID})
	return result, nil
}

// CreateQrWallet stores the air-gapped wallet exported by a device. Hidden
// wallets are identified by the hash of their full fingerprint.
func (s *Service) CreateQrWallet(
	ctx context.Context, params CreateQrWalletParams,
) (*CreateWalletResult, error) {
	if params.Device.DeviceID == "" {
		return nil, domain.NewGenericLocalError("device id is required")
	}
	if params.FullXfp == "" && !params.IsMockedStandardHwWallet {
		return nil, domain.NewGenericLocalError("full xfp is required")
	}

	s.fingerprintLock.Lock()
	defer s.fingerprintLock.Unlock()

	result := &CreateWalletResult{}
	if err := s.db.RunTransaction(ctx, domain.BucketAccount, false,
		func(ctx context.Context, tx ports.Tx) error {
			r, err := s.txCreateQrWallet(tx, params)
			if err != nil {
				return err
			}
			*result = *r
			return nil
		},
	); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) txCreateQrWallet(tx ports.Tx, params CreateQrWalletParams) (*CreateWalletResult, error) {
	now := s.now()
	rawDeviceID := params.Device.DeviceID

	existingDevice, err := txGetDeviceByQuery(tx, domain.DeviceQuery{FeaturesDeviceID: rawDeviceID})
	if err != nil {
		return nil, err
	}
	dbDeviceID := params.ExistingDeviceID
	if existingDevice != nil {
		dbDeviceID = existingDevice.ID
	}
	if dbDeviceID == "" {
		dbDeviceID = uuid.New().String()
	}

	deviceName, serialNo, passphraseState := ParseQrDeviceName(params.Device.Name)
	xfpHash, legacyXfpHash := "", ""
	if passphraseState != "" {
		if params.FullXfp != "" {
			xfpHash = domain.HashFullXfp(params.FullXfp)
		}
		if params.Device.Xfp != "" {
			legacyXfpHash = domain.HashFullXfp(params.Device.Xfp)
		}
	}
	walletID := domain.BuildQrWalletID(dbDeviceID, xfpHash)
	if legacyXfpHash != "" {
		legacyID := domain.BuildQrWalletID(dbDeviceID, legacyXfpHash)
		legacy, err := records.GetSafe[domain.Wallet](tx, domain.StoreWallet, legacyID)
		if err != nil {
			return nil, err
		}
		if legacy != nil {
			walletID = legacy.ID
		}
	}

	name := deviceName
	var parentWalletID, hiddenDefaultName string
	if passphraseState != "" {
		var parent *domain.Wallet
		if params.IsMockedStandardHwWallet {
			parent, err = records.GetSafe[domain.Wallet](
				tx, domain.StoreWallet, domain.BuildParentWalletID(domain.WalletTypeQR, dbDeviceID),
			)
		} else {
			parent, err = s.txEnsureParentWallet(tx, domain.WalletTypeQR, dbDeviceID, func() error {
				_, err := s.txCreateQrWallet(tx, CreateQrWalletParams{
					Device: QrDevice{
						DeviceID: rawDeviceID,
						Name:     strings.Split(params.Device.Name, "-")[0],
					},
					IsMockedStandardHwWallet: true,
					ExistingDeviceID:         dbDeviceID,
				})
				return err
			})
		}
		if err != nil {
			return nil, err
		}
		if parent != nil {
			parentWalletID = parent.ID
			hiddenDefaultName = domain.BuildDefaultHiddenWalletName(parent.NextIDs.HiddenWalletNum)
			name = hiddenDefaultName
		}
	}

	device := domain.Device{
		ID:         dbDeviceID,
		Name:       deviceName,
		DeviceID:   rawDeviceID,
		DeviceType: domain.DeviceTypeQR,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if serialNo != "" {
		buf, _ := json.Marshal(map[string]string{"serial_no": serialNo})
		device.FeaturesRaw = string(buf)
	}
	if existingDevice != nil {
		device = *existingDevice
	}

	dbCtx, err := dbcontext.Get(tx)
	if err != nil {
		return nil, err
	}
	existingWallet, err := records.GetSafe[domain.Wallet](tx, domain.StoreWallet, walletID)
	if err != nil {
		return nil, err
	}
	wallet := domain.Wallet{
		ID:                    walletID,
		Name:                  name,
		Avatar:                domain.EncodeAvatar(&domain.AvatarInfo{Img: string(domain.DeviceTypeQR)}),
		Type:                  domain.WalletTypeQR,
		Backuped:              true,
		Accounts:              []string{},
		AssociatedDevice:      dbDeviceID,
		IsMocked:              params.IsMockedStandardHwWallet,
		PassphraseState:       passphraseState,
		Xfp:                   params.FullXfp,
		WalletNo:              dbCtx.NextWalletNo,
		AirGapAccountsInfoRaw: params.AirGapAccountsInfoRaw,
	}
	if existingWallet != nil {
		wallet = *existingWallet
		wallet.IsTemp = false
		wallet.Deprecated = false
		if params.FullXfp != "" {
			wallet.Xfp = params.FullXfp
		}
		if params.AirGapAccountsInfoRaw != "" {
			wallet.AirGapAccountsInfoRaw = params.AirGapAccountsInfoRaw
		}
		if !params.IsMockedStandardHwWallet && passphraseState == "" {
			wallet.IsMocked = false
		}
	}

	info, err := s.sync.Wallets.BuildExistingSyncItemsInfo(
		tx, []cloudsync.WalletTarget{{Wallet: wallet, Device: &device}},
		cloudsync.ExistingSyncItemsOpts[cloudsync.WalletTarget, cloudsync.WalletPayload]{
			OnExisting: func(existing map[string]cloudsync.ExistingSyncItem[cloudsync.WalletPayload]) error {
				if payload := existing[walletID].Payload; payload != nil && payload.Name != "" {
					wallet.Name = payload.Name
				}
				return nil
			},
			UseGenesisTime: func(t cloudsync.WalletTarget) bool {
				return t.Wallet.PassphraseState != "" && t.Wallet.Name == hiddenDefaultName
			},
		},
	)
	if err != nil {
		return nil, err
	}

	result := &CreateWalletResult{
		IsOverrideWallet: existingWallet != nil && !existingWallet.IsMocked,
	}
	if err := s.sync.Wallets.TxWithSyncFlowOfRecordCreating(tx,
		cloudsync.TxSyncFlowParams[cloudsync.WalletPayload]{
			Info: info,
			RunDbTxFn: func() error {
				if _, err := records.Add(tx, domain.StoreDevice, []domain.Device{device}, true); err != nil {
					return err
				}
				if err := records.Upsert(tx, domain.StoreWallet, &wallet); err != nil {
					return err
				}
				if parentWalletID != "" && existingWallet == nil {
					if err := txIncreaseHiddenWalletNum(tx, parentWalletID); err != nil {
						return err
					}
				}
				var indexedAccounts []domain.IndexedAccount
				if !params.IsMockedStandardHwWallet {
					if indexedAccounts, err = s.txAddHDNextIndexedAccount(tx, walletID, true); err != nil {
						return err
					}
				}
				if existingWallet == nil {
					if _, err := dbcontext.Update(tx, func(c *domain.Context) error {
						c.NextWalletNo++
						return nil
					}); err != nil {
						return err
					}
				}
				return s.fillCreateWalletResult(tx, result, walletID, indexedAccounts)
			},
		},
	); err != nil {
		return nil, err
	}

	if passphraseState != "" {
		tx.OnCommit(func() { s.temp.show(walletID) })
	}
	s.afterCommit(tx, domain.Event{Name: domain.EventWalletUpdate, WalletID: walletID})
	return result, nil
}

// ParseQrDeviceName splits the name an air-gapped device exports into its
// display name, serial number and passphrase state.
func ParseQrDeviceName(raw string) (name, serialNo, passphraseState string) {
	name = raw
	if name == "" {
		name = defaultQrDeviceName
	}
	parts := strings.Split(name, "-")
	if len(parts) >= 2 {
		if last := parts[len(parts)-1]; len(last) == passphraseStateLen {
			passphraseState = last
			name = strings.Join(parts[:len(parts)-1], "")
		}
	}
	nameParts := strings.SplitN(name, ":", 2)
	if nameParts[0] != "" {
		name = nameParts[0]
	}
	if len(nameParts) == 2 {
		serialNo = nameParts[1]
	}
	return
}

// txEnsureParentWallet returns the standard wallet of the device, creating
// it through create when missing. Creation is skipped on retries since the
// mocked wallet is then found.
func (s *Service) txEnsureParentWallet(
	tx ports.Tx, walletType domain.WalletType, dbDeviceID string, create func() error,
) (*domain.Wallet, error) {
	parentID := domain.BuildParentWalletID(walletType, dbDeviceID)
	parent, err := records.GetSafe[domain.Wallet](tx, domain.StoreWallet, parentID)
	if err != nil {
		return nil, err
	}
	if parent != nil {
		return parent, nil
	}
	if err := create(); err != nil {
		return nil, err
	}
	parent, err = records.GetSafe[domain.Wallet](tx, domain.StoreWallet, parentID)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, domain.NewGenericLocalError(
			"standard wallet is required to create a hidden wallet of device %s", dbDeviceID,
		)
	}
	return parent, nil
}

func txIncreaseHiddenWalletNum(tx ports.Tx, parentWalletID string) error {
	return txUpdateWallet(tx, parentWalletID, func(w *domain.Wallet) error {
		if w.NextIDs.HiddenWalletNum < 1 {
			w.NextIDs.HiddenWalletNum = 1
		}
		w.NextIDs.HiddenWalletNum++
		return nil
	})
}

// txSaveDevice adds the device or refreshes the identity of the stored one,
// keeping its settings.
func txSaveDevice(tx ports.Tx, device domain.Device, isFirmwareVerified bool, version string) error {
	if _, err := records.Add(tx, domain.StoreDevice, []domain.Device{device}, true); err != nil {
		return err
	}
	return records.Update(tx, domain.StoreDevice, []string{device.ID},
		func(d *domain.Device) error {
			d.FeaturesRaw = device.FeaturesRaw
			d.UpdatedAt = device.UpdatedAt
			d.ConnectID = device.ConnectID
			d.UUID = device.UUID
			d.DeviceID = device.DeviceID
			d.DeviceType = device.DeviceType
			if d.USBConnectID == "" {
				d.USBConnectID = device.USBConnectID
			}
			if device.BLEConnectID != "" {
				d.BLEConnectID = device.BLEConnectID
			}
			if d.SettingsRaw == "" {
				d.SettingsRaw = domain.DefaultDeviceSettingsRaw
			}
			if isFirmwareVerified {
				d.VerifiedAtVersion = version
			}
			return nil
		},
	)
}

func (s *Service) fillCreateWalletResult(
	tx ports.Tx, result *CreateWalletResult, walletID string,
	indexedAccounts []domain.IndexedAccount,
) error {
	wallet, err := records.Get[domain.Wallet](tx, domain.StoreWallet, walletID)
	if err != nil {
		return err
	}
	result.Wallet = *wallet
	if len(indexedAccounts) > 0 {
		result.IndexedAccount = &indexedAccounts[0]
	}
	device, err := txWalletDevice(tx, *wallet)
	if err != nil {
		return err
	}
	result.Device = device
	return nil
}

func adoptWalletPayload(wallet *domain.Wallet, payload *cloudsync.WalletPayload) {
	if payload == nil {
		return
	}
	if payload.Name != "" {
		wallet.Name = payload.Name
	}
	if payload.Avatar != nil {
		wallet.Avatar = domain.EncodeAvatar(payload.Avatar)
	}
}
