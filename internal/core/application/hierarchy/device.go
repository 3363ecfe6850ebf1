package hierarchy

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/tdex-network/walletdb/internal/core/domain"
	"github.com/tdex-network/walletdb/internal/core/ports"
	"github.com/tdex-network/walletdb/internal/storageutil/records"
)

// GetDevice ...
func (s *Service) GetDevice(ctx context.Context, dbDeviceID string) (*domain.Device, error) {
	devices, err := s.GetAllDevices(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		if d.ID == dbDeviceID {
			found := d
			return &found, nil
		}
	}
	return nil, domain.NewRecordNotFoundError(domain.StoreDevice, dbDeviceID)
}

// GetDeviceByQuery returns the first device matching every predicate of the
// query, nil if none does.
func (s *Service) GetDeviceByQuery(ctx context.Context, query domain.DeviceQuery) (*domain.Device, error) {
	devices, err := s.GetAllDevices(ctx)
	if err != nil {
		return nil, err
	}
	return matchDevice(devices, query), nil
}

// GetWalletDevice returns the device of a hardware or air-gapped wallet.
func (s *Service) GetWalletDevice(ctx context.Context, walletID string) (*domain.Device, error) {
	wallet, err := s.GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if !wallet.Type.IsHardware() || wallet.AssociatedDevice == "" {
		return nil, domain.NewGenericLocalError("wallet %s has no associated device", walletID)
	}
	return s.GetDevice(ctx, wallet.AssociatedDevice)
}

// UpdateDeviceSettings merges the given settings into the stored ones.
func (s *Service) UpdateDeviceSettings(
	ctx context.Context, dbDeviceID string, settings map[string]interface{},
) error {
	return s.db.RunTransaction(ctx, domain.BucketAccount, false,
		func(ctx context.Context, tx ports.Tx) error {
			if err := records.Update(tx, domain.StoreDevice, []string{dbDeviceID},
				func(d *domain.Device) error {
					current := make(map[string]interface{})
					if d.SettingsRaw != "" {
						if err := json.Unmarshal([]byte(d.SettingsRaw), &current); err != nil {
							return domain.WrapGenericLocalError(err, "decode settings of device %s", d.ID)
						}
					}
					for k, v := range settings {
						current[k] = v
					}
					buf, err := json.Marshal(current)
					if err != nil {
						return domain.WrapGenericLocalError(err, "encode settings of device %s", d.ID)
					}
					d.SettingsRaw = string(buf)
					d.UpdatedAt = s.now()
					return nil
				},
			); err != nil {
				return err
			}
			s.afterCommit(tx)
			return nil
		},
	)
}

// UpdateFirmwareVerified records the firmware version the device was last
// verified at.
func (s *Service) UpdateFirmwareVerified(ctx context.Context, dbDeviceID, version string) error {
	return s.db.RunTransaction(ctx, domain.BucketAccount, false,
		func(ctx context.Context, tx ports.Tx) error {
			if err := records.Update(tx, domain.StoreDevice, []string{dbDeviceID},
				func(d *domain.Device) error {
					d.VerifiedAtVersion = version
					d.UpdatedAt = s.now()
					return nil
				},
			); err != nil {
				return err
			}
			s.afterCommit(tx)
			return nil
		},
	)
}

func txGetDeviceByQuery(tx ports.Tx, query domain.DeviceQuery) (*domain.Device, error) {
	devices, err := records.GetAll[domain.Device](tx, domain.StoreDevice)
	if err != nil {
		return nil, err
	}
	return matchDevice(devices, query), nil
}

// txFindExistingDevice looks for the stored device by raw device id and
// uuid. A device reset changes the raw id but keeps the uuid: among the
// devices sharing the uuid, the one whose standard wallet has the same first
// evm address wins.
func txFindExistingDevice(
	tx ports.Tx, rawDeviceID, deviceUUID, firstEvmAddress string,
) (*domain.Device, error) {
	if rawDeviceID == "" {
		return nil, nil
	}
	devices, err := records.GetAll[domain.Device](tx, domain.StoreDevice)
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		matched := d.DeviceID == rawDeviceID
		if deviceUUID != "" && d.UUID != "" {
			matched = matched && d.UUID == deviceUUID
		}
		if matched {
			found := d
			return &found, nil
		}
	}
	if deviceUUID == "" || firstEvmAddress == "" {
		return nil, nil
	}

	sameUUID := make(map[string]domain.Device)
	for _, d := range devices {
		if d.UUID == deviceUUID {
			sameUUID[d.ID] = d
		}
	}
	if len(sameUUID) <= 0 {
		return nil, nil
	}
	wallets, err := records.GetAll[domain.Wallet](tx, domain.StoreWallet)
	if err != nil {
		return nil, err
	}
	matched := make([]domain.Wallet, 0)
	for _, w := range wallets {
		if _, ok := sameUUID[w.AssociatedDevice]; !ok {
			continue
		}
		if w.Type == domain.WalletTypeHW && !w.IsHidden() &&
			strings.EqualFold(w.FirstEvmAddress, firstEvmAddress) {
			matched = append(matched, w)
		}
	}
	if len(matched) <= 0 {
		return nil, nil
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].WalletNo > matched[j].WalletNo })
	found := sameUUID[matched[0].AssociatedDevice]
	return &found, nil
}

func matchDevice(devices []domain.Device, query domain.DeviceQuery) *domain.Device {
	for _, d := range devices {
		if query.Match(d) {
			found := d
			return &found
		}
	}
	return nil
}
