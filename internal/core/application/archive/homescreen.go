package archive

import (
	"context"
	"sort"
	"strings"

	"github.com/tdex-network/walletdb/internal/core/domain"
	"github.com/tdex-network/walletdb/internal/core/ports"
	"github.com/tdex-network/walletdb/internal/storageutil/records"
)

// AddHardwareHomeScreen stores the image under <deviceId>--<name> and
// returns the id. Adding the same name twice for a device fails.
func (s *Service) AddHardwareHomeScreen(
	ctx context.Context, screen domain.HardwareHomeScreen,
) (string, error) {
	if screen.DeviceID == "" || screen.Name == "" {
		return "", domain.NewGenericLocalError("home screen requires device id and name")
	}
	screen.ID = domain.BuildHomeScreenID(screen.DeviceID, screen.Name)
	screen.CreatedAt = s.now()

	err := s.db.RunTransaction(ctx, domain.BucketArchive, false,
		func(ctx context.Context, tx ports.Tx) error {
			_, err := records.Add(
				tx, domain.StoreHardwareHomeScreen,
				[]domain.HardwareHomeScreen{screen}, false,
			)
			return err
		},
	)
	if err != nil {
		return "", err
	}
	return screen.ID, nil
}

// GetHardwareHomeScreens returns the images of the device, newest first.
func (s *Service) GetHardwareHomeScreens(
	ctx context.Context, deviceID string,
) ([]domain.HardwareHomeScreen, error) {
	all, err := getAll[domain.HardwareHomeScreen](ctx, s.db, domain.StoreHardwareHomeScreen)
	if err != nil {
		return nil, err
	}
	prefix := deviceID + domain.IDSeparator
	list := make([]domain.HardwareHomeScreen, 0)
	for _, screen := range all {
		// the prefix alone also matches device ids extending this one
		if !strings.HasPrefix(screen.ID, prefix) || screen.DeviceID != deviceID {
			continue
		}
		list = append(list, screen)
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt > list[j].CreatedAt
	})
	return list, nil
}

// DeleteHardwareHomeScreen removes the image, ignoring unknown ids.
func (s *Service) DeleteHardwareHomeScreen(ctx context.Context, id string) error {
	return s.db.RunTransaction(ctx, domain.BucketArchive, false,
		func(ctx context.Context, tx ports.Tx) error {
			return records.Remove(tx, domain.StoreHardwareHomeScreen, []string{id}, true)
		},
	)
}
