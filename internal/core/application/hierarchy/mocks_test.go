package hierarchy_test

import (
	"context"
	"errors"

	"github.com/stretchr/testify/mock"
	"github.com/tdex-network/walletdb/internal/core/ports"
)

var errDeviceBusy = errors.New("device busy")

type mockHardware struct {
	mock.Mock
}

func (m *mockHardware) GetFeatures(ctx context.Context, connectID string) (*ports.DeviceFeatures, error) {
	args := m.Called(ctx, connectID)
	var res *ports.DeviceFeatures
	if a := args.Get(0); a != nil {
		res = a.(*ports.DeviceFeatures)
	}
	return res, args.Error(1)
}

func (m *mockHardware) BuildWalletFingerprint(
	ctx context.Context, connectID, deviceID, passphraseState string,
) (string, error) {
	args := m.Called(ctx, connectID, deviceID, passphraseState)
	return args.String(0), args.Error(1)
}

func (m *mockHardware) GetFirstAddress(
	ctx context.Context, connectID, deviceID, path string,
) (string, error) {
	args := m.Called(ctx, connectID, deviceID, path)
	return args.String(0), args.Error(1)
}
