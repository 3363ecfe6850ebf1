package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/walletdb/internal/core/domain"
)

func TestErrorKinds(t *testing.T) {
	err := fmt.Errorf("renaming account: %w", domain.NewDuplicateNameError("Account #1"))
	require.True(t, errors.Is(err, domain.ErrDuplicateName))
	require.False(t, errors.Is(err, domain.ErrInvalidPassword))

	notFound := domain.NewRecordNotFoundError(domain.StoreWallet, "hd-1")
	require.True(t, errors.Is(notFound, domain.ErrRecordNotFound))
	require.True(t, errors.Is(notFound, domain.ErrGenericLocal))
	require.False(t, errors.Is(domain.NewGenericLocalError("x"), domain.ErrRecordNotFound))

	cause := errors.New("cipher: message authentication failed")
	invalid := domain.NewInvalidPasswordError(cause)
	require.True(t, errors.Is(invalid, domain.ErrInvalidPassword))
	require.True(t, errors.Is(invalid, cause))
}

func TestDeviceQuery(t *testing.T) {
	d := domain.Device{
		ID: "db1", DeviceID: "raw1", UUID: "uuid1",
		ConnectID: "c1", BLEConnectID: "AA:BB",
	}

	require.True(t, domain.DeviceQuery{ConnectID: "c1"}.Match(d))
	require.True(t, domain.DeviceQuery{ConnectID: "AA:BB"}.Match(d))
	require.True(t, domain.DeviceQuery{FeaturesDeviceID: "raw1", UUID: "uuid1"}.Match(d))
	require.False(t, domain.DeviceQuery{FeaturesDeviceID: "raw1", UUID: "other"}.Match(d))
	require.False(t, domain.DeviceQuery{}.Match(d))
}

func TestSchemaRegistry(t *testing.T) {
	require.Equal(t, domain.BucketAccount, domain.StoreWallet.Bucket())
	require.Equal(t, domain.BucketAccount, domain.StoreCloudSyncItem.Bucket())
	require.Equal(t, domain.BucketAddress, domain.StoreAddress.Bucket())
	require.Equal(t, domain.BucketArchive, domain.StoreSignedMessage.Bucket())

	record, err := domain.NewRecord(domain.StoreIndexedAccount)
	require.NoError(t, err)
	require.IsType(t, &domain.IndexedAccount{}, record)

	_, err = domain.NewRecord("Unknown")
	require.Error(t, err)

	require.ElementsMatch(t, []domain.StoreName{
		domain.StoreSignedMessage, domain.StoreSignedTransaction,
		domain.StoreConnectedSite, domain.StoreHardwareHomeScreen,
	}, domain.BucketStores(domain.BucketArchive))
}
