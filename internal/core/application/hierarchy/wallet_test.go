package hierarchy_test

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tdex-network/walletdb/internal/core/application/hierarchy"
	"github.com/tdex-network/walletdb/internal/core/domain"
)

func TestCreateHDWallet(t *testing.T) {
	t.Run("first wallet", func(t *testing.T) {
		env := newTestEnv(t)

		res := env.createHDWallet(t, "Wallet 1")
		require.Equal(t, "hd-1", res.Wallet.ID)
		require.Equal(t, domain.WalletTypeHD, res.Wallet.Type)
		require.Equal(t, 1, res.Wallet.NextIDs.AccountHdIndex)
		require.NotNil(t, res.IndexedAccount)
		require.Equal(t, "hd-1--0", res.IndexedAccount.ID)
		require.Equal(t, "Account #1", res.IndexedAccount.Name)

		secret, err := env.vault.RevealCredential(ctx, "hd-1", password)
		require.NoError(t, err)
		seed := domain.HDSeed{}
		require.NoError(t, json.Unmarshal(secret, &seed))
		require.Equal(t, testSeed, seed)

		wallet, err := env.svc.GetWallet(ctx, "hd-1")
		require.NoError(t, err)
		require.Equal(t, "Wallet 1", wallet.Name)
		require.Equal(t, 1, env.events.count(domain.EventWalletUpdate))
	})

	t.Run("default names use genesis time", func(t *testing.T) {
		env := newTestEnv(t)
		env.createHDWallet(t, "Wallet 1")
		env.createHDWallet(t, "Savings")

		var walletTimes []int64
		for _, item := range env.syncItems(t) {
			switch item.DataType {
			case domain.SyncDataTypeWallet:
				walletTimes = append(walletTimes, item.DataTime)
			case domain.SyncDataTypeIndexedAccount:
				require.Equal(t, domain.GenesisTime, item.DataTime)
			}
		}
		require.Len(t, walletTimes, 2)
		require.Contains(t, walletTimes, domain.GenesisTime)
		require.NotEqual(t, walletTimes[0], walletTimes[1])
	})

	t.Run("invalid password", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.CreateHDWallet(ctx, hierarchy.CreateHDWalletParams{
			Password: "wrong password",
			Seed:     testSeed,
		})
		require.ErrorIs(t, err, domain.ErrInvalidPassword)

		wallets, err := env.svc.GetWallets(ctx, hierarchy.GetWalletsOpts{
			IgnoreEmptySingletonWalletAccounts: true,
		})
		require.NoError(t, err)
		require.Empty(t, wallets)
		require.Equal(t, 0, env.count(t, domain.StoreIndexedAccount))
	})

	t.Run("password from prompt", func(t *testing.T) {
		env := newTestEnv(t)
		res, err := env.svc.CreateHDWallet(ctx, hierarchy.CreateHDWalletParams{
			Seed: testSeed,
		})
		require.NoError(t, err)
		require.Equal(t, "Wallet 1", res.Wallet.Name)
		require.True(t, env.credentialExists(t, res.Wallet.ID))
	})
}

func TestCreateHiddenWalletBeforeStandard(t *testing.T) {
	t.Run("hardware", func(t *testing.T) {
		env := newTestEnv(t)

		res := env.createHwWallet(t, "abc12345")
		hidden := res.Wallet
		require.True(t, hidden.IsHidden())
		require.Equal(t, "Hidden #1", hidden.Name)

		wallets, err := env.svc.GetWalletsByDevice(ctx, hidden.AssociatedDevice)
		require.NoError(t, err)
		require.Len(t, wallets, 2)

		parent, err := env.svc.GetParentWalletOfHiddenWallet(ctx, hidden.AssociatedDevice, false)
		require.NoError(t, err)
		require.True(t, parent.IsMocked)
		require.True(t, strings.HasPrefix(hidden.ID, parent.ID))
		require.Equal(t, 2, parent.NextIDs.HiddenWalletNum)

		indexed, err := env.svc.GetIndexedAccountsOfWallet(ctx, parent.ID)
		require.NoError(t, err)
		require.Empty(t, indexed)

		// Retrying finds the stored device and wallets.
		again := env.createHwWallet(t, "abc12345")
		require.Equal(t, hidden.ID, again.Wallet.ID)
		wallets, err = env.svc.GetWalletsByDevice(ctx, hidden.AssociatedDevice)
		require.NoError(t, err)
		require.Len(t, wallets, 2)
		require.Equal(t, 1, env.count(t, domain.StoreDevice))

		require.NoError(t, env.svc.RemoveWallet(ctx, hierarchy.RemoveWalletParams{
			WalletID: hidden.ID,
		}))
		_, err = env.svc.GetWallet(ctx, hidden.ID)
		require.ErrorIs(t, err, domain.ErrRecordNotFound)
		stillThere, err := env.svc.GetWallet(ctx, parent.ID)
		require.NoError(t, err)
		require.True(t, stillThere.IsMocked)
		require.Equal(t, 1, env.events.count(domain.EventWalletRemove))
	})

	t.Run("air-gapped", func(t *testing.T) {
		env := newTestEnv(t)

		res, err := env.svc.CreateQrWallet(ctx, hierarchy.CreateQrWalletParams{
			Device: hierarchy.QrDevice{
				DeviceID: "qr-raw-1",
				Name:     "Pro:SN001-abcd1234",
				Xfp:      "1a2b3c4d",
			},
			FullXfp: "1a2b3c4d5e6f",
		})
		require.NoError(t, err)
		hidden := res.Wallet
		require.True(t, hidden.IsHidden())
		require.Equal(t, "abcd1234", hidden.PassphraseState)
		require.NotNil(t, res.Device)
		require.Equal(t, "Pro", res.Device.Name)

		parent, err := env.svc.GetParentWalletOfHiddenWallet(ctx, hidden.AssociatedDevice, true)
		require.NoError(t, err)
		require.True(t, parent.IsMocked)
		require.True(t, strings.HasPrefix(hidden.ID, parent.ID+"-"))
		require.Equal(t, domain.BuildQrWalletID(hidden.AssociatedDevice, ""), parent.ID)
	})

	t.Run("standard wallet replaces mocked one", func(t *testing.T) {
		env := newTestEnv(t)
		hidden := env.createHwWallet(t, "abc12345").Wallet

		res := env.createHwWallet(t, "")
		require.Equal(t, hidden.ParentWalletID(), res.Wallet.ID)
		require.False(t, res.Wallet.IsMocked)
		require.False(t, res.IsOverrideWallet)
		require.NotNil(t, res.IndexedAccount)
	})
}

func TestCreateHwWalletWithAdapter(t *testing.T) {
	t.Run("reads identity from device", func(t *testing.T) {
		hw := &mockHardware{}
		hw.On("GetFeatures", mock.Anything, "ble-connect").Return(testFeatures(), nil)
		hw.On("BuildWalletFingerprint", mock.Anything, "ble-connect", "raw-device-1", "").
			Return("f00dbabe", nil)
		hw.On("GetFirstAddress", mock.Anything, "ble-connect", "raw-device-1", domain.FirstEVMAddressPath).
			Return("0xAbCdEf", nil)
		env := newTestEnvWithHardware(t, hw)

		res, err := env.svc.CreateHwWallet(ctx, hierarchy.CreateHwWalletParams{
			ConnectID: "ble-connect",
		})
		require.NoError(t, err)
		require.Equal(t, "f00dbabe", res.Wallet.Xfp)
		require.Equal(t, "0xAbCdEf", res.Wallet.FirstEvmAddress)
		require.Equal(t, "My Pro", res.Wallet.Name)
		hw.AssertExpectations(t)
	})

	t.Run("device failures are not fatal", func(t *testing.T) {
		hw := &mockHardware{}
		hw.On("BuildWalletFingerprint", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return("", errDeviceBusy)
		hw.On("GetFirstAddress", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return("", errDeviceBusy)
		env := newTestEnvWithHardware(t, hw)

		res, err := env.svc.CreateHwWallet(ctx, hierarchy.CreateHwWalletParams{
			ConnectID: "usb-connect-1",
			Features:  testFeatures(),
		})
		require.NoError(t, err)
		require.Empty(t, res.Wallet.Xfp)
		require.Empty(t, res.Wallet.FirstEvmAddress)
	})
}

func TestRecreateHwWalletKeepsWalletNo(t *testing.T) {
	env := newTestEnv(t)
	first := env.createHwWallet(t, "").Wallet

	again := env.createHwWallet(t, "")
	require.Equal(t, first.ID, again.Wallet.ID)
	require.Equal(t, first.WalletNo, again.Wallet.WalletNo)
	require.True(t, again.IsOverrideWallet)

	hd := env.createHDWallet(t, "Wallet 1").Wallet
	require.Equal(t, first.WalletNo+1, hd.WalletNo)
}

func TestWalletOrder(t *testing.T) {
	env := newTestEnv(t)
	env.createHDWallet(t, "Wallet 1")
	env.createHDWallet(t, "Wallet 2")
	hidden := env.createHwWallet(t, "abc12345").Wallet
	parentID := hidden.ParentWalletID()

	opts := hierarchy.GetWalletsOpts{IgnoreEmptySingletonWalletAccounts: true}
	wallets, err := env.svc.GetWallets(ctx, opts)
	require.NoError(t, err)
	require.Equal(t, []string{"hd-1", "hd-2", parentID, hidden.ID}, walletIDs(wallets))

	require.NoError(t, env.svc.UpdateWalletOrder(ctx, parentID, 0.5))
	wallets, err = env.svc.GetWallets(ctx, opts)
	require.NoError(t, err)
	require.Equal(t, []string{parentID, hidden.ID, "hd-1", "hd-2"}, walletIDs(wallets))
	require.True(t, wallets[1].WalletOrder.GreaterThan(wallets[0].WalletOrder))
	require.True(t, wallets[1].WalletOrder.LessThan(wallets[2].WalletOrder))

	opts.NestedHiddenWallets = true
	wallets, err = env.svc.GetWallets(ctx, opts)
	require.NoError(t, err)
	require.Equal(t, []string{parentID, "hd-1", "hd-2"}, walletIDs(wallets))
	require.Equal(t, []string{hidden.ID}, walletIDs(wallets[0].HiddenWallets))
}

func TestTempWallets(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.svc.CreateHwWallet(ctx, hierarchy.CreateHwWalletParams{
		ConnectID:     "usb-connect-1",
		Features:      testFeatures(),
		DefaultIsTemp: true,
	})
	require.NoError(t, err)
	walletID := res.Wallet.ID
	require.True(t, res.Wallet.IsTemp)

	visible := func(opts hierarchy.GetWalletsOpts) bool {
		opts.IgnoreEmptySingletonWalletAccounts = true
		wallets, err := env.svc.GetWallets(ctx, opts)
		require.NoError(t, err)
		for _, w := range wallets {
			if w.ID == walletID {
				return true
			}
		}
		return false
	}

	require.False(t, visible(hierarchy.GetWalletsOpts{}))
	require.True(t, visible(hierarchy.GetWalletsOpts{IncludeAllPassphraseWallets: true}))

	require.NoError(t, env.svc.SetWalletTempStatus(ctx, walletID, true, false))
	require.True(t, visible(hierarchy.GetWalletsOpts{}))

	require.NoError(t, env.svc.SetWalletTempStatus(ctx, walletID, true, true))
	require.False(t, visible(hierarchy.GetWalletsOpts{}))
	wallet, err := env.svc.GetWallet(ctx, walletID)
	require.NoError(t, err)
	require.True(t, env.svc.IsTempWalletRemoved(*wallet))

	require.NoError(t, env.svc.RestoreTempCreatedWallet(ctx, walletID))
	require.True(t, visible(hierarchy.GetWalletsOpts{}))

	require.NoError(t, env.svc.SetWalletTempStatus(ctx, walletID, true, false))
	env.svc.ClearTempWallets()
	require.False(t, visible(hierarchy.GetWalletsOpts{}))
}

func TestSetWalletNameAndAvatar(t *testing.T) {
	env := newTestEnv(t)
	env.createHDWallet(t, "Wallet 1")
	env.createHDWallet(t, "Wallet 2")

	_, err := env.svc.SetWalletNameAndAvatar(ctx, hierarchy.SetWalletNameAndAvatarParams{
		WalletID:             "hd-2",
		Name:                 "Wallet 1",
		ShouldCheckDuplicate: true,
	})
	require.ErrorIs(t, err, domain.ErrDuplicateName)

	wallet, err := env.svc.SetWalletNameAndAvatar(ctx, hierarchy.SetWalletNameAndAvatarParams{
		WalletID:             "hd-2",
		Name:                 "Savings",
		Avatar:               &domain.AvatarInfo{Img: "panda", Bg: "#ffffff"},
		ShouldCheckDuplicate: true,
	})
	require.NoError(t, err)
	require.Equal(t, "Savings", wallet.Name)
	require.NotNil(t, wallet.AvatarInfo)
	require.Equal(t, "panda", wallet.AvatarInfo.Img)
	require.Equal(t, 1, env.events.count(domain.EventWalletRename))

	for _, item := range env.syncItems(t) {
		if item.DataType == domain.SyncDataTypeWallet && strings.Contains(item.RawData, "Savings") {
			require.NotEqual(t, domain.GenesisTime, item.DataTime)
			return
		}
	}
	t.Fatal("missing sync item of renamed wallet")
}

func TestSetWalletNameAndAvatarConcurrent(t *testing.T) {
	env := newTestEnv(t)
	env.createHDWallet(t, "Wallet 1")
	env.createHDWallet(t, "Wallet 2")

	ids := []string{"hd-1", "hd-2"}
	errs := make([]error, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = env.svc.SetWalletNameAndAvatar(ctx, hierarchy.SetWalletNameAndAvatarParams{
				WalletID:             id,
				Name:                 "Savings",
				ShouldCheckDuplicate: true,
			})
		}(i, id)
	}
	wg.Wait()

	var renamed int
	for _, err := range errs {
		if err == nil {
			renamed++
			continue
		}
		require.ErrorIs(t, err, domain.ErrDuplicateName)
	}
	require.Equal(t, 1, renamed)
	require.Equal(t, 1, env.events.count(domain.EventWalletRename))
}

func TestRemoveWallet(t *testing.T) {
	t.Run("hd", func(t *testing.T) {
		env := newTestEnv(t)
		env.createHDWallet(t, "Wallet 1")
		_, err := env.svc.AddIndexedAccounts(ctx, hierarchy.AddIndexedAccountParams{
			WalletID: "hd-1", Indexes: []int{1, 2},
		})
		require.NoError(t, err)

		require.NoError(t, env.svc.RemoveWallet(ctx, hierarchy.RemoveWalletParams{WalletID: "hd-1"}))
		require.Nil(t, env.svc.GetWalletSafe(ctx, "hd-1"))
		require.False(t, env.credentialExists(t, "hd-1"))
		require.Equal(t, 0, env.count(t, domain.StoreIndexedAccount))
		for _, item := range env.syncItems(t) {
			require.NotEqual(t, domain.SyncDataTypeWallet, item.DataType)
		}
	})

	t.Run("hardware takes hidden wallets and device", func(t *testing.T) {
		env := newTestEnv(t)
		env.createHwWallet(t, "")
		hidden := env.createHwWallet(t, "abc12345").Wallet
		walletItems := 0
		for _, item := range env.syncItems(t) {
			if item.DataType == domain.SyncDataTypeWallet {
				walletItems++
			}
		}
		require.Equal(t, 2, walletItems)

		require.NoError(t, env.svc.RemoveWallet(ctx, hierarchy.RemoveWalletParams{
			WalletID: hidden.ParentWalletID(),
		}))
		require.Nil(t, env.svc.GetWalletSafe(ctx, hidden.ID))
		require.Equal(t, 0, env.count(t, domain.StoreDevice))
		require.Equal(t, 0, env.count(t, domain.StoreIndexedAccount))
		for _, item := range env.syncItems(t) {
			require.NotEqual(t, domain.SyncDataTypeWallet, item.DataType)
		}
	})

	t.Run("hardware to mocked", func(t *testing.T) {
		env := newTestEnv(t)
		standard := env.createHwWallet(t, "").Wallet

		require.NoError(t, env.svc.RemoveWallet(ctx, hierarchy.RemoveWalletParams{
			WalletID: standard.ID, IsRemoveToMocked: true,
		}))
		wallet, err := env.svc.GetWallet(ctx, standard.ID)
		require.NoError(t, err)
		require.True(t, wallet.IsMocked)
		require.Equal(t, 1, env.count(t, domain.StoreDevice))
	})

	t.Run("singleton", func(t *testing.T) {
		env := newTestEnv(t)
		err := env.svc.RemoveWallet(ctx, hierarchy.RemoveWalletParams{
			WalletID: string(domain.WalletTypeWatching),
		})
		require.ErrorIs(t, err, domain.ErrGenericLocal)
	})
}

func walletIDs(wallets []domain.Wallet) []string {
	ids := make([]string, 0, len(wallets))
	for _, w := range wallets {
		ids = append(ids, w.ID)
	}
	return ids
}
