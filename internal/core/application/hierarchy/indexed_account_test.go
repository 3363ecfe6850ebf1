package hierarchy_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/walletdb/internal/core/application/hierarchy"
	"github.com/tdex-network/walletdb/internal/core/domain"
)

func TestAddIndexedAccounts(t *testing.T) {
	t.Run("skip if exists", func(t *testing.T) {
		env := newTestEnv(t)
		env.createHDWallet(t, "Wallet 1")
		params := hierarchy.AddIndexedAccountParams{
			WalletID:     "hd-1",
			Indexes:      []int{5},
			Names:        map[int]string{5: "Cold"},
			SkipIfExists: true,
		}

		added, err := env.svc.AddIndexedAccounts(ctx, params)
		require.NoError(t, err)
		require.Len(t, added, 1)
		require.Equal(t, "Cold", added[0].Name)

		params.Names = map[int]string{5: "Other"}
		added, err = env.svc.AddIndexedAccounts(ctx, params)
		require.NoError(t, err)
		require.Len(t, added, 1)
		require.Equal(t, "Cold", added[0].Name)

		list, err := env.svc.GetIndexedAccountsOfWallet(ctx, "hd-1")
		require.NoError(t, err)
		require.Len(t, list, 2)
	})

	t.Run("existing without skip", func(t *testing.T) {
		env := newTestEnv(t)
		env.createHDWallet(t, "Wallet 1")
		_, err := env.svc.AddIndexedAccounts(ctx, hierarchy.AddIndexedAccountParams{
			WalletID: "hd-1", Indexes: []int{0},
		})
		require.Error(t, err)
	})

	t.Run("singleton wallet", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.AddIndexedAccounts(ctx, hierarchy.AddIndexedAccountParams{
			WalletID: string(domain.WalletTypeWatching), Indexes: []int{0},
		})
		require.ErrorIs(t, err, domain.ErrGenericLocal)
	})

	t.Run("negative index", func(t *testing.T) {
		env := newTestEnv(t)
		env.createHDWallet(t, "Wallet 1")
		_, err := env.svc.AddIndexedAccounts(ctx, hierarchy.AddIndexedAccountParams{
			WalletID: "hd-1", Indexes: []int{-1},
		})
		require.ErrorIs(t, err, domain.ErrGenericLocal)
	})
}

func TestAddHDNextIndexedAccount(t *testing.T) {
	t.Run("skips taken indexes", func(t *testing.T) {
		env := newTestEnv(t)
		env.createHDWallet(t, "Wallet 1")
		_, err := env.svc.AddIndexedAccounts(ctx, hierarchy.AddIndexedAccountParams{
			WalletID: "hd-1", Indexes: []int{1, 2},
		})
		require.NoError(t, err)

		ia, err := env.svc.AddHDNextIndexedAccount(ctx, "hd-1")
		require.NoError(t, err)
		require.Equal(t, 3, ia.Index)
		require.Equal(t, "hd-1--3", ia.ID)

		wallet, err := env.svc.GetWallet(ctx, "hd-1")
		require.NoError(t, err)
		require.Equal(t, 4, wallet.NextIDs.AccountHdIndex)
	})

	t.Run("bounded probing", func(t *testing.T) {
		env := newTestEnv(t)
		env.createHDWallet(t, "Wallet 1")
		indexes := make([]int, 0, domain.MaxHDIndexProbes)
		for i := 1; i <= domain.MaxHDIndexProbes; i++ {
			indexes = append(indexes, i)
		}
		_, err := env.svc.AddIndexedAccounts(ctx, hierarchy.AddIndexedAccountParams{
			WalletID: "hd-1", Indexes: indexes,
		})
		require.NoError(t, err)

		_, err = env.svc.AddHDNextIndexedAccount(ctx, "hd-1")
		require.ErrorIs(t, err, domain.ErrGenericLocal)

		wallet, err := env.svc.GetWallet(ctx, "hd-1")
		require.NoError(t, err)
		require.Equal(t, 1, wallet.NextIDs.AccountHdIndex)
		require.Equal(t, domain.MaxHDIndexProbes+1, env.count(t, domain.StoreIndexedAccount))
	})
}

func TestIndexedAccountOrder(t *testing.T) {
	env := newTestEnv(t)
	env.createHDWallet(t, "Wallet 1")
	_, err := env.svc.AddIndexedAccounts(ctx, hierarchy.AddIndexedAccountParams{
		WalletID: "hd-1", Indexes: []int{1, 2},
	})
	require.NoError(t, err)

	require.NoError(t, env.svc.UpdateIndexedAccountOrder(ctx, "hd-1--2", 0.5))
	list, err := env.svc.GetIndexedAccountsOfWallet(ctx, "hd-1")
	require.NoError(t, err)
	ids := make([]string, 0, len(list))
	for _, ia := range list {
		ids = append(ids, ia.ID)
	}
	require.Equal(t, []string{"hd-1--0", "hd-1--2", "hd-1--1"}, ids)

	wallets, err := env.svc.GetWallets(ctx, hierarchy.GetWalletsOpts{
		IgnoreEmptySingletonWalletAccounts: true,
		IncludingAccounts:                  true,
	})
	require.NoError(t, err)
	require.Len(t, wallets, 1)
	require.Len(t, wallets[0].DBIndexedAccounts, 3)
	require.Equal(t, "hd-1--2", wallets[0].DBIndexedAccounts[1].ID)
}
