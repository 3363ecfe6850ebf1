package hierarchy_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/walletdb/internal/core/application/hierarchy"
	"github.com/tdex-network/walletdb/internal/core/domain"
)

const evmNetwork = "evm--1"

func watchingAccount(address string) domain.Account {
	return domain.Account{
		ID:              domain.BuildWatchingAccountID(domain.CoinTypeETH, address, ""),
		Type:            domain.AccountTypeSimple,
		CoinType:        domain.CoinTypeETH,
		Impl:            "evm",
		Address:         address,
		CreateAtNetwork: evmNetwork,
	}
}

func defaultWatchingName(n int) string {
	return domain.BuildDefaultSingletonAccountName(domain.WalletTypeWatching, n)
}

func TestAddAccountsToSingletonWallet(t *testing.T) {
	walletID := string(domain.WalletTypeWatching)

	t.Run("names and counter", func(t *testing.T) {
		env := newTestEnv(t)

		res, err := env.svc.AddAccountsToWallet(ctx, hierarchy.AddAccountsParams{
			WalletID:           walletID,
			Accounts:           []domain.Account{watchingAccount("0xaaa"), watchingAccount("0xbbb")},
			AccountNameBuilder: defaultWatchingName,
			NetworkID:          evmNetwork,
		})
		require.NoError(t, err)
		require.False(t, res.IsOverrideAccounts)
		require.Empty(t, res.ExistingAccounts)

		accounts, err := env.svc.GetSingletonAccountsOfWallet(ctx, walletID)
		require.NoError(t, err)
		require.Len(t, accounts, 2)
		require.Equal(t, "Watched Account #1", accounts[0].Name)
		require.Equal(t, "Watched Account #2", accounts[1].Name)

		wallet, err := env.svc.GetWallet(ctx, walletID)
		require.NoError(t, err)
		require.Equal(t, 3, wallet.NextIDs.AccountGlobalNum)
		require.Len(t, env.indexer.saved(evmNetwork), 2)
		require.Equal(t, 1, env.events.count(domain.EventAddAccountsToWallet))
	})

	t.Run("overwrite keeps counter", func(t *testing.T) {
		env := newTestEnv(t)
		first := watchingAccount("0xaaa")

		_, err := env.svc.AddAccountsToWallet(ctx, hierarchy.AddAccountsParams{
			WalletID:           walletID,
			Accounts:           []domain.Account{first},
			AccountNameBuilder: defaultWatchingName,
		})
		require.NoError(t, err)

		res, err := env.svc.AddAccountsToWallet(ctx, hierarchy.AddAccountsParams{
			WalletID:           walletID,
			Accounts:           []domain.Account{first},
			AccountNameBuilder: defaultWatchingName,
			SkipEventEmit:      true,
		})
		require.NoError(t, err)
		require.True(t, res.IsOverrideAccounts)
		require.Len(t, res.ExistingAccounts, 1)

		wallet, err := env.svc.GetWallet(ctx, walletID)
		require.NoError(t, err)
		require.Equal(t, 2, wallet.NextIDs.AccountGlobalNum)
		require.Equal(t, []string{first.ID}, wallet.Accounts)

		account, err := env.svc.GetAccount(ctx, first.ID)
		require.NoError(t, err)
		require.Equal(t, "Watched Account #1", account.Name)
		require.Equal(t, 1, env.events.count(domain.EventAddAccountsToWallet))
	})

	t.Run("missing network", func(t *testing.T) {
		env := newTestEnv(t)
		account := watchingAccount("0xaaa")
		account.CreateAtNetwork = ""

		_, err := env.svc.AddAccountsToWallet(ctx, hierarchy.AddAccountsParams{
			WalletID: walletID,
			Accounts: []domain.Account{account},
		})
		require.ErrorIs(t, err, domain.ErrGenericLocal)
		require.Equal(t, 0, env.count(t, domain.StoreAccount))
	})

	t.Run("wrong wallet", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.AddAccountsToWallet(ctx, hierarchy.AddAccountsParams{
			WalletID: string(domain.WalletTypeImported),
			Accounts: []domain.Account{watchingAccount("0xaaa")},
		})
		require.ErrorIs(t, err, domain.ErrGenericLocal)
	})
}

func TestImportedAccount(t *testing.T) {
	env := newTestEnv(t)
	walletID := string(domain.WalletTypeImported)
	account := domain.Account{
		ID:              domain.BuildImportedAccountID(domain.CoinTypeETH, "02abcdef", "", ""),
		CoinType:        domain.CoinTypeETH,
		Impl:            "evm",
		Pub:             "02abcdef",
		CreateAtNetwork: evmNetwork,
	}

	_, err := env.svc.AddAccountsToWallet(ctx, hierarchy.AddAccountsParams{
		WalletID: walletID,
		Accounts: []domain.Account{account},
	})
	require.ErrorIs(t, err, domain.ErrGenericLocal)

	_, err = env.svc.AddAccountsToWallet(ctx, hierarchy.AddAccountsParams{
		WalletID:       walletID,
		Accounts:       []domain.Account{account},
		ImportedSecret: []byte("private key"),
		Password:       password,
		AccountNameBuilder: func(n int) string {
			return domain.BuildDefaultSingletonAccountName(domain.WalletTypeImported, n)
		},
	})
	require.NoError(t, err)

	secret, err := env.vault.RevealCredential(ctx, account.ID, password)
	require.NoError(t, err)
	require.Equal(t, "private key", string(secret))

	require.NoError(t, env.svc.RemoveAccount(ctx, account.ID))
	require.False(t, env.credentialExists(t, account.ID))
	wallet, err := env.svc.GetWallet(ctx, walletID)
	require.NoError(t, err)
	require.Empty(t, wallet.Accounts)
	require.Nil(t, env.svc.GetAccountSafe(ctx, account.ID))
	require.Equal(t, 1, env.events.count(domain.EventAccountRemove))
}

func TestHDAccountBindsFirstEvmAddress(t *testing.T) {
	env := newTestEnv(t)
	env.createHDWallet(t, "Wallet 1")

	pathIndex := 0
	account := domain.Account{
		ID:               domain.BuildHDAccountID("hd-1", domain.FirstEVMAddressPath, "", false),
		Type:             domain.AccountTypeSimple,
		Path:             domain.FirstEVMAddressPath,
		PathIndex:        &pathIndex,
		IndexedAccountID: "hd-1--0",
		CoinType:         domain.CoinTypeETH,
		Impl:             "evm",
		Address:          "0xABCDEF",
	}
	_, err := env.svc.AddAccountsToWallet(ctx, hierarchy.AddAccountsParams{
		WalletID: "hd-1",
		Accounts: []domain.Account{account},
	})
	require.NoError(t, err)

	wallet, err := env.svc.GetWallet(ctx, "hd-1")
	require.NoError(t, err)
	require.Equal(t, "0xabcdef", wallet.FirstEvmAddress)

	idHash := domain.BuildIndexedAccountIDHash("0xabcdef", 0, "hd-1--0")
	ia, err := env.svc.GetIndexedAccountByHash(ctx, idHash)
	require.NoError(t, err)
	require.Equal(t, "hd-1--0", ia.ID)

	accounts, err := env.svc.GetAccountsByIndexedAccount(ctx, "hd-1--0")
	require.NoError(t, err)
	require.Len(t, accounts, 1)

	require.NoError(t, env.svc.RemoveIndexedAccount(ctx, "hd-1--0"))
	require.Nil(t, env.svc.GetAccountSafe(ctx, account.ID))
	_, err = env.svc.GetIndexedAccount(ctx, "hd-1--0")
	require.ErrorIs(t, err, domain.ErrRecordNotFound)

	t.Run("account of another wallet", func(t *testing.T) {
		_, err := env.svc.AddAccountsToWallet(ctx, hierarchy.AddAccountsParams{
			WalletID: "hd-2",
			Accounts: []domain.Account{account},
		})
		require.ErrorIs(t, err, domain.ErrGenericLocal)
	})

	t.Run("missing path index", func(t *testing.T) {
		invalid := account
		invalid.PathIndex = nil
		_, err := env.svc.AddAccountsToWallet(ctx, hierarchy.AddAccountsParams{
			WalletID: "hd-1",
			Accounts: []domain.Account{invalid},
		})
		require.ErrorIs(t, err, domain.ErrGenericLocal)
	})
}

func TestSetAccountName(t *testing.T) {
	t.Run("duplicate watching account", func(t *testing.T) {
		env := newTestEnv(t)
		walletID := string(domain.WalletTypeWatching)
		a, b := watchingAccount("0xaaa"), watchingAccount("0xbbb")
		_, err := env.svc.AddAccountsToWallet(ctx, hierarchy.AddAccountsParams{
			WalletID:           walletID,
			Accounts:           []domain.Account{a, b},
			AccountNameBuilder: defaultWatchingName,
		})
		require.NoError(t, err)
		itemsBefore := env.syncItems(t)

		err = env.svc.SetAccountName(ctx, hierarchy.SetAccountNameParams{
			AccountID:            b.ID,
			Name:                 "Watched Account #1",
			ShouldCheckDuplicate: true,
		})
		require.ErrorIs(t, err, domain.ErrDuplicateName)

		account, err := env.svc.GetAccount(ctx, b.ID)
		require.NoError(t, err)
		require.Equal(t, "Watched Account #2", account.Name)
		require.ElementsMatch(t, itemsBefore, env.syncItems(t))
		require.Equal(t, 0, env.events.count(domain.EventRenameAccounts))

		// Keeping its own name is not a duplicate.
		require.NoError(t, env.svc.SetAccountName(ctx, hierarchy.SetAccountNameParams{
			AccountID:            b.ID,
			Name:                 "Watched Account #2",
			ShouldCheckDuplicate: true,
		}))
	})

	t.Run("concurrent renames to the same name", func(t *testing.T) {
		env := newTestEnv(t)
		a, b := watchingAccount("0xaaa"), watchingAccount("0xbbb")
		_, err := env.svc.AddAccountsToWallet(ctx, hierarchy.AddAccountsParams{
			WalletID:           string(domain.WalletTypeWatching),
			Accounts:           []domain.Account{a, b},
			AccountNameBuilder: defaultWatchingName,
		})
		require.NoError(t, err)

		ids := []string{a.ID, b.ID}
		errs := make([]error, len(ids))
		var wg sync.WaitGroup
		for i, id := range ids {
			wg.Add(1)
			go func(i int, id string) {
				defer wg.Done()
				errs[i] = env.svc.SetAccountName(ctx, hierarchy.SetAccountNameParams{
					AccountID:            id,
					Name:                 "Shared",
					ShouldCheckDuplicate: true,
				})
			}(i, id)
		}
		wg.Wait()

		var renamed, rejected int
		for _, err := range errs {
			if err == nil {
				renamed++
				continue
			}
			require.ErrorIs(t, err, domain.ErrDuplicateName)
			rejected++
		}
		require.Equal(t, 1, renamed)
		require.Equal(t, 1, rejected)
	})

	t.Run("indexed account", func(t *testing.T) {
		env := newTestEnv(t)
		env.createHDWallet(t, "Wallet 1")
		_, err := env.svc.AddIndexedAccounts(ctx, hierarchy.AddIndexedAccountParams{
			WalletID: "hd-1", Indexes: []int{1},
		})
		require.NoError(t, err)

		err = env.svc.SetAccountName(ctx, hierarchy.SetAccountNameParams{
			IndexedAccountID:     "hd-1--1",
			Name:                 "Account #1",
			ShouldCheckDuplicate: true,
		})
		require.ErrorIs(t, err, domain.ErrDuplicateName)

		require.NoError(t, env.svc.SetAccountName(ctx, hierarchy.SetAccountNameParams{
			IndexedAccountID:     "hd-1--1",
			Name:                 "Trading",
			ShouldCheckDuplicate: true,
		}))
		ia, err := env.svc.GetIndexedAccount(ctx, "hd-1--1")
		require.NoError(t, err)
		require.Equal(t, "Trading", ia.Name)
		require.Equal(t, 1, env.events.count(domain.EventRenameAccounts))

		var renamed bool
		for _, item := range env.syncItems(t) {
			if item.DataType == domain.SyncDataTypeIndexedAccount && item.DataTime != domain.GenesisTime {
				renamed = true
			}
		}
		require.True(t, renamed)
	})

	t.Run("both ids", func(t *testing.T) {
		env := newTestEnv(t)
		err := env.svc.SetAccountName(ctx, hierarchy.SetAccountNameParams{
			AccountID:        "watching--60--0xaaa",
			IndexedAccountID: "hd-1--0",
			Name:             "Name",
		})
		require.ErrorIs(t, err, domain.ErrGenericLocal)
	})
}

func TestAccountOrder(t *testing.T) {
	env := newTestEnv(t)
	walletID := string(domain.WalletTypeWatching)
	a, b, c := watchingAccount("0xaaa"), watchingAccount("0xbbb"), watchingAccount("0xccc")
	_, err := env.svc.AddAccountsToWallet(ctx, hierarchy.AddAccountsParams{
		WalletID:           walletID,
		Accounts:           []domain.Account{a, b, c},
		AccountNameBuilder: defaultWatchingName,
	})
	require.NoError(t, err)

	require.NoError(t, env.svc.UpdateAccountOrder(ctx, c.ID, -1))
	accounts, err := env.svc.GetSingletonAccountsOfWallet(ctx, walletID)
	require.NoError(t, err)
	require.Equal(t, []string{c.ID, a.ID, b.ID}, accountIDs(accounts))

	require.NoError(t, env.svc.RemoveAccountsByIDs(ctx, []string{a.ID, "watching--60--0xmissing"}))
	accounts, err = env.svc.GetSingletonAccountsOfWallet(ctx, walletID)
	require.NoError(t, err)
	require.Equal(t, []string{c.ID, b.ID}, accountIDs(accounts))
}

func accountIDs(accounts []domain.Account) []string {
	ids := make([]string, 0, len(accounts))
	for _, a := range accounts {
		ids = append(ids, a.ID)
	}
	return ids
}
