package domain_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/walletdb/internal/core/domain"
)

func TestIndexedAccountID(t *testing.T) {
	id, err := domain.BuildIndexedAccountID("hw-dev1-abc", 3)
	require.NoError(t, err)
	require.Equal(t, "hw-dev1-abc--3", id)

	walletID, index, err := domain.ParseIndexedAccountID(id)
	require.NoError(t, err)
	require.Equal(t, "hw-dev1-abc", walletID)
	require.Equal(t, 3, index)

	_, err = domain.BuildIndexedAccountID("hd-1", -1)
	require.ErrorIs(t, err, domain.ErrGenericLocal)

	_, _, err = domain.ParseIndexedAccountID("hd-1")
	require.Error(t, err)
}

func TestWalletIDs(t *testing.T) {
	tests := []struct {
		id       string
		expected domain.WalletType
	}{
		{domain.BuildHDWalletID(2), domain.WalletTypeHD},
		{domain.BuildHwWalletID("dev", ""), domain.WalletTypeHW},
		{domain.BuildHwWalletID("dev", "abc"), domain.WalletTypeHW},
		{domain.BuildQrWalletID("dev", domain.HashFullXfp("xfp")), domain.WalletTypeQR},
		{"imported", domain.WalletTypeImported},
		{"watching", domain.WalletTypeWatching},
		{"external", domain.WalletTypeExternal},
		{"unknown", ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.expected, domain.WalletTypeFromID(tt.id), tt.id)
	}

	require.Equal(t, "hd-2", domain.BuildHDWalletID(2))
	require.Equal(t, "hw-dev-abc", domain.BuildHwWalletID("dev", "abc"))
	require.Equal(t, "hw-dev", domain.BuildParentWalletID(domain.WalletTypeHW, "dev"))
}

func TestAccountIDs(t *testing.T) {
	require.Equal(t,
		"imported--60--0xpub",
		domain.BuildImportedAccountID("60", "0xpub", "", ""),
	)
	require.Equal(t,
		"watching--0--xpub6abc--p2wpkh",
		domain.BuildWatchingAccountID("0", "xpub6abc", "p2wpkh"),
	)
	require.Equal(t,
		"hd-1--m/84'/0'/0'",
		domain.BuildHDAccountID("hd-1", "m/84'/0'/0'/0/0", "", true),
	)
	require.Equal(t,
		"hd-1--m/44'/60'/0'/0/0",
		domain.BuildHDAccountID("hd-1", "m/44'/60'/0'/0/0", "", false),
	)
	require.Equal(t, "hd-1", domain.WalletIDFromAccountID("hd-1--m/44'/60'/0'/0/0"))
	require.Equal(t, "watching", domain.WalletIDFromAccountID(domain.URLAccountID))
}

func TestIndexedAccountIDHash(t *testing.T) {
	h1 := domain.BuildIndexedAccountIDHash("0xABCDEF", 0, "hd-1--0")
	h2 := domain.BuildIndexedAccountIDHash("0xabcdef", 0, "hd-9--0")
	require.Len(t, h1, 42)
	require.Equal(t, h1, h2)

	h3 := domain.BuildIndexedAccountIDHash("", 0, "hd-1--0")
	h4 := domain.BuildIndexedAccountIDHash("", 0, "hd-9--0")
	require.NotEqual(t, h3, h4)
}

func TestFullXfp(t *testing.T) {
	full, err := domain.BuildFullXfp("1a2b3c4d", "xpubTaproot")
	require.NoError(t, err)
	require.Equal(t, "1a2b3c4d--xpubTaproot", full)

	short, taproot := domain.ParseFullXfp(full)
	require.Equal(t, "1a2b3c4d", short)
	require.Equal(t, "xpubTaproot", taproot)

	_, err = domain.BuildFullXfp("1a2b", "xpub")
	require.Error(t, err)
	_, err = domain.BuildFullXfp("1a2b3c4d", "")
	require.Error(t, err)
}

func TestShortXfpFromXpub(t *testing.T) {
	// BIP32 test vector 1, chain m.
	xpub := "xpub661MyMwAqRbcFtXgS5sYJABqqG9YLmC4Q1Rdap9gSE8NqtwybGhePY2gZ29ESFjqJoCu1Rupje8YtGqsefD265TMg7usUDFdp6W1EGMcet8"
	xfp, err := domain.ShortXfpFromXpub(xpub)
	require.NoError(t, err)
	require.Equal(t, "3442193e", xfp)

	_, err = domain.ShortXfpFromXpub("invalid")
	require.Error(t, err)
}
