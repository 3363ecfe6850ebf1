package hierarchy

import (
	"github.com/tdex-network/walletdb/internal/core/domain"
	"github.com/tdex-network/walletdb/internal/core/ports"
)

// GetWalletsOpts ...
type GetWalletsOpts struct {
	// IncludeAllPassphraseWallets lists temp hidden wallets too.
	IncludeAllPassphraseWallets        bool
	IgnoreEmptySingletonWalletAccounts bool
	IgnoreNonBackedUpWallets           bool
	// NestedHiddenWallets moves hidden wallets into the HiddenWallets list
	// of their parent.
	NestedHiddenWallets bool
	IncludingAccounts   bool
}

// CreateHDWalletParams ...
type CreateHDWalletParams struct {
	// Password is asked through the prompt when empty.
	Password string
	Name     string
	Avatar   *domain.AvatarInfo
	Backuped bool
	Seed     domain.HDSeed
	// Hash identifies the mnemonic across devices.
	Hash string
	Xfp  string
	// FirstEvmAddress seeds the id hash of the indexed accounts.
	FirstEvmAddress string
}

// CreateHwWalletParams ...
type CreateHwWalletParams struct {
	Name      string
	ConnectID string
	// Features are read from the device adapter when nil.
	Features        *ports.DeviceFeatures
	PassphraseState string
	Xfp             string
	// FirstEvmAddress is read from the device adapter when empty.
	FirstEvmAddress          string
	IsFirmwareVerified       bool
	DefaultIsTemp            bool
	IsMockedStandardHwWallet bool
}

// QrDevice is the identity an air-gapped device exports.
type QrDevice struct {
	DeviceID string
	// Name is "<device name>[:<serial>][-<passphrase state>]".
	Name string
	Xfp  string
}

// CreateQrWalletParams ...
type CreateQrWalletParams struct {
	Device                   QrDevice
	FullXfp                  string
	AirGapAccountsInfoRaw    string
	IsMockedStandardHwWallet bool
	ExistingDeviceID         string
}

// CreateWalletResult ...
type CreateWalletResult struct {
	Wallet domain.Wallet
	// IndexedAccount is the first indexed account, nil for mocked wallets.
	IndexedAccount   *domain.IndexedAccount
	Device           *domain.Device
	IsOverrideWallet bool
}

// RemoveWalletParams ...
type RemoveWalletParams struct {
	WalletID string
	// IsRemoveToMocked keeps a standard hardware wallet as a mocked one.
	IsRemoveToMocked bool
}

// SetWalletNameAndAvatarParams ...
type SetWalletNameAndAvatarParams struct {
	WalletID              string
	Name                  string
	Avatar                *domain.AvatarInfo
	ShouldCheckDuplicate  bool
	SkipSaveLocalSyncItem bool
}

// AddAccountsParams ...
type AddAccountsParams struct {
	WalletID string
	Accounts []domain.Account
	// ImportedSecret is the private key of an imported account. It is
	// stored encrypted under Password, asked through the prompt when empty.
	ImportedSecret []byte
	Password       string
	// NetworkID is the network of the addresses to index.
	NetworkID string
	// AccountNameBuilder names the new singleton accounts without a name,
	// given the next account number.
	AccountNameBuilder func(nextAccountID int) string
	SkipEventEmit      bool
}

// AddAccountsResult ...
type AddAccountsResult struct {
	IsOverrideAccounts bool
	ExistingAccounts   []domain.Account
}

// SetAccountNameParams renames either a chain account or an indexed
// account.
type SetAccountNameParams struct {
	AccountID             string
	IndexedAccountID      string
	Name                  string
	ShouldCheckDuplicate  bool
	SkipSaveLocalSyncItem bool
}

// AddIndexedAccountParams ...
type AddIndexedAccountParams struct {
	WalletID string
	Indexes  []int
	// Names optionally maps an index to its name.
	Names        map[int]string
	SkipIfExists bool
}
