package domain

import (
	"fmt"
	"strings"
)

// AccountType ...
type AccountType string

const (
	AccountTypeSimple  AccountType = "simple"
	AccountTypeUtxo    AccountType = "utxo"
	AccountTypeVariant AccountType = "variant"
)

// Account is a chain account. Shape specific fields are left empty when
// not relevant to the account type.
type Account struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Type              AccountType       `json:"type,omitempty"`
	Path              string            `json:"path"`
	PathIndex         *int              `json:"pathIndex,omitempty"`
	RelPath           string            `json:"relPath,omitempty"`
	IndexedAccountID  string            `json:"indexedAccountId,omitempty"`
	CoinType          string            `json:"coinType"`
	Impl              string            `json:"impl"`
	Networks          []string          `json:"networks,omitempty"`
	CreateAtNetwork   string            `json:"createAtNetwork,omitempty"`
	Template          string            `json:"template,omitempty"`
	AccountOrderSaved *float64          `json:"accountOrderSaved,omitempty"`
	Pub               string            `json:"pub,omitempty"`
	Xpub              string            `json:"xpub,omitempty"`
	XpubSegwit        string            `json:"xpubSegwit,omitempty"`
	Address           string            `json:"address,omitempty"`
	Addresses         map[string]string `json:"addresses,omitempty"`
	CustomAddresses   map[string]string `json:"customAddresses,omitempty"`

	ConnectionInfoRaw  string              `json:"connectionInfoRaw,omitempty"`
	ConnectedAddresses map[string][]string `json:"connectedAddresses,omitempty"`
	SelectedAddress    map[string]int      `json:"selectedAddress,omitempty"`
}

func (a Account) RecordID() string { return a.ID }

func (a Account) WalletID() string {
	return WalletIDFromAccountID(a.ID)
}

func (a Account) IsURLAccount() bool {
	return a.ID == URLAccountID
}

// IsExternal ...
func (a Account) IsExternal() bool {
	return a.ConnectionInfoRaw != "" || strings.HasPrefix(a.ID, string(WalletTypeExternal)+IDSeparator)
}

// Validate checks the invariants of an account for the given wallet type.
func (a Account) Validate(walletType WalletType) error {
	if a.ID == "" {
		return NewGenericLocalError("account id is required")
	}
	switch {
	case walletType.HasIndexedAccounts():
		if a.IndexedAccountID == "" || a.PathIndex == nil {
			return NewGenericLocalError(
				"account %s of %s wallet requires indexedAccountId and pathIndex",
				a.ID, walletType,
			)
		}
	case walletType == WalletTypeImported || walletType == WalletTypeWatching:
		if a.CreateAtNetwork == "" && !a.IsURLAccount() {
			return NewGenericLocalError(
				"account %s of %s wallet requires createAtNetwork", a.ID, walletType,
			)
		}
	}
	return nil
}

// BuildDefaultSingletonAccountName returns "<main name> #<n>".
func BuildDefaultSingletonAccountName(walletType WalletType, nextAccountID int) string {
	return fmt.Sprintf("%s #%d", singletonAccountNamePrefix(walletType), nextAccountID)
}

func singletonAccountNamePrefix(t WalletType) string {
	switch t {
	case WalletTypeImported:
		return "Private Key"
	case WalletTypeWatching:
		return "Watched Account"
	default:
		return "External Account"
	}
}
