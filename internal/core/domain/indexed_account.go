package domain

import (
	"fmt"
	"sort"
)

// MaxHDIndexProbes bounds the linear scan looking for the next free HD index.
const MaxHDIndexProbes = 1000

// IndexedAccount groups the chain accounts derived at the same HD index.
type IndexedAccount struct {
	ID         string   `json:"id"`
	WalletID   string   `json:"walletId"`
	Index      int      `json:"index"`
	IDHash     string   `json:"idHash"`
	Name       string   `json:"name"`
	OrderSaved *float64 `json:"orderSaved,omitempty"`
}

func (a IndexedAccount) RecordID() string { return a.ID }

// Order is orderSaved ?? index.
func (a IndexedAccount) Order() float64 {
	if a.OrderSaved != nil {
		return *a.OrderSaved
	}
	return float64(a.Index)
}

// SortIndexedAccounts ...
func SortIndexedAccounts(accounts []IndexedAccount) {
	sort.SliceStable(accounts, func(i, j int) bool {
		oi, oj := accounts[i].Order(), accounts[j].Order()
		if oi != oj {
			return oi < oj
		}
		return accounts[i].Index < accounts[j].Index
	})
}

// BuildDefaultIndexedAccountName ...
func BuildDefaultIndexedAccountName(index int) string {
	return fmt.Sprintf("Account #%d", index+1)
}

// NewIndexedAccount builds the record for the given wallet and index with
// the default name when none is provided.
func NewIndexedAccount(wallet Wallet, index int, name string) (*IndexedAccount, error) {
	id, err := BuildIndexedAccountID(wallet.ID, index)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = BuildDefaultIndexedAccountName(index)
	}
	return &IndexedAccount{
		ID:       id,
		WalletID: wallet.ID,
		Index:    index,
		IDHash:   BuildIndexedAccountIDHash(wallet.FirstEvmAddress, index, id),
		Name:     name,
	}, nil
}
