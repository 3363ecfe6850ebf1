package domain

import "strings"

const (
	// ImplEVM is the implementation shared by every evm network.
	ImplEVM = "evm"
	// ImplAllNetwork is the implementation of the aggregated pseudo network.
	ImplAllNetwork = "onekeyall"
)

// Address is an entry of the address reverse index.
type Address struct {
	ID string `json:"id"`
	// Wallets maps a wallet id to the indexed account id, or account id, that
	// owns the address in that wallet.
	Wallets map[string]string `json:"wallets"`
}

func (a Address) RecordID() string { return a.ID }

// BuildAddressRecordID ...
func BuildAddressRecordID(networkIDOrImpl, address string) string {
	return networkIDOrImpl + IDSeparator + NormalizeAddress(networkIDOrImpl, address)
}

// NormalizeAddress lowercases the hex addresses of evm networks, whose
// checksum casing is only a display concern. Other addresses are case
// sensitive and returned as is.
func NormalizeAddress(networkIDOrImpl, address string) string {
	if NetworkImpl(networkIDOrImpl) == ImplEVM {
		return strings.ToLower(address)
	}
	return address
}

// NetworkImpl returns the implementation part of a network id
// (<impl>--<chainId>).
func NetworkImpl(networkID string) string {
	return strings.SplitN(networkID, IDSeparator, 2)[0]
}

// IsAllNetwork ...
func IsAllNetwork(networkID string) bool {
	return NetworkImpl(networkID) == ImplAllNetwork
}
