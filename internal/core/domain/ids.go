package domain

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

const (
	// IDSeparator joins the components of composite record ids.
	IDSeparator = "--"

	// URLAccountID is the single watching account used for url-opened
	// sessions.
	URLAccountID = "watching--global-url-account"

	// FirstEVMAddressPath is the derivation path of the address whose hash
	// identifies an HD wallet across devices.
	FirstEVMAddressPath = "m/44'/60'/0'/0/0"
	// CoinTypeETH ...
	CoinTypeETH = "60"

	idHashLength = 42
)

// BuildHDWalletID ...
func BuildHDWalletID(nextHD int) string {
	return fmt.Sprintf("%s-%d", WalletTypeHD, nextHD)
}

// BuildHwWalletID returns hw-<dbDeviceId> for standard wallets and
// hw-<dbDeviceId>-<passphraseState> for hidden ones.
func BuildHwWalletID(dbDeviceID, passphraseState string) string {
	id := fmt.Sprintf("%s-%s", WalletTypeHW, dbDeviceID)
	if passphraseState != "" {
		id = fmt.Sprintf("%s-%s", id, passphraseState)
	}
	return id
}

// BuildQrWalletID returns qr-<dbDeviceId> for standard wallets and
// qr-<dbDeviceId>-<xfpHash> for hidden ones.
func BuildQrWalletID(dbDeviceID, xfpHash string) string {
	id := fmt.Sprintf("%s-%s", WalletTypeQR, dbDeviceID)
	if xfpHash != "" {
		id = fmt.Sprintf("%s-%s", id, xfpHash)
	}
	return id
}

// BuildParentWalletID returns the id of the standard wallet owning a hidden
// hardware or air-gapped wallet.
func BuildParentWalletID(walletType WalletType, dbDeviceID string) string {
	return fmt.Sprintf("%s-%s", walletType, dbDeviceID)
}

// BuildIndexedAccountID ...
func BuildIndexedAccountID(walletID string, index int) (string, error) {
	if index < 0 {
		return "", NewGenericLocalError("invalid indexed account index %d", index)
	}
	if walletID == "" {
		return "", NewGenericLocalError("missing wallet id for indexed account")
	}
	return fmt.Sprintf("%s%s%d", walletID, IDSeparator, index), nil
}

// ParseIndexedAccountID splits an indexed account id into its wallet id and
// index.
func ParseIndexedAccountID(id string) (string, int, error) {
	parts := strings.Split(id, IDSeparator)
	if len(parts) < 2 {
		return "", 0, NewGenericLocalError("invalid indexed account id %q", id)
	}
	index, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil || index < 0 {
		return "", 0, NewGenericLocalError("invalid indexed account id %q", id)
	}
	walletID := strings.Join(parts[:len(parts)-1], IDSeparator)
	return walletID, index, nil
}

// BuildImportedAccountID ...
func BuildImportedAccountID(coinType, pub, addressEncoding, address string) string {
	return joinID(string(WalletTypeImported), coinType, pub, addressEncoding, address)
}

// BuildWatchingAccountID ...
func BuildWatchingAccountID(coinType, xpubOrAddress, addressEncoding string) string {
	return joinID(string(WalletTypeWatching), coinType, xpubOrAddress, addressEncoding)
}

// BuildExternalAccountID ...
func BuildExternalAccountID(connectionID string) string {
	return joinID(string(WalletTypeExternal), connectionID)
}

// BuildHDAccountID builds the id of an account derived from an HD, hardware
// or air-gapped wallet. For utxo accounts a trailing /0/0 is stripped so the
// id refers to the account level path.
func BuildHDAccountID(walletID, path, suffix string, isUtxo bool) string {
	if isUtxo {
		path = strings.TrimSuffix(path, "/0/0")
	}
	return joinID(walletID, path, suffix)
}

// WalletIDFromAccountID returns the wallet id part of an account or
// indexed account id.
func WalletIDFromAccountID(accountID string) string {
	return strings.SplitN(accountID, IDSeparator, 2)[0]
}

// WalletTypeFromID infers the wallet type from a wallet id.
func WalletTypeFromID(walletID string) WalletType {
	switch {
	case walletID == string(WalletTypeWatching):
		return WalletTypeWatching
	case walletID == string(WalletTypeImported):
		return WalletTypeImported
	case walletID == string(WalletTypeExternal):
		return WalletTypeExternal
	case strings.HasPrefix(walletID, string(WalletTypeHD)+"-"):
		return WalletTypeHD
	case strings.HasPrefix(walletID, string(WalletTypeHW)+"-"):
		return WalletTypeHW
	case strings.HasPrefix(walletID, string(WalletTypeQR)+"-"):
		return WalletTypeQR
	default:
		return ""
	}
}

// BuildIndexedAccountIDHash returns the content hash of an indexed account
// used to match it across devices.
func BuildIndexedAccountIDHash(firstEvmAddress string, index int, id string) string {
	src := id
	if firstEvmAddress != "" {
		src = fmt.Sprintf("%s%s%d", strings.ToLower(firstEvmAddress), IDSeparator, index)
	}
	h := Sha256Hex(src)
	return h[len(h)-idHashLength:]
}

// Sha256Hex ...
func Sha256Hex(s string) string {
	return hex.EncodeToString(chainhash.HashB([]byte(s)))
}

func joinID(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, IDSeparator)
}
