package domain

import (
	"encoding/hex"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

const shortXfpLength = 8

// ShortXfpFromPubKey returns the BIP32 fingerprint of a compressed public key:
// the first 4 bytes of its hash160, hex encoded.
func ShortXfpFromPubKey(pubkeyHex string) (string, error) {
	buf, err := hex.DecodeString(pubkeyHex)
	if err != nil {
		return "", NewGenericLocalError("invalid public key hex")
	}
	pubkey, err := btcec.ParsePubKey(buf)
	if err != nil {
		return "", WrapGenericLocalError(err, "invalid public key")
	}
	return hex.EncodeToString(btcutil.Hash160(pubkey.SerializeCompressed())[:4]), nil
}

// ShortXfpFromXpub returns the fingerprint of the key encoded by the xpub.
// For a master xpub this is the wallet fingerprint.
func ShortXfpFromXpub(xpub string) (string, error) {
	key, err := hdkeychain.NewKeyFromString(xpub)
	if err != nil {
		return "", WrapGenericLocalError(err, "invalid extended public key")
	}
	pubkey, err := key.ECPubKey()
	if err != nil {
		return "", WrapGenericLocalError(err, "invalid extended public key")
	}
	return hex.EncodeToString(btcutil.Hash160(pubkey.SerializeCompressed())[:4]), nil
}

// BuildFullXfp disambiguates colliding short fingerprints with the first
// taproot xpub of the wallet.
func BuildFullXfp(shortXfp, firstTaprootXpub string) (string, error) {
	if len(shortXfp) != shortXfpLength {
		return "", NewGenericLocalError("invalid short xfp %q", shortXfp)
	}
	if firstTaprootXpub == "" {
		return "", NewGenericLocalError("first taproot xpub is required for full xfp")
	}
	return shortXfp + IDSeparator + firstTaprootXpub, nil
}

// ParseFullXfp ...
func ParseFullXfp(fullXfp string) (string, string) {
	parts := strings.SplitN(fullXfp, IDSeparator, 2)
	if len(parts) != 2 {
		return fullXfp, ""
	}
	return parts[0], parts[1]
}

// HashFullXfp is the suffix used in hidden air-gapped wallet ids.
func HashFullXfp(fullXfp string) string {
	return Sha256Hex(fullXfp)
}

// TransportTypeFromConnectID maps a connect id to its transport: BLE
// connect ids are MAC-like (contain ':'), everything else is USB.
func TransportTypeFromConnectID(connectID string) TransportType {
	if strings.Contains(connectID, ":") {
		return TransportBLE
	}
	return TransportUSB
}
