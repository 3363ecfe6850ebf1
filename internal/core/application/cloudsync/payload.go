package cloudsync

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tdex-network/walletdb/internal/core/domain"
)

// ErrTargetNotSyncable is returned for entities that have no cross-device
// identity, like a hardware wallet whose device is unknown.
var ErrTargetNotSyncable = errors.New("target is not syncable")

// rawData is the plaintext envelope of a sync item. Encrypted, it becomes the
// item data.
type rawData struct {
	DataType domain.SyncDataType `json:"dataType"`
	RawKey   string              `json:"rawKey"`
	Payload  json.RawMessage     `json:"payload"`
}

// WalletPayload identifies a wallet across devices and carries its display
// settings.
type WalletPayload struct {
	WalletType      domain.WalletType  `json:"walletType"`
	HDWalletHash    string             `json:"hdWalletHash,omitempty"`
	RawDeviceID     string             `json:"rawDeviceId,omitempty"`
	DeviceType      domain.DeviceType  `json:"deviceType,omitempty"`
	PassphraseState string             `json:"passphraseState,omitempty"`
	Xfp             string             `json:"xfp,omitempty"`
	Name            string             `json:"name"`
	Avatar          *domain.AvatarInfo `json:"avatar,omitempty"`
}

// IndexedAccountPayload ...
type IndexedAccountPayload struct {
	Wallet WalletPayload `json:"wallet"`
	Index  int           `json:"index"`
	Name   string        `json:"name"`
}

// AccountPayload describes an account of a singleton wallet.
type AccountPayload struct {
	AccountID string            `json:"accountId"`
	WalletID  string            `json:"walletId"`
	Name      string            `json:"name"`
	Type      domain.WalletType `json:"walletType"`
}

// LockPayload records the password epoch of the account on the server.
type LockPayload struct {
	PwdHash   string `json:"pwdHash"`
	CreatedAt int64  `json:"createdAt"`
}

// BrowserBookmarkPayload is an opaque settings entry. The sync item is its
// only local store.
type BrowserBookmarkPayload struct {
	URL       string  `json:"url"`
	Title     string  `json:"title"`
	Logo      string  `json:"logo,omitempty"`
	SortIndex float64 `json:"sortIndex,omitempty"`
}

// WalletTarget is a wallet with the device it is associated to, if any.
type WalletTarget struct {
	Wallet domain.Wallet
	Device *domain.Device
}

type IndexedAccountTarget struct {
	IndexedAccount domain.IndexedAccount
	Wallet         domain.Wallet
	Device         *domain.Device
}

type AccountTarget struct {
	Account domain.Account
}

type LockTarget struct {
	Lock LockPayload
}

type BrowserBookmarkTarget struct {
	Bookmark BrowserBookmarkPayload
}

func walletRawKey(p WalletPayload) (string, error) {
	switch p.WalletType {
	case domain.WalletTypeHD:
		if p.HDWalletHash == "" {
			return "", ErrTargetNotSyncable
		}
		return joinRawKey(string(p.WalletType), p.HDWalletHash), nil
	case domain.WalletTypeHW:
		if p.RawDeviceID == "" {
			return "", ErrTargetNotSyncable
		}
		return joinRawKey(string(p.WalletType), p.RawDeviceID, p.PassphraseState), nil
	case domain.WalletTypeQR:
		if p.RawDeviceID == "" || p.Xfp == "" {
			return "", ErrTargetNotSyncable
		}
		return joinRawKey(string(p.WalletType), p.RawDeviceID, p.Xfp), nil
	default:
		return "", ErrTargetNotSyncable
	}
}

func buildWalletPayload(wallet domain.Wallet, device *domain.Device) (WalletPayload, error) {
	if wallet.IsTemp || wallet.IsMocked {
		return WalletPayload{}, ErrTargetNotSyncable
	}
	payload := WalletPayload{
		WalletType:      wallet.Type,
		HDWalletHash:    wallet.Hash,
		PassphraseState: wallet.PassphraseState,
		Xfp:             wallet.Xfp,
		Name:            wallet.Name,
		Avatar:          domain.ParseAvatar(wallet.Avatar),
	}
	if wallet.Type.IsHardware() {
		if device == nil {
			return WalletPayload{}, ErrTargetNotSyncable
		}
		payload.RawDeviceID = device.DeviceID
		payload.DeviceType = device.DeviceType
	}
	if wallet.Type != domain.WalletTypeQR {
		payload.Xfp = ""
	}
	return payload, nil
}

func walletTargetRawKey(t WalletTarget) (string, error) {
	payload, err := buildWalletPayload(t.Wallet, t.Device)
	if err != nil {
		return "", err
	}
	return walletRawKey(payload)
}

func walletTargetPayload(t WalletTarget) (WalletPayload, error) {
	return buildWalletPayload(t.Wallet, t.Device)
}

func indexedAccountTargetPayload(t IndexedAccountTarget) (IndexedAccountPayload, error) {
	wallet, err := buildWalletPayload(t.Wallet, t.Device)
	if err != nil {
		return IndexedAccountPayload{}, err
	}
	return IndexedAccountPayload{
		Wallet: wallet,
		Index:  t.IndexedAccount.Index,
		Name:   t.IndexedAccount.Name,
	}, nil
}

func indexedAccountTargetRawKey(t IndexedAccountTarget) (string, error) {
	payload, err := indexedAccountTargetPayload(t)
	if err != nil {
		return "", err
	}
	return IndexedAccountRawKey(payload)
}

// IndexedAccountRawKey returns <walletRawKey>--<index>.
func IndexedAccountRawKey(p IndexedAccountPayload) (string, error) {
	walletKey, err := walletRawKey(p.Wallet)
	if err != nil {
		return "", err
	}
	return joinRawKey(walletKey, strconv.Itoa(p.Index)), nil
}

func accountTargetPayload(t AccountTarget) (AccountPayload, error) {
	walletType := domain.WalletTypeFromID(t.Account.WalletID())
	if !walletType.IsSingleton() || t.Account.IsURLAccount() {
		return AccountPayload{}, ErrTargetNotSyncable
	}
	return AccountPayload{
		AccountID: t.Account.ID,
		WalletID:  t.Account.WalletID(),
		Name:      t.Account.Name,
		Type:      walletType,
	}, nil
}

func accountTargetRawKey(t AccountTarget) (string, error) {
	payload, err := accountTargetPayload(t)
	if err != nil {
		return "", err
	}
	return payload.AccountID, nil
}

func lockTargetRawKey(LockTarget) (string, error) {
	return domain.LockSyncItemKey, nil
}

func lockTargetPayload(t LockTarget) (LockPayload, error) {
	return t.Lock, nil
}

func bookmarkTargetRawKey(t BrowserBookmarkTarget) (string, error) {
	if t.Bookmark.URL == "" {
		return "", fmt.Errorf("%w: missing bookmark url", ErrTargetNotSyncable)
	}
	return t.Bookmark.URL, nil
}

func bookmarkTargetPayload(t BrowserBookmarkTarget) (BrowserBookmarkPayload, error) {
	return t.Bookmark, nil
}

func joinRawKey(parts ...string) string {
	return strings.Join(parts, domain.IDSeparator)
}
