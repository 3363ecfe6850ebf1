package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// WalletType ...
type WalletType string

const (
	WalletTypeHD       WalletType = "hd"
	WalletTypeHW       WalletType = "hw"
	WalletTypeQR       WalletType = "qr"
	WalletTypeImported WalletType = "imported"
	WalletTypeWatching WalletType = "watching"
	WalletTypeExternal WalletType = "external"
)

// hiddenOrderDivisor places hidden wallets in their parent's order band.
var hiddenOrderDivisor = decimal.NewFromInt(1_000_000)

// SingletonWalletTypes are the fixed wallets holding an explicit account list.
var SingletonWalletTypes = []WalletType{
	WalletTypeWatching, WalletTypeImported, WalletTypeExternal,
}

func (t WalletType) IsSingleton() bool {
	return t == WalletTypeWatching || t == WalletTypeImported || t == WalletTypeExternal
}

func (t WalletType) IsHardware() bool {
	return t == WalletTypeHW || t == WalletTypeQR
}

// HasIndexedAccounts returns whether wallets of this type derive accounts by
// index.
func (t WalletType) HasIndexedAccounts() bool {
	return t == WalletTypeHD || t.IsHardware()
}

// WalletNextIDs holds the per wallet counters.
type WalletNextIDs struct {
	AccountHdIndex   int `json:"accountHdIndex"`
	AccountGlobalNum int `json:"accountGlobalNum"`
	HiddenWalletNum  int `json:"hiddenWalletNum"`
}

// AvatarInfo is the decoded form of Wallet.Avatar.
type AvatarInfo struct {
	Img string `json:"img,omitempty"`
	Bg  string `json:"bg,omitempty"`
}

// Wallet ...
type Wallet struct {
	ID                    string        `json:"id"`
	Name                  string        `json:"name"`
	Avatar                string        `json:"avatar,omitempty"`
	Type                  WalletType    `json:"type"`
	Backuped              bool          `json:"backuped"`
	Accounts              []string      `json:"accounts"`
	NextIDs               WalletNextIDs `json:"nextIds"`
	AssociatedDevice      string        `json:"associatedDevice,omitempty"`
	IsTemp                bool          `json:"isTemp"`
	PassphraseState       string        `json:"passphraseState,omitempty"`
	Hash                  string        `json:"hash,omitempty"`
	Xfp                   string        `json:"xfp,omitempty"`
	FirstEvmAddress       string        `json:"firstEvmAddress,omitempty"`
	IsMocked              bool          `json:"isMocked"`
	Deprecated            bool          `json:"deprecated"`
	WalletNo              int           `json:"walletNo"`
	WalletOrderSaved      *float64      `json:"walletOrderSaved,omitempty"`
	AirGapAccountsInfoRaw string        `json:"airGapAccountsInfoRaw,omitempty"`

	WalletOrder   decimal.Decimal `json:"-"`
	AvatarInfo    *AvatarInfo     `json:"-"`
	HiddenWallets []Wallet        `json:"-"`
	// filled by listings requesting the accounts
	DBIndexedAccounts []IndexedAccount `json:"-"`
	DBAccounts        []Account        `json:"-"`
}

func (w Wallet) RecordID() string { return w.ID }

// UnmarshalJSON migrates the legacy nextAccountIds map into NextIDs.
func (w *Wallet) UnmarshalJSON(buf []byte) error {
	type alias Wallet
	aux := struct {
		*alias
		NextAccountIDs map[string]int `json:"nextAccountIds,omitempty"`
	}{alias: (*alias)(w)}
	if err := json.Unmarshal(buf, &aux); err != nil {
		return err
	}
	if global, ok := aux.NextAccountIDs["global"]; ok && w.NextIDs.AccountGlobalNum == 0 {
		w.NextIDs.AccountGlobalNum = global
	}
	if index, ok := aux.NextAccountIDs["index"]; ok && w.NextIDs.AccountHdIndex == 0 {
		w.NextIDs.AccountHdIndex = index
	}
	return nil
}

// IsHidden returns whether the wallet is a passphrase wallet nested under a
// standard hardware or air-gapped wallet.
func (w Wallet) IsHidden() bool {
	return w.Type.IsHardware() && w.PassphraseState != ""
}

// ParentWalletID returns the id of the standard wallet of a hidden one, or
// an empty string.
func (w Wallet) ParentWalletID() string {
	if !w.IsHidden() || w.AssociatedDevice == "" {
		return ""
	}
	return BuildParentWalletID(w.Type, w.AssociatedDevice)
}

// OwnOrder is walletOrderSaved ?? walletNo.
func (w Wallet) OwnOrder() decimal.Decimal {
	if w.WalletOrderSaved != nil {
		return decimal.NewFromFloat(*w.WalletOrderSaved)
	}
	return decimal.NewFromInt(int64(w.WalletNo))
}

// HiddenWalletOrder returns the order of a hidden wallet within the band of
// its parent.
func HiddenWalletOrder(parentOrder, ownOrder decimal.Decimal) decimal.Decimal {
	return parentOrder.Add(ownOrder.Div(hiddenOrderDivisor))
}

// RefillWalletInfo computes the derived fields of every wallet: order and
// decoded avatar. Hidden wallets whose parent is in the list are placed right
// after it.
func RefillWalletInfo(wallets []Wallet) {
	byID := make(map[string]*Wallet, len(wallets))
	for i := range wallets {
		byID[wallets[i].ID] = &wallets[i]
	}
	for i := range wallets {
		w := &wallets[i]
		w.WalletOrder = w.OwnOrder()
		if parentID := w.ParentWalletID(); parentID != "" {
			if parent, ok := byID[parentID]; ok {
				w.WalletOrder = HiddenWalletOrder(parent.OwnOrder(), w.OwnOrder())
			}
		}
		w.AvatarInfo = ParseAvatar(w.Avatar)
	}
}

// SortWallets sorts by ascending effective order, ties broken by id.
func SortWallets(wallets []Wallet) {
	sort.SliceStable(wallets, func(i, j int) bool {
		if c := wallets[i].WalletOrder.Cmp(wallets[j].WalletOrder); c != 0 {
			return c < 0
		}
		return wallets[i].ID < wallets[j].ID
	})
}

// ParseAvatar decodes an avatar string, returning nil on invalid payloads.
func ParseAvatar(raw string) *AvatarInfo {
	if raw == "" {
		return nil
	}
	info := &AvatarInfo{}
	if err := json.Unmarshal([]byte(raw), info); err != nil {
		return nil
	}
	return info
}

// EncodeAvatar ...
func EncodeAvatar(info *AvatarInfo) string {
	if info == nil {
		return ""
	}
	buf, _ := json.Marshal(info)
	return string(buf)
}

// BuildDefaultHDWalletName ...
func BuildDefaultHDWalletName(nextHD int) string {
	return fmt.Sprintf("Wallet %d", nextHD)
}

// BuildDefaultHiddenWalletName ...
func BuildDefaultHiddenWalletName(hiddenWalletNum int) string {
	if hiddenWalletNum <= 0 {
		hiddenWalletNum = 1
	}
	return fmt.Sprintf("Hidden #%d", hiddenWalletNum)
}

// SingletonWalletName returns the fixed display name of a singleton wallet.
func SingletonWalletName(t WalletType) string {
	switch t {
	case WalletTypeWatching:
		return "Watchlist"
	case WalletTypeImported:
		return "Private Key"
	case WalletTypeExternal:
		return "External Account"
	default:
		return strings.ToUpper(string(t))
	}
}

// NewSingletonWallet returns the initial record of a singleton wallet.
func NewSingletonWallet(t WalletType) *Wallet {
	return &Wallet{
		ID:       string(t),
		Name:     SingletonWalletName(t),
		Type:     t,
		Backuped: true,
		Accounts: []string{},
		NextIDs:  WalletNextIDs{AccountGlobalNum: 1},
	}
}
