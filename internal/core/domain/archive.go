package domain

import "strconv"

// SignedMessage is an archived record of a signed message.
type SignedMessage struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Favicon   string `json:"favicon,omitempty"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	Address   string `json:"address"`
	NetworkID string `json:"networkId"`
	CreatedAt int64  `json:"createdAt"`
}

func (m SignedMessage) RecordID() string { return m.ID }

// SignedTransaction is an archived record of a signed transaction.
type SignedTransaction struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Hash      string `json:"hash"`
	Address   string `json:"address"`
	NetworkID string `json:"networkId"`
	Data      string `json:"data"`
	CreatedAt int64  `json:"createdAt"`
}

func (t SignedTransaction) RecordID() string { return t.ID }

// ConnectedSite is an archived record of a dApp connection.
type ConnectedSite struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Items     string `json:"items"`
	CreatedAt int64  `json:"createdAt"`
}

func (c ConnectedSite) RecordID() string { return c.ID }

// HardwareHomeScreen stores a custom device home screen image. Its id is
// <deviceId>--<name>.
type HardwareHomeScreen struct {
	ID            string `json:"id"`
	DeviceID      string `json:"deviceId"`
	Name          string `json:"name"`
	WallpaperType string `json:"wallpaperType,omitempty"`
	ResType       string `json:"resType,omitempty"`
	URL           string `json:"url,omitempty"`
	NameHex       string `json:"nameHex,omitempty"`
	ScreenHex     string `json:"screenHex,omitempty"`
	ThumbnailHex  string `json:"thumbnailHex,omitempty"`
	BlurScreenHex string `json:"blurScreenHex,omitempty"`
	CreatedAt     int64  `json:"createdAt"`
}

func (h HardwareHomeScreen) RecordID() string { return h.ID }

// BuildHomeScreenID ...
func BuildHomeScreenID(deviceID, name string) string {
	return deviceID + IDSeparator + name
}

// BuildArchiveID formats a Context counter as an archive record id.
func BuildArchiveID(next int) string {
	return strconv.Itoa(next)
}
