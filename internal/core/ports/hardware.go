package ports

import "context"

// DeviceFeatures is the subset of hardware features the data layer stores.
type DeviceFeatures struct {
	DeviceID   string `json:"deviceId"`
	UUID       string `json:"uuid"`
	Label      string `json:"label"`
	DeviceType string `json:"deviceType"`
	Version    string `json:"version"`
	Raw        string `json:"raw"`
}

// HardwareAdapter talks to a physical device. Implementations own the
// transport and any confirmation prompt shown on the device.
type HardwareAdapter interface {
	GetFeatures(ctx context.Context, connectID string) (*DeviceFeatures, error)
	BuildWalletFingerprint(
		ctx context.Context, connectID, deviceID, passphraseState string,
	) (string, error)
	GetFirstAddress(ctx context.Context, connectID, deviceID, path string) (string, error)
}
