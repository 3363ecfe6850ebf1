package domain

// DeviceType ...
type DeviceType string

const (
	DeviceTypeClassic DeviceType = "classic"
	DeviceTypeMini    DeviceType = "mini"
	DeviceTypeTouch   DeviceType = "touch"
	DeviceTypePro     DeviceType = "pro"
	DeviceTypeQR      DeviceType = "qr"
	DeviceTypeUnknown DeviceType = "unknown"
)

// TransportType is the transport a hardware device was connected through.
type TransportType string

const (
	TransportUSB TransportType = "usb"
	TransportBLE TransportType = "ble"
	TransportQR  TransportType = "qr"
)

// Device is a hardware or air-gapped device bound to the local database.
type Device struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	DeviceID          string     `json:"deviceId"`
	UUID              string     `json:"uuid"`
	DeviceType        DeviceType `json:"deviceType"`
	ConnectID         string     `json:"connectId"`
	USBConnectID      string     `json:"usbConnectId,omitempty"`
	BLEConnectID      string     `json:"bleConnectId,omitempty"`
	FeaturesRaw       string     `json:"featuresRaw"`
	SettingsRaw       string     `json:"settingsRaw"`
	VerifiedAtVersion string     `json:"verifiedAtVersion,omitempty"`
	CreatedAt         int64      `json:"createdAt"`
	UpdatedAt         int64      `json:"updatedAt"`
}

func (d Device) RecordID() string { return d.ID }

// DefaultDeviceSettingsRaw ...
const DefaultDeviceSettingsRaw = `{"inputPinOnSoftware":true}`

// DeviceQuery is a composite lookup. Every non empty predicate must match.
type DeviceQuery struct {
	ConnectID        string
	FeaturesDeviceID string
	UUID             string
}

func (q DeviceQuery) IsEmpty() bool {
	return q.ConnectID == "" && q.FeaturesDeviceID == "" && q.UUID == ""
}

// Match returns whether the device satisfies every supplied predicate.
func (q DeviceQuery) Match(d Device) bool {
	if q.IsEmpty() {
		return false
	}
	if q.ConnectID != "" &&
		d.ConnectID != q.ConnectID &&
		d.USBConnectID != q.ConnectID &&
		d.BLEConnectID != q.ConnectID {
		return false
	}
	if q.FeaturesDeviceID != "" && d.DeviceID != q.FeaturesDeviceID {
		return false
	}
	if q.UUID != "" && d.UUID != q.UUID {
		return false
	}
	return true
}
