package domain

const (
	// MainContextID is the id of the singleton Context record.
	MainContextID = "mainContext"
	// DefaultVerifyString is the sentinel encrypted under the user password
	// to verify it.
	DefaultVerifyString = "walletdb-verify-sentinel"
)

// Context holds the global counters of the local database.
type Context struct {
	ID                         string `json:"id"`
	NextHD                     int    `json:"nextHD"`
	NextWalletNo               int    `json:"nextWalletNo"`
	NextSignatureMessageID     int    `json:"nextSignatureMessageId"`
	NextSignatureTransactionID int    `json:"nextSignatureTransactionId"`
	NextConnectedSiteID        int    `json:"nextConnectedSiteId"`
	VerifyString               string `json:"verifyString"`
	BackupUUID                 string `json:"backupUUID"`
}

func (c Context) RecordID() string { return c.ID }

// NewContext returns the initial context written on first open.
func NewContext(backupUUID string) *Context {
	return &Context{
		ID:                         MainContextID,
		NextHD:                     1,
		NextWalletNo:               1,
		NextSignatureMessageID:     1,
		NextSignatureTransactionID: 1,
		NextConnectedSiteID:        1,
		BackupUUID:                 backupUUID,
	}
}

// IsPasswordSet returns whether a verification ciphertext exists.
func (c Context) IsPasswordSet() bool {
	return c.VerifyString != ""
}
