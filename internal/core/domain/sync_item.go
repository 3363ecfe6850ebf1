package domain

import "time"

// SyncDataType is the entity type a sync item describes.
type SyncDataType string

const (
	SyncDataTypeLock            SyncDataType = "Lock"
	SyncDataTypeWallet          SyncDataType = "Wallet"
	SyncDataTypeAccount         SyncDataType = "Account"
	SyncDataTypeIndexedAccount  SyncDataType = "IndexedAccount"
	SyncDataTypeBrowserBookmark SyncDataType = "BrowserBookmark"
)

// GenesisTime is the dataTime of items created with a system default name:
// any item written by another device wins over it.
const GenesisTime int64 = 1

// LockSyncItemKey is the fixed key of the password-change lock item.
const LockSyncItemKey = "lock"

// CloudSyncItem is the encrypted, timestamped unit replicated to the sync
// service.
type CloudSyncItem struct {
	ID                string       `json:"id"`
	DataType          SyncDataType `json:"dataType"`
	RawKey            string       `json:"rawKey,omitempty"`
	RawData           string       `json:"rawData,omitempty"`
	Data              string       `json:"data,omitempty"`
	DataTime          int64        `json:"dataTime,omitempty"`
	IsDeleted         bool         `json:"isDeleted"`
	PwdHash           string       `json:"pwdHash"`
	LocalSceneUpdated bool         `json:"localSceneUpdated"`
	ServerUploaded    bool         `json:"serverUploaded"`
}

func (c CloudSyncItem) RecordID() string { return c.ID }

// IsUploadable returns whether the item can be sent under the given epoch.
func (c CloudSyncItem) IsUploadable(pwdHash string) bool {
	return (c.Data != "" || c.IsDeleted) && pwdHash != "" && c.PwdHash == pwdHash
}

// ShouldAcceptSyncItem implements last-writer-wins within a password epoch.
// A password hash mismatch always forces the incoming item in, as does an
// incoming item carrying data for a local one that has none yet.
func ShouldAcceptSyncItem(local *CloudSyncItem, incoming CloudSyncItem) bool {
	if local == nil {
		return true
	}
	if local.PwdHash != incoming.PwdHash {
		return true
	}
	if incoming.DataTime >= local.DataTime {
		return true
	}
	return local.Data == "" && incoming.PwdHash != "" && incoming.Data != ""
}

// MergeSyncItem returns the item to persist and whether the incoming one was
// accepted. When rejected the local item is returned unchanged. An accepted
// item keeps the local key fields and, if it has none, the local dataTime.
func MergeSyncItem(local *CloudSyncItem, incoming CloudSyncItem) (CloudSyncItem, bool) {
	if !ShouldAcceptSyncItem(local, incoming) {
		return *local, false
	}
	if local == nil {
		return incoming, true
	}
	merged := incoming
	merged.ID = local.ID
	if local.RawKey != "" {
		merged.RawKey = local.RawKey
	}
	if local.DataType != "" {
		merged.DataType = local.DataType
	}
	if merged.DataTime == 0 {
		merged.DataTime = local.DataTime
	}
	return merged, true
}

// NowMillis ...
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
