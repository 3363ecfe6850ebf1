package ports

import (
	"context"

	"github.com/tdex-network/walletdb/internal/core/domain"
)

// SyncServerItem is the representation of a sync item on the wire.
type SyncServerItem struct {
	Key           string              `json:"key"`
	DataType      domain.SyncDataType `json:"dataType"`
	Data          string              `json:"data"`
	DataTimestamp int64               `json:"dataTimestamp"`
	IsDeleted     bool                `json:"isDeleted"`
	PwdHash       string              `json:"pwdHash"`
}

// SyncCheckItem is an entry of the local index sent to Check.
type SyncCheckItem struct {
	Key           string              `json:"key"`
	DataTimestamp int64               `json:"dataTimestamp"`
	DataType      domain.SyncDataType `json:"dataType"`
}

// SyncCheckResult categorizes the local index against the server state.
type SyncCheckResult struct {
	Diff    []SyncServerItem `json:"diff"`
	Updated []SyncServerItem `json:"updated"`
	// Deleted and Obsoleted hold the keys of the local items the server
	// deleted or holds an older version of.
	Deleted    []string `json:"deleted"`
	Obsoleted  []string `json:"obsoleted"`
	PwdHash    string   `json:"pwdHash"`
	ServerTime int64    `json:"serverTime"`
}

// SyncUploadResult ...
type SyncUploadResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// SyncDownloadResult ...
type SyncDownloadResult struct {
	Items   []SyncServerItem `json:"items"`
	PwdHash string           `json:"pwdHash"`
	Total   int              `json:"total"`
}

// SyncLock is the password-change lock record.
type SyncLock struct {
	Key     string `json:"key"`
	Data    string `json:"data"`
	PwdHash string `json:"pwdHash"`
	Nonce   string `json:"nonce"`
}

// CloudSyncClient is the remote sync service.
type CloudSyncClient interface {
	Check(ctx context.Context, items []SyncCheckItem, isFullDBCheck bool) (*SyncCheckResult, error)
	Upload(
		ctx context.Context, items []SyncServerItem, pwdHash string, lock *SyncServerItem,
	) (*SyncUploadResult, error)
	Download(
		ctx context.Context, start, limit int, includeDeleted bool, pwdHash string,
	) (*SyncDownloadResult, error)
	// Flush replaces the whole server state. A nil lock with no items resets
	// the account.
	Flush(ctx context.Context, items []SyncServerItem, pwdHash string, lock *SyncServerItem) error
	GetLock(ctx context.Context) (*SyncLock, error)
	PostLock(ctx context.Context, lock SyncLock) error
}
