// Package cloudsync turns local mutations into encrypted, timestamped sync
// items and reconciles them with the sync service.
package cloudsync

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/walletdb/internal/core/domain"
	"github.com/tdex-network/walletdb/internal/core/ports"
	"github.com/tdex-network/walletdb/internal/storageutil/records"
	"github.com/tdex-network/walletdb/pkg/cypher"
	"github.com/tdex-network/walletdb/pkg/debounce"
	"golang.org/x/time/rate"
)

const (
	DefaultUploadDebounce   = time.Second
	DefaultThrottleInterval = time.Minute
	DefaultDownloadPageSize = 100
	DefaultRequestTimeout   = 30 * time.Second
)

// CredentialStore holds the sync password encrypted under the user password.
type CredentialStore interface {
	SetAgentCredential(ctx context.Context, name string, secret []byte, password string) error
	GetAgentCredential(ctx context.Context, name, password string) ([]byte, error)
}

// SceneApplier writes accepted server payloads to the local records. It is
// called within an account bucket transaction.
type SceneApplier interface {
	TxApplyWalletScene(tx ports.Tx, payload WalletPayload, isDeleted bool) error
	TxApplyIndexedAccountScene(tx ports.Tx, payload IndexedAccountPayload, isDeleted bool) error
	TxApplyAccountScene(tx ports.Tx, payload AccountPayload, isDeleted bool) error
}

// Config ...
type Config struct {
	Enabled bool
	// Salt is the per user account salt. Sync is disabled without it.
	Salt             string
	Params           cypher.Params
	UploadDebounce   time.Duration
	ThrottleInterval time.Duration
	DownloadPageSize int
	RequestTimeout   time.Duration
}

func (c Config) withDefaults() Config {
	if c.UploadDebounce <= 0 {
		c.UploadDebounce = DefaultUploadDebounce
	}
	if c.ThrottleInterval <= 0 {
		c.ThrottleInterval = DefaultThrottleInterval
	}
	if c.DownloadPageSize <= 0 {
		c.DownloadPageSize = DefaultDownloadPageSize
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	return c
}

// Engine is the cloud sync engine.
type Engine struct {
	db     ports.DbManager
	client ports.CloudSyncClient
	creds  CredentialStore
	prompt ports.PasswordPrompt
	bus    ports.EventBus
	cfg    Config
	keys   KeyBuilder
	now    func() int64

	lock     sync.RWMutex
	enabled  bool
	applier  SceneApplier
	cred     *Credential
	lockCred *Credential

	uploader *debounce.Batcher[string, domain.CloudSyncItem]
	throttle *rate.Limiter
	// one sync flow at a time
	flowLock sync.Mutex

	Wallets          *WalletManager
	IndexedAccounts  *IndexedAccountManager
	Accounts         *AccountManager
	Locks            *LockManager
	BrowserBookmarks *BrowserBookmarkManager
}

func NewEngine(
	db ports.DbManager,
	client ports.CloudSyncClient,
	creds CredentialStore,
	prompt ports.PasswordPrompt,
	bus ports.EventBus,
	cfg Config,
) *Engine {
	cfg = cfg.withDefaults()
	e := &Engine{
		db:       db,
		client:   client,
		creds:    creds,
		prompt:   prompt,
		bus:      bus,
		cfg:      cfg,
		keys:     NewKeyBuilder(cfg.Salt),
		now:      domain.NowMillis,
		enabled:  cfg.Enabled && cfg.Salt != "",
		throttle: rate.NewLimiter(rate.Every(cfg.ThrottleInterval), 1),
	}
	e.uploader = debounce.New(
		cfg.UploadDebounce, 0,
		func(item domain.CloudSyncItem) string { return item.ID },
		e.upload,
	)

	e.Wallets = &WalletManager{
		engine:     e,
		dataType:   domain.SyncDataTypeWallet,
		targetID:   func(t WalletTarget) string { return t.Wallet.ID },
		rawKey:     walletTargetRawKey,
		payload:    walletTargetPayload,
		credential: e.cachedCredential,
	}
	e.IndexedAccounts = &IndexedAccountManager{
		engine:     e,
		dataType:   domain.SyncDataTypeIndexedAccount,
		targetID:   func(t IndexedAccountTarget) string { return t.IndexedAccount.ID },
		rawKey:     indexedAccountTargetRawKey,
		payload:    indexedAccountTargetPayload,
		credential: e.cachedCredential,
	}
	e.Accounts = &AccountManager{
		engine:     e,
		dataType:   domain.SyncDataTypeAccount,
		targetID:   func(t AccountTarget) string { return t.Account.ID },
		rawKey:     accountTargetRawKey,
		payload:    accountTargetPayload,
		credential: e.cachedCredential,
	}
	e.Locks = &LockManager{
		engine:     e,
		dataType:   domain.SyncDataTypeLock,
		targetID:   func(LockTarget) string { return domain.LockSyncItemKey },
		rawKey:     lockTargetRawKey,
		payload:    lockTargetPayload,
		credential: e.cachedLockCredential,
	}
	e.BrowserBookmarks = &BrowserBookmarkManager{
		engine:     e,
		dataType:   domain.SyncDataTypeBrowserBookmark,
		targetID:   func(t BrowserBookmarkTarget) string { return t.Bookmark.URL },
		rawKey:     bookmarkTargetRawKey,
		payload:    bookmarkTargetPayload,
		credential: e.cachedCredential,
	}
	return e
}

// SetSceneApplier binds the component applying server state to the local
// records.
func (e *Engine) SetSceneApplier(applier SceneApplier) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.applier = applier
}

func (e *Engine) IsEnabled() bool {
	e.lock.RLock()
	defer e.lock.RUnlock()
	return e.enabled
}

func (e *Engine) SetEnabled(enabled bool) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.enabled = enabled && e.cfg.Salt != ""
}

// Unlock returns the sync credential, deriving it from the sync password
// stored in the vault if needed. It only uses the password cached by the
// prompt and never asks for it.
func (e *Engine) Unlock(ctx context.Context) (*Credential, error) {
	if cred := e.cachedCredential(); cred != nil {
		return cred, nil
	}
	if e.prompt == nil || e.creds == nil {
		return nil, domain.NewGenericLocalError("sync credential is locked")
	}
	password, ok := e.prompt.CachedPassword()
	if !ok {
		return nil, domain.NewGenericLocalError("no password in memory")
	}
	secret, err := e.creds.GetAgentCredential(ctx, AgentCredentialName, password)
	if err != nil {
		return nil, err
	}
	cred, err := DeriveCredential(string(secret), e.cfg.Salt, e.cfg.Params)
	if err != nil {
		return nil, err
	}
	if err := e.setCredential(cred); err != nil {
		return nil, err
	}
	return cred, nil
}

// SetSyncPassword stores the sync password in the vault and switches to its
// epoch. Local items of the previous epoch are re-encrypted on next sync.
func (e *Engine) SetSyncPassword(ctx context.Context, syncPassword, password string) error {
	cred, err := DeriveCredential(syncPassword, e.cfg.Salt, e.cfg.Params)
	if err != nil {
		return err
	}
	if err := e.creds.SetAgentCredential(
		ctx, AgentCredentialName, []byte(syncPassword), password,
	); err != nil {
		return err
	}
	return e.setCredential(cred)
}

// ClearCredential forgets the unlocked credential.
func (e *Engine) ClearCredential() {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.cred = nil
	e.lockCred = nil
}

func (e *Engine) setCredential(cred *Credential) error {
	lockCred, err := LockCredential(cred, e.cfg.Params)
	if err != nil {
		return err
	}
	e.lock.Lock()
	defer e.lock.Unlock()
	e.cred = cred
	e.lockCred = lockCred
	return nil
}

func (e *Engine) cachedCredential() *Credential {
	e.lock.RLock()
	defer e.lock.RUnlock()
	return e.cred
}

func (e *Engine) cachedLockCredential() *Credential {
	e.lock.RLock()
	defer e.lock.RUnlock()
	return e.lockCred
}

func (e *Engine) sceneApplier() SceneApplier {
	e.lock.RLock()
	defer e.lock.RUnlock()
	return e.applier
}

func (e *Engine) decodeRawData(item domain.CloudSyncItem, cred *Credential) (*rawData, error) {
	buf := []byte(item.RawData)
	if len(buf) <= 0 {
		if item.Data == "" {
			return nil, domain.NewGenericLocalError("sync item %s has no data", item.ID)
		}
		if cred == nil {
			return nil, domain.NewGenericLocalError("sync credential is locked")
		}
		if item.PwdHash != "" && item.PwdHash != cred.PwdHash {
			return nil, domain.NewInvalidPasswordError(nil)
		}
		plaintext, err := cred.Decrypt(item.Data)
		if err != nil {
			return nil, err
		}
		buf = plaintext
	}
	raw := &rawData{}
	if err := json.Unmarshal(buf, raw); err != nil {
		return nil, domain.WrapGenericLocalError(err, "decode sync item %s", item.ID)
	}
	return raw, nil
}

// TxSaveLocalSyncItems merges locally built items into the pool. Accepted
// items are uploaded once the transaction commits.
func (e *Engine) TxSaveLocalSyncItems(
	tx ports.Tx, items []domain.CloudSyncItem, upload bool,
) error {
	accepted, _, err := e.txMergeSyncItems(tx, items)
	if err != nil {
		return err
	}
	if upload && len(accepted) > 0 {
		tx.OnCommit(func() { e.scheduleUpload(accepted...) })
	}
	return nil
}

// txSaveServerSyncItems merges server items into the pool. Local items that
// won against an older server version are scheduled for upload. The accepted
// items wait to be applied to the local records.
func (e *Engine) txSaveServerSyncItems(
	tx ports.Tx, items []domain.CloudSyncItem,
) ([]domain.CloudSyncItem, error) {
	for i := range items {
		items[i].LocalSceneUpdated = false
		items[i].ServerUploaded = true
	}
	accepted, rejected, err := e.txMergeSyncItems(tx, items)
	if err != nil {
		return nil, err
	}
	if len(rejected) > 0 {
		tx.OnCommit(func() { e.scheduleUpload(rejected...) })
	}
	return accepted, nil
}

// txMergeSyncItems returns the items written and the local items that won
// over the incoming ones.
func (e *Engine) txMergeSyncItems(
	tx ports.Tx, items []domain.CloudSyncItem,
) ([]domain.CloudSyncItem, []domain.CloudSyncItem, error) {
	accepted := make([]domain.CloudSyncItem, 0, len(items))
	rejected := make([]domain.CloudSyncItem, 0)
	for _, item := range items {
		local, err := records.GetSafe[domain.CloudSyncItem](
			tx, domain.StoreCloudSyncItem, item.ID,
		)
		if err != nil {
			return nil, nil, err
		}
		merged, ok := domain.MergeSyncItem(local, item)
		if !ok {
			rejected = append(rejected, *local)
			continue
		}
		if local == nil {
			if _, err := records.Add(
				tx, domain.StoreCloudSyncItem, []domain.CloudSyncItem{merged}, false,
			); err != nil {
				return nil, nil, err
			}
		} else if err := records.Upsert(tx, domain.StoreCloudSyncItem, &merged); err != nil {
			return nil, nil, err
		}
		accepted = append(accepted, merged)
	}
	return accepted, rejected, nil
}

func (e *Engine) scheduleUpload(items ...domain.CloudSyncItem) {
	if !e.IsEnabled() || e.client == nil {
		return
	}
	e.uploader.Add(items...)
}

// UploadInstantly sends the items, and any pending one, without waiting for
// the debounce window.
func (e *Engine) UploadInstantly(ctx context.Context, items ...domain.CloudSyncItem) error {
	if !e.IsEnabled() || e.client == nil {
		return nil
	}
	e.uploader.Add(items...)
	return e.uploader.Flush(ctx)
}

// PendingUploads returns the number of items waiting for the debounce window.
func (e *Engine) PendingUploads() int {
	return e.uploader.Len()
}

// upload reloads the queued items, so that data filled after scheduling is
// sent, and uploads the ones encrypted under the current epoch.
func (e *Engine) upload(ctx context.Context, queued []domain.CloudSyncItem) error {
	cred := e.cachedCredential()
	if cred == nil {
		log.Debug("sync credential locked, upload postponed to next sync")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()

	items := make([]domain.CloudSyncItem, 0, len(queued))
	err := e.db.RunTransaction(ctx, domain.BucketAccount, true,
		func(ctx context.Context, tx ports.Tx) error {
			for _, q := range queued {
				item, err := records.GetSafe[domain.CloudSyncItem](
					tx, domain.StoreCloudSyncItem, q.ID,
				)
				if err != nil {
					return err
				}
				if item != nil && item.IsUploadable(cred.PwdHash) {
					items = append(items, *item)
				}
			}
			return nil
		},
	)
	if err != nil {
		return err
	}
	if len(items) <= 0 {
		return nil
	}

	if _, err := e.client.Upload(ctx, e.toServerItems(items), cred.PwdHash, nil); err != nil {
		return err
	}
	uploadedItems.Add(float64(len(items)))
	return e.markUploaded(ctx, items)
}

func (e *Engine) markUploaded(ctx context.Context, items []domain.CloudSyncItem) error {
	return e.db.RunTransaction(ctx, domain.BucketAccount, false,
		func(ctx context.Context, tx ports.Tx) error {
			for _, uploaded := range items {
				item, err := records.GetSafe[domain.CloudSyncItem](
					tx, domain.StoreCloudSyncItem, uploaded.ID,
				)
				if err != nil {
					return err
				}
				// skip items changed while uploading
				if item == nil || item.DataTime != uploaded.DataTime || item.ServerUploaded {
					continue
				}
				item.ServerUploaded = true
				if err := records.Upsert(tx, domain.StoreCloudSyncItem, item); err != nil {
					return err
				}
			}
			return nil
		},
	)
}

// toServerItems sets the undefined timestamps to now.
func (e *Engine) toServerItems(items []domain.CloudSyncItem) []ports.SyncServerItem {
	now := e.now()
	serverItems := make([]ports.SyncServerItem, 0, len(items))
	for _, item := range items {
		dataTime := item.DataTime
		if dataTime == 0 {
			dataTime = now
		}
		serverItems = append(serverItems, ports.SyncServerItem{
			Key:           item.ID,
			DataType:      item.DataType,
			Data:          item.Data,
			DataTimestamp: dataTime,
			IsDeleted:     item.IsDeleted,
			PwdHash:       item.PwdHash,
		})
	}
	return serverItems
}

// Close flushes the pending uploads.
func (e *Engine) Close(ctx context.Context) error {
	return e.uploader.Stop(ctx)
}
