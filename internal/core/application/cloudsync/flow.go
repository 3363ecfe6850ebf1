package cloudsync

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/walletdb/internal/core/domain"
	"github.com/tdex-network/walletdb/internal/core/ports"
	"github.com/tdex-network/walletdb/internal/storageutil/records"
	"golang.org/x/sync/errgroup"
)

const maxParallelDownloads = 4

// ErrServerPasswordChanged is returned when the server reports a password
// epoch different from the local one.
var ErrServerPasswordChanged = errors.New("sync password changed on another device")

// SyncOptions ...
type SyncOptions struct {
	// IsFlush replaces the whole server state with the local one.
	IsFlush          bool
	NoDebounceUpload bool
}

// SyncReport summarizes a sync flow.
type SyncReport struct {
	Uploaded int
	Applied  int
	Deleted  int
}

// Sync runs the sync flow and returns its errors. It is meant for user
// initiated syncs.
func (e *Engine) Sync(ctx context.Context, opts SyncOptions) (*SyncReport, error) {
	if !e.IsEnabled() {
		return nil, domain.NewGenericLocalError("cloud sync is not enabled")
	}
	if e.client == nil {
		return nil, domain.NewGenericLocalError("cloud sync client is not configured")
	}

	e.flowLock.Lock()
	defer e.flowLock.Unlock()

	start := time.Now()
	report, err := e.syncFlow(ctx, opts)
	syncDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		syncRuns.WithLabelValues("failure").Inc()
		return nil, err
	}
	syncRuns.WithLabelValues("success").Inc()
	return report, nil
}

// SyncSilently runs the sync flow logging its errors.
func (e *Engine) SyncSilently(ctx context.Context) {
	if !e.IsEnabled() || e.client == nil {
		return
	}
	if _, err := e.Sync(ctx, SyncOptions{}); err != nil {
		log.WithError(err).Warn("cloud sync failed, retrying on next window")
	}
}

// SyncSilentlyThrottled runs SyncSilently at most once per throttle interval
// and returns whether it ran.
func (e *Engine) SyncSilentlyThrottled(ctx context.Context) bool {
	if !e.throttle.Allow() {
		return false
	}
	e.SyncSilently(ctx)
	return true
}

func (e *Engine) syncFlow(ctx context.Context, opts SyncOptions) (*SyncReport, error) {
	cred, err := e.Unlock(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.FillMissingDataFromRawData(ctx); err != nil {
		return nil, err
	}

	localItems, err := e.prepareLocalItems(ctx, cred)
	if err != nil {
		return nil, err
	}

	checkItems := make([]ports.SyncCheckItem, 0, len(localItems))
	for _, item := range localItems {
		checkItems = append(checkItems, ports.SyncCheckItem{
			Key:           item.ID,
			DataTimestamp: item.DataTime,
			DataType:      item.DataType,
		})
	}
	status, err := e.client.Check(ctx, checkItems, true)
	if err != nil {
		return nil, err
	}
	if status.PwdHash == "" {
		status.PwdHash = cred.PwdHash
	}
	if status.PwdHash != cred.PwdHash {
		e.HandleServerPasswordChanged()
		return nil, ErrServerPasswordChanged
	}

	if status.ServerTime > 0 {
		if localItems, err = e.clampDataTime(ctx, localItems, status.ServerTime); err != nil {
			return nil, err
		}
	}

	report := &SyncReport{}
	if opts.IsFlush {
		if err := e.flush(ctx, cred, localItems); err != nil {
			return nil, err
		}
		report.Uploaded = len(localItems)
	} else if len(status.Obsoleted) > 0 {
		obsoleted := make(map[string]struct{}, len(status.Obsoleted))
		for _, key := range status.Obsoleted {
			obsoleted[key] = struct{}{}
		}
		toUpload := make([]domain.CloudSyncItem, 0, len(status.Obsoleted))
		for _, item := range localItems {
			if _, ok := obsoleted[item.ID]; ok {
				toUpload = append(toUpload, item)
			}
		}
		if opts.NoDebounceUpload {
			if err := e.UploadInstantly(ctx, toUpload...); err != nil {
				return nil, err
			}
		} else {
			e.scheduleUpload(toUpload...)
		}
		report.Uploaded = len(toUpload)
	}

	serverItems := append(status.Diff, status.Updated...)
	if len(serverItems) > 0 {
		if err := e.saveServerItems(ctx, cred, serverItems, status.PwdHash); err != nil {
			return nil, err
		}
	}
	if len(status.Deleted) > 0 {
		if err := e.saveServerDeletedItems(ctx, status.Deleted, status.PwdHash); err != nil {
			return nil, err
		}
		report.Deleted = len(status.Deleted)
	}

	applied, err := e.ApplyPendingToScene(ctx)
	if err != nil {
		return nil, err
	}
	report.Applied = applied
	return report, nil
}

// prepareLocalItems returns the local items of the current epoch. Items of
// another epoch that cannot be re-encrypted, having no rawData, are removed.
func (e *Engine) prepareLocalItems(
	ctx context.Context, cred *Credential,
) ([]domain.CloudSyncItem, error) {
	all, err := e.GetAllLocalSyncItems(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]domain.CloudSyncItem, 0, len(all))
	stale := make([]string, 0)
	for _, item := range all {
		if item.PwdHash == cred.PwdHash {
			items = append(items, item)
			continue
		}
		if item.RawData == "" && item.PwdHash != "" {
			stale = append(stale, item.ID)
		}
	}
	if len(stale) > 0 {
		log.Debugf("removing %d sync items of a previous password", len(stale))
		if err := e.removeLocalSyncItems(ctx, stale); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// clampDataTime moves the local timestamps ahead of the server clock back to
// the server time.
func (e *Engine) clampDataTime(
	ctx context.Context, items []domain.CloudSyncItem, serverTime int64,
) ([]domain.CloudSyncItem, error) {
	ids := make([]string, 0)
	for i := range items {
		if items[i].DataTime > serverTime {
			items[i].DataTime = serverTime
			ids = append(ids, items[i].ID)
		}
	}
	if len(ids) <= 0 {
		return items, nil
	}
	err := e.db.RunTransaction(ctx, domain.BucketAccount, false,
		func(ctx context.Context, tx ports.Tx) error {
			return records.Update(tx, domain.StoreCloudSyncItem, ids,
				func(item *domain.CloudSyncItem) error {
					if item.DataTime > serverTime {
						item.DataTime = serverTime
					}
					return nil
				},
			)
		},
	)
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (e *Engine) saveServerItems(
	ctx context.Context, cred *Credential, serverItems []ports.SyncServerItem,
	serverPwdHash string,
) error {
	items := make([]domain.CloudSyncItem, 0, len(serverItems))
	for _, s := range serverItems {
		items = append(items, e.fromServerItem(s, cred, serverPwdHash))
	}
	return e.db.RunTransaction(ctx, domain.BucketAccount, false,
		func(ctx context.Context, tx ports.Tx) error {
			_, err := e.txSaveServerSyncItems(tx, items)
			return err
		},
	)
}

// fromServerItem converts a server item, filling the plaintext fields when
// it can be decrypted.
func (e *Engine) fromServerItem(
	s ports.SyncServerItem, cred *Credential, serverPwdHash string,
) domain.CloudSyncItem {
	item := domain.CloudSyncItem{
		ID:        s.Key,
		DataType:  s.DataType,
		Data:      s.Data,
		DataTime:  s.DataTimestamp,
		IsDeleted: s.IsDeleted,
		PwdHash:   s.PwdHash,
	}
	if item.PwdHash == "" {
		item.PwdHash = serverPwdHash
	}
	if item.Data == "" || item.PwdHash != cred.PwdHash {
		return item
	}
	plaintext, err := cred.Decrypt(item.Data)
	if err != nil {
		log.WithError(err).Warnf("failed to decrypt server sync item %s", item.ID)
		return item
	}
	raw := &rawData{}
	if err := json.Unmarshal(plaintext, raw); err != nil {
		log.WithError(err).Warnf("invalid server sync item %s", item.ID)
		return item
	}
	item.RawData = string(plaintext)
	item.RawKey = raw.RawKey
	if item.DataType == "" {
		item.DataType = raw.DataType
	}
	return item
}

func (e *Engine) saveServerDeletedItems(
	ctx context.Context, keys []string, serverPwdHash string,
) error {
	return e.db.RunTransaction(ctx, domain.BucketAccount, false,
		func(ctx context.Context, tx ports.Tx) error {
			locals, err := records.GetByIDs[domain.CloudSyncItem](
				tx, domain.StoreCloudSyncItem, keys,
			)
			if err != nil {
				return err
			}
			items := make([]domain.CloudSyncItem, 0, len(locals))
			for _, local := range locals {
				if local == nil {
					continue
				}
				item := *local
				item.IsDeleted = true
				if item.PwdHash == "" {
					item.PwdHash = serverPwdHash
				}
				items = append(items, item)
			}
			_, err = e.txSaveServerSyncItems(tx, items)
			return err
		},
	)
}

// ApplyPendingToScene applies the server items not yet reflected by the
// local records and returns how many were applied. Applied tombstones are
// removed from the pool.
func (e *Engine) ApplyPendingToScene(ctx context.Context) (int, error) {
	applier := e.sceneApplier()
	cred := e.cachedCredential()
	if applier == nil || cred == nil {
		return 0, nil
	}

	applied := 0
	walletsChanged, accountsChanged := false, false
	err := e.db.RunTransaction(ctx, domain.BucketAccount, false,
		func(ctx context.Context, tx ports.Tx) error {
			items, err := records.GetAll[domain.CloudSyncItem](tx, domain.StoreCloudSyncItem)
			if err != nil {
				return err
			}
			// wallets first so that their accounts can be matched
			pending := sortByDataType(filterPending(items, cred.PwdHash))

			tombstones := make([]string, 0)
			for _, item := range pending {
				if err := e.txApplyItem(tx, applier, item); err != nil {
					log.WithError(err).Warnf(
						"failed to apply %s sync item %s", item.DataType, item.ID,
					)
					continue
				}
				appliedItems.WithLabelValues(string(item.DataType)).Inc()
				applied++
				switch item.DataType {
				case domain.SyncDataTypeWallet:
					walletsChanged = true
				case domain.SyncDataTypeAccount, domain.SyncDataTypeIndexedAccount:
					accountsChanged = true
				}

				if item.IsDeleted {
					tombstones = append(tombstones, item.ID)
					continue
				}
				item.LocalSceneUpdated = true
				if err := records.Upsert(tx, domain.StoreCloudSyncItem, &item); err != nil {
					return err
				}
			}
			return records.Remove(tx, domain.StoreCloudSyncItem, tombstones, true)
		},
	)
	if err != nil {
		return 0, err
	}

	if e.bus != nil {
		if walletsChanged {
			e.bus.Publish(domain.Event{Name: domain.EventWalletUpdate})
		}
		if accountsChanged {
			e.bus.Publish(domain.Event{Name: domain.EventAccountUpdate})
		}
	}
	return applied, nil
}

func (e *Engine) txApplyItem(
	tx ports.Tx, applier SceneApplier, item domain.CloudSyncItem,
) error {
	switch item.DataType {
	case domain.SyncDataTypeWallet:
		payload, err := e.Wallets.DecodeSyncItem(item)
		if err != nil {
			return err
		}
		return applier.TxApplyWalletScene(tx, *payload, item.IsDeleted)
	case domain.SyncDataTypeIndexedAccount:
		payload, err := e.IndexedAccounts.DecodeSyncItem(item)
		if err != nil {
			return err
		}
		return applier.TxApplyIndexedAccountScene(tx, *payload, item.IsDeleted)
	case domain.SyncDataTypeAccount:
		payload, err := e.Accounts.DecodeSyncItem(item)
		if err != nil {
			return err
		}
		return applier.TxApplyAccountScene(tx, *payload, item.IsDeleted)
	case domain.SyncDataTypeBrowserBookmark:
		// the sync item is the record
		_, err := e.BrowserBookmarks.DecodeSyncItem(item)
		return err
	default:
		return nil
	}
}

func filterPending(items []domain.CloudSyncItem, pwdHash string) []domain.CloudSyncItem {
	pending := make([]domain.CloudSyncItem, 0)
	for _, item := range items {
		if item.LocalSceneUpdated || item.PwdHash != pwdHash {
			continue
		}
		if item.DataType == domain.SyncDataTypeLock {
			continue
		}
		if item.Data == "" && item.RawData == "" {
			continue
		}
		pending = append(pending, item)
	}
	return pending
}

func sortByDataType(items []domain.CloudSyncItem) []domain.CloudSyncItem {
	rank := map[domain.SyncDataType]int{
		domain.SyncDataTypeWallet:          0,
		domain.SyncDataTypeIndexedAccount:  1,
		domain.SyncDataTypeAccount:         2,
		domain.SyncDataTypeBrowserBookmark: 3,
	}
	sorted := make([]domain.CloudSyncItem, 0, len(items))
	for r := 0; r <= 3; r++ {
		for _, item := range items {
			if rank[item.DataType] == r {
				sorted = append(sorted, item)
			}
		}
	}
	return sorted
}

// FillMissingDataFromRawData encrypts the items written while the sync
// credential was locked, and re-encrypts the ones of a previous epoch.
func (e *Engine) FillMissingDataFromRawData(ctx context.Context) error {
	cred := e.cachedCredential()
	if cred == nil {
		return nil
	}
	return e.db.RunTransaction(ctx, domain.BucketAccount, false,
		func(ctx context.Context, tx ports.Tx) error {
			items, err := records.GetAll[domain.CloudSyncItem](tx, domain.StoreCloudSyncItem)
			if err != nil {
				return err
			}
			for i := range items {
				item := &items[i]
				if item.RawData == "" || item.DataType == domain.SyncDataTypeLock {
					continue
				}
				if item.Data != "" && item.PwdHash == cred.PwdHash {
					continue
				}
				data, err := cred.Encrypt([]byte(item.RawData))
				if err != nil {
					log.WithError(err).Warnf("failed to fill sync item %s", item.ID)
					continue
				}
				item.Data = data
				item.PwdHash = cred.PwdHash
				item.ServerUploaded = false
				if err := records.Upsert(tx, domain.StoreCloudSyncItem, item); err != nil {
					return err
				}
			}
			return nil
		},
	)
}

// Download fetches every server item, saves it locally and applies it.
func (e *Engine) Download(ctx context.Context, includeDeleted bool) (int, error) {
	if e.client == nil {
		return 0, domain.NewGenericLocalError("cloud sync client is not configured")
	}
	cred, err := e.Unlock(ctx)
	if err != nil {
		return 0, err
	}

	limit := e.cfg.DownloadPageSize
	first, err := e.client.Download(ctx, 0, limit, includeDeleted, cred.PwdHash)
	if err != nil {
		return 0, err
	}
	if first.PwdHash != "" && first.PwdHash != cred.PwdHash {
		e.HandleServerPasswordChanged()
		return 0, ErrServerPasswordChanged
	}

	pages := make([][]ports.SyncServerItem, 1, 1+first.Total/limit)
	pages[0] = first.Items
	if first.Total > len(first.Items) {
		rest := make([][]ports.SyncServerItem, (first.Total-len(first.Items)+limit-1)/limit)
		eg, gctx := errgroup.WithContext(ctx)
		eg.SetLimit(maxParallelDownloads)
		for i := range rest {
			i := i
			eg.Go(func() error {
				start := len(first.Items) + i*limit
				page, err := e.client.Download(gctx, start, limit, includeDeleted, cred.PwdHash)
				if err != nil {
					return err
				}
				rest[i] = page.Items
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return 0, err
		}
		pages = append(pages, rest...)
	}

	items := make([]ports.SyncServerItem, 0, first.Total)
	for _, page := range pages {
		for _, item := range page {
			if item.DataType == domain.SyncDataTypeLock {
				continue
			}
			items = append(items, item)
		}
	}
	if err := e.saveServerItems(ctx, cred, items, cred.PwdHash); err != nil {
		return 0, err
	}
	if _, err := e.ApplyPendingToScene(ctx); err != nil {
		return 0, err
	}
	return len(items), nil
}

// Flush replaces the server state with the local items of the current epoch
// and the lock item.
func (e *Engine) Flush(ctx context.Context) error {
	if e.client == nil {
		return domain.NewGenericLocalError("cloud sync client is not configured")
	}
	cred, err := e.Unlock(ctx)
	if err != nil {
		return err
	}
	if err := e.FillMissingDataFromRawData(ctx); err != nil {
		return err
	}
	items, err := e.prepareLocalItems(ctx, cred)
	if err != nil {
		return err
	}
	return e.flush(ctx, cred, items)
}

func (e *Engine) flush(ctx context.Context, cred *Credential, items []domain.CloudSyncItem) error {
	lockItem, err := e.Locks.BuildSyncItem(LockTarget{Lock: LockPayload{
		PwdHash:   cred.PwdHash,
		CreatedAt: e.now(),
	}}, e.now(), false)
	if err != nil {
		return err
	}
	if lockItem.Data == "" {
		return domain.NewGenericLocalError("lock item data is missing")
	}
	lock := e.toServerItems([]domain.CloudSyncItem{*lockItem})[0]

	uploadable := make([]domain.CloudSyncItem, 0, len(items))
	for _, item := range items {
		if item.IsUploadable(cred.PwdHash) {
			uploadable = append(uploadable, item)
		}
	}
	serverItems := e.toServerItems(uploadable)
	if len(serverItems) <= 0 {
		serverItems = append(serverItems, lock)
	}
	if err := e.client.Flush(ctx, serverItems, cred.PwdHash, &lock); err != nil {
		return err
	}
	uploadedItems.Add(float64(len(uploadable)))
	return e.markUploaded(ctx, uploadable)
}

// ResetServerData clears the whole server state.
func (e *Engine) ResetServerData(ctx context.Context) error {
	if e.client == nil {
		return domain.NewGenericLocalError("cloud sync client is not configured")
	}
	return e.client.Flush(ctx, []ports.SyncServerItem{}, "", nil)
}

// FetchLock returns the lock payload stored on the server.
func (e *Engine) FetchLock(ctx context.Context) (*LockPayload, error) {
	if e.client == nil {
		return nil, domain.NewGenericLocalError("cloud sync client is not configured")
	}
	if _, err := e.Unlock(ctx); err != nil {
		return nil, err
	}
	lock, err := e.client.GetLock(ctx)
	if err != nil {
		return nil, err
	}
	if lock == nil || lock.Data == "" {
		return nil, nil
	}
	return e.Locks.DecodeSyncItem(domain.CloudSyncItem{
		ID:       lock.Key,
		DataType: domain.SyncDataTypeLock,
		Data:     lock.Data,
	})
}

// ChangeLock posts the lock of the current epoch.
func (e *Engine) ChangeLock(ctx context.Context) error {
	if e.client == nil {
		return domain.NewGenericLocalError("cloud sync client is not configured")
	}
	cred, err := e.Unlock(ctx)
	if err != nil {
		return err
	}
	lockItem, err := e.Locks.BuildSyncItem(LockTarget{Lock: LockPayload{
		PwdHash:   cred.PwdHash,
		CreatedAt: e.now(),
	}}, e.now(), false)
	if err != nil {
		return err
	}
	return e.client.PostLock(ctx, ports.SyncLock{
		Key:     lockItem.ID,
		Data:    lockItem.Data,
		PwdHash: cred.PwdHash,
	})
}

// HandleServerPasswordChanged forgets the credential of the old epoch and
// notifies the subscribers.
func (e *Engine) HandleServerPasswordChanged() {
	e.ClearCredential()
	if e.bus != nil {
		e.bus.Publish(domain.Event{Name: domain.EventCloudSyncPasswordChanged})
	}
}

// GetAllLocalSyncItems returns the pool, lock excluded.
func (e *Engine) GetAllLocalSyncItems(ctx context.Context) ([]domain.CloudSyncItem, error) {
	var items []domain.CloudSyncItem
	err := e.db.RunTransaction(ctx, domain.BucketAccount, true,
		func(ctx context.Context, tx ports.Tx) error {
			all, err := records.GetAll[domain.CloudSyncItem](tx, domain.StoreCloudSyncItem)
			if err != nil {
				return err
			}
			items = make([]domain.CloudSyncItem, 0, len(all))
			for _, item := range all {
				if item.DataType != domain.SyncDataTypeLock {
					items = append(items, item)
				}
			}
			return nil
		},
	)
	return items, err
}

// ClearAllLocalSyncItems empties the pool.
func (e *Engine) ClearAllLocalSyncItems(ctx context.Context) error {
	return e.db.RunTransaction(ctx, domain.BucketAccount, false,
		func(ctx context.Context, tx ports.Tx) error {
			_, err := records.Clear[domain.CloudSyncItem](tx, domain.StoreCloudSyncItem)
			return err
		},
	)
}

func (e *Engine) removeLocalSyncItems(ctx context.Context, ids []string) error {
	return e.db.RunTransaction(ctx, domain.BucketAccount, false,
		func(ctx context.Context, tx ports.Tx) error {
			return records.Remove(tx, domain.StoreCloudSyncItem, ids, true)
		},
	)
}
