package cloudsync

import (
	"encoding/json"
	"errors"

	"github.com/tdex-network/walletdb/internal/core/domain"
	"github.com/tdex-network/walletdb/internal/core/ports"
	"github.com/tdex-network/walletdb/internal/storageutil/records"
)

// ExistingSyncItem is a local sync item found for a target being created.
type ExistingSyncItem[P any] struct {
	Item    domain.CloudSyncItem
	Payload *P
}

// SyncItemsInfo splits the targets of a creation into the ones already known
// to the sync pool and the ones needing a new item.
type SyncItemsInfo[P any] struct {
	// Existing is keyed by target id.
	Existing          map[string]ExistingSyncItem[P]
	ExistingSyncItems []domain.CloudSyncItem
	NewSyncItems      []domain.CloudSyncItem
}

// ExistingSyncItemsOpts ...
type ExistingSyncItemsOpts[T any, P any] struct {
	// OnExisting lets the caller adopt the payload of existing items, like
	// a name set on another device, before the records are written.
	OnExisting func(existing map[string]ExistingSyncItem[P]) error
	// UseGenesisTime marks new items whose name is still the system default.
	// They are written with domain.GenesisTime so any item set on another
	// device wins over them. The name comparison is an approximation: a user
	// renaming an entity back to its default name gets the same treatment.
	UseGenesisTime func(target T) bool
}

// TxSyncFlowParams ...
type TxSyncFlowParams[P any] struct {
	Info               *SyncItemsInfo[P]
	RunDbTxFn          func() error
	SkipServerSyncFlow bool
}

// Manager builds the sync items of one entity type. T is the local target,
// P the payload replicated to other devices.
type Manager[T any, P any] struct {
	engine     *Engine
	dataType   domain.SyncDataType
	targetID   func(T) string
	rawKey     func(T) (string, error)
	payload    func(T) (P, error)
	credential func() *Credential
}

// WalletManager ...
type WalletManager = Manager[WalletTarget, WalletPayload]

// IndexedAccountManager ...
type IndexedAccountManager = Manager[IndexedAccountTarget, IndexedAccountPayload]

// AccountManager ...
type AccountManager = Manager[AccountTarget, AccountPayload]

// LockManager ...
type LockManager = Manager[LockTarget, LockPayload]

// BrowserBookmarkManager ...
type BrowserBookmarkManager = Manager[BrowserBookmarkTarget, BrowserBookmarkPayload]

func (m *Manager[T, P]) DataType() domain.SyncDataType {
	return m.dataType
}

// BuildSyncKey returns the id of the sync item of the target.
func (m *Manager[T, P]) BuildSyncKey(target T) (string, error) {
	rawKey, err := m.rawKey(target)
	if err != nil {
		return "", err
	}
	return m.engine.keys.SyncKey(m.dataType, rawKey), nil
}

func (m *Manager[T, P]) BuildSyncPayload(target T) (*P, error) {
	payload, err := m.payload(target)
	if err != nil {
		return nil, err
	}
	return &payload, nil
}

// BuildSyncItem returns the sync item of the target. The plaintext envelope
// is always stored in rawData. The data is encrypted only if the sync
// credential is unlocked, otherwise it is filled on the next sync.
func (m *Manager[T, P]) BuildSyncItem(
	target T, dataTime int64, isDeleted bool,
) (*domain.CloudSyncItem, error) {
	rawKey, err := m.rawKey(target)
	if err != nil {
		return nil, err
	}
	payload, err := m.payload(target)
	if err != nil {
		return nil, err
	}
	return m.buildSyncItem(rawKey, payload, dataTime, isDeleted)
}

func (m *Manager[T, P]) buildSyncItem(
	rawKey string, payload P, dataTime int64, isDeleted bool,
) (*domain.CloudSyncItem, error) {
	payloadBuf, err := json.Marshal(payload)
	if err != nil {
		return nil, domain.WrapGenericLocalError(err, "encode %s sync payload", m.dataType)
	}
	raw, err := json.Marshal(rawData{
		DataType: m.dataType,
		RawKey:   rawKey,
		Payload:  payloadBuf,
	})
	if err != nil {
		return nil, domain.WrapGenericLocalError(err, "encode %s sync item", m.dataType)
	}

	item := &domain.CloudSyncItem{
		ID:                m.engine.keys.SyncKey(m.dataType, rawKey),
		DataType:          m.dataType,
		RawKey:            rawKey,
		RawData:           string(raw),
		DataTime:          dataTime,
		IsDeleted:         isDeleted,
		LocalSceneUpdated: true,
	}
	if cred := m.credential(); cred != nil {
		data, err := cred.Encrypt(raw)
		if err != nil {
			return nil, err
		}
		item.Data = data
		item.PwdHash = cred.PwdHash
	}
	return item, nil
}

// DecodeSyncItem returns the payload of the item, read from its rawData or
// decrypted from its data.
func (m *Manager[T, P]) DecodeSyncItem(item domain.CloudSyncItem) (*P, error) {
	raw, err := m.engine.decodeRawData(item, m.credential())
	if err != nil {
		return nil, err
	}
	payload := new(P)
	if err := json.Unmarshal(raw.Payload, payload); err != nil {
		return nil, domain.WrapGenericLocalError(err, "decode %s sync payload", m.dataType)
	}
	return payload, nil
}

// BuildExistingSyncItemsInfo looks up the sync items of the targets. Targets
// without a cross-device identity are skipped.
func (m *Manager[T, P]) BuildExistingSyncItemsInfo(
	tx ports.Tx, targets []T, opts ExistingSyncItemsOpts[T, P],
) (*SyncItemsInfo[P], error) {
	info := &SyncItemsInfo[P]{
		Existing:          make(map[string]ExistingSyncItem[P]),
		ExistingSyncItems: make([]domain.CloudSyncItem, 0),
		NewSyncItems:      make([]domain.CloudSyncItem, 0),
	}
	if !m.engine.IsEnabled() {
		return info, nil
	}

	newTargets := make([]T, 0, len(targets))
	for _, target := range targets {
		key, err := m.BuildSyncKey(target)
		if err != nil {
			if errors.Is(err, ErrTargetNotSyncable) {
				continue
			}
			return nil, err
		}
		local, err := records.GetSafe[domain.CloudSyncItem](tx, domain.StoreCloudSyncItem, key)
		if err != nil {
			return nil, err
		}
		if local == nil || local.IsDeleted {
			newTargets = append(newTargets, target)
			continue
		}

		existing := ExistingSyncItem[P]{Item: *local}
		if payload, err := m.DecodeSyncItem(*local); err == nil {
			existing.Payload = payload
		}
		info.Existing[m.targetID(target)] = existing
		info.ExistingSyncItems = append(info.ExistingSyncItems, *local)
	}

	if len(info.Existing) > 0 && opts.OnExisting != nil {
		if err := opts.OnExisting(info.Existing); err != nil {
			return nil, err
		}
	}

	now := m.engine.now()
	for _, target := range newTargets {
		dataTime := now
		if opts.UseGenesisTime != nil && opts.UseGenesisTime(target) {
			dataTime = domain.GenesisTime
		}
		item, err := m.BuildSyncItem(target, dataTime, false)
		if err != nil {
			return nil, err
		}
		info.NewSyncItems = append(info.NewSyncItems, *item)
	}
	return info, nil
}

// TxWithSyncFlowOfRecordCreating runs the record creation and writes the new
// sync items in the same transaction. The upload is scheduled on commit.
func (m *Manager[T, P]) TxWithSyncFlowOfRecordCreating(
	tx ports.Tx, params TxSyncFlowParams[P],
) error {
	if params.RunDbTxFn != nil {
		if err := params.RunDbTxFn(); err != nil {
			return err
		}
	}
	if params.Info == nil || len(params.Info.NewSyncItems) <= 0 {
		return nil
	}
	return m.engine.TxSaveLocalSyncItems(
		tx, params.Info.NewSyncItems, !params.SkipServerSyncFlow,
	)
}

// TxUpsertSyncItems writes the current state of the targets, or their
// tombstones, timestamped now.
func (m *Manager[T, P]) TxUpsertSyncItems(tx ports.Tx, targets []T, isDeleted bool) error {
	if !m.engine.IsEnabled() {
		return nil
	}
	now := m.engine.now()
	items := make([]domain.CloudSyncItem, 0, len(targets))
	for _, target := range targets {
		item, err := m.BuildSyncItem(target, now, isDeleted)
		if err != nil {
			if errors.Is(err, ErrTargetNotSyncable) {
				continue
			}
			return err
		}
		items = append(items, *item)
	}
	return m.engine.TxSaveLocalSyncItems(tx, items, true)
}
