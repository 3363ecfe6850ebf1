package cloudsync_test

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"
	"github.com/tdex-network/walletdb/internal/core/application/cloudsync"
	"github.com/tdex-network/walletdb/internal/core/ports"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) Check(
	ctx context.Context, items []ports.SyncCheckItem, isFullDBCheck bool,
) (*ports.SyncCheckResult, error) {
	args := m.Called(ctx, items, isFullDBCheck)
	var res *ports.SyncCheckResult
	if a := args.Get(0); a != nil {
		res = a.(*ports.SyncCheckResult)
	}
	return res, args.Error(1)
}

func (m *mockClient) Upload(
	ctx context.Context, items []ports.SyncServerItem, pwdHash string,
	lock *ports.SyncServerItem,
) (*ports.SyncUploadResult, error) {
	args := m.Called(ctx, items, pwdHash, lock)
	var res *ports.SyncUploadResult
	if a := args.Get(0); a != nil {
		res = a.(*ports.SyncUploadResult)
	}
	return res, args.Error(1)
}

func (m *mockClient) Download(
	ctx context.Context, start, limit int, includeDeleted bool, pwdHash string,
) (*ports.SyncDownloadResult, error) {
	args := m.Called(ctx, start, limit, includeDeleted, pwdHash)
	var res *ports.SyncDownloadResult
	if a := args.Get(0); a != nil {
		res = a.(*ports.SyncDownloadResult)
	}
	return res, args.Error(1)
}

func (m *mockClient) Flush(
	ctx context.Context, items []ports.SyncServerItem, pwdHash string,
	lock *ports.SyncServerItem,
) error {
	args := m.Called(ctx, items, pwdHash, lock)
	return args.Error(0)
}

func (m *mockClient) GetLock(ctx context.Context) (*ports.SyncLock, error) {
	args := m.Called(ctx)
	var res *ports.SyncLock
	if a := args.Get(0); a != nil {
		res = a.(*ports.SyncLock)
	}
	return res, args.Error(1)
}

func (m *mockClient) PostLock(ctx context.Context, lock ports.SyncLock) error {
	args := m.Called(ctx, lock)
	return args.Error(0)
}

type cachedPrompt struct {
	password string
}

func (p cachedPrompt) PromptAndVerify(context.Context, string) (string, error) {
	return p.password, nil
}

func (p cachedPrompt) CachedPassword() (string, bool) {
	return p.password, p.password != ""
}

type appliedScene struct {
	wallets         []cloudsync.WalletPayload
	indexedAccounts []cloudsync.IndexedAccountPayload
	accounts        []cloudsync.AccountPayload
	deleted         int
}

type recordingApplier struct {
	lock  sync.Mutex
	scene appliedScene
}

func (r *recordingApplier) TxApplyWalletScene(
	_ ports.Tx, payload cloudsync.WalletPayload, isDeleted bool,
) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.scene.wallets = append(r.scene.wallets, payload)
	if isDeleted {
		r.scene.deleted++
	}
	return nil
}

func (r *recordingApplier) TxApplyIndexedAccountScene(
	_ ports.Tx, payload cloudsync.IndexedAccountPayload, isDeleted bool,
) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.scene.indexedAccounts = append(r.scene.indexedAccounts, payload)
	if isDeleted {
		r.scene.deleted++
	}
	return nil
}

func (r *recordingApplier) TxApplyAccountScene(
	_ ports.Tx, payload cloudsync.AccountPayload, isDeleted bool,
) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.scene.accounts = append(r.scene.accounts, payload)
	if isDeleted {
		r.scene.deleted++
	}
	return nil
}

func (r *recordingApplier) applied() appliedScene {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.scene
}
