package hierarchy_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/walletdb/internal/core/application/cache"
	"github.com/tdex-network/walletdb/internal/core/application/cloudsync"
	"github.com/tdex-network/walletdb/internal/core/application/hierarchy"
	"github.com/tdex-network/walletdb/internal/core/application/vault"
	"github.com/tdex-network/walletdb/internal/core/domain"
	"github.com/tdex-network/walletdb/internal/core/ports"
	"github.com/tdex-network/walletdb/internal/infrastructure/pubsub"
	"github.com/tdex-network/walletdb/internal/infrastructure/storage/db/inmemory"
	"github.com/tdex-network/walletdb/internal/storageutil/records"
	"github.com/tdex-network/walletdb/pkg/cypher"
)

var (
	ctx        = context.Background()
	testParams = cypher.Params{N: 1024, R: 8, P: 1}
	password   = "Sup3rS3cr3tP4ssw0rd!"
	testSeed   = domain.HDSeed{Entropy: "00112233", Seed: "deadbeefcafebabe"}
)

type testEnv struct {
	svc     *hierarchy.Service
	vault   *vault.Service
	engine  *cloudsync.Engine
	db      ports.DbManager
	bus     *pubsub.Service
	events  *eventRecorder
	indexer *addressRecorder
	hw      *mockHardware
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithHardware(t, nil)
}

func newTestEnvWithHardware(t *testing.T, hw *mockHardware) *testEnv {
	db := inmemory.NewDbManager()
	v := vault.NewService(db, testParams)
	require.NoError(t, v.SetPassword(ctx, password))

	bus := pubsub.NewService(time.Second)
	prompt := staticPrompt{password}
	engine := cloudsync.NewEngine(db, nil, v, prompt, bus, cloudsync.Config{
		Enabled:        true,
		Salt:           "user-salt",
		Params:         testParams,
		UploadDebounce: time.Hour,
	})
	readCache := cache.New(bus)

	var adapter ports.HardwareAdapter
	if hw != nil {
		adapter = hw
	}
	indexer := &addressRecorder{}
	svc := hierarchy.NewService(db, v, engine, readCache, bus, prompt, adapter, indexer)
	require.NoError(t, svc.EnsureSingletonWallets(ctx))

	events := &eventRecorder{}
	bus.Subscribe(events.record)

	t.Cleanup(func() {
		readCache.Close()
		bus.Close()
		db.Close()
	})
	return &testEnv{svc, v, engine, db, bus, events, indexer, hw}
}

func (env *testEnv) createHDWallet(t *testing.T, name string) *hierarchy.CreateWalletResult {
	res, err := env.svc.CreateHDWallet(ctx, hierarchy.CreateHDWalletParams{
		Password: password,
		Name:     name,
		Backuped: true,
		Seed:     testSeed,
		Hash:     "hash-" + name,
	})
	require.NoError(t, err)
	return res
}

func (env *testEnv) createHwWallet(
	t *testing.T, passphraseState string,
) *hierarchy.CreateWalletResult {
	res, err := env.svc.CreateHwWallet(ctx, hierarchy.CreateHwWalletParams{
		ConnectID:       "usb-connect-1",
		Features:        testFeatures(),
		PassphraseState: passphraseState,
	})
	require.NoError(t, err)
	return res
}

func (env *testEnv) syncItems(t *testing.T) []domain.CloudSyncItem {
	items, err := env.engine.GetAllLocalSyncItems(ctx)
	require.NoError(t, err)
	return items
}

func (env *testEnv) count(t *testing.T, store domain.StoreName) int {
	var count int
	err := env.db.RunTransaction(ctx, store.Bucket(), true,
		func(ctx context.Context, tx ports.Tx) error {
			var err error
			count, err = tx.Count(store)
			return err
		},
	)
	require.NoError(t, err)
	return count
}

func (env *testEnv) credentialExists(t *testing.T, id string) bool {
	var found *domain.Credential
	err := env.db.RunTransaction(ctx, domain.BucketAccount, true,
		func(ctx context.Context, tx ports.Tx) error {
			var err error
			found, err = records.GetSafe[domain.Credential](tx, domain.StoreCredential, id)
			return err
		},
	)
	require.NoError(t, err)
	return found != nil
}

func testFeatures() *ports.DeviceFeatures {
	return &ports.DeviceFeatures{
		DeviceID:   "raw-device-1",
		UUID:       "uuid-1",
		Label:      "My Pro",
		DeviceType: string(domain.DeviceTypePro),
		Version:    "4.9.0",
		Raw:        `{"serial_no":"PRO123"}`,
	}
}

type staticPrompt struct {
	password string
}

func (p staticPrompt) PromptAndVerify(context.Context, string) (string, error) {
	return p.password, nil
}

func (p staticPrompt) CachedPassword() (string, bool) {
	return p.password, true
}

type eventRecorder struct {
	lock   sync.Mutex
	events []domain.Event
}

func (r *eventRecorder) record(e domain.Event) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) count(name domain.EventName) int {
	r.lock.Lock()
	defer r.lock.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Name == name {
			n++
		}
	}
	return n
}

type addressRecorder struct {
	lock     sync.Mutex
	accounts map[string][]string
}

func (r *addressRecorder) SaveAccountAddresses(networkID string, account domain.Account) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.accounts == nil {
		r.accounts = make(map[string][]string)
	}
	r.accounts[networkID] = append(r.accounts[networkID], account.ID)
}

func (r *addressRecorder) saved(networkID string) []string {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.accounts[networkID]
}
