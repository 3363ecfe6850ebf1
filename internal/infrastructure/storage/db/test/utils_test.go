package db_test

import (
	"crypto/rand"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/walletdb/internal/core/domain"
	"github.com/tdex-network/walletdb/internal/core/ports"
	dbbadger "github.com/tdex-network/walletdb/internal/infrastructure/storage/db/badger"
	dbbolt "github.com/tdex-network/walletdb/internal/infrastructure/storage/db/bolt"
	"github.com/tdex-network/walletdb/internal/infrastructure/storage/db/inmemory"
)

type dbManager struct {
	Name string
	Db   ports.DbManager
}

func createDbManagers(t *testing.T) []dbManager {
	badgerDb, err := dbbadger.NewDbManager("", nil)
	require.NoError(t, err)

	boltDb, err := dbbolt.NewDbManager(t.TempDir())
	require.NoError(t, err)

	t.Cleanup(func() {
		badgerDb.Close()
		boltDb.Close()
	})

	return []dbManager{
		{Name: "inmemory", Db: inmemory.NewDbManager()},
		{Name: "badger", Db: badgerDb},
		{Name: "bolt", Db: boltDb},
	}
}

func makeRandomDevice() domain.Device {
	return domain.Device{
		ID:        randomHex(16),
		DeviceID:  randomHex(8),
		UUID:      randomHex(8),
		ConnectID: randomHex(4),
	}
}

func randomHex(len int) string {
	return hex.EncodeToString(randomBytes(len))
}

func randomBytes(len int) []byte {
	b := make([]byte, len)
	//nolint
	rand.Read(b)
	return b
}
