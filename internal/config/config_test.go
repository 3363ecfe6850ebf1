package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/tdex-network/walletdb/internal/config"
)

func TestInitConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		datadir := t.TempDir()
		t.Setenv("WALLETDB_DATADIR", datadir)

		require.NoError(t, config.InitConfig())
		require.Equal(t, datadir, config.GetDatadir())
		require.Equal(t, "badger", config.GetString(config.DBTypeKey))
		require.Equal(t, log.InfoLevel, config.GetLogLevel())
		require.Equal(t, time.Minute, config.GetDuration(config.CloudSyncIntervalKey))
		require.Equal(t, 5*time.Second, config.GetDuration(config.AddressIndexDebounceKey))

		for _, dir := range []string{config.GetDbDir(), config.GetLogDir()} {
			info, err := os.Stat(dir)
			require.NoError(t, err)
			require.True(t, info.IsDir())
		}
		require.Equal(t, filepath.Join(datadir, "db"), config.GetDbDir())
	})

	t.Run("env overrides", func(t *testing.T) {
		t.Setenv("WALLETDB_DATADIR", t.TempDir())
		t.Setenv("WALLETDB_DB_TYPE", "bolt")
		t.Setenv("WALLETDB_ADDRESS_INDEX_DEBOUNCE", "250ms")

		require.NoError(t, config.InitConfig())
		require.Equal(t, "bolt", config.GetString(config.DBTypeKey))
		require.Equal(t, 250*time.Millisecond, config.GetDuration(config.AddressIndexDebounceKey))
	})

	t.Run("invalid", func(t *testing.T) {
		tests := []struct {
			name string
			env  map[string]string
		}{
			{"db type", map[string]string{"WALLETDB_DB_TYPE": "postgres"}},
			{"log level", map[string]string{"WALLETDB_LOG_LEVEL": "9"}},
			{"scrypt cost", map[string]string{"WALLETDB_SCRYPT_N": "1000"}},
			{"rate limit", map[string]string{"WALLETDB_HTTP_RATE_LIMIT": "0"}},
			{"sync without endpoint", map[string]string{
				"WALLETDB_CLOUD_SYNC_ENABLED": "true",
			}},
			{"sync without user", map[string]string{
				"WALLETDB_CLOUD_SYNC_ENABLED":     "true",
				"WALLETDB_CLOUD_SYNC_ENDPOINT":    "https://sync.example.com",
				"WALLETDB_CLOUD_SYNC_AUTH_SECRET": "secret",
			}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Setenv("WALLETDB_DATADIR", t.TempDir())
				for k, v := range tt.env {
					t.Setenv(k, v)
				}
				require.Error(t, config.InitConfig())
			})
		}
	})
}
