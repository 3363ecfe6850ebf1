package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/tdex-network/walletdb/internal/core/application"
)

const (
	// DatadirKey is the local data directory to store the internal state of daemon
	DatadirKey = "DATADIR"
	// LogLevelKey are the different logging levels. For reference on the values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// DBTypeKey is used to switch database type between those supported
	DBTypeKey = "DB_TYPE"
	// HTTPListeningPortKey is the port where the HTTP interface listens on
	HTTPListeningPortKey = "HTTP_LISTENING_PORT"
	// HTTPRateLimitKey is the number of requests per second accepted from a
	// single client
	HTTPRateLimitKey = "HTTP_RATE_LIMIT"
	HTTPRateBurstKey = "HTTP_RATE_BURST"
	// SessionTTLKey is how long an unlocked session lasts, forever if zero
	SessionTTLKey = "SESSION_TTL"
	// ScryptNKey is the scrypt cost of the password based encryption
	ScryptNKey = "SCRYPT_N"

	CloudSyncEnabledKey        = "CLOUD_SYNC_ENABLED"
	CloudSyncEndpointKey       = "CLOUD_SYNC_ENDPOINT"
	CloudSyncNotifyEndpointKey = "CLOUD_SYNC_NOTIFY_ENDPOINT"
	CloudSyncAuthSecretKey     = "CLOUD_SYNC_AUTH_SECRET"
	// CloudSyncUserIDKey identifies the user on the sync service and salts
	// the sync credential.
	CloudSyncUserIDKey            = "CLOUD_SYNC_USER_ID"
	CloudSyncIntervalKey          = "CLOUD_SYNC_INTERVAL"
	CloudSyncRequestsPerSecondKey = "CLOUD_SYNC_REQUESTS_PER_SECOND"
	// SyncUploadDebounceKey is the quiet period before local changes are
	// uploaded
	SyncUploadDebounceKey = "SYNC_UPLOAD_DEBOUNCE"
	// AddressIndexDebounceKey is the quiet period before new addresses are
	// indexed
	AddressIndexDebounceKey = "ADDRESS_INDEX_DEBOUNCE"
	// DBGCIntervalKey defines the interval of the badger value log gc
	DBGCIntervalKey = "DB_GC_INTERVAL"

	DbLocation  = "db"
	LogLocation = "logs"

	envFile = ".env"
)

var vip *viper.Viper
var defaultDatadir = btcutil.AppDataDir("walletdbd", false)

func InitConfig() error {
	// an optional .env file in the working directory seeds the environment
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("error while loading %s file: %s", envFile, err)
	}

	vip = viper.New()
	vip.SetEnvPrefix("WALLETDB")
	vip.AutomaticEnv()

	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(LogLevelKey, 4)
	vip.SetDefault(DBTypeKey, application.DBBadger)
	vip.SetDefault(HTTPListeningPortKey, 9945)
	vip.SetDefault(HTTPRateLimitKey, 20)
	vip.SetDefault(HTTPRateBurstKey, 40)
	vip.SetDefault(SessionTTLKey, 0)
	vip.SetDefault(ScryptNKey, 1<<20)
	vip.SetDefault(CloudSyncEnabledKey, false)
	vip.SetDefault(CloudSyncIntervalKey, time.Minute)
	vip.SetDefault(CloudSyncRequestsPerSecondKey, 10)
	vip.SetDefault(SyncUploadDebounceKey, time.Second)
	vip.SetDefault(AddressIndexDebounceKey, 5*time.Second)
	vip.SetDefault(DBGCIntervalKey, 10*time.Minute)

	if err := validate(); err != nil {
		return fmt.Errorf("error while validating config: %s", err)
	}

	if err := initDatadir(); err != nil {
		return fmt.Errorf("error while creating datadir: %s", err)
	}

	return nil
}

func GetString(key string) string {
	return vip.GetString(key)
}

func GetInt(key string) int {
	return vip.GetInt(key)
}

func GetDuration(key string) time.Duration {
	return vip.GetDuration(key)
}

func GetBool(key string) bool {
	return vip.GetBool(key)
}

func GetDatadir() string {
	return GetString(DatadirKey)
}

// GetDbDir returns the directory of the db files.
func GetDbDir() string {
	return filepath.Join(GetDatadir(), DbLocation)
}

// GetLogDir returns the directory of the rotated log files.
func GetLogDir() string {
	return filepath.Join(GetDatadir(), LogLocation)
}

func GetLogLevel() log.Level {
	return log.Level(GetInt(LogLevelKey))
}

func validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("missing datadir")
	}

	dbType := GetString(DBTypeKey)
	if _, ok := application.SupportedDBType[dbType]; !ok {
		return fmt.Errorf("unsupported db type %s", dbType)
	}

	level := GetInt(LogLevelKey)
	if level < int(log.PanicLevel) || level > int(log.TraceLevel) {
		return fmt.Errorf("%s must be in range [%d, %d]", LogLevelKey, log.PanicLevel, log.TraceLevel)
	}

	if n := GetInt(ScryptNKey); n < 2 || n&(n-1) != 0 {
		return fmt.Errorf("%s must be a power of 2 greater than 1", ScryptNKey)
	}

	if GetInt(HTTPRateLimitKey) <= 0 || GetInt(HTTPRateBurstKey) <= 0 {
		return fmt.Errorf("%s and %s must be positive", HTTPRateLimitKey, HTTPRateBurstKey)
	}

	if GetBool(CloudSyncEnabledKey) {
		endpoint := GetString(CloudSyncEndpointKey)
		if endpoint == "" {
			return fmt.Errorf("missing cloud sync endpoint")
		}
		if _, err := url.ParseRequestURI(endpoint); err != nil {
			return fmt.Errorf("invalid cloud sync endpoint: %s", err)
		}
		if GetString(CloudSyncUserIDKey) == "" {
			return fmt.Errorf("missing cloud sync user id")
		}
		if GetString(CloudSyncAuthSecretKey) == "" {
			return fmt.Errorf("missing cloud sync auth secret")
		}
	}

	return nil
}

func initDatadir() error {
	datadir := GetDatadir()
	if err := makeDirectoryIfNotExists(filepath.Join(datadir, DbLocation)); err != nil {
		return err
	}
	return makeDirectoryIfNotExists(filepath.Join(datadir, LogLocation))
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}
