package application

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/go-co-op/gocron/v2"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/walletdb/internal/core/application/addressindex"
	"github.com/tdex-network/walletdb/internal/core/application/archive"
	"github.com/tdex-network/walletdb/internal/core/application/cache"
	"github.com/tdex-network/walletdb/internal/core/application/cloudsync"
	"github.com/tdex-network/walletdb/internal/core/application/hierarchy"
	"github.com/tdex-network/walletdb/internal/core/application/unlocker"
	"github.com/tdex-network/walletdb/internal/core/application/vault"
	"github.com/tdex-network/walletdb/internal/core/ports"
	"github.com/tdex-network/walletdb/internal/infrastructure/pubsub"
	dbbadger "github.com/tdex-network/walletdb/internal/infrastructure/storage/db/badger"
	dbbolt "github.com/tdex-network/walletdb/internal/infrastructure/storage/db/bolt"
	"github.com/tdex-network/walletdb/internal/infrastructure/storage/db/inmemory"
	"github.com/tdex-network/walletdb/pkg/cypher"
)

const (
	DBBadger   = "badger"
	DBBolt     = "bolt"
	DBInMemory = "inmemory"

	DefaultSyncInterval = time.Minute
	DefaultGCInterval   = 10 * time.Minute
)

var (
	SupportedDBType = map[string]struct{}{
		DBBadger:   {},
		DBBolt:     {},
		DBInMemory: {},
	}
)

// Config wires the services lazily. Every getter builds its dependencies on
// first use and returns the same instance afterwards.
type Config struct {
	DBType string
	// DBDir is the directory of the badger or bolt files. Badger runs in
	// memory if empty.
	DBDir    string
	DBLogger badger.Logger

	ScryptParams         cypher.Params
	SessionTTL           time.Duration
	AddressIndexDebounce time.Duration
	WebhookTimeout       time.Duration
	SyncInterval         time.Duration
	GCInterval           time.Duration

	CloudSync  cloudsync.Config
	SyncClient ports.CloudSyncClient
	Hardware   ports.HardwareAdapter

	db        ports.DbManager
	bus       *pubsub.Service
	vault     *vault.Service
	unlocker  *unlocker.Service
	engine    *cloudsync.Engine
	cache     *cache.Cache
	indexer   *addressindex.Indexer
	hierarchy *hierarchy.Service
	archive   *archive.Service
	scheduler gocron.Scheduler
}

func (c *Config) Validate() error {
	if _, ok := SupportedDBType[c.DBType]; !ok {
		return fmt.Errorf("unsupported db type %q", c.DBType)
	}
	if c.ScryptParams == (cypher.Params{}) {
		c.ScryptParams = cypher.DefaultParams
	}
	if _, err := c.dbManager(); err != nil {
		return err
	}
	svc, err := c.hierarchyService()
	if err != nil {
		return err
	}
	return svc.EnsureSingletonWallets(context.Background())
}

func (c *Config) DbManager() ports.DbManager {
	db, _ := c.dbManager()
	return db
}

func (c *Config) EventBus() *pubsub.Service {
	return c.eventBus()
}

func (c *Config) VaultService() *vault.Service {
	svc, _ := c.vaultService()
	return svc
}

func (c *Config) UnlockerService() *unlocker.Service {
	svc, _ := c.unlockerService()
	return svc
}

func (c *Config) SyncEngine() *cloudsync.Engine {
	svc, _ := c.syncEngine()
	return svc
}

func (c *Config) AddressIndexer() *addressindex.Indexer {
	svc, _ := c.addressIndexer()
	return svc
}

func (c *Config) HierarchyService() *hierarchy.Service {
	svc, _ := c.hierarchyService()
	return svc
}

func (c *Config) ArchiveService() *archive.Service {
	svc, _ := c.archiveService()
	return svc
}

// StartScheduler starts the periodic silent sync and, for badger, the value
// log garbage collection.
func (c *Config) StartScheduler(ctx context.Context) error {
	if c.scheduler != nil {
		return nil
	}
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}

	engine, err := c.syncEngine()
	if err != nil {
		return err
	}
	interval := c.SyncInterval
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	if _, err := scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			engine.SyncSilentlyThrottled(ctx)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return fmt.Errorf("failed to schedule silent sync: %w", err)
	}

	if db, ok := c.db.(*dbbadger.DbManager); ok {
		gcInterval := c.GCInterval
		if gcInterval <= 0 {
			gcInterval = DefaultGCInterval
		}
		if _, err := scheduler.NewJob(
			gocron.DurationJob(gcInterval),
			gocron.NewTask(db.CollectGarbage),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			return fmt.Errorf("failed to schedule db gc: %w", err)
		}
	}

	scheduler.Start()
	c.scheduler = scheduler
	log.Debugf("scheduler started with %d jobs", len(scheduler.Jobs()))
	return nil
}

// Close stops the background jobs, flushes the pending writes and closes
// the db.
func (c *Config) Close(ctx context.Context) {
	if c.scheduler != nil {
		if err := c.scheduler.Shutdown(); err != nil {
			log.WithError(err).Warn("failed to stop scheduler")
		}
	}
	if c.indexer != nil {
		if err := c.indexer.Close(ctx); err != nil {
			log.WithError(err).Warn("failed to flush address index")
		}
	}
	if c.engine != nil {
		if err := c.engine.Close(ctx); err != nil {
			log.WithError(err).Warn("failed to flush pending sync uploads")
		}
	}
	if c.cache != nil {
		c.cache.Close()
	}
	if c.bus != nil {
		c.bus.Close()
	}
	if c.db != nil {
		c.db.Close()
	}
}

func (c *Config) dbManager() (ports.DbManager, error) {
	if c.db == nil {
		switch c.DBType {
		case DBBadger:
			db, err := dbbadger.NewDbManager(c.DBDir, c.DBLogger)
			if err != nil {
				return nil, err
			}
			c.db = db
		case DBBolt:
			db, err := dbbolt.NewDbManager(c.DBDir)
			if err != nil {
				return nil, err
			}
			c.db = db
		case DBInMemory:
			c.db = inmemory.NewDbManager()
		default:
			return nil, fmt.Errorf("unsupported db type %q", c.DBType)
		}
	}
	return c.db, nil
}

func (c *Config) eventBus() *pubsub.Service {
	if c.bus == nil {
		c.bus = pubsub.NewService(c.WebhookTimeout)
	}
	return c.bus
}

func (c *Config) readCache() *cache.Cache {
	if c.cache == nil {
		c.cache = cache.New(c.eventBus())
	}
	return c.cache
}

func (c *Config) vaultService() (*vault.Service, error) {
	if c.vault == nil {
		db, err := c.dbManager()
		if err != nil {
			return nil, err
		}
		c.vault = vault.NewService(db, c.ScryptParams)
	}
	return c.vault, nil
}

func (c *Config) unlockerService() (*unlocker.Service, error) {
	if c.unlocker == nil {
		vaultSvc, err := c.vaultService()
		if err != nil {
			return nil, err
		}
		svc, err := unlocker.NewService(vaultSvc, c.SessionTTL)
		if err != nil {
			return nil, err
		}
		c.unlocker = svc
	}
	return c.unlocker, nil
}

func (c *Config) syncEngine() (*cloudsync.Engine, error) {
	if c.engine == nil {
		db, err := c.dbManager()
		if err != nil {
			return nil, err
		}
		vaultSvc, _ := c.vaultService()
		prompt, err := c.unlockerService()
		if err != nil {
			return nil, err
		}
		cfg := c.CloudSync
		cfg.Params = c.ScryptParams
		c.engine = cloudsync.NewEngine(
			db, c.SyncClient, vaultSvc, prompt, c.eventBus(), cfg,
		)
	}
	return c.engine, nil
}

func (c *Config) addressIndexer() (*addressindex.Indexer, error) {
	if c.indexer == nil {
		db, err := c.dbManager()
		if err != nil {
			return nil, err
		}
		c.indexer = addressindex.NewIndexer(db, c.AddressIndexDebounce)
	}
	return c.indexer, nil
}

func (c *Config) hierarchyService() (*hierarchy.Service, error) {
	if c.hierarchy == nil {
		db, err := c.dbManager()
		if err != nil {
			return nil, err
		}
		vaultSvc, _ := c.vaultService()
		prompt, _ := c.unlockerService()
		engine, err := c.syncEngine()
		if err != nil {
			return nil, err
		}
		indexer, _ := c.addressIndexer()
		c.hierarchy = hierarchy.NewService(
			db, vaultSvc, engine, c.readCache(), c.eventBus(), prompt,
			c.Hardware, indexer,
		)
	}
	return c.hierarchy, nil
}

func (c *Config) archiveService() (*archive.Service, error) {
	if c.archive == nil {
		db, err := c.dbManager()
		if err != nil {
			return nil, err
		}
		c.archive = archive.NewService(db)
	}
	return c.archive, nil
}
