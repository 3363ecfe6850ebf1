package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/walletdb/internal/config"
	"github.com/tdex-network/walletdb/internal/core/application"
	appsync "github.com/tdex-network/walletdb/internal/core/application/cloudsync"
	"github.com/tdex-network/walletdb/internal/infrastructure/cloudsync"
	"github.com/tdex-network/walletdb/internal/interfaces"
	httpinterface "github.com/tdex-network/walletdb/internal/interfaces/http"
	"github.com/tdex-network/walletdb/pkg/cypher"
	"gopkg.in/natefinch/lumberjack.v2"
)

const logFile = "walletdbd.log"

func main() {
	if err := config.InitConfig(); err != nil {
		log.WithError(err).Fatal("failed to load config")
	}

	log.SetLevel(config.GetLogLevel())
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(config.GetLogDir(), logFile),
		MaxSize:    10,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	}
	defer rotator.Close()
	log.SetOutput(io.MultiWriter(os.Stdout, rotator))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appConfig := &application.Config{
		DBType:   config.GetString(config.DBTypeKey),
		DBDir:    config.GetDbDir(),
		DBLogger: log.WithField("component", "badger"),
		ScryptParams: cypher.Params{
			N: config.GetInt(config.ScryptNKey),
			R: cypher.DefaultParams.R,
			P: cypher.DefaultParams.P,
		},
		SessionTTL:           config.GetDuration(config.SessionTTLKey),
		AddressIndexDebounce: config.GetDuration(config.AddressIndexDebounceKey),
		SyncInterval:         config.GetDuration(config.CloudSyncIntervalKey),
		GCInterval:           config.GetDuration(config.DBGCIntervalKey),
		CloudSync: appsync.Config{
			Enabled:        config.GetBool(config.CloudSyncEnabledKey),
			Salt:           config.GetString(config.CloudSyncUserIDKey),
			UploadDebounce: config.GetDuration(config.SyncUploadDebounceKey),
		},
	}

	var syncClient *cloudsync.Client
	if config.GetBool(config.CloudSyncEnabledKey) {
		client, err := cloudsync.NewClient(cloudsync.Config{
			Endpoint:          config.GetString(config.CloudSyncEndpointKey),
			UserID:            config.GetString(config.CloudSyncUserIDKey),
			AuthSecret:        config.GetString(config.CloudSyncAuthSecretKey),
			RequestsPerSecond: config.GetInt(config.CloudSyncRequestsPerSecondKey),
		})
		if err != nil {
			log.WithError(err).Fatal("failed to initialize cloud sync client")
		}
		syncClient = client
		appConfig.SyncClient = client
	}

	if err := appConfig.Validate(); err != nil {
		log.WithError(err).Fatal("invalid config")
	}
	defer appConfig.Close(context.Background())

	if syncClient != nil {
		if endpoint := config.GetString(config.CloudSyncNotifyEndpointKey); endpoint != "" {
			engine := appConfig.SyncEngine()
			notifier, err := cloudsync.NewNotifier(endpoint, syncClient, cloudsync.Handlers{
				OnPasswordChanged: engine.HandleServerPasswordChanged,
				OnItemsChanged: func() {
					go engine.SyncSilentlyThrottled(ctx)
				},
			})
			if err != nil {
				log.WithError(err).Fatal("failed to initialize sync notifier")
			}
			notifier.Start(ctx)
			defer notifier.Stop()
		}
	}

	if err := appConfig.StartScheduler(ctx); err != nil {
		log.WithError(err).Fatal("failed to start scheduler")
	}

	var svc interfaces.Service
	svc, err := httpinterface.NewService(appConfig, httpinterface.Options{
		Port:      config.GetInt(config.HTTPListeningPortKey),
		RateLimit: float64(config.GetInt(config.HTTPRateLimitKey)),
		Burst:     config.GetInt(config.HTTPRateBurstKey),
	})
	if err != nil {
		log.WithError(err).Fatal("failed to initialize http interface")
	}

	log.RegisterExitHandler(svc.Stop)

	if err := svc.Start(); err != nil {
		log.WithError(err).Fatal("failed to start http interface")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan

	log.Info("shutting down daemon")
	svc.Stop()
	cancel()
	log.Debug("exiting")
}
