package httpinterface

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tdex-network/walletdb/internal/core/application"
)

// NewRouter mounts every handler of the API.
func NewRouter(appConfig *application.Config, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	password := &passwordHandler{appConfig.UnlockerService()}
	wallets := &walletHandler{
		hierarchy: appConfig.HierarchyService(),
		indexer:   appConfig.AddressIndexer(),
	}
	archive := &archiveHandler{appConfig.ArchiveService()}
	sync := &syncHandler{appConfig.SyncEngine()}
	webhooks := &webhookHandler{appConfig.EventBus()}

	limiter := newRateLimiter(opts.RateLimit, opts.Burst)
	r.Route("/v1", func(r chi.Router) {
		r.Use(limiter.middleware)

		r.Route("/password", func(r chi.Router) {
			r.Get("/", password.status)
			r.Post("/init", password.init)
			r.Post("/unlock", password.unlock)
			r.Post("/lock", password.lock)
			r.Post("/change", password.change)
		})

		r.Route("/wallets", func(r chi.Router) {
			r.Get("/", wallets.list)
			r.Post("/hd", wallets.createHD)
			r.Get("/{walletID}", wallets.get)
			r.Delete("/{walletID}", wallets.remove)
			r.Put("/{walletID}/name", wallets.rename)
			r.Put("/{walletID}/order", wallets.reorder)
			r.Get("/{walletID}/indexed-accounts", wallets.listIndexedAccounts)
			r.Post("/{walletID}/indexed-accounts/next", wallets.addNextIndexedAccount)
		})
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/{accountID}", wallets.getAccount)
			r.Delete("/{accountID}", wallets.removeAccount)
			r.Put("/name", wallets.renameAccount)
		})
		r.Get("/devices", wallets.listDevices)
		r.Get("/addresses/{networkID}/{address}", wallets.lookupAddress)

		r.Route("/archive", func(r chi.Router) {
			r.Get("/signed-messages", archive.listSignedMessages)
			r.Post("/signed-messages", archive.addSignedMessage)
			r.Delete("/signed-messages", archive.clearSignedMessages)
			r.Get("/signed-transactions", archive.listSignedTransactions)
			r.Post("/signed-transactions", archive.addSignedTransaction)
			r.Delete("/signed-transactions", archive.clearSignedTransactions)
			r.Get("/connected-sites", archive.listConnectedSites)
			r.Post("/connected-sites", archive.addConnectedSite)
			r.Delete("/connected-sites", archive.clearConnectedSites)
			r.Get("/home-screens/{deviceID}", archive.listHomeScreens)
			r.Post("/home-screens", archive.addHomeScreen)
			r.Delete("/home-screens/{homeScreenID}", archive.deleteHomeScreen)
		})

		r.Route("/sync", func(r chi.Router) {
			r.Post("/", sync.sync)
			r.Post("/password", sync.setPassword)
			r.Get("/items", sync.listItems)
			r.Get("/bookmarks", sync.listBookmarks)
		})

		r.Route("/webhooks", func(r chi.Router) {
			r.Get("/", webhooks.list)
			r.Post("/", webhooks.add)
			r.Delete("/{webhookID}", webhooks.remove)
		})
	})

	return r
}
