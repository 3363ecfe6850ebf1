package httpinterface_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/walletdb/internal/core/application"
	"github.com/tdex-network/walletdb/internal/core/application/cloudsync"
	"github.com/tdex-network/walletdb/internal/core/domain"
	httpinterface "github.com/tdex-network/walletdb/internal/interfaces/http"
	"github.com/tdex-network/walletdb/pkg/cypher"
)

const password = "Sup3rS3cr3tP4ssw0rd!"

func newServer(t *testing.T, opts httpinterface.Options) *httptest.Server {
	cfg := &application.Config{
		DBType:               application.DBInMemory,
		ScryptParams:         cypher.Params{N: 1024, R: 8, P: 1},
		AddressIndexDebounce: time.Hour,
		CloudSync: cloudsync.Config{
			Enabled:        true,
			Salt:           "user-salt",
			UploadDebounce: time.Hour,
		},
	}
	require.NoError(t, cfg.Validate())
	srv := httptest.NewServer(httpinterface.NewRouter(cfg, opts))
	t.Cleanup(func() {
		srv.Close()
		cfg.Close(context.Background())
	})
	return srv
}

func doRequest(
	t *testing.T, srv *httptest.Server, method, path string, body interface{},
) (int, []byte) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	buf, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, buf
}

func TestRouter(t *testing.T) {
	srv := newServer(t, httpinterface.Options{})

	t.Run("health", func(t *testing.T) {
		status, body := doRequest(t, srv, http.MethodGet, "/healthz", nil)
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, "ok", string(body))

		status, _ = doRequest(t, srv, http.MethodGet, "/metrics", nil)
		require.Equal(t, http.StatusOK, status)
	})

	t.Run("locked session", func(t *testing.T) {
		status, body := doRequest(t, srv, http.MethodPost, "/v1/wallets/hd", map[string]interface{}{
			"seed": domain.HDSeed{Entropy: "00112233", Seed: "deadbeefcafebabe"},
			"hash": "hash-1",
		})
		require.Equal(t, http.StatusPreconditionFailed, status)
		require.Contains(t, string(body), "PasswordNotConfigured")
	})

	t.Run("password", func(t *testing.T) {
		status, _ := doRequest(t, srv, http.MethodPost, "/v1/password/init", map[string]string{
			"password": password,
		})
		require.Equal(t, http.StatusNoContent, status)

		status, _ = doRequest(t, srv, http.MethodPost, "/v1/password/unlock", map[string]string{
			"password": "wrong",
		})
		require.Equal(t, http.StatusUnauthorized, status)

		status, body := doRequest(t, srv, http.MethodGet, "/v1/password/", nil)
		require.Equal(t, http.StatusOK, status)
		require.JSONEq(t, `{"isPasswordSet":true,"isUnlocked":true}`, string(body))
	})

	t.Run("wallets", func(t *testing.T) {
		for _, name := range []string{"Main", "Savings"} {
			status, _ := doRequest(t, srv, http.MethodPost, "/v1/wallets/hd", map[string]interface{}{
				"name": name,
				"seed": domain.HDSeed{Entropy: "00112233", Seed: "deadbeefcafebabe"},
				"hash": "hash-" + name,
			})
			require.Equal(t, http.StatusCreated, status)
		}

		status, body := doRequest(t, srv, http.MethodGet, "/v1/wallets/", nil)
		require.Equal(t, http.StatusOK, status)
		wallets := []domain.Wallet{}
		require.NoError(t, json.Unmarshal(body, &wallets))
		require.Len(t, wallets, 2)

		status, body = doRequest(t, srv, http.MethodPut, "/v1/wallets/hd-2/name", map[string]string{
			"name": "Main",
		})
		require.Equal(t, http.StatusConflict, status)
		require.Contains(t, string(body), "DuplicateName")

		status, _ = doRequest(t, srv, http.MethodPost, "/v1/wallets/hd-1/indexed-accounts/next", nil)
		require.Equal(t, http.StatusCreated, status)
		status, body = doRequest(t, srv, http.MethodGet, "/v1/wallets/hd-1/indexed-accounts", nil)
		require.Equal(t, http.StatusOK, status)
		indexed := []domain.IndexedAccount{}
		require.NoError(t, json.Unmarshal(body, &indexed))
		require.Len(t, indexed, 2)

		status, _ = doRequest(t, srv, http.MethodGet, "/v1/wallets/hd-9", nil)
		require.Equal(t, http.StatusNotFound, status)

		status, _ = doRequest(t, srv, http.MethodDelete, "/v1/wallets/hd-2", nil)
		require.Equal(t, http.StatusNoContent, status)
	})

	t.Run("address lookup", func(t *testing.T) {
		status, _ := doRequest(t, srv, http.MethodGet, "/v1/addresses/evm--1/0xabc", nil)
		require.Equal(t, http.StatusNotFound, status)
	})

	t.Run("archive", func(t *testing.T) {
		status, _ := doRequest(t, srv, http.MethodPost, "/v1/archive/signed-transactions", map[string]interface{}{
			"title": "swap",
			"hash":  "0xhash",
			"data":  map[string]string{"value": "10"},
		})
		require.Equal(t, http.StatusCreated, status)

		status, body := doRequest(t, srv, http.MethodGet, "/v1/archive/signed-transactions", nil)
		require.Equal(t, http.StatusOK, status)
		list := []domain.SignedTransaction{}
		require.NoError(t, json.Unmarshal(body, &list))
		require.Len(t, list, 1)
		require.JSONEq(t, `{"value":"10"}`, list[0].Data)

		status, _ = doRequest(t, srv, http.MethodPost, "/v1/archive/home-screens", domain.HardwareHomeScreen{
			DeviceID: "device-1",
			Name:     "moon",
		})
		require.Equal(t, http.StatusCreated, status)
		status, _ = doRequest(t, srv, http.MethodDelete, "/v1/archive/home-screens/device-1--moon", nil)
		require.Equal(t, http.StatusNoContent, status)

		status, body = doRequest(t, srv, http.MethodDelete, "/v1/archive/signed-transactions", nil)
		require.Equal(t, http.StatusOK, status)
		require.JSONEq(t, `{"count":1}`, string(body))
	})

	t.Run("sync without client", func(t *testing.T) {
		status, _ := doRequest(t, srv, http.MethodPost, "/v1/sync/", nil)
		require.Equal(t, http.StatusBadRequest, status)

		status, body := doRequest(t, srv, http.MethodGet, "/v1/sync/items", nil)
		require.Equal(t, http.StatusOK, status)
		items := []domain.CloudSyncItem{}
		require.NoError(t, json.Unmarshal(body, &items))
		require.NotEmpty(t, items)
	})

	t.Run("webhooks", func(t *testing.T) {
		status, _ := doRequest(t, srv, http.MethodPost, "/v1/webhooks/", map[string]string{
			"event":    "WalletUpdate",
			"endpoint": "not a url",
		})
		require.Equal(t, http.StatusBadRequest, status)

		status, _ = doRequest(t, srv, http.MethodDelete, "/v1/webhooks/missing", nil)
		require.Equal(t, http.StatusNotFound, status)
	})
}

func TestRateLimit(t *testing.T) {
	srv := newServer(t, httpinterface.Options{RateLimit: 0.001, Burst: 2})

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		status, _ := doRequest(t, srv, http.MethodGet, "/v1/password/", nil)
		statuses = append(statuses, status)
	}
	require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, statuses)

	// health checks are not limited
	status, _ := doRequest(t, srv, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, status)
}
