package cloudsync_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/require"
	"github.com/tdex-network/walletdb/internal/core/domain"
	"github.com/tdex-network/walletdb/internal/core/ports"
	"github.com/tdex-network/walletdb/internal/infrastructure/cloudsync"
)

const (
	testSecret = "sync-secret"
	testUserID = "user-1"
)

var ctx = context.Background()

// fakeServer is a minimal sync service keeping the items in memory.
type fakeServer struct {
	lock  sync.Mutex
	items map[string]ports.SyncServerItem
	syncL *ports.SyncLock
	calls map[string]int
}

func newFakeServer(t *testing.T) (*fakeServer, *httptest.Server) {
	fs := &fakeServer{
		items: make(map[string]ports.SyncServerItem),
		calls: make(map[string]int),
	}
	srv := httptest.NewServer(http.HandlerFunc(fs.handle))
	t.Cleanup(srv.Close)
	return fs, srv
}

func (fs *fakeServer) handle(w http.ResponseWriter, r *http.Request) {
	if !fs.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.calls[r.URL.Path]++

	switch r.URL.Path {
	case "/v1/sync/upload", "/v1/sync/flush":
		body := struct {
			LocalData []ports.SyncServerItem `json:"localData"`
			PwdHash   string                 `json:"pwdHash"`
		}{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.URL.Path == "/v1/sync/flush" {
			fs.items = make(map[string]ports.SyncServerItem)
		}
		created := 0
		for _, item := range body.LocalData {
			if _, ok := fs.items[item.Key]; !ok {
				created++
			}
			fs.items[item.Key] = item
		}
		writeJSON(w, ports.SyncUploadResult{Created: created})
	case "/v1/sync/check":
		body := struct {
			LocalData []ports.SyncCheckItem `json:"localData"`
		}{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		result := ports.SyncCheckResult{ServerTime: 5000}
		for _, local := range body.LocalData {
			item, ok := fs.items[local.Key]
			if !ok {
				continue
			}
			if item.DataTimestamp > local.DataTimestamp {
				result.Updated = append(result.Updated, item)
			}
		}
		writeJSON(w, result)
	case "/v1/sync/download":
		if r.URL.Query().Get("skip") != "0" {
			http.Error(w, "unexpected skip", http.StatusBadRequest)
			return
		}
		result := ports.SyncDownloadResult{PwdHash: r.URL.Query().Get("pwdHash")}
		for _, item := range fs.items {
			result.Items = append(result.Items, item)
		}
		result.Total = len(result.Items)
		writeJSON(w, result)
	case "/v1/sync/lock":
		if r.Method == http.MethodPost {
			lock := ports.SyncLock{}
			if err := json.NewDecoder(r.Body).Decode(&lock); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			fs.syncL = &lock
			return
		}
		if fs.syncL == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, fs.syncL)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (fs *fakeServer) authorized(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return false
	}
	claims := &jwt.StandardClaims{}
	token, err := jwt.ParseWithClaims(
		strings.TrimPrefix(header, "Bearer "), claims,
		func(token *jwt.Token) (interface{}, error) {
			return []byte(testSecret), nil
		},
	)
	return err == nil && token.Valid && claims.Subject == testUserID && claims.Id != ""
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	// nolint
	json.NewEncoder(w).Encode(v)
}

func newClient(t *testing.T, endpoint, secret string) *cloudsync.Client {
	client, err := cloudsync.NewClient(cloudsync.Config{
		Endpoint:          endpoint,
		UserID:            testUserID,
		AuthSecret:        secret,
		RequestsPerSecond: 100,
	})
	require.NoError(t, err)
	return client
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name string
		cfg  cloudsync.Config
	}{
		{"missing endpoint", cloudsync.Config{UserID: "u", AuthSecret: "s"}},
		{"missing user", cloudsync.Config{Endpoint: "http://localhost", AuthSecret: "s"}},
		{"missing secret", cloudsync.Config{Endpoint: "http://localhost", UserID: "u"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cloudsync.NewClient(tt.cfg)
			require.Error(t, err)
		})
	}
}

func TestClient(t *testing.T) {
	fs, srv := newFakeServer(t)
	client := newClient(t, srv.URL+"/", testSecret)

	item := ports.SyncServerItem{
		Key:           "key-1",
		DataType:      domain.SyncDataTypeWallet,
		Data:          "ciphertext",
		DataTimestamp: 2000,
		PwdHash:       "pwd-hash",
	}

	t.Run("upload", func(t *testing.T) {
		res, err := client.Upload(ctx, []ports.SyncServerItem{item}, "pwd-hash", nil)
		require.NoError(t, err)
		require.Equal(t, 1, res.Created)
	})

	t.Run("check", func(t *testing.T) {
		res, err := client.Check(ctx, []ports.SyncCheckItem{
			{Key: "key-1", DataTimestamp: 1000, DataType: domain.SyncDataTypeWallet},
		}, false)
		require.NoError(t, err)
		require.Equal(t, int64(5000), res.ServerTime)
		require.Len(t, res.Updated, 1)
		require.Equal(t, item, res.Updated[0])
	})

	t.Run("download", func(t *testing.T) {
		res, err := client.Download(ctx, 0, 100, true, "pwd-hash")
		require.NoError(t, err)
		require.Equal(t, 1, res.Total)
		require.Equal(t, "pwd-hash", res.PwdHash)
	})

	t.Run("lock", func(t *testing.T) {
		lock, err := client.GetLock(ctx)
		require.NoError(t, err)
		require.Nil(t, lock)

		require.NoError(t, client.PostLock(ctx, ports.SyncLock{
			Key: domain.LockSyncItemKey, Data: "lock-data", PwdHash: "pwd-hash",
		}))
		lock, err = client.GetLock(ctx)
		require.NoError(t, err)
		require.NotNil(t, lock)
		require.Equal(t, "lock-data", lock.Data)
		require.Len(t, lock.Nonce, 32)
	})

	t.Run("flush", func(t *testing.T) {
		require.NoError(t, client.Flush(ctx, []ports.SyncServerItem{}, "", nil))
		res, err := client.Download(ctx, 0, 100, true, "")
		require.NoError(t, err)
		require.Zero(t, res.Total)
	})

	t.Run("unauthorized", func(t *testing.T) {
		other := newClient(t, srv.URL, "wrong-secret")
		_, err := other.Check(ctx, nil, true)
		var httpErr *cloudsync.HTTPError
		require.ErrorAs(t, err, &httpErr)
		require.Equal(t, http.StatusUnauthorized, httpErr.Status)
	})

	fs.lock.Lock()
	defer fs.lock.Unlock()
	require.Equal(t, 2, fs.calls["/v1/sync/download"])
}
