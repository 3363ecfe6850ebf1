package cloudsync_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"github.com/tdex-network/walletdb/internal/infrastructure/cloudsync"
)

func TestNotifier(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var authorized int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			atomic.StoreInt32(&authorized, 1)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for _, msg := range []string{
			`{"type":"itemsChanged"}`,
			`not json`,
			`{"type":"unknown"}`,
			`{"type":"passwordChanged","pwdHash":"new"}`,
		} {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
		// keep the connection open until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	var itemsChanged, passwordChanged int32
	client := newClient(t, srv.URL, testSecret)
	notifier, err := cloudsync.NewNotifier(
		"ws"+strings.TrimPrefix(srv.URL, "http"), client, cloudsync.Handlers{
			OnItemsChanged:    func() { atomic.AddInt32(&itemsChanged, 1) },
			OnPasswordChanged: func() { atomic.AddInt32(&passwordChanged, 1) },
		},
	)
	require.NoError(t, err)

	notifier.Start(ctx)
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&passwordChanged) == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, int32(1), atomic.LoadInt32(&itemsChanged))
	require.Equal(t, int32(1), atomic.LoadInt32(&authorized))

	notifier.Stop()
	notifier.Stop()
}

func TestNewNotifier(t *testing.T) {
	_, err := cloudsync.NewNotifier("", nil, cloudsync.Handlers{})
	require.Error(t, err)
}
