package cloudsync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	MessagePasswordChanged = "passwordChanged"
	MessageItemsChanged    = "itemsChanged"

	minReconnectDelay = time.Second
	maxReconnectDelay = time.Minute
)

// Message is a notification pushed by the sync service.
type Message struct {
	Type    string `json:"type"`
	PwdHash string `json:"pwdHash,omitempty"`
}

// Handlers react to the notifications. Both run in the reading goroutine
// and must not block.
type Handlers struct {
	OnPasswordChanged func()
	OnItemsChanged    func()
}

// Notifier keeps a websocket open towards the sync service and dispatches
// its messages, reconnecting with backoff when the connection drops.
type Notifier struct {
	endpoint string
	client   *Client
	handlers Handlers
	dialer   *websocket.Dialer

	lock   sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}
}

func NewNotifier(endpoint string, client *Client, handlers Handlers) (*Notifier, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("missing notification endpoint")
	}
	if client == nil {
		return nil, fmt.Errorf("missing sync client")
	}
	return &Notifier{
		endpoint: endpoint,
		client:   client,
		handlers: handlers,
		dialer:   websocket.DefaultDialer,
	}, nil
}

// Start connects in background. It returns once the goroutine is running.
func (n *Notifier) Start(ctx context.Context) {
	n.lock.Lock()
	defer n.lock.Unlock()

	if n.cancel != nil {
		return
	}
	ctx, n.cancel = context.WithCancel(ctx)
	n.done = make(chan struct{})
	go n.run(ctx)
}

// Stop closes the connection and waits for the goroutine to exit.
func (n *Notifier) Stop() {
	n.lock.Lock()
	cancel, done, conn := n.cancel, n.done, n.conn
	n.cancel = nil
	n.lock.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if conn != nil {
		// nolint
		conn.Close()
	}
	<-done
}

func (n *Notifier) run(ctx context.Context) {
	defer close(n.done)

	delay := minReconnectDelay
	for {
		err := n.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.WithError(err).Warnf(
				"sync notification channel dropped, reconnecting in %s", delay,
			)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

func (n *Notifier) listen(ctx context.Context) error {
	token, err := n.client.token()
	if err != nil {
		return err
	}
	header := http.Header{}
	header.Set("Authorization", fmt.Sprintf("Bearer %s", token))

	conn, _, err := n.dialer.DialContext(ctx, n.endpoint, header)
	if err != nil {
		return err
	}
	n.lock.Lock()
	n.conn = conn
	n.lock.Unlock()
	defer func() {
		n.lock.Lock()
		n.conn = nil
		n.lock.Unlock()
		// nolint
		conn.Close()
	}()
	log.Debug("sync notification channel connected")

	for {
		_, buf, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}
		msg := Message{}
		if err := json.Unmarshal(buf, &msg); err != nil {
			log.WithError(err).Debug("skipping malformed sync notification")
			continue
		}
		n.dispatch(msg)
	}
}

func (n *Notifier) dispatch(msg Message) {
	switch msg.Type {
	case MessagePasswordChanged:
		if n.handlers.OnPasswordChanged != nil {
			n.handlers.OnPasswordChanged()
		}
	case MessageItemsChanged:
		if n.handlers.OnItemsChanged != nil {
			n.handlers.OnItemsChanged()
		}
	default:
		log.Debugf("skipping unknown sync notification %q", msg.Type)
	}
}
