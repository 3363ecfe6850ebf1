// Package pubsub is the in-process event bus. Every published event is handed
// to the local subscribers and forwarded to the registered webhooks.
package pubsub

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/tdex-network/walletdb/internal/core/domain"
	"github.com/tdex-network/walletdb/pkg/circuitbreaker"
	"golang.org/x/sync/errgroup"
)

const tokenTTL = time.Minute

type handler struct {
	fn    func(domain.Event)
	names map[domain.EventName]struct{}
}

func (h handler) accepts(name domain.EventName) bool {
	if len(h.names) <= 0 {
		return true
	}
	_, ok := h.names[name]
	return ok
}

// Service implements ports.EventBus.
type Service struct {
	lock     sync.RWMutex
	handlers map[int]handler
	nextID   int
	subs     map[string]Subscription

	httpClient *client
	cb         *gobreaker.CircuitBreaker
	wg         sync.WaitGroup
}

func NewService(requestTimeout time.Duration) *Service {
	if requestTimeout <= 0 {
		requestTimeout = 15 * time.Second
	}
	return &Service{
		handlers:   make(map[int]handler),
		subs:       make(map[string]Subscription),
		httpClient: newHTTPClient(requestTimeout),
		cb:         circuitbreaker.NewCircuitBreaker("webhooks"),
	}
}

// Publish runs the local handlers in the caller's goroutine, then forwards
// the event to the webhooks in the background. Handlers must not block.
func (s *Service) Publish(event domain.Event) {
	s.lock.RLock()
	handlers := make([]handler, 0, len(s.handlers))
	for _, h := range s.handlers {
		if h.accepts(event.Name) {
			handlers = append(handlers, h)
		}
	}
	subs := s.listSubscriptionsForEvent(event.Name)
	s.lock.RUnlock()

	for _, h := range handlers {
		s.runHandler(h, event)
	}

	if len(subs) <= 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.publishForEvent(subs, event); err != nil {
			log.WithError(err).Warnf("failed to notify webhooks of %s", event.Name)
		}
	}()
}

// Subscribe registers fn for the given events, or for every event if none is
// given. The returned func removes the subscription.
func (s *Service) Subscribe(fn func(domain.Event), names ...domain.EventName) func() {
	h := handler{fn: fn, names: make(map[domain.EventName]struct{}, len(names))}
	for _, name := range names {
		h.names[name] = struct{}{}
	}

	s.lock.Lock()
	id := s.nextID
	s.nextID++
	s.handlers[id] = h
	s.lock.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.lock.Lock()
			delete(s.handlers, id)
			s.lock.Unlock()
		})
	}
}

// AddWebhook registers an endpoint for the given event, or AnyEvent.
func (s *Service) AddWebhook(event, endpoint, secret string) (string, error) {
	sub, err := NewSubscription(event, endpoint, secret)
	if err != nil {
		return "", err
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	s.subs[sub.ID] = *sub
	return sub.ID, nil
}

func (s *Service) RemoveWebhook(id string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.subs[id]; !ok {
		return fmt.Errorf("webhook not found")
	}
	delete(s.subs, id)
	return nil
}

// ListWebhooks returns the webhooks notified for the event. An empty event
// lists them all.
func (s *Service) ListWebhooks(event string) []Subscription {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if event == "" {
		subs := make(subscriptions, 0, len(s.subs))
		for _, sub := range s.subs {
			subs = append(subs, sub)
		}
		return subs.sorted()
	}
	return s.listSubscriptionsForEvent(domain.EventName(event))
}

// Close waits for the in-flight webhook notifications.
func (s *Service) Close() {
	s.wg.Wait()
}

func (s *Service) listSubscriptionsForEvent(name domain.EventName) subscriptions {
	subs := make(subscriptions, 0)
	for _, sub := range s.subs {
		if sub.matches(name) {
			subs = append(subs, sub)
		}
	}
	return subs.sorted()
}

func (s *Service) runHandler(h handler, event domain.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Warnf("recovered panic in %s event handler: %v", event.Name, rec)
		}
	}()
	h.fn(event)
}

func (s *Service) publishForEvent(subs subscriptions, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	eg := &errgroup.Group{}
	for i := range subs {
		sub := subs[i]
		eg.Go(func() error { return s.doRequest(sub, string(payload)) })
	}
	return eg.Wait()
}

func (s *Service) doRequest(sub Subscription, payload string) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		headers := map[string]string{
			"Content-Type": "application/json",
		}
		if sub.IsSecured() {
			now := time.Now()
			token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{
				Subject:   sub.Event,
				IssuedAt:  now.Unix(),
				ExpiresAt: now.Add(tokenTTL).Unix(),
			})
			tokenString, err := token.SignedString([]byte(sub.Secret))
			if err != nil {
				return nil, err
			}
			headers["Authorization"] = fmt.Sprintf("Bearer %s", tokenString)
		}

		status, resp, err := s.httpClient.post(sub.Endpoint, payload, headers)
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("webhook %s responded %d: %s", sub.ID, status, resp)
		}
		return nil, nil
	})

	return err
}
