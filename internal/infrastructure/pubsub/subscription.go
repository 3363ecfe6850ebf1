package pubsub

import (
	"fmt"
	"net/url"
	"sort"

	"github.com/google/uuid"
	"github.com/tdex-network/walletdb/internal/core/domain"
)

// AnyEvent subscribes a webhook to every event.
const AnyEvent = "*"

// Subscription is a webhook notified with the JSON encoded event on every
// publish of the subscribed event.
type Subscription struct {
	ID       string `json:"id"`
	Event    string `json:"event"`
	Endpoint string `json:"endpoint"`
	Secret   string `json:"-"`
}

type subscriptions []Subscription

func NewSubscription(event, endpoint, secret string) (*Subscription, error) {
	if len(event) <= 0 {
		return nil, fmt.Errorf("missing event")
	}
	if !isKnownEvent(event) {
		return nil, fmt.Errorf("unknown event %s", event)
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid webhook endpoint, must be a valid URI")
	}
	id := uuid.New().String()
	return &Subscription{id, event, endpoint, secret}, nil
}

func (s *Subscription) IsSecured() bool {
	return len(s.Secret) > 0
}

func (s *Subscription) matches(name domain.EventName) bool {
	return s.Event == AnyEvent || s.Event == string(name)
}

func (s subscriptions) sorted() subscriptions {
	sort.SliceStable(s, func(i, j int) bool {
		return s[i].ID < s[j].ID
	})
	return s
}

func isKnownEvent(event string) bool {
	switch domain.EventName(event) {
	case domain.EventWalletUpdate,
		domain.EventWalletRemove,
		domain.EventWalletRename,
		domain.EventAccountUpdate,
		domain.EventAccountRemove,
		domain.EventRenameAccounts,
		domain.EventAddAccountsToWallet,
		domain.EventCloudSyncPasswordChanged:
		return true
	}
	return event == AnyEvent
}
