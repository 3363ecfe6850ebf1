package ports

import "github.com/tdex-network/walletdb/internal/core/domain"

// EventBus delivers domain events to subscribers without blocking the
// publisher.
type EventBus interface {
	Publish(event domain.Event)
	// Subscribe registers the handler for the given events, or for all of
	// them when none is given. The returned func unsubscribes.
	Subscribe(handler func(domain.Event), names ...domain.EventName) func()
}
