package cache_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/walletdb/internal/core/application/cache"
	"github.com/tdex-network/walletdb/internal/core/domain"
	"github.com/tdex-network/walletdb/internal/infrastructure/pubsub"
)

func TestCache(t *testing.T) {
	t.Run("GetOrLoad", testGetOrLoad())
	t.Run("Invalidate", testInvalidate())
	t.Run("EventInvalidation", testEventInvalidation())
}

func testGetOrLoad() func(*testing.T) {
	return func(t *testing.T) {
		c := cache.New(nil)
		loads := 0
		load := func() ([]string, error) {
			loads++
			return []string{"hd-1"}, nil
		}
		key := cache.Key(domain.StoreWallet)

		for i := 0; i < 3; i++ {
			v, err := cache.GetOrLoad(c, domain.StoreWallet, key, load)
			require.NoError(t, err)
			require.Equal(t, []string{"hd-1"}, v)
		}
		require.Equal(t, 1, loads)

		failure := errors.New("failure")
		_, err := cache.GetOrLoad(c, domain.StoreAccount, cache.Key(domain.StoreAccount),
			func() ([]string, error) { return nil, failure },
		)
		require.ErrorIs(t, err, failure)
		require.Equal(t, 1, c.Len())
	}
}

func testInvalidate() func(*testing.T) {
	return func(t *testing.T) {
		c := cache.New(nil)
		load := func() (int, error) { return 1, nil }

		for _, key := range []string{
			cache.Key(domain.StoreWallet),
			cache.Key(domain.StoreIndexedAccount, "hd-1"),
			cache.Key(domain.StoreIndexedAccount, "hd-2"),
		} {
			_, err := cache.GetOrLoad(c, domain.StoreWallet, key, load)
			require.NoError(t, err)
		}
		require.Equal(t, 3, c.Len())

		c.Invalidate(domain.StoreIndexedAccount)
		require.Equal(t, 1, c.Len())

		c.InvalidateAll()
		require.Zero(t, c.Len())
	}
}

func testEventInvalidation() func(*testing.T) {
	return func(t *testing.T) {
		bus := pubsub.NewService(time.Second)
		c := cache.New(bus)
		defer c.Close()

		_, err := cache.GetOrLoad(c, domain.StoreWallet, cache.Key(domain.StoreWallet),
			func() (int, error) { return 1, nil },
		)
		require.NoError(t, err)

		bus.Publish(domain.Event{Name: domain.EventCloudSyncPasswordChanged})
		require.Equal(t, 1, c.Len())

		bus.Publish(domain.Event{Name: domain.EventWalletUpdate})
		require.Zero(t, c.Len())
	}
}
