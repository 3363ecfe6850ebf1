// Package addressindex maintains the reverse index from chain addresses to
// the local accounts owning them.
package addressindex

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/walletdb/internal/core/domain"
	"github.com/tdex-network/walletdb/internal/core/ports"
	"github.com/tdex-network/walletdb/internal/storageutil/records"
	"github.com/tdex-network/walletdb/pkg/debounce"
)

// DefaultDebounce is the quiet period after which queued addresses are
// written.
const DefaultDebounce = 5 * time.Second

type entry struct {
	networkID string
	account   domain.Account
}

func (e entry) key() string {
	return e.networkID + domain.IDSeparator + e.account.ID
}

// Indexer queues the addresses of the accounts and writes them in batches.
// The index is never the source of truth: a lost batch only makes lookups
// miss.
type Indexer struct {
	db      ports.DbManager
	batcher *debounce.Batcher[string, entry]
}

// NewIndexer returns an Indexer flushing after delay, DefaultDebounce if
// not positive.
func NewIndexer(db ports.DbManager, delay time.Duration) *Indexer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	i := &Indexer{db: db}
	i.batcher = debounce.New(delay, 0, entry.key, i.write)
	return i
}

// SaveAccountAddresses queues the address of the account on the network.
// The aggregated network and the url account are not indexed.
func (i *Indexer) SaveAccountAddresses(networkID string, account domain.Account) {
	if networkID == "" || domain.IsAllNetwork(networkID) || account.IsURLAccount() {
		return
	}
	i.batcher.Add(entry{networkID, account})
}

// Pending returns the number of queued accounts.
func (i *Indexer) Pending() int {
	return i.batcher.Len()
}

// Flush writes the queued addresses right away.
func (i *Indexer) Flush(ctx context.Context) error {
	return i.batcher.Flush(ctx)
}

// Close flushes and stops accepting addresses.
func (i *Indexer) Close(ctx context.Context) error {
	return i.batcher.Stop(ctx)
}

// GetAddressByNetworkID returns the entry indexed under the exact network,
// nil if missing.
func (i *Indexer) GetAddressByNetworkID(
	ctx context.Context, networkID, address string,
) (*domain.Address, error) {
	return i.get(ctx, domain.BuildAddressRecordID(networkID, address))
}

// GetAddressByNetworkImpl returns the entry indexed under the implementation
// of the network, nil if missing. Evm addresses match in any casing.
func (i *Indexer) GetAddressByNetworkImpl(
	ctx context.Context, networkID, address string,
) (*domain.Address, error) {
	return i.get(ctx, domain.BuildAddressRecordID(domain.NetworkImpl(networkID), address))
}

// Lookup tries the implementation wide entry first, then the network one.
func (i *Indexer) Lookup(ctx context.Context, networkID, address string) (*domain.Address, error) {
	found, err := i.GetAddressByNetworkImpl(ctx, networkID, address)
	if err != nil || found != nil {
		return found, err
	}
	return i.GetAddressByNetworkID(ctx, networkID, address)
}

func (i *Indexer) get(ctx context.Context, id string) (*domain.Address, error) {
	var found *domain.Address
	if err := i.db.RunTransaction(ctx, domain.BucketAddress, true,
		func(ctx context.Context, tx ports.Tx) error {
			var err error
			found, err = records.GetSafe[domain.Address](tx, domain.StoreAddress, id)
			return err
		},
	); err != nil {
		return nil, err
	}
	return found, nil
}

func (i *Indexer) write(ctx context.Context, entries []entry) error {
	return i.db.RunTransaction(ctx, domain.BucketAddress, false,
		func(ctx context.Context, tx ports.Tx) error {
			written := 0
			for _, e := range entries {
				id := addressRecordID(e.networkID, e.account)
				if id == "" {
					continue
				}
				walletID := e.account.WalletID()
				owner := e.account.ID
				if e.account.IndexedAccountID != "" {
					owner = e.account.IndexedAccountID
				}

				record, err := records.GetSafe[domain.Address](tx, domain.StoreAddress, id)
				if err != nil {
					return err
				}
				if record == nil {
					record = &domain.Address{ID: id}
				}
				if record.Wallets == nil {
					record.Wallets = make(map[string]string)
				}
				if record.Wallets[walletID] == owner {
					continue
				}
				record.Wallets[walletID] = owner
				if err := records.Upsert(tx, domain.StoreAddress, record); err != nil {
					return err
				}
				written++
			}
			log.Debugf("address index: %d of %d entries written", written, len(entries))
			return nil
		},
	)
}

// addressRecordID keys simple and evm accounts by implementation so every
// network of the family resolves them, the others by network. Variant
// accounts fall back to their per network address.
func addressRecordID(networkID string, account domain.Account) string {
	if account.Address != "" {
		impl := domain.NetworkImpl(networkID)
		if account.Type == domain.AccountTypeSimple || impl == domain.ImplEVM {
			return domain.BuildAddressRecordID(impl, account.Address)
		}
		return domain.BuildAddressRecordID(networkID, account.Address)
	}
	if address := account.Addresses[networkID]; address != "" {
		return domain.BuildAddressRecordID(networkID, address)
	}
	return ""
}
