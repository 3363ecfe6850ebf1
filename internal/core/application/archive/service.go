// Package archive keeps the history of signed messages, signed transactions
// and connected sites, plus the custom home screens of hardware devices.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/walletdb/internal/core/application/dbcontext"
	"github.com/tdex-network/walletdb/internal/core/domain"
	"github.com/tdex-network/walletdb/internal/core/ports"
	"github.com/tdex-network/walletdb/internal/storageutil/records"
)

type SignedMessageParams struct {
	Title     string
	Favicon   string
	Type      string
	Message   string
	Address   string
	NetworkID string
}

type SignedTransactionParams struct {
	Title     string
	Hash      string
	Address   string
	NetworkID string
	Data      interface{}
}

type ConnectedSiteParams struct {
	Title string
	URL   string
	Items interface{}
}

// Service ...
type Service struct {
	db  ports.DbManager
	now func() int64
}

func NewService(db ports.DbManager) *Service {
	return &Service{db: db, now: domain.NowMillis}
}

// AddSignedMessage archives a signed message under the next message id.
func (s *Service) AddSignedMessage(
	ctx context.Context, params SignedMessageParams,
) (*domain.SignedMessage, error) {
	id, err := s.nextID(ctx, func(c *domain.Context) *int {
		return &c.NextSignatureMessageID
	})
	if err != nil {
		return nil, err
	}
	msg := domain.SignedMessage{
		ID:        id,
		Title:     params.Title,
		Favicon:   params.Favicon,
		Type:      params.Type,
		Message:   params.Message,
		Address:   params.Address,
		NetworkID: params.NetworkID,
		CreatedAt: s.now(),
	}
	if err := s.insert(ctx, domain.StoreSignedMessage, msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// AddSignedTransaction archives a signed transaction. Data is stored as
// JSON.
func (s *Service) AddSignedTransaction(
	ctx context.Context, params SignedTransactionParams,
) (*domain.SignedTransaction, error) {
	data, err := json.Marshal(params.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transaction data: %w", err)
	}
	id, err := s.nextID(ctx, func(c *domain.Context) *int {
		return &c.NextSignatureTransactionID
	})
	if err != nil {
		return nil, err
	}
	signedTx := domain.SignedTransaction{
		ID:        id,
		Title:     params.Title,
		Hash:      params.Hash,
		Address:   params.Address,
		NetworkID: params.NetworkID,
		Data:      string(data),
		CreatedAt: s.now(),
	}
	if err := s.insert(ctx, domain.StoreSignedTransaction, signedTx); err != nil {
		return nil, err
	}
	return &signedTx, nil
}

// AddConnectedSite archives a dApp connection. Items is stored as JSON.
func (s *Service) AddConnectedSite(
	ctx context.Context, params ConnectedSiteParams,
) (*domain.ConnectedSite, error) {
	items, err := json.Marshal(params.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to encode connected site items: %w", err)
	}
	id, err := s.nextID(ctx, func(c *domain.Context) *int {
		return &c.NextConnectedSiteID
	})
	if err != nil {
		return nil, err
	}
	site := domain.ConnectedSite{
		ID:        id,
		Title:     params.Title,
		URL:       params.URL,
		Items:     string(items),
		CreatedAt: s.now(),
	}
	if err := s.insert(ctx, domain.StoreConnectedSite, site); err != nil {
		return nil, err
	}
	return &site, nil
}

// GetSignedMessages returns the archived messages, newest first.
func (s *Service) GetSignedMessages(ctx context.Context) ([]domain.SignedMessage, error) {
	list, err := getAll[domain.SignedMessage](ctx, s.db, domain.StoreSignedMessage)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool {
		return newerFirst(list[i].CreatedAt, list[i].ID, list[j].CreatedAt, list[j].ID)
	})
	return list, nil
}

// GetSignedTransactions returns the archived transactions, newest first.
func (s *Service) GetSignedTransactions(ctx context.Context) ([]domain.SignedTransaction, error) {
	list, err := getAll[domain.SignedTransaction](ctx, s.db, domain.StoreSignedTransaction)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool {
		return newerFirst(list[i].CreatedAt, list[i].ID, list[j].CreatedAt, list[j].ID)
	})
	return list, nil
}

// GetConnectedSites returns the archived connections, newest first.
func (s *Service) GetConnectedSites(ctx context.Context) ([]domain.ConnectedSite, error) {
	list, err := getAll[domain.ConnectedSite](ctx, s.db, domain.StoreConnectedSite)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool {
		return newerFirst(list[i].CreatedAt, list[i].ID, list[j].CreatedAt, list[j].ID)
	})
	return list, nil
}

func (s *Service) RemoveAllSignedMessages(ctx context.Context) (int, error) {
	return s.clear(ctx, domain.StoreSignedMessage, records.Clear[domain.SignedMessage])
}

func (s *Service) RemoveAllSignedTransactions(ctx context.Context) (int, error) {
	return s.clear(ctx, domain.StoreSignedTransaction, records.Clear[domain.SignedTransaction])
}

func (s *Service) RemoveAllConnectedSites(ctx context.Context) (int, error) {
	return s.clear(ctx, domain.StoreConnectedSite, records.Clear[domain.ConnectedSite])
}

// nextID reserves the counter selected by field and returns its value as
// a record id. A failed insert afterwards leaves a gap in the sequence.
func (s *Service) nextID(
	ctx context.Context, field func(c *domain.Context) *int,
) (string, error) {
	var id string
	err := s.db.RunTransaction(ctx, domain.BucketAccount, false,
		func(ctx context.Context, tx ports.Tx) error {
			_, err := dbcontext.Update(tx, func(c *domain.Context) error {
				counter := field(c)
				if *counter < 1 {
					*counter = 1
				}
				id = domain.BuildArchiveID(*counter)
				*counter++
				return nil
			})
			return err
		},
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Service) insert(ctx context.Context, store domain.StoreName, record interface{}) error {
	return s.db.RunTransaction(ctx, domain.BucketArchive, false,
		func(ctx context.Context, tx ports.Tx) error {
			switch r := record.(type) {
			case domain.SignedMessage:
				_, err := records.Add(tx, store, []domain.SignedMessage{r}, false)
				return err
			case domain.SignedTransaction:
				_, err := records.Add(tx, store, []domain.SignedTransaction{r}, false)
				return err
			case domain.ConnectedSite:
				_, err := records.Add(tx, store, []domain.ConnectedSite{r}, false)
				return err
			default:
				return domain.NewGenericLocalError("unsupported archive record %T", record)
			}
		},
	)
}

func (s *Service) clear(
	ctx context.Context, store domain.StoreName,
	clearFn func(tx ports.Tx, store domain.StoreName) (int, error),
) (int, error) {
	var count int
	err := s.db.RunTransaction(ctx, domain.BucketArchive, false,
		func(ctx context.Context, tx ports.Tx) error {
			var err error
			count, err = clearFn(tx, store)
			return err
		},
	)
	if err != nil {
		return 0, err
	}
	log.Debugf("archive: removed %d records from %s", count, store)
	return count, nil
}

func getAll[T domain.Record](
	ctx context.Context, db ports.DbManager, store domain.StoreName,
) ([]T, error) {
	var list []T
	err := db.RunTransaction(ctx, domain.BucketArchive, true,
		func(ctx context.Context, tx ports.Tx) error {
			var err error
			list, err = records.GetAll[T](tx, store)
			return err
		},
	)
	return list, err
}

// newerFirst orders by creation time, then by numeric id, descending.
func newerFirst(createdA int64, idA string, createdB int64, idB string) bool {
	if createdA != createdB {
		return createdA > createdB
	}
	a, errA := strconv.Atoi(idA)
	b, errB := strconv.Atoi(idB)
	if errA != nil || errB != nil {
		return strings.Compare(idA, idB) > 0
	}
	return a > b
}
