// Package records provides typed CRUD helpers over a ports.Tx, translating
// backend errors into the domain error taxonomy.
package records

import (
	"errors"

	"github.com/tdex-network/walletdb/internal/core/domain"
	"github.com/tdex-network/walletdb/internal/core/ports"
)

// AddResult reports the outcome of Add.
type AddResult struct {
	Added    int
	Skipped  int
	AddedIDs []string
}

// Get returns the record or a RecordNotFound error.
func Get[T domain.Record](
	tx ports.Tx, store domain.StoreName, id string,
) (*T, error) {
	record := new(T)
	if err := tx.Get(store, id, record); err != nil {
		if errors.Is(err, ports.ErrRecordNotFound) {
			return nil, domain.NewRecordNotFoundError(store, id)
		}
		return nil, wrap(err, "get %s %s", store, id)
	}
	return record, nil
}

// GetSafe is Get returning nil instead of a not-found error.
func GetSafe[T domain.Record](
	tx ports.Tx, store domain.StoreName, id string,
) (*T, error) {
	record, err := Get[T](tx, store, id)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

// GetAll returns every record of the store.
func GetAll[T domain.Record](tx ports.Tx, store domain.StoreName) ([]T, error) {
	list := make([]T, 0)
	if err := tx.GetAll(store, &list); err != nil {
		return nil, wrap(err, "get all %s", store)
	}
	return list, nil
}

// GetByIDs returns one entry per id, nil for the missing ones.
func GetByIDs[T domain.Record](
	tx ports.Tx, store domain.StoreName, ids []string,
) ([]*T, error) {
	list := make([]*T, 0, len(ids))
	for _, id := range ids {
		record, err := GetSafe[T](tx, store, id)
		if err != nil {
			return nil, err
		}
		list = append(list, record)
	}
	return list, nil
}

// GetPairs returns the record pairs of the existing ids.
func GetPairs[T domain.Record](
	tx ports.Tx, store domain.StoreName, ids []string,
) ([]domain.RecordPair[T], error) {
	list, err := GetByIDs[T](tx, store, ids)
	if err != nil {
		return nil, err
	}
	pairs := make([]domain.RecordPair[T], 0, len(list))
	for _, r := range list {
		if r != nil {
			pairs = append(pairs, domain.NewRecordPair(r))
		}
	}
	return pairs, nil
}

// Add inserts the records. With skipIfExists, records whose id is already
// stored are counted as skipped instead of failing the transaction.
func Add[T domain.Record](
	tx ports.Tx, store domain.StoreName, list []T, skipIfExists bool,
) (AddResult, error) {
	result := AddResult{AddedIDs: make([]string, 0, len(list))}
	for i := range list {
		id := list[i].RecordID()
		if id == "" {
			return result, domain.NewGenericLocalError("missing record id in %s", store)
		}
		if err := tx.Insert(store, id, &list[i]); err != nil {
			if errors.Is(err, ports.ErrRecordExists) {
				if skipIfExists {
					result.Skipped++
					continue
				}
				return result, domain.NewGenericLocalError(
					"record %q already exists in %s", id, store,
				)
			}
			return result, wrap(err, "add %s %s", store, id)
		}
		result.Added++
		result.AddedIDs = append(result.AddedIDs, id)
	}
	return result, nil
}

// Update reads every id, applies the updater and writes the records back.
func Update[T domain.Record](
	tx ports.Tx, store domain.StoreName, ids []string, updater func(*T) error,
) error {
	pairs := make([]domain.RecordPair[T], 0, len(ids))
	for _, id := range ids {
		record, err := Get[T](tx, store, id)
		if err != nil {
			return err
		}
		pairs = append(pairs, domain.RecordPair[T]{ID: id, Record: record})
	}
	return UpdatePairs(tx, store, pairs, updater)
}

// UpdatePairs applies the updater to previously read records and writes them
// back without a second lookup.
func UpdatePairs[T domain.Record](
	tx ports.Tx, store domain.StoreName, pairs []domain.RecordPair[T],
	updater func(*T) error,
) error {
	for _, pair := range pairs {
		if pair.Record == nil {
			return domain.NewRecordNotFoundError(store, pair.ID)
		}
		if err := updater(pair.Record); err != nil {
			return err
		}
		if err := tx.Update(store, pair.ID, pair.Record); err != nil {
			if errors.Is(err, ports.ErrRecordNotFound) {
				return domain.NewRecordNotFoundError(store, pair.ID)
			}
			return wrap(err, "update %s %s", store, pair.ID)
		}
	}
	return nil
}

// Upsert updates the record if stored, inserts it otherwise.
func Upsert[T domain.Record](tx ports.Tx, store domain.StoreName, record *T) error {
	id := (*record).RecordID()
	exists, err := tx.Exists(store, id)
	if err != nil {
		return wrap(err, "upsert %s %s", store, id)
	}
	if exists {
		err = tx.Update(store, id, record)
	} else {
		err = tx.Insert(store, id, record)
	}
	if err != nil {
		return wrap(err, "upsert %s %s", store, id)
	}
	return nil
}

// Remove deletes the records with the given ids.
func Remove(
	tx ports.Tx, store domain.StoreName, ids []string, ignoreNotFound bool,
) error {
	for _, id := range ids {
		if err := tx.Delete(store, id); err != nil {
			if errors.Is(err, ports.ErrRecordNotFound) {
				if ignoreNotFound {
					continue
				}
				return domain.NewRecordNotFoundError(store, id)
			}
			return wrap(err, "remove %s %s", store, id)
		}
	}
	return nil
}

// RemovePairs deletes previously read records.
func RemovePairs[T domain.Record](
	tx ports.Tx, store domain.StoreName, pairs []domain.RecordPair[T],
	ignoreNotFound bool,
) error {
	ids := make([]string, 0, len(pairs))
	for _, p := range pairs {
		ids = append(ids, p.ID)
	}
	return Remove(tx, store, ids, ignoreNotFound)
}

// Clear deletes every record of the store.
func Clear[T domain.Record](tx ports.Tx, store domain.StoreName) (int, error) {
	list, err := GetAll[T](tx, store)
	if err != nil {
		return 0, err
	}
	ids := make([]string, 0, len(list))
	for _, r := range list {
		ids = append(ids, r.RecordID())
	}
	return len(ids), Remove(tx, store, ids, true)
}

func wrap(err error, format string, args ...interface{}) error {
	var domainErr *domain.Error
	if errors.As(err, &domainErr) {
		return err
	}
	return domain.WrapGenericLocalError(err, format, args...)
}
