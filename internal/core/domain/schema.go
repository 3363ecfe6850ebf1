package domain

import "fmt"

// StoreName identifies a typed record store.
type StoreName string

// BucketName identifies a group of stores sharing one transaction scope.
type BucketName string

const (
	StoreContext            StoreName = "Context"
	StoreCredential         StoreName = "Credential"
	StoreWallet             StoreName = "Wallet"
	StoreIndexedAccount     StoreName = "IndexedAccount"
	StoreAccount            StoreName = "Account"
	StoreDevice             StoreName = "Device"
	StoreCloudSyncItem      StoreName = "CloudSyncItem"
	StoreAddress            StoreName = "Address"
	StoreSignedMessage      StoreName = "SignedMessage"
	StoreSignedTransaction  StoreName = "SignedTransaction"
	StoreConnectedSite      StoreName = "ConnectedSite"
	StoreHardwareHomeScreen StoreName = "HardwareHomeScreen"

	BucketAccount BucketName = "account"
	BucketAddress BucketName = "address"
	BucketArchive BucketName = "archive"
)

// Record is implemented by every persisted type.
type Record interface {
	RecordID() string
}

// RecordPair couples a previously-read record with the id it was stored
// under, so updates and removals inside the same transaction skip a second
// lookup.
type RecordPair[T Record] struct {
	ID     string
	Record *T
}

func NewRecordPair[T Record](record *T) RecordPair[T] {
	return RecordPair[T]{ID: (*record).RecordID(), Record: record}
}

type storeSchema struct {
	bucket BucketName
	new    func() Record
}

// Sync items live in the account bucket so they can be written in the same
// transaction as the entity they describe.
var registry = map[StoreName]storeSchema{
	StoreContext:            {BucketAccount, func() Record { return &Context{} }},
	StoreCredential:         {BucketAccount, func() Record { return &Credential{} }},
	StoreWallet:             {BucketAccount, func() Record { return &Wallet{} }},
	StoreIndexedAccount:     {BucketAccount, func() Record { return &IndexedAccount{} }},
	StoreAccount:            {BucketAccount, func() Record { return &Account{} }},
	StoreDevice:             {BucketAccount, func() Record { return &Device{} }},
	StoreCloudSyncItem:      {BucketAccount, func() Record { return &CloudSyncItem{} }},
	StoreAddress:            {BucketAddress, func() Record { return &Address{} }},
	StoreSignedMessage:      {BucketArchive, func() Record { return &SignedMessage{} }},
	StoreSignedTransaction:  {BucketArchive, func() Record { return &SignedTransaction{} }},
	StoreConnectedSite:      {BucketArchive, func() Record { return &ConnectedSite{} }},
	StoreHardwareHomeScreen: {BucketArchive, func() Record { return &HardwareHomeScreen{} }},
}

var bucketOrder = []BucketName{BucketAccount, BucketAddress, BucketArchive}

// Bucket returns the bucket owning the store.
func (s StoreName) Bucket() BucketName {
	return registry[s].bucket
}

func (s StoreName) IsValid() bool {
	_, ok := registry[s]
	return ok
}

// NewRecord returns a pointer to a zero value of the store's record type.
func NewRecord(store StoreName) (Record, error) {
	schema, ok := registry[store]
	if !ok {
		return nil, fmt.Errorf("unknown store %s", store)
	}
	return schema.new(), nil
}

// AllBuckets returns every bucket in a stable order.
func AllBuckets() []BucketName {
	return append([]BucketName{}, bucketOrder...)
}

// BucketStores lists the stores belonging to the bucket.
func BucketStores(bucket BucketName) []StoreName {
	stores := make([]StoreName, 0)
	for _, name := range allStores() {
		if registry[name].bucket == bucket {
			stores = append(stores, name)
		}
	}
	return stores
}

func allStores() []StoreName {
	return []StoreName{
		StoreContext, StoreCredential, StoreWallet, StoreIndexedAccount,
		StoreAccount, StoreDevice, StoreCloudSyncItem, StoreAddress,
		StoreSignedMessage, StoreSignedTransaction, StoreConnectedSite,
		StoreHardwareHomeScreen,
	}
}
