package cloudsync

import (
	"encoding/hex"

	"github.com/tdex-network/walletdb/internal/core/domain"
	"github.com/tdex-network/walletdb/pkg/cypher"
	"lukechampine.com/blake3"
)

const (
	pwdHashLength = 32
	// lockPassphrase derives the static key of the lock item, readable by
	// every device knowing the account salt.
	lockPassphrase = "lock"
	// AgentCredentialName is the vault entry holding the sync password.
	AgentCredentialName = "cloudsync"
)

// KeyBuilder derives the sync keys of an account. It only needs the account
// salt, so keys can be computed while the sync password is locked.
type KeyBuilder struct {
	salt string
}

func NewKeyBuilder(salt string) KeyBuilder {
	return KeyBuilder{salt}
}

// SyncKey returns hex(blake3(salt|dataType|rawKey)).
func (k KeyBuilder) SyncKey(dataType domain.SyncDataType, rawKey string) string {
	h := blake3.New(32, nil)
	h.Write([]byte(k.salt))
	h.Write([]byte(dataType))
	h.Write([]byte(rawKey))
	return hex.EncodeToString(h.Sum(nil))
}

// Credential encrypts the payloads of one password epoch.
type Credential struct {
	KeyBuilder
	dataKey []byte
	PwdHash string
}

// DeriveCredential derives the data key of the sync password with scrypt and
// tags it with hex(blake3(dataKey))[:32].
func DeriveCredential(syncPassword, salt string, params cypher.Params) (*Credential, error) {
	if syncPassword == "" {
		return nil, domain.NewInvalidPasswordError(cypher.ErrNullPassphrase)
	}
	dataKey, _, err := cypher.DeriveKey([]byte(syncPassword), []byte(salt), params)
	if err != nil {
		return nil, domain.WrapGenericLocalError(err, "derive sync key")
	}
	sum := blake3.Sum256(dataKey)
	return &Credential{
		KeyBuilder: NewKeyBuilder(salt),
		dataKey:    dataKey,
		PwdHash:    hex.EncodeToString(sum[:])[:pwdHashLength],
	}, nil
}

// LockCredential returns the static credential of the lock item. Its epoch is
// the one of the given credential.
func LockCredential(c *Credential, params cypher.Params) (*Credential, error) {
	lock, err := DeriveCredential(lockPassphrase, c.salt, params)
	if err != nil {
		return nil, err
	}
	lock.PwdHash = c.PwdHash
	return lock, nil
}

func (c *Credential) Encrypt(plaintext []byte) (string, error) {
	data, err := cypher.EncryptWithKey(c.dataKey, plaintext)
	if err != nil {
		return "", domain.WrapGenericLocalError(err, "encrypt sync item")
	}
	return data, nil
}

func (c *Credential) Decrypt(data string) ([]byte, error) {
	plaintext, err := cypher.DecryptWithKey(c.dataKey, data)
	if err != nil {
		return nil, domain.NewInvalidPasswordError(err)
	}
	return plaintext, nil
}
