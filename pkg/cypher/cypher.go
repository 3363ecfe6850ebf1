package cypher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"

	"golang.org/x/crypto/scrypt"
)

const (
	// SaltLength is the length in bytes of the random salt appended to every
	// password-encrypted payload.
	SaltLength = 32
	// KeyLength is the length of the derived AES-256 key.
	KeyLength = 32
)

// Params are the scrypt cost parameters used to stretch a passphrase.
type Params struct {
	N int
	R int
	P int
}

// DefaultParams are the recommended key-stretching values. 2^20 iterations.
var DefaultParams = Params{N: 1 << 20, R: 8, P: 1}

func (p Params) orDefault() Params {
	if p.N <= 1 || p.R <= 0 || p.P <= 0 {
		return DefaultParams
	}
	return p
}

// EncryptOpts is the struct given to Encrypt method
type EncryptOpts struct {
	PlainText  []byte
	Passphrase string
	Params     Params
}

func (o EncryptOpts) validate() error {
	if len(o.PlainText) <= 0 {
		return ErrNullPlainText
	}
	if len(o.Passphrase) <= 0 {
		return ErrNullPassphrase
	}
	return nil
}

// Encrypt encrypts (with AES-256-GCM) a plaintext with a key derived from the
// provided passphrase. The result is base64(nonce|ciphertext|salt).
func Encrypt(opts EncryptOpts) (string, error) {
	if err := opts.validate(); err != nil {
		return "", err
	}

	key, salt, err := DeriveKey([]byte(opts.Passphrase), nil, opts.Params)
	if err != nil {
		return "", err
	}

	sealed, err := seal(key, opts.PlainText)
	if err != nil {
		return "", err
	}
	sealed = append(sealed, salt...)

	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptOpts is the struct given to Decrypt method
type DecryptOpts struct {
	CypherText string
	Passphrase string
	Params     Params
}

func (o DecryptOpts) validate() error {
	if len(o.CypherText) <= 0 {
		return ErrNullCypherText
	}
	buf, err := base64.StdEncoding.DecodeString(o.CypherText)
	if err != nil || len(buf) <= SaltLength {
		return ErrInvalidCypherText
	}
	if len(o.Passphrase) <= 0 {
		return ErrNullPassphrase
	}
	return nil
}

// Decrypt reverts Encrypt.
func Decrypt(opts DecryptOpts) ([]byte, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	data, _ := base64.StdEncoding.DecodeString(opts.CypherText)
	salt, data := data[len(data)-SaltLength:], data[:len(data)-SaltLength]

	key, _, err := DeriveKey([]byte(opts.Passphrase), salt, opts.Params)
	if err != nil {
		return nil, err
	}

	return open(key, data)
}

// EncryptWithKey seals the plaintext with an already derived key and returns
// base64(nonce|ciphertext). Used for high-volume payloads where stretching
// the passphrase on every call is too expensive.
func EncryptWithKey(key, plaintext []byte) (string, error) {
	if len(key) != KeyLength {
		return "", ErrInvalidKey
	}
	if len(plaintext) <= 0 {
		return "", ErrNullPlainText
	}
	sealed, err := seal(key, plaintext)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptWithKey reverts EncryptWithKey.
func DecryptWithKey(key []byte, cypherText string) ([]byte, error) {
	if len(key) != KeyLength {
		return nil, ErrInvalidKey
	}
	if len(cypherText) <= 0 {
		return nil, ErrNullCypherText
	}
	data, err := base64.StdEncoding.DecodeString(cypherText)
	if err != nil {
		return nil, ErrInvalidCypherText
	}
	return open(key, data)
}

// DeriveKey derives a 32 byte array key from a custom passhprase. A random
// salt is generated if none is given.
func DeriveKey(passphrase, salt []byte, params Params) ([]byte, []byte, error) {
	if salt == nil {
		salt = make([]byte, SaltLength)
		if _, err := rand.Read(salt); err != nil {
			return nil, nil, err
		}
	}
	p := params.orDefault()
	key, err := scrypt.Key(passphrase, salt, p.N, p.R, p.P, KeyLength)
	if err != nil {
		return nil, nil, err
	}
	return key, salt, nil
}

func seal(key, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err = rand.Read(nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func open(key, data []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(data) < gcm.NonceSize() {
		return nil, ErrInvalidCypherText
	}
	nonce, text := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, text, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	blockCipher, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(blockCipher)
}
