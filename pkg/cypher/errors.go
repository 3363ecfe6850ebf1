package cypher

import "errors"

var (
	// ErrNullPassphrase ...
	ErrNullPassphrase = errors.New("passphrase must not be null")
	// ErrNullPlainText ...
	ErrNullPlainText = errors.New("text to encrypt must not be null")
	// ErrNullCypherText ...
	ErrNullCypherText = errors.New("cypher to decrypt must not be null")
	// ErrInvalidCypherText ...
	ErrInvalidCypherText = errors.New("cypher must be in base64 format")
	// ErrInvalidKey ...
	ErrInvalidKey = errors.New("key must be 32 bytes long")
	// ErrDecryptionFailed is returned when the authenticated decryption fails,
	// either because of a wrong key or a tampered payload.
	ErrDecryptionFailed = errors.New("failed to decrypt cypher")
)
