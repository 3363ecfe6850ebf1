// Package vault encrypts the secrets of the local database under the user
// password and re-encrypts them on password change.
package vault

import (
	"context"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/walletdb/internal/core/application/dbcontext"
	"github.com/tdex-network/walletdb/internal/core/domain"
	"github.com/tdex-network/walletdb/internal/core/ports"
	"github.com/tdex-network/walletdb/internal/storageutil/records"
	"github.com/tdex-network/walletdb/pkg/cypher"
)

// Service is the credential vault.
type Service struct {
	db     ports.DbManager
	params cypher.Params

	// rotation rewrites every credential, one at a time
	rotateLock sync.Mutex
}

func NewService(db ports.DbManager, params cypher.Params) *Service {
	return &Service{db: db, params: params}
}

// Encrypt ...
func (s *Service) Encrypt(secret []byte, password string) (string, error) {
	ciphertext, err := cypher.Encrypt(cypher.EncryptOpts{
		PlainText:  secret,
		Passphrase: password,
		Params:     s.params,
	})
	if err != nil {
		if errors.Is(err, cypher.ErrNullPassphrase) {
			return "", domain.NewInvalidPasswordError(err)
		}
		return "", domain.WrapGenericLocalError(err, "encrypt credential")
	}
	return ciphertext, nil
}

// Decrypt returns InvalidPassword when the ciphertext cannot be opened with
// the given password.
func (s *Service) Decrypt(ciphertext, password string) ([]byte, error) {
	plaintext, err := cypher.Decrypt(cypher.DecryptOpts{
		CypherText: ciphertext,
		Passphrase: password,
		Params:     s.params,
	})
	if err != nil {
		if errors.Is(err, cypher.ErrDecryptionFailed) ||
			errors.Is(err, cypher.ErrNullPassphrase) {
			return nil, domain.NewInvalidPasswordError(err)
		}
		return nil, domain.WrapGenericLocalError(err, "decrypt credential")
	}
	return plaintext, nil
}

// IsPasswordSet ...
func (s *Service) IsPasswordSet(ctx context.Context) (bool, error) {
	var isSet bool
	err := s.db.RunTransaction(ctx, domain.BucketAccount, true,
		func(ctx context.Context, tx ports.Tx) error {
			c, err := dbcontext.Get(tx)
			if err != nil {
				return err
			}
			isSet = c.IsPasswordSet()
			return nil
		},
	)
	return isSet, err
}

// VerifyPassword decrypts the verification sentinel with the password.
func (s *Service) VerifyPassword(ctx context.Context, password string) error {
	var verifyString string
	err := s.db.RunTransaction(ctx, domain.BucketAccount, true,
		func(ctx context.Context, tx ports.Tx) error {
			c, err := dbcontext.Get(tx)
			if err != nil {
				return err
			}
			verifyString = c.VerifyString
			return nil
		},
	)
	if err != nil {
		return err
	}
	return s.verify(verifyString, password)
}

func (s *Service) verify(verifyString, password string) error {
	if verifyString == "" {
		return domain.NewPasswordNotConfiguredError()
	}
	plaintext, err := s.Decrypt(verifyString, password)
	if err != nil {
		return err
	}
	if string(plaintext) != domain.DefaultVerifyString {
		return domain.NewInvalidPasswordError(nil)
	}
	return nil
}

// SetPassword configures the first password.
func (s *Service) SetPassword(ctx context.Context, password string) error {
	return s.UpdatePassword(ctx, "", password, true)
}

// Rotate re-encrypts every credential from the old to the new password.
func (s *Service) Rotate(ctx context.Context, oldPassword, newPassword string) error {
	return s.UpdatePassword(ctx, oldPassword, newPassword, false)
}

// UpdatePassword changes the password. In create mode no credential is
// expected to exist and no old password is required. Every credential is
// re-encrypted in the same transaction that writes the new verification
// ciphertext, last. A single decryption failure aborts the whole rotation.
func (s *Service) UpdatePassword(
	ctx context.Context, oldPassword, newPassword string, isCreateMode bool,
) error {
	s.rotateLock.Lock()
	defer s.rotateLock.Unlock()

	if newPassword == "" {
		return domain.NewGenericLocalError("new password must not be empty")
	}
	if oldPassword != "" {
		if err := s.VerifyPassword(ctx, oldPassword); err != nil {
			return err
		}
	} else if !isCreateMode {
		return domain.NewGenericLocalError("old password is required to change password")
	} else {
		isSet, err := s.IsPasswordSet(ctx)
		if err != nil {
			return err
		}
		if isSet {
			return domain.NewGenericLocalError("password is already set")
		}
	}

	newVerifyString, err := s.Encrypt([]byte(domain.DefaultVerifyString), newPassword)
	if err != nil {
		return err
	}

	return s.db.RunTransaction(ctx, domain.BucketAccount, false,
		func(ctx context.Context, tx ports.Tx) error {
			if oldPassword != "" {
				credentials, err := records.GetAll[domain.Credential](tx, domain.StoreCredential)
				if err != nil {
					return err
				}
				for i := range credentials {
					c := &credentials[i]
					secret, err := s.Decrypt(c.Credential, oldPassword)
					if err != nil {
						log.WithError(err).Warnf("failed to decrypt credential %s", c.ID)
						return err
					}
					if c.Credential, err = s.Encrypt(secret, newPassword); err != nil {
						return err
					}
					if err := tx.Update(domain.StoreCredential, c.ID, c); err != nil {
						return err
					}
				}
			}

			_, err := dbcontext.Update(tx, func(c *domain.Context) error {
				c.VerifyString = newVerifyString
				return nil
			})
			return err
		},
	)
}

// TxAddCredential encrypts the secret and stores it under id. Existing
// credentials are left untouched.
func (s *Service) TxAddCredential(
	tx ports.Tx, id string, secret []byte, password string,
) error {
	ciphertext, err := s.Encrypt(secret, password)
	if err != nil {
		return err
	}
	_, err = records.Add(tx, domain.StoreCredential, []domain.Credential{
		{ID: id, Credential: ciphertext},
	}, true)
	return err
}

// TxSaveCredential stores an already encrypted credential, so that the key
// derivation happens before the transaction starts.
func (s *Service) TxSaveCredential(tx ports.Tx, id, ciphertext string) error {
	_, err := records.Add(tx, domain.StoreCredential, []domain.Credential{
		{ID: id, Credential: ciphertext},
	}, true)
	return err
}

// TxRemoveCredential ...
func (s *Service) TxRemoveCredential(tx ports.Tx, id string) error {
	return records.Remove(tx, domain.StoreCredential, []string{id}, true)
}

// RevealCredential verifies the password and returns the decrypted secret.
func (s *Service) RevealCredential(ctx context.Context, id, password string) ([]byte, error) {
	if err := s.VerifyPassword(ctx, password); err != nil {
		return nil, err
	}
	var credential *domain.Credential
	err := s.db.RunTransaction(ctx, domain.BucketAccount, true,
		func(ctx context.Context, tx ports.Tx) error {
			var err error
			credential, err = records.Get[domain.Credential](tx, domain.StoreCredential, id)
			return err
		},
	)
	if err != nil {
		return nil, err
	}
	return s.Decrypt(credential.Credential, password)
}

// SetAgentCredential stores or replaces a service-agent secret.
func (s *Service) SetAgentCredential(
	ctx context.Context, name string, secret []byte, password string,
) error {
	if err := s.VerifyPassword(ctx, password); err != nil {
		return err
	}
	ciphertext, err := s.Encrypt(secret, password)
	if err != nil {
		return err
	}
	return s.db.RunTransaction(ctx, domain.BucketAccount, false,
		func(ctx context.Context, tx ports.Tx) error {
			return records.Upsert(tx, domain.StoreCredential, &domain.Credential{
				ID:         domain.BuildAgentCredentialID(name),
				Credential: ciphertext,
			})
		},
	)
}

// GetAgentCredential ...
func (s *Service) GetAgentCredential(
	ctx context.Context, name, password string,
) ([]byte, error) {
	return s.RevealCredential(ctx, domain.BuildAgentCredentialID(name), password)
}
