package vault_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/walletdb/internal/core/application/vault"
	"github.com/tdex-network/walletdb/internal/core/domain"
	"github.com/tdex-network/walletdb/internal/core/ports"
	"github.com/tdex-network/walletdb/internal/infrastructure/storage/db/inmemory"
	"github.com/tdex-network/walletdb/internal/storageutil/records"
	"github.com/tdex-network/walletdb/pkg/cypher"
)

var (
	ctx        = context.Background()
	testParams = cypher.Params{N: 1024, R: 8, P: 1}
	password   = "Sup3rS3cr3tP4ssw0rd!"
)

func TestVault(t *testing.T) {
	t.Run("RoundTrip", testRoundTrip())
	t.Run("VerifyPassword", testVerifyPassword())
	t.Run("Rotate", testRotate())
	t.Run("RotateIsAtomic", testRotateIsAtomic())
	t.Run("ConcurrentRotations", testConcurrentRotations())
	t.Run("AgentCredential", testAgentCredential())
}

func newTestVault(t *testing.T) (*vault.Service, ports.DbManager) {
	db := inmemory.NewDbManager()
	return vault.NewService(db, testParams), db
}

func testRoundTrip() func(*testing.T) {
	return func(t *testing.T) {
		svc, _ := newTestVault(t)

		secrets := [][]byte{
			[]byte(`{"entropy":"00112233","seed":"aabbcc"}`),
			[]byte(`{"privateKey":"0xdeadbeef"}`),
		}
		for _, secret := range secrets {
			ciphertext, err := svc.Encrypt(secret, password)
			require.NoError(t, err)
			require.NotContains(t, ciphertext, string(secret))

			revealed, err := svc.Decrypt(ciphertext, password)
			require.NoError(t, err)
			require.Equal(t, secret, revealed)

			_, err = svc.Decrypt(ciphertext, "wrong")
			require.ErrorIs(t, err, domain.ErrInvalidPassword)
		}
	}
}

func testVerifyPassword() func(*testing.T) {
	return func(t *testing.T) {
		svc, _ := newTestVault(t)

		err := svc.VerifyPassword(ctx, password)
		require.ErrorIs(t, err, domain.ErrPasswordNotConfigured)

		isSet, err := svc.IsPasswordSet(ctx)
		require.NoError(t, err)
		require.False(t, isSet)

		require.NoError(t, svc.SetPassword(ctx, password))
		require.Error(t, svc.SetPassword(ctx, "another"))

		isSet, err = svc.IsPasswordSet(ctx)
		require.NoError(t, err)
		require.True(t, isSet)

		require.NoError(t, svc.VerifyPassword(ctx, password))
		require.ErrorIs(t, svc.VerifyPassword(ctx, "wrong"), domain.ErrInvalidPassword)

		err = svc.UpdatePassword(ctx, "", "newpassword", false)
		require.ErrorIs(t, err, domain.ErrGenericLocal)
	}
}

func testRotate() func(*testing.T) {
	return func(t *testing.T) {
		svc, db := newTestVault(t)
		require.NoError(t, svc.SetPassword(ctx, password))

		secrets := map[string][]byte{
			"hd-1":                  []byte("seed one"),
			"hd-2":                  []byte("seed two"),
			"imported--60--0xpub":   []byte("private key"),
			"agent--backup-service": []byte("token"),
		}
		err := db.RunTransaction(ctx, domain.BucketAccount, false,
			func(ctx context.Context, tx ports.Tx) error {
				for id, secret := range secrets {
					if err := svc.TxAddCredential(tx, id, secret, password); err != nil {
						return err
					}
				}
				return nil
			},
		)
		require.NoError(t, err)

		newPassword := "n3wP4ssw0rd"
		err = svc.Rotate(ctx, "wrong", newPassword)
		require.ErrorIs(t, err, domain.ErrInvalidPassword)

		require.NoError(t, svc.Rotate(ctx, password, newPassword))

		require.ErrorIs(t, svc.VerifyPassword(ctx, password), domain.ErrInvalidPassword)
		require.NoError(t, svc.VerifyPassword(ctx, newPassword))

		for id, secret := range secrets {
			revealed, err := svc.RevealCredential(ctx, id, newPassword)
			require.NoError(t, err)
			require.Equal(t, secret, revealed)
		}
	}
}

func testRotateIsAtomic() func(*testing.T) {
	return func(t *testing.T) {
		svc, db := newTestVault(t)
		require.NoError(t, svc.SetPassword(ctx, password))

		foreign, err := svc.Encrypt([]byte("foreign"), "other password")
		require.NoError(t, err)

		err = db.RunTransaction(ctx, domain.BucketAccount, false,
			func(ctx context.Context, tx ports.Tx) error {
				if err := svc.TxAddCredential(tx, "hd-1", []byte("seed"), password); err != nil {
					return err
				}
				_, err := records.Add(tx, domain.StoreCredential, []domain.Credential{
					{ID: "hd-2", Credential: foreign},
				}, false)
				return err
			},
		)
		require.NoError(t, err)

		err = svc.Rotate(ctx, password, "n3wP4ssw0rd")
		require.ErrorIs(t, err, domain.ErrInvalidPassword)

		require.NoError(t, svc.VerifyPassword(ctx, password))
		revealed, err := svc.RevealCredential(ctx, "hd-1", password)
		require.NoError(t, err)
		require.Equal(t, []byte("seed"), revealed)
	}
}

func testConcurrentRotations() func(*testing.T) {
	return func(t *testing.T) {
		svc, _ := newTestVault(t)
		require.NoError(t, svc.SetPassword(ctx, password))

		wg := &sync.WaitGroup{}
		errs := make(chan error, 2)
		for _, next := range []string{"first", "second"} {
			wg.Add(1)
			go func(next string) {
				defer wg.Done()
				errs <- svc.Rotate(ctx, password, next)
			}(next)
		}
		wg.Wait()
		close(errs)

		failures := 0
		for err := range errs {
			if err != nil {
				require.ErrorIs(t, err, domain.ErrInvalidPassword)
				failures++
			}
		}
		require.Equal(t, 1, failures)
	}
}

func testAgentCredential() func(*testing.T) {
	return func(t *testing.T) {
		svc, _ := newTestVault(t)
		require.NoError(t, svc.SetPassword(ctx, password))

		require.NoError(t, svc.SetAgentCredential(ctx, "sync", []byte("v1"), password))
		require.NoError(t, svc.SetAgentCredential(ctx, "sync", []byte("v2"), password))

		secret, err := svc.GetAgentCredential(ctx, "sync", password)
		require.NoError(t, err)
		require.Equal(t, []byte("v2"), secret)

		_, err = svc.GetAgentCredential(ctx, "sync", "wrong")
		require.ErrorIs(t, err, domain.ErrInvalidPassword)
	}
}
