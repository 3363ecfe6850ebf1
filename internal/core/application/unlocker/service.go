// Package unlocker keeps the verified password of the current session and
// serves it to the operations that need one.
package unlocker

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/walletdb/internal/core/application/vault"
	"github.com/tdex-network/walletdb/internal/core/domain"
)

// Status ...
type Status struct {
	IsPasswordSet bool `json:"isPasswordSet"`
	IsUnlocked    bool `json:"isUnlocked"`
}

// Service implements ports.PasswordPrompt over an unlocked session. There is
// no interactive prompt: operations fail while the session is locked.
type Service struct {
	vault *vault.Service
	// ttl of the session, forever if zero
	ttl time.Duration
	now func() time.Time

	lock       sync.RWMutex
	password   string
	unlockedAt time.Time
}

func NewService(vaultSvc *vault.Service, ttl time.Duration) (*Service, error) {
	if vaultSvc == nil {
		return nil, fmt.Errorf("missing vault service")
	}
	return &Service{vault: vaultSvc, ttl: ttl, now: time.Now}, nil
}

// InitPassword configures the first password and unlocks the session.
func (s *Service) InitPassword(ctx context.Context, password string) error {
	if err := s.vault.SetPassword(ctx, password); err != nil {
		return err
	}
	s.setPassword(password)
	return nil
}

// Unlock verifies the password and keeps it for the session.
func (s *Service) Unlock(ctx context.Context, password string) error {
	if err := s.vault.VerifyPassword(ctx, password); err != nil {
		return err
	}
	s.setPassword(password)
	return nil
}

// Lock forgets the session password.
func (s *Service) Lock() {
	s.setPassword("")
}

// ChangePassword rotates every credential to the new password. The session
// stays unlocked with the new one.
func (s *Service) ChangePassword(ctx context.Context, oldPwd, newPwd string) error {
	if err := s.vault.Rotate(ctx, oldPwd, newPwd); err != nil {
		return err
	}
	s.setPassword(newPwd)
	log.Info("password changed")
	return nil
}

func (s *Service) Status(ctx context.Context) (Status, error) {
	isSet, err := s.vault.IsPasswordSet(ctx)
	if err != nil {
		return Status{}, err
	}
	_, unlocked := s.CachedPassword()
	return Status{IsPasswordSet: isSet, IsUnlocked: unlocked}, nil
}

// PromptAndVerify returns the session password once verified again against
// the stored sentinel.
func (s *Service) PromptAndVerify(ctx context.Context, reason string) (string, error) {
	password, ok := s.CachedPassword()
	if !ok {
		isSet, err := s.vault.IsPasswordSet(ctx)
		if err != nil {
			return "", err
		}
		if !isSet {
			return "", domain.NewPasswordNotConfiguredError()
		}
		return "", domain.NewInvalidPasswordError(
			fmt.Errorf("session is locked, unlock to %s", reason),
		)
	}
	if err := s.vault.VerifyPassword(ctx, password); err != nil {
		s.Lock()
		return "", err
	}
	return password, nil
}

func (s *Service) CachedPassword() (string, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.password == "" {
		return "", false
	}
	if s.ttl > 0 && s.now().Sub(s.unlockedAt) > s.ttl {
		return "", false
	}
	return s.password, true
}

func (s *Service) setPassword(password string) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.password = password
	s.unlockedAt = s.now()
}
