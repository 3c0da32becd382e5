package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ericfisherdev/credvault/internal/crypto"
	"github.com/ericfisherdev/credvault/internal/domain/model"
	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

// ErrInvalidCredential indicates user-supplied credential fields failed validation.
var ErrInvalidCredential = errors.New("invalid credential")

// VaultService implements direct credential management: add, reveal, edit,
// delete, and list.
type VaultService struct {
	store     driven.CredentialStore
	vaultKeys driven.VaultKeyProvider
	icons     driven.IconLookup
	logger    *slog.Logger
	now       func() time.Time
}

// NewVaultService creates a new VaultService. icons may be nil.
func NewVaultService(
	store driven.CredentialStore,
	vaultKeys driven.VaultKeyProvider,
	icons driven.IconLookup,
	logger *slog.Logger,
) *VaultService {
	return &VaultService{
		store:     store,
		vaultKeys: vaultKeys,
		icons:     icons,
		logger:    logger,
		now:       nowUTC,
	}
}

// Add encrypts and stores a manually entered credential. An existing
// (user, origin URL, username) returns driven.ErrDuplicateCredential.
func (s *VaultService) Add(ctx context.Context, in model.CredentialInput) (*model.Credential, error) {
	in.OriginURL = strings.TrimSpace(in.OriginURL)
	in.Username = strings.TrimSpace(in.Username)
	if in.OriginURL == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, ErrMissingOrigin)
	}
	if in.Username == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, ErrMissingUsername)
	}

	blob, err := s.encrypt(ctx, in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	cred := model.Credential{
		UserID:             in.UserID,
		OriginURL:          in.OriginURL,
		SignonRealm:        in.SignonRealm,
		Icon:               s.lookupIcon(ctx, in.OriginURL),
		Username:           in.Username,
		Password:           blob,
		Browser:            model.BrowserNone,
		Breach:             model.BreachStatusUnknown,
		CreatedAt:          now,
		PasswordModifiedAt: now,
	}
	if cred.SignonRealm == "" {
		cred.SignonRealm = cred.OriginURL
	}

	id, err := s.store.Insert(ctx, cred)
	if err != nil {
		return nil, fmt.Errorf("add credential: %w", err)
	}
	cred.ID = id

	s.logger.Info("credential added", "credential_id", id, "user_id", in.UserID)
	return &cred, nil
}

// Get returns a credential without decrypting its password.
func (s *VaultService) Get(ctx context.Context, id int64) (*model.Credential, error) {
	cred, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get credential %d: %w", id, err)
	}
	if cred == nil {
		return nil, fmt.Errorf("get credential %d: %w", id, driven.ErrCredentialNotFound)
	}
	return cred, nil
}

// Reveal decrypts and returns a credential's password. A blob that does not
// decrypt returns crypto.ErrMalformedBlob or crypto.ErrAuthenticationFailed;
// it is never shown as an empty password.
func (s *VaultService) Reveal(ctx context.Context, id int64) (string, error) {
	cred, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}

	key, err := s.vaultKeys.AcquireVaultKey(ctx)
	if err != nil {
		return "", fmt.Errorf("acquire vault key: %w", err)
	}
	defer key.Wipe()

	plaintext, err := crypto.Decrypt(cred.Password, key)
	if err != nil {
		s.logger.Warn("unable to decrypt credential", "credential_id", id, "error", err)
		return "", fmt.Errorf("decrypt credential %d: %w", id, err)
	}
	return plaintext, nil
}

// Edit applies a partial update. A new password gets a fresh blob, a refreshed
// modification time, and an unknown breach status.
func (s *VaultService) Edit(ctx context.Context, id int64, edit model.CredentialEdit) (*model.Credential, error) {
	cred, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if edit.OriginURL != nil {
		origin := strings.TrimSpace(*edit.OriginURL)
		if origin == "" {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, ErrMissingOrigin)
		}
		if origin != cred.OriginURL {
			if cred.SignonRealm == cred.OriginURL {
				cred.SignonRealm = origin
			}
			cred.OriginURL = origin
			cred.Icon = s.lookupIcon(ctx, origin)
		}
	}

	if edit.Username != nil {
		username := strings.TrimSpace(*edit.Username)
		if username == "" {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, ErrMissingUsername)
		}
		cred.Username = username
	}

	if edit.Password != nil {
		blob, err := s.encrypt(ctx, *edit.Password)
		if err != nil {
			return nil, err
		}
		cred.Password = blob
		cred.PasswordModifiedAt = s.now()
		cred.Breach = model.BreachStatusUnknown
		cred.BreachCheckedAt = time.Time{}
	}

	if err := s.store.Update(ctx, *cred); err != nil {
		return nil, fmt.Errorf("edit credential: %w", err)
	}

	s.logger.Info("credential updated", "credential_id", id, "password_changed", edit.Password != nil)
	return cred, nil
}

// Delete removes a credential.
func (s *VaultService) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	s.logger.Info("credential deleted", "credential_id", id)
	return nil
}

// List returns every credential owned by userID. Passwords stay encrypted.
func (s *VaultService) List(ctx context.Context, userID int64) ([]model.Credential, error) {
	creds, err := s.store.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	return creds, nil
}

func (s *VaultService) encrypt(ctx context.Context, plaintext string) ([]byte, error) {
	key, err := s.vaultKeys.AcquireVaultKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire vault key: %w", err)
	}
	defer key.Wipe()

	blob, err := crypto.Encrypt(plaintext, key)
	if err != nil {
		return nil, fmt.Errorf("encrypt password: %w", err)
	}
	return blob, nil
}

func (s *VaultService) lookupIcon(ctx context.Context, originURL string) string {
	if s.icons == nil {
		return ""
	}
	icon, err := s.icons.Lookup(ctx, originURL)
	if err != nil {
		s.logger.Debug("icon lookup failed", "origin_url", originURL, "error", err)
		return ""
	}
	return icon
}
