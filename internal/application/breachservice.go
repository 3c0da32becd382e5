package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/credvault/internal/crypto"
	"github.com/ericfisherdev/credvault/internal/domain/model"
	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

// BreachService checks stored passwords against the breach oracle. Checks run
// only when requested; nothing recomputes breach status in the background.
type BreachService struct {
	store     driven.CredentialStore
	vaultKeys driven.VaultKeyProvider
	oracle    driven.BreachOracle
	logger    *slog.Logger
	now       func() time.Time
}

// NewBreachService creates a new BreachService with all required dependencies.
func NewBreachService(
	store driven.CredentialStore,
	vaultKeys driven.VaultKeyProvider,
	oracle driven.BreachOracle,
	logger *slog.Logger,
) *BreachService {
	return &BreachService{
		store:     store,
		vaultKeys: vaultKeys,
		oracle:    oracle,
		logger:    logger,
		now:       nowUTC,
	}
}

// CheckCredential checks one credential and records the result. When the
// oracle is unavailable the stored status is left unchanged and the error
// wraps driven.ErrOracleUnavailable.
func (s *BreachService) CheckCredential(ctx context.Context, id int64) (model.BreachStatus, error) {
	cred, err := s.store.Get(ctx, id)
	if err != nil {
		return model.BreachStatusUnknown, fmt.Errorf("get credential %d: %w", id, err)
	}
	if cred == nil {
		return model.BreachStatusUnknown, fmt.Errorf("get credential %d: %w", id, driven.ErrCredentialNotFound)
	}

	key, err := s.vaultKeys.AcquireVaultKey(ctx)
	if err != nil {
		return model.BreachStatusUnknown, fmt.Errorf("acquire vault key: %w", err)
	}
	defer key.Wipe()

	return s.check(ctx, cred, key)
}

// CheckAll checks every credential owned by userID. Each result is committed
// as soon as it is known, so a failure partway through keeps earlier results.
// Undecryptable records and oracle outages are counted, not returned; the
// error is reserved for failures that stop the run (listing, key acquisition,
// storage writes, cancellation).
func (s *BreachService) CheckAll(ctx context.Context, userID int64) (model.BreachSummary, error) {
	var summary model.BreachSummary

	creds, err := s.store.List(ctx, userID)
	if err != nil {
		return summary, fmt.Errorf("list credentials for user %d: %w", userID, err)
	}
	if len(creds) == 0 {
		return summary, nil
	}

	key, err := s.vaultKeys.AcquireVaultKey(ctx)
	if err != nil {
		return summary, fmt.Errorf("acquire vault key: %w", err)
	}
	defer key.Wipe()

	for i := range creds {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		status, err := s.check(ctx, &creds[i], key)
		switch {
		case err == nil:
			summary.Checked++
			if status == model.BreachStatusBreached {
				summary.Breached++
			} else {
				summary.Clean++
			}
		case errors.Is(err, driven.ErrOracleUnavailable):
			summary.Unavailable++
		case isDecryptError(err):
			summary.Undecryptable++
		default:
			return summary, err
		}
	}

	s.logger.Info("breach check completed",
		"user_id", userID,
		"checked", summary.Checked,
		"breached", summary.Breached,
		"unavailable", summary.Unavailable,
		"undecryptable", summary.Undecryptable,
	)

	return summary, nil
}

func (s *BreachService) check(ctx context.Context, cred *model.Credential, key model.MasterKey) (model.BreachStatus, error) {
	plaintext, err := crypto.Decrypt(cred.Password, key)
	if err != nil {
		s.logger.Warn("cannot decrypt credential for breach check", "credential_id", cred.ID, "error", err)
		return model.BreachStatusUnknown, fmt.Errorf("decrypt credential %d: %w", cred.ID, err)
	}

	status, err := s.oracle.CheckBreached(ctx, plaintext)
	if err != nil {
		s.logger.Warn("breach oracle unavailable", "credential_id", cred.ID, "error", err)
		return model.BreachStatusUnknown, fmt.Errorf("check credential %d: %w", cred.ID, err)
	}

	if err := s.store.UpdateBreachStatus(ctx, cred.ID, status, s.now()); err != nil {
		return model.BreachStatusUnknown, fmt.Errorf("record breach status: %w", err)
	}
	return status, nil
}

// isDecryptError reports whether err means a stored blob could not be opened.
func isDecryptError(err error) bool {
	return errors.Is(err, crypto.ErrMalformedBlob) || errors.Is(err, crypto.ErrAuthenticationFailed)
}
