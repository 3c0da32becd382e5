package driven

import (
	"context"
	"errors"
	"time"

	"github.com/ericfisherdev/credvault/internal/domain/model"
)

// Sentinel errors returned by CredentialStore implementations.
var (
	// ErrDuplicateCredential indicates a credential with the same
	// (user, origin URL, username) already exists.
	ErrDuplicateCredential = errors.New("credential already exists")

	// ErrCredentialNotFound indicates the requested credential does not exist.
	ErrCredentialNotFound = errors.New("credential not found")
)

// CredentialStore defines the driven port for vault persistence. Passwords cross
// this boundary as encrypted blobs; the store never sees plaintext.
//
// The store enforces uniqueness of (UserID, OriginURL, Username). That
// constraint is the authoritative guard against duplicates: Insert and Update
// return ErrDuplicateCredential when it is violated.
type CredentialStore interface {
	// Find returns the credential matching the identity triple, or nil, nil.
	Find(ctx context.Context, userID int64, originURL, username string) (*model.Credential, error)
	// Get returns the credential with the given ID, or nil, nil.
	Get(ctx context.Context, id int64) (*model.Credential, error)
	// Insert stores a new credential and returns its ID.
	Insert(ctx context.Context, cred model.Credential) (int64, error)
	// Update replaces the mutable fields of an existing credential.
	// Returns ErrCredentialNotFound if cred.ID does not exist.
	Update(ctx context.Context, cred model.Credential) error
	// UpdateBreachStatus sets only the breach status and its check time.
	UpdateBreachStatus(ctx context.Context, id int64, status model.BreachStatus, checkedAt time.Time) error
	// Delete removes a credential. Returns ErrCredentialNotFound if it does not exist.
	Delete(ctx context.Context, id int64) error
	// List returns every credential owned by userID ordered by origin URL then username.
	List(ctx context.Context, userID int64) ([]model.Credential, error)
}
