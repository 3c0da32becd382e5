package model

import "time"

// Credential is one saved login held in the vault. The triple
// (UserID, OriginURL, Username) identifies it and is unique across the store.
type Credential struct {
	ID          int64
	UserID      int64
	OriginURL   string // Full origin URL the login was saved for.
	SignonRealm string // Display URL / site identity.
	Icon        string // Optional logo URL; empty when unknown.
	Username    string
	Password    []byte // Encrypted blob, opaque outside the crypto package.
	Browser     Browser
	Breach      BreachStatus

	CreatedAt          time.Time
	LastUsedAt         time.Time
	PasswordModifiedAt time.Time
	BreachCheckedAt    time.Time // Zero until the first successful breach check.
}

// CredentialEdit describes a partial update to a credential. Nil fields are left unchanged.
type CredentialEdit struct {
	OriginURL *string
	Username  *string
	Password  *string // Plaintext; re-encrypted by the service.
}

// CredentialInput is a login entered directly by the user rather than imported.
type CredentialInput struct {
	UserID      int64
	OriginURL   string
	SignonRealm string // Defaults to OriginURL when empty.
	Username    string
	Password    string // Plaintext; encrypted by the service before it is stored.
}
