package users

import (
	"errors"
	"time"
)

// User is keyed by its normalized phone number; the phone never changes once created.
type User struct {
	Phone     string `json:"phone" db:"phone"`
	Name      string `json:"name" db:"name"`
	AvatarURL string `json:"avatarUrl" db:"avatar_url"`

	IsAvailable bool   `json:"isAvailable" db:"is_available"`
	Mood        string `json:"mood,omitempty" db:"mood"`

	LastOnline       *time.Time `json:"lastOnline,omitempty" db:"last_online"`
	LastMomentInvite *time.Time `json:"lastMomentInvite,omitempty" db:"last_moment_invite"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// CredentialKind selects the push provider a token belongs to.
type CredentialKind string

const (
	CredentialStandard CredentialKind = "standard"
	CredentialVoip     CredentialKind = "voip"
)

func (k CredentialKind) Valid() bool {
	return k == CredentialStandard || k == CredentialVoip
}

// PushCredential is one provider token per kind; a newer registration replaces the old one.
type PushCredential struct {
	Kind         CredentialKind `json:"kind" db:"kind"`
	Token        string         `json:"-" db:"token"`
	RegisteredAt time.Time      `json:"registeredAt" db:"registered_at"`
}

// Availability is the mutable presence-of-mind state a user advertises to contacts.
type Availability struct {
	IsAvailable bool
	Mood        string
	LastOnline  *time.Time
}

// ContactMatch is the subset of a user exposed to someone who has their number.
type ContactMatch struct {
	Phone       string     `json:"phone"`
	IsAvailable bool       `json:"isAvailable"`
	LastOnline  *time.Time `json:"lastOnline,omitempty"`
	Name        string     `json:"name"`
	AvatarURL   string     `json:"avatarUrl"`
}

var (
	ErrInvalidArgument = errors.New("users: invalid argument")
	ErrNotFound        = errors.New("users: not found")
)
