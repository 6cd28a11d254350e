// Package storage defines the user-profile and key-value contract consumed by channels.
package storage

import (
	"context"
	"errors"
	"maps"
	"time"
)

// ErrNotFound is returned when a user or key does not exist.
var ErrNotFound = errors.New("storage: not found")

// User is a stored user profile.
type User struct {
	ID          string            `json:"id"`
	Name        string            `json:"name,omitempty"`
	Email       string            `json:"email,omitempty"`
	PhoneNumber string            `json:"phone_number,omitempty"`
	PhotoURI    string            `json:"photo_uri,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Profile is a partial user. Nil fields are left untouched by a merge; metadata keys are
// unioned into the stored metadata, overwriting conflicting keys.
type Profile struct {
	Name        *string
	Email       *string
	PhoneNumber *string
	PhotoURI    *string
	Metadata    map[string]string
}

// String returns a pointer to s, or nil when s is empty. Empty provider fields never
// overwrite stored values.
func String(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Apply merges p into u in place.
func (p Profile) Apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.PhoneNumber != nil {
		u.PhoneNumber = *p.PhoneNumber
	}
	if p.PhotoURI != nil {
		u.PhotoURI = *p.PhotoURI
	}
	if len(p.Metadata) > 0 {
		if u.Metadata == nil {
			u.Metadata = make(map[string]string, len(p.Metadata))
		}
		maps.Copy(u.Metadata, p.Metadata)
	}
}

// Store is the narrow persistence contract. Implementations must make MergeUser an atomic
// upsert: last writer wins on conflicting metadata keys, other keys are unioned.
type Store interface {
	MergeUser(ctx context.Context, userID string, profile Profile) (User, error)
	GetUser(ctx context.Context, userID string) (User, error)
	SetKV(ctx context.Context, userID, key, value string) error
	GetKV(ctx context.Context, userID, key string) (string, error)
	Track(ctx context.Context, userID, event string, properties map[string]any) error
}
