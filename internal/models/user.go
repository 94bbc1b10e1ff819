package models

import (
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// UserMetadata is the profile data attached to an account at sign-up
type UserMetadata struct {
	Name string `json:"name,omitempty" mapstructure:"name"`
}

// User is an identity issued by the backend auth service
type User struct {
	ID               string       `json:"id"`
	Email            string       `json:"email"`
	Metadata         UserMetadata `json:"user_metadata"`
	CreatedAt        time.Time    `json:"created_at"`
	EmailConfirmedAt *time.Time   `json:"email_confirmed_at,omitempty"`
}

// DisplayName returns the metadata name, falling back to the local part of the email.
func (u User) DisplayName() string {
	if name := strings.TrimSpace(u.Metadata.Name); name != "" {
		return name
	}
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}

// Confirmed reports whether the account's email address has been confirmed.
func (u User) Confirmed() bool {
	return u.EmailConfirmedAt != nil
}

// DecodeMetadata converts a free-form metadata map into UserMetadata.
// Unknown keys are ignored.
func DecodeMetadata(raw map[string]any) (UserMetadata, error) {
	var md UserMetadata
	if len(raw) == 0 {
		return md, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &md,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return md, err
	}
	if err := dec.Decode(raw); err != nil {
		return md, err
	}
	return md, nil
}

// EncodeMetadata converts UserMetadata back into the map form sent to the backend.
func EncodeMetadata(md UserMetadata) map[string]any {
	out := map[string]any{}
	if md.Name != "" {
		out["name"] = md.Name
	}
	return out
}
