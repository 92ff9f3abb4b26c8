package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedIdentity is returned when a persisted identity record has an unexpected shape.
var ErrMalformedIdentity = errors.New("malformed identity")

// IdentitySource tells which persisted format an identity was recovered from.
type IdentitySource int

const (
	// IdentityAbsent means no identity record exists.
	IdentityAbsent IdentitySource = iota
	// IdentityRecord is the current {email, username} JSON object format.
	IdentityRecord
	// IdentityLegacyEmail is a JSON string holding only the email.
	IdentityLegacyEmail
	// IdentityRawEmail is unparseable data, taken verbatim as the email.
	IdentityRawEmail
	// IdentityMalformed is valid JSON of an unexpected shape.
	IdentityMalformed
)

func (s IdentitySource) String() string {
	switch s {
	case IdentityAbsent:
		return "absent"
	case IdentityRecord:
		return "record"
	case IdentityLegacyEmail:
		return "legacy_email"
	case IdentityRawEmail:
		return "raw_email"
	case IdentityMalformed:
		return "malformed"
	default:
		return fmt.Sprintf("IdentitySource(%d)", int(s))
	}
}

// Identity is the result of parsing a persisted identity record.
// User is only meaningful when OK returns true.
type Identity struct {
	User   User
	Source IdentitySource
	Err    error
}

// OK reports whether the record yielded a usable user.
func (id Identity) OK() bool {
	return id.Err == nil && id.Source != IdentityAbsent && id.Source != IdentityMalformed
}

// ParseIdentity decodes a persisted identity value. Recognized formats:
// - {"email": "...", "username": "..."} (username optional)
// - "a@b.c" (legacy: JSON string holding the email)
// - any unparseable value, used as the email itself
// Valid JSON of any other shape, or an empty email, yields IdentityMalformed.
func ParseIdentity(raw string) Identity {
	if strings.TrimSpace(raw) == "" {
		return Identity{Source: IdentityAbsent}
	}

	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return identityFrom(IdentityRawEmail, raw, "")
	}

	switch value := decoded.(type) {
	case string:
		return identityFrom(IdentityLegacyEmail, value, "")
	case map[string]any:
		email, ok := value["email"].(string)
		if !ok {
			return Identity{
				Source: IdentityMalformed,
				Err:    fmt.Errorf("%w: no email field", ErrMalformedIdentity),
			}
		}

		username, _ := value["username"].(string) // non-string usernames fall back to the email

		return identityFrom(IdentityRecord, email, username)
	default:
		return Identity{
			Source: IdentityMalformed,
			Err:    fmt.Errorf("%w: unexpected %T", ErrMalformedIdentity, decoded),
		}
	}
}

func identityFrom(source IdentitySource, email, username string) Identity {
	user, err := NewUser(email, username)
	if err != nil {
		return Identity{Source: IdentityMalformed, Err: errors.Join(ErrMalformedIdentity, err)}
	}

	return Identity{User: user, Source: source}
}

// MarshalIdentity encodes a user in the current record format.
func MarshalIdentity(user User) (string, error) {
	data, err := json.Marshal(user)
	if err != nil {
		return "", fmt.Errorf("marshal identity: %w", err)
	}

	return string(data), nil
}
