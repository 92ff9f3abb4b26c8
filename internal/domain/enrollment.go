package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// ErrMalformedEnrollments is returned when a persisted enrollment list cannot be decoded.
var ErrMalformedEnrollments = errors.New("malformed enrollments")

// EnrollmentSet is an insertion-ordered set of course IDs.
// The zero value is an empty set.
type EnrollmentSet struct {
	ids []string
}

// NewEnrollmentSet builds a set from ids, dropping duplicates and keeping first occurrences.
func NewEnrollmentSet(ids ...string) EnrollmentSet {
	var set EnrollmentSet

	for _, id := range ids {
		set.Add(id)
	}

	return set
}

// ParseEnrollments decodes a persisted JSON array of course IDs.
// Returns an empty set and ErrMalformedEnrollments if raw is not an array of strings.
func ParseEnrollments(raw string) (EnrollmentSet, error) {
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return EnrollmentSet{}, errors.Join(ErrMalformedEnrollments, err)
	}

	if ids == nil {
		return EnrollmentSet{}, fmt.Errorf("%w: null", ErrMalformedEnrollments)
	}

	return NewEnrollmentSet(ids...), nil
}

// Add inserts id. Returns false if it was already present.
func (s *EnrollmentSet) Add(id string) bool {
	if s.Contains(id) {
		return false
	}

	s.ids = append(slices.Clip(s.ids), id) // copies of the set never share appends

	return true
}

// Remove deletes id. Returns false if it was absent.
func (s *EnrollmentSet) Remove(id string) bool {
	idx := slices.Index(s.ids, id)
	if idx < 0 {
		return false
	}

	s.ids = slices.Delete(slices.Clone(s.ids), idx, idx+1)

	return true
}

// Contains reports whether id is in the set.
func (s EnrollmentSet) Contains(id string) bool {
	return slices.Contains(s.ids, id)
}

// Len returns the number of course IDs.
func (s EnrollmentSet) Len() int {
	return len(s.ids)
}

// IDs returns a copy of the course IDs in insertion order. Never nil.
func (s EnrollmentSet) IDs() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)

	return out
}

// Equal reports whether both sets hold the same IDs regardless of order.
func (s EnrollmentSet) Equal(other EnrollmentSet) bool {
	if s.Len() != other.Len() {
		return false
	}

	for _, id := range s.ids {
		if !other.Contains(id) {
			return false
		}
	}

	return true
}

// Marshal encodes the set as a JSON array.
func (s EnrollmentSet) Marshal() (string, error) {
	data, err := json.Marshal(s.IDs())
	if err != nil {
		return "", fmt.Errorf("marshal enrollments: %w", err)
	}

	return string(data), nil
}
