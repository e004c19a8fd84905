// Package team derives storage namespaces from user-supplied team names.
package team

import (
	"errors"
	"strings"
)

// ErrInvalidTeamName is returned when sanitizing a team name leaves nothing
// usable as a namespace.
var ErrInvalidTeamName = errors.New("team name contains no letters")

// Sanitize strips every character that is not an ASCII letter and lowercases
// the remainder. The result scopes all storage for a team; two inputs that
// sanitize to the same string share a namespace.
func Sanitize(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		}
	}
	return b.String()
}

// Parse sanitizes raw and rejects an empty result.
func Parse(raw string) (string, error) {
	ns := Sanitize(raw)
	if ns == "" {
		return "", ErrInvalidTeamName
	}
	return ns, nil
}
