package domain

import "strings"

const (
	userIDSigil    = "@"
	serverNameMark = ":"
)

// Qualify builds the canonical "@localpart:domain" identifier.
func Qualify(localpart, domain string) string {
	return userIDSigil + localpart + serverNameMark + domain
}

// IsQualified reports whether id already carries a server-name marker.
func IsQualified(id string) bool {
	return strings.HasPrefix(id, userIDSigil) && strings.Contains(id, serverNameMark)
}

// Localpart returns the part of a qualified identifier between the sigil and
// the first server-name marker.
func Localpart(id string) string {
	id = strings.TrimPrefix(id, userIDSigil)
	if i := strings.Index(id, serverNameMark); i >= 0 {
		return id[:i]
	}
	return id
}

// ParseClaimed derives the localpart and canonical identifier from what a
// client claims to be. A bare value is taken as the localpart. A qualified
// value must belong to domain.
func ParseClaimed(claimed, domain string) (localpart, canonical string, err error) {
	claimed = strings.TrimSpace(claimed)
	if claimed == "" {
		return "", "", ErrMissingField("user_id")
	}
	if domain == "" {
		return "", "", ErrInternal(nil)
	}

	if IsQualified(claimed) {
		localpart = Localpart(claimed)
		if got := claimed[strings.Index(claimed, serverNameMark)+1:]; got != domain {
			return "", "", ErrInvalidField("user_id", "foreign server name")
		}
	} else {
		localpart = strings.TrimPrefix(claimed, userIDSigil)
	}

	if localpart == "" {
		return "", "", ErrInvalidField("user_id", "empty localpart")
	}
	if strings.ContainsAny(localpart, " \t\r\n") {
		return "", "", ErrInvalidField("user_id", "whitespace in localpart")
	}
	return localpart, Qualify(localpart, domain), nil
}
