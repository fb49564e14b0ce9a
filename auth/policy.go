package auth

import "strings"

// AllowList decides whether a verified identity may use the gateway.
// An empty list permits every authenticated caller; a non-empty list
// permits an identity whose subject or email appears in it. Email
// matching is case-insensitive, subject matching is exact.
//
// Entries are loaded once from configuration and immutable for the
// process lifetime. The policy is evaluated strictly after token
// verification so nothing leaks to unauthenticated callers.
type AllowList struct {
	subjects map[string]struct{}
	emails   map[string]struct{}
}

func NewAllowList(entries []string) *AllowList {
	l := &AllowList{
		subjects: make(map[string]struct{}, len(entries)),
		emails:   make(map[string]struct{}, len(entries)),
	}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		// An entry may name either a subject id or an email; match both ways.
		l.subjects[e] = struct{}{}
		l.emails[strings.ToLower(e)] = struct{}{}
	}
	return l
}

// IsAuthorized reports whether the identity may use the gateway.
func (l *AllowList) IsAuthorized(id Identity) bool {
	if len(l.subjects) == 0 {
		return true
	}

	if _, ok := l.subjects[id.Subject]; ok && id.Subject != "" {
		return true
	}

	if id.Email != "" {
		if _, ok := l.emails[strings.ToLower(id.Email)]; ok {
			return true
		}
	}

	return false
}
