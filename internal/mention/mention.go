// Package mention turns raw message text into a structured mention set.
//
// Two token shapes exist:
//
//	@[everyone] @[admins] @[admin] @[owner]   broadcast keywords
//	@sarahc @SarahChen                         one user, by username or name
//
// The bracket pass runs first and consumes its spans; the user pass skips
// anything already consumed, so bracket content is never retried as a
// username.
package mention

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/lalith-99/huddle/internal/models"
)

var (
	broadcastRe = regexp.MustCompile(`@\[([a-zA-Z]+)\]`)
	userRe      = regexp.MustCompile(`@([a-zA-Z0-9_]+)`)
)

// Result is the resolved mention set of one message.
type Result struct {
	Mentions        []uuid.UUID
	MentionEveryone bool
	MentionRoles    []models.Role
}

// HasAny reports whether the result would notify anyone.
func (r Result) HasAny() bool {
	return len(r.Mentions) > 0 || r.MentionEveryone || len(r.MentionRoles) > 0
}

type span struct{ start, end int }

// Resolve scans text against roster. Unmatched tokens are ignored.
func Resolve(text string, roster []models.Member) Result {
	res := Result{
		Mentions:     make([]uuid.UUID, 0),
		MentionRoles: make([]models.Role, 0),
	}

	consumed := make([]span, 0)
	for _, m := range broadcastRe.FindAllStringSubmatchIndex(text, -1) {
		consumed = append(consumed, span{m[0], m[1]})
		switch strings.ToLower(text[m[2]:m[3]]) {
		case "everyone":
			res.MentionEveryone = true
		case "admins", "admin":
			res.MentionRoles = addRole(res.MentionRoles, models.RoleAdmin)
			res.MentionRoles = addRole(res.MentionRoles, models.RoleOwner)
		case "owner":
			res.MentionRoles = addRole(res.MentionRoles, models.RoleOwner)
		}
	}

	seen := make(map[uuid.UUID]struct{})
	for _, m := range userRe.FindAllStringSubmatchIndex(text, -1) {
		if overlaps(consumed, m[0], m[1]) {
			continue
		}
		member, ok := Match(text[m[2]:m[3]], roster)
		if !ok {
			continue
		}
		if _, dup := seen[member.UserID]; dup {
			continue
		}
		seen[member.UserID] = struct{}{}
		res.Mentions = append(res.Mentions, member.UserID)
	}

	return res
}

// Match finds the roster member a handle refers to. Usernames are tried
// across the whole roster before display names.
func Match(handle string, roster []models.Member) (models.Member, bool) {
	if handle == "" {
		return models.Member{}, false
	}
	for _, m := range roster {
		if m.Username != "" && strings.EqualFold(m.Username, handle) {
			return m, true
		}
	}
	for _, m := range roster {
		if compact := CompactName(m.Name); compact != "" && strings.EqualFold(compact, handle) {
			return m, true
		}
	}
	return models.Member{}, false
}

// CompactName strips all whitespace from a display name: "Sarah Chen" ->
// "SarahChen".
func CompactName(name string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, name)
}

// Handle is the text inserted after "@" when autocompleting member m.
func Handle(m models.Member) string {
	if m.Username != "" {
		return m.Username
	}
	return CompactName(m.Name)
}

// Filter returns up to limit roster members whose name or username contains
// query, case-insensitively, in roster order. An empty query matches
// everyone.
func Filter(query string, roster []models.Member, limit int) []models.Member {
	q := strings.ToLower(query)
	out := make([]models.Member, 0, limit)
	for _, m := range roster {
		if len(out) >= limit {
			break
		}
		if q == "" ||
			strings.Contains(strings.ToLower(m.Name), q) ||
			strings.Contains(strings.ToLower(m.Username), q) {
			out = append(out, m)
		}
	}
	return out
}

func addRole(roles []models.Role, r models.Role) []models.Role {
	for _, existing := range roles {
		if existing == r {
			return roles
		}
	}
	return append(roles, r)
}

func overlaps(spans []span, start, end int) bool {
	for _, s := range spans {
		if start < s.end && s.start < end {
			return true
		}
	}
	return false
}
