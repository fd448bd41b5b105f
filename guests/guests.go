package guests

import (
	"context"
	"strings"
	"time"
)

type Guest struct {
	Name         string
	Email        string
	DateOfBirth  time.Time
	City         string
	State        string
	Country      string
	Profession   string
	RegisteredAt time.Time
}

type ListResponse struct {
	Data        []Guest
	Cursor      *string
	HasNextPage bool
}

type Store interface {
	// Append fails with REASON_DUPLICATE_EMAIL if a guest with the same
	// normalized email is already stored.
	Append(ctx context.Context, guest Guest) error
	ListAll(ctx context.Context) ([]Guest, error)
	ListPage(ctx context.Context, limit int32, cursor *string) (ListResponse, error)
	Search(ctx context.Context, query string) ([]Guest, error)
}

// NormalizeEmail returns the key used for uniqueness checks.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MatchesQuery reports whether query is a case-insensitive substring of the
// guest's name or email. An empty query matches every guest.
func MatchesQuery(g Guest, query string) bool {
	q := strings.ToLower(query)
	if q == "" {
		return true
	}

	return strings.Contains(strings.ToLower(g.Name), q) || strings.Contains(strings.ToLower(g.Email), q)
}

// PageLimit is the page size stores use for a requested ListPage limit. A
// limit below one reads a single guest.
func PageLimit(limit int32) int32 {
	return max(limit, 1)
}

func Filter(all []Guest, query string) []Guest {
	result := []Guest{}
	for _, g := range all {
		if MatchesQuery(g, query) {
			result = append(result, g)
		}
	}
	return result
}
