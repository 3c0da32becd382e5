package driven

import "context"

// IconLookup resolves a site logo for an origin URL. It is best-effort:
// callers treat any error as "no icon".
type IconLookup interface {
	// Lookup returns the icon URL, or "" when none exists.
	Lookup(ctx context.Context, originURL string) (string, error)
}
