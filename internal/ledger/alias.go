package ledger

import "strings"

// AliasResolver maps raw player handles to display names. Lookup is
// case-insensitive and ignores surrounding whitespace; unknown handles pass
// through unchanged. The table is injected configuration, not mutable state.
type AliasResolver struct {
	aliases map[string]string
}

// NewAliasResolver builds a resolver from a handle to display-name table.
// Keys are normalized to lower case.
func NewAliasResolver(aliases map[string]string) *AliasResolver {
	normalized := make(map[string]string, len(aliases))
	for handle, fullName := range aliases {
		normalized[strings.ToLower(strings.TrimSpace(handle))] = fullName
	}
	return &AliasResolver{aliases: normalized}
}

// Resolve returns the display name for a handle, or the handle itself when no
// alias is configured.
func (r *AliasResolver) Resolve(handle string) string {
	if r == nil {
		return handle
	}
	if fullName, ok := r.aliases[strings.ToLower(strings.TrimSpace(handle))]; ok {
		return fullName
	}
	return handle
}
