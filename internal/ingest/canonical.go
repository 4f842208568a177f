package ingest

import "strings"

// Canonicalizer collapses taxonomic synonyms to one canonical scientific name
// and maps country identifiers to ISO-3166-1 alpha-2 codes. Both tables are
// caller-supplied; the core embeds no taxonomy or geography of its own.
type Canonicalizer struct {
	synonyms  map[string]string
	countries map[string]string
}

// NewCanonicalizer builds a canonicalizer from a synonym table
// (synonym -> canonical name) and a country table (name or code -> alpha-2).
// Lookups are case-insensitive on the key side.
func NewCanonicalizer(synonyms, countries map[string]string) *Canonicalizer {
	c := &Canonicalizer{
		synonyms:  make(map[string]string, len(synonyms)),
		countries: make(map[string]string, len(countries)),
	}
	for k, v := range synonyms {
		c.synonyms[normalizeKey(k)] = strings.TrimSpace(v)
	}
	for k, v := range countries {
		c.countries[normalizeKey(k)] = strings.ToUpper(strings.TrimSpace(v))
	}
	return c
}

// Species returns the canonical scientific name for a possibly-synonymous
// input name. Unknown names pass through trimmed, not rejected; the synonym
// table is an overlay, not a whitelist.
func (c *Canonicalizer) Species(name string) string {
	trimmed := strings.TrimSpace(name)
	if canonical, ok := c.synonyms[normalizeKey(trimmed)]; ok {
		return canonical
	}
	return trimmed
}

// Country resolves a country name or code to an ISO-3166-1 alpha-2 code.
// Inputs already in alpha-2 form pass through uppercased.
func (c *Canonicalizer) Country(value string) (string, bool) {
	trimmed := strings.TrimSpace(value)
	if code, ok := c.countries[normalizeKey(trimmed)]; ok {
		return code, true
	}
	if len(trimmed) == 2 && isAlpha(trimmed) {
		return strings.ToUpper(trimmed), true
	}
	return "", false
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func isAlpha(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}
