package core

import (
	"strings"
)

// DefaultOwnOfferName labels our own bid on a lot with no assigned company.
const DefaultOwnOfferName = "Nuestra Oferta"

// legacyOwnMarkers are visual prefixes older records put in front of our own
// company names. They are stripped before any comparison.
var legacyOwnMarkers = []string{"➡️", "➡"}

// DisplayName strips a legacy "ours" marker and collapses whitespace,
// preserving case.
func DisplayName(name string) string {
	trimmed := strings.TrimSpace(name)
	for _, marker := range legacyOwnMarkers {
		if strings.HasPrefix(trimmed, marker) {
			trimmed = strings.TrimPrefix(trimmed, marker)
			break
		}
	}
	return strings.Join(strings.Fields(trimmed), " ")
}

// NameKey returns the case-insensitive comparison key for a participant name.
func NameKey(name string) string {
	return strings.ToLower(DisplayName(name))
}

// compareNames orders participant names by key, then by display form so that
// names differing only in case still have a total order.
func compareNames(a, b string) int {
	ka, kb := NameKey(a), NameKey(b)
	if ka != kb {
		return strings.Compare(ka, kb)
	}
	return strings.Compare(DisplayName(a), DisplayName(b))
}
