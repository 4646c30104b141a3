package sequence

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// dynamicPrefix separates the dynamic namespace from the fixed one.
const dynamicPrefix = "_dynamic_"

// cacheKey returns the cache and store key for a name.
//
// Names are NFC-normalized so that composed and decomposed spellings of the
// same text share one sequence. Fixed names may not start with the dynamic
// prefix, which keeps the two namespaces disjoint.
func cacheKey(name string, dynamic bool) (string, error) {
	name = norm.NFC.String(name)
	if name == "" {
		return "", configError("", "sequence name must not be empty")
	}
	if dynamic {
		return dynamicPrefix + name, nil
	}
	if strings.HasPrefix(name, dynamicPrefix) {
		return "", configError(name, "fixed sequence names may not start with %q", dynamicPrefix)
	}
	return name, nil
}

// StoreKey returns the durable row name for a sequence name, applying the
// same normalization and namespace rules as the registry.
func StoreKey(name string, dynamic bool) (string, error) {
	return cacheKey(name, dynamic)
}

// DisplayName strips the dynamic namespace prefix from a row name.
// It reports whether the row belongs to a dynamic sequence.
func DisplayName(key string) (string, bool) {
	if strings.HasPrefix(key, dynamicPrefix) {
		return strings.TrimPrefix(key, dynamicPrefix), true
	}
	return key, false
}
