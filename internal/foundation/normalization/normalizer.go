// Package normalization maps loosely typed configuration strings onto typed enums.
package normalization

import (
	"slices"
	"strings"

	ferrors "git.home.luguber.info/inful/careradius/internal/foundation/errors"
)

// Normalizer provides type-safe string-to-enum normalization with error handling.
type Normalizer[T comparable] struct {
	validValues  map[string]T
	defaultValue T
	validKeys    []string // cached for error messages
}

// NewNormalizer creates a normalizer from raw-key -> value pairs. Keys are
// compared after trimming and lower-casing.
func NewNormalizer[T comparable](values map[string]T, defaultValue T) *Normalizer[T] {
	normalized := make(map[string]T, len(values))
	validKeys := make([]string, 0, len(values))

	for k, v := range values {
		key := normalizeKey(k)
		normalized[key] = v
		validKeys = append(validKeys, key)
	}
	slices.Sort(validKeys)

	return &Normalizer[T]{
		validValues:  normalized,
		defaultValue: defaultValue,
		validKeys:    validKeys,
	}
}

// Normalize converts raw to the enum type, falling back to the default.
func (n *Normalizer[T]) Normalize(raw string) T {
	if value, ok := n.validValues[normalizeKey(raw)]; ok {
		return value
	}
	return n.defaultValue
}

// NormalizeWithError converts raw to the enum type or returns a validation error
// listing the accepted keys.
func (n *Normalizer[T]) NormalizeWithError(raw string) (T, error) {
	if value, ok := n.validValues[normalizeKey(raw)]; ok {
		return value, nil
	}

	var zero T
	return zero, ferrors.ValidationError("unrecognized value").
		WithContext("value", raw).
		WithContext("valid", strings.Join(n.validKeys, ",")).
		Build()
}

// ValidateEnum checks if value is one of the enum members.
func (n *Normalizer[T]) ValidateEnum(value T) bool {
	for _, v := range n.validValues {
		if v == value {
			return true
		}
	}
	return false
}

// ValidKeys returns all accepted keys, sorted.
func (n *Normalizer[T]) ValidKeys() []string {
	return slices.Clone(n.validKeys)
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
