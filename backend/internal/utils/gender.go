package utils

import (
	"strings"

	"uhnw-graph/backend/internal/constants"
)

// GenderPatterns maps a normalized gender to the source labels that mean it.
// Matching is on the whole lowercased label.
var GenderPatterns = map[string][]string{
	constants.GenderMale:   {"male", "m", "man", "cisgender male", "cisgender man", "mr", "mr."},
	constants.GenderFemale: {"female", "f", "woman", "cisgender female", "cisgender woman", "mrs", "mrs.", "ms", "ms.", "miss", "mdm", "mdm.", "madam"},
}

// NormalizeGender maps a free-form gender label to male, female or "".
// Anything else, including non-binary labels, is unknown for the purposes
// of parent direction.
func NormalizeGender(label string) string {
	l := strings.ToLower(strings.TrimSpace(label))
	if l == "" {
		return constants.GenderUnknown
	}
	for gender, patterns := range GenderPatterns {
		for _, pattern := range patterns {
			if l == pattern {
				return gender
			}
		}
	}
	return constants.GenderUnknown
}

// GenderFromTitle reads a salutation at the start of a name such as
// "Mr Lim Boon Heng" or "Mdm. Tan". It returns "" when there is none.
func GenderFromTitle(name string) string {
	fields := strings.Fields(name)
	if len(fields) < 2 {
		return constants.GenderUnknown
	}
	return NormalizeGender(strings.TrimSuffix(fields[0], ","))
}
