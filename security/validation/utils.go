package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var (
	ErrInvalidUTF8       = errors.New("text is not valid UTF-8")
	ErrInvalidCharacters = errors.New("text contains invalid characters")
	ErrTextTooLong       = errors.New("text is too long")
)

var InjectionRegexp = BuildInjectionPatterns()

// BuildInjectionPatterns builds regexp for injection detection (case-insensitive)
func BuildInjectionPatterns() *regexp.Regexp {
	parts := make([]string, 0, len(InjectionPatterns))
	for _, pattern := range InjectionPatterns {
		pNorm := norm.NFC.String(pattern)
		parts = append(parts, regexp.QuoteMeta(pNorm))
	}
	// (?i) for case-insensitive
	return regexp.MustCompile("(?i)" + strings.Join(parts, "|"))
}

// NormalizeText returns the NFC form of value after rejecting malformed
// UTF-8, control characters and template or injection sequences.
// Byte-length limits must be applied to the returned value.
func NormalizeText(fieldName, value string) (string, error) {
	if !utf8.ValidString(value) {
		return "", fmt.Errorf("%s: %w", fieldName, ErrInvalidUTF8)
	}
	normalized := norm.NFC.String(value)

	if utf8.RuneCountInString(normalized) > MaxShortTextLength {
		return "", fmt.Errorf("%s: %w: more than %d characters", fieldName, ErrTextTooLong, MaxShortTextLength)
	}
	for _, r := range normalized {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("%s: %w: control character %U", fieldName, ErrInvalidCharacters, r)
		}
	}
	if InjectionRegexp.MatchString(normalized) {
		return "", fmt.Errorf("%s: %w", fieldName, ErrInvalidCharacters)
	}
	return normalized, nil
}
