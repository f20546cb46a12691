package validation

import (
	"errors"
	"fmt"

	"github.com/dshills/runwatch/pkg/domain/types"
)

// MaxIdentifierLength bounds every identifier accepted by ValidateIdentifier.
const MaxIdentifierLength = 128

// ErrInvalidIdentifier is wrapped by every validation failure in this package.
var ErrInvalidIdentifier = errors.New("invalid identifier")

// IsValidIdentifierChar checks if a character is valid for identifiers
// (alphanumeric, hyphen, or underscore).
//
// Valid characters:
//   - Lowercase letters: a-z
//   - Uppercase letters: A-Z
//   - Digits: 0-9
//   - Hyphen: -
//   - Underscore: _
func IsValidIdentifierChar(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9') ||
		ch == '-' || ch == '_'
}

// ValidateIdentifier checks that id is non-empty, not too long and made only of
// identifier characters. kind names the identifier in the error ("flow", "node", ...).
func ValidateIdentifier(kind, id string) error {
	if id == "" {
		return fmt.Errorf("%w: %s ID cannot be empty", ErrInvalidIdentifier, kind)
	}
	if len(id) > MaxIdentifierLength {
		return fmt.Errorf("%w: %s ID exceeds %d characters", ErrInvalidIdentifier, kind, MaxIdentifierLength)
	}
	for _, ch := range id {
		if !IsValidIdentifierChar(ch) {
			return fmt.Errorf("%w: %s ID %q contains %q", ErrInvalidIdentifier, kind, id, ch)
		}
	}
	return nil
}

// ValidateRunID checks a composite run identifier.
func ValidateRunID(id types.RunID) error {
	host, seq, err := types.ParseRunID(id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidIdentifier, err)
	}
	if err := ValidateIdentifier("host", string(host)); err != nil {
		return err
	}
	return ValidateIdentifier("run sequence", seq)
}
