// Package sanitize validates human input before it enters a message log.
package sanitize

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aretw0/tollgate/pkg/domain"
)

var (
	// DefaultMaxInputSize is 16KB.
	DefaultMaxInputSize = 16 * 1024
	// EnvMaxInputSize is the environment variable to override the default
	EnvMaxInputSize = "TOLLGATE_MAX_INPUT_SIZE"
)

var (
	ErrInputTooLarge = fmt.Errorf("%w: input exceeds maximum allowed size", domain.ErrInvalidInput)
	ErrInvalidUTF8   = fmt.Errorf("%w: input contains invalid UTF-8 sequences", domain.ErrInvalidInput)
	ErrEmptyInput    = fmt.Errorf("%w: message is empty", domain.ErrInvalidInput)
)

// Message cleans a human message by enforcing size limits, validating UTF-8,
// and stripping control characters other than newline, tab and carriage
// return. Messages that are blank after cleaning are rejected.
func Message(input string) (string, error) {
	limit := maxInputSize()
	if len(input) > limit {
		// Reject rather than truncate so the log holds exactly what was sent.
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), limit)
	}

	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}

	out := input
	if strings.IndexFunc(input, isUnsafeControl) >= 0 {
		var b strings.Builder
		b.Grow(len(input))
		for _, r := range input {
			if !isUnsafeControl(r) {
				b.WriteRune(r)
			}
		}
		out = b.String()
	}

	if strings.TrimSpace(out) == "" {
		return "", ErrEmptyInput
	}
	return out, nil
}

// ConversationID validates a caller-supplied conversation id.
func ConversationID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: conversation id is empty", domain.ErrInvalidInput)
	case len(id) > 128:
		return fmt.Errorf("%w: conversation id is too long", domain.ErrInvalidInput)
	case strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, "."):
		return fmt.Errorf("%w: conversation id %q contains path characters", domain.ErrInvalidInput, id)
	case strings.IndexFunc(id, unicode.IsSpace) >= 0 || strings.IndexFunc(id, unicode.IsControl) >= 0:
		return fmt.Errorf("%w: conversation id %q contains whitespace", domain.ErrInvalidInput, id)
	}
	return nil
}

// IsInvalid reports whether err was produced by this package.
func IsInvalid(err error) bool {
	return errors.Is(err, domain.ErrInvalidInput)
}

func isUnsafeControl(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r'
}

func maxInputSize() int {
	if val := os.Getenv(EnvMaxInputSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxInputSize
}
