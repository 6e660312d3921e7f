// Package joinref handles the shareable room join reference: an opaque
// 6-digit numeric identifier embedded in a link/QR payload. Joining a room
// requires only this identifier.
package joinref

import (
	"errors"
	"fmt"
	"regexp"
)

// codeRegex matches a bare 6-digit room code.
var codeRegex = regexp.MustCompile(`^[0-9]{6}$`)

// linkRegex matches the shareable payload: fundbattle://room/{code}
var linkRegex = regexp.MustCompile(`^fundbattle://room/([0-9]{6})$`)

var (
	ErrInvalidCode = errors.New("joinref: room code must be 6 digits")
	ErrInvalidLink = errors.New("joinref: invalid join link payload")
)

// ValidateCode checks that code is a well-formed 6-digit room identifier.
func ValidateCode(code string) error {
	if !codeRegex.MatchString(code) {
		return fmt.Errorf("%w: %q", ErrInvalidCode, code)
	}
	return nil
}

// Link builds the shareable link/QR payload for a room code.
func Link(code string) (string, error) {
	if err := ValidateCode(code); err != nil {
		return "", err
	}
	return fmt.Sprintf("fundbattle://room/%s", code), nil
}

// ParseLink extracts the room code from a shareable payload. The payload
// carries nothing besides the identifier; there is no further handshake.
func ParseLink(payload string) (string, error) {
	matches := linkRegex.FindStringSubmatch(payload)
	if matches == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidLink, payload)
	}
	return matches[1], nil
}
