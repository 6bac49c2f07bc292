// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

const MaxDisplayNameLen = 40

var (
	ErrNameEmpty   = errors.New("name empty")
	ErrNameTooLong = errors.New("name too long")
	ErrNameInvalid = errors.New("invalid characters in name")
)

var displayNameRe = regexp.MustCompile(`^[\p{L}\p{N}_ .\-]+$`)

// NormalizeDisplayName trims raw and checks it against the display name rule.
func NormalizeDisplayName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", ErrNameEmpty
	}
	if utf8.RuneCountInString(name) > MaxDisplayNameLen {
		return "", ErrNameTooLong
	}
	if !displayNameRe.MatchString(name) {
		return "", ErrNameInvalid
	}
	return name, nil
}

// GuestName is the display name given to a connection that never set one.
func GuestName(id ConnectionID) string {
	return "Guest-" + id.Short()
}
