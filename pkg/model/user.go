package model

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 32
)

var ErrUsernameEmpty = errors.New("username must not be empty")
var ErrUsernameTooShort = fmt.Errorf("username must be at least %d characters", MinUsernameLength)
var ErrUsernameTooLong = fmt.Errorf("username must not exceed %d characters", MaxUsernameLength)
var ErrUsernameInvalidChars = errors.New("username must not contain whitespace or control characters")
var ErrSelfFriend = errors.New("cannot add yourself as a friend")

// User is a person known to the server. Users are created lazily and never
// deleted; Friends keeps insertion order.
type User struct {
	Username  string    `json:"username"`
	Friends   []string  `json:"friends"`
	CreatedAt time.Time `json:"created_at"`
}

// NormalizeUsername trims and lowercases a client-supplied name.
func NormalizeUsername(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ValidateUsername checks an already normalized username.
func ValidateUsername(name string) error {
	if name == "" {
		return ErrUsernameEmpty
	}
	n := utf8.RuneCountInString(name)
	if n < MinUsernameLength {
		return ErrUsernameTooShort
	}
	if n > MaxUsernameLength {
		return ErrUsernameTooLong
	}
	for _, r := range name {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return ErrUsernameInvalidChars
		}
	}
	return nil
}

// HasFriend reports whether name is in u's friend set.
func (u *User) HasFriend(name string) bool {
	return slices.Contains(u.Friends, name)
}

// Clone returns a deep copy safe to hand out of a store.
func (u *User) Clone() *User {
	c := *u
	c.Friends = append(make([]string, 0, len(u.Friends)), u.Friends...)
	return &c
}
