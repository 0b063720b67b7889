package shared

import "strings"

// Principal identifies an authenticated actor. It is opaque: the system
// only ever compares principals for equality.
type Principal string

// Valid reports whether the principal carries a usable identifier.
func (p Principal) Valid() bool {
	return strings.TrimSpace(string(p)) != ""
}

func (p Principal) String() string {
	return string(p)
}
