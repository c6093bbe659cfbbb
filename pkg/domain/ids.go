// Package domain defines the typed identifiers shared across services.
//
// Identity is the only actor reference in the system: an opaque,
// address-equivalent value. Keeping it a distinct type (rather than a bare
// string) lets the compiler catch accidental mixing with other identifiers.
package domain

import (
	"encoding/hex"
	"strings"

	dErrors "mintgate/pkg/domain-errors"
)

// Identity is an opaque actor reference in canonical 0x-prefixed 40-hex-digit
// form. The zero value is the null identity, used for global settlement and
// never accepted at trust boundaries.
type Identity string

// NullIdentity is the zero Identity.
const NullIdentity Identity = ""

// identityHexLen is the number of hex digits after the 0x prefix.
const identityHexLen = 40

// ParseIdentity validates an identity string at trust boundaries and
// normalizes it to lowercase.
func ParseIdentity(s string) (Identity, error) {
	if s == "" {
		return NullIdentity, dErrors.New(dErrors.CodeInvalidInput, "identity cannot be empty")
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return NullIdentity, dErrors.New(dErrors.CodeInvalidInput, "identity must be 0x-prefixed")
	}
	body := s[2:]
	if len(body) != identityHexLen {
		return NullIdentity, dErrors.Newf(dErrors.CodeInvalidInput, "identity must be %d hex digits", identityHexLen)
	}
	if _, err := hex.DecodeString(body); err != nil {
		return NullIdentity, dErrors.Wrap(err, dErrors.CodeInvalidInput, "identity is not valid hex")
	}
	return Identity("0x" + strings.ToLower(body)), nil
}

// IsNull reports whether the identity is the null identity.
func (i Identity) IsNull() bool {
	return i == NullIdentity
}

// String returns the canonical form.
func (i Identity) String() string {
	return string(i)
}

// Bytes returns the 20 raw address bytes. Returns nil for the null identity
// or a malformed value that bypassed ParseIdentity.
func (i Identity) Bytes() []byte {
	if len(i) != 2+identityHexLen {
		return nil
	}
	b, err := hex.DecodeString(string(i)[2:])
	if err != nil {
		return nil
	}
	return b
}

// Round is a claim-distribution round counter. Rounds are monotonically
// non-decreasing; rotating to a new root may keep the same round.
type Round uint64
