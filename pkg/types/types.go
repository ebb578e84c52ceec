// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-credstore.
//
// go-credstore is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package types defines the shared domain types used across the credential
// store: user identifiers, key domains, key parameters and the Password
// interface for handling lock-screen secrets in memory.
package types

// UserID identifies a device user. Each user owns at most one master key.
type UserID uint32

// Domain identifies the namespace a stored key belongs to. Only keys in the
// app domain are subject to LSKF super-encryption.
type Domain int32

const (
	// DomainApp is the default domain for application-owned keys.
	DomainApp Domain = iota

	// DomainSELinux is for keys bound to an SELinux label rather than a user.
	DomainSELinux

	// DomainGrant is for keys accessed through a grant from another owner.
	DomainGrant
)

// String returns the string representation of the domain.
func (d Domain) String() string {
	switch d {
	case DomainApp:
		return "app"
	case DomainSELinux:
		return "selinux"
	case DomainGrant:
		return "grant"
	default:
		return "unknown"
	}
}

// KeyFlags carry per-key creation flags that influence storage policy.
type KeyFlags uint32

const (
	// FlagNone is the zero value, no flags set.
	FlagNone KeyFlags = 0

	// FlagSkipLskfBinding exempts a key from super-encryption even when its
	// parameters would otherwise require it.
	FlagSkipLskfBinding KeyFlags = 1 << iota
)

// Has reports whether all bits of flag are set.
func (f KeyFlags) Has(flag KeyFlags) bool {
	return f&flag == flag
}

// Tag identifies a key parameter.
type Tag string

const (
	// TagUserAuthBound marks a key as usable only while the user is
	// authenticated via their lock-screen knowledge factor.
	TagUserAuthBound Tag = "user-auth-bound"

	// TagNoAuthRequired marks a key as usable without user authentication.
	TagNoAuthRequired Tag = "no-auth-required"

	// TagUserSecureID binds a key to a secure authenticator identifier.
	TagUserSecureID Tag = "user-secure-id"
)

// KeyParameter is a single tag-value pair attached to a key at creation.
type KeyParameter struct {
	Tag   Tag
	Value interface{}
}

// Password is the interface for handling sensitive secrets in memory.
// Implementations must support deterministic zeroing.
type Password interface {
	// Bytes returns a copy of the secret bytes, or nil after Clear.
	Bytes() []byte

	// Clear zeroes the secret. Irreversible.
	Clear()
}
