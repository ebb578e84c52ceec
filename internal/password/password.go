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

// Package password implements types.Password for lock-screen secrets held
// in memory: a zeroable cleartext representation and constant-time
// comparison.
package password

import (
	"crypto/subtle"
	"errors"

	"github.com/jeremyhahn/go-credstore/pkg/crypto/zeroize"
	"github.com/jeremyhahn/go-credstore/pkg/types"
)

var (
	// ErrEmptyPassword is returned when an empty password is provided.
	ErrEmptyPassword = errors.New("password: empty password")

	// ErrPasswordZeroed is returned when the password has been zeroed.
	ErrPasswordZeroed = errors.New("password: password has been zeroed")
)

// ClearPassword stores a lock-screen secret in memory as cleartext until it
// is zeroed.
type ClearPassword struct {
	password []byte
}

// New creates a cleartext password. The provided slice is copied; the caller
// keeps responsibility for zeroing its own copy. Returns an error if the
// password is empty.
func New(password []byte) (types.Password, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}
	return &ClearPassword{password: zeroize.Copy(password)}, nil
}

// NewFromString creates a cleartext password from a string. Returns an error
// if the password is empty.
func NewFromString(password string) (types.Password, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}
	return &ClearPassword{password: []byte(password)}, nil
}

// Bytes returns a copy of the secret bytes, or nil after Clear.
func (p *ClearPassword) Bytes() []byte {
	if p.password == nil {
		return nil
	}
	return zeroize.Copy(p.password)
}

// Clear zeroes the secret. Irreversible; Bytes returns nil afterwards.
func (p *ClearPassword) Clear() {
	if p.password != nil {
		zeroize.Bytes(p.password)
		p.password = nil
	}
}

// Equal compares two passwords in constant time.
func Equal(a, b types.Password) (bool, error) {
	aBytes := a.Bytes()
	if aBytes == nil {
		return false, ErrPasswordZeroed
	}
	defer zeroize.Bytes(aBytes)

	bBytes := b.Bytes()
	if bBytes == nil {
		return false, ErrPasswordZeroed
	}
	defer zeroize.Bytes(bBytes)

	return subtle.ConstantTimeCompare(aBytes, bBytes) == 1, nil
}

// Verify interface compliance at compile time
var _ types.Password = (*ClearPassword)(nil)
