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

// Package enforcement decides which keys must be bound to the user's
// lock-screen knowledge factor.
package enforcement

import "github.com/jeremyhahn/go-credstore/pkg/types"

// Policy implements the super-encryption decision for key creation.
type Policy struct{}

// NewPolicy returns the default policy.
func NewPolicy() *Policy {
	return &Policy{}
}

// SuperEncryptionRequired reports whether a key with the given parameters
// and flags must be wrapped by the user's master key. Auth-bound keys
// require it unless the key explicitly opts out of authentication or
// carries the skip flag.
func (p *Policy) SuperEncryptionRequired(params []types.KeyParameter, flags types.KeyFlags) bool {
	if flags.Has(types.FlagSkipLskfBinding) {
		return false
	}
	authBound := false
	for _, param := range params {
		switch param.Tag {
		case types.TagNoAuthRequired:
			return false
		case types.TagUserAuthBound, types.TagUserSecureID:
			authBound = true
		}
	}
	return authBound
}
