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

package aead

import "errors"

var (
	// ErrAuthenticationFailed is returned when a (ciphertext, iv, tag)
	// triple does not authenticate under the presented key. Callers cannot
	// distinguish a wrong key from corrupted data at this level.
	ErrAuthenticationFailed = errors.New("aead: authentication failed")

	// ErrInvalidKey is returned for key material of an unsupported length.
	ErrInvalidKey = errors.New("aead: invalid key")

	// ErrInvalidIV is returned for an IV of the wrong length.
	ErrInvalidIV = errors.New("aead: invalid iv")

	// ErrInvalidTag is returned for an authentication tag of the wrong length.
	ErrInvalidTag = errors.New("aead: invalid tag")
)
