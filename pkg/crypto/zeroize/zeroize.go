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

// Package zeroize provides best-effort zeroing of sensitive byte slices.
//
// Go's garbage collector may still have copied sensitive data elsewhere
// (stack growth, slice reallocation), so callers should minimize the number
// of copies they make of key material and zero every copy they control.
package zeroize

import "crypto/subtle"

// Bytes overwrites b with zeros. The subtle.ConstantTimeCopy call prevents
// the compiler from eliding the wipe as a dead store.
func Bytes(b []byte) {
	if len(b) == 0 {
		return
	}
	for i := range b {
		b[i] = 0
	}
	subtle.ConstantTimeCopy(1, b, make([]byte, len(b)))
}

// Copy returns a fresh copy of b. Use it when handing key material to a
// holder with an independent lifetime, so each holder can zero its own copy.
func Copy(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
