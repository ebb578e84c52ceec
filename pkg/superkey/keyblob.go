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

package superkey

import "github.com/jeremyhahn/go-credstore/pkg/crypto/zeroize"

// KeyBlob describes the sensitivity state of a key payload during a single
// operation. It is a closed sum over exactly three variants: Sensitive,
// NonSensitive and Ref. All consumers must switch exhaustively over the
// three concrete types. A KeyBlob is never persisted.
type KeyBlob interface {
	// Bytes returns the payload bytes of any variant.
	Bytes() []byte

	// isKeyBlob seals the set of variants.
	isKeyBlob()
}

// Sensitive holds a decrypted payload together with the SuperKey that wraps
// it at rest. It owns one reference to the SuperKey and the payload copy;
// call Zero when the operation completes.
type Sensitive struct {
	Key      []byte
	SuperKey *SuperKey
}

// Bytes returns the decrypted payload.
func (b *Sensitive) Bytes() []byte { return b.Key }

func (b *Sensitive) isKeyBlob() {}

// Zero wipes the payload and releases the SuperKey reference.
func (b *Sensitive) Zero() {
	zeroize.Bytes(b.Key)
	b.Key = nil
	if b.SuperKey != nil {
		b.SuperKey.Release()
		b.SuperKey = nil
	}
}

// NonSensitive holds a payload that is never meant to be wrapped.
type NonSensitive struct {
	Key []byte
}

// Bytes returns the payload.
func (b *NonSensitive) Bytes() []byte { return b.Key }

func (b *NonSensitive) isKeyBlob() {}

// Ref borrows already-wrapped bytes that need no modification.
type Ref struct {
	Key []byte
}

// Bytes returns the borrowed bytes.
func (b *Ref) Bytes() []byte { return b.Key }

func (b *Ref) isKeyBlob() {}
