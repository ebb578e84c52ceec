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

import (
	"sync"

	"github.com/jeremyhahn/go-credstore/pkg/crypto/zeroize"
)

// SuperKey is a shared, owning handle to one master key's plaintext material
// and its persistent identifier. Multiple holders (the cache slot, operations
// in flight) may share the underlying material; it is zeroed when the last
// holder releases. Handles are explicit so that zeroing is deterministic
// rather than tied to garbage collection.
//
// The material is immutable after creation. Rotation installs a new SuperKey,
// it never mutates an existing one.
type SuperKey struct {
	id       int64
	cell     *keyCell
	released bool
	mu       sync.Mutex
}

// keyCell holds the reference count and material shared by all handles to
// the same master key.
type keyCell struct {
	mu   sync.Mutex
	refs int
	key  []byte
}

// NewSuperKey creates an owning handle to the given material. The material
// is copied; the caller keeps responsibility for zeroing its own copy.
// The returned handle carries one reference.
func NewSuperKey(material []byte, id int64) *SuperKey {
	return &SuperKey{
		id: id,
		cell: &keyCell{
			refs: 1,
			key:  zeroize.Copy(material),
		},
	}
}

// ID returns the persistent identifier of the master key in the database.
func (k *SuperKey) ID() int64 {
	return k.id
}

// Bytes returns the key material. The slice is borrowed: it stays valid only
// while this handle is unreleased, and must not be modified. Returns nil
// after Release.
func (k *SuperKey) Bytes() []byte {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.released {
		return nil
	}
	return k.cell.key
}

// Retain returns a new handle sharing the same material, adding one
// reference. Panics are avoided: retaining a released handle returns nil.
func (k *SuperKey) Retain() *SuperKey {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.released {
		return nil
	}

	k.cell.mu.Lock()
	defer k.cell.mu.Unlock()
	k.cell.refs++
	return &SuperKey{id: k.id, cell: k.cell}
}

// Release drops this handle's reference. When the last reference is
// dropped the material is zeroed. Releasing an already-released handle is
// a no-op.
func (k *SuperKey) Release() {
	k.mu.Lock()
	if k.released {
		k.mu.Unlock()
		return
	}
	k.released = true
	k.mu.Unlock()

	k.cell.mu.Lock()
	defer k.cell.mu.Unlock()
	k.cell.refs--
	if k.cell.refs == 0 {
		zeroize.Bytes(k.cell.key)
		k.cell.key = nil
	}
}

// weakKeyRef is a non-owning reference to a master key's material, held by
// the Manager's secondary index. It does not keep the material alive: once
// every owning handle has released, upgrade fails and the index entry is
// treated as a cache miss.
type weakKeyRef struct {
	cell *keyCell
	id   int64
}

// weakRef returns a non-owning reference to this handle's material.
func (k *SuperKey) weakRef() weakKeyRef {
	return weakKeyRef{cell: k.cell, id: k.id}
}

// upgrade attempts to obtain an owning handle. Returns nil, false if the
// material has already been dropped.
func (w weakKeyRef) upgrade() (*SuperKey, bool) {
	w.cell.mu.Lock()
	defer w.cell.mu.Unlock()
	if w.cell.refs == 0 {
		return nil, false
	}
	w.cell.refs++
	return &SuperKey{id: w.id, cell: w.cell}, true
}

// dead reports whether the referenced material has been dropped.
func (w weakKeyRef) dead() bool {
	w.cell.mu.Lock()
	defer w.cell.mu.Unlock()
	return w.cell.refs == 0
}
