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

// Package superkey implements the master-key hierarchy and per-user unlock
// state machine of the credential store.
//
// Every key stored on behalf of a user can be super-encrypted: wrapped with
// the user's master key, which is itself wrapped with a key derived from the
// user's lock-screen knowledge factor (LSKF) and persisted in the key
// database. When the user unlocks for the first time after a restart, the
// master key is decrypted and cached in memory by the Manager until the
// process exits or the user is forgotten.
//
// The Manager cache maps each user to their per-boot master key and keeps a
// secondary index from persistent master-key id to a non-owning handle, so
// that a stored blob's wrap metadata can be resolved to key material without
// re-deriving anything from a password. A lookup through the index fails
// once the owning cache slot has been dropped; callers must treat that as
// "locked", never as corruption.
//
// Key material is reference counted and zeroed deterministically when the
// last holder releases it. Handles obtained from the cache (GetPerBootKey,
// ResolveByID, the SuperKey carried by LskfUnlocked or a Sensitive blob)
// are owned by the caller and must be released.
package superkey
