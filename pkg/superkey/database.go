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

import "github.com/jeremyhahn/go-credstore/pkg/types"

// KeyEntry is a master key record loaded from the key database: the wrapped
// blob, its wrap metadata, and the persistent id the secondary index and
// ordinary key wraps refer to.
type KeyEntry struct {
	ID       int64
	Blob     []byte
	Metadata *BlobMetadata
}

// Database is the persistent store contract the core relies on. Implemented
// by pkg/keystore. All methods must be safe for concurrent use.
type Database interface {
	// GetOrCreateMasterKeyEntry loads the user's master key entry, calling
	// factory to produce the wrapped blob and metadata if no entry exists
	// yet. Creation must be atomic with respect to concurrent callers.
	GetOrCreateMasterKeyEntry(user types.UserID, factory func() ([]byte, *BlobMetadata, error)) (*KeyEntry, error)

	// LoadMasterKeyEntry loads the user's master key entry.
	// Returns (nil, nil) when the user has no master key.
	LoadMasterKeyEntry(user types.UserID) (*KeyEntry, error)

	// StoreMasterKeyEntry persists a freshly wrapped master key and
	// returns the stored entry with its assigned id.
	StoreMasterKeyEntry(user types.UserID, blob []byte, metadata *BlobMetadata) (*KeyEntry, error)

	// MasterKeyExists reports whether a master key is persisted for the
	// user.
	MasterKeyExists(user types.UserID) (bool, error)

	// UnbindKeysForUser marks the user's keys as unreferenced. With
	// keepNonSuperEncrypted set, only the master key and keys wrapped by
	// it are deleted.
	UnbindKeysForUser(user types.UserID, keepNonSuperEncrypted bool) error
}

// LegacyMigrator is the contract of the flat-file importer for blobs written
// by the v0 store. Implemented by pkg/legacy.
type LegacyMigrator interface {
	// HasMasterKey reports whether a legacy master key blob exists for the
	// user.
	HasMasterKey(user types.UserID) (bool, error)

	// LoadMasterKey decrypts the user's legacy master key with the given
	// password. Returns (nil, nil) when no legacy blob exists. The key may
	// be shorter than the current master key length.
	LoadMasterKey(user types.UserID, password []byte) ([]byte, error)

	// TryMigrateMasterKey returns the database entry produced by load,
	// migrating the legacy blob into the database first if load finds
	// nothing and a legacy blob exists. Returns (nil, nil) when neither
	// store has a master key for the user.
	TryMigrateMasterKey(user types.UserID, password []byte, load func() (*KeyEntry, error)) (*KeyEntry, error)

	// BulkDeleteUser deletes the user's legacy blobs. With
	// keepNonSuperEncrypted set, only super-encrypted blobs are removed.
	BulkDeleteUser(user types.UserID, keepNonSuperEncrypted bool) error
}

// PolicyChecker decides whether a key being created must be super-encrypted.
// Implemented by pkg/enforcement.
type PolicyChecker interface {
	SuperEncryptionRequired(params []types.KeyParameter, flags types.KeyFlags) bool
}
