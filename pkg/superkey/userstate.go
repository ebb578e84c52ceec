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
	"fmt"

	"github.com/jeremyhahn/go-credstore/pkg/adapters/logger"
	"github.com/jeremyhahn/go-credstore/pkg/crypto/aead"
	"github.com/jeremyhahn/go-credstore/pkg/crypto/zeroize"
	"github.com/jeremyhahn/go-credstore/pkg/types"
)

// UserState is the lock state of one user. A closed sum over exactly three
// variants: Uninitialized, LskfLocked and LskfUnlocked. Consumers switch
// exhaustively over the concrete types.
type UserState interface {
	isUserState()
}

// Uninitialized means the user has never provisioned a lock-screen secret.
// There is no master key to unlock.
type Uninitialized struct{}

func (*Uninitialized) isUserState() {}

// LskfLocked means a master key is persisted but not memory resident. It
// cannot be produced without the user's secret.
type LskfLocked struct{}

func (*LskfLocked) isUserState() {}

// LskfUnlocked means the user's per-boot master key is cached. SuperKey is
// a retained handle; the receiver must Release it.
type LskfUnlocked struct {
	SuperKey *SuperKey
}

func (*LskfUnlocked) isUserState() {}

// GetUserState reports the user's lock state without side effects. The
// LskfUnlocked variant carries a retained handle the caller must Release.
func (m *Manager) GetUserState(user types.UserID) (UserState, error) {
	if key := m.GetPerBootKey(user); key != nil {
		return &LskfUnlocked{SuperKey: key}, nil
	}
	exists, err := m.SuperKeyExistsForUser(user)
	if err != nil {
		return nil, err
	}
	if exists {
		return &LskfLocked{}, nil
	}
	return &Uninitialized{}, nil
}

// SuperKeyExistsForUser reports whether a master key is persisted for the
// user in either the database or the legacy store.
func (m *Manager) SuperKeyExistsForUser(user types.UserID) (bool, error) {
	exists, err := m.db.MasterKeyExists(user)
	if err != nil {
		return false, fmt.Errorf("superkey: master key lookup failed: %w", err)
	}
	if exists {
		return true, nil
	}
	if m.legacy == nil {
		return false, nil
	}
	exists, err = m.legacy.HasMasterKey(user)
	if err != nil {
		return false, fmt.Errorf("superkey: legacy master key lookup failed: %w", err)
	}
	return exists, nil
}

// GetWithPasswordUnlock unlocks the user with their lock-screen secret and
// returns the resulting state. Unlocking an already-unlocked user is a
// logged no-op that returns the cached state. Returns Uninitialized when no
// master key exists anywhere; a wrong password surfaces as
// aead.ErrAuthenticationFailed.
func (m *Manager) GetWithPasswordUnlock(user types.UserID, password types.Password) (UserState, error) {
	unlock := m.lockUser(user)
	defer unlock()

	if key := m.GetPerBootKey(user); key != nil {
		m.log.Info("unlock requested for already unlocked user", logger.Uint32("user", uint32(user)))
		return &LskfUnlocked{SuperKey: key}, nil
	}
	return m.checkAndUnlock(user, password)
}

// GetWithPasswordChanged handles a lock-screen secret change. A nil password
// means the secret was removed: for an unlocked user the master key and
// everything it wraps are destroyed and the user becomes Uninitialized. A
// locked user keeps their persisted master key and reports LskfLocked; the
// removal cannot be verified without the secret. Otherwise the user's master
// key is created or unlocked under the new secret.
func (m *Manager) GetWithPasswordChanged(user types.UserID, password types.Password) (UserState, error) {
	unlock := m.lockUser(user)
	defer unlock()

	if key := m.GetPerBootKey(user); key != nil {
		if password == nil {
			key.Release()
			if err := m.resetUser(user, true); err != nil {
				return nil, err
			}
			return &Uninitialized{}, nil
		}
		return &LskfUnlocked{SuperKey: key}, nil
	}

	if password == nil {
		exists, err := m.SuperKeyExistsForUser(user)
		if err != nil {
			return nil, err
		}
		if exists {
			return &LskfLocked{}, nil
		}
		return &Uninitialized{}, nil
	}
	return m.checkAndInitialize(user, password)
}

// ResetUser destroys the user's master key, their super-encrypted keys and
// the cached state. With keepNonSuperEncrypted set, keys that were never
// master-key wrapped survive.
func (m *Manager) ResetUser(user types.UserID, keepNonSuperEncrypted bool) error {
	unlock := m.lockUser(user)
	defer unlock()
	return m.resetUser(user, keepNonSuperEncrypted)
}

// resetUser performs the reset. Caller must hold the per-user flow lock.
func (m *Manager) resetUser(user types.UserID, keepNonSuperEncrypted bool) error {
	if m.legacy != nil {
		if err := m.legacy.BulkDeleteUser(user, keepNonSuperEncrypted); err != nil {
			return fmt.Errorf("superkey: legacy delete failed: %w", err)
		}
	}
	if err := m.db.UnbindKeysForUser(user, keepNonSuperEncrypted); err != nil {
		return fmt.Errorf("superkey: unbind keys failed: %w", err)
	}
	m.ForgetUser(user)
	m.log.Info("user reset", logger.Uint32("user", uint32(user)), logger.Bool("keep_non_super_encrypted", keepNonSuperEncrypted))
	return nil
}

// checkAndUnlock loads the user's master key entry, migrating from the
// legacy store when needed, and populates the cache. Caller must hold the
// per-user flow lock.
func (m *Manager) checkAndUnlock(user types.UserID, password types.Password) (UserState, error) {
	entry, err := m.loadEntryWithMigration(user, password)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return &Uninitialized{}, nil
	}
	key, err := m.populateCacheFromEntry(user, entry, password)
	if err != nil {
		return nil, err
	}
	return &LskfUnlocked{SuperKey: key}, nil
}

// checkAndInitialize unlocks the user's master key, creating it if none
// exists yet. Caller must hold the per-user flow lock.
func (m *Manager) checkAndInitialize(user types.UserID, password types.Password) (UserState, error) {
	key, err := m.unlockUserKey(user, password)
	if err != nil {
		return nil, err
	}
	return &LskfUnlocked{SuperKey: key}, nil
}

// unlockUserKey loads or creates the user's master key entry and populates
// the cache. Creation wraps either a key recovered from the legacy store or
// freshly generated material; a recovered key keeps its original length.
func (m *Manager) unlockUserKey(user types.UserID, password types.Password) (*SuperKey, error) {
	entry, err := m.db.GetOrCreateMasterKeyEntry(user, func() ([]byte, *BlobMetadata, error) {
		material, err := m.recoverOrGenerate(user, password)
		if err != nil {
			return nil, nil, err
		}
		defer zeroize.Bytes(material)
		return m.EncryptWithPassword(material, password)
	})
	if err != nil {
		return nil, fmt.Errorf("superkey: failed to load or create master key: %w", err)
	}
	return m.populateCacheFromEntry(user, entry, password)
}

// recoverOrGenerate returns the user's legacy master key material when one
// exists, otherwise fresh random material.
func (m *Manager) recoverOrGenerate(user types.UserID, password types.Password) ([]byte, error) {
	if m.legacy != nil {
		material, err := m.legacy.LoadMasterKey(user, password.Bytes())
		if err != nil {
			return nil, fmt.Errorf("superkey: legacy master key load failed: %w", err)
		}
		if material != nil {
			m.log.Info("recovered legacy master key", logger.Uint32("user", uint32(user)))
			return material, nil
		}
	}
	return aead.GenerateKey()
}

// loadEntryWithMigration loads the user's master key entry from the
// database, importing it from the legacy store first when only a legacy
// blob exists.
func (m *Manager) loadEntryWithMigration(user types.UserID, password types.Password) (*KeyEntry, error) {
	load := func() (*KeyEntry, error) {
		return m.db.LoadMasterKeyEntry(user)
	}
	if m.legacy == nil {
		return load()
	}
	entry, err := m.legacy.TryMigrateMasterKey(user, password.Bytes(), load)
	if err != nil {
		return nil, fmt.Errorf("superkey: master key migration failed: %w", err)
	}
	return entry, nil
}

// populateCacheFromEntry decrypts the entry and installs the key as the
// user's per-boot key. Returns a retained handle the caller must Release.
// Caller must hold the per-user flow lock.
func (m *Manager) populateCacheFromEntry(user types.UserID, entry *KeyEntry, password types.Password) (*SuperKey, error) {
	key, err := m.extractSuperKeyFromEntry(entry, password)
	if err != nil {
		return nil, err
	}
	handle := key.Retain()
	if err := m.InstallPerBootKey(user, key); err != nil {
		handle.Release()
		key.Release()
		return nil, err
	}
	return handle, nil
}
