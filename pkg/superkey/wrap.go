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
	"github.com/jeremyhahn/go-credstore/pkg/metrics"
	"github.com/jeremyhahn/go-credstore/pkg/types"
)

// corrupted logs a rejected blob at error level and bumps the corruption
// counter before handing the error back unchanged.
func (m *Manager) corrupted(err error) error {
	m.log.Error("corrupted key blob rejected", logger.Err(err))
	metrics.RecordCorruption()
	return err
}

// deriveWrapKey derives a wrapping key from a lock-screen secret and salt
// using the configured KDF. The caller must zeroize the returned key.
func (m *Manager) deriveWrapKey(secret, salt []byte) ([]byte, error) {
	params := m.kdfParams
	params.Salt = salt
	key, err := m.kdf.DeriveKey(secret, &params)
	if err != nil {
		return nil, fmt.Errorf("superkey: key derivation failed: %w", err)
	}
	return key, nil
}

// EncryptWithPassword wraps key material with a key derived from the user's
// lock-screen secret, generating a fresh salt. Returns the ciphertext and
// complete password wrap metadata.
func (m *Manager) EncryptWithPassword(material []byte, password types.Password) ([]byte, *BlobMetadata, error) {
	salt, err := aead.GenerateSalt()
	if err != nil {
		return nil, nil, err
	}
	wrapKey, err := m.deriveWrapKey(password.Bytes(), salt)
	if err != nil {
		return nil, nil, err
	}
	defer zeroize.Bytes(wrapKey)

	ciphertext, iv, tag, err := aead.Encrypt(material, wrapKey)
	if err != nil {
		return nil, nil, err
	}
	return ciphertext, NewPasswordMetadata(salt, iv, tag), nil
}

// ImportMasterKey wraps recovered master key material under the user's
// lock-screen secret and persists it as the user's master key entry. Used by
// the legacy migrator; the material keeps its original length.
func (m *Manager) ImportMasterKey(user types.UserID, material []byte, password types.Password) (*KeyEntry, error) {
	blob, metadata, err := m.EncryptWithPassword(material, password)
	if err != nil {
		return nil, err
	}
	entry, err := m.db.StoreMasterKeyEntry(user, blob, metadata)
	if err != nil {
		return nil, fmt.Errorf("superkey: failed to store imported master key: %w", err)
	}
	m.log.Info("legacy master key imported", logger.Uint32("user", uint32(user)), logger.Int64("key_id", entry.ID))
	return entry, nil
}

// encryptWithSuperKey wraps plaintext with a cached master key. Returns the
// ciphertext and complete master-key wrap metadata naming the key's id.
func (m *Manager) encryptWithSuperKey(key *SuperKey, plaintext []byte) ([]byte, *BlobMetadata, error) {
	material := key.Bytes()
	if material == nil {
		return nil, nil, ErrKeyReleased
	}
	ciphertext, iv, tag, err := aead.Encrypt(plaintext, material)
	if err != nil {
		return nil, nil, err
	}
	return ciphertext, NewKeyIDMetadata(key.ID(), iv, tag), nil
}

// extractSuperKeyFromEntry decrypts a master key entry with the user's
// lock-screen secret and returns an owning handle carrying the entry's id.
// Incomplete metadata is ErrValueCorrupted; a wrong password surfaces as
// aead.ErrAuthenticationFailed.
func (m *Manager) extractSuperKeyFromEntry(entry *KeyEntry, password types.Password) (*SuperKey, error) {
	if err := entry.Metadata.validatePasswordWrap(); err != nil {
		return nil, m.corrupted(err)
	}
	wrapKey, err := m.deriveWrapKey(password.Bytes(), entry.Metadata.Salt)
	if err != nil {
		return nil, err
	}
	defer zeroize.Bytes(wrapKey)

	material, err := aead.Decrypt(entry.Blob, entry.Metadata.IV, entry.Metadata.AEADTag, wrapKey)
	if err != nil {
		return nil, err
	}
	key := NewSuperKey(material, entry.ID)
	zeroize.Bytes(material)
	return key, nil
}

// UnwrapKey decrypts a master-key-wrapped blob. The wrapping key is resolved
// through the id index; a miss means the owning user is locked. Returns a
// Sensitive blob owning a reference to the wrapping key; the caller must
// call Zero on it.
func (m *Manager) UnwrapKey(blob []byte, metadata *BlobMetadata) (*Sensitive, error) {
	if !metadata.SuperEncrypted() {
		return nil, m.corrupted(fmt.Errorf("%w: blob is not wrapped by a master key", ErrValueCorrupted))
	}
	if err := metadata.validateKeyIDWrap(); err != nil {
		return nil, m.corrupted(err)
	}

	key := m.ResolveByID(metadata.EncryptedBy.KeyID)
	if key == nil {
		return nil, ErrLocked
	}

	plaintext, err := aead.Decrypt(blob, metadata.IV, metadata.AEADTag, key.Bytes())
	if err != nil {
		key.Release()
		return nil, m.corrupted(fmt.Errorf("%w: %v", ErrValueCorrupted, err))
	}
	return &Sensitive{Key: plaintext, SuperKey: key}, nil
}

// UnwrapKeyIfRequired inspects a blob's metadata and unwraps it when it is
// master-key wrapped, returning a Sensitive blob. Blobs with any other wrap
// state are passed through as a Ref borrowing the input bytes.
func (m *Manager) UnwrapKeyIfRequired(blob []byte, metadata *BlobMetadata) (KeyBlob, error) {
	if metadata.SuperEncrypted() {
		return m.UnwrapKey(blob, metadata)
	}
	return &Ref{Key: blob}, nil
}

// HandleSuperEncryptionOnKeyInit wraps a freshly created key with the user's
// per-boot master key when policy requires it. Keys outside the app domain
// and keys whose policy does not require protection pass through with empty
// metadata. Returns ErrLocked or ErrUninitialized when the required master
// key is unavailable.
func (m *Manager) HandleSuperEncryptionOnKeyInit(
	user types.UserID,
	domain types.Domain,
	params []types.KeyParameter,
	flags types.KeyFlags,
	key []byte,
) ([]byte, *BlobMetadata, error) {
	if domain != types.DomainApp || m.policy == nil || !m.policy.SuperEncryptionRequired(params, flags) {
		return key, &BlobMetadata{}, nil
	}
	return m.superEncryptOnKeyInit(user, key)
}

// superEncryptOnKeyInit wraps key with the user's per-boot master key,
// mapping the user's lock state to the matching error.
func (m *Manager) superEncryptOnKeyInit(user types.UserID, key []byte) ([]byte, *BlobMetadata, error) {
	state, err := m.GetUserState(user)
	if err != nil {
		return nil, nil, err
	}
	switch s := state.(type) {
	case *LskfUnlocked:
		defer s.SuperKey.Release()
		return m.encryptWithSuperKey(s.SuperKey, key)
	case *LskfLocked:
		return nil, nil, ErrLocked
	case *Uninitialized:
		return nil, nil, ErrUninitialized
	default:
		return nil, nil, fmt.Errorf("%w: unknown user state", ErrValueCorrupted)
	}
}
