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

import "fmt"

// Mechanism identifies which kind of key produced a wrap.
type Mechanism string

const (
	// MechanismPassword marks a blob wrapped with a key derived from the
	// user's lock-screen secret. Used only for the master key itself.
	MechanismPassword Mechanism = "password"

	// MechanismKeyID marks a blob wrapped with the master key identified
	// by the accompanying key id.
	MechanismKeyID Mechanism = "key-id"
)

// EncryptedBy records the wrapping mechanism of a blob. KeyID is meaningful
// only when Mechanism is MechanismKeyID.
type EncryptedBy struct {
	Mechanism Mechanism `json:"mechanism"`
	KeyID     int64     `json:"key_id,omitempty"`
}

// BlobMetadata is the wrap metadata associated with every encrypted key
// blob. Metadata fields are mechanism-complete: password wraps always carry
// {salt, iv, tag}, master-key wraps always carry {iv, tag, key id}.
// Incomplete metadata is a corruption error, never silently tolerated.
//
// The struct is JSON-serializable; the key database persists it alongside
// the blob.
type BlobMetadata struct {
	EncryptedBy *EncryptedBy `json:"encrypted_by,omitempty"`
	Salt        []byte       `json:"salt,omitempty"`
	IV          []byte       `json:"iv,omitempty"`
	AEADTag     []byte       `json:"aead_tag,omitempty"`
}

// NewPasswordMetadata builds the metadata for a password-derived wrap.
func NewPasswordMetadata(salt, iv, tag []byte) *BlobMetadata {
	return &BlobMetadata{
		EncryptedBy: &EncryptedBy{Mechanism: MechanismPassword},
		Salt:        salt,
		IV:          iv,
		AEADTag:     tag,
	}
}

// NewKeyIDMetadata builds the metadata for a master-key wrap.
func NewKeyIDMetadata(keyID int64, iv, tag []byte) *BlobMetadata {
	return &BlobMetadata{
		EncryptedBy: &EncryptedBy{Mechanism: MechanismKeyID, KeyID: keyID},
		IV:          iv,
		AEADTag:     tag,
	}
}

// SuperEncrypted reports whether the metadata names a master-key wrap.
func (m *BlobMetadata) SuperEncrypted() bool {
	return m != nil && m.EncryptedBy != nil && m.EncryptedBy.Mechanism == MechanismKeyID
}

// validatePasswordWrap checks mechanism-completeness for a password wrap.
func (m *BlobMetadata) validatePasswordWrap() error {
	if m == nil || m.EncryptedBy == nil || m.EncryptedBy.Mechanism != MechanismPassword ||
		len(m.Salt) == 0 || len(m.IV) == 0 || len(m.AEADTag) == 0 {
		return fmt.Errorf("%w: incomplete password wrap metadata (encrypted_by: %v, salt: %v, iv: %v, tag: %v)",
			ErrValueCorrupted, m.hasEncryptedBy(), m.hasSalt(), m.hasIV(), m.hasTag())
	}
	return nil
}

// validateKeyIDWrap checks mechanism-completeness for a master-key wrap.
func (m *BlobMetadata) validateKeyIDWrap() error {
	if !m.SuperEncrypted() || len(m.IV) == 0 || len(m.AEADTag) == 0 {
		return fmt.Errorf("%w: incomplete master-key wrap metadata (encrypted_by: %v, iv: %v, tag: %v)",
			ErrValueCorrupted, m.hasEncryptedBy(), m.hasIV(), m.hasTag())
	}
	return nil
}

func (m *BlobMetadata) hasEncryptedBy() bool { return m != nil && m.EncryptedBy != nil }
func (m *BlobMetadata) hasSalt() bool        { return m != nil && len(m.Salt) > 0 }
func (m *BlobMetadata) hasIV() bool          { return m != nil && len(m.IV) > 0 }
func (m *BlobMetadata) hasTag() bool         { return m != nil && len(m.AEADTag) > 0 }
