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

// ReencryptOnUpgradeIfRequired wraps the post-upgrade key material so it
// can be persisted in place of the pre-upgrade blob. When the blob before
// the upgrade was Sensitive, the new material is encrypted with the same
// master key and comes back as a NonSensitive blob with fresh wrap metadata.
// Every other variant passes the new material through as a Ref with nil
// metadata, meaning the stored metadata stays untouched.
func (m *Manager) ReencryptOnUpgradeIfRequired(beforeUpgrade KeyBlob, afterUpgrade []byte) (KeyBlob, *BlobMetadata, error) {
	switch b := beforeUpgrade.(type) {
	case *Sensitive:
		wrapped, metadata, err := m.encryptWithSuperKey(b.SuperKey, afterUpgrade)
		if err != nil {
			return nil, nil, err
		}
		return &NonSensitive{Key: wrapped}, metadata, nil
	default:
		return &Ref{Key: afterUpgrade}, nil, nil
	}
}
