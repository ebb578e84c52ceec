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
	"testing"

	"github.com/jeremyhahn/go-credstore/pkg/metrics"
	"github.com/jeremyhahn/go-credstore/pkg/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnwrapKey(t *testing.T) {
	const user = types.UserID(30)
	payload := []byte("app key material")

	unlockedManager := func(t *testing.T) (*Manager, *SuperKey) {
		t.Helper()
		mgr, _, _ := newTestManager(t)
		state, err := mgr.GetWithPasswordChanged(user, testPassword("secret"))
		require.NoError(t, err)
		return mgr, state.(*LskfUnlocked).SuperKey
	}

	t.Run("round-trip through the cached master key", func(t *testing.T) {
		mgr, key := unlockedManager(t)
		defer key.Release()

		blob, metadata, err := mgr.encryptWithSuperKey(key, payload)
		require.NoError(t, err)
		assert.Equal(t, key.ID(), metadata.EncryptedBy.KeyID)
		assert.True(t, metadata.SuperEncrypted())

		sensitive, err := mgr.UnwrapKey(blob, metadata)
		require.NoError(t, err)
		assert.Equal(t, payload, sensitive.Key)
		assert.Equal(t, key.ID(), sensitive.SuperKey.ID())
		sensitive.Zero()
		assert.Nil(t, sensitive.Key)
	})

	t.Run("locked when the wrapping key is not cached", func(t *testing.T) {
		mgr, key := unlockedManager(t)
		blob, metadata, err := mgr.encryptWithSuperKey(key, payload)
		require.NoError(t, err)
		key.Release()
		mgr.ForgetUser(user)

		_, err = mgr.UnwrapKey(blob, metadata)
		assert.ErrorIs(t, err, ErrLocked)
	})

	t.Run("corrupted when metadata names no master key", func(t *testing.T) {
		mgr, key := unlockedManager(t)
		defer key.Release()

		_, err := mgr.UnwrapKey(payload, NewPasswordMetadata([]byte("salt"), []byte("iv"), []byte("tag")))
		assert.ErrorIs(t, err, ErrValueCorrupted)

		_, err = mgr.UnwrapKey(payload, &BlobMetadata{})
		assert.ErrorIs(t, err, ErrValueCorrupted)
	})

	t.Run("corrupted when iv or tag is missing", func(t *testing.T) {
		mgr, key := unlockedManager(t)
		defer key.Release()

		blob, metadata, err := mgr.encryptWithSuperKey(key, payload)
		require.NoError(t, err)

		noIV := *metadata
		noIV.IV = nil
		_, err = mgr.UnwrapKey(blob, &noIV)
		assert.ErrorIs(t, err, ErrValueCorrupted)

		noTag := *metadata
		noTag.AEADTag = nil
		_, err = mgr.UnwrapKey(blob, &noTag)
		assert.ErrorIs(t, err, ErrValueCorrupted)
	})

	t.Run("corrupted when the ciphertext is tampered", func(t *testing.T) {
		mgr, key := unlockedManager(t)
		defer key.Release()

		blob, metadata, err := mgr.encryptWithSuperKey(key, payload)
		require.NoError(t, err)
		blob[0] ^= 0x01

		before := testutil.ToFloat64(metrics.CorruptionEventsTotal)
		_, err = mgr.UnwrapKey(blob, metadata)
		assert.ErrorIs(t, err, ErrValueCorrupted)
		assert.Equal(t, before+1, testutil.ToFloat64(metrics.CorruptionEventsTotal))
	})

	t.Run("unwrap-if-required passes plain blobs through", func(t *testing.T) {
		mgr, key := unlockedManager(t)
		defer key.Release()

		blob, err := mgr.UnwrapKeyIfRequired(payload, &BlobMetadata{})
		require.NoError(t, err)
		ref, ok := blob.(*Ref)
		require.True(t, ok)
		assert.Equal(t, payload, ref.Key)
	})
}

func TestHandleSuperEncryptionOnKeyInit(t *testing.T) {
	const user = types.UserID(31)
	payload := []byte("new app key")

	t.Run("wraps app keys while unlocked", func(t *testing.T) {
		mgr, _, _ := newTestManager(t)
		state, err := mgr.GetWithPasswordChanged(user, testPassword("secret"))
		require.NoError(t, err)
		key := state.(*LskfUnlocked).SuperKey
		defer key.Release()

		blob, metadata, err := mgr.HandleSuperEncryptionOnKeyInit(user, types.DomainApp, nil, 0, payload)
		require.NoError(t, err)
		assert.True(t, metadata.SuperEncrypted())
		assert.NotEqual(t, payload, blob)

		sensitive, err := mgr.UnwrapKey(blob, metadata)
		require.NoError(t, err)
		assert.Equal(t, payload, sensitive.Key)
		sensitive.Zero()
	})

	t.Run("locked user cannot create protected keys", func(t *testing.T) {
		mgr, _, _ := newTestManager(t)
		state, err := mgr.GetWithPasswordChanged(user, testPassword("secret"))
		require.NoError(t, err)
		state.(*LskfUnlocked).SuperKey.Release()
		mgr.ForgetUser(user)

		_, _, err = mgr.HandleSuperEncryptionOnKeyInit(user, types.DomainApp, nil, 0, payload)
		assert.ErrorIs(t, err, ErrLocked)
	})

	t.Run("uninitialized user reports uninitialized", func(t *testing.T) {
		mgr, _, _ := newTestManager(t)
		_, _, err := mgr.HandleSuperEncryptionOnKeyInit(user, types.DomainApp, nil, 0, payload)
		assert.ErrorIs(t, err, ErrUninitialized)
	})

	t.Run("non-app domains pass through", func(t *testing.T) {
		mgr, _, _ := newTestManager(t)
		blob, metadata, err := mgr.HandleSuperEncryptionOnKeyInit(user, types.DomainSELinux, nil, 0, payload)
		require.NoError(t, err)
		assert.Equal(t, payload, blob)
		assert.False(t, metadata.SuperEncrypted())
	})

	t.Run("policy exemption passes through", func(t *testing.T) {
		db := newFakeDB()
		mgr := NewManager(Config{
			Database:  db,
			Policy:    &fakePolicy{required: false},
			KDFParams: testKDFParams(),
		})
		blob, metadata, err := mgr.HandleSuperEncryptionOnKeyInit(user, types.DomainApp, nil, 0, payload)
		require.NoError(t, err)
		assert.Equal(t, payload, blob)
		assert.False(t, metadata.SuperEncrypted())
	})
}

func TestReencryptOnUpgrade(t *testing.T) {
	const user = types.UserID(32)
	oldPayload := []byte("pre-upgrade key material")
	newPayload := []byte("post-upgrade key material")

	t.Run("upgraded material is wrapped with the old blob's master key", func(t *testing.T) {
		mgr, _, _ := newTestManager(t)
		state, err := mgr.GetWithPasswordChanged(user, testPassword("secret"))
		require.NoError(t, err)
		key := state.(*LskfUnlocked).SuperKey
		defer key.Release()

		blob, metadata, err := mgr.encryptWithSuperKey(key, oldPayload)
		require.NoError(t, err)
		sensitive, err := mgr.UnwrapKey(blob, metadata)
		require.NoError(t, err)

		out, newMetadata, err := mgr.ReencryptOnUpgradeIfRequired(sensitive, newPayload)
		require.NoError(t, err)
		require.NotNil(t, newMetadata)
		assert.Equal(t, key.ID(), newMetadata.EncryptedBy.KeyID)

		wrapped, ok := out.(*NonSensitive)
		require.True(t, ok)

		// Fresh wrap carrying the new material, not the pre-upgrade payload.
		assert.NotEqual(t, metadata.IV, newMetadata.IV)
		roundTrip, err := mgr.UnwrapKey(wrapped.Key, newMetadata)
		require.NoError(t, err)
		assert.Equal(t, newPayload, roundTrip.Key)
		assert.NotEqual(t, oldPayload, roundTrip.Key)
		roundTrip.Zero()
		sensitive.Zero()
	})

	t.Run("non-sensitive blobs pass the upgraded material through", func(t *testing.T) {
		mgr, _, _ := newTestManager(t)

		out, metadata, err := mgr.ReencryptOnUpgradeIfRequired(&Ref{Key: oldPayload}, newPayload)
		require.NoError(t, err)
		assert.Nil(t, metadata)
		ref, ok := out.(*Ref)
		require.True(t, ok)
		assert.Equal(t, newPayload, ref.Key)

		out, metadata, err = mgr.ReencryptOnUpgradeIfRequired(&NonSensitive{Key: oldPayload}, newPayload)
		require.NoError(t, err)
		assert.Nil(t, metadata)
		ref, ok = out.(*Ref)
		require.True(t, ok)
		assert.Equal(t, newPayload, ref.Key)
	})
}
