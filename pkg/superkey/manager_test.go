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

	"github.com/jeremyhahn/go-credstore/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerPerBootSlot(t *testing.T) {
	const user = types.UserID(10)

	t.Run("install and lookup", func(t *testing.T) {
		mgr, _, _ := newTestManager(t)
		require.NoError(t, mgr.InstallPerBootKey(user, NewSuperKey(testMaterial(32), 1)))

		got := mgr.GetPerBootKey(user)
		require.NotNil(t, got)
		defer got.Release()
		assert.Equal(t, int64(1), got.ID())
		assert.Equal(t, testMaterial(32), got.Bytes())

		assert.Nil(t, mgr.GetPerBootKey(types.UserID(99)))
	})

	t.Run("repeated lookups return the same key", func(t *testing.T) {
		mgr, _, _ := newTestManager(t)
		require.NoError(t, mgr.InstallPerBootKey(user, NewSuperKey(testMaterial(32), 1)))

		a := mgr.GetPerBootKey(user)
		b := mgr.GetPerBootKey(user)
		require.NotNil(t, a)
		require.NotNil(t, b)
		defer a.Release()
		defer b.Release()
		assert.Equal(t, a.ID(), b.ID())
		assert.Equal(t, a.Bytes(), b.Bytes())
	})

	t.Run("reinstalling the same key is a no-op", func(t *testing.T) {
		mgr, _, _ := newTestManager(t)
		key := NewSuperKey(testMaterial(32), 1)
		dup := key.Retain()
		require.NoError(t, mgr.InstallPerBootKey(user, key))
		require.NoError(t, mgr.InstallPerBootKey(user, dup))

		got := mgr.GetPerBootKey(user)
		require.NotNil(t, got)
		got.Release()
	})

	t.Run("installing a different key fails", func(t *testing.T) {
		mgr, _, _ := newTestManager(t)
		require.NoError(t, mgr.InstallPerBootKey(user, NewSuperKey(testMaterial(32), 1)))

		other := NewSuperKey(testMaterial(32), 2)
		defer other.Release()
		assert.ErrorIs(t, mgr.InstallPerBootKey(user, other), ErrAlreadyUnlocked)

		got := mgr.GetPerBootKey(user)
		require.NotNil(t, got)
		defer got.Release()
		assert.Equal(t, int64(1), got.ID())
	})
}

func TestManagerScreenLockSlot(t *testing.T) {
	const user = types.UserID(10)

	t.Run("install replaces previous key", func(t *testing.T) {
		mgr, _, _ := newTestManager(t)
		mgr.InstallScreenLockKey(user, NewSuperKey(testMaterial(32), 1))
		mgr.InstallScreenLockKey(user, NewSuperKey(testMaterial(32), 2))

		got := mgr.GetScreenLockKey(user)
		require.NotNil(t, got)
		defer got.Release()
		assert.Equal(t, int64(2), got.ID())
	})

	t.Run("forget drops only the screen-lock key", func(t *testing.T) {
		mgr, _, _ := newTestManager(t)
		require.NoError(t, mgr.InstallPerBootKey(user, NewSuperKey(testMaterial(32), 1)))
		mgr.InstallScreenLockKey(user, NewSuperKey(testMaterial(32), 2))

		mgr.ForgetScreenLockKey(user)
		assert.Nil(t, mgr.GetScreenLockKey(user))

		perBoot := mgr.GetPerBootKey(user)
		require.NotNil(t, perBoot)
		perBoot.Release()
	})

	t.Run("global forget drops every user's screen-lock key", func(t *testing.T) {
		mgr, _, _ := newTestManager(t)
		mgr.InstallScreenLockKey(types.UserID(1), NewSuperKey(testMaterial(32), 1))
		mgr.InstallScreenLockKey(types.UserID(2), NewSuperKey(testMaterial(32), 2))

		mgr.ForgetScreenLockKeys()
		assert.Nil(t, mgr.GetScreenLockKey(types.UserID(1)))
		assert.Nil(t, mgr.GetScreenLockKey(types.UserID(2)))
	})
}

func TestManagerKeyIndex(t *testing.T) {
	const user = types.UserID(10)

	t.Run("resolves cached keys by id", func(t *testing.T) {
		mgr, _, _ := newTestManager(t)
		require.NoError(t, mgr.InstallPerBootKey(user, NewSuperKey(testMaterial(32), 42)))

		got := mgr.ResolveByID(42)
		require.NotNil(t, got)
		defer got.Release()
		assert.Equal(t, testMaterial(32), got.Bytes())

		assert.Nil(t, mgr.ResolveByID(43))
	})

	t.Run("forgetting a user clears their index entries", func(t *testing.T) {
		mgr, _, _ := newTestManager(t)
		require.NoError(t, mgr.InstallPerBootKey(user, NewSuperKey(testMaterial(32), 42)))
		mgr.InstallScreenLockKey(user, NewSuperKey(testMaterial(32), 43))

		mgr.ForgetUser(user)
		assert.Nil(t, mgr.ResolveByID(42))
		assert.Nil(t, mgr.ResolveByID(43))
		assert.Nil(t, mgr.GetPerBootKey(user))
	})

	t.Run("forget all clears everything", func(t *testing.T) {
		mgr, _, _ := newTestManager(t)
		require.NoError(t, mgr.InstallPerBootKey(types.UserID(1), NewSuperKey(testMaterial(32), 1)))
		require.NoError(t, mgr.InstallPerBootKey(types.UserID(2), NewSuperKey(testMaterial(32), 2)))
		assert.Equal(t, 2, mgr.CachedUserCount())

		mgr.ForgetAll()
		assert.Equal(t, 0, mgr.CachedUserCount())
		assert.Nil(t, mgr.ResolveByID(1))
		assert.Nil(t, mgr.ResolveByID(2))
	})

	t.Run("index entry for a dropped key misses", func(t *testing.T) {
		mgr, _, _ := newTestManager(t)
		mgr.InstallScreenLockKey(user, NewSuperKey(testMaterial(32), 7))

		// Replacing the screen-lock key drops the old key's material but
		// leaves its index entry until the next sweep; resolution must
		// still miss.
		mgr.InstallScreenLockKey(user, NewSuperKey(testMaterial(32), 8))
		assert.Nil(t, mgr.ResolveByID(7))

		got := mgr.ResolveByID(8)
		require.NotNil(t, got)
		got.Release()
	})
}
