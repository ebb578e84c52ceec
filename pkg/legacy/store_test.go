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

package legacy

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/jeremyhahn/go-credstore/pkg/crypto/aead"
	"github.com/jeremyhahn/go-credstore/pkg/metrics"
	"github.com/jeremyhahn/go-credstore/pkg/superkey"
	"github.com/jeremyhahn/go-credstore/pkg/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir(), nil)
}

// writeRawBlob fabricates a non-master v0 blob with the given header flags.
func writeRawBlob(t *testing.T, s *Store, user types.UserID, name string, flags byte) string {
	t.Helper()
	blob := make([]byte, 0, headerSize+chacha20poly1305.Overhead)
	blob = append(blob, magic...)
	blob = append(blob, flags)
	blob = append(blob, make([]byte, saltSize+nonceSize)...)
	blob = append(blob, make([]byte, chacha20poly1305.Overhead)...)

	dir := s.userDir(user)
	require.NoError(t, os.MkdirAll(dir, 0700))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, blob, 0600))
	return path
}

func TestMasterKeyRoundTrip(t *testing.T) {
	const user = types.UserID(3)
	password := []byte("hunter2")
	material := []byte("0123456789abcdef") // v0 16-byte key

	t.Run("write load round-trip", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.WriteMasterKey(user, password, material))

		has, err := s.HasMasterKey(user)
		require.NoError(t, err)
		assert.True(t, has)

		got, err := s.LoadMasterKey(user, password)
		require.NoError(t, err)
		assert.Equal(t, material, got)
	})

	t.Run("missing file loads as nil", func(t *testing.T) {
		s := newTestStore(t)
		got, err := s.LoadMasterKey(user, password)
		require.NoError(t, err)
		assert.Nil(t, got)

		has, err := s.HasMasterKey(user)
		require.NoError(t, err)
		assert.False(t, has)
	})

	t.Run("wrong password fails authentication", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.WriteMasterKey(user, password, material))

		_, err := s.LoadMasterKey(user, []byte("wrong"))
		assert.ErrorIs(t, err, aead.ErrAuthenticationFailed)
	})

	t.Run("corrupt blob is rejected", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, os.MkdirAll(s.userDir(user), 0700))
		require.NoError(t, os.WriteFile(s.masterKeyPath(user), []byte("not a blob"), 0600))

		_, err := s.LoadMasterKey(user, password)
		assert.ErrorIs(t, err, ErrCorruptBlob)
	})
}

func TestTryMigrateMasterKey(t *testing.T) {
	const user = types.UserID(3)
	password := []byte("hunter2")
	material := []byte("0123456789abcdef")

	noEntry := func() (*superkey.KeyEntry, error) { return nil, nil }

	t.Run("prefers the database entry", func(t *testing.T) {
		s := newTestStore(t)
		want := &superkey.KeyEntry{ID: 9}
		got, err := s.TryMigrateMasterKey(user, password, func() (*superkey.KeyEntry, error) {
			return want, nil
		})
		require.NoError(t, err)
		assert.Same(t, want, got)
	})

	t.Run("nothing anywhere yields nil", func(t *testing.T) {
		s := newTestStore(t)
		got, err := s.TryMigrateMasterKey(user, password, noEntry)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("migrates and removes the v0 file", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.WriteMasterKey(user, password, material))

		var importedMaterial []byte
		s.SetImporter(func(u types.UserID, m, pw []byte) (*superkey.KeyEntry, error) {
			assert.Equal(t, user, u)
			assert.Equal(t, password, pw)
			importedMaterial = append([]byte(nil), m...)
			return &superkey.KeyEntry{ID: 11}, nil
		})

		before := testutil.ToFloat64(metrics.LegacyMigrationsTotal)
		entry, err := s.TryMigrateMasterKey(user, password, noEntry)
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, int64(11), entry.ID)
		assert.Equal(t, material, importedMaterial)
		assert.Equal(t, before+1, testutil.ToFloat64(metrics.LegacyMigrationsTotal))

		has, err := s.HasMasterKey(user)
		require.NoError(t, err)
		assert.False(t, has)
	})

	t.Run("migration without importer fails", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.WriteMasterKey(user, password, material))

		_, err := s.TryMigrateMasterKey(user, password, noEntry)
		assert.ErrorIs(t, err, ErrImporterNotConfigured)
	})
}

func TestBulkDeleteUser(t *testing.T) {
	const user = types.UserID(3)
	password := []byte("hunter2")

	t.Run("full delete removes all blobs", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.WriteMasterKey(user, password, []byte("0123456789abcdef")))
		plain := writeRawBlob(t, s, user, "plain.blob", 0)
		wrapped := writeRawBlob(t, s, user, "wrapped.blob", flagSuperEncrypted)

		require.NoError(t, s.BulkDeleteUser(user, false))
		assert.NoFileExists(t, plain)
		assert.NoFileExists(t, wrapped)

		has, err := s.HasMasterKey(user)
		require.NoError(t, err)
		assert.False(t, has)
	})

	t.Run("keep flag preserves plain blobs", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.WriteMasterKey(user, password, []byte("0123456789abcdef")))
		plain := writeRawBlob(t, s, user, "plain.blob", 0)
		wrapped := writeRawBlob(t, s, user, "wrapped.blob", flagSuperEncrypted)

		require.NoError(t, s.BulkDeleteUser(user, true))
		assert.FileExists(t, plain)
		assert.NoFileExists(t, wrapped)

		has, err := s.HasMasterKey(user)
		require.NoError(t, err)
		assert.False(t, has)
	})

	t.Run("unknown user is a no-op", func(t *testing.T) {
		s := newTestStore(t)
		assert.NoError(t, s.BulkDeleteUser(types.UserID(404), false))
	})
}
