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

// Package legacy reads the v0 flat-file blob store and migrates its master
// keys into the key database.
//
// v0 blob layout, one file per blob under <dir>/user_<uid>/:
//
//	magic   4 bytes  "LKB0"
//	flags   1 byte   bit 0 set when the blob is wrapped by the master key
//	salt    16 bytes scrypt salt (master key files only, zero otherwise)
//	nonce   24 bytes XChaCha20-Poly1305 nonce
//	sealed  rest     ciphertext with appended 16-byte tag
//
// Master keys are wrapped with a key derived from the lock-screen secret via
// scrypt (N=32768, r=8, p=1). v0 master keys may be 16 bytes; migration
// preserves the length.
package legacy

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"github.com/jeremyhahn/go-credstore/pkg/adapters/logger"
	"github.com/jeremyhahn/go-credstore/pkg/crypto/aead"
	"github.com/jeremyhahn/go-credstore/pkg/crypto/zeroize"
	"github.com/jeremyhahn/go-credstore/pkg/metrics"
	"github.com/jeremyhahn/go-credstore/pkg/superkey"
	"github.com/jeremyhahn/go-credstore/pkg/types"
)

const (
	masterKeyFile = "masterkey"

	flagSuperEncrypted = 0x01

	scryptN = 32768
	scryptR = 8
	scryptP = 1

	saltSize  = 16
	nonceSize = chacha20poly1305.NonceSizeX
)

var magic = []byte("LKB0")

var headerSize = len(magic) + 1 + saltSize + nonceSize

var (
	// ErrCorruptBlob indicates a v0 file that does not parse.
	ErrCorruptBlob = errors.New("legacy: corrupt blob")

	// ErrImporterNotConfigured indicates a migration was needed but no
	// importer was wired in.
	ErrImporterNotConfigured = errors.New("legacy: importer not configured")
)

// ImportFunc wraps recovered master key material under the user's secret and
// persists it in the key database. Wired to superkey.Manager.ImportMasterKey.
type ImportFunc func(user types.UserID, material, password []byte) (*superkey.KeyEntry, error)

// Store reads and deletes v0 blobs under a base directory.
type Store struct {
	mu       sync.Mutex
	dir      string
	log      logger.Logger
	importFn ImportFunc
}

// compile-time check
var _ superkey.LegacyMigrator = (*Store)(nil)

// NewStore creates a Store rooted at dir. The directory may not exist; a
// missing directory reads as an empty store.
func NewStore(dir string, log logger.Logger) *Store {
	if log == nil {
		log = logger.Default()
	}
	return &Store{dir: dir, log: log}
}

// SetImporter wires the migration target. Must be called before
// TryMigrateMasterKey can migrate.
func (s *Store) SetImporter(fn ImportFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.importFn = fn
}

func (s *Store) userDir(user types.UserID) string {
	return filepath.Join(s.dir, fmt.Sprintf("user_%d", user))
}

func (s *Store) masterKeyPath(user types.UserID) string {
	return filepath.Join(s.userDir(user), masterKeyFile)
}

// HasMasterKey reports whether a v0 master key file exists for the user.
func (s *Store) HasMasterKey(user types.UserID) (bool, error) {
	_, err := os.Stat(s.masterKeyPath(user))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("legacy: stat failed: %w", err)
}

// LoadMasterKey decrypts the user's v0 master key with the lock-screen
// secret. Returns (nil, nil) when no file exists; a wrong secret surfaces as
// aead.ErrAuthenticationFailed. The caller must zeroize the returned key.
func (s *Store) LoadMasterKey(user types.UserID, password []byte) ([]byte, error) {
	raw, err := os.ReadFile(s.masterKeyPath(user))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("legacy: read failed: %w", err)
	}

	_, salt, nonce, sealed, err := parseBlob(raw)
	if err != nil {
		return nil, err
	}

	wrapKey, err := scrypt.Key(password, salt, scryptN, scryptR, scryptP, chacha20poly1305.KeySize)
	if err != nil {
		return nil, fmt.Errorf("legacy: key derivation failed: %w", err)
	}
	defer zeroize.Bytes(wrapKey)

	cipher, err := chacha20poly1305.NewX(wrapKey)
	if err != nil {
		return nil, fmt.Errorf("legacy: cipher init failed: %w", err)
	}
	material, err := cipher.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, aead.ErrAuthenticationFailed
	}
	return material, nil
}

// WriteMasterKey wraps material under the lock-screen secret and writes a
// v0 master key file. Exists for the v0 writer's sake: tests and tooling
// fabricate legacy stores through it.
func (s *Store) WriteMasterKey(user types.UserID, password, material []byte) error {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("legacy: failed to generate salt: %w", err)
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("legacy: failed to generate nonce: %w", err)
	}

	wrapKey, err := scrypt.Key(password, salt, scryptN, scryptR, scryptP, chacha20poly1305.KeySize)
	if err != nil {
		return fmt.Errorf("legacy: key derivation failed: %w", err)
	}
	defer zeroize.Bytes(wrapKey)

	cipher, err := chacha20poly1305.NewX(wrapKey)
	if err != nil {
		return fmt.Errorf("legacy: cipher init failed: %w", err)
	}
	sealed := cipher.Seal(nil, nonce, material, nil)

	blob := make([]byte, 0, headerSize+len(sealed))
	blob = append(blob, magic...)
	blob = append(blob, 0)
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = append(blob, sealed...)

	if err := os.MkdirAll(s.userDir(user), 0700); err != nil {
		return fmt.Errorf("legacy: mkdir failed: %w", err)
	}
	if err := os.WriteFile(s.masterKeyPath(user), blob, 0600); err != nil {
		return fmt.Errorf("legacy: write failed: %w", err)
	}
	return nil
}

// TryMigrateMasterKey returns the database entry from load, migrating the
// user's v0 master key into the database first when load finds nothing and a
// v0 file exists. The v0 file is removed after a successful migration.
// Returns (nil, nil) when neither store has a master key.
func (s *Store) TryMigrateMasterKey(user types.UserID, password []byte, load func() (*superkey.KeyEntry, error)) (*superkey.KeyEntry, error) {
	entry, err := load()
	if err != nil {
		return nil, err
	}
	if entry != nil {
		return entry, nil
	}

	material, err := s.LoadMasterKey(user, password)
	if err != nil || material == nil {
		return nil, err
	}
	defer zeroize.Bytes(material)

	s.mu.Lock()
	importFn := s.importFn
	s.mu.Unlock()
	if importFn == nil {
		return nil, ErrImporterNotConfigured
	}

	entry, err = importFn(user, material, password)
	if err != nil {
		return nil, fmt.Errorf("legacy: migration failed: %w", err)
	}
	if err := os.Remove(s.masterKeyPath(user)); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("legacy: failed to remove migrated blob: %w", err)
	}
	metrics.RecordLegacyMigration()
	s.log.Info("migrated legacy master key",
		logger.Uint32("user", uint32(user)), logger.Int64("key_id", entry.ID))
	return entry, nil
}

// BulkDeleteUser removes the user's v0 blobs. With keepNonSuperEncrypted
// set, blobs whose header lacks the super-encrypted flag survive; the master
// key file is always removed.
func (s *Store) BulkDeleteUser(user types.UserID, keepNonSuperEncrypted bool) error {
	dir := s.userDir(user)
	names, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("legacy: read dir failed: %w", err)
	}

	for _, name := range names {
		if name.IsDir() {
			continue
		}
		path := filepath.Join(dir, name.Name())
		if keepNonSuperEncrypted && name.Name() != masterKeyFile {
			keep, err := s.blobIsPlain(path)
			if err != nil {
				return err
			}
			if keep {
				continue
			}
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("legacy: delete failed: %w", err)
		}
	}

	// Remove the directory once empty; leftovers are fine.
	_ = os.Remove(dir)
	return nil
}

// blobIsPlain reports whether the blob at path lacks the super-encrypted
// header flag.
func (s *Store) blobIsPlain(path string) (bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("legacy: read failed: %w", err)
	}
	flags, _, _, _, err := parseBlob(raw)
	if err != nil {
		return false, err
	}
	return flags&flagSuperEncrypted == 0, nil
}

// parseBlob splits a v0 blob into its header fields and sealed payload.
func parseBlob(raw []byte) (flags byte, salt, nonce, sealed []byte, err error) {
	if len(raw) < headerSize+chacha20poly1305.Overhead || !bytes.Equal(raw[:len(magic)], magic) {
		return 0, nil, nil, nil, ErrCorruptBlob
	}
	off := len(magic)
	flags = raw[off]
	off++
	salt = raw[off : off+saltSize]
	off += saltSize
	nonce = raw[off : off+nonceSize]
	off += nonceSize
	return flags, salt, nonce, raw[off:], nil
}
