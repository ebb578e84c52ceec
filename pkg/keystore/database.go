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

// Package keystore persists key entries over a storage.Backend. Each entry
// is a JSON record of the wrapped blob and its wrap metadata, keyed by
// users/<uid>/super for master keys and users/<uid>/keys/<alias> for
// ordinary keys. Ids come from a persisted monotonic counter so they stay
// stable across restarts.
package keystore

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/jeremyhahn/go-credstore/pkg/adapters/logger"
	"github.com/jeremyhahn/go-credstore/pkg/storage"
	"github.com/jeremyhahn/go-credstore/pkg/superkey"
	"github.com/jeremyhahn/go-credstore/pkg/types"
)

const (
	userPrefix = "users/"
	masterName = "super"
	nextIDKey  = "meta/next_id"
)

// record is the persisted form of a key entry.
type record struct {
	ID       int64                  `json:"id"`
	Blob     []byte                 `json:"blob"`
	Metadata *superkey.BlobMetadata `json:"metadata,omitempty"`
}

// Database is a superkey.Database over a storage.Backend. All operations
// are serialized by one mutex; the backend below is itself thread-safe but
// the id counter and get-or-create need atomicity across calls.
type Database struct {
	mu      sync.Mutex
	backend storage.Backend
	log     logger.Logger
}

// compile-time check
var _ superkey.Database = (*Database)(nil)

// New creates a Database over the given backend.
func New(backend storage.Backend, log logger.Logger) *Database {
	if log == nil {
		log = logger.Default()
	}
	return &Database{backend: backend, log: log}
}

func masterKeyPath(user types.UserID) string {
	return fmt.Sprintf("%s%d/%s", userPrefix, user, masterName)
}

func keyPath(user types.UserID, alias string) string {
	return fmt.Sprintf("%s%d/keys/%s", userPrefix, user, alias)
}

func keysPrefix(user types.UserID) string {
	return fmt.Sprintf("%s%d/keys/", userPrefix, user)
}

func validateAlias(alias string) error {
	if alias == "" || strings.ContainsAny(alias, "/\\") {
		return fmt.Errorf("%w: %q", ErrInvalidAlias, alias)
	}
	return nil
}

// nextID allocates the next persistent id. Caller must hold d.mu.
func (d *Database) nextID() (int64, error) {
	id := int64(1)
	raw, err := d.backend.Get(nextIDKey)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return 0, fmt.Errorf("keystore: failed to read id counter: %w", err)
	}
	if raw != nil {
		id, err = strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("keystore: corrupt id counter %q: %w", raw, err)
		}
	}
	next := []byte(strconv.FormatInt(id+1, 10))
	if err := d.backend.Put(nextIDKey, next, storage.DefaultOptions()); err != nil {
		return 0, fmt.Errorf("keystore: failed to advance id counter: %w", err)
	}
	return id, nil
}

// load reads and decodes the record at path. Returns (nil, nil) when absent.
func (d *Database) load(path string) (*record, error) {
	raw, err := d.backend.Get(path)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("keystore: failed to read %s: %w", path, err)
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("keystore: corrupt record at %s: %w", path, err)
	}
	return &rec, nil
}

func (d *Database) store(path string, rec *record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("keystore: failed to encode record: %w", err)
	}
	if err := d.backend.Put(path, raw, storage.DefaultOptions()); err != nil {
		return fmt.Errorf("keystore: failed to write %s: %w", path, err)
	}
	return nil
}

func entryFromRecord(rec *record) *superkey.KeyEntry {
	return &superkey.KeyEntry{ID: rec.ID, Blob: rec.Blob, Metadata: rec.Metadata}
}

// GetOrCreateMasterKeyEntry loads the user's master key entry, creating it
// from the factory's output when none exists. Load-or-create is atomic with
// respect to other Database calls.
func (d *Database) GetOrCreateMasterKeyEntry(user types.UserID, factory func() ([]byte, *superkey.BlobMetadata, error)) (*superkey.KeyEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, err := d.load(masterKeyPath(user))
	if err != nil {
		return nil, err
	}
	if rec != nil {
		return entryFromRecord(rec), nil
	}

	blob, metadata, err := factory()
	if err != nil {
		return nil, err
	}
	return d.storeMasterKeyLocked(user, blob, metadata)
}

// LoadMasterKeyEntry loads the user's master key entry, (nil, nil) when the
// user has none.
func (d *Database) LoadMasterKeyEntry(user types.UserID) (*superkey.KeyEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, err := d.load(masterKeyPath(user))
	if err != nil || rec == nil {
		return nil, err
	}
	return entryFromRecord(rec), nil
}

// StoreMasterKeyEntry persists a wrapped master key and returns the entry
// with its assigned id. An existing master key is never overwritten.
func (d *Database) StoreMasterKeyEntry(user types.UserID, blob []byte, metadata *superkey.BlobMetadata) (*superkey.KeyEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	existing, err := d.load(masterKeyPath(user))
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: master key for user %d", ErrKeyExists, user)
	}
	return d.storeMasterKeyLocked(user, blob, metadata)
}

func (d *Database) storeMasterKeyLocked(user types.UserID, blob []byte, metadata *superkey.BlobMetadata) (*superkey.KeyEntry, error) {
	id, err := d.nextID()
	if err != nil {
		return nil, err
	}
	rec := &record{ID: id, Blob: blob, Metadata: metadata}
	if err := d.store(masterKeyPath(user), rec); err != nil {
		return nil, err
	}
	d.log.Debug("master key stored",
		logger.Uint32("user", uint32(user)), logger.Int64("key_id", id))
	return entryFromRecord(rec), nil
}

// MasterKeyExists reports whether a master key is persisted for the user.
func (d *Database) MasterKeyExists(user types.UserID) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	exists, err := d.backend.Exists(masterKeyPath(user))
	if err != nil {
		return false, fmt.Errorf("keystore: existence check failed: %w", err)
	}
	return exists, nil
}

// UnbindKeysForUser deletes the user's master key and key entries. With
// keepNonSuperEncrypted set, entries whose metadata does not name a
// master-key wrap survive.
func (d *Database) UnbindKeysForUser(user types.UserID, keepNonSuperEncrypted bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	paths, err := d.backend.List(keysPrefix(user))
	if err != nil {
		return fmt.Errorf("keystore: failed to list keys for user %d: %w", user, err)
	}
	for _, path := range paths {
		if keepNonSuperEncrypted {
			rec, err := d.load(path)
			if err != nil {
				return err
			}
			if rec != nil && !rec.Metadata.SuperEncrypted() {
				continue
			}
		}
		if err := d.backend.Delete(path); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("keystore: failed to delete %s: %w", path, err)
		}
	}

	if err := d.backend.Delete(masterKeyPath(user)); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("keystore: failed to delete master key for user %d: %w", user, err)
	}
	d.log.Info("keys unbound",
		logger.Uint32("user", uint32(user)), logger.Bool("keep_non_super_encrypted", keepNonSuperEncrypted))
	return nil
}

// CreateKey persists an ordinary key entry under the alias. Fails with
// ErrKeyExists when the alias is taken.
func (d *Database) CreateKey(user types.UserID, alias string, blob []byte, metadata *superkey.BlobMetadata) (*superkey.KeyEntry, error) {
	if err := validateAlias(alias); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	path := keyPath(user, alias)
	existing, err := d.load(path)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrKeyExists, alias)
	}

	id, err := d.nextID()
	if err != nil {
		return nil, err
	}
	rec := &record{ID: id, Blob: blob, Metadata: metadata}
	if err := d.store(path, rec); err != nil {
		return nil, err
	}
	return entryFromRecord(rec), nil
}

// GetKey loads an ordinary key entry by alias.
func (d *Database) GetKey(user types.UserID, alias string) (*superkey.KeyEntry, error) {
	if err := validateAlias(alias); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, err := d.load(keyPath(user, alias))
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, alias)
	}
	return entryFromRecord(rec), nil
}

// UpdateKey replaces an existing entry's blob and metadata, keeping its id.
// Used after upgrade re-encryption.
func (d *Database) UpdateKey(user types.UserID, alias string, blob []byte, metadata *superkey.BlobMetadata) (*superkey.KeyEntry, error) {
	if err := validateAlias(alias); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	path := keyPath(user, alias)
	rec, err := d.load(path)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, alias)
	}
	rec.Blob = blob
	if metadata != nil {
		rec.Metadata = metadata
	}
	if err := d.store(path, rec); err != nil {
		return nil, err
	}
	return entryFromRecord(rec), nil
}

// DeleteKey removes an ordinary key entry.
func (d *Database) DeleteKey(user types.UserID, alias string) error {
	if err := validateAlias(alias); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	err := d.backend.Delete(keyPath(user, alias))
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, alias)
	}
	if err != nil {
		return fmt.Errorf("keystore: failed to delete %s: %w", alias, err)
	}
	return nil
}

// ListKeys returns the user's key aliases in backend order.
func (d *Database) ListKeys(user types.UserID) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	prefix := keysPrefix(user)
	paths, err := d.backend.List(prefix)
	if err != nil {
		return nil, fmt.Errorf("keystore: failed to list keys for user %d: %w", user, err)
	}
	aliases := make([]string, 0, len(paths))
	for _, path := range paths {
		aliases = append(aliases, strings.TrimPrefix(path, prefix))
	}
	return aliases, nil
}

// Close releases the underlying backend.
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.backend.Close()
}
