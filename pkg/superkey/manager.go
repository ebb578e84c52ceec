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
	"sync"

	"github.com/jeremyhahn/go-credstore/pkg/adapters/kdf"
	"github.com/jeremyhahn/go-credstore/pkg/adapters/logger"
	"github.com/jeremyhahn/go-credstore/pkg/types"
)

// userSlots holds the cached master keys of one user. Two independent slots:
// the per-boot key lives until restart or explicit forget, the screen-lock
// key is dropped eagerly when the device locks.
type userSlots struct {
	perBoot    *SuperKey
	screenLock *SuperKey
}

func (s *userSlots) empty() bool {
	return s.perBoot == nil && s.screenLock == nil
}

// Config carries the dependencies of a Manager.
type Config struct {
	Database  Database
	Legacy    LegacyMigrator
	Policy    PolicyChecker
	Logger    logger.Logger
	KDF       kdf.KDFAdapter
	KDFParams *kdf.KDFParams
}

// Manager is the in-memory cache of unlocked master keys. One mutex guards
// both the per-user slots and the secondary id index so that the two are
// always mutually consistent to readers. No I/O and no cryptography happens
// while the cache mutex is held.
type Manager struct {
	mu       sync.Mutex
	users    map[types.UserID]*userSlots
	keyIndex map[int64]weakKeyRef

	// userLocks serializes the unlock and initialize flows per user so two
	// concurrent callers cannot both generate a master key for the same
	// user. Held across I/O, never while mu is held.
	userLocksMu sync.Mutex
	userLocks   map[types.UserID]*sync.Mutex

	db     Database
	legacy LegacyMigrator
	policy PolicyChecker
	log    logger.Logger

	kdf       kdf.KDFAdapter
	kdfParams kdf.KDFParams
}

// NewManager creates a Manager with the given dependencies. Logger and KDF
// default to the slog adapter and PBKDF2 with default parameters.
func NewManager(cfg Config) *Manager {
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}
	adapter := cfg.KDF
	params := cfg.KDFParams
	if adapter == nil {
		adapter = kdf.ForAlgorithm(kdf.AlgorithmPBKDF2)
	}
	if params == nil {
		params = kdf.DefaultParams(adapter.Algorithm())
	}
	return &Manager{
		users:     make(map[types.UserID]*userSlots),
		keyIndex:  make(map[int64]weakKeyRef),
		userLocks: make(map[types.UserID]*sync.Mutex),
		db:        cfg.Database,
		legacy:    cfg.Legacy,
		policy:    cfg.Policy,
		log:       log,
		kdf:       adapter,
		kdfParams: *params,
	}
}

// lockUser acquires the per-user flow lock and returns its release func.
func (m *Manager) lockUser(user types.UserID) func() {
	m.userLocksMu.Lock()
	lock, ok := m.userLocks[user]
	if !ok {
		lock = &sync.Mutex{}
		m.userLocks[user] = lock
	}
	m.userLocksMu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// slots returns the user's slot record, creating it if needed.
// Caller must hold m.mu.
func (m *Manager) slots(user types.UserID) *userSlots {
	s, ok := m.users[user]
	if !ok {
		s = &userSlots{}
		m.users[user] = s
	}
	return s
}

// InstallPerBootKey caches the user's per-boot master key and registers it
// in the id index. The Manager takes ownership of one reference. Installing
// the same key again is a no-op; installing a different key while one is
// cached returns ErrAlreadyUnlocked and leaves the incoming handle with the
// caller.
func (m *Manager) InstallPerBootKey(user types.UserID, key *SuperKey) error {
	m.mu.Lock()
	s := m.slots(user)
	if s.perBoot != nil {
		sameID := s.perBoot.ID() == key.ID()
		m.mu.Unlock()
		if sameID {
			key.Release()
			return nil
		}
		return ErrAlreadyUnlocked
	}
	s.perBoot = key
	m.keyIndex[key.ID()] = key.weakRef()
	m.mu.Unlock()

	m.log.Debug("per-boot key installed", logger.Uint32("user", uint32(user)), logger.Int64("key_id", key.ID()))
	return nil
}

// GetPerBootKey returns a retained handle to the user's per-boot key, or nil
// when none is cached. The caller must Release the handle.
func (m *Manager) GetPerBootKey(user types.UserID) *SuperKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.users[user]; ok && s.perBoot != nil {
		return s.perBoot.Retain()
	}
	return nil
}

// InstallScreenLockKey caches the user's screen-lock key, replacing any
// previous one. The Manager takes ownership of one reference.
func (m *Manager) InstallScreenLockKey(user types.UserID, key *SuperKey) {
	m.mu.Lock()
	s := m.slots(user)
	old := s.screenLock
	s.screenLock = key
	m.keyIndex[key.ID()] = key.weakRef()
	m.mu.Unlock()

	if old != nil {
		old.Release()
	}
	m.log.Debug("screen-lock key installed", logger.Uint32("user", uint32(user)), logger.Int64("key_id", key.ID()))
}

// GetScreenLockKey returns a retained handle to the user's screen-lock key,
// or nil when none is cached. The caller must Release the handle.
func (m *Manager) GetScreenLockKey(user types.UserID) *SuperKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.users[user]; ok && s.screenLock != nil {
		return s.screenLock.Retain()
	}
	return nil
}

// ResolveByID looks up a cached master key by its persistent id via the
// secondary index. Returns a retained handle, or nil when the id is unknown
// or the key has already been dropped. The caller must Release the handle.
func (m *Manager) ResolveByID(id int64) *SuperKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref, ok := m.keyIndex[id]
	if !ok {
		return nil
	}
	key, ok := ref.upgrade()
	if !ok {
		delete(m.keyIndex, id)
		return nil
	}
	return key
}

// ForgetScreenLockKey drops the user's screen-lock key. Called on device
// lock. The per-boot key is unaffected.
func (m *Manager) ForgetScreenLockKey(user types.UserID) {
	m.mu.Lock()
	var old *SuperKey
	if s, ok := m.users[user]; ok {
		old = s.screenLock
		s.screenLock = nil
	}
	m.sweepIndex()
	m.mu.Unlock()

	if old != nil {
		old.Release()
		m.log.Debug("screen-lock key forgotten", logger.Uint32("user", uint32(user)))
	}
}

// ForgetScreenLockKeys drops every user's screen-lock key. Called on global
// device lock.
func (m *Manager) ForgetScreenLockKeys() {
	m.mu.Lock()
	var dropped []*SuperKey
	for _, s := range m.users {
		if s.screenLock != nil {
			dropped = append(dropped, s.screenLock)
			s.screenLock = nil
		}
	}
	m.sweepIndex()
	m.mu.Unlock()

	for _, key := range dropped {
		key.Release()
	}
}

// ForgetUser drops all cached keys for the user and removes their dead index
// entries. Subsequent ResolveByID calls for those ids miss.
func (m *Manager) ForgetUser(user types.UserID) {
	m.mu.Lock()
	var dropped []*SuperKey
	if s, ok := m.users[user]; ok {
		if s.perBoot != nil {
			dropped = append(dropped, s.perBoot)
		}
		if s.screenLock != nil {
			dropped = append(dropped, s.screenLock)
		}
		delete(m.users, user)
	}
	m.mu.Unlock()

	for _, key := range dropped {
		key.Release()
	}

	m.mu.Lock()
	m.sweepIndex()
	m.mu.Unlock()

	m.log.Debug("cached keys forgotten", logger.Uint32("user", uint32(user)))
}

// ForgetAll drops every cached key. Used on shutdown.
func (m *Manager) ForgetAll() {
	m.mu.Lock()
	var dropped []*SuperKey
	for _, s := range m.users {
		if s.perBoot != nil {
			dropped = append(dropped, s.perBoot)
		}
		if s.screenLock != nil {
			dropped = append(dropped, s.screenLock)
		}
	}
	m.users = make(map[types.UserID]*userSlots)
	m.mu.Unlock()

	for _, key := range dropped {
		key.Release()
	}

	m.mu.Lock()
	m.keyIndex = make(map[int64]weakKeyRef)
	m.mu.Unlock()
}

// CachedUserCount reports how many users currently have at least one cached
// key. Exposed for metrics.
func (m *Manager) CachedUserCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.users {
		if !s.empty() {
			n++
		}
	}
	return n
}

// sweepIndex removes index entries whose material has been dropped.
// Caller must hold m.mu.
func (m *Manager) sweepIndex() {
	for id, ref := range m.keyIndex {
		if ref.dead() {
			delete(m.keyIndex, id)
		}
	}
}
