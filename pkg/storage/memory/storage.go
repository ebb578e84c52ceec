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

// Package memory provides an in-memory implementation of the storage.Backend
// interface. It uses a map with RWMutex for thread-safe operations and makes
// defensive copies of all byte slices to prevent external modification.
package memory

import (
	"sort"
	"strings"
	"sync"

	"github.com/jeremyhahn/go-credstore/pkg/storage"
)

// Storage is an in-memory implementation of storage.Backend.
// It uses a map to store key-value pairs and is fully thread-safe.
type Storage struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// New creates a new in-memory storage backend.
func New() storage.Backend {
	return &Storage{
		data: make(map[string][]byte),
	}
}

// Get retrieves the value for the given key.
// Returns storage.ErrNotFound if the key does not exist.
// The returned byte slice is a defensive copy and safe to modify.
func (s *Storage) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.ErrClosed
	}

	value, exists := s.data[key]
	if !exists {
		return nil, storage.ErrNotFound
	}

	result := make([]byte, len(value))
	copy(result, value)
	return result, nil
}

// Put stores the value for the given key.
// If the key already exists, it will be overwritten.
// The Options parameter is accepted for interface compatibility.
func (s *Storage) Put(key string, value []byte, opts *storage.Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrClosed
	}

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)
	s.data[key] = valueCopy

	return nil
}

// Delete removes the key and its value from storage.
// Returns storage.ErrNotFound if the key does not exist.
func (s *Storage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrClosed
	}

	if _, exists := s.data[key]; !exists {
		return storage.ErrNotFound
	}

	delete(s.data, key)
	return nil
}

// List returns all keys with the given prefix in sorted order.
// If prefix is empty, all keys are returned.
func (s *Storage) List(prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.ErrClosed
	}

	var keys []string
	for key := range s.data {
		if prefix == "" || strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)
	return keys, nil
}

// Exists checks if a key exists in storage.
func (s *Storage) Exists(key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, storage.ErrClosed
	}

	_, exists := s.data[key]
	return exists, nil
}

// Close marks the backend as closed. After calling Close, all other
// operations return storage.ErrClosed. Multiple calls are safe.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.data = nil

	return nil
}
