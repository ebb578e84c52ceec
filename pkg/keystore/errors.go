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

package keystore

import "errors"

var (
	// ErrKeyNotFound is returned when no entry exists for the requested
	// alias.
	ErrKeyNotFound = errors.New("keystore: key not found")

	// ErrKeyExists is returned when creating an entry under an alias that
	// is already taken.
	ErrKeyExists = errors.New("keystore: key already exists")

	// ErrInvalidAlias is returned when an alias is empty or contains path
	// separators.
	ErrInvalidAlias = errors.New("keystore: invalid alias")
)
