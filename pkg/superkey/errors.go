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

import "errors"

var (
	// ErrLocked indicates the required master key is not memory resident.
	// The user has provisioned an LSKF but has not unlocked since the last
	// restart. Routine, not an integrity problem; callers should prompt
	// for an unlock.
	ErrLocked = errors.New("superkey: locked")

	// ErrUninitialized indicates no LSKF has ever been provisioned for the
	// user. Distinct from ErrLocked so callers can prompt provisioning
	// instead of an unlock.
	ErrUninitialized = errors.New("superkey: uninitialized")

	// ErrValueCorrupted indicates wrap metadata is incomplete or
	// inconsistent, or an authenticated decryption failed outside an
	// unlock attempt. Fatal to the operation; never retried.
	ErrValueCorrupted = errors.New("superkey: value corrupted")

	// ErrAlreadyUnlocked indicates an attempt to replace an installed
	// per-boot key with a different one. Re-provisioning requires an
	// explicit reset.
	ErrAlreadyUnlocked = errors.New("superkey: per-boot key already installed")

	// ErrKeyReleased indicates use of a SuperKey handle after it was
	// released.
	ErrKeyReleased = errors.New("superkey: key released")
)
