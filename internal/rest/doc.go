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

// Package rest exposes the per-user unlock state machine over HTTP.
//
// The API is a thin translation layer: it parses requests, hands them to
// superkey.Manager and maps the manager's error taxonomy onto status codes.
// A locked user is 423, an uninitialized user is 409, a wrong lock-screen
// secret is 403 and corrupted wrap metadata is 500.
package rest
