// OCWarden - OpenConnect VPN Administration and Quota Enforcement
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ocwarden

// Package models defines the shared data types for OCWarden: the persistent
// Account policy record, the ephemeral Session reported by the VPN daemon,
// the BanRecord kept by the temporary ban manager, and the aggregate stats
// exposed through the API.
//
// Types here carry no behavior beyond pure derivations (expiry, quota and
// reset checks). All enforcement logic lives in internal/enforcement.
package models
