// OCWarden - OpenConnect VPN Administration and Quota Enforcement
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ocwarden

// Package services adapts OCWarden's long-running components to the
// suture.Service interface so the supervisor tree can restart them
// independently.
package services
