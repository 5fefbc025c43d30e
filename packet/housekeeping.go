// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package packet

// UserID is a UTF-8 user identity string (RFC 4880 section 5.11).
type UserID struct {
	ID string
}

// UserAttribute is an opaque user-attribute blob (RFC 4880 section
// 5.12); this module does not interpret the image subpacket format
// within it.
type UserAttribute struct {
	Data []byte
}

// Trust is an opaque, implementation-specific trust packet (RFC 4880
// section 5.10). This module carries its bytes without interpretation;
// trust evaluation is left to the caller.
type Trust struct {
	Data []byte
}

// Marker is an ignorable packet (RFC 4880 section 5.8) whose body is
// always the three bytes "PGP", discarded on parse.
type Marker struct{}

// MDC is a Modification Detection Code packet (RFC 4880 section 5.14):
// a 20-byte SHA-1 hash trailing a Sym. Encrypted Integrity Protected
// Data packet. It is normally consumed internally by the SEIP reader
// (see symmetric.go) rather than surfaced to callers directly.
type MDC struct {
	Hash []byte
}
