// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package packet

// EventKind distinguishes the pseudo-events a Callback receives, in
// addition to the typed packet bodies themselves (§3's "parser
// additionally emits pseudo-events").
type EventKind int

const (
	// EventPacketTag precedes every packet's body events.
	EventPacketTag EventKind = iota
	// EventPacketBody carries a fully parsed, self-contained packet
	// (keys, user IDs, signatures, session keys, trust, marker).
	EventPacketBody
	// EventLiteralHeader precedes a Literal Data packet's body chunks.
	EventLiteralHeader
	// EventCompressedHeader precedes a Compressed Data packet's nested
	// packet stream.
	EventCompressedHeader
	// EventDataChunk carries up to 8192 bytes of a Literal Data body.
	EventDataChunk
	// EventPacketEnd closes out a streamed packet (literal or
	// compressed) started by EventLiteralHeader or EventCompressedHeader.
	EventPacketEnd
	// EventError carries a message-only parse error.
	EventError
	// EventErrorCode carries an errors.Kind-tagged parse error.
	EventErrorCode
)

// Event is delivered to a Callback during Parse. Fields not relevant
// to Kind are zero. The payload referenced by Body/Chunk is only valid
// for the duration of the callback invocation; retaining it requires
// an explicit copy.
type Event struct {
	Kind EventKind

	Tag  Tag // valid for EventPacketTag
	Body any // valid for EventPacketBody: one of the concrete packet types below

	Chunk []byte // valid for EventDataChunk

	Err error // valid for EventError / EventErrorCode
}

// Disposition is returned by a Callback to control whether parsing
// continues.
type Disposition int

const (
	// Continue parsing subsequent packets.
	Continue Disposition = iota
	// Finish parsing now; no further events are emitted.
	Finish
	// Abort parsing now and report the callback's own error.
	Abort
)

// Callback consumes parser events. Returning Finish or Abort halts
// Parse after the current event.
type Callback func(Event) Disposition
