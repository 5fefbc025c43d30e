// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package packet

import (
	"encoding/binary"
	"io"
	"time"

	"github.com/dpeckett/gopgpsdk/errors"
)

// LiteralFormat is the one-octet format field of a Literal Data packet
// (RFC 4880 section 5.9).
type LiteralFormat byte

const (
	LiteralFormatBinary LiteralFormat = 'b'
	LiteralFormatText   LiteralFormat = 't'
	LiteralFormatUTF8   LiteralFormat = 'u'
)

// LiteralData describes a Literal Data packet's header; its content is
// delivered to the caller as a stream of EventDataChunk events rather
// than buffered in this struct, so an arbitrarily large body never
// has to be held in memory at once.
type LiteralData struct {
	Format   LiteralFormat
	FileName string
	ModTime  time.Time
}

func parseLiteralHeader(r io.Reader) (*LiteralData, io.Reader, error) {
	var formatAndLen [2]byte
	if _, err := io.ReadFull(r, formatAndLen[:]); err != nil {
		return nil, nil, errors.WrapIO("literal data: read header", err)
	}
	ld := &LiteralData{Format: LiteralFormat(formatAndLen[0])}

	nameLen := int(formatAndLen[1])
	name := make([]byte, nameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return nil, nil, errors.WrapIO("literal data: read filename", err)
	}
	ld.FileName = string(name)

	var modTime [4]byte
	if _, err := io.ReadFull(r, modTime[:]); err != nil {
		return nil, nil, errors.WrapIO("literal data: read mod time", err)
	}
	ld.ModTime = time.Unix(int64(binary.BigEndian.Uint32(modTime[:])), 0)

	return ld, r, nil
}

// parseLiteralData emits EventLiteralHeader once the fixed header has
// been read, then streams the remaining body as EventDataChunk events.
func parseLiteralData(r io.Reader, h *header, cb Callback) (Disposition, error) {
	body := newBodyReader(r, h, TagLiteralData)
	ld, rest, err := parseLiteralHeader(body)
	if err != nil {
		return Continue, err
	}

	disp := cb(Event{Kind: EventLiteralHeader, Body: ld})
	if disp != Continue {
		return disp, nil
	}

	disp, err = streamChunks(rest, cb)
	if err != nil || disp != Continue {
		return disp, err
	}
	return cb(Event{Kind: EventPacketEnd, Tag: TagLiteralData}), nil
}

// writeLiteralHeader writes the fixed-format portion of a Literal Data
// packet header to buf.
func writeLiteralHeader(ld *LiteralData) []byte {
	name := []byte(ld.FileName)
	buf := make([]byte, 0, 6+len(name))
	buf = append(buf, byte(ld.Format), byte(len(name)))
	buf = append(buf, name...)
	var modTime [4]byte
	binary.BigEndian.PutUint32(modTime[:], uint32(ld.ModTime.Unix()))
	return append(buf, modTime[:]...)
}
