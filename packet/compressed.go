// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 *
 * Compression algorithm set is RFC 4880 section 9.3; zip/zlib
 * decompression delegated to github.com/klauspost/compress (faster
 * drop-in replacements for compress/flate and compress/zlib), bzip2
 * decode-only via the stdlib (no suitable ecosystem package offers
 * bzip2 encoding either, so this engine cannot produce bzip2
 * Compressed Data packets, matching RFC 4880's own framing of bzip2 as
 * a low-priority, decode-focused option).
 */

package packet

import (
	"compress/bzip2"
	"io"

	"github.com/dpeckett/gopgpsdk/errors"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"
)

// CompressionAlgorithm identifies a compression method by its RFC 4880
// section 9.3 ID.
type CompressionAlgorithm byte

const (
	CompressionNone  CompressionAlgorithm = 0
	CompressionZIP   CompressionAlgorithm = 1
	CompressionZLIB  CompressionAlgorithm = 2
	CompressionBZIP2 CompressionAlgorithm = 3
)

// Compressed describes a Compressed Data packet's algorithm; its
// decompressed content is parsed as a nested packet stream as it is
// read, rather than being buffered whole.
type Compressed struct {
	Algorithm CompressionAlgorithm
}

func parseCompressed(r io.Reader, h *header, cb Callback) (Disposition, error) {
	body := newBodyReader(r, h, TagCompressed)

	var algByte [1]byte
	if _, err := io.ReadFull(body, algByte[:]); err != nil {
		return Continue, errors.WrapIO("compressed data: read algorithm", err)
	}
	c := &Compressed{Algorithm: CompressionAlgorithm(algByte[0])}

	var decompressor io.Reader
	switch c.Algorithm {
	case CompressionNone:
		decompressor = body
	case CompressionZIP:
		fr := flate.NewReader(body)
		defer fr.Close()
		decompressor = fr
	case CompressionZLIB:
		zr, err := zlib.NewReader(body)
		if err != nil {
			return Continue, errors.WrapIO("compressed data: open zlib", err)
		}
		defer zr.Close()
		decompressor = zr
	case CompressionBZIP2:
		decompressor = bzip2.NewReader(body)
	default:
		return Continue, errors.UnsupportedError("compressed data algorithm")
	}

	disp := cb(Event{Kind: EventCompressedHeader, Body: c})
	if disp != Continue {
		return disp, nil
	}

	// A Compressed Data packet's payload is itself a nested sequence of
	// OpenPGP packets (a signed or encrypted literal, typically), so
	// hand the decompressed stream back to Parse rather than treating it
	// as opaque chunk data.
	if err := Parse(decompressor, cb); err != nil {
		return Continue, err
	}
	return cb(Event{Kind: EventPacketEnd, Tag: TagCompressed}), nil
}

// NewCompressor returns a writer that compresses to w using algo,
// flushing and finalizing its trailer on Close.
func NewCompressor(w io.Writer, algo CompressionAlgorithm) (io.WriteCloser, error) {
	switch algo {
	case CompressionNone:
		return nopWriteCloser{w}, nil
	case CompressionZIP:
		return flate.NewWriter(w, flate.DefaultCompression)
	case CompressionZLIB:
		return zlib.NewWriter(w), nil
	default:
		return nil, errors.UnsupportedError("compression algorithm")
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
