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
	"io"

	"github.com/dpeckett/gopgpsdk/errors"
)

// maxChunk bounds how much of a literal or compressed-data body the
// parser buffers at once; no layer may materialize an unbounded body.
const maxChunk = 8192

// bodyReader turns a (possibly partial-length, possibly indeterminate)
// packet body into a plain io.Reader that returns io.EOF exactly once
// the logical body has been fully consumed, transparently reading the
// next partial-length chunk header as needed.
type bodyReader struct {
	r         io.Reader
	remaining int64 // bytes left in the current chunk; -1 if indeterminate
	partial   bool  // current chunk came from a partial-length header
	h         *header
	tag       Tag
}

func newBodyReader(r io.Reader, h *header, tag Tag) *bodyReader {
	return &bodyReader{r: r, remaining: h.Length, partial: h.Partial, h: h, tag: tag}
}

func (br *bodyReader) Read(buf []byte) (int, error) {
	if br.remaining == 0 {
		if !br.partial {
			return 0, io.EOF
		}
		if err := br.nextPartialChunk(); err != nil {
			return 0, err
		}
		if br.remaining == 0 && !br.partial {
			return 0, io.EOF
		}
	}

	if br.remaining >= 0 && int64(len(buf)) > br.remaining {
		buf = buf[:br.remaining]
	}
	n, err := br.r.Read(buf)
	if br.remaining >= 0 {
		br.remaining -= int64(n)
	}
	if err == io.EOF && br.remaining != 0 && br.h.IndeterminateLength {
		// Indeterminate-length bodies end exactly at the underlying
		// reader's EOF.
		return n, io.EOF
	}
	if err == io.EOF && br.remaining != 0 {
		return n, errors.WrapIO("packet: truncated body", io.ErrUnexpectedEOF)
	}
	return n, err
}

func (br *bodyReader) nextPartialChunk() error {
	length, partial, err := readPartialLength(br.r)
	if err != nil {
		return errors.WrapIO("packet: read partial-length continuation", err)
	}
	br.remaining = length
	br.partial = partial
	return nil
}

// Parse reads a sequence of OpenPGP packets from r, delivering events
// to cb until the stream is exhausted or cb requests Finish/Abort.
func Parse(r io.Reader, cb Callback) error {
	for {
		h, err := readHeader(r)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if disposeError(cb, err) != Continue {
				return nil
			}
			return err
		}

		if !h.NewFormat && h.Tag != TagCompressed && h.Tag != TagLiteralData &&
			h.Tag != TagSymmetricallyEncrypted && h.Tag != TagSymmetricEncryptedMDC && h.Partial {
			return errors.StructuralError("packet: partial length on old-format packet")
		}

		switch cb(Event{Kind: EventPacketTag, Tag: h.Tag}) {
		case Finish:
			return nil
		case Abort:
			return errors.ErrCancelled
		}

		disp, err := dispatch(r, h, cb)
		if err != nil {
			if disposeError(cb, err) != Continue {
				return nil
			}
			continue
		}
		if disp == Finish {
			return nil
		}
		if disp == Abort {
			return errors.ErrCancelled
		}
	}
}

func disposeError(cb Callback, err error) Disposition {
	if kinder, ok := err.(errors.Kinder); ok {
		return cb(Event{Kind: EventErrorCode, Err: kinder})
	}
	return cb(Event{Kind: EventError, Err: err})
}

func dispatch(r io.Reader, h *header, cb Callback) (Disposition, error) {
	switch h.Tag {
	case TagPublicKey, TagPublicSubkey:
		body := newBodyReader(r, h, h.Tag)
		pk := &PublicKey{IsSubkey: h.Tag == TagPublicSubkey}
		if err := pk.parse(body); err != nil {
			return Continue, err
		}
		return cb(Event{Kind: EventPacketBody, Body: pk}), nil

	case TagSecretKey, TagSecretSubkey:
		body := newBodyReader(r, h, h.Tag)
		sk := &SecretKey{PublicKey: PublicKey{IsSubkey: h.Tag == TagSecretSubkey}}
		if err := sk.parse(body); err != nil {
			return Continue, err
		}
		return cb(Event{Kind: EventPacketBody, Body: sk}), nil

	case TagUserID:
		body := newBodyReader(r, h, h.Tag)
		buf, err := io.ReadAll(body)
		if err != nil {
			return Continue, errors.WrapIO("packet: read user id", err)
		}
		return cb(Event{Kind: EventPacketBody, Body: &UserID{ID: string(buf)}}), nil

	case TagUserAttribute:
		body := newBodyReader(r, h, h.Tag)
		buf, err := io.ReadAll(body)
		if err != nil {
			return Continue, errors.WrapIO("packet: read user attribute", err)
		}
		return cb(Event{Kind: EventPacketBody, Body: &UserAttribute{Data: buf}}), nil

	case TagSignature:
		body := newBodyReader(r, h, h.Tag)
		sig := &Signature{}
		if err := sig.parse(body); err != nil {
			return Continue, err
		}
		return cb(Event{Kind: EventPacketBody, Body: sig}), nil

	case TagOnePassSignature:
		body := newBodyReader(r, h, h.Tag)
		ops := &OnePassSignature{}
		if err := ops.parse(body); err != nil {
			return Continue, err
		}
		return cb(Event{Kind: EventPacketBody, Body: ops}), nil

	case TagPublicKeyEncryptedKey:
		body := newBodyReader(r, h, h.Tag)
		pkesk := &EncryptedKey{}
		if err := pkesk.parse(body); err != nil {
			return Continue, err
		}
		return cb(Event{Kind: EventPacketBody, Body: pkesk}), nil

	case TagSymmetricKeyEncrypted:
		body := newBodyReader(r, h, h.Tag)
		skesk := &SymmetricKeyEncrypted{}
		if err := skesk.parse(body); err != nil {
			return Continue, err
		}
		return cb(Event{Kind: EventPacketBody, Body: skesk}), nil

	case TagTrust:
		body := newBodyReader(r, h, h.Tag)
		buf, err := io.ReadAll(body)
		if err != nil {
			return Continue, errors.WrapIO("packet: read trust", err)
		}
		return cb(Event{Kind: EventPacketBody, Body: &Trust{Data: buf}}), nil

	case TagMarker:
		body := newBodyReader(r, h, h.Tag)
		if _, err := io.Copy(io.Discard, body); err != nil {
			return Continue, errors.WrapIO("packet: read marker", err)
		}
		return cb(Event{Kind: EventPacketBody, Body: &Marker{}}), nil

	case TagLiteralData:
		return parseLiteralData(r, h, cb)

	case TagCompressed:
		return parseCompressed(r, h, cb)

	case TagSymmetricallyEncrypted, TagSymmetricEncryptedMDC:
		return parseSymmetricallyEncrypted(r, h, cb)

	case TagMDC:
		body := newBodyReader(r, h, h.Tag)
		buf, err := io.ReadAll(body)
		if err != nil {
			return Continue, errors.WrapIO("packet: read mdc", err)
		}
		return cb(Event{Kind: EventPacketBody, Body: &MDC{Hash: buf}}), nil

	case TagReserved, TagReserved15, TagReserved16:
		return Continue, errors.UnsupportedError("packet: reserved tag")

	default:
		return Continue, errors.UnsupportedError("packet: unknown tag")
	}
}

// streamChunks copies body through cb as EventDataChunk events of at
// most maxChunk bytes, honoring early termination.
func streamChunks(body io.Reader, cb Callback) (Disposition, error) {
	buf := make([]byte, maxChunk)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			disp := cb(Event{Kind: EventDataChunk, Chunk: buf[:n]})
			if disp != Continue {
				return disp, nil
			}
		}
		if err == io.EOF {
			return Continue, nil
		}
		if err != nil {
			return Continue, err
		}
	}
}
