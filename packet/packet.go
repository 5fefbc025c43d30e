// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 *
 * Tag values are the RFC 4880 section 4.3 packet tag enumeration,
 * including the two reserved values 15 and 16.
 */

// Package packet implements the OpenPGP packet grammar: header and
// length-octet codecs, a streaming parser that delivers packet and
// subpacket events to a callback, and a push/pop writer stack that
// composes framing, encryption, compression and armour layers.
package packet

import (
	"io"

	"github.com/dpeckett/gopgpsdk/errors"
)

// Tag identifies the content of a packet (RFC 4880 section 4.3).
type Tag byte

const (
	TagReserved              Tag = 0
	TagPublicKeyEncryptedKey Tag = 1
	TagSignature             Tag = 2
	TagSymmetricKeyEncrypted Tag = 3
	TagOnePassSignature      Tag = 4
	TagSecretKey             Tag = 5
	TagPublicKey             Tag = 6
	TagSecretSubkey          Tag = 7
	TagCompressed            Tag = 8
	TagSymmetricallyEncrypted Tag = 9
	TagMarker                Tag = 10
	TagLiteralData           Tag = 11
	TagTrust                 Tag = 12
	TagUserID                Tag = 13
	TagPublicSubkey          Tag = 14
	TagReserved15            Tag = 15
	TagReserved16            Tag = 16
	TagUserAttribute         Tag = 17
	TagSymmetricEncryptedMDC Tag = 18
	TagMDC                   Tag = 19
)

var tagNames = map[Tag]string{
	TagReserved:               "Reserved",
	TagPublicKeyEncryptedKey:  "Public-Key Encrypted Session Key",
	TagSignature:              "Signature",
	TagSymmetricKeyEncrypted:  "Symmetric-Key Encrypted Session Key",
	TagOnePassSignature:       "One-Pass Signature",
	TagSecretKey:              "Secret Key",
	TagPublicKey:              "Public Key",
	TagSecretSubkey:           "Secret Subkey",
	TagCompressed:             "Compressed Data",
	TagSymmetricallyEncrypted: "Symmetrically Encrypted Data",
	TagMarker:                 "Marker",
	TagLiteralData:            "Literal Data",
	TagTrust:                  "Trust",
	TagUserID:                 "User ID",
	TagPublicSubkey:           "Public Subkey",
	TagReserved15:             "Reserved",
	TagReserved16:             "Reserved",
	TagUserAttribute:          "User Attribute",
	TagSymmetricEncryptedMDC:  "Sym. Encrypted Integrity Protected Data",
	TagMDC:                    "Modification Detection Code",
}

func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return "unknown"
}

// header is the decoded form of a packet's leading tag byte plus its
// length octets.
type header struct {
	Tag           Tag
	NewFormat     bool
	Length        int64 // -1 for indeterminate length
	Partial       bool  // length is a partial-body chunk; more chunks follow
	IndeterminateLength bool
}

// readHeader decodes one packet header from r, per RFC 4880 section 4.2.
func readHeader(r io.Reader) (*header, error) {
	var tagByte [1]byte
	if _, err := io.ReadFull(r, tagByte[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.WrapIO("packet: read tag", err)
	}
	b := tagByte[0]
	if b&0x80 == 0 {
		return nil, errors.StructuralError("packet: tag byte missing bit 7")
	}

	h := &header{}
	if b&0x40 != 0 {
		h.NewFormat = true
		h.Tag = Tag(b & 0x3f)
		return h, readNewFormatLength(r, h)
	}

	h.NewFormat = false
	h.Tag = Tag((b >> 2) & 0x0f)
	lengthType := b & 0x03
	return h, readOldFormatLength(r, h, lengthType)
}

func readOldFormatLength(r io.Reader, h *header, lengthType byte) error {
	switch lengthType {
	case 0:
		var buf [1]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return errors.WrapIO("packet: read 1-byte length", err)
		}
		h.Length = int64(buf[0])
	case 1:
		var buf [2]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return errors.WrapIO("packet: read 2-byte length", err)
		}
		h.Length = int64(buf[0])<<8 | int64(buf[1])
	case 2:
		var buf [4]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return errors.WrapIO("packet: read 4-byte length", err)
		}
		h.Length = int64(buf[0])<<24 | int64(buf[1])<<16 | int64(buf[2])<<8 | int64(buf[3])
	case 3:
		h.IndeterminateLength = true
		h.Length = -1
	default:
		return errors.StructuralError("packet: invalid old-format length type")
	}
	return nil
}

func readNewFormatLength(r io.Reader, h *header) error {
	var b0 [1]byte
	if _, err := io.ReadFull(r, b0[:]); err != nil {
		return errors.WrapIO("packet: read length octet", err)
	}
	switch {
	case b0[0] < 192:
		h.Length = int64(b0[0])
	case b0[0] < 224:
		var b1 [1]byte
		if _, err := io.ReadFull(r, b1[:]); err != nil {
			return errors.WrapIO("packet: read 2-octet length", err)
		}
		h.Length = (int64(b0[0])-192)<<8 + int64(b1[0]) + 192
	case b0[0] == 255:
		var buf [4]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return errors.WrapIO("packet: read 5-octet length", err)
		}
		h.Length = int64(buf[0])<<24 | int64(buf[1])<<16 | int64(buf[2])<<8 | int64(buf[3])
	default:
		h.Partial = true
		h.Length = 1 << (b0[0] & 0x1f)
	}
	return nil
}

// writeHeader writes a new-format packet header for a body of exactly
// length bytes (no partial-length support; see writePartialHeader for
// that case).
func writeHeader(w io.Writer, tag Tag, length int) error {
	var buf []byte
	buf = append(buf, 0x80|0x40|byte(tag))
	switch {
	case length < 192:
		buf = append(buf, byte(length))
	case length < 8384:
		length -= 192
		buf = append(buf, byte((length>>8)+192), byte(length&0xff))
	default:
		buf = append(buf, 255,
			byte(length>>24), byte(length>>16), byte(length>>8), byte(length))
	}
	_, err := w.Write(buf)
	return errors.WrapIO("packet: write header", err)
}

// writePartialHeader writes a new-format packet header announcing a
// partial-body chunk of exactly 1<<power bytes. power must be in
// [0,30]; RFC 4880 requires the first chunk (if more than one will be
// sent) to be at least 512 bytes (power >= 9). This is only valid for
// the first chunk of a packet's body, which is the only one preceded
// by a tag byte; see writePartialLengthContinuation for later chunks.
func writePartialHeader(w io.Writer, tag Tag, power uint) error {
	_, err := w.Write([]byte{0x80 | 0x40 | byte(tag), 224 + byte(power)})
	return errors.WrapIO("packet: write partial header", err)
}

// writePartialLengthContinuation writes a bare partial-body length
// octet for the second and later chunks of a partial-length packet
// body. Unlike the packet's first length header, continuation chunks
// are not separate packets and so carry no tag byte (RFC 4880 section
// 4.2.2.4).
func writePartialLengthContinuation(w io.Writer, power uint) error {
	_, err := w.Write([]byte{224 + byte(power)})
	return errors.WrapIO("packet: write partial length continuation", err)
}

// readPartialLength reads a bare new-format length octet sequence (no
// tag byte), used for the second and later chunks of a partial-length
// packet body.
func readPartialLength(r io.Reader) (length int64, partial bool, err error) {
	h := &header{}
	if err := readNewFormatLength(r, h); err != nil {
		return 0, false, err
	}
	return h.Length, h.Partial, nil
}
