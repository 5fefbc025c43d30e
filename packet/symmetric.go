// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 *
 * The MDC trailer (RFC 4880 section 5.13) is appended as an encrypted
 * packet inside the same ciphertext stream it authenticates, so a
 * reader can't know it has reached the trailer until it has already
 * read past the end of the plaintext. seMDCReader holds back the
 * trailing mdcTrailerSize bytes in a small ring buffer so those bytes
 * are never handed to the caller as plaintext, only checked against
 * the running hash once Close confirms they were in fact the trailer.
 */

package packet

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha1" //nolint:gosec // mandated by RFC 4880 MDC construction
	"crypto/subtle"
	"hash"
	"io"

	"github.com/dpeckett/gopgpsdk/algorithm"
	"github.com/dpeckett/gopgpsdk/errors"
)

// SymmetricallyEncrypted is a Symmetrically Encrypted (tag 9) or Sym.
// Encrypted Integrity Protected (tag 18, "SEIP") Data packet (RFC 4880
// sections 5.7 and 5.13). Its contents, once decrypted, are themselves
// a nested OpenPGP packet stream; callers parse that stream separately
// after calling Decrypt, since decryption requires a session key the
// parser cannot supply on its own. The contents are read lazily from
// the parser's own input, so they stay readable after Parse returns
// only if the callback returned Finish on this packet's event.
type SymmetricallyEncrypted struct {
	MDC      bool
	contents io.Reader
}

func parseSymmetricallyEncrypted(r io.Reader, h *header, cb Callback) (Disposition, error) {
	body := newBodyReader(r, h, h.Tag)
	se := &SymmetricallyEncrypted{MDC: h.Tag == TagSymmetricEncryptedMDC}

	if se.MDC {
		var version [1]byte
		if _, err := io.ReadFull(body, version[:]); err != nil {
			return Continue, errors.WrapIO("symmetrically encrypted: read version", err)
		}
		if version[0] != 1 {
			return Continue, errors.UnsupportedError("symmetrically encrypted integrity protected version")
		}
	}
	se.contents = body

	return cb(Event{Kind: EventPacketBody, Body: se}), nil
}

// Decrypt returns a reader over the packet's decrypted contents. For
// SEIP packets (MDC == true) the returned reader's Close validates the
// trailing SHA-1 MDC packet against a running hash of everything read;
// callers must read to EOF and call Close before trusting the result.
func (se *SymmetricallyEncrypted) Decrypt(c algorithm.Cipher, key []byte) (io.ReadCloser, error) {
	if c.KeySize() == 0 {
		return nil, errors.UnsupportedError("symmetrically encrypted: cipher")
	}
	if len(key) != c.KeySize() {
		return nil, errors.InvalidArgumentError("symmetrically encrypted: incorrect key length")
	}

	prefix := make([]byte, c.BlockSize()+2)
	if _, err := io.ReadFull(se.contents, prefix); err != nil {
		return nil, errors.WrapIO("symmetrically encrypted: read prefix", err)
	}

	stream, err := algorithm.NewOCFBDecrypter(c, key, prefix, se.MDC)
	if err != nil {
		return nil, err
	}
	plaintext := &cipher.StreamReader{S: stream, R: se.contents}

	if !se.MDC {
		return io.NopCloser(plaintext), nil
	}

	h := sha1.New() //nolint:gosec // RFC 4880 mandates SHA-1 for the MDC
	h.Write(prefix)
	return &seMDCReader{in: plaintext, h: h}, nil
}

// NewSEIPEncryptWriter wraps below with Sym. Encrypted Integrity
// Protected Data encryption (RFC 4880 section 5.13): it writes the
// version byte and OCFB prefix immediately, encrypts subsequent
// writes, and appends a hashed MDC trailer packet when Close is
// called. below should already be positioned inside a
// PushLengthPrefixed(TagSymmetricEncryptedMDC) or
// PushPartialLength(TagSymmetricEncryptedMDC) framing layer.
func NewSEIPEncryptWriter(below io.Writer, c algorithm.Cipher, key []byte) (io.WriteCloser, error) {
	if _, err := below.Write([]byte{1}); err != nil {
		return nil, errors.WrapIO("symmetrically encrypted: write version", err)
	}
	stream, prefix, err := algorithm.NewOCFBEncrypter(c, key, rand.Reader, true)
	if err != nil {
		return nil, err
	}
	if _, err := below.Write(prefix); err != nil {
		return nil, errors.WrapIO("symmetrically encrypted: write prefix", err)
	}

	h := sha1.New() //nolint:gosec // RFC 4880 mandates SHA-1 for the MDC
	h.Write(prefix)
	return &seipWriter{below: below, stream: stream, h: h}, nil
}

type seipWriter struct {
	below  io.Writer
	stream cipher.Stream
	h      hash.Hash
}

func (sw *seipWriter) Write(p []byte) (int, error) {
	sw.h.Write(p)
	ct := make([]byte, len(p))
	sw.stream.XORKeyStream(ct, p)
	n, err := sw.below.Write(ct)
	return n, errors.WrapIO("symmetrically encrypted: write ciphertext", err)
}

// Close appends the hashed MDC trailer packet, encrypted as part of
// the same OCFB stream as the rest of the body.
func (sw *seipWriter) Close() error {
	mdcHeader := []byte{mdcPacketTagByte, sha1.Size}
	sw.h.Write(mdcHeader)
	sum := sw.h.Sum(nil)

	plaintext := append(append([]byte{}, mdcHeader...), sum...)
	ct := make([]byte, len(plaintext))
	sw.stream.XORKeyStream(ct, plaintext)
	_, err := sw.below.Write(ct)
	return errors.WrapIO("symmetrically encrypted: write mdc trailer", err)
}

const mdcTrailerSize = 1 /* tag byte */ + 1 /* length byte */ + sha1.Size

// mdcPacketTagByte is the new-format packet tag byte for a type-19
// (MDC) packet: 0x80 (always set) | 0x40 (new format bit) | 19.
const mdcPacketTagByte = byte(0x80) | 0x40 | 19

// seMDCReader wraps a decrypting reader, holding back the trailing
// mdcTrailerSize bytes of the stream (the embedded MDC packet) until
// Close, when it is checked against a running hash of everything read.
type seMDCReader struct {
	in      io.Reader
	h       hash.Hash
	trailer [mdcTrailerSize]byte
	scratch [mdcTrailerSize]byte

	trailerUsed int
	eof         bool
	broken      bool
}

func (ser *seMDCReader) Read(buf []byte) (int, error) {
	if ser.broken {
		return 0, io.ErrUnexpectedEOF
	}
	if ser.eof {
		return 0, io.EOF
	}

	for ser.trailerUsed < mdcTrailerSize {
		n, err := ser.in.Read(ser.trailer[ser.trailerUsed:])
		ser.trailerUsed += n
		if err == io.EOF {
			if ser.trailerUsed != mdcTrailerSize {
				ser.broken = true
				return 0, io.ErrUnexpectedEOF
			}
			ser.eof = true
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
	}

	if len(buf) <= mdcTrailerSize {
		n, err := io.ReadFull(ser.in, ser.scratch[:len(buf)])
		copy(buf, ser.trailer[:n])
		ser.h.Write(buf[:n])
		copy(ser.trailer[:], ser.trailer[n:])
		copy(ser.trailer[mdcTrailerSize-n:], ser.scratch[:n])
		if n < len(buf) {
			ser.eof = true
			return n, io.EOF
		}
		return n, nil
	}

	n, err := ser.in.Read(buf[mdcTrailerSize:])
	copy(buf, ser.trailer[:])
	ser.h.Write(buf[:n])
	copy(ser.trailer[:], buf[n:n+mdcTrailerSize])

	if err == io.EOF {
		ser.eof = true
		return n, nil
	}
	return n, err
}

// Close drains any unread plaintext, then verifies the held-back
// trailer is a well-formed MDC packet whose hash matches everything
// read through ser.
func (ser *seMDCReader) Close() error {
	if ser.broken {
		return errors.WrapIO("symmetrically encrypted: read", io.ErrUnexpectedEOF)
	}

	for !ser.eof {
		var buf [1024]byte
		if _, err := ser.Read(buf[:]); err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
	}

	if ser.trailer[0] != mdcPacketTagByte || ser.trailer[1] != sha1.Size {
		return errors.ErrMDCMissing
	}
	ser.h.Write(ser.trailer[:2])

	final := ser.h.Sum(nil)
	if subtle.ConstantTimeCompare(final, ser.trailer[2:]) != 1 {
		return errors.ErrMDCHashMismatch
	}
	return nil
}
