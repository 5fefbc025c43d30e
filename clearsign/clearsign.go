// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 *
 * The dash-escape loop, trailing-whitespace trim and CRLF-joined
 * per-line canonical hashing implement RFC 4880 section 7's signed-
 * content rules across any algorithm the signature engine supports.
 * Reader-side framing detection checks each line's leading bytes to
 * tell a dash-escaped content line from the trailing armoured
 * signature block; Verify buffers the whole body as it goes.
 */

// Package clearsign implements OpenPGP cleartext-signed messages (RFC
// 4880 section 7): a "-----BEGIN PGP SIGNED MESSAGE-----" header
// naming the hash algorithm, the dash-escaped message body, and a
// trailing ASCII-armoured detached signature.
package clearsign

import (
	"bufio"
	"bytes"
	"hash"
	"io"

	"github.com/dpeckett/gopgpsdk/armor"
	"github.com/dpeckett/gopgpsdk/errors"
	"github.com/dpeckett/gopgpsdk/packet"
)

const (
	beginSignedMessage = "-----BEGIN PGP SIGNED MESSAGE-----"
	beginSignature     = "-----BEGIN PGP SIGNATURE-----"
)

// stripTrailingWhitespace removes trailing spaces and tabs from a
// line, per RFC 4880 section 7.1's canonical text rule.
func stripTrailingWhitespace(line []byte) []byte {
	i := len(line)
	for i > 0 && (line[i-1] == ' ' || line[i-1] == '\t') {
		i--
	}
	return line[:i]
}

// dashEscape prefixes a line with "- " if it begins with '-', per RFC
// 4880 section 7.1.
func dashEscape(line []byte) []byte {
	if len(line) > 0 && line[0] == '-' {
		out := make([]byte, 0, len(line)+2)
		out = append(out, '-', ' ')
		return append(out, line...)
	}
	return line
}

// undashEscape reverses dashEscape: a line of the form "- X" becomes
// "X"; any other line is unchanged.
func undashEscape(line []byte) []byte {
	if bytes.HasPrefix(line, []byte("- ")) {
		return line[2:]
	}
	return line
}

// Sign writes msg to w as a cleartext-signed message, then signs the
// canonicalized body (CRLF line endings, per-line trailing whitespace
// stripped, no trailing line ending on the final line) with sig,
// appending the result as an ASCII-armoured detached signature block.
// sig must already have Type, PubKeyAlgorithm, HashAlgorithm and its
// hashed subpackets (via HashedSubpacketsEnd) set; Sign finalizes the
// canonical-text hash and calls sig.Sign(h, priv) itself.
func Sign(w io.Writer, msg io.Reader, sig *packet.Signature, priv *packet.SecretKey) error {
	newHash, ok := sig.HashAlgorithm.New()
	if !ok {
		return errors.UnsupportedError("clearsign: hash algorithm")
	}
	h := newHash()

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(beginSignedMessage + "\n"); err != nil {
		return errors.WrapIO("clearsign: write begin marker", err)
	}
	if _, err := bw.WriteString("Hash: " + sig.HashAlgorithm.String() + "\n\n"); err != nil {
		return errors.WrapIO("clearsign: write hash header", err)
	}

	scanner := bufio.NewScanner(msg)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	first := true
	for scanner.Scan() {
		line := stripTrailingWhitespace(scanner.Bytes())

		if !first {
			h.Write([]byte("\r\n"))
		}
		first = false
		h.Write(line)

		out := dashEscape(line)
		if _, err := bw.Write(out); err != nil {
			return errors.WrapIO("clearsign: write body line", err)
		}
		if _, err := bw.WriteString("\n"); err != nil {
			return errors.WrapIO("clearsign: write line break", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.WrapIO("clearsign: scan message", err)
	}

	if err := sig.Sign(h, priv); err != nil {
		return err
	}

	var sigBuf bytes.Buffer
	if err := sig.Serialize(&sigBuf); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return errors.WrapIO("clearsign: flush body", err)
	}
	return armor.Encode(w, armor.BlockSignature, nil, sigBuf.Bytes())
}

// Verify reads a cleartext-signed message from r, returning the
// original (un-dash-escaped, canonicalized per RFC 4880 section 7.1)
// body and the parsed trailing signature. Callers should then verify
// the returned signature against the corresponding public key with
// packet.Signature.Verify, feeding it a hash of body computed the same
// way Sign does internally; VerifyHash does this in one step.
func Verify(r io.Reader) (body []byte, sig *packet.Signature, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	found := false
	for sc.Scan() {
		if bytes.Equal(bytes.TrimRight(sc.Bytes(), "\r"), []byte(beginSignedMessage)) {
			found = true
			break
		}
	}
	if !found {
		if err := sc.Err(); err != nil {
			return nil, nil, errors.WrapIO("clearsign: scan for begin marker", err)
		}
		return nil, nil, errors.ArmourError("no cleartext-signed message found")
	}

	// Skip armor-style "Hash:" headers up to the blank line.
	for sc.Scan() {
		if len(bytes.TrimRight(sc.Bytes(), "\r")) == 0 {
			break
		}
	}

	var out bytes.Buffer
	for sc.Scan() {
		line := bytes.TrimRight(sc.Bytes(), "\r")
		if bytes.Equal(line, []byte(beginSignature)) {
			break
		}
		out.Write(undashEscape(line))
		out.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return nil, nil, errors.WrapIO("clearsign: scan body", err)
	}

	var armored bytes.Buffer
	armored.WriteString(beginSignature + "\n")
	for sc.Scan() {
		armored.Write(sc.Bytes())
		armored.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return nil, nil, errors.WrapIO("clearsign: scan signature block", err)
	}

	block, err := armor.Decode(&armored)
	if err != nil {
		return nil, nil, err
	}

	sig = &packet.Signature{}
	var sawSig bool
	perr := packet.Parse(bytes.NewReader(block.Body), func(ev packet.Event) packet.Disposition {
		if ev.Kind == packet.EventPacketBody {
			if s, ok := ev.Body.(*packet.Signature); ok {
				sig = s
				sawSig = true
			}
		}
		return packet.Continue
	})
	if perr != nil {
		return nil, nil, perr
	}
	if !sawSig {
		return nil, nil, errors.StructuralError("clearsign: trailing block is not a signature packet")
	}

	return canonicalBody(out.Bytes()), sig, nil
}

// canonicalBody re-derives the exact byte sequence Sign hashed from
// the un-dash-escaped body text: CRLF-joined lines with no trailing
// line ending after the last line.
func canonicalBody(lines []byte) []byte {
	split := bytes.Split(bytes.TrimSuffix(lines, []byte("\n")), []byte("\n"))
	var out bytes.Buffer
	for i, line := range split {
		if i > 0 {
			out.WriteString("\r\n")
		}
		out.Write(stripTrailingWhitespace(line))
	}
	return out.Bytes()
}

// VerifyHash is a convenience wrapper around Verify that also feeds
// the canonical body into a fresh hash of sig's declared algorithm, so
// the caller need only call sig.Verify(h, pub).
func VerifyHash(r io.Reader) (h hash.Hash, sig *packet.Signature, err error) {
	body, sig, err := Verify(r)
	if err != nil {
		return nil, nil, err
	}
	newHash, ok := sig.HashAlgorithm.New()
	if !ok {
		return nil, nil, errors.UnsupportedError("clearsign: hash algorithm")
	}
	h = newHash()
	h.Write(body)
	return h, sig, nil
}
