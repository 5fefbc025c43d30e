// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 *
 * CRC-24 polynomial and initial value are RFC 4880 section 6.1 values;
 * no suitable ecosystem package implements this specific CRC, so it is
 * reproduced here as plain bit-shifting rather than pulled in as a
 * dependency.
 */

// Package armor implements the OpenPGP ASCII Armor format (RFC 4880
// section 6): Radix-64 encoding of binary data framed by
// "-----BEGIN ...-----"/"-----END ...-----" block markers, an optional
// block of "Key: Value" header lines, and a trailing CRC-24 checksum
// line.
package armor

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"io"
	"strings"

	"github.com/dpeckett/gopgpsdk/errors"
)

// BlockType names the armour block, carried in the BEGIN/END marker
// lines as "PGP " + BlockType + "-----".
type BlockType string

const (
	BlockMessage    BlockType = "MESSAGE"
	BlockPublicKey  BlockType = "PUBLIC KEY BLOCK"
	BlockPrivateKey BlockType = "PRIVATE KEY BLOCK"
	BlockSignature  BlockType = "SIGNATURE"
	BlockSignedMessage BlockType = "SIGNED MESSAGE"
)

const (
	armorHeaderPrefix = "-----BEGIN PGP "
	armorFooterPrefix = "-----END PGP "
	armorSuffix       = "-----"
	lineWidth         = 64
)

// crc24Init and crc24Poly are the RFC 4880 section 6.1 CRC-24
// constants ("CRC24_INIT"/"CRC24_POLY" in the RFC's reference C).
const (
	crc24Init = 0xb704ce
	crc24Poly = 0x864cfb
)

func crc24(data []byte) uint32 {
	crc := uint32(crc24Init)
	for _, b := range data {
		crc ^= uint32(b) << 16
		for i := 0; i < 8; i++ {
			crc <<= 1
			if crc&0x1000000 != 0 {
				crc ^= crc24Poly
			}
		}
	}
	return crc & 0xffffff
}

// Encode writes data as an ASCII-armoured block of the given type to
// w, with headers written as "Key: Value" lines in map iteration
// order (not defined).
func Encode(w io.Writer, blockType BlockType, headers map[string]string, data []byte) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString(armorHeaderPrefix + string(blockType) + armorSuffix + "\n"); err != nil {
		return errors.WrapIO("armor: write header marker", err)
	}
	for k, v := range headers {
		if _, err := bw.WriteString(k + ": " + v + "\n"); err != nil {
			return errors.WrapIO("armor: write header line", err)
		}
	}
	if _, err := bw.WriteString("\n"); err != nil {
		return errors.WrapIO("armor: write header blank line", err)
	}

	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 0 {
		n := lineWidth
		if n > len(encoded) {
			n = len(encoded)
		}
		if _, err := bw.WriteString(encoded[:n] + "\n"); err != nil {
			return errors.WrapIO("armor: write body line", err)
		}
		encoded = encoded[n:]
	}

	sum := crc24(data)
	var sumBytes [3]byte
	sumBytes[0] = byte(sum >> 16)
	sumBytes[1] = byte(sum >> 8)
	sumBytes[2] = byte(sum)
	if _, err := bw.WriteString("=" + base64.StdEncoding.EncodeToString(sumBytes[:]) + "\n"); err != nil {
		return errors.WrapIO("armor: write crc line", err)
	}

	if _, err := bw.WriteString(armorFooterPrefix + string(blockType) + armorSuffix + "\n"); err != nil {
		return errors.WrapIO("armor: write footer marker", err)
	}
	return errors.WrapIO("armor: flush", bw.Flush())
}

// Block is a decoded armour block: its type, header lines as a map
// (their order of appearance is not kept), and decoded binary payload.
type Block struct {
	Type    BlockType
	Headers map[string]string
	Body    []byte
}

// Decode reads a single ASCII-armoured block from r, validating the
// CRC-24 trailer and that the END marker names the same block type as
// the BEGIN marker.
func Decode(r io.Reader) (*Block, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var blockType BlockType
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.HasPrefix(line, armorHeaderPrefix) && strings.HasSuffix(line, armorSuffix) {
			blockType = BlockType(line[len(armorHeaderPrefix) : len(line)-len(armorSuffix)])
			break
		}
	}
	if blockType == "" {
		if err := sc.Err(); err != nil {
			return nil, errors.WrapIO("armor: scan for header marker", err)
		}
		return nil, errors.ArmourError("no armor header found")
	}

	headers := make(map[string]string)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			break
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			return nil, errors.ArmourError("malformed header line: " + line)
		}
		headers[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}

	var encoded bytes.Buffer
	var crcLine string
	footer := armorFooterPrefix + string(blockType) + armorSuffix
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == footer {
			break
		}
		if strings.HasPrefix(line, "=") && len(line) == 5 {
			crcLine = line[1:]
			continue
		}
		encoded.WriteString(line)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.WrapIO("armor: scan body", err)
	}

	body, err := base64.StdEncoding.DecodeString(encoded.String())
	if err != nil {
		return nil, errors.ArmourError("invalid base64 body: " + err.Error())
	}

	if crcLine != "" {
		wantSum, err := base64.StdEncoding.DecodeString(crcLine)
		if err != nil || len(wantSum) != 3 {
			return nil, errors.ArmourError("invalid crc line")
		}
		want := uint32(wantSum[0])<<16 | uint32(wantSum[1])<<8 | uint32(wantSum[2])
		if crc24(body) != want {
			return nil, errors.ArmourError("crc24 mismatch")
		}
	}

	return &Block{Type: blockType, Headers: headers, Body: body}, nil
}

// Writer wraps w, Radix-64-encoding and line-wrapping everything
// written to it, and finalizing the CRC-24 trailer and END marker on
// Close. NewWriter writes the BEGIN marker and headers before
// returning.
type Writer struct {
	below     *bufio.Writer
	blockType BlockType
	lineBuf   bytes.Buffer
	crc       uint32
	col       int
}

// NewWriter returns a Writer that armors data as blockType, with
// headers written immediately.
func NewWriter(w io.Writer, blockType BlockType, headers map[string]string) (*Writer, error) {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(armorHeaderPrefix + string(blockType) + armorSuffix + "\n"); err != nil {
		return nil, errors.WrapIO("armor: write header marker", err)
	}
	for k, v := range headers {
		if _, err := bw.WriteString(k + ": " + v + "\n"); err != nil {
			return nil, errors.WrapIO("armor: write header line", err)
		}
	}
	if _, err := bw.WriteString("\n"); err != nil {
		return nil, errors.WrapIO("armor: write header blank line", err)
	}
	return &Writer{below: bw, blockType: blockType, crc: crc24Init}, nil
}

func (w *Writer) Write(p []byte) (int, error) {
	w.updateCRC(p)
	w.lineBuf.Write(p)

	for w.lineBuf.Len() >= 3 {
		raw := w.lineBuf.Next(3)
		var out [4]byte
		base64.StdEncoding.Encode(out[:], raw)
		if err := w.writeEncodedChunk(out[:]); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (w *Writer) writeEncodedChunk(chunk []byte) error {
	for len(chunk) > 0 {
		n := lineWidth - w.col
		if n > len(chunk) {
			n = len(chunk)
		}
		if _, err := w.below.Write(chunk[:n]); err != nil {
			return errors.WrapIO("armor: write body", err)
		}
		chunk = chunk[n:]
		w.col += n
		if w.col == lineWidth {
			if _, err := w.below.WriteString("\n"); err != nil {
				return errors.WrapIO("armor: write line break", err)
			}
			w.col = 0
		}
	}
	return nil
}

func (w *Writer) updateCRC(p []byte) {
	crc := w.crc
	for _, b := range p {
		crc ^= uint32(b) << 16
		for i := 0; i < 8; i++ {
			crc <<= 1
			if crc&0x1000000 != 0 {
				crc ^= crc24Poly
			}
		}
	}
	w.crc = crc & 0xffffff
}

// Close flushes any buffered partial Radix-64 group, writes the CRC-24
// trailer line, and the END marker.
func (w *Writer) Close() error {
	if w.lineBuf.Len() > 0 {
		raw := w.lineBuf.Bytes()
		out := make([]byte, base64.StdEncoding.EncodedLen(len(raw)))
		base64.StdEncoding.Encode(out, raw)
		if err := w.writeEncodedChunk(out); err != nil {
			return err
		}
	}
	if w.col != 0 {
		if _, err := w.below.WriteString("\n"); err != nil {
			return errors.WrapIO("armor: write final line break", err)
		}
	}

	var sumBytes [3]byte
	sumBytes[0] = byte(w.crc >> 16)
	sumBytes[1] = byte(w.crc >> 8)
	sumBytes[2] = byte(w.crc)
	if _, err := w.below.WriteString("=" + base64.StdEncoding.EncodeToString(sumBytes[:]) + "\n"); err != nil {
		return errors.WrapIO("armor: write crc line", err)
	}
	if _, err := w.below.WriteString(armorFooterPrefix + string(w.blockType) + armorSuffix + "\n"); err != nil {
		return errors.WrapIO("armor: write footer marker", err)
	}
	return errors.WrapIO("armor: flush", w.below.Flush())
}
