// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package mpi implements the OpenPGP multiprecision-integer encoding:
// a two-octet, big-endian bit-count header followed by ceil(bits/8)
// bytes of big-endian magnitude. See RFC 4880 section 3.2.
package mpi

import (
	"math/big"

	"github.com/dpeckett/gopgpsdk/errors"
)

// MPI is a single OpenPGP multiprecision integer.
type MPI struct {
	n *big.Int
}

// New wraps a big.Int as an MPI.
func New(n *big.Int) MPI {
	return MPI{n: n}
}

// Int returns the underlying big.Int. Never nil for a zero-value MPI;
// a zero-value MPI represents zero.
func (m MPI) Int() *big.Int {
	if m.n == nil {
		return new(big.Int)
	}
	return m.n
}

// BitLen returns the number of bits in the magnitude, matching the
// header value that would be written for this MPI.
func (m MPI) BitLen() int {
	return m.Int().BitLen()
}

// ByteLen returns ceil(BitLen()/8), the number of magnitude bytes that
// follow the header.
func (m MPI) ByteLen() int {
	return (m.BitLen() + 7) / 8
}

// EncodedLen returns the total wire length including the 2-byte header.
func (m MPI) EncodedLen() int {
	return 2 + m.ByteLen()
}

// Encode appends the wire encoding of m to buf and returns the result.
func (m MPI) Encode(buf []byte) []byte {
	bits := m.BitLen()
	buf = append(buf, byte(bits>>8), byte(bits))
	byteLen := m.ByteLen()
	start := len(buf)
	buf = append(buf, make([]byte, byteLen)...)
	m.Int().FillBytes(buf[start:])
	return buf
}

// Decode reads one MPI from the front of data, returning the parsed
// value and the remaining bytes. It rejects headers whose declared
// bit-length is inconsistent with the leading magnitude byte (RFC
// 4880 section 3.2).
func Decode(data []byte) (MPI, []byte, error) {
	if len(data) < 2 {
		return MPI{}, nil, errors.StructuralError("MPI: truncated length header")
	}
	bits := int(data[0])<<8 | int(data[1])
	byteLen := (bits + 7) / 8
	data = data[2:]
	if len(data) < byteLen {
		return MPI{}, nil, errors.StructuralError("MPI: truncated body")
	}
	body, rest := data[:byteLen], data[byteLen:]

	n := new(big.Int).SetBytes(body)
	// The bit-length header must equal the integer's true bit length:
	// it is a format error for it to claim more bits than the leading
	// byte actually has set (a padded leading zero byte) or fewer.
	if n.BitLen() != bits {
		return MPI{}, nil, errors.StructuralError("MPI: bit-length inconsistent with leading byte")
	}
	return MPI{n: n}, rest, nil
}

// DecodeAll decodes count consecutive MPIs from data, returning them
// in order along with any trailing bytes.
func DecodeAll(data []byte, count int) ([]MPI, []byte, error) {
	out := make([]MPI, 0, count)
	for i := 0; i < count; i++ {
		m, rest, err := Decode(data)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, m)
		data = rest
	}
	return out, data, nil
}
