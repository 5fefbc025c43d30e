// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 *
 * The Simple/Salted/Iterated hash-looping algorithms below implement
 * RFC 4880 section 3.7.1's three S2K specifier types, generalized to a
 * single Params type that also knows how to parse and serialize
 * itself, and extended with the Argon2 mode from the OpenPGP
 * crypto-refresh draft.
 */

// Package s2k implements the OpenPGP string-to-key transforms (RFC
// 4880 section 3.7) used to protect secret-key packets and symmetric-
// key encrypted session keys with a passphrase.
package s2k

import (
	"crypto/rand"
	"hash"
	"io"

	"github.com/dpeckett/gopgpsdk/errors"
	"golang.org/x/crypto/argon2"
)

// Mode identifies which string-to-key transform a Params describes.
type Mode byte

const (
	Simple         Mode = 0
	Salted         Mode = 1
	IteratedSalted Mode = 3
	Argon2Mode     Mode = 4
	GNUDummy       Mode = 101
)

const argon2SaltSize = 16

// Params holds the on-wire parameters of a string-to-key specifier.
// The zero value is not valid; construct with GenerateSalted,
// GenerateArgon2 or Parse.
type Params struct {
	Mode   Mode
	HashID byte // hash algorithm ID, Simple/Salted/IteratedSalted only

	Salt      []byte
	CountByte byte // encoded iteration count, IteratedSalted only

	// Argon2 parameters.
	Passes      byte
	Parallelism byte
	MemoryExp   byte
}

// HashFunc resolves HashID to a hash constructor. Supplied by the
// caller (the algorithm package) to avoid an import cycle between
// s2k and algorithm.
type HashFunc func(id byte) (func() hash.Hash, bool)

// EncodedLen returns the number of bytes Serialize will write.
func (p *Params) EncodedLen() int {
	switch p.Mode {
	case Simple:
		return 2
	case Salted:
		return 2 + 8
	case IteratedSalted:
		return 2 + 8 + 1
	case Argon2Mode:
		return 1 + argon2SaltSize + 3
	case GNUDummy:
		return 2 + 4
	default:
		return 1
	}
}

// Serialize writes the wire form of p to buf, returning the result.
func (p *Params) Serialize(buf []byte) []byte {
	buf = append(buf, byte(p.Mode))
	switch p.Mode {
	case Simple:
		buf = append(buf, p.HashID)
	case Salted:
		buf = append(buf, p.HashID)
		buf = append(buf, p.Salt...)
	case IteratedSalted:
		buf = append(buf, p.HashID)
		buf = append(buf, p.Salt...)
		buf = append(buf, p.CountByte)
	case Argon2Mode:
		buf = append(buf, p.Salt...)
		buf = append(buf, p.Passes, p.Parallelism, p.MemoryExp)
	case GNUDummy:
		// GNU-dummy s2k: mode octet, hash octet, "GNU", then a single
		// GNU mode byte.
		buf = append(buf, p.HashID)
		buf = append(buf, 'G', 'N', 'U', 1)
	}
	return buf
}

// Parse reads one string-to-key specifier from r.
func Parse(r io.Reader) (*Params, error) {
	var modeByte [1]byte
	if _, err := io.ReadFull(r, modeByte[:]); err != nil {
		return nil, errors.WrapIO("s2k: read mode", err)
	}
	p := &Params{Mode: Mode(modeByte[0])}

	switch p.Mode {
	case Simple:
		if err := readByte(r, &p.HashID); err != nil {
			return nil, err
		}
	case Salted:
		if err := readByte(r, &p.HashID); err != nil {
			return nil, err
		}
		p.Salt = make([]byte, 8)
		if _, err := io.ReadFull(r, p.Salt); err != nil {
			return nil, errors.WrapIO("s2k: read salt", err)
		}
	case IteratedSalted:
		if err := readByte(r, &p.HashID); err != nil {
			return nil, err
		}
		p.Salt = make([]byte, 8)
		if _, err := io.ReadFull(r, p.Salt); err != nil {
			return nil, errors.WrapIO("s2k: read salt", err)
		}
		if err := readByte(r, &p.CountByte); err != nil {
			return nil, err
		}
	case Argon2Mode:
		p.Salt = make([]byte, argon2SaltSize)
		if _, err := io.ReadFull(r, p.Salt); err != nil {
			return nil, errors.WrapIO("s2k: read argon2 salt", err)
		}
		var rest [3]byte
		if _, err := io.ReadFull(r, rest[:]); err != nil {
			return nil, errors.WrapIO("s2k: read argon2 params", err)
		}
		p.Passes, p.Parallelism, p.MemoryExp = rest[0], rest[1], rest[2]
	case GNUDummy:
		if err := readByte(r, &p.HashID); err != nil {
			return nil, err
		}
		var gnu [4]byte
		if _, err := io.ReadFull(r, gnu[:]); err != nil {
			return nil, errors.WrapIO("s2k: read GNU extension", err)
		}
		if gnu[0] != 'G' || gnu[1] != 'N' || gnu[2] != 'U' {
			return nil, errors.StructuralError("s2k: malformed GNU-dummy extension")
		}
	default:
		return nil, errors.UnsupportedError("s2k mode")
	}
	return p, nil
}

func readByte(r io.Reader, out *byte) error {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return errors.WrapIO("s2k: read byte", err)
	}
	*out = b[0]
	return nil
}

// Key derives an out-length key from passphrase according to p,
// resolving HashID via hf (ignored for Argon2Mode).
func (p *Params) Key(passphrase []byte, out []byte, hf HashFunc) error {
	switch p.Mode {
	case Simple:
		newHash, ok := hf(p.HashID)
		if !ok {
			return errors.UnsupportedError("s2k hash algorithm")
		}
		salted(out, newHash(), passphrase, nil)
		return nil
	case Salted:
		newHash, ok := hf(p.HashID)
		if !ok {
			return errors.UnsupportedError("s2k hash algorithm")
		}
		salted(out, newHash(), passphrase, p.Salt)
		return nil
	case IteratedSalted:
		newHash, ok := hf(p.HashID)
		if !ok {
			return errors.UnsupportedError("s2k hash algorithm")
		}
		iterated(out, newHash(), passphrase, p.Salt, DecodeCount(p.CountByte))
		return nil
	case Argon2Mode:
		key := argon2.IDKey(passphrase, p.Salt, uint32(p.Passes), decodeMemory(p.MemoryExp), p.Parallelism, uint32(len(out)))
		copy(out, key)
		return nil
	case GNUDummy:
		return errors.InvalidArgumentError("s2k: GNU-dummy key has no passphrase-derived material")
	default:
		return errors.UnsupportedError("s2k mode")
	}
}

var zeroByte [1]byte

// salted implements RFC 4880 3.7.1.1/3.7.1.2: repeatedly hash
// (i zero-bytes || salt || passphrase) for increasing i until enough
// output bytes have been produced.
func salted(out []byte, h hash.Hash, passphrase, salt []byte) {
	done := 0
	var digest []byte
	for i := 0; done < len(out); i++ {
		h.Reset()
		for j := 0; j < i; j++ {
			h.Write(zeroByte[:])
		}
		h.Write(salt)
		h.Write(passphrase)
		digest = h.Sum(digest[:0])
		done += copy(out[done:], digest)
	}
}

// iterated implements RFC 4880 3.7.1.3: like salted, but (salt ||
// passphrase) is repeated until count bytes have been hashed, per
// output block.
func iterated(out []byte, h hash.Hash, passphrase, salt []byte, count int) {
	combined := make([]byte, len(salt)+len(passphrase))
	copy(combined, salt)
	copy(combined[len(salt):], passphrase)
	if count < len(combined) {
		count = len(combined)
	}

	done := 0
	var digest []byte
	for i := 0; done < len(out); i++ {
		h.Reset()
		for j := 0; j < i; j++ {
			h.Write(zeroByte[:])
		}
		written := 0
		for written < count {
			todo := len(combined)
			if written+todo > count {
				todo = count - written
			}
			h.Write(combined[:todo])
			written += todo
		}
		digest = h.Sum(digest[:0])
		done += copy(out[done:], digest)
	}
}

// EncodeCount converts an iteration count in [1024, 65011712] to the
// single-octet encoding used on the wire.
func EncodeCount(count int) byte {
	if count < 1024 {
		count = 1024
	}
	if count > 65011712 {
		count = 65011712
	}
	for encoded := 0; encoded < 256; encoded++ {
		if DecodeCount(byte(encoded)) >= count {
			return byte(encoded)
		}
	}
	return 255
}

// DecodeCount is the inverse of EncodeCount.
func DecodeCount(c byte) int {
	return (16 + int(c&15)) << (uint(c>>4) + 6)
}

func decodeMemory(memoryExp byte) uint32 {
	return uint32(1) << memoryExp
}

// GenerateSalted returns salted/iterated-salted parameters with fresh
// random salt, ready to protect a passphrase.
func GenerateSalted(hashID byte, iterated bool, count int) (*Params, error) {
	p := &Params{HashID: hashID}
	if iterated {
		p.Mode = IteratedSalted
		p.CountByte = EncodeCount(count)
	} else {
		p.Mode = Salted
	}
	p.Salt = make([]byte, 8)
	if _, err := io.ReadFull(rand.Reader, p.Salt); err != nil {
		return nil, errors.WrapIO("s2k: generate salt", err)
	}
	return p, nil
}

// GenerateArgon2 returns Argon2id parameters with fresh random salt.
func GenerateArgon2(passes, parallelism, memoryExp byte) (*Params, error) {
	p := &Params{Mode: Argon2Mode, Passes: passes, Parallelism: parallelism, MemoryExp: memoryExp}
	p.Salt = make([]byte, argon2SaltSize)
	if _, err := io.ReadFull(rand.Reader, p.Salt); err != nil {
		return nil, errors.WrapIO("s2k: generate argon2 salt", err)
	}
	return p, nil
}
