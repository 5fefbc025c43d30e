// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package algorithm is the primitives façade of the OpenPGP core: it
// exposes hashes, symmetric ciphers and public-key operations behind a
// uniform, algorithm-ID-keyed interface. Bignum and block-cipher math
// itself is delegated to the standard library and golang.org/x/crypto
// — this package only resolves OpenPGP algorithm IDs to those
// primitives.
package algorithm

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"

	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // deprecated algorithm, required for legacy keys
)

// Hash identifies a hash algorithm by its RFC 4880 section 9.4 ID.
type Hash byte

const (
	HashMD5       Hash = 1
	HashSHA1      Hash = 2
	HashRIPEMD160 Hash = 3
	HashSHA256    Hash = 8
	HashSHA384    Hash = 9
	HashSHA512    Hash = 10
	HashSHA224    Hash = 11
)

var hashNames = map[Hash]string{
	HashMD5:       "MD5",
	HashSHA1:      "SHA1",
	HashRIPEMD160: "RIPEMD160",
	HashSHA256:    "SHA256",
	HashSHA384:    "SHA384",
	HashSHA512:    "SHA512",
	HashSHA224:    "SHA224",
}

func (h Hash) String() string {
	if name, ok := hashNames[h]; ok {
		return name
	}
	return "unknown"
}

// New returns a constructor for h's hash.Hash, or false if h is not a
// supported algorithm ID.
func (h Hash) New() (func() hash.Hash, bool) {
	switch h {
	case HashMD5:
		return md5.New, true
	case HashSHA1:
		return sha1.New, true
	case HashRIPEMD160:
		return ripemd160.New, true
	case HashSHA256:
		return sha256.New, true
	case HashSHA384:
		return sha512.New384, true
	case HashSHA512:
		return sha512.New, true
	case HashSHA224:
		return sha256.New224, true
	default:
		return nil, false
	}
}

// Size returns the digest size in bytes for h, or 0 if unsupported.
func (h Hash) Size() int {
	newHash, ok := h.New()
	if !ok {
		return 0
	}
	return newHash().Size()
}

// HashFunc adapts Hash to the s2k.HashFunc signature, so s2k.Params.Key
// can resolve hash IDs without s2k importing algorithm (avoiding an
// import cycle, since algorithm will eventually depend on packet-level
// helpers that s2k does not need).
func HashFunc(id byte) (func() hash.Hash, bool) {
	return Hash(id).New()
}
