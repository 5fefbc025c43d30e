// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 *
 * Public key packet layout is RFC 4880 section 5.5.2; fingerprint and
 * key ID derivation is section 12.2. Trimmed to the RSA/DSA/ElGamal
 * algorithm set: ECDSA/ECDH/EdDSA are out of scope for this engine's
 * tag/algorithm table.
 */

package packet

import (
	"crypto/sha1" //nolint:gosec // mandated by RFC 4880 fingerprint/KeyID construction
	"encoding/binary"
	"io"
	"math/big"
	"time"

	"github.com/dpeckett/gopgpsdk/algorithm"
	"github.com/dpeckett/gopgpsdk/errors"
	"github.com/dpeckett/gopgpsdk/mpi"
)

// PublicKey is a v3 or v4 OpenPGP public key or subkey (RFC 4880
// section 5.5.2).
type PublicKey struct {
	Version      int
	CreationTime time.Time
	DaysValid    int // v3 only
	Algorithm    algorithm.PublicKeyAlgorithm
	IsSubkey     bool

	RSA     *algorithm.RSAPublicKey
	DSA     *algorithm.DSAPublicKey
	ElGamal *algorithm.ElGamalPublicKey

	Fingerprint []byte // 20 bytes, SHA-1
	KeyID       uint64
}

func (pk *PublicKey) parse(r io.Reader) error {
	var header [6]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return errors.WrapIO("public key: read header", err)
	}
	if header[0] != 3 && header[0] != 4 {
		return errors.UnsupportedError("public key version")
	}
	pk.Version = int(header[0])
	pk.CreationTime = time.Unix(int64(binary.BigEndian.Uint32(header[1:5])), 0)
	pk.Algorithm = algorithm.PublicKeyAlgorithm(header[5])

	if pk.Version == 3 {
		var daysValid [2]byte
		if _, err := io.ReadFull(r, daysValid[:]); err != nil {
			return errors.WrapIO("public key: read v3 validity", err)
		}
		pk.DaysValid = int(binary.BigEndian.Uint16(daysValid[:]))
	}

	switch pk.Algorithm {
	case algorithm.PubKeyRSA, algorithm.PubKeyRSAEncryptOnly, algorithm.PubKeyRSASignOnly:
		vals, _, err := readMPIs(r, 2)
		if err != nil {
			return err
		}
		pk.RSA = &algorithm.RSAPublicKey{N: vals[0], E: vals[1]}
	case algorithm.PubKeyDSA:
		vals, _, err := readMPIs(r, 4)
		if err != nil {
			return err
		}
		pk.DSA = &algorithm.DSAPublicKey{P: vals[0], Q: vals[1], G: vals[2], Y: vals[3]}
	case algorithm.PubKeyElGamal:
		vals, _, err := readMPIs(r, 3)
		if err != nil {
			return err
		}
		pk.ElGamal = &algorithm.ElGamalPublicKey{P: vals[0], G: vals[1], Y: vals[2]}
	default:
		return errors.UnsupportedError("public key algorithm: " + pk.Algorithm.String())
	}

	pk.setFingerprintAndKeyID()
	return nil
}

func readMPIs(r io.Reader, count int) ([]*big.Int, []byte, error) {
	var rest []byte
	for i := 0; i < count; i++ {
		hdr := make([]byte, 2)
		if _, err := io.ReadFull(r, hdr); err != nil {
			return nil, nil, errors.WrapIO("public key: read material", err)
		}
		body := make([]byte, ((int(hdr[0])<<8|int(hdr[1]))+7)/8)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, nil, errors.WrapIO("public key: read material", err)
		}
		rest = append(append(rest, hdr...), body...)
	}
	values, remaining, err := mpi.DecodeAll(rest, count)
	if err != nil {
		return nil, nil, err
	}
	out := make([]*big.Int, len(values))
	for i, v := range values {
		out[i] = v.Int()
	}
	return out, remaining, nil
}

// serializeForHash writes the packet in the special 0x99-prefixed form
// (v4) or, for v3 RSA, the form whose SHA-1 over the raw n/e bytes is
// never actually used for fingerprinting (v3 uses a different rule,
// see setFingerprintAndKeyID).
func (pk *PublicKey) serializeForHash(w io.Writer) error {
	var body []byte
	body = pk.appendAlgorithmSpecificBytes(body)

	header := pk.headerBytes()
	pLen := len(header) + len(body)
	if _, err := w.Write([]byte{0x99, byte(pLen >> 8), byte(pLen)}); err != nil {
		return errors.WrapIO("public key: write fingerprint prefix", err)
	}
	if _, err := w.Write(header); err != nil {
		return errors.WrapIO("public key: write fingerprint header", err)
	}
	_, err := w.Write(body)
	return errors.WrapIO("public key: write fingerprint body", err)
}

func (pk *PublicKey) headerBytes() []byte {
	var buf [6]byte
	buf[0] = byte(pk.Version)
	binary.BigEndian.PutUint32(buf[1:5], uint32(pk.CreationTime.Unix()))
	buf[5] = byte(pk.Algorithm)
	return buf[:]
}

func (pk *PublicKey) appendAlgorithmSpecificBytes(buf []byte) []byte {
	switch pk.Algorithm {
	case algorithm.PubKeyRSA, algorithm.PubKeyRSAEncryptOnly, algorithm.PubKeyRSASignOnly:
		buf = mpi.New(pk.RSA.N).Encode(buf)
		buf = mpi.New(pk.RSA.E).Encode(buf)
	case algorithm.PubKeyDSA:
		buf = mpi.New(pk.DSA.P).Encode(buf)
		buf = mpi.New(pk.DSA.Q).Encode(buf)
		buf = mpi.New(pk.DSA.G).Encode(buf)
		buf = mpi.New(pk.DSA.Y).Encode(buf)
	case algorithm.PubKeyElGamal:
		buf = mpi.New(pk.ElGamal.P).Encode(buf)
		buf = mpi.New(pk.ElGamal.G).Encode(buf)
		buf = mpi.New(pk.ElGamal.Y).Encode(buf)
	}
	return buf
}

// Serialize writes the full packet (header + body) to w.
func (pk *PublicKey) Serialize(w io.Writer) error {
	var body []byte
	body = append(body, pk.headerBytes()...)
	body = pk.appendAlgorithmSpecificBytes(body)

	tag := TagPublicKey
	if pk.IsSubkey {
		tag = TagPublicSubkey
	}
	if err := writeHeader(w, tag, len(body)); err != nil {
		return err
	}
	_, err := w.Write(body)
	return errors.WrapIO("public key: write body", err)
}

// setFingerprintAndKeyID computes the fingerprint and key ID per RFC
// 4880 section 12.2 (v4: SHA-1 of 0x99||len16||body) or the v3 rule
// (key ID is the low 8 octets of the RSA modulus n; no fingerprint
// function is defined for v3 beyond that, so Fingerprint is left nil).
func (pk *PublicKey) setFingerprintAndKeyID() {
	if pk.Version == 3 {
		if pk.RSA != nil {
			nBytes := pk.RSA.N.Bytes()
			if len(nBytes) >= 8 {
				pk.KeyID = binary.BigEndian.Uint64(nBytes[len(nBytes)-8:])
			}
		}
		return
	}

	h := sha1.New() //nolint:gosec // RFC 4880 mandates SHA-1 for the v4 fingerprint
	_ = pk.serializeForHash(h)
	pk.Fingerprint = h.Sum(nil)
	pk.KeyID = binary.BigEndian.Uint64(pk.Fingerprint[12:20])
}
