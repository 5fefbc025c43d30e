// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 *
 * v3 signature layout is RFC 4880 section 5.2's original-format
 * packet body. v4's hashed-subpacket region and trailer construction
 * (0x04 0xff || be32(6+hashedLen), appended to the hashed material
 * before it is digested) is section 5.2.3/5.2.4, implemented here
 * across the RSA/DSA/ElGamal algorithm set.
 */

package packet

import (
	"crypto/subtle"
	"encoding/binary"
	"hash"
	"io"
	"math/big"
	"time"

	"github.com/dpeckett/gopgpsdk/algorithm"
	"github.com/dpeckett/gopgpsdk/errors"
	"github.com/dpeckett/gopgpsdk/mpi"
)

// SignatureType identifies what a signature certifies (RFC 4880
// section 5.2.1).
type SignatureType byte

const (
	SigTypeBinary               SignatureType = 0x00
	SigTypeText                 SignatureType = 0x01
	SigTypeStandalone           SignatureType = 0x02
	SigTypeGenericCert          SignatureType = 0x10
	SigTypePersonaCert          SignatureType = 0x11
	SigTypeCasualCert           SignatureType = 0x12
	SigTypePositiveCert         SignatureType = 0x13
	SigTypeSubkeyBinding        SignatureType = 0x18
	SigTypePrimaryKeyBinding    SignatureType = 0x19
	SigTypeDirectKey            SignatureType = 0x1f
	SigTypeKeyRevocation        SignatureType = 0x20
	SigTypeSubkeyRevocation     SignatureType = 0x28
	SigTypeCertRevocation       SignatureType = 0x30
	SigTypeTimestamp            SignatureType = 0x40
	SigTypeThirdPartyConfirmation SignatureType = 0x50
)

// SubpacketType identifies a v4 signature subpacket's content (RFC
// 4880 section 5.2.3.1).
type SubpacketType byte

const (
	SubpacketCreationTime         SubpacketType = 2
	SubpacketSigExpirationTime    SubpacketType = 3
	SubpacketExportableCert       SubpacketType = 4
	SubpacketTrustSignature       SubpacketType = 5
	SubpacketRegularExpression    SubpacketType = 6
	SubpacketRevocable            SubpacketType = 7
	SubpacketKeyExpirationTime    SubpacketType = 9
	SubpacketPreferredSymmetric   SubpacketType = 11
	SubpacketRevocationKey        SubpacketType = 12
	SubpacketIssuerKeyID          SubpacketType = 16
	SubpacketNotationData         SubpacketType = 20
	SubpacketPreferredHash        SubpacketType = 21
	SubpacketPreferredCompression SubpacketType = 22
	SubpacketKeyServerPrefs       SubpacketType = 23
	SubpacketPreferredKeyServer   SubpacketType = 24
	SubpacketPrimaryUserID        SubpacketType = 25
	SubpacketPolicyURI            SubpacketType = 26
	SubpacketKeyFlags             SubpacketType = 27
	SubpacketSignerUserID         SubpacketType = 28
	SubpacketRevocationReason     SubpacketType = 29
	SubpacketFeatures             SubpacketType = 30
	SubpacketSignatureTarget      SubpacketType = 31
	SubpacketEmbeddedSignature    SubpacketType = 32
	SubpacketIssuerFingerprint    SubpacketType = 33
)

// Subpacket is one TLV entry of a v4 signature's hashed or unhashed
// subpacket region (RFC 4880 section 5.2.3.1). Unknown non-critical
// subpackets round-trip as their raw Type/Data; unknown critical
// subpackets fail parsing, per that section's critical-bit rule.
type Subpacket struct {
	Type     SubpacketType
	Critical bool
	Data     []byte
}

func parseSubpackets(data []byte) ([]Subpacket, error) {
	var subs []Subpacket
	for len(data) > 0 {
		var length int
		switch {
		case data[0] < 192:
			length = int(data[0])
			data = data[1:]
		case data[0] < 255:
			if len(data) < 2 {
				return nil, errors.StructuralError("signature: truncated subpacket length")
			}
			length = (int(data[0])-192)<<8 + int(data[1]) + 192
			data = data[2:]
		default:
			if len(data) < 5 {
				return nil, errors.StructuralError("signature: truncated subpacket length")
			}
			length = int(binary.BigEndian.Uint32(data[1:5]))
			data = data[5:]
		}
		if length == 0 || length > len(data) {
			return nil, errors.StructuralError("signature: subpacket length out of range")
		}
		typeByte := data[0]
		sub := Subpacket{
			Type:     SubpacketType(typeByte &^ 0x80),
			Critical: typeByte&0x80 != 0,
			Data:     data[1:length],
		}
		subs = append(subs, sub)
		data = data[length:]
	}
	return subs, nil
}

func serializeSubpackets(buf []byte, subs []Subpacket) []byte {
	for _, sub := range subs {
		length := len(sub.Data) + 1
		switch {
		case length < 192:
			buf = append(buf, byte(length))
		case length < 8384:
			l := length - 192
			buf = append(buf, byte((l>>8)+192), byte(l&0xff))
		default:
			buf = append(buf, 255,
				byte(length>>24), byte(length>>16), byte(length>>8), byte(length))
		}
		typeByte := byte(sub.Type)
		if sub.Critical {
			typeByte |= 0x80
		}
		buf = append(buf, typeByte)
		buf = append(buf, sub.Data...)
	}
	return buf
}

// Signature is a v3 or v4 OpenPGP signature packet (RFC 4880 section
// 5.2).
type Signature struct {
	Version      int
	Type         SignatureType
	PubKeyAlgorithm algorithm.PublicKeyAlgorithm
	HashAlgorithm   algorithm.Hash
	CreationTime time.Time
	IssuerKeyID  uint64
	HashTag      [2]byte

	HashedSubpackets   []Subpacket
	UnhashedSubpackets []Subpacket

	// rawHashedSubpackets is the literal bytes of the hashed-subpacket
	// region as it appeared on the wire (or as serialized by
	// HashedSubpacketsEnd before signing); v4 verification hashes these
	// exact bytes, not a re-derivation from HashedSubpackets.
	rawHashedSubpackets []byte

	RSASignature *big.Int
	DSASigR      *big.Int
	DSASigS      *big.Int
	Opaque       []byte // unknown/unsupported algorithm signature material
}

func (sig *Signature) parse(r io.Reader) error {
	var versionByte [1]byte
	if _, err := io.ReadFull(r, versionByte[:]); err != nil {
		return errors.WrapIO("signature: read version", err)
	}
	sig.Version = int(versionByte[0])

	switch sig.Version {
	case 3:
		return sig.parseV3(r)
	case 4:
		return sig.parseV4(r)
	default:
		return errors.UnsupportedError("signature version")
	}
}

func (sig *Signature) parseV3(r io.Reader) error {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:1]); err != nil {
		return errors.WrapIO("signature: read hashed material length", err)
	}
	if buf[0] != 5 {
		return errors.StructuralError("signature: invalid v3 hashed material length")
	}
	if _, err := io.ReadFull(r, buf[:5]); err != nil {
		return errors.WrapIO("signature: read v3 hashed material", err)
	}
	sig.Type = SignatureType(buf[0])
	sig.CreationTime = time.Unix(int64(binary.BigEndian.Uint32(buf[1:5])), 0)

	if _, err := io.ReadFull(r, buf[:8]); err != nil {
		return errors.WrapIO("signature: read issuer key id", err)
	}
	sig.IssuerKeyID = binary.BigEndian.Uint64(buf[:8])

	if _, err := io.ReadFull(r, buf[:2]); err != nil {
		return errors.WrapIO("signature: read algorithm ids", err)
	}
	sig.PubKeyAlgorithm = algorithm.PublicKeyAlgorithm(buf[0])
	sig.HashAlgorithm = algorithm.Hash(buf[1])

	if _, err := io.ReadFull(r, sig.HashTag[:]); err != nil {
		return errors.WrapIO("signature: read hash tag", err)
	}

	return sig.parseSignatureMaterial(r)
}

func (sig *Signature) parseV4(r io.Reader) error {
	var buf [5]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return errors.WrapIO("signature: read v4 header", err)
	}
	sig.Type = SignatureType(buf[0])
	sig.PubKeyAlgorithm = algorithm.PublicKeyAlgorithm(buf[1])
	sig.HashAlgorithm = algorithm.Hash(buf[2])
	hashedLen := int(binary.BigEndian.Uint16(buf[3:5]))

	hashedData := make([]byte, hashedLen)
	if _, err := io.ReadFull(r, hashedData); err != nil {
		return errors.WrapIO("signature: read hashed subpackets", err)
	}
	sig.rawHashedSubpackets = hashedData
	subs, err := parseSubpackets(hashedData)
	if err != nil {
		return err
	}
	sig.HashedSubpackets = subs

	var unhashedLenBuf [2]byte
	if _, err := io.ReadFull(r, unhashedLenBuf[:]); err != nil {
		return errors.WrapIO("signature: read unhashed length", err)
	}
	unhashedLen := int(binary.BigEndian.Uint16(unhashedLenBuf[:]))
	unhashedData := make([]byte, unhashedLen)
	if _, err := io.ReadFull(r, unhashedData); err != nil {
		return errors.WrapIO("signature: read unhashed subpackets", err)
	}
	unhashedSubs, err := parseSubpackets(unhashedData)
	if err != nil {
		return err
	}
	sig.UnhashedSubpackets = unhashedSubs

	for _, sub := range append(append([]Subpacket{}, subs...), unhashedSubs...) {
		switch sub.Type {
		case SubpacketCreationTime:
			if len(sub.Data) == 4 {
				sig.CreationTime = time.Unix(int64(binary.BigEndian.Uint32(sub.Data)), 0)
			}
		case SubpacketIssuerKeyID:
			if len(sub.Data) == 8 {
				sig.IssuerKeyID = binary.BigEndian.Uint64(sub.Data)
			}
		default:
			if sub.Critical {
				if !isKnownSubpacket(sub.Type) {
					return errors.StructuralError("signature: unknown critical subpacket")
				}
			}
		}
	}

	if _, err := io.ReadFull(r, sig.HashTag[:]); err != nil {
		return errors.WrapIO("signature: read hash tag", err)
	}

	return sig.parseSignatureMaterial(r)
}

func isKnownSubpacket(t SubpacketType) bool {
	switch t {
	case SubpacketCreationTime, SubpacketSigExpirationTime, SubpacketExportableCert,
		SubpacketTrustSignature, SubpacketRegularExpression, SubpacketRevocable,
		SubpacketKeyExpirationTime, SubpacketPreferredSymmetric, SubpacketRevocationKey,
		SubpacketIssuerKeyID, SubpacketNotationData, SubpacketPreferredHash,
		SubpacketPreferredCompression, SubpacketKeyServerPrefs, SubpacketPreferredKeyServer,
		SubpacketPrimaryUserID, SubpacketPolicyURI, SubpacketKeyFlags, SubpacketSignerUserID,
		SubpacketRevocationReason, SubpacketFeatures, SubpacketSignatureTarget,
		SubpacketEmbeddedSignature, SubpacketIssuerFingerprint:
		return true
	}
	// 100-110 are reserved for private/experimental use and are never
	// "unknown" in the sense that matters for the critical-bit rule.
	return t >= 100 && t <= 110
}

func (sig *Signature) parseSignatureMaterial(r io.Reader) error {
	rest, err := io.ReadAll(r)
	if err != nil {
		return errors.WrapIO("signature: read signature material", err)
	}
	switch sig.PubKeyAlgorithm {
	case algorithm.PubKeyRSA, algorithm.PubKeyRSASignOnly:
		values, _, err := mpi.DecodeAll(rest, 1)
		if err != nil {
			return err
		}
		sig.RSASignature = values[0].Int()
	case algorithm.PubKeyDSA:
		values, _, err := mpi.DecodeAll(rest, 2)
		if err != nil {
			return err
		}
		sig.DSASigR, sig.DSASigS = values[0].Int(), values[1].Int()
	default:
		sig.Opaque = rest
	}
	return nil
}

// NewSignature creates a v4 signature ready for AddCreationTime /
// AddIssuerKeyID / AddSubpacket, then HashedSubpacketsEnd, then Sign.
func NewSignature(sigType SignatureType, pubAlgo algorithm.PublicKeyAlgorithm, hashAlgo algorithm.Hash) *Signature {
	return &Signature{Version: 4, Type: sigType, PubKeyAlgorithm: pubAlgo, HashAlgorithm: hashAlgo}
}

// AddCreationTime appends a Signature Creation Time hashed subpacket.
func (sig *Signature) AddCreationTime(t time.Time) {
	sig.CreationTime = t
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(t.Unix()))
	sig.HashedSubpackets = append(sig.HashedSubpackets, Subpacket{Type: SubpacketCreationTime, Critical: true, Data: buf[:]})
}

// AddIssuerKeyID appends an Issuer Key ID subpacket (unhashed, per
// common practice; readers must not rely on it being hashed).
func (sig *Signature) AddIssuerKeyID(keyID uint64) {
	sig.IssuerKeyID = keyID
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], keyID)
	sig.UnhashedSubpackets = append(sig.UnhashedSubpackets, Subpacket{Type: SubpacketIssuerKeyID, Data: buf[:]})
}

// AddSubpacket appends an arbitrary hashed or unhashed subpacket.
func (sig *Signature) AddSubpacket(sub Subpacket, hashed bool) {
	if hashed {
		sig.HashedSubpackets = append(sig.HashedSubpackets, sub)
	} else {
		sig.UnhashedSubpackets = append(sig.UnhashedSubpackets, sub)
	}
}

// HashedSubpacketsEnd freezes the hashed-subpacket region's wire bytes
// ahead of signing, matching §6's signature_hashed_subpackets_end.
func (sig *Signature) HashedSubpacketsEnd() {
	sig.rawHashedSubpackets = serializeSubpackets(nil, sig.HashedSubpackets)
}

// hashSuffix returns the bytes hashed after the signed data itself:
// the v4 prefix (version, type, key alg, hash alg, hashed subpackets)
// followed by the trailer 0x04 0xff || be32(len(prefix)).
func (sig *Signature) hashSuffix() []byte {
	var prefix []byte
	prefix = append(prefix, 4, byte(sig.Type), byte(sig.PubKeyAlgorithm), byte(sig.HashAlgorithm))
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(sig.rawHashedSubpackets)))
	prefix = append(prefix, lenBuf[:]...)
	prefix = append(prefix, sig.rawHashedSubpackets...)

	var trailer [6]byte
	trailer[0], trailer[1] = 4, 0xff
	binary.BigEndian.PutUint32(trailer[2:], uint32(len(prefix)))
	return append(prefix, trailer[:]...)
}

// digest finalizes h (already fed the signed content, canonicalized
// per §4.4 for text signatures) with the v4 hash suffix and returns
// the resulting digest, also recording its first two bytes as
// HashTag.
func (sig *Signature) digest(h hash.Hash) []byte {
	if sig.Version == 4 {
		h.Write(sig.hashSuffix())
	}
	sum := h.Sum(nil)
	copy(sig.HashTag[:], sum[:2])
	return sum
}

// Sign finalizes h with the signature trailer and signs the resulting
// digest with priv, populating the algorithm-specific signature
// fields.
func (sig *Signature) Sign(h hash.Hash, priv *SecretKey) error {
	digest := sig.digest(h)

	switch sig.PubKeyAlgorithm {
	case algorithm.PubKeyRSA, algorithm.PubKeyRSASignOnly:
		if priv.RSA == nil {
			return errors.InvalidArgumentError("signature: key is not RSA")
		}
		s, err := algorithm.RSASign(*priv.RSA, sig.HashAlgorithm, digest)
		if err != nil {
			return err
		}
		sig.RSASignature = s
	case algorithm.PubKeyDSA:
		if priv.DSA == nil {
			return errors.InvalidArgumentError("signature: key is not DSA")
		}
		r, s, err := algorithm.DSASign(*priv.DSA, digest)
		if err != nil {
			return err
		}
		sig.DSASigR, sig.DSASigS = r, s
	default:
		return errors.UnsupportedError("signature: signing algorithm")
	}
	return nil
}

// Verify finalizes h with the signature trailer and checks the
// signature against pub. It first compares HashTag as a fast reject
// (RFC 4880 section 5.2.4), then performs the full algorithm-specific
// verification.
func (sig *Signature) Verify(h hash.Hash, pub *PublicKey) error {
	digest := sig.digestForVerify(h)
	if !sig.hashTagMatches(digest) {
		return errors.SignatureError("signature: hash tag mismatch")
	}

	switch sig.PubKeyAlgorithm {
	case algorithm.PubKeyRSA, algorithm.PubKeyRSASignOnly:
		if pub.RSA == nil {
			return errors.InvalidArgumentError("signature: key is not RSA")
		}
		return algorithm.RSAVerify(*pub.RSA, sig.HashAlgorithm, digest, sig.RSASignature)
	case algorithm.PubKeyDSA:
		if pub.DSA == nil {
			return errors.InvalidArgumentError("signature: key is not DSA")
		}
		return algorithm.DSAVerify(*pub.DSA, digest, sig.DSASigR, sig.DSASigS)
	default:
		return errors.UnsupportedError("signature: verification algorithm")
	}
}

// hashTagMatches reports whether digest's first two bytes match the
// signature's stored HashTag, the cheap reject RFC 4880 section 5.2.4
// describes before the full algorithm-specific check runs.
func (sig *Signature) hashTagMatches(digest []byte) bool {
	return len(digest) >= 2 && subtle.ConstantTimeCompare(digest[:2], sig.HashTag[:]) == 1
}

func (sig *Signature) digestForVerify(h hash.Hash) []byte {
	if sig.Version == 4 {
		h.Write(sig.hashSuffix())
	}
	return h.Sum(nil)
}

// Serialize writes the full signature packet to w.
func (sig *Signature) Serialize(w io.Writer) error {
	var body []byte
	switch sig.Version {
	case 3:
		body = sig.serializeV3Body()
	case 4:
		body = sig.serializeV4Body()
	default:
		return errors.UnsupportedError("signature version")
	}
	if err := writeHeader(w, TagSignature, len(body)); err != nil {
		return err
	}
	_, err := w.Write(body)
	return errors.WrapIO("signature: write body", err)
}

func (sig *Signature) serializeV3Body() []byte {
	buf := []byte{3, 5, byte(sig.Type)}
	var tsBuf [4]byte
	binary.BigEndian.PutUint32(tsBuf[:], uint32(sig.CreationTime.Unix()))
	buf = append(buf, tsBuf[:]...)
	var idBuf [8]byte
	binary.BigEndian.PutUint64(idBuf[:], sig.IssuerKeyID)
	buf = append(buf, idBuf[:]...)
	buf = append(buf, byte(sig.PubKeyAlgorithm), byte(sig.HashAlgorithm))
	buf = append(buf, sig.HashTag[:]...)
	return sig.appendSignatureMaterial(buf)
}

func (sig *Signature) serializeV4Body() []byte {
	buf := []byte{4, byte(sig.Type), byte(sig.PubKeyAlgorithm), byte(sig.HashAlgorithm)}
	var hashedLenBuf [2]byte
	binary.BigEndian.PutUint16(hashedLenBuf[:], uint16(len(sig.rawHashedSubpackets)))
	buf = append(buf, hashedLenBuf[:]...)
	buf = append(buf, sig.rawHashedSubpackets...)

	unhashed := serializeSubpackets(nil, sig.UnhashedSubpackets)
	var unhashedLenBuf [2]byte
	binary.BigEndian.PutUint16(unhashedLenBuf[:], uint16(len(unhashed)))
	buf = append(buf, unhashedLenBuf[:]...)
	buf = append(buf, unhashed...)

	buf = append(buf, sig.HashTag[:]...)
	return sig.appendSignatureMaterial(buf)
}

func (sig *Signature) appendSignatureMaterial(buf []byte) []byte {
	switch sig.PubKeyAlgorithm {
	case algorithm.PubKeyRSA, algorithm.PubKeyRSASignOnly:
		buf = mpi.New(sig.RSASignature).Encode(buf)
	case algorithm.PubKeyDSA:
		buf = mpi.New(sig.DSASigR).Encode(buf)
		buf = mpi.New(sig.DSASigS).Encode(buf)
	default:
		buf = append(buf, sig.Opaque...)
	}
	return buf
}
