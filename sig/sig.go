// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 *
 * Construction order (new signature, add creation time, add issuer key
 * ID, end hashed subpackets, sign, serialize) follows RFC 4880 section
 * 5.2.4's signature computation steps, adapted to the inline
 * one-pass-signature + literal-data binary message shape of section
 * 5.4 rather than the dash-escaped cleartext flow clearsign.Sign
 * implements for section 7.
 */

// Package sig is the signature-engine façade: it composes
// packet.Signature, packet.OnePassSignature and a packet.Writer's
// hash-tee layer into the inline-signed-message construction RFC 4880
// section 5.4 describes, and the matching streaming verifier.
package sig

import (
	"hash"
	"time"

	"github.com/dpeckett/gopgpsdk/algorithm"
	"github.com/dpeckett/gopgpsdk/errors"
	"github.com/dpeckett/gopgpsdk/packet"
)

// Signer accumulates a signature over data written through an
// associated packet.Writer's hash-tee layer, for an inline (one-pass)
// signed message: a One-Pass Signature packet, the literal data, then
// a trailing Signature packet.
type Signer struct {
	sig  *packet.Signature
	hash hash.Hash
	priv *packet.SecretKey
}

// New starts a signature of sigType over data hashed with hashAlgo,
// to be signed by priv's key algorithm. The creation time (hashed) and
// issuer key ID (unhashed) subpackets are added immediately, matching
// signature_start_plaintext_signature's eager setup.
func New(priv *packet.SecretKey, pubAlgo algorithm.PublicKeyAlgorithm, hashAlgo algorithm.Hash, sigType packet.SignatureType) (*Signer, error) {
	newHash, ok := hashAlgo.New()
	if !ok {
		return nil, errors.UnsupportedError("sig: hash algorithm")
	}
	s := &Signer{
		sig:  packet.NewSignature(sigType, pubAlgo, hashAlgo),
		hash: newHash(),
		priv: priv,
	}
	s.sig.AddCreationTime(time.Now())
	s.sig.AddIssuerKeyID(priv.PublicKey.KeyID)
	return s, nil
}

// WriteOnePassSignature writes the announcing One-Pass Signature
// packet to w, ahead of the literal data it signs.
func (s *Signer) WriteOnePassSignature(w *packet.Writer) error {
	return w.PushOnePassSignature(&packet.OnePassSignature{
		Type:            s.sig.Type,
		HashAlgorithm:   s.sig.HashAlgorithm,
		PubKeyAlgorithm: s.sig.PubKeyAlgorithm,
		KeyID:           s.sig.IssuerKeyID,
		Nested:          false,
	})
}

// InstallHashTee pushes a hash-tee layer onto w that feeds every
// subsequently written byte into the running signature hash. Callers
// must push this after the literal-data header and pop it (w.Pop)
// once the signed content has been fully written, before calling
// Finish.
func (s *Signer) InstallHashTee(w *packet.Writer) {
	w.PushHashTee(s.hash)
}

// Finish finalizes the hashed-subpacket region, signs the accumulated
// digest, and writes the trailing Signature packet to w.
func (s *Signer) Finish(w *packet.Writer) error {
	s.sig.HashedSubpacketsEnd()
	if err := s.sig.Sign(s.hash, s.priv); err != nil {
		return err
	}
	return s.sig.Serialize(w)
}

// Verifier mirrors Signer on the read side: construct one as soon as a
// One-Pass Signature event is seen, feed the literal-data body chunks
// to its Write as they stream in, then call Verify once the
// trailing Signature packet has been parsed.
type Verifier struct {
	hash hash.Hash
}

// NewVerifier starts a verifier for the hash algorithm ops declares.
func NewVerifier(ops *packet.OnePassSignature) (*Verifier, error) {
	newHash, ok := ops.HashAlgorithm.New()
	if !ok {
		return nil, errors.UnsupportedError("sig: hash algorithm")
	}
	return &Verifier{hash: newHash()}, nil
}

// Write feeds bytes of the signed content into the running hash.
func (v *Verifier) Write(p []byte) (int, error) {
	return v.hash.Write(p)
}

// Verify checks the trailing Signature packet against pub using the
// hash accumulated so far.
func (v *Verifier) Verify(trailer *packet.Signature, pub *packet.PublicKey) error {
	return trailer.Verify(v.hash, pub)
}
