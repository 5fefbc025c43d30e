// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package packet

import (
	"encoding/binary"
	"io"

	"github.com/dpeckett/gopgpsdk/algorithm"
	"github.com/dpeckett/gopgpsdk/errors"
)

// OnePassSignature precedes a signed message's literal data, letting a
// streaming verifier start hashing before the trailing Signature
// packet (which carries the actual signature value) has been seen
// (RFC 4880 section 5.4).
type OnePassSignature struct {
	Type         SignatureType
	HashAlgorithm   algorithm.Hash
	PubKeyAlgorithm algorithm.PublicKeyAlgorithm
	KeyID        uint64
	Nested       bool
}

func (ops *OnePassSignature) parse(r io.Reader) error {
	var buf [13]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return errors.WrapIO("one-pass signature: read body", err)
	}
	if buf[0] != 3 {
		return errors.UnsupportedError("one-pass signature version")
	}
	ops.Type = SignatureType(buf[1])
	ops.HashAlgorithm = algorithm.Hash(buf[2])
	ops.PubKeyAlgorithm = algorithm.PublicKeyAlgorithm(buf[3])
	ops.KeyID = binary.BigEndian.Uint64(buf[4:12])
	ops.Nested = buf[12] == 0
	return nil
}

// Serialize writes the full one-pass signature packet to w.
func (ops *OnePassSignature) Serialize(w io.Writer) error {
	body := make([]byte, 13)
	body[0] = 3
	body[1] = byte(ops.Type)
	body[2] = byte(ops.HashAlgorithm)
	body[3] = byte(ops.PubKeyAlgorithm)
	binary.BigEndian.PutUint64(body[4:12], ops.KeyID)
	if !ops.Nested {
		body[12] = 1
	}
	if err := writeHeader(w, TagOnePassSignature, len(body)); err != nil {
		return err
	}
	_, err := w.Write(body)
	return errors.WrapIO("one-pass signature: write body", err)
}
