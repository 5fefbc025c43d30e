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
	"math/big"

	"github.com/dpeckett/gopgpsdk/algorithm"
	"github.com/dpeckett/gopgpsdk/errors"
	"github.com/dpeckett/gopgpsdk/mpi"
	"github.com/dpeckett/gopgpsdk/s2k"
)

// EncryptedKey is a Public-Key Encrypted Session Key packet (RFC 4880
// section 5.1): a session key encrypted to one recipient's public key.
type EncryptedKey struct {
	Version   int
	KeyID     uint64
	Algorithm algorithm.PublicKeyAlgorithm

	RSACiphertext *big.Int
	ElGamalC1     *big.Int
	ElGamalC2     *big.Int

	// SessionKeyCipher and SessionKey are populated by Decrypt: the
	// decrypted payload is itself {cipher ID, session key, 2-byte
	// checksum}, per section 5.1.
	SessionKeyCipher algorithm.Cipher
	SessionKey       []byte
}

func (ek *EncryptedKey) parse(r io.Reader) error {
	var header [9]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return errors.WrapIO("encrypted key: read header", err)
	}
	ek.Version = int(header[0])
	if ek.Version != 3 {
		return errors.UnsupportedError("encrypted key version")
	}
	ek.KeyID = binary.BigEndian.Uint64(header[1:9])
	ek.Algorithm = algorithm.PublicKeyAlgorithm(0)

	var algByte [1]byte
	if _, err := io.ReadFull(r, algByte[:]); err != nil {
		return errors.WrapIO("encrypted key: read algorithm", err)
	}
	ek.Algorithm = algorithm.PublicKeyAlgorithm(algByte[0])

	rest, err := io.ReadAll(r)
	if err != nil {
		return errors.WrapIO("encrypted key: read material", err)
	}

	switch ek.Algorithm {
	case algorithm.PubKeyRSA, algorithm.PubKeyRSAEncryptOnly:
		values, _, err := mpi.DecodeAll(rest, 1)
		if err != nil {
			return err
		}
		ek.RSACiphertext = values[0].Int()
	case algorithm.PubKeyElGamal:
		values, _, err := mpi.DecodeAll(rest, 2)
		if err != nil {
			return err
		}
		ek.ElGamalC1, ek.ElGamalC2 = values[0].Int(), values[1].Int()
	default:
		return errors.UnsupportedError("encrypted key algorithm")
	}
	return nil
}

// Decrypt recovers the session key and its cipher ID using the
// recipient's secret key, validating the trailing 2-byte arithmetic
// checksum (RFC 4880 section 5.1).
func (ek *EncryptedKey) Decrypt(sk *SecretKey) error {
	var plaintext []byte
	switch ek.Algorithm {
	case algorithm.PubKeyRSA, algorithm.PubKeyRSAEncryptOnly:
		if sk.RSA == nil {
			return errors.InvalidArgumentError("encrypted key: secret key is not RSA")
		}
		pt, err := algorithm.RSADecrypt(*sk.RSA, ek.RSACiphertext)
		if err != nil {
			return err
		}
		plaintext = pt
	case algorithm.PubKeyElGamal:
		if sk.ElGamal == nil {
			return errors.InvalidArgumentError("encrypted key: secret key is not ElGamal")
		}
		pt, err := algorithm.ElGamalDecrypt(*sk.ElGamal, ek.ElGamalC1, ek.ElGamalC2)
		if err != nil {
			return err
		}
		plaintext = pt
	default:
		return errors.UnsupportedError("encrypted key algorithm")
	}

	if len(plaintext) < 3 {
		return errors.StructuralError("encrypted key: truncated session key")
	}
	ek.SessionKeyCipher = algorithm.Cipher(plaintext[0])
	key, checksum := plaintext[1:len(plaintext)-2], plaintext[len(plaintext)-2:]

	var sum uint16
	for _, b := range key {
		sum += uint16(b)
	}
	if byte(sum>>8) != checksum[0] || byte(sum) != checksum[1] {
		return errors.SignatureError("encrypted key: session key checksum mismatch")
	}
	ek.SessionKey = key
	return nil
}

// NewEncryptedKey encrypts sessionKey (already prefixed with its
// cipher ID and checksummed, per section 5.1) to pub, returning a
// packet ready to Serialize.
func NewEncryptedKey(pub *PublicKey, plaintext []byte) (*EncryptedKey, error) {
	ek := &EncryptedKey{Version: 3, KeyID: pub.KeyID, Algorithm: pub.Algorithm}
	switch pub.Algorithm {
	case algorithm.PubKeyRSA, algorithm.PubKeyRSAEncryptOnly:
		if pub.RSA == nil {
			return nil, errors.InvalidArgumentError("encrypted key: public key is not RSA")
		}
		c, err := algorithm.RSAEncrypt(*pub.RSA, plaintext)
		if err != nil {
			return nil, err
		}
		ek.RSACiphertext = c
	case algorithm.PubKeyElGamal:
		if pub.ElGamal == nil {
			return nil, errors.InvalidArgumentError("encrypted key: public key is not ElGamal")
		}
		c1, c2, err := algorithm.ElGamalEncrypt(*pub.ElGamal, plaintext)
		if err != nil {
			return nil, err
		}
		ek.ElGamalC1, ek.ElGamalC2 = c1, c2
	default:
		return nil, errors.UnsupportedError("encrypted key algorithm")
	}
	return ek, nil
}

// SessionKeyPlaintext assembles the {cipher ID, key, checksum} payload
// that NewEncryptedKey encrypts, per section 5.1's arithmetic checksum.
// SymmetricKeyEncrypted does not use it: its payload has no checksum.
func SessionKeyPlaintext(c algorithm.Cipher, key []byte) []byte {
	var sum uint16
	for _, b := range key {
		sum += uint16(b)
	}
	plaintext := make([]byte, 0, len(key)+3)
	plaintext = append(plaintext, byte(c))
	plaintext = append(plaintext, key...)
	return append(plaintext, byte(sum>>8), byte(sum))
}

// Serialize writes the full packet to w.
func (ek *EncryptedKey) Serialize(w io.Writer) error {
	var body []byte
	body = append(body, 3)
	var idBuf [8]byte
	binary.BigEndian.PutUint64(idBuf[:], ek.KeyID)
	body = append(body, idBuf[:]...)
	body = append(body, byte(ek.Algorithm))

	switch ek.Algorithm {
	case algorithm.PubKeyRSA, algorithm.PubKeyRSAEncryptOnly:
		body = mpi.New(ek.RSACiphertext).Encode(body)
	case algorithm.PubKeyElGamal:
		body = mpi.New(ek.ElGamalC1).Encode(body)
		body = mpi.New(ek.ElGamalC2).Encode(body)
	default:
		return errors.UnsupportedError("encrypted key algorithm")
	}

	if err := writeHeader(w, TagPublicKeyEncryptedKey, len(body)); err != nil {
		return err
	}
	_, err := w.Write(body)
	return errors.WrapIO("encrypted key: write body", err)
}

// SymmetricKeyEncrypted is a Symmetric-Key Encrypted Session Key
// packet (RFC 4880 section 5.3): a session key (or, if
// EncryptedSessionKey is empty, the S2K-derived key itself) protected
// by a passphrase.
type SymmetricKeyEncrypted struct {
	Version  int
	Cipher   algorithm.Cipher
	S2K      *s2k.Params
	EncryptedSessionKey []byte
}

func (skesk *SymmetricKeyEncrypted) parse(r io.Reader) error {
	var header [2]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return errors.WrapIO("symmetric-key encrypted: read header", err)
	}
	skesk.Version = int(header[0])
	if skesk.Version != 4 {
		return errors.UnsupportedError("symmetric-key encrypted session key version")
	}
	skesk.Cipher = algorithm.Cipher(header[1])

	params, err := s2k.Parse(r)
	if err != nil {
		return err
	}
	skesk.S2K = params

	rest, err := io.ReadAll(r)
	if err != nil {
		return errors.WrapIO("symmetric-key encrypted: read session key", err)
	}
	skesk.EncryptedSessionKey = rest
	return nil
}

// Decrypt derives the key encryption key from passphrase and, if
// EncryptedSessionKey is non-empty, decrypts the embedded session key;
// otherwise the derived key is itself the session key, and cipher
// reports skesk.Cipher.
func (skesk *SymmetricKeyEncrypted) Decrypt(passphrase []byte) (cipher algorithm.Cipher, sessionKey []byte, err error) {
	kek := make([]byte, skesk.Cipher.KeySize())
	if err := skesk.S2K.Key(passphrase, kek, algorithm.HashFunc); err != nil {
		return 0, nil, err
	}
	if len(skesk.EncryptedSessionKey) == 0 {
		return skesk.Cipher, kek, nil
	}

	iv := make([]byte, skesk.Cipher.BlockSize())
	stream, err := algorithm.NewPlainCFBStream(skesk.Cipher, kek, iv, true)
	if err != nil {
		return 0, nil, err
	}
	plaintext := make([]byte, len(skesk.EncryptedSessionKey))
	stream.XORKeyStream(plaintext, skesk.EncryptedSessionKey)

	if len(plaintext) < 1 {
		return 0, nil, errors.StructuralError("symmetric-key encrypted: empty session key")
	}
	return algorithm.Cipher(plaintext[0]), plaintext[1:], nil
}

// Serialize writes the full packet to w.
func (skesk *SymmetricKeyEncrypted) Serialize(w io.Writer) error {
	var body []byte
	body = append(body, 4, byte(skesk.Cipher))
	body = skesk.S2K.Serialize(body)
	body = append(body, skesk.EncryptedSessionKey...)

	if err := writeHeader(w, TagSymmetricKeyEncrypted, len(body)); err != nil {
		return err
	}
	_, err := w.Write(body)
	return errors.WrapIO("symmetric-key encrypted: write body", err)
}
