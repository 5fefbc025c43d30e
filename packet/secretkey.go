// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 *
 * S2K usage byte handling implements RFC 4880 section 5.5.3, covering
 * the full unencrypted/CFB/SHA-1-checksummed range.
 */

package packet

import (
	"crypto/sha1" //nolint:gosec // mandated by RFC 4880 secret-key SHA-1 checksum form
	"crypto/subtle"
	"io"
	"math/big"

	"github.com/dpeckett/gopgpsdk/algorithm"
	"github.com/dpeckett/gopgpsdk/errors"
	"github.com/dpeckett/gopgpsdk/mpi"
	"github.com/dpeckett/gopgpsdk/s2k"
)

const (
	s2kUsageNone     = 0
	s2kUsageChecksum = 255
	s2kUsageSHA1     = 254
)

// PromptFunc supplies a passphrase to decrypt an encrypted SecretKey.
type PromptFunc func(pk *PublicKey) ([]byte, error)

// SecretKey is a v3 or v4 OpenPGP secret key or subkey (RFC 4880
// section 5.5.3).
type SecretKey struct {
	PublicKey

	s2kUsage byte
	cipher   algorithm.Cipher
	s2kParams *s2k.Params
	iv       []byte

	// encryptedData holds the still-encrypted key material (present
	// when s2kUsage != none; parsing never decrypts it). Decrypt
	// consumes it and populates RSA/DSA/ElGamal below.
	encryptedData []byte

	RSA     *algorithm.RSAPrivateKey
	DSA     *algorithm.DSAPrivateKey
	ElGamal *algorithm.ElGamalPrivateKey

	Encrypted bool // true until a successful Decrypt (or s2kUsage == none)
}

func (sk *SecretKey) parse(r io.Reader) error {
	if err := sk.PublicKey.parse(r); err != nil {
		return err
	}

	var usage [1]byte
	if _, err := io.ReadFull(r, usage[:]); err != nil {
		return errors.WrapIO("secret key: read s2k usage", err)
	}
	sk.s2kUsage = usage[0]

	switch sk.s2kUsage {
	case s2kUsageNone:
		return sk.parsePlaintext(r)
	case s2kUsageChecksum, s2kUsageSHA1:
		sk.Encrypted = true
		var cipherID [1]byte
		if _, err := io.ReadFull(r, cipherID[:]); err != nil {
			return errors.WrapIO("secret key: read cipher id", err)
		}
		sk.cipher = algorithm.Cipher(cipherID[0])

		params, err := s2k.Parse(r)
		if err != nil {
			return err
		}
		sk.s2kParams = params

		if params.Mode != s2k.GNUDummy {
			sk.iv = make([]byte, sk.cipher.BlockSize())
			if _, err := io.ReadFull(r, sk.iv); err != nil {
				return errors.WrapIO("secret key: read iv", err)
			}
		}

		rest, err := io.ReadAll(r)
		if err != nil {
			return errors.WrapIO("secret key: read encrypted material", err)
		}
		sk.encryptedData = rest
		return nil
	default:
		// A legacy single-octet symmetric cipher ID: deprecated,
		// undocumented encryption with no S2K. Treat as unsupported
		// rather than guessing at its framing.
		return errors.UnsupportedError("secret key: s2k usage byte")
	}
}

func (sk *SecretKey) parsePlaintext(r io.Reader) error {
	rest, err := io.ReadAll(r)
	if err != nil {
		return errors.WrapIO("secret key: read material", err)
	}
	return sk.decodeCleartextMaterial(rest)
}

// decodeCleartextMaterial parses the algorithm-specific secret MPIs
// plus the trailing 2-byte checksum (sum of all MPI body bytes mod
// 65536), per RFC 4880 section 5.5.3's "no S2K" checksum invariant.
func (sk *SecretKey) decodeCleartextMaterial(data []byte) error {
	if len(data) < 2 {
		return errors.StructuralError("secret key: truncated checksum")
	}
	material, checksum := data[:len(data)-2], data[len(data)-2:]

	var sum uint16
	for _, b := range material {
		sum += uint16(b)
	}
	if byte(sum>>8) != checksum[0] || byte(sum) != checksum[1] {
		return errors.SignatureError("secret key: checksum mismatch")
	}

	var count int
	switch sk.Algorithm {
	case algorithm.PubKeyRSA, algorithm.PubKeyRSAEncryptOnly, algorithm.PubKeyRSASignOnly:
		count = 4 // d, p, q, u
	case algorithm.PubKeyDSA:
		count = 1 // x
	case algorithm.PubKeyElGamal:
		count = 1 // x
	default:
		return errors.UnsupportedError("secret key: algorithm")
	}

	values, _, err := mpi.DecodeAll(material, count)
	if err != nil {
		return err
	}

	switch sk.Algorithm {
	case algorithm.PubKeyRSA, algorithm.PubKeyRSAEncryptOnly, algorithm.PubKeyRSASignOnly:
		d, p, q := values[0].Int(), values[1].Int(), values[2].Int()
		sk.RSA = &algorithm.RSAPrivateKey{Public: *sk.PublicKey.RSA, D: d, P: p, Q: q}
	case algorithm.PubKeyDSA:
		sk.DSA = &algorithm.DSAPrivateKey{Public: *sk.PublicKey.DSA, X: values[0].Int()}
	case algorithm.PubKeyElGamal:
		sk.ElGamal = &algorithm.ElGamalPrivateKey{Public: *sk.PublicKey.ElGamal, X: values[0].Int()}
	}
	sk.Encrypted = false
	return nil
}

// Decrypt derives the passphrase key via the packet's S2K parameters
// and decrypts the secret material in place.
func (sk *SecretKey) Decrypt(passphrase []byte) error {
	if !sk.Encrypted {
		return nil
	}
	if sk.s2kParams.Mode == s2k.GNUDummy {
		return errors.InvalidArgumentError("secret key: GNU-dummy key has no private material")
	}

	key := make([]byte, sk.cipher.KeySize())
	if err := sk.s2kParams.Key(passphrase, key, algorithm.HashFunc); err != nil {
		return err
	}

	stream, err := algorithm.NewPlainCFBStream(sk.cipher, key, sk.iv, true)
	if err != nil {
		return err
	}
	plaintext := make([]byte, len(sk.encryptedData))
	stream.XORKeyStream(plaintext, sk.encryptedData)

	if sk.s2kUsage == s2kUsageSHA1 {
		if len(plaintext) < 20 {
			return errors.StructuralError("secret key: truncated SHA-1 checksum")
		}
		material, sum := plaintext[:len(plaintext)-20], plaintext[len(plaintext)-20:]
		computed := sha1.Sum(material) //nolint:gosec // mandated by RFC 4880
		if subtle.ConstantTimeCompare(computed[:], sum) != 1 {
			return errors.SignatureError("secret key: SHA-1 checksum mismatch")
		}
		return sk.decodeDecryptedMaterial(material)
	}

	// s2kUsageChecksum: plaintext ends with the same 2-byte arithmetic
	// checksum as the unencrypted form.
	return sk.decodeCleartextMaterial(plaintext)
}

// Serialize writes the full packet (header + body) to w. Only
// unencrypted (s2k usage byte 0) secret keys are supported; encrypted
// material would have to be re-encrypted under its S2K parameters
// rather than simply re-framed.
func (sk *SecretKey) Serialize(w io.Writer) error {
	if sk.Encrypted {
		return errors.UnsupportedError("secret key: serialize of encrypted material")
	}

	body := append([]byte{}, sk.headerBytes()...)
	body = sk.appendAlgorithmSpecificBytes(body)
	body = append(body, s2kUsageNone)

	secret, err := sk.appendSecretMPIs(nil)
	if err != nil {
		return err
	}

	var sum uint16
	for _, b := range secret {
		sum += uint16(b)
	}
	secret = append(secret, byte(sum>>8), byte(sum))
	body = append(body, secret...)

	tag := TagSecretKey
	if sk.IsSubkey {
		tag = TagSecretSubkey
	}
	if err := writeHeader(w, tag, len(body)); err != nil {
		return err
	}
	_, err = w.Write(body)
	return errors.WrapIO("secret key: write body", err)
}

// appendSecretMPIs serializes the algorithm-specific secret MPIs in
// the same order decodeCleartextMaterial expects to read them back.
func (sk *SecretKey) appendSecretMPIs(buf []byte) ([]byte, error) {
	switch sk.Algorithm {
	case algorithm.PubKeyRSA, algorithm.PubKeyRSAEncryptOnly, algorithm.PubKeyRSASignOnly:
		u := new(big.Int).ModInverse(sk.RSA.P, sk.RSA.Q)
		if u == nil {
			return nil, errors.InvalidArgumentError("secret key: p has no inverse mod q")
		}
		buf = mpi.New(sk.RSA.D).Encode(buf)
		buf = mpi.New(sk.RSA.P).Encode(buf)
		buf = mpi.New(sk.RSA.Q).Encode(buf)
		buf = mpi.New(u).Encode(buf)
	case algorithm.PubKeyDSA:
		buf = mpi.New(sk.DSA.X).Encode(buf)
	case algorithm.PubKeyElGamal:
		buf = mpi.New(sk.ElGamal.X).Encode(buf)
	default:
		return nil, errors.UnsupportedError("secret key: algorithm")
	}
	return buf, nil
}

func (sk *SecretKey) decodeDecryptedMaterial(material []byte) error {
	var count int
	switch sk.Algorithm {
	case algorithm.PubKeyRSA, algorithm.PubKeyRSAEncryptOnly, algorithm.PubKeyRSASignOnly:
		count = 4
	case algorithm.PubKeyDSA, algorithm.PubKeyElGamal:
		count = 1
	default:
		return errors.UnsupportedError("secret key: algorithm")
	}
	values, _, err := mpi.DecodeAll(material, count)
	if err != nil {
		return err
	}
	switch sk.Algorithm {
	case algorithm.PubKeyRSA, algorithm.PubKeyRSAEncryptOnly, algorithm.PubKeyRSASignOnly:
		sk.RSA = &algorithm.RSAPrivateKey{Public: *sk.PublicKey.RSA, D: values[0].Int(), P: values[1].Int(), Q: values[2].Int()}
	case algorithm.PubKeyDSA:
		sk.DSA = &algorithm.DSAPrivateKey{Public: *sk.PublicKey.DSA, X: values[0].Int()}
	case algorithm.PubKeyElGamal:
		sk.ElGamal = &algorithm.ElGamalPrivateKey{Public: *sk.PublicKey.ElGamal, X: values[0].Int()}
	}
	sk.Encrypted = false
	return nil
}
