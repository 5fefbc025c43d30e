// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package algorithm

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"crypto/subtle"
	"io"

	"github.com/dpeckett/gopgpsdk/errors"
	"golang.org/x/crypto/blowfish" //nolint:staticcheck // legacy algorithm required by RFC 4880
	"golang.org/x/crypto/cast5"    //nolint:staticcheck // legacy algorithm required by RFC 4880
	"golang.org/x/crypto/twofish"
)

// Cipher identifies a symmetric cipher by its RFC 4880 section 9.2 ID.
type Cipher byte

const (
	CipherPlaintext Cipher = 0
	CipherIDEA      Cipher = 1
	Cipher3DES      Cipher = 2
	CipherCAST5     Cipher = 3
	CipherBlowfish  Cipher = 4
	CipherAES128    Cipher = 7
	CipherAES192    Cipher = 8
	CipherAES256    Cipher = 9
	CipherTwofish   Cipher = 10
)

var cipherKeySizes = map[Cipher]int{
	CipherIDEA:     16,
	Cipher3DES:     24,
	CipherCAST5:    16,
	CipherBlowfish: 16,
	CipherAES128:   16,
	CipherAES192:   24,
	CipherAES256:   32,
	CipherTwofish:  32,
}

var cipherNames = map[Cipher]string{
	CipherPlaintext: "Plaintext",
	CipherIDEA:      "IDEA",
	Cipher3DES:      "TripleDES",
	CipherCAST5:     "CAST5",
	CipherBlowfish:  "Blowfish",
	CipherAES128:    "AES128",
	CipherAES192:    "AES192",
	CipherAES256:    "AES256",
	CipherTwofish:   "Twofish",
}

func (c Cipher) String() string {
	if name, ok := cipherNames[c]; ok {
		return name
	}
	return "unknown"
}

// KeySize returns the symmetric key length in bytes for c, or 0 if c
// is unrecognized.
func (c Cipher) KeySize() int {
	return cipherKeySizes[c]
}

// BlockSize returns the cipher's block size in bytes, or 0 if c is
// unrecognized.
func (c Cipher) BlockSize() int {
	switch c {
	case CipherIDEA, Cipher3DES, CipherCAST5, CipherBlowfish:
		return 8
	case CipherAES128, CipherAES192, CipherAES256, CipherTwofish:
		return 16
	default:
		return 0
	}
}

// NewBlockCipher constructs the stdlib/x-crypto block cipher for c.
func (c Cipher) NewBlockCipher(key []byte) (cipher.Block, error) {
	switch c {
	case CipherIDEA:
		// No suitable ecosystem package implements IDEA; recognized
		// for wire compatibility only.
		return nil, errors.UnsupportedError("IDEA cipher")
	case Cipher3DES:
		return des.NewTripleDESCipher(key)
	case CipherCAST5:
		return cast5.NewCipher(key)
	case CipherBlowfish:
		return blowfish.NewCipher(key)
	case CipherAES128, CipherAES192, CipherAES256:
		return aes.NewCipher(key)
	case CipherTwofish:
		return twofish.NewCipher(key)
	default:
		return nil, errors.UnsupportedError("cipher algorithm")
	}
}

// The OCFB constructions below are the "OpenPGP CFB" mode of RFC 4880
// section 13.9: ordinary CFB, except the first blockSize+2 output
// bytes are a random prefix whose last two bytes repeat bytes
// blockSize-2 and blockSize-1 (a quick key-correctness check), after
// which the feedback register is resynchronized to the ciphertext
// produced so far. Sym. Encrypted Integrity Protected Data packets
// (MDC) skip that resync step. Reimplemented here (rather than
// imported) because this construction isn't exposed by any current
// package; it was once in the Go standard library as
// cipher.OCFBResync/OCFBNoResync but was removed.

// NewOCFBEncrypter encrypts a fresh random prefix (read from rnd) and
// returns both a Stream ready to encrypt the following plaintext and
// the blockSize+2 prefix ciphertext, which the caller must write
// before any bytes produced by the returned Stream. When mdc is true
// the resync step is skipped, matching the decrypter's SEIP handling.
func NewOCFBEncrypter(c Cipher, key []byte, rnd io.Reader, mdc bool) (cipher.Stream, []byte, error) {
	block, err := c.NewBlockCipher(key)
	if err != nil {
		return nil, nil, err
	}
	blockSize := block.BlockSize()

	randomData := make([]byte, blockSize)
	if _, err := io.ReadFull(rnd, randomData); err != nil {
		return nil, nil, errors.WrapIO("ocfb: read random prefix", err)
	}

	prefix := make([]byte, blockSize+2)
	x := &ocfbStream{block: block, fre: make([]byte, blockSize)}

	block.Encrypt(x.fre, x.fre) // fre = E(0)
	for i := 0; i < blockSize; i++ {
		prefix[i] = randomData[i] ^ x.fre[i]
	}

	block.Encrypt(x.fre, prefix[:blockSize]) // fre = E(C[0:bs))
	prefix[blockSize] = x.fre[0] ^ randomData[blockSize-2]
	prefix[blockSize+1] = x.fre[1] ^ randomData[blockSize-1]

	if mdc {
		x.fre[0] = prefix[blockSize]
		x.fre[1] = prefix[blockSize+1]
		x.outUsed = 2
	} else {
		// Resync: feedback register becomes E(ciphertext[2:bs+2)).
		block.Encrypt(x.fre, prefix[2:blockSize+2])
		x.outUsed = 0
	}

	return x, prefix, nil
}

// NewOCFBDecrypter verifies the quick check embedded in prefix (the
// blockSize+2 byte ciphertext produced by NewOCFBEncrypter) and
// returns a Stream ready to decrypt the bytes that follow it. When mdc
// is true, the resync step is skipped per RFC 4880 section 5.13.
func NewOCFBDecrypter(c Cipher, key, prefix []byte, mdc bool) (cipher.Stream, error) {
	block, err := c.NewBlockCipher(key)
	if err != nil {
		return nil, err
	}
	blockSize := block.BlockSize()
	if len(prefix) != blockSize+2 {
		return nil, errors.InvalidArgumentError("ocfb: prefix must be blockSize+2 bytes")
	}

	x := &ocfbStream{block: block, fre: make([]byte, blockSize), decrypt: true}
	check := make([]byte, blockSize+2)
	copy(check, prefix)

	block.Encrypt(x.fre, x.fre) // fre = E(0)
	for i := 0; i < blockSize; i++ {
		check[i] ^= x.fre[i]
	}

	block.Encrypt(x.fre, prefix[:blockSize]) // fre = E(C[0:bs))
	check[blockSize] ^= x.fre[0]
	check[blockSize+1] ^= x.fre[1]

	if subtle.ConstantTimeCompare(check[blockSize-2:blockSize], check[blockSize:blockSize+2]) != 1 {
		return nil, errors.SignatureError("ocfb: quick check failed, wrong key or corrupt data")
	}

	if mdc {
		// No resync: continue the CFB chain from the register already
		// computed above, its first two keystream bytes consumed by
		// the check and replaced by the ciphertext bytes they produced.
		x.fre[0] = prefix[blockSize]
		x.fre[1] = prefix[blockSize+1]
		x.outUsed = 2
	} else {
		block.Encrypt(x.fre, prefix[2:blockSize+2])
		x.outUsed = 0
	}
	return x, nil
}

// NewPlainCFBStream constructs ordinary (non-OpenPGP) CFB-mode
// encryption or decryption with an explicit IV, as used by secret-key
// packet passphrase protection (RFC 4880 section 5.5.3), which has no
// prefix/resync step.
func NewPlainCFBStream(c Cipher, key, iv []byte, decrypt bool) (cipher.Stream, error) {
	block, err := c.NewBlockCipher(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != block.BlockSize() {
		return nil, errors.InvalidArgumentError("cfb: iv must be blockSize bytes")
	}
	if decrypt {
		return cipher.NewCFBDecrypter(block, iv), nil //nolint:staticcheck // RFC 4880 mandates CFB
	}
	return cipher.NewCFBEncrypter(block, iv), nil //nolint:staticcheck // RFC 4880 mandates CFB
}

// ocfbStream implements cipher.Stream for both encryption and
// decryption by exploiting that, after the prefix/resync phase, the
// feedback register update is identical: write the ciphertext byte
// back over the consumed keystream byte and re-encrypt on block
// boundaries. The decrypt field selects which of the input and output
// bytes is the ciphertext written back into fre.
type ocfbStream struct {
	block   cipher.Block
	fre     []byte
	outUsed int
	decrypt bool
}

func (x *ocfbStream) XORKeyStream(dst, src []byte) {
	for i := 0; i < len(src); i++ {
		if x.outUsed == len(x.fre) {
			x.block.Encrypt(x.fre, x.fre)
			x.outUsed = 0
		}
		if x.decrypt {
			c := src[i]
			dst[i] = x.fre[x.outUsed] ^ c
			x.fre[x.outUsed] = c
		} else {
			x.fre[x.outUsed] ^= src[i]
			dst[i] = x.fre[x.outUsed]
		}
		x.outUsed++
	}
}
