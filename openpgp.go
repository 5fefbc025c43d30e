// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 *
 * Info's push-pipeline method names mirror the packet-by-packet
 * construction an embedder drives by hand: set a sink, push framing
 * and transform layers outside-in, write, close. Encrypt/Decrypt/
 * Sign/Verify are one-shot convenience wrappers over that same
 * pipeline for the common single-recipient/single-signer case.
 */

// Package gopgpsdk is the top-level façade: a keyring loader and a
// composable writer pipeline (Info), plus one-shot Encrypt, Decrypt,
// Sign and Verify functions built on the packet, sig, clearsign and
// armor packages.
package gopgpsdk

import (
	"bytes"
	"crypto/rand"
	"io"

	"github.com/dpeckett/gopgpsdk/algorithm"
	"github.com/dpeckett/gopgpsdk/armor"
	"github.com/dpeckett/gopgpsdk/errors"
	"github.com/dpeckett/gopgpsdk/keyring"
	"github.com/dpeckett/gopgpsdk/packet"
	"github.com/dpeckett/gopgpsdk/sig"
)

// ReadKeyRing parses r as a transferable public or secret keyring,
// matching the embedding contract's keyring_read.
func ReadKeyRing(r io.Reader) (*keyring.Keyring, error) {
	return keyring.Read(r)
}

// FindKeyByUserID is keyring_find_key_by_userid: the first key record
// any of whose identities contains query.
func FindKeyByUserID(kr *keyring.Keyring, query string) (*keyring.KeyRecord, error) {
	return kr.FindByUserID(query)
}

// Info is a push/pop writer pipeline, matching create_info_new's
// info object: layers are installed with Push* calls in outside-in
// order (outermost framing first) and torn down, in reverse, by
// Close.
type Info struct {
	w *packet.Writer
}

// NewInfo is create_info_new combined with writer_set_fd/
// writer_set_memory: sink is wherever the finished stream should go.
func NewInfo(sink io.Writer) *Info {
	return &Info{w: packet.NewWriter(sink)}
}

// PushArmor installs an ASCII-armour layer as the current top,
// matching writer_push_armour.
func (info *Info) PushArmor(blockType armor.BlockType, headers map[string]string) error {
	aw, err := armor.NewWriter(info.w.Top(), blockType, headers)
	if err != nil {
		return err
	}
	info.w.PushLayer(aw)
	return nil
}

// PushPartialLength installs partial-length packet framing for tag,
// matching writer_push_partial.
func (info *Info) PushPartialLength(tag packet.Tag) {
	info.w.PushPartialLength(tag)
}

// PushLengthPrefixed installs ordinary length-prefixed packet framing
// for tag.
func (info *Info) PushLengthPrefixed(tag packet.Tag) {
	info.w.PushLengthPrefixed(tag)
}

// PushCompress installs a compressing layer, matching
// writer_push_compress.
func (info *Info) PushCompress(algo packet.CompressionAlgorithm) error {
	return info.w.PushCompress(algo)
}

// PushEncrypt installs SEIP (MDC-protected) symmetric encryption,
// matching writer_push_encrypt.
func (info *Info) PushEncrypt(c algorithm.Cipher, key []byte) error {
	return info.w.PushEncryptSEIP(c, key)
}

// PushLiteral writes a Literal Data packet header, matching
// writer_push_literal.
func (info *Info) PushLiteral(ld *packet.LiteralData) error {
	return info.w.PushLiteral(ld)
}

// Write is the embedding contract's write(info, bytes).
func (info *Info) Write(p []byte) (int, error) {
	return info.w.Write(p)
}

// Pop finalizes and removes the current top layer.
func (info *Info) Pop() error {
	return info.w.Pop()
}

// Close is writer_close: pops every remaining layer, releasing all
// layer buffers.
func (info *Info) Close() error {
	return info.w.Close()
}

// Encrypt writes plaintext to w as a SEIP-protected, partial-length
// framed, single-recipient message: a Public-Key Encrypted Session Key
// packet addressed to pub, followed by the encrypted literal data.
func Encrypt(w io.Writer, pub *packet.PublicKey, c algorithm.Cipher, plaintext io.Reader) error {
	key := make([]byte, c.KeySize())
	if _, err := rand.Read(key); err != nil {
		return errors.WrapIO("encrypt: generate session key", err)
	}

	ek, err := packet.NewEncryptedKey(pub, packet.SessionKeyPlaintext(c, key))
	if err != nil {
		return err
	}
	if err := ek.Serialize(w); err != nil {
		return err
	}

	pw := packet.NewWriter(w)
	pw.PushLengthPrefixed(packet.TagSymmetricEncryptedMDC)
	if err := pw.PushEncryptSEIP(c, key); err != nil {
		return err
	}
	pw.PushPartialLength(packet.TagLiteralData)
	if err := pw.PushLiteral(&packet.LiteralData{Format: packet.LiteralFormatBinary}); err != nil {
		return err
	}
	if _, err := io.Copy(pw, plaintext); err != nil {
		return errors.WrapIO("encrypt: write plaintext", err)
	}
	return pw.Close()
}

// Decrypt reverses Encrypt: it parses r for the leading
// PublicKeyEncryptedKey and SymmetricallyEncrypted packets, decrypts
// the session key with priv, and returns a reader over the decrypted,
// MDC-validated literal data.
func Decrypt(r io.Reader, priv *packet.SecretKey) (io.ReadCloser, error) {
	var ek *packet.EncryptedKey
	var se *packet.SymmetricallyEncrypted

	err := packet.Parse(r, func(ev packet.Event) packet.Disposition {
		if ev.Kind != packet.EventPacketBody {
			return packet.Continue
		}
		switch body := ev.Body.(type) {
		case *packet.EncryptedKey:
			ek = body
			return packet.Continue
		case *packet.SymmetricallyEncrypted:
			se = body
			return packet.Finish
		}
		return packet.Continue
	})
	if err != nil {
		return nil, err
	}
	if ek == nil || se == nil {
		return nil, errors.StructuralError("decrypt: missing encrypted key or encrypted data packet")
	}

	if err := ek.Decrypt(priv); err != nil {
		return nil, err
	}
	plain, err := se.Decrypt(ek.SessionKeyCipher, ek.SessionKey)
	if err != nil {
		return nil, err
	}
	var body bytes.Buffer
	if err := packet.Parse(plain, func(ev packet.Event) packet.Disposition {
		if ev.Kind == packet.EventDataChunk {
			body.Write(ev.Chunk)
		}
		return packet.Continue
	}); err != nil {
		return nil, err
	}
	return io.NopCloser(&body), plain.Close()
}

// Sign produces an inline (one-pass-signature) signed, partial-length
// framed message over plaintext.
func Sign(w io.Writer, priv *packet.SecretKey, hashAlgo algorithm.Hash, plaintext io.Reader) error {
	signer, err := sig.New(priv, priv.PublicKey.Algorithm, hashAlgo, packet.SigTypeBinary)
	if err != nil {
		return err
	}

	pw := packet.NewWriter(w)
	if err := signer.WriteOnePassSignature(pw); err != nil {
		return err
	}

	pw.PushPartialLength(packet.TagLiteralData)
	if err := pw.PushLiteral(&packet.LiteralData{Format: packet.LiteralFormatBinary}); err != nil {
		return err
	}
	signer.InstallHashTee(pw)
	if _, err := io.Copy(pw, plaintext); err != nil {
		return errors.WrapIO("sign: write plaintext", err)
	}
	if err := pw.Pop(); err != nil { // hash tee
		return err
	}
	if err := pw.Pop(); err != nil { // literal-data framing
		return err
	}
	return signer.Finish(pw)
}

// Verify checks an inline-signed message produced by Sign (or any
// conformant one-pass-signature binary message) against pub, returning
// the verified body.
func Verify(r io.Reader, pub *packet.PublicKey) ([]byte, error) {
	var verifier *sig.Verifier
	var trailer *packet.Signature
	var body bytes.Buffer

	err := packet.Parse(r, func(ev packet.Event) packet.Disposition {
		switch ev.Kind {
		case packet.EventPacketBody:
			switch b := ev.Body.(type) {
			case *packet.OnePassSignature:
				var verr error
				verifier, verr = sig.NewVerifier(b)
				if verr != nil {
					return packet.Abort
				}
			case *packet.Signature:
				trailer = b
			}
		case packet.EventDataChunk:
			body.Write(ev.Chunk)
			if verifier != nil {
				_, _ = verifier.Write(ev.Chunk)
			}
		}
		return packet.Continue
	})
	if err != nil {
		return nil, err
	}
	if verifier == nil || trailer == nil {
		return nil, errors.StructuralError("verify: missing one-pass signature or trailing signature")
	}
	if err := verifier.Verify(trailer, pub); err != nil {
		return nil, err
	}
	return body.Bytes(), nil
}
