// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 *
 * Writer is a stack of layers pushed outside-in (framing first, then
 * compression/encryption, then the innermost content) and popped, in
 * reverse, to finalize each one's trailer before the layer beneath it
 * is closed. The length-prefixing and partial-length layers are the
 * write-side counterparts of this package's readHeader/bodyReader.
 */

package packet

import (
	"bytes"
	"crypto/cipher"
	"crypto/rand"
	"hash"
	"io"

	"github.com/dpeckett/gopgpsdk/algorithm"
	"github.com/dpeckett/gopgpsdk/errors"
)

// partialChunkPower is the log2 of the chunk size used by
// PushPartialLength; RFC 4880 requires at least 512 bytes (1<<9).
const partialChunkPower = 13 // 8192 bytes, matching maxChunk

// Writer is a push/pop stack of stream transformers in front of a
// sink. Each Push installs a new top layer whose Write transforms
// bytes before forwarding them to the layer beneath; Pop (or Close,
// which pops everything LIFO) finalizes and removes the top layer.
type Writer struct {
	top    io.Writer
	layers []writerLayer
}

type writerLayer struct {
	prevTop io.Writer
	close   func() error
}

// NewWriter returns a Writer whose bottom (and, until a layer is
// pushed, only) destination is sink.
func NewWriter(sink io.Writer) *Writer {
	return &Writer{top: sink}
}

// Write forwards buf through the current top layer.
func (w *Writer) Write(buf []byte) (int, error) {
	n, err := w.top.Write(buf)
	return n, errors.WrapIO("writer: write", err)
}

func (w *Writer) push(next io.Writer, closeFn func() error) {
	w.layers = append(w.layers, writerLayer{prevTop: w.top, close: closeFn})
	w.top = next
}

// Top returns the current top layer, the io.Writer that Write
// forwards to. External packages that install a layer of their own
// (e.g. an armour writer) must write into this, not into w itself, to
// avoid writing back through their own not-yet-installed layer.
func (w *Writer) Top() io.Writer {
	return w.top
}

// PushLayer installs an arbitrary io.WriteCloser, already wrapping
// w.Top(), as the new top layer; Pop/Close call its Close to finalize
// and remove it.
func (w *Writer) PushLayer(wc io.WriteCloser) {
	w.push(wc, wc.Close)
}

// Pop finalizes and removes the top layer, restoring the layer
// beneath it.
func (w *Writer) Pop() error {
	if len(w.layers) == 0 {
		return errors.InvalidArgumentError("writer: pop on empty stack")
	}
	l := w.layers[len(w.layers)-1]
	w.layers = w.layers[:len(w.layers)-1]
	err := l.close()
	w.top = l.prevTop
	return err
}

// Close pops every remaining layer, LIFO, returning the first error
// encountered while still popping the rest so every layer's resources
// are released.
func (w *Writer) Close() error {
	var firstErr error
	for len(w.layers) > 0 {
		if err := w.Pop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// PushLengthPrefixed buffers everything written until Pop (or Close),
// then emits a single new-format tag+length header followed by the
// buffered body. Use this when the full body size is known ahead of
// time or cheap to buffer.
func (w *Writer) PushLengthPrefixed(tag Tag) {
	buf := new(bytes.Buffer)
	below := w.top
	w.push(buf, func() error {
		if err := writeHeader(below, tag, buf.Len()); err != nil {
			return err
		}
		_, err := below.Write(buf.Bytes())
		return errors.WrapIO("writer: write length-prefixed body", err)
	})
}

// PushPartialLength streams the body in fixed power-of-two chunks,
// emitting a partial-length header before each full chunk and a
// final, ordinary length header for the trailing remainder (RFC 4880
// section 4.2.2.4). The first chunk's header carries tag; later
// chunks are bare length octets with no tag byte.
func (w *Writer) PushPartialLength(tag Tag) {
	below := w.top
	pw := &partialWriter{below: below, tag: tag, chunkSize: 1 << partialChunkPower}
	w.push(pw, pw.finish)
}

type partialWriter struct {
	below     io.Writer
	tag       Tag
	chunkSize int
	buf       []byte
	wroteTag  bool
}

func (pw *partialWriter) Write(p []byte) (int, error) {
	total := len(p)
	pw.buf = append(pw.buf, p...)
	for len(pw.buf) >= pw.chunkSize {
		if err := pw.flushChunk(pw.buf[:pw.chunkSize]); err != nil {
			return 0, err
		}
		pw.buf = pw.buf[pw.chunkSize:]
	}
	return total, nil
}

func (pw *partialWriter) flushChunk(chunk []byte) error {
	if !pw.wroteTag {
		if err := writePartialHeader(pw.below, pw.tag, partialChunkPower); err != nil {
			return err
		}
		pw.wroteTag = true
	} else if err := writePartialLengthContinuation(pw.below, partialChunkPower); err != nil {
		return err
	}
	_, err := pw.below.Write(chunk)
	return errors.WrapIO("writer: write partial chunk", err)
}

func (pw *partialWriter) finish() error {
	if !pw.wroteTag {
		// Body never reached a full chunk: emit it as an ordinary,
		// non-partial new-format packet.
		return writeBodyWithHeader(pw.below, pw.tag, pw.buf)
	}
	// The remainder is shorter than one chunk, so a bare one- or
	// two-octet length (no tag byte) always fits.
	n := len(pw.buf)
	lenBytes := []byte{byte(n)}
	if n >= 192 {
		lenBytes = []byte{byte((n-192)>>8) + 192, byte(n - 192)}
	}
	if _, err := pw.below.Write(lenBytes); err != nil {
		return errors.WrapIO("writer: write final partial length", err)
	}
	_, err := pw.below.Write(pw.buf)
	return errors.WrapIO("writer: write final partial chunk", err)
}

func writeBodyWithHeader(w io.Writer, tag Tag, body []byte) error {
	if err := writeHeader(w, tag, len(body)); err != nil {
		return err
	}
	_, err := w.Write(body)
	return errors.WrapIO("writer: write body", err)
}

// PushLiteral writes a Literal Data packet body header (format,
// filename, mod time) immediately; subsequent writes pass through the
// layer beneath unchanged. Callers must have already pushed a framing
// layer (PushLengthPrefixed or PushPartialLength) with TagLiteralData.
func (w *Writer) PushLiteral(ld *LiteralData) error {
	_, err := w.Write(writeLiteralHeader(ld))
	return err
}

// PushOnePassSignature writes a complete One-Pass Signature packet
// immediately, ahead of the literal data it announces; it does not
// install a stack layer of its own, matching PushLiteral's shape.
func (w *Writer) PushOnePassSignature(ops *OnePassSignature) error {
	return ops.Serialize(w)
}

// PushEncrypt installs plain OpenPGP CFB encryption for a
// Symmetrically Encrypted Data packet (tag 9, RFC 4880 section 5.7): a
// random blockSize+2 byte prefix is generated and written immediately,
// then subsequent writes are encrypted in OCFB mode with the resync
// step. Callers must have already pushed a TagSymmetricallyEncrypted
// framing layer. New code should prefer PushEncryptSEIP, which also
// integrity-protects the body with an MDC packet.
func (w *Writer) PushEncrypt(c algorithm.Cipher, key []byte) error {
	stream, prefix, err := algorithm.NewOCFBEncrypter(c, key, rand.Reader, false)
	if err != nil {
		return err
	}
	below := w.top
	if _, err := below.Write(prefix); err != nil {
		return errors.WrapIO("writer: write ocfb prefix", err)
	}
	ew := &encryptWriter{below: below, stream: stream}
	w.push(ew, func() error { return nil })
	return nil
}

type encryptWriter struct {
	below  io.Writer
	stream cipher.Stream
}

func (ew *encryptWriter) Write(p []byte) (int, error) {
	ct := make([]byte, len(p))
	ew.stream.XORKeyStream(ct, p)
	n, err := ew.below.Write(ct)
	return n, errors.WrapIO("writer: write ciphertext", err)
}

// PushEncryptSEIP installs Sym. Encrypted Integrity Protected Data
// encryption (tag 18, RFC 4880 section 5.13): a version byte and OCFB
// prefix (without the resync step) are written immediately, writes are
// encrypted and hashed as they pass through, and Pop appends the
// encrypted SHA-1 MDC trailer packet. Callers must have already pushed
// a TagSymmetricEncryptedMDC framing layer.
func (w *Writer) PushEncryptSEIP(c algorithm.Cipher, key []byte) error {
	below := w.top
	sw, err := NewSEIPEncryptWriter(below, c, key)
	if err != nil {
		return err
	}
	w.push(sw, sw.Close)
	return nil
}

// PushCompress installs a compressing layer using algo, writing the
// one-byte compression algorithm ID immediately.
func (w *Writer) PushCompress(algo CompressionAlgorithm) error {
	below := w.top
	if _, err := below.Write([]byte{byte(algo)}); err != nil {
		return errors.WrapIO("writer: write compression algorithm", err)
	}
	compressor, err := NewCompressor(below, algo)
	if err != nil {
		return err
	}
	w.push(compressor, compressor.Close)
	return nil
}

// PushHashTee installs a layer that feeds every written byte to h (for
// a signature digest) while passing it through unchanged.
func (w *Writer) PushHashTee(h hash.Hash) {
	below := w.top
	w.push(&hashTeeWriter{below: below, h: h}, func() error { return nil })
}

type hashTeeWriter struct {
	below io.Writer
	h     hash.Hash
}

func (h *hashTeeWriter) Write(p []byte) (int, error) {
	h.h.Write(p)
	n, err := h.below.Write(p)
	return n, errors.WrapIO("writer: write hash-teed data", err)
}
