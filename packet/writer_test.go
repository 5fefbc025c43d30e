// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package packet_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/dpeckett/gopgpsdk/packet"
	"github.com/stretchr/testify/require"
)

func TestWriterLengthPrefixedLiteralRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := packet.NewWriter(&buf)

	w.PushLengthPrefixed(packet.TagLiteralData)
	require.NoError(t, w.PushLiteral(&packet.LiteralData{
		Format:   packet.LiteralFormatBinary,
		FileName: "hello.txt",
		ModTime:  time.Unix(1700000000, 0),
	}))
	_, err := w.Write([]byte("hello, world"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	var header *packet.LiteralData
	var chunks [][]byte
	err = packet.Parse(bytes.NewReader(buf.Bytes()), func(ev packet.Event) packet.Disposition {
		switch ev.Kind {
		case packet.EventLiteralHeader:
			header = ev.Body.(*packet.LiteralData)
		case packet.EventDataChunk:
			chunks = append(chunks, append([]byte(nil), ev.Chunk...))
		}
		return packet.Continue
	})
	require.NoError(t, err)
	require.NotNil(t, header)
	require.Equal(t, "hello.txt", header.FileName)

	var body []byte
	for _, c := range chunks {
		body = append(body, c...)
	}
	require.Equal(t, "hello, world", string(body))
}

func TestWriterPartialLengthLargeBodyRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := packet.NewWriter(&buf)

	w.PushPartialLength(packet.TagLiteralData)
	require.NoError(t, w.PushLiteral(&packet.LiteralData{Format: packet.LiteralFormatBinary}))

	// Large enough to force at least one full partial chunk (8192 bytes).
	payload := bytes.Repeat([]byte("0123456789abcdef"), 4096) // 64KiB
	_, err := w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	var body []byte
	err = packet.Parse(bytes.NewReader(buf.Bytes()), func(ev packet.Event) packet.Disposition {
		if ev.Kind == packet.EventDataChunk {
			body = append(body, ev.Chunk...)
		}
		return packet.Continue
	})
	require.NoError(t, err)
	require.Equal(t, payload, body)
}

func TestWriterPopOnEmptyStackErrors(t *testing.T) {
	w := packet.NewWriter(&bytes.Buffer{})
	require.Error(t, w.Pop())
}
