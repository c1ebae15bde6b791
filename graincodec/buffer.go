// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package graincodec

import (
	"encoding/binary"
	"math"

	"github.com/google/uuid"
)

// ByteBuffer is the in-memory, framed byte buffer the wire format is built
// on (§4.1, §5: "the stream reader/writer is an in-memory buffer"). It plays
// the role of the teacher's own ByteBuffer, but every multi-byte field is
// written little-endian and fixed-width rather than fory's variable-length
// PVL/SLI encodings, per this engine's simpler, non-cross-language wire
// format.
type ByteBuffer struct {
	data []byte
	pos  int
}

// NewByteBuffer wraps data for reading, or starts a fresh write buffer when
// data is nil.
func NewByteBuffer(data []byte) *ByteBuffer {
	if data == nil {
		data = make([]byte, 0, 64)
	}
	return &ByteBuffer{data: data}
}

func (b *ByteBuffer) Bytes() []byte { return b.data }
func (b *ByteBuffer) Len() int      { return len(b.data) }

// Position returns the current read/write cursor, used by the back-reference
// tracker (§4.4) to stamp the offset at which an object's body begins.
func (b *ByteBuffer) Position() int { return b.pos }

func (b *ByteBuffer) SetPosition(pos int) { b.pos = pos }

func (b *ByteBuffer) grow(n int) []byte {
	if len(b.data) < b.pos+n {
		grown := make([]byte, b.pos+n)
		copy(grown, b.data)
		b.data = grown
	}
	return b.data
}

func (b *ByteBuffer) writeAt(p []byte) {
	buf := b.grow(len(p))
	copy(buf[b.pos:], p)
	b.pos += len(p)
	if b.pos > len(b.data) {
		b.data = buf[:b.pos]
	}
}

// WriteToken appends a single structural/value token byte.
func (b *ByteBuffer) WriteToken(t Token) { b.writeAt([]byte{byte(t)}) }

// PeekToken returns the token at the cursor without advancing it, so a
// caller can try a fastpath decode and fall back without having consumed
// anything (§4.1: "try-read-simple is non-destructive").
func (b *ByteBuffer) PeekToken() (Token, error) {
	if b.pos >= len(b.data) {
		return 0, errTruncated("peek token")
	}
	return Token(b.data[b.pos]), nil
}

func (b *ByteBuffer) ReadToken() (Token, error) {
	t, err := b.PeekToken()
	if err != nil {
		return 0, err
	}
	b.pos++
	return t, nil
}

func (b *ByteBuffer) WriteBool(v bool) {
	if v {
		b.writeAt([]byte{1})
	} else {
		b.writeAt([]byte{0})
	}
}

func (b *ByteBuffer) ReadBool() (bool, error) {
	v, err := b.readByte()
	return v != 0, err
}

func (b *ByteBuffer) WriteByte_(v byte)   { b.writeAt([]byte{v}) }
func (b *ByteBuffer) WriteSByte(v int8)   { b.writeAt([]byte{byte(v)}) }

func (b *ByteBuffer) readByte() (byte, error) {
	if b.pos >= len(b.data) {
		return 0, errTruncated("byte")
	}
	v := b.data[b.pos]
	b.pos++
	return v, nil
}

func (b *ByteBuffer) ReadByte_() (byte, error) { return b.readByte() }
func (b *ByteBuffer) ReadSByte() (int8, error) {
	v, err := b.readByte()
	return int8(v), err
}

func (b *ByteBuffer) WriteInt16(v int16)   { b.WriteUInt16(uint16(v)) }
func (b *ByteBuffer) WriteUInt16(v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	b.writeAt(tmp[:])
}

func (b *ByteBuffer) ReadInt16() (int16, error) {
	v, err := b.ReadUInt16()
	return int16(v), err
}
func (b *ByteBuffer) ReadUInt16() (uint16, error) {
	raw, err := b.readN(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(raw), nil
}

func (b *ByteBuffer) WriteInt32(v int32)   { b.WriteUInt32(uint32(v)) }
func (b *ByteBuffer) WriteUInt32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.writeAt(tmp[:])
}

func (b *ByteBuffer) ReadInt32() (int32, error) {
	v, err := b.ReadUInt32()
	return int32(v), err
}
func (b *ByteBuffer) ReadUInt32() (uint32, error) {
	raw, err := b.readN(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(raw), nil
}

func (b *ByteBuffer) WriteInt64(v int64)   { b.WriteUInt64(uint64(v)) }
func (b *ByteBuffer) WriteUInt64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	b.writeAt(tmp[:])
}

func (b *ByteBuffer) ReadInt64() (int64, error) {
	v, err := b.ReadUInt64()
	return int64(v), err
}
func (b *ByteBuffer) ReadUInt64() (uint64, error) {
	raw, err := b.readN(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(raw), nil
}

func (b *ByteBuffer) WriteFloat32(v float32) { b.WriteUInt32(math.Float32bits(v)) }
func (b *ByteBuffer) ReadFloat32() (float32, error) {
	v, err := b.ReadUInt32()
	return math.Float32frombits(v), err
}

func (b *ByteBuffer) WriteFloat64(v float64) { b.WriteUInt64(math.Float64bits(v)) }
func (b *ByteBuffer) ReadFloat64() (float64, error) {
	v, err := b.ReadUInt64()
	return math.Float64frombits(v), err
}

// WriteBinary writes a raw byte slice with no length prefix; callers that
// need framing write the length themselves (see WriteString, array codecs).
func (b *ByteBuffer) WriteBinary(p []byte) { b.writeAt(p) }

func (b *ByteBuffer) readN(n int) ([]byte, error) {
	if b.pos+n > len(b.data) {
		return nil, errTruncated("read")
	}
	raw := b.data[b.pos : b.pos+n]
	b.pos += n
	return raw, nil
}

func (b *ByteBuffer) ReadBinary(n int) ([]byte, error) { return b.readN(n) }

// WriteString writes a 4-byte little-endian length prefix followed by the
// raw UTF-8 bytes, per §4.1 and §6.
func (b *ByteBuffer) WriteString(s string) {
	b.WriteInt32(int32(len(s)))
	b.WriteBinary([]byte(s))
}

func (b *ByteBuffer) ReadString() (string, error) {
	n, err := b.ReadInt32()
	if err != nil {
		return "", err
	}
	raw, err := b.readN(int(n))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// WriteGuid writes the 16 raw bytes of a uuid.UUID in its canonical layout.
func (b *ByteBuffer) WriteGuid(id uuid.UUID) { b.WriteBinary(id[:]) }

func (b *ByteBuffer) ReadGuid() (uuid.UUID, error) {
	raw, err := b.readN(16)
	if err != nil {
		return uuid.UUID{}, err
	}
	var id uuid.UUID
	copy(id[:], raw)
	return id, nil
}

// dateKind distinguishes the three CLR-style DateTimeKind values the wire
// format carries alongside a tick count (§6).
type dateKind byte

const (
	dateKindUnspecified dateKind = iota
	dateKindUTC
	dateKindLocal
)

// WriteDate writes a 64-bit tick count (nanoseconds since the Unix epoch)
// plus a one-byte kind tag (§6) distinguishing UTC, Local and Unspecified,
// so a reader can restore a UTC or Local time.Time location instead of
// always assuming UTC; any other location is tagged Unspecified and decodes
// as Local.
func (b *ByteBuffer) WriteDate(ticks int64, kind byte) {
	b.WriteInt64(ticks)
	b.WriteByte_(kind)
}

func (b *ByteBuffer) ReadDate() (ticks int64, kind byte, err error) {
	if ticks, err = b.ReadInt64(); err != nil {
		return 0, 0, err
	}
	k, err := b.readByte()
	return ticks, k, err
}
