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
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestByteBufferPrimitiveRoundTrip(t *testing.T) {
	buf := NewByteBuffer(nil)
	buf.WriteBool(true)
	buf.WriteBool(false)
	buf.WriteByte_(0xAB)
	buf.WriteSByte(-7)
	buf.WriteInt16(-12345)
	buf.WriteUInt16(54321)
	buf.WriteInt32(-123456789)
	buf.WriteUInt32(3000000000)
	buf.WriteInt64(-1234567890123)
	buf.WriteUInt64(18000000000000000000)
	buf.WriteFloat32(3.5)
	buf.WriteFloat64(-2.25)
	buf.WriteString("héllo")
	id := uuid.New()
	buf.WriteGuid(id)
	buf.WriteDate(123456789, byte(dateKindUTC))

	r := NewByteBuffer(buf.Bytes())

	b1, err := r.ReadBool()
	require.NoError(t, err)
	require.True(t, b1)
	b2, err := r.ReadBool()
	require.NoError(t, err)
	require.False(t, b2)

	u8, err := r.ReadByte_()
	require.NoError(t, err)
	require.Equal(t, byte(0xAB), u8)

	i8, err := r.ReadSByte()
	require.NoError(t, err)
	require.Equal(t, int8(-7), i8)

	i16, err := r.ReadInt16()
	require.NoError(t, err)
	require.Equal(t, int16(-12345), i16)

	u16, err := r.ReadUInt16()
	require.NoError(t, err)
	require.Equal(t, uint16(54321), u16)

	i32, err := r.ReadInt32()
	require.NoError(t, err)
	require.Equal(t, int32(-123456789), i32)

	u32, err := r.ReadUInt32()
	require.NoError(t, err)
	require.Equal(t, uint32(3000000000), u32)

	i64, err := r.ReadInt64()
	require.NoError(t, err)
	require.Equal(t, int64(-1234567890123), i64)

	u64, err := r.ReadUInt64()
	require.NoError(t, err)
	require.Equal(t, uint64(18000000000000000000), u64)

	f32, err := r.ReadFloat32()
	require.NoError(t, err)
	require.Equal(t, float32(3.5), f32)

	f64, err := r.ReadFloat64()
	require.NoError(t, err)
	require.Equal(t, float64(-2.25), f64)

	s, err := r.ReadString()
	require.NoError(t, err)
	require.Equal(t, "héllo", s)

	gotID, err := r.ReadGuid()
	require.NoError(t, err)
	require.Equal(t, id, gotID)

	ticks, kind, err := r.ReadDate()
	require.NoError(t, err)
	require.Equal(t, int64(123456789), ticks)
	require.Equal(t, byte(dateKindUTC), kind)
}

func TestByteBufferPeekTokenIsNonDestructive(t *testing.T) {
	buf := NewByteBuffer(nil)
	buf.WriteToken(TokenInt)
	buf.WriteInt32(7)
	r := NewByteBuffer(buf.Bytes())

	peeked, err := r.PeekToken()
	require.NoError(t, err)
	require.Equal(t, TokenInt, peeked)

	peekedAgain, err := r.PeekToken()
	require.NoError(t, err)
	require.Equal(t, TokenInt, peekedAgain, "peeking twice must not advance the cursor")

	tok, err := r.ReadToken()
	require.NoError(t, err)
	require.Equal(t, TokenInt, tok)

	v, err := r.ReadInt32()
	require.NoError(t, err)
	require.Equal(t, int32(7), v)
}

func TestByteBufferTruncatedReadErrors(t *testing.T) {
	r := NewByteBuffer([]byte{0x01})
	_, err := r.ReadInt32()
	require.Error(t, err)
	var codecErr *CodecError
	require.ErrorAs(t, err, &codecErr)
	require.Equal(t, StreamFormatError, codecErr.Kind)
}

func TestByteBufferStringLengthPrefix(t *testing.T) {
	buf := NewByteBuffer(nil)
	buf.WriteString("abc")
	// 4-byte little-endian length prefix, then raw UTF-8 bytes (§4.1/§6).
	require.Equal(t, []byte{3, 0, 0, 0, 'a', 'b', 'c'}, buf.Bytes())
}
