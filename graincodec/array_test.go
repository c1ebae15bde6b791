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
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlittableTokenRecognizesAllTwelveElementTypes(t *testing.T) {
	cases := []struct {
		elem reflect.Type
		want Token
	}{
		{reflect.TypeOf(byte(0)), TokenByteArray},
		{reflect.TypeOf(int8(0)), TokenSByteArray},
		{reflect.TypeOf(false), TokenBoolArray},
		{charType, TokenCharArray},
		{reflect.TypeOf(int16(0)), TokenShortArray},
		{reflect.TypeOf(uint16(0)), TokenUShortArray},
		{reflect.TypeOf(int32(0)), TokenIntArray},
		{reflect.TypeOf(uint32(0)), TokenUIntArray},
		{reflect.TypeOf(int64(0)), TokenLongArray},
		{reflect.TypeOf(uint64(0)), TokenULongArray},
		{reflect.TypeOf(float32(0)), TokenFloatArray},
		{reflect.TypeOf(float64(0)), TokenDoubleArray},
	}
	for _, c := range cases {
		tok, ok := blittableToken(c.elem)
		require.True(t, ok, "expected %s to be blittable", c.elem)
		require.Equal(t, c.want, tok)
	}
}

func TestWriteReadBlittableArrayRoundTrip(t *testing.T) {
	buf := NewByteBuffer(nil)
	orig := []int32{-3, 0, 42, 1 << 20}
	writeBlittableArray(buf, reflect.ValueOf(orig), TokenIntArray)

	r := NewByteBuffer(buf.Bytes())
	out, err := readBlittableArray(r, reflect.TypeOf(int32(0)), TokenIntArray)
	require.NoError(t, err)
	require.Equal(t, orig, out.Interface())
}

// TestByteArrayBitExactness covers §8 property 4 and table row D: a
// rank-1 array of a blittable element type serializes as the type header,
// the element-specific array token, a 4-byte length, then the raw
// little-endian payload, with nothing else.
func TestByteArrayBitExactness(t *testing.T) {
	e, err := NewEngine()
	require.NoError(t, err)

	data, err := e.Serialize([]byte{1, 2, 3})
	require.NoError(t, err)

	want := []byte{byte(TokenSpecifiedType)}
	key := e.registry.TypeKeyOf(reflect.TypeOf([]byte{}))
	want = append(want, lengthPrefixed(key)...)
	want = append(want, byte(TokenByteArray))
	want = append(want, 3, 0, 0, 0)
	want = append(want, 1, 2, 3)
	require.Equal(t, want, data)
}

func lengthPrefixed(s string) []byte {
	b := NewByteBuffer(nil)
	b.WriteString(s)
	return b.Bytes()
}

func TestIsShallowCopyable(t *testing.T) {
	require.True(t, isShallowCopyable(reflect.TypeOf(int(0))))
	require.True(t, isShallowCopyable(reflect.TypeOf("")))
	require.False(t, isShallowCopyable(reflect.TypeOf([]int{})))
	require.False(t, isShallowCopyable(reflect.TypeOf(struct{}{})))
}
