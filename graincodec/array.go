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
)

// Char stands in for the source's UTF-16 character primitive; it is its own
// blittable array element type distinct from uint16 (§4.1 lists Char and
// UShort as separate tokens).
type Char uint16

var blittableElemTokens = map[reflect.Kind]Token{
	reflect.Uint8:   TokenByteArray,
	reflect.Int8:    TokenSByteArray,
	reflect.Bool:    TokenBoolArray,
	reflect.Int16:   TokenShortArray,
	reflect.Uint16:  TokenUShortArray,
	reflect.Int32:   TokenIntArray,
	reflect.Uint32:  TokenUIntArray,
	reflect.Int64:   TokenLongArray,
	reflect.Uint64:  TokenULongArray,
	reflect.Float32: TokenFloatArray,
	reflect.Float64: TokenDoubleArray,
}

var charType = reflect.TypeOf(Char(0))

// blittableToken returns the dedicated array token for elemType, special
// casing Char (which otherwise collides with Uint16's kind) ahead of the
// generic kind table (§4.1: "Rank-1 arrays of the twelve blittable element
// types have dedicated tokens").
func blittableToken(elemType reflect.Type) (Token, bool) {
	if elemType == charType {
		return TokenCharArray, true
	}
	t, ok := blittableElemTokens[elemType.Kind()]
	return t, ok
}

// defaultLargeArrayThreshold is the default element-count threshold
// (overridable with WithLargeArrayThreshold) above which writing or
// deep-copying an array emits a statistics-sink warning (§4.5, §9). It is a
// user-visible notice only — it never changes control flow.
const defaultLargeArrayThreshold = 8192

// writeBlittableArray bulk-writes a rank-1 slice/array of a blittable
// element type as: length (4 bytes), then the raw little-endian payload,
// with no per-element token (§4.1, §8 property 4).
func writeBlittableArray(buf *ByteBuffer, v reflect.Value, tok Token) {
	n := v.Len()
	buf.WriteInt32(int32(n))
	for i := 0; i < n; i++ {
		elem := v.Index(i)
		switch tok {
		case TokenByteArray:
			buf.WriteByte_(byte(elem.Uint()))
		case TokenSByteArray:
			buf.WriteSByte(int8(elem.Int()))
		case TokenBoolArray:
			buf.WriteBool(elem.Bool())
		case TokenShortArray:
			buf.WriteInt16(int16(elem.Int()))
		case TokenUShortArray:
			buf.WriteUInt16(uint16(elem.Uint()))
		case TokenCharArray:
			buf.WriteUInt16(uint16(elem.Uint()))
		case TokenIntArray:
			buf.WriteInt32(int32(elem.Int()))
		case TokenUIntArray:
			buf.WriteUInt32(uint32(elem.Uint()))
		case TokenLongArray:
			buf.WriteInt64(elem.Int())
		case TokenULongArray:
			buf.WriteUInt64(elem.Uint())
		case TokenFloatArray:
			buf.WriteFloat32(float32(elem.Float()))
		case TokenDoubleArray:
			buf.WriteFloat64(elem.Float())
		}
	}
}

// readBlittableArray is writeBlittableArray's mirror, allocating a fresh
// slice of elemType and filling it element by element.
func readBlittableArray(buf *ByteBuffer, elemType reflect.Type, tok Token) (reflect.Value, error) {
	n, err := buf.ReadInt32()
	if err != nil {
		return reflect.Value{}, err
	}
	out := reflect.MakeSlice(reflect.SliceOf(elemType), int(n), int(n))
	for i := 0; i < int(n); i++ {
		elem := out.Index(i)
		switch tok {
		case TokenByteArray:
			v, err := buf.ReadByte_()
			if err != nil {
				return reflect.Value{}, err
			}
			elem.SetUint(uint64(v))
		case TokenSByteArray:
			v, err := buf.ReadSByte()
			if err != nil {
				return reflect.Value{}, err
			}
			elem.SetInt(int64(v))
		case TokenBoolArray:
			v, err := buf.ReadBool()
			if err != nil {
				return reflect.Value{}, err
			}
			elem.SetBool(v)
		case TokenShortArray:
			v, err := buf.ReadInt16()
			if err != nil {
				return reflect.Value{}, err
			}
			elem.SetInt(int64(v))
		case TokenUShortArray, TokenCharArray:
			v, err := buf.ReadUInt16()
			if err != nil {
				return reflect.Value{}, err
			}
			elem.SetUint(uint64(v))
		case TokenIntArray:
			v, err := buf.ReadInt32()
			if err != nil {
				return reflect.Value{}, err
			}
			elem.SetInt(int64(v))
		case TokenUIntArray:
			v, err := buf.ReadUInt32()
			if err != nil {
				return reflect.Value{}, err
			}
			elem.SetUint(uint64(v))
		case TokenLongArray:
			v, err := buf.ReadInt64()
			if err != nil {
				return reflect.Value{}, err
			}
			elem.SetInt(v)
		case TokenULongArray:
			v, err := buf.ReadUInt64()
			if err != nil {
				return reflect.Value{}, err
			}
			elem.SetUint(v)
		case TokenFloatArray:
			v, err := buf.ReadFloat32()
			if err != nil {
				return reflect.Value{}, err
			}
			elem.SetFloat(float64(v))
		case TokenDoubleArray:
			v, err := buf.ReadFloat64()
			if err != nil {
				return reflect.Value{}, err
			}
			elem.SetFloat(v)
		}
	}
	return out, nil
}

// isShallowCopyable reports whether values of t are safe to share by
// reference during deep-copy rather than walked field by field (§3 GLOSSARY
// "Shallow-copyable"). Only bool, numeric and string kinds qualify; struct
// types, immutable or not, are never treated as shallow-copyable.
func isShallowCopyable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.String:
		return true
	default:
		return false
	}
}

