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

// Token is the single leading byte of every item on the wire. It tells the
// reader how to interpret the bytes that follow, mirroring the tag byte the
// teacher's xlang protocol uses ahead of every value, but with a token set
// shaped for this engine's tie-break order (§4.2 of the design) rather than
// fory's numeric TypeId space.
type Token byte

const (
	TokenNull Token = iota
	TokenTrue
	TokenFalse
	TokenByte
	TokenSByte
	TokenShort
	TokenUShort
	TokenInt
	TokenUInt
	TokenLong
	TokenULong
	TokenFloat
	TokenDouble
	TokenDecimal
	TokenChar
	TokenString
	TokenGuid
	TokenDate
	TokenTimeSpan
	TokenObject

	TokenByteArray
	TokenSByteArray
	TokenBoolArray
	TokenCharArray
	TokenShortArray
	TokenUShortArray
	TokenIntArray
	TokenUIntArray
	TokenLongArray
	TokenULongArray
	TokenFloatArray
	TokenDoubleArray

	TokenSpecifiedType
	TokenExpectedType
	TokenReference
	TokenFallback
	TokenKeyedSerializer

	// TokenArray introduces the generic, non-blittable array header described
	// in §4.5: element type key, rank, then per-dimension lengths.
	TokenArray

	// TokenEnum is not written by the dispatcher: an enum (§4.2 step 2) is
	// encoded as its type header followed directly by its underlying
	// integer's fastpath token.
	TokenEnum
)

func (t Token) String() string {
	if int(t) < len(tokenNames) {
		return tokenNames[t]
	}
	return "Token(?)"
}

var tokenNames = [...]string{
	"Null", "True", "False", "Byte", "SByte", "Short", "UShort", "Int",
	"UInt", "Long", "ULong", "Float", "Double", "Decimal", "Char", "String",
	"Guid", "Date", "TimeSpan", "Object",
	"ByteArray", "SByteArray", "BoolArray", "CharArray", "ShortArray",
	"UShortArray", "IntArray", "UIntArray", "LongArray", "ULongArray",
	"FloatArray", "DoubleArray",
	"SpecifiedType", "ExpectedType", "Reference", "Fallback", "KeyedSerializer",
	"Array", "Enum",
}
