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
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

type Node struct {
	Value int
	Next  *Node
}

type Record struct {
	Name string
}

func newTestEngine(t *testing.T) *Engine {
	e, err := NewEngine()
	require.NoError(t, err)
	require.NoError(t, e.RegisterMarker(reflect.TypeOf(Node{}), "Node"))
	require.NoError(t, e.RegisterMarker(reflect.TypeOf(Record{}), "Record"))
	return e
}

func serde(t *testing.T, e *Engine, v interface{}) interface{} {
	data, err := e.Serialize(v)
	require.NoError(t, err, "serializing %v", v)
	got, err := e.Deserialize(reflect.TypeOf(v), data)
	require.NoError(t, err, "deserializing %v", v)
	return got
}

// TestRoundTripPrimitives covers §8 property 1 for tier-1 values.
func TestRoundTripPrimitives(t *testing.T) {
	e := newTestEngine(t)
	values := []interface{}{
		true, false,
		byte(200), int8(-5),
		int16(-1000), uint16(1000),
		int32(-100000), uint32(100000),
		int64(-1 << 40), uint64(1 << 40),
		float32(1.5), float64(-2.5),
		"hello", "",
	}
	for _, v := range values {
		got := serde(t, e, v)
		require.Equal(t, v, got)
	}
}

// TestRoundTripScalarTableRows covers §8 table rows A-C.
func TestRoundTripScalarTableRows(t *testing.T) {
	e := newTestEngine(t)

	nilData, err := e.Serialize(nil)
	require.NoError(t, err)
	require.Equal(t, []byte{byte(TokenNull)}, nilData)
	gotNil, err := e.Deserialize(nil, nilData)
	require.NoError(t, err)
	require.Nil(t, gotNil)

	intData, err := e.Serialize(42)
	require.NoError(t, err)
	require.Equal(t, []byte{byte(TokenInt), 0x2A, 0x00, 0x00, 0x00}, intData)

	strData, err := e.Serialize("hello")
	require.NoError(t, err)
	want := []byte{byte(TokenString), 5, 0, 0, 0, 'h', 'e', 'l', 'l', 'o'}
	require.Equal(t, want, strData)
}

// TestExpectedTypeCollapse covers §8 property 5: when the expected type at
// decode matches the runtime type, the header shrinks to a single
// ExpectedType byte, and both forms decode identically.
func TestExpectedTypeCollapse(t *testing.T) {
	e := newTestEngine(t)
	rec := &Record{Name: "a"}

	data, err := e.Serialize(rec)
	require.NoError(t, err)
	require.Equal(t, TokenSpecifiedType, Token(data[0]))

	buf := NewByteBuffer(nil)
	ctx := newSerializeContext(buf, e.registry)
	err = e.serializeInner(rec, ctx, reflect.TypeOf(rec))
	require.NoError(t, err)
	require.Equal(t, TokenExpectedType, Token(buf.Bytes()[0]))

	decCtx := newDeserializeContext(NewByteBuffer(buf.Bytes()), e.registry)
	got, err := e.deserializeInner(reflect.TypeOf(rec), decCtx)
	require.NoError(t, err)
	require.Equal(t, rec, got)
}

// TestCyclePreservation covers §8 property 2 and table row E: a
// self-referential node round-trips without infinite recursion, and the
// recovered object's field points back at itself.
func TestCyclePreservation(t *testing.T) {
	e := newTestEngine(t)
	n := &Node{Value: 7}
	n.Next = n

	data, err := e.Serialize(n)
	require.NoError(t, err)

	got, err := e.Deserialize(reflect.TypeOf(n), data)
	require.NoError(t, err)
	m, ok := got.(*Node)
	require.True(t, ok)
	require.Equal(t, 7, m.Value)
	require.True(t, m.Next == m, "cyclic node must decode to a self-referential pointer")
}

// TestSharingPreservation covers §8 property 3 and table row F: two slots
// in a slice sharing one object decode to the same pointer, while a
// distinct object does not.
func TestSharingPreservation(t *testing.T) {
	e := newTestEngine(t)
	a := &Node{Value: 1}
	b := &Node{Value: 2}
	graph := []*Node{a, a, b}

	data, err := e.Serialize(graph)
	require.NoError(t, err)

	decoded, err := e.Deserialize(reflect.TypeOf(graph), data)
	require.NoError(t, err)
	result, ok := decoded.([]*Node)
	require.True(t, ok)
	require.Len(t, result, 3)
	require.True(t, result[0] == result[1], "shared nodes must decode to the same pointer")
	require.False(t, result[0] == result[2], "distinct nodes must decode to distinct pointers")
}

// TestDeepCopyPreservesValueButNotIdentity covers §8 property 1's deep-copy
// half: copies compare equal but are distinct objects for non-shallow types.
func TestDeepCopyPreservesValueButNotIdentity(t *testing.T) {
	e := newTestEngine(t)
	n := &Node{Value: 3}

	cp, err := e.DeepCopy(n)
	require.NoError(t, err)
	copied, ok := cp.(*Node)
	require.True(t, ok)
	require.Equal(t, n.Value, copied.Value)
	require.False(t, n == copied, "deep copy of a non-shallow-copyable type must not share identity")
}

func TestDeepCopyPreservesCycles(t *testing.T) {
	e := newTestEngine(t)
	n := &Node{Value: 9}
	n.Next = n

	cp, err := e.DeepCopy(n)
	require.NoError(t, err)
	copied := cp.(*Node)
	require.True(t, copied.Next == copied)
	require.False(t, copied == n)
}

// boomError is a value type (not a pointer-to-struct), so it falls outside
// the fallback serializer's pointer-to-struct support and must route
// through the error-substitution clause instead.
type boomError struct{ msg string }

func (b boomError) Error() string { return b.msg }

// TestNonSerializableExceptionFallback covers §8 property 8: an error type
// the fallback can't handle substitutes a SerializableError carrying the
// original type name and message.
func TestNonSerializableExceptionFallback(t *testing.T) {
	e := newTestEngine(t)
	orig := boomError{msg: "disk on fire"}

	data, err := e.Serialize(orig)
	require.NoError(t, err)

	got, err := e.Deserialize(reflect.TypeOf(&SerializableError{}), data)
	require.NoError(t, err)
	se, ok := got.(*SerializableError)
	require.True(t, ok)
	require.Equal(t, "disk on fire", se.Message)
	require.Contains(t, se.TypeName, "boomError")
}

func TestHasSerializerAndResolveTypeName(t *testing.T) {
	e := newTestEngine(t)
	require.True(t, e.HasSerializer(reflect.TypeOf(1)))
	require.False(t, e.HasSerializer(reflect.TypeOf(Node{})))

	got, err := e.ResolveTypeName("Node")
	require.NoError(t, err)
	require.Equal(t, reflect.TypeOf(&Node{}), got)
}

func TestRoundTripGenericHelper(t *testing.T) {
	e := newTestEngine(t)
	out, err := RoundTrip[int](e, 99)
	require.NoError(t, err)
	require.Equal(t, 99, out)

	str, err := RoundTrip[string](e, "abc")
	require.NoError(t, err)
	require.Equal(t, "abc", str)
}

func TestDeepCopyArrayInPlace(t *testing.T) {
	e := newTestEngine(t)
	arr := []*Node{{Value: 1}, {Value: 2}}
	err := e.DeepCopyArrayInPlace(&arr)
	require.NoError(t, err)
	require.Equal(t, 1, arr[0].Value)
	require.Equal(t, 2, arr[1].Value)
}

func TestRegistrationErrorAbortsConstruction(t *testing.T) {
	_, err := NewEngine(WithRegistration(reflect.TypeOf(Record{}), "Record", nil, noopSerializer, nil, false))
	require.Error(t, err)
	require.Contains(t, fmt.Sprintf("%v", err), "RegistrationInconsistency")
}
