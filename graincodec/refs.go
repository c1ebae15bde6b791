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

import "reflect"

// refKey identifies an object by its runtime identity rather than its
// structural value, exactly as §4.4 and §9 require ("use an identity-keyed
// table ... rather than structural equality"). For pointers, maps, slices,
// channels and functions the identity is the underlying data pointer;
// interfaces are unwrapped to their concrete value first. Value types are
// never given a refKey and so are never deduplicated, satisfying the
// back-reference invariant in §3.
type refKey struct {
	ptr uintptr
	typ reflect.Type
}

// identityOf returns (key, ok). ok is false for value-typed objects, which
// must never be tracked.
func identityOf(v reflect.Value) (refKey, bool) {
	for v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	if !v.IsValid() {
		return refKey{}, false
	}
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		if v.IsNil() {
			return refKey{}, false
		}
		return refKey{ptr: v.Pointer(), typ: v.Type()}, true
	default:
		return refKey{}, false
	}
}

// serializeRefTracker assigns each reference-typed object the stream offset
// at which its body begins, the first time it is seen in one serialize
// operation (§4.4).
type serializeRefTracker struct {
	offsets map[refKey]int32
}

func newSerializeRefTracker() *serializeRefTracker {
	return &serializeRefTracker{offsets: make(map[refKey]int32)}
}

// lookup returns (offset, alreadySeen, trackable); trackable is false for
// value-typed objects. When alreadySeen is true, the caller must emit
// TokenReference + offset and stop; otherwise the caller must record the
// body's starting offset via record before writing it.
func (t *serializeRefTracker) lookup(v reflect.Value) (int32, bool, bool) {
	key, trackable := identityOf(v)
	if !trackable {
		return 0, false, false
	}
	off, seen := t.offsets[key]
	return off, seen, true
}

func (t *serializeRefTracker) record(v reflect.Value, offset int32) {
	key, trackable := identityOf(v)
	if !trackable {
		return
	}
	t.offsets[key] = offset
}

// deserializeRefTracker is the decode-side mirror: stream offset of an
// object's first materialization maps to the materialized value so that a
// later TokenReference can resolve it (§4.4).
type deserializeRefTracker struct {
	objects map[int32]reflect.Value
	// current is the offset at which the object presently being
	// deserialized started; it is saved/restored around every nested
	// deserialize call so inner structural reads never corrupt the
	// parent's offset (§4.4).
	current int32
}

func newDeserializeRefTracker() *deserializeRefTracker {
	return &deserializeRefTracker{objects: make(map[int32]reflect.Value)}
}

func (t *deserializeRefTracker) record(offset int32, v reflect.Value) {
	t.objects[offset] = v
}

func (t *deserializeRefTracker) resolve(offset int32) (reflect.Value, bool) {
	v, ok := t.objects[offset]
	return v, ok
}

// enter saves the current object offset and installs a new one, returning a
// function that restores the saved offset. Call via `defer tracker.enter(off)()`.
func (t *deserializeRefTracker) enter(offset int32) func() {
	saved := t.current
	t.current = offset
	return func() { t.current = saved }
}

// copyRefTracker maps an original object's identity to its already-produced
// copy, so deep-copy preserves shared subgraphs and terminates on cycles
// (§4.4, §9).
type copyRefTracker struct {
	copies map[refKey]reflect.Value
}

func newCopyRefTracker() *copyRefTracker {
	return &copyRefTracker{copies: make(map[refKey]reflect.Value)}
}

func (t *copyRefTracker) lookup(v reflect.Value) (reflect.Value, bool) {
	key, trackable := identityOf(v)
	if !trackable {
		return reflect.Value{}, false
	}
	cp, ok := t.copies[key]
	return cp, ok
}

func (t *copyRefTracker) record(v reflect.Value, copy_ reflect.Value) {
	key, trackable := identityOf(v)
	if !trackable {
		return
	}
	t.copies[key] = copy_
}
