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

// SerializeContext is exclusively owned by one serialize operation (§5: "a
// single serialize ... operation is single-threaded and owns its context
// exclusively").
type SerializeContext struct {
	Writer   *ByteBuffer
	refs     *serializeRefTracker
	registry *TypeRegistry
}

func newSerializeContext(w *ByteBuffer, reg *TypeRegistry) *SerializeContext {
	return &SerializeContext{Writer: w, refs: newSerializeRefTracker(), registry: reg}
}

// DeserializeContext is exclusively owned by one deserialize operation.
type DeserializeContext struct {
	Reader   *ByteBuffer
	refs     *deserializeRefTracker
	registry *TypeRegistry
}

func newDeserializeContext(r *ByteBuffer, reg *TypeRegistry) *DeserializeContext {
	return &DeserializeContext{Reader: r, refs: newDeserializeRefTracker(), registry: reg}
}

// CopyContext is exclusively owned by one deep-copy operation.
type CopyContext struct {
	refs     *copyRefTracker
	registry *TypeRegistry
}

func newCopyContext(reg *TypeRegistry) *CopyContext {
	return &CopyContext{refs: newCopyRefTracker(), registry: reg}
}
