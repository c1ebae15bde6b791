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

// FallbackSerializer is the last-resort codec used when no other tier
// applies but SupportsType(t) is true (§3, §4.2 tier 8). A host may supply
// its own (e.g. a code-generated reflector); NewReflectFallback is the
// engine's own default.
type FallbackSerializer = Codec

// reflectFallback deep-walks exported struct fields via reflection. It is
// named in §6 as "used if none configured: an IL-emit-based deep
// reflector" — Go has no IL to emit, so this engine's analogue does the
// same job with plain reflect, field by field, the way the teacher's own
// mapSerializer/sliceSerializer walk composite values without codegen.
//
// It only claims pointer-to-struct types. Go struct values carry no
// identity of their own, so a bare struct can never participate in the
// back-reference graph (§4.4) the way a pointer can; restricting the
// fallback tier to *Struct keeps the "one shared, trackable node" shape
// that §8 properties 2 and 3 require instead of silently losing identity.
type reflectFallback struct {
	dispatch *Engine
}

// NewReflectFallback builds the default fallback serializer, bound to the
// engine so it can recurse through the full tie-break order for each field.
func NewReflectFallback(e *Engine) FallbackSerializer {
	return &reflectFallback{dispatch: e}
}

func (f *reflectFallback) SupportsType(t reflect.Type) bool {
	return t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct
}

func (f *reflectFallback) Copy(obj interface{}, ctx *CopyContext) (interface{}, error) {
	v := reflect.ValueOf(obj)
	cp, err := f.copyValue(v, ctx)
	if err != nil {
		return nil, err
	}
	return cp.Interface(), nil
}

func (f *reflectFallback) copyValue(v reflect.Value, ctx *CopyContext) (reflect.Value, error) {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return v, nil
		}
		if existing, ok := ctx.refs.lookup(v); ok {
			return existing, nil
		}
		out := reflect.New(v.Type().Elem())
		ctx.refs.record(v, out)
		elemCopy, err := f.copyValue(v.Elem(), ctx)
		if err != nil {
			return reflect.Value{}, err
		}
		out.Elem().Set(elemCopy)
		return out, nil
	}
	if v.Kind() != reflect.Struct {
		cp, err := f.dispatch.deepCopyInner(v, ctx)
		return cp, err
	}
	out := reflect.New(v.Type()).Elem()
	for i := 0; i < v.NumField(); i++ {
		sf := v.Type().Field(i)
		if sf.PkgPath != "" { // unexported
			continue
		}
		fieldCopy, err := f.dispatch.deepCopyInner(v.Field(i), ctx)
		if err != nil {
			return reflect.Value{}, err
		}
		out.Field(i).Set(fieldCopy)
	}
	return out, nil
}

func (f *reflectFallback) Serialize(obj interface{}, ctx *SerializeContext) error {
	v := reflect.ValueOf(obj).Elem()
	if v.Kind() != reflect.Struct {
		return errNoCodec(dumpType(v.Type()), obj)
	}
	t := v.Type()
	exported := int32(0)
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).PkgPath == "" {
			exported++
		}
	}
	ctx.Writer.WriteInt32(exported)
	for i := 0; i < v.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" {
			continue
		}
		ctx.Writer.WriteString(sf.Name)
		if err := f.dispatch.serializeInner(v.Field(i).Interface(), ctx, sf.Type); err != nil {
			return err
		}
	}
	return nil
}

// Deserialize allocates the pointer the decoded value will live at and
// records it into the back-reference table before filling any field, so a
// field that cycles back to this same object (§4.4, §8 property 2) resolves
// to the exact pointer later callers will also receive.
func (f *reflectFallback) Deserialize(expected reflect.Type, ctx *DeserializeContext) (interface{}, error) {
	t := expected
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, errStreamFormat("fallback deserialize: expected a struct type, got %v", expected)
	}
	ptr := reflect.New(t)
	ctx.refs.record(ctx.refs.current, ptr)

	n, err := ctx.Reader.ReadInt32()
	if err != nil {
		return nil, err
	}
	out := ptr.Elem()
	for i := int32(0); i < n; i++ {
		name, err := ctx.Reader.ReadString()
		if err != nil {
			return nil, err
		}
		field := out.FieldByName(name)
		var fieldType reflect.Type
		if field.IsValid() {
			fieldType = field.Type()
		}
		val, err := f.dispatch.deserializeInner(fieldType, ctx)
		if err != nil {
			return nil, err
		}
		if field.IsValid() && field.CanSet() && val != nil {
			field.Set(reflect.ValueOf(val))
		}
	}
	return ptr.Interface(), nil
}

// SerializableError is the synthetic error-type substituted in for any
// error value the fallback serializer refuses, so that exceptions are never
// un-transmittable (§4.2 matching exception clause, §7 InjectedFaults,
// §8 property 8).
type SerializableError struct {
	Message    string
	TypeName   string
	StackTrace string
}

func (e *SerializableError) Error() string { return e.Message }

// substituteError builds a SerializableError carrying the original error's
// message and concrete type name. StackTrace is left empty: nothing here
// extracts stack text from the original error.
func substituteError(err error) *SerializableError {
	return &SerializableError{
		Message:  err.Error(),
		TypeName: reflect.TypeOf(err).String(),
	}
}
