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
	"time"

	"github.com/google/uuid"
)

var (
	timeType     = reflect.TypeOf(time.Time{})
	durationType = reflect.TypeOf(time.Duration(0))
	uuidType     = reflect.TypeOf(uuid.UUID{})
)

// serializeInner is the recursive heart of the Dispatcher (§4.6). It
// implements the normative tie-break order of §4.2:
//
//  1. primitive/simple fastpath
//  2. enums
//  3. bare object sentinel
//  4. arrays
//  5. external serializer hit
//  6. registered codec hit
//  7. keyed serializer hit
//  8. fallback serializer
//  9. failure (NoCodecFound), with the exception-substitution escape hatch
func (e *Engine) serializeInner(obj interface{}, ctx *SerializeContext, expected reflect.Type) error {
	if obj == nil {
		ctx.Writer.WriteToken(TokenNull)
		return nil
	}
	v := reflect.ValueOf(obj)
	t := v.Type()

	// A typed nil pointer/map/slice boxed in a non-nil interface fails the
	// obj == nil check above; catch it here rather than let every tier
	// below trip over a nil receiver.
	switch t.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		if v.IsNil() {
			ctx.Writer.WriteToken(TokenNull)
			return nil
		}
	}

	// Tier 1: fastpath. Never participates in back-reference tracking or
	// the type header — the token alone is unambiguous (§3 invariant:
	// "value-typed objects are never deduplicated").
	if handled, err := e.tryWriteSimple(v, t, ctx); handled {
		return err
	}

	trackable := false
	if e.referenceTracking {
		if offset, seen, ok := ctx.refs.lookup(v); ok {
			trackable = true
			if seen {
				ctx.Writer.WriteToken(TokenReference)
				ctx.Writer.WriteInt32(offset)
				return nil
			}
		}
	}

	switch {
	case isEnumType(t):
		return e.writeEnum(v, t, ctx, expected, trackable)
	case t == objectSentinelType:
		e.writeTypeHeader(ctx, t, expected)
		e.recordIfTrackable(ctx, v, trackable)
		ctx.Writer.WriteToken(TokenObject)
		return nil
	case t.Kind() == reflect.Slice, t.Kind() == reflect.Array:
		return e.writeArray(v, t, ctx, expected, trackable)
	}

	if codec, ok := e.external.Lookup(t); ok {
		e.writeTypeHeader(ctx, t, expected)
		e.recordIfTrackable(ctx, v, trackable)
		return codec.Serialize(obj, ctx)
	}

	if serializer, ok := e.registry.GetSerializer(t); ok {
		e.writeTypeHeader(ctx, t, expected)
		e.recordIfTrackable(ctx, v, trackable)
		return serializer(obj, ctx, expected)
	}

	if e.keyed != nil {
		if codec, ok := e.keyed.Lookup(t); ok {
			e.writeTypeHeader(ctx, t, expected)
			e.recordIfTrackable(ctx, v, trackable)
			ctx.Writer.WriteToken(TokenKeyedSerializer)
			ctx.Writer.WriteByte_(codec.SerializerId())
			return codec.Serialize(obj, ctx)
		}
	}

	if e.fallback != nil && e.fallback.SupportsType(t) {
		e.writeTypeHeader(ctx, t, expected)
		e.recordIfTrackable(ctx, v, trackable)
		ctx.Writer.WriteToken(TokenFallback)
		e.stats.IncFallbackSerializations()
		return e.fallback.Serialize(obj, ctx)
	}

	// Matching exception clause (§4.2): substitute a transmittable error
	// type rather than fail outright when the fallback refuses an error.
	if asErr, ok := obj.(error); ok {
		substitute := substituteError(asErr)
		return e.serializeInner(substitute, ctx, nil)
	}

	return errNoCodec(e.registry.TypeKeyOf(t), obj)
}

func (e *Engine) recordIfTrackable(ctx *SerializeContext, v reflect.Value, trackable bool) {
	if trackable {
		ctx.refs.record(v, int32(ctx.Writer.Position()))
	}
}

// writeTypeHeader implements the mechanical expected-type collapse of
// §4.1: when the runtime type equals the statically-known expected type,
// the header shrinks to a single ExpectedType byte.
func (e *Engine) writeTypeHeader(ctx *SerializeContext, t reflect.Type, expected reflect.Type) {
	if expected != nil && expected == t {
		ctx.Writer.WriteToken(TokenExpectedType)
		return
	}
	ctx.Writer.WriteToken(TokenSpecifiedType)
	ctx.Writer.WriteString(e.registry.TypeKeyOf(t))
}

// readTypeHeader is writeTypeHeader's mirror (§4.1, §7: ExpectedType with no
// expected type supplied is a StreamFormatError).
func (e *Engine) readTypeHeader(ctx *DeserializeContext, expected reflect.Type) (reflect.Type, error) {
	tok, err := ctx.Reader.ReadToken()
	if err != nil {
		return nil, err
	}
	switch tok {
	case TokenExpectedType:
		if expected == nil {
			return nil, errStreamFormat("ExpectedType token with no expected type supplied")
		}
		return expected, nil
	case TokenSpecifiedType:
		key, err := ctx.Reader.ReadString()
		if err != nil {
			return nil, err
		}
		return e.resolver.Resolve(key)
	default:
		return nil, errUnexpectedToken("type header", tok)
	}
}

// tryWriteSimple is tier 1 of §4.2: null, booleans, all primitive numeric
// kinds, strings, and the small well-known types (Guid, Date, TimeSpan).
// It never touches the header or the back-reference table, and leaves the
// cursor untouched if it declines (mirrors the non-destructive try-read on
// the decode side, §4.1).
func (e *Engine) tryWriteSimple(v reflect.Value, t reflect.Type, ctx *SerializeContext) (bool, error) {
	switch {
	case t == uuidType:
		ctx.Writer.WriteToken(TokenGuid)
		ctx.Writer.WriteGuid(v.Interface().(uuid.UUID))
		return true, nil
	case t == timeType:
		tm := v.Interface().(time.Time)
		ctx.Writer.WriteToken(TokenDate)
		ctx.Writer.WriteDate(tm.UnixNano(), dateKindFromTime(tm))
		return true, nil
	case t == durationType:
		ctx.Writer.WriteToken(TokenTimeSpan)
		ctx.Writer.WriteInt64(int64(v.Interface().(time.Duration)))
		return true, nil
	case t == charType:
		ctx.Writer.WriteToken(TokenChar)
		ctx.Writer.WriteUInt16(uint16(v.Uint()))
		return true, nil
	}

	if t.PkgPath() != "" && t.Kind() != reflect.String {
		// Named, non-builtin types fall through to the enum/registered
		// tiers rather than being treated as bare primitives, even if
		// their underlying kind is a primitive kind (§4.2 tier 1 vs 2).
		return false, nil
	}

	switch t.Kind() {
	case reflect.Bool:
		if v.Bool() {
			ctx.Writer.WriteToken(TokenTrue)
		} else {
			ctx.Writer.WriteToken(TokenFalse)
		}
		return true, nil
	case reflect.Uint8:
		ctx.Writer.WriteToken(TokenByte)
		ctx.Writer.WriteByte_(byte(v.Uint()))
		return true, nil
	case reflect.Int8:
		ctx.Writer.WriteToken(TokenSByte)
		ctx.Writer.WriteSByte(int8(v.Int()))
		return true, nil
	case reflect.Int16:
		ctx.Writer.WriteToken(TokenShort)
		ctx.Writer.WriteInt16(int16(v.Int()))
		return true, nil
	case reflect.Uint16:
		ctx.Writer.WriteToken(TokenUShort)
		ctx.Writer.WriteUInt16(uint16(v.Uint()))
		return true, nil
	case reflect.Int32, reflect.Int:
		ctx.Writer.WriteToken(TokenInt)
		ctx.Writer.WriteInt32(int32(v.Int()))
		return true, nil
	case reflect.Uint32, reflect.Uint:
		ctx.Writer.WriteToken(TokenUInt)
		ctx.Writer.WriteUInt32(uint32(v.Uint()))
		return true, nil
	case reflect.Int64:
		ctx.Writer.WriteToken(TokenLong)
		ctx.Writer.WriteInt64(v.Int())
		return true, nil
	case reflect.Uint64:
		ctx.Writer.WriteToken(TokenULong)
		ctx.Writer.WriteUInt64(v.Uint())
		return true, nil
	case reflect.Float32:
		ctx.Writer.WriteToken(TokenFloat)
		ctx.Writer.WriteFloat32(float32(v.Float()))
		return true, nil
	case reflect.Float64:
		ctx.Writer.WriteToken(TokenDouble)
		ctx.Writer.WriteFloat64(v.Float())
		return true, nil
	case reflect.String:
		ctx.Writer.WriteToken(TokenString)
		ctx.Writer.WriteString(v.String())
		return true, nil
	}
	return false, nil
}

// isSimplePrimitive reports whether t is handled entirely by the tier-1
// fastpath (tryWriteSimple/tryReadSimple) and therefore always has a codec
// even with no registry entry (§4.2 tier 1).
func isSimplePrimitive(t reflect.Type) bool {
	if t == nil {
		return false
	}
	switch t {
	case uuidType, timeType, durationType, charType:
		return true
	}
	if t.PkgPath() != "" && t.Kind() != reflect.String {
		return false
	}
	switch t.Kind() {
	case reflect.Bool, reflect.Uint8, reflect.Int8, reflect.Int16, reflect.Uint16,
		reflect.Int32, reflect.Int, reflect.Uint32, reflect.Uint,
		reflect.Int64, reflect.Uint64, reflect.Float32, reflect.Float64, reflect.String:
		return true
	default:
		return false
	}
}

func dateKindFromTime(t time.Time) byte {
	if t.Location() == time.UTC {
		return byte(dateKindUTC)
	}
	if t.Location() == time.Local {
		return byte(dateKindLocal)
	}
	return byte(dateKindUnspecified)
}

// isEnumType treats any named integer type that isn't a builtin alias as an
// enum (§4.2 tier 2, §9's open question about non-integer underlying
// representations: anything else simply isn't recognized as an enum here
// and falls through to later tiers, which is the "fail explicitly rather
// than silently widen" behavior §9 asks for).
func isEnumType(t reflect.Type) bool {
	if t == charType || t.PkgPath() == "" {
		return false
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	default:
		return false
	}
}

func (e *Engine) writeEnum(v reflect.Value, t reflect.Type, ctx *SerializeContext, expected reflect.Type, trackable bool) error {
	e.writeTypeHeader(ctx, t, expected)
	e.recordIfTrackable(ctx, v, trackable)
	underlying := underlyingTypeOf(t)
	_, err := e.tryWriteSimple(reflect.ValueOf(v.Convert(underlying).Interface()), underlying, ctx)
	return err
}

// underlyingTypeOf returns the builtin (unnamed) type with the same kind as
// t, so an enum's value can be routed through the plain integer fastpath.
func underlyingTypeOf(t reflect.Type) reflect.Type {
	switch t.Kind() {
	case reflect.Int:
		return reflect.TypeOf(int(0))
	case reflect.Int8:
		return reflect.TypeOf(int8(0))
	case reflect.Int16:
		return reflect.TypeOf(int16(0))
	case reflect.Int32:
		return reflect.TypeOf(int32(0))
	case reflect.Int64:
		return reflect.TypeOf(int64(0))
	case reflect.Uint:
		return reflect.TypeOf(uint(0))
	case reflect.Uint8:
		return reflect.TypeOf(uint8(0))
	case reflect.Uint16:
		return reflect.TypeOf(uint16(0))
	case reflect.Uint32:
		return reflect.TypeOf(uint32(0))
	case reflect.Uint64:
		return reflect.TypeOf(uint64(0))
	default:
		return t
	}
}

// writeArray dispatches to the blittable bulk path for rank-1 arrays of the
// twelve blittable element types, and to the generic row-major path
// otherwise (§4.5).
func (e *Engine) writeArray(v reflect.Value, t reflect.Type, ctx *SerializeContext, expected reflect.Type, trackable bool) error {
	e.writeTypeHeader(ctx, t, expected)
	e.recordIfTrackable(ctx, v, trackable)

	if v.Len() > e.largeArrayThreshold {
		e.stats.Warn("large array allocation: %d elements of %s", v.Len(), t.Elem())
	}

	if tok, ok := blittableToken(t.Elem()); ok && t.Kind() == reflect.Slice {
		ctx.Writer.WriteToken(tok)
		writeBlittableArray(ctx.Writer, v, tok)
		return nil
	}
	if tok, ok := blittableToken(t.Elem()); ok && t.Kind() == reflect.Array {
		ctx.Writer.WriteToken(tok)
		slice := reflect.MakeSlice(reflect.SliceOf(t.Elem()), v.Len(), v.Len())
		reflect.Copy(slice, v)
		writeBlittableArray(ctx.Writer, slice, tok)
		return nil
	}

	// Generic path: header encoding element type key + rank + dimension
	// lengths, then elements in row-major order (§4.5). Lower bounds are
	// assumed zero; Go's slice/array types are always rank 1 at this
	// level, so nested element types carry any further rank.
	ctx.Writer.WriteToken(TokenArray)
	ctx.Writer.WriteString(e.registry.TypeKeyOf(t.Elem()))
	ctx.Writer.WriteInt32(1) // rank
	ctx.Writer.WriteInt32(int32(v.Len()))
	for i := 0; i < v.Len(); i++ {
		if err := e.serializeInner(v.Index(i).Interface(), ctx, t.Elem()); err != nil {
			return err
		}
	}
	return nil
}

// deserializeInner is deserialize's recursive heart, mirroring
// serializeInner token-for-token.
func (e *Engine) deserializeInner(expected reflect.Type, ctx *DeserializeContext) (interface{}, error) {
	tok, err := ctx.Reader.PeekToken()
	if err != nil {
		return nil, err
	}

	if simple, handled, err := e.tryReadSimple(tok, ctx); handled {
		// tryWriteSimple writes Go's int/uint as TokenInt/TokenUInt; restore
		// the platform-width type when that is what the caller expects.
		if err == nil && simple != nil && expected != nil {
			rv := reflect.ValueOf(simple)
			if (expected.Kind() == reflect.Int && rv.Kind() == reflect.Int32) ||
				(expected.Kind() == reflect.Uint && rv.Kind() == reflect.Uint32) {
				simple = rv.Convert(expected).Interface()
			}
		}
		return simple, err
	}

	if tok == TokenReference {
		_, _ = ctx.Reader.ReadToken()
		offset, err := ctx.Reader.ReadInt32()
		if err != nil {
			return nil, err
		}
		v, ok := ctx.refs.resolve(offset)
		if !ok {
			return nil, errStreamFormat("dangling reference to offset %d", offset)
		}
		return v.Interface(), nil
	}

	if tok != TokenSpecifiedType && tok != TokenExpectedType {
		return nil, errUnexpectedToken("value", tok)
	}

	t, err := e.readTypeHeader(ctx, expected)
	if err != nil {
		return nil, err
	}
	bodyOffset := int32(ctx.Reader.Position())
	restore := ctx.refs.enter(bodyOffset)
	defer restore()

	next, err := ctx.Reader.PeekToken()
	if err != nil {
		return nil, err
	}

	switch {
	case isEnumType(t):
		return e.readEnum(t, ctx, bodyOffset)
	case t == objectSentinelType:
		_, _ = ctx.Reader.ReadToken()
		sentinel := reflect.New(objectSentinelType).Elem()
		ctx.refs.record(bodyOffset, sentinel)
		return sentinel.Interface(), nil
	case next == TokenArray || isArrayToken(next):
		return e.readArray(t, ctx, bodyOffset)
	case next == TokenKeyedSerializer:
		_, _ = ctx.Reader.ReadToken()
		id, err := ctx.Reader.ReadByte_()
		if err != nil {
			return nil, err
		}
		codec, ok := e.keyed.ById(id)
		if !ok {
			return nil, errStreamFormat("unknown keyed serializer id %d", id)
		}
		v, err := codec.Deserialize(t, ctx)
		recordDecodedIfTrackable(ctx, bodyOffset, v)
		return v, err
	case next == TokenFallback:
		_, _ = ctx.Reader.ReadToken()
		e.stats.IncFallbackDeserializations()
		v, err := e.fallback.Deserialize(t, ctx)
		recordDecodedIfTrackable(ctx, bodyOffset, v)
		return v, err
	}

	if codec, ok := e.external.Lookup(t); ok {
		v, err := codec.Deserialize(t, ctx)
		recordDecodedIfTrackable(ctx, bodyOffset, v)
		return v, err
	}
	if deserializer, ok := e.registry.GetDeserializer(t); ok {
		v, err := deserializer(t, ctx)
		recordDecodedIfTrackable(ctx, bodyOffset, v)
		return v, err
	}
	return nil, errNoCodec(e.registry.TypeKeyOf(t), nil)
}

// recordDecodedIfTrackable registers a tier-5/6/7/8 materialized value under
// the offset just past its type header (the same offset the encoder
// recorded), so a later back-reference to the same
// object resolves (§4.4). Value-typed results are silently skipped, mirroring
// the encode-side identityOf check.
func recordDecodedIfTrackable(ctx *DeserializeContext, offset int32, v interface{}) {
	if v == nil {
		return
	}
	rv := reflect.ValueOf(v)
	if _, trackable := identityOf(rv); !trackable {
		return
	}
	ctx.refs.record(offset, rv)
}

func isArrayToken(t Token) bool {
	switch t {
	case TokenByteArray, TokenSByteArray, TokenBoolArray, TokenCharArray,
		TokenShortArray, TokenUShortArray, TokenIntArray, TokenUIntArray,
		TokenLongArray, TokenULongArray, TokenFloatArray, TokenDoubleArray:
		return true
	default:
		return false
	}
}

func (e *Engine) readEnum(t reflect.Type, ctx *DeserializeContext, bodyOffset int32) (interface{}, error) {
	raw, _, err := e.tryReadSimplePeek(ctx)
	if err != nil {
		return nil, err
	}
	v := reflect.New(t).Elem()
	rv := reflect.ValueOf(raw)
	switch {
	case rv.CanInt():
		v.SetInt(rv.Int())
	case rv.CanUint():
		v.SetUint(rv.Uint())
	default:
		return nil, errStreamFormat("enum %s has non-integer underlying value", t)
	}
	ctx.refs.record(bodyOffset, v)
	return v.Interface(), nil
}

func (e *Engine) tryReadSimplePeek(ctx *DeserializeContext) (interface{}, bool, error) {
	tok, err := ctx.Reader.PeekToken()
	if err != nil {
		return nil, false, err
	}
	return e.tryReadSimple(tok, ctx)
}

func (e *Engine) readArray(t reflect.Type, ctx *DeserializeContext, bodyOffset int32) (interface{}, error) {
	tok, err := ctx.Reader.ReadToken()
	if err != nil {
		return nil, err
	}
	if tok == TokenArray {
		elemKeyStr, err := ctx.Reader.ReadString()
		if err != nil {
			return nil, err
		}
		elemType, err := e.resolver.Resolve(elemKeyStr)
		if err != nil {
			return nil, err
		}
		if _, err := ctx.Reader.ReadInt32(); err != nil { // rank, assumed 1 (see writeArray)
			return nil, err
		}
		n, err := ctx.Reader.ReadInt32()
		if err != nil {
			return nil, err
		}
		out := reflect.MakeSlice(reflect.SliceOf(elemType), int(n), int(n))
		ctx.refs.record(bodyOffset, out)
		for i := int32(0); i < n; i++ {
			elem, err := e.deserializeInner(elemType, ctx)
			if err != nil {
				return nil, err
			}
			if elem != nil {
				out.Index(int(i)).Set(reflect.ValueOf(elem))
			}
		}
		return out.Interface(), nil
	}

	elemType := t.Elem()
	out, err := readBlittableArray(ctx.Reader, elemType, tok)
	if err != nil {
		return nil, err
	}
	ctx.refs.record(bodyOffset, out)
	return out.Interface(), nil
}

// tryReadSimple mirrors tryWriteSimple. It peeks but does not consume tok
// when it declines, per §4.1's non-destructive try-read guarantee.
func (e *Engine) tryReadSimple(tok Token, ctx *DeserializeContext) (interface{}, bool, error) {
	switch tok {
	case TokenNull:
		_, _ = ctx.Reader.ReadToken()
		return nil, true, nil
	case TokenTrue:
		_, _ = ctx.Reader.ReadToken()
		return true, true, nil
	case TokenFalse:
		_, _ = ctx.Reader.ReadToken()
		return false, true, nil
	case TokenByte:
		_, _ = ctx.Reader.ReadToken()
		v, err := ctx.Reader.ReadByte_()
		return v, true, err
	case TokenSByte:
		_, _ = ctx.Reader.ReadToken()
		v, err := ctx.Reader.ReadSByte()
		return v, true, err
	case TokenShort:
		_, _ = ctx.Reader.ReadToken()
		v, err := ctx.Reader.ReadInt16()
		return v, true, err
	case TokenUShort:
		_, _ = ctx.Reader.ReadToken()
		v, err := ctx.Reader.ReadUInt16()
		return v, true, err
	case TokenInt:
		_, _ = ctx.Reader.ReadToken()
		v, err := ctx.Reader.ReadInt32()
		return v, true, err
	case TokenUInt:
		_, _ = ctx.Reader.ReadToken()
		v, err := ctx.Reader.ReadUInt32()
		return v, true, err
	case TokenLong:
		_, _ = ctx.Reader.ReadToken()
		v, err := ctx.Reader.ReadInt64()
		return v, true, err
	case TokenULong:
		_, _ = ctx.Reader.ReadToken()
		v, err := ctx.Reader.ReadUInt64()
		return v, true, err
	case TokenFloat:
		_, _ = ctx.Reader.ReadToken()
		v, err := ctx.Reader.ReadFloat32()
		return v, true, err
	case TokenDouble:
		_, _ = ctx.Reader.ReadToken()
		v, err := ctx.Reader.ReadFloat64()
		return v, true, err
	case TokenChar:
		_, _ = ctx.Reader.ReadToken()
		v, err := ctx.Reader.ReadUInt16()
		return Char(v), true, err
	case TokenString:
		_, _ = ctx.Reader.ReadToken()
		v, err := ctx.Reader.ReadString()
		return v, true, err
	case TokenGuid:
		_, _ = ctx.Reader.ReadToken()
		v, err := ctx.Reader.ReadGuid()
		return v, true, err
	case TokenDate:
		_, _ = ctx.Reader.ReadToken()
		ticks, kind, err := ctx.Reader.ReadDate()
		if err != nil {
			return nil, true, err
		}
		tm := time.Unix(0, ticks)
		switch dateKind(kind) {
		case dateKindUTC:
			tm = tm.UTC()
		case dateKindLocal:
			tm = tm.Local()
		}
		return tm, true, nil
	case TokenTimeSpan:
		_, _ = ctx.Reader.ReadToken()
		v, err := ctx.Reader.ReadInt64()
		return time.Duration(v), true, err
	default:
		return nil, false, nil
	}
}

// deepCopyInner implements deep-copy's tie-break order (§4.6): shallow-copy
// shortcut, cycle termination via the copy table, then structural copying of
// non-struct pointers, slices, arrays, maps and interfaces, and only then
// external / registered / keyed / fallback, in that order. Slices and arrays
// are therefore copied element-wise before any external or registered copier
// is consulted for their type.
func (e *Engine) deepCopyInner(v reflect.Value, ctx *CopyContext) (reflect.Value, error) {
	if !v.IsValid() {
		return v, nil
	}
	t := v.Type()

	if isShallowCopyable(t) || t == charType || t == uuidType || t == timeType || t == durationType {
		return v, nil
	}

	if existing, ok := ctx.refs.lookup(v); ok {
		return existing, nil
	}

	switch t.Kind() {
	case reflect.Ptr:
		// A non-nil pointer-to-struct goes through the codec tiers below (the
		// default fallback claims *Struct), mirroring serializeInner.
		if v.IsNil() || t.Elem().Kind() != reflect.Struct {
			return e.deepCopyPtr(v, ctx)
		}
	case reflect.Slice:
		return e.deepCopySlice(v, t, ctx)
	case reflect.Array:
		return e.deepCopyArrayValue(v, t, ctx)
	case reflect.Map:
		return e.deepCopyMap(v, t, ctx)
	case reflect.Interface:
		if v.IsNil() {
			return v, nil
		}
		return e.deepCopyInner(v.Elem(), ctx)
	}

	if codec, ok := e.external.Lookup(t); ok {
		cp, err := codec.Copy(v.Interface(), ctx)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(cp), nil
	}
	if copier, ok := e.registry.GetCopier(t); ok {
		cp, err := copier(v.Interface(), ctx)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(cp), nil
	}
	if e.keyed != nil {
		if codec, ok := e.keyed.Lookup(t); ok {
			cp, err := codec.Copy(v.Interface(), ctx)
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(cp), nil
		}
	}
	if e.fallback != nil && e.fallback.SupportsType(t) {
		e.stats.IncFallbackCopies()
		cp, err := e.fallback.Copy(v.Interface(), ctx)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(cp), nil
	}
	return reflect.Value{}, errNoCodec(e.registry.TypeKeyOf(t), v.Interface())
}

func (e *Engine) deepCopyPtr(v reflect.Value, ctx *CopyContext) (reflect.Value, error) {
	if v.IsNil() {
		return v, nil
	}
	out := reflect.New(v.Type().Elem())
	ctx.refs.record(v, out)
	elemCopy, err := e.deepCopyInner(v.Elem(), ctx)
	if err != nil {
		return reflect.Value{}, err
	}
	out.Elem().Set(elemCopy)
	return out, nil
}

func (e *Engine) deepCopySlice(v reflect.Value, t reflect.Type, ctx *CopyContext) (reflect.Value, error) {
	if v.IsNil() {
		return v, nil
	}
	if v.Len() > e.largeArrayThreshold {
		e.stats.Warn("large array copy: %d elements of %s", v.Len(), t.Elem())
	}
	out := reflect.MakeSlice(t, v.Len(), v.Len())
	ctx.refs.record(v, out)
	if isShallowCopyable(t.Elem()) {
		reflect.Copy(out, v)
		return out, nil
	}
	for i := 0; i < v.Len(); i++ {
		cp, err := e.deepCopyInner(v.Index(i), ctx)
		if err != nil {
			return reflect.Value{}, err
		}
		out.Index(i).Set(cp)
	}
	return out, nil
}

func (e *Engine) deepCopyArrayValue(v reflect.Value, t reflect.Type, ctx *CopyContext) (reflect.Value, error) {
	out := reflect.New(t).Elem()
	if isShallowCopyable(t.Elem()) {
		reflect.Copy(out.Slice(0, out.Len()), v.Slice(0, v.Len()))
		return out, nil
	}
	for i := 0; i < v.Len(); i++ {
		cp, err := e.deepCopyInner(v.Index(i), ctx)
		if err != nil {
			return reflect.Value{}, err
		}
		out.Index(i).Set(cp)
	}
	return out, nil
}

func (e *Engine) deepCopyMap(v reflect.Value, t reflect.Type, ctx *CopyContext) (reflect.Value, error) {
	if v.IsNil() {
		return v, nil
	}
	out := reflect.MakeMapWithSize(t, v.Len())
	ctx.refs.record(v, out)
	iter := v.MapRange()
	for iter.Next() {
		k, err := e.deepCopyInner(iter.Key(), ctx)
		if err != nil {
			return reflect.Value{}, err
		}
		val, err := e.deepCopyInner(iter.Value(), ctx)
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetMapIndex(k, val)
	}
	return out, nil
}
