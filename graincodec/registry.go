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
	"sync"
)

// Copier deep-copies obj, threading ctx so nested fields can themselves be
// deep-copied or have their identity preserved (§3).
type Copier func(obj interface{}, ctx *CopyContext) (interface{}, error)

// Serializer writes obj's body to ctx.Writer. expected is the statically
// known type at this position in the graph, used for the expected-type
// header collapse (§4.1).
type Serializer func(obj interface{}, ctx *SerializeContext, expected reflect.Type) error

// Deserializer reads one value of (at most) expected's type from ctx.Reader.
type Deserializer func(expected reflect.Type, ctx *DeserializeContext) (interface{}, error)

// codecEntry is the registry entry of §3: a stable type-key plus the
// (copier, serializer, deserializer) triple, any subset of which may be nil
// per the pairing invariant enforced by register().
type codecEntry struct {
	typeKey      string
	copier       Copier
	serializer   Serializer
	deserializer Deserializer
}

// GenericFactory instantiates a generic serializer definition (e.g. "a
// registered List<T>") against concrete type arguments, producing the
// specialized codec triple to cache under the concrete type (§4.2,
// "registerConcreteOfGeneric", §9 "Generic-definition specialization").
type GenericFactory func(typeArgs []reflect.Type) (Copier, Serializer, Deserializer, error)

type genericDefinition struct {
	baseKey string
	arity   int
	factory GenericFactory
}

// TypeRegistry is the bidirectional mapping between runtime types, stable
// type-key strings, and codec triples described in §4.2. It is read on
// every operation and written only by registration calls and by lazy
// generic specialization (§5), so reads
// take the fast RLock path and writes are coarse-grained, matching the
// teacher's map-of-caches-behind-a-resolver shape in its typeResolver.
type TypeRegistry struct {
	mu sync.RWMutex

	byConcreteType map[reflect.Type]*codecEntry
	keyToType      map[string]reflect.Type

	// byGenericDefinition indexes specializable definitions by the
	// resolver's "base<arity>" alternative key (§4.3).
	byGenericDefinition map[string]*genericDefinition

	// knownTypes maps a type key to a fully-qualified name for types the
	// registry has not seen a direct registration for yet, populated at
	// startup from discovered metadata (§3).
	knownTypes map[string]string

	resolver *TypeNameResolver
}

// NewTypeRegistry constructs a registry holding only the builtin leaf type
// keys (see seedBuiltinTypeKeys). The resolver field is left nil; the
// registry never consults a resolver, and the resolver reaches the registry
// through its own reference.
func NewTypeRegistry() *TypeRegistry {
	r := &TypeRegistry{
		byConcreteType:      make(map[reflect.Type]*codecEntry),
		keyToType:           make(map[string]reflect.Type),
		byGenericDefinition: make(map[string]*genericDefinition),
		knownTypes:          make(map[string]string),
	}
	r.seedBuiltinTypeKeys()
	return r
}

// seedBuiltinTypeKeys pre-registers every leaf kind the tier-1 fastpath
// understands (the integer/float/bool/string kinds plus Char, Guid,
// DateTime and TimeSpan) under its reflect.Type.String() key, so a
// composite type key built around one of them — `int[]`, `uint8[]`,
// `Map<string,int>` — resolves back to the exact same leaf type on decode
// instead of failing resolution for never having been registered (§4.3).
func (r *TypeRegistry) seedBuiltinTypeKeys() {
	builtins := []reflect.Type{
		reflect.TypeOf(false),
		reflect.TypeOf(int8(0)), reflect.TypeOf(int16(0)), reflect.TypeOf(int32(0)),
		reflect.TypeOf(int64(0)), reflect.TypeOf(int(0)),
		reflect.TypeOf(uint8(0)), reflect.TypeOf(uint16(0)), reflect.TypeOf(uint32(0)),
		reflect.TypeOf(uint64(0)), reflect.TypeOf(uint(0)),
		reflect.TypeOf(float32(0)), reflect.TypeOf(float64(0)),
		reflect.TypeOf(""),
		charType, uuidType, timeType, durationType,
	}
	for _, t := range builtins {
		key := t.String()
		r.byConcreteType[t] = &codecEntry{typeKey: key}
		r.keyToType[key] = t
	}
}

// Register validates the paired-or-both-null rule and stores the codec
// triple under its stable type key (§4.2). It adds no key-only marker
// entries for the interfaces or embedded base types of t: see
// registerTransitiveMarkersLocked.
func (r *TypeRegistry) Register(t reflect.Type, key string, copier Copier, serializer Serializer, deserializer Deserializer, overrideExisting bool) error {
	if (serializer == nil) != (deserializer == nil) {
		return newRegistrationError("type %s: serializer and deserializer must be both present or both absent", t)
	}
	if key == "" {
		return newRegistrationError("type %s: type key must not be empty", t)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byConcreteType[t]; exists && !overrideExisting {
		return newRegistrationError("type %s already registered", t)
	}

	entry := &codecEntry{typeKey: key, copier: copier, serializer: serializer, deserializer: deserializer}
	r.byConcreteType[t] = entry
	r.keyToType[key] = keyResolutionType(t, deserializer)

	r.registerTransitiveMarkersLocked(t, key)
	return nil
}

// keyResolutionType is the reflect.Type a type key resolves back to. A
// plain struct registered with no deserializer is only ever produced by
// the pointer-to-struct fallback serializer (reflectFallback.SupportsType
// requires Ptr), so its key must resolve to the pointer type rather than
// the bare struct — otherwise a decoded array or field of that type would
// build a slice of values, not pointers, and lose the identity graph.
func keyResolutionType(t reflect.Type, deserializer Deserializer) reflect.Type {
	if deserializer == nil && t.Kind() == reflect.Struct {
		return reflect.PtrTo(t)
	}
	return t
}

// registerTransitiveMarkersLocked visits the already-registered interfaces
// t implements and (for a struct or pointer-to-struct) its embedded fields.
// It installs an entry only for a type that has none, but both loops only
// find types that already have an entry, so it adds nothing and leaves the
// existing entries unchanged.
func (r *TypeRegistry) registerTransitiveMarkersLocked(t reflect.Type, key string) {
	for _, iface := range r.implementedKnownInterfacesLocked(t) {
		if _, exists := r.byConcreteType[iface]; !exists {
			r.byConcreteType[iface] = &codecEntry{typeKey: key + "$via$" + iface.String()}
		}
	}
	elem := t
	if elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
	}
	if elem.Kind() != reflect.Struct {
		return
	}
	for i := 0; i < elem.NumField(); i++ {
		f := elem.Field(i)
		if !f.Anonymous {
			continue
		}
		if _, exists := r.byConcreteType[f.Type]; !exists {
			if baseKey, ok := r.keyOfLocked(f.Type); ok {
				r.byConcreteType[f.Type] = &codecEntry{typeKey: baseKey}
			}
		}
	}
}

// implementedKnownInterfacesLocked returns the already-registered interface
// types t satisfies.
func (r *TypeRegistry) implementedKnownInterfacesLocked(t reflect.Type) []reflect.Type {
	var out []reflect.Type
	for candidate := range r.byConcreteType {
		if candidate.Kind() == reflect.Interface && t != candidate && t.Implements(candidate) {
			out = append(out, candidate)
		}
	}
	return out
}

func (r *TypeRegistry) keyOfLocked(t reflect.Type) (string, bool) {
	if e, ok := r.byConcreteType[t]; ok {
		return e.typeKey, true
	}
	return "", false
}

// RegisterMarker registers t with no codecs, purely to make its type-key
// string resolvable — used for interfaces and abstract bases (§4.2).
func (r *TypeRegistry) RegisterMarker(t reflect.Type, key string) error {
	if key == "" {
		key = defaultTypeKey(t)
	}
	return r.Register(t, key, nil, nil, nil, true)
}

// RegisterConcreteOfGeneric records a generic definition under baseKey so
// that encoding an instance of an unregistered concrete instantiation can
// materialize its codec on demand (§4.2, §9).
func (r *TypeRegistry) RegisterConcreteOfGeneric(baseKey string, arity int, factory GenericFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byGenericDefinition[genericDefKey(baseKey, arity)] = &genericDefinition{baseKey: baseKey, arity: arity, factory: factory}
}

func genericDefKey(baseKey string, arity int) string { return fmt.Sprintf("%s<%d>", baseKey, arity) }

// RegisterKnownType records a typeKey -> fully-qualified-name mapping
// discovered at startup, consulted by the resolver before it falls back to
// grammar parsing (§3, §4.3).
func (r *TypeRegistry) RegisterKnownType(typeKey, fullyQualifiedName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.knownTypes[typeKey] = fullyQualifiedName
}

func (r *TypeRegistry) knownTypeLocked(typeKey string) (string, bool) {
	fqn, ok := r.knownTypes[typeKey]
	return fqn, ok
}

// lookup returns the exact-match entry, retrying against t's generic
// definition if t is a slice or map (Go's native stand-ins for generics
// here — see specializeGeneric and genericShapeOf).
func (r *TypeRegistry) lookup(t reflect.Type) (*codecEntry, bool) {
	r.mu.RLock()
	entry, ok := r.byConcreteType[t]
	r.mu.RUnlock()
	if ok {
		return entry, true
	}
	if specialized, ok := r.specializeGeneric(t); ok {
		return specialized, true
	}
	return nil, false
}

// specializeGeneric implements registerConcreteOfGeneric's lazy path: find
// a registered generic definition whose base key + arity matches t's shape,
// instantiate it, and cache the result under t with double-checked locking
// so concurrent misses for the same t collapse into one specialization
// (§5: "first writer wins, both readers get the same entry").
func (r *TypeRegistry) specializeGeneric(t reflect.Type) (*codecEntry, bool) {
	baseKey, typeArgs, ok := genericShapeOf(t)
	if !ok {
		return nil, false
	}
	defKey := genericDefKey(baseKey, len(typeArgs))

	r.mu.RLock()
	def, ok := r.byGenericDefinition[defKey]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.byConcreteType[t]; ok {
		return entry, true
	}
	copier, serializer, deserializer, err := def.factory(typeArgs)
	if err != nil {
		return nil, false
	}
	entry := &codecEntry{typeKey: defaultTypeKey(t), copier: copier, serializer: serializer, deserializer: deserializer}
	r.byConcreteType[t] = entry
	r.keyToType[entry.typeKey] = t
	return entry, true
}

// genericShapeOf maps Go's built-in parametric kinds onto the registry's
// notion of a generic base+arguments, since user-defined generic types
// (Go 1.18 type parameters) are not individually reflectable once compiled;
// slices and maps are the idiomatic Go stand-in the teacher itself treats
// specially (sliceConcreteValueSerializer, mapSerializer).
func genericShapeOf(t reflect.Type) (base string, args []reflect.Type, ok bool) {
	switch t.Kind() {
	case reflect.Slice:
		return "Slice", []reflect.Type{t.Elem()}, true
	case reflect.Map:
		return "Map", []reflect.Type{t.Key(), t.Elem()}, true
	default:
		return "", nil, false
	}
}

// GetCopier returns t's copier, retrying the generic definition on miss.
func (r *TypeRegistry) GetCopier(t reflect.Type) (Copier, bool) {
	e, ok := r.lookup(t)
	if !ok || e.copier == nil {
		return nil, false
	}
	return e.copier, true
}

// GetSerializer returns t's serializer, retrying the generic definition on
// miss.
func (r *TypeRegistry) GetSerializer(t reflect.Type) (Serializer, bool) {
	e, ok := r.lookup(t)
	if !ok || e.serializer == nil {
		return nil, false
	}
	return e.serializer, true
}

// GetDeserializer returns t's deserializer, retrying the generic definition
// on miss.
func (r *TypeRegistry) GetDeserializer(t reflect.Type) (Deserializer, bool) {
	e, ok := r.lookup(t)
	if !ok || e.deserializer == nil {
		return nil, false
	}
	return e.deserializer, true
}

// HasSerializer reports whether t can be serialized: true for primitives,
// true on a direct or generic-definition hit, and for a generic type true
// iff its definition and every type argument recursively pass (§4.2).
func (r *TypeRegistry) HasSerializer(t reflect.Type) bool {
	if isSimplePrimitive(t) {
		return true
	}
	if _, ok := r.GetSerializer(t); ok {
		return true
	}
	if base, args, ok := genericShapeOf(t); ok {
		r.mu.RLock()
		_, defOk := r.byGenericDefinition[genericDefKey(base, len(args))]
		r.mu.RUnlock()
		if !defOk {
			return false
		}
		for _, a := range args {
			if !r.HasSerializer(a) {
				return false
			}
		}
		return true
	}
	return false
}

// TypeKeyOf returns the stable type-key string for t: a direct registration
// hit if one exists (dereferencing pointer-ness first, so *Node shares
// Node's key), otherwise a structural key built by recursing back through
// TypeKeyOf itself for every nested type — never bare reflect.Type.String()
// — so an array, slice or map of a registered or builtin leaf type
// resolves back to that same leaf on decode (§4.3). Unlike the standalone
// defaultTypeKey, this recursion sees every other registration, which is
// what lets `[]*Node` round-trip as `Node[]` instead of
// `graincodec.Node[]`.
func (r *TypeRegistry) TypeKeyOf(t reflect.Type) string {
	lookup := t
	if lookup.Kind() == reflect.Ptr {
		lookup = lookup.Elem()
	}
	r.mu.RLock()
	e, ok := r.byConcreteType[lookup]
	r.mu.RUnlock()
	if ok && e.typeKey != "" {
		return e.typeKey
	}

	switch t.Kind() {
	case reflect.Ptr:
		return r.TypeKeyOf(t.Elem())
	case reflect.Slice:
		return r.TypeKeyOf(t.Elem()) + "[]"
	case reflect.Array:
		return r.TypeKeyOf(t.Elem()) + "[]"
	case reflect.Map:
		return "Map<" + r.TypeKeyOf(t.Key()) + "," + r.TypeKeyOf(t.Elem()) + ">"
	default:
		return t.String()
	}
}

// TypeByKey resolves a previously-seen type key back to its reflect.Type
// without going through the full grammar parser; the resolver consults it
// before parsing. The full grammar-driven resolution lives in resolver.go.
func (r *TypeRegistry) TypeByKey(key string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.keyToType[key]
	return t, ok
}

// defaultTypeKey builds the §4.3 grammar string for types the caller never
// explicitly registered: slices and fixed-length arrays as the rank-1
// `elem[]` and maps as `Map<key,elem>`.
func defaultTypeKey(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Ptr:
		return defaultTypeKey(t.Elem())
	case reflect.Slice:
		return defaultTypeKey(t.Elem()) + "[]"
	case reflect.Array:
		return defaultTypeKey(t.Elem()) + "[]"
	case reflect.Map:
		return "Map<" + defaultTypeKey(t.Key()) + "," + defaultTypeKey(t.Elem()) + ">"
	default:
		return t.String()
	}
}

func stringsRepeat(s string, n int) string {
	if n <= 0 {
		return ""
	}
	out := make([]byte, 0, n*len(s))
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}
