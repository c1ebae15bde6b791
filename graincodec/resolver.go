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
	"strings"
	"sync"
)

// ExternalTypeLoader loads a reflect.Type given the fully-qualified name
// recorded in the known-type table (§3, §4.3). A host that only ever uses
// types it registers directly can leave this nil.
type ExternalTypeLoader interface {
	LoadType(fullyQualifiedName string) (reflect.Type, error)
}

// TypeNameResolver parses the stable type-key grammar of §4.3:
//
//	typeKey := arrayOf | generic | simple
//	arrayOf := typeKey '[' ','* ']'
//	generic := simpleBase '<' typeKey (',' typeKey)* '>'
//	simple  := opaque string with none of '<' '>' '[' ']' ','
type TypeNameResolver struct {
	mu       sync.RWMutex
	cache    map[string]reflect.Type
	registry *TypeRegistry
	loader   ExternalTypeLoader
}

// NewTypeNameResolver binds the resolver to the registry it consults for
// known-type lookups and generic-definition lookups.
func NewTypeNameResolver(registry *TypeRegistry, loader ExternalTypeLoader) *TypeNameResolver {
	return &TypeNameResolver{
		cache:    make(map[string]reflect.Type),
		registry: registry,
		loader:   loader,
	}
}

// Resolve implements the resolution algorithm of §4.3 in order: cache hit,
// registry key, known-type + external loader, array suffix, generic
// closure, failure.
func (r *TypeNameResolver) Resolve(typeKey string) (reflect.Type, error) {
	r.mu.RLock()
	if t, ok := r.cache[typeKey]; ok {
		r.mu.RUnlock()
		return t, nil
	}
	r.mu.RUnlock()

	if t, ok := r.registry.TypeByKey(typeKey); ok {
		r.cacheSet(typeKey, t)
		return t, nil
	}

	if fqn, ok := r.registry.knownTypeLocked(typeKey); ok && r.loader != nil {
		t, err := r.loader.LoadType(fqn)
		if err != nil {
			return nil, errUnresolvableTypeName(typeKey)
		}
		r.cacheSet(typeKey, t)
		return t, nil
	}

	if strings.HasSuffix(typeKey, "]") {
		return r.resolveArray(typeKey)
	}

	if idx := strings.Index(typeKey, "<"); idx >= 0 && strings.HasSuffix(typeKey, ">") {
		return r.resolveGeneric(typeKey, idx)
	}

	return nil, errUnresolvableTypeName(typeKey)
}

func (r *TypeNameResolver) cacheSet(key string, t reflect.Type) {
	r.mu.Lock()
	r.cache[key] = t
	r.mu.Unlock()
}

// resolveArray splits "Base[,,,]" at its last top-level '[', counts the
// commas to get rank = 1 + count, and builds a Go array-of-slices stand-in:
// rank 1 produces []Elem, rank N>1 produces [][]...[]Elem (N deep), which is
// how this Go port represents the source's multi-rank array type (Go has no
// native multi-dimensional slice/array-of-unknown-length primitive).
func (r *TypeNameResolver) resolveArray(typeKey string) (reflect.Type, error) {
	open := strings.LastIndex(typeKey, "[")
	if open < 0 {
		return nil, errUnresolvableTypeName(typeKey)
	}
	base := typeKey[:open]
	inner := typeKey[open+1 : len(typeKey)-1]
	rank := 1
	for _, c := range inner {
		if c == ',' {
			rank++
		} else if c != ' ' {
			return nil, errUnresolvableTypeName(typeKey)
		}
	}
	elem, err := r.Resolve(base)
	if err != nil {
		return nil, err
	}
	t := elem
	for i := 0; i < rank; i++ {
		t = reflect.SliceOf(t)
	}
	r.cacheSet(typeKey, t)
	return t, nil
}

// resolveGeneric splits "Base<A,B>" into its base and top-level comma
// separated arguments (nested '<' '>' are tracked so a type argument that is
// itself generic isn't split early), resolves each argument, resolves the
// base under the alternative key "base<arity>", and constructs the closed
// type.
func (r *TypeNameResolver) resolveGeneric(typeKey string, openIdx int) (reflect.Type, error) {
	base := typeKey[:openIdx]
	argsStr := typeKey[openIdx+1 : len(typeKey)-1]
	argStrs, err := splitTopLevelArgs(argsStr)
	if err != nil {
		return nil, errUnresolvableTypeName(typeKey)
	}
	args := make([]reflect.Type, 0, len(argStrs))
	for _, a := range argStrs {
		t, err := r.Resolve(a)
		if err != nil {
			return nil, err
		}
		args = append(args, t)
	}

	closed, ok := r.constructGeneric(base, args)
	if !ok {
		return nil, errUnresolvableTypeName(typeKey)
	}
	r.cacheSet(typeKey, closed)
	return closed, nil
}

// constructGeneric recognizes the two Go-native parametric shapes (List as
// a slice, Map as a map, standing in for the source's
// List<T>/Dictionary<K,V>) and otherwise returns whatever type was
// registered under the literal key "base<arity>", whatever args are.
// reflect cannot synthesize a user-defined generic type at runtime, and the
// generic definitions added with RegisterConcreteOfGeneric are not
// consulted here (see DESIGN.md's Open Question notes).
func (r *TypeNameResolver) constructGeneric(base string, args []reflect.Type) (reflect.Type, bool) {
	switch {
	case strings.EqualFold(base, "List") && len(args) == 1:
		return reflect.SliceOf(args[0]), true
	case strings.EqualFold(base, "Map") && len(args) == 2:
		return reflect.MapOf(args[0], args[1]), true
	}
	if t, ok := r.registry.TypeByKey(genericDefKey(base, len(args))); ok {
		return t, true
	}
	return nil, false
}

// splitTopLevelArgs slices argsStr at commas that are not nested inside a
// '<...>' or '[...]' group, so `Map<int,string>,int` splits into two
// arguments rather than three, and a generic argument that is itself a
// multi-rank array (`Dictionary<int[,],string>`) does not split on the
// comma inside the array's bracket (§4.3).
func splitTopLevelArgs(argsStr string) ([]string, error) {
	var out []string
	depth := 0
	start := 0
	for i, c := range argsStr {
		switch c {
		case '<', '[':
			depth++
		case '>', ']':
			depth--
			if depth < 0 {
				return nil, errUnresolvableTypeName(argsStr)
			}
		case ',':
			if depth == 0 {
				out = append(out, argsStr[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, errUnresolvableTypeName(argsStr)
	}
	out = append(out, argsStr[start:])
	return out, nil
}
