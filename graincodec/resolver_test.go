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

// TestResolveGenericGrammar covers §8 property 7: resolving the key
// List<Map<int,string>> (the Go stand-in for List<Dictionary<int,string>>)
// must yield the expected closed generic type, []map[int]string.
func TestResolveGenericGrammar(t *testing.T) {
	r := NewTypeRegistry()
	r.RegisterMarker(reflect.TypeOf(0), "int")
	r.RegisterMarker(reflect.TypeOf(""), "string")
	resolver := NewTypeNameResolver(r, nil)

	got, err := resolver.Resolve("List<Map<int,string>>")
	require.NoError(t, err)
	require.Equal(t, reflect.TypeOf([]map[int]string(nil)), got)
}

// TestResolveArrayGrammar covers §8 property 7's array-rank case:
// "Foo[,,]" resolves to a rank-3 array stand-in.
func TestResolveArrayGrammar(t *testing.T) {
	r := NewTypeRegistry()
	r.RegisterMarker(reflect.TypeOf(int32(0)), "Foo")
	resolver := NewTypeNameResolver(r, nil)

	got, err := resolver.Resolve("Foo[,,]")
	require.NoError(t, err)
	require.Equal(t, reflect.TypeOf([][][]int32(nil)), got)
}

func TestResolveRank1Array(t *testing.T) {
	r := NewTypeRegistry()
	r.RegisterMarker(reflect.TypeOf(""), "Str")
	resolver := NewTypeNameResolver(r, nil)

	got, err := resolver.Resolve("Str[]")
	require.NoError(t, err)
	require.Equal(t, reflect.TypeOf([]string(nil)), got)
}

// TestResolveMalformedKeyFails covers §8 property 7's negative case.
func TestResolveMalformedKeyFails(t *testing.T) {
	r := NewTypeRegistry()
	resolver := NewTypeNameResolver(r, nil)

	_, err := resolver.Resolve("Nonexistent.Type.Name")
	require.Error(t, err)
	var codecErr *CodecError
	require.ErrorAs(t, err, &codecErr)
	require.Equal(t, UnresolvableTypeName, codecErr.Kind)

	_, err = resolver.Resolve("List<int,")
	require.Error(t, err)
	require.ErrorAs(t, err, &codecErr)
	require.Equal(t, UnresolvableTypeName, codecErr.Kind)
}

func TestResolveCachesResult(t *testing.T) {
	r := NewTypeRegistry()
	r.RegisterMarker(reflect.TypeOf(0), "Int32Marker")
	resolver := NewTypeNameResolver(r, nil)

	first, err := resolver.Resolve("Int32Marker")
	require.NoError(t, err)
	second, err := resolver.Resolve("Int32Marker")
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestSplitTopLevelArgsHandlesNesting(t *testing.T) {
	parts, err := splitTopLevelArgs("Map<int,string>,int")
	require.NoError(t, err)
	require.Equal(t, []string{"Map<int,string>", "int"}, parts)
}
