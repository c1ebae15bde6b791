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
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Codec is the capability set shared by external serializers, keyed
// serializers, and the fallback serializer (§3, §9: "treat these as three
// tiers of the same abstraction"). SupportsType is the type-support
// predicate each tier memoizes per type.
type Codec interface {
	SupportsType(t reflect.Type) bool
	Copy(obj interface{}, ctx *CopyContext) (interface{}, error)
	Serialize(obj interface{}, ctx *SerializeContext) error
	Deserialize(expected reflect.Type, ctx *DeserializeContext) (interface{}, error)
}

// matchResult records both a positive and a negative support decision
// explicitly, rather than storing nil-for-"no match" in the cache, per the
// §9 open question ("implementers should use an explicit sentinel ... to
// distinguish 'not yet computed' from 'computed: none'"); a present cache
// entry is always a computed result, matched or not.
type matchResult struct {
	codec   Codec
	matched bool
}

// ExternalSerializerList is the ordered, first-match list of user-pluggable
// codecs tried before registered codecs (§3, §4.2 tier 5). Results — both
// hits and explicit misses — are memoized per type in a bounded LRU so a
// host serving many ephemeral types doesn't grow this cache without bound.
type ExternalSerializerList struct {
	mu    sync.Mutex
	list  []Codec
	cache *lru.Cache[reflect.Type, matchResult]
}

// NewExternalSerializerList builds the list in priority order (first
// element wins ties) with a bounded memoization cache of capacity cacheSize.
func NewExternalSerializerList(serializers []Codec, cacheSize int) *ExternalSerializerList {
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	c, _ := lru.New[reflect.Type, matchResult](cacheSize)
	return &ExternalSerializerList{list: serializers, cache: c}
}

// Lookup returns the first external serializer supporting t, memoizing the
// result — including "none support it" — so repeat lookups for the same
// type never re-walk the list (§3).
func (l *ExternalSerializerList) Lookup(t reflect.Type) (Codec, bool) {
	if l == nil {
		return nil, false
	}
	if res, ok := l.cache.Get(t); ok {
		return res.codec, res.matched
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	// Re-check under the lock: another goroutine may have raced us and
	// already computed this type's result (§5: first writer wins).
	if res, ok := l.cache.Get(t); ok {
		return res.codec, res.matched
	}
	for _, c := range l.list {
		if c.SupportsType(t) {
			l.cache.Add(t, matchResult{codec: c, matched: true})
			return c, true
		}
	}
	l.cache.Add(t, matchResult{matched: false})
	return nil, false
}
