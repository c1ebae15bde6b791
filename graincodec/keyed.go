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

// KeyedSerializer extends Codec with its own wire id, a small integer
// selected on the wire by a single byte (§3, §4.1's TokenKeyedSerializer).
type KeyedSerializer interface {
	Codec
	SerializerId() byte
}

// KeyedSerializerTable maintains both the id -> serializer map used to
// decode TokenKeyedSerializer and the ordered list used for first-match
// encode lookup (§3, §4.2 tier 7).
type KeyedSerializerTable struct {
	mu     sync.Mutex
	byId   map[byte]KeyedSerializer
	list   []KeyedSerializer
	cache  *lru.Cache[reflect.Type, matchResult]
}

// NewKeyedSerializerTable builds the table from an ordered list of keyed
// serializers, each carrying a unique id (§6); duplicate ids are rejected.
func NewKeyedSerializerTable(serializers []KeyedSerializer, cacheSize int) (*KeyedSerializerTable, error) {
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	byId := make(map[byte]KeyedSerializer, len(serializers))
	for _, s := range serializers {
		if _, dup := byId[s.SerializerId()]; dup {
			return nil, newRegistrationError("duplicate keyed serializer id %d", s.SerializerId())
		}
		byId[s.SerializerId()] = s
	}
	c, _ := lru.New[reflect.Type, matchResult](cacheSize)
	return &KeyedSerializerTable{byId: byId, list: serializers, cache: c}, nil
}

func (k *KeyedSerializerTable) ById(id byte) (KeyedSerializer, bool) {
	if k == nil {
		return nil, false
	}
	s, ok := k.byId[id]
	return s, ok
}

// Lookup mirrors ExternalSerializerList.Lookup's memoize-including-misses
// behavior (§3, §5).
func (k *KeyedSerializerTable) Lookup(t reflect.Type) (KeyedSerializer, bool) {
	if k == nil {
		return nil, false
	}
	if res, ok := k.cache.Get(t); ok {
		if !res.matched {
			return nil, false
		}
		return res.codec.(KeyedSerializer), true
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if res, ok := k.cache.Get(t); ok {
		if !res.matched {
			return nil, false
		}
		return res.codec.(KeyedSerializer), true
	}
	for _, s := range k.list {
		if s.SupportsType(t) {
			k.cache.Add(t, matchResult{codec: s, matched: true})
			return s, true
		}
	}
	k.cache.Add(t, matchResult{matched: false})
	return nil, false
}
