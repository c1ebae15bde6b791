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

	"github.com/davecgh/go-spew/spew"
)

// ErrorKind is the taxonomy from §7: every error this engine returns can be
// switched on to decide whether it is a startup-time registration defect or
// an operation-time failure.
type ErrorKind int

const (
	// RegistrationInconsistency: a serializer was registered without its
	// matching deserializer, or vice versa, or no codec methods were found.
	RegistrationInconsistency ErrorKind = iota
	// NoCodecFound: encode/decode reached the end of the tie-break order
	// (§4.2) without a match.
	NoCodecFound
	// UnresolvableTypeName: the type-name resolver (§4.3) exhausted its
	// grammar rules.
	UnresolvableTypeName
	// StreamFormatError: an unexpected token, unknown keyed-serializer id,
	// or a truncated buffer.
	StreamFormatError
)

func (k ErrorKind) String() string {
	switch k {
	case RegistrationInconsistency:
		return "RegistrationInconsistency"
	case NoCodecFound:
		return "NoCodecFound"
	case UnresolvableTypeName:
		return "UnresolvableTypeName"
	case StreamFormatError:
		return "StreamFormatError"
	default:
		return "Unknown"
	}
}

// CodecError is the single error type the engine returns for anything that
// isn't an InjectedFault (§7 — those propagate unchanged from user codecs).
type CodecError struct {
	Kind ErrorKind
	Msg  string
}

func (e *CodecError) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Msg) }

func newRegistrationError(format string, args ...interface{}) *CodecError {
	return &CodecError{Kind: RegistrationInconsistency, Msg: fmt.Sprintf(format, args...)}
}

// errNoCodec builds a NoCodecFound error naming the type key and the
// offending value, dumped with spew so a developer staring at a log line
// can see the shape of the value that defeated every tier of dispatch.
func errNoCodec(typeKey string, v interface{}) *CodecError {
	return &CodecError{
		Kind: NoCodecFound,
		Msg:  fmt.Sprintf("no codec found for type key %q: %s", typeKey, spew.Sdump(v)),
	}
}

func errUnresolvableTypeName(key string) *CodecError {
	return &CodecError{Kind: UnresolvableTypeName, Msg: fmt.Sprintf("unresolvable type key %q", key)}
}

func errStreamFormat(format string, args ...interface{}) *CodecError {
	return &CodecError{Kind: StreamFormatError, Msg: fmt.Sprintf(format, args...)}
}

func errTruncated(where string) *CodecError {
	return errStreamFormat("truncated buffer reading %s", where)
}

func errUnexpectedToken(where string, got Token) *CodecError {
	return errStreamFormat("unexpected token %s at %s", got, where)
}

// dumpType is used by diagnostics that need a stable, reflect-based render
// of a runtime type without depending on the registry being populated.
func dumpType(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
